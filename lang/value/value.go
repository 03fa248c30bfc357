// Package value implements the runtime value model shared by the compiler
// and the virtual machine: atoms, cons cells, interned symbols and their
// home packages, the environment chain, closures and macros.
//
// Grouping the whole data model in a single package mirrors the teacher
// repository's machine package, which holds Value, Function, Map and Tuple
// side by side rather than splitting each type into its own package.
package value

import (
	"strconv"
)

// Value is the interface implemented by every value the compiler and the VM
// exchange.
type Value interface {
	// String returns the value's short textual (debug-print) form.
	String() string
	// Type returns a short string describing the value's runtime type.
	Type() string
}

// NilType is the type of Nil. It is represented as a one-byte numeric type,
// not struct{}, so that Nil can be a comparable constant usable as a map key
// and in switch cases.
type NilType byte

// Nil is the unique value of type NilType.
const Nil = NilType(0)

var _ Value = Nil

func (NilType) String() string { return "nil" }
func (NilType) Type() string   { return "nil" }

// Bool is the boolean type. Only False and Nil coerce to false; see Truth.
type Bool bool

// True and False are the two Bool values.
const (
	True  = Bool(true)
	False = Bool(false)
)

var _ Value = True

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Bool) Type() string { return "bool" }

// Int is a signed integer value.
type Int int64

var _ Value = Int(0)

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (Int) Type() string     { return "int" }

// Float is a floating point value.
type Float float64

var _ Value = Float(0)

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (Float) Type() string     { return "float" }

// String is a Lisp string value.
type String string

var _ Value = String("")

func (s String) String() string { return string(s) }
func (String) Type() string     { return "string" }

// Truth implements the boolean coercion law: exactly False and Nil coerce to
// false; every other value, including Int(0) and the empty String, coerces
// to true.
func Truth(v Value) bool {
	switch v := v.(type) {
	case NilType:
		return false
	case Bool:
		return bool(v)
	default:
		return true
	}
}

// Equal implements value equality: atoms compare by value, cons cells and
// other reference types compare by identity.
func Equal(x, y Value) bool {
	switch x := x.(type) {
	case NilType:
		_, ok := y.(NilType)
		return ok
	case Bool:
		yb, ok := y.(Bool)
		return ok && x == yb
	case Int:
		switch y := y.(type) {
		case Int:
			return x == y
		case Float:
			return Float(x) == y
		}
		return false
	case Float:
		switch y := y.(type) {
		case Int:
			return x == Float(y)
		case Float:
			return x == y
		}
		return false
	case String:
		ys, ok := y.(String)
		return ok && x == ys
	default:
		// Cons cells, symbols, closures, macros and return addresses all
		// compare by identity (Go pointer equality).
		return x == y
	}
}

// Print renders v in a short textual form suitable for debug output and
// error messages. Proper lists print as (a b c); a list with a non-nil
// tail prints that tail after a dot, as in (a b . c).
func Print(v Value) string {
	if v == nil {
		return "nil"
	}
	if c, ok := v.(*Cons); ok {
		return printCons(c)
	}
	if s, ok := v.(String); ok {
		return strconv.Quote(string(s))
	}
	return v.String()
}

func printCons(c *Cons) string {
	var b []byte
	b = append(b, '(')
	first := true
	var cur Value = c
	for {
		cc, ok := cur.(*Cons)
		if !ok {
			break
		}
		if !first {
			b = append(b, ' ')
		}
		first = false
		b = append(b, Print(cc.First)...)
		cur = cc.Rest
	}
	if !IsNil(cur) {
		b = append(b, " . "...)
		b = append(b, Print(cur)...)
	}
	b = append(b, ')')
	return string(b)
}

// DebugString is an alias kept for embedders that want a named entry point
// distinct from fmt.Stringer; it simply calls Print.
func DebugString(v Value) string { return Print(v) }
