package machine

import "github.com/mna/lispkit/lang/value"

// Primitive is an external function the compiler can invoke directly via
// PRIM instead of through the general closure-call protocol. Arity is
// fixed per primitive (variadic primitives report a negative arity and
// receive however many arguments the call site supplied).
type Primitive struct {
	Name  string
	Arity int
	Fn    func(args []value.Value) (value.Value, error)
}

// PrimitiveTable is a name-addressed set of primitives, shared by every
// State created against the same Context. It implements compiler.Primitives
// so the compiler can decide at compile time whether a call site names a
// primitive.
type PrimitiveTable struct {
	byName map[string]*Primitive
}

// NewPrimitiveTable builds a table from prims.
func NewPrimitiveTable(prims ...*Primitive) *PrimitiveTable {
	t := &PrimitiveTable{byName: make(map[string]*Primitive, len(prims))}
	for _, p := range prims {
		t.byName[p.Name] = p
	}
	return t
}

// Lookup implements compiler.Primitives.
func (t *PrimitiveTable) Lookup(name string) (arity int, ok bool) {
	p, ok := t.byName[name]
	if !ok {
		return 0, false
	}
	return p.Arity, true
}

// Call invokes the named primitive with args, used by the VM's PRIM
// dispatch.
func (t *PrimitiveTable) Call(name string, args []value.Value) (value.Value, error) {
	p, ok := t.byName[name]
	if !ok {
		return nil, &Error{Op: "PRIM", Msg: "unknown primitive " + name}
	}
	if p.Arity >= 0 && len(args) != p.Arity {
		return nil, &Error{Op: "PRIM", Msg: "primitive " + name + ": wrong number of arguments"}
	}
	return p.Fn(args)
}
