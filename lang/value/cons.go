package value

// Cons is a mutable pair cell: (First . Rest). A proper list terminates at
// Nil; a dotted list terminates at any other atom. Cons cells are mutated in
// place by macro expansion, which destructively rewrites sub-forms.
type Cons struct {
	First Value
	Rest  Value
}

var _ Value = (*Cons)(nil)

// NewCons allocates a pair cell.
func NewCons(first, rest Value) *Cons { return &Cons{First: first, Rest: rest} }

func (c *Cons) String() string { return Print(c) }
func (*Cons) Type() string     { return "cons" }

// IsCons reports whether v is a cons cell.
func IsCons(v Value) bool { _, ok := v.(*Cons); return ok }

// IsNil reports whether v is Nil.
func IsNil(v Value) bool { _, ok := v.(NilType); return ok }

// First returns the car of v, or Nil if v is not a cons.
func First(v Value) Value {
	if c, ok := v.(*Cons); ok {
		return c.First
	}
	return Nil
}

// Rest returns the cdr of v, or Nil if v is not a cons.
func Rest(v Value) Value {
	if c, ok := v.(*Cons); ok {
		return c.Rest
	}
	return Nil
}

// Second, Third and Fourth are conveniences for the second, third and fourth
// elements of a list.
func Second(v Value) Value { return First(Rest(v)) }
func Third(v Value) Value  { return First(Rest(Rest(v))) }
func Fourth(v Value) Value { return First(Rest(Rest(Rest(v)))) }

// AfterSecond and AfterThird are the rests past those positions.
func AfterSecond(v Value) Value { return Rest(Rest(v)) }
func AfterThird(v Value) Value  { return Rest(Rest(Rest(v))) }

// Length counts cells until a non-cons rest (a dotted tail or Nil). It
// returns -1 if v is not Nil and not a cons (an atom passed where a list was
// expected).
func Length(v Value) int {
	if IsNil(v) {
		return 0
	}
	n := 0
	for {
		c, ok := v.(*Cons)
		if !ok {
			if n == 0 {
				return -1
			}
			return n
		}
		n++
		v = c.Rest
	}
}

// IsProperList reports whether v is Nil or a chain of cons cells terminating
// at Nil.
func IsProperList(v Value) bool {
	for {
		if IsNil(v) {
			return true
		}
		c, ok := v.(*Cons)
		if !ok {
			return false
		}
		v = c.Rest
	}
}

// ListToSlice collects the elements of a (possibly dotted) list, stopping at
// the first non-cons rest.
func ListToSlice(v Value) []Value {
	var out []Value
	for {
		c, ok := v.(*Cons)
		if !ok {
			break
		}
		out = append(out, c.First)
		v = c.Rest
	}
	return out
}

// SliceToList builds a proper list from xs.
func SliceToList(xs []Value) Value {
	var result Value = Nil
	for i := len(xs) - 1; i >= 0; i-- {
		result = NewCons(xs[i], result)
	}
	return result
}

// ListStar builds a list from xs with tail as the final rest, i.e. a dotted
// list if tail is not Nil.
func ListStar(xs []Value, tail Value) Value {
	result := tail
	for i := len(xs) - 1; i >= 0; i-- {
		result = NewCons(xs[i], result)
	}
	return result
}
