package value

import "fmt"

// CodeHandle identifies an assembled code block in the process-wide code
// registry (owned by the machine package). Closures refer to code by this
// opaque handle rather than by direct pointer, so that the registry is free
// to be the single owner of every assembled instruction sequence.
type CodeHandle int

// ParamList is a lambda's formal parameter list: zero or more required
// names, plus an optional trailing rest parameter when Dotted is true.
type ParamList struct {
	Names  []*Symbol
	Dotted bool
}

// Required returns the number of named, non-rest parameters.
func (p *ParamList) Required() int {
	n := len(p.Names)
	if p.Dotted {
		n--
	}
	return n
}

func (p *ParamList) String() string {
	if p == nil {
		return "()"
	}
	s := "("
	for i, n := range p.Names {
		if i > 0 {
			s += " "
		}
		if p.Dotted && i == len(p.Names)-1 {
			s += ". "
		}
		s += n.Name
	}
	return s + ")"
}

// ClosureTemplate is the compile-time description carried by a MAKE_CLOSURE
// instruction's first operand. At run time, MAKE_CLOSURE turns a template
// into a Closure by pairing it with the env active at that point.
type ClosureTemplate struct {
	Code   CodeHandle
	Params *ParamList
	Name   string
}

var _ Value = (*ClosureTemplate)(nil)

func (t *ClosureTemplate) String() string {
	name := t.Name
	if name == "" {
		name = "anonymous"
	}
	return fmt.Sprintf("#[closure-template %s%s]", name, t.Params)
}
func (*ClosureTemplate) Type() string { return "closure-template" }

// Closure bundles a handle to an assembled code block, the environment
// captured at creation, the formal parameter list (used for arity checks
// and error messages), and an optional display name.
type Closure struct {
	Code   CodeHandle
	Env    *Env
	Params *ParamList
	Name   string
}

var _ Value = (*Closure)(nil)

func (c *Closure) String() string {
	name := c.Name
	if name == "" {
		name = "anonymous"
	}
	return fmt.Sprintf("#[closure %s%s]", name, c.Params)
}
func (*Closure) Type() string { return "closure" }

// Macro bundles a name symbol, formal arguments and a compiled closure body.
// It is stored in the home package's macro table.
type Macro struct {
	Name   *Symbol
	Params *ParamList
	Body   *Closure
}

var _ Value = (*Macro)(nil)

func (m *Macro) String() string { return fmt.Sprintf("#[macro %s%s]", m.Name.Name, m.Params) }
func (*Macro) Type() string     { return "macro" }

// ReturnAddress is the (fn, pc, env) triple pushed by SAVE_RETURN and
// restored by RETURN_VAL to resume execution after a non-tail call.
type ReturnAddress struct {
	Fn  *Closure
	PC  int
	Env *Env
}

var _ Value = (*ReturnAddress)(nil)

func (*ReturnAddress) String() string { return "#[return-address]" }
func (*ReturnAddress) Type() string   { return "return-address" }
