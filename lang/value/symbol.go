package value

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// Symbol is an interned name scoped to a home Package. Two Intern calls for
// the same name on the same package return the same Symbol identity.
type Symbol struct {
	Name string
	Home *Package
}

var _ Value = (*Symbol)(nil)

func (s *Symbol) String() string { return s.Name }
func (*Symbol) Type() string     { return "symbol" }

// Package is a namespace of interned symbols together with their global
// value and macro bindings. Package bindings are process-wide, mutable
// state shared by every compilation and every VM in a Context; concurrent
// embedders must serialize their own access (see Context).
//
// The global-value and macro tables are backed by dolthub/swiss, the same
// library the teacher repository uses for its runtime Map type: both are
// mutable string/value tables that only need Get/Put, never ordered
// iteration.
type Package struct {
	name    string
	symbols map[string]*Symbol
	values  *swiss.Map[string, Value]
	macros  *swiss.Map[string, *Macro]
}

// NewPackage creates an empty, independently-interned package.
func NewPackage(name string) *Package {
	return &Package{
		name:    name,
		symbols: make(map[string]*Symbol),
		values:  swiss.NewMap[string, Value](8),
		macros:  swiss.NewMap[string, *Macro](8),
	}
}

// Name returns the package's name.
func (p *Package) Name() string { return p.name }

func (p *Package) String() string { return fmt.Sprintf("#[package %s]", p.name) }

// Intern returns the unique Symbol for name in this package, creating it on
// first use.
func (p *Package) Intern(name string) *Symbol {
	if s, ok := p.symbols[name]; ok {
		return s
	}
	s := &Symbol{Name: name, Home: p}
	p.symbols[name] = s
	return s
}

// GetValue returns the symbol's current global value, if it is bound.
func (p *Package) GetValue(s *Symbol) (Value, bool) {
	return p.values.Get(s.Name)
}

// SetValue binds the symbol's global value slot.
func (p *Package) SetValue(s *Symbol, v Value) {
	p.values.Put(s.Name, v)
}

// HasMacro reports whether s names a macro in this package.
func (p *Package) HasMacro(s *Symbol) bool {
	_, ok := p.macros.Get(s.Name)
	return ok
}

// GetMacro returns the macro bound to s, if any.
func (p *Package) GetMacro(s *Symbol) (*Macro, bool) {
	return p.macros.Get(s.Name)
}

// SetMacro installs (or replaces) the macro bound to s.
func (p *Package) SetMacro(s *Symbol, m *Macro) {
	p.macros.Put(s.Name, m)
}
