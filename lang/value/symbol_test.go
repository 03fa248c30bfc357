package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mna/lispkit/lang/value"
)

func TestInternIdentity(t *testing.T) {
	pkg := value.NewPackage("test")
	a := pkg.Intern("foo")
	b := pkg.Intern("foo")
	assert.Same(t, a, b)

	other := value.NewPackage("other")
	c := other.Intern("foo")
	assert.NotSame(t, a, c, "same name in different packages must not be the same symbol")
}

func TestPackageGlobals(t *testing.T) {
	pkg := value.NewPackage("test")
	s := pkg.Intern("x")

	_, ok := pkg.GetValue(s)
	assert.False(t, ok)

	pkg.SetValue(s, value.Int(42))
	v, ok := pkg.GetValue(s)
	assert.True(t, ok)
	assert.Equal(t, value.Int(42), v)
}

func TestPackageMacros(t *testing.T) {
	pkg := value.NewPackage("test")
	s := pkg.Intern("unless")
	assert.False(t, pkg.HasMacro(s))

	m := &value.Macro{Name: s, Params: &value.ParamList{}}
	pkg.SetMacro(s, m)
	assert.True(t, pkg.HasMacro(s))

	got, ok := pkg.GetMacro(s)
	assert.True(t, ok)
	assert.Same(t, m, got)
}
