package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/lispkit/lang/compiler"
	"github.com/mna/lispkit/lang/value"
)

func TestAssembleResolvesLabels(t *testing.T) {
	params := &value.ParamList{}
	l := compiler.Label(1)
	code := []compiler.Instruction{
		{Op: compiler.PUSH_CONST, First: value.Int(1)},
		{Op: compiler.JMP_TO_LABEL, First: l},
		{Op: compiler.PUSH_CONST, First: value.Int(2)},
		{Op: compiler.LABEL, First: l},
		{Op: compiler.RETURN_VAL},
	}
	cb, err := compiler.Assemble("test", params, code)
	require.NoError(t, err)
	require.Len(t, cb.Code, 5, "LABEL instructions survive assembly as no-ops")
	assert.Equal(t, 3, cb.Code[1].Second, "the jump must resolve to the absolute index of its label")
}

func TestAssembleUnresolvedLabelError(t *testing.T) {
	params := &value.ParamList{}
	code := []compiler.Instruction{
		{Op: compiler.JMP_TO_LABEL, First: compiler.Label(7)},
		{Op: compiler.RETURN_VAL},
	}
	_, err := compiler.Assemble("test", params, code)
	assert.Error(t, err)
}

func TestAssembleStackUnderflowError(t *testing.T) {
	params := &value.ParamList{}
	code := []compiler.Instruction{
		{Op: compiler.STACK_POP},
	}
	_, err := compiler.Assemble("test", params, code)
	assert.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	pkg := value.NewPackage("test")
	src := "PUSH_CONST 1\nPUSH_CONST 2\nPRIM + 2\nRETURN_VAL\n"
	cb, err := compiler.Parse("add", &value.ParamList{}, src, pkg)
	require.NoError(t, err)
	assert.Equal(t, 2, cb.MaxDepth)
	assert.Len(t, cb.Code, 4)
	assert.Equal(t, compiler.PRIM, cb.Code[2].Op)
	assert.Equal(t, "+", cb.Code[2].First)
	assert.Equal(t, 2, cb.Code[2].Second)
}

func TestParseGlobalRefersToInternedSymbol(t *testing.T) {
	pkg := value.NewPackage("test")
	src := "GLOBAL_GET x\nRETURN_VAL\n"
	cb, err := compiler.Parse("get-x", &value.ParamList{}, src, pkg)
	require.NoError(t, err)
	sym, ok := cb.Code[0].First.(*value.Symbol)
	require.True(t, ok)
	assert.Same(t, pkg.Intern("x"), sym)
}
