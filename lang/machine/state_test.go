package machine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/lispkit/lang/compiler"
	"github.com/mna/lispkit/lang/machine"
	"github.com/mna/lispkit/lang/value"
)

func arithTable() *machine.PrimitiveTable {
	return machine.NewPrimitiveTable(
		&machine.Primitive{Name: "+", Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
			return value.Int(args[0].(value.Int) + args[1].(value.Int)), nil
		}},
	)
}

func runBlock(t *testing.T, reg *machine.Registry, prims *machine.PrimitiveTable, cb *compiler.CodeBlock, args []value.Value) value.Value {
	t.Helper()
	handle := reg.Register(cb)
	fn := &value.Closure{Code: handle, Params: cb.Params}
	st, err := machine.New(reg, prims, fn, args)
	require.NoError(t, err)
	v, err := st.Run(context.Background())
	require.NoError(t, err)
	return v
}

// PUSH_CONST, PRIM and RETURN_VAL directly: (+ 2 3) => 5.
func TestStatePrimArithmetic(t *testing.T) {
	code := []compiler.Instruction{
		{Op: compiler.PUSH_CONST, First: value.Int(2)},
		{Op: compiler.PUSH_CONST, First: value.Int(3)},
		{Op: compiler.PRIM, First: "+", Second: 2},
		{Op: compiler.RETURN_VAL},
	}
	cb, err := compiler.Assemble("add", &value.ParamList{}, code)
	require.NoError(t, err)

	reg := machine.NewRegistry()
	v := runBlock(t, reg, arithTable(), cb, nil)
	assert.Equal(t, value.Int(5), v)
}

// MAKE_ENV binds positional arguments into the new frame's slots.
func TestStateMakeEnvBindsArgs(t *testing.T) {
	code := []compiler.Instruction{
		{Op: compiler.MAKE_ENV, First: 2},
		{Op: compiler.LOCAL_GET, First: 0, Second: 1},
		{Op: compiler.LOCAL_GET, First: 0, Second: 0},
		{Op: compiler.PRIM, First: "+", Second: 2},
		{Op: compiler.RETURN_VAL},
	}
	cb, err := compiler.Assemble("add2", &value.ParamList{Names: []*value.Symbol{nil, nil}}, code)
	require.NoError(t, err)

	reg := machine.NewRegistry()
	v := runBlock(t, reg, arithTable(), cb, []value.Value{value.Int(10), value.Int(7)})
	assert.Equal(t, value.Int(17), v)
}

// MAKE_ENVDOT collects the surplus arguments into the final slot as a list.
func TestStateMakeEnvDotCollectsRest(t *testing.T) {
	code := []compiler.Instruction{
		{Op: compiler.MAKE_ENVDOT, First: 2},
		{Op: compiler.LOCAL_GET, First: 0, Second: 1},
		{Op: compiler.RETURN_VAL},
	}
	cb, err := compiler.Assemble("rest", &value.ParamList{Names: []*value.Symbol{nil, nil}, Dotted: true}, code)
	require.NoError(t, err)

	reg := machine.NewRegistry()
	v := runBlock(t, reg, arithTable(), cb, []value.Value{value.Int(1), value.Int(2), value.Int(3)})
	assert.Equal(t, "(2 3)", value.Print(v))
}

// Exercises the full SAVE_RETURN/MAKE_CLOSURE/JMP_CLOSURE/RETURN_VAL
// protocol by hand: a caller block that calls a one-argument "inc" closure
// from a non-tail position, then adds 1 more to the result.
//
//	caller: SAVE_RETURN resume
//	        PUSH_CONST 41
//	        MAKE_CLOSURE <inc>
//	        JMP_CLOSURE 1
//	 resume:
//	        PUSH_CONST 1
//	        PRIM + 2
//	        RETURN_VAL
//
//	inc:    MAKE_ENV 1
//	        LOCAL_GET 0 0
//	        PUSH_CONST 1
//	        PRIM + 2
//	        RETURN_VAL
func TestStateClosureCallAndReturn(t *testing.T) {
	incCode := []compiler.Instruction{
		{Op: compiler.MAKE_ENV, First: 1},
		{Op: compiler.LOCAL_GET, First: 0, Second: 0},
		{Op: compiler.PUSH_CONST, First: value.Int(1)},
		{Op: compiler.PRIM, First: "+", Second: 2},
		{Op: compiler.RETURN_VAL},
	}
	incParams := &value.ParamList{Names: []*value.Symbol{nil}}
	incCB, err := compiler.Assemble("inc", incParams, incCode)
	require.NoError(t, err)

	reg := machine.NewRegistry()
	incHandle := reg.Register(incCB)
	tmpl := &value.ClosureTemplate{Code: incHandle, Params: incParams, Name: "inc"}

	resume := compiler.Label(1)
	callerCode := []compiler.Instruction{
		{Op: compiler.SAVE_RETURN, First: resume},
		{Op: compiler.PUSH_CONST, First: value.Int(41)},
		{Op: compiler.MAKE_CLOSURE, First: tmpl},
		{Op: compiler.JMP_CLOSURE, First: 1},
		{Op: compiler.LABEL, First: resume},
		{Op: compiler.PUSH_CONST, First: value.Int(1)},
		{Op: compiler.PRIM, First: "+", Second: 2},
		{Op: compiler.RETURN_VAL},
	}
	callerCB, err := compiler.Assemble("caller", &value.ParamList{}, callerCode)
	require.NoError(t, err)

	v := runBlock(t, reg, arithTable(), callerCB, nil)
	assert.Equal(t, value.Int(43), v, "inc(41) + 1 == 43")
}

func TestStateUnboundGlobalError(t *testing.T) {
	pkg := value.NewPackage("test")
	sym := pkg.Intern("undefined-thing")
	code := []compiler.Instruction{
		{Op: compiler.GLOBAL_GET, First: sym},
		{Op: compiler.RETURN_VAL},
	}
	cb, err := compiler.Assemble("ref", &value.ParamList{}, code)
	require.NoError(t, err)

	reg := machine.NewRegistry()
	handle := reg.Register(cb)
	fn := &value.Closure{Code: handle, Params: cb.Params}
	st, err := machine.New(reg, arithTable(), fn, nil)
	require.NoError(t, err)
	_, err = st.Run(context.Background())
	assert.Error(t, err)
}

func TestStateCallingNonClosureErrors(t *testing.T) {
	code := []compiler.Instruction{
		{Op: compiler.PUSH_CONST, First: value.Int(1)},
		{Op: compiler.JMP_CLOSURE, First: 0},
	}
	cb, err := compiler.Assemble("bad-call", &value.ParamList{}, code)
	require.NoError(t, err)

	reg := machine.NewRegistry()
	handle := reg.Register(cb)
	fn := &value.Closure{Code: handle, Params: cb.Params}
	st, err := machine.New(reg, arithTable(), fn, nil)
	require.NoError(t, err)
	_, err = st.Run(context.Background())
	assert.Error(t, err)
}

func TestStateStepLimitExceeded(t *testing.T) {
	loop := compiler.Label(1)
	code := []compiler.Instruction{
		{Op: compiler.LABEL, First: loop},
		{Op: compiler.JMP_TO_LABEL, First: loop},
	}
	cb, err := compiler.Assemble("spin", &value.ParamList{}, code)
	require.NoError(t, err)

	reg := machine.NewRegistry()
	handle := reg.Register(cb)
	fn := &value.Closure{Code: handle, Params: cb.Params}

	old := machine.MaxSteps
	machine.MaxSteps = 10
	defer func() { machine.MaxSteps = old }()

	st, err := machine.New(reg, arithTable(), fn, nil)
	require.NoError(t, err)
	_, err = st.Run(context.Background())
	assert.Error(t, err)
}
