package context_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lkcontext "github.com/mna/lispkit/lang/context"
	"github.com/mna/lispkit/lang/machine"
	"github.com/mna/lispkit/lang/value"
)

func arithPrimitives() *machine.PrimitiveTable {
	ints := func(args []value.Value) (int64, int64, error) {
		return int64(args[0].(value.Int)), int64(args[1].(value.Int)), nil
	}
	return machine.NewPrimitiveTable(
		&machine.Primitive{Name: "+", Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
			a, b, err := ints(args)
			return value.Int(a + b), err
		}},
		&machine.Primitive{Name: "-", Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
			a, b, err := ints(args)
			return value.Int(a - b), err
		}},
		&machine.Primitive{Name: "*", Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
			a, b, err := ints(args)
			return value.Int(a * b), err
		}},
		&machine.Primitive{Name: "<", Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
			a, b, err := ints(args)
			return value.Bool(a < b), err
		}},
	)
}

func newCtx() *lkcontext.Context {
	return lkcontext.New("test", lkcontext.WithPrimitives(arithPrimitives()))
}

// list builds a proper list form from xs, where each x is either a
// value.Value or a *value.Cons already.
func list(xs ...value.Value) value.Value { return value.SliceToList(xs) }

func sym(c *lkcontext.Context, name string) *value.Symbol { return c.Pkg.Intern(name) }

func TestExecuteConstants(t *testing.T) {
	c := newCtx()
	v, err := c.Execute(context.Background(), value.Int(42))
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), v)
}

func TestExecutePrimitiveCall(t *testing.T) {
	c := newCtx()
	form := list(sym(c, "+"), value.Int(1), value.Int(2))
	v, err := c.Execute(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, value.Int(3), v)
}

func TestExecuteIf(t *testing.T) {
	c := newCtx()

	then := list(sym(c, "if"), value.True, value.Int(1), value.Int(2))
	v, err := c.Execute(context.Background(), then)
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), v)

	els := list(sym(c, "if"), value.False, value.Int(1), value.Int(2))
	v, err = c.Execute(context.Background(), els)
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), v)
}

// (if* 0 99) evaluates to 0: Int(0) is truthy under the language's boolean
// coercion law (only false and nil are falsy), so the predicate's own
// value is returned and 99 is never evaluated.
func TestExecuteIfStarTruthyZero(t *testing.T) {
	c := newCtx()
	form := list(sym(c, "if*"), value.Int(0), value.Int(99))
	v, err := c.Execute(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, value.Int(0), v)
}

func TestExecuteIfStarFalse(t *testing.T) {
	c := newCtx()
	form := list(sym(c, "if*"), value.False, value.Int(99))
	v, err := c.Execute(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, value.Int(99), v)
}

func TestExecuteLambdaCall(t *testing.T) {
	c := newCtx()
	x, y := sym(c, "x"), sym(c, "y")
	lambda := list(sym(c, "lambda"), list(x, y), list(sym(c, "+"), x, y))
	call := value.NewCons(lambda, list(value.Int(3), value.Int(4)))
	v, err := c.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), v)
}

// ((lambda (a . rest) rest) 1 2 3) => (2 3)
func TestExecuteDottedLambda(t *testing.T) {
	c := newCtx()
	a, rest := sym(c, "a"), sym(c, "rest")
	params := value.NewCons(a, rest)
	lambda := list(sym(c, "lambda"), params, rest)
	call := value.NewCons(lambda, list(value.Int(1), value.Int(2), value.Int(3)))
	v, err := c.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, "(2 3)", value.Print(v))
}

// (begin (set! x 10) x) => 10, binding the global x.
func TestExecuteSetAndGlobal(t *testing.T) {
	c := newCtx()
	x := sym(c, "x")
	form := list(sym(c, "begin"), list(sym(c, "set!"), x, value.Int(10)), x)
	v, err := c.Execute(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, value.Int(10), v)
}

// Recursive factorial defined via a self-referencing global binding:
//
//	(begin
//	  (set! fact (lambda (n) (if (< n 2) 1 (* n (fact (- n 1))))))
//	  (fact 5))
func TestExecuteRecursiveFactorial(t *testing.T) {
	c := newCtx()
	fact, n := sym(c, "fact"), sym(c, "n")

	body := list(sym(c, "if"),
		list(sym(c, "<"), n, value.Int(2)),
		value.Int(1),
		list(sym(c, "*"), n, list(fact, list(sym(c, "-"), n, value.Int(1)))),
	)
	lambda := list(sym(c, "lambda"), list(n), body)
	def := list(sym(c, "set!"), fact, lambda)
	call := list(fact, value.Int(5))
	form := list(sym(c, "begin"), def, call)

	v, err := c.Execute(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, value.Int(120), v)
}

// (defmacro unless (c then) (if c nil then)) then
// (unless false 42) => 42, (unless true 42) => nil
func TestDefmacroUnless(t *testing.T) {
	c := newCtx()
	cc, then := sym(c, "c"), sym(c, "then")
	macroBody := list(sym(c, "if"), cc, value.Nil, then)
	defmacro := list(sym(c, "defmacro"), sym(c, "unless"), list(cc, then), macroBody)

	_, err := c.Execute(context.Background(), defmacro)
	require.NoError(t, err)

	v, err := c.Execute(context.Background(), list(sym(c, "unless"), value.False, value.Int(42)))
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), v)

	v, err = c.Execute(context.Background(), list(sym(c, "unless"), value.True, value.Int(42)))
	require.NoError(t, err)
	assert.True(t, value.IsNil(v))
}

// MacroExpandFull one-step-expands the top form, then recursively expands
// any child that is itself a cons with a symbol head. identity-form is a
// macro whose body is simply its parameter: since parameters are bound to
// the caller's unevaluated argument forms, expanding a call to it returns
// that argument form completely unevaluated, whatever it is.
func TestMacroExpandFull(t *testing.T) {
	c := newCtx()
	x := sym(c, "x")
	defmacro := list(sym(c, "defmacro"), sym(c, "identity-form"), list(x), x)
	_, err := c.Execute(context.Background(), defmacro)
	require.NoError(t, err)

	inner := list(sym(c, "identity-form"), value.Int(2))
	call := list(sym(c, "identity-form"), list(sym(c, "+"), value.Int(1), inner))

	expanded, err := c.MacroExpandFull(call)
	require.NoError(t, err)
	assert.Equal(t, "(+ 1 2)", value.Print(expanded))
}
