package lispkitcmd

import (
	"fmt"

	"github.com/mna/lispkit/lang/machine"
	"github.com/mna/lispkit/lang/value"
)

// builtinPrimitives is the small, fixed set of external primitives the
// lispkit CLI registers for its run subcommand, standing in for
// whatever larger primitive registry a real embedder would supply (the
// language core itself defines no primitives; PRIM is purely a hook for
// one).
func builtinPrimitives() *machine.PrimitiveTable {
	return machine.NewPrimitiveTable(
		arith("+", func(a, b int64) int64 { return a + b }),
		arith("-", func(a, b int64) int64 { return a - b }),
		arith("*", func(a, b int64) int64 { return a * b }),
		&machine.Primitive{Name: "/", Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
			a, b, err := twoInts(args)
			if err != nil {
				return nil, err
			}
			if b == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return value.Int(a / b), nil
		}},
		&machine.Primitive{Name: "<", Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
			a, b, err := twoInts(args)
			if err != nil {
				return nil, err
			}
			return value.Bool(a < b), nil
		}},
		&machine.Primitive{Name: "=", Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
			return value.Bool(value.Equal(args[0], args[1])), nil
		}},
	)
}

func arith(name string, f func(a, b int64) int64) *machine.Primitive {
	return &machine.Primitive{Name: name, Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
		a, b, err := twoInts(args)
		if err != nil {
			return nil, err
		}
		return value.Int(f(a, b)), nil
	}}
}

func twoInts(args []value.Value) (int64, int64, error) {
	a, ok := args[0].(value.Int)
	if !ok {
		return 0, 0, fmt.Errorf("argument 1: want int, got %s", args[0].Type())
	}
	b, ok := args[1].(value.Int)
	if !ok {
		return 0, 0, fmt.Errorf("argument 2: want int, got %s", args[1].Type())
	}
	return int64(a), int64(b), nil
}
