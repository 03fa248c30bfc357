package lispkitcmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/mna/lispkit/lang/machine"
	"github.com/mna/lispkit/lang/value"
)

// Run assembles the listing at args[0] and executes it as a zero-argument
// top-level call, printing the resulting value to stdout.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cb, _, err := assembleFile(args[0])
	if err != nil {
		return err
	}
	reg := machine.NewRegistry()
	handle := reg.Register(cb)
	fn := &value.Closure{Code: handle, Params: &value.ParamList{}}
	st, err := machine.New(reg, builtinPrimitives(), fn, nil)
	if err != nil {
		return err
	}
	result, err := st.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdio.Stdout, value.Print(result))
	return nil
}
