package lispkitcmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/lispkit/lang/compiler"
	"github.com/mna/lispkit/lang/value"
)

// Asm assembles the listing at args[0], verifies it, and prints its
// disassembly to stdout.
func (c *Cmd) Asm(_ context.Context, stdio mainer.Stdio, args []string) error {
	cb, _, err := assembleFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(stdio.Stdout, compiler.Disassemble(cb))
	return nil
}

func assembleFile(path string) (*compiler.CodeBlock, *value.Package, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	pkg := value.NewPackage("user")
	cb, err := compiler.Parse("main", &value.ParamList{}, string(src), pkg)
	if err != nil {
		return nil, nil, fmt.Errorf("assemble %s: %w", path, err)
	}
	return cb, pkg, nil
}
