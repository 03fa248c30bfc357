package compiler

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/mna/lispkit/lang/value"
)

// Assemble resolves every Label operand in code to the absolute index of
// the LABEL instruction it names, writing that resolved index into each
// jump's Second operand (First keeps naming the label itself, unresolved,
// for disassembly and debugging), and computes the frame's slot count and
// its maximum operand stack depth. LABEL instructions are not stripped:
// they stay in the stream, each resolved to its own position in Second, so
// that every other instruction's index remains stable and the VM can treat
// LABEL as a plain no-op. This is the second of the compiler's two passes:
// emit walks the form once producing symbolic jumps, Assemble walks the
// result once more to fix them up, mirroring the two-pass
// assemble-then-link structure common to simple bytecode compilers.
func Assemble(name string, params *value.ParamList, code []Instruction) (*CodeBlock, error) {
	positions := make(map[Label]int)
	for i, insn := range code {
		if insn.Op == LABEL {
			positions[insn.First.(Label)] = i
		}
	}

	out := make([]Instruction, len(code))
	copy(out, code)

	var unresolved []Label
	for i, insn := range out {
		switch insn.Op {
		case LABEL, JMP_IF_TRUE, JMP_IF_FALSE, JMP_TO_LABEL, SAVE_RETURN:
			l := insn.First.(Label)
			pos, ok := positions[l]
			if !ok {
				unresolved = append(unresolved, l)
				continue
			}
			out[i].Second = pos
		}
	}
	if len(unresolved) > 0 {
		slices.Sort(unresolved)
		return nil, &Error{Msg: fmt.Sprintf("unresolved label(s): %v", unresolved)}
	}

	depth, maxDepth, err := verifyStack(out)
	if err != nil {
		return nil, err
	}
	_ = depth

	nslots := len(params.Names)
	return &CodeBlock{
		Name:     name,
		Params:   params,
		Code:     out,
		NumSlots: nslots,
		MaxDepth: maxDepth,
	}, nil
}

// verifyStack walks the resolved instruction stream computing the net
// stack effect of every instruction that has a statically-known effect,
// reporting the deepest point reached. Instructions with a
// variableStackEffect (PRIM, JMP_CLOSURE, MAKE_ENV/MAKE_ENVDOT, RETURN_VAL)
// are not checked for underflow here since their effect depends on operand
// values only the VM has at hand; they are trusted to be correct by
// construction of the compiler that emitted them.
func verifyStack(code []Instruction) (depth, maxDepth int, err error) {
	for _, insn := range code {
		se := stackEffect[insn.Op]
		if se == variableStackEffect {
			continue
		}
		depth += int(se)
		if depth < 0 {
			return 0, 0, &Error{Msg: fmt.Sprintf("stack underflow at %s", insn.Op)}
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return depth, maxDepth, nil
}
