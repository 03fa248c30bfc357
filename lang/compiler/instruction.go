package compiler

import "github.com/mna/lispkit/lang/value"

// Label names a position in a CodeBlock that has not yet been assigned an
// absolute index. The compiler emits jumps against labels; Assemble resolves
// every label to the index of the LABEL instruction it names, writing that
// index into the referring instruction's Second operand. First keeps
// carrying the unresolved Label itself, so disassembly can still print the
// label a jump names.
type Label int

// Instruction is one bytecode instruction. Opcode-specific comments on the
// Opcode constants describe what First and Second hold for each opcode.
type Instruction struct {
	Op     Opcode
	First  any
	Second any
}

// CodeBlock is one assembled, runnable unit of bytecode: either a top-level
// form or a lambda/macro body. CodeBlocks are immutable once returned by
// Assemble and are registered under a value.CodeHandle in the machine
// package's registry; value.Closure never points to a CodeBlock directly.
type CodeBlock struct {
	Name      string
	Params    *value.ParamList
	Code      []Instruction
	NumSlots  int // number of Env slots a frame for this code needs
	MaxDepth  int // maximum operand stack depth reached
}
