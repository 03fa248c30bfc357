package compiler

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/lispkit/lang/value"
)

// Disassemble renders a CodeBlock in a human-readable textual form, one
// instruction per line, addresses on the left. It is meant for debugging
// and for the lispkit CLI's asm subcommand, not as the canonical
// serialization of a CodeBlock (CodeBlocks only ever live in the
// in-process registry).
func Disassemble(cb *CodeBlock) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function: %s %s\n", cb.Name, cb.Params)
	fmt.Fprintf(&b, "slots: %d\n", cb.NumSlots)
	fmt.Fprintf(&b, "maxdepth: %d\n", cb.MaxDepth)
	b.WriteString("code:\n")
	for i, insn := range cb.Code {
		fmt.Fprintf(&b, "\t%4d  %-14s", i, insn.Op)
		writeOperand(&b, insn.First)
		if insn.Second != nil {
			b.WriteString(" ")
			writeOperand(&b, insn.Second)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeOperand(b *strings.Builder, x any) {
	switch x := x.(type) {
	case nil:
	case int:
		fmt.Fprintf(b, "%d", x)
	case *value.Symbol:
		fmt.Fprintf(b, "%s:%s", x.Home.Name(), x.Name)
	case Label:
		fmt.Fprintf(b, "L%d", int(x))
	case string:
		fmt.Fprintf(b, "%q", x)
	case value.Value:
		fmt.Fprintf(b, "%s", value.Print(x))
	case *value.ClosureTemplate:
		fmt.Fprintf(b, "<closure %s>", x.Name)
	default:
		fmt.Fprintf(b, "%v", x)
	}
}

// DisassembleLine reports the textual form of a single instruction, laid
// out like one line of Disassemble without the address column.
func DisassembleLine(insn Instruction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s", insn.Op)
	writeOperand(&b, insn.First)
	if insn.Second != nil {
		b.WriteString(" ")
		writeOperand(&b, insn.Second)
	}
	return b.String()
}

// ScanLines is a small tooling helper that iterates a Disassemble dump
// back into its code: lines, skipping header lines; it
// does not reconstruct operands (those only matter for display), so it is
// only useful for counting or grepping instructions in tooling, not for
// reassembling a CodeBlock from text.
func ScanLines(dump string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(dump))
	inCode := false
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "code:" {
			inCode = true
			continue
		}
		if !inCode || trimmed == "" {
			continue
		}
		lines = append(lines, trimmed)
	}
	return lines
}

// parseInt reads one integer operand field of a textual assembly line, for
// Parse's operand parsing.
func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

var textOpcodes = reverseLookupOpcode

// Parse reads a flat textual assembly listing, one instruction per line,
// and assembles it into a CodeBlock against pkg (used to intern
// GLOBAL_GET/GLOBAL_SET symbol operands; PRIM names are kept as plain
// strings). It supports the subset of instructions that make sense to
// hand-write: everything except MAKE_CLOSURE, since a closure template
// names another CodeBlock that only the Lisp compiler itself knows how to
// build and register, and MAKE_LABEL, which is rejected like any other
// opcode the listing format has no syntax for. Blank lines
// and lines starting with # are ignored; a line naming a label ends with a
// colon, e.g. "L1:".
//
// This is the format the lispkit CLI's asm and run subcommands read, used
// to exercise the VM directly in tests and demos without going through
// compiler.Compile.
func Parse(name string, params *value.ParamList, src string, pkg *value.Package) (*CodeBlock, error) {
	p := &textParser{labelIDs: make(map[string]int)}
	var code []Instruction
	sc := bufio.NewScanner(strings.NewReader(src))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			code = append(code, Instruction{Op: LABEL, First: Label(p.labelID(line[:len(line)-1]))})
			continue
		}
		fields := strings.Fields(line)
		op, ok := textOpcodes[fields[0]]
		if !ok {
			return nil, &Error{Msg: fmt.Sprintf("line %d: unknown opcode %q", lineNo, fields[0])}
		}
		insn, err := p.parseOperands(op, fields[1:], pkg)
		if err != nil {
			return nil, &Error{Msg: fmt.Sprintf("line %d", lineNo), Err: err}
		}
		code = append(code, insn)
	}
	return Assemble(name, params, code)
}

// textParser holds the per-call state needed while parsing one listing:
// the mapping from label names to the synthetic Label IDs Assemble
// resolves.
type textParser struct {
	labelIDs map[string]int
	labelSeq int
}

func (p *textParser) labelID(name string) int {
	if id, ok := p.labelIDs[name]; ok {
		return id
	}
	p.labelSeq++
	p.labelIDs[name] = p.labelSeq
	return p.labelSeq
}

func (p *textParser) parseOperands(op Opcode, fields []string, pkg *value.Package) (Instruction, error) {
	switch op {
	case LABEL:
		return Instruction{}, fmt.Errorf("label lines must end with ':', not use the LABEL mnemonic")
	case PUSH_CONST:
		v, err := parseConst(fields)
		return Instruction{Op: op, First: v}, err
	case LOCAL_GET, LOCAL_SET:
		f, s, err := parseTwoInts(fields)
		return Instruction{Op: op, First: f, Second: s}, err
	case GLOBAL_GET, GLOBAL_SET:
		if len(fields) != 1 {
			return Instruction{}, fmt.Errorf("%s wants one symbol operand", op)
		}
		return Instruction{Op: op, First: pkg.Intern(fields[0])}, nil
	case STACK_POP, DUPLICATE, RETURN_VAL:
		return Instruction{Op: op}, nil
	case JMP_IF_TRUE, JMP_IF_FALSE, JMP_TO_LABEL, SAVE_RETURN:
		if len(fields) != 1 {
			return Instruction{}, fmt.Errorf("%s wants one label operand", op)
		}
		return Instruction{Op: op, First: Label(p.labelID(fields[0]))}, nil
	case MAKE_ENV, MAKE_ENVDOT, JMP_CLOSURE:
		n, err := parseInt(fields[0])
		return Instruction{Op: op, First: n}, err
	case PRIM:
		if len(fields) != 2 {
			return Instruction{}, fmt.Errorf("PRIM wants a name and an argument count")
		}
		n, err := parseInt(fields[1])
		return Instruction{Op: op, First: fields[0], Second: n}, err
	default:
		return Instruction{}, fmt.Errorf("opcode %s is not supported in textual assembly", op)
	}
}

func parseTwoInts(fields []string) (int, int, error) {
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("want two integer operands, got %d", len(fields))
	}
	a, err := parseInt(fields[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := parseInt(fields[1])
	return a, b, err
}

func parseConst(fields []string) (value.Value, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("PUSH_CONST wants one operand")
	}
	switch tok := strings.Join(fields, " "); {
	case tok == "nil":
		return value.Nil, nil
	case tok == "true":
		return value.True, nil
	case tok == "false":
		return value.False, nil
	case strings.HasPrefix(tok, `"`):
		s, err := strconv.Unquote(tok)
		return value.String(s), err
	default:
		if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return value.Int(i), nil
		}
		f, err := strconv.ParseFloat(tok, 64)
		return value.Float(f), err
	}
}
