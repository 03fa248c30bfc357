package machine

import (
	"context"
	"fmt"

	"github.com/mna/lispkit/lang/compiler"
	"github.com/mna/lispkit/lang/value"
)

// State is the mutable state of one virtual machine run: the closure and
// code currently executing, the program counter, the active environment,
// the shared operand stack (which also carries pushed value.ReturnAddress
// values for the call/return protocol), the number of arguments most
// recently made available to MAKE_ENV/MAKE_ENVDOT, and whether execution
// has finished.
//
// A State is single-threaded and cooperative: nothing here is safe for
// concurrent use, and nothing in the dispatch loop yields control except by
// running to completion or returning an error. The compiler may itself
// spawn a fresh State, sharing the same Registry, Package and
// PrimitiveTable, to run a macro's body during compilation; that nested
// State is otherwise completely independent of the one (if any) driving
// the compile.
type State struct {
	fn    *value.Closure
	code  []compiler.Instruction
	pc    int
	env   *value.Env
	stack []value.Value
	nargs int
	done  bool

	reg   *Registry
	prims *PrimitiveTable

	steps    uint64
	maxSteps uint64
}

// MaxSteps caps how many instructions a single Run executes before it is
// aborted with an error, as a safety net against runaway or buggy
// programs; 0 means unlimited. It mirrors the step-budget idea the teacher
// repository's own thread uses to bound execution of untrusted code.
var MaxSteps uint64

// New creates a State ready to invoke fn with args.
func New(reg *Registry, prims *PrimitiveTable, fn *value.Closure, args []value.Value) (*State, error) {
	cb := reg.Lookup(fn.Code)
	if cb == nil {
		return nil, &Error{Msg: "closure refers to an unregistered code block"}
	}
	stack := make([]value.Value, len(args), len(args)+cb.MaxDepth+4)
	copy(stack, args)
	return &State{
		fn:       fn,
		code:     cb.Code,
		pc:       0,
		env:      fn.Env,
		stack:    stack,
		nargs:    len(args),
		reg:      reg,
		prims:    prims,
		maxSteps: MaxSteps,
	}, nil
}

// Exec builds a compiler.Exec bound to reg and prims, for the compiler to
// call back into the VM when expanding macros. Each call creates and runs
// a fresh, independent State; nothing about one macro expansion's run is
// visible to another's beyond the shared Registry and globals.
func Exec(reg *Registry, prims *PrimitiveTable) compiler.Exec {
	return func(fn *value.Closure, args []value.Value) (value.Value, error) {
		st, err := New(reg, prims, fn, args)
		if err != nil {
			return nil, err
		}
		return st.Run(context.Background())
	}
}

// Run executes until the call stack unwinds past the initial invocation
// (the value stack holds exactly the final result and no
// *value.ReturnAddress remains below it) and returns that value.
func (s *State) Run(ctx context.Context) (value.Value, error) {
	for !s.done {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Msg: "cancelled", Err: err}
		}
		if s.maxSteps > 0 {
			s.steps++
			if s.steps > s.maxSteps {
				return nil, &Error{Msg: "step limit exceeded"}
			}
		}
		if err := s.step(); err != nil {
			return nil, err
		}
	}
	return s.pop(), nil
}

func (s *State) push(v value.Value) { s.stack = append(s.stack, v) }

func (s *State) pop() value.Value {
	n := len(s.stack) - 1
	v := s.stack[n]
	s.stack = s.stack[:n]
	return v
}

func (s *State) top() value.Value { return s.stack[len(s.stack)-1] }

func (s *State) step() error {
	insn := s.code[s.pc]
	s.pc++

	switch insn.Op {
	case compiler.PUSH_CONST:
		s.push(insn.First.(value.Value))

	case compiler.LOCAL_GET:
		frame, slot := insn.First.(int), insn.Second.(int)
		s.push(s.env.Get(frame, slot))

	case compiler.LOCAL_SET:
		frame, slot := insn.First.(int), insn.Second.(int)
		s.env.Set(frame, slot, s.top())

	case compiler.GLOBAL_GET:
		sym := insn.First.(*value.Symbol)
		v, ok := sym.Home.GetValue(sym)
		if !ok {
			return &Error{Op: "GLOBAL_GET", Msg: "unbound variable " + sym.Name}
		}
		s.push(v)

	case compiler.GLOBAL_SET:
		sym := insn.First.(*value.Symbol)
		sym.Home.SetValue(sym, s.top())

	case compiler.STACK_POP:
		s.pop()

	case compiler.JMP_IF_TRUE:
		if value.Truth(s.pop()) {
			s.pc = insn.Second.(int)
		}

	case compiler.JMP_IF_FALSE:
		if !value.Truth(s.pop()) {
			s.pc = insn.Second.(int)
		}

	case compiler.JMP_TO_LABEL:
		s.pc = insn.Second.(int)

	case compiler.MAKE_ENV:
		nslots := insn.First.(int)
		if s.nargs != nslots {
			return &Error{Op: "MAKE_ENV", Msg: fmt.Sprintf("want %d arguments, got %d", nslots, s.nargs)}
		}
		s.makeFrame(nslots, nslots)

	case compiler.MAKE_ENVDOT:
		nslots := insn.First.(int)
		required := nslots - 1
		if s.nargs < required {
			return &Error{Op: "MAKE_ENVDOT", Msg: fmt.Sprintf("want at least %d arguments, got %d", required, s.nargs)}
		}
		s.makeFrame(nslots, required)

	case compiler.DUPLICATE:
		s.push(s.top())

	case compiler.JMP_CLOSURE:
		nargs := insn.First.(int)
		closure, ok := s.pop().(*value.Closure)
		if !ok {
			return &Error{Op: "JMP_CLOSURE", Msg: "attempt to call a non-closure value"}
		}
		cb := s.reg.Lookup(closure.Code)
		if cb == nil {
			return &Error{Op: "JMP_CLOSURE", Msg: "closure refers to an unregistered code block"}
		}
		s.fn = closure
		s.code = cb.Code
		s.env = closure.Env
		s.pc = 0
		s.nargs = nargs

	case compiler.SAVE_RETURN:
		s.push(&value.ReturnAddress{Fn: s.fn, PC: insn.Second.(int), Env: s.env})

	case compiler.RETURN_VAL:
		result := s.pop()
		if len(s.stack) == 0 {
			s.push(result)
			s.done = true
			return nil
		}
		ret, ok := s.top().(*value.ReturnAddress)
		if !ok {
			return &Error{Op: "RETURN_VAL", Msg: "stack unbalanced at return: expected a return address or an empty stack"}
		}
		s.pop()
		s.fn = ret.Fn
		if ret.Fn != nil {
			cb := s.reg.Lookup(ret.Fn.Code)
			s.code = cb.Code
		}
		s.env = ret.Env
		s.pc = ret.PC
		s.push(result)

	case compiler.MAKE_CLOSURE:
		tmpl := insn.First.(*value.ClosureTemplate)
		s.push(&value.Closure{Code: tmpl.Code, Env: s.env, Params: tmpl.Params, Name: tmpl.Name})

	case compiler.MAKE_LABEL:
		// a no-op marker, like LABEL

	case compiler.PRIM:
		name := insn.First.(string)
		nargs := insn.Second.(int)
		args := append([]value.Value(nil), s.stack[len(s.stack)-nargs:]...)
		s.stack = s.stack[:len(s.stack)-nargs]
		result, err := s.prims.Call(name, args)
		if err != nil {
			return err
		}
		s.push(result)

	case compiler.LABEL:
		// a no-op marker left in place by Assemble for position stability

	default:
		return &Error{Msg: fmt.Sprintf("unimplemented opcode %s", insn.Op)}
	}
	return nil
}

// makeFrame pops s.nargs arguments off the stack and builds a new Env of
// nslots slots linked to the current env, filling the first positional
// slots from the arguments and, if positional < nslots, collecting the
// remaining arguments into a list in the final (rest) slot.
func (s *State) makeFrame(nslots, positional int) {
	args := s.stack[len(s.stack)-s.nargs:]
	s.stack = s.stack[:len(s.stack)-s.nargs]

	env := value.NewEnv(s.env, nslots)
	n := positional
	if n > len(args) {
		n = len(args)
	}
	copy(env.Slots, args[:n])
	if nslots > positional {
		env.Slots[positional] = value.SliceToList(args[positional:])
	}
	s.env = env
}
