// Package compiler turns an s-expression built from value.Cons/value.Symbol
// into an assembled CodeBlock that the machine package can run. The
// compiler never imports machine directly: it reaches the VM only through
// the Exec and Register callbacks installed on a Compiler, the same
// injected-dependency shape the teacher repository uses to let one package
// call into another without creating an import cycle between them.
package compiler

import (
	"fmt"

	"github.com/mna/lispkit/lang/value"
)

// Exec runs a closure to completion, used by the compiler only to expand
// macros at compile time. It is supplied by whatever owns the VM (the
// context package), never implemented by compiler itself.
type Exec func(fn *value.Closure, args []value.Value) (value.Value, error)

// Primitives reports whether name is a known external primitive and, if so,
// its expected argument count. A negative count means variadic (any count
// is accepted).
type Primitives interface {
	Lookup(name string) (arity int, ok bool)
}

// Register stores an assembled CodeBlock and returns the handle it is known
// by afterwards; it is implemented by the machine package's Registry.
type Register func(*CodeBlock) value.CodeHandle

// Compiler compiles s-expressions into CodeBlocks against a home package
// (for symbol interning and global/macro lookups) and a VM hook used only
// for macro expansion.
type Compiler struct {
	Pkg        *value.Package
	Exec       Exec
	Register   Register
	Primitives Primitives

	labelSeq int
}

// New creates a Compiler. prims may be nil if no external primitives are
// registered.
func New(pkg *value.Package, exec Exec, register Register, prims Primitives) *Compiler {
	return &Compiler{Pkg: pkg, Exec: exec, Register: register, Primitives: prims}
}

// frameEnv tracks the lexical compile-time environment: a chain of frames,
// each an ordered list of parameter names, used to resolve a symbol
// reference to a (frame, slot) position or fall through to a global access.
type frameEnv struct {
	names []*value.Symbol
	outer *frameEnv
}

func (e *frameEnv) lookup(s *value.Symbol) (frame, slot int, ok bool) {
	for f := 0; e != nil; e, f = e.outer, f+1 {
		for i, n := range e.names {
			if n == s {
				return f, i, true
			}
		}
	}
	return 0, 0, false
}

// emitter accumulates instructions for one CodeBlock under construction.
type emitter struct {
	c      *Compiler
	name   string
	params *value.ParamList
	code   []Instruction
}

func (em *emitter) emit(op Opcode, first, second any) {
	em.code = append(em.code, Instruction{Op: op, First: first, Second: second})
}

func (em *emitter) newLabel() Label {
	em.c.labelSeq++
	return Label(em.c.labelSeq)
}

func (em *emitter) placeLabel(l Label) { em.emit(LABEL, l, nil) }

// Compile compiles a single top-level form and assembles it into a
// registered CodeBlock, returning the handle to it. The top level is
// compiled with its value wanted (val=true) but outside tail position
// (more=false), so calls in it push their own return address; Compile then
// appends the RETURN_VAL that ends the block rather than letting execution
// fall off the end of the instruction stream.
func (c *Compiler) Compile(x value.Value) (value.CodeHandle, error) {
	c.labelSeq = 0
	em := &emitter{c: c, name: "toplevel", params: &value.ParamList{}}
	em.emit(MAKE_ENV, 0, nil)
	if err := c.compile(em, x, nil, true, false); err != nil {
		return 0, err
	}
	em.emit(RETURN_VAL, nil, nil)
	cb, err := Assemble(em.name, em.params, em.code)
	if err != nil {
		return 0, err
	}
	return c.Register(cb), nil
}

// compile emits code for x. val indicates whether the caller wants x's
// value left on the stack (false means the value, if any, must be
// discarded with STACK_POP once it is no longer needed for control flow).
// more indicates whether x is in tail position: when true and val is true,
// a bare value ends with RETURN_VAL instead of simply sitting on the
// stack, since execution is expected to unwind to the caller.
//
// The val/more truth table:
//
//	val=false, more=false: evaluate for effect only, discard result
//	val=false, more=true:  evaluate for effect only, then return to caller
//	val=true,  more=false: leave result on stack for the enclosing form
//	val=true,  more=true:  leave result on stack, then return to caller
func (c *Compiler) compile(em *emitter, x value.Value, env *frameEnv, val, more bool) error {
	switch x := x.(type) {
	case value.NilType, value.Bool, value.Int, value.Float, value.String:
		return c.compileConst(em, x, val, more)
	case *value.Symbol:
		return c.compileVarRef(em, x, env, val, more)
	case *value.Cons:
		return c.compileForm(em, x, env, val, more)
	default:
		return &Error{Msg: fmt.Sprintf("cannot compile value of type %s", x.Type())}
	}
}

func (c *Compiler) compileConst(em *emitter, x value.Value, val, more bool) error {
	if !val {
		if more {
			em.emit(PUSH_CONST, x, nil)
			em.emit(RETURN_VAL, nil, nil)
		}
		return nil
	}
	em.emit(PUSH_CONST, x, nil)
	if more {
		em.emit(RETURN_VAL, nil, nil)
	}
	return nil
}

func (c *Compiler) compileVarRef(em *emitter, s *value.Symbol, env *frameEnv, val, more bool) error {
	if !val && !more {
		return nil
	}
	if frame, slot, ok := env.lookup(s); ok {
		em.emit(LOCAL_GET, frame, slot)
	} else {
		em.emit(GLOBAL_GET, s, nil)
	}
	if !val {
		em.emit(STACK_POP, nil, nil)
	}
	if more {
		em.emit(RETURN_VAL, nil, nil)
	}
	return nil
}

func (c *Compiler) compileForm(em *emitter, form *value.Cons, env *frameEnv, val, more bool) error {
	head := form.First
	if s, ok := head.(*value.Symbol); ok {
		if m, ok := c.Pkg.GetMacro(s); ok {
			expanded, err := c.macroExpand1(m, form)
			if err != nil {
				return err
			}
			return c.compile(em, expanded, env, val, more)
		}
		switch s.Name {
		case "quote":
			return c.compileQuote(em, form, val, more)
		case "begin":
			return c.compileBegin(em, form, env, val, more)
		case "set!":
			return c.compileSet(em, form, env, val, more)
		case "if":
			return c.compileIf(em, form, env, val, more)
		case "if*":
			return c.compileIfStar(em, form, env, val, more)
		case "lambda":
			return c.compileLambda(em, form, env, val, more, "")
		case "defmacro":
			return c.compileDefmacro(em, form, val, more)
		}
	}
	return c.compileCall(em, form, env, val, more)
}

func (c *Compiler) compileQuote(em *emitter, form *value.Cons, val, more bool) error {
	return c.compileConst(em, value.Second(form), val, more)
}

func (c *Compiler) compileBegin(em *emitter, form *value.Cons, env *frameEnv, val, more bool) error {
	body := value.ListToSlice(value.Rest(form))
	if len(body) == 0 {
		return c.compileConst(em, value.Nil, val, more)
	}
	for i, x := range body {
		last := i == len(body)-1
		if last {
			if err := c.compile(em, x, env, val, more); err != nil {
				return err
			}
		} else {
			if err := c.compile(em, x, env, false, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// compileSet compiles (set! s v). LOCAL_SET/GLOBAL_SET peek the value to
// store rather than popping it, so the assigned value is already sitting on
// the stack afterward; a STACK_POP is only needed when that value is not
// wanted.
func (c *Compiler) compileSet(em *emitter, form *value.Cons, env *frameEnv, val, more bool) error {
	s, ok := value.Second(form).(*value.Symbol)
	if !ok {
		return &Error{Msg: "set!: first argument must be a symbol"}
	}
	if err := c.compile(em, value.Third(form), env, true, false); err != nil {
		return err
	}
	if frame, slot, ok := env.lookup(s); ok {
		em.emit(LOCAL_SET, frame, slot)
	} else {
		em.emit(GLOBAL_SET, s, nil)
	}
	if !val {
		em.emit(STACK_POP, nil, nil)
	}
	if more {
		if !val {
			em.emit(PUSH_CONST, value.Nil, nil)
		}
		em.emit(RETURN_VAL, nil, nil)
	}
	return nil
}

// isNotCall reports whether x is a call of the form (not q), returning q.
// The check string-matches the head symbol's name rather than resolving it
// against env, so a locally shadowed "not" still triggers the rewrite; this
// is the same cheap, conservative shortcut the original took, preserved
// here rather than "fixed".
func isNotCall(x value.Value) (value.Value, bool) {
	cons, ok := x.(*value.Cons)
	if !ok {
		return nil, false
	}
	s, ok := cons.First.(*value.Symbol)
	if !ok || s.Name != "not" || value.Length(x) != 2 {
		return nil, false
	}
	return value.Second(x), true
}

// isSelfEvaluatingConst reports whether x is one of the atom types that
// compile to a bare PUSH_CONST with no further evaluation: a boolean,
// number or string literal. Nil is deliberately excluded, so an if whose
// predicate is literally nil goes through the general branch code.
func isSelfEvaluatingConst(x value.Value) bool {
	switch x.(type) {
	case value.Bool, value.Int, value.Float, value.String:
		return true
	}
	return false
}

// instructionsEqual reports whether two compiled instruction sequences are
// identical opcode-for-opcode and operand-for-operand, used by compileIf's
// then-code/else-code peephole.
func instructionsEqual(a, b []Instruction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Op != b[i].Op || !operandEqual(a[i].First, b[i].First) || !operandEqual(a[i].Second, b[i].Second) {
			return false
		}
	}
	return true
}

// operandEqual compares one instruction operand against another: value.Value
// operands (PUSH_CONST's constant, GLOBAL_GET/_SET's symbol, ...) compare by
// value.Equal; everything else (ints, Labels, PRIM's name) by plain equality.
func operandEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if av, ok := a.(value.Value); ok {
		bv, ok := b.(value.Value)
		return ok && value.Equal(av, bv)
	}
	return a == b
}

// compileToBuffer compiles x in isolation and returns its instructions
// without touching em or any outer label placement, so the caller can
// inspect the result before deciding whether to keep it. It still shares
// c's label counter, so any labels it allocates stay unique if its code is
// later spliced into the real stream.
func (c *Compiler) compileToBuffer(x value.Value, env *frameEnv, val, more bool) ([]Instruction, error) {
	buf := &emitter{c: c, params: &value.ParamList{}}
	if err := c.compile(buf, x, env, val, more); err != nil {
		return nil, err
	}
	return buf.code, nil
}

// compileIf compiles (if pred then else?), applying the algebraic peepholes
// in order before falling back to the general branch-and-join shape:
//
//  1. pred is literal false: compile else directly, then is never reached.
//  2. pred is any other self-evaluating constant: compile then directly.
//  3. pred is (not q): rewrite to (if q else then), i.e. swap the branches
//     and test q instead.
//  4. then's compiled code is identical to else's: pred still has to run
//     for effect, but only one copy of the (shared) branch code is needed.
//
// The degenerate single-jump shape, used when one branch compiles to no
// code at all, is only stack-balanced when the result is discarded
// (val=false): in that case both the predicate's jump target and its
// fallthrough path leave nothing on the stack, so a single conditional
// jump over the other branch suffices. When val=true the same trick
// would leave an unbalanced stack on one of the two paths (the branch that
// was jumped over contributes no value), so that case always compiles both
// branches explicitly with a shared join label.
func (c *Compiler) compileIf(em *emitter, form *value.Cons, env *frameEnv, val, more bool) error {
	pred := value.Second(form)
	then := value.Third(form)
	els := value.Fourth(form)

	for {
		q, ok := isNotCall(pred)
		if !ok {
			break
		}
		pred, then, els = q, els, then
	}

	if b, ok := pred.(value.Bool); ok && !bool(b) {
		return c.compile(em, els, env, val, more)
	}
	if isSelfEvaluatingConst(pred) {
		return c.compile(em, then, env, val, more)
	}

	innerMore := val && more
	thenCode, err := c.compileToBuffer(then, env, val, innerMore)
	if err != nil {
		return err
	}
	elseCode, err := c.compileToBuffer(els, env, val, innerMore)
	if err != nil {
		return err
	}

	if instructionsEqual(thenCode, elseCode) {
		if err := c.compile(em, pred, env, false, false); err != nil {
			return err
		}
		em.code = append(em.code, elseCode...)
		return nil
	}

	if err := c.compile(em, pred, env, true, false); err != nil {
		return err
	}

	if !val {
		if len(elseCode) == 0 {
			end := em.newLabel()
			em.emit(JMP_IF_FALSE, end, nil)
			em.code = append(em.code, thenCode...)
			em.placeLabel(end)
			if more {
				em.emit(RETURN_VAL, nil, nil)
			}
			return nil
		}
		if len(thenCode) == 0 {
			end := em.newLabel()
			em.emit(JMP_IF_TRUE, end, nil)
			em.code = append(em.code, elseCode...)
			em.placeLabel(end)
			if more {
				em.emit(RETURN_VAL, nil, nil)
			}
			return nil
		}
		end := em.newLabel()
		em.emit(JMP_IF_TRUE, end, nil)
		em.code = append(em.code, elseCode...)
		skipThen := em.newLabel()
		em.emit(JMP_TO_LABEL, skipThen, nil)
		em.placeLabel(end)
		em.code = append(em.code, thenCode...)
		em.placeLabel(skipThen)
		if more {
			em.emit(RETURN_VAL, nil, nil)
		}
		return nil
	}

	elseLabel := em.newLabel()
	em.emit(JMP_IF_FALSE, elseLabel, nil)
	em.code = append(em.code, thenCode...)
	if !more {
		join := em.newLabel()
		em.emit(JMP_TO_LABEL, join, nil)
		em.placeLabel(elseLabel)
		em.code = append(em.code, elseCode...)
		em.placeLabel(join)
		return nil
	}
	em.placeLabel(elseLabel)
	em.code = append(em.code, elseCode...)
	return nil
}

// compileIfStar compiles (if* pred else), the anaphoric if: pred's own
// value is returned when truthy, otherwise else is evaluated. The
// predicate is left on the stack with DUPLICATE so JMP_IF_TRUE can consume
// one copy for the test while the other survives as the result; the false
// branch pops that surviving copy since it doesn't need it and falls
// through to compiling else with the caller's own val/more flags, which
// already manages its own STACK_POP/RETURN_VAL bookkeeping. The DUPLICATE
// here is load-bearing: a peephole that removed it as a no-op would break
// this form, since both branches depend on there being exactly one
// predicate value left after the jump.
func (c *Compiler) compileIfStar(em *emitter, form *value.Cons, env *frameEnv, val, more bool) error {
	pred := value.Second(form)
	els := value.Third(form)

	if err := c.compile(em, pred, env, true, false); err != nil {
		return err
	}
	em.emit(DUPLICATE, nil, nil)
	end := em.newLabel()
	em.emit(JMP_IF_TRUE, end, nil)
	em.emit(STACK_POP, nil, nil)
	if err := c.compile(em, els, env, val, more); err != nil {
		return err
	}
	if more {
		// The true branch must also return, since this arm already did.
		em.placeLabel(end)
		if !val {
			em.emit(STACK_POP, nil, nil)
			em.emit(PUSH_CONST, value.Nil, nil)
		}
		em.emit(RETURN_VAL, nil, nil)
		return nil
	}
	skip := em.newLabel()
	em.emit(JMP_TO_LABEL, skip, nil)
	em.placeLabel(end)
	if !val {
		em.emit(STACK_POP, nil, nil)
	}
	em.placeLabel(skip)
	return nil
}

// emitFrameEntry emits the single instruction every lambda or macro body
// starts with: MAKE_ENV for a fixed-arity parameter list, MAKE_ENVDOT for
// one with a trailing rest parameter. It consumes the nargs arguments the
// caller pushed (tracked by the VM's nargs register, not an operand here)
// into a fresh Env frame of exactly len(params.Names) slots.
func emitFrameEntry(em *emitter, params *value.ParamList) {
	if params.Dotted {
		em.emit(MAKE_ENVDOT, len(params.Names), nil)
	} else {
		em.emit(MAKE_ENV, len(params.Names), nil)
	}
}

func (c *Compiler) parseParams(x value.Value) (*value.ParamList, error) {
	pl := &value.ParamList{}
	for {
		if value.IsNil(x) {
			return pl, nil
		}
		if s, ok := x.(*value.Symbol); ok {
			pl.Names = append(pl.Names, s)
			pl.Dotted = true
			return pl, nil
		}
		cons, ok := x.(*value.Cons)
		if !ok {
			return nil, &Error{Msg: "lambda: malformed parameter list"}
		}
		s, ok := cons.First.(*value.Symbol)
		if !ok {
			return nil, &Error{Msg: "lambda: parameter must be a symbol"}
		}
		pl.Names = append(pl.Names, s)
		x = cons.Rest
	}
}

// compileLambda compiles (lambda params body...) into a CodeBlock of its
// own, registered independently, and emits a MAKE_CLOSURE against a
// template referencing it. A zero-argument lambda called immediately, i.e.
// ((lambda () body...)), is rewritten by compileCall to skip the
// closure-creation and call machinery entirely and simply compile body
// in place against the enclosing environment, with no new frame; this path
// (lambda used as a value)
// always goes through the general MAKE_CLOSURE emission below.
func (c *Compiler) compileLambda(em *emitter, form *value.Cons, env *frameEnv, val, more bool, name string) error {
	if !val {
		if more {
			em.emit(PUSH_CONST, value.Nil, nil)
			em.emit(RETURN_VAL, nil, nil)
		}
		return nil
	}
	params, err := c.parseParams(value.Second(form))
	if err != nil {
		return err
	}
	body := value.AfterSecond(form)

	inner := &emitter{c: c, name: name, params: params}
	emitFrameEntry(inner, params)
	innerEnv := &frameEnv{names: params.Names, outer: env}
	if err := c.compileBodyForm(inner, body, innerEnv, true, true); err != nil {
		return err
	}
	cb, err := Assemble(name, params, inner.code)
	if err != nil {
		return err
	}
	handle := c.Register(cb)
	tmpl := &value.ClosureTemplate{Code: handle, Params: params, Name: name}
	em.emit(MAKE_CLOSURE, tmpl, nil)
	if more {
		em.emit(RETURN_VAL, nil, nil)
	}
	return nil
}

func (c *Compiler) compileBodyForm(em *emitter, body value.Value, env *frameEnv, val, more bool) error {
	return c.compileBegin(em, value.NewCons(c.Pkg.Intern("begin"), body), env, val, more)
}

// compileDefmacro compiles (defmacro name params body...). The macro body
// is compiled and registered exactly like a lambda, but the resulting
// closure is installed in the home package's macro table under name
// instead of being pushed as a runtime value; the defmacro form itself
// evaluates to nil. The macro body is compiled against a frame holding only
// its own parameters, with no enclosing lexical frame, and its closure
// captures no environment, even when the defmacro form appears inside a
// lambda.
func (c *Compiler) compileDefmacro(em *emitter, form *value.Cons, val, more bool) error {
	name, ok := value.Second(form).(*value.Symbol)
	if !ok {
		return &Error{Msg: "defmacro: first argument must be a symbol"}
	}
	params, err := c.parseParams(value.Third(form))
	if err != nil {
		return err
	}
	body := value.AfterThird(form)

	inner := &emitter{c: c, name: name.Name, params: params}
	emitFrameEntry(inner, params)
	innerEnv := &frameEnv{names: params.Names}
	if err := c.compileBodyForm(inner, body, innerEnv, true, true); err != nil {
		return err
	}
	cb, err := Assemble(name.Name, params, inner.code)
	if err != nil {
		return err
	}
	handle := c.Register(cb)
	closure := &value.Closure{Code: handle, Env: nil, Params: params, Name: name.Name}
	c.Pkg.SetMacro(name, &value.Macro{Name: name, Params: params, Body: closure})
	return c.compileConst(em, value.Nil, val, more)
}

// compileCall compiles a function-call form (f a1 a2 ...). A call whose
// head is literally (lambda () body...) with no arguments supplied is
// compiled as body executed directly in the enclosing environment, bypassing
// MAKE_CLOSURE/SAVE_RETURN/JMP_CLOSURE entirely, since the closure value
// would be discarded the instant it was called. A call whose head is a
// bare symbol naming a known external primitive of matching arity compiles
// to PRIM instead of the general closure-call protocol, since primitives
// are not value.Closure values and cannot be popped by JMP_CLOSURE.
// Otherwise the general protocol applies: in non-tail position a
// SAVE_RETURN is pushed first, below everything else, so that after the
// call unwinds the stack is back to its pre-call depth; then the arguments
// are pushed, then the callee, so that JMP_CLOSURE finds the callee on top
// with exactly its arguments beneath it. SAVE_RETURN's label names the
// instruction right after JMP_CLOSURE, so RETURN_VAL resumes execution
// there rather than back at the argument-evaluation code. In tail position
// SAVE_RETURN is omitted so the callee reuses whatever return address the
// current frame was itself called with.
func (c *Compiler) compileCall(em *emitter, form *value.Cons, env *frameEnv, val, more bool) error {
	head := form.First
	args := value.ListToSlice(form.Rest)

	if lform, ok := head.(*value.Cons); ok {
		if s, ok := lform.First.(*value.Symbol); ok && s.Name == "lambda" && len(args) == 0 {
			params, err := c.parseParams(value.Second(lform))
			if err == nil && len(params.Names) == 0 {
				// No parameters means no new frame is needed: the body runs
				// directly against the enclosing lexical environment.
				return c.compileBodyForm(em, value.AfterSecond(lform), env, val, more)
			}
		}
	}

	if s, ok := head.(*value.Symbol); ok && c.Primitives != nil {
		if _, _, inEnv := env.lookup(s); !inEnv {
			if arity, ok := c.Primitives.Lookup(s.Name); ok && (arity < 0 || arity == len(args)) {
				for _, a := range args {
					if err := c.compile(em, a, env, true, false); err != nil {
						return err
					}
				}
				em.emit(PRIM, s.Name, len(args))
				return c.finishCallResult(em, val, more)
			}
		}
	}

	// SAVE_RETURN must be emitted before the arguments and callee are
	// pushed, since RETURN_VAL expects to find the return address
	// immediately below the callee's own operand stack activity, at the
	// depth the stack was at before this call began. Its label operand
	// names the instruction right after JMP_CLOSURE, not the instruction
	// right after SAVE_RETURN itself: the args and the callee still have
	// to be compiled and JMP_CLOSURE still has to run before the call
	// actually happens.
	var resume Label
	if !more {
		resume = em.newLabel()
		em.emit(SAVE_RETURN, resume, nil)
	}
	for _, a := range args {
		if err := c.compile(em, a, env, true, false); err != nil {
			return err
		}
	}
	if err := c.compile(em, head, env, true, false); err != nil {
		return err
	}
	em.emit(JMP_CLOSURE, len(args), nil)
	if !more {
		em.placeLabel(resume)
		return c.finishCallResult(em, val, more)
	}
	// In tail position the callee's own RETURN_VAL delivers the result
	// directly to our caller; nothing further to emit here.
	return nil
}

func (c *Compiler) finishCallResult(em *emitter, val, more bool) error {
	if !val {
		em.emit(STACK_POP, nil, nil)
	}
	if more {
		if !val {
			em.emit(PUSH_CONST, value.Nil, nil)
		}
		em.emit(RETURN_VAL, nil, nil)
	}
	return nil
}

// macroExpand1 runs the macro's compiled body on the VM, at compile time,
// with the form's unevaluated argument forms as its arguments.
func (c *Compiler) macroExpand1(m *value.Macro, form *value.Cons) (value.Value, error) {
	args := value.ListToSlice(form.Rest)
	return c.Exec(m.Body, args)
}
