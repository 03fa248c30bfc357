// Package context composes the compiler, the virtual machine and the
// shared runtime state (package globals, the code registry, external
// primitives) into the single entry point embedders use: Compile a form,
// Execute it, or expand a macro form outside of compilation.
package context

import (
	"context"

	"github.com/mna/lispkit/lang/compiler"
	"github.com/mna/lispkit/lang/machine"
	"github.com/mna/lispkit/lang/value"
)

// Context bundles one package's globals and macros, the process-wide code
// registry they share, and the table of external primitives the compiler
// may call directly. Everything here is ordinary mutable shared state, not
// safe for concurrent use from multiple goroutines without the embedder's
// own locking; see the Compile/Execute methods' doc comments.
type Context struct {
	Pkg        *value.Package
	Registry   *machine.Registry
	Primitives *machine.PrimitiveTable

	compiler *compiler.Compiler
}

// Option configures a new Context.
type Option func(*Context)

// WithPrimitives installs the external primitive table a Context's
// compiler may emit PRIM instructions against.
func WithPrimitives(prims *machine.PrimitiveTable) Option {
	return func(c *Context) { c.Primitives = prims }
}

// WithPackage uses pkg as the home package for compilation instead of a
// freshly created one, letting multiple Contexts share one global/macro
// namespace if the embedder wants that.
func WithPackage(pkg *value.Package) Option {
	return func(c *Context) { c.Pkg = pkg }
}

// New creates a Context with its own package, registry and compiler.
func New(name string, opts ...Option) *Context {
	c := &Context{
		Pkg:      value.NewPackage(name),
		Registry: machine.NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	var prims compiler.Primitives
	if c.Primitives != nil {
		prims = c.Primitives
	}
	c.compiler = compiler.New(c.Pkg, machine.Exec(c.Registry, c.Primitives), c.Registry.Register, prims)
	return c
}

// Compile compiles a top-level form, returning the handle to its assembled
// code. Compiling may itself run the VM (to expand macros used in x), so
// it shares the same single-threaded-cooperative caveat as Execute.
func (c *Context) Compile(x value.Value) (value.CodeHandle, error) {
	return c.compiler.Compile(x)
}

// Execute compiles and runs a top-level form, returning its value. It is
// the composition of Compile followed by running the resulting code as a
// zero-argument closure; most callers that only need the result of a
// single top-level form should use this instead of calling Compile and a
// machine.State separately.
func (c *Context) Execute(ctx context.Context, x value.Value) (value.Value, error) {
	h, err := c.Compile(x)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, h)
}

// Run invokes an already-compiled top-level code block.
func (c *Context) Run(ctx context.Context, h value.CodeHandle) (value.Value, error) {
	fn := &value.Closure{Code: h, Env: nil, Params: &value.ParamList{}}
	st, err := machine.New(c.Registry, c.Primitives, fn, nil)
	if err != nil {
		return nil, err
	}
	return st.Run(ctx)
}

// MacroExpand1Step expands form exactly one level if it names a macro call,
// or returns it unchanged otherwise.
func (c *Context) MacroExpand1Step(form value.Value) (value.Value, error) {
	return c.compiler.MacroExpand1Step(form)
}

// MacroExpandFull expands form one step, then recursively expands each
// element of the result that is a cons with a symbol head, rewriting the
// result's cons cells in place. The one-step result itself is not expanded
// again, so a macro whose expansion is another macro call yields that call
// unexpanded.
func (c *Context) MacroExpandFull(form value.Value) (value.Value, error) {
	return c.compiler.MacroExpandFull(form)
}
