// Package machine implements the stack-based virtual machine that executes
// compiler.CodeBlocks, and the process-wide registry that owns them.
package machine

import (
	"sync"

	"github.com/mna/lispkit/lang/compiler"
	"github.com/mna/lispkit/lang/value"
)

// Registry is the process-wide store of assembled code blocks. A
// value.Closure never points at a *compiler.CodeBlock directly; it holds a
// value.CodeHandle that is only meaningful relative to a particular
// Registry, which keeps cyclic references between code blocks (a
// recursive function's own MAKE_CLOSURE referring back to code still being
// assembled) representable without requiring the compiler to patch
// pointers after the fact.
type Registry struct {
	mu     sync.RWMutex
	blocks []*compiler.CodeBlock
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register stores the assembled cb in the registry and returns its handle.
// It implements compiler.Register.
func (r *Registry) Register(cb *compiler.CodeBlock) value.CodeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, cb)
	return value.CodeHandle(len(r.blocks) - 1)
}

// Lookup returns the code block for h.
func (r *Registry) Lookup(h value.CodeHandle) *compiler.CodeBlock {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.blocks[h]
}
