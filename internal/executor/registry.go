package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/uipulse/internal/ir"
	"github.com/roach88/uipulse/internal/value"
)

// ErrActionKindNotRegistered marks a leaf action with no host handler.
// Fatal for that action, not for the whole tree unless an enclosing serial
// sequence stops on error.
var ErrActionKindNotRegistered = errors.New("action kind not registered")

// HostCall is the contract between the executor and a host handler: the
// original descriptor plus its value positions resolved against the store
// and event data. The handler owns the behavior; the executor owns the
// resolution.
type HostCall struct {
	Kind   string
	Action ir.ActionDesc
	Values map[string]value.Value
}

// Handler implements one leaf action kind. A non-nil returned action is a
// follow-up the executor runs next - for prompts this is how the selected
// button's action comes back.
type Handler func(ctx context.Context, call HostCall) (ir.ActionDesc, error)

// Registry maps host-pluggable leaf kinds to their handlers. Control-flow
// composites and store mutations never dispatch here.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs (or replaces) the handler for an action kind.
func (r *Registry) Register(kind string, h Handler) {
	r.mu.Lock()
	r.handlers[kind] = h
	r.mu.Unlock()
}

func (r *Registry) lookup(kind string) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[kind]
	r.mu.RUnlock()
	return h, ok
}
