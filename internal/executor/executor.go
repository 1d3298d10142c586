// Package executor runs compiled action descriptors against the stores and
// the host. Control-flow composites are matched exhaustively; host-facing
// leaves (navigation, UI prompts, system calls) dispatch through a
// registry the embedding system populates.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/roach88/uipulse/internal/ir"
	"github.com/roach88/uipulse/internal/store"
	"github.com/roach88/uipulse/internal/value"
)

// Phase is the invocation state machine.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseResolving
	PhaseExecuting
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResolving:
		return "resolving"
	case PhaseExecuting:
		return "executing"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Fault is one failed action inside an invocation. A fault does not abort
// the whole tree unless an enclosing serial sequence stops on error.
type Fault struct {
	Action string
	Err    error
}

func (f Fault) Error() string { return f.Action + ": " + f.Err.Error() }

// Invocation tracks one triggered action tree. Each invocation owns its
// event-data context; cross-invocation safety comes from the stores'
// serialization, not from the executor.
type Invocation struct {
	phase atomic.Int32
	done  chan struct{}

	// detached tracks network follow-ups that outlive their triggering
	// sequence; Wait covers them so tests and shutdown can join.
	detached sync.WaitGroup

	mu     sync.Mutex
	faults []Fault
}

func newInvocation() *Invocation {
	return &Invocation{done: make(chan struct{})}
}

// Phase returns the current state.
func (inv *Invocation) Phase() Phase { return Phase(inv.phase.Load()) }

// Faults returns the failures recorded so far.
func (inv *Invocation) Faults() []Fault {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]Fault, len(inv.faults))
	copy(out, inv.faults)
	return out
}

// Wait blocks until the action tree and any detached network follow-ups
// have finished, then returns the recorded faults.
func (inv *Invocation) Wait() []Fault {
	<-inv.done
	inv.detached.Wait()
	return inv.Faults()
}

func (inv *Invocation) fail(action string, err error) {
	inv.mu.Lock()
	inv.faults = append(inv.faults, Fault{Action: action, Err: err})
	inv.mu.Unlock()
}

// HTTPDoer is the transport for request actions. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Executor runs action trees. Safe for concurrent invocations.
type Executor struct {
	stores   *store.Stores
	registry *Registry
	client   HTTPDoer
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithHTTPClient overrides the transport used by request actions.
func WithHTTPClient(c HTTPDoer) Option {
	return func(e *Executor) { e.client = c }
}

// WithRegistry supplies a pre-populated host registry.
func WithRegistry(r *Registry) Option {
	return func(e *Executor) { e.registry = r }
}

// New creates an executor over the given store arena.
func New(stores *store.Stores, opts ...Option) *Executor {
	e := &Executor{
		stores:   stores,
		registry: NewRegistry(),
		client:   http.DefaultClient,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the host registry for leaf-action handlers.
func (e *Executor) Registry() *Registry { return e.registry }

// Trigger starts an invocation and returns immediately. The returned
// invocation is already Resolving and moves to Executing once the tree
// starts running. Many invocations may run concurrently.
func (e *Executor) Trigger(ctx context.Context, action ir.ActionDesc, event value.Value, sessionID string) *Invocation {
	inv := newInvocation()
	env := &env{ex: e, event: event, sessionID: sessionID}
	inv.phase.Store(int32(PhaseResolving))

	go func() {
		defer close(inv.done)
		inv.phase.Store(int32(PhaseExecuting))

		err := e.run(ctx, inv, env, action, true)
		if err != nil || len(inv.Faults()) > 0 {
			inv.phase.Store(int32(PhaseFailed))
			return
		}
		inv.phase.Store(int32(PhaseCompleted))
	}()
	return inv
}

// Execute runs an invocation to completion and returns its faults.
func (e *Executor) Execute(ctx context.Context, action ir.ActionDesc, event value.Value, sessionID string) []Fault {
	return e.Trigger(ctx, action, event, sessionID).Wait()
}

// scopeFor binds a descriptor store reference to a concrete scope.
// Session-scoped refs require the invocation to carry a session id.
func scopeFor(ref ir.StoreRef, sessionID string) (store.Scope, error) {
	switch ref.Store {
	case "app":
		return store.App(), nil
	case "prefs":
		return store.Prefs(), nil
	case "file":
		return store.Scope{Kind: store.KindFile, Namespace: ref.Namespace}, nil
	case "session":
		if sessionID == "" {
			return store.Scope{}, fmt.Errorf("session store referenced outside a session")
		}
		return store.Session(sessionID), nil
	case "remote":
		return store.Remote(ref.Namespace, sessionID), nil
	default:
		return store.Scope{}, fmt.Errorf("unknown store reference %q", ref.Store)
	}
}
