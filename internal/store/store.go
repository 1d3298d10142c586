// Package store implements the keyed state store: a scoped, serialized-access
// orchestrator layering transactions, validation, and change notification on
// top of a storage backend.
package store

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/uipulse/internal/backend"
	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

// Store wraps one backend with a single-writer execution discipline: every
// operation, reads included, is serialized through one logical FIFO queue so
// concurrent callers never interleave a read-modify-write or observe a torn
// state. Stores for different scopes are fully independent.
type Store struct {
	scope Scope
	be    backend.Backend

	logger      *slog.Logger
	strict      bool
	onViolation func(path string, err error)
	rules       []pathRule

	// queue is nil for transaction sub-stores, which execute directly
	// against their buffered backend and are only serialized at commit.
	queue chan task
	quit  chan struct{}

	rev *atomic.Int64

	subscribers
}

type task struct {
	fn   func() error
	done chan error
}

// Option configures a Store (and, through the arena, every Store it builds).
type Option func(*Store)

// WithLogger sets the logger faults and permissive-mode violations report to.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithStrictValidation makes failing validation rules abort writes instead
// of only reporting them.
func WithStrictValidation() Option {
	return func(s *Store) { s.strict = true }
}

// WithViolationHandler installs a callback for permissive-mode rule
// failures.
func WithViolationHandler(fn func(path string, err error)) Option {
	return func(s *Store) { s.onViolation = fn }
}

// New creates a store over a backend and starts its op queue.
func New(scope Scope, be backend.Backend, opts ...Option) *Store {
	s := &Store{
		scope:  scope,
		be:     be,
		logger: slog.Default(),
		queue:  make(chan task),
		quit:   make(chan struct{}),
		rev:    &atomic.Int64{},
	}
	s.subscribers.init()
	for _, opt := range opts {
		opt(s)
	}
	go s.serve()
	return s
}

// serve is the single-writer loop. Queue admission order totally orders all
// operations against this store.
func (s *Store) serve() {
	for {
		select {
		case t := <-s.queue:
			t.done <- t.fn()
		case <-s.quit:
			return
		}
	}
}

// do admits fn to the op queue and waits for it. Transaction sub-stores
// (nil queue) run directly; their effects are serialized at commit instead.
func (s *Store) do(fn func() error) error {
	if s.queue == nil {
		return fn()
	}
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case s.queue <- t:
		return <-t.done
	case <-s.quit:
		return ErrStoreClosed
	}
}

// Scope returns the scope this store was created under.
func (s *Store) Scope() Scope { return s.scope }

// Close stops the op queue and closes the backend and all subscriber
// channels.
func (s *Store) Close() error {
	select {
	case <-s.quit:
		return nil // already closed
	default:
	}
	close(s.quit)
	s.subscribers.closeAll()
	return s.be.Close()
}

// Get resolves the value at path. Absent paths report ok=false.
func (s *Store) Get(path string) (value.Value, bool, error) {
	p, err := keypath.Parse(path)
	if err != nil {
		return nil, false, err
	}
	var (
		v  value.Value
		ok bool
	)
	err = s.do(func() error {
		var gerr error
		v, ok, gerr = s.be.Get(p)
		return gerr
	})
	return v, ok, err
}

// GetOr resolves path, returning def when absent.
func (s *Store) GetOr(path string, def value.Value) (value.Value, error) {
	v, ok, err := s.Get(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// GetString is a typed read; absent paths return ErrKeyPathNotFound.
func (s *Store) GetString(path string) (string, error) {
	v, ok, err := s.Get(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrKeyPathNotFound
	}
	return value.AsString(v), nil
}

// GetInt is a typed read; absent or non-numeric values return
// ErrKeyPathNotFound.
func (s *Store) GetInt(path string) (int64, error) {
	v, ok, err := s.Get(path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrKeyPathNotFound
	}
	n, numOK := value.AsNumber(v)
	if !numOK {
		return 0, ErrKeyPathNotFound
	}
	return int64(n), nil
}

// Exists reports whether path resolves to a present value.
func (s *Store) Exists(path string) (bool, error) {
	_, ok, err := s.Get(path)
	return ok, err
}

// Snapshot returns all root-level paths mapped to their values.
func (s *Store) Snapshot() (map[string]value.Value, error) {
	var snap map[string]value.Value
	err := s.do(func() error {
		var serr error
		snap, serr = s.be.Snapshot()
		return serr
	})
	return snap, err
}

// Set places v at path, validating first. Emits one Change on success.
func (s *Store) Set(path string, v value.Value) error {
	p, err := keypath.Parse(path)
	if err != nil {
		return err
	}
	return s.do(func() error {
		if err := s.checkRules(p, v); err != nil {
			return err
		}
		patch, err := s.applySet(p, v)
		if err != nil {
			return err
		}
		s.emit(Change{Patches: []Patch{patch}, Rev: s.rev.Add(1)})
		return nil
	})
}

// Merge shallow-merges obj into the object at path, creating one if absent.
func (s *Store) Merge(path string, obj value.Object) error {
	p, err := keypath.Parse(path)
	if err != nil {
		return err
	}
	return s.do(func() error {
		if err := s.checkRules(p, obj); err != nil {
			return err
		}
		patch, err := s.applyMerge(p, obj)
		if err != nil {
			return err
		}
		s.emit(Change{Patches: []Patch{patch}, Rev: s.rev.Add(1)})
		return nil
	})
}

// Remove deletes the value at path. Removing an absent path emits nothing.
func (s *Store) Remove(path string) error {
	p, err := keypath.Parse(path)
	if err != nil {
		return err
	}
	return s.do(func() error {
		patch, removed, err := s.applyRemove(p)
		if err != nil || !removed {
			return err
		}
		s.emit(Change{Patches: []Patch{patch}, Rev: s.rev.Add(1)})
		return nil
	})
}

// ReplaceAll swaps the entire contents, diffing old and new snapshots and
// emitting one Change with a patch per added, changed, or removed root.
func (s *Store) ReplaceAll(roots map[string]value.Value) error {
	return s.do(func() error {
		oldSnap, err := s.be.Snapshot()
		if err != nil {
			return s.ioFault("replaceAll", err)
		}
		if err := s.be.ReplaceAll(roots); err != nil {
			return s.ioFault("replaceAll", err)
		}

		var patches []Patch
		for _, k := range sortedUnion(oldSnap, roots) {
			oldV, hadOld := oldSnap[k]
			newV, hasNew := roots[k]
			switch {
			case hadOld && !hasNew:
				patches = append(patches, Patch{Op: OpRemove, Path: k, Old: oldV})
			case !hadOld && hasNew:
				patches = append(patches, Patch{Op: OpSet, Path: k, New: newV})
			case hadOld && hasNew && !value.Equal(oldV, newV):
				patches = append(patches, Patch{Op: OpSet, Path: k, Old: oldV, New: newV})
			}
		}
		if len(patches) > 0 {
			s.emit(Change{Patches: patches, Rev: s.rev.Add(1)})
		}
		return nil
	})
}

// applySet writes and returns the patch. Runs on the op queue (or directly
// inside a transaction sub-store). Rules run at admission time, not here:
// a transaction commit replays ops that were already validated when the
// sub-store buffered them.
func (s *Store) applySet(p keypath.KeyPath, v value.Value) (Patch, error) {
	old, _, err := s.be.Get(p)
	if err != nil {
		return Patch{}, s.ioFault("set", err)
	}
	if err := s.be.Set(p, v); err != nil {
		return Patch{}, s.ioFault("set", err)
	}
	return Patch{Op: OpSet, Path: p.String(), Old: old, New: v}, nil
}

func (s *Store) applyMerge(p keypath.KeyPath, obj value.Object) (Patch, error) {
	old, _, err := s.be.Get(p)
	if err != nil {
		return Patch{}, s.ioFault("merge", err)
	}
	if err := s.be.Merge(p, obj); err != nil {
		return Patch{}, s.ioFault("merge", err)
	}
	merged, _, err := s.be.Get(p)
	if err != nil {
		return Patch{}, s.ioFault("merge", err)
	}
	return Patch{Op: OpMerge, Path: p.String(), Old: old, New: merged}, nil
}

func (s *Store) applyRemove(p keypath.KeyPath) (Patch, bool, error) {
	old, existed, err := s.be.Get(p)
	if err != nil {
		return Patch{}, false, s.ioFault("remove", err)
	}
	if !existed {
		return Patch{}, false, nil
	}
	if err := s.be.Remove(p); err != nil {
		return Patch{}, false, s.ioFault("remove", err)
	}
	return Patch{Op: OpRemove, Path: p.String(), Old: old}, true, nil
}

// ioFault logs backend IO failures. The operation is a no-op against local
// state; the error still propagates so callers can observe it.
func (s *Store) ioFault(op string, err error) error {
	if errors.Is(err, backend.ErrIO) {
		s.logger.Warn("backend io failure, operation skipped",
			"scope", s.scope.String(), "op", op, "err", err)
	}
	return err
}

func sortedUnion(a, b map[string]value.Value) []string {
	keys := make(value.Object, len(a)+len(b))
	for k := range a {
		keys[k] = value.Null{}
	}
	for k := range b {
		keys[k] = value.Null{}
	}
	return keys.SortedKeys()
}
