package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/uipulse/internal/backend"
	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

// Transaction runs fn against a temporary store backed by a write buffer
// over this store's backend. Reads inside fn see earlier writes from the
// same transaction (read-your-own-writes); reads of untouched roots fall
// through to the real backend. If fn returns an error the buffer is
// discarded and nothing is emitted. On success the whole batch commits as
// one queue-admitted unit and one Change tagged with a fresh transaction
// id - observers never see a partial transaction.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	if s.queue == nil {
		return errors.New("nested transactions are not supported")
	}

	pending := newPendingWrites(s.be)
	tx := &Store{
		scope:       s.scope,
		be:          pending,
		logger:      s.logger,
		strict:      s.strict,
		onViolation: s.onViolation,
		rules:       s.rules,
		// The sub-store gets its own revision counter; only the commit
		// advances the owner's.
		rev: &atomic.Int64{},
	}
	tx.subscribers.init()

	if err := fn(tx); err != nil {
		return err
	}

	return s.do(func() error {
		patches, err := pending.commit(s)
		if err != nil {
			return err
		}
		if len(patches) > 0 {
			s.emit(Change{Patches: patches, TxnID: uuid.NewString(), Rev: s.rev.Add(1)})
		}
		return nil
	})
}

// pendingOp is one buffered mutation, replayed in order at commit.
type pendingOp struct {
	op   Op
	path keypath.KeyPath
	val  value.Value
	obj  value.Object
}

// pendingWrites is the buffered backend a transaction sub-store runs
// against: an overlay of touched roots plus an ordered op log. It is the
// explicit two-layer value replacing a chain of decorator wrappers - the
// base backend is referenced, never wrapped again.
type pendingWrites struct {
	base backend.Backend

	mu      sync.Mutex
	overlay map[string]value.Value
	touched map[string]bool
	log     []pendingOp
}

func newPendingWrites(base backend.Backend) *pendingWrites {
	return &pendingWrites{
		base:    base,
		overlay: make(map[string]value.Value),
		touched: make(map[string]bool),
	}
}

// touch pulls a root into the overlay before its first buffered mutation.
func (pw *pendingWrites) touch(root string) error {
	if pw.touched[root] {
		return nil
	}
	v, ok, err := pw.base.Get(keypath.KeyPath{keypath.Key(root)})
	if err != nil {
		return err
	}
	if ok {
		pw.overlay[root] = v
	}
	pw.touched[root] = true
	return nil
}

func (pw *pendingWrites) Get(p keypath.KeyPath) (value.Value, bool, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.touched[p.Root()] {
		v, ok := rootGetOverlay(pw.overlay, p)
		return v, ok, nil
	}
	return pw.base.Get(p)
}

func (pw *pendingWrites) Set(p keypath.KeyPath, v value.Value) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if err := pw.touch(p.Root()); err != nil {
		return err
	}
	newRoot, _, _ := keypath.Set(pw.overlay[p.Root()], p[1:], v)
	if len(p) == 1 {
		newRoot = v
	}
	pw.overlay[p.Root()] = newRoot
	pw.log = append(pw.log, pendingOp{op: OpSet, path: p, val: v})
	return nil
}

func (pw *pendingWrites) Merge(p keypath.KeyPath, obj value.Object) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if err := pw.touch(p.Root()); err != nil {
		return err
	}
	root := pw.overlay[p.Root()]
	if len(p) == 1 {
		base, _ := root.(value.Object)
		merged := make(value.Object, len(base)+len(obj))
		for k, v := range base {
			merged[k] = v
		}
		for k, v := range obj {
			merged[k] = v
		}
		pw.overlay[p.Root()] = merged
	} else {
		newRoot, _, _ := keypath.Merge(root, p[1:], obj)
		pw.overlay[p.Root()] = newRoot
	}
	pw.log = append(pw.log, pendingOp{op: OpMerge, path: p, obj: obj})
	return nil
}

func (pw *pendingWrites) Remove(p keypath.KeyPath) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if err := pw.touch(p.Root()); err != nil {
		return err
	}
	if len(p) == 1 {
		delete(pw.overlay, p.Root())
	} else if root, ok := pw.overlay[p.Root()]; ok {
		newRoot, _, existed := keypath.Remove(root, p[1:])
		if existed {
			pw.overlay[p.Root()] = newRoot
		}
	}
	pw.log = append(pw.log, pendingOp{op: OpRemove, path: p})
	return nil
}

func (pw *pendingWrites) Exists(p keypath.KeyPath) (bool, error) {
	_, ok, err := pw.Get(p)
	return ok, err
}

func (pw *pendingWrites) Snapshot() (map[string]value.Value, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	snap, err := pw.base.Snapshot()
	if err != nil {
		return nil, err
	}
	for root := range pw.touched {
		if v, ok := pw.overlay[root]; ok {
			snap[root] = v
		} else {
			delete(snap, root)
		}
	}
	return snap, nil
}

func (pw *pendingWrites) ReplaceAll(map[string]value.Value) error {
	return fmt.Errorf("replaceAll is not allowed inside a transaction")
}

func (pw *pendingWrites) Close() error { return nil }

// commit replays the op log against the real backend on the owner's op
// queue, producing the patch list. Strict-mode validation runs over the
// whole batch before any write applies, keeping the commit all-or-nothing.
// Permissive-mode rules already ran and reported when the sub-store
// buffered each write; the replay does not re-check them.
func (pw *pendingWrites) commit(s *Store) ([]Patch, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if s.strict {
		for _, op := range pw.log {
			switch op.op {
			case OpSet:
				if err := s.checkRules(op.path, op.val); err != nil {
					return nil, err
				}
			case OpMerge:
				if err := s.checkRules(op.path, op.obj); err != nil {
					return nil, err
				}
			}
		}
	}

	var patches []Patch
	for _, op := range pw.log {
		switch op.op {
		case OpSet:
			patch, err := s.applySet(op.path, op.val)
			if err != nil {
				return patches, err
			}
			patches = append(patches, patch)
		case OpMerge:
			patch, err := s.applyMerge(op.path, op.obj)
			if err != nil {
				return patches, err
			}
			patches = append(patches, patch)
		case OpRemove:
			patch, removed, err := s.applyRemove(op.path)
			if err != nil {
				return patches, err
			}
			if removed {
				patches = append(patches, patch)
			}
		}
	}
	return patches, nil
}

// rootGetOverlay resolves within the overlay without falling through.
func rootGetOverlay(overlay map[string]value.Value, p keypath.KeyPath) (value.Value, bool) {
	root, ok := overlay[p.Root()]
	if !ok {
		return nil, false
	}
	if len(p) == 1 {
		return root, true
	}
	return keypath.Get(root, p[1:])
}
