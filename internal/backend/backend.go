// Package backend provides pluggable persistence strategies behind a uniform
// read/write contract over value trees. Backends differ only in medium and
// durability; the store layers serialization, transactions, validation, and
// change notification on top.
package backend

import (
	"errors"
	"fmt"

	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

// Backend is the uniform storage contract. Implementations need not be
// thread-safe for mutation; the store serializes access through its op
// queue. Reads may be issued concurrently with mutations by transaction
// sub-stores, so Get must be internally consistent (memory backends lock).
type Backend interface {
	// Get resolves the value at path. Absent paths report ok=false.
	Get(p keypath.KeyPath) (v value.Value, ok bool, err error)
	// Set places v at path, auto-vivifying intermediate objects.
	Set(p keypath.KeyPath, v value.Value) error
	// Merge shallow-merges obj into the object at path, creating one if
	// absent.
	Merge(p keypath.KeyPath, obj value.Object) error
	// Remove deletes the value at path. Removing an absent path is a no-op.
	Remove(p keypath.KeyPath) error
	// Exists reports whether a value is present at path.
	Exists(p keypath.KeyPath) (bool, error)
	// Snapshot returns every root-level path mapped to its value.
	Snapshot() (map[string]value.Value, error)
	// ReplaceAll swaps the entire contents for the given root map.
	ReplaceAll(roots map[string]value.Value) error
	// Close releases any held resources.
	Close() error
}

// ErrIO tags backend IO failures (durable, file, and remote backends).
// The store logs these and treats the operation as a no-op; they never
// corrupt local state or crash the store.
var ErrIO = errors.New("backend io failure")

// IOError wraps a backend IO failure with the backend kind and operation.
type IOError struct {
	Kind string // "sqlite", "file", "remote"
	Op   string // "get", "set", "persist", ...
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s backend %s: %v", e.Kind, e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return ErrIO }

func ioErr(kind, op string, err error) error {
	return &IOError{Kind: kind, Op: op, Err: err}
}

// rootGet resolves a path against a root-level map. The first segment
// selects the root entry; the remainder navigates within it.
func rootGet(roots map[string]value.Value, p keypath.KeyPath) (value.Value, bool) {
	if len(p) == 0 {
		return nil, false
	}
	root, ok := roots[p.Root()]
	if !ok {
		return nil, false
	}
	if len(p) == 1 {
		return root, true
	}
	return keypath.Get(root, p[1:])
}

// rootSet mutates a root-level map in place, copy-on-write below the root.
func rootSet(roots map[string]value.Value, p keypath.KeyPath, v value.Value) {
	key := p.Root()
	if len(p) == 1 {
		roots[key] = v
		return
	}
	newRoot, _, _ := keypath.Set(roots[key], p[1:], v)
	roots[key] = newRoot
}

// rootMerge mutates a root-level map in place with a shallow merge at p.
func rootMerge(roots map[string]value.Value, p keypath.KeyPath, obj value.Object) {
	key := p.Root()
	if len(p) == 1 {
		base, _ := roots[key].(value.Object)
		merged := make(value.Object, len(base)+len(obj))
		for k, v := range base {
			merged[k] = v
		}
		for k, v := range obj {
			merged[k] = v
		}
		roots[key] = merged
		return
	}
	newRoot, _, _ := keypath.Merge(roots[key], p[1:], obj)
	roots[key] = newRoot
}

// rootRemove mutates a root-level map in place. Reports whether anything
// was removed.
func rootRemove(roots map[string]value.Value, p keypath.KeyPath) bool {
	key := p.Root()
	if len(p) == 1 {
		_, ok := roots[key]
		delete(roots, key)
		return ok
	}
	root, ok := roots[key]
	if !ok {
		return false
	}
	newRoot, _, existed := keypath.Remove(root, p[1:])
	if existed {
		roots[key] = newRoot
	}
	return existed
}

func cloneRoots(roots map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(roots))
	for k, v := range roots {
		out[k] = v
	}
	return out
}
