package backend

import (
	"context"
	"sync"

	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

// RemoteOp is one buffered write awaiting flush to the remote namespace.
type RemoteOp struct {
	Op    string // "set", "merge", "remove", "replaceAll"
	Path  string
	Value value.Value
	Roots map[string]value.Value // replaceAll payload
}

// RemoteClient is the host-provided network binding for the remote backend.
// The wire protocol is the host's concern; the backend only buffers and
// forwards ordered operations.
type RemoteClient interface {
	// Pull fetches the current root map for a namespace.
	Pull(ctx context.Context, namespace string) (map[string]value.Value, error)
	// Push applies ordered operations to a namespace.
	Push(ctx context.Context, namespace string, ops []RemoteOp) error
}

// Remote fronts a network-backed namespace with a local cache. Reads and
// writes complete synchronously against the cache; writes buffer until
// Flush pushes them. A failed push keeps the buffer intact for retry, so
// local state never diverges silently.
type Remote struct {
	mu        sync.Mutex
	client    RemoteClient
	namespace string
	roots     map[string]value.Value
	pending   []RemoteOp
}

// OpenRemote pulls the initial state for namespace. A pull failure starts
// the cache empty rather than failing open; the first flush reconciles.
func OpenRemote(ctx context.Context, client RemoteClient, namespace string) (*Remote, error) {
	r := &Remote{
		client:    client,
		namespace: namespace,
		roots:     make(map[string]value.Value),
	}
	roots, err := client.Pull(ctx, namespace)
	if err != nil {
		return r, ioErr("remote", "pull", err)
	}
	for k, v := range roots {
		r.roots[k] = v
	}
	return r, nil
}

// Flush pushes all buffered writes. On success the buffer clears; on
// failure it is retained for the next attempt.
func (r *Remote) Flush(ctx context.Context) error {
	r.mu.Lock()
	ops := r.pending
	r.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}
	if err := r.client.Push(ctx, r.namespace, ops); err != nil {
		return ioErr("remote", "push", err)
	}

	r.mu.Lock()
	// Drop exactly what was pushed; writes that raced in stay buffered.
	r.pending = r.pending[len(ops):]
	r.mu.Unlock()
	return nil
}

// PendingOps reports the number of buffered, unflushed writes.
func (r *Remote) PendingOps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Remote) Get(p keypath.KeyPath) (value.Value, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := rootGet(r.roots, p)
	return v, ok, nil
}

func (r *Remote) Set(p keypath.KeyPath, v value.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rootSet(r.roots, p, v)
	r.pending = append(r.pending, RemoteOp{Op: "set", Path: p.String(), Value: v})
	return nil
}

func (r *Remote) Merge(p keypath.KeyPath, obj value.Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rootMerge(r.roots, p, obj)
	r.pending = append(r.pending, RemoteOp{Op: "merge", Path: p.String(), Value: obj})
	return nil
}

func (r *Remote) Remove(p keypath.KeyPath) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rootRemove(r.roots, p)
	r.pending = append(r.pending, RemoteOp{Op: "remove", Path: p.String()})
	return nil
}

func (r *Remote) Exists(p keypath.KeyPath) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := rootGet(r.roots, p)
	return ok, nil
}

func (r *Remote) Snapshot() (map[string]value.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneRoots(r.roots), nil
}

func (r *Remote) ReplaceAll(roots map[string]value.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = cloneRoots(roots)
	r.pending = append(r.pending, RemoteOp{Op: "replaceAll", Roots: cloneRoots(roots)})
	return nil
}

func (r *Remote) Close() error { return nil }
