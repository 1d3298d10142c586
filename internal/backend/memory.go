package backend

import (
	"sync"

	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

// Memory is the ephemeral in-process backend. Contents are lost on process
// exit. All operations are infallible.
type Memory struct {
	mu    sync.Mutex
	roots map[string]value.Value
}

// NewMemory creates an empty ephemeral backend.
func NewMemory() *Memory {
	return &Memory{roots: make(map[string]value.Value)}
}

func (m *Memory) Get(p keypath.KeyPath) (value.Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := rootGet(m.roots, p)
	return v, ok, nil
}

func (m *Memory) Set(p keypath.KeyPath, v value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rootSet(m.roots, p, v)
	return nil
}

func (m *Memory) Merge(p keypath.KeyPath, obj value.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rootMerge(m.roots, p, obj)
	return nil
}

func (m *Memory) Remove(p keypath.KeyPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rootRemove(m.roots, p)
	return nil
}

func (m *Memory) Exists(p keypath.KeyPath) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := rootGet(m.roots, p)
	return ok, nil
}

func (m *Memory) Snapshot() (map[string]value.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRoots(m.roots), nil
}

func (m *Memory) ReplaceAll(roots map[string]value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots = cloneRoots(roots)
	return nil
}

func (m *Memory) Close() error { return nil }
