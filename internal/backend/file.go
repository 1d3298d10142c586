package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

// File is the file-backed durable backend: the whole tree lives in one JSON
// document. Writes go to a temp file in the same directory and rename over
// the target, so a crash never leaves a partially written file.
//
// On persist failure the in-memory state reverts to the pre-mutation roots;
// the operation is a no-op rather than a divergence between memory and disk.
type File struct {
	mu    sync.Mutex
	path  string
	roots map[string]value.Value
}

// OpenFile loads the tree at path, starting empty if the file does not
// exist yet.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, roots: make(map[string]value.Value)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, ioErr("file", "open", err)
	}

	v, err := value.Decode(data)
	if err != nil {
		return nil, ioErr("file", "decode", err)
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, ioErr("file", "decode", fmt.Errorf("root of %s is not an object", path))
	}
	for k, val := range obj {
		f.roots[k] = val
	}
	return f, nil
}

// persist writes roots atomically and installs them as current on success.
func (f *File) persist(roots map[string]value.Value) error {
	obj := make(value.Object, len(roots))
	for k, v := range roots {
		obj[k] = v
	}
	data, err := value.Marshal(obj)
	if err != nil {
		return ioErr("file", "encode", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return ioErr("file", "persist", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return ioErr("file", "persist", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return ioErr("file", "persist", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return ioErr("file", "persist", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return ioErr("file", "persist", err)
	}

	f.roots = roots
	return nil
}

// mutate applies fn to a copy of the roots and persists; the copy is only
// installed when the write succeeds.
func (f *File) mutate(fn func(roots map[string]value.Value)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := cloneRoots(f.roots)
	fn(next)
	return f.persist(next)
}

func (f *File) Get(p keypath.KeyPath) (value.Value, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := rootGet(f.roots, p)
	return v, ok, nil
}

func (f *File) Set(p keypath.KeyPath, v value.Value) error {
	return f.mutate(func(roots map[string]value.Value) {
		rootSet(roots, p, v)
	})
}

func (f *File) Merge(p keypath.KeyPath, obj value.Object) error {
	return f.mutate(func(roots map[string]value.Value) {
		rootMerge(roots, p, obj)
	})
}

func (f *File) Remove(p keypath.KeyPath) error {
	return f.mutate(func(roots map[string]value.Value) {
		rootRemove(roots, p)
	})
}

func (f *File) Exists(p keypath.KeyPath) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := rootGet(f.roots, p)
	return ok, nil
}

func (f *File) Snapshot() (map[string]value.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneRoots(f.roots), nil
}

func (f *File) ReplaceAll(roots map[string]value.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persist(cloneRoots(roots))
}

func (f *File) Close() error { return nil }
