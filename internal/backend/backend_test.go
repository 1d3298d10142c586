package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

// contractTest exercises the uniform Backend contract against any
// implementation.
func contractTest(t *testing.T, b Backend) {
	t.Helper()

	// Set then get.
	require.NoError(t, b.Set(keypath.MustParse("user.name"), value.String("Ann")))
	v, ok, err := b.Get(keypath.MustParse("user.name"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.String("Ann"), v)

	// Shallow merge into an existing object.
	require.NoError(t, b.Merge(keypath.MustParse("user"), value.Object{"age": value.Int(30)}))
	v, ok, err = b.Get(keypath.MustParse("user"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(value.Object{"name": value.String("Ann"), "age": value.Int(30)}, v))

	// Exists.
	ok, err = b.Exists(keypath.MustParse("user.age"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.Exists(keypath.MustParse("user.missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Remove.
	require.NoError(t, b.Remove(keypath.MustParse("user.age")))
	_, ok, err = b.Get(keypath.MustParse("user.age"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Snapshot reflects root-level entries.
	require.NoError(t, b.Set(keypath.MustParse("counter"), value.Int(7)))
	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap, 2)
	assert.Equal(t, value.Int(7), snap["counter"])

	// ReplaceAll swaps everything.
	require.NoError(t, b.ReplaceAll(map[string]value.Value{"only": value.Bool(true)}))
	snap, err = b.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, value.Bool(true), snap["only"])
}

func TestMemoryContract(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	contractTest(t, b)
}

func TestSQLiteContract(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"), "app")
	require.NoError(t, err)
	defer b.Close()
	contractTest(t, b)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	b, err := OpenSQLite(path, "app")
	require.NoError(t, err)
	require.NoError(t, b.Set(keypath.MustParse("session.token"), value.String("abc")))
	require.NoError(t, b.Close())

	b2, err := OpenSQLite(path, "app")
	require.NoError(t, err)
	defer b2.Close()

	v, ok, err := b2.Get(keypath.MustParse("session.token"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.String("abc"), v)
}

func TestSQLiteScopeIsolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	a, err := OpenSQLite(path, "app")
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Set(keypath.MustParse("k"), value.Int(1)))

	p, err := OpenSQLite(path, "prefs")
	require.NoError(t, err)
	defer p.Close()

	_, ok, err := p.Get(keypath.MustParse("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileContract(t *testing.T) {
	b, err := OpenFile(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	defer b.Close()
	contractTest(t, b)
}

func TestFileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	b, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, b.Set(keypath.MustParse("a.b"), value.Int(5)))

	b2, err := OpenFile(path)
	require.NoError(t, err)
	v, ok, err := b2.Get(keypath.MustParse("a.b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Int(5), v)
}

func TestFileWritesAreAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	b, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, b.Set(keypath.MustParse("k"), value.String("v")))

	// No stray temp files remain after a successful write.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestFilePersistFailureIsNoOp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	b, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, b.Set(keypath.MustParse("k"), value.Int(1)))

	// Make the directory unwritable so the temp-file create fails.
	require.NoError(t, os.Chmod(dir, 0o500))
	defer os.Chmod(dir, 0o700)

	err = b.Set(keypath.MustParse("k"), value.Int(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))

	// In-memory state reverted: the failed write is a no-op.
	v, ok, getErr := b.Get(keypath.MustParse("k"))
	require.NoError(t, getErr)
	require.True(t, ok)
	assert.Equal(t, value.Int(1), v)
}

// fakeRemote records pushes and serves a fixed pull.
type fakeRemote struct {
	pulled  map[string]value.Value
	pushes  [][]RemoteOp
	pushErr error
}

func (f *fakeRemote) Pull(ctx context.Context, namespace string) (map[string]value.Value, error) {
	return f.pulled, nil
}

func (f *fakeRemote) Push(ctx context.Context, namespace string, ops []RemoteOp) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, ops)
	return nil
}

func TestRemoteContract(t *testing.T) {
	b, err := OpenRemote(context.Background(), &fakeRemote{}, "ns")
	require.NoError(t, err)
	defer b.Close()
	contractTest(t, b)
}

func TestRemoteBuffersUntilFlush(t *testing.T) {
	client := &fakeRemote{pulled: map[string]value.Value{"seed": value.Int(1)}}
	b, err := OpenRemote(context.Background(), client, "ns")
	require.NoError(t, err)

	// Pulled state is visible immediately.
	v, ok, err := b.Get(keypath.MustParse("seed"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Int(1), v)

	require.NoError(t, b.Set(keypath.MustParse("a"), value.Int(2)))
	require.NoError(t, b.Remove(keypath.MustParse("seed")))
	assert.Equal(t, 2, b.PendingOps())
	assert.Empty(t, client.pushes)

	require.NoError(t, b.Flush(context.Background()))
	assert.Equal(t, 0, b.PendingOps())
	require.Len(t, client.pushes, 1)
	assert.Equal(t, "set", client.pushes[0][0].Op)
	assert.Equal(t, "remove", client.pushes[0][1].Op)
}

func TestRemoteFlushFailureKeepsBuffer(t *testing.T) {
	client := &fakeRemote{pushErr: errors.New("network down")}
	b, err := OpenRemote(context.Background(), client, "ns")
	require.NoError(t, err)

	require.NoError(t, b.Set(keypath.MustParse("a"), value.Int(1)))
	err = b.Flush(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
	assert.Equal(t, 1, b.PendingOps())

	// Local cache still serves the write.
	v, ok, err := b.Get(keypath.MustParse("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Int(1), v)
}
