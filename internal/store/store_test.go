package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uipulse/internal/backend"
	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(App(), backend.NewMemory(), opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetMergeScenario(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("user.name", value.String("Ann")))

	v, ok, err := s.Get("user.name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.String("Ann"), v)

	require.NoError(t, s.Merge("user", value.Object{"age": value.Int(30)}))

	v, ok, err = s.Get("user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(value.Object{
		"name": value.String("Ann"),
		"age":  value.Int(30),
	}, v))
}

func TestTypedGets(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("count", value.Int(11)))

	n, err := s.GetInt("count")
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	_, err = s.GetInt("missing")
	assert.ErrorIs(t, err, ErrKeyPathNotFound)

	_, err = s.GetString("missing")
	assert.ErrorIs(t, err, ErrKeyPathNotFound)
}

func TestRemoveAbsentEmitsNothing(t *testing.T) {
	s := newTestStore(t)
	ch := s.Changes()

	require.NoError(t, s.Remove("nothing.here"))
	require.NoError(t, s.Set("k", value.Int(1)))

	// The only observed change is the set; the no-op remove emitted nothing.
	change := <-ch
	require.Len(t, change.Patches, 1)
	assert.Equal(t, OpSet, change.Patches[0].Op)
}

func TestChangeCarriesOldAndNew(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("k", value.Int(1)))
	ch := s.Changes()

	require.NoError(t, s.Set("k", value.Int(2)))
	change := <-ch
	require.Len(t, change.Patches, 1)
	assert.Equal(t, value.Int(1), change.Patches[0].Old)
	assert.Equal(t, value.Int(2), change.Patches[0].New)
}

func TestTransactionAtomicity(t *testing.T) {
	s := newTestStore(t)
	ch := s.Changes()

	err := s.Transaction(func(tx *Store) error {
		if err := tx.Set("a", value.Int(1)); err != nil {
			return err
		}
		if err := tx.Set("b", value.Int(2)); err != nil {
			return err
		}
		return tx.Remove("a")
	})
	require.NoError(t, err)

	// Exactly one change with all three effects, tagged with a txn id.
	change := <-ch
	assert.NotEmpty(t, change.TxnID)
	require.Len(t, change.Patches, 3)
	assert.Equal(t, OpSet, change.Patches[0].Op)
	assert.Equal(t, OpSet, change.Patches[1].Op)
	assert.Equal(t, OpRemove, change.Patches[2].Op)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected second change: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransactionRollbackOnError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("k", value.Int(1)))
	ch := s.Changes()

	wantErr := errors.New("abort")
	err := s.Transaction(func(tx *Store) error {
		if err := tx.Set("k", value.Int(99)); err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// Nothing applied, nothing emitted.
	v, _, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), v)
	select {
	case change := <-ch:
		t.Fatalf("unexpected change after rollback: %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransactionReadYourOwnWrites(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("counter", value.Int(1)))

	err := s.Transaction(func(tx *Store) error {
		// A read after a write in the same transaction sees the write.
		if err := tx.Set("counter", value.Int(5)); err != nil {
			return err
		}
		v, ok, err := tx.Get("counter")
		if err != nil {
			return err
		}
		if !ok || !value.Equal(v, value.Int(5)) {
			return fmt.Errorf("read-your-own-writes violated: got %v", v)
		}

		// Reads of untouched roots fall through to the real backend.
		v, ok, err = tx.Get("other")
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("unexpected value at untouched root: %v", v)
		}
		return nil
	})
	require.NoError(t, err)

	// Outside the transaction the committed value is visible.
	v, _, err := s.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), v)
}

func TestTransactionInvisibleUntilCommit(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("k", value.Int(1)))

	inTx := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.Transaction(func(tx *Store) error {
			if err := tx.Set("k", value.Int(2)); err != nil {
				return err
			}
			close(inTx)
			<-release
			return nil
		})
	}()

	<-inTx
	// Concurrent reader sees the pre-transaction value.
	v, _, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), v)

	close(release)
	require.NoError(t, <-done)

	v, _, err = s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), v)
}

func TestReplaceAllDiffs(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("stay", value.Int(1)))
	require.NoError(t, s.Set("change", value.Int(2)))
	require.NoError(t, s.Set("drop", value.Int(3)))
	ch := s.Changes()

	require.NoError(t, s.ReplaceAll(map[string]value.Value{
		"stay":   value.Int(1),
		"change": value.Int(20),
		"add":    value.Int(4),
	}))

	change := <-ch
	byPath := map[string]Patch{}
	for _, p := range change.Patches {
		byPath[p.Path] = p
	}
	require.Len(t, byPath, 3)
	assert.Equal(t, OpSet, byPath["add"].Op)
	assert.Equal(t, OpSet, byPath["change"].Op)
	assert.Equal(t, value.Int(2), byPath["change"].Old)
	assert.Equal(t, OpRemove, byPath["drop"].Op)
	_, unchanged := byPath["stay"]
	assert.False(t, unchanged)
}

func TestValidationStrictAborts(t *testing.T) {
	s := newTestStore(t, WithStrictValidation())
	require.NoError(t, s.AddRule("user.age", func(p keypath.KeyPath, v value.Value) error {
		if n, ok := value.AsNumber(v); !ok || n < 0 {
			return errors.New("age must be a non-negative number")
		}
		return nil
	}))

	err := s.Set("user.age", value.Int(-1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, ok, getErr := s.Get("user.age")
	require.NoError(t, getErr)
	assert.False(t, ok, "aborted write must not apply")

	require.NoError(t, s.Set("user.age", value.Int(30)))
}

func TestValidationPermissiveReports(t *testing.T) {
	var mu sync.Mutex
	var violations []string
	s := newTestStore(t, WithViolationHandler(func(path string, err error) {
		mu.Lock()
		violations = append(violations, path)
		mu.Unlock()
	}))
	require.NoError(t, s.AddRule("user.age", func(p keypath.KeyPath, v value.Value) error {
		return errors.New("always fails")
	}))

	// The write proceeds; the failure is only reported.
	require.NoError(t, s.Set("user.age", value.Int(5)))
	v, ok, err := s.Get("user.age")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Int(5), v)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"user.age"}, violations)
}

func TestValidationPermissiveReportsTransactionalWriteOnce(t *testing.T) {
	var mu sync.Mutex
	var violations []string
	s := newTestStore(t, WithViolationHandler(func(path string, err error) {
		mu.Lock()
		violations = append(violations, path)
		mu.Unlock()
	}))
	require.NoError(t, s.AddRule("user.age", func(p keypath.KeyPath, v value.Value) error {
		return errors.New("always fails")
	}))

	require.NoError(t, s.Transaction(func(tx *Store) error {
		return tx.Set("user.age", value.Int(5))
	}))

	v, ok, err := s.Get("user.age")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Int(5), v)

	// The rule fired when the sub-store buffered the write; the commit
	// replay must not report it a second time.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"user.age"}, violations)
}

func TestValidationStrictAbortsWholeTransaction(t *testing.T) {
	s := newTestStore(t, WithStrictValidation())
	require.NoError(t, s.AddRule("b", func(p keypath.KeyPath, v value.Value) error {
		return errors.New("no")
	}))
	ch := s.Changes()

	err := s.Transaction(func(tx *Store) error {
		if err := tx.Set("a", value.Int(1)); err != nil {
			return err
		}
		return tx.Set("b", value.Int(2))
	})
	require.Error(t, err)

	// Neither write landed.
	_, ok, getErr := s.Get("a")
	require.NoError(t, getErr)
	assert.False(t, ok)
	select {
	case change := <-ch:
		t.Fatalf("unexpected change: %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("user.name", value.String("Ann")))

	sub, err := s.Watch("user.name")
	require.NoError(t, err)
	cur, present := sub.Current()
	require.True(t, present)
	assert.Equal(t, value.String("Ann"), cur)

	// One subscription object per distinct path.
	again, err := s.Watch("user.name")
	require.NoError(t, err)
	assert.Same(t, sub, again)

	require.NoError(t, s.Set("user.name", value.String("Bo")))
	select {
	case v := <-sub.Updates():
		assert.Equal(t, value.String("Bo"), v)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	// A patch above the watched path also refreshes it.
	require.NoError(t, s.Set("user", value.Object{"name": value.String("Cy")}))
	select {
	case v := <-sub.Updates():
		assert.Equal(t, value.String("Cy"), v)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestSerializedConcurrentWrites(t *testing.T) {
	s := newTestStore(t)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Set(fmt.Sprintf("k%d", i), value.Int(int64(i))))
		}(i)
	}
	wg.Wait()

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap, n)
}

func TestStoresArena(t *testing.T) {
	ss := NewStores(Config{EphemeralOnly: true})
	t.Cleanup(ss.Reset)

	app1, err := ss.Get(App())
	require.NoError(t, err)
	app2, err := ss.Get(App())
	require.NoError(t, err)
	assert.Same(t, app1, app2, "stores are cached per (scope, backend)")

	sess, err := ss.Get(Session("s1"))
	require.NoError(t, err)
	require.NoError(t, sess.Set("k", value.Int(1)))

	// Scopes are independent.
	_, ok, err := app1.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Ending the session drops its store; the next Get starts fresh.
	ss.EndSession("s1")
	sess2, err := ss.Get(Session("s1"))
	require.NoError(t, err)
	assert.NotSame(t, sess, sess2)
	_, ok, err = sess2.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClosedStore(t *testing.T) {
	s := New(App(), backend.NewMemory())
	require.NoError(t, s.Close())
	err := s.Set("k", value.Int(1))
	assert.ErrorIs(t, err, ErrStoreClosed)
}
