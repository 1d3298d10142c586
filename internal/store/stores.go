package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/roach88/uipulse/internal/backend"
)

// Config carries the host bindings backends are built from.
type Config struct {
	// SQLitePath locates the durable key-value database.
	SQLitePath string
	// StateDir holds file-backed scope trees, one JSON file per scope.
	StateDir string
	// RemoteClient is the host network binding for remote scopes.
	RemoteClient backend.RemoteClient
	// Strict makes validation failures abort writes everywhere.
	Strict bool
	// EphemeralOnly forces a memory backend for every scope. Used by the
	// test harness and the CLI dry-run path.
	EphemeralOnly bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type cacheKey struct {
	scope Scope
	kind  BackendKind
}

// Stores is the arena owning every live store, cached by (scope,
// backend-kind). Stores are created lazily and live for the arena lifetime,
// except session-scoped stores which EndSession drops.
type Stores struct {
	cfg Config

	mu    sync.Mutex
	cache map[cacheKey]*Store
}

// NewStores creates an empty arena.
func NewStores(cfg Config) *Stores {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Stores{cfg: cfg, cache: make(map[cacheKey]*Store)}
}

// Get returns the store for scope with its default backend kind, creating
// it on first use.
func (ss *Stores) Get(scope Scope) (*Store, error) {
	return ss.GetWith(scope, scope.Kind.DefaultBackend())
}

// GetWith returns the store for an explicit (scope, backend-kind) pair.
func (ss *Stores) GetWith(scope Scope, kind BackendKind) (*Store, error) {
	if ss.cfg.EphemeralOnly {
		kind = BackendMemory
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	key := cacheKey{scope: scope, kind: kind}
	if s, ok := ss.cache[key]; ok {
		return s, nil
	}

	be, err := ss.buildBackend(scope, kind)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(ss.cfg.Logger)}
	if ss.cfg.Strict {
		opts = append(opts, WithStrictValidation())
	}
	s := New(scope, be, opts...)
	ss.cache[key] = s
	return s, nil
}

func (ss *Stores) buildBackend(scope Scope, kind BackendKind) (backend.Backend, error) {
	switch kind {
	case BackendMemory:
		return backend.NewMemory(), nil
	case BackendSQLite:
		if ss.cfg.SQLitePath == "" {
			return nil, fmt.Errorf("scope %s needs a sqlite path", scope)
		}
		return backend.OpenSQLite(ss.cfg.SQLitePath, scope.String())
	case BackendFile:
		if ss.cfg.StateDir == "" {
			return nil, fmt.Errorf("scope %s needs a state directory", scope)
		}
		return backend.OpenFile(filepath.Join(ss.cfg.StateDir, scope.String()+".json"))
	case BackendRemote:
		if ss.cfg.RemoteClient == nil {
			return nil, fmt.Errorf("scope %s needs a remote client", scope)
		}
		r, err := backend.OpenRemote(context.Background(), ss.cfg.RemoteClient, scope.Namespace)
		if err != nil {
			// A failed initial pull starts the cache empty; the backend
			// still serves the synchronous contract.
			ss.cfg.Logger.Warn("remote pull failed, starting empty",
				"scope", scope.String(), "err", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %v", kind)
	}
}

// EndSession closes and drops every store tied to the given session id.
func (ss *Stores) EndSession(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for key, s := range ss.cache {
		if key.scope.SessionID == id {
			s.Close()
			delete(ss.cache, key)
		}
	}
}

// Reset closes and drops every cached store. Replaces ad hoc global maps
// with an explicit clear operation.
func (ss *Stores) Reset() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for key, s := range ss.cache {
		s.Close()
		delete(ss.cache, key)
	}
}
