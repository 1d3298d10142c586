package backend

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added covering index on kv(scope)
const currentSchemaVersion = 1

// SQLite is the durable local backend: key-value persistence keyed by
// scope-prefixed root path, surviving process restarts on the same device.
//
// The database is configured with WAL mode, NORMAL synchronous, a 5-second
// busy timeout, and a single connection (SQLite allows one writer).
type SQLite struct {
	db    *sql.DB
	scope string
}

// OpenSQLite creates or opens the database at path for the given scope
// prefix. Idempotent: pragmas and migrations apply on every open.
func OpenSQLite(path, scope string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// Single writer avoids SQLITE_BUSY under the store's op queue.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db, scope: scope}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the scope index for databases created before v1.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_kv_scope ON kv(scope)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// readRoot loads and decodes one root document. Absent roots report
// ok=false with a nil error.
func (s *SQLite) readRoot(root string) (value.Value, bool, error) {
	var doc string
	err := s.db.QueryRow(
		`SELECT doc FROM kv WHERE scope = ? AND root = ?`, s.scope, root,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ioErr("sqlite", "get", err)
	}
	v, err := value.Decode([]byte(doc))
	if err != nil {
		return nil, false, ioErr("sqlite", "decode", err)
	}
	return v, true, nil
}

// writeRoot upserts one root document.
func (s *SQLite) writeRoot(root string, v value.Value) error {
	doc, err := value.Marshal(v)
	if err != nil {
		return ioErr("sqlite", "encode", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO kv (scope, root, doc) VALUES (?, ?, ?)
		ON CONFLICT(scope, root) DO UPDATE SET
			doc = excluded.doc,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, s.scope, root, string(doc))
	if err != nil {
		return ioErr("sqlite", "set", err)
	}
	return nil
}

func (s *SQLite) Get(p keypath.KeyPath) (value.Value, bool, error) {
	root, ok, err := s.readRoot(p.Root())
	if err != nil || !ok {
		return nil, false, err
	}
	if len(p) == 1 {
		return root, true, nil
	}
	v, ok := keypath.Get(root, p[1:])
	return v, ok, nil
}

func (s *SQLite) Set(p keypath.KeyPath, v value.Value) error {
	if len(p) == 1 {
		return s.writeRoot(p.Root(), v)
	}
	root, _, err := s.readRoot(p.Root())
	if err != nil {
		return err
	}
	newRoot, _, _ := keypath.Set(root, p[1:], v)
	return s.writeRoot(p.Root(), newRoot)
}

func (s *SQLite) Merge(p keypath.KeyPath, obj value.Object) error {
	root, _, err := s.readRoot(p.Root())
	if err != nil {
		return err
	}
	roots := map[string]value.Value{}
	if root != nil {
		roots[p.Root()] = root
	}
	rootMerge(roots, p, obj)
	return s.writeRoot(p.Root(), roots[p.Root()])
}

func (s *SQLite) Remove(p keypath.KeyPath) error {
	if len(p) == 1 {
		_, err := s.db.Exec(
			`DELETE FROM kv WHERE scope = ? AND root = ?`, s.scope, p.Root(),
		)
		if err != nil {
			return ioErr("sqlite", "remove", err)
		}
		return nil
	}
	root, ok, err := s.readRoot(p.Root())
	if err != nil || !ok {
		return err
	}
	newRoot, _, existed := keypath.Remove(root, p[1:])
	if !existed {
		return nil
	}
	return s.writeRoot(p.Root(), newRoot)
}

func (s *SQLite) Exists(p keypath.KeyPath) (bool, error) {
	_, ok, err := s.Get(p)
	return ok, err
}

func (s *SQLite) Snapshot() (map[string]value.Value, error) {
	rows, err := s.db.Query(`SELECT root, doc FROM kv WHERE scope = ?`, s.scope)
	if err != nil {
		return nil, ioErr("sqlite", "snapshot", err)
	}
	defer rows.Close()

	roots := make(map[string]value.Value)
	for rows.Next() {
		var root, doc string
		if err := rows.Scan(&root, &doc); err != nil {
			return nil, ioErr("sqlite", "snapshot", err)
		}
		v, err := value.Decode([]byte(doc))
		if err != nil {
			return nil, ioErr("sqlite", "decode", err)
		}
		roots[root] = v
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("sqlite", "snapshot", err)
	}
	return roots, nil
}

func (s *SQLite) ReplaceAll(roots map[string]value.Value) error {
	tx, err := s.db.Begin()
	if err != nil {
		return ioErr("sqlite", "replaceAll", err)
	}
	defer tx.Rollback() // No-op if committed.

	if _, err := tx.Exec(`DELETE FROM kv WHERE scope = ?`, s.scope); err != nil {
		return ioErr("sqlite", "replaceAll", err)
	}
	for root, v := range roots {
		doc, err := value.Marshal(v)
		if err != nil {
			return ioErr("sqlite", "encode", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO kv (scope, root, doc) VALUES (?, ?, ?)`,
			s.scope, root, string(doc),
		); err != nil {
			return ioErr("sqlite", "replaceAll", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ioErr("sqlite", "replaceAll", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
