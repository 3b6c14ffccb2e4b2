// Package sqlitecas stores meta in a SQLite database file.
package sqlitecas

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
)

// CAS implements storage.CAS on a single SQLite table keyed by the hash.
type CAS struct {
	db *sql.DB
}

var _ storage.CAS = (*CAS)(nil)

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// private in-memory database.
func Open(path string) (*CAS, error) {
	if path == "" {
		return nil, errors.New("sqlitecas: database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (
		hash BLOB PRIMARY KEY,
		data BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &CAS{db: db}, nil
}

// Close closes the database.
func (c *CAS) Close() error {
	return c.db.Close()
}

func (c *CAS) Put(ctx context.Context, data []byte) (metahash.Hash, error) {
	if len(data) == 0 {
		return metahash.Zero, errors.New("sqlitecas: refusing to store empty content")
	}
	h := metahash.Sum(data)
	res, err := c.db.ExecContext(ctx, "INSERT OR IGNORE INTO meta (hash, data) VALUES (?, ?)", h[:], data)
	if err != nil {
		return metahash.Zero, fmt.Errorf("sqlitecas: put: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return h, nil
	}
	existing, err := c.get(ctx, h)
	if err != nil || !bytes.Equal(existing, data) {
		return metahash.Zero, storage.ErrImmutable
	}
	return h, nil
}

func (c *CAS) get(ctx context.Context, h metahash.Hash) ([]byte, error) {
	var b []byte
	err := c.db.QueryRowContext(ctx, "SELECT data FROM meta WHERE hash = ?", h[:]).Scan(&b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlitecas: get: %w", err)
	}
	return b, nil
}

func (c *CAS) Get(ctx context.Context, h metahash.Hash) ([]byte, error) {
	if !h.Defined() {
		return nil, storage.ErrInvalidHash
	}
	b, err := c.get(ctx, h)
	if err != nil {
		return nil, err
	}
	if err := storage.Verify(h, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *CAS) Has(ctx context.Context, h metahash.Hash) bool {
	if !h.Defined() {
		return false
	}
	var one int
	err := c.db.QueryRowContext(ctx, "SELECT 1 FROM meta WHERE hash = ?", h[:]).Scan(&one)
	return err == nil
}

// Len returns the number of stored objects.
func (c *CAS) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM meta").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlitecas: count: %w", err)
	}
	return n, nil
}
