package kvstore

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// OpenPostgres opens a Postgres-backed Store sharing the SQLStore
// implementation with sqlitestore — same `kv` schema, `$n` placeholders —
// so multiple service instances can share one Postgres database.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open postgres: %w", err)
	}
	s := NewSQLStore(db, func(n int) string { return fmt.Sprintf("$%d", n) })
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BYTEA NOT NULL)`); err != nil {
		return nil, fmt.Errorf("kvstore: create schema: %w", err)
	}
	return s, nil
}

// NewPostgresStore wraps an already-open *sql.DB (e.g. driven by
// DATA-DOG/go-sqlmock in tests) using Postgres placeholder syntax without
// issuing DDL.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return NewSQLStore(db, func(n int) string { return fmt.Sprintf("$%d", n) })
}
