package kvstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, no cgo
)

// SQLStore is a database/sql-backed Store shared by the sqlite and
// Postgres backends — both speak ANSI-ish SQL over a single
// `kv(key TEXT PRIMARY KEY, value BLOB)` table and differ only in
// placeholder syntax and driver.
type SQLStore struct {
	db          *sql.DB
	placeholder func(n int) string
}

// OpenSQLite opens (creating if needed) a sqlite-backed Store at path,
// using modernc.org/sqlite so the binary stays cgo-free.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open sqlite: %w", err)
	}
	s := &SQLStore{db: db, placeholder: func(int) string { return "?" }}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an already-open *sql.DB (e.g. for tests driving it
// through DATA-DOG/go-sqlmock) without creating the schema, since mocked
// connections cannot execute real DDL.
func NewSQLStore(db *sql.DB, placeholder func(n int) string) *SQLStore {
	if placeholder == nil {
		placeholder = func(int) string { return "?" }
	}
	return &SQLStore{db: db, placeholder: placeholder}
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BLOB NOT NULL)`)
	if err != nil {
		return fmt.Errorf("kvstore: create schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	q := fmt.Sprintf(`INSERT INTO kv (key, value) VALUES (%s, %s)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, s.placeholder(1), s.placeholder(2))
	_, err := s.db.ExecContext(ctx, q, key, value)
	if err != nil {
		return fmt.Errorf("kvstore: put %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	q := fmt.Sprintf(`SELECT value FROM kv WHERE key = %s`, s.placeholder(1))
	row := s.db.QueryRowContext(ctx, q, key)
	var v []byte
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kvstore: get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM kv WHERE key = %s`, s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("kvstore: delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) ScanPrefix(ctx context.Context, prefix string) ([]KV, error) {
	var rows *sql.Rows
	var err error
	if upper, ok := prefixUpperBound(prefix); ok {
		q := fmt.Sprintf(`SELECT key, value FROM kv WHERE key >= %s AND key < %s ORDER BY key ASC`,
			s.placeholder(1), s.placeholder(2))
		rows, err = s.db.QueryContext(ctx, q, prefix, upper)
	} else {
		q := fmt.Sprintf(`SELECT key, value FROM kv WHERE key >= %s ORDER BY key ASC`, s.placeholder(1))
		rows, err = s.db.QueryContext(ctx, q, prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: scan %s: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var out []KV
	for rows.Next() {
		var kv KV
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, fmt.Errorf("kvstore: scan %s: %w", prefix, err)
		}
		out = append(out, kv)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
