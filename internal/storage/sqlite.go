package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/sqlitedb"
)

// SQLite implements Provider on the buckets table of the shared database.
type SQLite struct {
	conn *sql.DB
}

// NewSQLite returns a Provider backed by db.
func NewSQLite(db *sqlitedb.DB) *SQLite {
	return &SQLite{conn: db.Conn()}
}

// Get returns the blob stored under key.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.conn.QueryRowContext(ctx, `SELECT blob FROM buckets WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: get %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, sqlitedb.Classify(err))
	}
	return blob, nil
}

// Set upserts the blob for key.
func (s *SQLite) Set(ctx context.Context, key string, blob []byte) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO buckets (key, blob, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			blob       = excluded.blob,
			updated_at = excluded.updated_at
	`, key, blob)
	if err != nil {
		return fmt.Errorf("storage: set %s: %w", key, sqlitedb.Classify(err))
	}
	return nil
}

// Delete removes key.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM buckets WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, sqlitedb.Classify(err))
	}
	return nil
}

// Keys lists keys starting with prefix in lexical order.
func (s *SQLite) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT key FROM buckets WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("storage: keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
