// Package sqlitedb opens the shared SQLite database and keeps its schema
// current with embedded migrations.
package sqlitedb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the sql.DB shared by bucket, document and identity stores.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and applies pending migrations.
func Open(path string) (*DB, error) {
	if err := migrateUp(path); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitedb: ping: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Conn exposes the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrateUp runs on its own connection because closing the migrate instance
// closes the connection it was given.
func migrateUp(path string) error {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("sqlitedb: open migration db: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("sqlitedb: migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlitedb: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("sqlitedb: migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlitedb: run migrations: %w", err)
	}
	return nil
}
