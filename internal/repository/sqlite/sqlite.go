// Package sqlite implements repository.Collection on an embedded SQLite database.
//
// Each collection is a single row in the collections table whose body column
// holds the JSON-encoded record array. Load and Save therefore keep the same
// whole-snapshot semantics as the flat-file backend; the database only adds a
// single-file store with a write-ahead log.
//
// modernc.org/sqlite is a pure Go port of SQLite, so no C toolchain is needed.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/portfolio-feed/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/feed.db" → file-based database (persistent)
//   - ":memory:"     → in-memory database, used by tests
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate database, so the pool is
	// pinned to one connection. Writes are serialized by SQLite anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			name       TEXT PRIMARY KEY,
			body       TEXT NOT NULL DEFAULT '[]',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating collections table: %w", err)
	}
	return nil
}

// Collection is one named record collection stored in DB.
type Collection[T any] struct {
	db     *DB
	name   string
	logger *slog.Logger
}

// NewCollection returns the collection called name.
func NewCollection[T any](db *DB, name string, logger *slog.Logger) *Collection[T] {
	return &Collection[T]{db: db, name: name, logger: logger}
}

var _ repository.Collection[struct{}] = (*Collection[struct{}])(nil)

// Load returns the stored snapshot. A missing row is an empty collection; a
// query or decode failure is logged and also reported as empty.
func (c *Collection[T]) Load(ctx context.Context) []T {
	var body string
	err := c.db.conn.QueryRowContext(ctx,
		`SELECT body FROM collections WHERE name = ?`,
		c.name,
	).Scan(&body)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("collection read failed, using empty collection",
				slog.String("collection", c.name),
				slog.String("error", err.Error()),
			)
		}
		return []T{}
	}

	var records []T
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		c.logger.Warn("collection body is corrupt, using empty collection",
			slog.String("collection", c.name),
			slog.String("error", err.Error()),
		)
		return []T{}
	}
	if records == nil {
		records = []T{}
	}
	return records
}

// Save replaces the stored snapshot with records.
func (c *Collection[T]) Save(ctx context.Context, records []T) error {
	if records == nil {
		records = []T{}
	}

	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s: %w", c.name, err)
	}

	_, err = c.db.conn.ExecContext(ctx,
		`INSERT INTO collections (name, body, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		c.name,
		string(body),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving %s: %w", c.name, err)
	}
	return nil
}
