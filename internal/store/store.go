// Package store persists feature trees in SQLite and implements the
// coordinator's Backend in local mode.
//
// Nodes are soft-deleted: every delete records a snapshot of the removed
// subtree so restore can put the exact structure back for all three
// delete policies. Sibling positions are always renumbered 0..n-1.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Store errors. Callers match them with errors.Is.
var (
	ErrNotFound         = errors.New("store: node not found")
	ErrConflict         = errors.New("store: structural conflict")
	ErrInvalid          = errors.New("store: invalid input")
	ErrNothingToRestore = errors.New("store: nothing to restore")
)

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	DataDir string
	Logger  *slog.Logger
}

// DefaultConfig returns the default configuration for the store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".foundry")}
}

// DBFile is the database file name inside DataDir.
const DBFile = "foundry.db"

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the SQLite-backed feature tree repository.
type Store struct {
	db  *sql.DB
	cfg Config
	log *slog.Logger
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, DBFile)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// Writers are serialized; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, cfg: cfg, log: logger.With("component", "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			id          TEXT PRIMARY KEY,
			project_id  TEXT    NOT NULL,
			parent_id   TEXT,
			title       TEXT    NOT NULL DEFAULT '',
			description TEXT    NOT NULL DEFAULT '',
			level       TEXT    NOT NULL,
			status      TEXT    NOT NULL DEFAULT 'not_started',
			position    INTEGER NOT NULL DEFAULT 0,
			deleted_at  TEXT,
			deletion_id INTEGER,
			created_at  TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at  TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_project ON nodes(project_id, deleted_at);
		CREATE INDEX IF NOT EXISTS idx_nodes_parent  ON nodes(parent_id, position);

		CREATE TABLE IF NOT EXISTS deletions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			node_id     TEXT    NOT NULL,
			project_id  TEXT    NOT NULL,
			policy      TEXT    NOT NULL,
			parent_id   TEXT,
			position    INTEGER NOT NULL,
			snapshot    TEXT    NOT NULL,
			created_at  TEXT    NOT NULL DEFAULT (datetime('now')),
			restored_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_deletions_node ON deletions(node_id, restored_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// nullable maps the empty parent id to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func conflict(err error) error {
	return fmt.Errorf("%w: %w", ErrConflict, err)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}
