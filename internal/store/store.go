package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/eventbook/internal/record"
)

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added UNIQUE index on events(slug, start_date)
const currentSchemaVersion = 1

// Store provides durable storage for the event index.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database at the given path and applies required
// pragmas. It does NOT create tables: the reconciler decides whether a
// store is fresh, valid or corrupt, so schema application is a separate,
// explicit step (Initialize).
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool for SQLite
	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	// Apply required pragmas
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{db: db}, nil
}

// Initialize creates the tables, indexes and seed rows described by spec,
// then runs migrations and stamps the schema version. All statements are
// idempotent (IF NOT EXISTS / ON CONFLICT DO NOTHING), so initializing an
// already-initialized store is a no-op.
func (s *Store) Initialize(ctx context.Context, spec record.StoreSpec) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("initialize: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, table := range spec.Tables {
		if _, err := tx.ExecContext(ctx, createTableSQL(table)); err != nil {
			return fmt.Errorf("initialize: create table %s: %w", table.Name, err)
		}

		if idx := createUniqueIndexSQL(table); idx != "" {
			if _, err := tx.ExecContext(ctx, idx); err != nil {
				return fmt.Errorf("initialize: index table %s: %w", table.Name, err)
			}
		}

		for _, seed := range table.Seeds {
			if len(seed) != len(table.Columns) {
				return fmt.Errorf("initialize: seed row for %s has %d values, want %d",
					table.Name, len(seed), len(table.Columns))
			}
			args := make([]any, len(seed))
			for i, v := range seed {
				args[i] = v
			}
			if _, err := tx.ExecContext(ctx, seedInsertSQL(table), args...); err != nil {
				return fmt.Errorf("initialize: seed table %s: %w", table.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("initialize: commit: %w", err)
	}

	return s.Migrate(ctx)
}

// Migrate applies incremental schema migrations based on user_version.
// Called from Initialize for new stores and by the reconciler when
// adopting an existing store that may predate the current version.
func (s *Store) Migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// Apply migrations sequentially
	if version < 1 {
		if err := s.migrateToV1(ctx); err != nil {
			return err
		}
		version = 1
	}

	// Set version after all migrations
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the UNIQUE index on events(slug, start_date) for
// existing databases. New databases get this from the StoreSpec unique
// declaration, but stores created before v1 need the index added
// explicitly. Skipped when the store has no events table (custom specs).
func (s *Store) migrateToV1(ctx context.Context) error {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='events'",
	).Scan(&name)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}

	// CREATE UNIQUE INDEX IF NOT EXISTS is safe - no-op if index exists.
	// Name matches what Initialize generates from the default spec so the
	// two paths converge on one index.
	_, err = s.db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS "idx_events_slug_start_date"
		ON events(slug, start_date)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
