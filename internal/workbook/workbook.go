// Package workbook materializes per-event resource files.
//
// Each event gets its own SQLite workbook created from an embedded
// template. The control store records only the ResourceRef; everything
// event-local (roster, schedule, standings, metadata) lives in the
// workbook file. Factory implements provision.ResourceFactory.
package workbook

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/eventbook/internal/provision"
	"github.com/roach88/eventbook/internal/record"
)

//go:embed template.sql
var templateSQL string

// trashDirName is where trashed workbooks are moved, under the factory
// directory. Files are renamed, never deleted.
const trashDirName = "trash"

// Factory creates per-event SQLite workbooks from the embedded template.
type Factory struct {
	dir string
	ids provision.IDGenerator
}

var _ provision.ResourceFactory = (*Factory)(nil)

// Option configures a Factory.
type Option func(*Factory)

// WithIDGenerator replaces the workbook ID source.
// Tests use a deterministic sequence.
func WithIDGenerator(gen provision.IDGenerator) Option {
	return func(f *Factory) {
		if gen != nil {
			f.ids = gen
		}
	}
}

// New returns a Factory that stores workbooks under dir.
// The directory is created lazily on first materialize.
func New(dir string, opts ...Option) *Factory {
	f := &Factory{
		dir: dir,
		ids: provision.UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Materialize creates a fresh workbook from the template and records
// the title in its meta table. The returned ref carries the workbook ID
// and the absolute file path.
func (f *Factory) Materialize(ctx context.Context, title string) (record.ResourceRef, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return record.ResourceRef{}, fmt.Errorf("create workbook dir: %w", err)
	}

	id := f.ids.NewID()
	path, err := filepath.Abs(filepath.Join(f.dir, id+".db"))
	if err != nil {
		return record.ResourceRef{}, fmt.Errorf("resolve workbook path: %w", err)
	}

	// Claim the name exclusively. A duplicate ID must fail here, not
	// silently reuse another event's workbook.
	claim, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return record.ResourceRef{}, fmt.Errorf("claim workbook file: %w", err)
	}
	claim.Close()

	db, err := open(path)
	if err != nil {
		os.Remove(path)
		return record.ResourceRef{}, err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, templateSQL); err != nil {
		os.Remove(path)
		return record.ResourceRef{}, fmt.Errorf("apply workbook template: %w", err)
	}
	if err := upsertMeta(ctx, db, metaTitle, title); err != nil {
		os.Remove(path)
		return record.ResourceRef{}, err
	}

	slog.Debug("workbook materialized", "resource_id", id, "path", path)
	return record.ResourceRef{ID: id, Addr: path}, nil
}

// Exists reports whether the referenced workbook is present and usable.
// A file that exists but has no meta table is not a workbook.
func (f *Factory) Exists(ctx context.Context, ref record.ResourceRef) (bool, error) {
	if ref.IsZero() {
		return false, nil
	}
	path := f.path(ref)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("probe workbook %s: %w", ref.ID, err)
	}

	db, err := open(path)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var name string
	err = db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'meta'`,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe workbook %s: %w", ref.ID, err)
	}
	return true, nil
}

// Trash moves a workbook into the trash/ subdirectory. Idempotent: a
// ref whose file is already gone is not an error.
func (f *Factory) Trash(ctx context.Context, ref record.ResourceRef) error {
	if ref.IsZero() {
		return nil
	}
	path := f.path(ref)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	trashDir := filepath.Join(f.dir, trashDirName)
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return fmt.Errorf("create trash dir: %w", err)
	}
	dest := filepath.Join(trashDir, fmt.Sprintf("%s.%d", filepath.Base(path), time.Now().Unix()))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("trash workbook %s: %w", ref.ID, err)
	}

	slog.Info("workbook trashed", "resource_id", ref.ID, "dest", dest)
	return nil
}

// path resolves a ref to a file path. Refs materialized by this factory
// carry an absolute Addr; imported refs may carry only an ID.
func (f *Factory) path(ref record.ResourceRef) string {
	if ref.Addr != "" {
		return ref.Addr
	}
	return filepath.Join(f.dir, ref.ID+".db")
}

// openExisting opens a workbook that must already exist. The sqlite3
// driver creates missing files on open, which would turn a dangling ref
// into an empty database, so presence is checked first.
func (f *Factory) openExisting(ref record.ResourceRef) (*sql.DB, error) {
	path := f.path(ref)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("workbook %s: %w", ref.ID, err)
	}
	return open(path)
}

// open opens a workbook file with the standard pragmas. Workbooks stay
// in rollback-journal mode; a workbook must remain a single file so
// Trash can move it in one rename.
func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply workbook pragmas: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply workbook pragmas: %w", err)
	}
	return db, nil
}
