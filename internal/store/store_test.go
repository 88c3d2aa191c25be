package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_DoesNotCreateTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	names, err := s.TableNames(context.Background())
	if err != nil {
		t.Fatalf("TableNames() failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Open() created tables %v, want none", names)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open in non-existent directory
	path := "/nonexistent/dir/test.db"

	_, err := Open(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	checks := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, expected := range checks {
		if err := s.verifyPragma(name, expected); err != nil {
			t.Errorf("pragma check failed: %v", err)
		}
	}
}

func TestInitialize_CreatesTablesInOrder(t *testing.T) {
	s := createTestStore(t)

	names, err := s.TableNames(context.Background())
	if err != nil {
		t.Fatalf("TableNames() failed: %v", err)
	}

	want := []string{"events", "meta", "settings"}
	if len(names) != len(want) {
		t.Fatalf("got tables %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("table %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestInitialize_CreatesColumnsInOrder(t *testing.T) {
	s := createTestStore(t)

	cols, err := s.TableColumns(context.Background(), "events")
	if err != nil {
		t.Fatalf("TableColumns() failed: %v", err)
	}

	want := testSpec().Tables[0].ColumnNames()
	if len(cols) != len(want) {
		t.Fatalf("got %d columns, want %d: %v", len(cols), len(want), cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, cols[i], want[i])
		}
	}
}

func TestInitialize_SeedsRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	version, err := s.ReadMeta(ctx, "schema_version")
	if err != nil {
		t.Fatalf("ReadMeta() failed: %v", err)
	}
	if version != "1" {
		t.Errorf("schema_version = %q, want %q", version, "1")
	}

	kind, err := s.ReadMeta(ctx, "store_kind")
	if err != nil {
		t.Fatalf("ReadMeta() failed: %v", err)
	}
	if kind != "eventbook-control" {
		t.Errorf("store_kind = %q, want %q", kind, "eventbook-control")
	}

	mode, err := s.ReadSetting(ctx, "default_seed_mode")
	if err != nil {
		t.Fatalf("ReadSetting() failed: %v", err)
	}
	if mode != "random" {
		t.Errorf("default_seed_mode = %q, want %q", mode, "random")
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	// Initialize multiple times across reopens
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		if err := s.Initialize(ctx, testSpec()); err != nil {
			t.Fatalf("Initialize() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	names, err := s.TableNames(ctx)
	if err != nil {
		t.Fatalf("TableNames() failed: %v", err)
	}
	if len(names) != 3 {
		t.Errorf("got tables %v after repeated initialization, want 3", names)
	}
}

func TestInitialize_DoesNotClobberChangedSeeds(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Operator changes a seeded setting
	if _, err := s.db.ExecContext(ctx,
		"UPDATE settings SET value = 'seeded' WHERE key = 'default_seed_mode'",
	); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if err := s.Initialize(ctx, testSpec()); err != nil {
		t.Fatalf("re-Initialize() failed: %v", err)
	}

	mode, err := s.ReadSetting(ctx, "default_seed_mode")
	if err != nil {
		t.Fatalf("ReadSetting() failed: %v", err)
	}
	if mode != "seeded" {
		t.Errorf("default_seed_mode = %q after re-initialize, want %q", mode, "seeded")
	}
}

func TestInitialize_StampsSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	version, err := s.UserVersion(context.Background())
	if err != nil {
		t.Fatalf("UserVersion() failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigrate_AddsNaturalKeyIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Simulate a pre-v1 store: events table without the unique index
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE events (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		t.Fatalf("create legacy table failed: %v", err)
	}

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'index' AND name = 'idx_events_slug_start_date'
	`).Scan(&count)
	if err != nil {
		t.Fatalf("index query failed: %v", err)
	}
	if count != 1 {
		t.Error("natural key index was not created")
	}

	version, err := s.UserVersion(ctx)
	if err != nil {
		t.Fatalf("UserVersion() failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d after migrate, want %d", version, currentSchemaVersion)
	}
}

func TestMigrate_NoEventsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Migrating an empty store stamps the version and creates nothing
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() on empty store failed: %v", err)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	// First close should succeed
	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}

	// Second close should not panic (though may error)
	_ = s.Close()
}
