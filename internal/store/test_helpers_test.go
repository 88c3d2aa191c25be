package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/eventbook/internal/record"
)

// testSpec returns a store spec with the default table shape. Kept local
// so store tests don't depend on the CUE compiler.
func testSpec() record.StoreSpec {
	return record.StoreSpec{Tables: []record.TableSpec{
		{
			Name: "events",
			Columns: []record.Column{
				{Name: "id"}, {Name: "name"}, {Name: "slug"}, {Name: "start_date"},
				{Name: "tag"}, {Name: "status"}, {Name: "status_detail"},
				{Name: "is_default", Type: "integer"},
				{Name: "seed_mode"}, {Name: "elim_type"},
				{Name: "resource_id"}, {Name: "resource_addr"},
				{Name: "admin_url"}, {Name: "public_url"}, {Name: "display_url"},
				{Name: "latitude", Type: "real"}, {Name: "longitude", Type: "real"},
				{Name: "geohash"}, {Name: "venue"}, {Name: "city"}, {Name: "state"},
				{Name: "country"},
				{Name: "created_seq", Type: "integer"},
			},
			Unique: []string{"slug", "start_date"},
		},
		{
			Name:    "meta",
			Columns: []record.Column{{Name: "key"}, {Name: "value"}},
			Seeds: [][]string{
				{"schema_version", "1"},
				{"store_kind", "eventbook-control"},
			},
		},
		{
			Name:    "settings",
			Columns: []record.Column{{Name: "key"}, {Name: "value"}},
			Seeds: [][]string{
				{"default_seed_mode", "random"},
				{"default_elim_type", "single"},
			},
		},
	}}
}

// createTestStore creates an initialized store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Initialize(context.Background(), testSpec()); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	return s
}

// createTestRecord creates a test record with minimal required fields.
func createTestRecord(id, name, slug, startDate string) record.EventRecord {
	return record.EventRecord{
		ID:        id,
		Name:      name,
		Slug:      slug,
		StartDate: startDate,
		Tag:       slug + "-" + id,
		Status:    record.StatusWorkbookReady,
		SeedMode:  record.SeedRandom,
		ElimType:  record.ElimSingle,
	}
}
