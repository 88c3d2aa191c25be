package provision

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eventbook/internal/guard"
	"github.com/roach88/eventbook/internal/index"
	"github.com/roach88/eventbook/internal/record"
	"github.com/roach88/eventbook/internal/schema"
	"github.com/roach88/eventbook/internal/store"
)

// testNow anchors the clock so 2025 dates stay inside the date window.
var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// newTestStore opens an initialized control store in a temp dir.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	spec, err := schema.DefaultSpec()
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(t.TempDir(), "control.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Initialize(context.Background(), spec))
	return s
}

// fakeFactory is an in-memory ResourceFactory that tracks the lifecycle
// of every child it hands out.
type fakeFactory struct {
	mu       sync.Mutex
	nextID   int
	alive    map[string]bool
	seeded   map[string]bool
	metadata map[string]Metadata

	failMaterialize error
	failSeed        error
	failMetadata    error
	failTrash       error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		alive:    make(map[string]bool),
		seeded:   make(map[string]bool),
		metadata: make(map[string]Metadata),
	}
}

func (f *fakeFactory) Materialize(ctx context.Context, title string) (record.ResourceRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failMaterialize != nil {
		return record.ResourceRef{}, f.failMaterialize
	}
	f.nextID++
	id := fmt.Sprintf("wb-%d", f.nextID)
	f.alive[id] = true
	return record.ResourceRef{ID: id, Addr: "workbooks/" + id + ".db"}, nil
}

func (f *fakeFactory) Seed(ctx context.Context, ref record.ResourceRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSeed != nil {
		return f.failSeed
	}
	if !f.alive[ref.ID] {
		return fmt.Errorf("seed: no such resource %s", ref.ID)
	}
	f.seeded[ref.ID] = true
	return nil
}

func (f *fakeFactory) WriteMetadata(ctx context.Context, ref record.ResourceRef, meta Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failMetadata != nil {
		return f.failMetadata
	}
	if !f.alive[ref.ID] {
		return fmt.Errorf("metadata: no such resource %s", ref.ID)
	}
	f.metadata[ref.ID] = meta
	return nil
}

func (f *fakeFactory) Exists(ctx context.Context, ref record.ResourceRef) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[ref.ID], nil
}

func (f *fakeFactory) Trash(ctx context.Context, ref record.ResourceRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failTrash != nil {
		return f.failTrash
	}
	delete(f.alive, ref.ID)
	return nil
}

// aliveCount returns how many children currently exist.
func (f *fakeFactory) aliveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alive)
}

// adopt registers a pre-existing child, as an import would.
func (f *fakeFactory) adopt(refID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[refID] = true
}

// stubLinks derives links from a base URL; an empty base yields empty
// links (unconfigured deployment).
type stubLinks struct {
	base string
}

func (l stubLinks) LinksFor(id string) record.Links {
	if l.base == "" {
		return record.Links{}
	}
	return record.Links{
		Admin:   l.base + "/admin/" + id,
		Public:  l.base + "/e/" + id,
		Display: l.base + "/d/" + id,
	}
}

// stubGeo stamps a fixed geohash, or fails on demand.
type stubGeo struct {
	fail error
}

func (g stubGeo) Enrich(ctx context.Context, in record.Geo) (record.Geo, error) {
	if g.fail != nil {
		return record.Geo{}, g.fail
	}
	in.Geohash = "test-hash"
	return in, nil
}

// failingIndex wraps a real Index and forces chosen operations to fail.
type failingIndex struct {
	Index
	failInsert      error
	failSetResource error
	failSetLinks    error
}

func (f *failingIndex) InsertRecord(ctx context.Context, rec record.EventRecord) (bool, error) {
	if f.failInsert != nil {
		return false, f.failInsert
	}
	return f.Index.InsertRecord(ctx, rec)
}

func (f *failingIndex) SetResource(ctx context.Context, id string, ref record.ResourceRef) error {
	if f.failSetResource != nil {
		return f.failSetResource
	}
	return f.Index.SetResource(ctx, id, ref)
}

func (f *failingIndex) SetLinks(ctx context.Context, id string, links record.Links) error {
	if f.failSetLinks != nil {
		return f.failSetLinks
	}
	return f.Index.SetLinks(ctx, id, links)
}

// fixture bundles a provisioner with its collaborators for inspection.
type fixture struct {
	store   *store.Store
	index   Index
	factory *fakeFactory
	cache   *index.Cache
	prov    *Provisioner
}

type fixtureOption func(*fixture, *[]Option)

// withFailures wraps the real store in a failingIndex; mutate flips the
// failure switches before the provisioner is built.
func withFailures(mutate func(*failingIndex)) fixtureOption {
	return func(f *fixture, _ *[]Option) {
		fi := &failingIndex{Index: f.index}
		mutate(fi)
		f.index = fi
	}
}

func withOptions(opts ...Option) fixtureOption {
	return func(_ *fixture, dst *[]Option) {
		*dst = append(*dst, opts...)
	}
}

// newFixture wires a provisioner over a real store, a real guard and a
// real cache, with deterministic IDs and clock.
func newFixture(t *testing.T, fopts ...fixtureOption) *fixture {
	t.Helper()

	s := newTestStore(t)
	f := &fixture{
		store:   s,
		index:   s,
		factory: newFakeFactory(),
		cache:   index.NewCache(s),
	}
	opts := []Option{
		WithIDGenerator(NewFixedIDs(
			"aaaaaaaa-0000-4000-8000-000000000001",
			"bbbbbbbb-0000-4000-8000-000000000002",
			"cccccccc-0000-4000-8000-000000000003",
		)),
		WithClock(fixedNow),
	}
	for _, fo := range fopts {
		fo(f, &opts)
	}

	f.prov = New(f.index, f.cache, guard.New(), f.factory, stubLinks{base: "https://events.test"}, opts...)
	return f
}

// mustRecord reads a record by key and fails the test if absent.
func (f *fixture) mustRecord(t *testing.T, key string) record.EventRecord {
	t.Helper()
	rec, err := f.store.ReadRecordByKey(context.Background(), key)
	require.NoError(t, err)
	return rec
}

// recordCount returns how many rows the index holds.
func (f *fixture) recordCount(t *testing.T) int {
	t.Helper()
	records, err := f.store.ListRecords(context.Background())
	require.NoError(t, err)
	return len(records)
}

// insertRaw writes a record directly, bypassing the provisioner, the
// way an import or recovery would.
func (f *fixture) insertRaw(t *testing.T, rec record.EventRecord) {
	t.Helper()
	inserted, err := f.store.InsertRecord(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, inserted)
}
