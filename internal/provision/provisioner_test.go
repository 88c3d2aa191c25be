package provision

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventbook/internal/fault"
	"github.com/roach88/eventbook/internal/record"
)

// TestProvision_CreatesRecord tests the full happy path.
func TestProvision_CreatesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.prov.Provision(ctx, Params{Name: "Fall League", StartDate: "2025-10-01"})
	require.NoError(t, err)

	assert.Equal(t, "aaaaaaaa-0000-4000-8000-000000000001", res.ID)
	assert.Equal(t, "fall-league", res.Slug)
	assert.Equal(t, "fall-league-20251001-aaaaaaaa", res.Tag)
	assert.False(t, res.Idempotent)
	assert.Equal(t, fault.PhaseDone, res.Phase)
	assert.Empty(t, res.Warnings)
	require.False(t, res.Resource.IsZero())

	// The record landed with the child already materialized
	rec := f.mustRecord(t, res.ID)
	assert.Equal(t, record.StatusWorkbookReady, rec.Status)
	assert.Equal(t, res.Resource, rec.Resource)
	assert.Equal(t, record.SeedRandom, rec.SeedMode)
	assert.Equal(t, record.ElimSingle, rec.ElimType)

	// The child was seeded and stamped
	assert.Equal(t, 1, f.factory.aliveCount())
	assert.True(t, f.factory.seeded[res.Resource.ID])
	meta := f.factory.metadata[res.Resource.ID]
	assert.Equal(t, res.ID, meta.EventID)
	assert.Equal(t, "Fall League", meta.Name)
	assert.Equal(t, res.Tag, meta.Tag)
	assert.Equal(t, "https://events.test/admin/"+res.ID, meta.Links.Admin)

	// One mutation, one invalidation
	assert.EqualValues(t, 1, f.cache.Generation())
}

// TestProvision_Idempotent tests the double-provision contract.
func TestProvision_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.prov.Provision(ctx, Params{Name: "Tech Meetup", StartDate: "2025-06-01"})
	require.NoError(t, err)
	require.False(t, first.Idempotent)

	second, err := f.prov.Provision(ctx, Params{Name: "Tech Meetup", StartDate: "2025-06-01"})
	require.NoError(t, err)

	assert.True(t, second.Idempotent)
	assert.Equal(t, fault.PhaseExists, second.Phase)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Tag, second.Tag)
	assert.Equal(t, first.Resource, second.Resource)

	// Child storage untouched on the hit
	assert.Equal(t, 1, f.factory.aliveCount())
	assert.Equal(t, 1, f.recordCount(t))
	assert.EqualValues(t, 1, f.cache.Generation())
}

// TestProvision_IdempotentAcrossNameForms tests that normalization, not
// the raw name, defines the natural key.
func TestProvision_IdempotentAcrossNameForms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.prov.Provision(ctx, Params{Name: "Fall League", StartDate: "2025-10-01"})
	require.NoError(t, err)

	second, err := f.prov.Provision(ctx, Params{Name: "  FALL   league!! ", StartDate: "2025-10-01"})
	require.NoError(t, err)

	assert.True(t, second.Idempotent)
	assert.Equal(t, first.ID, second.ID)
}

// TestProvision_DistinctDates tests that the same slug on different
// dates provisions two events.
func TestProvision_DistinctDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.prov.Provision(ctx, Params{Name: "Fall League", StartDate: "2025-10-01"})
	require.NoError(t, err)
	second, err := f.prov.Provision(ctx, Params{Name: "Fall League", StartDate: "2026-10-01"})
	require.NoError(t, err)

	assert.False(t, second.Idempotent)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.recordCount(t))
	assert.Equal(t, 2, f.factory.aliveCount())
}

// TestProvision_ValidationFailsFast tests that bad input causes no side
// effects at all.
func TestProvision_ValidationFailsFast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.prov.Provision(ctx, Params{Name: "<script>alert(1)</script>", StartDate: "2025-10-01"})
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))

	ft, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, fault.PhaseValidate, ft.Phase)

	assert.Equal(t, 0, f.factory.aliveCount(), "no child may be materialized")
	assert.Equal(t, 0, f.recordCount(t), "no record may be written")
	assert.EqualValues(t, 0, f.cache.Generation())
}

// TestProvision_RollbackOnRecordFailure forces an index failure after
// materialization and expects the child to be trashed.
func TestProvision_RollbackOnRecordFailure(t *testing.T) {
	boom := errors.New("index write refused")
	f := newFixture(t, withFailures(func(fi *failingIndex) {
		fi.failInsert = boom
	}))
	ctx := context.Background()

	_, err := f.prov.Provision(ctx, Params{Name: "Fall League", StartDate: "2025-10-01"})
	require.Error(t, err)
	assert.True(t, fault.IsProvisioning(err))
	assert.ErrorIs(t, err, boom)

	ft, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, fault.PhaseRecord, ft.Phase)

	// The child is gone and the index is clean
	assert.Equal(t, 0, f.factory.aliveCount(), "orphaned child must be trashed")
	assert.Equal(t, 0, f.recordCount(t), "no partial record may remain")
	assert.EqualValues(t, 0, f.cache.Generation())
}

// TestProvision_RollbackOnSeedFailure tests rollback for a failure
// between materialize and insert.
func TestProvision_RollbackOnSeedFailure(t *testing.T) {
	f := newFixture(t)
	f.factory.failSeed = errors.New("template busted")
	ctx := context.Background()

	_, err := f.prov.Provision(ctx, Params{Name: "Fall League", StartDate: "2025-10-01"})
	require.Error(t, err)

	ft, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, fault.PhaseSeed, ft.Phase)

	assert.Equal(t, 0, f.factory.aliveCount())
	assert.Equal(t, 0, f.recordCount(t))
}

// TestProvision_MetadataFailureRollsBack tests the same for the
// metadata step.
func TestProvision_MetadataFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.factory.failMetadata = errors.New("metadata sheet locked")
	ctx := context.Background()

	_, err := f.prov.Provision(ctx, Params{Name: "Fall League", StartDate: "2025-10-01"})
	require.Error(t, err)

	ft, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, fault.PhaseMetadata, ft.Phase)
	assert.Equal(t, 0, f.factory.aliveCount())
}

// TestProvision_MaterializeFailure tests the earliest failure: nothing
// to roll back.
func TestProvision_MaterializeFailure(t *testing.T) {
	f := newFixture(t)
	f.factory.failMaterialize = errors.New("template missing")
	ctx := context.Background()

	_, err := f.prov.Provision(ctx, Params{Name: "Fall League", StartDate: "2025-10-01"})
	require.Error(t, err)

	ft, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, fault.PhaseMaterialize, ft.Phase)
	assert.Equal(t, 0, f.recordCount(t))
}

// TestProvision_TrashFailureKeepsOriginalFault tests that a secondary
// rollback failure never masks the cause.
func TestProvision_TrashFailureKeepsOriginalFault(t *testing.T) {
	seedErr := errors.New("template busted")
	f := newFixture(t)
	f.factory.failSeed = seedErr
	f.factory.failTrash = errors.New("trash jammed")
	ctx := context.Background()

	_, err := f.prov.Provision(ctx, Params{Name: "Fall League", StartDate: "2025-10-01"})
	require.Error(t, err)
	assert.ErrorIs(t, err, seedErr, "the original fault must propagate, not the trash failure")

	// The orphan is still there; the log is the only trace
	assert.Equal(t, 1, f.factory.aliveCount())
}

// TestProvision_GeoDegrades tests out-of-range geo becoming a warning.
func TestProvision_GeoDegrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.prov.Provision(ctx, Params{
		Name:      "Fall League",
		StartDate: "2025-10-01",
		Geo:       &record.Geo{Latitude: 95, Longitude: 10},
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "geo ignored")

	rec := f.mustRecord(t, res.ID)
	assert.False(t, rec.Geo.HasCoords())
}

// TestProvision_GeoEnrichment tests that a valid geo is enriched.
func TestProvision_GeoEnrichment(t *testing.T) {
	f := newFixture(t, withOptions(WithGeoEnricher(stubGeo{})))
	ctx := context.Background()

	res, err := f.prov.Provision(ctx, Params{
		Name:      "Fall League",
		StartDate: "2025-10-01",
		Geo:       &record.Geo{Latitude: 40.015, Longitude: -105.27},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	rec := f.mustRecord(t, res.ID)
	assert.Equal(t, "test-hash", rec.Geo.Geohash)
	assert.Equal(t, 40.015, rec.Geo.Latitude)
}

// TestProvision_GeoEnricherFailureWarns tests that enrichment failure
// never blocks provisioning.
func TestProvision_GeoEnricherFailureWarns(t *testing.T) {
	f := newFixture(t, withOptions(WithGeoEnricher(stubGeo{fail: errors.New("geocoder down")})))
	ctx := context.Background()

	res, err := f.prov.Provision(ctx, Params{
		Name:      "Fall League",
		StartDate: "2025-10-01",
		Geo:       &record.Geo{Latitude: 40.015, Longitude: -105.27},
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)

	// The raw validated coordinates survive, just unenriched
	rec := f.mustRecord(t, res.ID)
	assert.Equal(t, 40.015, rec.Geo.Latitude)
	assert.Empty(t, rec.Geo.Geohash)
}

// TestProvision_ConcurrentSameKey tests lock serialization: one create,
// one idempotent hit, never two records.
func TestProvision_ConcurrentSameKey(t *testing.T) {
	f := newFixture(t)
	params := Params{Name: "Fall League", StartDate: "2025-10-01"}

	results := make([]Result, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.prov.Provision(context.Background(), params)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	created := 0
	for _, r := range results {
		if !r.Idempotent {
			created++
		}
	}
	assert.Equal(t, 1, created, "exactly one call may create")
	assert.Equal(t, results[0].ID, results[1].ID)
	assert.Equal(t, 1, f.recordCount(t))
	assert.Equal(t, 1, f.factory.aliveCount())
}

// TestProvision_ConcurrentDistinctKeys tests that unrelated events
// provision concurrently without interference.
func TestProvision_ConcurrentDistinctKeys(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	paramsA := Params{Name: "Fall League", StartDate: "2025-10-01"}
	paramsB := Params{Name: "Spring Open", StartDate: "2025-04-01"}
	for i, params := range []Params{paramsA, paramsB} {
		wg.Add(1)
		go func(i int, params Params) {
			defer wg.Done()
			_, errs[i] = f.prov.Provision(context.Background(), params)
		}(i, params)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 2, f.recordCount(t))
	assert.Equal(t, 2, f.factory.aliveCount())

	records, err := f.store.ListRecords(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, records[0].ID, records[1].ID)
}
