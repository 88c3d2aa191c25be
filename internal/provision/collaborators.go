package provision

import (
	"context"

	"github.com/roach88/eventbook/internal/record"
)

// Metadata is the identity block written into a freshly materialized
// workbook. Links are the derived URLs at creation time; the record's
// own links are persisted later by the state machine.
type Metadata struct {
	EventID   string
	Name      string
	Slug      string
	StartDate string
	Tag       string
	Links     record.Links
}

// ResourceFactory materializes, seeds and disposes of child resources.
// Implemented by workbook.Factory (production) and test fakes.
//
// Trash must be best-effort idempotent: trashing a ref twice, or a ref
// whose resource is already gone, is not an error.
type ResourceFactory interface {
	Materialize(ctx context.Context, title string) (record.ResourceRef, error)
	Seed(ctx context.Context, ref record.ResourceRef) error
	WriteMetadata(ctx context.Context, ref record.ResourceRef, meta Metadata) error
	Exists(ctx context.Context, ref record.ResourceRef) (bool, error)
	Trash(ctx context.Context, ref record.ResourceRef) error
}

// LinkGenerator derives the admin/public/display URLs for an event ID.
// Pure: same ID, same links. Implemented by links.Generator.
type LinkGenerator interface {
	LinksFor(id string) record.Links
}

// GeoEnricher augments validated coordinates (geohash, reverse geocoding
// if ever wired). Failure never blocks provisioning; callers degrade to
// the unenriched geo with a warning. Implemented by geo.Enricher.
type GeoEnricher interface {
	Enrich(ctx context.Context, g record.Geo) (record.Geo, error)
}

// Index is the store surface the provisioner and state machine mutate.
// *store.Store satisfies it; tests substitute fakes to force failures
// at exact points in the sequence.
type Index interface {
	FindByNaturalKey(ctx context.Context, slug, startDate string) (record.EventRecord, bool, error)
	ReadRecordByKey(ctx context.Context, key string) (record.EventRecord, error)
	InsertRecord(ctx context.Context, rec record.EventRecord) (bool, error)
	SetResource(ctx context.Context, id string, ref record.ResourceRef) error
	SetLinks(ctx context.Context, id string, links record.Links) error
	SetStatus(ctx context.Context, id string, status record.Status, detail string) error
	ReadSetting(ctx context.Context, key string) (string, error)
}

// Invalidator is the cache seam. index.Cache satisfies it.
type Invalidator interface {
	Invalidate()
}
