// Package index answers conditional reads of the event index.
//
// There is no stored cache to go stale: every read recomputes the
// projection and its ETag from the source of truth, and the conditional
// part is just an equality check against the caller's ETag. Invalidate
// exists for observability - correctness never depends on it.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/eventbook/internal/record"
)

// Read outcomes.
const (
	StatusFresh       = "fresh"
	StatusNotModified = "notModified"
)

// Lister is the slice of the store the cache reads from.
type Lister interface {
	ListRecords(ctx context.Context) ([]record.EventRecord, error)
}

// Result is one conditional read.
//
// Items is never nil: a notModified result carries an empty slice, and
// callers may rely on that.
type Result struct {
	Status string
	Etag   string
	Items  []record.IndexEntry
}

// Cache serves the event index with ETag-based conditional reads.
type Cache struct {
	source Lister
	gen    atomic.Int64
}

// NewCache creates a cache over the given source.
func NewCache(source Lister) *Cache {
	return &Cache{source: source}
}

// Read recomputes the index and compares its ETag against the client's.
// A match yields notModified with empty Items; anything else yields the
// full fresh projection. The client ETag is opaque - a stale or garbage
// value misses and gets the fresh projection.
func (c *Cache) Read(ctx context.Context, clientEtag string) (Result, error) {
	records, err := c.source.ListRecords(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read index: %w", err)
	}

	entries := record.Project(records)
	etag, err := record.IndexETag(entries)
	if err != nil {
		return Result{}, fmt.Errorf("read index: %w", err)
	}

	if clientEtag == etag {
		slog.Debug("index read", "status", StatusNotModified, "generation", c.Generation())
		return Result{
			Status: StatusNotModified,
			Etag:   etag,
			Items:  []record.IndexEntry{},
		}, nil
	}

	slog.Debug("index read", "status", StatusFresh, "items", len(entries), "generation", c.Generation())
	return Result{
		Status: StatusFresh,
		Etag:   etag,
		Items:  entries,
	}, nil
}

// Invalidate bumps the generation counter. It is advisory: mutations call
// it so operators can correlate index churn with writes, but reads do not
// consult it.
func (c *Cache) Invalidate() {
	c.gen.Add(1)
}

// Generation returns the number of invalidations since construction.
func (c *Cache) Generation() int64 {
	return c.gen.Load()
}
