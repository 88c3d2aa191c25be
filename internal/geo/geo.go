// Package geo enriches validated coordinates with a computed geohash.
package geo

import (
	"context"
	"fmt"

	"github.com/mmcloughlin/geohash"

	"github.com/roach88/eventbook/internal/record"
)

// Precision is the stored geohash length in characters. Nine characters
// resolves to roughly a five-meter cell, enough to pin a venue.
const Precision = 9

// Enricher implements provision.GeoEnricher.
type Enricher struct{}

// New returns the default enricher.
func New() *Enricher {
	return &Enricher{}
}

// Enrich computes the geohash for a coordinate pair. Geo without
// coordinates passes through unchanged. Out-of-range coordinates are an
// error; callers degrade to the raw geo rather than fail the request.
func (e *Enricher) Enrich(ctx context.Context, g record.Geo) (record.Geo, error) {
	if !g.HasCoords() {
		return g, nil
	}
	if g.Latitude < -90 || g.Latitude > 90 || g.Longitude < -180 || g.Longitude > 180 {
		return g, fmt.Errorf("coordinates (%v, %v) out of range", g.Latitude, g.Longitude)
	}
	g.Geohash = geohash.EncodeWithPrecision(g.Latitude, g.Longitude, Precision)
	return g, nil
}
