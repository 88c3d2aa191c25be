package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// DomainIndex is the domain prefix for index ETag computation. The
// version suffix enables future projection changes without silently
// colliding with old ETags.
const DomainIndex = "eventbook/index/v1"

// IndexEntry is the canonical projection of one record: the fixed,
// order-stable subset of fields the ETag is computed over. Volatile
// display fields (URLs, geo, venue text) and storage counters are
// deliberately excluded so that enrichment never churns the ETag of an
// otherwise unchanged index.
type IndexEntry struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	StartDate  string `json:"start_date"`
	Tag        string `json:"tag"`
	Status     Status `json:"status"`
	IsDefault  bool   `json:"is_default"`
	ResourceID string `json:"resource_id"`
}

// Project selects and orders the index projection from records. Order is
// start_date ASC, slug ASC, id ASC - a stable total order independent of
// storage iteration order.
func Project(records []EventRecord) []IndexEntry {
	entries := make([]IndexEntry, len(records))
	for i, r := range records {
		entries[i] = IndexEntry{
			ID:         r.ID,
			Slug:       r.Slug,
			Name:       r.Name,
			StartDate:  r.StartDate,
			Tag:        r.Tag,
			Status:     r.Status,
			IsDefault:  r.IsDefault,
			ResourceID: r.Resource.ID,
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.StartDate != b.StartDate {
			return a.StartDate < b.StartDate
		}
		if a.Slug != b.Slug {
			return a.Slug < b.Slug
		}
		return a.ID < b.ID
	})
	return entries
}

// IndexETag computes the content hash of a projection:
// SHA-256(domain + 0x00 + canonicalJSON(entries)), hex encoded.
// Identical projections always yield identical ETags; any insert, update
// or delete that touches a projected field changes it.
func IndexETag(entries []IndexEntry) (string, error) {
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = map[string]any{
			"id":          e.ID,
			"slug":        e.Slug,
			"name":        e.Name,
			"start_date":  e.StartDate,
			"tag":         e.Tag,
			"status":      string(e.Status),
			"is_default":  e.IsDefault,
			"resource_id": e.ResourceID,
		}
	}

	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("IndexETag: failed to marshal projection: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainIndex))
	h.Write([]byte{0x00}) // null separator prevents domain/data ambiguity
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustIndexETag is like IndexETag but panics on error. Use only in tests
// or when inputs are known to be valid.
func MustIndexETag(entries []IndexEntry) string {
	etag, err := IndexETag(entries)
	if err != nil {
		panic(err)
	}
	return etag
}
