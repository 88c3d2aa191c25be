package harness

import (
	"context"
	"net/http"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/eventbook/internal/record"
)

// Snapshot captures a finished scenario for golden comparison: the
// transcript plus the final index projection. ETags are deliberately
// absent; they embed a content hash and belong to runtime assertions.
type Snapshot struct {
	Scenario   string              `json:"scenario"`
	Transcript []StepOutcome       `json:"transcript"`
	Index      []record.IndexEntry `json:"index"`
}

// toCanonicalMap converts a Snapshot to plain maps for canonical JSON
// serialization. Zero-valued outcome fields are dropped; index entries
// keep their full fixed shape.
func (s *Snapshot) toCanonicalMap() map[string]any {
	transcript := make([]any, len(s.Transcript))
	for i, outcome := range s.Transcript {
		transcript[i] = outcomeMap(outcome)
	}

	index := make([]any, len(s.Index))
	for i, item := range s.Index {
		index[i] = map[string]any{
			"id":          item.ID,
			"slug":        item.Slug,
			"name":        item.Name,
			"start_date":  item.StartDate,
			"tag":         item.Tag,
			"status":      string(item.Status),
			"is_default":  item.IsDefault,
			"resource_id": item.ResourceID,
		}
	}

	return map[string]any{
		"scenario":   s.Scenario,
		"transcript": transcript,
		"index":      index,
	}
}

// outcomeMap flattens one step outcome, keeping only the fields its
// operation produced. The item count rides along on fresh index reads;
// a 304 carries no body, so none is recorded.
func outcomeMap(o StepOutcome) map[string]any {
	m := map[string]any{
		"op":     o.Op,
		"result": o.Result,
	}
	if o.Code != "" {
		m["code"] = o.Code
	}
	if o.ID != "" {
		m["id"] = o.ID
	}
	if o.Slug != "" {
		m["slug"] = o.Slug
	}
	if o.Tag != "" {
		m["tag"] = o.Tag
	}
	if o.Idempotent {
		m["idempotent"] = true
	}
	if o.Key != "" {
		m["key"] = o.Key
	}
	if o.Status != 0 {
		m["status"] = o.Status
	}
	if o.Status == http.StatusOK {
		m["items"] = o.Items
	}
	if o.State != "" {
		m["state"] = o.State
	}
	if o.Op == OpState && o.Result == "ok" {
		m["has_resource"] = o.HasResource
		m["has_links"] = o.HasLinks
	}
	return m
}

// RunWithGolden executes a scenario in a fresh temp directory and
// compares its snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can additionally inspect Pass and the
// collected errors. Golden mismatches fail the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, t.TempDir())
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-obtained result against the golden
// file for scenarioName. Useful when a test runs a scenario itself and
// only wants the snapshot comparison.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{
		Scenario:   scenarioName,
		Transcript: result.Transcript,
		Index:      result.Items,
	}

	data, err := record.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
