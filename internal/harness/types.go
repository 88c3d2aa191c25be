package harness

import "github.com/roach88/eventbook/internal/record"

// StepOutcome records what one executed step produced. Only the fields
// the operation actually yields are set; the rest stay zero and are
// dropped from golden snapshots.
type StepOutcome struct {
	Op     string `json:"op"`
	Result string `json:"result"` // "ok" or "error"

	// Code is the fault code when Result is "error".
	Code string `json:"code,omitempty"`

	// Provision fields.
	ID         string `json:"id,omitempty"`
	Slug       string `json:"slug,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Idempotent bool   `json:"idempotent,omitempty"`

	// Key addresses the record for the keyed operations.
	Key string `json:"key,omitempty"`

	// Index read fields. Items counts entries on a fresh read.
	Status int `json:"status,omitempty"`
	Items  int `json:"items,omitempty"`

	// State machine fields.
	State       string `json:"state,omitempty"`
	HasResource bool   `json:"has_resource,omitempty"`
	HasLinks    bool   `json:"has_links,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expect clause and every
	// assertion held.
	Pass bool `json:"pass"`

	// Transcript contains one outcome per executed step, in order.
	Transcript []StepOutcome `json:"transcript"`

	// Errors contains expectation and assertion failures. Empty if
	// Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Items and Etag capture the final index projection, read once
	// after the last step.
	Items []record.IndexEntry `json:"items"`
	Etag  string              `json:"etag"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Transcript: []StepOutcome{},
		Errors:     []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// AddOutcome appends a step outcome to the transcript.
func (r *Result) AddOutcome(o StepOutcome) {
	r.Transcript = append(r.Transcript, o)
}
