package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: a sequence of service
// operations plus assertions over the final index projection.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file base name.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Links optionally sets the base URL derived links resolve from.
	// Scenarios that advance records past workbook_ready need it;
	// without a base the step operation parks records there.
	Links string `yaml:"links,omitempty"`

	// Steps is the operation sequence, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final index projection.
	// Supported types: index_count, record_status, single_default, etag_stable
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one service operation with an optional expected outcome.
type Step struct {
	// Op selects the operation: provision, index, set-default,
	// archive, step or state.
	Op string `yaml:"op"`

	// Name and StartDate form the natural key (provision only).
	Name      string `yaml:"name,omitempty"`
	StartDate string `yaml:"start_date,omitempty"`

	// SeedMode and ElimType override the provisioning defaults
	// (provision only).
	SeedMode string `yaml:"seed_mode,omitempty"`
	ElimType string `yaml:"elim_type,omitempty"`

	// Optional venue location (provision only).
	Lat   float64 `yaml:"lat,omitempty"`
	Lng   float64 `yaml:"lng,omitempty"`
	Venue string  `yaml:"venue,omitempty"`
	City  string  `yaml:"city,omitempty"`

	// Key addresses an existing record by slug or ID (set-default,
	// archive, step, state).
	Key string `yaml:"key,omitempty"`

	// Etag is the conditional read token (index only). The special
	// value "previous" replays the ETag returned by the last index
	// step.
	Etag string `yaml:"etag,omitempty"`

	// Expect declares the expected outcome. A nil Expect means the
	// step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected fault code (e.g. "NOT_FOUND"). Empty
	// means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Status is the expected index read status: 200 or 304.
	Status int `yaml:"status,omitempty"`

	// Idempotent requires the provision call to land on an existing
	// record instead of creating one.
	Idempotent bool `yaml:"idempotent,omitempty"`
}

// Assertion validates the final index projection.
type Assertion struct {
	// Type specifies the assertion type:
	// - "index_count": the projection holds exactly Count entries
	// - "record_status": the entry for Key carries Status
	// - "single_default": at most one default; Key pins which one
	// - "etag_stable": re-reading with the final ETag yields 304
	Type string `yaml:"type"`

	// Key addresses an index entry by slug or ID (record_status, and
	// optionally single_default).
	Key string `yaml:"key,omitempty"`

	// Status is the expected lifecycle state (record_status).
	Status string `yaml:"status,omitempty"`

	// Count is the expected entry count (index_count).
	Count int `yaml:"count,omitempty"`
}

// Step operation constants.
const (
	OpProvision  = "provision"
	OpIndex      = "index"
	OpSetDefault = "set-default"
	OpArchive    = "archive"
	OpStep       = "step"
	OpState      = "state"
)

// Assertion type constants.
const (
	AssertIndexCount    = "index_count"
	AssertRecordStatus  = "record_status"
	AssertSingleDefault = "single_default"
	AssertEtagStable    = "etag_stable"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so a typo fails loudly instead of silently skipping an
// expectation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and every
// step and assertion is well-formed for its type.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its operation.
func validateStep(index int, step Step) error {
	switch step.Op {
	case OpProvision:
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required for provision", index)
		}
		if step.StartDate == "" {
			return fmt.Errorf("steps[%d]: start_date is required for provision", index)
		}
	case OpIndex:
		// Etag is optional; nothing else applies.
	case OpSetDefault, OpArchive, OpStep, OpState:
		if step.Key == "" {
			return fmt.Errorf("steps[%d]: key is required for %s", index, step.Op)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	if step.Expect != nil {
		if step.Expect.Status != 0 && step.Op != OpIndex {
			return fmt.Errorf("steps[%d]: expect.status only applies to index", index)
		}
		if step.Expect.Idempotent && step.Op != OpProvision {
			return fmt.Errorf("steps[%d]: expect.idempotent only applies to provision", index)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertIndexCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for index_count", index)
		}
	case AssertRecordStatus:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for record_status", index)
		}
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for record_status", index)
		}
	case AssertSingleDefault:
		// Key is optional: without it only the at-most-one rule holds.
	case AssertEtagStable:
		// No parameters.
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
