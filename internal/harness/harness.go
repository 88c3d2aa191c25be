package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/eventbook/internal/config"
	"github.com/roach88/eventbook/internal/fault"
	"github.com/roach88/eventbook/internal/provision"
	"github.com/roach88/eventbook/internal/record"
	"github.com/roach88/eventbook/internal/service"
	"github.com/roach88/eventbook/internal/testutil"
	"github.com/roach88/eventbook/internal/workbook"
)

// epoch is the pinned scenario start time. Every scenario begins here
// so stored timestamps never depend on the wall clock.
var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Harness executes one scenario against a live service.
type Harness struct {
	svc      *service.Service
	clock    *testutil.Clock
	lastEtag string
}

// Run executes a scenario and returns its result.
//
// The service runs for real: provisioning writes a control store and
// workbook files under dataDir, usually a t.TempDir. Determinism comes
// from the pinned clock and the sequential record ("ev-NNNN") and
// workbook ("wb-NNNN") ID generators, so transcripts and projections
// reproduce exactly run over run.
//
// Operation faults become transcript outcomes, checked against the
// step's expect clause. An error return means the harness itself could
// not run the scenario.
func Run(ctx context.Context, scenario *Scenario, dataDir string) (*Result, error) {
	cfg := config.Default()
	cfg.DataDir = dataDir
	if scenario.Links != "" {
		cfg.Links.BaseURL = scenario.Links
	}

	clock := testutil.NewClock(epoch)
	factory := workbook.New(cfg.WorkbooksDir(),
		workbook.WithIDGenerator(testutil.NewSequentialIDs("wb")),
	)

	svc, _, err := service.Bootstrap(ctx, cfg,
		service.WithClock(clock.Now),
		service.WithIDGenerator(testutil.NewSequentialIDs("ev")),
		service.WithResourceFactory(factory),
	)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scenario service: %w", err)
	}
	defer svc.Close()

	h := &Harness{svc: svc, clock: clock}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
		clock.Advance(time.Second)
	}

	// One final fresh read captures the projection that assertions and
	// golden snapshots run against.
	final := svc.GetIndex(ctx, "")
	if final.Err != nil {
		return nil, fmt.Errorf("read final index: %w", final.Err)
	}
	result.Items = final.Items
	result.Etag = final.Etag

	for _, msg := range EvaluateAssertions(ctx, svc, result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// executeStep runs one step, appends its outcome to the transcript and
// checks the expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	var outcome StepOutcome

	switch step.Op {
	case OpProvision:
		res := h.svc.Provision(ctx, provision.Params{
			Name:      step.Name,
			StartDate: step.StartDate,
			SeedMode:  step.SeedMode,
			ElimType:  step.ElimType,
			Geo:       step.geo(),
		})
		outcome = StepOutcome{Op: OpProvision}
		if res.Err != nil {
			fillFault(&outcome, res.Err)
		} else {
			outcome.Result = "ok"
			outcome.ID = res.ID
			outcome.Slug = res.Slug
			outcome.Tag = res.Tag
			outcome.Idempotent = res.Idempotent
		}

	case OpIndex:
		etag := step.Etag
		if etag == "previous" {
			etag = h.lastEtag
		}
		res := h.svc.GetIndex(ctx, etag)
		outcome = StepOutcome{Op: OpIndex, Status: res.Status}
		if res.Err != nil {
			fillFault(&outcome, res.Err)
		} else {
			outcome.Result = "ok"
			outcome.Items = len(res.Items)
			h.lastEtag = res.Etag
		}

	case OpSetDefault:
		res := h.svc.SetDefault(ctx, step.Key)
		outcome = keyedOutcome(OpSetDefault, step.Key, res.Err)

	case OpArchive:
		res := h.svc.Archive(ctx, step.Key)
		outcome = keyedOutcome(OpArchive, step.Key, res.Err)

	case OpStep:
		res := h.svc.Step(ctx, step.Key)
		outcome = keyedOutcome(OpStep, step.Key, res.Err)
		if res.Err == nil {
			outcome.State = string(res.State)
		}

	case OpState:
		res := h.svc.GetState(ctx, step.Key)
		outcome = keyedOutcome(OpState, step.Key, res.Err)
		if res.Err == nil {
			outcome.State = string(res.State)
			outcome.HasResource = res.HasResource
			outcome.HasLinks = res.HasLinks
		}

	default:
		// validateScenario rejects unknown ops; this guards scenarios
		// constructed in code.
		return fmt.Errorf("step %d: unknown op %q", i, step.Op)
	}

	result.AddOutcome(outcome)
	checkExpect(i, step, outcome, result)
	return nil
}

// keyedOutcome builds the outcome shared by the key-addressed ops.
func keyedOutcome(op, key string, err error) StepOutcome {
	outcome := StepOutcome{Op: op, Key: key}
	if err != nil {
		fillFault(&outcome, err)
		return outcome
	}
	outcome.Result = "ok"
	return outcome
}

// fillFault marks an outcome failed and records the fault code.
func fillFault(outcome *StepOutcome, err error) {
	outcome.Result = "error"
	outcome.Code = string(fault.CodeOf(err))
}

// geo assembles the optional venue payload of a provision step.
func (s Step) geo() *record.Geo {
	if s.Lat == 0 && s.Lng == 0 && s.Venue == "" && s.City == "" {
		return nil
	}
	return &record.Geo{
		Latitude:  s.Lat,
		Longitude: s.Lng,
		Venue:     s.Venue,
		City:      s.City,
	}
}

// checkExpect compares an outcome against the step's expect clause.
// A step without a clause must succeed.
func checkExpect(i int, step Step, outcome StepOutcome, result *Result) {
	wantCode := ""
	if step.Expect != nil {
		wantCode = step.Expect.Error
	}

	if wantCode == "" && outcome.Result == "error" {
		result.AddError(fmt.Sprintf("step %d (%s): unexpected %s fault", i, step.Op, outcome.Code))
		return
	}
	if wantCode != "" && outcome.Code != wantCode {
		got := outcome.Code
		if got == "" {
			got = "success"
		}
		result.AddError(fmt.Sprintf("step %d (%s): expected %s fault, got %s", i, step.Op, wantCode, got))
		return
	}

	if step.Expect == nil {
		return
	}
	if step.Expect.Status != 0 && outcome.Status != step.Expect.Status {
		result.AddError(fmt.Sprintf("step %d (%s): expected status %d, got %d",
			i, step.Op, step.Expect.Status, outcome.Status))
	}
	if step.Expect.Idempotent && !outcome.Idempotent {
		result.AddError(fmt.Sprintf("step %d (%s): expected an idempotent hit, got a fresh record", i, step.Op))
	}
}
