// Package harness provides conformance testing for the provisioning
// service.
//
// The harness executes YAML scenarios against a real Service wired to
// scratch storage, records every operation outcome in a transcript, and
// validates assertions over the final index projection.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario exercises"
//	links: https://events.example
//	steps:
//	  - op: provision
//	    name: Fall League
//	    start_date: "2025-10-01"
//	  - op: index
//	    expect:
//	      status: 200
//	  - op: step
//	    key: fall-league
//	assertions:
//	  - type: index_count
//	    count: 1
//	  - type: record_status
//	    key: fall-league
//	    status: links_ready
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - index_count: the final projection holds exactly N entries
//   - record_status: the entry for a key carries the given lifecycle state
//   - single_default: at most one entry is flagged default, optionally a named one
//   - etag_stable: re-reading the index with the final ETag yields 304
//
// # Deterministic Execution
//
// All scenarios run with a pinned clock and sequential ID generators so
// record IDs, tags and the index projection are identical across runs.
//
// The harness uses:
//   - A fixed start time (testutil.Clock) advancing one second per step
//   - Sequential record IDs ("ev-0001", ...) and workbook IDs ("wb-0001", ...)
//   - A fresh control store and workbook directory per scenario
//
// ETags embed a content hash of the projection, so golden snapshots
// exclude them; the etag_stable assertion exercises ETag behavior
// against the live service instead.
//
// # Usage
//
// Load a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/fall_league.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Execute and compare against the golden snapshot:
//
//	result, err := harness.RunWithGolden(t, scenario)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        t.Error(msg)
//	    }
//	}
package harness
