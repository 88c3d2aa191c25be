package harness

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/eventbook/internal/record"
	"github.com/roach88/eventbook/internal/service"
)

// AssertionError is returned when an assertion fails. The final
// projection rides along so the message shows what the index actually
// held.
type AssertionError struct {
	Type     string              // Assertion type for categorization
	Expected string              // Human-readable expected outcome
	Actual   string              // Human-readable actual outcome
	Items    []record.IndexEntry // Final projection for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFinal index:\n")
	if len(e.Items) == 0 {
		fmt.Fprintf(&buf, "  (empty)\n")
	}
	for _, item := range e.Items {
		marker := " "
		if item.IsDefault {
			marker = "*"
		}
		fmt.Fprintf(&buf, "  %s %s %s %s\n", marker, item.StartDate, item.Slug, item.Status)
	}

	return buf.String()
}

// assertIndexCount checks the projection holds exactly Count entries.
func assertIndexCount(result *Result, a Assertion) error {
	if len(result.Items) != a.Count {
		return &AssertionError{
			Type:     AssertIndexCount,
			Expected: fmt.Sprintf("%d index entries", a.Count),
			Actual:   fmt.Sprintf("%d entries", len(result.Items)),
			Items:    result.Items,
		}
	}
	return nil
}

// assertRecordStatus checks the entry addressed by Key carries the
// expected lifecycle state. Key matches slug or ID.
func assertRecordStatus(result *Result, a Assertion) error {
	for _, item := range result.Items {
		if item.Slug == a.Key || item.ID == a.Key {
			if string(item.Status) != a.Status {
				return &AssertionError{
					Type:     AssertRecordStatus,
					Expected: fmt.Sprintf("%s in status %s", a.Key, a.Status),
					Actual:   fmt.Sprintf("status %s", item.Status),
					Items:    result.Items,
				}
			}
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertRecordStatus,
		Expected: fmt.Sprintf("%s in status %s", a.Key, a.Status),
		Actual:   "no such entry in the final index",
		Items:    result.Items,
	}
}

// assertSingleDefault checks at most one entry is flagged default.
// With a Key, exactly that entry must hold the flag.
func assertSingleDefault(result *Result, a Assertion) error {
	var defaults []record.IndexEntry
	for _, item := range result.Items {
		if item.IsDefault {
			defaults = append(defaults, item)
		}
	}

	if len(defaults) > 1 {
		slugs := make([]string, len(defaults))
		for i, item := range defaults {
			slugs[i] = item.Slug
		}
		return &AssertionError{
			Type:     AssertSingleDefault,
			Expected: "at most one default entry",
			Actual:   fmt.Sprintf("%d defaults: %s", len(defaults), strings.Join(slugs, ", ")),
			Items:    result.Items,
		}
	}

	if a.Key != "" {
		if len(defaults) == 0 {
			return &AssertionError{
				Type:     AssertSingleDefault,
				Expected: fmt.Sprintf("%s flagged default", a.Key),
				Actual:   "no default entry",
				Items:    result.Items,
			}
		}
		d := defaults[0]
		if d.Slug != a.Key && d.ID != a.Key {
			return &AssertionError{
				Type:     AssertSingleDefault,
				Expected: fmt.Sprintf("%s flagged default", a.Key),
				Actual:   fmt.Sprintf("default is %s", d.Slug),
				Items:    result.Items,
			}
		}
	}

	return nil
}

// assertEtagStable re-reads the index with the final ETag and demands
// a 304. This is the one assertion that goes back to the live service:
// ETags embed a content hash, so goldens cannot carry them.
func assertEtagStable(ctx context.Context, svc *service.Service, result *Result) error {
	res := svc.GetIndex(ctx, result.Etag)
	if res.Err != nil {
		return &AssertionError{
			Type:     AssertEtagStable,
			Expected: fmt.Sprintf("304 for ETag %s", result.Etag),
			Actual:   fmt.Sprintf("read error: %v", res.Err),
			Items:    result.Items,
		}
	}
	if res.Status != http.StatusNotModified {
		return &AssertionError{
			Type:     AssertEtagStable,
			Expected: fmt.Sprintf("304 for ETag %s", result.Etag),
			Actual:   fmt.Sprintf("status %d with ETag %s", res.Status, res.Etag),
			Items:    result.Items,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result and
// returns one message per failure. The service handle is needed for
// etag_stable, which re-reads the live index.
func EvaluateAssertions(ctx context.Context, svc *service.Service, result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertIndexCount:
			err = assertIndexCount(result, assertion)
		case AssertRecordStatus:
			err = assertRecordStatus(result, assertion)
		case AssertSingleDefault:
			err = assertSingleDefault(result, assertion)
		case AssertEtagStable:
			err = assertEtagStable(ctx, svc, result)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
