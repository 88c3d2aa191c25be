package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventbook/internal/record"
)

func projection(entries ...record.IndexEntry) *Result {
	r := NewResult()
	r.Items = entries
	return r
}

func entry(slug string, status record.Status, isDefault bool) record.IndexEntry {
	return record.IndexEntry{
		ID:        "id-" + slug,
		Slug:      slug,
		Name:      slug,
		StartDate: "2025-10-01",
		Status:    status,
		IsDefault: isDefault,
	}
}

func TestAssertIndexCount(t *testing.T) {
	result := projection(
		entry("spring-open", record.StatusWorkbookReady, false),
		entry("fall-league", record.StatusWorkbookReady, false),
	)

	assert.NoError(t, assertIndexCount(result, Assertion{Type: AssertIndexCount, Count: 2}))
	assert.NoError(t, assertIndexCount(projection(), Assertion{Type: AssertIndexCount, Count: 0}))

	err := assertIndexCount(result, Assertion{Type: AssertIndexCount, Count: 3})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertIndexCount, ae.Type)
	assert.Equal(t, "3 index entries", ae.Expected)
	assert.Equal(t, "2 entries", ae.Actual)
}

func TestAssertRecordStatus(t *testing.T) {
	result := projection(entry("fall-league", record.StatusLinksReady, false))

	// Key matches by slug or by ID.
	assert.NoError(t, assertRecordStatus(result,
		Assertion{Type: AssertRecordStatus, Key: "fall-league", Status: "links_ready"}))
	assert.NoError(t, assertRecordStatus(result,
		Assertion{Type: AssertRecordStatus, Key: "id-fall-league", Status: "links_ready"}))

	err := assertRecordStatus(result,
		Assertion{Type: AssertRecordStatus, Key: "fall-league", Status: "workbook_ready"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status links_ready")

	err = assertRecordStatus(result,
		Assertion{Type: AssertRecordStatus, Key: "ghost", Status: "workbook_ready"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such entry")
}

func TestAssertSingleDefault(t *testing.T) {
	none := projection(entry("fall-league", record.StatusWorkbookReady, false))
	one := projection(
		entry("spring-open", record.StatusWorkbookReady, false),
		entry("fall-league", record.StatusWorkbookReady, true),
	)
	two := projection(
		entry("spring-open", record.StatusWorkbookReady, true),
		entry("fall-league", record.StatusWorkbookReady, true),
	)

	// Without a key only the at-most-one rule applies.
	assert.NoError(t, assertSingleDefault(none, Assertion{Type: AssertSingleDefault}))
	assert.NoError(t, assertSingleDefault(one, Assertion{Type: AssertSingleDefault}))

	err := assertSingleDefault(two, Assertion{Type: AssertSingleDefault})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 defaults")
	assert.Contains(t, err.Error(), "spring-open, fall-league")

	// A key pins which entry must hold the flag.
	assert.NoError(t, assertSingleDefault(one,
		Assertion{Type: AssertSingleDefault, Key: "fall-league"}))

	err = assertSingleDefault(one, Assertion{Type: AssertSingleDefault, Key: "spring-open"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default is fall-league")

	err = assertSingleDefault(none, Assertion{Type: AssertSingleDefault, Key: "fall-league"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no default entry")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertRecordStatus,
		Expected: "fall-league in status links_ready",
		Actual:   "status workbook_ready",
		Items: []record.IndexEntry{
			entry("spring-open", record.StatusWorkbookReady, true),
			entry("fall-league", record.StatusWorkbookReady, false),
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: record_status")
	assert.Contains(t, msg, "Expected: fall-league in status links_ready")
	assert.Contains(t, msg, "Actual: status workbook_ready")
	assert.Contains(t, msg, "* 2025-10-01 spring-open workbook_ready")
	assert.Contains(t, msg, "  2025-10-01 fall-league workbook_ready")

	empty := &AssertionError{Type: AssertIndexCount, Expected: "1 index entries", Actual: "0 entries"}
	assert.Contains(t, empty.Error(), "(empty)")
}

func TestEvaluateAssertions(t *testing.T) {
	result := projection(entry("fall-league", record.StatusWorkbookReady, false))

	// etag_stable is absent here, so no service round trip happens and
	// a nil service is safe.
	msgs := EvaluateAssertions(context.Background(), nil, result, []Assertion{
		{Type: AssertIndexCount, Count: 1},
		{Type: AssertRecordStatus, Key: "fall-league", Status: "workbook_ready"},
		{Type: AssertSingleDefault},
	})
	assert.Empty(t, msgs)

	msgs = EvaluateAssertions(context.Background(), nil, result, []Assertion{
		{Type: AssertIndexCount, Count: 2},
		{Type: "trace_contains"},
	})
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Assertion failed: index_count")
	assert.Contains(t, msgs[1], `unknown assertion type "trace_contains"`)
}
