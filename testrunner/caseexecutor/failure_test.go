package caseexecutor

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_Report(t *testing.T) {
	var out bytes.Buffer

	r := NewReporter(&out)
	r.Report("count #1", "tbl.count()", "Result is not equal to expected result:\n\tVALUE: 1\n\tEXPECTED: 2")

	assert.Equal(t, "TEST FAILURE: count #1\nTEST BODY: tbl.count()\nResult is not equal to expected result:\n\tVALUE: 1\n\tEXPECTED: 2\n\n", out.String())
	assert.Equal(t, 1, r.Failures())
	assert.Equal(t, FailureKindUnknown, r.Outcomes()[0].Kind)
}

func TestReporter_Finalize(t *testing.T) {
	var out bytes.Buffer

	r := NewReporter(&out)
	r.Pass("a", "1")
	assert.NoError(t, r.Finalize())

	r.Fail(FailureKindMismatch, "b", "2", "mismatch")
	r.Fail(FailureKindExecution, "c", "3", "server")

	err := r.Finalize()
	require.Error(t, err)
	assert.Equal(t, "Failed 2 tests", err.Error())
	assert.True(t, errors.Is(err, ErrTestsFailed))

	var failed *FailedTestsError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 2, failed.Count)
}

func TestReporter_Summary(t *testing.T) {
	var out bytes.Buffer

	r := NewReporter(&out)
	r.Pass("a", "1")
	r.Fail(FailureKindMismatch, "b", "2", "mismatch")
	out.Reset()

	r.Summary()

	assert.Equal(t, "1 of 2 tests passed\n", out.String())
	assert.Equal(t, 2, r.Tests())
}

func TestReporter_OutcomesIsCopy(t *testing.T) {
	r := NewReporter(&bytes.Buffer{})
	r.Pass("a", "1")

	outcomes := r.Outcomes()
	outcomes[0].Passed = false

	assert.True(t, r.Outcomes()[0].Passed)
}

func TestFailureKind_String(t *testing.T) {
	assert.Equal(t, "construction", FailureKindConstruction.String())
	assert.Equal(t, "mismatch", FailureKindMismatch.String())
	assert.Equal(t, "unknown", FailureKind(99).String())
}
