package caseexecutor

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
)

// FailureKind represents the classification of a test failure.
type FailureKind int

const (
	// FailureKindUnknown represents failures that could not be classified.
	FailureKindUnknown FailureKind = iota
	// FailureKindConstruction represents expected values or options that could not be built.
	FailureKindConstruction
	// FailureKindEvaluation represents test sources that could not be evaluated.
	FailureKindEvaluation
	// FailureKindExecution represents unexpected or mismatched server errors.
	FailureKindExecution
	// FailureKindMismatch represents results that differ from the expected value.
	FailureKindMismatch
	// FailureKindInternal represents failures of the driver itself.
	FailureKindInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureKindConstruction:
		return "construction"
	case FailureKindEvaluation:
		return "evaluation"
	case FailureKindExecution:
		return "execution"
	case FailureKindMismatch:
		return "mismatch"
	case FailureKindInternal:
		return "internal"
	}

	return "unknown"
}

var (
	failureHeaderFmt = color.New(color.FgRed, color.Bold).SprintFunc()
	bodyHeaderFmt    = color.New(color.FgBlue, color.Bold).SprintFunc()
	passedFmt        = color.New(color.FgGreen, color.Bold).SprintfFunc()
	failedFmt        = color.New(color.FgRed, color.Bold).SprintfFunc()
)

// ErrTestsFailed is wrapped by FailedTestsError.
var ErrTestsFailed = errors.New("tests failed")

// FailedTestsError is returned by Finalize when at least one test failed.
type FailedTestsError struct {
	Count int
}

func (e *FailedTestsError) Error() string {
	return fmt.Sprintf("Failed %d tests", e.Count)
}

func (e *FailedTestsError) Unwrap() error { return ErrTestsFailed }

// Outcome is the result of one test.
type Outcome struct {
	Name    string
	Source  string
	Passed  bool
	Kind    FailureKind
	Message string
}

// Reporter prints failure diagnostics and keeps the failure count.
type Reporter struct {
	out      io.Writer
	failures int
	outcomes []Outcome
}

// NewReporter creates a reporter printing to out.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Report records an unclassified failure.
func (r *Reporter) Report(name, src, message string) {
	r.Fail(FailureKindUnknown, name, src, message)
}

// Fail records a failure and prints its diagnostic block.
func (r *Reporter) Fail(kind FailureKind, name, src, message string) {
	r.failures++
	r.outcomes = append(r.outcomes, Outcome{Name: name, Source: src, Kind: kind, Message: message})

	fmt.Fprintf(r.out, "%s %s\n", failureHeaderFmt("TEST FAILURE:"), name)
	fmt.Fprintf(r.out, "%s %s\n", bodyHeaderFmt("TEST BODY:"), src)
	fmt.Fprintf(r.out, "%s\n\n", message)
}

// Pass records a passing test.
func (r *Reporter) Pass(name, src string) {
	r.outcomes = append(r.outcomes, Outcome{Name: name, Source: src, Passed: true})
}

// Failures returns the number of recorded failures.
func (r *Reporter) Failures() int { return r.failures }

// Tests returns the number of recorded outcomes.
func (r *Reporter) Tests() int { return len(r.outcomes) }

// Outcomes returns a copy of the recorded outcomes in order.
func (r *Reporter) Outcomes() []Outcome { return slices.Clone(r.outcomes) }

// Finalize returns a *FailedTestsError when any test failed.
func (r *Reporter) Finalize() error {
	if r.failures > 0 {
		return &FailedTestsError{Count: r.failures}
	}

	return nil
}

// Summary prints the pass count.
func (r *Reporter) Summary() {
	passed := len(r.outcomes) - r.failures

	format := passedFmt
	if r.failures > 0 {
		format = failedFmt
	}

	fmt.Fprintln(r.out, format("%d of %d tests passed", passed, len(r.outcomes)))
}
