// Package caseexecutor runs single conformance tests: it builds the expected
// value, evaluates and executes the test source, compares the outcome and
// reports failures.
package caseexecutor

import (
	"context"
	"fmt"
	"maps"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/shibukawa/conformsql/explang"
	"github.com/shibukawa/conformsql/matcher"
	"github.com/shibukawa/conformsql/query"
	"github.com/shibukawa/conformsql/session"
)

// DefineFailureName is the test name under which define failures are reported.
const DefineFailureName = "Exception while processing define"

// TestCase is one test of a script.
type TestCase struct {
	Name        string
	Source      string
	Expected    string
	RunOptions  map[string]any
	TestOptions map[string]any
}

// Session provides connections and the shared scope.
type Session interface {
	Primary() query.Conn
	// Connect opens a connection for a new-connection test. The executor
	// closes it when that test ends, since nothing can reach it afterwards.
	Connect(ctx context.Context) (query.Conn, error)
	Scope() *session.Scope
}

// Options configures an Executor.
type Options struct {
	// MaxBatchRows is merged into run options that do not set max_batch_rows.
	MaxBatchRows int
}

// Executor runs tests against a session.
type Executor struct {
	sess     Session
	eval     *explang.Evaluator
	reporter *Reporter
	opts     Options
	logger   *zap.Logger
}

// NewExecutor creates an executor.
func NewExecutor(sess Session, eval *explang.Evaluator, reporter *Reporter, opts Options, logger *zap.Logger) *Executor {
	if opts.MaxBatchRows <= 0 {
		opts.MaxBatchRows = query.DefaultMaxBatchRows
	}

	return &Executor{sess: sess, eval: eval, reporter: reporter, opts: opts, logger: logger}
}

// Reporter returns the reporter failures are recorded in.
func (e *Executor) Reporter() *Reporter { return e.reporter }

// RunTest runs one test and reports whether it passed. Every failure,
// including panics, is recorded in the reporter.
func (e *Executor) RunTest(ctx context.Context, tc TestCase) (passed bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("test panicked", zap.String("test", tc.Name), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			e.reporter.Fail(FailureKindInternal, tc.Name, tc.Source, fmt.Sprintf("Unexpected panic while running test:\n\t%v", r))
			passed = false
		}
	}()

	e.logger.Debug("running test", zap.String("test", tc.Name))

	scope := e.sess.Scope()
	testOpts := ParseTestOptions(tc.TestOptions)

	runOpts, err := e.runOptions(tc.RunOptions, scope)
	if err != nil {
		return e.fail(FailureKindConstruction, tc, fmt.Sprintf("Error eval'ing run options:\n\t%s", err))
	}

	conn := e.sess.Primary()

	if testOpts.NewConnection {
		fresh, err := e.sess.Connect(ctx)
		if err != nil {
			return e.fail(FailureKindExecution, tc, fmt.Sprintf("Error opening new connection:\n\t%s", err))
		}
		defer fresh.Close()

		conn = fresh
	}

	// A construction failure is reported once; the source still runs so its
	// side effects and variable capture happen, but nothing is compared.
	expected, err := e.eval.Build(tc.Expected, scope)
	reported := err != nil
	if reported {
		e.fail(FailureKindConstruction, tc, fmt.Sprintf("Error eval'ing expected result:\n\t%s", err))
	}

	var actual any

	if testOpts.HostOnly {
		actual, err = e.eval.Eval(tc.Source, scope)
		if err != nil {
			actual = err
		}
	} else {
		q, err := e.eval.Query(tc.Source, scope)
		if err != nil {
			if reported {
				return false
			}

			return e.sourceFailed(tc, err, expected)
		}

		if _, err := q.Render(); err != nil {
			if reported {
				return false
			}

			return e.fail(FailureKindInternal, tc, fmt.Sprintf("Error rendering query:\n\t%s", err))
		}

		result, err := conn.Run(ctx, q, runOpts)
		if err != nil {
			actual = err
		} else {
			actual = unwrapProfile(result)
		}
	}

	if testOpts.Variable != "" {
		scope.Set(testOpts.Variable, actual)
	}

	if reported {
		return false
	}

	return e.compare(tc, actual, expected)
}

// Define evaluates a define statement into the shared scope and reports
// failures without aborting the run.
func (e *Executor) Define(expr string) bool {
	if err := e.eval.Define(expr, e.sess.Scope()); err != nil {
		e.reporter.Fail(FailureKindConstruction, DefineFailureName, expr, err.Error())
		return false
	}

	return true
}

// runOptions evaluates string values, then merges the defaults.
func (e *Executor) runOptions(raw map[string]any, scope *session.Scope) (query.RunOptions, error) {
	opts := make(query.RunOptions, len(raw)+2)
	maps.Copy(opts, raw)

	for key, value := range opts {
		text, ok := value.(string)
		if !ok {
			continue
		}

		evaluated, err := e.eval.Eval(text, scope)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}

		opts[key] = evaluated
	}

	if _, ok := opts["max_batch_rows"]; !ok {
		opts["max_batch_rows"] = e.opts.MaxBatchRows
	}

	opts["profile"] = true

	return opts, nil
}

func (e *Executor) sourceFailed(tc TestCase, err error, expected matcher.Matcher) bool {
	if !matcher.IsErrorDescriptor(expected) {
		return e.fail(FailureKindEvaluation, tc, fmt.Sprintf("Error eval'ing test src:\n\t%s", matcher.Repr(err)))
	}

	if expected.Match(err) {
		return e.pass(tc)
	}

	return e.fail(FailureKindEvaluation, tc, fmt.Sprintf(
		"Error eval'ing test src not equal to expected err:\n\tERROR: %s\n\tEXPECTED: %s",
		matcher.Repr(err), expected,
	))
}

func (e *Executor) compare(tc TestCase, actual any, expected matcher.Matcher) bool {
	if err, ok := actual.(error); ok {
		if !matcher.IsErrorDescriptor(expected) {
			return e.fail(FailureKindExecution, tc, fmt.Sprintf("Error running test on server:\n\t%s", matcher.Repr(err)))
		}

		if !expected.Match(err) {
			return e.fail(FailureKindExecution, tc, fmt.Sprintf(
				"Error running test on server not equal to expected err:\n\tERROR: %s\n\tEXPECTED: %s",
				matcher.Repr(err), expected,
			))
		}

		return e.pass(tc)
	}

	if !expected.Match(actual) {
		return e.fail(FailureKindMismatch, tc, fmt.Sprintf(
			"Result is not equal to expected result:\n\tVALUE: %s\n\tEXPECTED: %s",
			matcher.Repr(actual), expected,
		))
	}

	return e.pass(tc)
}

func (e *Executor) pass(tc TestCase) bool {
	e.reporter.Pass(tc.Name, tc.Source)
	return true
}

func (e *Executor) fail(kind FailureKind, tc TestCase, message string) bool {
	e.logger.Debug("test failed", zap.String("test", tc.Name), zap.Stringer("kind", kind))
	e.reporter.Fail(kind, tc.Name, tc.Source, message)

	return false
}

// unwrapProfile returns the value of a profile envelope.
func unwrapProfile(result any) any {
	envelope, ok := result.(map[string]any)
	if !ok {
		return result
	}

	if _, ok := envelope["profile"]; !ok {
		return result
	}

	if value, ok := envelope["value"]; ok {
		return value
	}

	return result
}
