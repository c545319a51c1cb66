// Package testrunner plays conformance scripts against a database server.
package testrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/explang"
	"github.com/shibukawa/conformsql/session"
	"github.com/shibukawa/conformsql/testrunner/caseexecutor"
)

// Options describes one run.
type Options struct {
	Config *conformsql.Config
	// Port is substituted for {port} in the connection template.
	Port int
	// Table is conformsql.NoTableSpecified or a "db.table" designator.
	Table   string
	Cluster ClusterInfo
	// Scripts are script files or directories containing them.
	Scripts []string
	// Out receives test diagnostics and the summary. Defaults to os.Stdout.
	Out    io.Writer
	Logger *zap.Logger
}

// Run loads every script, connects, plays the scripts in order and
// restores the tables after each script. The error is nil when every test passed; see
// ExitCode for its classification.
func Run(ctx context.Context, opts Options) (err error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if opts.Table != conformsql.NoTableSpecified {
		if _, err := ParseDesignator(opts.Table); err != nil {
			return err
		}
	}

	scripts, err := loadScripts(opts.Scripts)
	if err != nil {
		return err
	}

	eval, err := explang.NewEvaluator()
	if err != nil {
		return err
	}

	sess, err := session.Open(ctx, opts.Config, opts.Port, logger)
	if err != nil {
		return &EnvironmentError{Op: "connect", Err: err}
	}

	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("failed to close session", zap.Error(cerr))
		}
	}()

	reporter := caseexecutor.NewReporter(out)
	exec := caseexecutor.NewExecutor(sess, eval, reporter, caseexecutor.Options{MaxBatchRows: opts.Config.Run.MaxBatchRows}, logger)
	tables := NewTableLifecycle(sess.Primary(), sess.Scope(), sess.DefaultDatabase(), opts.Table, logger)
	suite := NewSuite(exec, tables, opts.Cluster, logger)

	defer func() {
		if cleanupErr := tables.Cleanup(context.WithoutCancel(ctx)); cleanupErr != nil {
			logger.Error("cleanup failed", zap.Error(cleanupErr))
			err = errors.Join(err, cleanupErr)
		}
	}()

	// Tables belong to the script that set them up. The deferred Cleanup
	// covers a script that stops early.
	for _, script := range scripts {
		if err := suite.Run(ctx, script); err != nil {
			return fmt.Errorf("%s: %w", script.Path, err)
		}

		if err := tables.Cleanup(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("%s: %w", script.Path, err)
		}
	}

	reporter.Summary()

	return reporter.Finalize()
}

func loadScripts(paths []string) ([]*Script, error) {
	files, err := FindScripts(paths)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, conformsql.ErrNoScripts
	}

	scripts := make([]*Script, 0, len(files))

	for _, file := range files {
		script, err := LoadScript(file)
		if err != nil {
			return nil, err
		}

		scripts = append(scripts, script)
	}

	return scripts, nil
}

// ExitCode maps a Run error to the process exit status.
func ExitCode(err error) int {
	var (
		envErr    *EnvironmentError
		failedErr *caseexecutor.FailedTestsError
	)

	switch {
	case err == nil:
		return conformsql.ExitSuccess
	case errors.As(err, &envErr):
		return conformsql.ExitEnvError
	case errors.As(err, &failedErr):
		return conformsql.ExitFailure
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return conformsql.ExitEnvError
	}

	return conformsql.ExitConfigError
}
