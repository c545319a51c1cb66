package testrunner

import (
	"context"

	"go.uber.org/zap"

	"github.com/shibukawa/conformsql/testrunner/caseexecutor"
)

// ClusterInfo identifies the cluster a run belongs to. It is only used
// for shard requests.
type ClusterInfo struct {
	Port  int
	Build string
}

// Suite plays the calls of scripts in order.
type Suite struct {
	exec    *caseexecutor.Executor
	tables  *TableLifecycle
	cluster ClusterInfo
	logger  *zap.Logger
}

// NewSuite creates a suite.
func NewSuite(exec *caseexecutor.Executor, tables *TableLifecycle, cluster ClusterInfo, logger *zap.Logger) *Suite {
	return &Suite{exec: exec, tables: tables, cluster: cluster, logger: logger}
}

// Run plays one script. Test failures are recorded by the executor's
// reporter; the returned error aborts the run.
func (s *Suite) Run(ctx context.Context, script *Script) error {
	logger := s.logger.With(zap.String("script", script.Path))
	logger.Debug("running script", zap.Int("calls", len(script.Calls)))

	tests := 0

	for i, call := range script.Calls {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch call.Kind {
		case CallCheckNoTableSpecified:
			if err := s.tables.CheckNoTableSpecified(); err != nil {
				return err
			}
		case CallSetupTable:
			if err := s.tables.SetupTable(ctx, call.SetupTable.Variable, call.SetupTable.Table); err != nil {
				return err
			}
		case CallDefine:
			s.exec.Define(call.Define)
		case CallTest:
			s.exec.RunTest(ctx, call.Test.TestCase(tests))
			tests++
		case CallShard:
			logger.Info("shard skipped",
				zap.String("table", call.Shard.Table),
				zap.Int("cluster_port", s.cluster.Port),
				zap.String("build", s.cluster.Build))
		case CallTheEnd:
			if rest := len(script.Calls) - i - 1; rest > 0 {
				logger.Warn("ignoring calls after the_end", zap.Int("calls", rest))
			}

			return nil
		}
	}

	return nil
}
