package testrunner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/query"
	"github.com/shibukawa/conformsql/session"
)

func TestParseDesignator(t *testing.T) {
	tbl, err := ParseDesignator("db.tbl")
	require.NoError(t, err)
	assert.Equal(t, query.Table{Database: "db", Name: "tbl"}, tbl)

	for _, bad := range []string{"tbl", "a.b.c", ".tbl", "db.", ""} {
		_, err := ParseDesignator(bad)
		assert.ErrorIs(t, err, conformsql.ErrInvalidTableDesignator, bad)
	}
}

func TestTableLifecycle_CreatedTable(t *testing.T) {
	ctx := context.Background()
	sess := newSQLiteSession(t, "table_created")

	tables := NewTableLifecycle(sess.Primary(), sess.Scope(), "test", conformsql.NoTableSpecified, zap.NewNop())

	require.NoError(t, tables.CheckNoTableSpecified())
	require.NoError(t, tables.SetupTable(ctx, "tbl", "tbl_test"))

	bound, ok := sess.Scope().Get("tbl")
	require.True(t, ok)
	assert.Equal(t, query.Table{Database: "test", Name: "tbl_test"}, bound)

	// a second table of the same name cannot be created
	err := tables.SetupTable(ctx, "dup", "tbl_test")

	var envErr *EnvironmentError
	require.True(t, errors.As(err, &envErr))
	assert.ErrorIs(t, err, conformsql.ErrTableNotCreated)

	require.NoError(t, tables.Cleanup(ctx))

	_, err = sess.Primary().Run(ctx, query.Table{Database: "test", Name: "tbl_test"}.Count(), nil)
	assert.Error(t, err)

	// cleanup runs once
	assert.NoError(t, tables.Cleanup(ctx))

	// a released name can be set up again
	require.NoError(t, tables.SetupTable(ctx, "tbl", "tbl_test"))
	require.NoError(t, tables.Cleanup(ctx))

	_, err = sess.Primary().Run(ctx, query.Table{Database: "test", Name: "tbl_test"}.Count(), nil)
	assert.Error(t, err)
}

func TestTableLifecycle_DesignatedTable(t *testing.T) {
	ctx := context.Background()
	sess := newSQLiteSession(t, "table_designated")

	tbl := query.Table{Database: "main", Name: "existing"}
	_, err := sess.Primary().Run(ctx, query.CreateTable(tbl), nil)
	require.NoError(t, err)

	tables := NewTableLifecycle(sess.Primary(), sess.Scope(), "test", "main.existing", zap.NewNop())

	assert.ErrorIs(t, tables.CheckNoTableSpecified(), conformsql.ErrTableSpecified)
	require.NoError(t, tables.SetupTable(ctx, "tbl", "ignored"))

	bound, _ := sess.Scope().Get("tbl")
	assert.Equal(t, tbl, bound)

	_, err = sess.Primary().Run(ctx, tbl.Insert(map[string]any{"id": "a"}, map[string]any{"id": "b"}), nil)
	require.NoError(t, err)
	_, err = sess.Primary().Run(ctx, tbl.IndexCreate("by_id"), nil)
	require.NoError(t, err)

	require.NoError(t, tables.Cleanup(ctx))

	count, err := sess.Primary().Run(ctx, tbl.Count(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	indexes, err := sess.Primary().Run(ctx, tbl.IndexList(), nil)
	require.NoError(t, err)
	assert.Empty(t, indexes)
}

func TestTableLifecycle_InvalidDesignator(t *testing.T) {
	sess := newSQLiteSession(t, "table_invalid")
	tables := NewTableLifecycle(sess.Primary(), sess.Scope(), "test", "nodot", zap.NewNop())

	err := tables.SetupTable(context.Background(), "tbl", "x")
	assert.ErrorIs(t, err, conformsql.ErrInvalidTableDesignator)
}

type failingConn struct{}

func (failingConn) Run(context.Context, query.Query, query.RunOptions) (any, error) {
	return nil, errors.New("server gone")
}

func (failingConn) Close() error { return nil }

func TestTableLifecycle_CleanupFailure(t *testing.T) {
	scope := session.NewScope()
	tables := NewTableLifecycle(failingConn{}, scope, "test", "db.tbl", zap.NewNop())

	require.NoError(t, tables.SetupTable(context.Background(), "tbl", "x"))

	err := tables.Cleanup(context.Background())

	var envErr *EnvironmentError
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, "cleanup", envErr.Op)
	assert.Contains(t, err.Error(), "server gone")
	assert.Equal(t, conformsql.ExitEnvError, ExitCode(err))
}
