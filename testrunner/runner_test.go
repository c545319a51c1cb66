package testrunner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/testrunner/caseexecutor"
)

const passingScript = `
- check_no_table_specified
- setup_table: {variable: tbl, table: docs}
- define: 'doc = {"id": "a", "n": 1}'
- test:
    name: empty
    src: 'tbl.count()'
    expected: '0'
- test:
    name: insert
    src: 'tbl.insert(doc)'
    expected: '{"inserted": 1}'
    testopts: {variable: ins}
- test:
    name: captured
    src: 'ins.inserted + 1'
    expected: '2'
    testopts: {reql-query: "false"}
- test:
    name: fetch
    src: 'tbl.get("a")'
    expected: '{"id": "a", "n": int_cmp(1)}'
    runopts: {max_batch_rows: "1"}
- test:
    name: raw sql
    src: 'sql("SELECT ? AS x", [40 + 2])'
    expected: '[{"x": 42}]'
- test:
    name: missing table
    src: 'sql("SELECT * FROM nowhere")'
    expected: 'err("QueryCompileError", "no such table: nowhere.")'
- shard: {table: docs}
- the_end
`

const failingScript = `
- setup_table: {variable: t2, table: other}
- define: 'broken ='
- test:
    name: wrong count
    src: 't2.count()'
    expected: '5'
- test:
    name: right count
    src: 't2.count()'
    expected: '0'
- the_end
`

const sharedTableScript = `
- check_no_table_specified
- setup_table: {variable: tbl, table: docs}
- test:
    name: empty
    src: 'tbl.count()'
    expected: '0'
- test:
    name: insert
    src: 'tbl.insert({"id": "a", "f": 2.0, "n": 2})'
    expected: '{"inserted": 1}'
- test:
    name: whole float
    src: 'tbl.get("a")'
    expected: '{"id": "a", "f": float_cmp(2.0), "n": int_cmp(2)}'
- the_end
`

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func sqliteConfig(t *testing.T, name string) *conformsql.Config {
	t.Helper()

	cfg, err := conformsql.ParseConfig([]byte("driver: sqlite3\nconnection: \"file:" + name + "?mode=memory&cache=shared\"\n"))
	require.NoError(t, err)

	return cfg
}

func TestRun_Passing(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "passing.yaml", passingScript)

	var out bytes.Buffer

	err := Run(context.Background(), Options{
		Config:  sqliteConfig(t, "runner_passing"),
		Table:   conformsql.NoTableSpecified,
		Scripts: []string{dir},
		Out:     &out,
		Logger:  zaptest.NewLogger(t),
	})

	require.NoError(t, err, out.String())
	assert.Equal(t, "6 of 6 tests passed\n", out.String())
	assert.Equal(t, conformsql.ExitSuccess, ExitCode(err))
}

func TestRun_Failures(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "failing.yaml", failingScript)

	var out bytes.Buffer

	err := Run(context.Background(), Options{
		Config:  sqliteConfig(t, "runner_failing"),
		Table:   conformsql.NoTableSpecified,
		Scripts: []string{dir},
		Out:     &out,
		Logger:  zaptest.NewLogger(t),
	})

	var failed *caseexecutor.FailedTestsError
	require.True(t, errors.As(err, &failed), "got %v", err)
	assert.Equal(t, 2, failed.Count)
	assert.Equal(t, "Failed 2 tests", err.Error())
	assert.Equal(t, conformsql.ExitFailure, ExitCode(err))

	assert.Contains(t, out.String(), "TEST FAILURE: "+caseexecutor.DefineFailureName)
	assert.Contains(t, out.String(), "TEST FAILURE: wrong count\nTEST BODY: t2.count()\nResult is not equal to expected result:\n\tVALUE: 0\n\tEXPECTED: 5\n")
	assert.Contains(t, out.String(), "1 of 3 tests passed\n")
}

func TestRun_ScriptsShareTableName(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.yaml", sharedTableScript)
	writeScript(t, dir, "b.yaml", sharedTableScript)

	var out bytes.Buffer

	err := Run(context.Background(), Options{
		Config:  sqliteConfig(t, "runner_shared_table"),
		Table:   conformsql.NoTableSpecified,
		Scripts: []string{dir},
		Out:     &out,
		Logger:  zaptest.NewLogger(t),
	})

	require.NoError(t, err, out.String())
	assert.Equal(t, "6 of 6 tests passed\n", out.String())
}

func TestRun_TableSpecifiedForSelfManagedScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "passing.yaml", passingScript)

	err := Run(context.Background(), Options{
		Config:  sqliteConfig(t, "runner_designated"),
		Table:   "test.docs",
		Scripts: []string{dir},
		Out:     &bytes.Buffer{},
		Logger:  zaptest.NewLogger(t),
	})

	assert.ErrorIs(t, err, conformsql.ErrTableSpecified)
	assert.Equal(t, conformsql.ExitConfigError, ExitCode(err))
}

func TestRun_ConfigErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		table   string
		scripts []string
		want    error
	}{
		{name: "invalid designator", table: "nodot", scripts: []string{dir}, want: conformsql.ErrInvalidTableDesignator},
		{name: "no scripts", table: conformsql.NoTableSpecified, scripts: []string{dir}, want: conformsql.ErrNoScripts},
		{name: "bad script", table: conformsql.NoTableSpecified, scripts: []string{writeScript(t, t.TempDir(), "bad.yaml", "- reboot\n")}, want: conformsql.ErrUnknownCall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Run(context.Background(), Options{
				Config:  sqliteConfig(t, "runner_config"),
				Table:   tt.table,
				Scripts: tt.scripts,
				Out:     &bytes.Buffer{},
			})

			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, conformsql.ExitConfigError, ExitCode(err))
		})
	}
}

func TestRun_ConnectionFailure(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "s.yaml", "- the_end\n")

	cfg, err := conformsql.ParseConfig([]byte("driver: sqlite3\nconnection: \"file:" + filepath.Join(dir, "missing", "db.sqlite") + "?mode=ro\"\n"))
	require.NoError(t, err)

	err = Run(context.Background(), Options{
		Config:  cfg,
		Table:   conformsql.NoTableSpecified,
		Scripts: []string{dir},
		Out:     &bytes.Buffer{},
	})

	var envErr *EnvironmentError
	require.True(t, errors.As(err, &envErr), "got %v", err)
	assert.Equal(t, "connect", envErr.Op)
	assert.Equal(t, conformsql.ExitEnvError, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, conformsql.ExitSuccess, ExitCode(nil))
	assert.Equal(t, conformsql.ExitFailure, ExitCode(&caseexecutor.FailedTestsError{Count: 1}))
	assert.Equal(t, conformsql.ExitEnvError, ExitCode(&EnvironmentError{Op: "cleanup", Err: errors.New("x")}))
	assert.Equal(t, conformsql.ExitEnvError, ExitCode(errors.Join(&caseexecutor.FailedTestsError{Count: 1}, &EnvironmentError{Op: "cleanup", Err: errors.New("x")})))
	assert.Equal(t, conformsql.ExitEnvError, ExitCode(context.DeadlineExceeded))
	assert.Equal(t, conformsql.ExitConfigError, ExitCode(conformsql.ErrUnknownCall))
}
