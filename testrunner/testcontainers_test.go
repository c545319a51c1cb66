package testrunner

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/shibukawa/conformsql"
)

// portableScript avoids statements whose results differ between servers.
const portableScript = `
- check_no_table_specified
- setup_table: {variable: tbl, table: docs}
- test:
    name: empty
    src: 'tbl.count()'
    expected: '0'
- test:
    name: insert
    src: 'tbl.insert([{"id": "a", "n": 1}, {"n": 2.5}])'
    expected: '{"inserted": 2, "generated_keys": [uuid()]}'
- test:
    name: all
    src: 'tbl'
    expected: 'bag([{"id": "a", "n": 1}, {"id": uuid(), "n": float_cmp(2.5)}])'
    runopts: {max_batch_rows: "1"}
- test:
    name: index
    src: 'tbl.index_create("by_id")'
    expected: '{"created": 1}'
- test:
    name: index list
    src: 'tbl.index_list()'
    expected: '["by_id"]'
    testopts: {new-connection: true}
- test:
    name: literal
    src: 'sql("SELECT 42 AS x")'
    expected: '[{"x": 42}]'
- test:
    name: missing table
    src: 'sql("SELECT * FROM nowhere")'
    expected: 'err("QueryCompileError")'
- the_end
`

func runPortableScript(t *testing.T, driver, dsn string) {
	t.Helper()

	cfg, err := conformsql.ParseConfig([]byte("driver: " + driver))
	require.NoError(t, err)

	cfg.Connection = dsn

	dir := t.TempDir()
	writeScript(t, dir, "portable.yaml", portableScript)

	var out bytes.Buffer

	err = Run(context.Background(), Options{
		Config:  cfg,
		Table:   conformsql.NoTableSpecified,
		Scripts: []string{dir},
		Out:     &out,
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err, out.String())
}

func TestRun_PostgreSQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("conformsql"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	runPortableScript(t, "pgx", dsn)
}

func TestRun_MySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	container, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("test"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate MySQL container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	runPortableScript(t, "mysql", dsn)
}
