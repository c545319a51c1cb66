package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shibukawa/conformsql"
)

// DefaultMaxBatchRows is the row batch size used when run options set none.
const DefaultMaxBatchRows = 3

// RunOptions are the per-query options a test passes to Run.
type RunOptions map[string]any

// Profile reports whether the result should be wrapped in a profile envelope.
func (o RunOptions) Profile() bool {
	enabled, _ := o["profile"].(bool)
	return enabled
}

// MaxBatchRows returns the batch size, falling back to DefaultMaxBatchRows.
func (o RunOptions) MaxBatchRows() int {
	switch n := o["max_batch_rows"].(type) {
	case int:
		if n > 0 {
			return n
		}
	case int64:
		if n > 0 {
			return int(n)
		}
	case uint64:
		if n > 0 {
			return int(n)
		}
	case float64:
		if n >= 1 {
			return int(n)
		}
	}

	return DefaultMaxBatchRows
}

// Conn runs queries. Run returns either a result value or a *ServerError.
type Conn interface {
	Run(ctx context.Context, q Query, opts RunOptions) (any, error)
	Close() error
}

// SQLConn runs queries on one dedicated database/sql connection.
type SQLConn struct {
	conn    *sql.Conn
	dialect sqlDialect
}

// NewSQLConn wraps a dedicated connection for the given dialect.
func NewSQLConn(conn *sql.Conn, dialect conformsql.Dialect) (*SQLConn, error) {
	d, err := newSQLDialect(dialect)
	if err != nil {
		return nil, err
	}

	return &SQLConn{conn: conn, dialect: d}, nil
}

// runStats describes how a result was fetched.
type runStats struct {
	batches int
	rows    int
}

// Run executes the query. With the profile option the value is returned as
// {"profile": [...], "value": result}.
func (c *SQLConn) Run(ctx context.Context, q Query, opts RunOptions) (any, error) {
	display := q.String()

	startTime := time.Now()
	value, stats, err := c.run(ctx, q, opts.MaxBatchRows())
	duration := time.Since(startTime)

	if err != nil {
		return nil, classifyError(err, display)
	}

	if !opts.Profile() {
		return value, nil
	}

	return map[string]any{
		"profile": []any{map[string]any{
			"description":  display,
			"duration(ms)": float64(duration.Microseconds()) / 1000,
			"batches":      int64(stats.batches),
			"rows":         int64(stats.rows),
		}},
		"value": value,
	}, nil
}

// Close returns the connection to the pool.
func (c *SQLConn) Close() error {
	return c.conn.Close()
}

func (c *SQLConn) run(ctx context.Context, q Query, batchSize int) (any, runStats, error) {
	d := c.dialect
	single := runStats{batches: 1}

	switch q.Op {
	case OpSQL:
		stmt := d.bind(q.Statement)
		if d.returnsRows(stmt) {
			return c.queryRows(ctx, stmt, q.Args, batchSize)
		}

		affected, err := c.exec(ctx, stmt, q.Args...)

		return map[string]any{"rows_affected": affected}, single, err
	case OpCount:
		count, err := c.scalar(ctx, "SELECT COUNT(*) FROM "+d.table(q.Table))
		return count, single, err
	case OpAll:
		return c.queryDocuments(ctx, "SELECT doc FROM "+d.table(q.Table)+" ORDER BY id", nil, batchSize)
	case OpGet:
		key, err := documentKey(q.Key)
		if err != nil {
			return nil, single, err
		}

		docs, stats, err := c.queryDocuments(ctx, d.bind("SELECT doc FROM "+d.table(q.Table)+" WHERE id = ?"), []any{key}, batchSize)
		if err != nil || len(docs) == 0 {
			return nil, stats, err
		}

		return docs[0], stats, nil
	case OpInsert:
		result, err := c.insert(ctx, q)
		return result, single, err
	case OpDelete:
		deleted, err := c.exec(ctx, "DELETE FROM "+d.table(q.Table))
		return map[string]any{"deleted": deleted}, single, err
	case OpIndexCreate:
		_, err := c.exec(ctx, d.createIndex(q.Table, q.Index))
		return map[string]any{"created": int64(1)}, single, err
	case OpIndexList:
		stmt, args := d.listIndexes(q.Table)
		return c.queryColumn(ctx, stmt, args, batchSize)
	case OpIndexDrop:
		_, err := c.exec(ctx, d.dropIndex(q.Table, q.Index))
		return map[string]any{"dropped": int64(1)}, single, err
	case OpTableCreate:
		result, err := c.createTable(ctx, q.Table)
		return result, single, err
	case OpTableDrop:
		result, err := c.dropTable(ctx, q.Table)
		return result, single, err
	case OpDatabaseEnsure:
		if stmt := d.ensureDatabase(q.Table.Database); stmt != "" {
			_, err := c.exec(ctx, stmt)
			return nil, single, err
		}

		return nil, single, nil
	}

	return nil, single, fmt.Errorf("%w: %s", conformsql.ErrUnsupportedOperation, q.Op)
}

func (c *SQLConn) exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	result, err := c.conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}

	return affected, nil
}

func (c *SQLConn) scalar(ctx context.Context, stmt string, args ...any) (any, error) {
	var value any

	_, err := c.fetch(ctx, stmt, args, DefaultMaxBatchRows, func(columns []*sql.ColumnType, values []any) error {
		value = convertSQLValue(values[0], columns[0].DatabaseTypeName())
		return nil
	})

	return value, err
}

// fetch scans every row of stmt, visiting them in batches of batchSize.
func (c *SQLConn) fetch(ctx context.Context, stmt string, args []any, batchSize int, visit func(columns []*sql.ColumnType, values []any) error) (runStats, error) {
	var stats runStats

	rows, err := c.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	columns, err := rows.ColumnTypes()
	if err != nil {
		return stats, fmt.Errorf("failed to get column types: %w", err)
	}

	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if stats.rows%batchSize == 0 {
			stats.batches++
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return stats, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := visit(columns, values); err != nil {
			return stats, err
		}

		stats.rows++
	}

	if err := rows.Err(); err != nil {
		return stats, err
	}

	if stats.batches == 0 {
		stats.batches = 1
	}

	return stats, nil
}

func (c *SQLConn) queryRows(ctx context.Context, stmt string, args []any, batchSize int) (any, runStats, error) {
	result := []any{}

	stats, err := c.fetch(ctx, stmt, args, batchSize, func(columns []*sql.ColumnType, values []any) error {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col.Name()] = convertSQLValue(values[i], col.DatabaseTypeName())
		}

		result = append(result, row)

		return nil
	})

	return result, stats, err
}

func (c *SQLConn) queryColumn(ctx context.Context, stmt string, args []any, batchSize int) (any, runStats, error) {
	result := []any{}

	stats, err := c.fetch(ctx, stmt, args, batchSize, func(columns []*sql.ColumnType, values []any) error {
		result = append(result, convertSQLValue(values[0], columns[0].DatabaseTypeName()))
		return nil
	})

	return result, stats, err
}

func (c *SQLConn) queryDocuments(ctx context.Context, stmt string, args []any, batchSize int) ([]any, runStats, error) {
	docs := []any{}

	stats, err := c.fetch(ctx, stmt, args, batchSize, func(_ []*sql.ColumnType, values []any) error {
		text, ok := convertSQLValue(values[0], "").(string)
		if !ok {
			return fmt.Errorf("%w: document column is %T", conformsql.ErrInvalidDocument, values[0])
		}

		doc, err := decodeDocument(text)
		if err != nil {
			return err
		}

		docs = append(docs, doc)

		return nil
	})

	return docs, stats, err
}

// insert stores all documents in one transaction and reports
// {"inserted": n, "generated_keys": [...]}; the keys entry is present only
// when ids were generated.
func (c *SQLConn) insert(ctx context.Context, q Query) (any, error) {
	stmt := c.dialect.bind("INSERT INTO " + c.dialect.table(q.Table) + " (id, doc) VALUES (?, ?)")

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	var generated []any

	for _, doc := range q.Docs {
		stored := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			stored[k] = v
		}

		if _, ok := stored["id"]; !ok {
			id := uuid.NewString()
			stored["id"] = id
			generated = append(generated, id)
		}

		key, err := documentKey(stored["id"])
		if err != nil {
			return nil, err
		}

		data, err := encodeDocument(stored)
		if err != nil {
			return nil, err
		}

		if _, err := tx.ExecContext(ctx, stmt, key, data); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result := map[string]any{"inserted": int64(len(q.Docs))}
	if len(generated) > 0 {
		result["generated_keys"] = generated
	}

	return result, nil
}

func (c *SQLConn) tableExists(ctx context.Context, t Table) (bool, error) {
	stmt, args := c.dialect.tableExists(t)

	count, err := c.scalar(ctx, stmt, args...)
	if err != nil {
		return false, err
	}

	n, _ := count.(int64)

	return n > 0, nil
}

func (c *SQLConn) createTable(ctx context.Context, t Table) (any, error) {
	if stmt := c.dialect.ensureDatabase(t.Database); stmt != "" {
		if _, err := c.exec(ctx, stmt); err != nil {
			return nil, err
		}
	}

	if _, err := c.exec(ctx, c.dialect.createTable(t)); err != nil {
		return nil, err
	}

	exists, err := c.tableExists(ctx, t)
	if err != nil {
		return nil, err
	}

	if !exists {
		return map[string]any{"created": int64(0)}, nil
	}

	return map[string]any{"created": int64(1)}, nil
}

func (c *SQLConn) dropTable(ctx context.Context, t Table) (any, error) {
	if _, err := c.exec(ctx, c.dialect.dropTable(t)); err != nil {
		return nil, err
	}

	exists, err := c.tableExists(ctx, t)
	if err != nil {
		return nil, err
	}

	if exists {
		return map[string]any{"dropped": int64(0)}, nil
	}

	return map[string]any{"dropped": int64(1)}, nil
}

// OpenDatabase opens a connection pool and verifies the server answers.
func OpenDatabase(ctx context.Context, driver, connectionString string) (*sql.DB, error) {
	db, err := sql.Open(driver, connectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseConnection, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrDatabaseConnection, err)
	}

	return db, nil
}
