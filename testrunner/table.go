package testrunner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/query"
)

// EnvironmentError reports that the database environment could not be
// prepared or restored.
type EnvironmentError struct {
	Op  string
	Err error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("environment error during %s: %v", e.Op, e.Err)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// Binder receives the table handles created by SetupTable.
type Binder interface {
	Set(name string, value any)
}

// ParseDesignator splits a "db.table" designator.
func ParseDesignator(designator string) (query.Table, error) {
	parts := strings.Split(designator, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return query.Table{}, fmt.Errorf("%w: %q", conformsql.ErrInvalidTableDesignator, designator)
	}

	return query.Table{Database: parts[0], Name: parts[1]}, nil
}

// TableLifecycle creates or borrows the tables a script works on and
// restores them once the run is over.
type TableLifecycle struct {
	conn            query.Conn
	scope           Binder
	defaultDatabase string
	designator      string
	logger          *zap.Logger

	cleanups []func(ctx context.Context) error
}

// NewTableLifecycle creates a lifecycle helper. designator is either
// conformsql.NoTableSpecified or a "db.table" pair.
func NewTableLifecycle(conn query.Conn, scope Binder, defaultDatabase, designator string, logger *zap.Logger) *TableLifecycle {
	return &TableLifecycle{
		conn:            conn,
		scope:           scope,
		defaultDatabase: defaultDatabase,
		designator:      designator,
		logger:          logger,
	}
}

// CheckNoTableSpecified fails when the run was given a table designator.
func (l *TableLifecycle) CheckNoTableSpecified() error {
	if l.designator != conformsql.NoTableSpecified {
		return fmt.Errorf("%w: %s", conformsql.ErrTableSpecified, l.designator)
	}

	return nil
}

// SetupTable binds varName to a table. Without a designator a throwaway
// table named tableName is created in the default database; otherwise the
// designated table is used as is.
func (l *TableLifecycle) SetupTable(ctx context.Context, varName, tableName string) error {
	if l.designator != conformsql.NoTableSpecified {
		tbl, err := ParseDesignator(l.designator)
		if err != nil {
			return err
		}

		l.scope.Set(varName, tbl)
		l.cleanups = append(l.cleanups, func(ctx context.Context) error { return l.clean(ctx, tbl) })
		l.logger.Info("using designated table", zap.Stringer("table", tbl), zap.String("variable", varName))

		return nil
	}

	tbl := query.Table{Database: l.defaultDatabase, Name: tableName}

	result, err := l.conn.Run(ctx, query.CreateTable(tbl), nil)
	if err != nil {
		return &EnvironmentError{Op: "setup_table", Err: fmt.Errorf("%w: %s: %w", conformsql.ErrTableNotCreated, tbl, err)}
	}

	if count(result, "created") != 1 {
		return &EnvironmentError{Op: "setup_table", Err: fmt.Errorf("%w: %s already exists", conformsql.ErrTableNotCreated, tbl)}
	}

	l.scope.Set(varName, tbl)
	l.cleanups = append(l.cleanups, func(ctx context.Context) error { return l.drop(ctx, tbl) })
	l.logger.Info("table created", zap.Stringer("table", tbl), zap.String("variable", varName))

	return nil
}

// Cleanup releases every table set up since the previous Cleanup, in
// reverse setup order. Each table is released once, so the same table
// name can be set up again afterwards.
func (l *TableLifecycle) Cleanup(ctx context.Context) error {
	cleanups := l.cleanups
	l.cleanups = nil

	var errs []error

	for _, cleanup := range slices.Backward(cleanups) {
		if err := cleanup(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return &EnvironmentError{Op: "cleanup", Err: err}
	}

	return nil
}

// drop removes a created table. The drop query reports 1 only when the
// table no longer exists afterwards.
func (l *TableLifecycle) drop(ctx context.Context, tbl query.Table) error {
	result, err := l.conn.Run(ctx, query.DropTable(tbl), nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", conformsql.ErrTableNotDropped, tbl, err)
	}

	if count(result, "dropped") != 1 {
		return fmt.Errorf("%w: %s still exists", conformsql.ErrTableNotDropped, tbl)
	}

	l.logger.Info("table dropped", zap.Stringer("table", tbl))

	return nil
}

// clean empties a designated table and drops its secondary indexes.
func (l *TableLifecycle) clean(ctx context.Context, tbl query.Table) error {
	if _, err := l.conn.Run(ctx, tbl.Delete(), nil); err != nil {
		return fmt.Errorf("failed to delete rows of %s: %w", tbl, err)
	}

	indexes, err := l.indexes(ctx, tbl)
	if err != nil {
		return err
	}

	for _, name := range indexes {
		if _, err := l.conn.Run(ctx, tbl.IndexDrop(name), nil); err != nil {
			return fmt.Errorf("%w: %s on %s: %w", conformsql.ErrIndexNotDropped, name, tbl, err)
		}
	}

	remaining, err := l.indexes(ctx, tbl)
	if err != nil {
		return err
	}

	if len(remaining) > 0 {
		return fmt.Errorf("%w: %s on %s", conformsql.ErrIndexNotDropped, strings.Join(remaining, ", "), tbl)
	}

	l.logger.Info("table cleaned", zap.Stringer("table", tbl), zap.Int("indexes_dropped", len(indexes)))

	return nil
}

func (l *TableLifecycle) indexes(ctx context.Context, tbl query.Table) ([]string, error) {
	result, err := l.conn.Run(ctx, tbl.IndexList(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes of %s: %w", tbl, err)
	}

	items, _ := result.([]any)
	names := make([]string, 0, len(items))

	for _, item := range items {
		names = append(names, fmt.Sprint(item))
	}

	return names, nil
}

// count reads an integer counter from a result map.
func count(result any, key string) int64 {
	m, ok := result.(map[string]any)
	if !ok {
		return -1
	}

	switch n := m[key].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}

	return -1
}
