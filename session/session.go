// Package session owns the database connections and the variable scope of
// one conformance run.
package session

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	// database/sql drivers selectable through the configuration
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/query"
)

// Manager hands out connections and the shared scope.
type Manager struct {
	db              *sql.DB
	ownsDB          bool
	dialect         conformsql.Dialect
	defaultDatabase string
	primary         query.Conn
	scope           *Scope
	logger          *zap.Logger
}

// Open connects to the server described by cfg on the given port.
func Open(ctx context.Context, cfg *conformsql.Config, port int, logger *zap.Logger) (*Manager, error) {
	db, err := query.OpenDatabase(ctx, cfg.Driver, cfg.DataSourceName(port))
	if err != nil {
		return nil, err
	}

	m, err := New(ctx, db, cfg.ResolvedDialect(), cfg.DefaultDatabase, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	m.ownsDB = true

	logger.Info("connected", zap.String("driver", cfg.Driver), zap.String("host", cfg.Host), zap.Int("port", port))

	return m, nil
}

// New builds a Manager on an existing pool. It opens the primary
// connection and ensures the default database exists.
func New(ctx context.Context, db *sql.DB, dialect conformsql.Dialect, defaultDatabase string, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		db:              db,
		dialect:         dialect,
		defaultDatabase: defaultDatabase,
		scope:           NewScope(),
		logger:          logger,
	}

	primary, err := m.Connect(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := primary.Run(ctx, query.EnsureDatabase(defaultDatabase), nil); err != nil {
		primary.Close()
		return nil, fmt.Errorf("failed to ensure database %q: %w", defaultDatabase, err)
	}

	m.primary = primary

	return m, nil
}

// Primary returns the connection tests use unless they ask for a new one.
func (m *Manager) Primary() query.Conn { return m.primary }

// Connect opens an independent connection. The caller owns it; the
// manager does not track it.
func (m *Manager) Connect(ctx context.Context) (query.Conn, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", query.ErrDatabaseConnection, err)
	}

	c, err := query.NewSQLConn(conn, m.dialect)
	if err != nil {
		conn.Close()
		return nil, err
	}

	m.logger.Debug("connection opened", zap.String("dialect", string(m.dialect)))

	return c, nil
}

// Scope returns the scope shared by all tests of the run.
func (m *Manager) Scope() *Scope { return m.scope }

// Dialect returns the SQL dialect of the server.
func (m *Manager) Dialect() conformsql.Dialect { return m.dialect }

// DefaultDatabase returns the database throwaway tables are created in.
func (m *Manager) DefaultDatabase() string { return m.defaultDatabase }

// Close closes the primary connection and, for managers created by Open, the pool.
func (m *Manager) Close() error {
	var err error
	if m.primary != nil {
		err = m.primary.Close()
	}

	if m.ownsDB {
		if cerr := m.db.Close(); err == nil {
			err = cerr
		}
	}

	return err
}
