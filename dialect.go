package conformsql

import "strings"

// Dialect represents supported database dialects
// This type is shared across all packages
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectMariaDB  Dialect = "mariadb"
)

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) (Dialect, bool) {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, true
	case "mysql":
		return DialectMySQL, true
	case "sqlite3", "sqlite":
		return DialectSQLite, true
	}

	return "", false
}

// Family folds dialects that share SQL syntax.
func (d Dialect) Family() Dialect {
	if d == DialectMariaDB {
		return DialectMySQL
	}

	return d
}
