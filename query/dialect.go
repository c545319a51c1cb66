package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shibukawa/conformsql"
)

// sqlDialect renders document-table operations for one database family.
// Without database support (SQLite) the database part of a table handle is
// ignored.
type sqlDialect struct {
	dialect conformsql.Dialect
	family  conformsql.Dialect
}

func newSQLDialect(dialect conformsql.Dialect) (sqlDialect, error) {
	switch family := dialect.Family(); family {
	case conformsql.DialectPostgres, conformsql.DialectMySQL, conformsql.DialectSQLite:
		return sqlDialect{dialect: dialect, family: family}, nil
	}

	return sqlDialect{}, fmt.Errorf("%w: %s", conformsql.ErrUnsupportedDialect, dialect)
}

func (d sqlDialect) quote(ident string) string {
	if d.family == conformsql.DialectMySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}

	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d sqlDialect) table(t Table) string {
	if !d.dialect.Supports(conformsql.FeatureDatabases) || t.Database == "" {
		return d.quote(t.Name)
	}

	return d.quote(t.Database) + "." + d.quote(t.Name)
}

// bind converts '?' placeholders for the dialect. Quotes are respected.
func (d sqlDialect) bind(sql string) string {
	if !d.dialect.Supports(conformsql.FeatureNumberedPlaceholders) {
		return sql
	}

	var b strings.Builder

	n := 1
	inSingle := false
	inDouble := false

	for i := range len(sql) {
		ch := sql[i]
		if ch == '\'' && !inDouble {
			inSingle = !inSingle

			b.WriteByte(ch)

			continue
		}

		if ch == '"' && !inSingle {
			inDouble = !inDouble

			b.WriteByte(ch)

			continue
		}

		if ch == '?' && !inSingle && !inDouble {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			n++

			continue
		}

		b.WriteByte(ch)
	}

	return b.String()
}

func (d sqlDialect) ensureDatabase(name string) string {
	if !d.dialect.Supports(conformsql.FeatureDatabases) {
		return ""
	}

	switch d.family {
	case conformsql.DialectPostgres:
		return "CREATE SCHEMA IF NOT EXISTS " + d.quote(name)
	case conformsql.DialectMySQL:
		return "CREATE DATABASE IF NOT EXISTS " + d.quote(name)
	}

	return ""
}

func (d sqlDialect) createTable(t Table) string {
	if d.family == conformsql.DialectMySQL {
		return "CREATE TABLE " + d.table(t) + " (id VARCHAR(191) PRIMARY KEY, doc LONGTEXT NOT NULL)"
	}

	return "CREATE TABLE " + d.table(t) + " (id TEXT PRIMARY KEY, doc TEXT NOT NULL)"
}

func (d sqlDialect) dropTable(t Table) string {
	return "DROP TABLE " + d.table(t)
}

func (d sqlDialect) tableExists(t Table) (string, []any) {
	if d.family == conformsql.DialectSQLite {
		return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", []any{t.Name}
	}

	return d.bind("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"), []any{t.Database, t.Name}
}

// listIndexes selects secondary index names; primary key indexes are excluded.
func (d sqlDialect) listIndexes(t Table) (string, []any) {
	switch d.family {
	case conformsql.DialectPostgres:
		return "SELECT indexname FROM pg_indexes WHERE schemaname = $1 AND tablename = $2" +
			" AND indexname NOT IN (SELECT conname FROM pg_constraint) ORDER BY indexname", []any{t.Database, t.Name}
	case conformsql.DialectMySQL:
		return "SELECT DISTINCT index_name FROM information_schema.statistics WHERE table_schema = ? AND table_name = ?" +
			" AND index_name <> 'PRIMARY' ORDER BY index_name", []any{t.Database, t.Name}
	}

	return "SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL ORDER BY name", []any{t.Name}
}

func (d sqlDialect) createIndex(t Table, name string) string {
	return "CREATE INDEX " + d.quote(name) + " ON " + d.table(t) + " (id)"
}

func (d sqlDialect) dropIndex(t Table, name string) string {
	switch d.family {
	case conformsql.DialectPostgres:
		return "DROP INDEX " + d.quote(t.Database) + "." + d.quote(name)
	case conformsql.DialectMySQL:
		return "DROP INDEX " + d.quote(name) + " ON " + d.table(t)
	}

	return "DROP INDEX " + d.quote(name)
}

// returnsRows guesses whether a raw statement produces a result set.
func (d sqlDialect) returnsRows(sql string) bool {
	fields := strings.Fields(strings.ToUpper(sql))
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "SELECT", "WITH", "VALUES", "SHOW", "PRAGMA", "EXPLAIN", "DESCRIBE", "TABLE":
		return true
	}

	if !d.dialect.Supports(conformsql.FeatureReturning) {
		return false
	}

	for _, f := range fields[1:] {
		if f == "RETURNING" {
			return true
		}
	}

	return false
}
