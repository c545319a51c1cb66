// Package query models the queries a conformance test can run and executes
// them against a SQL connection.
//
// Queries are plain values. A Query describes an operation (raw SQL or a
// document-table operation) and is turned into dialect-specific SQL only
// when a connection runs it, so the same test script runs unchanged on
// PostgreSQL, MySQL and SQLite.
package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shibukawa/conformsql"
)

// Op identifies the operation a Query performs.
type Op int

const (
	OpSQL Op = iota + 1
	OpCount
	OpAll
	OpGet
	OpInsert
	OpDelete
	OpIndexCreate
	OpIndexList
	OpIndexDrop
	OpTableCreate
	OpTableDrop
	OpDatabaseEnsure
)

var opNames = map[Op]string{
	OpSQL:            "sql",
	OpCount:          "count",
	OpAll:            "all",
	OpGet:            "get",
	OpInsert:         "insert",
	OpDelete:         "delete",
	OpIndexCreate:    "index_create",
	OpIndexList:      "index_list",
	OpIndexDrop:      "index_drop",
	OpTableCreate:    "table_create",
	OpTableDrop:      "table_drop",
	OpDatabaseEnsure: "db_ensure",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}

	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Table is a handle to a document table: an id primary key plus a JSON doc column.
type Table struct {
	Database string
	Name     string
}

func (t Table) String() string {
	return fmt.Sprintf("table(%s, %s)", strconv.Quote(t.Database), strconv.Quote(t.Name))
}

// Query is an executable description of one operation.
type Query struct {
	Op        Op
	Table     Table
	Statement string
	Args      []any
	Docs      []map[string]any
	Key       any
	Index     string
}

// SQL builds a raw statement query. Placeholders are written as '?'.
func SQL(statement string, args ...any) Query {
	return Query{Op: OpSQL, Statement: statement, Args: args}
}

// Count counts the documents of the table.
func (t Table) Count() Query { return Query{Op: OpCount, Table: t} }

// All selects every document of the table, ordered by id.
func (t Table) All() Query { return Query{Op: OpAll, Table: t} }

// Get selects the document with the given id, or null.
func (t Table) Get(key any) Query { return Query{Op: OpGet, Table: t, Key: key} }

// Insert stores documents; documents without an id get a generated one.
func (t Table) Insert(docs ...map[string]any) Query {
	return Query{Op: OpInsert, Table: t, Docs: docs}
}

// Delete removes every document of the table.
func (t Table) Delete() Query { return Query{Op: OpDelete, Table: t} }

// IndexCreate creates a secondary index.
func (t Table) IndexCreate(name string) Query { return Query{Op: OpIndexCreate, Table: t, Index: name} }

// IndexList lists the secondary indexes of the table.
func (t Table) IndexList() Query { return Query{Op: OpIndexList, Table: t} }

// IndexDrop drops a secondary index.
func (t Table) IndexDrop(name string) Query { return Query{Op: OpIndexDrop, Table: t, Index: name} }

// CreateTable creates the document table.
func CreateTable(t Table) Query { return Query{Op: OpTableCreate, Table: t} }

// DropTable drops the document table.
func DropTable(t Table) Query { return Query{Op: OpTableDrop, Table: t} }

// EnsureDatabase creates the database (schema) when the dialect has one and it is missing.
func EnsureDatabase(name string) Query {
	return Query{Op: OpDatabaseEnsure, Table: Table{Database: name}}
}

// Render turns the query back into the expression text that builds it.
// It fails when an argument has no textual form (NaN, channels, ...).
func (q Query) Render() (string, error) {
	switch q.Op {
	case OpSQL:
		if len(q.Args) == 0 {
			return "sql(" + strconv.Quote(q.Statement) + ")", nil
		}

		args, err := renderJSON(q.Args)
		if err != nil {
			return "", err
		}

		return "sql(" + strconv.Quote(q.Statement) + ", " + args + ")", nil
	case OpGet:
		key, err := renderJSON(q.Key)
		if err != nil {
			return "", err
		}

		return q.Table.String() + ".get(" + key + ")", nil
	case OpInsert:
		docs, err := renderJSON(q.Docs)
		if err != nil {
			return "", err
		}

		return q.Table.String() + ".insert(" + docs + ")", nil
	case OpIndexCreate, OpIndexDrop:
		return q.Table.String() + "." + q.Op.String() + "(" + strconv.Quote(q.Index) + ")", nil
	case OpCount, OpAll, OpDelete, OpIndexList:
		return q.Table.String() + "." + q.Op.String() + "()", nil
	case OpTableCreate, OpTableDrop:
		return q.Op.String() + "(" + strconv.Quote(q.Table.Database) + ", " + strconv.Quote(q.Table.Name) + ")", nil
	case OpDatabaseEnsure:
		return q.Op.String() + "(" + strconv.Quote(q.Table.Database) + ")", nil
	}

	return "", fmt.Errorf("%w: %s", conformsql.ErrUnsupportedOperation, q.Op)
}

func (q Query) String() string {
	text, err := q.Render()
	if err != nil {
		return "<" + q.Op.String() + " query>"
	}

	return text
}

func renderJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %w", conformsql.ErrUnrenderableQuery, err)
	}

	return strings.TrimSpace(string(data)), nil
}
