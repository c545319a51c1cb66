package query

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	moderncsqlite "modernc.org/sqlite"

	"github.com/shibukawa/conformsql"
)

// Error definitions
var (
	ErrDatabaseConnection = errors.New("database connection failed")
)

// errorClass groups driver errors into the kinds tests expect.
type errorClass string

const (
	classQueryCompile errorClass = "query compile"
	classQueryLogic   errorClass = "query logic"
	classConstraint   errorClass = "constraint violation"
	classData         errorClass = "data"
	classTransaction  errorClass = "transaction"
	classConnection   errorClass = "connection"
	classTimeout      errorClass = "timeout"
	classRuntime      errorClass = "runtime"
)

// Kind renders the class as an error kind name, e.g. "QueryCompileError".
func (c errorClass) Kind() string {
	caser := cases.Title(language.English)
	return strings.ReplaceAll(caser.String(string(c)), " ", "") + "Error"
}

// ServerError is a failure reported while running a query. Its message ends
// with the rendered query after "in:\n", the same layout server errors use.
type ServerError struct {
	kind    string
	Code    string
	Message string
	Query   string
	Err     error
}

// NewServerError creates a ServerError with an explicit kind.
func NewServerError(kind, code, message, query string, cause error) *ServerError {
	return &ServerError{kind: kind, Code: code, Message: message, Query: query, Err: cause}
}

func (e *ServerError) Kind() string { return e.kind }

func (e *ServerError) Error() string {
	if e.Query == "" {
		return e.Message
	}

	return e.Message + " in:\n" + e.Query
}

// ServerMessage returns the full message including the offending query.
func (e *ServerError) ServerMessage() string { return e.Error() }

func (e *ServerError) Unwrap() error { return e.Err }

// classifyError converts a driver error into a ServerError.
func classifyError(err error, display string) *ServerError {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr
	}

	class, code, message := classifyDatabaseError(err)

	return NewServerError(class.Kind(), code, message, display, err)
}

func classifyDatabaseError(err error) (errorClass, string, string) {
	// PostgreSQL errors (via pgx)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPostgresError(pgErr), pgErr.Code, pgErr.Message
	}

	// MySQL errors
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return classifyMySQLError(myErr), strconv.Itoa(int(myErr.Number)), myErr.Message
	}

	// SQLite errors (cgo driver)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return classifySQLiteCode(int(sqliteErr.Code)), strconv.Itoa(int(sqliteErr.ExtendedCode)), sqliteErr.Error()
	}

	// SQLite errors (pure Go driver)
	var moderncErr *moderncsqlite.Error
	if errors.As(err, &moderncErr) {
		return classifySQLiteCode(moderncErr.Code() & 0xff), strconv.Itoa(moderncErr.Code()), moderncErr.Error()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return classTimeout, "", err.Error()
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return classConnection, "", err.Error()
	case errors.Is(err, conformsql.ErrInvalidDocument), errors.Is(err, conformsql.ErrUnsupportedOperation):
		return classQueryLogic, "", err.Error()
	}

	return classRuntime, "", err.Error()
}

// classifyPostgresError classifies PostgreSQL errors by SQLSTATE class
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
func classifyPostgresError(err *pgconn.PgError) errorClass {
	if len(err.Code) < 2 {
		return classRuntime
	}

	switch err.Code[:2] {
	case "42": // syntax error or access rule violation
		return classQueryCompile
	case "23": // integrity constraint violation
		return classConstraint
	case "22": // data exception
		return classData
	case "40": // transaction rollback
		return classTransaction
	case "08": // connection exception
		return classConnection
	case "57":
		if err.Code == "57014" { // query_canceled
			return classTimeout
		}
	}

	return classRuntime
}

// classifyMySQLError classifies MySQL errors based on error numbers
// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
func classifyMySQLError(err *mysql.MySQLError) errorClass {
	switch err.Number {
	case 1049, 1054, 1064, 1146, 1149: // unknown db, bad field, parse error, no such table
		return classQueryCompile
	case 1048, 1062, 1364, 1451, 1452, 3819:
		return classConstraint
	case 1264, 1265, 1292, 1366, 1406, 1690:
		return classData
	case 1205, 1213: // lock wait timeout, deadlock
		return classTransaction
	case 2006, 2013: // server gone away, lost connection
		return classConnection
	}

	return classRuntime
}

// SQLite primary result codes shared by both drivers.
const (
	sqliteError      = 1
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteCantOpen   = 14
	sqliteTooBig     = 18
	sqliteConstraint = 19
	sqliteMismatch   = 20
	sqliteRange      = 25
)

// classifySQLiteCode classifies SQLite primary result codes
// See: https://www.sqlite.org/rescode.html
func classifySQLiteCode(code int) errorClass {
	switch code {
	case sqliteError:
		return classQueryCompile
	case sqliteConstraint:
		return classConstraint
	case sqliteMismatch, sqliteRange, sqliteTooBig:
		return classData
	case sqliteBusy, sqliteLocked:
		return classTransaction
	case sqliteCantOpen:
		return classConnection
	}

	return classRuntime
}
