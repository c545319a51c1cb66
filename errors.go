package conformsql

import "errors"

// Common errors used throughout the conformsql packages
var (
	// ErrInvalidTableDesignator is returned when the db.table designator does not contain exactly one dot.
	// Table lifecycle errors
	ErrInvalidTableDesignator = errors.New("table designator must be of the form db.table")
	// ErrTableSpecified is returned by scripts that manage their own tables when a designator was given.
	ErrTableSpecified = errors.New("this test suite does not support a table designator")
	// ErrTableNotCreated indicates that table creation did not report exactly one created table.
	ErrTableNotCreated = errors.New("table was not created")
	// ErrTableNotDropped indicates that a drop did not remove the table.
	ErrTableNotDropped = errors.New("table was not dropped")
	// ErrIndexNotDropped indicates that a secondary index survived cleanup.
	ErrIndexNotDropped = errors.New("index was not dropped")

	// ErrUnsupportedDialect is returned for dialects without a SQL rendering.
	// Query errors
	ErrUnsupportedDialect = errors.New("unsupported dialect")
	// ErrUnsupportedOperation indicates a query operation the connection cannot run.
	ErrUnsupportedOperation = errors.New("unsupported query operation")
	// ErrInvalidDocument is returned when an inserted document is not a string-keyed map.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrUnrenderableQuery indicates a query whose arguments cannot be rendered back to text.
	ErrUnrenderableQuery = errors.New("query cannot be rendered")

	// ErrInvalidPattern is returned when an error message regex does not compile.
	// Expression errors
	ErrInvalidPattern = errors.New("invalid error message pattern")
	// ErrInvalidArgument indicates a constructor received an argument of the wrong shape.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotAQuery is returned when a test source does not evaluate to a query.
	ErrNotAQuery = errors.New("expression did not produce a query")
	// ErrInvalidDefine indicates a define statement that is not of the form name = expr.
	ErrInvalidDefine = errors.New("define statement must be of the form name = expr")

	// ErrUnknownCall is returned for script entries naming an unknown call.
	// Script errors
	ErrUnknownCall = errors.New("unknown script call")
	// ErrMalformedCall indicates a script entry that is neither a name nor a single-key map.
	ErrMalformedCall = errors.New("malformed script call")
	// ErrMissingField indicates a required field of a script call was empty.
	ErrMissingField = errors.New("missing required field")
	// ErrNoScripts is returned when the given paths contain no script files.
	ErrNoScripts = errors.New("no test scripts found")
)
