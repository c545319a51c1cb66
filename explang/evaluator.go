// Package explang evaluates the small expression language conformance test
// scripts are written in. Expressions are CEL, extended with matcher
// constructors (bag, err, err_regex, arrlen, uuid, int_cmp, float_cmp),
// query builders (sql, table and table members) and the variables of the
// current Scope.
package explang

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/matcher"
	"github.com/shibukawa/conformsql/query"
)

// Scope is the read side of the variable bindings visible to expressions.
type Scope interface {
	Names() []string
	Get(name string) (any, bool)
}

// MutableScope is a Scope that define statements can extend.
type MutableScope interface {
	Scope
	Set(name string, value any)
}

// Error kinds reported by EvalError.
const (
	KindCompileError = "CompileError"
	KindEvalError    = "EvalError"
)

// EvalError is a failure to compile or evaluate an expression.
type EvalError struct {
	kind string
	Expr string
	Err  error
}

func (e *EvalError) Kind() string { return e.kind }

func (e *EvalError) Error() string { return e.Err.Error() }

func (e *EvalError) Unwrap() error { return e.Err }

// Evaluator compiles and runs expressions against a Scope.
type Evaluator struct {
	base *cel.Env
}

// NewEvaluator creates an evaluator with the builtin library.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(Library)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	return &Evaluator{base: env}, nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// env declares every scope variable with a type derived from its value.
func (e *Evaluator) env(scope Scope) (*cel.Env, map[string]any, error) {
	if scope == nil {
		return e.base, map[string]any{}, nil
	}

	names := scope.Names()
	vars := make([]*decls.VariableDecl, 0, len(names))
	activation := make(map[string]any, len(names))

	for _, name := range names {
		value, _ := scope.Get(name)
		vars = append(vars, decls.NewVariable(name, declType(value)))
		activation[name] = value
	}

	env, err := e.base.Extend(cel.VariableDecls(vars...))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to declare scope variables: %w", err)
	}

	return env, activation, nil
}

// Eval evaluates text to a plain Go value (see toNative for the shapes).
func (e *Evaluator) Eval(text string, scope Scope) (any, error) {
	env, activation, err := e.env(scope)
	if err != nil {
		return nil, &EvalError{kind: KindCompileError, Expr: text, Err: err}
	}

	ast, issues := env.Compile(text)
	if issues != nil && issues.Err() != nil {
		return nil, &EvalError{kind: KindCompileError, Expr: text, Err: issues.Err()}
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, &EvalError{kind: KindCompileError, Expr: text, Err: err}
	}

	v, _, err := prg.Eval(activation)
	if err != nil {
		return nil, &EvalError{kind: KindEvalError, Expr: text, Err: err}
	}

	result, err := toNative(v)
	if err != nil {
		return nil, &EvalError{kind: KindEvalError, Expr: text, Err: err}
	}

	return result, nil
}

// Build evaluates an expected-value expression into a Matcher. Empty text
// means "anything".
func (e *Evaluator) Build(text string, scope Scope) (matcher.Matcher, error) {
	if strings.TrimSpace(text) == "" {
		return matcher.Wildcard, nil
	}

	v, err := e.Eval(text, scope)
	if err != nil {
		return nil, err
	}

	return matcher.From(v), nil
}

// Query evaluates a test source that must produce a query. A bare table
// selects all of its documents.
func (e *Evaluator) Query(text string, scope Scope) (query.Query, error) {
	v, err := e.Eval(text, scope)
	if err != nil {
		return query.Query{}, err
	}

	switch q := v.(type) {
	case query.Query:
		return q, nil
	case query.Table:
		return q.All(), nil
	}

	return query.Query{}, &EvalError{
		kind: KindEvalError,
		Expr: text,
		Err:  fmt.Errorf("%w: got %s", conformsql.ErrNotAQuery, matcher.Repr(v)),
	}
}

// Define runs "name = expr" statements separated by newlines or ';' and
// binds each result in scope as soon as it is evaluated.
func (e *Evaluator) Define(text string, scope MutableScope) error {
	for _, stmt := range splitStatements(text) {
		name, expr, ok := strings.Cut(stmt, "=")
		name = strings.TrimSpace(name)

		if !ok || !identifier.MatchString(name) || strings.HasPrefix(expr, "=") {
			return &EvalError{kind: KindCompileError, Expr: stmt, Err: fmt.Errorf("%w: %q", conformsql.ErrInvalidDefine, stmt)}
		}

		value, err := e.Eval(expr, scope)
		if err != nil {
			return err
		}

		scope.Set(name, value)
	}

	return nil
}

// splitStatements splits on newlines and on ';' outside string literals.
func splitStatements(text string) []string {
	var (
		stmts   []string
		current strings.Builder
		quote   byte
	)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}

		current.Reset()
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]

		switch {
		case quote != 0:
			if ch == '\\' && i+1 < len(text) {
				current.WriteByte(ch)
				i++
				ch = text[i]
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == ';' || ch == '\n':
			flush()
			continue
		}

		current.WriteByte(ch)
	}

	flush()

	return stmts
}

// IsEvalError reports whether err is an expression failure.
func IsEvalError(err error) bool {
	var evalErr *EvalError
	return errors.As(err, &evalErr)
}
