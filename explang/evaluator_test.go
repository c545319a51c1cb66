package explang

import (
	"errors"
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/matcher"
	"github.com/shibukawa/conformsql/query"
)

type mapScope struct {
	names  []string
	values map[string]any
}

func newMapScope() *mapScope { return &mapScope{values: map[string]any{}} }

func (s *mapScope) Names() []string { return s.names }

func (s *mapScope) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

func (s *mapScope) Set(name string, value any) {
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}

	s.values[name] = value
}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()

	e, err := NewEvaluator()
	assert.NoError(t, err)

	return e
}

func TestEvaluator_Build(t *testing.T) {
	e := newTestEvaluator(t)

	tests := []struct {
		name     string
		expr     string
		matches  []any
		rejects  []any
		rendered string
	}{
		{
			name:     "literal list",
			expr:     `[1, "a", null]`,
			matches:  []any{[]any{int64(1), "a", nil}},
			rejects:  []any{[]any{"a", int64(1), nil}},
			rendered: `[1, "a", null]`,
		},
		{
			name:     "bag",
			expr:     `bag([1, 2, 3])`,
			matches:  []any{[]any{int64(3), int64(1), int64(2)}},
			rejects:  []any{[]any{int64(2), int64(2), int64(1)}},
			rendered: `bag([1, 2, 3])`,
		},
		{
			name:     "map with nested matchers",
			expr:     `{"inserted": 2, "generated_keys": arrlen(2, uuid())}`,
			matches:  []any{map[string]any{"inserted": int64(2), "generated_keys": []any{"550e8400-e29b-41d4-a716-446655440000", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}}},
			rejects:  []any{map[string]any{"inserted": int64(2), "generated_keys": []any{"x", "y"}}},
			rendered: `{"generated_keys": arrlen(2, uuid()), "inserted": 2}`,
		},
		{
			name:     "tagged int",
			expr:     `int_cmp(5)`,
			matches:  []any{int64(5)},
			rejects:  []any{5.0},
			rendered: `int_cmp(5)`,
		},
		{
			name:     "tagged float widens int",
			expr:     `float_cmp(5)`,
			matches:  []any{5.0},
			rejects:  []any{int64(5)},
			rendered: `float_cmp(5.0)`,
		},
		{
			name:     "error kind and message",
			expr:     `err("stubError", "boom", [])`,
			matches:  []any{&stubError{"boom"}},
			rejects:  []any{&stubError{"other"}, "boom"},
			rendered: `err("stubError", "boom")`,
		},
		{
			name:     "error regex with null kind",
			expr:     `err_regex(null, "bo+m")`,
			matches:  []any{&stubError{"boom and more"}},
			rejects:  []any{&stubError{"a boom"}},
			rendered: `err_regex(null, "bo+m")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := e.Build(tt.expr, nil)
			assert.NoError(t, err)

			for _, v := range tt.matches {
				assert.True(t, m.Match(v), "expected %s to match %s", tt.expr, matcher.Repr(v))
			}

			for _, v := range tt.rejects {
				assert.False(t, m.Match(v), "expected %s to reject %s", tt.expr, matcher.Repr(v))
			}

			assert.Equal(t, tt.rendered, m.String())
		})
	}
}

func TestEvaluator_BuildEmptyIsWildcard(t *testing.T) {
	e := newTestEvaluator(t)

	m, err := e.Build("  \n", nil)
	assert.NoError(t, err)
	assert.True(t, matcher.IsWildcard(m))
}

func TestEvaluator_BuildErrors(t *testing.T) {
	e := newTestEvaluator(t)

	_, err := e.Build(`undefined_name + 1`, nil)
	var evalErr *EvalError
	assert.True(t, errors.As(err, &evalErr))
	assert.Equal(t, KindCompileError, evalErr.Kind())

	_, err = e.Build(`err_regex("RuntimeError", "(")`, nil)
	assert.True(t, errors.As(err, &evalErr))
	assert.Equal(t, KindEvalError, evalErr.Kind())
	assert.IsError(t, err, conformsql.ErrInvalidPattern)

	_, err = e.Build(`arrlen(-1)`, nil)
	assert.IsError(t, err, conformsql.ErrInvalidArgument)

	_, err = e.Build(`int_cmp(18446744073709551615u)`, nil)
	assert.IsError(t, err, conformsql.ErrInvalidArgument)

	m, err := e.Build(`int_cmp(9223372036854775807u)`, nil)
	assert.NoError(t, err)
	assert.True(t, m.Match(int64(math.MaxInt64)))
}

func TestEvaluator_Query(t *testing.T) {
	e := newTestEvaluator(t)
	scope := newMapScope()
	scope.Set("tbl", query.Table{Database: "test", Name: "t"})

	q, err := e.Query(`tbl.count()`, scope)
	assert.NoError(t, err)
	assert.Equal(t, query.OpCount, q.Op)
	assert.Equal(t, "t", q.Table.Name)

	q, err = e.Query(`tbl`, scope)
	assert.NoError(t, err)
	assert.Equal(t, query.OpAll, q.Op)

	q, err = e.Query(`tbl.insert([{"id": 1, "v": [1.5, "x"]}, {"v": null}])`, scope)
	assert.NoError(t, err)
	assert.Equal(t, query.OpInsert, q.Op)
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "v": []any{1.5, "x"}},
		{"v": nil},
	}, q.Docs)

	q, err = e.Query(`sql("SELECT ? + ?", [1, 2])`, scope)
	assert.NoError(t, err)
	assert.Equal(t, query.SQL("SELECT ? + ?", int64(1), int64(2)), q)

	q, err = e.Query(`table("other", "t2").index_create("ix")`, scope)
	assert.NoError(t, err)
	assert.Equal(t, query.Table{Database: "other", Name: "t2"}.IndexCreate("ix"), q)

	_, err = e.Query(`1 + 1`, scope)
	assert.IsError(t, err, conformsql.ErrNotAQuery)

	_, err = e.Query(`tbl.insert(3)`, scope)
	assert.IsError(t, err, conformsql.ErrInvalidDocument)
}

func TestEvaluator_Define(t *testing.T) {
	e := newTestEvaluator(t)
	scope := newMapScope()

	err := e.Define("a = 2\nb = a * 3; s = 'x;y'", scope)
	assert.NoError(t, err)

	b, ok := scope.Get("b")
	assert.True(t, ok)
	assert.Equal(t, any(int64(6)), b)

	s, _ := scope.Get("s")
	assert.Equal(t, any("x;y"), s)

	err = e.Define("not a define", scope)
	assert.IsError(t, err, conformsql.ErrInvalidDefine)

	err = e.Define("c == 1", scope)
	assert.IsError(t, err, conformsql.ErrInvalidDefine)
}

func TestEvaluator_ScopeHostValues(t *testing.T) {
	e := newTestEvaluator(t)
	scope := newMapScope()
	scope.Set("captured", &stubError{"boom"})
	scope.Set("expected", matcher.TaggedInt{Value: 3})
	scope.Set("rows", []any{map[string]any{"id": "a"}})

	v, err := e.Eval(`[captured, expected, rows[0].id, gen_uuid().size()]`, scope)
	assert.NoError(t, err)
	assert.Equal(t, []any{&stubError{"boom"}, matcher.TaggedInt{Value: 3}, "a", int64(36)}, v.([]any))
}
