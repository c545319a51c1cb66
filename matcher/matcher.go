// Package matcher implements the comparison vocabulary that decides whether
// an actual query result satisfies an expected value.
//
// Expected values are trees of Matchers. Plain values are lifted into the
// tree with From: slices become Sequences, string-keyed maps become
// Mappings and everything else becomes a Literal. Matching is pure and
// never panics on unexpected shapes; a shape mismatch is simply false.
package matcher

import (
	"errors"
	"reflect"
)

// Matcher is the single capability every expected value exposes.
type Matcher interface {
	// Match reports whether actual satisfies the expectation.
	Match(actual any) bool
	// String renders the expectation for diagnostics and ordering.
	String() string
}

type wildcard struct{}

// Wildcard matches any actual value, including error conditions.
var Wildcard Matcher = wildcard{}

func (wildcard) Match(any) bool { return true }

func (wildcard) String() string { return "any()" }

// IsWildcard reports whether m is the Wildcard matcher.
func IsWildcard(m Matcher) bool {
	_, ok := m.(wildcard)
	return ok
}

// IsErrorDescriptor reports whether m expects an error condition.
func IsErrorDescriptor(m Matcher) bool {
	_, ok := m.(ErrorDescriptor)
	return ok
}

// From converts a plain expected value into a matcher tree.
func From(v any) Matcher {
	switch x := v.(type) {
	case Matcher:
		return x
	case nil:
		return Literal{}
	case error, string, []byte:
		return Literal{Value: x}
	}

	if items, ok := AsList(v); ok {
		return NewSequence(items)
	}

	if entries, ok := AsMap(v); ok {
		return NewMapping(entries)
	}

	return Literal{Value: v}
}

func fromAll(items []any) []Matcher {
	matchers := make([]Matcher, len(items))
	for i, item := range items {
		matchers[i] = From(item)
	}

	return matchers
}

// Literal matches a scalar by value.
//
// Numbers compare across integer and float kinds, so Literal{1} matches
// 1.0. Errors compare by kind and message. Anything else falls back to
// deep equality.
type Literal struct {
	Value any
}

func (l Literal) Match(actual any) bool {
	switch exp := l.Value.(type) {
	case nil:
		return isNil(actual)
	case bool:
		act, ok := actual.(bool)
		return ok && act == exp
	case string:
		act, ok := asString(actual)
		return ok && act == exp
	case []byte:
		act, ok := asString(actual)
		return ok && act == string(exp)
	case error:
		act, ok := actual.(error)
		return ok && act != nil && KindOf(act) == KindOf(exp) && act.Error() == exp.Error()
	}

	if exp, ok := toNumber(l.Value); ok {
		act, ok := toNumber(actual)
		return ok && numbersEqual(exp, act)
	}

	return reflect.DeepEqual(l.Value, actual)
}

func (l Literal) String() string { return Repr(l.Value) }

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}

	return "", false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}

	return false
}

// KindOf returns the kind name of an error: the Kind() of the first error in
// its chain that declares one, otherwise the Go type name of err.
func KindOf(err error) string {
	if err == nil {
		return ""
	}

	var kinded interface{ Kind() string }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Name() != "" {
		return t.Name()
	}

	return t.String()
}
