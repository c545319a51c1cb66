package matcher

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type uuidShape struct{}

// UUIDShape matches a lowercase canonical 8-4-4-4-12 hex string.
var UUIDShape Matcher = uuidShape{}

func (uuidShape) Match(actual any) bool {
	s, ok := actual.(string)
	if !ok || len(s) != 36 || s != strings.ToLower(s) {
		return false
	}

	_, err := uuid.Parse(s)

	return err == nil
}

func (uuidShape) String() string { return "uuid()" }

// TaggedInt matches integers equal to Value and rejects floats.
type TaggedInt struct {
	Value int64
}

func (t TaggedInt) Match(actual any) bool {
	n, ok := toNumber(actual)
	return ok && n.isInteger() && numbersEqual(n, number{kind: intKind, i: t.Value})
}

func (t TaggedInt) String() string {
	return "int_cmp(" + strconv.FormatInt(t.Value, 10) + ")"
}

// TaggedFloat matches floats equal to Value and rejects integers.
type TaggedFloat struct {
	Value float64
}

func (t TaggedFloat) Match(actual any) bool {
	n, ok := toNumber(actual)
	return ok && n.kind == floatKind && n.f == t.Value
}

func (t TaggedFloat) String() string {
	return "float_cmp(" + formatFloat(t.Value) + ")"
}
