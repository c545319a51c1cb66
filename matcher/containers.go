package matcher

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Sequence matches an ordered list element by element.
type Sequence struct {
	Items []Matcher
}

// NewSequence lifts plain items into a Sequence.
func NewSequence(items []any) Sequence {
	return Sequence{Items: fromAll(items)}
}

func (s Sequence) Match(actual any) bool {
	act, ok := AsList(actual)
	if !ok || len(act) != len(s.Items) {
		return false
	}

	for i, item := range s.Items {
		if !item.Match(act[i]) {
			return false
		}
	}

	return true
}

func (s Sequence) String() string { return renderList(s.Items) }

// Multiset matches an unordered collection.
//
// Both sides are sorted by their canonical rendering and then compared as
// Sequences. Elements whose expected and actual renderings sort differently
// (tagged numerics, uuid shapes) may therefore fail to pair up.
type Multiset struct {
	Items []Matcher
}

// NewMultiset builds a Multiset; items are ordered by String at construction.
func NewMultiset(items []any) Multiset {
	matchers := fromAll(items)
	sort.SliceStable(matchers, func(i, j int) bool {
		return matchers[i].String() < matchers[j].String()
	})

	return Multiset{Items: matchers}
}

func (m Multiset) Match(actual any) bool {
	act, ok := AsList(actual)
	if !ok || len(act) != len(m.Items) {
		return false
	}

	type keyed struct {
		key   string
		value any
	}

	sorted := make([]keyed, len(act))
	for i, v := range act {
		sorted[i] = keyed{key: Repr(v), value: v}
	}

	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].key < sorted[j].key })

	for i, item := range m.Items {
		if !item.Match(sorted[i].value) {
			return false
		}
	}

	return true
}

func (m Multiset) String() string { return "bag(" + renderList(m.Items) + ")" }

// assertionTrailer is appended by servers to some result strings.
var assertionTrailer = regexp.MustCompile(`(?s)\nFailed assertion:.*`)

// StripAssertionTrailer removes a trailing "\nFailed assertion:..." block.
func StripAssertionTrailer(s string) string {
	return assertionTrailer.ReplaceAllString(s, "")
}

// Mapping matches a string-keyed map with exactly the same key set.
type Mapping struct {
	Entries map[string]Matcher
}

// NewMapping lifts plain entries into a Mapping.
func NewMapping(entries map[string]any) Mapping {
	m := make(map[string]Matcher, len(entries))
	for k, v := range entries {
		m[k] = From(v)
	}

	return Mapping{Entries: m}
}

func (m Mapping) Match(actual any) bool {
	act, ok := AsMap(actual)
	if !ok || len(act) != len(m.Entries) {
		return false
	}

	for key, expected := range m.Entries {
		value, ok := act[key]
		if !ok {
			return false
		}

		if s, ok := value.(string); ok {
			value = StripAssertionTrailer(s)
		}

		if !expected.Match(value) {
			return false
		}
	}

	return true
}

func (m Mapping) String() string {
	keys := make([]string, 0, len(m.Entries))
	for k := range m.Entries {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Quote(k) + ": " + m.Entries[k].String()
	}

	return "{" + strings.Join(parts, ", ") + "}"
}

// FixedArray matches a list of an exact length whose elements all satisfy
// Element. A nil Element checks only the length.
type FixedArray struct {
	Length  int
	Element Matcher
}

func (a FixedArray) Match(actual any) bool {
	act, ok := AsList(actual)
	if !ok || len(act) != a.Length {
		return false
	}

	if a.Element == nil {
		return true
	}

	for _, v := range act {
		if !a.Element.Match(v) {
			return false
		}
	}

	return true
}

func (a FixedArray) String() string {
	if a.Element == nil {
		return "arrlen(" + strconv.Itoa(a.Length) + ")"
	}

	return "arrlen(" + strconv.Itoa(a.Length) + ", " + a.Element.String() + ")"
}

func renderList(items []Matcher) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}

	return "[" + strings.Join(parts, ", ") + "]"
}
