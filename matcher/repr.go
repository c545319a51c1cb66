package matcher

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Repr renders a value canonically. The rendering is deterministic: map keys
// are sorted, strings are quoted and floats always carry a decimal point, so
// 1 and 1.0 render differently.
func Repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case Matcher:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case string:
		return strconv.Quote(x)
	case []byte:
		return strconv.Quote(string(x))
	case error:
		return KindOf(x) + "(" + strconv.Quote(x.Error()) + ")"
	}

	if n, ok := toNumber(v); ok {
		switch n.kind {
		case intKind:
			return strconv.FormatInt(n.i, 10)
		case uintKind:
			return strconv.FormatUint(n.u, 10)
		default:
			return formatFloat(n.f)
		}
	}

	if items, ok := AsList(v); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = Repr(item)
		}

		return "[" + strings.Join(parts, ", ") + "]"
	}

	if entries, ok := AsMap(v); ok {
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + Repr(entries[k])
		}

		return "{" + strings.Join(parts, ", ") + "}"
	}

	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}

	return fmt.Sprintf("%v", v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}

	return s
}
