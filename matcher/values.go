package matcher

import (
	"reflect"
)

// AsList views any slice or array (other than []byte) as []any.
func AsList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case nil, string, []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}

	return items, true
}

// AsMap views any map with string keys as map[string]any.
func AsMap(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	entries := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries[iter.Key().String()] = iter.Value().Interface()
	}

	return entries, true
}
