package explang

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/matcher"
	"github.com/shibukawa/conformsql/query"
)

// CEL types for host values that have no CEL counterpart.
var (
	MatcherType = cel.OpaqueType("conformsql.Matcher")
	QueryType   = cel.OpaqueType("conformsql.Query")
	TableType   = cel.OpaqueType("conformsql.Table")
	ErrorType   = cel.OpaqueType("conformsql.Error")
)

// hostValue carries a Go value through CEL evaluation unchanged.
type hostValue struct {
	typ *types.Type
	val any
}

var _ ref.Val = (*hostValue)(nil)

func (h *hostValue) ConvertToNative(typeDesc reflect.Type) (any, error) {
	if reflect.TypeOf(h.val).AssignableTo(typeDesc) {
		return h.val, nil
	}

	return nil, fmt.Errorf("%w: cannot convert %s to %v", conformsql.ErrInvalidArgument, h.typ.TypeName(), typeDesc)
}

func (h *hostValue) ConvertToType(typeVal ref.Type) ref.Val {
	switch {
	case typeVal == types.TypeType:
		return h.typ
	case typeVal == types.StringType:
		return types.String(matcher.Repr(h.val))
	case typeVal.TypeName() == h.typ.TypeName():
		return h
	}

	return types.NewErr("type conversion error from '%s' to '%s'", h.typ.TypeName(), typeVal.TypeName())
}

func (h *hostValue) Equal(other ref.Val) ref.Val {
	o, ok := other.(*hostValue)
	return types.Bool(ok && o.typ.TypeName() == h.typ.TypeName() && reflect.DeepEqual(h.val, o.val))
}

func (h *hostValue) Type() ref.Type { return h.typ }

func (h *hostValue) Value() any { return h.val }

// hostAdapter converts scope values and builtin results into CEL values.
type hostAdapter struct{}

var _ types.Adapter = hostAdapter{}

func (hostAdapter) NativeToValue(value any) ref.Val { return toValue(value) }

func toValue(v any) ref.Val {
	switch x := v.(type) {
	case nil:
		return types.NullValue
	case ref.Val:
		return x
	case matcher.Matcher:
		return &hostValue{typ: MatcherType, val: x}
	case query.Query:
		return &hostValue{typ: QueryType, val: x}
	case query.Table:
		return &hostValue{typ: TableType, val: x}
	case error:
		return &hostValue{typ: ErrorType, val: x}
	}

	if items, ok := matcher.AsList(v); ok {
		elems := make([]ref.Val, len(items))
		for i, item := range items {
			elems[i] = toValue(item)
		}

		return types.NewRefValList(hostAdapter{}, elems)
	}

	if entries, ok := matcher.AsMap(v); ok {
		m := make(map[ref.Val]ref.Val, len(entries))
		for k, item := range entries {
			m[types.String(k)] = toValue(item)
		}

		return types.NewRefValMap(hostAdapter{}, m)
	}

	return types.DefaultTypeAdapter.NativeToValue(v)
}

// declType is the CEL type a scope variable is declared with.
func declType(v any) *cel.Type {
	switch v.(type) {
	case matcher.Matcher:
		return MatcherType
	case query.Query:
		return QueryType
	case query.Table:
		return TableType
	case error:
		return ErrorType
	}

	return cel.DynType
}

// toNative converts an evaluation result back into plain Go values:
// nil, bool, int64, uint64, float64, string, []byte, []any, map[string]any
// and the host values (matchers, queries, tables, errors).
func toNative(v ref.Val) (any, error) {
	switch x := v.(type) {
	case *hostValue:
		return x.val, nil
	case *types.Err:
		return nil, x
	case types.Null:
		return nil, nil
	case types.Bool:
		return bool(x), nil
	case types.Int:
		return int64(x), nil
	case types.Uint:
		return uint64(x), nil
	case types.Double:
		return float64(x), nil
	case types.String:
		return string(x), nil
	case types.Bytes:
		return []byte(x), nil
	case traits.Mapper:
		entries := make(map[string]any)

		for it := x.Iterator(); it.HasNext() == types.True; {
			key := it.Next()

			name, ok := key.(types.String)
			if !ok {
				return nil, fmt.Errorf("%w: map keys must be strings, got %s", conformsql.ErrInvalidArgument, key.Type().TypeName())
			}

			item, err := toNative(x.Get(key))
			if err != nil {
				return nil, err
			}

			entries[string(name)] = item
		}

		return entries, nil
	case traits.Lister:
		size, _ := x.Size().(types.Int)
		items := make([]any, int(size))

		for i := range items {
			item, err := toNative(x.Get(types.Int(i)))
			if err != nil {
				return nil, err
			}

			items[i] = item
		}

		return items, nil
	}

	return v.Value(), nil
}
