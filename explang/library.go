package explang

import (
	"fmt"
	"math"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/uuid"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/matcher"
	"github.com/shibukawa/conformsql/query"
)

type conformLibrary struct{}

func (l *conformLibrary) CompileOptions() []cel.EnvOption {
	opts := []cel.EnvOption{cel.CustomTypeAdapter(hostAdapter{})}
	opts = append(opts, matcherFunctions()...)

	return append(opts, queryFunctions()...)
}

func (l *conformLibrary) ProgramOptions() []cel.ProgramOption {
	return nil
}

var _ cel.Library = (*conformLibrary)(nil)

// Library declares the matcher constructors, query builders and host value types.
var Library = cel.Lib(&conformLibrary{})

func matcherFunctions() []cel.EnvOption {
	dyn := cel.DynType

	return []cel.EnvOption{
		cel.Function("bag",
			cel.Overload("bag_list", []*cel.Type{cel.ListType(dyn)}, MatcherType,
				cel.UnaryBinding(newMultiset))),
		cel.Function("err",
			cel.Overload("err_kind", []*cel.Type{dyn}, MatcherType,
				cel.FunctionBinding(errorDescriptor(false))),
			cel.Overload("err_kind_message", []*cel.Type{dyn, dyn}, MatcherType,
				cel.FunctionBinding(errorDescriptor(false))),
			cel.Overload("err_kind_message_frames", []*cel.Type{dyn, dyn, dyn}, MatcherType,
				cel.FunctionBinding(errorDescriptor(false)))),
		cel.Function("err_regex",
			cel.Overload("err_regex_kind_message", []*cel.Type{dyn, dyn}, MatcherType,
				cel.FunctionBinding(errorDescriptor(true))),
			cel.Overload("err_regex_kind_message_frames", []*cel.Type{dyn, dyn, dyn}, MatcherType,
				cel.FunctionBinding(errorDescriptor(true)))),
		cel.Function("arrlen",
			cel.Overload("arrlen_length", []*cel.Type{dyn}, MatcherType,
				cel.FunctionBinding(newFixedArray)),
			cel.Overload("arrlen_length_element", []*cel.Type{dyn, dyn}, MatcherType,
				cel.FunctionBinding(newFixedArray))),
		cel.Function("uuid",
			cel.Overload("uuid_shape", []*cel.Type{}, MatcherType,
				cel.FunctionBinding(func(...ref.Val) ref.Val { return toValue(matcher.UUIDShape) }))),
		cel.Function("int_cmp",
			cel.Overload("int_cmp_value", []*cel.Type{dyn}, MatcherType,
				cel.UnaryBinding(newTaggedInt))),
		cel.Function("float_cmp",
			cel.Overload("float_cmp_value", []*cel.Type{dyn}, MatcherType,
				cel.UnaryBinding(newTaggedFloat))),
	}
}

func queryFunctions() []cel.EnvOption {
	dyn := cel.DynType

	tableOp := func(build func(query.Table) query.Query) func(ref.Val) ref.Val {
		return func(t ref.Val) ref.Val {
			table, ok := t.Value().(query.Table)
			if !ok {
				return types.MaybeNoSuchOverloadErr(t)
			}

			return toValue(build(table))
		}
	}

	indexOp := func(build func(query.Table, string) query.Query) func(ref.Val, ref.Val) ref.Val {
		return func(t, name ref.Val) ref.Val {
			table, ok := t.Value().(query.Table)
			index, isString := name.(types.String)
			if !ok || !isString {
				return types.NoSuchOverloadErr()
			}

			return toValue(build(table, string(index)))
		}
	}

	return []cel.EnvOption{
		cel.Function("sql",
			cel.Overload("sql_statement", []*cel.Type{cel.StringType}, QueryType,
				cel.UnaryBinding(func(stmt ref.Val) ref.Val {
					return toValue(query.SQL(string(stmt.(types.String))))
				})),
			cel.Overload("sql_statement_args", []*cel.Type{cel.StringType, cel.ListType(dyn)}, QueryType,
				cel.BinaryBinding(func(stmt, args ref.Val) ref.Val {
					native, err := toNative(args)
					if err != nil {
						return types.WrapErr(err)
					}

					items, _ := native.([]any)

					return toValue(query.SQL(string(stmt.(types.String)), items...))
				}))),
		cel.Function("table",
			cel.Overload("table_database_name", []*cel.Type{cel.StringType, cel.StringType}, TableType,
				cel.BinaryBinding(func(db, name ref.Val) ref.Val {
					return toValue(query.Table{Database: string(db.(types.String)), Name: string(name.(types.String))})
				}))),
		cel.Function("count",
			cel.MemberOverload("table_count", []*cel.Type{TableType}, QueryType,
				cel.UnaryBinding(tableOp(query.Table.Count)))),
		cel.Function("all",
			cel.MemberOverload("table_all", []*cel.Type{TableType}, QueryType,
				cel.UnaryBinding(tableOp(query.Table.All)))),
		cel.Function("delete",
			cel.MemberOverload("table_delete", []*cel.Type{TableType}, QueryType,
				cel.UnaryBinding(tableOp(query.Table.Delete)))),
		cel.Function("index_list",
			cel.MemberOverload("table_index_list", []*cel.Type{TableType}, QueryType,
				cel.UnaryBinding(tableOp(query.Table.IndexList)))),
		cel.Function("index_create",
			cel.MemberOverload("table_index_create", []*cel.Type{TableType, cel.StringType}, QueryType,
				cel.BinaryBinding(indexOp(query.Table.IndexCreate)))),
		cel.Function("index_drop",
			cel.MemberOverload("table_index_drop", []*cel.Type{TableType, cel.StringType}, QueryType,
				cel.BinaryBinding(indexOp(query.Table.IndexDrop)))),
		cel.Function("get",
			cel.MemberOverload("table_get", []*cel.Type{TableType, dyn}, QueryType,
				cel.BinaryBinding(func(t, key ref.Val) ref.Val {
					table, ok := t.Value().(query.Table)
					if !ok {
						return types.MaybeNoSuchOverloadErr(t)
					}

					native, err := toNative(key)
					if err != nil {
						return types.WrapErr(err)
					}

					return toValue(table.Get(native))
				}))),
		cel.Function("insert",
			cel.MemberOverload("table_insert", []*cel.Type{TableType, dyn}, QueryType,
				cel.BinaryBinding(insertDocuments))),
		cel.Function("gen_uuid",
			cel.Overload("gen_uuid", []*cel.Type{}, cel.StringType,
				cel.FunctionBinding(func(...ref.Val) ref.Val { return types.String(uuid.NewString()) }))),
	}
}

func newMultiset(list ref.Val) ref.Val {
	native, err := toNative(list)
	if err != nil {
		return types.WrapErr(err)
	}

	items, _ := native.([]any)

	return toValue(matcher.NewMultiset(items))
}

// errorDescriptor builds err(kind, msg, frames) and err_regex(...). The
// frames argument is accepted for compatibility and ignored.
func errorDescriptor(regex bool) func(args ...ref.Val) ref.Val {
	return func(args ...ref.Val) ref.Val {
		kind, err := optionalString(args[0], "kind")
		if err != nil {
			return types.WrapErr(err)
		}

		var message string
		if len(args) > 1 {
			message, err = optionalString(args[1], "message")
			if err != nil {
				return types.WrapErr(err)
			}
		}

		if !regex {
			return toValue(matcher.NewError(kind, message))
		}

		d, err := matcher.NewErrorRegex(kind, message)
		if err != nil {
			return types.WrapErr(err)
		}

		return toValue(d)
	}
}

func optionalString(v ref.Val, what string) (string, error) {
	switch s := v.(type) {
	case types.Null:
		return "", nil
	case types.String:
		return string(s), nil
	}

	return "", fmt.Errorf("%w: error %s must be a string or null, got %s", conformsql.ErrInvalidArgument, what, v.Type().TypeName())
}

func newFixedArray(args ...ref.Val) ref.Val {
	length, ok := args[0].(types.Int)
	if !ok || length < 0 {
		return types.WrapErr(fmt.Errorf("%w: arrlen length must be a non-negative int", conformsql.ErrInvalidArgument))
	}

	array := matcher.FixedArray{Length: int(length)}

	if len(args) > 1 {
		element, err := toNative(args[1])
		if err != nil {
			return types.WrapErr(err)
		}

		array.Element = matcher.From(element)
	}

	return toValue(array)
}

func newTaggedInt(v ref.Val) ref.Val {
	switch n := v.(type) {
	case types.Int:
		return toValue(matcher.TaggedInt{Value: int64(n)})
	case types.Uint:
		if uint64(n) > math.MaxInt64 {
			return types.WrapErr(fmt.Errorf("%w: int_cmp value %d overflows int64", conformsql.ErrInvalidArgument, uint64(n)))
		}

		return toValue(matcher.TaggedInt{Value: int64(n)})
	}

	return types.WrapErr(fmt.Errorf("%w: int_cmp expects an int, got %s", conformsql.ErrInvalidArgument, v.Type().TypeName()))
}

func newTaggedFloat(v ref.Val) ref.Val {
	switch n := v.(type) {
	case types.Double:
		return toValue(matcher.TaggedFloat{Value: float64(n)})
	case types.Int:
		return toValue(matcher.TaggedFloat{Value: float64(n)})
	}

	return types.WrapErr(fmt.Errorf("%w: float_cmp expects a number, got %s", conformsql.ErrInvalidArgument, v.Type().TypeName()))
}

// insertDocuments accepts one document or a list of documents.
func insertDocuments(t, docs ref.Val) ref.Val {
	table, ok := t.Value().(query.Table)
	if !ok {
		return types.MaybeNoSuchOverloadErr(t)
	}

	native, err := toNative(docs)
	if err != nil {
		return types.WrapErr(err)
	}

	items, isList := native.([]any)
	if !isList {
		items = []any{native}
	}

	documents := make([]map[string]any, len(items))

	for i, item := range items {
		doc, ok := item.(map[string]any)
		if !ok {
			return types.WrapErr(fmt.Errorf("%w: expected an object, got %s", conformsql.ErrInvalidDocument, matcher.Repr(item)))
		}

		documents[i] = doc
	}

	return toValue(table.Insert(documents...))
}
