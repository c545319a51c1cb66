package matcher

import (
	"math"
	"reflect"
)

type numberKind int

const (
	intKind numberKind = iota + 1
	uintKind
	floatKind
)

type number struct {
	kind numberKind
	i    int64
	u    uint64
	f    float64
}

// toNumber classifies any Go numeric kind. bool is not a number.
func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{kind: intKind, i: int64(n)}, true
	case int64:
		return number{kind: intKind, i: n}, true
	case int32:
		return number{kind: intKind, i: int64(n)}, true
	case float64:
		return number{kind: floatKind, f: n}, true
	case nil, bool, string:
		return number{}, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number{kind: intKind, i: rv.Int()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return number{kind: uintKind, u: rv.Uint()}, true
	case reflect.Float32, reflect.Float64:
		return number{kind: floatKind, f: rv.Float()}, true
	}

	return number{}, false
}

func (n number) isInteger() bool { return n.kind == intKind || n.kind == uintKind }

// int64 returns the value as int64 when it fits.
func (n number) int64() (int64, bool) {
	switch n.kind {
	case intKind:
		return n.i, true
	case uintKind:
		return int64(n.u), n.u <= math.MaxInt64
	}

	return 0, false
}

func (n number) float() float64 {
	switch n.kind {
	case intKind:
		return float64(n.i)
	case uintKind:
		return float64(n.u)
	}

	return n.f
}

func numbersEqual(a, b number) bool {
	if a.isInteger() && b.isInteger() {
		ai, aok := a.int64()
		bi, bok := b.int64()

		switch {
		case aok && bok:
			return ai == bi
		case !aok && !bok:
			return a.u == b.u
		}

		return false
	}

	return a.float() == b.float()
}
