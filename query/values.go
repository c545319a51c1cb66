package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shibukawa/conformsql"
)

// convertSQLValue converts a scanned column value into a plain result value:
// integers become int64, floats float64, text string, NUMERIC/DECIMAL an
// int64 or float64 depending on scale, and timestamps RFC 3339 strings.
func convertSQLValue(v any, databaseType string) any {
	switch value := v.(type) {
	case nil:
		return nil
	case []byte:
		return convertText(string(value), databaseType)
	case string:
		return convertText(value, databaseType)
	case decimal.Decimal:
		return decimalValue(value)
	case int:
		return int64(value)
	case int8:
		return int64(value)
	case int16:
		return int64(value)
	case int32:
		return int64(value)
	case uint8:
		return int64(value)
	case uint16:
		return int64(value)
	case uint32:
		return int64(value)
	case uint64:
		if value <= math.MaxInt64 {
			return int64(value)
		}

		return value
	case float32:
		return float64(value)
	case time.Time:
		return value.Format(time.RFC3339Nano)
	default:
		return value
	}
}

// convertText handles drivers that return numeric columns as text.
func convertText(s, databaseType string) any {
	t := strings.ToUpper(databaseType)

	switch {
	case strings.Contains(t, "DECIMAL"), strings.Contains(t, "NUMERIC"):
		return normalizeDecimal(s)
	case strings.HasSuffix(t, "INT"), t == "INTEGER":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case t == "FLOAT", t == "DOUBLE", t == "REAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	return s
}

func normalizeDecimal(s string) any {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}

	return decimalValue(d)
}

// decimalValue keeps the integer/float distinction of the column scale.
func decimalValue(d decimal.Decimal) any {
	if d.Exponent() >= 0 && d.BigInt().IsInt64() {
		return d.IntPart()
	}

	f, _ := d.Float64()

	return f
}

// encodeDocument renders a document as JSON text. Floats always carry a
// decimal point or exponent so decodeDocument reads them back as float64.
func encodeDocument(doc map[string]any) (string, error) {
	data, err := json.Marshal(markFloats(doc))
	if err != nil {
		return "", fmt.Errorf("%w: %w", conformsql.ErrInvalidDocument, err)
	}

	return string(data), nil
}

// markFloats returns a copy of v with floats replaced by json.Number text.
func markFloats(v any) any {
	switch value := v.(type) {
	case float64:
		return floatNumber(value)
	case float32:
		return floatNumber(float64(value))
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = markFloats(item)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = markFloats(item)
		}

		return out
	default:
		return value
	}
}

func floatNumber(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		// left to json.Marshal, which rejects them
		return f
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}

	return json.Number(s)
}

// decodeDocument parses a stored JSON document preserving integer/float distinction.
func decodeDocument(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	return convertJSONNumbers(doc), nil
}

func convertJSONNumbers(v any) any {
	switch value := v.(type) {
	case json.Number:
		s := value.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := value.Int64(); err == nil {
				return i
			}
		}

		f, err := value.Float64()
		if err != nil {
			return s
		}

		return f
	case []any:
		for i, item := range value {
			value[i] = convertJSONNumbers(item)
		}

		return value
	case map[string]any:
		for k, item := range value {
			value[k] = convertJSONNumbers(item)
		}

		return value
	default:
		return value
	}
}

// documentKey renders a document id as the primary key column value.
func documentKey(v any) (string, error) {
	switch key := v.(type) {
	case string:
		return key, nil
	case int64:
		return strconv.FormatInt(key, 10), nil
	case int:
		return strconv.Itoa(key), nil
	case uint64:
		return strconv.FormatUint(key, 10), nil
	case float64:
		if key == math.Trunc(key) && math.Abs(key) < 1<<53 {
			return strconv.FormatInt(int64(key), 10), nil
		}

		return strconv.FormatFloat(key, 'g', -1, 64), nil
	}

	return "", fmt.Errorf("%w: primary key must be a string or number, got %T", conformsql.ErrInvalidDocument, v)
}
