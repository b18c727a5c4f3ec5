package mapping

import (
	"math"
	"reflect"
)

// ParamMap is the generic parameter object for statements that take
// more than one named value.
type ParamMap map[string]any

// Row is one result row keyed by column label.
type Row map[string]any

// RowBounds narrows the portion of a result set that is read: Offset
// rows are skipped and at most Limit rows are returned. The narrowing
// happens while reading, not in the SQL.
type RowBounds struct {
	Offset int
	Limit  int
}

// DefaultBounds reads every row.
var DefaultBounds = RowBounds{Offset: 0, Limit: math.MaxInt}

// WrapCollection lifts a bare slice or array parameter into a ParamMap
// so templates can refer to it by the conventional names "collection",
// "list" and "array". A non-empty name adds the parameter under that
// name as well. Byte slices and everything that is not a slice or an
// array pass through unchanged.
func WrapCollection(param any, name string) any {
	if param == nil {
		return nil
	}
	rv := reflect.ValueOf(param)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return param
		}
		wrapped := ParamMap{"collection": param, "list": param}
		if name != "" {
			wrapped[name] = param
		}
		return wrapped
	case reflect.Array:
		wrapped := ParamMap{"array": param}
		if name != "" {
			wrapped[name] = param
		}
		return wrapped
	default:
		return param
	}
}
