package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

var (
	timeType            = reflect.TypeOf(time.Time{})
	bytesType           = reflect.TypeOf([]byte(nil))
	rawMessageType      = reflect.TypeOf(json.RawMessage(nil))
	anyType             = reflect.TypeOf((*any)(nil)).Elem()
	valuerType          = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType         = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// BoolHandler converts between Go booleans and database booleans.
type BoolHandler struct{ Target reflect.Type }

// Bind implements TypeHandler.
func (h BoolHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if isNil {
		b.Bind(index, nil)
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Bool {
		return bindErr("bool", fmt.Errorf("unsupported value %T", v))
	}
	b.Bind(index, rv.Bool())
	return nil
}

// Decode implements TypeHandler.
func (h BoolHandler) Decode(src any) (any, error) {
	var out bool
	switch t := src.(type) {
	case nil:
		return nil, nil
	case bool:
		out = t
	case int64:
		out = t != 0
	case []byte:
		v, err := strconv.ParseBool(string(t))
		if err != nil {
			return nil, decodeErr("bool", err)
		}
		out = v
	case string:
		v, err := strconv.ParseBool(t)
		if err != nil {
			return nil, decodeErr("bool", err)
		}
		out = v
	default:
		return nil, decodeErr("bool", fmt.Errorf("unsupported source %T", src))
	}
	return retype("bool", h.Target, out)
}

// WithType implements TypeAware.
func (h BoolHandler) WithType(t reflect.Type) (TypeHandler, error) {
	if t.Kind() != reflect.Bool {
		return nil, &CodecError{Codec: "bool", Host: t, Op: "build", Err: errors.New("not a boolean kind")}
	}
	return BoolHandler{Target: t}, nil
}

// IntHandler converts between Go integers and database integers. The
// canonical decoded type is int64.
type IntHandler struct{ Target reflect.Type }

// Bind implements TypeHandler.
func (h IntHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if isNil {
		b.Bind(index, nil)
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.Bind(index, rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return bindErr("int", fmt.Errorf("value %d overflows int64", u))
		}
		b.Bind(index, int64(u))
	default:
		return bindErr("int", fmt.Errorf("unsupported value %T", v))
	}
	return nil
}

// Decode implements TypeHandler.
func (h IntHandler) Decode(src any) (any, error) {
	var out int64
	switch t := src.(type) {
	case nil:
		return nil, nil
	case int64:
		out = t
	case float64:
		if t != math.Trunc(t) {
			return nil, decodeErr("int", fmt.Errorf("value %v is not integral", t))
		}
		out = int64(t)
	case []byte:
		v, err := strconv.ParseInt(string(t), 10, 64)
		if err != nil {
			return nil, decodeErr("int", err)
		}
		out = v
	case string:
		v, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, decodeErr("int", err)
		}
		out = v
	default:
		rv := reflect.ValueOf(src)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
			out = rv.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := rv.Uint()
			if u > math.MaxInt64 {
				return nil, decodeErr("int", fmt.Errorf("value %d overflows int64", u))
			}
			out = int64(u)
		default:
			return nil, decodeErr("int", fmt.Errorf("unsupported source %T", src))
		}
	}
	return retype("int", h.Target, out)
}

// WithType implements TypeAware.
func (h IntHandler) WithType(t reflect.Type) (TypeHandler, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntHandler{Target: t}, nil
	}
	return nil, &CodecError{Codec: "int", Host: t, Op: "build", Err: errors.New("not an integer kind")}
}

// FloatHandler converts between Go floats and database floating point
// columns. The canonical decoded type is float64.
type FloatHandler struct{ Target reflect.Type }

// Bind implements TypeHandler.
func (h FloatHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if isNil {
		b.Bind(index, nil)
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		b.Bind(index, rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.Bind(index, float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		b.Bind(index, float64(rv.Uint()))
	default:
		return bindErr("float", fmt.Errorf("unsupported value %T", v))
	}
	return nil
}

// Decode implements TypeHandler.
func (h FloatHandler) Decode(src any) (any, error) {
	var out float64
	switch t := src.(type) {
	case nil:
		return nil, nil
	case float64:
		out = t
	case float32:
		out = float64(t)
	case int64:
		out = float64(t)
	case []byte:
		v, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return nil, decodeErr("float", err)
		}
		out = v
	case string:
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, decodeErr("float", err)
		}
		out = v
	default:
		return nil, decodeErr("float", fmt.Errorf("unsupported source %T", src))
	}
	return retype("float", h.Target, out)
}

// WithType implements TypeAware.
func (h FloatHandler) WithType(t reflect.Type) (TypeHandler, error) {
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return FloatHandler{Target: t}, nil
	}
	return nil, &CodecError{Codec: "float", Host: t, Op: "build", Err: errors.New("not a float kind")}
}

// StringHandler converts between Go strings and database text columns.
type StringHandler struct{ Target reflect.Type }

// Bind implements TypeHandler.
func (h StringHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if isNil {
		b.Bind(index, nil)
		return nil
	}
	switch t := v.(type) {
	case string:
		b.Bind(index, t)
	case []byte:
		b.Bind(index, string(t))
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.String {
			return bindErr("string", fmt.Errorf("unsupported value %T", v))
		}
		b.Bind(index, rv.String())
	}
	return nil
}

// Decode implements TypeHandler.
func (h StringHandler) Decode(src any) (any, error) {
	var out string
	switch t := src.(type) {
	case nil:
		return nil, nil
	case string:
		out = t
	case []byte:
		out = string(t)
	case int64:
		out = strconv.FormatInt(t, 10)
	case float64:
		out = strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		out = strconv.FormatBool(t)
	default:
		return nil, decodeErr("string", fmt.Errorf("unsupported source %T", src))
	}
	return retype("string", h.Target, out)
}

// WithType implements TypeAware.
func (h StringHandler) WithType(t reflect.Type) (TypeHandler, error) {
	if t.Kind() != reflect.String {
		return nil, &CodecError{Codec: "string", Host: t, Op: "build", Err: errors.New("not a string kind")}
	}
	return StringHandler{Target: t}, nil
}

// BytesHandler converts binary columns. Decoded values are copies, the
// driver may reuse its scan buffer between rows.
type BytesHandler struct{ Target reflect.Type }

// Bind implements TypeHandler.
func (h BytesHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if isNil {
		b.Bind(index, nil)
		return nil
	}
	switch t := v.(type) {
	case []byte:
		b.Bind(index, t)
	case string:
		b.Bind(index, []byte(t))
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			b.Bind(index, rv.Bytes())
			return nil
		}
		return bindErr("bytes", fmt.Errorf("unsupported value %T", v))
	}
	return nil
}

// Decode implements TypeHandler.
func (h BytesHandler) Decode(src any) (any, error) {
	var out []byte
	switch t := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		out = append([]byte(nil), t...)
	case string:
		out = []byte(t)
	default:
		return nil, decodeErr("bytes", fmt.Errorf("unsupported source %T", src))
	}
	return retype("bytes", h.Target, out)
}

// WithType implements TypeAware.
func (h BytesHandler) WithType(t reflect.Type) (TypeHandler, error) {
	if t.Kind() != reflect.Slice || t.Elem().Kind() != reflect.Uint8 {
		return nil, &CodecError{Codec: "bytes", Host: t, Op: "build", Err: errors.New("not a byte slice kind")}
	}
	return BytesHandler{Target: t}, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	"15:04:05.999999999",
}

// TimeHandler converts between time.Time and temporal columns. Drivers
// that report temporal columns as text are parsed against the common
// layouts.
type TimeHandler struct{ Target reflect.Type }

// Bind implements TypeHandler.
func (h TimeHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if isNil {
		b.Bind(index, nil)
		return nil
	}
	if t, ok := v.(time.Time); ok {
		b.Bind(index, t)
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Struct && rv.Type().ConvertibleTo(timeType) {
		b.Bind(index, rv.Convert(timeType).Interface())
		return nil
	}
	return bindErr("time", fmt.Errorf("unsupported value %T", v))
}

// Decode implements TypeHandler.
func (h TimeHandler) Decode(src any) (any, error) {
	var out time.Time
	switch t := src.(type) {
	case nil:
		return nil, nil
	case time.Time:
		out = t
	case []byte:
		v, err := parseTime(string(t))
		if err != nil {
			return nil, decodeErr("time", err)
		}
		out = v
	case string:
		v, err := parseTime(t)
		if err != nil {
			return nil, decodeErr("time", err)
		}
		out = v
	default:
		return nil, decodeErr("time", fmt.Errorf("unsupported source %T", src))
	}
	return retype("time", h.Target, out)
}

// WithType implements TypeAware.
func (h TimeHandler) WithType(t reflect.Type) (TypeHandler, error) {
	if t.Kind() != reflect.Struct || !t.ConvertibleTo(timeType) {
		return nil, &CodecError{Codec: "time", Host: t, Op: "build", Err: errors.New("not a time kind")}
	}
	return TimeHandler{Target: t}, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

// JSONHandler moves values through JSON columns. Without a target type
// it decodes to json.RawMessage; with one it unmarshals into a fresh
// instance of the target.
type JSONHandler struct{ Target reflect.Type }

// Bind implements TypeHandler.
func (h JSONHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if isNil {
		b.Bind(index, nil)
		return nil
	}
	switch t := v.(type) {
	case json.RawMessage:
		b.Bind(index, []byte(t))
	case []byte:
		b.Bind(index, t)
	case string:
		b.Bind(index, []byte(t))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return bindErr("json", err)
		}
		b.Bind(index, data)
	}
	return nil
}

// Decode implements TypeHandler.
func (h JSONHandler) Decode(src any) (any, error) {
	var data []byte
	switch t := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		data = append([]byte(nil), t...)
	case string:
		data = []byte(t)
	default:
		return nil, decodeErr("json", fmt.Errorf("unsupported source %T", src))
	}
	if h.Target == nil || h.Target == rawMessageType {
		return json.RawMessage(data), nil
	}
	out := reflect.New(h.Target)
	if err := json.Unmarshal(data, out.Interface()); err != nil {
		return nil, &CodecError{Codec: "json", Host: h.Target, Op: "decode", Err: err}
	}
	return out.Elem().Interface(), nil
}

// WithType implements TypeAware.
func (h JSONHandler) WithType(t reflect.Type) (TypeHandler, error) {
	return JSONHandler{Target: t}, nil
}

// TextHandler moves values through their textual form using the
// encoding.TextMarshaler and TextUnmarshaler contracts.
type TextHandler struct{ Target reflect.Type }

// Bind implements TypeHandler.
func (h TextHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if isNil {
		b.Bind(index, nil)
		return nil
	}
	m, ok := v.(encoding.TextMarshaler)
	if !ok {
		return bindErr("text", fmt.Errorf("%T does not implement encoding.TextMarshaler", v))
	}
	data, err := m.MarshalText()
	if err != nil {
		return bindErr("text", err)
	}
	b.Bind(index, string(data))
	return nil
}

// Decode implements TypeHandler.
func (h TextHandler) Decode(src any) (any, error) {
	var data []byte
	switch t := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		return nil, decodeErr("text", fmt.Errorf("unsupported source %T", src))
	}
	if h.Target == nil {
		return string(data), nil
	}
	out := reflect.New(h.Target)
	u, ok := out.Interface().(encoding.TextUnmarshaler)
	if !ok {
		return nil, &CodecError{Codec: "text", Host: h.Target, Op: "decode", Err: errors.New("pointer receiver does not implement encoding.TextUnmarshaler")}
	}
	if err := u.UnmarshalText(data); err != nil {
		return nil, &CodecError{Codec: "text", Host: h.Target, Op: "decode", Err: err}
	}
	return out.Elem().Interface(), nil
}

// WithType implements TypeAware.
func (h TextHandler) WithType(t reflect.Type) (TypeHandler, error) {
	if !reflect.PtrTo(t).Implements(textUnmarshalerType) {
		return nil, &CodecError{Codec: "text", Host: t, Op: "build", Err: errors.New("pointer receiver does not implement encoding.TextUnmarshaler")}
	}
	return TextHandler{Target: t}, nil
}

// ValuerHandler passes values that implement driver.Valuer straight to
// the driver and decodes through sql.Scanner when the target supports
// it. It backs the sql.Null wrapper types and any custom type that
// implements the database/sql contracts.
type ValuerHandler struct{ Target reflect.Type }

// Bind implements TypeHandler.
func (h ValuerHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if isNil {
		b.Bind(index, nil)
		return nil
	}
	if _, ok := v.(driver.Valuer); !ok {
		return bindErr("valuer", fmt.Errorf("%T does not implement driver.Valuer", v))
	}
	b.Bind(index, v)
	return nil
}

// Decode implements TypeHandler.
func (h ValuerHandler) Decode(src any) (any, error) {
	if h.Target != nil && reflect.PtrTo(h.Target).Implements(scannerType) {
		out := reflect.New(h.Target)
		if err := out.Interface().(sql.Scanner).Scan(src); err != nil {
			return nil, &CodecError{Codec: "valuer", Host: h.Target, Op: "decode", Err: err}
		}
		return out.Elem().Interface(), nil
	}
	return src, nil
}

// WithType implements TypeAware.
func (h ValuerHandler) WithType(t reflect.Type) (TypeHandler, error) {
	return ValuerHandler{Target: t}, nil
}

// AnyHandler is the permissive fallback for parameters whose host type
// is unknown. Values bind as-is and decode driver-neutrally.
type AnyHandler struct{}

// Bind implements TypeHandler.
func (h AnyHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if isNil {
		b.Bind(index, nil)
		return nil
	}
	b.Bind(index, v)
	return nil
}

// Decode implements TypeHandler.
func (h AnyHandler) Decode(src any) (any, error) {
	if t, ok := src.([]byte); ok {
		return string(t), nil
	}
	return src, nil
}

var (
	_ TypeHandler = BoolHandler{}
	_ TypeHandler = IntHandler{}
	_ TypeHandler = FloatHandler{}
	_ TypeHandler = StringHandler{}
	_ TypeHandler = BytesHandler{}
	_ TypeHandler = TimeHandler{}
	_ TypeHandler = JSONHandler{}
	_ TypeHandler = TextHandler{}
	_ TypeHandler = ValuerHandler{}
	_ TypeHandler = AnyHandler{}

	_ TypeAware = BoolHandler{}
	_ TypeAware = IntHandler{}
	_ TypeAware = FloatHandler{}
	_ TypeAware = StringHandler{}
	_ TypeAware = BytesHandler{}
	_ TypeAware = TimeHandler{}
	_ TypeAware = JSONHandler{}
	_ TypeAware = TextHandler{}
	_ TypeAware = ValuerHandler{}
)
