// Package types maps Go host types and database wire types onto the
// codecs that move values between them. A Registry resolves the codec
// for binding a statement parameter or decoding a result column; the
// handlers in this package cover the built-in scalar, time, binary and
// JSON conversions.
package types

import (
	"fmt"
	"reflect"
)

// Binder receives encoded statement arguments at their positional
// index. The executor's argument list implements it.
type Binder interface {
	Bind(index int, value any)
}

// TypeHandler converts values between a Go host type and the driver
// representation of a database type.
type TypeHandler interface {
	// Bind encodes value and hands it to b at index. A nil value binds
	// a database NULL.
	Bind(b Binder, index int, value any, dbType DBType) error

	// Decode converts a driver-provided column value into the handler's
	// host type. A nil src decodes to nil.
	Decode(src any) (any, error)
}

// TypeAware is implemented by handlers that can specialize themselves
// for a concrete host type, typically a named type defined on top of a
// builtin. The registry uses it when it derives handler entries for
// types discovered at resolution time.
type TypeAware interface {
	WithType(t reflect.Type) (TypeHandler, error)
}

// CodecError reports a failed codec operation or construction.
type CodecError struct {
	// Codec names the handler or factory involved.
	Codec string

	// Host is the Go type involved, when known.
	Host reflect.Type

	// Op is the operation that failed: "bind", "decode", "build" or
	// "register".
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	msg := fmt.Sprintf("codec %s: %s failed", e.Codec, e.Op)
	if e.Host != nil {
		msg += " for " + e.Host.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CodecError) Unwrap() error {
	return e.Err
}

func bindErr(codec string, err error) error {
	return &CodecError{Codec: codec, Op: "bind", Err: err}
}

func decodeErr(codec string, err error) error {
	return &CodecError{Codec: codec, Op: "decode", Err: err}
}

// unwrap dereferences pointers and reports whether the value is nil at
// any level.
func unwrap(value any) (any, bool) {
	if value == nil {
		return nil, true
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, true
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, true
	}
	return rv.Interface(), false
}

// retype converts a decoded canonical value to the handler's target
// type when one is set. Numeric-to-string conversions are rejected,
// reflect would produce a rune string instead of a rendering.
func retype(codec string, target reflect.Type, v any) (any, error) {
	if target == nil || v == nil {
		return v, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == target {
		return v, nil
	}
	if target.Kind() == reflect.String && rv.Kind() != reflect.String {
		return nil, &CodecError{Codec: codec, Host: target, Op: "decode", Err: fmt.Errorf("cannot convert %T", v)}
	}
	if !rv.Type().ConvertibleTo(target) {
		return nil, &CodecError{Codec: codec, Host: target, Op: "decode", Err: fmt.Errorf("cannot convert %T", v)}
	}
	return rv.Convert(target).Interface(), nil
}
