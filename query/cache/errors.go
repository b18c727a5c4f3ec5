package cache

import "errors"

// ErrFrozenKey is the panic value raised when a frozen key, such as
// NullKey, is updated.
var ErrFrozenKey = errors.New("cache: cannot update a frozen key")

// ProtocolError reports a cache misuse or a failed cache operation that
// cannot be treated as a plain miss: serialization failures, lock
// timeouts, out-parameter statements reaching a cached path.
type ProtocolError struct {
	// Cache is the id of the cache involved, when known.
	Cache string

	// Op is the operation that failed.
	Op string

	// Msg describes the violation.
	Msg string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	msg := "cache"
	if e.Cache != "" {
		msg += " " + e.Cache
	}
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

var _ error = (*ProtocolError)(nil)
