package executor

import (
	"errors"
	"fmt"
)

// ErrExecutorClosed is returned by operations on a closed executor.
var ErrExecutorClosed = errors.New("executor is closed")

// ExecError wraps a failure while running a statement.
type ExecError struct {
	// Statement is the id of the statement involved, when known.
	Statement string

	// Phase is the step that failed: bind, query, exec, scan, key,
	// keygen, commit or rollback.
	Phase string

	// Err is the underlying cause.
	Err error
}

func (e *ExecError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("executing %s (%s): %v", e.Statement, e.Phase, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
