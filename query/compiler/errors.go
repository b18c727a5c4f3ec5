package compiler

import "fmt"

// BuildError reports a statement template that cannot be compiled.
type BuildError struct {
	// Context is the placeholder or template fragment being compiled.
	Context string
	Cause   error
}

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("compiling %s: %v", e.Context, e.Cause)
	}
	return "compiling " + e.Context
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}
