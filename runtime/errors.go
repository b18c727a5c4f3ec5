package runtime

import "errors"

var (
	// ErrNotFound is returned by QueryOne when the statement produced
	// no rows.
	ErrNotFound = errors.New("no rows returned")

	// ErrTooManyRows is returned by QueryOne when the statement
	// produced more than one row.
	ErrTooManyRows = errors.New("too many rows returned")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session is closed")

	// ErrStatementExists is returned when registering a statement id
	// twice.
	ErrStatementExists = errors.New("statement already registered")

	// ErrNoStatement is returned when looking up an unregistered
	// statement id.
	ErrNoStatement = errors.New("no such statement")

	// ErrNoDatabase is returned when opening a session on an engine
	// that was built without a database.
	ErrNoDatabase = errors.New("no database configured")
)
