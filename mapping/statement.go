// Package mapping describes executable statements: their compiled SQL
// source, parameter mappings, result row shape and cache wiring.
package mapping

import (
	"time"

	"github.com/satishbabariya/sqlmapper-go/query/cache"
)

// Kind classifies a statement by the SQL command it issues.
type Kind int

const (
	Unknown Kind = iota
	Select
	Insert
	Update
	Delete
	Call
)

// String returns the SQL command name.
func (k Kind) String() string {
	switch k {
	case Select:
		return "SELECT"
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	case Call:
		return "CALL"
	default:
		return "UNKNOWN"
	}
}

// Statement is a registered, compiled statement.
type Statement struct {
	ID     string
	Kind   Kind
	Source Source

	// Cache is the shared result cache for this statement's namespace,
	// nil when the statement is uncached.
	Cache cache.Cache
	// UseCache lets individual select statements opt out of a
	// configured cache.
	UseCache bool
	// FlushCache clears the statement's cache before execution.
	FlushCache bool

	// Timeout bounds a single execution. Zero inherits the session's
	// default.
	Timeout time.Duration
	// KeyProperty is the parameter path that receives the generated key
	// after an insert.
	KeyProperty string
}

// StatementOption configures a Statement beyond its per-kind defaults.
type StatementOption func(*Statement)

// WithCache attaches a shared result cache.
func WithCache(c cache.Cache) StatementOption {
	return func(s *Statement) { s.Cache = c }
}

// WithUseCache overrides the per-kind caching default.
func WithUseCache(use bool) StatementOption {
	return func(s *Statement) { s.UseCache = use }
}

// WithFlushCache overrides the per-kind flush default.
func WithFlushCache(flush bool) StatementOption {
	return func(s *Statement) { s.FlushCache = flush }
}

// WithTimeout bounds a single execution of the statement.
func WithTimeout(d time.Duration) StatementOption {
	return func(s *Statement) { s.Timeout = d }
}

// WithKeyProperty enables generated-key write-back into the given
// parameter path.
func WithKeyProperty(property string) StatementOption {
	return func(s *Statement) { s.KeyProperty = property }
}

// NewStatement builds a statement with per-kind defaults: selects use
// an attached cache and do not flush it, writes flush and do not use
// it.
func NewStatement(id string, kind Kind, src Source, opts ...StatementOption) *Statement {
	s := &Statement{ID: id, Kind: kind, Source: src}
	if kind == Select {
		s.UseCache = true
	} else {
		s.FlushCache = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
