// Package runtime assembles the public surface of the library: the
// engine holding registered statements, shared caches, codecs and
// settings, and the sessions that execute statements against a
// database.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/sqlmapper-go/dynamic"
	"github.com/satishbabariya/sqlmapper-go/mapping"
	"github.com/satishbabariya/sqlmapper-go/query/cache"
	"github.com/satishbabariya/sqlmapper-go/query/compiler"
	"github.com/satishbabariya/sqlmapper-go/query/executor"
	"github.com/satishbabariya/sqlmapper-go/types"
)

// Settings carries the engine wide execution defaults.
type Settings struct {
	// Environment distinguishes cache keys built against different
	// databases.
	Environment string

	// DefaultNullType is the wire type used to bind untyped nil
	// parameters.
	DefaultNullType types.DBType

	// BindStyle is the positional marker syntax the driver expects.
	BindStyle executor.BindStyle

	// ShrinkWhitespace collapses runs of whitespace in compiled SQL.
	ShrinkWhitespace bool

	// LogQueries routes every execution through the engine logger.
	LogQueries bool

	// QueryTimeout bounds Query and Exec calls when positive. Cursor
	// reads are not bounded, their rows arrive after the call returns.
	QueryTimeout time.Duration
}

// DefaultSettings returns the settings an engine starts from.
func DefaultSettings() Settings {
	return Settings{
		Environment:     "default",
		DefaultNullType: types.Other,
	}
}

// Engine owns the statement map, the shared caches, the codec registry
// and the middleware chain. It is safe for concurrent use; the
// sessions it opens are not.
type Engine struct {
	mu         sync.RWMutex
	db         *sql.DB
	registry   *types.Registry
	compiler   *compiler.Compiler
	statements map[string]*mapping.Statement
	caches     map[string]cache.Cache
	middleware []Middleware
	settings   Settings
	logger     Logger
}

// Option configures an engine.
type Option func(*Engine)

// WithDB sets the database handle sessions execute against.
func WithDB(db *sql.DB) Option {
	return func(e *Engine) { e.db = db }
}

// WithRegistry replaces the default codec registry.
func WithRegistry(r *types.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithSettings replaces the engine settings.
func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

// WithLogger sets the logger LogQueries reports to.
func WithLogger(l Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMiddleware appends middleware to the engine chain.
func WithMiddleware(ms ...Middleware) Option {
	return func(e *Engine) { e.middleware = append(e.middleware, ms...) }
}

// WithSharedCache registers a cache under its id so statements can
// share it.
func WithSharedCache(c cache.Cache) Option {
	return func(e *Engine) { e.caches[c.ID()] = c }
}

// NewEngine builds an engine from the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		registry:   types.NewRegistry(),
		statements: make(map[string]*mapping.Statement),
		caches:     make(map[string]cache.Cache),
		settings:   DefaultSettings(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.settings.Environment == "" {
		e.settings.Environment = "default"
	}
	if e.settings.DefaultNullType == types.Unspecified {
		e.settings.DefaultNullType = types.Other
	}
	var copts []compiler.Option
	if e.settings.ShrinkWhitespace {
		copts = append(copts, compiler.WithShrinkWhitespace())
	}
	e.compiler = compiler.NewCompiler(e.registry, copts...)
	return e
}

// Registry returns the codec registry statements compile against.
func (e *Engine) Registry() *types.Registry {
	return e.registry
}

// Settings returns the engine settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Use appends middleware to the chain. Sessions opened before the call
// keep the chain they were opened with.
func (e *Engine) Use(ms ...Middleware) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.middleware = append(e.middleware, ms...)
}

// NewSource compiles a statement template. Plain templates produce a
// reusable precompiled source, templates with in-place substitution
// compile per bind.
func (e *Engine) NewSource(text string) (mapping.Source, error) {
	return compiler.NewSource(e.compiler, text)
}

// NewDynamicSource wraps a fragment tree as a statement source.
func (e *Engine) NewDynamicSource(root dynamic.Node) mapping.Source {
	return compiler.NewDynamicSource(e.compiler, root)
}

// Register adds a statement to the engine. Ids are unique.
func (e *Engine) Register(stmt *mapping.Statement) error {
	if stmt == nil || stmt.ID == "" {
		return fmt.Errorf("registering statement: missing id")
	}
	if stmt.Source == nil {
		return fmt.Errorf("registering statement %q: missing source", stmt.ID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.statements[stmt.ID]; ok {
		return fmt.Errorf("statement %q: %w", stmt.ID, ErrStatementExists)
	}
	e.statements[stmt.ID] = stmt
	return nil
}

// RegisterSQL compiles a template and registers it as a statement.
func (e *Engine) RegisterSQL(id string, kind mapping.Kind, text string, opts ...mapping.StatementOption) (*mapping.Statement, error) {
	src, err := e.NewSource(text)
	if err != nil {
		return nil, fmt.Errorf("registering statement %q: %w", id, err)
	}
	stmt := mapping.NewStatement(id, kind, src, opts...)
	if err := e.Register(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

// Statement looks up a registered statement.
func (e *Engine) Statement(id string) (*mapping.Statement, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	stmt, ok := e.statements[id]
	if !ok {
		return nil, fmt.Errorf("statement %q: %w", id, ErrNoStatement)
	}
	return stmt, nil
}

// AddCache registers a shared cache under its id.
func (e *Engine) AddCache(c cache.Cache) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.caches[c.ID()]; ok {
		return fmt.Errorf("cache %q already registered", c.ID())
	}
	e.caches[c.ID()] = c
	return nil
}

// Cache looks up a shared cache by id.
func (e *Engine) Cache(id string) (cache.Cache, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.caches[id]
	return c, ok
}

// OpenSession opens a session executing directly against the database.
func (e *Engine) OpenSession() (*Session, error) {
	if e.db == nil {
		return nil, ErrNoDatabase
	}
	return e.newSession(e.db), nil
}

// OpenSessionTx opens a session bound to a new transaction. Commit and
// Rollback on the session settle the transaction.
func (e *Engine) OpenSessionTx(ctx context.Context, opts *sql.TxOptions) (*Session, error) {
	if e.db == nil {
		return nil, ErrNoDatabase
	}
	tx, err := e.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return e.newSession(tx), nil
}

func (e *Engine) newSession(conn executor.Conn) *Session {
	simple := executor.NewSimpleExecutor(conn, e.registry,
		executor.WithEnvironment(e.settings.Environment),
		executor.WithNullType(e.settings.DefaultNullType),
		executor.WithBindStyle(e.settings.BindStyle))
	return &Session{
		id:     uuid.New(),
		engine: e,
		exec:   executor.NewCachingExecutor(simple),
		mw:     e.chain(),
	}
}

// chain snapshots the middleware a new session runs through.
func (e *Engine) chain() []Middleware {
	e.mu.RLock()
	defer e.mu.RUnlock()
	mws := make([]Middleware, 0, len(e.middleware)+1)
	if e.settings.LogQueries && e.logger != nil {
		mws = append(mws, LoggingMiddleware(e.logger))
	}
	return append(mws, e.middleware...)
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}
