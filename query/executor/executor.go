// Package executor runs bound statements against database/sql and
// reads result rows back as column-keyed maps.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/satishbabariya/sqlmapper-go/internal/debug"
	"github.com/satishbabariya/sqlmapper-go/mapping"
	"github.com/satishbabariya/sqlmapper-go/query/cache"
	"github.com/satishbabariya/sqlmapper-go/reflectx"
	"github.com/satishbabariya/sqlmapper-go/types"
)

// Conn is the statement surface shared by *sql.DB, *sql.Tx and
// *sql.Conn.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// txConn is additionally satisfied by *sql.Tx.
type txConn interface {
	Commit() error
	Rollback() error
}

// Executor runs statements. Implementations own the statement-level
// lifecycle: binding, execution, row reading, and the cache sessions
// layered on top.
type Executor interface {
	Query(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds) ([]mapping.Row, error)
	QueryBound(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, bound *mapping.BoundStatement) ([]mapping.Row, error)
	QueryCursor(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds) (*Cursor, error)
	Update(ctx context.Context, stmt *mapping.Statement, param any) (int64, error)
	CreateKey(stmt *mapping.Statement, param any, bounds mapping.RowBounds, bound *mapping.BoundStatement) (*cache.Key, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(rollback bool) error
	Closed() bool
}

// BindStyle selects the positional marker syntax the driver expects.
type BindStyle int

const (
	// BindQuestion keeps ? markers, the style the mysql and sqlite
	// drivers read.
	BindQuestion BindStyle = iota
	// BindDollar numbers markers $1..$n for postgres drivers.
	BindDollar
)

// ExecOption configures a SimpleExecutor.
type ExecOption func(*SimpleExecutor)

// WithEnvironment mixes an environment id into cache keys so caches
// shared across environments stay partitioned.
func WithEnvironment(id string) ExecOption {
	return func(e *SimpleExecutor) {
		e.env = id
	}
}

// WithNullType sets the wire type bound for untyped nil parameters.
func WithNullType(db types.DBType) ExecOption {
	return func(e *SimpleExecutor) {
		e.nullType = db
	}
}

// WithBindStyle sets the marker syntax statements are rewritten to
// before hitting the driver.
func WithBindStyle(style BindStyle) ExecOption {
	return func(e *SimpleExecutor) {
		e.bindStyle = style
	}
}

// SimpleExecutor runs every statement directly against its connection.
type SimpleExecutor struct {
	conn      Conn
	registry  *types.Registry
	env       string
	nullType  types.DBType
	bindStyle BindStyle

	mu     sync.Mutex
	closed bool
}

// NewSimpleExecutor wraps a connection. The registry resolves column
// decoders and parameter values for cache keys.
func NewSimpleExecutor(conn Conn, registry *types.Registry, opts ...ExecOption) *SimpleExecutor {
	e := &SimpleExecutor{conn: conn, registry: registry, nullType: types.Other}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query binds the statement and runs it.
func (e *SimpleExecutor) Query(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds) ([]mapping.Row, error) {
	bound, err := bindStatement(stmt, param)
	if err != nil {
		return nil, err
	}
	return e.QueryBound(ctx, stmt, param, bounds, bound)
}

// QueryBound runs an already-bound statement and reads the rows inside
// the requested bounds.
func (e *SimpleExecutor) QueryBound(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, bound *mapping.BoundStatement) ([]mapping.Row, error) {
	if e.Closed() {
		return nil, &ExecError{Statement: stmt.ID, Phase: "query", Err: ErrExecutorClosed}
	}
	args, err := e.arguments(stmt, param, bound)
	if err != nil {
		return nil, err
	}
	ctx, cancel := statementContext(ctx, stmt)
	defer cancel()
	query := rebind(e.bindStyle, bound.SQL)
	debug.Debug("executing query", "statement", stmt.ID, "sql", query)
	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ExecError{Statement: stmt.ID, Phase: "query", Err: err}
	}
	defer rows.Close()
	out, err := e.readRows(rows, bounds)
	if err != nil {
		return nil, &ExecError{Statement: stmt.ID, Phase: "scan", Err: err}
	}
	return out, nil
}

// QueryCursor runs the statement and hands the open result set to the
// caller. The cursor applies the bounds while iterating and must be
// closed.
func (e *SimpleExecutor) QueryCursor(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds) (*Cursor, error) {
	if e.Closed() {
		return nil, &ExecError{Statement: stmt.ID, Phase: "query", Err: ErrExecutorClosed}
	}
	bound, err := bindStatement(stmt, param)
	if err != nil {
		return nil, err
	}
	args, err := e.arguments(stmt, param, bound)
	if err != nil {
		return nil, err
	}
	ctx, cancel := statementContext(ctx, stmt)
	query := rebind(e.bindStyle, bound.SQL)
	debug.Debug("opening cursor", "statement", stmt.ID, "sql", query)
	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		cancel()
		return nil, &ExecError{Statement: stmt.ID, Phase: "query", Err: err}
	}
	cursor, err := newCursor(rows, e.registry, bounds, cancel)
	if err != nil {
		rows.Close()
		cancel()
		return nil, &ExecError{Statement: stmt.ID, Phase: "scan", Err: err}
	}
	return cursor, nil
}

// Update executes an insert, update or delete and returns the affected
// row count. Inserts with a key property write the generated id back
// into the parameter object.
func (e *SimpleExecutor) Update(ctx context.Context, stmt *mapping.Statement, param any) (int64, error) {
	if e.Closed() {
		return 0, &ExecError{Statement: stmt.ID, Phase: "exec", Err: ErrExecutorClosed}
	}
	bound, err := bindStatement(stmt, param)
	if err != nil {
		return 0, err
	}
	args, err := e.arguments(stmt, param, bound)
	if err != nil {
		return 0, err
	}
	ctx, cancel := statementContext(ctx, stmt)
	defer cancel()
	query := rebind(e.bindStyle, bound.SQL)
	debug.Debug("executing update", "statement", stmt.ID, "sql", query)
	res, err := e.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &ExecError{Statement: stmt.ID, Phase: "exec", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &ExecError{Statement: stmt.ID, Phase: "exec", Err: err}
	}
	if stmt.Kind == mapping.Insert && stmt.KeyProperty != "" && param != nil {
		if id, err := res.LastInsertId(); err == nil {
			if err := reflectx.SetPath(param, stmt.KeyProperty, id); err != nil {
				return affected, &ExecError{Statement: stmt.ID, Phase: "keygen", Err: err}
			}
		}
	}
	return affected, nil
}

// CreateKey builds the cache key identifying one query execution:
// statement id, bounds, final SQL, every in-bound parameter value and
// the environment.
func (e *SimpleExecutor) CreateKey(stmt *mapping.Statement, param any, bounds mapping.RowBounds, bound *mapping.BoundStatement) (*cache.Key, error) {
	if e.Closed() {
		return nil, &ExecError{Statement: stmt.ID, Phase: "key", Err: ErrExecutorClosed}
	}
	key := cache.NewKey(stmt.ID, bounds.Offset, bounds.Limit, bound.SQL)
	for _, pm := range bound.Params {
		if pm.Mode == mapping.Out {
			continue
		}
		key.Update(e.resolveValue(pm, param, bound))
	}
	if e.env != "" {
		key.Update(e.env)
	}
	return key, nil
}

// Commit commits the underlying transaction, if the connection is one.
func (e *SimpleExecutor) Commit(ctx context.Context) error {
	if e.Closed() {
		return ErrExecutorClosed
	}
	if tx, ok := e.conn.(txConn); ok {
		if err := tx.Commit(); err != nil {
			return &ExecError{Phase: "commit", Err: err}
		}
	}
	return nil
}

// Rollback rolls back the underlying transaction, if the connection is
// one.
func (e *SimpleExecutor) Rollback(ctx context.Context) error {
	if e.Closed() {
		return ErrExecutorClosed
	}
	if tx, ok := e.conn.(txConn); ok {
		if err := tx.Rollback(); err != nil {
			return &ExecError{Phase: "rollback", Err: err}
		}
	}
	return nil
}

// Close marks the executor unusable. With rollback set, a pending
// transaction is rolled back; failures there are logged, not returned,
// so closing always succeeds.
func (e *SimpleExecutor) Close(rollback bool) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if rollback {
		if tx, ok := e.conn.(txConn); ok {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				debug.Warn("rollback on close failed", "error", err)
			}
		}
	}
	return nil
}

// Closed reports whether Close was called.
func (e *SimpleExecutor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func bindStatement(stmt *mapping.Statement, param any) (*mapping.BoundStatement, error) {
	bound, err := stmt.Source.Bind(param)
	if err != nil {
		return nil, &ExecError{Statement: stmt.ID, Phase: "bind", Err: err}
	}
	return bound, nil
}

func statementContext(ctx context.Context, stmt *mapping.Statement) (context.Context, context.CancelFunc) {
	if stmt.Timeout > 0 {
		return context.WithTimeout(ctx, stmt.Timeout)
	}
	return ctx, func() {}
}

// rebind numbers the ? markers for drivers that want $1..$n. The scan
// is lexical and rewrites a literal ? inside quoted SQL text too, so
// question marks belong in bound parameters, not in the template.
func rebind(style BindStyle, query string) string {
	if style != BindDollar || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// argBinder collects encoded arguments at their placeholder index.
type argBinder []any

// Bind implements types.Binder.
func (b argBinder) Bind(index int, value any) {
	b[index] = value
}

// arguments encodes every parameter through its codec. OUT parameters
// bind a destination, INOUT additionally carry the resolved value in.
func (e *SimpleExecutor) arguments(stmt *mapping.Statement, param any, bound *mapping.BoundStatement) ([]any, error) {
	if len(bound.Params) == 0 {
		return nil, nil
	}
	args := make(argBinder, len(bound.Params))
	for i, pm := range bound.Params {
		if pm.Mode == mapping.Out {
			args[i] = sql.Out{Dest: new(any)}
			continue
		}
		value := e.resolveValue(pm, param, bound)
		if pm.Mode == mapping.InOut {
			v := value
			args[i] = sql.Out{Dest: &v, In: true}
			continue
		}
		db := pm.DBType
		if value == nil && db == types.Unspecified {
			db = e.nullType
		}
		handler := pm.TypeHandler
		if handler == nil {
			handler = types.DynamicHandler{Registry: e.registry}
		}
		if err := handler.Bind(args, i, value, db); err != nil {
			return nil, &ExecError{Statement: stmt.ID, Phase: "bind", Err: err}
		}
	}
	return []any(args), nil
}

// resolveValue locates the value a descriptor binds: render-time
// bindings first, then the parameter object itself when it is a
// registered scalar, then property navigation into it.
func (e *SimpleExecutor) resolveValue(pm mapping.ParameterMapping, param any, bound *mapping.BoundStatement) any {
	switch {
	case bound.HasAdditionalBinding(pm.Property):
		v, _ := bound.AdditionalBinding(pm.Property)
		return v
	case param == nil:
		return nil
	case e.registry.HasHandler(reflect.TypeOf(param)):
		return param
	default:
		v, _ := reflectx.GetPath(param, pm.Property)
		return v
	}
}

// readRows drains the result set into column maps, skipping offset
// rows without scanning them and stopping at the limit.
func (e *SimpleExecutor) readRows(rows *sql.Rows, bounds mapping.RowBounds) ([]mapping.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	decoders, err := e.columnDecoders(rows)
	if err != nil {
		return nil, err
	}
	var out []mapping.Row
	skipped := 0
	for rows.Next() {
		if skipped < bounds.Offset {
			skipped++
			continue
		}
		if len(out) >= bounds.Limit {
			break
		}
		row, err := scanRow(rows, cols, decoders)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// columnDecoders resolves a decoder per column from the wire type the
// driver reports. Columns without a known wire type decode by the
// default rules.
func (e *SimpleExecutor) columnDecoders(rows *sql.Rows) ([]types.TypeHandler, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	decoders := make([]types.TypeHandler, len(colTypes))
	for i, ct := range colTypes {
		if db, ok := types.DBTypeOf(ct.DatabaseTypeName()); ok {
			if h, ok := e.registry.Decoder(db); ok {
				decoders[i] = h
			}
		}
	}
	return decoders, nil
}

func scanRow(rows *sql.Rows, cols []string, decoders []types.TypeHandler) (mapping.Row, error) {
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(mapping.Row, len(cols))
	for i, col := range cols {
		row[col] = decodeColumn(raw[i], decoders[i])
	}
	return row, nil
}

// decodeColumn applies the column's decoder when one is known. Without
// one, byte slices become strings, the way drivers return text
// columns, and everything else passes through.
func decodeColumn(v any, h types.TypeHandler) any {
	if v == nil {
		return nil
	}
	if h != nil {
		if decoded, err := h.Decode(v); err == nil {
			return decoded
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

var _ Executor = (*SimpleExecutor)(nil)
