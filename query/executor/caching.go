package executor

import (
	"context"

	"github.com/satishbabariya/sqlmapper-go/mapping"
	"github.com/satishbabariya/sqlmapper-go/query/cache"
)

// CachingExecutor decorates an executor with the shared statement
// cache. Results are staged in per-session overlays and published on
// commit, so other sessions never observe uncommitted rows.
type CachingExecutor struct {
	delegate Executor
	tcm      *cache.TxCacheManager
}

// NewCachingExecutor wraps a delegate.
func NewCachingExecutor(delegate Executor) *CachingExecutor {
	return &CachingExecutor{delegate: delegate, tcm: cache.NewTxCacheManager()}
}

// Query implements Executor.
func (e *CachingExecutor) Query(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds) ([]mapping.Row, error) {
	bound, err := bindStatement(stmt, param)
	if err != nil {
		return nil, err
	}
	return e.QueryBound(ctx, stmt, param, bounds, bound)
}

// QueryBound consults the statement cache before the delegate. A miss
// runs the query and stages the rows for publication at commit.
func (e *CachingExecutor) QueryBound(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, bound *mapping.BoundStatement) ([]mapping.Row, error) {
	if stmt.Cache != nil {
		e.flushIfRequired(stmt)
		if stmt.UseCache {
			if err := ensureNoOutParams(stmt, bound); err != nil {
				return nil, err
			}
			key, err := e.delegate.CreateKey(stmt, param, bounds, bound)
			if err != nil {
				return nil, err
			}
			if value, ok := e.tcm.Get(stmt.Cache, key); ok && value != nil {
				if rows, ok := rowsFromCache(value); ok {
					return rows, nil
				}
			}
			rows, err := e.delegate.QueryBound(ctx, stmt, param, bounds, bound)
			if err != nil {
				return nil, err
			}
			e.tcm.Put(stmt.Cache, key, rows)
			return rows, nil
		}
	}
	return e.delegate.QueryBound(ctx, stmt, param, bounds, bound)
}

// QueryCursor implements Executor. Cursor results are never cached,
// the statement's flush semantics still apply.
func (e *CachingExecutor) QueryCursor(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds) (*Cursor, error) {
	e.flushIfRequired(stmt)
	return e.delegate.QueryCursor(ctx, stmt, param, bounds)
}

// Update implements Executor.
func (e *CachingExecutor) Update(ctx context.Context, stmt *mapping.Statement, param any) (int64, error) {
	e.flushIfRequired(stmt)
	return e.delegate.Update(ctx, stmt, param)
}

// CreateKey implements Executor.
func (e *CachingExecutor) CreateKey(stmt *mapping.Statement, param any, bounds mapping.RowBounds, bound *mapping.BoundStatement) (*cache.Key, error) {
	return e.delegate.CreateKey(stmt, param, bounds, bound)
}

// Commit commits the delegate, then publishes the staged cache
// entries.
func (e *CachingExecutor) Commit(ctx context.Context) error {
	if err := e.delegate.Commit(ctx); err != nil {
		return err
	}
	e.tcm.Commit()
	return nil
}

// Rollback rolls back the delegate and discards the staged entries
// either way.
func (e *CachingExecutor) Rollback(ctx context.Context) error {
	defer e.tcm.Rollback()
	return e.delegate.Rollback(ctx)
}

// Close settles the cache overlays, publishing on a clean close and
// discarding on a forced rollback, then closes the delegate.
func (e *CachingExecutor) Close(rollback bool) error {
	if rollback {
		e.tcm.Rollback()
	} else {
		e.tcm.Commit()
	}
	return e.delegate.Close(rollback)
}

// Closed implements Executor.
func (e *CachingExecutor) Closed() bool {
	return e.delegate.Closed()
}

func (e *CachingExecutor) flushIfRequired(stmt *mapping.Statement) {
	if stmt.Cache != nil && stmt.FlushCache {
		e.tcm.Clear(stmt.Cache)
	}
}

func ensureNoOutParams(stmt *mapping.Statement, bound *mapping.BoundStatement) error {
	for _, pm := range bound.Params {
		if pm.Mode != mapping.In {
			return &cache.ProtocolError{
				Cache: stmt.Cache.ID(),
				Op:    "get",
				Msg:   "caching stored procedures with OUT parameters is not supported, statement " + stmt.ID,
			}
		}
	}
	return nil
}

// rowsFromCache coerces a cached value back to rows. Snapshotting and
// remote caches may round-trip the slice through a generic decode.
func rowsFromCache(value any) ([]mapping.Row, bool) {
	switch rows := value.(type) {
	case []mapping.Row:
		return rows, true
	case []any:
		out := make([]mapping.Row, 0, len(rows))
		for _, r := range rows {
			switch m := r.(type) {
			case mapping.Row:
				out = append(out, m)
			case map[string]any:
				out = append(out, mapping.Row(m))
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}

var _ Executor = (*CachingExecutor)(nil)
