package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/satishbabariya/sqlmapper-go/mapping"
	"github.com/satishbabariya/sqlmapper-go/query/executor"
)

// Session executes registered statements. Each session owns one
// executor and, for transactional sessions, one transaction. A session
// is meant for a single goroutine.
type Session struct {
	id     uuid.UUID
	engine *Engine
	exec   executor.Executor
	mw     []Middleware
	dirty  bool
	closed bool
}

// ID identifies the session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Query runs a registered select and returns every row.
func (s *Session) Query(ctx context.Context, id string, param any) ([]mapping.Row, error) {
	return s.QueryBounds(ctx, id, param, mapping.DefaultBounds)
}

// QueryBounds runs a registered select reading only the bounded
// portion of the result set.
func (s *Session) QueryBounds(ctx context.Context, id string, param any, bounds mapping.RowBounds) ([]mapping.Row, error) {
	if s.closed {
		return nil, ErrClosed
	}
	stmt, err := s.engine.Statement(id)
	if err != nil {
		return nil, err
	}
	if d := s.engine.settings.QueryTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	info := s.info(stmt, param, bounds)
	res := s.run(ctx, info, func(ctx context.Context, info *ExecInfo) *ExecResult {
		rows, err := s.exec.Query(ctx, stmt, info.Param, info.Bounds)
		return &ExecResult{Value: rows, Err: err}
	})
	if res.Err != nil {
		return nil, res.Err
	}
	rows, _ := res.Value.([]mapping.Row)
	return rows, nil
}

// QueryOne runs a registered select expecting exactly one row.
func (s *Session) QueryOne(ctx context.Context, id string, param any) (mapping.Row, error) {
	rows, err := s.QueryBounds(ctx, id, param, mapping.DefaultBounds)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, fmt.Errorf("statement %q: %w", id, ErrNotFound)
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("statement %q returned %d rows: %w", id, len(rows), ErrTooManyRows)
	}
}

// Cursor runs a registered select and returns a lazy row iterator.
// The engine query timeout does not apply here, rows are fetched after
// the call returns. Close the cursor when done.
func (s *Session) Cursor(ctx context.Context, id string, param any, bounds mapping.RowBounds) (*executor.Cursor, error) {
	if s.closed {
		return nil, ErrClosed
	}
	stmt, err := s.engine.Statement(id)
	if err != nil {
		return nil, err
	}
	info := s.info(stmt, param, bounds)
	res := s.run(ctx, info, func(ctx context.Context, info *ExecInfo) *ExecResult {
		cur, err := s.exec.QueryCursor(ctx, stmt, info.Param, info.Bounds)
		return &ExecResult{Value: cur, Err: err}
	})
	if res.Err != nil {
		return nil, res.Err
	}
	cur, _ := res.Value.(*executor.Cursor)
	return cur, nil
}

// Exec runs a registered write and returns the affected row count.
func (s *Session) Exec(ctx context.Context, id string, param any) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	stmt, err := s.engine.Statement(id)
	if err != nil {
		return 0, err
	}
	if d := s.engine.settings.QueryTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	s.dirty = true
	info := s.info(stmt, param, mapping.DefaultBounds)
	res := s.run(ctx, info, func(ctx context.Context, info *ExecInfo) *ExecResult {
		n, err := s.exec.Update(ctx, stmt, info.Param)
		return &ExecResult{Value: n, Err: err}
	})
	if res.Err != nil {
		return 0, res.Err
	}
	n, _ := res.Value.(int64)
	return n, nil
}

// Commit settles the session's transaction, if any, and publishes
// staged cache entries.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.exec.Commit(ctx); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Rollback discards the session's transaction, if any, and its staged
// cache entries.
func (s *Session) Rollback(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.exec.Rollback(ctx); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Close releases the session. Uncommitted writes are rolled back,
// clean sessions publish their staged cache entries. Closing twice is
// harmless.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.exec.Close(s.dirty)
}

func (s *Session) info(stmt *mapping.Statement, param any, bounds mapping.RowBounds) *ExecInfo {
	return &ExecInfo{
		SessionID: s.id,
		Statement: stmt.ID,
		Kind:      stmt.Kind,
		Param:     mapping.WrapCollection(param, ""),
		Bounds:    bounds,
	}
}

func (s *Session) run(ctx context.Context, info *ExecInfo, op Handler) *ExecResult {
	h := op
	for i := len(s.mw) - 1; i >= 0; i-- {
		h = s.mw[i](h)
	}
	return h(ctx, info)
}
