package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/sqlmapper-go/mapping"
)

// ExecInfo describes one statement execution crossing the middleware
// chain. Middleware may replace Param or Bounds before calling next.
type ExecInfo struct {
	SessionID uuid.UUID
	Statement string
	Kind      mapping.Kind
	Param     any
	Bounds    mapping.RowBounds
}

// ExecResult carries the outcome back up the chain. Value holds
// []mapping.Row for queries, the cursor for cursor reads and the
// affected count for writes.
type ExecResult struct {
	Value any
	Err   error
}

// Handler runs one statement execution.
type Handler func(ctx context.Context, info *ExecInfo) *ExecResult

// Middleware decorates a Handler. The first middleware added to the
// engine sits outermost.
type Middleware func(next Handler) Handler

// LoggingMiddleware logs every execution with its duration and
// outcome.
func LoggingMiddleware(logger Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, info *ExecInfo) *ExecResult {
			logger.Logf("executing %s %s with %v", info.Kind, info.Statement, info.Param)
			start := time.Now()
			res := next(ctx, info)
			if res.Err != nil {
				logger.Logf("statement %s failed after %v: %v", info.Statement, time.Since(start), res.Err)
			} else {
				logger.Logf("statement %s completed in %v", info.Statement, time.Since(start))
			}
			return res
		}
	}
}

// TimingMiddleware reports the duration of every execution.
func TimingMiddleware(onTiming func(statement string, duration time.Duration)) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, info *ExecInfo) *ExecResult {
			start := time.Now()
			res := next(ctx, info)
			if onTiming != nil {
				onTiming(info.Statement, time.Since(start))
			}
			return res
		}
	}
}

// ErrorMiddleware reports failed executions.
func ErrorMiddleware(onError func(statement string, err error)) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, info *ExecInfo) *ExecResult {
			res := next(ctx, info)
			if res.Err != nil && onError != nil {
				onError(info.Statement, res.Err)
			}
			return res
		}
	}
}

// TimeoutMiddleware bounds every execution it wraps with d.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, info *ExecInfo) *ExecResult {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, info)
		}
	}
}

// RetryMiddleware retries failed executions up to attempts total tries
// with a fixed backoff between them. Only selects are retried; writes
// pass through untouched.
func RetryMiddleware(attempts int, backoff time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, info *ExecInfo) *ExecResult {
			res := next(ctx, info)
			if info.Kind != mapping.Select {
				return res
			}
			for try := 1; try < attempts && res.Err != nil; try++ {
				select {
				case <-ctx.Done():
					return res
				case <-time.After(backoff):
				}
				res = next(ctx, info)
			}
			return res
		}
	}
}
