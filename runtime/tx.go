package runtime

import (
	"context"
	"database/sql"
	"fmt"
)

// Transactional runs fn inside a transactional session. The
// transaction is rolled back when fn returns an error or panics and
// committed otherwise. fn must not commit or close the session itself.
func Transactional(ctx context.Context, engine *Engine, opts *sql.TxOptions, fn func(*Session) error) error {
	session, err := engine.OpenSessionTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = session.Rollback(ctx)
			_ = session.Close()
			panic(p)
		}
	}()
	if err := fn(session); err != nil {
		if rbErr := session.Rollback(ctx); rbErr != nil {
			err = fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		_ = session.Close()
		return err
	}
	if err := session.Commit(ctx); err != nil {
		_ = session.Close()
		return fmt.Errorf("committing transaction: %w", err)
	}
	return session.Close()
}
