// Package tx abstracts transaction management so chunk steps and stores can
// share a unit of work without depending on a concrete database adapter.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// TxExecutor defines write operations executable within a transaction.
type TxExecutor interface {
	// ExecuteUpdate performs a CREATE, UPDATE or DELETE on model.
	// query holds column conditions combined with AND.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts model, updating updateColumns when conflictColumns collide.
	// Empty updateColumns means DO NOTHING.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// Tx represents an ongoing transaction.
type Tx interface {
	TxExecutor
}

// TransactionManager manages the lifecycle of transactions.
type TransactionManager interface {
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(tx Tx) error
	Rollback(tx Tx) error
}

type txContextKey struct{}

// WithTx returns a context carrying t.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, t)
}

// FromContext returns the transaction carried by ctx, if any.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(txContextKey{}).(Tx)
	return t, ok && t != nil
}

// Run executes fn inside a transaction begun on tm. The transaction is
// committed when fn returns nil and rolled back otherwise. When ctx already
// carries a transaction fn joins it instead.
func Run(ctx context.Context, tm TransactionManager, fn func(ctx context.Context) error) (err error) {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}
	t, err := tm.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tm.Rollback(t)
			panic(p)
		}
	}()
	if err = fn(WithTx(ctx, t)); err != nil {
		if rbErr := tm.Rollback(t); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tm.Commit(t)
}
