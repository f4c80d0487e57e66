// Package dummy provides a TransactionManager that does nothing, for steps
// whose writers have no transactional resource.
package dummy

import (
	"context"
	"database/sql"

	tx "github.com/tigerroll/yotposync/pkg/batch/core/tx"
)

type dummyTx struct{}

func (d *dummyTx) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	return 0, nil
}

func (d *dummyTx) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	return 0, nil
}

type dummyTxManager struct{}

// NewTransactionManager returns a no-op tx.TransactionManager.
func NewTransactionManager() tx.TransactionManager {
	return &dummyTxManager{}
}

func (d *dummyTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	return &dummyTx{}, nil
}

func (d *dummyTxManager) Commit(t tx.Tx) error   { return nil }
func (d *dummyTxManager) Rollback(t tx.Tx) error { return nil }
