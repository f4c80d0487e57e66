package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	tx "github.com/tigerroll/yotposync/pkg/batch/core/tx"
)

// GormTxAdapter implements tx.Tx on top of a gorm transaction.
type GormTxAdapter struct {
	db *gorm.DB
}

// DB returns the transaction-bound gorm handle.
func (t *GormTxAdapter) DB() *gorm.DB {
	return t.db
}

// ExecuteUpdate implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error) {
	db := t.db.WithContext(ctx)
	if tableName != "" {
		db = db.Table(tableName)
	}

	var result *gorm.DB
	switch operation {
	case "CREATE":
		result = db.Create(model)
	case "UPDATE":
		result = db.Model(model).Where(query).Updates(model)
	case "DELETE":
		if query != nil {
			db = db.Where(query)
		}
		result = db.Delete(model)
	default:
		return 0, fmt.Errorf("unsupported update operation: %s", operation)
	}

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteUpsert implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error) {
	db := t.db.WithContext(ctx)
	if tableName != "" {
		db = db.Table(tableName)
	}

	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, col := range conflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}
	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		onConflict.DoNothing = true
	}

	result := db.Clauses(onConflict).Create(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// GormTransactionManager implements tx.TransactionManager for one connection.
type GormTransactionManager struct {
	db *gorm.DB
}

// NewGormTransactionManager creates a GormTransactionManager over db.
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// Begin starts a gorm transaction.
func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}
	gormTx := m.db.WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", gormTx.Error)
	}
	return &GormTxAdapter{db: gormTx}, nil
}

// Commit commits t.
func (m *GormTransactionManager) Commit(t tx.Tx) error {
	adapter, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	return adapter.db.Commit().Error
}

// Rollback rolls t back.
func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	adapter, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	return adapter.db.Rollback().Error
}

// DBFromContext returns the transaction handle when ctx carries a
// GormTxAdapter, otherwise fallback bound to ctx.
func DBFromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if t, ok := tx.FromContext(ctx); ok {
		if adapter, ok := t.(*GormTxAdapter); ok {
			return adapter.db.WithContext(ctx)
		}
	}
	return fallback.WithContext(ctx)
}

var (
	_ tx.Tx                 = (*GormTxAdapter)(nil)
	_ tx.TransactionManager = (*GormTransactionManager)(nil)
)
