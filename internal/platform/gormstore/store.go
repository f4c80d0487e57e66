// Package gormstore implements the commerce platform collaborator on a
// relational database through gorm. The schema is created by the embedded
// migrations.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/yotposync/internal/platform"
	gormadapter "github.com/tigerroll/yotposync/pkg/batch/adapter/database/gorm"
	tx "github.com/tigerroll/yotposync/pkg/batch/core/tx"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
)

const module = "gormstore"

// Store implements platform.Platform.
//
// Reads and writes use the transaction carried by ctx when there is one, so
// work done inside a chunk or InTransaction commits or rolls back with it.
type Store struct {
	db *gorm.DB
	tm tx.TransactionManager
}

// NewStore creates a Store over db with transactions managed by tm.
func NewStore(db *gorm.DB, tm tx.TransactionManager) *Store {
	return &Store{db: db, tm: tm}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return gormadapter.DBFromContext(ctx, s.db)
}

// InTransaction implements platform.Transactor. A transaction already carried
// by ctx is joined.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.tm, fn)
}

func (s *Store) QueryOrders(ctx context.Context, q platform.OrderQuery) ([]platform.Order, error) {
	db := afterID(s.conn(ctx), q.AfterID)
	if q.CreatedFrom != nil {
		db = db.Where("created_at >= ?", *q.CreatedFrom)
	}
	if q.CreatedTo != nil {
		db = db.Where("created_at < ?", *q.CreatedTo)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var entities []orderEntity
	if err := db.Order("LENGTH(id) ASC, id ASC").Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(module, "failed to query orders", err, false, true)
	}
	if len(entities) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	var items []lineItemEntity
	if err := s.conn(ctx).Where("order_id IN ?", ids).Order("order_id, position").Find(&items).Error; err != nil {
		return nil, exception.NewBatchError(module, "failed to query order line items", err, false, true)
	}
	itemsByOrder := make(map[string][]lineItemEntity, len(entities))
	for _, li := range items {
		itemsByOrder[li.OrderID] = append(itemsByOrder[li.OrderID], li)
	}

	orders := make([]platform.Order, 0, len(entities))
	for _, e := range entities {
		orders = append(orders, toDomainOrder(e, itemsByOrder[e.ID]))
	}
	return orders, nil
}

// MarkLoyaltyExported implements platform.OrderSource.
func (s *Store) MarkLoyaltyExported(ctx context.Context, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return s.InTransaction(ctx, func(ctx context.Context) error {
		t, _ := tx.FromContext(ctx)
		_, err := t.ExecuteUpdate(ctx, &orderEntity{LoyaltyExported: true}, "UPDATE", orderEntity{}.TableName(),
			map[string]interface{}{"id": orderIDs})
		if err != nil {
			return exception.NewBatchError(module, "failed to mark orders as loyalty exported", err, false, false)
		}
		return nil
	})
}

func (s *Store) QueryCustomers(ctx context.Context, q platform.CustomerQuery) ([]platform.Customer, error) {
	db := afterID(s.conn(ctx), q.AfterID)
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	var entities []customerEntity
	if err := db.Order("LENGTH(id) ASC, id ASC").Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(module, "failed to query customers", err, false, true)
	}
	customers := make([]platform.Customer, 0, len(entities))
	for _, e := range entities {
		customers = append(customers, toDomainCustomer(e))
	}
	return customers, nil
}

// afterID restricts db to ids sorting after cursor under platform.CompareIDs.
func afterID(db *gorm.DB, cursor string) *gorm.DB {
	if cursor == "" {
		return db
	}
	return db.Where("LENGTH(id) > ? OR (LENGTH(id) = ? AND id > ?)", len(cursor), len(cursor), cursor)
}

func (s *Store) Get(ctx context.Context, objectType, id string) (map[string]interface{}, bool, error) {
	var entity configObjectEntity
	err := s.conn(ctx).Where("object_type = ? AND object_id = ?", objectType, id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, exception.NewBatchError(module, fmt.Sprintf("failed to load %s/%s", objectType, id), err, false, true)
	}
	attrs := entity.Attributes.Data
	if attrs == nil {
		attrs = make(map[string]interface{})
	}
	return attrs, true, nil
}

// Put implements platform.ConfigStore. The read and the upsert run in one transaction.
func (s *Store) Put(ctx context.Context, objectType, id string, attrs map[string]interface{}) error {
	return s.InTransaction(ctx, func(ctx context.Context) error {
		current, _, err := s.Get(ctx, objectType, id)
		if err != nil {
			return err
		}
		if current == nil {
			current = make(map[string]interface{}, len(attrs))
		}
		for k, v := range attrs {
			current[k] = v
		}

		entity := &configObjectEntity{
			ObjectType:   objectType,
			ObjectID:     id,
			Attributes:   jsonColumn[map[string]interface{}]{Data: current},
			LastModified: time.Now(),
		}
		t, _ := tx.FromContext(ctx)
		if _, err := t.ExecuteUpsert(ctx, entity, entity.TableName(),
			[]string{"object_type", "object_id"},
			[]string{"attributes", "last_modified"},
		); err != nil {
			return exception.NewBatchError(module, fmt.Sprintf("failed to store %s/%s", objectType, id), err, false, false)
		}
		return nil
	})
}

func (s *Store) List(ctx context.Context, objectType string) ([]platform.ConfigObject, error) {
	var entities []configObjectEntity
	if err := s.conn(ctx).Where("object_type = ?", objectType).Order("object_id").Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(module, fmt.Sprintf("failed to list %s", objectType), err, false, true)
	}
	out := make([]platform.ConfigObject, 0, len(entities))
	for _, e := range entities {
		attrs := e.Attributes.Data
		if attrs == nil {
			attrs = make(map[string]interface{})
		}
		out = append(out, platform.ConfigObject{Type: e.ObjectType, ID: e.ObjectID, Attributes: attrs})
	}
	return out, nil
}

func (s *Store) Preference(ctx context.Context, name string) (interface{}, bool, error) {
	var entity sitePreferenceEntity
	err := s.conn(ctx).Where("name = ?", name).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, exception.NewBatchError(module, fmt.Sprintf("failed to load preference %s", name), err, false, true)
	}
	return entity.Value.Data, true, nil
}

// SetPreference stores a site preference.
func (s *Store) SetPreference(ctx context.Context, name string, value interface{}) error {
	entity := &sitePreferenceEntity{Name: name, Value: jsonColumn[interface{}]{Data: value}}
	return s.InTransaction(ctx, func(ctx context.Context) error {
		t, _ := tx.FromContext(ctx)
		_, err := t.ExecuteUpsert(ctx, entity, entity.TableName(), []string{"name"}, []string{"value"})
		return err
	})
}

// SaveOrders stores orders and replaces their line items.
func (s *Store) SaveOrders(ctx context.Context, orders ...platform.Order) error {
	return s.InTransaction(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		for _, o := range orders {
			entity, items := fromDomainOrder(o)
			if err := db.Save(&entity).Error; err != nil {
				return exception.NewBatchError(module, fmt.Sprintf("failed to save order %s", o.ID), err, false, false)
			}
			if err := db.Where("order_id = ?", o.ID).Delete(&lineItemEntity{}).Error; err != nil {
				return exception.NewBatchError(module, fmt.Sprintf("failed to clear line items of order %s", o.ID), err, false, false)
			}
			if len(items) > 0 {
				if err := db.Create(&items).Error; err != nil {
					return exception.NewBatchError(module, fmt.Sprintf("failed to save line items of order %s", o.ID), err, false, false)
				}
			}
		}
		return nil
	})
}

// SaveCustomers stores customers.
func (s *Store) SaveCustomers(ctx context.Context, customers ...platform.Customer) error {
	return s.InTransaction(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		for _, c := range customers {
			entity := fromDomainCustomer(c)
			if err := db.Save(&entity).Error; err != nil {
				return exception.NewBatchError(module, fmt.Sprintf("failed to save customer %s", c.ID), err, false, false)
			}
		}
		return nil
	})
}

var _ platform.Platform = (*Store)(nil)
