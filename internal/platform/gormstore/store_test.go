package gormstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/yotposync/internal/platform"
	"github.com/tigerroll/yotposync/internal/platform/gormstore"
	"github.com/tigerroll/yotposync/internal/schema"
	gormadapter "github.com/tigerroll/yotposync/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/yotposync/pkg/batch/adapter/database/migration"
)

func newStore(t *testing.T) *gormstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "platform.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.NewMigrator(sqlDB, "sqlite").Up(context.Background(), schema.FS, schema.Dir("sqlite"), ""))
	return gormstore.NewStore(db, gormadapter.NewGormTransactionManager(db))
}

func TestStore_ConfigObjectsMergeOnPut(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, found, err := s.Get(ctx, platform.ObjectTypeLocaleConfig, "en_US")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, platform.ObjectTypeLocaleConfig, "en_US", map[string]interface{}{"appKey": "app", "authToken": "old"}))
	require.NoError(t, s.Put(ctx, platform.ObjectTypeLocaleConfig, "en_US", map[string]interface{}{"authToken": "new"}))
	require.NoError(t, s.Put(ctx, platform.ObjectTypeLocaleConfig, "default", map[string]interface{}{"appKey": "d"}))

	attrs, found, err := s.Get(ctx, platform.ObjectTypeLocaleConfig, "en_US")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]interface{}{"appKey": "app", "authToken": "new"}, attrs)

	objects, err := s.List(ctx, platform.ObjectTypeLocaleConfig)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "default", objects[0].ID)
	assert.Equal(t, "en_US", objects[1].ID)
}

func TestStore_InTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.InTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Put(ctx, platform.ObjectTypeJobConfig, platform.JobConfigID, map[string]interface{}{"k": "v"}))
		_, found, err := s.Get(ctx, platform.ObjectTypeJobConfig, platform.JobConfigID)
		require.NoError(t, err)
		assert.True(t, found)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, found, err := s.Get(ctx, platform.ObjectTypeJobConfig, platform.JobConfigID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Preferences(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, found, err := s.Preference(ctx, "yotpoCartridgeEnabled")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetPreference(ctx, "yotpoCartridgeEnabled", false))
	v, found, err := s.Preference(ctx, "yotpoCartridgeEnabled")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, false, v)
}

func TestStore_QueryOrdersInIDOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	var orders []platform.Order
	for i, id := range []string{"10", "9", "100", "11"} {
		orders = append(orders, platform.Order{
			ID:        id,
			Locale:    "en_US",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Total:     decimal.RequireFromString("12.50"),
			LineItems: []platform.LineItem{{ProductID: "p-" + id, Quantity: 2, Price: decimal.RequireFromString("6.25")}},
		})
	}
	require.NoError(t, s.SaveOrders(ctx, orders...))

	got, err := s.QueryOrders(ctx, platform.OrderQuery{})
	require.NoError(t, err)
	var ids []string
	for _, o := range got {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"9", "10", "11", "100"}, ids)
	assert.True(t, got[0].Total.Equal(decimal.RequireFromString("12.5")))
	require.Len(t, got[0].LineItems, 1)
	assert.Equal(t, "p-9", got[0].LineItems[0].ProductID)

	page, err := s.QueryOrders(ctx, platform.OrderQuery{AfterID: "10", Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "11", page[0].ID)

	from, to := base.Add(time.Hour), base.Add(3*time.Hour)
	window, err := s.QueryOrders(ctx, platform.OrderQuery{CreatedFrom: &from, CreatedTo: &to})
	require.NoError(t, err)
	ids = nil
	for _, o := range window {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"9", "100"}, ids)
}

func TestStore_MarkLoyaltyExported(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.SaveOrders(ctx,
		platform.Order{ID: "1", CreatedAt: now},
		platform.Order{ID: "2", CreatedAt: now},
	))

	require.NoError(t, s.MarkLoyaltyExported(ctx, []string{"2"}))

	got, err := s.QueryOrders(ctx, platform.OrderQuery{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].Extension.LoyaltyExported)
	assert.True(t, got[1].Extension.LoyaltyExported)
}

func TestStore_QueryCustomersAfterCursor(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Now().UTC()
	for _, id := range []string{"c2", "c10", "c1"} {
		require.NoError(t, s.SaveCustomers(ctx, platform.Customer{ID: id, Email: id + "@example.com", CreatedAt: now, UpdatedAt: now}))
	}

	got, err := s.QueryCustomers(ctx, platform.CustomerQuery{AfterID: "c1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].ID)
	assert.Equal(t, "c10", got[1].ID)
	assert.Equal(t, "c10@example.com", got[1].Email)
}
