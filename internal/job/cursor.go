package job

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/yotposync/internal/platform"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
)

// Type identifies a job and keys its cursor.
type Type string

const (
	TypeOrderExport             Type = "orderExport"
	TypeLoyaltyOrderBackfill    Type = "loyaltyOrderBackfill"
	TypeLoyaltyCustomerBackfill Type = "loyaltyCustomerBackfill"
)

// JobCursor is the persisted progress of one job type.
type JobCursor struct {
	LastProcessedID        string     `mapstructure:"lastProcessedID"`
	LastExecutionTimestamp *time.Time `mapstructure:"lastExecutionTimestamp"`
	CompletionFlag         bool       `mapstructure:"completionFlag"`
}

func (c JobCursor) attributes() map[string]interface{} {
	attrs := map[string]interface{}{
		"lastProcessedID": c.LastProcessedID,
		"completionFlag":  c.CompletionFlag,
	}
	if c.LastExecutionTimestamp != nil {
		attrs["lastExecutionTimestamp"] = c.LastExecutionTimestamp.UTC().Format(time.RFC3339)
	}
	return attrs
}

// CursorStore keeps job cursors in the singleton job configuration record,
// one nested map per job type.
type CursorStore struct {
	store   platform.ConfigStore
	initial map[Type]time.Time
}

// NewCursorStore creates a CursorStore.
func NewCursorStore(store platform.ConfigStore) *CursorStore {
	return &CursorStore{store: store, initial: make(map[Type]time.Time)}
}

// NewConfiguredCursorStore creates a CursorStore seeded with the configured
// initial order export timestamp.
func NewConfiguredCursorStore(cfg *config.Config, store platform.ConfigStore) *CursorStore {
	return NewCursorStore(store).WithInitialTimestamp(TypeOrderExport, cfg.Sync.Yotpo.InitialOrderExportTime())
}

// WithInitialTimestamp makes Load report ts as the lastExecutionTimestamp of
// t until one is stored. A nil ts is ignored.
func (s *CursorStore) WithInitialTimestamp(t Type, ts *time.Time) *CursorStore {
	if ts != nil {
		s.initial[t] = ts.UTC()
	}
	return s
}

// Load returns the cursor of t, or a zero cursor when none is stored.
func (s *CursorStore) Load(ctx context.Context, t Type) (JobCursor, error) {
	cursor, err := s.load(ctx, t)
	if err != nil {
		return cursor, err
	}
	if ts, ok := s.initial[t]; ok && cursor.LastExecutionTimestamp == nil {
		cursor.LastExecutionTimestamp = &ts
	}
	return cursor, nil
}

func (s *CursorStore) load(ctx context.Context, t Type) (JobCursor, error) {
	var cursor JobCursor
	attrs, found, err := s.store.Get(ctx, platform.ObjectTypeJobConfig, platform.JobConfigID)
	if err != nil {
		return cursor, exception.NewBatchError(module, "failed to load job configuration", err, false, true)
	}
	if !found {
		return cursor, nil
	}
	raw, ok := attrs[string(t)].(map[string]interface{})
	if !ok {
		return cursor, nil
	}
	if err := configbinder.BindPropertiesWithTag(raw, &cursor, "mapstructure"); err != nil {
		return cursor, exception.NewBatchError(module, fmt.Sprintf("failed to decode cursor of %s", t), err, false, false)
	}
	return cursor, nil
}

// Save stores the cursor of t. Cursors of other job types are left as they are.
func (s *CursorStore) Save(ctx context.Context, t Type, cursor JobCursor) error {
	if err := s.store.Put(ctx, platform.ObjectTypeJobConfig, platform.JobConfigID, map[string]interface{}{
		string(t): cursor.attributes(),
	}); err != nil {
		return exception.NewBatchError(module, fmt.Sprintf("failed to save cursor of %s", t), err, false, false)
	}
	return nil
}

// Advance returns the later of the stored cursor ID and id.
func Advance(current, id string) string {
	if platform.IDAfter(id, current) {
		return id
	}
	return current
}
