package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/yotposync/internal/job"
	"github.com/tigerroll/yotposync/internal/platform"
	"github.com/tigerroll/yotposync/internal/platform/memory"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
)

func TestCursorStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cursors := job.NewCursorStore(store)

	empty, err := cursors.Load(ctx, job.TypeOrderExport)
	require.NoError(t, err)
	assert.Equal(t, job.JobCursor{}, empty)

	ts := time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC)
	require.NoError(t, cursors.Save(ctx, job.TypeOrderExport, job.JobCursor{LastProcessedID: "42", LastExecutionTimestamp: &ts}))
	require.NoError(t, cursors.Save(ctx, job.TypeLoyaltyCustomerBackfill, job.JobCursor{LastProcessedID: "c9", CompletionFlag: true}))

	got, err := cursors.Load(ctx, job.TypeOrderExport)
	require.NoError(t, err)
	assert.Equal(t, "42", got.LastProcessedID)
	require.NotNil(t, got.LastExecutionTimestamp)
	assert.True(t, ts.Equal(*got.LastExecutionTimestamp))
	assert.False(t, got.CompletionFlag)

	other, err := cursors.Load(ctx, job.TypeLoyaltyCustomerBackfill)
	require.NoError(t, err)
	assert.Equal(t, job.JobCursor{LastProcessedID: "c9", CompletionFlag: true}, other)

	attrs, found, err := store.Get(ctx, platform.ObjectTypeJobConfig, platform.JobConfigID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, attrs, string(job.TypeOrderExport))
	assert.Contains(t, attrs, string(job.TypeLoyaltyCustomerBackfill))
}

func TestCursorStore_RolledBackSaveIsDiscarded(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cursors := job.NewCursorStore(store)

	err := store.InTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, cursors.Save(ctx, job.TypeOrderExport, job.JobCursor{LastProcessedID: "7"}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := cursors.Load(ctx, job.TypeOrderExport)
	require.NoError(t, err)
	assert.Empty(t, got.LastProcessedID)
}

func TestCursorStore_InitialTimestamp(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	initial := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	cursors := job.NewCursorStore(store).WithInitialTimestamp(job.TypeOrderExport, &initial)

	got, err := cursors.Load(ctx, job.TypeOrderExport)
	require.NoError(t, err)
	require.NotNil(t, got.LastExecutionTimestamp)
	assert.True(t, initial.Equal(*got.LastExecutionTimestamp))

	// Other job types are unaffected.
	other, err := cursors.Load(ctx, job.TypeLoyaltyOrderBackfill)
	require.NoError(t, err)
	assert.Nil(t, other.LastExecutionTimestamp)

	// A checkpoint without a run timestamp still reports the initial one.
	require.NoError(t, cursors.Save(ctx, job.TypeOrderExport, job.JobCursor{LastProcessedID: "5"}))
	got, err = cursors.Load(ctx, job.TypeOrderExport)
	require.NoError(t, err)
	assert.Equal(t, "5", got.LastProcessedID)
	require.NotNil(t, got.LastExecutionTimestamp)
	assert.True(t, initial.Equal(*got.LastExecutionTimestamp))

	stored := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	require.NoError(t, cursors.Save(ctx, job.TypeOrderExport, job.JobCursor{LastProcessedID: "5", LastExecutionTimestamp: &stored}))
	got, err = cursors.Load(ctx, job.TypeOrderExport)
	require.NoError(t, err)
	assert.True(t, stored.Equal(*got.LastExecutionTimestamp))
}

func TestNewConfiguredCursorStore(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Sync.Yotpo.OrderExportInitialTimestamp = "2026-10-01T00:00:00Z"
	cursors := job.NewConfiguredCursorStore(cfg, memory.NewStore())

	got, err := cursors.Load(context.Background(), job.TypeOrderExport)
	require.NoError(t, err)
	require.NotNil(t, got.LastExecutionTimestamp)
	assert.Equal(t, "2026-10-01T00:00:00Z", got.LastExecutionTimestamp.Format(time.RFC3339))

	unset := job.NewConfiguredCursorStore(config.NewConfig(), memory.NewStore())
	got, err = unset.Load(context.Background(), job.TypeOrderExport)
	require.NoError(t, err)
	assert.Nil(t, got.LastExecutionTimestamp)
}

func TestAdvance(t *testing.T) {
	assert.Equal(t, "100", job.Advance("99", "100"))
	assert.Equal(t, "100", job.Advance("100", "99"))
	assert.Equal(t, "1", job.Advance("", "1"))
	assert.Equal(t, "5", job.Advance("5", "5"))
}

func TestErrorLedger(t *testing.T) {
	l := &job.ErrorLedger{}
	assert.Zero(t, l.ErrorRate())

	for i := 0; i < 4; i++ {
		l.RecordProcessed()
	}
	l.RecordSkipped("a")
	processed, skipped := l.Chunk()
	assert.Equal(t, 4, processed)
	assert.Equal(t, 1, skipped)

	l.ResetChunk()
	processed, skipped = l.Chunk()
	assert.Zero(t, processed)
	assert.Zero(t, skipped)

	for i := 0; i < 4; i++ {
		l.RecordProcessed()
	}
	l.RecordSkipped("b", "c")
	processed, skipped = l.Step()
	assert.Equal(t, 8, processed)
	assert.Equal(t, 3, skipped)
	assert.InDelta(t, 37.5, l.ErrorRate(), 1e-9)
	assert.Equal(t, []string{"a", "b", "c"}, l.SkippedIDs())
}
