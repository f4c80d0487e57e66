package job_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/yotposync/internal/job"
	"github.com/tigerroll/yotposync/internal/platform"
	"github.com/tigerroll/yotposync/internal/platform/memory"
	"github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	"github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
)

// pagedSource answers QueryOrders with scripted pages and ignores AfterID,
// like a source that re-serves records it already returned.
type pagedSource struct {
	pages   [][]platform.Order
	queries []platform.OrderQuery
}

func (s *pagedSource) QueryOrders(ctx context.Context, q platform.OrderQuery) ([]platform.Order, error) {
	s.queries = append(s.queries, q)
	if len(s.pages) == 0 {
		return nil, nil
	}
	page := s.pages[0]
	s.pages = s.pages[1:]
	return page, nil
}

func (s *pagedSource) MarkLoyaltyExported(ctx context.Context, ids []string) error { return nil }

func ids(orders ...string) []platform.Order {
	out := make([]platform.Order, 0, len(orders))
	for _, id := range orders {
		out = append(out, platform.Order{ID: id})
	}
	return out
}

func readAll(t *testing.T, r port.ItemReader[platform.Order]) []string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	var got []string
	for {
		o, err := r.Read(ctx)
		if errors.Is(err, port.ErrNoMoreItems) {
			break
		}
		require.NoError(t, err)
		got = append(got, o.ID)
	}
	require.NoError(t, r.Close(ctx))
	return got
}

func newRC(t job.Type, cursor string) *job.RunContext {
	return &job.RunContext{
		Type:   t,
		Ledger: &job.ErrorLedger{},
		Cursor: job.JobCursor{LastProcessedID: cursor},
	}
}

func TestBackfillReader_ReopenDoesNotReyieldCursor(t *testing.T) {
	source := &pagedSource{pages: [][]platform.Order{
		ids("99", "100", "101"),
		nil,
		ids("100", "101", "102"),
		nil,
		nil,
	}}
	rc := newRC(job.TypeLoyaltyOrderBackfill, "100")

	got := readAll(t, job.NewOrderBackfillReader(rc, source, 3))

	assert.Equal(t, []string{"101", "102"}, got)
	assert.True(t, rc.Exhausted)
	assert.Equal(t, "102", rc.LastReadID)
	// The reopen asks for records after the last one seen.
	assert.Equal(t, "101", source.queries[2].AfterID)
}

func TestBackfillReader_AlreadyComplete(t *testing.T) {
	source := &pagedSource{pages: [][]platform.Order{ids("1")}}
	rc := newRC(job.TypeLoyaltyOrderBackfill, "")
	rc.AlreadyComplete = true

	assert.Empty(t, readAll(t, job.NewOrderBackfillReader(rc, source, 10)))
	assert.Empty(t, source.queries)
}

func TestOrderWindowReader_BoundsCreatedAt(t *testing.T) {
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	store := memory.NewStore()
	store.AddOrders(
		platform.Order{ID: "1", CreatedAt: from.Add(-time.Second)},
		platform.Order{ID: "2", CreatedAt: from},
		platform.Order{ID: "3", CreatedAt: to.Add(-time.Second)},
		platform.Order{ID: "4", CreatedAt: to},
	)
	rc := newRC(job.TypeOrderExport, "")
	rc.Cursor.LastExecutionTimestamp = &from
	rc.RunStart = to

	assert.Equal(t, []string{"2", "3"}, readAll(t, job.NewOrderWindowReader(rc, store, 1)))
}

func TestCustomerBackfillReader_Pages(t *testing.T) {
	store := memory.NewStore()
	for _, id := range []string{"3", "1", "10", "2"} {
		store.AddCustomers(platform.Customer{ID: id})
	}
	rc := newRC(job.TypeLoyaltyCustomerBackfill, "1")

	r := job.NewCustomerBackfillReader(rc, store, 2)
	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	var got []string
	for {
		c, err := r.Read(ctx)
		if errors.Is(err, port.ErrNoMoreItems) {
			break
		}
		require.NoError(t, err)
		got = append(got, c.ID)
	}
	assert.Equal(t, []string{"2", "3", "10"}, got)
}
