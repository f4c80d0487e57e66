package job

import (
	"context"

	"github.com/tigerroll/yotposync/internal/platform"
	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// fetchFunc returns up to limit records with IDs after afterID, in ID order.
type fetchFunc[T any] func(ctx context.Context, afterID string, limit int) ([]T, error)

// cursorReader pages through records after the run's cursor.
//
// With reopen set, an exhausted iterator is reopened once from the last
// seen ID to pick up records that arrived while reading; a second empty
// page ends the input.
type cursorReader[T any] struct {
	rc       *RunContext
	fetch    fetchFunc[T]
	idOf     func(T) string
	pageSize int
	reopen   bool

	buffer   []T
	lastSeen string
	done     bool
}

func newCursorReader[T any](rc *RunContext, pageSize int, reopen bool, idOf func(T) string, fetch fetchFunc[T]) *cursorReader[T] {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &cursorReader[T]{rc: rc, fetch: fetch, idOf: idOf, pageSize: pageSize, reopen: reopen}
}

func (r *cursorReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.buffer = nil
	r.lastSeen = r.rc.Cursor.LastProcessedID
	r.done = r.rc.AlreadyComplete
	if r.done {
		logger.Infof("%s already completed; nothing to read.", r.rc.Type)
	}
	return nil
}

func (r *cursorReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if len(r.buffer) == 0 && !r.done {
		if err := r.fill(ctx); err != nil {
			return zero, err
		}
	}
	if len(r.buffer) == 0 {
		r.done = true
		r.rc.Exhausted = true
		return zero, port.ErrNoMoreItems
	}

	item := r.buffer[0]
	r.buffer = r.buffer[1:]
	id := r.idOf(item)
	r.lastSeen = Advance(r.lastSeen, id)
	r.rc.LastReadID = Advance(r.rc.LastReadID, id)
	return item, nil
}

func (r *cursorReader[T]) Close(ctx context.Context) error {
	r.buffer = nil
	return nil
}

// fill loads the next page, reopening once on exhaustion when enabled.
func (r *cursorReader[T]) fill(ctx context.Context) error {
	page, err := r.page(ctx)
	if err != nil {
		return err
	}
	if len(page) == 0 && r.reopen {
		logger.Debugf("%s: iterator exhausted after '%s'; reopening once.", r.rc.Type, r.lastSeen)
		if page, err = r.page(ctx); err != nil {
			return err
		}
	}
	if len(page) == 0 {
		r.done = true
	}
	r.buffer = page
	return nil
}

// page fetches records after lastSeen and drops any at or below it.
func (r *cursorReader[T]) page(ctx context.Context) ([]T, error) {
	items, err := r.fetch(ctx, r.lastSeen, r.pageSize)
	if err != nil {
		return nil, exception.NewBatchError(module, "failed to fetch records", err, false, exception.IsTemporary(err))
	}
	out := items[:0:0]
	for _, item := range items {
		if platform.IDAfter(r.idOf(item), r.lastSeen) {
			out = append(out, item)
		}
	}
	return out, nil
}

// NewOrderWindowReader reads orders created in [lastRun, runStart) after the cursor.
func NewOrderWindowReader(rc *RunContext, source platform.OrderSource, pageSize int) port.ItemReader[platform.Order] {
	return newCursorReader(rc, pageSize, false, orderID, func(ctx context.Context, afterID string, limit int) ([]platform.Order, error) {
		runStart := rc.RunStart
		return source.QueryOrders(ctx, platform.OrderQuery{
			AfterID:     afterID,
			CreatedFrom: rc.Cursor.LastExecutionTimestamp,
			CreatedTo:   &runStart,
			Limit:       limit,
		})
	})
}

// NewOrderBackfillReader reads every order after the cursor.
func NewOrderBackfillReader(rc *RunContext, source platform.OrderSource, pageSize int) port.ItemReader[platform.Order] {
	return newCursorReader(rc, pageSize, true, orderID, func(ctx context.Context, afterID string, limit int) ([]platform.Order, error) {
		return source.QueryOrders(ctx, platform.OrderQuery{AfterID: afterID, Limit: limit})
	})
}

// NewCustomerBackfillReader reads every customer after the cursor.
func NewCustomerBackfillReader(rc *RunContext, source platform.CustomerSource, pageSize int) port.ItemReader[platform.Customer] {
	return newCursorReader(rc, pageSize, true, customerID, func(ctx context.Context, afterID string, limit int) ([]platform.Customer, error) {
		return source.QueryCustomers(ctx, platform.CustomerQuery{AfterID: afterID, Limit: limit})
	})
}

func orderID(o platform.Order) string       { return o.ID }
func customerID(c platform.Customer) string { return c.ID }
