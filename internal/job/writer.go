package job

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/yotposync/internal/export"
	"github.com/tigerroll/yotposync/internal/platform"
	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	tx "github.com/tigerroll/yotposync/pkg/batch/core/tx"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// exportWriter sends each chunk as one batch per locale.
//
// A failed locale is logged and its records counted as skipped; sibling
// locales are still sent. Only cancellation fails the chunk.
type exportWriter struct {
	rc     *RunContext
	model  *export.Model
	feed   export.Feed
	orders platform.OrderSource
}

// NewExportWriter creates the writer of feed. orders is used by the loyalty
// order feed to flag exported orders and may be nil otherwise.
func NewExportWriter(rc *RunContext, model *export.Model, feed export.Feed, orders platform.OrderSource) port.ItemWriter[export.Record] {
	return &exportWriter{rc: rc, model: model, feed: feed, orders: orders}
}

func (w *exportWriter) Write(ctx context.Context, _ tx.Tx, items []export.Record) error {
	locales, groups := export.GroupByLocale(items)

	var errs *multierror.Error
	for _, locale := range locales {
		group := groups[locale]
		batch := w.batchFor(locale, group)
		if batch == nil {
			logger.Debugf("%s: %d record(s) of locale '%s' have no eligible configuration; not exported.", w.rc.Type, len(group), locale)
			continue
		}

		_, err := w.model.SendBatch(ctx, w.rc.Session, batch, true)
		w.rememberToken(locale, batch)
		if err == nil && w.feed == export.FeedLoyaltyOrders && w.orders != nil {
			err = w.orders.MarkLoyaltyExported(ctx, batch.RecordIDs)
		}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Errorf("%s: export of %d record(s) for locale '%s' failed: %v", w.rc.Type, len(batch.RecordIDs), locale, err)
			w.rc.Ledger.RecordSkipped(batch.RecordIDs...)
			errs = multierror.Append(errs, fmt.Errorf("locale %s: %w", locale, err))
			continue
		}
		logger.Infof("%s: exported %d record(s) for locale '%s'.", w.rc.Type, len(batch.RecordIDs), locale)
	}

	if err := errs.ErrorOrNil(); err != nil {
		logger.Warnf("%s: %d locale batch(es) failed in this chunk: %v", w.rc.Type, errs.Len(), err)
	}
	return nil
}

// batchFor builds the request of one locale group, or nil when the locale
// is not part of this run.
func (w *exportWriter) batchFor(locale string, group []export.Record) *export.ExportBatch {
	ids := make([]string, 0, len(group))
	for _, r := range group {
		ids = append(ids, r.ID)
	}

	if w.feed != export.FeedPurchase {
		cfg, ok := w.rc.Configs[locale]
		if !ok {
			return nil
		}
		return export.LoyaltyBatch(cfg, w.feed, group)
	}

	template, ok := w.rc.Envelopes[locale]
	if !ok {
		return nil
	}
	envelope := w.model.NewEnvelope(template.UToken)
	if dropped := export.AddRecordsToRequests(group, map[string]*export.Envelope{locale: envelope}); dropped > 0 {
		return nil
	}
	if len(envelope.Orders) == 0 {
		return nil
	}
	return export.PurchaseBatch(locale, w.rc.Configs[locale].AppKey, envelope, ids)
}

// rememberToken keeps a refreshed token for the following chunks.
func (w *exportWriter) rememberToken(locale string, batch *export.ExportBatch) {
	if template, ok := w.rc.Envelopes[locale]; ok && batch.AuthToken != "" {
		template.UToken = batch.AuthToken
	}
}
