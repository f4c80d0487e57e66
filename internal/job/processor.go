package job

import (
	"context"

	"github.com/tigerroll/yotposync/internal/export"
	"github.com/tigerroll/yotposync/internal/localeconfig"
	"github.com/tigerroll/yotposync/internal/payload"
	"github.com/tigerroll/yotposync/internal/platform"
	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// transformProcessor runs a payload builder over each record. A failed
// transform is counted in the ledger and the record is filtered out.
type transformProcessor[T any] struct {
	rc        *RunContext
	idOf      func(T) string
	localeOf  func(T) string
	transform func(T) (interface{}, error)
	// accept filters records that need no export; nil accepts all.
	accept func(T) bool
}

func (p *transformProcessor[T]) Process(ctx context.Context, item T) (export.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return export.Record{}, false, err
	}
	id := p.idOf(item)
	if p.accept != nil && !p.accept(item) {
		logger.Debugf("%s: record %s needs no export.", p.rc.Type, id)
		return export.Record{}, false, nil
	}

	p.rc.Ledger.RecordProcessed()
	out, err := p.transform(item)
	if err != nil {
		logger.Warnf("%s: skipping record %s: %v", p.rc.Type, id, err)
		p.rc.Ledger.RecordSkipped(id)
		return export.Record{}, false, nil
	}
	return export.Record{ID: id, Locale: p.localeOf(item), Payload: out}, true, nil
}

// NewPurchaseProcessor transforms orders into purchase feed entries.
func NewPurchaseProcessor(rc *RunContext, opts payload.Options) port.ItemProcessor[platform.Order, export.Record] {
	return &transformProcessor[platform.Order]{
		rc:       rc,
		idOf:     orderID,
		localeOf: orderLocale,
		transform: func(o platform.Order) (interface{}, error) {
			return payload.BuildPurchase(o, opts)
		},
	}
}

// NewLoyaltyOrderProcessor transforms orders not yet sent to loyalty.
func NewLoyaltyOrderProcessor(rc *RunContext) port.ItemProcessor[platform.Order, export.Record] {
	return &transformProcessor[platform.Order]{
		rc:       rc,
		idOf:     orderID,
		localeOf: orderLocale,
		transform: func(o platform.Order) (interface{}, error) {
			return payload.BuildLoyaltyOrder(o)
		},
		accept: func(o platform.Order) bool { return !o.Extension.LoyaltyExported },
	}
}

// NewLoyaltyCustomerProcessor transforms customers.
func NewLoyaltyCustomerProcessor(rc *RunContext) port.ItemProcessor[platform.Customer, export.Record] {
	return &transformProcessor[platform.Customer]{
		rc:       rc,
		idOf:     customerID,
		localeOf: func(c platform.Customer) string { return recordLocale(c.Locale) },
		transform: func(c platform.Customer) (interface{}, error) {
			return payload.BuildLoyaltyCustomer(c)
		},
	}
}

func orderLocale(o platform.Order) string { return recordLocale(o.Locale) }

// recordLocale maps records without a locale to the default locale.
func recordLocale(locale string) string {
	if locale == "" {
		return localeconfig.DefaultLocale
	}
	return locale
}
