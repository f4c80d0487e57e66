// Package platform defines the commerce platform collaborator consumed by the
// export pipeline: cursorable order and customer sets, a key-value
// configuration object store, a transactional write wrapper and site
// preferences.
package platform

import (
	"context"
	"time"
)

// Configuration object types held by the ConfigStore.
const (
	// ObjectTypeLocaleConfig holds one record per locale, plus "default".
	ObjectTypeLocaleConfig = "yotpoConfiguration"
	// ObjectTypeJobConfig holds the singleton job cursor record.
	ObjectTypeJobConfig = "yotpoJobsConfiguration"
	// JobConfigID is the identifier of the singleton job cursor record.
	JobConfigID = "yotpoJobsConfiguration"
)

// OrderQuery selects orders strictly after AfterID in ID order.
type OrderQuery struct {
	AfterID string
	// CreatedFrom and CreatedTo bound CreatedAt as [from, to) when set.
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
}

// CustomerQuery selects customers strictly after AfterID in ID order.
type CustomerQuery struct {
	AfterID string
	Limit   int
}

// OrderSource reads orders. Results are ordered by CompareIDs.
type OrderSource interface {
	QueryOrders(ctx context.Context, q OrderQuery) ([]Order, error)
	// MarkLoyaltyExported sets OrderExtension.LoyaltyExported on the given orders.
	MarkLoyaltyExported(ctx context.Context, orderIDs []string) error
}

// CustomerSource reads customers. Results are ordered by CompareIDs.
type CustomerSource interface {
	QueryCustomers(ctx context.Context, q CustomerQuery) ([]Customer, error)
}

// ConfigObject is one record of the configuration object store.
type ConfigObject struct {
	Type       string
	ID         string
	Attributes map[string]interface{}
}

// ConfigStore is a key-value store keyed by (objectType, identifier).
type ConfigStore interface {
	// Get returns the attributes of a record; found is false when it does not exist.
	Get(ctx context.Context, objectType, id string) (attrs map[string]interface{}, found bool, err error)
	// Put creates the record or merges attrs into it at the top level.
	Put(ctx context.Context, objectType, id string, attrs map[string]interface{}) error
	// List returns every record of objectType ordered by ID.
	List(ctx context.Context, objectType string) ([]ConfigObject, error)
}

// Transactor runs fn in a transaction: committed when fn returns nil, rolled
// back otherwise.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SitePreferences looks up site-level preferences.
type SitePreferences interface {
	Preference(ctx context.Context, name string) (value interface{}, found bool, err error)
}

// Platform bundles every collaborator interface.
type Platform interface {
	OrderSource
	CustomerSource
	ConfigStore
	Transactor
	SitePreferences
}
