package export

import (
	"net/url"
	"time"

	"github.com/tigerroll/yotposync/internal/localeconfig"
)

// Feed identifies the destination of an export.
type Feed string

const (
	FeedPurchase         Feed = "purchase"
	FeedLoyaltyOrders    Feed = "loyalty_orders"
	FeedLoyaltyCustomers Feed = "loyalty_customers"
	FeedConfigMetadata   Feed = "config_metadata"
)

// Refreshable reports whether the feed authenticates with a utoken that can
// be refreshed. Loyalty feeds use static API keys.
func (f Feed) Refreshable() bool {
	return f == FeedPurchase || f == FeedConfigMetadata
}

// Envelope is the request body of the purchase feed.
type Envelope struct {
	ValidateData  bool          `json:"validate_data"`
	Platform      string        `json:"platform"`
	PluginVersion string        `json:"plugin_version"`
	UToken        string        `json:"utoken"`
	Orders        []interface{} `json:"orders"`
}

// SetToken implements TokenCarrier.
func (e *Envelope) SetToken(token string) { e.UToken = token }

// MetadataRequest is the request body of the configuration metadata call.
type MetadataRequest struct {
	UToken        string                 `json:"utoken"`
	Platform      string                 `json:"platform"`
	PluginVersion string                 `json:"plugin_version"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// SetToken implements TokenCarrier.
func (m *MetadataRequest) SetToken(token string) { m.UToken = token }

// LoyaltyBody is the request body of the loyalty mass uploads.
type LoyaltyBody struct {
	Orders    []interface{} `json:"orders,omitempty"`
	Customers []interface{} `json:"customers,omitempty"`
}

// TokenCarrier is a request body embedding the utoken.
type TokenCarrier interface {
	SetToken(token string)
}

// ExportBatch is one request for one locale.
type ExportBatch struct {
	Locale    string
	Feed      Feed
	Endpoint  string
	Query     url.Values
	AuthToken string
	Payload   interface{}
	// RecordIDs lists the records carried, in order.
	RecordIDs []string
}

// SetToken replaces the batch token and patches the body when it carries one.
func (b *ExportBatch) SetToken(token string) {
	b.AuthToken = token
	if carrier, ok := b.Payload.(TokenCarrier); ok {
		carrier.SetToken(token)
	}
}

// Record is a transformed record ready to be grouped into a request.
type Record struct {
	ID      string
	Locale  string
	Payload interface{}
}

// AddRecordsToRequests appends each record to the envelope of its locale and
// returns how many records had no envelope and were dropped.
func AddRecordsToRequests(records []Record, envelopes map[string]*Envelope) int {
	dropped := 0
	for _, r := range records {
		env, ok := envelopes[r.Locale]
		if !ok {
			dropped++
			continue
		}
		env.Orders = append(env.Orders, r.Payload)
	}
	return dropped
}

// GroupByLocale splits records by locale, keeping the first-seen order of
// locales and the order of records inside each group.
func GroupByLocale(records []Record) ([]string, map[string][]Record) {
	var order []string
	groups := make(map[string][]Record)
	for _, r := range records {
		if _, seen := groups[r.Locale]; !seen {
			order = append(order, r.Locale)
		}
		groups[r.Locale] = append(groups[r.Locale], r)
	}
	return order, groups
}

// ValidateLocaleEligibility reports whether the purchase feed can run for cfg.
func ValidateLocaleEligibility(cfg *localeconfig.LocaleConfiguration, lastRun *time.Time) bool {
	return cfg != nil &&
		cfg.PurchaseFeedEnabled &&
		cfg.AppKey != "" &&
		cfg.ClientSecretKey != "" &&
		lastRun != nil
}

// ValidateLoyaltyEligibility reports whether feed can run for cfg.
func ValidateLoyaltyEligibility(cfg *localeconfig.LocaleConfiguration, feed Feed) bool {
	if cfg == nil || !cfg.LoyaltyEnabled || cfg.LoyaltyAPIKey == "" || cfg.LoyaltyGUID == "" {
		return false
	}
	switch feed {
	case FeedLoyaltyOrders:
		return cfg.LoyaltyOrderFeedEnabled
	case FeedLoyaltyCustomers:
		return cfg.LoyaltyCustomerFeedEnabled
	default:
		return false
	}
}
