package yotpo

import (
	"net/url"
	"strings"
)

// Loyalty resources accepting mass uploads.
const (
	LoyaltyPurchases = "purchases"
	LoyaltyOrders    = "orders"
	LoyaltyCustomers = "customers"
)

// PurchaseFeedEndpoint is the legacy purchase feed of appKey.
func PurchaseFeedEndpoint(appKey string) string {
	return "apps/" + url.PathEscape(appKey) + "/purchases/mass_create.json"
}

// ConfigMetadataEndpoint receives the feature flags of appKey.
func ConfigMetadataEndpoint(appKey string) string {
	return "apps/" + url.PathEscape(appKey) + "/account_platform/update_metadata.json"
}

// LoyaltyMassCreateEndpoint is the mass upload endpoint of resource.
func LoyaltyMassCreateEndpoint(guid, resource string) string {
	return strings.Join([]string{url.PathEscape(guid), resource, "mass_create.json"}, "/")
}

// LoyaltyProcessOrdersEndpoint is the batch order processing endpoint.
func LoyaltyProcessOrdersEndpoint(guid string) string {
	return url.PathEscape(guid) + "/process_orders_batch"
}

// LoyaltyQuery carries the static loyalty credentials.
func LoyaltyQuery(apiKey, guid string) url.Values {
	return url.Values{"api_key": {apiKey}, "guid": {guid}}
}
