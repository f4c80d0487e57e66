// Package localeconfig resolves locale-scoped feature flags and credentials.
//
// A locale's configuration is built field by field from three layers, the
// most specific winning: global site preferences, then the "default" locale
// record, then the locale's own record. Unrelated locales never contribute.
package localeconfig

// DefaultLocale is the sentinel locale whose record backs every locale
// without an override.
const DefaultLocale = "default"

// CartridgeEnabledPref is the site preference that turns the whole
// integration off when false.
const CartridgeEnabledPref = "yotpoCartridgeEnabled"

// Attribute names as stored on configuration records.
const (
	AttrLocaleID                   = "localeID"
	AttrAppKey                     = "appKey"
	AttrClientSecretKey            = "clientSecretKey"
	AttrAuthToken                  = "authToken"
	AttrRatingsEnabled             = "ratingsEnabled"
	AttrReviewsEnabled             = "reviewsEnabled"
	AttrPurchaseFeedEnabled        = "purchaseFeedEnabled"
	AttrLoyaltyEnabled             = "loyaltyEnabled"
	AttrLoyaltyOrderFeedEnabled    = "loyaltyOrderFeedEnabled"
	AttrLoyaltyCustomerFeedEnabled = "loyaltyCustomerFeedEnabled"
	AttrLoyaltyAPIKey              = "loyaltyApiKey"
	AttrLoyaltyGUID                = "loyaltyGuid"
)

// legacyAliases maps renamed boolean attributes to their current names.
var legacyAliases = map[string]string{
	"enablePurchaseFeed": AttrPurchaseFeedEnabled,
	"enableReviews":      AttrReviewsEnabled,
}

// globalFlags are the attributes that fall back to site preferences.
// Credentials never do.
var globalFlags = []string{
	AttrRatingsEnabled,
	AttrReviewsEnabled,
	AttrPurchaseFeedEnabled,
	AttrLoyaltyEnabled,
	AttrLoyaltyOrderFeedEnabled,
	AttrLoyaltyCustomerFeedEnabled,
}

// LocaleConfiguration is the resolved configuration of one locale.
type LocaleConfiguration struct {
	LocaleID        string `mapstructure:"localeID"`
	AppKey          string `mapstructure:"appKey"`
	ClientSecretKey string `mapstructure:"clientSecretKey"`
	// AuthToken is empty until first fetched.
	AuthToken                  string `mapstructure:"authToken"`
	RatingsEnabled             bool   `mapstructure:"ratingsEnabled"`
	ReviewsEnabled             bool   `mapstructure:"reviewsEnabled"`
	PurchaseFeedEnabled        bool   `mapstructure:"purchaseFeedEnabled"`
	LoyaltyEnabled             bool   `mapstructure:"loyaltyEnabled"`
	LoyaltyOrderFeedEnabled    bool   `mapstructure:"loyaltyOrderFeedEnabled"`
	LoyaltyCustomerFeedEnabled bool   `mapstructure:"loyaltyCustomerFeedEnabled"`
	LoyaltyAPIKey              string `mapstructure:"loyaltyApiKey"`
	LoyaltyGUID                string `mapstructure:"loyaltyGuid"`

	// SourceID is the record that supplied the credentials; a refreshed
	// token is written back to it. Empty when no record exists.
	SourceID string `mapstructure:"-"`
}

// CanonicalName returns the current attribute name for a possibly legacy name.
func CanonicalName(name string) string {
	if canonical, ok := legacyAliases[name]; ok {
		return canonical
	}
	return name
}

// normalize rewrites legacy attribute names. A record carrying both the
// legacy and the current name keeps the current one.
func normalize(attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		canonical := CanonicalName(k)
		if canonical != k {
			if _, hasCurrent := attrs[canonical]; hasCurrent {
				continue
			}
		}
		out[canonical] = v
	}
	return out
}
