package localeconfig

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tigerroll/yotposync/internal/platform"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

const module = "localeconfig"

// Resolver reads locale configuration records and site preferences.
// It holds no state of its own; use a Session to cache lookups.
type Resolver struct {
	store platform.ConfigStore
	prefs platform.SitePreferences
}

// NewResolver creates a Resolver.
func NewResolver(store platform.ConfigStore, prefs platform.SitePreferences) *Resolver {
	return &Resolver{store: store, prefs: prefs}
}

// Resolve builds the configuration of locale.
func (r *Resolver) Resolve(ctx context.Context, locale string) (*LocaleConfiguration, error) {
	attrs, sourceID, err := r.overlay(ctx, locale)
	if err != nil {
		return nil, err
	}
	return decode(locale, attrs, sourceID)
}

func decode(locale string, attrs map[string]interface{}, sourceID string) (*LocaleConfiguration, error) {
	cfg := &LocaleConfiguration{}
	if err := configbinder.BindPropertiesWithTag(attrs, cfg, "mapstructure"); err != nil {
		return nil, exception.NewBatchError(module, fmt.Sprintf("failed to decode configuration of locale '%s'", locale), err, false, false)
	}
	cfg.LocaleID = locale
	cfg.SourceID = sourceID
	return cfg, nil
}

// overlay merges global flags, the default record and the locale record.
// It returns the merged attributes and the ID of the record that supplied
// the credentials. The token is only taken from that record: a token issued
// for another layer's appKey is never inherited.
func (r *Resolver) overlay(ctx context.Context, locale string) (map[string]interface{}, string, error) {
	merged := make(map[string]interface{})
	for _, name := range globalFlags {
		v, found, err := r.globalPref(ctx, name)
		if err != nil {
			return nil, "", err
		}
		if found && v != nil {
			merged[name] = v
		}
	}

	layers := []string{DefaultLocale}
	if locale != "" && locale != DefaultLocale {
		layers = append(layers, locale)
	}

	sourceID := ""
	appKeyFrom := ""
	tokenFrom := ""
	for _, id := range layers {
		attrs, found, err := r.store.Get(ctx, platform.ObjectTypeLocaleConfig, id)
		if err != nil {
			return nil, "", exception.NewBatchError(module, fmt.Sprintf("failed to load configuration record '%s'", id), err, false, true)
		}
		if !found {
			continue
		}
		sourceID = id
		for k, v := range normalize(attrs) {
			if v == nil {
				continue
			}
			merged[k] = v
			switch k {
			case AttrAppKey:
				appKeyFrom = id
			case AttrAuthToken:
				tokenFrom = id
			}
		}
	}
	if appKeyFrom != "" {
		sourceID = appKeyFrom
	}
	if tokenFrom != "" && tokenFrom != sourceID {
		delete(merged, AttrAuthToken)
	}
	return merged, sourceID, nil
}

// globalPref reads a site preference, trying the legacy name of renamed flags too.
func (r *Resolver) globalPref(ctx context.Context, name string) (interface{}, bool, error) {
	v, found, err := r.prefs.Preference(ctx, name)
	if err != nil {
		return nil, false, exception.NewBatchError(module, fmt.Sprintf("failed to read site preference '%s'", name), err, false, true)
	}
	if found {
		return v, true, nil
	}
	for legacy, canonical := range legacyAliases {
		if canonical != name {
			continue
		}
		v, found, err = r.prefs.Preference(ctx, legacy)
		if err != nil {
			return nil, false, exception.NewBatchError(module, fmt.Sprintf("failed to read site preference '%s'", legacy), err, false, true)
		}
		if found {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// CartridgeEnabled reports whether the integration is switched on.
// An unset preference counts as enabled.
func (r *Resolver) CartridgeEnabled(ctx context.Context) (bool, error) {
	v, found, err := r.prefs.Preference(ctx, CartridgeEnabledPref)
	if err != nil {
		return false, exception.NewBatchError(module, "failed to read cartridge switch", err, false, true)
	}
	if !found || v == nil {
		return true, nil
	}
	enabled, ok := AsBool(v)
	if !ok {
		logger.Warnf("Site preference '%s' has unexpected value %v; treating as enabled.", CartridgeEnabledPref, v)
		return true, nil
	}
	return enabled, nil
}

// GetPref returns the value of name for locale, or nil when the cartridge is
// switched off. The locale's resolved records are checked first, then the
// global preference of the same name.
func (r *Resolver) GetPref(ctx context.Context, name, locale string) (interface{}, error) {
	enabled, err := r.CartridgeEnabled(ctx)
	if err != nil || !enabled {
		return nil, err
	}
	attrs, _, err := r.overlay(ctx, locale)
	if err != nil {
		return nil, err
	}
	return r.lookup(ctx, attrs, name)
}

func (r *Resolver) lookup(ctx context.Context, attrs map[string]interface{}, name string) (interface{}, error) {
	if v, ok := attrs[CanonicalName(name)]; ok {
		return v, nil
	}
	v, found, err := r.globalPref(ctx, CanonicalName(name))
	if err != nil || !found {
		return nil, err
	}
	return v, nil
}

// Locales lists the IDs of every stored locale configuration, "default" included.
func (r *Resolver) Locales(ctx context.Context) ([]string, error) {
	objects, err := r.store.List(ctx, platform.ObjectTypeLocaleConfig)
	if err != nil {
		return nil, exception.NewBatchError(module, "failed to list locale configurations", err, false, true)
	}
	ids := make([]string, 0, len(objects))
	for _, o := range objects {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

// StoreToken writes token to the record identified by sourceID. Callers run
// it inside platform.Transactor.InTransaction.
func (r *Resolver) StoreToken(ctx context.Context, sourceID, token string) error {
	if sourceID == "" {
		sourceID = DefaultLocale
	}
	if err := r.store.Put(ctx, platform.ObjectTypeLocaleConfig, sourceID, map[string]interface{}{AttrAuthToken: token}); err != nil {
		return exception.NewBatchError(module, fmt.Sprintf("failed to store token on '%s'", sourceID), err, false, false)
	}
	return nil
}

// AsBool interprets preference values stored as bool, string or number.
func AsBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	case int:
		return b != 0, true
	case int64:
		return b != 0, true
	case float64:
		return b != 0, true
	default:
		return false, false
	}
}
