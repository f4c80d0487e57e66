// Package export dispatches locale batches to Yotpo with token refresh,
// bounded transient retries and outcome classification.
package export

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tigerroll/yotposync/internal/auth"
	"github.com/tigerroll/yotposync/internal/localeconfig"
	"github.com/tigerroll/yotposync/internal/platform"
	"github.com/tigerroll/yotposync/internal/yotpo"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	metrics "github.com/tigerroll/yotposync/pkg/batch/core/metrics"
	"github.com/tigerroll/yotposync/pkg/batch/engine/step/retry"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

const module = "export"

// Sender performs one dispatch. *yotpo.Client implements it.
type Sender interface {
	Send(ctx context.Context, endpoint string, payload interface{}, query url.Values) (bool, error)
}

// Authenticator exchanges credentials for a token. *auth.Client implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, appKey, clientSecret string) (auth.AuthResult, error)
}

// Model sends export batches. It keeps no per-run state; retry state travels
// with each SendBatch call and configuration through the caller's Session.
type Model struct {
	reviews       Sender
	loyalty       Sender
	authenticator Authenticator
	transactor    platform.Transactor
	policy        retry.RetryPolicy
	retryInterval time.Duration
	platformName  string
	pluginVersion string
	recorder      metrics.ExportRecorder
	tracer        metrics.Tracer
}

// NewModel creates a Model. Transient retries are bounded by
// yotpo.max_timeouts through a retry.RetryPolicy.
func NewModel(
	cfg *config.Config,
	reviews, loyalty Sender,
	authenticator Authenticator,
	transactor platform.Transactor,
	recorder metrics.ExportRecorder,
	tracer metrics.Tracer,
) *Model {
	y := cfg.Sync.Yotpo
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	interval := time.Duration(y.RetryIntervalMillis) * time.Millisecond
	return &Model{
		reviews:       reviews,
		loyalty:       loyalty,
		authenticator: authenticator,
		transactor:    transactor,
		policy:        retry.NewDefaultRetryPolicyFactory().Create(y.MaxTimeouts, interval, nil),
		retryInterval: interval,
		platformName:  y.Platform,
		pluginVersion: y.PluginVersion,
		recorder:      recorder,
		tracer:        tracer,
	}
}

// retryState is threaded through sendBatch.
type retryState struct {
	attempts       int
	transient      int
	refreshAllowed bool
	authErrorSeen  bool
}

// SendBatch dispatches batch until a terminal outcome.
//
// 401 triggers at most one token refresh when allowTokenRefresh is set and
// the feed supports it. Transient failures are retried while the policy
// allows. It reports whether an authentication error occurred along the way.
func (m *Model) SendBatch(ctx context.Context, session *localeconfig.Session, batch *ExportBatch, allowTokenRefresh bool) (bool, error) {
	ctx, end := m.tracer.StartSpan(ctx, "export.SendBatch", map[string]interface{}{
		"feed":    string(batch.Feed),
		"locale":  batch.Locale,
		"records": len(batch.RecordIDs),
	})
	defer end()

	start := time.Now()
	authErr, err := m.sendBatch(ctx, session, batch, retryState{
		refreshAllowed: allowTokenRefresh && batch.Feed.Refreshable(),
	})
	m.recorder.RecordDuration(ctx, "send_batch", time.Since(start), map[string]string{"feed": string(batch.Feed)})
	if err != nil {
		m.tracer.RecordError(ctx, module, err)
	}
	return authErr, err
}

func (m *Model) sendBatch(ctx context.Context, session *localeconfig.Session, batch *ExportBatch, state retryState) (bool, error) {
	feed := string(batch.Feed)
	state.attempts++
	m.recorder.RecordExportAttempt(ctx, feed, batch.Locale)

	ok, sendErr := m.sender(batch.Feed).Send(ctx, batch.Endpoint, batch.Payload, batch.Query)
	outcome := Classify(ok, sendErr)
	logger.Debugf("Export %s/%s attempt %d: %s", feed, batch.Locale, state.attempts, outcome)

	switch outcome {
	case OutcomeSuccess:
		m.recorder.RecordExportOutcome(ctx, feed, outcome.String())
		return state.authErrorSeen, nil

	case OutcomeTransientServiceError:
		state.transient++
		if !m.policy.CanRetry(state.transient) {
			m.recorder.RecordExportOutcome(ctx, feed, outcome.String())
			return state.authErrorSeen, exception.NewBatchError(module,
				fmt.Sprintf("%s export for locale '%s' failed after %d attempts", feed, batch.Locale, state.attempts),
				errors.Join(ErrRetryExhausted, sendErr), false, false)
		}
		logger.Warnf("Transient failure exporting %s for locale '%s' (%d/%d): %v",
			feed, batch.Locale, state.transient, m.policy.GetMaxAttempts(), sendErr)
		m.recorder.RecordExportRetry(ctx, feed, "transient")
		if err := m.wait(ctx, state.transient); err != nil {
			return state.authErrorSeen, exception.NewBatchError(module, "export retry interrupted", err, false, false)
		}
		return m.sendBatch(ctx, session, batch, state)

	case OutcomeAuthenticationError:
		state.authErrorSeen = true
		if !state.refreshAllowed {
			m.recorder.RecordExportOutcome(ctx, feed, outcome.String())
			return true, exception.NewBatchError(module,
				fmt.Sprintf("%s export for locale '%s' is not authorized", feed, batch.Locale),
				errors.Join(ErrRepeatedAuthorization, sendErr), false, false)
		}
		token, err := m.refreshToken(ctx, session, batch.Locale)
		if err != nil {
			return true, err
		}
		if token == "" {
			m.recorder.RecordExportOutcome(ctx, feed, outcome.String())
			return true, exception.NewBatchError(module,
				fmt.Sprintf("token refresh for locale '%s' yielded no token", batch.Locale),
				errors.Join(ErrRepeatedAuthorization, sendErr), false, false)
		}
		batch.SetToken(token)
		state.refreshAllowed = false
		m.recorder.RecordExportRetry(ctx, feed, "auth")
		return m.sendBatch(ctx, session, batch, state)

	default:
		m.recorder.RecordExportOutcome(ctx, feed, outcome.String())
		cause := ErrUnknownResponse
		if sendErr != nil {
			cause = errors.Join(ErrUnknownResponse, sendErr)
		}
		return state.authErrorSeen, exception.NewBatchError(module,
			fmt.Sprintf("%s export for locale '%s' got an unexpected response", feed, batch.Locale),
			cause, false, false)
	}
}

func (m *Model) sender(feed Feed) Sender {
	if feed == FeedLoyaltyOrders || feed == FeedLoyaltyCustomers {
		return m.loyalty
	}
	return m.reviews
}

func (m *Model) wait(ctx context.Context, attempt int) error {
	d := m.policy.GetBackoffInterval(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// refreshToken authenticates locale afresh and persists the token on the
// record that supplied the credentials. An empty token with a nil error
// means authentication was refused.
func (m *Model) refreshToken(ctx context.Context, session *localeconfig.Session, locale string) (string, error) {
	session.Invalidate(locale)
	cfg, err := session.Resolve(ctx, locale)
	if err != nil {
		return "", err
	}
	token, err := m.fetchToken(ctx, session, cfg)
	if err != nil || token == "" {
		return "", err
	}
	m.recorder.RecordTokenRefresh(ctx, locale)
	logger.Infof("Refreshed token for locale '%s'.", locale)
	return token, nil
}

// fetchToken authenticates cfg and stores the token inside a platform transaction.
func (m *Model) fetchToken(ctx context.Context, session *localeconfig.Session, cfg *localeconfig.LocaleConfiguration) (string, error) {
	res, err := m.authenticator.Authenticate(ctx, cfg.AppKey, cfg.ClientSecretKey)
	if err != nil {
		return "", exception.NewBatchError(module, fmt.Sprintf("authentication for locale '%s' failed", cfg.LocaleID), err, false, exception.IsTemporary(err))
	}
	if res.ErrorResult || res.Token == "" {
		logger.Errorf("Authentication for locale '%s' was refused.", cfg.LocaleID)
		return "", nil
	}

	err = m.transactor.InTransaction(ctx, func(ctx context.Context) error {
		return session.Resolver().StoreToken(ctx, cfg.SourceID, res.Token)
	})
	if err != nil {
		return "", exception.NewBatchError(module, fmt.Sprintf("failed to persist token for locale '%s'", cfg.LocaleID), err, false, false)
	}
	session.Invalidate(cfg.LocaleID, cfg.SourceID)
	return res.Token, nil
}

// EnsureToken returns the cached token of locale, fetching and persisting
// one when none is stored. An empty token means authentication was refused.
func (m *Model) EnsureToken(ctx context.Context, session *localeconfig.Session, locale string) (string, error) {
	cfg, err := session.Resolve(ctx, locale)
	if err != nil {
		return "", err
	}
	if cfg.AuthToken != "" {
		return cfg.AuthToken, nil
	}
	return m.fetchToken(ctx, session, cfg)
}

// PrepareBatchRequest builds an empty purchase envelope per locale, each
// carrying a valid token. Locales whose token cannot be obtained are logged
// and left out.
func (m *Model) PrepareBatchRequest(ctx context.Context, session *localeconfig.Session, locales []string) (map[string]*Envelope, error) {
	envelopes := make(map[string]*Envelope, len(locales))
	for _, locale := range locales {
		token, err := m.EnsureToken(ctx, session, locale)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Errorf("Skipping locale '%s': %v", locale, err)
			continue
		}
		if token == "" {
			logger.Errorf("Skipping locale '%s': no token could be obtained.", locale)
			continue
		}
		envelopes[locale] = m.NewEnvelope(token)
	}
	return envelopes, nil
}

// NewEnvelope returns an empty purchase envelope carrying token.
func (m *Model) NewEnvelope(token string) *Envelope {
	return &Envelope{
		ValidateData:  true,
		Platform:      m.platformName,
		PluginVersion: m.pluginVersion,
		UToken:        token,
		Orders:        []interface{}{},
	}
}

// EligibleLocales resolves each locale and keeps those accepted by eligible.
// Zero eligible locales is a fatal *NoEnabledConfigurationError.
func EligibleLocales(ctx context.Context, session *localeconfig.Session, locales []string, eligible func(*localeconfig.LocaleConfiguration) bool) ([]string, error) {
	var out []string
	skipped := 0
	for _, locale := range locales {
		cfg, err := session.Resolve(ctx, locale)
		if err != nil {
			return nil, err
		}
		if !eligible(cfg) {
			logger.Infof("Locale '%s' is not eligible for export; skipping.", locale)
			skipped++
			continue
		}
		out = append(out, locale)
	}
	if len(out) == 0 {
		return nil, exception.NewBatchError(module, "no locale is enabled for export",
			&NoEnabledConfigurationError{Skipped: skipped}, false, false)
	}
	return out, nil
}

// SendConfigData posts the feature flags of locale to the metadata endpoint.
func (m *Model) SendConfigData(ctx context.Context, session *localeconfig.Session, locale string) (bool, error) {
	cfg, err := session.Resolve(ctx, locale)
	if err != nil {
		return false, err
	}
	if cfg.AppKey == "" {
		return false, exception.NewBatchError(module, fmt.Sprintf("locale '%s' has no app key", locale), ErrNoEnabledConfiguration, false, false)
	}
	token, err := m.EnsureToken(ctx, session, locale)
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, exception.NewBatchError(module, fmt.Sprintf("no token for locale '%s'", locale), ErrRepeatedAuthorization, false, false)
	}

	batch := &ExportBatch{
		Locale:    locale,
		Feed:      FeedConfigMetadata,
		Endpoint:  yotpo.ConfigMetadataEndpoint(cfg.AppKey),
		AuthToken: token,
		Payload: &MetadataRequest{
			UToken:        token,
			Platform:      m.platformName,
			PluginVersion: m.pluginVersion,
			Metadata: map[string]interface{}{
				localeconfig.AttrRatingsEnabled:             cfg.RatingsEnabled,
				localeconfig.AttrReviewsEnabled:             cfg.ReviewsEnabled,
				localeconfig.AttrPurchaseFeedEnabled:        cfg.PurchaseFeedEnabled,
				localeconfig.AttrLoyaltyEnabled:             cfg.LoyaltyEnabled,
				localeconfig.AttrLoyaltyOrderFeedEnabled:    cfg.LoyaltyOrderFeedEnabled,
				localeconfig.AttrLoyaltyCustomerFeedEnabled: cfg.LoyaltyCustomerFeedEnabled,
			},
		},
	}
	return m.SendBatch(ctx, session, batch, true)
}

// PurchaseBatch builds the purchase feed request of locale.
func PurchaseBatch(locale, appKey string, envelope *Envelope, recordIDs []string) *ExportBatch {
	return &ExportBatch{
		Locale:    locale,
		Feed:      FeedPurchase,
		Endpoint:  yotpo.PurchaseFeedEndpoint(appKey),
		AuthToken: envelope.UToken,
		Payload:   envelope,
		RecordIDs: recordIDs,
	}
}

// LoyaltyBatch builds a loyalty mass upload of records for cfg.
func LoyaltyBatch(cfg *localeconfig.LocaleConfiguration, feed Feed, records []Record) *ExportBatch {
	body := &LoyaltyBody{}
	resource := yotpo.LoyaltyOrders
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
		if feed == FeedLoyaltyCustomers {
			body.Customers = append(body.Customers, r.Payload)
		} else {
			body.Orders = append(body.Orders, r.Payload)
		}
	}
	if feed == FeedLoyaltyCustomers {
		resource = yotpo.LoyaltyCustomers
	}
	return &ExportBatch{
		Locale:    cfg.LocaleID,
		Feed:      feed,
		Endpoint:  yotpo.LoyaltyMassCreateEndpoint(cfg.LoyaltyGUID, resource),
		Query:     yotpo.LoyaltyQuery(cfg.LoyaltyAPIKey, cfg.LoyaltyGUID),
		Payload:   body,
		RecordIDs: ids,
	}
}
