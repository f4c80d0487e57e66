package job_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/yotposync/internal/auth"
	"github.com/tigerroll/yotposync/internal/export"
	"github.com/tigerroll/yotposync/internal/job"
	"github.com/tigerroll/yotposync/internal/localeconfig"
	"github.com/tigerroll/yotposync/internal/platform"
	"github.com/tigerroll/yotposync/internal/platform/memory"
	"github.com/tigerroll/yotposync/internal/yotpo"
	"github.com/tigerroll/yotposync/pkg/batch/adapter/database/dummy"
	"github.com/tigerroll/yotposync/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	"github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	"github.com/tigerroll/yotposync/pkg/batch/infrastructure/repository/inmemory"
)

// fakeYotpo records what the jobs send.
type fakeYotpo struct {
	mu        sync.Mutex
	purchases map[string][]string // appKey -> order IDs
	tokens    map[string]string   // appKey -> utoken seen
	loyalty   map[string][]string // resource -> IDs
	metadata  []string            // appKeys
	rejected  map[string]bool     // appKeys answered with 400
	authCalls int
}

func newFakeYotpo(t *testing.T) (*fakeYotpo, *httptest.Server) {
	t.Helper()
	f := &fakeYotpo{
		purchases: make(map[string][]string),
		tokens:    make(map[string]string),
		loyalty:   make(map[string][]string),
		rejected:  make(map[string]bool),
	}
	r := chi.NewRouter()
	r.Post("/auth", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ClientID string `json:"client_id"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		f.mu.Lock()
		f.authCalls++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-" + body.ClientID})
	})
	r.Post("/apps/{appKey}/purchases/mass_create.json", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			UToken string                   `json:"utoken"`
			Orders []map[string]interface{} `json:"orders"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		appKey := chi.URLParam(req, "appKey")
		f.mu.Lock()
		if f.rejected[appKey] {
			f.mu.Unlock()
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, o := range body.Orders {
			f.purchases[appKey] = append(f.purchases[appKey], o["order_id"].(string))
		}
		f.tokens[appKey] = body.UToken
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"code":200}`))
	})
	r.Post("/apps/{appKey}/account_platform/update_metadata.json", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.metadata = append(f.metadata, chi.URLParam(req, "appKey"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"status":{"code":200}}`))
	})
	r.Post("/{guid}/{resource}/mass_create.json", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Orders    []map[string]interface{} `json:"orders"`
			Customers []map[string]interface{} `json:"customers"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		resource := chi.URLParam(req, "resource")
		f.mu.Lock()
		for _, o := range body.Orders {
			f.loyalty[resource] = append(f.loyalty[resource], o["order_id"].(string))
		}
		for _, c := range body.Customers {
			f.loyalty[resource] = append(f.loyalty[resource], c["id"].(string))
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

type harness struct {
	store    *memory.Store
	fake     *fakeYotpo
	cfg      *config.Config
	cursors  *job.CursorStore
	launcher *usecase.SimpleJobLauncher
}

func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	t.Helper()
	fake, srv := newFakeYotpo(t)

	cfg := config.NewConfig()
	cfg.Sync.Yotpo.APIBaseURL = srv.URL
	cfg.Sync.Yotpo.LoyaltyBaseURL = srv.URL
	cfg.Sync.Yotpo.RetryIntervalMillis = 0
	cfg.Sync.Batch.ChunkSize = 10
	if mutate != nil {
		mutate(cfg)
	}

	store := memory.NewStore()
	clients := yotpo.NewClients(cfg)
	m := export.NewModel(cfg, clients.Reviews, clients.Loyalty, auth.NewClient(cfg), store, nil, nil)
	repo := inmemory.NewInMemoryJobRepository()
	d := job.Deps{
		Config:     cfg,
		Platform:   store,
		Resolver:   localeconfig.NewResolver(store, store),
		Cursors:    job.NewConfiguredCursorStore(cfg, store),
		Model:      m,
		Repository: repo,
		TxManager:  dummy.NewTransactionManager(),
	}
	launcher := usecase.NewSimpleJobLauncher(repo,
		job.NewOrderExportJob(d),
		job.NewLoyaltyOrderBackfillJob(d),
		job.NewLoyaltyCustomerBackfillJob(d),
	)
	return &harness{store: store, fake: fake, cfg: cfg, cursors: d.Cursors, launcher: launcher}
}

func (h *harness) putLocale(t *testing.T, id string, attrs map[string]interface{}) {
	t.Helper()
	require.NoError(t, h.store.Put(context.Background(), platform.ObjectTypeLocaleConfig, id, attrs))
}

func (h *harness) launch(t *testing.T, name string, runStart time.Time) (*model.JobExecution, error) {
	t.Helper()
	je, err := h.launcher.Launch(context.Background(), name, model.JobParameters{job.RunStartParam: runStart.Format(time.RFC3339)})
	require.NotNil(t, je)
	return je, err
}

var (
	lastRun  = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	runStart = time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)
)

func order(id, locale, email string) platform.Order {
	return platform.Order{
		ID:            id,
		Locale:        locale,
		CustomerEmail: email,
		CustomerName:  "Jane Doe",
		CurrencyCode:  "usd",
		Total:         decimal.RequireFromString("19.99"),
		CreatedAt:     lastRun.Add(time.Hour),
		LineItems: []platform.LineItem{
			{ProductID: "sku-" + id, Name: "Widget", Quantity: 1, Price: decimal.RequireFromString("19.99")},
		},
	}
}

// seedOrderExport stores six default-locale orders (one without email) and
// four en_US orders, and a cursor that makes both locales eligible.
func seedOrderExport(t *testing.T, h *harness) {
	t.Helper()
	h.putLocale(t, localeconfig.DefaultLocale, map[string]interface{}{
		"appKey": "app-default", "clientSecretKey": "secret", "purchaseFeedEnabled": true,
	})
	h.putLocale(t, "en_US", map[string]interface{}{
		"appKey": "app-us", "clientSecretKey": "secret-us",
	})
	for i, id := range []string{"1", "2", "3", "4", "5", "6"} {
		email := "buyer" + id + "@example.com"
		if i == 2 {
			email = ""
		}
		h.store.AddOrders(order(id, "", email))
	}
	for _, id := range []string{"7", "8", "9", "10"} {
		h.store.AddOrders(order(id, "en_US", "buyer"+id+"@example.com"))
	}
	ts := lastRun
	require.NoError(t, h.cursors.Save(context.Background(), job.TypeOrderExport, job.JobCursor{LastExecutionTimestamp: &ts}))
}

func TestOrderExportJob_ThresholdExceeded(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Sync.Yotpo.ErrorThresholdPercent = 3 })
	seedOrderExport(t, h)

	je, err := h.launch(t, job.JobOrderExport, runStart)
	require.Error(t, err)
	assert.ErrorIs(t, err, job.ErrThresholdExceeded)
	assert.Equal(t, model.BatchStatusFailed, je.Status)

	msg, ok := je.DisplayError()
	require.True(t, ok)
	assert.Contains(t, msg, "threshold")
	assert.Contains(t, msg, "not exported: 3")

	// Sibling locales were still sent; only the invalid record was dropped.
	assert.ElementsMatch(t, []string{"1", "2", "4", "5", "6"}, h.fake.purchases["app-default"])
	assert.ElementsMatch(t, []string{"7", "8", "9", "10"}, h.fake.purchases["app-us"])

	// The chunk checkpoint committed, the run timestamp did not move.
	cursor, err := h.cursors.Load(context.Background(), job.TypeOrderExport)
	require.NoError(t, err)
	assert.Equal(t, "10", cursor.LastProcessedID)
	require.NotNil(t, cursor.LastExecutionTimestamp)
	assert.True(t, lastRun.Equal(*cursor.LastExecutionTimestamp))
}

func TestOrderExportJob_RejectedLocaleBatchIsSkipped(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Sync.Yotpo.ErrorThresholdPercent = 3 })
	seedOrderExport(t, h)
	h.fake.rejected["app-us"] = true

	je, err := h.launch(t, job.JobOrderExport, runStart)
	require.Error(t, err)
	assert.ErrorIs(t, err, job.ErrThresholdExceeded)

	msg, ok := je.DisplayError()
	require.True(t, ok)
	assert.Contains(t, msg, "5 of 10 record(s) failed")
	assert.Contains(t, msg, "not exported: 3, 7, 8, 9, 10")
	assert.Empty(t, h.fake.purchases["app-us"])

	// The rejected orders are not retried: the checkpoint moved past them.
	cursor, err := h.cursors.Load(context.Background(), job.TypeOrderExport)
	require.NoError(t, err)
	assert.Equal(t, "10", cursor.LastProcessedID)
	assert.True(t, lastRun.Equal(*cursor.LastExecutionTimestamp))
}

func TestOrderExportJob_WithinThreshold(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Sync.Yotpo.ErrorThresholdPercent = 50 })
	seedOrderExport(t, h)

	je, err := h.launch(t, job.JobOrderExport, runStart)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	_, flagged := je.DisplayError()
	assert.False(t, flagged)

	assert.Len(t, h.fake.purchases["app-default"], 5)
	assert.Len(t, h.fake.purchases["app-us"], 4)
	assert.Equal(t, "tok-app-default", h.fake.tokens["app-default"])
	assert.Equal(t, "tok-app-us", h.fake.tokens["app-us"])

	cursor, err := h.cursors.Load(context.Background(), job.TypeOrderExport)
	require.NoError(t, err)
	assert.Equal(t, "10", cursor.LastProcessedID)
	require.NotNil(t, cursor.LastExecutionTimestamp)
	assert.True(t, runStart.Equal(*cursor.LastExecutionTimestamp))

	step := je.StepExecutions[len(je.StepExecutions)-1]
	skipped, _ := step.ExecutionContext.GetInt("skippedCount")
	assert.Equal(t, 1, skipped)
}

func TestOrderExportJob_SendsConfigMetadataFirst(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Sync.Yotpo.ErrorThresholdPercent = 50
		cfg.Sync.Yotpo.ExportConfigMetadata = true
	})
	seedOrderExport(t, h)

	je, err := h.launch(t, job.JobOrderExport, runStart)
	require.NoError(t, err)
	require.Len(t, je.StepExecutions, 2)
	assert.Equal(t, "configMetadataStep", je.StepExecutions[0].StepName)
	assert.ElementsMatch(t, []string{"app-default", "app-us"}, h.fake.metadata)
}

func TestOrderExportJob_NoEligibleLocale(t *testing.T) {
	h := newHarness(t, nil)
	h.putLocale(t, localeconfig.DefaultLocale, map[string]interface{}{
		"appKey": "app-default", "clientSecretKey": "secret", "purchaseFeedEnabled": true,
	})
	h.store.AddOrders(order("1", "", "a@example.com"))
	// No cursor and no initial timestamp: no locale qualifies.

	je, err := h.launch(t, job.JobOrderExport, runStart)
	require.Error(t, err)
	assert.ErrorIs(t, err, export.ErrNoEnabledConfiguration)
	_, flagged := je.DisplayError()
	assert.True(t, flagged)
	assert.Empty(t, h.fake.purchases)
}

func TestOrderExportJob_FreshInstallUsesInitialTimestamp(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Sync.Yotpo.OrderExportInitialTimestamp = lastRun.Format(time.RFC3339)
	})
	h.putLocale(t, localeconfig.DefaultLocale, map[string]interface{}{
		"appKey": "app-default", "clientSecretKey": "secret", "purchaseFeedEnabled": true,
	})
	h.store.AddOrders(order("1", "", "a@example.com"))

	je, err := h.launch(t, job.JobOrderExport, runStart)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, []string{"1"}, h.fake.purchases["app-default"])

	// The stored run timestamp replaces the configured one.
	cursor, err := h.cursors.Load(context.Background(), job.TypeOrderExport)
	require.NoError(t, err)
	require.NotNil(t, cursor.LastExecutionTimestamp)
	assert.True(t, runStart.Equal(*cursor.LastExecutionTimestamp))
}

func TestOrderExportJob_CartridgeDisabled(t *testing.T) {
	h := newHarness(t, nil)
	seedOrderExport(t, h)
	h.store.SetPreference(localeconfig.CartridgeEnabledPref, false)

	_, err := h.launch(t, job.JobOrderExport, runStart)
	require.Error(t, err)
	assert.ErrorIs(t, err, job.ErrFeatureDisabled)
	assert.Zero(t, h.fake.authCalls)
}

func seedLoyalty(t *testing.T, h *harness) {
	t.Helper()
	h.putLocale(t, localeconfig.DefaultLocale, map[string]interface{}{
		"loyaltyEnabled":             true,
		"loyaltyOrderFeedEnabled":    true,
		"loyaltyCustomerFeedEnabled": true,
		"loyaltyApiKey":              "lkey",
		"loyaltyGuid":                "lguid",
	})
}

func TestLoyaltyOrderBackfill_ResumesAfterCursor(t *testing.T) {
	h := newHarness(t, nil)
	seedLoyalty(t, h)
	for _, id := range []string{"99", "100", "101", "102"} {
		h.store.AddOrders(order(id, "", "buyer"+id+"@example.com"))
	}
	require.NoError(t, h.cursors.Save(context.Background(), job.TypeLoyaltyOrderBackfill, job.JobCursor{LastProcessedID: "100"}))

	je, err := h.launch(t, job.JobLoyaltyOrderBackfill, runStart)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, []string{"101", "102"}, h.fake.loyalty[yotpo.LoyaltyOrders])

	cursor, err := h.cursors.Load(context.Background(), job.TypeLoyaltyOrderBackfill)
	require.NoError(t, err)
	assert.Equal(t, "102", cursor.LastProcessedID)
	assert.True(t, cursor.CompletionFlag)

	for _, o := range h.store.Orders() {
		exported := o.ID == "101" || o.ID == "102"
		assert.Equal(t, exported, o.Extension.LoyaltyExported, "order %s", o.ID)
	}
}

func TestLoyaltyOrderBackfill_CompletedRunsOnce(t *testing.T) {
	h := newHarness(t, nil)
	seedLoyalty(t, h)
	h.store.AddOrders(order("1", "", "a@example.com"))

	_, err := h.launch(t, job.JobLoyaltyOrderBackfill, runStart)
	require.NoError(t, err)
	require.Len(t, h.fake.loyalty[yotpo.LoyaltyOrders], 1)

	h.store.AddOrders(order("2", "", "b@example.com"))
	je, err := h.launch(t, job.JobLoyaltyOrderBackfill, runStart.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Len(t, h.fake.loyalty[yotpo.LoyaltyOrders], 1)
}

func TestLoyaltyCustomerBackfill(t *testing.T) {
	h := newHarness(t, nil)
	seedLoyalty(t, h)
	h.store.AddCustomers(
		platform.Customer{ID: "c1", Email: "c1@example.com", FirstName: "Ann", CreatedAt: lastRun},
		platform.Customer{ID: "c2", Email: "not-an-email", CreatedAt: lastRun},
		platform.Customer{ID: "c3", Email: "c3@example.com", FirstName: "Bo", CreatedAt: lastRun},
	)

	je, err := h.launch(t, job.JobLoyaltyCustomerBackfill, runStart)
	// One of three customers is invalid; 33% is above the default threshold.
	require.Error(t, err)
	assert.ErrorIs(t, err, job.ErrThresholdExceeded)
	assert.ElementsMatch(t, []string{"c1", "c3"}, h.fake.loyalty[yotpo.LoyaltyCustomers])

	cursor, loadErr := h.cursors.Load(context.Background(), job.TypeLoyaltyCustomerBackfill)
	require.NoError(t, loadErr)
	assert.False(t, cursor.CompletionFlag)
	msg, _ := je.DisplayError()
	assert.True(t, strings.Contains(msg, "threshold"))
}

func TestLoyaltyBackfill_FeedDisabled(t *testing.T) {
	h := newHarness(t, nil)
	h.putLocale(t, localeconfig.DefaultLocale, map[string]interface{}{
		"loyaltyEnabled": true, "loyaltyApiKey": "lkey", "loyaltyGuid": "lguid",
	})
	h.store.AddOrders(order("1", "", "a@example.com"))

	_, err := h.launch(t, job.JobLoyaltyOrderBackfill, runStart)
	require.Error(t, err)
	assert.ErrorIs(t, err, job.ErrFeatureDisabled)
}

func TestLauncherRegistersJobs(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, []string{job.JobLoyaltyCustomerBackfill, job.JobLoyaltyOrderBackfill, job.JobOrderExport}, h.launcher.JobNames())
}
