package job_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/yotposync/internal/auth"
	"github.com/tigerroll/yotposync/internal/export"
	"github.com/tigerroll/yotposync/internal/job"
	"github.com/tigerroll/yotposync/internal/localeconfig"
	"github.com/tigerroll/yotposync/internal/platform"
	"github.com/tigerroll/yotposync/internal/platform/memory"
	"github.com/tigerroll/yotposync/internal/yotpo"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
)

func TestExportWriter_FailedLocaleDoesNotStopSiblings(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	r := chi.NewRouter()
	r.Post("/apps/{appKey}/purchases/mass_create.json", func(w http.ResponseWriter, req *http.Request) {
		appKey := chi.URLParam(req, "appKey")
		mu.Lock()
		hits[appKey]++
		mu.Unlock()
		if appKey == "app-us" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"code":200}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.Sync.Yotpo.APIBaseURL = srv.URL
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, platform.ObjectTypeLocaleConfig, localeconfig.DefaultLocale, map[string]interface{}{
		"appKey": "app-default", "clientSecretKey": "s", "authToken": "tok-d",
	}))
	require.NoError(t, store.Put(ctx, platform.ObjectTypeLocaleConfig, "en_US", map[string]interface{}{
		"appKey": "app-us", "clientSecretKey": "s", "authToken": "tok-u",
	}))

	resolver := localeconfig.NewResolver(store, store)
	clients := yotpo.NewClients(cfg)
	m := export.NewModel(cfg, clients.Reviews, clients.Loyalty, auth.NewClient(cfg), store, nil, nil)
	session := resolver.NewSession()
	rc := &job.RunContext{
		Type:      job.TypeOrderExport,
		Session:   session,
		Ledger:    &job.ErrorLedger{},
		Configs:   map[string]*localeconfig.LocaleConfiguration{},
		Envelopes: map[string]*export.Envelope{},
	}
	for _, locale := range []string{localeconfig.DefaultLocale, "en_US"} {
		c, err := session.Resolve(ctx, locale)
		require.NoError(t, err)
		rc.Configs[locale] = c
		rc.Envelopes[locale] = m.NewEnvelope(c.AuthToken)
	}

	w := job.NewExportWriter(rc, m, export.FeedPurchase, nil)
	err := w.Write(ctx, nil, []export.Record{
		{ID: "1", Locale: "en_US", Payload: map[string]string{"order_id": "1"}},
		{ID: "2", Locale: localeconfig.DefaultLocale, Payload: map[string]string{"order_id": "2"}},
		{ID: "3", Locale: "en_US", Payload: map[string]string{"order_id": "3"}},
		{ID: "4", Locale: "fr_FR", Payload: map[string]string{"order_id": "4"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, hits["app-default"])
	assert.Equal(t, 1, hits["app-us"])
	assert.Equal(t, []string{"1", "3"}, rc.Ledger.SkippedIDs())
}

func TestExportWriter_CancelledContextFailsChunk(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Sync.Yotpo.APIBaseURL = "http://127.0.0.1:1"
	store := memory.NewStore()
	require.NoError(t, store.Put(context.Background(), platform.ObjectTypeLocaleConfig, localeconfig.DefaultLocale, map[string]interface{}{
		"appKey": "app", "clientSecretKey": "s", "authToken": "tok",
	}))
	resolver := localeconfig.NewResolver(store, store)
	clients := yotpo.NewClients(cfg)
	m := export.NewModel(cfg, clients.Reviews, clients.Loyalty, auth.NewClient(cfg), store, nil, nil)
	session := resolver.NewSession()
	c, err := session.Resolve(context.Background(), localeconfig.DefaultLocale)
	require.NoError(t, err)
	rc := &job.RunContext{
		Type:      job.TypeOrderExport,
		Session:   session,
		Ledger:    &job.ErrorLedger{},
		Configs:   map[string]*localeconfig.LocaleConfiguration{localeconfig.DefaultLocale: c},
		Envelopes: map[string]*export.Envelope{localeconfig.DefaultLocale: m.NewEnvelope("tok")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = job.NewExportWriter(rc, m, export.FeedPurchase, nil).Write(ctx, nil, []export.Record{
		{ID: "1", Locale: localeconfig.DefaultLocale, Payload: map[string]string{"order_id": "1"}},
	})
	assert.Error(t, err)
}
