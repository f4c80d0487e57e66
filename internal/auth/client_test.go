package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/yotposync/internal/auth"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
)

func newAuthServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *config.Config) {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/auth", handler)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.Sync.Yotpo.APIBaseURL = srv.URL
	return srv, cfg
}

func TestAuthenticate_Success(t *testing.T) {
	var got map[string]string
	_, cfg := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"access_token":"tok123","token_type":"bearer"}`))
	})

	res, err := auth.NewClient(cfg).Authenticate(context.Background(), "app", "secret")
	require.NoError(t, err)
	assert.False(t, res.ErrorResult)
	assert.Equal(t, "tok123", res.Token)
	assert.Equal(t, map[string]string{
		"client_id":     "app",
		"client_secret": "secret",
		"grant_type":    "client_credentials",
	}, got)
}

func TestAuthenticate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		appKey  string
		secret  string
		reached bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{}`, appKey: "a", secret: "s", reached: true},
		{name: "missing token", status: http.StatusOK, body: `{"token_type":"bearer"}`, appKey: "a", secret: "s", reached: true},
		{name: "malformed body", status: http.StatusOK, body: `not json`, appKey: "a", secret: "s", reached: true},
		{name: "empty key", appKey: "", secret: "s"},
		{name: "empty secret", appKey: "a", secret: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			_, cfg := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := auth.NewClient(cfg).Authenticate(context.Background(), tt.appKey, tt.secret)
			require.NoError(t, err)
			assert.True(t, res.ErrorResult)
			assert.Empty(t, res.Token)
			assert.Equal(t, tt.reached, called)
		})
	}
}

func TestAuthenticate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/auth"
	srv.Close()

	res, err := auth.NewClientWithHTTP(url, http.DefaultClient).Authenticate(context.Background(), "a", "s")
	require.Error(t, err)
	assert.True(t, res.ErrorResult)
}

func TestAuthenticate_CustomPath(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"custom"}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.Sync.Yotpo.APIBaseURL = srv.URL + "/"
	cfg.Sync.Yotpo.AuthPath = "oauth/token"

	res, err := auth.NewClient(cfg).Authenticate(context.Background(), "a", "s")
	require.NoError(t, err)
	assert.Equal(t, "custom", res.Token)
}
