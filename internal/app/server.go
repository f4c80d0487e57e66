package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	"github.com/tigerroll/yotposync/pkg/batch/infrastructure/metrics"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter serves /metrics from the recorder's registry and /healthz from db.
func NewRouter(recorder *metrics.PrometheusRecorder, db Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(recorder.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		status, body := http.StatusOK, map[string]string{"status": "ok"}
		if err := db.Ping(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
	return r
}

func startServer(lc fx.Lifecycle, cfg *config.Config, recorder *metrics.PrometheusRecorder, conns *Connections) {
	addr := cfg.Sync.Metrics.ListenAddress
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(recorder, conns.Platform),
		ReadHeaderTimeout: 5 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Infof("Serving /metrics and /healthz on %s", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Metrics server failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}
