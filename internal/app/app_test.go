package app_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/tigerroll/yotposync/internal/app"
	"github.com/tigerroll/yotposync/internal/job"
	"github.com/tigerroll/yotposync/internal/platform"
	gormadapter "github.com/tigerroll/yotposync/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/yotposync/pkg/batch/adapter/database/gorm/sqlite"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	"github.com/tigerroll/yotposync/pkg/batch/core/support/incrementer"
	"github.com/tigerroll/yotposync/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/yotposync/pkg/batch/infrastructure/repository/inmemory"
	sqlrepo "github.com/tigerroll/yotposync/pkg/batch/infrastructure/repository/sql"
)

type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	args := m.Called(ctx, jobName, params)
	execution, _ := args.Get(0).(*model.JobExecution)
	return execution, args.Error(1)
}

type pinger struct{ err error }

func (p pinger) Ping(ctx context.Context) error { return p.err }

func newRunner(launcher *mockLauncher, repo *inmemory.InMemoryJobRepository) *app.Runner {
	return app.NewRunner(app.RunnerParams{
		Launcher:   launcher,
		Repository: repo,
		Incrementers: []incrementer.JobParametersIncrementer{
			incrementer.NewRunIDIncrementer(incrementer.DefaultRunIDKey),
			incrementer.NewTimestampIncrementer(job.RunStartParam),
		},
	})
}

func TestRunner_FirstLaunchStartsRunIDAtOne(t *testing.T) {
	launcher := &mockLauncher{}
	launcher.On("Launch", mock.Anything, job.JobOrderExport, mock.MatchedBy(func(p model.JobParameters) bool {
		_, stamped := p[job.RunStartParam].(string)
		return p[incrementer.DefaultRunIDKey] == 1 && stamped
	})).Return(model.NewJobExecution(job.JobOrderExport, nil), nil).Once()

	_, err := newRunner(launcher, inmemory.NewInMemoryJobRepository()).Run(context.Background(), job.JobOrderExport)
	require.NoError(t, err)
	launcher.AssertExpectations(t)
}

func TestRunner_NextParametersContinuesPreviousRun(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	previous := model.NewJobExecution(job.JobLoyaltyOrderBackfill, model.JobParameters{incrementer.DefaultRunIDKey: 3})
	require.NoError(t, repo.SaveJobExecution(ctx, previous))

	params := newRunner(&mockLauncher{}, repo).NextParameters(ctx, job.JobLoyaltyOrderBackfill)
	assert.Equal(t, 4, params[incrementer.DefaultRunIDKey])
	assert.NotEmpty(t, params[job.RunStartParam])
}

func TestRunner_LaunchErrorIsReturned(t *testing.T) {
	launcher := &mockLauncher{}
	launcher.On("Launch", mock.Anything, "unknownJob", mock.Anything).Return(nil, assert.AnError)

	execution, err := newRunner(launcher, inmemory.NewInMemoryJobRepository()).Run(context.Background(), "unknownJob")
	assert.Nil(t, execution)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRouter_Metrics(t *testing.T) {
	recorder := metrics.NewPrometheusRecorder()
	recorder.RecordExportAttempt(context.Background(), "purchase", "en_US")
	srv := httptest.NewServer(app.NewRouter(recorder, pinger{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `yotposync_export_attempts_total{feed="purchase",locale="en_US"} 1`)
}

func TestRouter_Healthz(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"reachable", nil, http.StatusOK},
		{"unreachable", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(app.NewRouter(metrics.NewPrometheusRecorder(), pinger{err: tt.err}))
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/healthz")
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func sqliteConfig(t *testing.T, jobRepositoryRef string) *config.Config {
	cfg := config.NewConfig()
	cfg.Sync.Database = map[string]interface{}{
		"platform": map[string]interface{}{
			"type":     "sqlite",
			"database": filepath.Join(t.TempDir(), "yotposync.db"),
		},
	}
	cfg.Sync.Infrastructure.PlatformDBRef = "platform"
	cfg.Sync.Infrastructure.JobRepositoryDBRef = jobRepositoryRef
	return cfg
}

func TestDatabase_MigrateAndUseStore(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t, "platform")
	provider := gormadapter.NewProvider(cfg)
	defer provider.CloseAll()

	conns, err := app.NewConnections(cfg, provider)
	require.NoError(t, err)
	require.NoError(t, app.Migrate(ctx, conns))
	// Applying an up-to-date schema again is a no-op.
	require.NoError(t, app.Migrate(ctx, conns))

	store := app.NewPlatformStore(conns, app.NewTransactionManager(conns))
	require.NoError(t, store.Put(ctx, platform.ObjectTypeLocaleConfig, "default", map[string]interface{}{"appKey": "app"}))
	attrs, found, err := store.Get(ctx, platform.ObjectTypeLocaleConfig, "default")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "app", attrs["appKey"])

	repo := app.NewJobRepository(conns)
	require.IsType(t, &sqlrepo.SQLJobRepository{}, repo)
	execution := model.NewJobExecution(job.JobOrderExport, model.JobParameters{incrementer.DefaultRunIDKey: 1})
	require.NoError(t, repo.SaveJobExecution(ctx, execution))
	latest, err := repo.FindLatestJobExecution(ctx, job.JobOrderExport)
	require.NoError(t, err)
	assert.Equal(t, execution.ID, latest.ID)
}

func TestDatabase_InMemoryJobRepositoryWithoutRef(t *testing.T) {
	cfg := sqliteConfig(t, "")
	provider := gormadapter.NewProvider(cfg)
	defer provider.CloseAll()

	conns, err := app.NewConnections(cfg, provider)
	require.NoError(t, err)
	assert.Nil(t, conns.JobRepository)
	assert.IsType(t, &inmemory.InMemoryJobRepository{}, app.NewJobRepository(conns))
}

func TestDatabase_MissingConnection(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Sync.Infrastructure.PlatformDBRef = "absent"
	_, err := app.NewConnections(cfg, gormadapter.NewProvider(cfg))
	assert.Error(t, err)
}

func TestOptions_GraphIsComplete(t *testing.T) {
	err := fx.ValidateApp(app.Options(context.Background(), "", config.EmbeddedConfig("yotposync: {}"))...)
	assert.NoError(t, err)
}
