// Package app assembles the yotposync application with uber/fx.
package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/yotposync/internal/auth"
	"github.com/tigerroll/yotposync/internal/export"
	"github.com/tigerroll/yotposync/internal/job"
	"github.com/tigerroll/yotposync/internal/localeconfig"
	"github.com/tigerroll/yotposync/internal/platform"
	"github.com/tigerroll/yotposync/internal/yotpo"
	usecase "github.com/tigerroll/yotposync/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	coremetrics "github.com/tigerroll/yotposync/pkg/batch/core/metrics"
	"github.com/tigerroll/yotposync/pkg/batch/core/support/incrementer"
	"github.com/tigerroll/yotposync/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/yotposync/pkg/batch/listener/logging"
	"github.com/tigerroll/yotposync/pkg/batch/listener/notification"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

const module = "app"

// NewExportModel builds the export model over both API clients.
func NewExportModel(
	cfg *config.Config,
	clients *yotpo.Clients,
	authClient *auth.Client,
	transactor platform.Transactor,
	recorder coremetrics.ExportRecorder,
	tracer coremetrics.Tracer,
) *export.Model {
	return export.NewModel(cfg, clients.Reviews, clients.Loyalty, authClient, transactor, recorder, tracer)
}

// NewResolver builds the locale configuration resolver over the platform.
func NewResolver(store platform.ConfigStore, prefs platform.SitePreferences) *localeconfig.Resolver {
	return localeconfig.NewResolver(store, prefs)
}

// Options returns the fx options of the application. appCtx is cancelled on
// SIGINT/SIGTERM and stops the running job.
func Options(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) []fx.Option {
	return []fx.Option{
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
		),
		logger.Module,
		fx.Provide(config.NewConfigProvider),
		config.Module,
		metrics.Module,
		databaseModule,
		fx.Provide(
			yotpo.NewClients,
			auth.NewClient,
			NewResolver,
			NewExportModel,
			NewJobLauncher,
			func(l *usecase.SimpleJobLauncher) usecase.JobLauncher { return l },
			NewRunner,
		),
		incrementer.Module,
		logging.Module,
		notification.Module,
		job.Module,
		fx.Invoke(startServer),
		fx.Invoke(fx.Annotate(startJobExecution, fx.ParamTags("", "", "", "", `name:"appCtx"`))),
	}
}
