package app

import (
	"context"
	"errors"

	"go.uber.org/fx"

	usecase "github.com/tigerroll/yotposync/pkg/batch/core/application/usecase"
	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/yotposync/pkg/batch/core/domain/repository"
	"github.com/tigerroll/yotposync/pkg/batch/core/support/incrementer"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// LauncherParams collects every job registered in the "jobs" group.
type LauncherParams struct {
	fx.In
	Repository repository.JobRepository
	Jobs       []port.Job `group:"jobs"`
}

// NewJobLauncher registers every job with a SimpleJobLauncher.
func NewJobLauncher(p LauncherParams) *usecase.SimpleJobLauncher {
	return usecase.NewSimpleJobLauncher(p.Repository, p.Jobs...)
}

// RunnerParams defines the dependencies of NewRunner.
type RunnerParams struct {
	fx.In
	Launcher     usecase.JobLauncher
	Repository   repository.JobRepository
	Incrementers []incrementer.JobParametersIncrementer `group:"incrementers"`
}

// Runner launches one job with parameters derived from its previous launch.
type Runner struct {
	launcher     usecase.JobLauncher
	repository   repository.JobRepository
	incrementers []incrementer.JobParametersIncrementer
}

// NewRunner creates a Runner.
func NewRunner(p RunnerParams) *Runner {
	return &Runner{launcher: p.Launcher, repository: p.Repository, incrementers: p.Incrementers}
}

// NextParameters applies the incrementers to the parameters of the latest
// execution of jobName.
func (r *Runner) NextParameters(ctx context.Context, jobName string) model.JobParameters {
	previous := model.JobParameters{}
	latest, err := r.repository.FindLatestJobExecution(ctx, jobName)
	switch {
	case err == nil:
		previous = latest.Parameters
	case errors.Is(err, repository.ErrJobExecutionNotFound):
		logger.Debugf("No previous execution of job '%s'.", jobName)
	default:
		logger.Warnf("Could not read the previous execution of job '%s': %v", jobName, err)
	}
	return incrementer.Next(previous, r.incrementers...)
}

// Run launches jobName and returns its execution.
func (r *Runner) Run(ctx context.Context, jobName string) (*model.JobExecution, error) {
	return r.launcher.Launch(ctx, jobName, r.NextParameters(ctx, jobName))
}

// exitCode maps a finished launch to the process exit code.
func exitCode(execution *model.JobExecution, err error) int {
	if err != nil || execution == nil || execution.Status != model.BatchStatusCompleted {
		return 1
	}
	return 0
}

// startJobExecution runs the configured job once the application has started
// and shuts the application down when it finishes.
func startJobExecution(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *Runner, cfg *config.Config, appCtx context.Context) {
	jobName := cfg.Sync.Batch.JobName
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				code := 1
				defer func() {
					if rec := recover(); rec != nil {
						logger.Errorf("Panic recovered in job execution: %v", rec)
					}
					logger.Infof("Requesting application shutdown after job completion.")
					if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()

				logger.Infof("Starting job '%s'...", jobName)
				execution, err := runner.Run(appCtx, jobName)
				code = exitCode(execution, err)
				if err != nil {
					logger.Errorf("Job '%s' failed: %v", jobName, err)
					return
				}
				logger.Infof("Job '%s' (Execution ID: %s) finished with status: %s, ExitStatus: %s",
					jobName, execution.ID, execution.Status, execution.ExitStatus)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}
