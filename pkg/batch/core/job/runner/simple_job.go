package runner

import (
	"context"
	"time"

	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/yotposync/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/yotposync/pkg/batch/core/metrics"
	exception "github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// SimpleJob runs its steps in order and stops at the first failed step.
type SimpleJob struct {
	name           string
	steps          []port.Step
	jobRepository  repository.JobRepository
	jobListeners   []port.JobExecutionListener
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

var _ port.Job = (*SimpleJob)(nil)

// NewSimpleJob creates a SimpleJob.
func NewSimpleJob(
	name string,
	steps []port.Step,
	jobRepository repository.JobRepository,
	jobListeners []port.JobExecutionListener,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *SimpleJob {
	if metricRecorder == nil {
		metricRecorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &SimpleJob{
		name:           name,
		steps:          steps,
		jobRepository:  jobRepository,
		jobListeners:   jobListeners,
		metricRecorder: metricRecorder,
		tracer:         tracer,
	}
}

// JobName returns the job name.
func (j *SimpleJob) JobName() string {
	return j.name
}

// Run executes every step in sequence and marks jobExecution accordingly.
func (j *SimpleJob) Run(ctx context.Context, jobExecution *model.JobExecution) error {
	logger.Infof("Starting Job '%s' (Execution ID: %s).", j.name, jobExecution.ID)

	ctx, finishSpan := j.tracer.StartJobSpan(ctx, jobExecution)
	defer finishSpan()

	jobExecution.MarkAsStarted()
	if err := j.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		logger.Errorf("Job '%s': Failed to update JobExecution (ID: %s) status to STARTED: %v", j.name, jobExecution.ID, err)
	}
	j.metricRecorder.RecordJobStart(ctx, jobExecution)

	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}

	runErr := j.runSteps(ctx, jobExecution)

	switch {
	case runErr == nil:
		jobExecution.MarkAsCompleted()
	case ctx.Err() != nil:
		jobExecution.AddFailureException(runErr)
		jobExecution.MarkAsStopped()
	default:
		jobExecution.MarkAsFailed(runErr)
	}
	if jobExecution.EndTime == nil {
		now := time.Now()
		jobExecution.EndTime = &now
	}

	for _, l := range j.jobListeners {
		l.AfterJob(ctx, jobExecution)
	}
	j.metricRecorder.RecordJobEnd(ctx, jobExecution)

	if err := j.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		logger.Errorf("Job '%s': Failed to update final JobExecution (ID: %s) state: %v", j.name, jobExecution.ID, err)
	}

	logger.Infof("Job '%s' (Execution ID: %s) finished. Final Status: %s, Exit Status: %s",
		j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
	return runErr
}

func (j *SimpleJob) runSteps(ctx context.Context, jobExecution *model.JobExecution) error {
	for _, step := range j.steps {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Context cancelled, interrupting execution of Job '%s': %v", j.name, err)
			j.tracer.RecordError(ctx, "job_runner", err)
			return err
		}

		stepExecution := model.NewStepExecution(jobExecution, step.StepName())
		if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
			j.tracer.RecordError(ctx, "job_runner", err)
			return exception.NewBatchError(j.name, "Error saving new StepExecution", err, false, false)
		}
		logger.Debugf("Job '%s': Created StepExecution (ID: %s) for step '%s'.", j.name, stepExecution.ID, step.StepName())

		if err := step.Execute(ctx, jobExecution, stepExecution); err != nil {
			logger.Errorf("Job '%s': Step '%s' failed: %v", j.name, step.StepName(), err)
			j.tracer.RecordError(ctx, "job_runner", err)
			return err
		}
	}
	return nil
}
