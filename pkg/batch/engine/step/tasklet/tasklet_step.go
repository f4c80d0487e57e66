package tasklet

import (
	"context"
	"time"

	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/yotposync/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/yotposync/pkg/batch/core/metrics"
	tx "github.com/tigerroll/yotposync/pkg/batch/core/tx"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// TaskletStep executes a single Tasklet inside one transaction.
type TaskletStep struct {
	name                   string
	tasklet                port.Tasklet
	jobRepository          repository.JobRepository
	txManager              tx.TransactionManager
	stepExecutionListeners []port.StepExecutionListener
	metricRecorder         metrics.MetricRecorder
	tracer                 metrics.Tracer
}

// NewTaskletStep creates a TaskletStep.
func NewTaskletStep(
	name string,
	tasklet port.Tasklet,
	jobRepository repository.JobRepository,
	txManager tx.TransactionManager,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	listeners ...port.StepExecutionListener,
) *TaskletStep {
	if metricRecorder == nil {
		metricRecorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &TaskletStep{
		name:                   name,
		tasklet:                tasklet,
		jobRepository:          jobRepository,
		txManager:              txManager,
		stepExecutionListeners: listeners,
		metricRecorder:         metricRecorder,
		tracer:                 tracer,
	}
}

// StepName returns the step name.
func (s *TaskletStep) StepName() string {
	return s.name
}

// Execute runs the Tasklet.
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) (err error) {
	logger.Infof("TaskletStep '%s' executing.", s.name)

	ctx = port.GetContextWithStepExecution(ctx, stepExecution)
	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()

	stepExecution.MarkAsStarted()
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(s.name, "Failed to update StepExecution status to STARTED", err, false, false)
	}

	for _, l := range s.stepExecutionListeners {
		if err = l.BeforeStep(ctx, stepExecution); err != nil {
			break
		}
	}

	exitStatus := model.ExitStatusCompleted
	if err == nil {
		err = tx.Run(ctx, s.txManager, func(txCtx context.Context) error {
			var execErr error
			exitStatus, execErr = s.tasklet.Execute(txCtx, stepExecution)
			return execErr
		})
		for _, l := range s.stepExecutionListeners {
			if afterErr := l.AfterStep(ctx, stepExecution); afterErr != nil && err == nil {
				err = afterErr
			}
		}
	}

	if err != nil {
		s.tracer.RecordError(ctx, s.name, err)
		stepExecution.MarkAsFailed(err)
	} else {
		stepExecution.Status = model.BatchStatusCompleted
		stepExecution.ExitStatus = exitStatus
		now := time.Now()
		stepExecution.EndTime = &now
		stepExecution.LastUpdated = now
	}
	s.metricRecorder.RecordStepEnd(ctx, stepExecution)

	if updateErr := s.jobRepository.UpdateStepExecution(ctx, stepExecution); updateErr != nil {
		logger.Errorf("TaskletStep '%s': Failed to update final StepExecution state: %v", s.name, updateErr)
		if err == nil {
			err = updateErr
		}
	}

	logger.Infof("TaskletStep '%s' finished. ExitStatus: %s", s.name, stepExecution.ExitStatus)
	return err
}

var _ port.Step = (*TaskletStep)(nil)
