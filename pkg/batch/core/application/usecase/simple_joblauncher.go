package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/yotposync/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// JobLauncher launches a registered job with parameters.
type JobLauncher interface {
	// Launch runs the job to completion and returns its execution. The error
	// is the job's failure, or a launch failure when the execution is nil.
	Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)
}

// SimpleJobLauncher runs jobs synchronously in the calling goroutine.
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository

	mu   sync.RWMutex
	jobs map[string]port.Job
}

// NewSimpleJobLauncher creates a SimpleJobLauncher.
func NewSimpleJobLauncher(repo repository.JobRepository, jobs ...port.Job) *SimpleJobLauncher {
	l := &SimpleJobLauncher{
		jobRepository: repo,
		jobs:          make(map[string]port.Job),
	}
	for _, j := range jobs {
		l.Register(j)
	}
	return l
}

// Register adds job under its name, replacing any previous registration.
func (l *SimpleJobLauncher) Register(job port.Job) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.jobs[job.JobName()]; exists {
		logger.Warnf("Job '%s' already registered. Overwriting.", job.JobName())
	}
	l.jobs[job.JobName()] = job
}

// JobNames returns the registered job names in sorted order.
func (l *SimpleJobLauncher) JobNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.jobs))
	for name := range l.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Launch implements JobLauncher.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	const op = "SimpleJobLauncher.Launch"
	logger.Infof("Launching Job '%s'. Parameters: %s", jobName, params.String())

	l.mu.RLock()
	job, ok := l.jobs[jobName]
	l.mu.RUnlock()
	if !ok {
		return nil, exception.NewBatchError(op, fmt.Sprintf("Job '%s' is not registered", jobName), nil, false, false)
	}

	jobExecution := model.NewJobExecution(jobName, params)
	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		return nil, exception.NewBatchError(op, "Failed to save JobExecution initially", err, false, false)
	}
	logger.Debugf("Initially saved JobExecution (ID: %s) to JobRepository (Status: %s).", jobExecution.ID, jobExecution.Status)

	err := job.Run(ctx, jobExecution)
	return jobExecution, err
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)
