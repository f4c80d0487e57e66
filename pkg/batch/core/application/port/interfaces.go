// Package port defines the contracts between the batch engine and the
// components that plug into it: readers, processors, writers, tasklets,
// steps, jobs and their listeners.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/yotposync/pkg/batch/core/tx"
)

// ErrNoMoreItems is returned by an ItemReader when its input is exhausted.
var ErrNoMoreItems = errors.New("no more items to read")

// Job is a named sequence of steps.
type Job interface {
	Run(ctx context.Context, jobExecution *model.JobExecution) error
	JobName() string
}

// Step is one phase of a job.
type Step interface {
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
	StepName() string
}

// ItemReader reads items one at a time until it returns ErrNoMoreItems.
type ItemReader[O any] interface {
	Open(ctx context.Context, ec model.ExecutionContext) error
	Read(ctx context.Context) (O, error)
	Close(ctx context.Context) error
}

// ItemProcessor transforms a read item. Returning ok=false filters the item
// out of the chunk.
type ItemProcessor[I, O any] interface {
	Process(ctx context.Context, item I) (out O, ok bool, err error)
}

// ItemWriter writes a chunk of items inside the chunk transaction.
type ItemWriter[I any] interface {
	Write(ctx context.Context, tx tx.Tx, items []I) error
}

// Tasklet is a single unit of work executed by a tasklet step.
type Tasklet interface {
	Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error)
}

// StepExecutionListener observes the step lifecycle. A BeforeStep error
// aborts the step before any item is read; an AfterStep error fails it.
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution) error
	AfterStep(ctx context.Context, stepExecution *model.StepExecution) error
}

// ChunkListener observes chunk boundaries. The context passed to both
// callbacks carries the chunk transaction.
type ChunkListener interface {
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) error
	AfterChunk(ctx context.Context, stepExecution *model.StepExecution, chunkErr error) error
}

// JobExecutionListener observes the job lifecycle.
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

// RetryItemListener is notified when a read is retried.
type RetryItemListener interface {
	OnRetryRead(ctx context.Context, err error)
}

type contextKey string

// StepExecutionKey is the context key holding the running StepExecution.
const StepExecutionKey contextKey = "stepExecution"

// GetContextWithStepExecution returns a context carrying se.
func GetContextWithStepExecution(ctx context.Context, se *model.StepExecution) context.Context {
	return context.WithValue(ctx, StepExecutionKey, se)
}

// GetStepExecutionFromContext returns the StepExecution carried by ctx, or nil.
func GetStepExecutionFromContext(ctx context.Context) *model.StepExecution {
	if se, ok := ctx.Value(StepExecutionKey).(*model.StepExecution); ok {
		return se
	}
	return nil
}
