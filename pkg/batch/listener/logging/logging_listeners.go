// Package logging provides listeners that log the job, step and chunk lifecycle.
package logging

import (
	"context"

	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// --- Job Execution Listener ---

type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %s, Params: %s", jobExecution.JobName, jobExecution.ID, jobExecution.Parameters)
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s", jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus)
	if msg, ok := jobExecution.DisplayError(); ok {
		logger.Errorf("JobExecutionListener: Job '%s' reported an operator-visible error: %s", jobExecution.JobName, msg)
	}
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// --- Step Execution Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) error {
	logger.Infof("StepExecutionListener: BeforeStep - StepName: %s, ID: %s", stepExecution.StepName, stepExecution.ID)
	return nil
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) error {
	logger.Infof("StepExecutionListener: AfterStep - StepName: %s, Read: %d, Write: %d, Filter: %d, Commit: %d, Rollback: %d",
		stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.FilterCount,
		stepExecution.CommitCount, stepExecution.RollbackCount)
	return nil
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)

// --- Chunk Listener ---

type LoggingChunkListener struct{}

func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) error {
	logger.Debugf("ChunkListener: BeforeChunk - StepName: %s", stepExecution.StepName)
	return nil
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution, chunkErr error) error {
	if chunkErr != nil {
		logger.Warnf("ChunkListener: AfterChunk - StepName: %s failed: %v", stepExecution.StepName, chunkErr)
		return nil
	}
	logger.Debugf("ChunkListener: AfterChunk - StepName: %s, Read: %d, Write: %d", stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount)
	return nil
}

var _ port.ChunkListener = (*LoggingChunkListener)(nil)

// --- Retry Item Listener ---

type LoggingRetryItemListener struct{}

func NewLoggingRetryItemListener() *LoggingRetryItemListener {
	return &LoggingRetryItemListener{}
}

func (l *LoggingRetryItemListener) OnRetryRead(ctx context.Context, err error) {
	logger.Warnf("RetryItemListener: OnRetryRead - %v", err)
}

var _ port.RetryItemListener = (*LoggingRetryItemListener)(nil)
