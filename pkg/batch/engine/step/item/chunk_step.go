package item

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/yotposync/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/yotposync/pkg/batch/core/metrics"
	tx "github.com/tigerroll/yotposync/pkg/batch/core/tx"
	"github.com/tigerroll/yotposync/pkg/batch/engine/step/retry"
	exception "github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// ChunkStep is a chunk-oriented step. Items are read and processed one at a
// time and written in chunks of chunkSize, each chunk in its own transaction.
//
// Callback order per run:
// BeforeStep, then per chunk BeforeChunk, Read*, Process*, Write, AfterChunk, then AfterStep.
type ChunkStep[I, O any] struct {
	name      string
	reader    port.ItemReader[I]
	processor port.ItemProcessor[I, O]
	writer    port.ItemWriter[O]
	chunkSize int

	jobRepository  repository.JobRepository
	txManager      tx.TransactionManager
	isolationLevel sql.IsolationLevel

	stepExecutionListeners []port.StepExecutionListener
	chunkListeners         []port.ChunkListener
	retryItemListeners     []port.RetryItemListener

	readRetryPolicy retry.RetryPolicy

	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

// ChunkStepOption configures optional collaborators of a ChunkStep.
type ChunkStepOption[I, O any] func(*ChunkStep[I, O])

// WithStepExecutionListeners registers step listeners.
func WithStepExecutionListeners[I, O any](listeners ...port.StepExecutionListener) ChunkStepOption[I, O] {
	return func(s *ChunkStep[I, O]) {
		s.stepExecutionListeners = append(s.stepExecutionListeners, listeners...)
	}
}

// WithChunkListeners registers chunk listeners.
func WithChunkListeners[I, O any](listeners ...port.ChunkListener) ChunkStepOption[I, O] {
	return func(s *ChunkStep[I, O]) {
		s.chunkListeners = append(s.chunkListeners, listeners...)
	}
}

// WithRetryItemListeners registers listeners notified on read retries.
func WithRetryItemListeners[I, O any](listeners ...port.RetryItemListener) ChunkStepOption[I, O] {
	return func(s *ChunkStep[I, O]) {
		s.retryItemListeners = append(s.retryItemListeners, listeners...)
	}
}

// WithReadRetryPolicy sets the policy applied to failed reads.
func WithReadRetryPolicy[I, O any](policy retry.RetryPolicy) ChunkStepOption[I, O] {
	return func(s *ChunkStep[I, O]) {
		s.readRetryPolicy = policy
	}
}

// WithIsolationLevel sets the isolation level of chunk transactions.
func WithIsolationLevel[I, O any](level string) ChunkStepOption[I, O] {
	return func(s *ChunkStep[I, O]) {
		s.isolationLevel = parseIsolationLevel(level)
	}
}

// WithMetrics sets the metric recorder and tracer.
func WithMetrics[I, O any](recorder metrics.MetricRecorder, tracer metrics.Tracer) ChunkStepOption[I, O] {
	return func(s *ChunkStep[I, O]) {
		if recorder != nil {
			s.metricRecorder = recorder
		}
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewChunkStep creates a ChunkStep.
func NewChunkStep[I, O any](
	name string,
	reader port.ItemReader[I],
	processor port.ItemProcessor[I, O],
	writer port.ItemWriter[O],
	chunkSize int,
	jobRepository repository.JobRepository,
	txManager tx.TransactionManager,
	opts ...ChunkStepOption[I, O],
) *ChunkStep[I, O] {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	s := &ChunkStep[I, O]{
		name:            name,
		reader:          reader,
		processor:       processor,
		writer:          writer,
		chunkSize:       chunkSize,
		jobRepository:   jobRepository,
		txManager:       txManager,
		isolationLevel:  sql.LevelDefault,
		readRetryPolicy: retry.NewDefaultRetryPolicyFactory().Create(0, 0, nil),
		metricRecorder:  metrics.NewNoOpMetricRecorder(),
		tracer:          metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StepName returns the step name.
func (s *ChunkStep[I, O]) StepName() string {
	return s.name
}

var _ port.Step = (*ChunkStep[any, any])(nil)

// parseIsolationLevel converts a configured isolation level to sql.IsolationLevel.
func parseIsolationLevel(level string) sql.IsolationLevel {
	switch level {
	case "READ_UNCOMMITTED":
		return sql.LevelReadUncommitted
	case "READ_COMMITTED":
		return sql.LevelReadCommitted
	case "REPEATABLE_READ":
		return sql.LevelRepeatableRead
	case "SERIALIZABLE":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

func (s *ChunkStep[I, O]) txOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: s.isolationLevel}
}

// Execute runs the step until the reader is exhausted or an error occurs.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	logger.Infof("ChunkStep '%s' executing.", s.name)

	ctx = port.GetContextWithStepExecution(ctx, stepExecution)
	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()

	stepExecution.MarkAsStarted()
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(s.name, "Failed to update StepExecution status to STARTED", err, false, false)
	}

	stepErr := s.notifyBeforeStep(ctx, stepExecution)
	if stepErr == nil {
		stepErr = s.run(ctx, stepExecution)
		if afterErr := s.notifyAfterStep(ctx, stepExecution); afterErr != nil && stepErr == nil {
			stepErr = afterErr
		}
	}

	if stepErr != nil {
		s.tracer.RecordError(ctx, s.name, stepErr)
		stepExecution.MarkAsFailed(stepErr)
	} else {
		stepExecution.MarkAsCompleted()
	}
	s.metricRecorder.RecordStepEnd(ctx, stepExecution)

	if updateErr := s.jobRepository.UpdateStepExecution(ctx, stepExecution); updateErr != nil {
		logger.Errorf("ChunkStep '%s': Failed to update final StepExecution state: %v", s.name, updateErr)
		if stepErr == nil {
			stepErr = updateErr
		}
	}

	logger.Infof("ChunkStep '%s' finished. ExitStatus: %s", s.name, stepExecution.ExitStatus)
	return stepErr
}

// run opens the reader and processes chunks until exhaustion.
func (s *ChunkStep[I, O]) run(ctx context.Context, stepExecution *model.StepExecution) error {
	if err := s.reader.Open(ctx, stepExecution.ExecutionContext); err != nil {
		return exception.NewBatchError(s.name, "Failed to open ItemReader", err, false, false)
	}

	var chunkErr error
	for {
		if err := ctx.Err(); err != nil {
			chunkErr = exception.NewBatchError(s.name, "Step interrupted", err, false, false)
			break
		}
		eof, err := s.executeChunk(ctx, stepExecution)
		if err != nil {
			chunkErr = err
			break
		}
		if eof {
			logger.Debugf("ChunkStep '%s': Reached end of input. Exiting chunk loop.", s.name)
			break
		}
	}

	if closeErr := s.reader.Close(ctx); closeErr != nil {
		logger.Warnf("ChunkStep '%s': Failed to close ItemReader: %v", s.name, closeErr)
		if chunkErr == nil {
			chunkErr = closeErr
		}
	}

	stepExecution.ExecutionContext.Put("readCount", stepExecution.ReadCount)
	stepExecution.ExecutionContext.Put("writeCount", stepExecution.WriteCount)
	return chunkErr
}

// executeChunk runs one chunk inside its own transaction and reports whether
// the reader is exhausted.
func (s *ChunkStep[I, O]) executeChunk(ctx context.Context, stepExecution *model.StepExecution) (bool, error) {
	txAdapter, err := s.txManager.Begin(ctx, s.txOptions())
	if err != nil {
		return false, exception.NewBatchError(s.name, "Failed to begin transaction for chunk", err, false, false)
	}
	txCtx := tx.WithTx(ctx, txAdapter)

	var chunkErr error
	for _, l := range s.chunkListeners {
		if err := l.BeforeChunk(txCtx, stepExecution); err != nil {
			chunkErr = exception.NewBatchError(s.name, "BeforeChunk listener failed", err, false, false)
			break
		}
	}

	var itemsToWrite []O
	isEOF := false
	if chunkErr == nil {
		itemsToWrite, isEOF, chunkErr = s.readAndProcess(txCtx, stepExecution)
	}

	if chunkErr == nil && len(itemsToWrite) > 0 {
		if err := s.writer.Write(txCtx, txAdapter, itemsToWrite); err != nil {
			chunkErr = exception.NewBatchError(s.name, "Item write failed", err, false, false)
		} else {
			stepExecution.WriteCount += len(itemsToWrite)
			s.metricRecorder.RecordItemWrite(txCtx, s.name, len(itemsToWrite))
		}
	}

	for _, l := range s.chunkListeners {
		if err := l.AfterChunk(txCtx, stepExecution, chunkErr); err != nil && chunkErr == nil {
			chunkErr = exception.NewBatchError(s.name, "AfterChunk listener failed", err, false, false)
		}
	}

	if chunkErr != nil {
		if rbErr := s.txManager.Rollback(txAdapter); rbErr != nil {
			logger.Errorf("ChunkStep '%s': Failed to roll back chunk transaction: %v", s.name, rbErr)
		}
		stepExecution.RollbackCount++
		return false, chunkErr
	}

	if err := s.txManager.Commit(txAdapter); err != nil {
		stepExecution.RollbackCount++
		return false, exception.NewBatchError(s.name, "Failed to commit transaction for chunk", err, false, false)
	}
	stepExecution.CommitCount++
	s.metricRecorder.RecordChunkCommit(ctx, s.name, len(itemsToWrite))
	return isEOF, nil
}

// readAndProcess fills one chunk. Filtered items are counted but not returned.
func (s *ChunkStep[I, O]) readAndProcess(ctx context.Context, stepExecution *model.StepExecution) ([]O, bool, error) {
	items := make([]O, 0, s.chunkSize)
	for read := 0; read < s.chunkSize; read++ {
		item, err := s.readWithRetry(ctx)
		if err != nil {
			if errors.Is(err, port.ErrNoMoreItems) || errors.Is(err, io.EOF) {
				return items, true, nil
			}
			return items, false, exception.NewBatchError(s.name, "Item read failed (Fatal or limit reached)", err, false, false)
		}
		stepExecution.ReadCount++
		s.metricRecorder.RecordItemRead(ctx, s.name)

		out, ok, err := s.processor.Process(ctx, item)
		if err != nil {
			return items, false, exception.NewBatchError(s.name, "Item process failed", err, false, false)
		}
		s.metricRecorder.RecordItemProcess(ctx, s.name)
		if !ok {
			stepExecution.FilterCount++
			continue
		}
		items = append(items, out)
	}
	return items, false, nil
}

func (s *ChunkStep[I, O]) readWithRetry(ctx context.Context) (I, error) {
	failures := 0
	for {
		item, err := s.reader.Read(ctx)
		if err == nil || errors.Is(err, port.ErrNoMoreItems) || errors.Is(err, io.EOF) {
			return item, err
		}
		failures++
		if !s.readRetryPolicy.ShouldRetry(err) || !s.readRetryPolicy.CanRetry(failures) {
			return item, err
		}
		logger.Warnf("ChunkStep '%s': Item read failed (Attempt %d/%d). Retrying: %v", s.name, failures, s.readRetryPolicy.GetMaxAttempts(), err)
		s.tracer.RecordError(ctx, s.name, err)
		s.metricRecorder.RecordItemRetry(ctx, s.name, "read")
		for _, l := range s.retryItemListeners {
			l.OnRetryRead(ctx, err)
		}
		if wait := s.readRetryPolicy.GetBackoffInterval(failures); wait > 0 {
			select {
			case <-ctx.Done():
				return item, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
}

func (s *ChunkStep[I, O]) notifyBeforeStep(ctx context.Context, stepExecution *model.StepExecution) error {
	for _, l := range s.stepExecutionListeners {
		if err := l.BeforeStep(ctx, stepExecution); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChunkStep[I, O]) notifyAfterStep(ctx context.Context, stepExecution *model.StepExecution) error {
	var first error
	for _, l := range s.stepExecutionListeners {
		if err := l.AfterStep(ctx, stepExecution); err != nil && first == nil {
			first = err
		}
	}
	return first
}
