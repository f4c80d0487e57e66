// Package sql provides a JobRepository persisting execution metadata to the
// batch_job_execution and batch_step_execution tables through gorm.
package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/yotposync/pkg/batch/core/domain/repository"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
)

// SQLJobRepository implements repository.JobRepository.
//
// Writes never join a chunk transaction: execution metadata must survive a
// chunk rollback.
type SQLJobRepository struct {
	db *gorm.DB
}

// NewSQLJobRepository creates a SQLJobRepository over db.
func NewSQLJobRepository(db *gorm.DB) *SQLJobRepository {
	return &SQLJobRepository{db: db}
}

func (r *SQLJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SQLJobRepository.SaveJobExecution"
	entity := newJobRow(jobExecution)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save JobExecution (ID: %s)", jobExecution.ID), err, false, false)
	}
	return nil
}

func (r *SQLJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SQLJobRepository.UpdateJobExecution"
	entity := newJobRow(jobExecution)
	result := r.db.WithContext(ctx).Model(&JobExecutionEntity{}).
		Where("id = ?", entity.ID).
		Select("*").Omit("id", "create_time").
		Updates(entity)
	if result.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update JobExecution (ID: %s)", jobExecution.ID), result.Error, false, false)
	}
	if result.RowsAffected == 0 {
		return exception.NewBatchError(op, fmt.Sprintf("JobExecution (ID: %s) not found for update", jobExecution.ID), repository.ErrJobExecutionNotFound, false, false)
	}
	return nil
}

func (r *SQLJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	const op = "SQLJobRepository.FindJobExecutionByID"
	var entity JobExecutionEntity
	if err := r.db.WithContext(ctx).Where("id = ?", executionID).First(&entity).Error; err != nil {
		return nil, r.notFoundOr(op, executionID, err, repository.ErrJobExecutionNotFound)
	}
	return r.hydrate(ctx, &entity)
}

func (r *SQLJobRepository) FindLatestJobExecution(ctx context.Context, jobName string) (*model.JobExecution, error) {
	const op = "SQLJobRepository.FindLatestJobExecution"
	var entity JobExecutionEntity
	err := r.db.WithContext(ctx).
		Where("job_name = ?", jobName).
		Order("create_time DESC").
		First(&entity).Error
	if err != nil {
		return nil, r.notFoundOr(op, jobName, err, repository.ErrJobExecutionNotFound)
	}
	return r.hydrate(ctx, &entity)
}

func (r *SQLJobRepository) hydrate(ctx context.Context, entity *JobExecutionEntity) (*model.JobExecution, error) {
	je := entity.domain()
	steps, err := r.FindStepExecutionsByJobExecutionID(ctx, je.ID)
	if err != nil {
		return nil, err
	}
	for _, se := range steps {
		se.JobExecution = je
	}
	je.StepExecutions = steps
	return je, nil
}

func (r *SQLJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SQLJobRepository.SaveStepExecution"
	entity := newStepRow(stepExecution)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save StepExecution (ID: %s)", stepExecution.ID), err, false, false)
	}
	return nil
}

func (r *SQLJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SQLJobRepository.UpdateStepExecution"
	entity := newStepRow(stepExecution)
	result := r.db.WithContext(ctx).Model(&StepExecutionEntity{}).
		Where("id = ?", entity.ID).
		Select("*").Omit("id", "job_execution_id").
		Updates(entity)
	if result.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update StepExecution (ID: %s)", stepExecution.ID), result.Error, false, false)
	}
	if result.RowsAffected == 0 {
		return exception.NewBatchError(op, fmt.Sprintf("StepExecution (ID: %s) not found for update", stepExecution.ID), repository.ErrStepExecutionNotFound, false, false)
	}
	return nil
}

func (r *SQLJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionByID"
	var entity StepExecutionEntity
	if err := r.db.WithContext(ctx).Where("id = ?", executionID).First(&entity).Error; err != nil {
		return nil, r.notFoundOr(op, executionID, err, repository.ErrStepExecutionNotFound)
	}
	return entity.domain(), nil
}

func (r *SQLJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionsByJobExecutionID"
	var entities []StepExecutionEntity
	err := r.db.WithContext(ctx).
		Where("job_execution_id = ?", jobExecutionID).
		Order("start_time ASC").
		Find(&entities).Error
	if err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find StepExecutions for JobExecution (ID: %s)", jobExecutionID), err, false, false)
	}
	steps := make([]*model.StepExecution, 0, len(entities))
	for i := range entities {
		steps = append(steps, entities[i].domain())
	}
	return steps, nil
}

// Close is a no-op; the connection belongs to the gorm Provider.
func (r *SQLJobRepository) Close() error {
	return nil
}

func (r *SQLJobRepository) notFoundOr(op, key string, err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return exception.NewBatchError(op, fmt.Sprintf("no record for '%s'", key), notFound, false, false)
	}
	return exception.NewBatchError(op, fmt.Sprintf("query failed for '%s'", key), err, false, false)
}

var _ repository.JobRepository = (*SQLJobRepository)(nil)
