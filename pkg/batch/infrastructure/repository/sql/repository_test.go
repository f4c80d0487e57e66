package sql_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/yotposync/internal/schema"
	"github.com/tigerroll/yotposync/pkg/batch/adapter/database/migration"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/yotposync/pkg/batch/core/domain/repository"
	sqlrepo "github.com/tigerroll/yotposync/pkg/batch/infrastructure/repository/sql"
)

func newRepository(t *testing.T) *sqlrepo.SQLJobRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "batch.db")), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.NewMigrator(sqlDB, "sqlite").Up(context.Background(), schema.FS, schema.Dir("sqlite"), ""))
	return sqlrepo.NewSQLJobRepository(db)
}

func TestSQLJobRepository_JobAndStepLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	je := model.NewJobExecution("orderExportJob", model.JobParameters{"run.id": 1, "runStart": "2026-10-17T07:00:00Z"})
	require.NoError(t, repo.SaveJobExecution(ctx, je))
	je.MarkAsStarted()
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	se := model.NewStepExecution(je, "orderExportStep")
	require.NoError(t, repo.SaveStepExecution(ctx, se))
	se.MarkAsStarted()
	se.ReadCount = 10
	se.WriteCount = 9
	se.ExecutionContext.Put("skippedCount", 1)
	se.MarkAsCompleted()
	require.NoError(t, repo.UpdateStepExecution(ctx, se))

	je.MarkAsCompleted()
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	latest, err := repo.FindLatestJobExecution(ctx, "orderExportJob")
	require.NoError(t, err)
	assert.Equal(t, je.ID, latest.ID)
	assert.Equal(t, model.BatchStatusCompleted, latest.Status)
	assert.Equal(t, "2026-10-17T07:00:00Z", latest.Parameters["runStart"])
	require.Len(t, latest.StepExecutions, 1)

	step := latest.StepExecutions[0]
	assert.Equal(t, "orderExportStep", step.StepName)
	assert.Equal(t, 10, step.ReadCount)
	assert.Equal(t, 9, step.WriteCount)
	skipped, ok := step.ExecutionContext.GetInt("skippedCount")
	require.True(t, ok)
	assert.Equal(t, 1, skipped)
	assert.Same(t, latest, step.JobExecution)
}

func TestSQLJobRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	_, err := repo.FindLatestJobExecution(ctx, "loyaltyOrderBackfillJob")
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)

	_, err = repo.FindStepExecutionByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrStepExecutionNotFound)

	err = repo.UpdateJobExecution(ctx, model.NewJobExecution("orderExportJob", nil))
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
}
