package sql

import (
	"time"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
)

// ExecutionColumns are the columns shared by job and step execution rows.
type ExecutionColumns struct {
	StartTime        time.Time              `gorm:"column:start_time"`
	EndTime          *time.Time             `gorm:"column:end_time"`
	Status           model.JobStatus        `gorm:"column:status"`
	ExitStatus       model.ExitStatus       `gorm:"column:exit_status"`
	Failures         model.FailureList      `gorm:"column:failures"`
	ExecutionContext model.ExecutionContext `gorm:"column:execution_context"`
	LastUpdated      time.Time              `gorm:"column:last_updated"`
}

// JobExecutionEntity is a batch_job_execution row.
type JobExecutionEntity struct {
	ID         string              `gorm:"column:id;primaryKey"`
	JobName    string              `gorm:"column:job_name"`
	Parameters model.JobParameters `gorm:"column:parameters"`
	CreateTime time.Time           `gorm:"column:create_time"`
	ExecutionColumns
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}

// StepExecutionEntity is a batch_step_execution row.
type StepExecutionEntity struct {
	ID               string `gorm:"column:id;primaryKey"`
	StepName         string `gorm:"column:step_name"`
	JobExecutionID   string `gorm:"column:job_execution_id"`
	ReadCount        int    `gorm:"column:read_count"`
	WriteCount       int    `gorm:"column:write_count"`
	CommitCount      int    `gorm:"column:commit_count"`
	RollbackCount    int    `gorm:"column:rollback_count"`
	FilterCount      int    `gorm:"column:filter_count"`
	SkipProcessCount int    `gorm:"column:skip_process_count"`
	ExecutionColumns
}

func (StepExecutionEntity) TableName() string {
	return "batch_step_execution"
}
