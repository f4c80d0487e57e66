package sql

import (
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
)

func newJobRow(je *model.JobExecution) *JobExecutionEntity {
	return &JobExecutionEntity{
		ID:         je.ID,
		JobName:    je.JobName,
		Parameters: je.Parameters,
		CreateTime: je.CreateTime,
		ExecutionColumns: ExecutionColumns{
			StartTime:        je.StartTime,
			EndTime:          je.EndTime,
			Status:           je.Status,
			ExitStatus:       je.ExitStatus,
			Failures:         je.Failures,
			ExecutionContext: je.ExecutionContext,
			LastUpdated:      je.LastUpdated,
		},
	}
}

// domain leaves StepExecutions empty; hydrate fills them.
func (row *JobExecutionEntity) domain() *model.JobExecution {
	c := row.ExecutionColumns
	return &model.JobExecution{
		ID:               row.ID,
		JobName:          row.JobName,
		Parameters:       row.Parameters,
		CreateTime:       row.CreateTime,
		StartTime:        c.StartTime,
		EndTime:          c.EndTime,
		Status:           c.Status,
		ExitStatus:       c.ExitStatus,
		Failures:         c.Failures,
		ExecutionContext: c.ExecutionContext,
		LastUpdated:      c.LastUpdated,
		StepExecutions:   make([]*model.StepExecution, 0),
	}
}

func newStepRow(se *model.StepExecution) *StepExecutionEntity {
	jobExecutionID := se.JobExecutionID
	if jobExecutionID == "" && se.JobExecution != nil {
		jobExecutionID = se.JobExecution.ID
	}
	return &StepExecutionEntity{
		ID:               se.ID,
		StepName:         se.StepName,
		JobExecutionID:   jobExecutionID,
		ReadCount:        se.ReadCount,
		WriteCount:       se.WriteCount,
		CommitCount:      se.CommitCount,
		RollbackCount:    se.RollbackCount,
		FilterCount:      se.FilterCount,
		SkipProcessCount: se.SkipProcessCount,
		ExecutionColumns: ExecutionColumns{
			StartTime:        se.StartTime,
			EndTime:          se.EndTime,
			Status:           se.Status,
			ExitStatus:       se.ExitStatus,
			Failures:         se.Failures,
			ExecutionContext: se.ExecutionContext,
			LastUpdated:      se.LastUpdated,
		},
	}
}

// domain does not set the JobExecution back-reference.
func (row *StepExecutionEntity) domain() *model.StepExecution {
	c := row.ExecutionColumns
	return &model.StepExecution{
		ID:               row.ID,
		StepName:         row.StepName,
		JobExecutionID:   row.JobExecutionID,
		ReadCount:        row.ReadCount,
		WriteCount:       row.WriteCount,
		CommitCount:      row.CommitCount,
		RollbackCount:    row.RollbackCount,
		FilterCount:      row.FilterCount,
		SkipProcessCount: row.SkipProcessCount,
		StartTime:        c.StartTime,
		EndTime:          c.EndTime,
		Status:           c.Status,
		ExitStatus:       c.ExitStatus,
		Failures:         c.Failures,
		ExecutionContext: c.ExecutionContext,
		LastUpdated:      c.LastUpdated,
	}
}
