package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
)

func TestJobParameters_StringMasksSecrets(t *testing.T) {
	params := model.JobParameters{
		"run.id":     3,
		"authToken":  "tok123",
		"runStart":   "2026-10-17T07:00:00Z",
		"API_KEY_EU": "k",
	}
	assert.Equal(t, "{API_KEY_EU=********, authToken=********, run.id=3, runStart=2026-10-17T07:00:00Z}", params.String())
}

func TestExecutionContext_ScanDecodesJSONColumn(t *testing.T) {
	var ec model.ExecutionContext
	require.NoError(t, ec.Scan([]byte(`{"skippedCount":4,"displayError":"threshold","exhausted":true}`)))

	n, ok := ec.GetInt("skippedCount")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	msg, ok := ec.GetString("displayError")
	assert.True(t, ok)
	assert.Equal(t, "threshold", msg)
	b, ok := ec.GetBool("exhausted")
	assert.True(t, ok)
	assert.True(t, b)

	require.NoError(t, ec.Scan(nil))
	assert.Empty(t, ec)
	assert.Error(t, ec.Scan(42))
}

func TestJobExecution_Lifecycle(t *testing.T) {
	je := model.NewJobExecution("orderExportJob", nil)
	assert.Equal(t, model.BatchStatusStarting, je.Status)
	assert.NotEmpty(t, je.ID)

	se := model.NewStepExecution(je, "orderExportStep")
	assert.Equal(t, je.ID, se.JobExecutionID)
	assert.Len(t, je.StepExecutions, 1)

	je.MarkAsStarted()
	failure := exception.NewBatchError("job", "error threshold exceeded", errors.New("50%"), false, false)
	je.MarkAsFailed(failure)
	je.AddFailureException(failure)

	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Equal(t, model.ExitStatusFailed, je.ExitStatus)
	require.NotNil(t, je.EndTime)
	assert.Equal(t, model.FailureList{"error threshold exceeded"}, je.Failures)
	assert.Error(t, je.TransitionTo(model.BatchStatusStarted))
}
