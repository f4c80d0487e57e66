package notification_test

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	"github.com/tigerroll/yotposync/pkg/batch/listener/notification"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return &buf
}

func TestSummary(t *testing.T) {
	je := model.NewJobExecution("orderExportJob", nil)
	je.ID = "exec-1"
	start := time.Date(2026, 10, 17, 7, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	je.StartTime = start
	je.EndTime = &end
	je.Status = model.BatchStatusCompleted
	je.ExitStatus = model.ExitStatusCompleted

	assert.Equal(t,
		"Job Notification: Job 'orderExportJob' (ID: exec-1) finished with Status: COMPLETED, ExitStatus: COMPLETED. Duration: 1m30s, Failures: 0",
		notification.Summary(je))
}

func TestNotificationListener_DisplayErrorIsReported(t *testing.T) {
	buf := captureLog(t)
	je := model.NewJobExecution("loyaltyOrderBackfillJob", nil)
	je.MarkAsStarted()
	je.SetDisplayError("error threshold exceeded: 50.00% > 3.00%")
	je.MarkAsFailed(assert.AnError)

	notification.NewNotificationListener(notification.NewLogNotifier()).AfterJob(context.Background(), je)

	assert.Contains(t, buf.String(), "Status: FAILED")
	assert.Contains(t, buf.String(), "[ERROR] Job Notification: Job 'loyaltyOrderBackfillJob' requires operator attention: error threshold exceeded")
}

func TestNotificationListener_IncompleteJobWarns(t *testing.T) {
	buf := captureLog(t)
	je := model.NewJobExecution("loyaltyCustomerBackfillJob", nil)
	je.MarkAsStarted()
	je.MarkAsStopped()

	notification.NewNotificationListener(notification.NewLogNotifier()).AfterJob(context.Background(), je)

	assert.Contains(t, buf.String(), "[WARN] Job Notification: Job 'loyaltyCustomerBackfillJob' did not complete.")
}
