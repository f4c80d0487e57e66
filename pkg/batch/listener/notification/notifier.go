// Package notification reports finished jobs to operators.
package notification

import (
	"context"
	"fmt"
	"time"

	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// Notifier delivers a job completion report.
type Notifier interface {
	NotifyJobCompletion(ctx context.Context, execution *model.JobExecution)
}

// LogNotifier writes completion reports to the application log. A job whose
// execution context carries a display error is reported at ERROR.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyJobCompletion implements Notifier.
func (n *LogNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) {
	logger.Infof("%s", Summary(execution))
	if msg, ok := execution.DisplayError(); ok {
		logger.Errorf("Job Notification: Job '%s' requires operator attention: %s", execution.JobName, msg)
		return
	}
	if execution.Status != model.BatchStatusCompleted {
		logger.Warnf("Job Notification: Job '%s' did not complete.", execution.JobName)
	}
}

// Summary renders a one-line completion report.
func Summary(execution *model.JobExecution) string {
	duration := time.Duration(0)
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime)
	}
	return fmt.Sprintf(
		"Job Notification: Job '%s' (ID: %s) finished with Status: %s, ExitStatus: %s. Duration: %s, Failures: %d",
		execution.JobName,
		execution.ID,
		execution.Status,
		execution.ExitStatus,
		duration,
		len(execution.Failures),
	)
}

var _ Notifier = (*LogNotifier)(nil)

// NotificationListener forwards finished jobs to a Notifier.
type NotificationListener struct {
	notifier Notifier
}

// NewNotificationListener creates a NotificationListener.
func NewNotificationListener(notifier Notifier) *NotificationListener {
	return &NotificationListener{notifier: notifier}
}

func (l *NotificationListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

func (l *NotificationListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.notifier.NotifyJobCompletion(ctx, jobExecution)
}

var _ port.JobExecutionListener = (*NotificationListener)(nil)
