package logger_test

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxevent"

	"github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetLogLevel(level)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
		logger.SetLogLevel("INFO")
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "warn")

	logger.Debugf("debug %d", 1)
	logger.Infof("info %d", 2)
	logger.Warnf("skipped %d records", 3)
	logger.Errorf("locale %s failed", "en_US")

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARN] skipped 3 records")
	assert.Contains(t, out, "[ERROR] locale en_US failed")
	assert.Equal(t, logger.LevelWarn, logger.GetLogLevel())
}

func TestSetLogLevel_UnknownFallsBackToInfo(t *testing.T) {
	capture(t, "verbose")
	assert.Equal(t, logger.LevelInfo, logger.GetLogLevel())
}

func TestHookName(t *testing.T) {
	assert.Equal(t, "internal/app.startServer", logger.HookName("github.com/tigerroll/yotposync/internal/app.startServer.func1"))
	assert.Equal(t, "go.uber.org/fx.New", logger.HookName("go.uber.org/fx.New"))
}

func TestFxLoggerAdapter(t *testing.T) {
	buf := capture(t, "DEBUG")
	l := logger.NewFxLoggerAdapter()

	l.LogEvent(&fxevent.OnStartExecuted{FunctionName: "github.com/tigerroll/yotposync/internal/app.startJobExecution.func1", Runtime: time.Millisecond})
	l.LogEvent(&fxevent.OnStopExecuted{FunctionName: "github.com/tigerroll/yotposync/internal/app.startServer.func2", Err: errors.New("shutdown timeout")})
	l.LogEvent(&fxevent.Invoked{FunctionName: "registerMigrations", Err: errors.New("no such table")})
	l.LogEvent(&fxevent.Started{})

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] fx: OnStart hook internal/app.startJobExecution ran in 1ms")
	assert.Contains(t, out, "[ERROR] fx: OnStop hook internal/app.startServer failed after 0s: shutdown timeout")
	assert.Contains(t, out, "[ERROR] fx: invoke registerMigrations failed: no such table")
	assert.Contains(t, out, "[INFO] yotposync started")
}
