package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

const modulePath = "github.com/tigerroll/yotposync/"

// FxLoggerAdapter writes fx container events through the package logger.
// Wiring events are DEBUG. Lifecycle failures are ERROR.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter is the constructor handed to fx.WithLogger.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

// LogEvent implements fxevent.Logger.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		hookResult("OnStart", e.FunctionName, e.Runtime.String(), e.Err)
	case *fxevent.OnStopExecuted:
		hookResult("OnStop", e.FunctionName, e.Runtime.String(), e.Err)
	case *fxevent.Supplied:
		failOrDebug(e.Err, "supply %s", e.TypeName)
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("fx: provide %s failed: %v", HookName(e.ConstructorName), e.Err)
			return
		}
		Debugf("fx: %s provides %s", HookName(e.ConstructorName), strings.Join(e.OutputTypeNames, ", "))
	case *fxevent.Invoked:
		failOrDebug(e.Err, "invoke %s", HookName(e.FunctionName))
	case *fxevent.Stopping:
		Infof("fx: received %s, stopping", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		failOrDebug(e.Err, "stopped")
	case *fxevent.RollingBack:
		Errorf("fx: start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		failOrDebug(e.Err, "rolled back")
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("fx: start failed: %v", e.Err)
			return
		}
		Infof("yotposync started")
	case *fxevent.LoggerInitialized:
		failOrDebug(e.Err, "logger %s", HookName(e.ConstructorName))
	}
}

func hookResult(kind, fn, runtime string, err error) {
	if err != nil {
		Errorf("fx: %s hook %s failed after %s: %v", kind, HookName(fn), runtime, err)
		return
	}
	Debugf("fx: %s hook %s ran in %s", kind, HookName(fn), runtime)
}

func failOrDebug(err error, format string, args ...interface{}) {
	if err != nil {
		Errorf("fx: "+format+" failed: %v", append(args, err)...)
		return
	}
	Debugf("fx: "+format, args...)
}

// HookName shortens a function name reported by fx: the module path prefix
// and the ".funcN" closure suffix are removed.
//
//	github.com/tigerroll/yotposync/internal/app.startServer.func1 -> internal/app.startServer
func HookName(fn string) string {
	fn = strings.TrimPrefix(fn, modulePath)
	if idx := strings.LastIndex(fn, ".func"); idx != -1 {
		fn = fn[:idx]
	}
	return fn
}
