package incrementer

import (
	"fmt"
	"strconv"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// DefaultRunIDKey is the parameter counting the launches of a job.
const DefaultRunIDKey = "run.id"

// RunIDIncrementer sets its key to 1, or to the previous value plus one.
type RunIDIncrementer struct {
	name string
}

// NewRunIDIncrementer creates a RunIDIncrementer writing name.
func NewRunIDIncrementer(name string) *RunIDIncrementer {
	return &RunIDIncrementer{name: name}
}

func (i *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := copyParams(params)
	current, ok := asInt(params[i.name])
	if !ok {
		next[i.name] = 1
		logger.Debugf("JobParametersIncrementer '%s': not set, starting at 1.", i.name)
		return next
	}
	next[i.name] = current + 1
	logger.Debugf("JobParametersIncrementer '%s': %d -> %d.", i.name, current, current+1)
	return next
}

func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

// asInt accepts the representations a parameter takes after a JSON round trip.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(n)
		return parsed, err == nil
	default:
		return 0, false
	}
}

var _ JobParametersIncrementer = (*RunIDIncrementer)(nil)
