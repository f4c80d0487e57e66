package incrementer

import (
	"fmt"
	"time"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// DefaultRunStartKey is the parameter carrying the start of the export window.
const DefaultRunStartKey = "runStart"

// TimestampIncrementer stamps its key with the current time in RFC3339 UTC.
type TimestampIncrementer struct {
	name string
	now  func() time.Time
}

// NewTimestampIncrementer creates a TimestampIncrementer writing name.
func NewTimestampIncrementer(name string) *TimestampIncrementer {
	return &TimestampIncrementer{name: name, now: time.Now}
}

// WithClock replaces the time source.
func (i *TimestampIncrementer) WithClock(now func() time.Time) *TimestampIncrementer {
	i.now = now
	return i
}

func (i *TimestampIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := copyParams(params)
	stamp := i.now().UTC().Format(time.RFC3339)
	next[i.name] = stamp
	logger.Debugf("JobParametersIncrementer '%s': set to %s.", i.name, stamp)
	return next
}

func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[name=%s]", i.name)
}

var _ JobParametersIncrementer = (*TimestampIncrementer)(nil)
