package export

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEnabledConfiguration means no locale passed the eligibility checks.
	ErrNoEnabledConfiguration = errors.New("no enabled configuration")
	// ErrRetryExhausted means transient failures outlasted the retry bound.
	ErrRetryExhausted = errors.New("transient retries exhausted")
	// ErrRepeatedAuthorization means authentication failed again after a refresh,
	// or no refresh was possible.
	ErrRepeatedAuthorization = errors.New("repeated authorization failure")
	// ErrUnknownResponse means the service answered in an unexpected way.
	ErrUnknownResponse = errors.New("unknown response")
)

// NoEnabledConfigurationError carries how many locales were skipped.
type NoEnabledConfigurationError struct {
	Skipped int
}

func (e *NoEnabledConfigurationError) Error() string {
	return fmt.Sprintf("%s: %d locale(s) skipped", ErrNoEnabledConfiguration, e.Skipped)
}

// Is matches ErrNoEnabledConfiguration.
func (e *NoEnabledConfigurationError) Is(target error) bool {
	return target == ErrNoEnabledConfiguration
}
