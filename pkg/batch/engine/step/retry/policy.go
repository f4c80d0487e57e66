// Package retry decides whether a failed operation may be attempted again.
package retry

import (
	"time"

	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
)

// RetryPolicy defines retry logic for a single operation.
type RetryPolicy interface {
	// ShouldRetry reports whether err is of a retryable kind.
	ShouldRetry(err error) bool
	// CanRetry reports whether another attempt is allowed after `failures` retryable failures.
	CanRetry(failures int) bool
	// GetBackoffInterval returns the wait before the given retry attempt (starting from 1).
	GetBackoffInterval(attempt int) time.Duration
	// GetMaxAttempts returns the number of retries allowed after the first attempt.
	GetMaxAttempts() int
}

// DefaultRetryPolicyFactory creates RetryPolicy instances from configuration values.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create builds a policy allowing maxAttempts retries spaced by initialInterval.
// retryableExceptions are names resolved through exception.IsErrorOfType.
func (f *DefaultRetryPolicyFactory) Create(maxAttempts int, initialInterval time.Duration, retryableExceptions []string) RetryPolicy {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &defaultRetryPolicy{
		maxAttempts:         maxAttempts,
		initialInterval:     initialInterval,
		retryableExceptions: retryableExceptions,
	}
}

type defaultRetryPolicy struct {
	maxAttempts         int
	initialInterval     time.Duration
	retryableExceptions []string
}

func (p *defaultRetryPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

// CanRetry allows a retry while the failure count stays within the bound,
// so maxAttempts retries means maxAttempts+1 attempts in total.
func (p *defaultRetryPolicy) CanRetry(failures int) bool {
	return failures <= p.maxAttempts
}

func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if exception.IsTemporary(err) {
		return true
	}
	for _, typeName := range p.retryableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

// GetBackoffInterval returns a fixed interval.
func (p *defaultRetryPolicy) GetBackoffInterval(attempt int) time.Duration {
	return p.initialInterval
}

var _ RetryPolicy = (*defaultRetryPolicy)(nil)
