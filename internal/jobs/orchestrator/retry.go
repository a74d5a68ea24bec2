package orchestrator

import (
	"time"

	"github.com/yungbote/amicus-backend/internal/pkg/httpx"
)

// RetryPolicy retries a failed stage by yielding the job back to the queue
// with a backoff. A zero policy never retries.
type RetryPolicy struct {
	MaxAttempts int
	// Retryable defaults to retrying every error.
	Retryable func(err error) bool

	MinBackoff time.Duration // default 1s
	MaxBackoff time.Duration // default 30s
	JitterFrac float64       // default 0.20
}

func (r RetryPolicy) allows(attempts int, err error) bool {
	if r.MaxAttempts <= 0 || attempts >= r.MaxAttempts {
		return false
	}
	return r.Retryable == nil || r.Retryable(err)
}

func (r RetryPolicy) delay(attempts int) time.Duration {
	frac := r.JitterFrac
	if frac <= 0 {
		frac = 0.20
	}
	return httpx.Jitter(httpx.Backoff(attempts, r.MinBackoff, r.MaxBackoff), frac)
}
