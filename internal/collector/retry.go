package collector

import (
	"context"
	"log"
	"time"

	apperrors "github.com/tatematsu-k/github-dashboard/internal/errors"
)

// retryPolicy is the single retry behavior applied to every API call
// category: bounded attempts with exponential backoff on transient
// failures. Non-transient errors (404, auth) are returned immediately.
// Rate-limited failures are retried too; the governor absorbs the wait.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *log.Logger
}

func newRetryPolicy(logger *log.Logger) retryPolicy {
	return retryPolicy{
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		logger:      logger,
	}
}

// do runs fn up to maxAttempts times and returns the last error.
func (p retryPolicy) do(ctx context.Context, label string, fn func() error) error {
	var err error
	delay := p.baseDelay
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !apperrors.IsTransient(err) && !apperrors.IsRateLimited(err) {
			return err
		}
		if attempt == p.maxAttempts {
			break
		}
		p.logger.Printf("  %s failed (attempt %d/%d), retrying in %v: %v", label, attempt, p.maxAttempts, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
