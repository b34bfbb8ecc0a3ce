package collector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/tatematsu-k/github-dashboard/internal/errors"
)

func fastRetry() retryPolicy {
	return retryPolicy{maxAttempts: 3, baseDelay: time.Millisecond, logger: testLogger()}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastRetry().do(context.Background(), "op", func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryTransientThenSuccess(t *testing.T) {
	calls := 0
	err := fastRetry().do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return apperrors.NewTransientError("flaky", nil)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryNonTransientReturnsImmediately(t *testing.T) {
	calls := 0
	err := fastRetry().do(context.Background(), "op", func() error {
		calls++
		return apperrors.NewNonTransientError("not found", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRateLimitedIsRetried(t *testing.T) {
	calls := 0
	err := fastRetry().do(context.Background(), "op", func() error {
		calls++
		if calls == 1 {
			return apperrors.NewRateLimitedError("slow down")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastRetry().do(context.Background(), "op", func() error {
		calls++
		return apperrors.NewTransientError("down", fmt.Errorf("connection refused"))
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, apperrors.IsTransient(err))
}

func TestRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fastRetry().do(ctx, "op", func() error {
		calls++
		return apperrors.NewTransientError("down", nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
