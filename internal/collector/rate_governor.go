package collector

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
)

// RateGovernor tracks the remaining-call budget reported by the GitHub API
// and blocks callers when the budget is critically low. The contract is
// "wait, never error": rate limiting only ever delays a call.
type RateGovernor interface {
	// Wait blocks until it is safe to make another API call. It returns an
	// error only when ctx is cancelled.
	Wait(ctx context.Context) error

	// Observe records the latest rate-limit state reported by the API.
	Observe(remaining int, resetAt time.Time)

	// Snapshot returns the last observed rate-limit state.
	Snapshot() domain.RateLimitSnapshot
}

const (
	defaultBudget = 5000 // GitHub API default hourly limit
	resetInterval = time.Hour
	maxWait       = 30 * time.Minute
)

// githubRateGovernor implements RateGovernor for the GitHub API. A single
// instance is shared by all workers so combined demand never exceeds the
// remote budget.
type githubRateGovernor struct {
	mu        sync.Mutex
	remaining int
	resetAt   time.Time
	headroom  int
	pacer     *rate.Limiter
	logger    *log.Logger
}

// NewRateGovernor creates a rate governor with a safety threshold scaled to
// the number of concurrent workers.
func NewRateGovernor(workers int, logger *log.Logger) RateGovernor {
	if workers < 1 {
		workers = 1
	}
	return &githubRateGovernor{
		remaining: defaultBudget,
		resetAt:   time.Now().Add(resetInterval),
		headroom:  10 * workers,
		pacer:     rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		logger:    logger,
	}
}

// Wait blocks the caller while the budget is at or below the safety
// threshold, until the reported reset time has passed (capped at maxWait),
// then resumes optimistically.
func (g *githubRateGovernor) Wait(ctx context.Context) error {
	g.mu.Lock()
	if g.remaining <= g.headroom {
		wait := time.Until(g.resetAt)
		if wait > maxWait {
			wait = maxWait
		}
		if wait > 0 {
			g.logger.Printf("  Rate limit low (%d remaining), waiting %v until reset...", g.remaining, wait.Round(time.Second))
			g.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			g.mu.Lock()
		}
		// Resume optimistically after the reset boundary.
		g.remaining = defaultBudget
		g.resetAt = time.Now().Add(resetInterval)
	}
	g.mu.Unlock()

	// Minimum pacing between requests, independent of the budget.
	return g.pacer.Wait(ctx)
}

// Observe records the rate-limit state from API response headers.
func (g *githubRateGovernor) Observe(remaining int, resetAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remaining = remaining
	g.resetAt = resetAt
}

// Snapshot returns the last observed rate-limit state.
func (g *githubRateGovernor) Snapshot() domain.RateLimitSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.RateLimitSnapshot{Remaining: g.remaining, ResetAt: g.resetAt}
}
