package runner

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tatematsu-k/github-dashboard/internal/aggregator"
	"github.com/tatematsu-k/github-dashboard/internal/domain"
)

// assemble shapes the final document: no business logic beyond structuring
// and stable ordering of the error log.
func assemble(window domain.TimeWindow, repos []domain.RepositorySpec, agg *aggregator.Aggregates, summary domain.RunSummary, errLog []domain.RunError, rateLimit domain.RateLimitSnapshot) *domain.CollectionResult {
	sort.SliceStable(errLog, func(i, j int) bool {
		return errLog[i].OccurredAt.Before(errLog[j].OccurredAt)
	})

	repositories := make([]domain.RepositorySpec, len(repos))
	copy(repositories, repos)
	sort.Slice(repositories, func(i, j int) bool {
		return repositories[i].FullName() < repositories[j].FullName()
	})

	return &domain.CollectionResult{
		RunID:         uuid.New().String(),
		CollectedAt:   time.Now().UTC(),
		Window:        window,
		Repositories:  repositories,
		Contributors:  agg.Contributors,
		Monthly:       agg.Monthly,
		CodeFrequency: agg.CodeFrequency,
		Summary:       summary,
		Errors:        errLog,
		RateLimit:     rateLimit,
	}
}
