package collector

import (
	"context"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
)

// Collector defines the interface for collecting activity data from one
// repository. Collect never returns a Go error: every failure is reflected
// in the returned error log, so one repository's failure never aborts a run.
type Collector interface {
	Collect(ctx context.Context, repo domain.RepositorySpec, window domain.TimeWindow, opts domain.CollectionOptions) (*domain.RepoRecords, []domain.RunError)
}
