package domain

import (
	"sort"
	"time"
)

// RunSummary carries per-run summary statistics for downstream rendering.
type RunSummary struct {
	PRCount      int     `json:"pr_count"`
	MedianPRSize float64 `json:"median_pr_size"`
	P90PRSize    float64 `json:"p90_pr_size"`
}

// CollectionResult is the single document produced by one collection run.
// It is the engine's sole externally persisted artifact.
type CollectionResult struct {
	RunID         string                           `json:"run_id"`
	CollectedAt   time.Time                        `json:"collected_at"`
	Window        TimeWindow                       `json:"window"`
	Repositories  []RepositorySpec                 `json:"repositories"`
	Contributors  map[string]*ContributorAggregate `json:"contributors"`
	Monthly       map[string]*MonthlyAggregate     `json:"monthly"`
	CodeFrequency map[string]*CodeFrequencyBucket  `json:"code_frequency"`
	Summary       RunSummary                       `json:"summary"`
	Errors        []RunError                       `json:"errors"`
	RateLimit     RateLimitSnapshot                `json:"rate_limit"`
}

// MonthsAscending returns the monthly bucket keys in calendar order.
func (r *CollectionResult) MonthsAscending() []string {
	months := make([]string, 0, len(r.Monthly))
	for m := range r.Monthly {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

// TopContributors returns contributors ordered by descending contribution
// count (commits + PRs created), login ascending on ties.
func (r *CollectionResult) TopContributors() []*ContributorAggregate {
	out := make([]*ContributorAggregate, 0, len(r.Contributors))
	for _, c := range r.Contributors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total() != out[j].Total() {
			return out[i].Total() > out[j].Total()
		}
		return out[i].Login < out[j].Login
	})
	return out
}
