package aggregator

import (
	"github.com/montanaflynn/stats"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
)

// Summarize computes per-run summary statistics over pull request sizes
// (additions + deletions).
func Summarize(records []*domain.RepoRecords) domain.RunSummary {
	var sizes []float64
	for _, repo := range records {
		if repo == nil {
			continue
		}
		for _, pr := range repo.PullRequests {
			sizes = append(sizes, float64(pr.Additions+pr.Deletions))
		}
	}

	summary := domain.RunSummary{PRCount: len(sizes)}
	if len(sizes) == 0 {
		return summary
	}

	if median, err := stats.Median(sizes); err == nil {
		summary.MedianPRSize = median
	}
	if p90, err := stats.Percentile(sizes, 90); err == nil {
		summary.P90PRSize = p90
	}
	return summary
}
