package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tatematsu-k/github-dashboard/internal/aggregator"
	"github.com/tatematsu-k/github-dashboard/internal/collector"
	"github.com/tatematsu-k/github-dashboard/internal/domain"
)

// ErrNoRecords is returned when a run collects zero usable records across
// all repositories. This is the only global failure mode of the engine.
var ErrNoRecords = errors.New("no usable records collected")

// Runner dispatches repository collection across a bounded worker pool and
// assembles the final result document.
type Runner struct {
	collector collector.Collector
	governor  collector.RateGovernor
	timeout   time.Duration
	logger    *log.Logger
}

// New creates a Runner. A timeout of zero disables the wall-clock budget.
func New(coll collector.Collector, governor collector.RateGovernor, timeout time.Duration, logger *log.Logger) *Runner {
	return &Runner{
		collector: coll,
		governor:  governor,
		timeout:   timeout,
		logger:    logger,
	}
}

// Run collects all configured repositories concurrently, capped at
// opts.MaxWorkers, folds the records and assembles one CollectionResult.
// When the wall-clock budget expires, in-flight collections are abandoned
// but records already fetched are still folded.
func (r *Runner) Run(ctx context.Context, repos []domain.RepositorySpec, opts domain.CollectionOptions) (*domain.CollectionResult, error) {
	window := domain.NewTimeWindow(opts, time.Now().UTC())

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logger.Printf("Collecting %d repositories (window %s to %s, workers %d)",
		len(repos), window.Since.Format("2006-01-02"), window.Until.Format("2006-01-02"), opts.MaxWorkers)

	var mu sync.Mutex
	records := make([]*domain.RepoRecords, 0, len(repos))
	var errLog []domain.RunError

	g := new(errgroup.Group)
	g.SetLimit(opts.MaxWorkers)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			start := time.Now()
			recs, errs := r.collector.Collect(ctx, repo, window, opts)

			mu.Lock()
			records = append(records, recs)
			errLog = append(errLog, errs...)
			mu.Unlock()

			r.logger.Printf("  %s: %d PRs, %d commits, %d errors (%v)",
				repo.FullName(), len(recs.PullRequests), len(recs.CommitStats), len(errs), time.Since(start).Round(time.Second))
			return nil
		})
	}
	// Collectors never return errors; failures are in the error log.
	_ = g.Wait()

	agg := aggregator.Fold(records)
	errLog = append(errLog, agg.Skipped...)

	if agg.RecordCount == 0 {
		return nil, fmt.Errorf("%w across %d repositories", ErrNoRecords, len(repos))
	}

	return assemble(window, repos, agg, aggregator.Summarize(records), errLog, r.governor.Snapshot()), nil
}
