package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v55/github"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
	apperrors "github.com/tatematsu-k/github-dashboard/internal/errors"
)

const (
	perPage          = 100
	maxCommits       = 1000 // bound on commit detail fetches per repository
	statsCacheSize   = 4096
	breakerMaxErrors = 10
)

// githubCollector implements Collector using the GitHub API
type githubCollector struct {
	client     *github.Client
	governor   RateGovernor
	retry      retryPolicy
	statsCache *lru.Cache[string, commitStat]
	logger     *log.Logger
}

type commitStat struct {
	additions int
	deletions int
}

// NewGitHubCollector creates a collector authenticated with the given token.
// Secondary rate limits are handled by the transport; the primary budget is
// the shared governor's concern.
func NewGitHubCollector(token string, governor RateGovernor, logger *log.Logger) (Collector, error) {
	waiter, err := github_ratelimit.NewRateLimitWaiter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   waiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		},
	}
	cache, err := lru.New[string, commitStat](statsCacheSize)
	if err != nil {
		return nil, err
	}
	return &githubCollector{
		client:     github.NewClient(httpClient),
		governor:   governor,
		retry:      newRetryPolicy(logger),
		statsCache: cache,
		logger:     logger,
	}, nil
}

// Collect gathers pull requests, optional reviews, and optional commit
// statistics for one repository within the window. All failures land in the
// returned error log.
func (c *githubCollector) Collect(ctx context.Context, repo domain.RepositorySpec, window domain.TimeWindow, opts domain.CollectionOptions) (*domain.RepoRecords, []domain.RunError) {
	records := &domain.RepoRecords{Repo: repo}
	errLog := newErrorLog(repo)
	breaker := &errorBreaker{max: breakerMaxErrors}

	c.collectPullRequests(ctx, repo, window, opts, records, errLog, breaker)

	if opts.CollectCommitStats {
		c.collectCommitStats(ctx, repo, window, records, errLog, breaker)
	}

	return records, errLog.entries
}

func (c *githubCollector) collectPullRequests(ctx context.Context, repo domain.RepositorySpec, window domain.TimeWindow, opts domain.CollectionOptions, records *domain.RepoRecords, errLog *errorLog, breaker *errorBreaker) {
	listOpts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		var prs []*github.PullRequest
		var resp *github.Response
		err := c.retry.do(ctx, "list pull requests", func() error {
			if err := c.governor.Wait(ctx); err != nil {
				return err
			}
			var apiErr error
			prs, resp, apiErr = c.client.PullRequests.List(ctx, repo.Owner, repo.Name, listOpts)
			c.observe(resp, apiErr)
			if apiErr != nil {
				return c.classify(resp, fmt.Sprintf("failed to list pull requests for %s", repo.FullName()), apiErr)
			}
			return nil
		})
		if err != nil {
			errLog.add(domain.PhasePRList, err)
			return
		}

		for _, pr := range prs {
			// Sorted by update time descending, so once a page item falls
			// below the window there is nothing newer left to find.
			if pr.GetUpdatedAt().Time.Before(window.Since) {
				return
			}
			if !window.Contains(pr.GetCreatedAt().Time) {
				continue
			}
			breaker.item()
			records.PullRequests = append(records.PullRequests, c.buildPullRequest(ctx, repo, pr, opts, errLog, breaker))
		}

		if resp.NextPage == 0 {
			return
		}
		listOpts.Page = resp.NextPage
	}
}

// buildPullRequest fills one record from a page item, fetching the detail
// for line counts and, when enabled, the PR's reviews.
func (c *githubCollector) buildPullRequest(ctx context.Context, repo domain.RepositorySpec, pr *github.PullRequest, opts domain.CollectionOptions, errLog *errorLog, breaker *errorBreaker) domain.PullRequestRecord {
	record := domain.PullRequestRecord{
		Number:      pr.GetNumber(),
		AuthorLogin: authorLogin(pr.GetUser()),
		CreatedAt:   pr.GetCreatedAt().Time,
	}
	if pr.MergedAt != nil {
		t := pr.MergedAt.Time
		record.MergedAt = &t
	}

	// The list endpoint omits line counts, so each PR needs one detail call.
	if !breaker.open() {
		var detail *github.PullRequest
		err := c.retry.do(ctx, fmt.Sprintf("get pull request #%d", record.Number), func() error {
			if err := c.governor.Wait(ctx); err != nil {
				return err
			}
			var resp *github.Response
			var apiErr error
			detail, resp, apiErr = c.client.PullRequests.Get(ctx, repo.Owner, repo.Name, record.Number)
			c.observe(resp, apiErr)
			if apiErr != nil {
				return c.classify(resp, fmt.Sprintf("failed to get pull request %s#%d", repo.FullName(), record.Number), apiErr)
			}
			return nil
		})
		if err != nil {
			errLog.add(domain.PhasePRList, err)
			breaker.failure()
		} else {
			record.Additions = detail.GetAdditions()
			record.Deletions = detail.GetDeletions()
			record.CommitCount = detail.GetCommits()
		}
	}

	if opts.CollectReviews && !breaker.open() {
		reviewers, err := c.fetchReviewers(ctx, repo, record.Number)
		if err != nil {
			// Review fetch failures do not abort the PR's other fields.
			errLog.add(domain.PhaseReviews, err)
			breaker.failure()
		} else {
			record.Reviewers = reviewers
			record.ReviewCount = len(reviewers)
		}
	}

	return record
}

func (c *githubCollector) fetchReviewers(ctx context.Context, repo domain.RepositorySpec, number int) ([]string, error) {
	seen := domain.NewStringSet()
	listOpts := &github.ListOptions{PerPage: perPage}

	for {
		var reviews []*github.PullRequestReview
		var resp *github.Response
		err := c.retry.do(ctx, fmt.Sprintf("list reviews for #%d", number), func() error {
			if err := c.governor.Wait(ctx); err != nil {
				return err
			}
			var apiErr error
			reviews, resp, apiErr = c.client.PullRequests.ListReviews(ctx, repo.Owner, repo.Name, number, listOpts)
			c.observe(resp, apiErr)
			if apiErr != nil {
				return c.classify(resp, fmt.Sprintf("failed to list reviews for %s#%d", repo.FullName(), number), apiErr)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, review := range reviews {
			if login := review.GetUser().GetLogin(); login != "" {
				seen.Add(login)
			}
		}

		if resp.NextPage == 0 {
			return seen.Sorted(), nil
		}
		listOpts.Page = resp.NextPage
	}
}

func (c *githubCollector) collectCommitStats(ctx context.Context, repo domain.RepositorySpec, window domain.TimeWindow, records *domain.RepoRecords, errLog *errorLog, breaker *errorBreaker) {
	listOpts := &github.CommitsListOptions{
		Since:       window.Since,
		Until:       window.Until,
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	count := 0
	for {
		var commits []*github.RepositoryCommit
		var resp *github.Response
		err := c.retry.do(ctx, "list commits", func() error {
			if err := c.governor.Wait(ctx); err != nil {
				return err
			}
			var apiErr error
			commits, resp, apiErr = c.client.Repositories.ListCommits(ctx, repo.Owner, repo.Name, listOpts)
			c.observe(resp, apiErr)
			if apiErr != nil {
				// Empty repositories report 409; nothing to collect.
				if resp != nil && resp.StatusCode == http.StatusConflict {
					return nil
				}
				return c.classify(resp, fmt.Sprintf("failed to list commits for %s", repo.FullName()), apiErr)
			}
			return nil
		})
		if err != nil {
			errLog.add(domain.PhaseCommitStats, err)
			return
		}

		for _, commit := range commits {
			count++
			if count > maxCommits {
				c.logger.Printf("  %s: reached commit limit (%d), stopping collection", repo.FullName(), maxCommits)
				return
			}

			committedAt := commit.GetCommit().GetAuthor().GetDate().Time
			if !window.Contains(committedAt) {
				continue
			}
			breaker.item()

			record := domain.CommitStatRecord{
				SHA:         commit.GetSHA(),
				AuthorLogin: commitAuthorLogin(commit),
				CommittedAt: committedAt,
			}

			// Line counts need a per-commit detail call; when the breaker
			// trips the remaining commits are zero-filled instead.
			if !breaker.open() {
				stat, err := c.fetchCommitStat(ctx, repo, record.SHA)
				if err != nil {
					errLog.add(domain.PhaseCommitStats, err)
					breaker.failure()
				} else {
					record.Additions = stat.additions
					record.Deletions = stat.deletions
				}
			}

			records.CommitStats = append(records.CommitStats, record)
		}

		if resp == nil || resp.NextPage == 0 {
			return
		}
		listOpts.Page = resp.NextPage
	}
}

func (c *githubCollector) fetchCommitStat(ctx context.Context, repo domain.RepositorySpec, sha string) (commitStat, error) {
	cacheKey := repo.FullName() + "@" + sha
	if stat, ok := c.statsCache.Get(cacheKey); ok {
		return stat, nil
	}

	var detail *github.RepositoryCommit
	err := c.retry.do(ctx, "get commit stats", func() error {
		if err := c.governor.Wait(ctx); err != nil {
			return err
		}
		var resp *github.Response
		var apiErr error
		detail, resp, apiErr = c.client.Repositories.GetCommit(ctx, repo.Owner, repo.Name, sha, nil)
		c.observe(resp, apiErr)
		if apiErr != nil {
			return c.classify(resp, fmt.Sprintf("failed to get commit %s@%s", repo.FullName(), sha), apiErr)
		}
		return nil
	})
	if err != nil {
		return commitStat{}, err
	}

	stat := commitStat{
		additions: detail.GetStats().GetAdditions(),
		deletions: detail.GetStats().GetDeletions(),
	}
	c.statsCache.Add(cacheKey, stat)
	return stat, nil
}

// observe feeds rate-limit state from a response (or a rate limit error)
// into the shared governor.
func (c *githubCollector) observe(resp *github.Response, err error) {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		c.governor.Observe(0, rle.Rate.Reset.Time)
		return
	}
	if resp != nil && resp.Rate.Remaining >= 0 && !resp.Rate.Reset.Time.IsZero() {
		c.governor.Observe(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}

func (c *githubCollector) classify(resp *github.Response, message string, err error) *apperrors.AppError {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return apperrors.ClassifyAPIError(status, message, err)
}

func authorLogin(user *github.User) string {
	if login := user.GetLogin(); login != "" {
		return login
	}
	return "unknown"
}

func commitAuthorLogin(commit *github.RepositoryCommit) string {
	if login := commit.GetAuthor().GetLogin(); login != "" {
		return login
	}
	if name := commit.GetCommit().GetAuthor().GetName(); name != "" {
		return name
	}
	return "unknown"
}

// errorLog appends RunError entries in occurrence order for one repository.
type errorLog struct {
	repo    domain.RepositorySpec
	entries []domain.RunError
}

func newErrorLog(repo domain.RepositorySpec) *errorLog {
	return &errorLog{repo: repo}
}

func (l *errorLog) add(phase domain.CollectionPhase, err error) {
	l.entries = append(l.entries, domain.RunError{
		Repository: l.repo.FullName(),
		Phase:      phase,
		Message:    err.Error(),
		OccurredAt: time.Now().UTC(),
	})
}

// errorBreaker disables further detail fetches for a repository once its
// error count is out of proportion to the items processed, bounding wasted
// work while keeping whatever was already gathered.
type errorBreaker struct {
	max    int
	errors int
	items  int
}

func (b *errorBreaker) item()    { b.items++ }
func (b *errorBreaker) failure() { b.errors++ }

func (b *errorBreaker) open() bool {
	if b.errors >= b.max {
		return true
	}
	return b.errors >= 5 && b.errors*2 >= b.items
}
