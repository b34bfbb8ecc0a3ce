package domain

import "time"

// RepositorySpec identifies one target repository, as supplied by config.
type RepositorySpec struct {
	Owner string `json:"owner" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

// FullName returns the "owner/name" form used in logs and error records.
func (r RepositorySpec) FullName() string {
	return r.Owner + "/" + r.Name
}

// CollectionOptions holds the per-run collection settings.
// StartDate, when set, overrides Days for the window lower bound.
type CollectionOptions struct {
	CollectReviews     bool       `json:"collect_reviews"`
	CollectCommitStats bool       `json:"collect_commit_stats"`
	MaxWorkers         int        `json:"max_workers" validate:"gte=1"`
	Days               int        `json:"days" validate:"gte=1"`
	StartDate          *time.Time `json:"start_date,omitempty"`
}

// TimeWindow is the [Since, Until] range bounding which activity is collected.
// It is derived once per run and shared by all collectors.
type TimeWindow struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// NewTimeWindow derives the collection window from the options.
func NewTimeWindow(opts CollectionOptions, now time.Time) TimeWindow {
	since := now.AddDate(0, 0, -opts.Days)
	if opts.StartDate != nil {
		since = *opts.StartDate
	}
	return TimeWindow{Since: since.UTC(), Until: now.UTC()}
}

// Contains reports whether t falls inside the window. Both bounds are inclusive.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Since) && !t.After(w.Until)
}

// PullRequestRecord is one pull request as read from a single API page item.
type PullRequestRecord struct {
	Number      int        `json:"number"`
	AuthorLogin string     `json:"author_login"`
	CreatedAt   time.Time  `json:"created_at"`
	MergedAt    *time.Time `json:"merged_at,omitempty"`
	Additions   int        `json:"additions"`
	Deletions   int        `json:"deletions"`
	CommitCount int        `json:"commit_count"`
	ReviewCount int        `json:"review_count"`
	Reviewers   []string   `json:"reviewers,omitempty"`
}

// CommitStatRecord holds per-commit line counts. Only populated when
// commit stats collection is enabled.
type CommitStatRecord struct {
	SHA         string    `json:"sha"`
	AuthorLogin string    `json:"author_login"`
	Additions   int       `json:"additions"`
	Deletions   int       `json:"deletions"`
	CommittedAt time.Time `json:"committed_at"`
}

// RepoRecords groups everything collected from one repository.
type RepoRecords struct {
	Repo         RepositorySpec      `json:"repository"`
	PullRequests []PullRequestRecord `json:"prs"`
	CommitStats  []CommitStatRecord  `json:"commit_stats,omitempty"`
}
