package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v55/github"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
)

// noopGovernor satisfies RateGovernor without pacing, keeping tests fast.
type noopGovernor struct{}

func (noopGovernor) Wait(context.Context) error { return nil }

func (noopGovernor) Observe(int, time.Time) {}

func (noopGovernor) Snapshot() domain.RateLimitSnapshot { return domain.RateLimitSnapshot{} }

// recordingGovernor captures Observe calls.
type recordingGovernor struct {
	noopGovernor
	observed []domain.RateLimitSnapshot
}

func (g *recordingGovernor) Observe(remaining int, resetAt time.Time) {
	g.observed = append(g.observed, domain.RateLimitSnapshot{Remaining: remaining, ResetAt: resetAt})
}

func newTestCollector(t *testing.T, governor RateGovernor, mux *http.ServeMux) *githubCollector {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	cache, err := lru.New[string, commitStat](16)
	require.NoError(t, err)

	return &githubCollector{
		client:     client,
		governor:   governor,
		retry:      retryPolicy{maxAttempts: 2, baseDelay: time.Millisecond, logger: testLogger()},
		statsCache: cache,
		logger:     testLogger(),
	}
}

var (
	testRepoSpec = domain.RepositorySpec{Owner: "acme", Name: "widgets"}
	testWindow   = domain.TimeWindow{
		Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
)

func TestCollectPullRequestsWithinWindow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		// Sorted by updated descending. The last item was updated before the
		// window opens, which signals the end of relevant history.
		fmt.Fprint(w, `[
			{"number": 3, "user": {"login": "alice"}, "created_at": "2024-03-01T10:00:00Z", "updated_at": "2024-06-01T10:00:00Z", "merged_at": "2024-03-05T10:00:00Z"},
			{"number": 2, "user": {"login": "bob"}, "created_at": "2023-11-01T10:00:00Z", "updated_at": "2024-05-01T10:00:00Z"},
			{"number": 1, "user": {"login": "bob"}, "created_at": "2023-10-01T10:00:00Z", "updated_at": "2023-12-01T10:00:00Z"}
		]`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number": 3, "additions": 120, "deletions": 30, "commits": 4}`)
	})

	c := newTestCollector(t, noopGovernor{}, mux)
	records, errs := c.Collect(context.Background(), testRepoSpec, testWindow, domain.CollectionOptions{})

	assert.Empty(t, errs)
	require.Len(t, records.PullRequests, 1, "only the PR created inside the window survives")

	pr := records.PullRequests[0]
	assert.Equal(t, 3, pr.Number)
	assert.Equal(t, "alice", pr.AuthorLogin)
	assert.Equal(t, 120, pr.Additions)
	assert.Equal(t, 30, pr.Deletions)
	assert.Equal(t, 4, pr.CommitCount)
	require.NotNil(t, pr.MergedAt)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), pr.MergedAt.UTC())
}

func TestCollectReviews(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"number": 5, "user": {"login": "alice"}, "created_at": "2024-03-01T10:00:00Z", "updated_at": "2024-03-02T10:00:00Z"}]`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/5", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number": 5, "additions": 1, "deletions": 1, "commits": 1}`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/5/reviews", func(w http.ResponseWriter, r *http.Request) {
		// The same reviewer approving twice counts once.
		fmt.Fprint(w, `[
			{"user": {"login": "carol"}, "state": "APPROVED"},
			{"user": {"login": "bob"}, "state": "CHANGES_REQUESTED"},
			{"user": {"login": "bob"}, "state": "APPROVED"}
		]`)
	})

	c := newTestCollector(t, noopGovernor{}, mux)
	records, errs := c.Collect(context.Background(), testRepoSpec, testWindow, domain.CollectionOptions{CollectReviews: true})

	assert.Empty(t, errs)
	require.Len(t, records.PullRequests, 1)
	assert.Equal(t, []string{"bob", "carol"}, records.PullRequests[0].Reviewers)
	assert.Equal(t, 2, records.PullRequests[0].ReviewCount)
}

func TestCollectDetailFailureKeepsListFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"number": 9, "user": {"login": "alice"}, "created_at": "2024-03-01T10:00:00Z", "updated_at": "2024-03-02T10:00:00Z"}]`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/9", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	})

	c := newTestCollector(t, noopGovernor{}, mux)
	records, errs := c.Collect(context.Background(), testRepoSpec, testWindow, domain.CollectionOptions{})

	require.Len(t, records.PullRequests, 1)
	assert.Equal(t, 9, records.PullRequests[0].Number)
	assert.Equal(t, "alice", records.PullRequests[0].AuthorLogin)
	assert.Zero(t, records.PullRequests[0].Additions)

	require.Len(t, errs, 1)
	assert.Equal(t, domain.PhasePRList, errs[0].Phase)
	assert.Equal(t, "acme/widgets", errs[0].Repository)
}

func TestCollectReviewFailureKeepsOtherFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"number": 5, "user": {"login": "alice"}, "created_at": "2024-03-01T10:00:00Z", "updated_at": "2024-03-02T10:00:00Z"}]`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/5", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number": 5, "additions": 42, "deletions": 7, "commits": 2}`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/5/reviews", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	})

	c := newTestCollector(t, noopGovernor{}, mux)
	records, errs := c.Collect(context.Background(), testRepoSpec, testWindow, domain.CollectionOptions{CollectReviews: true})

	require.Len(t, records.PullRequests, 1)
	assert.Equal(t, 42, records.PullRequests[0].Additions)
	assert.Empty(t, records.PullRequests[0].Reviewers)

	require.Len(t, errs, 1)
	assert.Equal(t, domain.PhaseReviews, errs[0].Phase)
}

func TestCollectCommitStats(t *testing.T) {
	detailCalls := map[string]int{}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/acme/widgets/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"sha": "aaa", "author": {"login": "alice"}, "commit": {"author": {"name": "Alice", "date": "2024-03-12T00:00:00Z"}}},
			{"sha": "bbb", "commit": {"author": {"name": "Bob Builder", "date": "2024-04-01T00:00:00Z"}}}
		]`)
	})
	mux.HandleFunc("/repos/acme/widgets/commits/aaa", func(w http.ResponseWriter, r *http.Request) {
		detailCalls["aaa"]++
		fmt.Fprint(w, `{"sha": "aaa", "stats": {"additions": 50, "deletions": 5, "total": 55}}`)
	})
	mux.HandleFunc("/repos/acme/widgets/commits/bbb", func(w http.ResponseWriter, r *http.Request) {
		detailCalls["bbb"]++
		fmt.Fprint(w, `{"sha": "bbb", "stats": {"additions": 10, "deletions": 1, "total": 11}}`)
	})

	c := newTestCollector(t, noopGovernor{}, mux)
	opts := domain.CollectionOptions{CollectCommitStats: true}

	records, errs := c.Collect(context.Background(), testRepoSpec, testWindow, opts)
	assert.Empty(t, errs)
	require.Len(t, records.CommitStats, 2)

	assert.Equal(t, "alice", records.CommitStats[0].AuthorLogin)
	assert.Equal(t, 50, records.CommitStats[0].Additions)
	// No GitHub account linked; fall back to the git author name.
	assert.Equal(t, "Bob Builder", records.CommitStats[1].AuthorLogin)

	// A second collection hits the stats cache instead of the API.
	_, errs = c.Collect(context.Background(), testRepoSpec, testWindow, opts)
	assert.Empty(t, errs)
	assert.Equal(t, 1, detailCalls["aaa"])
	assert.Equal(t, 1, detailCalls["bbb"])
}

func TestCollectCommitStatsEmptyRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/acme/widgets/commits", func(w http.ResponseWriter, r *http.Request) {
		// GitHub reports 409 for repositories with no commits.
		http.Error(w, `{"message": "Git Repository is empty."}`, http.StatusConflict)
	})

	c := newTestCollector(t, noopGovernor{}, mux)
	records, errs := c.Collect(context.Background(), testRepoSpec, testWindow, domain.CollectionOptions{CollectCommitStats: true})

	assert.Empty(t, errs)
	assert.Empty(t, records.CommitStats)
}

func TestCollectCommitDetailFailureZeroFills(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/acme/widgets/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"sha": "ccc", "author": {"login": "alice"}, "commit": {"author": {"name": "Alice", "date": "2024-03-12T00:00:00Z"}}}]`)
	})
	mux.HandleFunc("/repos/acme/widgets/commits/ccc", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	})

	c := newTestCollector(t, noopGovernor{}, mux)
	records, errs := c.Collect(context.Background(), testRepoSpec, testWindow, domain.CollectionOptions{CollectCommitStats: true})

	require.Len(t, records.CommitStats, 1, "the commit is kept with zero line counts")
	assert.Equal(t, "ccc", records.CommitStats[0].SHA)
	assert.Zero(t, records.CommitStats[0].Additions)

	require.Len(t, errs, 1)
	assert.Equal(t, domain.PhaseCommitStats, errs[0].Phase)
}

func TestCollectObservesRateLimitHeaders(t *testing.T) {
	reset := time.Now().Add(20 * time.Minute).Unix()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Limit", "5000")
		w.Header().Set("X-Ratelimit-Remaining", "4321")
		w.Header().Set("X-Ratelimit-Reset", fmt.Sprintf("%d", reset))
		fmt.Fprint(w, `[]`)
	})

	governor := &recordingGovernor{}
	c := newTestCollector(t, governor, mux)
	_, errs := c.Collect(context.Background(), testRepoSpec, testWindow, domain.CollectionOptions{})

	assert.Empty(t, errs)
	require.NotEmpty(t, governor.observed)
	assert.Equal(t, 4321, governor.observed[0].Remaining)
}

func TestErrorBreaker(t *testing.T) {
	t.Run("absolute limit", func(t *testing.T) {
		b := &errorBreaker{max: 10}
		for i := 0; i < 200; i++ {
			b.item()
		}
		for i := 0; i < 9; i++ {
			b.failure()
		}
		assert.False(t, b.open())
		b.failure()
		assert.True(t, b.open())
	})

	t.Run("proportional limit", func(t *testing.T) {
		b := &errorBreaker{max: 10}
		for i := 0; i < 8; i++ {
			b.item()
		}
		for i := 0; i < 5; i++ {
			b.failure()
		}
		assert.True(t, b.open(), "5 errors out of 8 items is out of proportion")
	})

	t.Run("few errors over many items stays closed", func(t *testing.T) {
		b := &errorBreaker{max: 10}
		for i := 0; i < 100; i++ {
			b.item()
		}
		for i := 0; i < 5; i++ {
			b.failure()
		}
		assert.False(t, b.open())
	})
}
