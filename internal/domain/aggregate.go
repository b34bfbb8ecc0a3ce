package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// StringSet is a set of strings that marshals as a sorted JSON array.
type StringSet map[string]struct{}

// NewStringSet creates a set from the given members.
func NewStringSet(members ...string) StringSet {
	s := make(StringSet, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Add inserts a member into the set.
func (s StringSet) Add(member string) {
	s[member] = struct{}{}
}

// Has reports whether member is in the set.
func (s StringSet) Has(member string) bool {
	_, ok := s[member]
	return ok
}

// Sorted returns the members in ascending order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON implements json.Marshaler.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*s = NewStringSet(members...)
	return nil
}

// MonthKey formats a timestamp as the "YYYY-MM" bucket key.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// ContributorAggregate accumulates activity for one login across repositories.
type ContributorAggregate struct {
	Login        string    `json:"login"`
	Commits      int       `json:"commits"`
	PRsCreated   int       `json:"prs_created"`
	PRsMerged    int       `json:"prs_merged"`
	ReviewsGiven int       `json:"reviews_given"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	ReposTouched StringSet `json:"repos_touched"`
}

// Total is the contribution count used for leaderboard ordering.
func (c *ContributorAggregate) Total() int {
	return c.Commits + c.PRsCreated
}

// MonthlyAggregate accumulates activity for one calendar month.
type MonthlyAggregate struct {
	Month        string    `json:"month"`
	PRsCreated   int       `json:"prs_created"`
	PRsMerged    int       `json:"prs_merged"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	Contributors StringSet `json:"distinct_contributors"`
}

// CodeFrequencyBucket is one month of the additions/deletions time series.
type CodeFrequencyBucket struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// CollectionPhase names the API call category an error occurred in.
type CollectionPhase string

const (
	PhasePRList      CollectionPhase = "pr_list"
	PhaseReviews     CollectionPhase = "reviews"
	PhaseCommitStats CollectionPhase = "commit_stats"
)

// RunError records one degradation that occurred during a run. Errors are
// appended in occurrence order and never overwrite prior entries.
type RunError struct {
	Repository string          `json:"repository"`
	Phase      CollectionPhase `json:"phase"`
	Message    string          `json:"message"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RateLimitSnapshot is the last rate-limit state reported by the API.
type RateLimitSnapshot struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
