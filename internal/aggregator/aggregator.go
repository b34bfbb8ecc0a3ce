package aggregator

import (
	"fmt"
	"time"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
	apperrors "github.com/tatematsu-k/github-dashboard/internal/errors"
)

// Aggregates holds the folded views of one run's record stream.
type Aggregates struct {
	Contributors  map[string]*domain.ContributorAggregate
	Monthly       map[string]*domain.MonthlyAggregate
	CodeFrequency map[string]*domain.CodeFrequencyBucket
	Skipped       []domain.RunError
	RecordCount   int
}

// Fold reduces raw per-repo records into contributor-keyed and month-keyed
// aggregate tables and a code-frequency series. It is a pure function of its
// inputs: commutative and associative over records, deduplicated by PR
// number and commit SHA, so arrival order and repetition never change the
// totals. Malformed records are skipped and logged, never propagated.
func Fold(records []*domain.RepoRecords) *Aggregates {
	agg := &Aggregates{
		Contributors:  make(map[string]*domain.ContributorAggregate),
		Monthly:       make(map[string]*domain.MonthlyAggregate),
		CodeFrequency: make(map[string]*domain.CodeFrequencyBucket),
	}

	seenPRs := domain.NewStringSet()
	seenCommits := domain.NewStringSet()

	for _, repo := range records {
		if repo == nil {
			continue
		}
		repoName := repo.Repo.FullName()

		for _, pr := range repo.PullRequests {
			key := fmt.Sprintf("%s#%d", repoName, pr.Number)
			if seenPRs.Has(key) {
				continue
			}
			seenPRs.Add(key)
			agg.foldPullRequest(repoName, pr)
		}

		for _, cs := range repo.CommitStats {
			key := repoName + "@" + cs.SHA
			if seenCommits.Has(key) {
				continue
			}
			seenCommits.Add(key)
			agg.foldCommitStat(repoName, cs)
		}
	}

	return agg
}

func (a *Aggregates) foldPullRequest(repoName string, pr domain.PullRequestRecord) {
	if pr.AuthorLogin == "" || pr.CreatedAt.IsZero() {
		a.skip(repoName, domain.PhasePRList, fmt.Sprintf("malformed pull request record #%d", pr.Number))
		return
	}
	a.RecordCount++

	createdMonth := domain.MonthKey(pr.CreatedAt)

	contributor := a.contributor(pr.AuthorLogin)
	contributor.PRsCreated++
	contributor.Additions += pr.Additions
	contributor.Deletions += pr.Deletions
	contributor.ReposTouched.Add(repoName)

	month := a.month(createdMonth)
	month.PRsCreated++
	month.Additions += pr.Additions
	month.Deletions += pr.Deletions
	month.Contributors.Add(pr.AuthorLogin)

	if pr.MergedAt != nil {
		contributor.PRsMerged++
		a.month(domain.MonthKey(*pr.MergedAt)).PRsMerged++
	}

	// Review counts increment the reviewer's tally only; there is no
	// monthly review metric.
	for _, reviewer := range pr.Reviewers {
		if reviewer == "" {
			continue
		}
		a.contributor(reviewer).ReviewsGiven++
	}
}

func (a *Aggregates) foldCommitStat(repoName string, cs domain.CommitStatRecord) {
	if cs.AuthorLogin == "" || cs.CommittedAt.IsZero() {
		a.skip(repoName, domain.PhaseCommitStats, fmt.Sprintf("malformed commit stat record %s", cs.SHA))
		return
	}
	a.RecordCount++

	monthKey := domain.MonthKey(cs.CommittedAt)

	contributor := a.contributor(cs.AuthorLogin)
	contributor.Commits++
	contributor.Additions += cs.Additions
	contributor.Deletions += cs.Deletions
	contributor.ReposTouched.Add(repoName)

	month := a.month(monthKey)
	month.Additions += cs.Additions
	month.Deletions += cs.Deletions
	month.Contributors.Add(cs.AuthorLogin)

	freq := a.CodeFrequency[monthKey]
	if freq == nil {
		freq = &domain.CodeFrequencyBucket{}
		a.CodeFrequency[monthKey] = freq
	}
	freq.Additions += cs.Additions
	freq.Deletions += cs.Deletions
}

func (a *Aggregates) contributor(login string) *domain.ContributorAggregate {
	c := a.Contributors[login]
	if c == nil {
		c = &domain.ContributorAggregate{
			Login:        login,
			ReposTouched: domain.NewStringSet(),
		}
		a.Contributors[login] = c
	}
	return c
}

func (a *Aggregates) month(key string) *domain.MonthlyAggregate {
	m := a.Monthly[key]
	if m == nil {
		m = &domain.MonthlyAggregate{
			Month:        key,
			Contributors: domain.NewStringSet(),
		}
		a.Monthly[key] = m
	}
	return m
}

func (a *Aggregates) skip(repoName string, phase domain.CollectionPhase, message string) {
	a.Skipped = append(a.Skipped, domain.RunError{
		Repository: repoName,
		Phase:      phase,
		Message:    apperrors.NewAggregationInputError(message).Error(),
		OccurredAt: time.Now().UTC(),
	})
}
