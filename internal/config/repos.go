package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
)

// Defaults applied when repos.json leaves an option unset.
const (
	DefaultMaxWorkers = 3
	DefaultDays       = 365
)

// CollectionSpec is the parsed form of the repos.json config file.
type CollectionSpec struct {
	Repositories []domain.RepositorySpec  `json:"repositories" validate:"min=1,dive"`
	Options      domain.CollectionOptions `json:"options"`
}

// rawOptions uses pointers so that absent keys can be told apart from
// explicit zero values when applying defaults.
type rawOptions struct {
	CollectReviews     *bool      `json:"collect_reviews"`
	CollectCommitStats *bool      `json:"collect_commit_stats"`
	MaxWorkers         *int       `json:"max_workers"`
	Days               *int       `json:"days"`
	StartDate          *time.Time `json:"start_date"`
}

type rawSpec struct {
	Repositories []domain.RepositorySpec `json:"repositories"`
	Options      rawOptions              `json:"options"`
}

// LoadCollectionSpec reads and validates the repositories config file.
func LoadCollectionSpec(path string) (*CollectionSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read repos config %s: %w", path, err)
	}
	return ParseCollectionSpec(data)
}

// ParseCollectionSpec parses a repos config document and applies option defaults:
// max_workers 3, collect_reviews false, collect_commit_stats true, days 365.
func ParseCollectionSpec(data []byte) (*CollectionSpec, error) {
	var raw rawSpec
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse repos config: %w", err)
	}

	spec := &CollectionSpec{
		Repositories: raw.Repositories,
		Options: domain.CollectionOptions{
			CollectReviews:     false,
			CollectCommitStats: true,
			MaxWorkers:         DefaultMaxWorkers,
			Days:               DefaultDays,
			StartDate:          raw.Options.StartDate,
		},
	}
	if raw.Options.CollectReviews != nil {
		spec.Options.CollectReviews = *raw.Options.CollectReviews
	}
	if raw.Options.CollectCommitStats != nil {
		spec.Options.CollectCommitStats = *raw.Options.CollectCommitStats
	}
	if raw.Options.MaxWorkers != nil {
		spec.Options.MaxWorkers = *raw.Options.MaxWorkers
	}
	if raw.Options.Days != nil {
		spec.Options.Days = *raw.Options.Days
	}

	if err := validator.New().Struct(spec); err != nil {
		return nil, fmt.Errorf("invalid repos config: %w", err)
	}
	return spec, nil
}
