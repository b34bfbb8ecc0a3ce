package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
)

// ErrRunNotFound is returned when no matching collection run exists.
var ErrRunNotFound = errors.New("collection run not found")

// RunMeta is a summary row describing one stored collection run.
type RunMeta struct {
	RunID        string    `json:"run_id"`
	CollectedAt  time.Time `json:"collected_at"`
	Since        time.Time `json:"since"`
	Until        time.Time `json:"until"`
	Repositories int       `json:"repositories"`
	Errors       int       `json:"errors"`
}

// Storage is the abstract interface for the run-history persistence layer
type Storage interface {
	// SaveRun persists one collection result document
	SaveRun(ctx context.Context, result *domain.CollectionResult) error

	// GetRun retrieves a run by its id
	GetRun(ctx context.Context, runID string) (*domain.CollectionResult, error)

	// GetLatestRun retrieves the most recent run
	GetLatestRun(ctx context.Context) (*domain.CollectionResult, error)

	// ListRuns lists run summaries, newest first
	ListRuns(ctx context.Context, limit int) ([]*RunMeta, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
