package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
	"github.com/tatematsu-k/github-dashboard/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collection_runs (
		run_id TEXT PRIMARY KEY,
		collected_at TIMESTAMP NOT NULL,
		since TIMESTAMP NOT NULL,
		until TIMESTAMP NOT NULL,
		repository_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		document TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_collection_runs_collected_at ON collection_runs(collected_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun persists one collection result document
func (s *sqliteStorage) SaveRun(ctx context.Context, result *domain.CollectionResult) error {
	document, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal collection result: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO collection_runs (run_id, collected_at, since, until, repository_count, error_count, document)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		result.RunID,
		result.CollectedAt,
		result.Window.Since,
		result.Window.Until,
		len(result.Repositories),
		len(result.Errors),
		string(document),
	)
	return err
}

// GetRun retrieves a run by its id
func (s *sqliteStorage) GetRun(ctx context.Context, runID string) (*domain.CollectionResult, error) {
	return s.queryRun(ctx, `SELECT document FROM collection_runs WHERE run_id = ?`, runID)
}

// GetLatestRun retrieves the most recent run
func (s *sqliteStorage) GetLatestRun(ctx context.Context) (*domain.CollectionResult, error) {
	return s.queryRun(ctx, `SELECT document FROM collection_runs ORDER BY collected_at DESC LIMIT 1`)
}

func (s *sqliteStorage) queryRun(ctx context.Context, query string, args ...interface{}) (*domain.CollectionResult, error) {
	var document string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, storage.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	var result domain.CollectionResult
	if err := json.Unmarshal([]byte(document), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection result: %w", err)
	}
	return &result, nil
}

// ListRuns lists run summaries, newest first
func (s *sqliteStorage) ListRuns(ctx context.Context, limit int) ([]*storage.RunMeta, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT run_id, collected_at, since, until, repository_count, error_count
		FROM collection_runs
		ORDER BY collected_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*storage.RunMeta
	for rows.Next() {
		var m storage.RunMeta
		if err := rows.Scan(&m.RunID, &m.CollectedAt, &m.Since, &m.Until, &m.Repositories, &m.Errors); err != nil {
			return nil, err
		}
		runs = append(runs, &m)
	}

	return runs, rows.Err()
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
