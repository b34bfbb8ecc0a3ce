package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/tatematsu-k/github-dashboard/internal/api"
	"github.com/tatematsu-k/github-dashboard/internal/collector"
	"github.com/tatematsu-k/github-dashboard/internal/config"
	"github.com/tatematsu-k/github-dashboard/internal/domain"
	"github.com/tatematsu-k/github-dashboard/internal/runner"
	"github.com/tatematsu-k/github-dashboard/internal/storage"
	"github.com/tatematsu-k/github-dashboard/internal/storage/postgres"
	"github.com/tatematsu-k/github-dashboard/internal/storage/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageType {
	case "postgres":
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL storage: %v", err)
		}
	default:
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite storage: %v", err)
		}
	}
	defer store.Close()

	// The collect function re-reads the repos config on every trigger so
	// repository changes take effect without a restart.
	collect := func(ctx context.Context) (*domain.CollectionResult, error) {
		spec, err := config.LoadCollectionSpec(cfg.ReposFile)
		if err != nil {
			return nil, err
		}

		governor := collector.NewRateGovernor(spec.Options.MaxWorkers, logger)
		coll, err := collector.NewGitHubCollector(cfg.GitHubToken, governor, logger)
		if err != nil {
			return nil, err
		}

		return runner.New(coll, governor, cfg.RunTimeout, logger).Run(ctx, spec.Repositories, spec.Options)
	}

	// Initialize handler and routes
	handler := api.NewHandler(store, collect, logger)
	router := api.SetupRoutes(handler)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	fmt.Printf("Starting API server on %s\n", addr)
	fmt.Printf("Storage type: %s\n", cfg.StorageType)

	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}
