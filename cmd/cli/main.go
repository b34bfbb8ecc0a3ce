package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tatematsu-k/github-dashboard/internal/collector"
	"github.com/tatematsu-k/github-dashboard/internal/config"
	"github.com/tatematsu-k/github-dashboard/internal/domain"
	"github.com/tatematsu-k/github-dashboard/internal/runner"
	"github.com/tatematsu-k/github-dashboard/internal/storage"
	"github.com/tatematsu-k/github-dashboard/internal/storage/postgres"
	"github.com/tatematsu-k/github-dashboard/internal/storage/sqlite"
	"github.com/tatematsu-k/github-dashboard/pkg/client"
)

var (
	reposFile  string
	outputPath string
	outputJSON bool
	noStore    bool
	remote     bool
	runsLimit  int
)

var rootCmd = &cobra.Command{
	Use:   "github-dashboard",
	Short: "GitHub activity dashboard data collector",
	Long: `A CLI tool for collecting pull request, review, and commit activity
from a configured set of GitHub repositories and aggregating it by
contributor and by calendar month.`,
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect data from GitHub",
	Long:  `Collect activity data for every configured repository and write the aggregated result document.`,
	RunE:  runCollect,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest collection result",
	Long:  `Display contributor and monthly aggregates from the most recent collection run.`,
	RunE:  runShow,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past collection runs",
	RunE:  runListRuns,
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Trigger a collection run on the API server",
	RunE:  runTrigger,
}

func init() {
	collectCmd.Flags().StringVar(&reposFile, "repos", "", "repositories config file (default from REPOS_FILE)")
	collectCmd.Flags().StringVar(&outputPath, "out", "", "output path for the result document (default from OUTPUT_PATH)")
	collectCmd.Flags().BoolVar(&noStore, "no-store", false, "skip persisting the run to storage")

	showCmd.Flags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	showCmd.Flags().BoolVar(&remote, "remote", false, "fetch the result from the API server instead of local storage")

	runsCmd.Flags().BoolVar(&remote, "remote", false, "fetch run list from the API server instead of local storage")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "maximum number of runs to list")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(triggerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if reposFile != "" {
		cfg.ReposFile = reposFile
	}
	if outputPath != "" {
		cfg.OutputPath = outputPath
	}

	spec, err := config.LoadCollectionSpec(cfg.ReposFile)
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	governor := collector.NewRateGovernor(spec.Options.MaxWorkers, logger)
	coll, err := collector.NewGitHubCollector(cfg.GitHubToken, governor, logger)
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}

	result, err := runner.New(coll, governor, cfg.RunTimeout, logger).Run(context.Background(), spec.Repositories, spec.Options)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}

	if err := writeResult(cfg.OutputPath, result); err != nil {
		return err
	}
	fmt.Printf("Result written to %s\n", cfg.OutputPath)

	if !noStore {
		store, err := getStorage(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		if err := store.SaveRun(context.Background(), result); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		fmt.Printf("Run %s saved\n", result.RunID)
	}

	fmt.Printf("Collected %d contributors across %d repositories (%d errors)\n",
		len(result.Contributors), len(result.Repositories), len(result.Errors))
	fmt.Printf("Rate limit remaining: %d\n", result.RateLimit.Remaining)
	return nil
}

// writeResult writes the document to the well-known output path consumed
// by the rendering stage.
func writeResult(path string, result *domain.CollectionResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

func latestResult(cfg *config.Config) (*domain.CollectionResult, error) {
	if remote {
		return client.NewClient(cfg.APIEndpoint).GetLatestResult()
	}

	store, err := getStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	return store.GetLatestRun(context.Background())
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := latestResult(cfg)
	if err != nil {
		return fmt.Errorf("failed to get latest result: %w", err)
	}

	if outputJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("\nCollection run %s (%s)\n", result.RunID, result.CollectedAt.Format("2006-01-02 15:04"))
	fmt.Printf("Window: %s to %s\n\n", result.Window.Since.Format("2006-01-02"), result.Window.Until.Format("2006-01-02"))

	fmt.Println("Contributors:")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Login", "Commits", "PRs Created", "PRs Merged", "Reviews", "Additions", "Deletions", "Repos"})
	for _, c := range result.TopContributors() {
		table.Append([]string{
			c.Login,
			fmt.Sprintf("%d", c.Commits),
			fmt.Sprintf("%d", c.PRsCreated),
			fmt.Sprintf("%d", c.PRsMerged),
			fmt.Sprintf("%d", c.ReviewsGiven),
			fmt.Sprintf("%d", c.Additions),
			fmt.Sprintf("%d", c.Deletions),
			fmt.Sprintf("%d", len(c.ReposTouched)),
		})
	}
	table.Render()

	fmt.Println("\nMonthly activity:")
	table = tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Month", "PRs Created", "PRs Merged", "Additions", "Deletions", "Contributors"})
	for _, month := range result.MonthsAscending() {
		m := result.Monthly[month]
		table.Append([]string{
			m.Month,
			fmt.Sprintf("%d", m.PRsCreated),
			fmt.Sprintf("%d", m.PRsMerged),
			fmt.Sprintf("%d", m.Additions),
			fmt.Sprintf("%d", m.Deletions),
			fmt.Sprintf("%d", len(m.Contributors)),
		})
	}
	table.Render()

	if len(result.Errors) > 0 {
		fmt.Printf("\n%d errors occurred during collection (see result document)\n", len(result.Errors))
	}
	return nil
}

func runListRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var runs []*storage.RunMeta
	if remote {
		runs, err = client.NewClient(cfg.APIEndpoint).ListRuns(runsLimit)
	} else {
		var store storage.Storage
		store, err = getStorage(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()
		runs, err = store.ListRuns(context.Background(), runsLimit)
	}
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Run ID", "Collected At", "Since", "Until", "Repos", "Errors"})
	for _, r := range runs {
		table.Append([]string{
			r.RunID,
			r.CollectedAt.Format("2006-01-02 15:04"),
			r.Since.Format("2006-01-02"),
			r.Until.Format("2006-01-02"),
			fmt.Sprintf("%d", r.Repositories),
			fmt.Sprintf("%d", r.Errors),
		})
	}
	table.Render()
	return nil
}

func runTrigger(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	api := client.NewClient(cfg.APIEndpoint)
	if err := api.HealthCheck(); err != nil {
		return fmt.Errorf("API server is not healthy: %w", err)
	}
	if err := api.TriggerCollect(); err != nil {
		return fmt.Errorf("failed to trigger collection: %w", err)
	}

	fmt.Println("Collection started")
	return nil
}
