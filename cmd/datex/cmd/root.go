package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/datex/internal/core/config"
	"github.com/solatis/datex/internal/core/db"
	"github.com/solatis/datex/internal/rules"
)

// Version is the release version reported at startup.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "datex",
	Short: "Datex time-series explorer",
	Long: `Datex classifies time-series readings into a hierarchical filter space
driven by a declarative rule set, and serves per-session exploration state
over gRPC.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from --log-level and --log-format.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(logFormat) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want json or text)", logFormat)
	}
}

// loadConfig reads the config file and applies --db-url, which wins over
// both the file and DATEX_DATASET_DB_URL.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.Dataset.DBURL = dbURL
	}
	return cfg, nil
}

// compileRuleSet loads the rule set at path, or the built-in SM2 rule set
// when path is empty.
func compileRuleSet(path string) (*rules.CompiledRuleSet, error) {
	rs := rules.SM2RuleSet()
	if path != "" {
		loaded, err := rules.LoadRuleSet(path)
		if err != nil {
			return nil, err
		}
		rs = loaded
	}
	compiled, err := rules.Compile(rs)
	if err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}
	return compiled, nil
}

// openReadings opens the database and returns its reading store, refusing
// to run against a schema with pending migrations.
func openReadings(ctx context.Context, cfg *config.Config) (*db.ReadingStore, *db.Queries, func() error, error) {
	if cfg.Dataset.DBURL == "" {
		return nil, nil, nil, fmt.Errorf("--db-url or DATEX_DATASET_DB_URL required")
	}
	database, err := db.Open(cfg.Dataset.DBURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	pending, err := db.Pending(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	if pending {
		database.Close()
		return nil, nil, nil, fmt.Errorf("database schema out of date - run 'datex migrate up' first")
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return db.NewReadingStore(database, queries), queries, database.Close, nil
}
