package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/datex/internal/catalog"
	"github.com/solatis/datex/internal/explorer"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Classify the stored dataset and print the catalog and default state",
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("rules", "", "rule set YAML file (default: built-in SM2 rule set)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("rules") {
		cfg.Dataset.RuleSet, _ = cmd.Flags().GetString("rules")
	}
	loc, err := cfg.Dataset.Location()
	if err != nil {
		return err
	}

	compiled, err := compileRuleSet(cfg.Dataset.RuleSet)
	if err != nil {
		return err
	}

	readings, _, closeDB, err := openReadings(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	rows, err := readings.LoadRows(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	e, err := explorer.New(compiled, rows, explorer.WithLocation(loc), explorer.WithLogger(logger))
	if err != nil {
		return err
	}

	report := struct {
		Catalog *catalog.Catalog `json:"catalog"`
		State   explorer.State   `json:"state"`
	}{e.Catalog(), e.Open()}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
