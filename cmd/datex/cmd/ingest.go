package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/datex/internal/core/httpapi"
	"github.com/solatis/datex/internal/core/metrics"
	"github.com/solatis/datex/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Consume readings from Kafka or MQTT into the readings table",
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().String("transport", "", "broker transport (kafka, mqtt)")
	ingestCmd.Flags().StringSlice("brokers", nil, "broker addresses")
	ingestCmd.Flags().String("topic", "", "topic or MQTT topic filter")
	ingestCmd.Flags().String("metrics-addr", "", "serve /healthz and /metrics on this address")
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("transport") {
		cfg.Ingest.Transport, _ = cmd.Flags().GetString("transport")
	}
	if cmd.Flags().Changed("brokers") {
		cfg.Ingest.Brokers, _ = cmd.Flags().GetStringSlice("brokers")
	}
	if cmd.Flags().Changed("topic") {
		cfg.Ingest.Topic, _ = cmd.Flags().GetString("topic")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	readings, _, closeDB, err := openReadings(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	source, err := ingest.NewSource(cfg.Ingest, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		ops := httpapi.NewServer(addr, httpapi.Handler(httpapi.NewOpsRouter(m.Handler()), logger), logger)
		go func() {
			if err := ops.Start(); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ops.Shutdown(shutdownCtx)
		}()
	}

	pipeline, err := ingest.NewPipeline(source, readings, cfg.Ingest.BatchSize, cfg.Ingest.FlushInterval, logger, m)
	if err != nil {
		return err
	}

	logger.Info("starting datex ingest",
		"version", Version,
		"transport", cfg.Ingest.Transport,
		"topic", cfg.Ingest.Topic,
		"batch_size", cfg.Ingest.BatchSize)

	if err := pipeline.Run(ctx); err != nil {
		return fmt.Errorf("ingest stopped: %w", err)
	}
	logger.Info("ingest stopped")
	return nil
}
