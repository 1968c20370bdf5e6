package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/datex/internal/core/api"
	"github.com/solatis/datex/internal/core/db"
	"github.com/solatis/datex/internal/core/httpapi"
	"github.com/solatis/datex/internal/core/metrics"
	"github.com/solatis/datex/internal/core/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC explorer service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().Int("http-port", 8061, "HTTP gateway and metrics port (0 disables)")
	serveCmd.Flags().String("rules", "", "rule set YAML file (default: built-in SM2 rule set)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.ExplorerAPI.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.ExplorerAPI.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("http-port") {
		cfg.ExplorerAPI.HTTPPort, _ = cmd.Flags().GetInt("http-port")
	}
	if cmd.Flags().Changed("rules") {
		cfg.Dataset.RuleSet, _ = cmd.Flags().GetString("rules")
	}

	compiled, err := compileRuleSet(cfg.Dataset.RuleSet)
	if err != nil {
		return err
	}

	readings, queries, closeDB, err := openReadings(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	var cache api.CatalogCache
	if cfg.Dataset.CacheCatalog {
		cache = db.NewCatalogStore(queries)
	}

	m := metrics.New()
	service, err := api.NewExplorerService(ctx, compiled, readings, cache, cfg, logger, api.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(&cfg.ExplorerAPI, service, logger, server.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var gateway *httpapi.Server
	if cfg.ExplorerAPI.HTTPPort != 0 {
		addr := fmt.Sprintf("%s:%d", cfg.ExplorerAPI.Host, cfg.ExplorerAPI.HTTPPort)
		router := httpapi.NewRouter(service, m.Handler(), logger)
		gateway = httpapi.NewServer(addr, httpapi.Handler(router, logger), logger)
	}

	logger.Info("starting datex explorer",
		"version", Version,
		"host", cfg.ExplorerAPI.Host,
		"port", cfg.ExplorerAPI.Port,
		"rule_set", compiled.Fingerprint)

	errChan := make(chan error, 2)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()
	if gateway != nil {
		go func() {
			errChan <- gateway.Start()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		if gateway != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := gateway.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http gateway shutdown", "error", err)
			}
		}
		return grpcServer.Shutdown(context.Background())
	}
}
