package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ariahub/internal/api"
	"ariahub/internal/ingest"
	"ariahub/internal/logger"
	"ariahub/internal/protocol/aria"
	"ariahub/internal/store"
	"ariahub/pkg/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ariahub server",
	Long: `Start the ariahub server with the specified configuration.

The server listens on a single HTTP port for both the scale's binary
endpoints and the JSON management API. The scale firmware only talks to
port 80; use a reverse proxy or port redirect when binding 80 directly
is not possible.

Examples:
  # Start with default config location
  ariahub start

  # Start with custom config file
  ariahub start --config /etc/ariahub/config.yaml

  # Start with environment variable overrides
  DATABASE_URL=postgres://user:pass@db/ariahub ariahub start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	unit, err := aria.ParseWeightUnit(cfg.WeightUnit)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		"source", configSource(GetConfigFile()),
		"log_level", cfg.Logging.Level,
		"weight_unit", unit.String(),
	)

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()
	logger.Info("Database ready", "url", cfg.Database.URL)

	pipeline := ingest.New(st, unit)

	handler := api.NewRouter(st, pipeline, api.Options{
		WeightUnit:     unit,
		MetricsEnabled: cfg.Metrics.Enabled,
		Version:        Version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	serverDone := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "port", cfg.Server.Port,
			"metrics", cfg.Metrics.Enabled)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown",
			"signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		if err := <-serverDone; err != nil {
			return err
		}
		logger.Info("Server stopped gracefully")
		return nil

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
		}
		return err
	}
}

func configSource(path string) string {
	if path == "" {
		return "defaults/environment"
	}
	return path
}
