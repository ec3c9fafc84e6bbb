package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netconfd/internal/application/polling"
	"netconfd/internal/infrastructure/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health and metrics and probe the required tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	cfg := state.cfg
	logger := state.logger
	healthService := state.container.GetHealthService()

	hostname, _ := os.Hostname()
	metrics.SetAgentInfo(version, hostname)

	if err := state.container.Prepare(ctx); err != nil {
		return err
	}
	if err := healthService.ProbeTools(); err != nil {
		logger.WithError(err).Warn("Tool probe failed")
	}

	mux := http.NewServeMux()
	mux.Handle("/", healthService)
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              ":" + cfg.Health.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Health.Port).Info("Health check server started (with /metrics)")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.WithError(err).Error("Health check server failed")
		}
	}()

	strategy := polling.NewExponentialBackoffStrategy(
		cfg.Health.ProbeInterval,
		cfg.Health.ProbeMaxInterval,
		cfg.Health.ProbeBackoffFactor,
		logger,
	)
	logger.WithFields(logrus.Fields{
		"backend":       state.container.GetBackend().Name(),
		"base_interval": cfg.Health.ProbeInterval,
		"max_interval":  cfg.Health.ProbeMaxInterval,
	}).Info("netconfd started")

	err := polling.NewPollingController(strategy, logger).Start(ctx, func(context.Context) error {
		return healthService.ProbeTools()
	})

	logger.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.WithError(shutdownErr).Error("Failed to shutdown health check server")
	}

	if err == context.Canceled {
		return nil
	}
	return err
}
