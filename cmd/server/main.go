package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"xperious/result-storage/internal/api"
	"xperious/result-storage/internal/config"
	"xperious/result-storage/internal/host"
	"xperious/result-storage/internal/logging"
	"xperious/result-storage/internal/metrics"
	"xperious/result-storage/internal/resultstorage"
	"xperious/result-storage/internal/storage"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "result-storage",
	Short: "Object store backed result storage for the image server",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server in front of the result storage",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing config.yaml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// --- Configuration ---
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Logging)
	logger.Info().
		Str("backend", cfg.ResultStorage.Backend).
		Str("bucket", cfg.ResultStorage.BucketID).
		Int("expiration_seconds", cfg.ResultStorage.ExpirationSeconds).
		Msg("configuration loaded")

	// --- Metrics ---
	var sink host.Metrics = host.NopMetrics{}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		timer, err := metrics.NewTimer(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		sink = timer
		metricsHandler = metrics.Handler(reg)
	}

	// --- Storage ---
	// The bucket is opened by the first request that needs it.
	open, err := storage.NewOpener(cfg, logger)
	if err != nil {
		return err
	}
	factory := resultstorage.NewFactory(storage.NewHandle(open))

	// --- Initialize Gin Engine ---
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, cfg, factory, sink, metricsHandler, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return serve(server, logger)
}

// serve runs server until SIGINT or SIGTERM, then shuts it down gracefully.
func serve(server *http.Server, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-quit:
	}
	logger.Info().Msg("shutting down server")

	// The server has 5 seconds to finish the requests it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info().Msg("server exited")
	return nil
}
