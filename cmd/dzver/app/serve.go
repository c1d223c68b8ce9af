package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clemenko/dzver/internal/aggregator"
	"github.com/clemenko/dzver/internal/api"
	"github.com/clemenko/dzver/internal/cache"
	"github.com/clemenko/dzver/internal/config"
	"github.com/clemenko/dzver/internal/fetcher"
	"github.com/clemenko/dzver/internal/httpclient"
	"github.com/clemenko/dzver/internal/refresher"
	"github.com/clemenko/dzver/internal/telemetry"
	"github.com/clemenko/dzver/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the version dashboard server",
	Long: `Start the version dashboard server.

The server performs one full aggregation cycle before it starts listening,
so the first response already carries a complete snapshot, then keeps the
snapshot fresh in the background on a fixed interval.

Without --config the built-in source registry is used. A YAML config file
can override the refresh interval, the GitHub token and the source list.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 10 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, optional)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	slog.Info("Starting dzver server", "address", address)

	// Load and validate configuration
	var configOpts []config.Option
	if configPath := viper.GetString("config"); configPath != "" {
		configOpts = append(configOpts, config.WithConfigPath(configPath))
	}
	cfg, err := config.NewConfig(configOpts...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"sources", len(cfg.Sources),
		"interval", cfg.GetRefreshInterval(),
		"authenticated", cfg.GitHubToken != "")

	// One underlying pool shared by both client wrappers; the bearer token
	// is only attached to GitHub release requests.
	pool := &http.Client{Timeout: httpclient.DefaultTimeout}
	client := httpclient.NewDefaultClient(0, httpclient.WithHTTPClient(pool))
	githubClient := httpclient.NewDefaultClient(0,
		httpclient.WithHTTPClient(pool),
		httpclient.WithBearerToken(cfg.GitHubToken))

	// Assemble the aggregation core
	factory := fetcher.NewFactory(client, githubClient)
	agg := aggregator.New(factory, cfg.Sources)
	store := cache.NewStore()

	// Metrics
	telemetryProvider, err := telemetry.NewProvider(ctx, versions.GetVersionInfo().Version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	refreshMetrics, err := telemetry.NewRefreshMetrics(telemetryProvider.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create refresh metrics: %w", err)
	}

	ref := refresher.New(agg, store, cfg.GetRefreshInterval(),
		refresher.WithMetrics(refreshMetrics))

	// Warm up the cache before accepting requests, so the first response
	// never shows the loading placeholder. A fault here is fatal.
	slog.Info("Warming up version cache")
	if err := ref.RefreshOnce(ctx); err != nil {
		return fmt.Errorf("initial refresh cycle failed: %w", err)
	}

	// Start the background refresh loop
	refreshCtx, refreshCancel := context.WithCancel(context.Background())
	defer refreshCancel()
	go func() {
		if err := ref.Start(refreshCtx); err != nil {
			slog.Error("Refresh loop failed", "error", err)
		}
	}()

	// Create the HTTP server
	router := api.NewServer(store, cfg.Sources,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
		api.WithMetricsHandler(telemetryProvider.Handler()),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	if err := ref.Stop(); err != nil {
		slog.Error("Failed to stop refresh loop", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
