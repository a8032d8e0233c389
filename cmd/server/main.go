// OPERA layer service entry point
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opengeos/opera-layer-service/internal/api"
	"github.com/opengeos/opera-layer-service/internal/cmr"
	"github.com/opengeos/opera-layer-service/internal/config"
	"github.com/opengeos/opera-layer-service/internal/earthdata"
	"github.com/opengeos/opera-layer-service/internal/fetch"
	"github.com/opengeos/opera-layer-service/internal/metrics"
	"github.com/opengeos/opera-layer-service/internal/raster"
	"github.com/opengeos/opera-layer-service/internal/search"
	"github.com/opengeos/opera-layer-service/internal/settings"
	"github.com/opengeos/opera-layer-service/internal/update"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present; environment variables take precedence
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Open the settings store first: persisted preferences influence the
	// log level and the cache location below
	store, err := settings.NewStore(cfg.Settings.File)
	if err != nil {
		return fmt.Errorf("failed to open settings store: %w", err)
	}
	prefs := store.Get()

	// Set up logger
	logLevel := cfg.Logging.Level
	if prefs.Debug {
		logLevel = "debug"
	}
	logger := setupLogger(logLevel, cfg.Logging.Format)

	logger.Info("starting OPERA layer service",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	metrics.ExposeBuildInfo(version)

	// Load product definitions
	var products *config.ProductRegistry
	if cfg.Service.ProductsDir != "" {
		products, err = config.LoadProducts(cfg.Service.ProductsDir)
		if err != nil {
			logger.Warn("failed to load products, using built-in registry",
				"dir", cfg.Service.ProductsDir,
				"error", err,
			)
			products = config.DefaultProducts()
		}
	} else {
		products = config.DefaultProducts()
	}
	logger.Info("loaded products", "count", products.Count())

	// Resolve the netrc path used for Earthdata credentials
	netrcPath := cfg.Earthdata.CredentialsFile
	if netrcPath == "" {
		netrcPath, err = earthdata.DefaultNetrcPath()
		if err != nil {
			return fmt.Errorf("failed to resolve netrc path: %w", err)
		}
	}

	// Create the CMR search service
	cmrClient := cmr.NewClient(cfg.CMR.BaseURL, cfg.CMR.Provider, cfg.CMR.Timeout).WithLogger(logger)
	searchSvc := search.NewService(cmrClient, products, cfg.Search).
		WithSettings(store).
		WithLogger(logger)
	logger.Info("using CMR catalog", "base_url", cfg.CMR.BaseURL, "provider", cfg.CMR.Provider)

	// Create the asset downloader; a saved cache directory preference
	// takes precedence over the environment
	cacheDir := cfg.Cache.Dir
	if prefs.CacheDir != "" {
		cacheDir = prefs.CacheDir
	}
	downloader, err := fetch.NewDownloader(fetch.Config{
		CacheDir: cacheDir,
		Credentials: func() (earthdata.Credentials, error) {
			return earthdata.ReadNetrc(netrcPath)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create downloader: %w", err)
	}
	downloader = downloader.WithLogger(logger)
	logger.Info("asset cache ready", "dir", downloader.CacheDir())
	logger.Info("settings loaded", "path", store.Path())

	builder := raster.NewBuilder(downloader, store).WithLogger(logger)
	ursClient := earthdata.NewClient(cfg.Earthdata.URSBaseURL, cfg.Earthdata.Timeout).WithLogger(logger)
	checker := update.NewChecker(cfg.Update.FeedBaseURL, cfg.Update.RepoOwner, cfg.Update.RepoName, cfg.Update.Timeout).WithLogger(logger)

	// Create handlers and router
	handlers := api.NewHandlers(cfg, version, searchSvc, builder, downloader, store, ursClient, checker, netrcPath, logger)
	router := api.NewRouter(handlers, logger)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
