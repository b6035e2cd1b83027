package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/h1bexplorer/internal/api"
	"github.com/h1bexplorer/internal/app"
	"github.com/h1bexplorer/internal/config"
	"github.com/h1bexplorer/internal/logging"
	"github.com/h1bexplorer/internal/version"
)

func main() {
	// Command line flags
	var (
		configPath    = flag.String("config", "config.yaml", "Path to configuration file")
		port          = flag.Int("port", 0, "HTTP server port (overrides config)")
		host          = flag.String("host", "", "HTTP server host (overrides config)")
		showVersion   = flag.Bool("version", false, "Show version information")
		createExample = flag.String("create-config", "", "Write config.example.yaml into this directory and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("H-1B Explorer Server %s\n", version.GetFullVersionInfo())
		os.Exit(0)
	}

	if *createExample != "" {
		if err := config.CreateExampleConfig(*createExample); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration first
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}

	if err := logging.Initialize(cfg.ServerLogging.ToLogging()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	logging.Info("H-1B Explorer server starting",
		slog.String("version", version.GetFullVersionInfo()),
		slog.String("config", *configPath),
		slog.String("driver", cfg.Database.Driver))

	components, err := app.New(cfg)
	if err != nil {
		logging.Fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing dataset is logged, not fatal
	_ = components.Probe(ctx, 10*time.Second)

	if components.Snapshots != nil && cfg.Snapshot.BuildOnStart {
		go func() {
			if _, err := components.Snapshots.Build(ctx); err != nil {
				logging.Warn("Startup snapshot build failed", logging.Err(err))
			}
		}()
	}

	apiServer := api.New(components.Views, api.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RequestTimeout: cfg.Server.RequestTimeout,
		AdminToken:     cfg.Server.AdminToken,
	})
	apiServer.SetHealthChecker(&serverHealthChecker{
		app:       components,
		startTime: time.Now(),
	})
	apiServer.SetConnectionResetter(components)
	if components.Cached != nil {
		apiServer.SetCacheController(components.Cached)
	}

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           apiServer.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logging.Info("Server listening", slog.String("address", "http://"+cfg.Server.Address()))
		logging.Infof("  REST API: http://%s/api/summary", cfg.Server.Address())
		logging.Infof("  Metrics:  http://%s/metrics", cfg.Server.Address())
		if cfg.Server.AdminToken == "" {
			logging.Info("  Admin routes disabled (server.admin_token not set)")
		}

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logging.Info("Server shutting down")

	// Graceful HTTP server shutdown with 15s deadline
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("Graceful shutdown timed out, forcing close", logging.Err(err))
		if err := server.Close(); err != nil {
			logging.Error("Server force close error", logging.Err(err))
		}
	}

	logging.Info("Server stopped")
}
