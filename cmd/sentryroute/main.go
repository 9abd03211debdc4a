package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orgoj/sentryroute/internal/component"
	"github.com/orgoj/sentryroute/internal/config"
	"github.com/orgoj/sentryroute/internal/logger"
	"github.com/orgoj/sentryroute/internal/metrics"
	"github.com/orgoj/sentryroute/internal/route"
	"github.com/orgoj/sentryroute/internal/server"
	"github.com/orgoj/sentryroute/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
)

func main() {
	// --- Configuration --- //
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	testConfig := flag.BoolP("test", "t", false, "Test configuration and exit (nginx style)")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	// Display version information if requested
	if *showVersion {
		fmt.Println(version.VersionInfo())
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("[CRITICAL] Failed to load configuration from '%s': %v\n", *configPath, err)
		os.Exit(1)
	}

	// Validate the loaded configuration
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Printf("[CRITICAL] Configuration validation failed for '%s':\n%v\n", *configPath, err)
		os.Exit(1)
	}

	if *testConfig {
		fmt.Printf("Configuration '%s' is valid.\n", *configPath)
		os.Exit(0)
	}

	// Initialize application logger
	appLogger := logger.GetAppLogger()
	if err := appLogger.SetLogLevelFromString(cfg.AppLog.Level); err != nil {
		fmt.Printf("[WARN] Invalid log level '%s', using default: %v\n", cfg.AppLog.Level, err)
	}
	appLogger.SetShowHealth(cfg.AppLog.ShowHealthLogs)
	output, err := logger.NewOutput(cfg.AppLog)
	if err != nil {
		appLogger.Fatal("Failed to open app log output '%s': %v", cfg.AppLog.Output, err)
	}
	if err := appLogger.SetOutput(output); err != nil {
		appLogger.Warn("Failed to switch app log output: %v", err)
	}

	// Log the version at startup
	appLogger.Warn("%s", version.VersionInfo())

	// --- Dependency Initialization --- //

	metrics.Register(prometheus.DefaultRegisterer)

	// A component that fails to initialize stays registered; routes using it stay silent.
	registry := component.NewRegistry(appLogger)
	if err := registry.InitComponents(cfg.Components); err != nil {
		appLogger.Warn("Some components are not available: %v", err)
	}

	routes := route.NewManager(registry, appLogger)
	if err := routes.InitRoutes(cfg.LogRoutes); err != nil {
		appLogger.Fatal("Failed to initialize one or more log routes: %v. Exiting.", err)
	}

	panicHandler := route.NewHandler(routes, &route.HandlerOptions{
		Level:     slog.LevelError,
		Category:  "server.panic",
		AutoFlush: 1,
	})

	srv, err := server.NewServer(server.Dependencies{
		Config:      cfg,
		Routes:      routes,
		AppLogger:   appLogger,
		Components:  registry,
		PanicLogger: slog.New(panicHandler),
	})
	if err != nil {
		appLogger.Fatal("Failed to create server: %v", err)
	}

	// --- Graceful Shutdown --- //

	// Start server in a goroutine so that it doesn't block.
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Fatal("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Received shutdown signal.")

	// The server has 5 seconds to finish the requests it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Warn("Server forced to shutdown: %v", err)
	}

	if err := panicHandler.Flush(); err != nil {
		appLogger.Warn("Flushing buffered records failed: %v", err)
	}
	routes.CloseAll()
	registry.CloseAll()

	appLogger.Info("SentryRoute shut down gracefully.")
	_ = appLogger.Close()
}
