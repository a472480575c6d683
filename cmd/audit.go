package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matrixise/token-ledger/internal/audit"
	"github.com/matrixise/token-ledger/internal/config"
	"github.com/matrixise/token-ledger/internal/health"
	"github.com/matrixise/token-ledger/internal/logger"
	"github.com/matrixise/token-ledger/internal/scheduler"
	"github.com/matrixise/token-ledger/internal/storage/postgres"
)

var (
	interval string
	once     bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the ledger audit sweep",
	Long: `Sweep every balance and token row in the ledger and verify the
accounting identities: balances must match their historical counters and
token supply must be fully accounted for. Runs once by default, or as a
daemon on a schedule with a health endpoint.`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&interval, "interval", "", "sweep interval - duration (15m, 1h) or cron (\"*/15 * * * *\") - empty for one-time sweep")
	auditCmd.Flags().BoolVar(&once, "once", false, "sweep once and exit (default)")
}

func runAudit(cmd *cobra.Command, args []string) error {
	// Setup logger (log-level from global flag)
	logger.Setup(logLevel)

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		slog.Info("Signal received, graceful shutdown", "signal", sig)
		cancel()
	}()

	// Load config
	cfg, databaseURL, err := config.LoadWithDefaults(cfgFile)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return err
	}

	// Override log level if set in config
	if cfg.LogLevel != "" {
		logger.Setup(cfg.LogLevel)
	}

	// Use interval from flag if provided, otherwise from config
	runInterval := interval
	if runInterval == "" && cfg.Interval != "" {
		runInterval = cfg.Interval
	}

	timezone, err := cfg.Location()
	if err != nil {
		slog.Error("Invalid timezone", "timezone", cfg.Timezone, "error", err)
		return err
	}

	slog.Info("Configuration loaded",
		"config_path", cfgFile,
		"interval", runInterval,
		"batch_size", cfg.AuditBatchSize,
	)

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		return err
	}
	store := postgres.NewStore(pool)
	defer store.Close()
	slog.Info("PostgreSQL connection established")

	// Apply pending migrations
	if err := postgres.RunMigrations(ctx, databaseURL); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return err
	}

	auditor := audit.New(store, audit.Options{
		BatchSize: cfg.AuditBatchSize,
		Logger:    slog.Default(),
	})

	// Run mode: one-time or daemon
	if runInterval == "" || once {
		report, err := auditor.Run(ctx)
		if err != nil {
			return err
		}
		if !report.Clean() {
			return fmt.Errorf("audit found %d violations", len(report.Violations))
		}
		return nil
	}

	// Daemon mode with scheduler
	slog.Info("Starting daemon mode",
		"schedule", scheduler.Describe(runInterval, timezone),
		"run_immediately", cfg.RunImmediately)

	var healthChecker *health.Checker
	jobFunc := func(jobCtx context.Context) error {
		report, err := auditor.Run(jobCtx)
		if healthChecker != nil {
			healthChecker.UpdateLastRun(err == nil, err == nil && report.Clean())
		}
		return err
	}

	sched, err := scheduler.New(ctx, scheduler.Config{
		Interval:       runInterval,
		Timezone:       timezone,
		RunImmediately: cfg.RunImmediately,
		Logger:         slog.Default(),
	}, jobFunc)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		return fmt.Errorf("scheduler creation failed: %w", err)
	}
	defer sched.Stop()

	healthChecker = health.NewChecker(store, sched.ExpectedInterval())

	// Health check server (daemon mode only)
	httpPort := cfg.HTTPPort
	if httpPort == 0 {
		httpPort = 8080
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/health", healthChecker.Handler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", httpPort),
		Handler: router,
	}

	go func() {
		slog.Info("Health check server starting", "port", httpPort, "endpoint", "/health")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health server error", "error", err)
		}
	}()

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Health server shutdown error", "error", err)
		}
	}()

	if err := sched.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("Shutdown requested, stopping daemon")
	return nil
}
