/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the snapshot ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config from environment, then apply command-line flags
  2. Initialize logging
  3. Open SQLite store and restore snapshot histories
  4. Start snapshot scheduler (if an interval is configured)
  5. Start HTTP server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port                HTTP server port (SNAPLEDGER_PORT, default 8080)
  -db                  SQLite database path (SNAPLEDGER_DB, default snapledger.db)
  -snapshot-interval   Scheduler interval, 0 disables (SNAPLEDGER_SNAPSHOT_INTERVAL)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests (SNAPLEDGER_SHUTDOWN_GRACE)
  4. Close database connection

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/snapshot-ledger/api"
	"github.com/warp/snapshot-ledger/config"
	"github.com/warp/snapshot-ledger/generic"
	"github.com/warp/snapshot-ledger/logx"
	"github.com/warp/snapshot-ledger/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", cfg.SnapshotInterval, "snapshot scheduler interval (0 disables)")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logCloser := logx.Init(logx.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	if err := run(cfg); err != nil {
		logx.Error("Server", "%v", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx := context.Background()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	bus := generic.NewEventBus()
	ledger, err := generic.OpenLedger(ctx, store, bus)
	if err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}

	// Log every snapshot boundary, whoever took it.
	subID, events := bus.Subscribe()
	defer bus.Unsubscribe(subID)
	go func() {
		for evt := range events {
			logx.Info("Ledger", "snapshot %d taken at %s", evt.ID, evt.TakenAt.Format(time.RFC3339))
		}
	}()

	scheduler := api.NewSnapshotScheduler(ledger, cfg.SnapshotInterval)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(api.NewHandler(ledger), cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info("Server", "listening on http://localhost:%d (snapshot=%d)", cfg.Port, ledger.CurrentSnapshot())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logx.Info("Server", "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logx.Info("Server", "Stopped")
	return nil
}
