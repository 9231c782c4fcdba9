/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment
  2. Build the zap logger
  3. Initialize SQLite store
  4. Wire domain services and API handler
  5. Start the batch scheduler (if enabled)
  6. Start server with graceful shutdown

ENVIRONMENT:
  PORT                 HTTP server port (default: 8080)
  DB_PATH              SQLite database path (default: leave-engine.db)
                       Use ":memory:" for an in-memory database
  LOG_LEVEL            debug | info | warn | error (default: info)
  ALLOWED_ORIGINS      Comma-separated CORS origins (default: *)
  SCHEDULER_ENABLED    Run the batch scheduler (default: true)
  SCHEDULER_INTERVAL   Scheduler check interval (default: 1h)
  TRIAL_DURATION_DAYS  Trial length for new tenants (default: 14)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Batch scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/api"
	"github.com/loomhr/leave-engine/config"
	"github.com/loomhr/leave-engine/event"
	"github.com/loomhr/leave-engine/leave"
	"github.com/loomhr/leave-engine/logging"
	"github.com/loomhr/leave-engine/store/sqlite"
	"github.com/loomhr/leave-engine/trial"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Domain wiring. The sqlite store implements every interface.
	publisher := event.NewLogPublisher(logger)
	ledger := leave.NewLedger(store, logger)
	catalog := leave.NewCatalog(store, logger)

	handler := &api.Handler{
		Directory: leave.NewDirectory(store, store, store, catalog, logger),
		Catalog:   catalog,
		Ledger:    ledger,
		Workflow:  leave.NewWorkflow(store, store, store, store, ledger, publisher, logger),
		Accrual:   leave.NewAccrualEngine(store, store, store, store, ledger, publisher, logger),
		Rollover:  leave.NewRolloverService(store, store, store, store, store, ledger, publisher, logger),
		Trials:    trial.NewManager(store, cfg.TrialDurationDays, publisher, logger),
		Balances:  store,
		Logger:    logger,
	}

	if cfg.SchedulerEnabled {
		scheduler := api.NewScheduler(handler, cfg.SchedulerInterval, logger)
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Addr()),
			zap.String("db", cfg.DBPath),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
