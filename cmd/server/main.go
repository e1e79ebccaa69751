/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the presence engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (defaults, config file, PRESENCE_* env)
  3. Build the zap logger
  4. Initialize SQLite store
  5. Create the engine and API handler
  6. Start the stale check-in monitor
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (optional)
  -port    Overrides server.port
  -db      Overrides db.path; ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the monitor
  4. Close database connection
  5. Exit

EXAMPLES:
  ./server -config=./config.yaml
  PRESENCE_POLICY_TIMEZONE=Asia/Jakarta PRESENCE_LOG_FORMAT=console ./server
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: Configuration keys and defaults
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

	"go.uber.org/zap"

	"github.com/warp/presence-engine/api"
	"github.com/warp/presence-engine/attendance"
	"github.com/warp/presence-engine/config"
	"github.com/warp/presence-engine/logger"
	"github.com/warp/presence-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	policy, err := cfg.AttendancePolicy()
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	engine := attendance.NewEngine(policy, store, zl)
	handler := api.NewHandler(engine, store, zl)

	monitor := api.NewStaleCheckInMonitor(engine, zl)
	monitor.Enabled = cfg.Monitor.Enabled
	monitor.Interval = cfg.Monitor.Interval
	monitor.LookbackDays = cfg.Monitor.LookbackDays
	handler.Monitor = monitor
	monitor.Start()
	defer monitor.Stop()

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.CORS.AllowOrigins,
		Scenarios:      cfg.Server.DemoScenarios,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Path),
			zap.String("timezone", policy.Location.String()),
			zap.Bool("demo_scenarios", cfg.Server.DemoScenarios),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	zl.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zl.Info("server stopped")
	return nil
}
