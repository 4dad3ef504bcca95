/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the absence engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env / config / flags
  2. Initialize SQLite store
  3. Wire notifier, request service, digest pipeline
  4. Start the daily digest scheduler
  5. Start HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, drain in-flight notifications
  4. Close the database

SEE ALSO:
  - config/config.go: configuration keys and defaults
  - api/server.go: router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/campuskit/absence-engine/absence"
	"github.com/campuskit/absence-engine/api"
	"github.com/campuskit/absence-engine/config"
	"github.com/campuskit/absence-engine/digest"
	"github.com/campuskit/absence-engine/directory"
	"github.com/campuskit/absence-engine/notify"
	"github.com/campuskit/absence-engine/store/sqlite"
)

func main() {
	// .env before config so viper's AutomaticEnv sees it.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}
	cfg := config.Load()

	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Mail transport: real relay when configured, log sink otherwise.
	var sender notify.Sender = notify.Log{}
	if cfg.SMTPHost != "" {
		sender = notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	async := notify.NewAsync(sender, 15*time.Second)
	pool := notify.NewPool(sender, cfg.DigestWorkers, 15*time.Second)

	// Directory: the institution's directory service stands behind
	// this in production; an empty static resolver keeps the engine
	// runnable without one.
	resolver := directory.NewStatic()

	service := absence.NewService(store, sqlite.DisciplinaryView{Store: store}, resolver, async)
	pipeline := digest.NewPipeline(store, sqlite.DisciplinaryView{Store: store}, resolver, pool)

	// Scheduler
	scheduler := api.NewDigestScheduler(pipeline, cfg.DigestAt)
	if cfg.DigestEnabled {
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start digest scheduler: %v", err)
		}
		defer scheduler.Stop()
	} else {
		log.Println("[Scheduler] disabled, not starting")
	}

	// HTTP
	handler := api.NewHandler(service, pipeline)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Let in-flight decision notifications drain before the process exits.
	async.Wait()

	log.Println("Server stopped")
}
