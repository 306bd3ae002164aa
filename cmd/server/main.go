/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tap arena server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (defaults, optional file, GUSS_* env vars)
  3. Initialize SQLite store
  4. Wire game services, user service, and token issuer
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Optional path to a YAML config file

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with defaults (guss.db, port 8080)
  ./server

  # Run with a config file
  ./server -config=./config.yaml

  # Override a single knob via environment
  GUSS_ROUND_COOLDOWN_SECONDS=10 ./server

SEE ALSO:
  - config/config.go: Configuration schema and loading
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
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

	"github.com/guss/tap-arena/api"
	"github.com/guss/tap-arena/auth"
	"github.com/guss/tap-arena/config"
	"github.com/guss/tap-arena/game"
	"github.com/guss/tap-arena/store/sqlite"
	"github.com/guss/tap-arena/users"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	// Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire services
	userSvc := users.NewService(store)
	tokens := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	rounds := game.NewRoundService(store)
	rounds.Cooldown = cfg.Round.Cooldown()
	rounds.Duration = cfg.Round.Duration()

	ledger := game.NewTapLedger(store)
	ledger.MaxAttempts = cfg.Tap.MaxAttempts

	// Initialize handler and router
	handler := api.NewHandler(rounds, ledger, userSvc, tokens)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("📊 API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
