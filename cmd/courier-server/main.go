// Package main provides the courier server executable with HTTP API and
// background delivery loops.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coregx/courier"
	relicastores "github.com/coregx/courier/adapters/relica"
	"github.com/coregx/courier/cmd/courier-server/internal/api"
	"github.com/coregx/courier/cmd/courier-server/internal/config"
	"github.com/coregx/courier/migrations"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SimpleLogger implements courier.Logger for standard logging.
type SimpleLogger struct{}

func (l *SimpleLogger) Debugf(format string, args ...interface{}) {
	log.Printf("[DEBUG] "+format, args...)
}
func (l *SimpleLogger) Infof(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}
func (l *SimpleLogger) Warnf(format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}
func (l *SimpleLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}
func (l *SimpleLogger) Info(message string) {
	log.Printf("[INFO] %s", message)
}

func main() {
	log.Println("Starting Courier Server v0.1.0...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Configuration loaded:")
	log.Printf("   Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("   Database: %s (%s:%d)", cfg.Database.Driver, cfg.Database.Host, cfg.Database.Port)
	log.Printf("   Agent: %s", cfg.Courier.AgentID)
	log.Printf("   Queue capacity: %d", cfg.Courier.MaxQueueSize)

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Failed to close database: %v", closeErr)
		}
	}()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Database connection established")

	if err := migrations.ApplyAll(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	log.Println("Migrations applied")

	logger := &SimpleLogger{}

	var stores *relicastores.Stores
	if cfg.Database.Prefix != "" {
		stores = relicastores.NewStoresWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)
	} else {
		stores = relicastores.NewStores(db, cfg.Database.Driver)
	}
	log.Println("Stores initialized (Relica adapters)")

	courierCfg := courier.DefaultConfig(cfg.Courier.AgentID)
	courierCfg.MaxQueueSize = cfg.Courier.MaxQueueSize
	courierCfg.MaxRetries = cfg.Courier.MaxRetries
	courierCfg.RetryDelay = time.Duration(cfg.Courier.RetryDelayMs) * time.Millisecond
	courierCfg.AckTimeout = time.Duration(cfg.Courier.AckTimeoutSec) * time.Second
	courierCfg.ProcessInterval = time.Duration(cfg.Courier.ProcessIntervalMs) * time.Millisecond

	opts := []courier.CourierOption{
		// Probe uses database reachability as the connectivity signal
		// during reconnection attempts.
		courier.WithConnectivityProbeOption(func(ctx context.Context) bool {
			return db.PingContext(ctx) == nil
		}),
	}
	if cfg.Courier.EnableNotifications {
		opts = append(opts, courier.WithNotifications(courier.NewLoggingNotificationService(logger)))
	}

	svc, err := courier.New(
		courierCfg,
		courier.Stores{
			Messages:  stores.Messages,
			States:    stores.States,
			Log:       stores.Log,
			Sequences: stores.Sequences,
			Acks:      stores.Acks,
		},
		logger,
		opts...,
	)
	if err != nil {
		log.Fatalf("Failed to create courier: %v", err)
	}
	log.Println("Courier service created")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.Printf("Starting background loops (process interval: %v)...", courierCfg.ProcessInterval)
		svc.Run(ctx)
	}()

	handler := api.NewHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/messages", handler.HandleSend)
	mux.HandleFunc("/api/v1/messages/pending", handler.HandlePendingMessages)
	mux.HandleFunc("/api/v1/deadletters", handler.HandleDeadLetters)
	mux.HandleFunc("/api/v1/deadletters/", handler.HandleResolveDeadLetter) // Note trailing slash for :id/resolve
	mux.HandleFunc("/api/v1/metrics", handler.HandleMetrics)
	mux.HandleFunc("/api/v1/connectivity/", handler.HandleConnectivity)
	mux.HandleFunc("/api/v1/health", handler.HandleHealth)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", addr)
		log.Println("API Endpoints:")
		log.Println("   POST   /api/v1/messages")
		log.Println("   GET    /api/v1/messages/pending")
		log.Println("   GET    /api/v1/deadletters")
		log.Println("   POST   /api/v1/deadletters/:id/resolve")
		log.Println("   GET    /api/v1/metrics")
		log.Println("   POST   /api/v1/connectivity/online")
		log.Println("   POST   /api/v1/connectivity/offline")
		log.Println("   GET    /api/v1/health")
		log.Println()
		log.Println("Courier Server is ready")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	cancel() // Stop background loops
	log.Println("Server stopped gracefully")
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, logger courier.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Infof("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s - %v", r.Method, r.URL.Path, time.Since(start))
	})
}
