// Package courier provides an offline-resilient message delivery and
// synchronization subsystem for Go with a bounded in-memory queue, durable
// persistence, circuit-breaker delivery, acknowledgment tracking and vector
// clock based cross-agent synchronization.
//
// Works both as a library for embedding in your application AND as a
// standalone microservice with REST API.
//
// # Features
//
//   - Bounded FIFO queue (100 messages default) with durable mirror in SQL
//   - Delivery retries with fixed per-message delay and per-route circuit breakers
//   - Acknowledgment tracking with 5-minute timeout sweeps
//   - Connectivity state machine fed by an external oracle
//   - Reconnection with exponential backoff + jitter: 1s → 2s → 4s → 8s → 16s → 30s (max, 10 attempts)
//   - Offline resynchronization: replay pending messages after reconnection
//   - Vector clock synchronization with timestamp-wins conflict resolution
//   - Gap-free sequence log validation every 5 seconds while online
//   - Dead letter list with resolution tracking and statistics
//   - Multi-Database Support: MySQL, PostgreSQL, SQLite via Relica adapters
//   - Options Pattern for service configuration
//   - Pluggable Logger and NotificationService
//   - Embedded Migrations for easy database setup
//
// # Quick Start
//
// First, apply the database migrations:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/courier"
//	    "github.com/coregx/courier/adapters/relica"
//	    "github.com/coregx/courier/migrations"
//	    _ "github.com/go-sql-driver/mysql"
//	)
//
//	db, _ := sql.Open("mysql", "user:pass@tcp(localhost:3306)/courier?parseTime=true")
//
//	if err := migrations.ApplyAll(db); err != nil {
//	    log.Fatal(err)
//	}
//
// Use production-ready Relica adapters and wire the subsystem:
//
//	stores := relica.NewStores(db, "mysql")
//
//	svc, _ := courier.New(
//	    courier.DefaultConfig("agent-1"),
//	    courier.Stores{
//	        Messages:  stores.Messages,
//	        States:    stores.States,
//	        Log:       stores.Log,
//	        Sequences: stores.Sequences,
//	        Acks:      stores.Acks,
//	    },
//	    logger,
//	)
//
//	// Run background loops (processing, consistency, ack sweeps, cleanup)
//	ctx := context.Background()
//	go svc.Run(ctx)
//
// Send a message:
//
//	msg := model.NewMessage(model.MessageTypeTask, model.PriorityMedium,
//	    "narrator", "rules", json.RawMessage(`{"action":"roll","dice":"d20"}`))
//	err := svc.SendMessage(ctx, msg)
//
// React to connectivity changes reported by your platform:
//
//	svc.HandleOffline(ctx) // starts the reconnection schedule
//	svc.HandleOnline(ctx)  // resets backoff, replays pending messages
//
// # Message Flow
//
//  1. SEND
//     SendMessage → validate → persist (pending) → enqueue (FIFO)
//
//  2. PROCESS (Background)
//     Processor → Dequeue → Deliver through circuit breaker
//     → On Success: mark SENT, create acknowledgment, synchronize clock
//     → On Failure: re-enqueue with incremented retry count
//     → After max retries: mark FAILED, append failure marker, dead letter
//
//  3. OFFLINE / ONLINE
//     Offline: queue paused, reconnection backoff starts
//     Online: backoff reset, pending messages replayed, clocks reconciled
//
// # Database Schema
//
// The library requires these tables (created via embedded migrations):
//
//	courier_message       - Durable message mirror with delivery status
//	courier_state         - Queue snapshot and connectivity singletons
//	courier_sequence      - Vector clock sequence log
//	courier_ack           - Acknowledgment records
//	courier_journal       - Delivered message log (append-only)
//	courier_journal_failure - Permanent failure markers
//
// Supports MySQL, PostgreSQL, and SQLite via Relica adapters.
//
// # Examples
//
// See the examples/ directory for a complete working example, and
// cmd/courier-server for the standalone REST service.
package courier
