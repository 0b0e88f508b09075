package courier

import (
	"context"
	"sync"
	"time"

	"github.com/coregx/courier/model"
)

// DefaultDeadLetterRetention caps how many dead-letter entries are retained
// in memory for inspection. The oldest entries are dropped beyond the cap.
const DefaultDeadLetterRetention = 100

// Diagnostics counts delivered, failed and retried messages and retains a
// dead-letter queue for operator inspection. It is the only user-visible
// error surface of the subsystem; there is no interactive error UI.
type Diagnostics struct {
	mu            sync.Mutex
	delivered     int64
	failed        int64
	retried       int64
	deadLetters   []model.DeadLetterEntry
	retention     int
	notifications NotificationService
	logger        Logger
}

// DiagnosticsOption configures Diagnostics.
type DiagnosticsOption func(*Diagnostics) error

// WithDeadLetterRetention overrides the in-memory dead-letter cap.
func WithDeadLetterRetention(n int) DiagnosticsOption {
	return func(d *Diagnostics) error {
		if n <= 0 {
			return NewError(ErrCodeConfiguration, "dead-letter retention must be > 0")
		}
		d.retention = n
		return nil
	}
}

// WithDiagnosticsNotifications wires an optional notification service that is
// called whenever an entry is dead-lettered.
func WithDiagnosticsNotifications(service NotificationService) DiagnosticsOption {
	return func(d *Diagnostics) error {
		if service == nil {
			return NewError(ErrCodeConfiguration, "notification service cannot be nil")
		}
		d.notifications = service
		return nil
	}
}

// NewDiagnostics creates a diagnostics collector.
func NewDiagnostics(logger Logger, opts ...DiagnosticsOption) (*Diagnostics, error) {
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	d := &Diagnostics{
		retention:     DefaultDeadLetterRetention,
		notifications: &NoOpNotificationService{},
		logger:        logger,
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// RecordDelivered counts a successful delivery.
func (d *Diagnostics) RecordDelivered() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered++
}

// RecordFailure counts a failed delivery attempt.
func (d *Diagnostics) RecordFailure() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed++
}

// RecordRetry counts a re-enqueue after a failed delivery attempt.
func (d *Diagnostics) RecordRetry() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.retried++
}

// Counters returns the delivered/failed/retried totals.
func (d *Diagnostics) Counters() (delivered, failed, retried int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delivered, d.failed, d.retried
}

// AddDeadLetter retains a permanently failed message for inspection.
// Beyond the retention cap the oldest entry is dropped.
func (d *Diagnostics) AddDeadLetter(ctx context.Context, entry model.DeadLetterEntry) {
	d.mu.Lock()
	d.deadLetters = append(d.deadLetters, entry)
	if len(d.deadLetters) > d.retention {
		dropped := d.deadLetters[0]
		d.deadLetters = d.deadLetters[1:]
		d.logger.Warnf("Dead-letter retention exceeded, dropped entry for message %s", dropped.MessageID)
	}
	d.mu.Unlock()

	d.logger.Warnf("Dead-lettered message %s (attempts=%d, reason=%s)",
		entry.MessageID, entry.AttemptCount, entry.FailureReason)

	if err := d.notifications.NotifyDeadLetter(ctx, entry); err != nil {
		d.logger.Warnf("Failed to send dead-letter notification: %v", err)
	}
}

// DeadLetters returns a copy of the retained dead-letter entries.
func (d *Diagnostics) DeadLetters() []model.DeadLetterEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]model.DeadLetterEntry, len(d.deadLetters))
	copy(out, d.deadLetters)
	return out
}

// ResolveDeadLetter marks the entry for the given message id as resolved.
// Returns false if no such entry is retained.
func (d *Diagnostics) ResolveDeadLetter(messageID, resolvedBy, note string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.deadLetters {
		if d.deadLetters[i].MessageID == messageID {
			d.deadLetters[i].Resolve(resolvedBy, note)
			return true
		}
	}
	return false
}

// Stats returns aggregate dead-letter statistics for monitoring.
func (d *Diagnostics) Stats() model.DeadLetterStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := model.DeadLetterStats{
		TotalEntries: len(d.deadLetters),
		LastUpdated:  time.Now(),
	}
	for i := range d.deadLetters {
		if d.deadLetters[i].IsResolved {
			stats.ResolvedEntries++
		} else {
			stats.UnresolvedEntries++
		}
	}
	if len(d.deadLetters) > 0 {
		stats.OldestEntryAge = int64(d.deadLetters[0].GetAge().Seconds())
	}
	return stats
}
