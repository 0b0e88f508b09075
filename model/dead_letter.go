package model

import (
	"time"
)

// DeadLetterEntry represents a message that exhausted all retry attempts.
//
// The dead-letter queue serves as:
//   - Failure audit log with full diagnostic information
//   - Manual intervention queue for operators
//   - Source for failure analysis and monitoring
//
// Entries remain until manually resolved or dropped by the retention cap.
type DeadLetterEntry struct {
	MessageID string      `json:"messageID"`
	Type      MessageType `json:"type"`
	Sender    string      `json:"sender"`
	Receiver  string      `json:"receiver"`
	Content   []byte      `json:"content"`

	// Failure information
	AttemptCount  int    `json:"attemptCount"`
	LastError     string `json:"lastError"`
	FailureReason string `json:"failureReason"`

	// Timing information
	FirstAttemptAt time.Time `json:"firstAttemptAt"`
	DeadLetteredAt time.Time `json:"deadLetteredAt"`

	// Lifecycle
	IsResolved     bool       `json:"isResolved"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy     string     `json:"resolvedBy,omitempty"`
	ResolutionNote string     `json:"resolutionNote,omitempty"`
}

// NewDeadLetterEntry creates a dead-letter entry from a permanently failed message.
func NewDeadLetterEntry(m Message, failureReason string) DeadLetterEntry {
	return DeadLetterEntry{
		MessageID:      m.ID,
		Type:           m.Type,
		Sender:         m.Sender,
		Receiver:       m.Receiver,
		Content:        m.Content,
		AttemptCount:   m.DeliveryState.Attempts,
		LastError:      m.DeliveryState.LastError,
		FailureReason:  failureReason,
		FirstAttemptAt: m.CreatedAt,
		DeadLetteredAt: time.Now(),
	}
}

// Resolve marks the entry as manually resolved by an operator.
func (d *DeadLetterEntry) Resolve(resolvedBy, note string) {
	now := time.Now()
	d.IsResolved = true
	d.ResolvedAt = &now
	d.ResolvedBy = resolvedBy
	d.ResolutionNote = note
}

// GetAge returns how long the entry has been in the dead-letter queue.
func (d *DeadLetterEntry) GetAge() time.Duration {
	return time.Since(d.DeadLetteredAt)
}

// IsOld checks if the entry has been dead-lettered longer than the threshold.
func (d *DeadLetterEntry) IsOld(threshold time.Duration) bool {
	return d.GetAge() > threshold
}

// DeadLetterStats represents aggregate dead-letter queue statistics.
type DeadLetterStats struct {
	TotalEntries      int       `json:"totalEntries"`
	UnresolvedEntries int       `json:"unresolvedEntries"`
	ResolvedEntries   int       `json:"resolvedEntries"`
	OldestEntryAge    int64     `json:"oldestEntryAge"` // Seconds
	LastUpdated       time.Time `json:"lastUpdated"`
}
