package model

import "time"

// AckStatus represents the lifecycle state of a delivery acknowledgment.
type AckStatus string

const (
	// AckStatusPending indicates the acknowledgment awaits receiver confirmation.
	AckStatusPending AckStatus = "pending"

	// AckStatusReceived indicates the receiver confirmed receipt.
	AckStatusReceived AckStatus = "received"

	// AckStatusProcessed indicates the receiver fully processed the message.
	AckStatusProcessed AckStatus = "processed"

	// AckStatusFailed indicates delivery failed or the acknowledgment timed out.
	AckStatusFailed AckStatus = "failed"
)

// Acknowledgment tracks a per-message acknowledgment record.
// Created when a message is handed to the delivery service; expires to FAILED
// if not acknowledged by TimeoutAt. Timeouts are checked lazily on
// HandleTimeout calls, not by an eagerly-running timer.
type Acknowledgment struct {
	MessageID      string     `json:"messageID" db:"message_id"`
	Status         AckStatus  `json:"status" db:"status"`
	Attempts       int        `json:"attempts" db:"attempts"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty" db:"last_attempt_at"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty" db:"acknowledged_at"`
	TimeoutAt      time.Time  `json:"timeoutAt" db:"timeout_at"`
	Error          string     `json:"error,omitempty" db:"error"`
}

// TableName returns the database table name for Acknowledgment.
func (a Acknowledgment) TableName() string {
	return tablePrefix + "ack"
}

// NewAcknowledgment creates a pending acknowledgment with the given timeout window.
func NewAcknowledgment(messageID string, timeout time.Duration) Acknowledgment {
	now := time.Now()
	return Acknowledgment{
		MessageID:     messageID,
		Status:        AckStatusPending,
		Attempts:      1,
		LastAttemptAt: &now,
		TimeoutAt:     now.Add(timeout),
	}
}

// Update transitions the acknowledgment to a new status.
// AcknowledgedAt is set only when transitioning to PROCESSED.
func (a *Acknowledgment) Update(status AckStatus, errMsg string) {
	now := time.Now()
	a.Status = status
	a.Attempts++
	a.LastAttemptAt = &now
	a.Error = errMsg
	if status == AckStatusProcessed {
		a.AcknowledgedAt = &now
	}
}

// TimeOut expires a pending acknowledgment whose window has elapsed.
// It reports whether a transition happened; calling it on any non-pending
// acknowledgment, or before the window elapsed, is a no-op.
func (a *Acknowledgment) TimeOut(now time.Time) bool {
	if a.Status != AckStatusPending {
		return false
	}
	if now.Before(a.TimeoutAt) {
		return false
	}
	a.Status = AckStatusFailed
	a.Error = "acknowledgment timeout"
	return true
}
