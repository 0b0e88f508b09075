package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// MessageStatus represents the persisted lifecycle state of a stored message.
type MessageStatus string

const (
	// MessageStatusPending indicates the message awaits delivery (or redelivery).
	MessageStatusPending MessageStatus = "pending"

	// MessageStatusSent indicates the message was handed to the durable log.
	MessageStatusSent MessageStatus = "sent"

	// MessageStatusFailed indicates delivery permanently failed.
	MessageStatusFailed MessageStatus = "failed"

	// MessageStatusAcknowledged indicates the receiver confirmed processing.
	MessageStatusAcknowledged MessageStatus = "acknowledged"
)

// StoredMessage is the persisted projection of a Message.
// It is owned exclusively by the durable store and outlives the in-memory
// queue entry, which makes offline replay possible after a restart.
type StoredMessage struct {
	ID        string         `json:"id" db:"id"`
	Type      MessageType    `json:"type" db:"type"`
	Content   []byte         `json:"content" db:"content"`
	Priority  Priority       `json:"priority" db:"priority"`
	Sender    string         `json:"sender" db:"sender"`
	Receiver  string         `json:"receiver" db:"receiver"`
	Status    MessageStatus  `json:"status" db:"status"`
	Attempts  int            `json:"attempts" db:"attempts"`
	LastError sql.NullString `json:"lastError" db:"last_error"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time      `json:"updatedAt" db:"updated_at"`
}

// TableName returns the database table name for StoredMessage.
func (s StoredMessage) TableName() string {
	return tablePrefix + "message"
}

// NewStoredMessage creates the persisted projection of a message.
// Initial status is PENDING so the message survives a crash before delivery.
func NewStoredMessage(m Message) StoredMessage {
	return StoredMessage{
		ID:        m.ID,
		Type:      m.Type,
		Content:   m.Content,
		Priority:  m.Priority,
		Sender:    m.Sender,
		Receiver:  m.Receiver,
		Status:    MessageStatusPending,
		Attempts:  m.DeliveryState.Attempts,
		CreatedAt: m.CreatedAt,
		UpdatedAt: time.Now(),
	}
}

// ToMessage reconstructs an in-memory message for replay through the queue.
// RetryCount restarts at zero; a replayed message gets a fresh retry budget.
func (s StoredMessage) ToMessage(maxRetries int) Message {
	return Message{
		ID:        s.ID,
		Type:      s.Type,
		Content:   json.RawMessage(s.Content),
		Priority:  s.Priority,
		Sender:    s.Sender,
		Receiver:  s.Receiver,
		CreatedAt: s.CreatedAt,
		DeliveryState: DeliveryState{
			Attempts:  s.Attempts,
			LastError: s.LastError.String,
		},
		MaxRetries: maxRetries,
	}
}

// IsCleanable reports whether the message may be removed by store cleanup.
// Pending and failed messages are never cleaned up; only sent or acknowledged
// messages past the age threshold are eligible.
func (s StoredMessage) IsCleanable(maxAge time.Duration) bool {
	if s.Status != MessageStatusSent && s.Status != MessageStatusAcknowledged {
		return false
	}
	return time.Since(s.CreatedAt) > maxAge
}
