package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageSequence is an append-only record in the external sequence log,
// one per synchronized message. Sequence records are used to detect gaps
// (consistency checks) and causal conflicts (vector clock comparison).
type MessageSequence struct {
	ID             string      `json:"id" db:"id"`
	MessageID      string      `json:"messageID" db:"message_id"`
	AgentID        string      `json:"agentID" db:"agent_id"`
	SequenceNumber int64       `json:"sequenceNumber" db:"sequence_number"`
	VectorClock    VectorClock `json:"vectorClock" db:"-"`
	CreatedAt      time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time   `json:"updatedAt" db:"updated_at"`
}

// TableName returns the database table name for MessageSequence.
func (s MessageSequence) TableName() string {
	return tablePrefix + "sequence"
}

// NewMessageSequence creates a sequence record for a synchronized message.
// The sequence number is the sending agent's own counter at synchronization
// time, and the clock is a snapshot of the local vector clock.
func NewMessageSequence(messageID, agentID string, sequenceNumber int64, clock VectorClock) MessageSequence {
	now := time.Now()
	return MessageSequence{
		ID:             uuid.NewString(),
		MessageID:      messageID,
		AgentID:        agentID,
		SequenceNumber: sequenceNumber,
		VectorClock:    clock,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Touch updates the modification timestamp after a conflict overwrite.
func (s *MessageSequence) Touch() {
	s.UpdatedAt = time.Now()
}
