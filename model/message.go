// Package model contains all domain models and data structures for the courier system.
package model

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const tablePrefix = "courier_"

// MessageType categorizes the intent of a message exchanged between agents.
type MessageType string

const (
	// MessageTypeTask requests work from the receiving agent.
	MessageTypeTask MessageType = "TASK"

	// MessageTypeResult carries the outcome of a previously requested task.
	MessageTypeResult MessageType = "RESULT"

	// MessageTypeQuery asks the receiving agent for information.
	MessageTypeQuery MessageType = "QUERY"

	// MessageTypeResponse answers a query.
	MessageTypeResponse MessageType = "RESPONSE"

	// MessageTypeStateUpdate propagates shared state changes between agents.
	MessageTypeStateUpdate MessageType = "STATE_UPDATE"
)

// Priority indicates the relative importance of a message.
//
// Note: the queue deliberately delivers in FIFO order regardless of priority.
// Priority is stored and surfaced for advisory ordering checks only.
type Priority string

const (
	// PriorityHigh marks urgent messages.
	PriorityHigh Priority = "HIGH"

	// PriorityMedium marks normal messages.
	PriorityMedium Priority = "MEDIUM"

	// PriorityLow marks background messages.
	PriorityLow Priority = "LOW"
)

// DeliveryState tracks the delivery progress of an in-flight message.
type DeliveryState struct {
	Delivered bool   `json:"delivered"` // True once handed to the durable log
	Attempts  int    `json:"attempts"`  // Total delivery attempts so far
	LastError string `json:"lastError"` // Most recent delivery error, if any
}

// Message is a structured message exchanged between logical agents
// (e.g. a narrator agent and a rules agent).
//
// Lifecycle:
//  1. Created by a producer and enqueued
//  2. Mutated by processing/delivery (DeliveryState, RetryCount)
//  3. Removed from the queue on terminal success or dead-letter
//
// Content is an opaque structured payload. It is carried as raw JSON bytes
// and only (de)serialized at the system boundary.
type Message struct {
	ID            string          `json:"id"`
	Type          MessageType     `json:"type"`
	Content       json.RawMessage `json:"content"`
	Priority      Priority        `json:"priority"`
	Sender        string          `json:"sender"`
	Receiver      string          `json:"receiver"`
	CreatedAt     time.Time       `json:"createdAt"`
	DeliveryState DeliveryState   `json:"deliveryState"`
	RetryCount    int             `json:"retryCount"`
	MaxRetries    int             `json:"maxRetries"`
}

// DefaultMaxRetries is the retry budget granted to new messages.
const DefaultMaxRetries = 3

// NewMessage creates a message ready for enqueueing.
// A fresh UUID is assigned and MaxRetries defaults to DefaultMaxRetries.
func NewMessage(msgType MessageType, priority Priority, sender, receiver string, content json.RawMessage) Message {
	return Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Content:    content,
		Priority:   priority,
		Sender:     sender,
		Receiver:   receiver,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate checks the structural integrity of the message.
// A message missing id, type, content, priority, sender, receiver or
// timestamp must never be enqueued.
func (m Message) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ID, validation.Required),
		validation.Field(&m.Type, validation.Required, validation.In(
			MessageTypeTask, MessageTypeResult, MessageTypeQuery,
			MessageTypeResponse, MessageTypeStateUpdate,
		)),
		validation.Field(&m.Content, validation.Required),
		validation.Field(&m.Priority, validation.Required, validation.In(
			PriorityHigh, PriorityMedium, PriorityLow,
		)),
		validation.Field(&m.Sender, validation.Required),
		validation.Field(&m.Receiver, validation.Required),
		validation.Field(&m.CreatedAt, validation.Required),
	)
}

// CanRetry reports whether another delivery attempt is allowed.
func (m Message) CanRetry() bool {
	return m.RetryCount < m.MaxRetries
}

// IncrementRetry counts a re-enqueue after a failed delivery attempt.
func (m *Message) IncrementRetry() {
	m.RetryCount++
}

// RecordDelivered marks the message as successfully handed to the durable log.
func (m *Message) RecordDelivered() {
	m.DeliveryState.Delivered = true
	m.DeliveryState.Attempts++
	m.DeliveryState.LastError = ""
}

// RecordFailure records a failed delivery attempt with its error.
func (m *Message) RecordFailure(err error) {
	m.DeliveryState.Attempts++
	if err != nil {
		m.DeliveryState.LastError = err.Error()
	}
}

// PriorityRank maps a priority to a sortable rank (lower is more urgent).
// Used by the queue for advisory ordering checks.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}
