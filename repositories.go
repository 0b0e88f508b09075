package courier

import (
	"context"
	"time"

	"github.com/coregx/courier/model"
)

// MessageStore defines the persistence interface for stored messages.
// The store is the durable side of the queue: messages outlive the in-memory
// entry and are replayed from here after a restart or reconnection.
//
// All write operations must be atomic at single-record granularity; no
// multi-record transactions are assumed across components. Implementations
// must be safe for concurrent use.
type MessageStore interface {
	// StoreMessage persists a message projection.
	// Storing an already known id overwrites the previous record.
	StoreMessage(ctx context.Context, m *model.StoredMessage) error

	// GetMessage retrieves a stored message by ID.
	// Returns ErrNoData if not found.
	GetMessage(ctx context.Context, id string) (model.StoredMessage, error)

	// UpdateMessageStatus transitions the persisted status of a message.
	// lastError may be empty.
	UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, lastError string) error

	// GetPendingMessages retrieves all messages with status=pending,
	// ordered by created_at ASC (FIFO replay order).
	// Returns ErrNoData if none exist.
	GetPendingMessages(ctx context.Context) ([]model.StoredMessage, error)

	// ClearOldMessages deletes sent and acknowledged messages older than
	// maxAge. Pending and failed messages are never deleted.
	// Returns the number of deleted messages.
	ClearOldMessages(ctx context.Context, maxAge time.Duration) (int, error)
}

// StateStore persists the queue snapshot and the connectivity record,
// each a singleton keyed "current".
type StateStore interface {
	// SaveQueueState overwrites the current queue snapshot.
	SaveQueueState(ctx context.Context, st model.QueueState) error

	// LoadQueueState retrieves the current queue snapshot.
	// Returns ErrNoData if no snapshot was ever written.
	LoadQueueState(ctx context.Context) (model.QueueState, error)

	// SaveConnectivityState overwrites the current connectivity record.
	SaveConnectivityState(ctx context.Context, st model.ConnectionState) error

	// LoadConnectivityState retrieves the current connectivity record.
	// Returns ErrNoData if no record was ever written.
	LoadConnectivityState(ctx context.Context) (model.ConnectionState, error)
}

// DeliveryLog is the external append-only durability log.
// Delivered messages and permanent-failure markers are appended here for
// cross-device durability; the log is never read back by this subsystem.
type DeliveryLog interface {
	// AppendDelivery appends a delivered-message row.
	AppendDelivery(ctx context.Context, r *model.DeliveryRecord) error

	// AppendFailure appends a FAILED_DELIVERY marker row.
	AppendFailure(ctx context.Context, r *model.FailureRecord) error
}

// SequenceStore is the external sequence log holding one MessageSequence per
// synchronized message. Records are append-only except for conflict
// resolution overwrites.
type SequenceStore interface {
	// Save appends a new sequence record.
	Save(ctx context.Context, s *model.MessageSequence) error

	// Update overwrites an existing sequence record after conflict resolution.
	Update(ctx context.Context, s *model.MessageSequence) error

	// FindByMessageID retrieves the sequence record for a message.
	// Returns ErrNoData if not found.
	FindByMessageID(ctx context.Context, messageID string) (model.MessageSequence, error)

	// FindByAgent retrieves all sequence records produced by an agent,
	// ordered by sequence_number ASC.
	FindByAgent(ctx context.Context, agentID string) ([]model.MessageSequence, error)

	// ListAll retrieves every sequence record ordered by sequence_number ASC.
	// Used by consistency checks and full resynchronization.
	// Returns ErrNoData if the log is empty.
	ListAll(ctx context.Context) ([]model.MessageSequence, error)
}

// AckStore defines the persistence interface for acknowledgment records,
// keyed by message id.
type AckStore interface {
	// Save creates or overwrites an acknowledgment record.
	Save(ctx context.Context, a *model.Acknowledgment) error

	// Load retrieves the acknowledgment for a message.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, messageID string) (model.Acknowledgment, error)

	// FindPending retrieves all acknowledgments still in pending status,
	// for lazy timeout sweeps.
	FindPending(ctx context.Context) ([]model.Acknowledgment, error)
}
