package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
	"github.com/coregx/relica"
)

// MessageStore implements courier.MessageStore using Relica.
type MessageStore struct {
	db          *relica.DB
	tablePrefix string
}

// NewMessageStore creates a new MessageStore with default table prefix.
func NewMessageStore(sqlDB *sql.DB, driverName string) *MessageStore {
	return &MessageStore{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "courier_"}
}

// NewMessageStoreWithPrefix creates a new MessageStore with custom table prefix.
func NewMessageStoreWithPrefix(sqlDB *sql.DB, driverName, prefix string) *MessageStore {
	return &MessageStore{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *MessageStore) tableName() string {
	return r.tablePrefix + "message"
}

// StoreMessage persists a message projection, overwriting any previous record
// with the same id.
func (r *MessageStore) StoreMessage(ctx context.Context, m *model.StoredMessage) error {
	var existing model.StoredMessage
	err := r.db.WithContext(ctx).Select("id").
		From(r.tableName()).
		Where("id = ?", m.ID).
		One(&existing)

	if errors.Is(err, sql.ErrNoRows) {
		if err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Insert(); err != nil {
			return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to insert message", err)
		}
		return nil
	}
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to check message existence", err)
	}

	if err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Update(); err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to update message", err)
	}
	return nil
}

// GetMessage retrieves a stored message by ID.
func (r *MessageStore) GetMessage(ctx context.Context, id string) (model.StoredMessage, error) {
	var msg model.StoredMessage

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("id = ?", id).
		One(&msg)

	if errors.Is(err, sql.ErrNoRows) {
		return msg, courier.ErrNoData
	}
	if err != nil {
		return msg, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to load message", err)
	}

	return msg, nil
}

// UpdateMessageStatus transitions the persisted status of a message.
func (r *MessageStore) UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, lastError string) error {
	_, err := r.db.WithContext(ctx).Update(r.tableName()).
		Set(map[string]interface{}{
			"status":     string(status),
			"last_error": lastError,
			"updated_at": time.Now(),
		}).
		Where("id = ?", id).
		Execute()

	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to update message status", err)
	}
	return nil
}

// GetPendingMessages retrieves all pending messages in FIFO replay order.
func (r *MessageStore) GetPendingMessages(ctx context.Context) ([]model.StoredMessage, error) {
	var msgs []model.StoredMessage

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("status = ?", string(model.MessageStatusPending)).
		OrderBy("created_at ASC").
		All(&msgs)

	if err != nil {
		return nil, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to find pending messages", err)
	}
	if len(msgs) == 0 {
		return nil, courier.ErrNoData
	}

	return msgs, nil
}

// ClearOldMessages deletes sent and acknowledged messages older than maxAge.
func (r *MessageStore) ClearOldMessages(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	var msgs []model.StoredMessage
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("status IN (?, ?) AND created_at < ?",
			string(model.MessageStatusSent), string(model.MessageStatusAcknowledged), cutoff).
		All(&msgs)

	if err != nil {
		return 0, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to find cleanable messages", err)
	}

	deleted := 0
	for i := range msgs {
		if err := r.db.WithContext(ctx).Model(&msgs[i]).Table(r.tableName()).Delete(); err != nil {
			return deleted, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to delete old message", err)
		}
		deleted++
	}

	return deleted, nil
}
