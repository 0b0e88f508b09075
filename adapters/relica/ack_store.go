package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
	"github.com/coregx/relica"
)

// AckStore implements courier.AckStore using Relica.
type AckStore struct {
	db          *relica.DB
	tablePrefix string
}

// NewAckStore creates a new AckStore with default table prefix.
func NewAckStore(sqlDB *sql.DB, driverName string) *AckStore {
	return &AckStore{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "courier_"}
}

// NewAckStoreWithPrefix creates a new AckStore with custom table prefix.
func NewAckStoreWithPrefix(sqlDB *sql.DB, driverName, prefix string) *AckStore {
	return &AckStore{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *AckStore) tableName() string {
	return r.tablePrefix + "ack"
}

// Save creates or overwrites an acknowledgment record.
func (r *AckStore) Save(ctx context.Context, a *model.Acknowledgment) error {
	var existing model.Acknowledgment
	err := r.db.WithContext(ctx).Select("message_id").
		From(r.tableName()).
		Where("message_id = ?", a.MessageID).
		One(&existing)

	if errors.Is(err, sql.ErrNoRows) {
		if err := r.db.WithContext(ctx).Model(a).Table(r.tableName()).Insert(); err != nil {
			return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to insert acknowledgment", err)
		}
		return nil
	}
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to check acknowledgment existence", err)
	}

	_, err = r.db.WithContext(ctx).Update(r.tableName()).
		Set(map[string]interface{}{
			"status":          string(a.Status),
			"attempts":        a.Attempts,
			"last_attempt_at": a.LastAttemptAt,
			"acknowledged_at": a.AcknowledgedAt,
			"timeout_at":      a.TimeoutAt,
			"error":           a.Error,
		}).
		Where("message_id = ?", a.MessageID).
		Execute()

	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to update acknowledgment", err)
	}
	return nil
}

// Load retrieves the acknowledgment for a message.
func (r *AckStore) Load(ctx context.Context, messageID string) (model.Acknowledgment, error) {
	var ack model.Acknowledgment

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("message_id = ?", messageID).
		One(&ack)

	if errors.Is(err, sql.ErrNoRows) {
		return ack, courier.ErrNoData
	}
	if err != nil {
		return ack, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to load acknowledgment", err)
	}

	return ack, nil
}

// FindPending retrieves all acknowledgments still in pending status.
func (r *AckStore) FindPending(ctx context.Context) ([]model.Acknowledgment, error) {
	var acks []model.Acknowledgment

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("status = ?", string(model.AckStatusPending)).
		OrderBy("timeout_at ASC").
		All(&acks)

	if err != nil {
		return nil, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to find pending acknowledgments", err)
	}

	return acks, nil
}
