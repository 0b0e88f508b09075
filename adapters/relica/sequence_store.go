package relica

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
	"github.com/coregx/relica"
)

// sequenceRow is the persisted shape of a MessageSequence; the vector clock
// is stored as a JSON column.
type sequenceRow struct {
	ID             string    `db:"id"`
	MessageID      string    `db:"message_id"`
	AgentID        string    `db:"agent_id"`
	SequenceNumber int64     `db:"sequence_number"`
	VectorClock    string    `db:"vector_clock"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func toSequenceRow(s *model.MessageSequence) (sequenceRow, error) {
	clock, err := json.Marshal(s.VectorClock)
	if err != nil {
		return sequenceRow{}, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to encode vector clock", err)
	}
	return sequenceRow{
		ID:             s.ID,
		MessageID:      s.MessageID,
		AgentID:        s.AgentID,
		SequenceNumber: s.SequenceNumber,
		VectorClock:    string(clock),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, nil
}

func (row sequenceRow) toModel() (model.MessageSequence, error) {
	var clock model.VectorClock
	if row.VectorClock != "" {
		if err := json.Unmarshal([]byte(row.VectorClock), &clock); err != nil {
			return model.MessageSequence{}, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to decode vector clock", err)
		}
	}
	return model.MessageSequence{
		ID:             row.ID,
		MessageID:      row.MessageID,
		AgentID:        row.AgentID,
		SequenceNumber: row.SequenceNumber,
		VectorClock:    clock,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

// SequenceStore implements courier.SequenceStore using Relica.
type SequenceStore struct {
	db          *relica.DB
	tablePrefix string
}

// NewSequenceStore creates a new SequenceStore with default table prefix.
func NewSequenceStore(sqlDB *sql.DB, driverName string) *SequenceStore {
	return &SequenceStore{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "courier_"}
}

// NewSequenceStoreWithPrefix creates a new SequenceStore with custom table prefix.
func NewSequenceStoreWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SequenceStore {
	return &SequenceStore{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *SequenceStore) tableName() string {
	return r.tablePrefix + "sequence"
}

// Save appends a new sequence record.
func (r *SequenceStore) Save(ctx context.Context, s *model.MessageSequence) error {
	row, err := toSequenceRow(s)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Model(&row).Table(r.tableName()).Insert(); err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to insert sequence record", err)
	}
	return nil
}

// Update overwrites an existing sequence record after conflict resolution.
func (r *SequenceStore) Update(ctx context.Context, s *model.MessageSequence) error {
	row, err := toSequenceRow(s)
	if err != nil {
		return err
	}

	_, err = r.db.WithContext(ctx).Update(r.tableName()).
		Set(map[string]interface{}{
			"agent_id":        row.AgentID,
			"sequence_number": row.SequenceNumber,
			"vector_clock":    row.VectorClock,
			"updated_at":      row.UpdatedAt,
		}).
		Where("message_id = ?", row.MessageID).
		Execute()

	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to update sequence record", err)
	}
	return nil
}

// FindByMessageID retrieves the sequence record for a message.
func (r *SequenceStore) FindByMessageID(ctx context.Context, messageID string) (model.MessageSequence, error) {
	var row sequenceRow

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("message_id = ?", messageID).
		One(&row)

	if errors.Is(err, sql.ErrNoRows) {
		return model.MessageSequence{}, courier.ErrNoData
	}
	if err != nil {
		return model.MessageSequence{}, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to find sequence record", err)
	}

	return row.toModel()
}

// FindByAgent retrieves all sequence records produced by an agent.
func (r *SequenceStore) FindByAgent(ctx context.Context, agentID string) ([]model.MessageSequence, error) {
	var rows []sequenceRow

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("agent_id = ?", agentID).
		OrderBy("sequence_number ASC").
		All(&rows)

	if err != nil {
		return nil, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to find agent sequence records", err)
	}
	if len(rows) == 0 {
		return nil, courier.ErrNoData
	}

	return toSequenceModels(rows)
}

// ListAll retrieves every sequence record ordered by sequence number.
func (r *SequenceStore) ListAll(ctx context.Context) ([]model.MessageSequence, error) {
	var rows []sequenceRow

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		OrderBy("sequence_number ASC").
		All(&rows)

	if err != nil {
		return nil, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to list sequence records", err)
	}
	if len(rows) == 0 {
		return nil, courier.ErrNoData
	}

	return toSequenceModels(rows)
}

func toSequenceModels(rows []sequenceRow) ([]model.MessageSequence, error) {
	out := make([]model.MessageSequence, 0, len(rows))
	for _, row := range rows {
		s, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
