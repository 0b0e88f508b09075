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

// State record names in the courier_state table.
const (
	stateNameQueue        = "queue"
	stateNameConnectivity = "connectivity"
)

// stateRecord is a row in the singleton state table. Payloads are JSON.
type stateRecord struct {
	Name      string    `db:"name"`
	Data      string    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

// StateStore implements courier.StateStore using Relica, keeping the queue
// snapshot and the connectivity record as JSON singletons.
type StateStore struct {
	db          *relica.DB
	tablePrefix string
}

// NewStateStore creates a new StateStore with default table prefix.
func NewStateStore(sqlDB *sql.DB, driverName string) *StateStore {
	return &StateStore{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "courier_"}
}

// NewStateStoreWithPrefix creates a new StateStore with custom table prefix.
func NewStateStoreWithPrefix(sqlDB *sql.DB, driverName, prefix string) *StateStore {
	return &StateStore{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *StateStore) tableName() string {
	return r.tablePrefix + "state"
}

// SaveQueueState overwrites the current queue snapshot.
func (r *StateStore) SaveQueueState(ctx context.Context, st model.QueueState) error {
	return r.save(ctx, stateNameQueue, st)
}

// LoadQueueState retrieves the current queue snapshot.
func (r *StateStore) LoadQueueState(ctx context.Context) (model.QueueState, error) {
	var st model.QueueState
	if err := r.load(ctx, stateNameQueue, &st); err != nil {
		return st, err
	}
	return st, nil
}

// SaveConnectivityState overwrites the current connectivity record.
func (r *StateStore) SaveConnectivityState(ctx context.Context, st model.ConnectionState) error {
	return r.save(ctx, stateNameConnectivity, st)
}

// LoadConnectivityState retrieves the current connectivity record.
func (r *StateStore) LoadConnectivityState(ctx context.Context) (model.ConnectionState, error) {
	var st model.ConnectionState
	if err := r.load(ctx, stateNameConnectivity, &st); err != nil {
		return st, err
	}
	return st, nil
}

func (r *StateStore) save(ctx context.Context, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to encode state payload", err)
	}

	var existing stateRecord
	err = r.db.WithContext(ctx).Select("name").
		From(r.tableName()).
		Where("name = ?", name).
		One(&existing)

	if errors.Is(err, sql.ErrNoRows) {
		rec := stateRecord{Name: name, Data: string(data), UpdatedAt: time.Now()}
		if err := r.db.WithContext(ctx).Model(&rec).Table(r.tableName()).Insert(); err != nil {
			return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to insert state record", err)
		}
		return nil
	}
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to check state record", err)
	}

	_, err = r.db.WithContext(ctx).Update(r.tableName()).
		Set(map[string]interface{}{
			"data":       string(data),
			"updated_at": time.Now(),
		}).
		Where("name = ?", name).
		Execute()

	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to update state record", err)
	}
	return nil
}

func (r *StateStore) load(ctx context.Context, name string, out interface{}) error {
	var rec stateRecord

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("name = ?", name).
		One(&rec)

	if errors.Is(err, sql.ErrNoRows) {
		return courier.ErrNoData
	}
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to load state record", err)
	}

	if err := json.Unmarshal([]byte(rec.Data), out); err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to decode state payload", err)
	}
	return nil
}
