package relica

import (
	"database/sql"

	"github.com/coregx/courier"
)

// Stores holds all store implementations.
type Stores struct {
	Messages  courier.MessageStore
	States    courier.StateStore
	Log       courier.DeliveryLog
	Sequences courier.SequenceStore
	Acks      courier.AckStore
}

// NewStores creates all store implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or
// SQLite. The driverName should be "mysql", "postgres", or "sqlite3".
// The table prefix defaults to "courier_" but can be customized.
func NewStores(db *sql.DB, driverName string) *Stores {
	return &Stores{
		Messages:  NewMessageStore(db, driverName),
		States:    NewStateStore(db, driverName),
		Log:       NewDeliveryLog(db, driverName),
		Sequences: NewSequenceStore(db, driverName),
		Acks:      NewAckStore(db, driverName),
	}
}

// NewStoresWithPrefix creates all store implementations with a custom table prefix.
func NewStoresWithPrefix(db *sql.DB, driverName, prefix string) *Stores {
	return &Stores{
		Messages:  NewMessageStoreWithPrefix(db, driverName, prefix),
		States:    NewStateStoreWithPrefix(db, driverName, prefix),
		Log:       NewDeliveryLogWithPrefix(db, driverName, prefix),
		Sequences: NewSequenceStoreWithPrefix(db, driverName, prefix),
		Acks:      NewAckStoreWithPrefix(db, driverName, prefix),
	}
}
