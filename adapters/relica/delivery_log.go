package relica

import (
	"context"
	"database/sql"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
	"github.com/coregx/relica"
)

// DeliveryLog implements courier.DeliveryLog using Relica. Rows are only
// ever appended; the record ID is auto-populated on insert.
type DeliveryLog struct {
	db          *relica.DB
	tablePrefix string
}

// NewDeliveryLog creates a new DeliveryLog with default table prefix.
func NewDeliveryLog(sqlDB *sql.DB, driverName string) *DeliveryLog {
	return &DeliveryLog{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "courier_"}
}

// NewDeliveryLogWithPrefix creates a new DeliveryLog with custom table prefix.
func NewDeliveryLogWithPrefix(sqlDB *sql.DB, driverName, prefix string) *DeliveryLog {
	return &DeliveryLog{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

// AppendDelivery appends a delivered-message row.
func (r *DeliveryLog) AppendDelivery(ctx context.Context, rec *model.DeliveryRecord) error {
	err := r.db.WithContext(ctx).Model(rec).Table(r.tablePrefix + "journal").Insert()
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to append delivery record", err)
	}
	return nil
}

// AppendFailure appends a FAILED_DELIVERY marker row.
func (r *DeliveryLog) AppendFailure(ctx context.Context, rec *model.FailureRecord) error {
	err := r.db.WithContext(ctx).Model(rec).Table(r.tablePrefix + "journal_failure").Insert()
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to append failure record", err)
	}
	return nil
}
