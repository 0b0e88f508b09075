package model

import "time"

// JournalTypeFailedDelivery marks a permanent-failure row in the delivery journal.
const JournalTypeFailedDelivery = "FAILED_DELIVERY"

// DeliveryRecord is a row appended to the external durable log when a message
// is delivered. The journal is append-only.
type DeliveryRecord struct {
	ID          int64     `json:"id" db:"id"`
	SenderID    string    `json:"senderID" db:"sender_id"`
	ReceiverID  string    `json:"receiverID" db:"receiver_id"`
	MessageType string    `json:"messageType" db:"message_type"`
	Content     []byte    `json:"content" db:"content"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for DeliveryRecord.
func (r DeliveryRecord) TableName() string {
	return tablePrefix + "journal"
}

// NewDeliveryRecord creates a journal row for a delivered message.
func NewDeliveryRecord(m Message) DeliveryRecord {
	return DeliveryRecord{
		SenderID:    m.Sender,
		ReceiverID:  m.Receiver,
		MessageType: string(m.Type),
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

// FailureRecord is a permanent-failure marker appended to the external log
// when a message exhausts all retries.
type FailureRecord struct {
	ID                int64     `json:"id" db:"id"`
	RecordType        string    `json:"recordType" db:"record_type"`
	OriginalMessageID string    `json:"originalMessageID" db:"original_message_id"`
	OriginalType      string    `json:"originalType" db:"original_type"`
	Error             string    `json:"error" db:"error"`
	Timestamp         time.Time `json:"timestamp" db:"timestamp"`
}

// TableName returns the database table name for FailureRecord.
func (r FailureRecord) TableName() string {
	return tablePrefix + "journal_failure"
}

// NewFailureRecord creates a FAILED_DELIVERY marker for a dead-lettered message.
func NewFailureRecord(m Message) FailureRecord {
	return FailureRecord{
		RecordType:        JournalTypeFailedDelivery,
		OriginalMessageID: m.ID,
		OriginalType:      string(m.Type),
		Error:             m.DeliveryState.LastError,
		Timestamp:         time.Now(),
	}
}
