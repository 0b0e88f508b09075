package model

import "time"

// QueueMetrics holds rolling delivery metrics for the in-memory queue.
type QueueMetrics struct {
	TotalProcessed      int64   `json:"totalProcessed"`
	FailedDeliveries    int64   `json:"failedDeliveries"`
	AvgProcessingTimeMs float64 `json:"avgProcessingTimeMs"`
}

// QueueState is a full snapshot of the in-memory queue, persisted to the
// durable store after every enqueue, dequeue and processing completion.
//
// This snapshot is the durability boundary, not a write-ahead log: a crash
// between a mutation and its snapshot can lose at most one message.
// The snapshot is read back on startup or after a validation failure to
// detect that loss.
type QueueState struct {
	LastSyncTimestamp   time.Time    `json:"lastSyncTimestamp"`
	Messages            []Message    `json:"messages"`
	PendingMessageIDs   []string     `json:"pendingMessageIds"`
	ProcessingMessageID string       `json:"processingMessageId,omitempty"`
	IsOnline            bool         `json:"isOnline"`
	Metrics             QueueMetrics `json:"metrics"`
}
