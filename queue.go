package courier

import (
	"context"
	"sync"
	"time"

	"github.com/coregx/courier/model"
)

// DefaultQueueCapacity bounds the in-memory queue when no capacity is configured.
const DefaultQueueCapacity = 100

// Queue is the bounded, FIFO, in-memory staging area for messages awaiting
// delivery. Every successful mutation persists a full QueueState snapshot to
// the state store — the snapshot is the durability boundary, so a crash
// between a mutation and its snapshot can lose at most one message.
//
// Messages are dequeued strictly in FIFO order regardless of priority.
// Priority inversions are reported by Validate as advisory warnings only;
// this mirrors the original system's behavior and is a documented design
// choice, not a bug.
//
// All state is guarded by a single mutex, making explicit the original
// single-event-loop assumption: no concurrent mutation of queue contents.
type Queue struct {
	mu              sync.Mutex
	capacity        int
	items           []model.Message
	queued          map[string]struct{}
	processingID    string
	processingStart time.Time
	online          bool
	metrics         model.QueueMetrics
	states          StateStore
	logger          Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue) error

// WithQueueCapacity overrides the default queue capacity.
func WithQueueCapacity(capacity int) QueueOption {
	return func(q *Queue) error {
		if capacity <= 0 {
			return NewError(ErrCodeConfiguration, "queue capacity must be > 0")
		}
		q.capacity = capacity
		return nil
	}
}

// NewQueue creates a bounded FIFO queue backed by the given state store.
func NewQueue(states StateStore, logger Logger, opts ...QueueOption) (*Queue, error) {
	if states == nil {
		return nil, NewError(ErrCodeConfiguration, "StateStore is required")
	}
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	q := &Queue{
		capacity: DefaultQueueCapacity,
		queued:   make(map[string]struct{}),
		online:   true,
		states:   states,
		logger:   logger,
	}

	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}

	return q, nil
}

// Enqueue appends a message at the tail.
// It returns false without mutation when the queue is at capacity, when the
// message fails structural validation, or when the id is already queued
// (per-id uniqueness invariant). A snapshot is persisted on success; snapshot
// failures are logged but do not undo the enqueue (documented single-message
// loss window).
func (q *Queue) Enqueue(ctx context.Context, msg model.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := msg.Validate(); err != nil {
		q.logger.Warnf("Rejected invalid message: %v", err)
		return false
	}
	if len(q.items) >= q.capacity {
		q.logger.Warnf("Queue at capacity (%d), rejected message %s", q.capacity, msg.ID)
		return false
	}
	if _, dup := q.queued[msg.ID]; dup {
		q.logger.Warnf("Rejected duplicate message id %s", msg.ID)
		return false
	}

	q.items = append(q.items, msg)
	q.queued[msg.ID] = struct{}{}
	q.snapshot(ctx)

	q.logger.Debugf("Enqueued message %s (type=%s, depth=%d)", msg.ID, msg.Type, len(q.items))
	return true
}

// Dequeue removes and returns the head message in FIFO order, recording a
// processing-start timestamp for later metrics. Returns nil on an empty
// queue without error.
func (q *Queue) Dequeue(ctx context.Context) *model.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	msg := q.items[0]
	q.items = q.items[1:]
	delete(q.queued, msg.ID)
	q.processingID = msg.ID
	q.processingStart = time.Now()
	q.snapshot(ctx)

	return &msg
}

// Requeue restores a dequeued message to the head of the queue and clears
// the processing marker without recording a processing outcome. Used when
// delivery was refused before any transport attempt, so the message keeps
// both its FIFO position and its retry budget.
func (q *Queue) Requeue(ctx context.Context, msg model.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.queued[msg.ID]; !dup {
		q.items = append([]model.Message{msg}, q.items...)
		q.queued[msg.ID] = struct{}{}
	}
	q.processingID = ""
	q.processingStart = time.Time{}
	q.snapshot(ctx)
}

// Peek returns the head message without removing it, or nil when empty.
func (q *Queue) Peek() *model.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	return &head
}

// CompleteProcessing records the outcome of the message most recently
// dequeued and persists a snapshot. Calling it without a prior Dequeue is
// tolerated and still counted in the metrics.
//
// The processing-time average is an arithmetic moving average over all
// processed messages. Snapshot failures propagate: they indicate potential
// data loss and the caller decides how to react.
func (q *Queue) CompleteProcessing(ctx context.Context, success bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.metrics.TotalProcessed++
	if !success {
		q.metrics.FailedDeliveries++
	}

	if !q.processingStart.IsZero() {
		elapsed := float64(time.Since(q.processingStart).Milliseconds())
		q.metrics.AvgProcessingTimeMs += (elapsed - q.metrics.AvgProcessingTimeMs) / float64(q.metrics.TotalProcessed)
	}

	q.processingID = ""
	q.processingStart = time.Time{}

	if err := q.states.SaveQueueState(ctx, q.state()); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to persist queue snapshot", err)
	}
	return nil
}

// Validate re-checks structural integrity, per-id uniqueness, and advisory
// priority ordering, then compares the live queue against the last persisted
// snapshot. It returns false when messages recorded in the snapshot are
// missing from the live queue — the signal for recovery via replay.
func (q *Queue) Validate(ctx context.Context) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]struct{}, len(q.items))
	for i := range q.items {
		msg := &q.items[i]
		if err := msg.Validate(); err != nil {
			q.logger.Warnf("Queue integrity: invalid message %s: %v", msg.ID, err)
			return false
		}
		if _, dup := seen[msg.ID]; dup {
			q.logger.Warnf("Queue integrity: duplicate message id %s", msg.ID)
			return false
		}
		seen[msg.ID] = struct{}{}

		// Advisory only: FIFO is preserved even across priority inversions.
		if i > 0 && model.PriorityRank(msg.Priority) < model.PriorityRank(q.items[i-1].Priority) {
			q.logger.Warnf("Priority inversion: %s (%s) queued behind %s (%s)",
				msg.ID, msg.Priority, q.items[i-1].ID, q.items[i-1].Priority)
		}
	}

	last, err := q.states.LoadQueueState(ctx)
	if err != nil {
		if !IsNoData(err) {
			q.logger.Errorf("Queue integrity: failed to load last snapshot: %v", err)
		}
		return true
	}

	for _, id := range last.PendingMessageIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		if id == q.processingID {
			continue
		}
		q.logger.Warnf("Queue integrity: snapshot message %s missing from live queue", id)
		return false
	}

	return true
}

// Purge drops structurally invalid and duplicate entries from the live queue
// and persists a fresh snapshot. Used by resynchronization after a failed
// Validate, before replaying pending messages from the durable store.
func (q *Queue) Purge(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	seen := make(map[string]struct{}, len(q.items))
	purged := 0

	for _, msg := range q.items {
		if _, dup := seen[msg.ID]; dup || msg.Validate() != nil {
			delete(q.queued, msg.ID)
			purged++
			continue
		}
		seen[msg.ID] = struct{}{}
		kept = append(kept, msg)
	}

	q.items = kept
	if purged > 0 {
		q.logger.Infof("Purged %d stale queue entries", purged)
		q.snapshot(ctx)
	}
	return purged
}

// Contains reports whether a message id is currently queued.
func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.queued[id]
	return ok
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Metrics returns a copy of the rolling delivery metrics.
func (q *Queue) Metrics() model.QueueMetrics {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.metrics
}

// SetOnline records the connectivity flag carried in queue snapshots.
func (q *Queue) SetOnline(online bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.online = online
}

// state builds the snapshot of the current queue. Caller must hold q.mu.
func (q *Queue) state() model.QueueState {
	messages := make([]model.Message, len(q.items))
	copy(messages, q.items)

	ids := make([]string, 0, len(q.items))
	for i := range q.items {
		ids = append(ids, q.items[i].ID)
	}

	return model.QueueState{
		LastSyncTimestamp:   time.Now(),
		Messages:            messages,
		PendingMessageIDs:   ids,
		ProcessingMessageID: q.processingID,
		IsOnline:            q.online,
		Metrics:             q.metrics,
	}
}

// snapshot persists the current state, logging (not propagating) failures.
// Caller must hold q.mu.
func (q *Queue) snapshot(ctx context.Context) {
	if err := q.states.SaveQueueState(ctx, q.state()); err != nil {
		q.logger.Errorf("Failed to persist queue snapshot: %v", err)
	}
}
