package courier

import (
	"context"

	"github.com/coregx/courier/model"
)

// OfflineService restores the in-memory queue from the durable store after a
// connectivity outage and hands the replayed window to the synchronization
// service. It implements Resynchronizer.
type OfflineService struct {
	queue    *Queue
	messages MessageStore
	sync     *SyncService
	policy   int // max retries granted to replayed messages
	logger   Logger
}

// OfflineOption configures an OfflineService.
type OfflineOption func(*OfflineService) error

// WithOfflineSync attaches the synchronization service consulted after a
// successful replay. Optional: without it resynchronization only restores
// the queue.
func WithOfflineSync(sync *SyncService) OfflineOption {
	return func(s *OfflineService) error {
		if sync == nil {
			return NewError(ErrCodeConfiguration, "SyncService cannot be nil")
		}
		s.sync = sync
		return nil
	}
}

// WithOfflineMaxRetries sets the retry budget granted to replayed messages.
func WithOfflineMaxRetries(max int) OfflineOption {
	return func(s *OfflineService) error {
		if max <= 0 {
			return NewError(ErrCodeConfiguration, "offline max retries must be > 0")
		}
		s.policy = max
		return nil
	}
}

// NewOfflineService creates the offline resynchronization service.
func NewOfflineService(queue *Queue, messages MessageStore, logger Logger, opts ...OfflineOption) (*OfflineService, error) {
	if queue == nil {
		return nil, NewError(ErrCodeConfiguration, "Queue is required")
	}
	if messages == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageStore is required")
	}
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	s := &OfflineService{
		queue:    queue,
		messages: messages,
		policy:   model.DefaultMaxRetries,
		logger:   logger,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Resynchronize runs the recovery sequence after connectivity returns:
// validate the queue (purging corrupt entries), replay durable pending
// messages that are not already queued, reconcile clocks, then mark the
// queue online so processing resumes.
//
// Replayed messages restart their retry budget: persisted retry counts
// reflect attempts made under the old connection.
func (s *OfflineService) Resynchronize(ctx context.Context) error {
	if !s.queue.Validate(ctx) {
		dropped := s.queue.Purge(ctx)
		s.logger.Warnf("Queue validation failed during resynchronization, purged %d entries", dropped)
	}

	stored, err := s.messages.GetPendingMessages(ctx)
	if err != nil && !IsNoData(err) {
		return NewErrorWithCause(ErrCodeDatabase, "failed to load pending messages for replay", err)
	}

	replayed := 0
	for _, sm := range stored {
		if s.queue.Contains(sm.ID) {
			continue
		}
		msg := sm.ToMessage(s.policy)
		if s.queue.Enqueue(ctx, msg) {
			replayed++
		} else {
			s.logger.Warnf("Failed to replay message %s during resynchronization", sm.ID)
		}
	}
	if replayed > 0 {
		s.logger.Infof("Replayed %d pending messages after reconnection", replayed)
	}

	if s.sync != nil {
		if err := s.sync.SynchronizeAll(ctx); err != nil {
			s.logger.Errorf("Clock reconciliation failed after replay: %v", err)
		}
	}

	s.queue.SetOnline(true)
	return nil
}

// SetOffline pauses queue processing without touching queued messages.
func (s *OfflineService) SetOffline(ctx context.Context) {
	s.queue.SetOnline(false)
}
