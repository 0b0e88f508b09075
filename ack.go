package courier

import (
	"context"
	"time"

	"github.com/coregx/courier/model"
)

// DefaultAckTimeout is the fixed acknowledgment window.
const DefaultAckTimeout = 5 * time.Minute

// AckTracker creates, updates and expires per-message acknowledgment records.
//
// Timeouts are checked lazily when HandleTimeout is called; no timer runs
// eagerly. Expiry is idempotent: only pending acknowledgments past their
// window transition to failed.
type AckTracker struct {
	acks    AckStore
	timeout time.Duration
	logger  Logger
}

// AckTrackerOption configures an AckTracker.
type AckTrackerOption func(*AckTracker) error

// WithAckTimeout overrides the default acknowledgment window.
func WithAckTimeout(timeout time.Duration) AckTrackerOption {
	return func(t *AckTracker) error {
		t.timeout = timeout
		return nil
	}
}

// NewAckTracker creates an acknowledgment tracker backed by the given store.
func NewAckTracker(acks AckStore, logger Logger, opts ...AckTrackerOption) (*AckTracker, error) {
	if acks == nil {
		return nil, NewError(ErrCodeConfiguration, "AckStore is required")
	}
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	t := &AckTracker{
		acks:    acks,
		timeout: DefaultAckTimeout,
		logger:  logger,
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// CreateAcknowledgment records a pending acknowledgment for a message that
// was just handed to the delivery service.
func (t *AckTracker) CreateAcknowledgment(ctx context.Context, messageID string) (model.Acknowledgment, error) {
	ack := model.NewAcknowledgment(messageID, t.timeout)
	if err := t.acks.Save(ctx, &ack); err != nil {
		return ack, NewErrorWithCause(ErrCodeDatabase, "failed to save acknowledgment", err)
	}

	t.logger.Debugf("Created acknowledgment for message %s (timeout %v)", messageID, t.timeout)
	return ack, nil
}

// UpdateAcknowledgment transitions the acknowledgment for a message.
// AcknowledgedAt is set only when transitioning to processed.
func (t *AckTracker) UpdateAcknowledgment(ctx context.Context, messageID string, status model.AckStatus, errMsg string) error {
	ack, err := t.acks.Load(ctx, messageID)
	if err != nil {
		return err
	}

	ack.Update(status, errMsg)
	if err := t.acks.Save(ctx, &ack); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to update acknowledgment", err)
	}
	return nil
}

// CheckAcknowledgmentStatus is a pure read of the current acknowledgment status.
func (t *AckTracker) CheckAcknowledgmentStatus(ctx context.Context, messageID string) (model.AckStatus, error) {
	ack, err := t.acks.Load(ctx, messageID)
	if err != nil {
		return "", err
	}
	return ack.Status, nil
}

// HandleTimeout expires the acknowledgment for a message if it is still
// pending past its window. It is idempotent and a no-op for any other
// status or for unknown message ids.
func (t *AckTracker) HandleTimeout(ctx context.Context, messageID string) error {
	ack, err := t.acks.Load(ctx, messageID)
	if err != nil {
		if IsNoData(err) {
			return nil
		}
		return err
	}

	if !ack.TimeOut(time.Now()) {
		return nil
	}

	if err := t.acks.Save(ctx, &ack); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to expire acknowledgment", err)
	}

	t.logger.Warnf("Acknowledgment for message %s timed out", messageID)
	return nil
}

// SweepTimeouts lazily expires every pending acknowledgment past its window.
// Returns the number of expired acknowledgments.
func (t *AckTracker) SweepTimeouts(ctx context.Context) (int, error) {
	pending, err := t.acks.FindPending(ctx)
	if err != nil {
		if IsNoData(err) {
			return 0, nil
		}
		return 0, err
	}

	expired := 0
	now := time.Now()
	for i := range pending {
		if !pending[i].TimeOut(now) {
			continue
		}
		if err := t.acks.Save(ctx, &pending[i]); err != nil {
			t.logger.Errorf("Failed to expire acknowledgment %s: %v", pending[i].MessageID, err)
			continue
		}
		expired++
	}

	return expired, nil
}
