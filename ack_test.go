package courier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coregx/courier/model"
)

func newTestAckTracker(t *testing.T, store AckStore, opts ...AckTrackerOption) *AckTracker {
	t.Helper()
	tracker, err := NewAckTracker(store, &NoopLogger{}, opts...)
	assert.NoError(t, err)
	return tracker
}

func TestAckTracker_CreateAcknowledgment(t *testing.T) {
	ctx := context.Background()
	store := newMemAckStore()
	tracker := newTestAckTracker(t, store)

	ack, err := tracker.CreateAcknowledgment(ctx, "msg-1")
	assert.NoError(t, err)
	assert.Equal(t, model.AckStatusPending, ack.Status)
	assert.Equal(t, 1, ack.Attempts)
	assert.WithinDuration(t, time.Now().Add(DefaultAckTimeout), ack.TimeoutAt, time.Second)

	loaded, err := store.Load(ctx, "msg-1")
	assert.NoError(t, err)
	assert.Equal(t, model.AckStatusPending, loaded.Status)
}

func TestAckTracker_UpdateAcknowledgment(t *testing.T) {
	ctx := context.Background()
	store := newMemAckStore()
	tracker := newTestAckTracker(t, store)

	_, err := tracker.CreateAcknowledgment(ctx, "msg-1")
	assert.NoError(t, err)

	assert.NoError(t, tracker.UpdateAcknowledgment(ctx, "msg-1", model.AckStatusReceived, ""))
	status, err := tracker.CheckAcknowledgmentStatus(ctx, "msg-1")
	assert.NoError(t, err)
	assert.Equal(t, model.AckStatusReceived, status)

	assert.NoError(t, tracker.UpdateAcknowledgment(ctx, "msg-1", model.AckStatusProcessed, ""))
	loaded, err := store.Load(ctx, "msg-1")
	assert.NoError(t, err)
	assert.NotNil(t, loaded.AcknowledgedAt)
}

func TestAckTracker_UpdateUnknownMessage(t *testing.T) {
	ctx := context.Background()
	tracker := newTestAckTracker(t, newMemAckStore())

	err := tracker.UpdateAcknowledgment(ctx, "missing", model.AckStatusReceived, "")
	assert.True(t, IsNoData(err))
}

func TestAckTracker_HandleTimeout(t *testing.T) {
	ctx := context.Background()
	store := newMemAckStore()
	tracker := newTestAckTracker(t, store, WithAckTimeout(-time.Second))

	_, err := tracker.CreateAcknowledgment(ctx, "msg-1")
	assert.NoError(t, err)

	assert.NoError(t, tracker.HandleTimeout(ctx, "msg-1"))
	loaded, err := store.Load(ctx, "msg-1")
	assert.NoError(t, err)
	assert.Equal(t, model.AckStatusFailed, loaded.Status)
	assert.Equal(t, "acknowledgment timeout", loaded.Error)

	// Idempotent: a second timeout check leaves the record alone.
	assert.NoError(t, tracker.HandleTimeout(ctx, "msg-1"))
	again, err := store.Load(ctx, "msg-1")
	assert.NoError(t, err)
	assert.Equal(t, loaded, again)
}

func TestAckTracker_HandleTimeoutBeforeWindow(t *testing.T) {
	ctx := context.Background()
	store := newMemAckStore()
	tracker := newTestAckTracker(t, store)

	_, err := tracker.CreateAcknowledgment(ctx, "msg-1")
	assert.NoError(t, err)

	assert.NoError(t, tracker.HandleTimeout(ctx, "msg-1"))
	loaded, err := store.Load(ctx, "msg-1")
	assert.NoError(t, err)
	assert.Equal(t, model.AckStatusPending, loaded.Status)
}

func TestAckTracker_HandleTimeoutUnknownMessage(t *testing.T) {
	ctx := context.Background()
	tracker := newTestAckTracker(t, newMemAckStore())

	assert.NoError(t, tracker.HandleTimeout(ctx, "missing"))
}

func TestAckTracker_SweepTimeouts(t *testing.T) {
	ctx := context.Background()
	store := newMemAckStore()
	tracker := newTestAckTracker(t, store, WithAckTimeout(-time.Second))

	_, err := tracker.CreateAcknowledgment(ctx, "msg-1")
	assert.NoError(t, err)
	_, err = tracker.CreateAcknowledgment(ctx, "msg-2")
	assert.NoError(t, err)

	// One acknowledgment already moved on; it must not be swept.
	assert.NoError(t, tracker.UpdateAcknowledgment(ctx, "msg-2", model.AckStatusProcessed, ""))

	expired, err := tracker.SweepTimeouts(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, expired)

	one, err := store.Load(ctx, "msg-1")
	assert.NoError(t, err)
	assert.Equal(t, model.AckStatusFailed, one.Status)

	two, err := store.Load(ctx, "msg-2")
	assert.NoError(t, err)
	assert.Equal(t, model.AckStatusProcessed, two.Status)
}
