package courier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coregx/courier/model"
	"github.com/coregx/courier/retry"
)

func newTestDelivery(t *testing.T, journal DeliveryLog, opts ...DeliveryOption) (*DeliveryService, *AckTracker, *Diagnostics) {
	t.Helper()

	acks := newTestAckTracker(t, newMemAckStore())
	diagnostics, err := NewDiagnostics(&NoopLogger{})
	assert.NoError(t, err)

	base := []DeliveryOption{
		WithDeliveryRetryPolicy(retry.DeliveryPolicy{MaxAttempts: 1, Delay: time.Millisecond}),
	}
	svc, err := NewDeliveryService(journal, acks, diagnostics, &NoopLogger{}, append(base, opts...)...)
	assert.NoError(t, err)
	return svc, acks, diagnostics
}

func TestDeliveryService_DeliverMessage(t *testing.T) {
	ctx := context.Background()
	journal := newMemDeliveryLog()
	svc, acks, diagnostics := newTestDelivery(t, journal)

	msg := testMessage("narrator", "rules")
	assert.Equal(t, DeliveryDelivered, svc.DeliverMessage(ctx, &msg))

	assert.True(t, msg.DeliveryState.Delivered)
	assert.Equal(t, 1, msg.DeliveryState.Attempts)
	assert.Equal(t, 1, journal.deliveryCount())

	// Delivery creates a pending acknowledgment.
	status, err := acks.CheckAcknowledgmentStatus(ctx, msg.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.AckStatusPending, status)

	// Success is not counted here; the processor records it.
	delivered, failed, _ := diagnostics.Counters()
	assert.Equal(t, int64(0), delivered)
	assert.Equal(t, int64(0), failed)
}

func TestDeliveryService_DeliverMessageFailure(t *testing.T) {
	ctx := context.Background()
	journal := newMemDeliveryLog()
	journal.setFailing(true)
	svc, _, diagnostics := newTestDelivery(t, journal)

	msg := testMessage("narrator", "rules")
	assert.Equal(t, DeliveryFailed, svc.DeliverMessage(ctx, &msg))

	assert.False(t, msg.DeliveryState.Delivered)
	assert.Equal(t, 1, msg.DeliveryState.Attempts)
	assert.NotEmpty(t, msg.DeliveryState.LastError)

	_, failed, _ := diagnostics.Counters()
	assert.Equal(t, int64(1), failed)
}

func TestDeliveryService_TransportRetriesWithinAttempt(t *testing.T) {
	ctx := context.Background()
	journal := newMemDeliveryLog()
	journal.setFailing(true)

	svc, _, _ := newTestDelivery(t, journal,
		WithDeliveryRetryPolicy(retry.DeliveryPolicy{MaxAttempts: 3, Delay: time.Millisecond}))

	msg := testMessage("narrator", "rules")
	assert.Equal(t, DeliveryFailed, svc.DeliverMessage(ctx, &msg))
	assert.Equal(t, 3, journal.attemptCount())
}

func TestDeliveryService_BreakerOpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	journal := newMemDeliveryLog()
	journal.setFailing(true)

	svc, _, diagnostics := newTestDelivery(t, journal,
		WithBreakerSettings(2, time.Minute))

	msg := testMessage("narrator", "rules")
	assert.Equal(t, DeliveryFailed, svc.DeliverMessage(ctx, &msg))
	assert.Equal(t, DeliveryFailed, svc.DeliverMessage(ctx, &msg))
	attemptsBeforeOpen := journal.attemptCount()

	// Third call fails fast without touching the transport, and without
	// counting a delivery failure.
	_, failedBefore, _ := diagnostics.Counters()
	assert.Equal(t, DeliveryRejected, svc.DeliverMessage(ctx, &msg))
	assert.Equal(t, attemptsBeforeOpen, journal.attemptCount())
	_, failedAfter, _ := diagnostics.Counters()
	assert.Equal(t, failedBefore, failedAfter)
}

func TestDeliveryService_BreakerIsPerRoute(t *testing.T) {
	ctx := context.Background()
	journal := newMemDeliveryLog()
	journal.setFailing(true)

	svc, _, _ := newTestDelivery(t, journal,
		WithBreakerSettings(1, time.Minute))

	failing := testMessage("narrator", "rules")
	assert.Equal(t, DeliveryFailed, svc.DeliverMessage(ctx, &failing))

	// The narrator→rules circuit is open, but a different route still
	// reaches the transport.
	journal.setFailing(false)
	other := testMessage("narrator", "world")
	assert.Equal(t, DeliveryDelivered, svc.DeliverMessage(ctx, &other))

	stillBlocked := testMessage("narrator", "rules")
	assert.Equal(t, DeliveryRejected, svc.DeliverMessage(ctx, &stillBlocked))
}

func TestDeliveryService_ConfirmDelivery(t *testing.T) {
	ctx := context.Background()
	journal := newMemDeliveryLog()
	svc, acks, _ := newTestDelivery(t, journal)

	msg := testMessage("narrator", "rules")
	assert.Equal(t, DeliveryDelivered, svc.DeliverMessage(ctx, &msg))
	assert.NoError(t, svc.ConfirmDelivery(ctx, msg.ID))

	status, err := acks.CheckAcknowledgmentStatus(ctx, msg.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.AckStatusReceived, status)
}

func TestDeliveryService_HandleFailedDelivery(t *testing.T) {
	ctx := context.Background()
	journal := newMemDeliveryLog()
	svc, _, diagnostics := newTestDelivery(t, journal)

	msg := testMessage("narrator", "rules")
	msg.RetryCount = msg.MaxRetries
	msg.DeliveryState.LastError = "log unreachable"

	assert.NoError(t, svc.HandleFailedDelivery(ctx, &msg))

	// A FAILED_DELIVERY marker is appended and the message dead-lettered.
	assert.Len(t, journal.failures, 1)
	assert.Equal(t, msg.ID, journal.failures[0].OriginalMessageID)
	assert.Equal(t, model.JournalTypeFailedDelivery, journal.failures[0].RecordType)

	letters := diagnostics.DeadLetters()
	assert.Len(t, letters, 1)
	assert.Equal(t, msg.ID, letters[0].MessageID)
	assert.Contains(t, letters[0].FailureReason, "max retry attempts exceeded")
}
