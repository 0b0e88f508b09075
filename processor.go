package courier

import (
	"context"
	"time"

	"github.com/coregx/courier/model"
)

// Processor drives one message at a time through delivery, status update and
// retry/dead-letter decisions.
//
// State machine per message:
//
//	queued → delivering → {acknowledged | retry-queued | dead-lettered}
//
// A delivered message is marked sent, confirmed and synchronized (terminal).
// A failed message whose retry budget is exhausted is dead-lettered
// (terminal). Any other failure increments the retry count and re-enqueues
// the message at the tail, to be revisited on a later cycle.
//
// Durable-store failures are logged but never crash the process; they
// indicate potential data loss and are surfaced through the logger.
type Processor struct {
	queue         *Queue
	delivery      *DeliveryService
	messages      MessageStore
	sync          *SyncService
	diagnostics   *Diagnostics
	notifications NotificationService
	online        func() bool
	logger        Logger
}

// NewProcessor creates a processor with the provided options.
//
// Required options:
//   - WithProcessorQueue
//   - WithProcessorDelivery
//   - WithProcessorMessageStore
//   - WithProcessorDiagnostics
//   - WithProcessorLogger
//
// Optional options:
//   - WithProcessorSync: synchronize delivered messages
//   - WithProcessorOnlineCheck: pause batches while offline
//   - WithProcessorNotifications: failure notifications
func NewProcessor(opts ...Option) (*Processor, error) {
	p := &Processor{
		notifications: &NoOpNotificationService{},
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply option", err)
		}
	}

	if p.queue == nil {
		return nil, NewError(ErrCodeConfiguration, "Queue is required (use WithProcessorQueue)")
	}
	if p.delivery == nil {
		return nil, NewError(ErrCodeConfiguration, "DeliveryService is required (use WithProcessorDelivery)")
	}
	if p.messages == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageStore is required (use WithProcessorMessageStore)")
	}
	if p.diagnostics == nil {
		return nil, NewError(ErrCodeConfiguration, "Diagnostics is required (use WithProcessorDiagnostics)")
	}
	if p.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithProcessorLogger)")
	}

	return p, nil
}

// ProcessNext dequeues and processes a single message.
// It reports whether a message was processed to completion; false means the
// queue was empty or the head message was rejected by an open circuit (the
// message stays queued in that case).
func (p *Processor) ProcessNext(ctx context.Context) (bool, error) {
	msg := p.queue.Dequeue(ctx)
	if msg == nil {
		return false, nil
	}

	switch p.delivery.DeliverMessage(ctx, msg) {
	case DeliveryDelivered:
		p.handleDelivered(ctx, msg)
		return true, nil
	case DeliveryRejected:
		// The route's circuit is open: the message goes back to the head
		// with its retry budget intact, and the batch ends so a drain does
		// not spin on the open circuit.
		p.queue.Requeue(ctx, *msg)
		p.logger.Debugf("Circuit open for %s->%s, message %s stays queued",
			msg.Sender, msg.Receiver, msg.ID)
		return false, nil
	}

	if !msg.CanRetry() {
		p.handleExhausted(ctx, msg)
		return true, nil
	}

	p.handleRetry(ctx, msg)
	return true, nil
}

// handleDelivered finishes a successful delivery: mark sent, confirm the
// acknowledgment, synchronize, count it. Terminal.
func (p *Processor) handleDelivered(ctx context.Context, msg *model.Message) {
	if err := p.messages.UpdateMessageStatus(ctx, msg.ID, model.MessageStatusSent, ""); err != nil {
		p.logger.Errorf("Failed to mark message %s sent: %v", msg.ID, err)
	}
	if err := p.delivery.ConfirmDelivery(ctx, msg.ID); err != nil {
		p.logger.Warnf("Failed to confirm delivery of message %s: %v", msg.ID, err)
	}

	p.diagnostics.RecordDelivered()

	if p.sync != nil {
		if !p.sync.SynchronizeMessage(ctx, *msg) {
			p.logger.Warnf("Synchronization of message %s deferred", msg.ID)
		}
	}

	if err := p.queue.CompleteProcessing(ctx, true); err != nil {
		p.logger.Errorf("Failed to complete processing of message %s: %v", msg.ID, err)
	}

	p.logger.Infof("Delivered message %s (type=%s, attempts=%d)",
		msg.ID, msg.Type, msg.DeliveryState.Attempts)
}

// handleExhausted dead-letters a message whose retry budget is spent. Terminal.
func (p *Processor) handleExhausted(ctx context.Context, msg *model.Message) {
	p.logger.Warnf("Message %s exhausted retries (%d/%d), dead-lettering",
		msg.ID, msg.RetryCount, msg.MaxRetries)

	if err := p.delivery.HandleFailedDelivery(ctx, msg); err != nil {
		p.logger.Errorf("Failed to dead-letter message %s: %v", msg.ID, err)
	}
	if err := p.messages.UpdateMessageStatus(ctx, msg.ID, model.MessageStatusFailed, msg.DeliveryState.LastError); err != nil {
		p.logger.Errorf("Failed to mark message %s failed: %v", msg.ID, err)
	}
	if err := p.queue.CompleteProcessing(ctx, false); err != nil {
		p.logger.Errorf("Failed to complete processing of message %s: %v", msg.ID, err)
	}
}

// handleRetry re-enqueues a message at the tail for a later cycle. Not terminal.
func (p *Processor) handleRetry(ctx context.Context, msg *model.Message) {
	msg.IncrementRetry()

	if !p.queue.Enqueue(ctx, *msg) {
		// The durable store still holds the message as pending; it will be
		// replayed on the next resynchronization.
		p.logger.Errorf("Failed to re-enqueue message %s for retry", msg.ID)
	}
	if err := p.messages.UpdateMessageStatus(ctx, msg.ID, model.MessageStatusPending, msg.DeliveryState.LastError); err != nil {
		p.logger.Errorf("Failed to mark message %s pending: %v", msg.ID, err)
	}

	p.diagnostics.RecordRetry()

	if err := p.notifications.NotifyDeliveryFailure(ctx, msg, NewError(ErrCodeDelivery, msg.DeliveryState.LastError)); err != nil {
		p.logger.Warnf("Failed to send delivery failure notification: %v", err)
	}
	if err := p.queue.CompleteProcessing(ctx, false); err != nil {
		p.logger.Errorf("Failed to complete processing of message %s: %v", msg.ID, err)
	}

	p.logger.Warnf("Re-queued message %s for retry %d/%d", msg.ID, msg.RetryCount, msg.MaxRetries)
}

// DrainOnce processes queued messages until the queue is empty.
// Returns the number of messages processed.
func (p *Processor) DrainOnce(ctx context.Context) int {
	processed := 0
	for {
		ok, err := p.ProcessNext(ctx)
		if err != nil {
			p.logger.Errorf("Error processing message: %v", err)
		}
		if !ok {
			return processed
		}
		processed++
	}
}

// Run starts the processing loop. Each tick drains the queue, skipping the
// batch entirely while offline. This method blocks until the context is
// canceled and should typically run in a goroutine.
func (p *Processor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("Message processor started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Message processor stopped")
			return
		case <-ticker.C:
			if p.online != nil && !p.online() {
				continue
			}
			if n := p.DrainOnce(ctx); n > 0 {
				p.logger.Debugf("Processed %d messages", n)
			}
		}
	}
}
