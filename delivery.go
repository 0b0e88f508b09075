package courier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/coregx/courier/model"
	"github.com/coregx/courier/retry"
)

// Circuit breaker defaults for the delivery path.
const (
	DefaultBreakerFailureThreshold = 5
	DefaultBreakerResetTimeout     = 30 * time.Second
)

// DeliveryOutcome is the result of a single DeliverMessage call.
type DeliveryOutcome int

const (
	// DeliveryDelivered means the message reached the durable log.
	DeliveryDelivered DeliveryOutcome = iota

	// DeliveryFailed means transport attempts were made and all failed.
	DeliveryFailed

	// DeliveryRejected means the route's circuit is open and no transport
	// attempt was made. A rejection is not a delivery failure: it records
	// nothing on the message and must not consume its retry budget.
	DeliveryRejected
)

// DeliveryService hands messages to the external durable log.
//
// Every delivery is guarded by a circuit breaker keyed by a per-message
// context string (sender→receiver pair). An open breaker fails fast: the
// delivery is skipped without a network attempt and DeliveryRejected is
// returned. Transport attempts themselves run under a bounded fixed-delay
// retry policy; escalation beyond that (re-enqueue or dead-letter) belongs
// to the processing layer.
type DeliveryService struct {
	journal       DeliveryLog
	acks          *AckTracker
	diagnostics   *Diagnostics
	policy        retry.DeliveryPolicy
	threshold     uint32
	resetTimeout  time.Duration
	logger        Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// DeliveryOption configures a DeliveryService.
type DeliveryOption func(*DeliveryService) error

// WithDeliveryRetryPolicy overrides the transport retry policy.
func WithDeliveryRetryPolicy(policy retry.DeliveryPolicy) DeliveryOption {
	return func(s *DeliveryService) error {
		if err := policy.Validate(); err != nil {
			return NewErrorWithCause(ErrCodeConfiguration, "invalid delivery retry policy", err)
		}
		s.policy = policy
		return nil
	}
}

// WithBreakerSettings overrides the circuit breaker trip threshold and reset timeout.
func WithBreakerSettings(failureThreshold int, resetTimeout time.Duration) DeliveryOption {
	return func(s *DeliveryService) error {
		if failureThreshold <= 0 {
			return NewError(ErrCodeConfiguration, "breaker failure threshold must be > 0")
		}
		s.threshold = uint32(failureThreshold)
		s.resetTimeout = resetTimeout
		return nil
	}
}

// NewDeliveryService creates a delivery service writing to the given journal.
func NewDeliveryService(journal DeliveryLog, acks *AckTracker, diagnostics *Diagnostics, logger Logger, opts ...DeliveryOption) (*DeliveryService, error) {
	if journal == nil {
		return nil, NewError(ErrCodeConfiguration, "DeliveryLog is required")
	}
	if acks == nil {
		return nil, NewError(ErrCodeConfiguration, "AckTracker is required")
	}
	if diagnostics == nil {
		return nil, NewError(ErrCodeConfiguration, "Diagnostics is required")
	}
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	s := &DeliveryService{
		journal:      journal,
		acks:         acks,
		diagnostics:  diagnostics,
		policy:       retry.DefaultDeliveryPolicy(),
		threshold:    DefaultBreakerFailureThreshold,
		resetTimeout: DefaultBreakerResetTimeout,
		logger:       logger,
		breakers:     make(map[string]*gobreaker.CircuitBreaker),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// DeliverMessage attempts to hand a message to the durable log.
//
// On success it creates an acknowledgment record, marks the message
// delivered and records breaker success. On failure it records the error on
// the message, the breaker and diagnostics. An open breaker short-circuits
// with DeliveryRejected before any transport attempt — it never panics and
// never surfaces transport errors to the caller.
func (s *DeliveryService) DeliverMessage(ctx context.Context, msg *model.Message) DeliveryOutcome {
	breaker := s.breakerFor(deliveryContextKey(msg))

	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, s.appendWithRetry(ctx, msg)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// Fail fast: no network attempt was made.
		s.logger.Debugf("Circuit open, skipped delivery of message %s", msg.ID)
		return DeliveryRejected
	}
	if err != nil {
		msg.RecordFailure(err)
		s.diagnostics.RecordFailure()
		s.logger.Warnf("Delivery of message %s failed: %v", msg.ID, err)
		return DeliveryFailed
	}

	msg.RecordDelivered()
	if _, ackErr := s.acks.CreateAcknowledgment(ctx, msg.ID); ackErr != nil {
		// The message made it into the log; a missing ack record will be
		// caught by the timeout sweep.
		s.logger.Errorf("Failed to create acknowledgment for message %s: %v", msg.ID, ackErr)
	}

	s.logger.Debugf("Delivered message %s (attempts=%d)", msg.ID, msg.DeliveryState.Attempts)
	return DeliveryDelivered
}

// ConfirmDelivery transitions the acknowledgment for a message to received.
func (s *DeliveryService) ConfirmDelivery(ctx context.Context, messageID string) error {
	return s.acks.UpdateAcknowledgment(ctx, messageID, model.AckStatusReceived, "")
}

// HandleFailedDelivery escalates a message whose retries are exhausted:
// it appends a FAILED_DELIVERY marker to the durable log, marks the
// acknowledgment failed and dead-letters the message.
func (s *DeliveryService) HandleFailedDelivery(ctx context.Context, msg *model.Message) error {
	record := model.NewFailureRecord(*msg)
	if err := s.journal.AppendFailure(ctx, &record); err != nil {
		s.logger.Errorf("Failed to append failure marker for message %s: %v", msg.ID, err)
	}

	if err := s.acks.UpdateAcknowledgment(ctx, msg.ID, model.AckStatusFailed, msg.DeliveryState.LastError); err != nil && !IsNoData(err) {
		s.logger.Errorf("Failed to fail acknowledgment for message %s: %v", msg.ID, err)
	}

	reason := fmt.Sprintf("max retry attempts exceeded (%d >= %d)", msg.RetryCount, msg.MaxRetries)
	s.diagnostics.AddDeadLetter(ctx, model.NewDeadLetterEntry(*msg, reason))
	return nil
}

// appendWithRetry writes the message to the durable log under the bounded
// fixed-delay retry policy.
func (s *DeliveryService) appendWithRetry(ctx context.Context, msg *model.Message) error {
	var lastErr error

	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		record := model.NewDeliveryRecord(*msg)
		lastErr = s.journal.AppendDelivery(ctx, &record)
		if lastErr == nil {
			return nil
		}

		s.logger.Debugf("Delivery attempt %d/%d for message %s failed: %v",
			attempt, s.policy.MaxAttempts, msg.ID, lastErr)

		if attempt == s.policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.policy.Delay):
		}
	}

	return NewErrorWithCause(ErrCodeDelivery, "failed to append message to durable log", lastErr)
}

// breakerFor lazily creates the circuit breaker for a delivery context key.
func (s *DeliveryService) breakerFor(key string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if breaker, ok := s.breakers[key]; ok {
		return breaker
	}

	threshold := s.threshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     s.resetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warnf("Delivery circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	s.breakers[key] = breaker
	return breaker
}

// deliveryContextKey builds the per-message breaker key.
func deliveryContextKey(msg *model.Message) string {
	return "message-delivery:" + msg.Sender + "->" + msg.Receiver
}
