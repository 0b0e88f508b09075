package courier

import (
	"context"

	"github.com/coregx/courier/model"
)

// NotificationService defines an optional interface for surfacing courier
// events (delivery failures, dead-letter entries, connectivity changes).
//
// Implementations might send emails, Slack messages, or feed monitoring
// systems.
type NotificationService interface {
	// NotifyDeliveryFailure is called on every failed delivery attempt.
	// This is informational and happens before dead-lettering.
	NotifyDeliveryFailure(ctx context.Context, msg *model.Message, err error) error

	// NotifyDeadLetter is called when a message exhausts all retries and is
	// moved to the dead-letter queue.
	NotifyDeadLetter(ctx context.Context, entry model.DeadLetterEntry) error

	// NotifyConnectivityChanged is called on every connect/disconnect transition.
	NotifyConnectivityChanged(ctx context.Context, state model.ConnectionState) error
}

// NoOpNotificationService is a no-op implementation of NotificationService.
// Use this when notifications are not needed.
type NoOpNotificationService struct{}

// NotifyDeliveryFailure does nothing.
func (n *NoOpNotificationService) NotifyDeliveryFailure(_ context.Context, _ *model.Message, _ error) error {
	return nil
}

// NotifyDeadLetter does nothing.
func (n *NoOpNotificationService) NotifyDeadLetter(_ context.Context, _ model.DeadLetterEntry) error {
	return nil
}

// NotifyConnectivityChanged does nothing.
func (n *NoOpNotificationService) NotifyConnectivityChanged(_ context.Context, _ model.ConnectionState) error {
	return nil
}

// LoggingNotificationService is a simple implementation that logs notifications.
type LoggingNotificationService struct {
	logger Logger
}

// NewLoggingNotificationService creates a new LoggingNotificationService.
func NewLoggingNotificationService(logger Logger) *LoggingNotificationService {
	return &LoggingNotificationService{logger: logger}
}

// NotifyDeliveryFailure logs the failed attempt.
func (n *LoggingNotificationService) NotifyDeliveryFailure(_ context.Context, msg *model.Message, err error) error {
	n.logger.Warnf("Delivery failed: message=%s, attempt=%d, error=%v",
		msg.ID, msg.DeliveryState.Attempts, err)
	return nil
}

// NotifyDeadLetter logs the dead-letter entry.
func (n *LoggingNotificationService) NotifyDeadLetter(_ context.Context, entry model.DeadLetterEntry) error {
	n.logger.Warnf("Message dead-lettered: message=%s, attempts=%d, reason=%s",
		entry.MessageID, entry.AttemptCount, entry.FailureReason)
	return nil
}

// NotifyConnectivityChanged logs the transition.
func (n *LoggingNotificationService) NotifyConnectivityChanged(_ context.Context, state model.ConnectionState) error {
	n.logger.Infof("Connectivity changed: status=%s, reconnecting=%v", state.Status, state.Reconnecting)
	return nil
}
