package courier

import (
	"fmt"
)

// Option is a function that configures a Processor.
// Used with the options pattern for flexible service construction.
//
// Example:
//
//	processor, err := courier.NewProcessor(
//	    courier.WithProcessorQueue(queue),
//	    courier.WithProcessorDelivery(delivery),
//	    courier.WithProcessorMessageStore(messages),
//	    courier.WithProcessorDiagnostics(diagnostics),
//	    courier.WithProcessorLogger(logger),
//	)
type Option func(*Processor) error

// WithProcessorQueue sets the in-memory queue the processor drains.
// This is a required option for NewProcessor.
func WithProcessorQueue(queue *Queue) Option {
	return func(p *Processor) error {
		if queue == nil {
			return fmt.Errorf("queue cannot be nil")
		}
		p.queue = queue
		return nil
	}
}

// WithProcessorDelivery sets the delivery service.
// This is a required option for NewProcessor.
func WithProcessorDelivery(delivery *DeliveryService) Option {
	return func(p *Processor) error {
		if delivery == nil {
			return fmt.Errorf("delivery service cannot be nil")
		}
		p.delivery = delivery
		return nil
	}
}

// WithProcessorMessageStore sets the durable message store.
// This is a required option for NewProcessor.
func WithProcessorMessageStore(messages MessageStore) Option {
	return func(p *Processor) error {
		if messages == nil {
			return fmt.Errorf("message store cannot be nil")
		}
		p.messages = messages
		return nil
	}
}

// WithProcessorDiagnostics sets the diagnostics collector.
// This is a required option for NewProcessor.
func WithProcessorDiagnostics(diagnostics *Diagnostics) Option {
	return func(p *Processor) error {
		if diagnostics == nil {
			return fmt.Errorf("diagnostics cannot be nil")
		}
		p.diagnostics = diagnostics
		return nil
	}
}

// WithProcessorLogger sets the logger instance.
// This is a required option for NewProcessor.
func WithProcessorLogger(logger Logger) Option {
	return func(p *Processor) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		p.logger = logger
		return nil
	}
}

// WithProcessorSync wires the synchronization service so that every
// delivered message is synchronized (vector clock increment + sequence
// persistence). Optional: without it, delivery skips synchronization.
func WithProcessorSync(sync *SyncService) Option {
	return func(p *Processor) error {
		if sync == nil {
			return fmt.Errorf("sync service cannot be nil")
		}
		p.sync = sync
		return nil
	}
}

// WithProcessorOnlineCheck gates batch processing on connectivity.
// Optional: without it, the processor assumes the backend is reachable.
func WithProcessorOnlineCheck(online func() bool) Option {
	return func(p *Processor) error {
		if online == nil {
			return fmt.Errorf("online check cannot be nil")
		}
		p.online = online
		return nil
	}
}

// WithProcessorNotifications sets an optional notification service called on
// every failed delivery attempt. Default: NoOpNotificationService.
func WithProcessorNotifications(service NotificationService) Option {
	return func(p *Processor) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		p.notifications = service
		return nil
	}
}
