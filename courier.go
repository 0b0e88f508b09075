package courier

import (
	"context"
	"sync"
	"time"

	"github.com/coregx/courier/model"
	"github.com/coregx/courier/retry"
)

// Default cleanup knobs for the durable message store.
const (
	DefaultCleanupMaxAge   = 24 * time.Hour
	DefaultCleanupInterval = 6 * time.Hour
)

// Config carries all tunables of a Courier instance.
// Zero values are replaced by defaults; use DefaultConfig as a baseline.
type Config struct {
	// AgentID identifies this process in vector clocks and sequence records.
	AgentID string

	// MaxQueueSize bounds the in-memory queue.
	MaxQueueSize int

	// MaxRetries is the per-message delivery retry budget.
	MaxRetries int

	// RetryDelay is the fixed wait between delivery attempts on a message.
	RetryDelay time.Duration

	// AckTimeout is how long an acknowledgment may stay pending.
	AckTimeout time.Duration

	// Reconnection is the backoff policy for reconnection scheduling.
	Reconnection retry.Policy

	// MaxReconnectionAttempts caps consecutive reconnection attempts.
	MaxReconnectionAttempts int

	// BreakerFailureThreshold opens a delivery circuit after this many
	// consecutive failures on one sender->receiver pair.
	BreakerFailureThreshold int

	// BreakerResetTimeout is how long an open circuit waits before probing.
	BreakerResetTimeout time.Duration

	// ConsistencyInterval is the period of the sequence log gap check.
	ConsistencyInterval time.Duration

	// ProcessInterval is the period of the queue processing loop.
	ProcessInterval time.Duration

	// CleanupMaxAge is the retention window for sent/acknowledged messages.
	CleanupMaxAge time.Duration

	// CleanupInterval is the period of the store cleanup loop.
	CleanupInterval time.Duration

	// DeadLetterRetention bounds the in-memory dead letter list.
	DeadLetterRetention int
}

// DefaultConfig returns the production defaults.
func DefaultConfig(agentID string) Config {
	return Config{
		AgentID:                 agentID,
		MaxQueueSize:            DefaultQueueCapacity,
		MaxRetries:              model.DefaultMaxRetries,
		RetryDelay:              time.Second,
		AckTimeout:              DefaultAckTimeout,
		Reconnection:            retry.DefaultPolicy(),
		MaxReconnectionAttempts: DefaultMaxReconnectionAttempts,
		BreakerFailureThreshold: DefaultBreakerFailureThreshold,
		BreakerResetTimeout:     DefaultBreakerResetTimeout,
		ConsistencyInterval:     DefaultConsistencyInterval,
		ProcessInterval:         100 * time.Millisecond,
		CleanupMaxAge:           DefaultCleanupMaxAge,
		CleanupInterval:         DefaultCleanupInterval,
		DeadLetterRetention:     DefaultDeadLetterRetention,
	}
}

// Stores groups the persistence interfaces a Courier needs.
type Stores struct {
	Messages  MessageStore
	States    StateStore
	Log       DeliveryLog
	Sequences SequenceStore
	Acks      AckStore
}

func (s Stores) validate() error {
	if s.Messages == nil {
		return NewError(ErrCodeConfiguration, "MessageStore is required")
	}
	if s.States == nil {
		return NewError(ErrCodeConfiguration, "StateStore is required")
	}
	if s.Log == nil {
		return NewError(ErrCodeConfiguration, "DeliveryLog is required")
	}
	if s.Sequences == nil {
		return NewError(ErrCodeConfiguration, "SequenceStore is required")
	}
	if s.Acks == nil {
		return NewError(ErrCodeConfiguration, "AckStore is required")
	}
	return nil
}

// Courier wires the queue, delivery, acknowledgment, connectivity and
// synchronization services into one message delivery subsystem.
//
// All collaborators are injected through New; nothing in the package holds
// process-global state, so multiple Courier instances can coexist (e.g. in
// tests) without interference.
type Courier struct {
	cfg           Config
	stores        Stores
	logger        Logger
	notifications NotificationService
	resolver      ConflictResolver
	probe         func(ctx context.Context) bool

	queue        *Queue
	diagnostics  *Diagnostics
	acks         *AckTracker
	delivery     *DeliveryService
	sync         *SyncService
	consistency  *ConsistencyValidator
	offline      *OfflineService
	connectivity *ConnectivityManager
	processor    *Processor

	cleanupMu   sync.Mutex
	lastCleanup time.Time
}

// CourierOption configures a Courier during New.
type CourierOption func(*Courier) error

// WithNotifications attaches a notification sink for delivery failures,
// dead letters and connectivity changes.
func WithNotifications(service NotificationService) CourierOption {
	return func(c *Courier) error {
		if service == nil {
			return NewError(ErrCodeConfiguration, "NotificationService cannot be nil")
		}
		c.notifications = service
		return nil
	}
}

// WithCourierConflictResolver replaces the default timestamp-wins conflict
// strategy on the synchronization service.
func WithCourierConflictResolver(r ConflictResolver) CourierOption {
	return func(c *Courier) error {
		if r == nil {
			return NewError(ErrCodeConfiguration, "ConflictResolver cannot be nil")
		}
		c.resolver = r
		return nil
	}
}

// WithConnectivityProbeOption forwards a reachability probe to the
// connectivity manager.
func WithConnectivityProbeOption(probe func(ctx context.Context) bool) CourierOption {
	return func(c *Courier) error {
		if probe == nil {
			return NewError(ErrCodeConfiguration, "connectivity probe cannot be nil")
		}
		c.probe = probe
		return nil
	}
}

// New builds a fully wired Courier from configuration and stores.
func New(cfg Config, stores Stores, logger Logger, opts ...CourierOption) (*Courier, error) {
	if cfg.AgentID == "" {
		return nil, NewError(ErrCodeConfiguration, "agent id is required")
	}
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}
	if err := stores.validate(); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)

	c := &Courier{
		cfg:           cfg,
		stores:        stores,
		logger:        logger,
		notifications: &NoOpNotificationService{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	var err error

	c.queue, err = NewQueue(stores.States, logger, WithQueueCapacity(cfg.MaxQueueSize))
	if err != nil {
		return nil, err
	}

	c.diagnostics, err = NewDiagnostics(logger,
		WithDeadLetterRetention(cfg.DeadLetterRetention),
		WithDiagnosticsNotifications(c.notifications),
	)
	if err != nil {
		return nil, err
	}

	c.acks, err = NewAckTracker(stores.Acks, logger, WithAckTimeout(cfg.AckTimeout))
	if err != nil {
		return nil, err
	}

	c.delivery, err = NewDeliveryService(stores.Log, c.acks, c.diagnostics, logger,
		WithDeliveryRetryPolicy(retry.DeliveryPolicy{MaxAttempts: cfg.MaxRetries, Delay: cfg.RetryDelay}),
		WithBreakerSettings(cfg.BreakerFailureThreshold, cfg.BreakerResetTimeout),
	)
	if err != nil {
		return nil, err
	}

	syncOpts := []SyncOption{}
	if c.resolver != nil {
		syncOpts = append(syncOpts, WithConflictResolver(c.resolver))
	}
	c.sync, err = NewSyncService(cfg.AgentID, stores.Sequences, logger, syncOpts...)
	if err != nil {
		return nil, err
	}

	c.consistency, err = NewConsistencyValidator(stores.Sequences, logger)
	if err != nil {
		return nil, err
	}

	c.offline, err = NewOfflineService(c.queue, stores.Messages, logger,
		WithOfflineSync(c.sync),
		WithOfflineMaxRetries(cfg.MaxRetries),
	)
	if err != nil {
		return nil, err
	}

	reconOpts := []ReconnectionOption{
		WithReconnectionPolicy(cfg.Reconnection),
		WithMaxReconnectionAttempts(cfg.MaxReconnectionAttempts),
	}
	var connOpts []ConnectivityOption
	if c.probe != nil {
		connOpts = append(connOpts, WithConnectivityProbe(c.probe))
	}
	c.connectivity, err = NewConnectivityManager(stores.States, c.offline, logger, reconOpts, connOpts...)
	if err != nil {
		return nil, err
	}
	c.connectivity.OnStateChange(func(state model.ConnectionState) {
		if nerr := c.notifications.NotifyConnectivityChanged(context.Background(), state); nerr != nil {
			c.logger.Warnf("Failed to send connectivity notification: %v", nerr)
		}
	})

	c.processor, err = NewProcessor(
		WithProcessorQueue(c.queue),
		WithProcessorDelivery(c.delivery),
		WithProcessorMessageStore(stores.Messages),
		WithProcessorDiagnostics(c.diagnostics),
		WithProcessorLogger(logger),
		WithProcessorSync(c.sync),
		WithProcessorOnlineCheck(c.connectivity.Online),
		WithProcessorNotifications(c.notifications),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func applyConfigDefaults(cfg *Config) {
	def := DefaultConfig(cfg.AgentID)
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = def.AckTimeout
	}
	if cfg.Reconnection.InitialDelay <= 0 {
		cfg.Reconnection = def.Reconnection
	}
	if cfg.MaxReconnectionAttempts <= 0 {
		cfg.MaxReconnectionAttempts = def.MaxReconnectionAttempts
	}
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = def.BreakerFailureThreshold
	}
	if cfg.BreakerResetTimeout <= 0 {
		cfg.BreakerResetTimeout = def.BreakerResetTimeout
	}
	if cfg.ConsistencyInterval <= 0 {
		cfg.ConsistencyInterval = def.ConsistencyInterval
	}
	if cfg.ProcessInterval <= 0 {
		cfg.ProcessInterval = def.ProcessInterval
	}
	if cfg.CleanupMaxAge <= 0 {
		cfg.CleanupMaxAge = def.CleanupMaxAge
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.DeadLetterRetention <= 0 {
		cfg.DeadLetterRetention = def.DeadLetterRetention
	}
}

// SendMessage validates a message, persists it as pending and enqueues it.
// A full or duplicate queue rejection is reported as a capacity error; the
// message stays durable and will be replayed on the next resynchronization.
func (c *Courier) SendMessage(ctx context.Context, msg model.Message) error {
	if err := msg.Validate(); err != nil {
		return NewErrorWithCause(ErrCodeValidation, "invalid message", err)
	}

	stored := model.NewStoredMessage(msg)
	if err := c.stores.Messages.StoreMessage(ctx, &stored); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to persist message", err)
	}

	if !c.queue.Enqueue(ctx, msg) {
		return NewError(ErrCodeCapacity, "message rejected by queue")
	}
	return nil
}

// ProcessNext processes a single queued message.
func (c *Courier) ProcessNext(ctx context.Context) (bool, error) {
	return c.processor.ProcessNext(ctx)
}

// Recover restores state persisted by a previous process: the vector clock
// is rebuilt from the sequence log, then durable pending messages are
// replayed into the queue. Without it a restarted agent would re-issue
// sequence numbers from 1 and collide with its own persisted run.
//
// Run calls Recover before starting the background loops; callers driving
// ProcessNext manually should invoke it once at startup.
func (c *Courier) Recover(ctx context.Context) error {
	if err := c.sync.SynchronizeAll(ctx); err != nil {
		return err
	}
	return c.offline.Resynchronize(ctx)
}

// Run starts the background loops (processing, consistency checks,
// acknowledgment timeout sweeps, store cleanup) and blocks until ctx is
// cancelled. Recovery of persisted state runs first.
func (c *Courier) Run(ctx context.Context) {
	if err := c.Recover(ctx); err != nil {
		c.logger.Errorf("Startup recovery failed: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.processor.Run(ctx, c.cfg.ProcessInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sync.RunConsistencyLoop(ctx, c.cfg.ConsistencyInterval, c.consistency, c.connectivity.Online)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.runAckSweep(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.runCleanup(ctx)
	}()

	wg.Wait()
}

func (c *Courier) runAckSweep(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.AckTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if timedOut, err := c.acks.SweepTimeouts(ctx); err != nil {
				c.logger.Errorf("Acknowledgment timeout sweep failed: %v", err)
			} else if timedOut > 0 {
				c.logger.Warnf("Timed out %d pending acknowledgments", timedOut)
			}
		}
	}
}

func (c *Courier) runCleanup(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := c.CleanupOldMessages(ctx)
			if err != nil {
				c.logger.Errorf("Message store cleanup failed: %v", err)
				continue
			}
			if deleted > 0 {
				c.logger.Infof("Cleaned up %d old messages", deleted)
			}
		}
	}
}

// CleanupOldMessages removes sent and acknowledged messages older than the
// configured max age. Cleanup is self-throttled: it runs at most once per
// configured cleanup interval regardless of how often it is called, and
// throttled calls return 0 without touching the store.
func (c *Courier) CleanupOldMessages(ctx context.Context) (int, error) {
	c.cleanupMu.Lock()
	if !c.lastCleanup.IsZero() && time.Since(c.lastCleanup) < c.cfg.CleanupInterval {
		c.cleanupMu.Unlock()
		return 0, nil
	}
	c.lastCleanup = time.Now()
	c.cleanupMu.Unlock()

	return c.stores.Messages.ClearOldMessages(ctx, c.cfg.CleanupMaxAge)
}

// HandleOnline forwards a connectivity-restored event.
func (c *Courier) HandleOnline(ctx context.Context) error {
	return c.connectivity.HandleOnline(ctx)
}

// HandleOffline forwards a connectivity-lost event.
func (c *Courier) HandleOffline(ctx context.Context) error {
	return c.connectivity.HandleOffline(ctx)
}

// Online reports current connectivity.
func (c *Courier) Online() bool {
	return c.connectivity.Online()
}

// Metrics returns a copy of the queue metrics.
func (c *Courier) Metrics() model.QueueMetrics {
	return c.queue.Metrics()
}

// QueueLen returns the number of queued messages.
func (c *Courier) QueueLen() int {
	return c.queue.Len()
}

// DeadLetters returns a copy of the retained dead letter entries.
func (c *Courier) DeadLetters() []model.DeadLetterEntry {
	return c.diagnostics.DeadLetters()
}

// ResolveDeadLetter marks a dead letter entry resolved.
func (c *Courier) ResolveDeadLetter(messageID, resolvedBy, note string) bool {
	return c.diagnostics.ResolveDeadLetter(messageID, resolvedBy, note)
}

// DeadLetterStats summarizes the dead letter list.
func (c *Courier) DeadLetterStats() model.DeadLetterStats {
	return c.diagnostics.Stats()
}

// PendingMessages lists durable messages awaiting delivery.
func (c *Courier) PendingMessages(ctx context.Context) ([]model.StoredMessage, error) {
	msgs, err := c.stores.Messages.GetPendingMessages(ctx)
	if err != nil && IsNoData(err) {
		return nil, nil
	}
	return msgs, err
}

// Connectivity exposes the connectivity manager for subscriber registration.
func (c *Courier) Connectivity() *ConnectivityManager {
	return c.connectivity
}

// Sync exposes the synchronization service.
func (c *Courier) Sync() *SyncService {
	return c.sync
}
