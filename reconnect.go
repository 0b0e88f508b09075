package courier

import (
	"sync"
	"time"

	"github.com/coregx/courier/model"
	"github.com/coregx/courier/retry"
)

// DefaultMaxReconnectionAttempts caps the reconnection schedule.
const DefaultMaxReconnectionAttempts = 10

// ReconnectionManager schedules reconnection attempts using exponential
// backoff with jitter and a maximum attempt cap.
//
// The pending timer is the only cancellable operation in the subsystem;
// Reset cancels it and clears the attempt count. Once the attempt budget is
// exhausted a terminal failure callback fires and no further attempts are
// scheduled until the next Reset.
type ReconnectionManager struct {
	mu          sync.Mutex
	policy      retry.Policy
	maxAttempts int
	state       model.ReconnectionState
	timer       *time.Timer
	exhausted   bool
	onAttempt   func(attempt int)
	onExhausted func()
	logger      Logger
}

// ReconnectionOption configures a ReconnectionManager.
type ReconnectionOption func(*ReconnectionManager) error

// WithReconnectionPolicy overrides the backoff policy.
func WithReconnectionPolicy(policy retry.Policy) ReconnectionOption {
	return func(m *ReconnectionManager) error {
		if policy.InitialDelay <= 0 || policy.Factor < 1 {
			return NewError(ErrCodeConfiguration, "invalid reconnection backoff policy")
		}
		m.policy = policy
		return nil
	}
}

// WithMaxReconnectionAttempts overrides the attempt cap.
func WithMaxReconnectionAttempts(max int) ReconnectionOption {
	return func(m *ReconnectionManager) error {
		if max <= 0 {
			return NewError(ErrCodeConfiguration, "max reconnection attempts must be > 0")
		}
		m.maxAttempts = max
		return nil
	}
}

// NewReconnectionManager creates a reconnection manager.
// The onAttempt callback is invoked (off the lock) every time a scheduled
// timer fires; onExhausted fires once the attempt budget is spent. Either
// callback may be nil.
func NewReconnectionManager(logger Logger, onAttempt func(attempt int), onExhausted func(), opts ...ReconnectionOption) (*ReconnectionManager, error) {
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	m := &ReconnectionManager{
		policy:      retry.DefaultPolicy(),
		maxAttempts: DefaultMaxReconnectionAttempts,
		onAttempt:   onAttempt,
		onExhausted: onExhausted,
		logger:      logger,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Start schedules the next reconnection attempt. A no-op when an attempt is
// already pending. Returns ErrReconnectionExhausted once the attempt budget
// is spent (the terminal callback fires exactly once).
func (m *ReconnectionManager) Start() error {
	m.mu.Lock()

	if m.timer != nil {
		m.mu.Unlock()
		return nil
	}

	if m.state.Attempts >= m.maxAttempts {
		alreadyExhausted := m.exhausted
		m.exhausted = true
		cb := m.onExhausted
		m.mu.Unlock()

		if !alreadyExhausted {
			m.logger.Errorf("Reconnection abandoned after %d attempts", m.maxAttempts)
			if cb != nil {
				cb()
			}
		}
		return ErrReconnectionExhausted
	}

	delay := m.policy.Delay(m.state.Attempts)
	m.state.NextDelay = delay
	m.timer = time.AfterFunc(delay, m.fire)
	m.logger.Debugf("Scheduled reconnection attempt %d in %v", m.state.Attempts+1, delay)

	m.mu.Unlock()
	return nil
}

// fire runs when the scheduled timer elapses.
func (m *ReconnectionManager) fire() {
	m.mu.Lock()
	m.timer = nil
	m.state.Attempts++
	now := time.Now()
	m.state.LastAttemptAt = &now
	attempt := m.state.Attempts
	cb := m.onAttempt
	m.mu.Unlock()

	m.logger.Infof("Reconnection attempt %d/%d", attempt, m.maxAttempts)
	if cb != nil {
		cb(attempt)
	}
}

// Reset clears the attempt count and cancels any pending timer.
// Called on every successful connection.
func (m *ReconnectionManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.state = model.ReconnectionState{}
	m.exhausted = false
}

// State returns a copy of the current reconnection state.
func (m *ReconnectionManager) State() model.ReconnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending reports whether an attempt is currently scheduled.
func (m *ReconnectionManager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}
