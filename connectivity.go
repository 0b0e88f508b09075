package courier

import (
	"context"
	"sync"
	"time"

	"github.com/coregx/courier/model"
)

// Resynchronizer restores pending state when connectivity returns.
// Implemented by OfflineService.
type Resynchronizer interface {
	// Resynchronize replays pending messages and re-validates local state.
	Resynchronize(ctx context.Context) error

	// SetOffline pauses delivery-related activity.
	SetOffline(ctx context.Context)
}

// ConnectivityManager tracks the connected/disconnected state of the process.
//
// Transitions are triggered exclusively by an external connectivity oracle
// calling HandleOnline/HandleOffline — the manager never polls. On
// disconnect it starts the reconnection schedule; on connect it resets the
// schedule and triggers resynchronization.
//
// Subscribers are typed per event kind and invoked synchronously in
// subscription order, with no backpressure. Subscribing is not safe after
// the first transition is underway; register subscribers during wiring.
type ConnectivityManager struct {
	mu          sync.Mutex
	state       model.ConnectionState
	states      StateStore
	recon       *ReconnectionManager
	resync      Resynchronizer
	probe       func(ctx context.Context) bool
	logger      Logger

	stateSubs   []func(model.ConnectionState)
	successSubs []func()
	errorSubs   []func(error)
}

// ConnectivityOption configures a ConnectivityManager.
type ConnectivityOption func(*ConnectivityManager) error

// WithConnectivityProbe supplies an optional reachability probe consulted on
// every reconnection attempt (e.g. a database ping). Without a probe,
// reconnection attempts keep rescheduling until the oracle reports online.
func WithConnectivityProbe(probe func(ctx context.Context) bool) ConnectivityOption {
	return func(m *ConnectivityManager) error {
		if probe == nil {
			return NewError(ErrCodeConfiguration, "connectivity probe cannot be nil")
		}
		m.probe = probe
		return nil
	}
}

// NewConnectivityManager creates the process-wide connectivity state machine.
// The reconnection manager is constructed internally so its attempt events
// feed straight back into the state machine.
func NewConnectivityManager(states StateStore, resync Resynchronizer, logger Logger, reconOpts []ReconnectionOption, opts ...ConnectivityOption) (*ConnectivityManager, error) {
	if states == nil {
		return nil, NewError(ErrCodeConfiguration, "StateStore is required")
	}
	if resync == nil {
		return nil, NewError(ErrCodeConfiguration, "Resynchronizer is required")
	}
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	m := &ConnectivityManager{
		state:  model.NewConnectionState(),
		states: states,
		resync: resync,
		logger: logger,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	recon, err := NewReconnectionManager(logger, m.handleReconnectionAttempt, m.handleReconnectionExhausted, reconOpts...)
	if err != nil {
		return nil, err
	}
	m.recon = recon

	return m, nil
}

// OnStateChange registers a subscriber for connectivity transitions.
func (m *ConnectivityManager) OnStateChange(fn func(model.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateSubs = append(m.stateSubs, fn)
}

// OnReconnectionSuccess registers a subscriber for successful reconnections.
func (m *ConnectivityManager) OnReconnectionSuccess(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successSubs = append(m.successSubs, fn)
}

// OnReconnectionError registers a subscriber for reconnection failures,
// including the terminal attempts-exhausted error.
func (m *ConnectivityManager) OnReconnectionError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorSubs = append(m.errorSubs, fn)
}

// HandleOnline processes a "connectivity restored" oracle event: it resets
// the reconnection schedule, resynchronizes pending state, persists the
// connectivity record and notifies subscribers.
func (m *ConnectivityManager) HandleOnline(ctx context.Context) error {
	m.mu.Lock()
	wasOffline := m.state.Status == model.StatusDisconnected
	now := time.Now()
	m.state.Status = model.StatusConnected
	m.state.LastConnectedAt = &now
	m.state.Reconnecting = false
	state := m.state
	m.mu.Unlock()

	m.logger.Info("Connectivity restored")
	m.recon.Reset()

	if err := m.resync.Resynchronize(ctx); err != nil {
		m.logger.Errorf("Resynchronization failed: %v", err)
	}

	if err := m.states.SaveConnectivityState(ctx, state); err != nil {
		m.logger.Errorf("Failed to persist connectivity state: %v", err)
	}

	m.emitStateChange(state)
	if wasOffline {
		m.emitSuccess()
	}
	return nil
}

// HandleOffline processes a "connectivity lost" oracle event: it persists the
// disconnected state, notifies subscribers and starts the reconnection
// schedule.
func (m *ConnectivityManager) HandleOffline(ctx context.Context) error {
	m.mu.Lock()
	now := time.Now()
	m.state.Status = model.StatusDisconnected
	m.state.LastDisconnectedAt = &now
	m.state.Reconnecting = true
	state := m.state
	m.mu.Unlock()

	m.logger.Warnf("Connectivity lost at %v", now.Format(time.RFC3339))
	m.resync.SetOffline(ctx)

	if err := m.states.SaveConnectivityState(ctx, state); err != nil {
		m.logger.Errorf("Failed to persist connectivity state: %v", err)
	}

	m.emitStateChange(state)

	if err := m.recon.Start(); err != nil {
		m.emitError(err)
	}
	return nil
}

// Online reports whether the current state is connected.
func (m *ConnectivityManager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Online()
}

// State returns a copy of the current connectivity record.
func (m *ConnectivityManager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reconnection exposes the managed reconnection schedule (read-only use).
func (m *ConnectivityManager) Reconnection() *ReconnectionManager {
	return m.recon
}

// handleReconnectionAttempt re-validates connectivity when a scheduled
// attempt fires: with a passing probe the connection is considered restored;
// otherwise the next attempt is scheduled.
func (m *ConnectivityManager) handleReconnectionAttempt(attempt int) {
	ctx := context.Background()

	if m.probe != nil && m.probe(ctx) {
		if err := m.HandleOnline(ctx); err != nil {
			m.logger.Errorf("Reconnection attempt %d failed to restore state: %v", attempt, err)
		}
		return
	}

	m.emitError(NewError(ErrCodeDelivery, "reconnection attempt failed"))
	if err := m.recon.Start(); err != nil {
		m.emitError(err)
	}
}

// handleReconnectionExhausted fires the terminal failure event.
func (m *ConnectivityManager) handleReconnectionExhausted() {
	m.emitError(ErrReconnectionExhausted)
}

func (m *ConnectivityManager) emitStateChange(state model.ConnectionState) {
	m.mu.Lock()
	subs := make([]func(model.ConnectionState), len(m.stateSubs))
	copy(subs, m.stateSubs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func (m *ConnectivityManager) emitSuccess() {
	m.mu.Lock()
	subs := make([]func(), len(m.successSubs))
	copy(subs, m.successSubs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (m *ConnectivityManager) emitError(err error) {
	m.mu.Lock()
	subs := make([]func(error), len(m.errorSubs))
	copy(subs, m.errorSubs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(err)
	}
}
