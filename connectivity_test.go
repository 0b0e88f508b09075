package courier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coregx/courier/model"
	"github.com/coregx/courier/retry"
)

// fakeResynchronizer records resynchronization calls.
type fakeResynchronizer struct {
	mu       sync.Mutex
	resyncs  int
	offlines int
	err      error
}

func (f *fakeResynchronizer) Resynchronize(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resyncs++
	return f.err
}

func (f *fakeResynchronizer) SetOffline(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offlines++
}

func (f *fakeResynchronizer) counts() (resyncs, offlines int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resyncs, f.offlines
}

func slowReconnection() []ReconnectionOption {
	return []ReconnectionOption{
		WithReconnectionPolicy(retry.Policy{
			InitialDelay: time.Hour,
			MaxDelay:     time.Hour,
			Factor:       2.0,
		}),
	}
}

func TestConnectivityManager_HandleOffline(t *testing.T) {
	ctx := context.Background()
	states := newMemStateStore()
	resync := &fakeResynchronizer{}

	m, err := NewConnectivityManager(states, resync, &NoopLogger{}, slowReconnection())
	assert.NoError(t, err)
	assert.True(t, m.Online())

	var transitions []model.ConnectivityStatus
	m.OnStateChange(func(s model.ConnectionState) {
		transitions = append(transitions, s.Status)
	})

	assert.NoError(t, m.HandleOffline(ctx))

	assert.False(t, m.Online())
	assert.Equal(t, []model.ConnectivityStatus{model.StatusDisconnected}, transitions)

	_, offlines := resync.counts()
	assert.Equal(t, 1, offlines)

	persisted, err := states.LoadConnectivityState(ctx)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusDisconnected, persisted.Status)
	assert.True(t, persisted.Reconnecting)
	assert.NotNil(t, persisted.LastDisconnectedAt)

	// A reconnection attempt is now scheduled.
	assert.True(t, m.Reconnection().Pending())
}

func TestConnectivityManager_HandleOnlineAfterOutage(t *testing.T) {
	ctx := context.Background()
	states := newMemStateStore()
	resync := &fakeResynchronizer{}

	m, err := NewConnectivityManager(states, resync, &NoopLogger{}, slowReconnection())
	assert.NoError(t, err)

	successes := 0
	m.OnReconnectionSuccess(func() { successes++ })

	assert.NoError(t, m.HandleOffline(ctx))
	assert.NoError(t, m.HandleOnline(ctx))

	assert.True(t, m.Online())
	assert.Equal(t, 1, successes)

	resyncs, _ := resync.counts()
	assert.Equal(t, 1, resyncs)

	// Reconnection schedule is cleared.
	assert.False(t, m.Reconnection().Pending())
	assert.Equal(t, 0, m.Reconnection().State().Attempts)

	persisted, err := states.LoadConnectivityState(ctx)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusConnected, persisted.Status)
	assert.False(t, persisted.Reconnecting)
	assert.NotNil(t, persisted.LastConnectedAt)
}

func TestConnectivityManager_OnlineWithoutOutageEmitsNoSuccess(t *testing.T) {
	ctx := context.Background()
	m, err := NewConnectivityManager(newMemStateStore(), &fakeResynchronizer{}, &NoopLogger{}, slowReconnection())
	assert.NoError(t, err)

	successes := 0
	m.OnReconnectionSuccess(func() { successes++ })

	assert.NoError(t, m.HandleOnline(ctx))
	assert.Equal(t, 0, successes)
}

func TestConnectivityManager_SubscribersInvokedInOrder(t *testing.T) {
	ctx := context.Background()
	m, err := NewConnectivityManager(newMemStateStore(), &fakeResynchronizer{}, &NoopLogger{}, slowReconnection())
	assert.NoError(t, err)

	var order []string
	m.OnStateChange(func(model.ConnectionState) { order = append(order, "first") })
	m.OnStateChange(func(model.ConnectionState) { order = append(order, "second") })

	assert.NoError(t, m.HandleOffline(ctx))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestConnectivityManager_ProbeDrivenRecovery(t *testing.T) {
	ctx := context.Background()
	resync := &fakeResynchronizer{}
	recovered := make(chan struct{}, 1)

	m, err := NewConnectivityManager(newMemStateStore(), resync, &NoopLogger{},
		[]ReconnectionOption{
			WithReconnectionPolicy(fastReconnectionPolicy()),
		},
		WithConnectivityProbe(func(context.Context) bool { return true }))
	assert.NoError(t, err)

	m.OnReconnectionSuccess(func() {
		select {
		case recovered <- struct{}{}:
		default:
		}
	})

	assert.NoError(t, m.HandleOffline(ctx))

	select {
	case <-recovered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for probe-driven recovery")
	}

	assert.True(t, m.Online())
	resyncs, _ := resync.counts()
	assert.Equal(t, 1, resyncs)
}

func TestConnectivityManager_ExhaustionReportedToErrorSubscribers(t *testing.T) {
	ctx := context.Background()
	exhausted := make(chan error, 1)

	m, err := NewConnectivityManager(newMemStateStore(), &fakeResynchronizer{}, &NoopLogger{},
		[]ReconnectionOption{
			WithReconnectionPolicy(fastReconnectionPolicy()),
			WithMaxReconnectionAttempts(2),
		},
		WithConnectivityProbe(func(context.Context) bool { return false }))
	assert.NoError(t, err)

	m.OnReconnectionError(func(e error) {
		if errors.Is(e, ErrReconnectionExhausted) {
			select {
			case exhausted <- e:
			default:
			}
		}
	})

	assert.NoError(t, m.HandleOffline(ctx))

	select {
	case <-exhausted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconnection exhaustion")
	}

	assert.False(t, m.Online())
}

func TestConnectivityManager_RequiresDependencies(t *testing.T) {
	_, err := NewConnectivityManager(nil, &fakeResynchronizer{}, &NoopLogger{}, nil)
	assert.Error(t, err)

	_, err = NewConnectivityManager(newMemStateStore(), nil, &NoopLogger{}, nil)
	assert.Error(t, err)

	_, err = NewConnectivityManager(newMemStateStore(), &fakeResynchronizer{}, &NoopLogger{}, nil,
		WithConnectivityProbe(nil))
	assert.Error(t, err)
}
