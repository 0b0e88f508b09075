package courier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coregx/courier/retry"
)

func fastReconnectionPolicy() retry.Policy {
	return retry.Policy{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Factor:       1.5,
		Jitter:       false,
	}
}

// attemptRecorder collects attempt callbacks so tests can wait on them.
type attemptRecorder struct {
	mu       sync.Mutex
	attempts []int
	fired    chan int
}

func newAttemptRecorder() *attemptRecorder {
	return &attemptRecorder{fired: make(chan int, 32)}
}

func (r *attemptRecorder) record(attempt int) {
	r.mu.Lock()
	r.attempts = append(r.attempts, attempt)
	r.mu.Unlock()
	r.fired <- attempt
}

func (r *attemptRecorder) wait(t *testing.T) int {
	t.Helper()
	select {
	case attempt := <-r.fired:
		return attempt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconnection attempt")
		return 0
	}
}

func TestReconnectionManager_AttemptFires(t *testing.T) {
	rec := newAttemptRecorder()
	m, err := NewReconnectionManager(&NoopLogger{}, rec.record, nil,
		WithReconnectionPolicy(fastReconnectionPolicy()))
	assert.NoError(t, err)

	assert.NoError(t, m.Start())
	assert.Equal(t, 1, rec.wait(t))
	assert.Equal(t, 1, m.State().Attempts)
	assert.NotNil(t, m.State().LastAttemptAt)
}

func TestReconnectionManager_StartIsNoOpWhilePending(t *testing.T) {
	rec := newAttemptRecorder()
	m, err := NewReconnectionManager(&NoopLogger{}, rec.record, nil,
		WithReconnectionPolicy(retry.Policy{
			InitialDelay: time.Hour,
			MaxDelay:     time.Hour,
			Factor:       2.0,
		}))
	assert.NoError(t, err)

	assert.NoError(t, m.Start())
	assert.True(t, m.Pending())
	assert.NoError(t, m.Start())
	assert.NoError(t, m.Start())
	assert.Equal(t, 0, m.State().Attempts)
}

func TestReconnectionManager_ResetClearsSchedule(t *testing.T) {
	rec := newAttemptRecorder()
	m, err := NewReconnectionManager(&NoopLogger{}, rec.record, nil,
		WithReconnectionPolicy(fastReconnectionPolicy()))
	assert.NoError(t, err)

	assert.NoError(t, m.Start())
	rec.wait(t)
	assert.NoError(t, m.Start())
	rec.wait(t)
	assert.Equal(t, 2, m.State().Attempts)

	m.Reset()
	assert.Equal(t, 0, m.State().Attempts)
	assert.False(t, m.Pending())
}

func TestReconnectionManager_ResetCancelsPendingTimer(t *testing.T) {
	rec := newAttemptRecorder()
	m, err := NewReconnectionManager(&NoopLogger{}, rec.record, nil,
		WithReconnectionPolicy(retry.Policy{
			InitialDelay: time.Hour,
			MaxDelay:     time.Hour,
			Factor:       2.0,
		}))
	assert.NoError(t, err)

	assert.NoError(t, m.Start())
	m.Reset()
	assert.False(t, m.Pending())

	select {
	case <-rec.fired:
		t.Fatal("cancelled timer should not fire")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestReconnectionManager_ExhaustionIsTerminal(t *testing.T) {
	rec := newAttemptRecorder()
	var exhausted int
	var mu sync.Mutex
	m, err := NewReconnectionManager(&NoopLogger{}, rec.record,
		func() {
			mu.Lock()
			exhausted++
			mu.Unlock()
		},
		WithReconnectionPolicy(fastReconnectionPolicy()),
		WithMaxReconnectionAttempts(3))
	assert.NoError(t, err)

	for i := 1; i <= 3; i++ {
		assert.NoError(t, m.Start())
		assert.Equal(t, i, rec.wait(t))
	}

	// The budget is spent: further starts fail and the terminal callback
	// fires exactly once.
	assert.ErrorIs(t, m.Start(), ErrReconnectionExhausted)
	assert.ErrorIs(t, m.Start(), ErrReconnectionExhausted)

	mu.Lock()
	assert.Equal(t, 1, exhausted)
	mu.Unlock()

	// Reset restores the budget.
	m.Reset()
	assert.NoError(t, m.Start())
	assert.Equal(t, 1, rec.wait(t))
}

func TestReconnectionManager_InvalidPolicyRejected(t *testing.T) {
	_, err := NewReconnectionManager(&NoopLogger{}, nil, nil,
		WithReconnectionPolicy(retry.Policy{InitialDelay: 0, Factor: 2.0}))
	assert.Error(t, err)

	_, err = NewReconnectionManager(&NoopLogger{}, nil, nil,
		WithMaxReconnectionAttempts(0))
	assert.Error(t, err)
}
