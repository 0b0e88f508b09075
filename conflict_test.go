package courier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coregx/courier/model"
)

func sequenceAt(agentID string, createdAt time.Time) model.MessageSequence {
	return sequenceFor("msg-1", agentID, createdAt)
}

func sequenceFor(messageID, agentID string, createdAt time.Time) model.MessageSequence {
	rec := model.NewMessageSequence(messageID, agentID, 1, model.VectorClock{agentID: 1})
	rec.CreatedAt = createdAt
	return rec
}

// storeWithPriority persists a message with the given priority and returns it.
func storeWithPriority(t *testing.T, store *memMessageStore, priority model.Priority) model.Message {
	t.Helper()
	msg := testMessage("narrator", "rules")
	msg.Priority = priority
	stored := model.NewStoredMessage(msg)
	assert.NoError(t, store.StoreMessage(context.Background(), &stored))
	return msg
}

func TestTimestampResolver_LaterTimestampWins(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	older := sequenceAt("agent-1", now.Add(-time.Minute))
	newer := sequenceAt("agent-2", now)

	winner, err := TimestampResolver{}.Resolve(ctx, older, newer)
	assert.NoError(t, err)
	assert.Equal(t, "agent-2", winner.AgentID)

	// Argument order must not change the outcome.
	winner, err = TimestampResolver{}.Resolve(ctx, newer, older)
	assert.NoError(t, err)
	assert.Equal(t, "agent-2", winner.AgentID)
}

func TestTimestampResolver_TieBreaksOnAgentID(t *testing.T) {
	ctx := context.Background()
	at := time.Now()

	a := sequenceAt("agent-1", at)
	b := sequenceAt("agent-2", at)

	winner, err := TimestampResolver{}.Resolve(ctx, a, b)
	assert.NoError(t, err)
	assert.Equal(t, "agent-1", winner.AgentID)

	winner, err = TimestampResolver{}.Resolve(ctx, b, a)
	assert.NoError(t, err)
	assert.Equal(t, "agent-1", winner.AgentID)
}

func TestTimestampResolver_TieBreaksOnRecordID(t *testing.T) {
	ctx := context.Background()
	at := time.Now()

	a := sequenceAt("agent-1", at)
	b := sequenceAt("agent-1", at)
	if a.ID > b.ID {
		a, b = b, a
	}

	winner, err := TimestampResolver{}.Resolve(ctx, a, b)
	assert.NoError(t, err)
	assert.Equal(t, a.ID, winner.ID)

	winner, err = TimestampResolver{}.Resolve(ctx, b, a)
	assert.NoError(t, err)
	assert.Equal(t, a.ID, winner.ID)
}

func TestPriorityResolver_MoreUrgentPriorityWins(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newMemMessageStore()

	urgent := storeWithPriority(t, store, model.PriorityHigh)
	background := storeWithPriority(t, store, model.PriorityLow)

	r, err := NewPriorityResolver(store)
	assert.NoError(t, err)

	// The high-priority record wins even though it is the older one.
	older := sequenceFor(urgent.ID, "agent-1", now.Add(-time.Minute))
	newer := sequenceFor(background.ID, "agent-2", now)

	winner, err := r.Resolve(ctx, older, newer)
	assert.NoError(t, err)
	assert.Equal(t, urgent.ID, winner.MessageID)

	winner, err = r.Resolve(ctx, newer, older)
	assert.NoError(t, err)
	assert.Equal(t, urgent.ID, winner.MessageID)
}

func TestPriorityResolver_EqualPriorityFallsBackToTimestamp(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newMemMessageStore()

	first := storeWithPriority(t, store, model.PriorityMedium)
	second := storeWithPriority(t, store, model.PriorityMedium)

	r, err := NewPriorityResolver(store)
	assert.NoError(t, err)

	older := sequenceFor(first.ID, "agent-1", now.Add(-time.Minute))
	newer := sequenceFor(second.ID, "agent-2", now)

	winner, err := r.Resolve(ctx, older, newer)
	assert.NoError(t, err)
	assert.Equal(t, second.ID, winner.MessageID)
}

func TestPriorityResolver_MissingMessageFallsBackToTimestamp(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	r, err := NewPriorityResolver(newMemMessageStore())
	assert.NoError(t, err)

	older := sequenceFor("unknown-1", "agent-1", now.Add(-time.Minute))
	newer := sequenceFor("unknown-2", "agent-2", now)

	winner, err := r.Resolve(ctx, older, newer)
	assert.NoError(t, err)
	assert.Equal(t, "unknown-2", winner.MessageID)
}

func TestPriorityResolver_RequiresStore(t *testing.T) {
	_, err := NewPriorityResolver(nil)
	assert.Error(t, err)

	var courierErr *Error
	assert.ErrorAs(t, err, &courierErr)
	assert.Equal(t, ErrCodeConfiguration, courierErr.Code)
}

func TestResolverFunc_Adapts(t *testing.T) {
	ctx := context.Background()
	called := false
	r := ResolverFunc(func(_ context.Context, remote, _ model.MessageSequence) (model.MessageSequence, error) {
		called = true
		return remote, nil
	})

	remote := sequenceAt("agent-1", time.Now())
	local := sequenceAt("agent-2", time.Now())
	winner, err := r.Resolve(ctx, remote, local)
	assert.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, remote.ID, winner.ID)
}
