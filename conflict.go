package courier

import (
	"context"

	"github.com/coregx/courier/model"
)

// ConflictResolver decides which of two causally concurrent sequence records
// wins. remote is the record already in the sequence log, local the record
// the synchronizing agent is about to write. The returned record replaces
// the stored one.
type ConflictResolver interface {
	Resolve(ctx context.Context, remote, local model.MessageSequence) (model.MessageSequence, error)
}

// TimestampResolver is the default last-write-wins strategy: the record with
// the later creation timestamp wins. Timestamp ties are broken by the
// lexicographically smaller agent id, then by the smaller record id, so that
// every replica resolves the same pair to the same winner.
type TimestampResolver struct{}

// Resolve picks the later-created record.
func (TimestampResolver) Resolve(_ context.Context, remote, local model.MessageSequence) (model.MessageSequence, error) {
	if local.CreatedAt.After(remote.CreatedAt) {
		return local, nil
	}
	if remote.CreatedAt.After(local.CreatedAt) {
		return remote, nil
	}
	if local.AgentID != remote.AgentID {
		if local.AgentID < remote.AgentID {
			return local, nil
		}
		return remote, nil
	}
	if local.ID < remote.ID {
		return local, nil
	}
	return remote, nil
}

// PriorityResolver resolves conflicts by message priority: the record whose
// message carries the more urgent priority wins. Records whose messages have
// equal priority, or whose messages cannot be loaded, fall back to the
// timestamp tie-break so resolution stays deterministic.
type PriorityResolver struct {
	messages MessageStore
}

// NewPriorityResolver creates a priority-based conflict resolver backed by
// the durable message store.
func NewPriorityResolver(messages MessageStore) (*PriorityResolver, error) {
	if messages == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageStore is required")
	}
	return &PriorityResolver{messages: messages}, nil
}

// Resolve picks the record whose message has the more urgent priority.
func (r *PriorityResolver) Resolve(ctx context.Context, remote, local model.MessageSequence) (model.MessageSequence, error) {
	remoteMsg, remoteErr := r.messages.GetMessage(ctx, remote.MessageID)
	localMsg, localErr := r.messages.GetMessage(ctx, local.MessageID)
	if remoteErr != nil || localErr != nil {
		return TimestampResolver{}.Resolve(ctx, remote, local)
	}

	remoteRank := model.PriorityRank(remoteMsg.Priority)
	localRank := model.PriorityRank(localMsg.Priority)
	if localRank < remoteRank {
		return local, nil
	}
	if remoteRank < localRank {
		return remote, nil
	}
	return TimestampResolver{}.Resolve(ctx, remote, local)
}

// ResolverFunc adapts a plain function to the ConflictResolver interface.
type ResolverFunc func(ctx context.Context, remote, local model.MessageSequence) (model.MessageSequence, error)

// Resolve calls the wrapped function.
func (f ResolverFunc) Resolve(ctx context.Context, remote, local model.MessageSequence) (model.MessageSequence, error) {
	return f(ctx, remote, local)
}
