package courier

import (
	"context"
	"sync"
	"time"

	"github.com/coregx/courier/model"
)

// DefaultConsistencyInterval is how often the consistency loop re-validates
// the sequence log while online.
const DefaultConsistencyInterval = 5 * time.Second

// SyncService keeps this agent's vector clock and sequence log entries in
// step with the shared sequence store.
//
// Every successfully delivered message is assigned a sequence record carrying
// the sender's own sequence number and a snapshot of the local vector clock.
// Records whose clocks are causally concurrent with the local clock are
// routed through the conflict resolver; all other records simply merge into
// the local clock.
type SyncService struct {
	mu        sync.Mutex
	agentID   string
	clock     model.VectorClock
	sequences SequenceStore
	resolver  ConflictResolver
	logger    Logger

	// unsynced holds records whose Save failed; they are retried on the
	// next SynchronizeAll pass.
	unsynced []model.MessageSequence
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService) error

// WithConflictResolver replaces the default timestamp-wins strategy.
func WithConflictResolver(r ConflictResolver) SyncOption {
	return func(s *SyncService) error {
		if r == nil {
			return NewError(ErrCodeConfiguration, "ConflictResolver cannot be nil")
		}
		s.resolver = r
		return nil
	}
}

// NewSyncService creates the synchronization service for one agent.
func NewSyncService(agentID string, sequences SequenceStore, logger Logger, opts ...SyncOption) (*SyncService, error) {
	if agentID == "" {
		return nil, NewError(ErrCodeConfiguration, "agent id is required")
	}
	if sequences == nil {
		return nil, NewError(ErrCodeConfiguration, "SequenceStore is required")
	}
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	s := &SyncService{
		agentID:   agentID,
		clock:     model.NewVectorClock(),
		sequences: sequences,
		resolver:  TimestampResolver{},
		logger:    logger,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SynchronizeMessage records a delivered message in the sequence log:
// the local clock entry for this agent advances by one and a sequence record
// snapshotting the clock is appended. On store failure the record is kept
// for recovery by the next SynchronizeAll pass and false is returned.
func (s *SyncService) SynchronizeMessage(ctx context.Context, msg model.Message) bool {
	s.mu.Lock()
	seqNum := s.clock.Increment(s.agentID)
	record := model.NewMessageSequence(msg.ID, s.agentID, seqNum, s.clock.Clone())
	s.mu.Unlock()

	if err := s.sequences.Save(ctx, &record); err != nil {
		s.logger.Errorf("Failed to append sequence record for message %s: %v", msg.ID, err)
		s.mu.Lock()
		s.unsynced = append(s.unsynced, record)
		s.mu.Unlock()
		return false
	}

	s.logger.Debugf("Synchronized message %s as %s#%d", msg.ID, s.agentID, seqNum)
	return true
}

// SynchronizeAll reconciles the local clock against the full sequence log.
// Unsynced records from earlier failures are flushed first. Concurrent
// records for the same message go through conflict resolution; the winner
// overwrites the stored record. Every observed clock merges into the local
// clock so subsequent records dominate everything seen so far.
func (s *SyncService) SynchronizeAll(ctx context.Context) error {
	s.flushUnsynced(ctx)

	records, err := s.sequences.ListAll(ctx)
	if err != nil {
		if IsNoData(err) {
			return nil
		}
		return NewErrorWithCause(ErrCodeSync, "failed to list sequence records", err)
	}

	byMessage := make(map[string]model.MessageSequence, len(records))
	for _, rec := range records {
		prev, seen := byMessage[rec.MessageID]
		if !seen {
			byMessage[rec.MessageID] = rec
			s.observe(ctx, rec)
			continue
		}

		// Two records claim the same message: resolve and overwrite.
		winner, rerr := s.resolver.Resolve(ctx, prev, rec)
		if rerr != nil {
			return NewErrorWithCause(ErrCodeSync, "conflict resolution failed", rerr)
		}
		winner.Touch()
		if uerr := s.sequences.Update(ctx, &winner); uerr != nil {
			return NewErrorWithCause(ErrCodeSync, "failed to persist conflict winner", uerr)
		}
		byMessage[rec.MessageID] = winner
		s.observe(ctx, winner)
	}

	return nil
}

// observe merges a record's clock into the local clock, keeping this agent's
// own counter at least as high as any record it authored.
func (s *SyncService) observe(_ context.Context, rec model.MessageSequence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.VectorClock != nil {
		causality := s.clock.Compare(rec.VectorClock)
		if causality == model.CausalityConcurrent {
			s.logger.Debugf("Concurrent clock observed from agent %s on message %s", rec.AgentID, rec.MessageID)
		}
		s.clock.Merge(rec.VectorClock)
	}
	if rec.AgentID == s.agentID && s.clock.Counter(s.agentID) < rec.SequenceNumber {
		s.clock[s.agentID] = rec.SequenceNumber
	}
}

// flushUnsynced retries sequence records whose initial Save failed.
func (s *SyncService) flushUnsynced(ctx context.Context) {
	s.mu.Lock()
	pending := s.unsynced
	s.unsynced = nil
	s.mu.Unlock()

	for i := range pending {
		if err := s.sequences.Save(ctx, &pending[i]); err != nil {
			s.logger.Errorf("Sequence record for message %s still unsynced: %v", pending[i].MessageID, err)
			s.mu.Lock()
			s.unsynced = append(s.unsynced, pending[i])
			s.mu.Unlock()
		}
	}
}

// Clock returns a copy of the current vector clock.
func (s *SyncService) Clock() model.VectorClock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Clone()
}

// AgentID returns the identity this service synchronizes as.
func (s *SyncService) AgentID() string {
	return s.agentID
}

// RunConsistencyLoop periodically validates the sequence log and triggers a
// full reconciliation when a gap is detected. Checks are suspended while
// offline. Blocks until ctx is cancelled.
func (s *SyncService) RunConsistencyLoop(ctx context.Context, interval time.Duration, validator *ConsistencyValidator, online func() bool) {
	if interval <= 0 {
		interval = DefaultConsistencyInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if online != nil && !online() {
				continue
			}
			consistent, err := validator.Validate(ctx)
			if err != nil {
				s.logger.Errorf("Consistency check failed: %v", err)
				continue
			}
			if !consistent {
				s.logger.Warnf("Sequence log inconsistent, reconciling")
				if err := s.SynchronizeAll(ctx); err != nil {
					s.logger.Errorf("Reconciliation failed: %v", err)
				}
			}
		}
	}
}
