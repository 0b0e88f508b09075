package courier

import "context"

// ConsistencyValidator checks the sequence log for gaps.
//
// Per agent, sequence numbers must form the exact run 1..n in order; a
// missing or duplicated number means a message was synchronized on another
// replica but never observed here, and the log needs reconciliation.
type ConsistencyValidator struct {
	sequences SequenceStore
	logger    Logger
}

// NewConsistencyValidator creates a validator over the sequence log.
func NewConsistencyValidator(sequences SequenceStore, logger Logger) (*ConsistencyValidator, error) {
	if sequences == nil {
		return nil, NewError(ErrCodeConfiguration, "SequenceStore is required")
	}
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}
	return &ConsistencyValidator{sequences: sequences, logger: logger}, nil
}

// Validate reports whether every agent's sequence run is gap-free.
// Validation halts at the first gap found. An empty log is consistent.
// Store errors are returned, not mapped to false: an unreadable log says
// nothing about consistency.
func (v *ConsistencyValidator) Validate(ctx context.Context) (bool, error) {
	records, err := v.sequences.ListAll(ctx)
	if err != nil {
		if IsNoData(err) {
			return true, nil
		}
		return false, NewErrorWithCause(ErrCodeSync, "failed to list sequence records", err)
	}

	next := make(map[string]int64)
	for _, rec := range records {
		expected := next[rec.AgentID] + 1
		if rec.SequenceNumber != expected {
			v.logger.Warnf("Sequence gap for agent %s: expected %d, found %d (message %s)",
				rec.AgentID, expected, rec.SequenceNumber, rec.MessageID)
			return false, nil
		}
		next[rec.AgentID] = rec.SequenceNumber
	}

	return true, nil
}

// ValidateAgent checks a single agent's run for gaps.
func (v *ConsistencyValidator) ValidateAgent(ctx context.Context, agentID string) (bool, error) {
	records, err := v.sequences.FindByAgent(ctx, agentID)
	if err != nil {
		if IsNoData(err) {
			return true, nil
		}
		return false, NewErrorWithCause(ErrCodeSync, "failed to list agent sequence records", err)
	}

	for i, rec := range records {
		if rec.SequenceNumber != int64(i)+1 {
			v.logger.Warnf("Sequence gap for agent %s: expected %d, found %d", agentID, i+1, rec.SequenceNumber)
			return false, nil
		}
	}
	return true, nil
}
