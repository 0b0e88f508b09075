package model

// VectorClock maps agent identifiers to monotonically non-decreasing counters.
// It expresses causal (not wall-clock) ordering between events originating at
// different agents.
//
// Invariants:
//   - an agent only increments its own entry
//   - merging two clocks takes the element-wise maximum
//
// VectorClock is not safe for concurrent use; the synchronization service
// routes all mutation through its own lock.
type VectorClock map[string]int64

// NewVectorClock returns an empty clock.
func NewVectorClock() VectorClock {
	return make(VectorClock)
}

// Increment advances the counter for the given agent and returns the new value.
func (vc VectorClock) Increment(agentID string) int64 {
	vc[agentID]++
	return vc[agentID]
}

// Counter returns the known counter for an agent (zero when unknown).
func (vc VectorClock) Counter(agentID string) int64 {
	return vc[agentID]
}

// Merge folds other into vc, taking the element-wise maximum.
// Merge is commutative and idempotent.
func (vc VectorClock) Merge(other VectorClock) {
	for agent, counter := range other {
		if counter > vc[agent] {
			vc[agent] = counter
		}
	}
}

// Clone returns a deep copy of the clock.
func (vc VectorClock) Clone() VectorClock {
	out := make(VectorClock, len(vc))
	for agent, counter := range vc {
		out[agent] = counter
	}
	return out
}

// Causality is the result of comparing two vector clocks.
type Causality int

const (
	// CausalityEqual means both clocks are identical.
	CausalityEqual Causality = iota

	// CausalityBefore means vc causally precedes the other clock.
	CausalityBefore

	// CausalityAfter means vc causally follows the other clock.
	CausalityAfter

	// CausalityConcurrent means neither clock is an ancestor of the other.
	// Concurrent clocks indicate possibly contradictory updates.
	CausalityConcurrent
)

// Compare determines the causal relation between vc and other.
func (vc VectorClock) Compare(other VectorClock) Causality {
	var less, greater bool

	for agent := range union(vc, other) {
		a, b := vc[agent], other[agent]
		switch {
		case a < b:
			less = true
		case a > b:
			greater = true
		}
	}

	switch {
	case less && greater:
		return CausalityConcurrent
	case less:
		return CausalityBefore
	case greater:
		return CausalityAfter
	default:
		return CausalityEqual
	}
}

func union(a, b VectorClock) map[string]struct{} {
	agents := make(map[string]struct{}, len(a)+len(b))
	for agent := range a {
		agents[agent] = struct{}{}
	}
	for agent := range b {
		agents[agent] = struct{}{}
	}
	return agents
}
