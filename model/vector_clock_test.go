package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorClock_Increment(t *testing.T) {
	vc := NewVectorClock()

	assert.Equal(t, int64(1), vc.Increment("narrator"))
	assert.Equal(t, int64(2), vc.Increment("narrator"))
	assert.Equal(t, int64(1), vc.Increment("rules"))

	assert.Equal(t, int64(2), vc.Counter("narrator"))
	assert.Equal(t, int64(0), vc.Counter("unknown"))
}

func TestVectorClock_MergeCommutative(t *testing.T) {
	a := VectorClock{"narrator": 3, "rules": 1}
	b := VectorClock{"narrator": 2, "rules": 5, "scribe": 1}

	left := a.Clone()
	left.Merge(b)

	right := b.Clone()
	right.Merge(a)

	assert.Equal(t, left, right)
	assert.Equal(t, VectorClock{"narrator": 3, "rules": 5, "scribe": 1}, left)
}

func TestVectorClock_MergeIdempotent(t *testing.T) {
	a := VectorClock{"narrator": 3, "rules": 1}

	merged := a.Clone()
	merged.Merge(a)

	assert.Equal(t, a, merged)
}

func TestVectorClock_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b VectorClock
		want Causality
	}{
		{
			name: "equal clocks",
			a:    VectorClock{"narrator": 1, "rules": 2},
			b:    VectorClock{"narrator": 1, "rules": 2},
			want: CausalityEqual,
		},
		{
			name: "strictly before",
			a:    VectorClock{"narrator": 1},
			b:    VectorClock{"narrator": 2, "rules": 1},
			want: CausalityBefore,
		},
		{
			name: "strictly after",
			a:    VectorClock{"narrator": 4, "rules": 2},
			b:    VectorClock{"narrator": 3, "rules": 2},
			want: CausalityAfter,
		},
		{
			name: "concurrent updates",
			a:    VectorClock{"narrator": 2, "rules": 1},
			b:    VectorClock{"narrator": 1, "rules": 2},
			want: CausalityConcurrent,
		},
		{
			name: "empty versus populated",
			a:    VectorClock{},
			b:    VectorClock{"narrator": 1},
			want: CausalityBefore,
		},
		{
			name: "both empty",
			a:    VectorClock{},
			b:    VectorClock{},
			want: CausalityEqual,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestVectorClock_CloneIsDeep(t *testing.T) {
	a := VectorClock{"narrator": 1}
	b := a.Clone()
	b.Increment("narrator")

	assert.Equal(t, int64(1), a.Counter("narrator"))
	assert.Equal(t, int64(2), b.Counter("narrator"))
}
