package routing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddRelative_InfinityIsAbsorbing(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		name  string
		base  float64
		delta float64
		want  float64
	}{
		{"finite plus finite", 2, 3, 5},
		{"finite plus negative", 2, -5, -3},
		{"infinite base", inf, 3, inf},
		{"infinite base negative delta", inf, -1e300, inf},
		{"infinite delta", 2, inf, inf},
		{"both infinite", inf, inf, inf},
		{"negative infinite delta", 2, math.Inf(-1), inf},
		{"negative infinite base", math.Inf(-1), inf, inf},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := RankVector{tc.base}
			v.AddRelative(RankVector{tc.delta})
			assert.False(t, math.IsNaN(v[0]), "result must never be NaN")
			assert.Equal(t, tc.want, v[0])
		})
	}
}

func TestAddRelative_NilDeltaIsNoOp(t *testing.T) {
	v := RankVector{1, 2}
	v.AddRelative(nil)
	assert.Equal(t, RankVector{1, 2}, v)
}

func TestAddRelative_LengthMismatch_Panics(t *testing.T) {
	v := RankVector{1, 2}
	assert.Panics(t, func() { v.AddRelative(RankVector{1}) })
}

func TestBest_LowestFiniteRankTiesToLowestIndex(t *testing.T) {
	v := RankVector{3, Ineligible, 1, 1}
	assert.Equal(t, 2, v.Best(nil))
	// Group 2 filtered out: group 3 has the same rank.
	assert.Equal(t, 3, v.Best(func(i int) bool { return i != 2 }))
	assert.Equal(t, -1, Uniform(3, Ineligible).Best(nil))
}

func TestClone_IsIndependent(t *testing.T) {
	v := RankVector{1, 2}
	c := v.Clone()
	c[0] = 9
	assert.Equal(t, 1.0, v[0])
	assert.Nil(t, RankVector(nil).Clone())
}
