package routing

import (
	"fmt"
	"math"
)

// RankVector holds one rank per agent group. Lower ranks are preferred;
// +Inf marks the group as ineligible.
type RankVector []float64

// Ineligible is the rank of a group that must not be selected.
var Ineligible = math.Inf(1)

// Uniform returns a vector of n copies of r.
func Uniform(n int, r float64) RankVector {
	v := make(RankVector, n)
	for i := range v {
		v[i] = r
	}
	return v
}

// Clone returns a copy of v.
func (v RankVector) Clone() RankVector {
	if v == nil {
		return nil
	}
	out := make(RankVector, len(v))
	copy(out, v)
	return out
}

// Finite reports whether group i is eligible.
func (v RankVector) Finite(i int) bool {
	return !math.IsInf(v[i], 0)
}

// AnyFinite reports whether at least one group is eligible.
func (v RankVector) AnyFinite() bool {
	for i := range v {
		if v.Finite(i) {
			return true
		}
	}
	return false
}

// AddRelative adds delta to v elementwise. Infinity means "ineligible" and
// is absorbing: an infinite base or an infinite delta yields +Inf, so the
// result is never NaN and never a finite value derived from infinity.
func (v RankVector) AddRelative(delta RankVector) {
	if delta == nil {
		return
	}
	if len(delta) != len(v) {
		panic(fmt.Sprintf("RankVector.AddRelative: delta has %d entries, want %d", len(delta), len(v)))
	}
	for i, d := range delta {
		v[i] = combine(v[i], d)
	}
}

func combine(base, delta float64) float64 {
	if math.IsInf(base, 0) || math.IsInf(delta, 0) {
		return Ineligible
	}
	return base + delta
}

// Best returns the index of the lowest finite rank among the groups for
// which ok returns true, ties broken by lowest index. Returns -1 if none.
func (v RankVector) Best(ok func(i int) bool) int {
	best := -1
	for i, r := range v {
		if math.IsInf(r, 0) || (ok != nil && !ok(i)) {
			continue
		}
		if best < 0 || r < v[best] {
			best = i
		}
	}
	return best
}

func (v RankVector) validate(what string, n int) error {
	if len(v) != n {
		return fmt.Errorf("%s: %d ranks, want one per agent group (%d)", what, len(v), n)
	}
	for i, r := range v {
		if math.IsNaN(r) {
			return fmt.Errorf("%s[%d]: NaN rank", what, i)
		}
	}
	return nil
}
