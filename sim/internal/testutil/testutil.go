// Package testutil provides shared test infrastructure for the contactsim
// packages: deterministic random streams, float assertions and a minimal
// router the decision components can be wired to.
package testutil

import (
	"math"
	"testing"
)

// FixedStream replays a fixed sequence of uniforms, then repeats the last
// one. It counts how many values were drawn.
type FixedStream struct {
	Values []float64
	Draws  int
}

// NewFixedStream creates a stream replaying values.
func NewFixedStream(values ...float64) *FixedStream {
	if len(values) == 0 {
		panic("NewFixedStream: at least one value is required")
	}
	return &FixedStream{Values: values}
}

// Float64 implements sim.RandomStream.
func (s *FixedStream) Float64() float64 {
	i := min(s.Draws, len(s.Values)-1)
	s.Draws++
	return s.Values[i]
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == got {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
