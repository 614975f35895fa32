// Package staffing drives the capacity of agent groups over simulated time,
// either from a schedule of shifts or from a per-period staffing vector.
package staffing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/contactsim/contactsim/sim"
)

// ShiftPart is one interval of a shift. Agents are present only during
// working parts; other parts are breaks.
type ShiftPart struct {
	Start   float64 `yaml:"start"`
	End     float64 `yaml:"end"`
	Working bool    `yaml:"working"`
}

// Shift is a group of agents following the same schedule.
type Shift struct {
	Parts []ShiftPart
	// Agents is the scheduled headcount.
	Agents int
	// Presence is the probability that each scheduled agent shows up.
	Presence float64
}

// NewShift validates and returns a shift. Parts must be time-ordered and
// non-overlapping, with finite bounds.
func NewShift(parts []ShiftPart, agents int, presence float64) (*Shift, error) {
	if agents < 0 {
		return nil, fmt.Errorf("staffing: negative agent count %d", agents)
	}
	if !(presence >= 0 && presence <= 1) {
		return nil, fmt.Errorf("staffing: presence probability %v outside [0,1]", presence)
	}
	for i, p := range parts {
		if math.IsNaN(p.Start) || math.IsInf(p.Start, 0) || math.IsNaN(p.End) || math.IsInf(p.End, 0) {
			return nil, fmt.Errorf("staffing: part %d: bounds must be finite, got [%v,%v)", i, p.Start, p.End)
		}
		if p.Start < 0 {
			return nil, fmt.Errorf("staffing: part %d: negative start %v", i, p.Start)
		}
		if !(p.Start < p.End) {
			return nil, fmt.Errorf("staffing: part %d: start %v must be before end %v", i, p.Start, p.End)
		}
		if i > 0 && p.Start < parts[i-1].End {
			return nil, fmt.Errorf("staffing: part %d starts at %v, before part %d ends at %v", i, p.Start, i-1, parts[i-1].End)
		}
	}
	return &Shift{Parts: parts, Agents: agents, Presence: presence}, nil
}

// Covers reports whether some working part overlaps main period p with
// positive length.
func (s *Shift) Covers(layout sim.PeriodLayout, p int) bool {
	ps := layout.PeriodStart(p)
	pe := layout.PeriodStart(p + 1)
	for _, part := range s.Parts {
		if part.Working && min(part.End, pe)-max(part.Start, ps) > 0 {
			return true
		}
	}
	return false
}

// CoverageVector returns, per main period, 1 if the shift covers it and 0
// otherwise.
func (s *Shift) CoverageVector(layout sim.PeriodLayout) []int {
	v := make([]int, layout.NumPeriods)
	for p := range v {
		if s.Covers(layout, p) {
			v[p] = 1
		}
	}
	return v
}

// StaffingVector returns the scheduled number of agents per main period:
// the headcount of every shift covering the period, summed.
func StaffingVector(shifts []*Shift, layout sim.PeriodLayout) []int {
	v := make([]int, layout.NumPeriods)
	for _, s := range shifts {
		for p, c := range s.CoverageVector(layout) {
			v[p] += c * s.Agents
		}
	}
	return v
}

// ExpectedStaffingVector is StaffingVector with each headcount thinned by
// its presence probability.
func ExpectedStaffingVector(shifts []*Shift, layout sim.PeriodLayout) []float64 {
	v := make([]float64, layout.NumPeriods)
	cov := make([]float64, layout.NumPeriods)
	for _, s := range shifts {
		for p, c := range s.CoverageVector(layout) {
			cov[p] = float64(c)
		}
		floats.AddScaled(v, float64(s.Agents)*s.Presence, cov)
	}
	return v
}
