package sim

import (
	"fmt"
	"math"
)

// PeriodLayout splits simulated time into a preliminary period (index 0),
// NumPeriods main periods of equal Duration starting at Start (indices
// 1..NumPeriods) and a wrap-up period (index NumPeriods+1).
type PeriodLayout struct {
	Start      float64
	Duration   float64
	NumPeriods int
}

// Validate checks the layout is usable.
func (pl PeriodLayout) Validate() error {
	if pl.NumPeriods < 1 {
		return fmt.Errorf("number of main periods must be >= 1, got %d", pl.NumPeriods)
	}
	if !(pl.Duration > 0) || math.IsInf(pl.Duration, 0) {
		return fmt.Errorf("period duration must be positive and finite, got %v", pl.Duration)
	}
	if pl.Start < 0 || math.IsInf(pl.Start, 0) || math.IsNaN(pl.Start) {
		return fmt.Errorf("start of first main period must be finite and non-negative, got %v", pl.Start)
	}
	return nil
}

// End returns the end of the last main period.
func (pl PeriodLayout) End() float64 {
	return pl.Start + float64(pl.NumPeriods)*pl.Duration
}

// Period returns the period index containing t.
func (pl PeriodLayout) Period(t float64) int {
	if t < pl.Start {
		return 0
	}
	// The quotient can round either way at a boundary; PeriodStart is the
	// reference so that PeriodStart(p) falls in main period p.
	p := int((t - pl.Start) / pl.Duration)
	for p > 0 && pl.PeriodStart(p) > t {
		p--
	}
	for p < pl.NumPeriods && pl.PeriodStart(p+1) <= t {
		p++
	}
	return min(p+1, pl.NumPeriods+1)
}

// MainPeriod returns the main-period index (0-based) used to look up
// period-varying parameters at t. The preliminary period uses the first main
// period, the wrap-up period the last one.
func (pl PeriodLayout) MainPeriod(t float64) int {
	p := pl.Period(t) - 1
	return max(0, min(p, pl.NumPeriods-1))
}

// PeriodStart returns the start time of main period p (0-based).
func (pl PeriodLayout) PeriodStart(p int) float64 {
	return pl.Start + float64(p)*pl.Duration
}

// PerPeriod is a parameter with one value per main period. A single value
// applies to every period.
type PerPeriod []float64

// At returns the value for main period p.
func (v PerPeriod) At(p int) float64 {
	return vectorAt(v, p)
}

// Validate checks the vector has 1 or numPeriods entries, none NaN.
func (v PerPeriod) Validate(name string, numPeriods int) error {
	if len(v) != 1 && len(v) != numPeriods {
		return fmt.Errorf("%s: expected 1 or %d values, got %d", name, numPeriods, len(v))
	}
	for p, x := range v {
		if math.IsNaN(x) {
			return fmt.Errorf("%s[%d]: NaN", name, p)
		}
	}
	return nil
}

// ValidateProbabilities checks every value lies in [0,1].
func (v PerPeriod) ValidateProbabilities(name string, numPeriods int) error {
	if err := v.Validate(name, numPeriods); err != nil {
		return err
	}
	for p, x := range v {
		if x < 0 || x > 1 {
			return fmt.Errorf("%s[%d]: probability %v outside [0,1]", name, p, x)
		}
	}
	return nil
}

// ValidateNonNegative checks every value is >= 0 (+Inf allowed).
func (v PerPeriod) ValidateNonNegative(name string, numPeriods int) error {
	if err := v.Validate(name, numPeriods); err != nil {
		return err
	}
	for p, x := range v {
		if x < 0 {
			return fmt.Errorf("%s[%d]: negative value %v", name, p, x)
		}
	}
	return nil
}

// CheckUniform panics when a decision draw lies outside [0,1): the draw was
// corrupted, not misconfigured.
func CheckUniform(fn string, u float64) {
	if !(u >= 0 && u < 1) {
		panic(fmt.Sprintf("%s: uniform draw %v outside [0,1)", fn, u))
	}
}
