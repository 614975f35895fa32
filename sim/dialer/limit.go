package dialer

import (
	"fmt"
	"math"
)

// Limit caps the number of calls of Types dialed during [Start, End).
// Limits are independent: several may be active at once and their type sets
// may overlap.
type Limit struct {
	Start    float64
	End      float64
	MaxCalls int
	Types    []int
}

// Active reports whether the limit applies at time t.
func (l *Limit) Active(t float64) bool {
	return l.Start <= t && t < l.End
}

func (l *Limit) validate(i int, known map[int]int) error {
	if math.IsNaN(l.Start) || math.IsNaN(l.End) || !(l.Start < l.End) {
		return fmt.Errorf("dialer: limit %d: interval [%v, %v) is empty", i, l.Start, l.End)
	}
	if l.MaxCalls < 0 {
		return fmt.Errorf("dialer: limit %d: negative max calls %d", i, l.MaxCalls)
	}
	if len(l.Types) == 0 {
		return fmt.Errorf("dialer: limit %d: no call types", i)
	}
	seen := make(map[int]bool, len(l.Types))
	for _, k := range l.Types {
		if _, ok := known[k]; !ok {
			return fmt.Errorf("dialer: limit %d: call type %d is not produced by the dialer", i, k)
		}
		if seen[k] {
			return fmt.Errorf("dialer: limit %d: call type %d listed twice", i, k)
		}
		seen[k] = true
	}
	return nil
}
