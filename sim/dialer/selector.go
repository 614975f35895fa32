// Package dialer selects the outbound call types a dialer produces, under
// overlapping time-windowed limits, and places the calls.
package dialer

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/contactsim/contactsim/sim"
	"github.com/contactsim/contactsim/sim/trace"
)

// unbounded marks a type no active limit restricts.
const unbounded = -1

// TypeConfig is one outbound call type a selector may produce.
type TypeConfig struct {
	Type int
	// Prob is the production weight of the type, per main period.
	Prob sim.PerPeriod
}

// Selector picks the next outbound call type among its types.
type Selector struct {
	sched   sim.Scheduler
	layout  sim.PeriodLayout
	factory sim.ContactFactory
	rng     sim.RandomStream

	types  []TypeConfig
	index  map[int]int // call type to local index
	limits []Limit
	dialed []int
	// covers[i] lists the limits restricting local type i.
	covers [][]int

	// Scratch arena sized at construction, reset on every call.
	parent   []int
	rank     []int
	capacity []int
	weights  []float64
	cum      []float64

	collectors *sim.Collectors
	trace      *trace.SimulationTrace
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithCollectors counts selections on c.
func WithCollectors(c *sim.Collectors) SelectorOption {
	return func(s *Selector) { s.collectors = c }
}

// WithTrace records selections into st.
func WithTrace(st *trace.SimulationTrace) SelectorOption {
	return func(s *Selector) { s.trace = st }
}

// NewSelector validates the types and limits and allocates the scratch
// arena. rng drives the weighted choice between several eligible types.
func NewSelector(s sim.Scheduler, layout sim.PeriodLayout, f sim.ContactFactory, rng sim.RandomStream,
	types []TypeConfig, limits []Limit, opts ...SelectorOption) (*Selector, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("dialer: no outbound call types")
	}
	local := make(map[int]int, len(types))
	for i, tc := range types {
		if _, dup := local[tc.Type]; dup {
			return nil, fmt.Errorf("dialer: call type %d listed twice", tc.Type)
		}
		local[tc.Type] = i
		if err := tc.Prob.ValidateNonNegative(fmt.Sprintf("dialer: type %d: prob", tc.Type), layout.NumPeriods); err != nil {
			return nil, err
		}
	}
	n := len(types)
	sel := &Selector{
		sched:    s,
		layout:   layout,
		factory:  f,
		rng:      rng,
		types:    types,
		index:    local,
		limits:   limits,
		dialed:   make([]int, len(limits)),
		covers:   make([][]int, n),
		parent:   make([]int, n),
		rank:     make([]int, n),
		capacity: make([]int, n),
		weights:  make([]float64, n),
		cum:      make([]float64, n),
	}
	for j := range limits {
		if err := limits[j].validate(j, local); err != nil {
			return nil, err
		}
		for _, k := range limits[j].Types {
			i := local[k]
			sel.covers[i] = append(sel.covers[i], j)
		}
	}
	for _, opt := range opts {
		opt(sel)
	}
	return sel, nil
}

// SetTrace replaces the trace recorder, for a new replication.
func (sel *Selector) SetTrace(st *trace.SimulationTrace) { sel.trace = st }

// Reset zeroes the dialed counters of every limit.
func (sel *Selector) Reset() {
	clear(sel.dialed)
}

// Dialed returns how many calls were counted against limit j.
func (sel *Selector) Dialed(j int) int { return sel.dialed[j] }

// Size returns how many more calls may be dialed right now. Types linked by
// a shared active limit draw on the same capacity, so each linked group
// contributes its largest per-type capacity rather than the sum.
// unlimited is true when some eligible type is not restricted at all.
func (sel *Selector) Size() (n int, unlimited bool) {
	now := sel.sched.Now()
	period := sel.layout.MainPeriod(now)
	for i := range sel.types {
		sel.parent[i] = i
		sel.rank[i] = 0
		sel.capacity[i] = unbounded
		if sel.types[i].Prob.At(period) == 0 {
			sel.capacity[i] = 0
		}
	}
	for i := range sel.types {
		for _, j := range sel.covers[i] {
			l := &sel.limits[j]
			if !l.Active(now) {
				continue
			}
			sel.capacity[i] = minCapacity(sel.capacity[i], max(0, l.MaxCalls-sel.dialed[j]))
		}
	}
	for j := range sel.limits {
		l := &sel.limits[j]
		if !l.Active(now) {
			continue
		}
		first := sel.local(l.Types[0])
		for _, k := range l.Types[1:] {
			sel.union(first, sel.local(k))
		}
	}
	for i := range sel.types {
		if r := sel.find(i); r != i {
			sel.capacity[r] = maxCapacity(sel.capacity[r], sel.capacity[i])
			sel.capacity[i] = 0
		}
	}
	for i := range sel.types {
		if sel.capacity[i] == unbounded {
			return 0, true
		}
		n += sel.capacity[i]
	}
	return n, false
}

// RemoveFirst selects the next type to dial and returns a new outbound call
// of that type. ok is false when no type is eligible: nothing can be dialed
// right now.
func (sel *Selector) RemoveFirst() (c *sim.Call, ok bool) {
	now := sel.sched.Now()
	period := sel.layout.MainPeriod(now)
	sizeBefore := -1
	if sel.trace != nil {
		if n, unlimited := sel.Size(); !unlimited {
			sizeBefore = n
		}
	}

	eligible, last := 0, -1
	for i := range sel.types {
		w := sel.types[i].Prob.At(period)
		if w > 0 && sel.exhausted(i, now) {
			w = 0
		}
		sel.weights[i] = w
		if w > 0 {
			eligible++
			last = i
		}
	}

	idx := -1
	switch eligible {
	case 0:
	case 1:
		idx = last
	default:
		floats.CumSum(sel.cum, sel.weights)
		total := sel.cum[len(sel.cum)-1]
		u := sel.rng.Float64()
		sim.CheckUniform("Selector.RemoveFirst", u)
		target := u * total
		idx = sort.Search(len(sel.cum), func(i int) bool { return sel.cum[i] > target })
		if idx == len(sel.cum) {
			idx = last
		}
	}

	if idx < 0 {
		sel.trace.RecordDial(trace.DialRecord{Clock: now, Type: -1, Capacity: sizeBefore})
		return nil, false
	}
	for _, j := range sel.covers[idx] {
		if sel.limits[j].Active(now) {
			sel.dialed[j]++
		}
	}
	k := sel.types[idx].Type
	if sel.collectors != nil {
		sel.collectors.DialerSelections.WithLabelValues(strconv.Itoa(k)).Inc()
	}
	sel.trace.RecordDial(trace.DialRecord{Clock: now, Type: k, Capacity: sizeBefore})
	c = sel.factory.NewCall(k)
	c.Outbound = true
	return c, true
}

// exhausted reports whether local type i is covered by at least one active
// limit and every active limit covering it has no calls left. A type still
// covered by one open limit stays selectable, so an overlapping limit that is
// already used up keeps counting past its MaxCalls while Size reports 0.
func (sel *Selector) exhausted(i int, now float64) bool {
	covered := false
	for _, j := range sel.covers[i] {
		l := &sel.limits[j]
		if !l.Active(now) {
			continue
		}
		covered = true
		if sel.dialed[j] < l.MaxCalls {
			return false
		}
	}
	return covered
}

func (sel *Selector) local(k int) int {
	if i, ok := sel.index[k]; ok {
		return i
	}
	panic(fmt.Sprintf("Selector.local: call type %d is not produced by the dialer", k))
}

func (sel *Selector) find(i int) int {
	for sel.parent[i] != i {
		sel.parent[i] = sel.parent[sel.parent[i]]
		i = sel.parent[i]
	}
	return i
}

func (sel *Selector) union(a, b int) {
	ra, rb := sel.find(a), sel.find(b)
	if ra == rb {
		return
	}
	switch {
	case sel.rank[ra] < sel.rank[rb]:
		sel.parent[ra] = rb
	case sel.rank[ra] > sel.rank[rb]:
		sel.parent[rb] = ra
	default:
		sel.parent[rb] = ra
		sel.rank[ra]++
	}
}

func minCapacity(a, b int) int {
	if a == unbounded {
		return b
	}
	if b == unbounded {
		return a
	}
	return min(a, b)
}

func maxCapacity(a, b int) int {
	if a == unbounded || b == unbounded {
		return unbounded
	}
	return max(a, b)
}
