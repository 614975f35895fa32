package routing

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/contactsim/contactsim/sim"
	"github.com/contactsim/contactsim/sim/trace"
)

// Selection outcomes, used as the outcome label of the routing counter.
const (
	OutcomeCase    = "case"
	OutcomeDefault = "default"
	OutcomeNoRoute = "no-route"
)

// Engine evaluates routing stages for calls. The case selected for a call in
// a stage is memoized on the call, so the engine itself holds no per-call
// state and needs no reset between replications.
type Engine struct {
	numGroups int
	types     []TypeRouting

	// finite[k][i] / finiteQueue[k][i]: some case of type k may give group i
	// a finite agent (queue) rank.
	finite      [][]bool
	finiteQueue [][]bool

	collectors *sim.Collectors
	trace      *trace.SimulationTrace
	state      sim.RouterStateProvider
	clock      sim.Scheduler
}

// Option configures an Engine.
type Option func(*Engine)

// WithCollectors counts selections on c.
func WithCollectors(c *sim.Collectors) Option {
	return func(e *Engine) { e.collectors = c }
}

// WithTrace records every selection into st.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(e *Engine) { e.trace = st }
}

// WithStateProvider supplies the system state read by conditions and custom
// rank functions. Without one, conditions see an empty state.
func WithStateProvider(p sim.RouterStateProvider) Option {
	return func(e *Engine) { e.state = p }
}

// WithScheduler timestamps trace records with s.Now().
func WithScheduler(s sim.Scheduler) Option {
	return func(e *Engine) { e.clock = s }
}

// NewEngine validates the routing of every call type and precomputes which
// groups each type can ever reach. types[k] is the routing of call type k.
func NewEngine(numGroups, numQueues int, types []TypeRouting, opts ...Option) (*Engine, error) {
	if numGroups < 1 {
		return nil, fmt.Errorf("routing: number of agent groups must be >= 1, got %d", numGroups)
	}
	e := &Engine{
		numGroups:   numGroups,
		types:       types,
		finite:      make([][]bool, len(types)),
		finiteQueue: make([][]bool, len(types)),
	}
	for k := range types {
		tr := &types[k]
		if err := tr.validate(k, numGroups, numQueues); err != nil {
			return nil, err
		}
		e.finite[k] = make([]bool, numGroups)
		e.finiteQueue[k] = make([]bool, numGroups)
		for s := range tr.Stages {
			for c := range tr.Stages[s].Cases {
				cs := &tr.Stages[s].Cases[c]
				for i := 0; i < numGroups; i++ {
					e.finite[k][i] = e.finite[k][i] || tr.canReturnFinite(cs, i, false)
					e.finiteQueue[k][i] = e.finiteQueue[k][i] || tr.canReturnFinite(cs, i, true)
				}
			}
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SetTrace replaces the trace recorder, for a new replication.
func (e *Engine) SetTrace(st *trace.SimulationTrace) { e.trace = st }

// NumGroups returns the length of every rank vector.
func (e *Engine) NumGroups() int { return e.numGroups }

// NumTypes returns the number of call types the engine routes.
func (e *Engine) NumTypes() int { return len(e.types) }

// NumStages returns the number of stages of call type k.
func (e *Engine) NumStages(k int) int { return len(e.routing(k).Stages) }

// StageWaitingTime returns the waiting time at which stage s of type k starts.
func (e *Engine) StageWaitingTime(k, s int) float64 { return e.routing(k).Stages[s].WaitingTime }

// StageFor returns the stage a call of its current type is in after waiting
// for waited time units, or -1 when the type has no stages.
func (e *Engine) StageFor(c *sim.Call, waited float64) int {
	stages := e.routing(c.Type).Stages
	s := -1
	for i := range stages {
		if stages[i].WaitingTime > waited {
			break
		}
		s = i
	}
	return s
}

// CanReturnFiniteRank reports whether any case of call type k may rank group
// i finitely for agent selection. A false answer lets the router skip group i
// for type k without evaluating a single call.
func (e *Engine) CanReturnFiniteRank(k, i int) bool { return e.finite[k][i] }

// CanReturnFiniteQueueRank is CanReturnFiniteRank for queue priority ranks.
func (e *Engine) CanReturnFiniteQueueRank(k, i int) bool { return e.finiteQueue[k][i] }

// RanksForAgentSelection returns the agent-group ranks of call c in stage s.
// The returned vector is a fresh copy. ok is false when no case matched:
// the call has no route in this stage.
func (e *Engine) RanksForAgentSelection(s int, c *sim.Call) (RankVector, bool) {
	return e.ranks(s, c, false)
}

// RanksForQueuePriority returns the queue-priority ranks of call c in stage s,
// with the same memoized case as RanksForAgentSelection.
func (e *Engine) RanksForQueuePriority(s int, c *sim.Call) (RankVector, bool) {
	return e.ranks(s, c, true)
}

func (e *Engine) ranks(s int, c *sim.Call, queue bool) (RankVector, bool) {
	tr := e.routing(c.Type)
	if s < 0 || s >= len(tr.Stages) {
		return nil, false
	}
	state := lazyState(e.state)
	idx := e.selectCase(tr, s, c, state)
	if idx < 0 {
		return nil, false
	}
	cs := &tr.Stages[s].Cases[idx]
	switch cs.Kind {
	case CaseAbsolute:
		if queue && cs.QueueRanks != nil {
			return cs.QueueRanks.Clone(), true
		}
		return cs.AgentRanks.Clone(), true
	case CaseRelative:
		if queue {
			v := tr.baseQueueRanks().Clone()
			v.AddRelative(cs.QueueRanks)
			return v, true
		}
		v := tr.BaseAgentRanks.Clone()
		v.AddRelative(cs.AgentRanks)
		return v, true
	case CaseCustom:
		var v RankVector
		if queue {
			v = cs.Function.QueueRanks(c, state())
		} else {
			v = cs.Function.AgentRanks(c, state())
		}
		if len(v) != e.numGroups {
			panic(fmt.Sprintf("Engine.ranks: rank function returned %d ranks for %d groups", len(v), e.numGroups))
		}
		return v.Clone(), true
	}
	panic(fmt.Sprintf("Engine.ranks: unhandled case kind %q", cs.Kind))
}

// selectCase returns the memoized case of c in stage s, evaluating the stage
// on first use. The first evaluation is final: later changes in system state
// do not move the call to another case of the same stage.
func (e *Engine) selectCase(tr *TypeRouting, s int, c *sim.Call, state stateFunc) int {
	if idx, ok := c.CachedCase(s); ok {
		return idx
	}
	idx := -1
	cases := tr.Stages[s].Cases
	for i := range cases {
		if cases[i].Condition == nil || cases[i].Condition.Holds(c, state) {
			idx = i
			break
		}
	}
	c.CacheCase(s, idx)

	outcome := OutcomeNoRoute
	isDefault := false
	if idx >= 0 {
		isDefault = cases[idx].IsDefault()
		outcome = OutcomeCase
		if isDefault {
			outcome = OutcomeDefault
		}
	}
	if e.collectors != nil {
		e.collectors.RoutingSelections.WithLabelValues(outcome).Inc()
	}
	if e.trace != nil {
		e.trace.RecordRouting(trace.RoutingRecord{
			CallID:  c.ID.String(),
			Clock:   e.now(),
			Type:    c.Type,
			Stage:   s,
			Case:    idx,
			Default: isDefault,
		})
	}
	if idx < 0 {
		logrus.Debugf("[routing] call %s type %d stage %d: no case matched", c.ID, c.Type, s)
	}
	return idx
}

func (e *Engine) routing(k int) *TypeRouting {
	if k < 0 || k >= len(e.types) {
		panic(fmt.Sprintf("Engine.routing: call type %d out of range [0,%d)", k, len(e.types)))
	}
	return &e.types[k]
}

func (e *Engine) now() float64 {
	if e.clock == nil {
		return 0
	}
	return e.clock.Now()
}
