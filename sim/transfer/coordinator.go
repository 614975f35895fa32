// Package transfer hands a call over from its primary agent to a secondary
// agent group, with or without a conference between the two agents.
package transfer

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/contactsim/contactsim/sim"
	"github.com/contactsim/contactsim/sim/trace"
)

// Transfer outcomes, used as the outcome label of the transfer counter.
const (
	OutcomeNone                 = "none"
	OutcomeStarted              = "started"
	OutcomeConference           = "conference"
	OutcomeNoConference         = "no-conference"
	OutcomeAbandoned            = "abandoned"
	OutcomeInfiniteTransferTime = "infinite-transfer-time"
)

// pendingEnd is the primary agent's end of service while the coordinator
// owns it. done guards against completing the service twice.
type pendingEnd struct {
	id    sim.PendingEndID
	call  *sim.Call
	group int
	event *sim.EventHandle
	// secondary is the transferred call waiting on this end in conference
	// mode, nil otherwise.
	secondary *sim.Call
	queued    bool
	done      bool
}

// Coordinator owns the end of service of every call whose type supports
// transfer. Register it on every real waiting queue (AttachQueue) and call
// OnServiceStarted whenever a call begins service.
type Coordinator struct {
	sched   sim.Scheduler
	router  sim.Router
	factory sim.ContactFactory
	layout  sim.PeriodLayout
	params  []TypeParams

	pending map[sim.PendingEndID]*pendingEnd
	nextID  sim.PendingEndID

	collectors *sim.Collectors
	trace      *trace.SimulationTrace
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCollectors counts transfer outcomes on c.
func WithCollectors(c *sim.Collectors) Option {
	return func(co *Coordinator) { co.collectors = c }
}

// WithTrace records transfer steps into st.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(co *Coordinator) { co.trace = st }
}

// NewCoordinator validates params (one entry per call type) and creates a
// coordinator.
func NewCoordinator(s sim.Scheduler, r sim.Router, f sim.ContactFactory, layout sim.PeriodLayout,
	params []TypeParams, opts ...Option) (*Coordinator, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	for k := range params {
		if err := params[k].validate(k, len(params), r.NumAgentGroups(), layout.NumPeriods); err != nil {
			return nil, err
		}
	}
	co := &Coordinator{
		sched:   s,
		router:  r,
		factory: f,
		layout:  layout,
		params:  params,
		pending: make(map[sim.PendingEndID]*pendingEnd),
	}
	for _, opt := range opts {
		opt(co)
	}
	return co, nil
}

// AttachQueue observes q so that a transferred call leaving it without being
// served releases its primary agent at once.
func (co *Coordinator) AttachQueue(q *sim.WaitingQueue) {
	q.AddListener(co, sim.PriorityDisconnect)
}

// SetTrace replaces the trace recorder, for a new replication.
func (co *Coordinator) SetTrace(st *trace.SimulationTrace) { co.trace = st }

// Reset forgets every pending end of service. Called at replication start,
// after the scheduler epoch was reset.
func (co *Coordinator) Reset() {
	clear(co.pending)
	co.nextID = 0
}

// Pending returns the number of primary services the coordinator still has
// to end.
func (co *Coordinator) Pending() int { return len(co.pending) }

// Enabled reports whether calls of type k go through the transfer protocol.
func (co *Coordinator) Enabled(k int) bool {
	return k >= 0 && k < len(co.params) && co.params[k].Enabled
}

// OnServiceStarted is called when call c begins service at group g.
//
// If c was transferred in conference mode, the primary agent's end of
// service is scheduled after c's conference time at g, and c's service time
// is extended by that conference time.
//
// The return value reports whether the coordinator took ownership of the
// end of c's service. When false, the caller schedules the ordinary service
// completion after c.ServiceTime(g).
func (co *Coordinator) OnServiceStarted(c *sim.Call, g int) bool {
	if c.PrimaryEnd != 0 {
		co.startConference(c, g)
	}
	if !co.Enabled(c.Type) {
		return false
	}
	tp := &co.params[c.Type]
	gp := tp.group(g)
	period := co.layout.MainPeriod(co.sched.Now())
	u1 := c.Uniforms.Transfer
	sim.CheckUniform("Coordinator.OnServiceStarted", u1)

	pe := co.register(c, g)
	st := c.ServiceTime(g)
	if u1 >= gp.ProbTransfer.At(period) {
		co.record(c, g, OutcomeNone)
		pe.event = co.scheduleEnd(pe, st, sim.EventServiceEnd)
		return true
	}
	co.record(c, g, OutcomeStarted)
	delay := st * gp.ServiceTimesMultTransfer.At(period)
	if math.IsInf(delay, 1) {
		// The primary agent never finishes with this call.
		logrus.Debugf("[transfer] call %s: infinite service time at group %d", c.ID, g)
		return true
	}
	pe.event = co.sched.ScheduleAfter(delay, sim.EventTransfer, func() {
		pe.event = nil
		co.beginTransfer(pe)
	})
	return true
}

// OnEnqueued implements sim.QueueListener.
func (co *Coordinator) OnEnqueued(e *sim.QueuedCall) {
	if pe := co.pending[e.Call.PrimaryEnd]; pe != nil {
		pe.queued = true
	}
}

// OnDequeued implements sim.QueueListener. A transferred call leaving its
// queue for any reason but service no longer holds its primary agent.
func (co *Coordinator) OnDequeued(e *sim.QueuedCall, t sim.DequeueType) {
	if t == sim.DequeueServed {
		return
	}
	pe := co.pending[e.Call.PrimaryEnd]
	if pe == nil {
		return
	}
	e.Call.PrimaryEnd = 0
	co.record(pe.call, pe.group, OutcomeAbandoned)
	co.endPrimary(pe)
}

func (co *Coordinator) register(c *sim.Call, g int) *pendingEnd {
	co.nextID++
	pe := &pendingEnd{id: co.nextID, call: c, group: g}
	co.pending[pe.id] = pe
	return pe
}

// scheduleEnd ends the primary service after delay. An infinite delay keeps
// the agent busy for the rest of the replication.
func (co *Coordinator) scheduleEnd(pe *pendingEnd, delay float64, kind sim.EventKind) *sim.EventHandle {
	if math.IsInf(delay, 1) {
		return nil
	}
	return co.sched.ScheduleAfter(delay, kind, func() {
		pe.event = nil
		co.endPrimary(pe)
	})
}

// beginTransfer runs when the primary agent starts calling the secondary
// group. The primary stays busy for the original call's transfer time.
func (co *Coordinator) beginTransfer(pe *pendingEnd) {
	orig := pe.call
	tt := orig.TransferTime(pe.group)
	if math.IsInf(tt, 1) {
		co.record(orig, pe.group, OutcomeInfiniteTransferTime)
		logrus.Debugf("[transfer] call %s: infinite transfer time, primary freed without transfer", orig.ID)
		co.endPrimary(pe)
		return
	}
	nc := co.factory.NewCall(co.params[orig.Type].TargetType)
	nc.Attributes = orig.Attributes
	if tt == 0 {
		co.finishTransfer(pe, nc)
		return
	}
	pe.event = co.sched.ScheduleAfter(tt, sim.EventTransfer, func() {
		pe.event = nil
		co.finishTransfer(pe, nc)
	})
}

// finishTransfer decides whether the primary agent waits for the secondary
// one, then submits the new call to routing.
func (co *Coordinator) finishTransfer(pe *pendingEnd, nc *sim.Call) {
	orig := pe.call
	u2 := orig.Uniforms.TransferWait
	sim.CheckUniform("Coordinator.finishTransfer", u2)
	period := co.layout.MainPeriod(co.sched.Now())
	gp := co.params[orig.Type].group(pe.group)

	if u2 >= gp.ProbTransferWait.At(period) {
		co.record(orig, pe.group, OutcomeNoConference)
		co.endPrimary(pe)
		nc.AddServiceTimes(nc.PreServiceTimesNoConf)
		co.router.NewContact(nc)
		return
	}

	co.record(orig, pe.group, OutcomeConference)
	pe.secondary = nc
	nc.PrimaryEnd = pe.id
	co.router.NewContact(nc)
	if nc.PrimaryEnd == pe.id && !pe.queued {
		// Neither served nor queued: the router gave up on the call.
		nc.PrimaryEnd = 0
		co.record(orig, pe.group, OutcomeAbandoned)
		co.endPrimary(pe)
	}
}

// startConference runs when the secondary call c begins service at group g.
func (co *Coordinator) startConference(c *sim.Call, g int) {
	pe := co.pending[c.PrimaryEnd]
	c.PrimaryEnd = 0
	if pe == nil || pe.done {
		panic(fmt.Sprintf("Coordinator.startConference: call %s refers to no pending primary service", c.ID))
	}
	ct := c.ConferenceTime(g)
	c.AddServiceTimes(c.ConferenceTimes)
	if ct == 0 {
		co.endPrimary(pe)
		return
	}
	pe.event = co.scheduleEnd(pe, ct, sim.EventConferenceEnd)
}

// endPrimary frees the primary agent. It is the single path every pending
// end of service goes through, and runs at most once per entry.
func (co *Coordinator) endPrimary(pe *pendingEnd) {
	if pe.done {
		panic(fmt.Sprintf("Coordinator.endPrimary: primary service of call %s already completed", pe.call.ID))
	}
	pe.done = true
	if pe.event.Pending() {
		co.sched.Cancel(pe.event)
	}
	pe.event = nil
	delete(co.pending, pe.id)
	co.router.AgentGroup(pe.group).EndService(pe.call)
}

func (co *Coordinator) record(c *sim.Call, g int, outcome string) {
	if co.collectors != nil {
		co.collectors.Transfers.WithLabelValues(outcome).Inc()
	}
	co.trace.RecordTransfer(trace.TransferRecord{
		CallID:  c.ID.String(),
		Clock:   co.sched.Now(),
		Group:   g,
		Outcome: outcome,
	})
}
