// Package virtualqueue offers waiting calls a callback instead of holding
// the line, and re-injects called-back calls into ordinary routing.
package virtualqueue

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/contactsim/contactsim/sim"
	"github.com/contactsim/contactsim/sim/trace"
)

// Decision outcomes, used as the outcome label of the virtual queue counter.
const (
	OutcomeDisabled        = "disabled"
	OutcomeBelowThreshold  = "below-threshold"
	OutcomeDeclined        = "declined"
	OutcomeAccepted        = "accepted"
	OutcomeCallback        = "callback"
	OutcomeCallbackSuccess = "callback-success"
	OutcomeCallbackFailed  = "callback-failed"
)

// Coordinator watches real waiting queues and moves calls that accept a
// callback into per-type virtual queues.
type Coordinator struct {
	sched     sim.Scheduler
	router    sim.Router
	predictor sim.WaitingTimePredictor
	layout    sim.PeriodLayout
	divisor   float64
	params    []Params

	// virtual[k2] holds the calls relabeled to virtual type k2.
	virtual map[int]*sim.WaitingQueue

	collectors *sim.Collectors
	trace      *trace.SimulationTrace
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCollectors counts decisions on c.
func WithCollectors(c *sim.Collectors) Option {
	return func(co *Coordinator) { co.collectors = c }
}

// WithTrace records decisions into st.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(co *Coordinator) { co.trace = st }
}

// NewCoordinator validates cfg and creates one virtual queue per target type.
func NewCoordinator(s sim.Scheduler, r sim.Router, p sim.WaitingTimePredictor, layout sim.PeriodLayout,
	cfg Config, opts ...Option) (*Coordinator, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("virtualqueue: %w", err)
	}
	if err := cfg.validate(layout.NumPeriods); err != nil {
		return nil, err
	}
	co := &Coordinator{
		sched:     s,
		router:    r,
		predictor: p,
		layout:    layout,
		divisor:   cfg.ExitDelayDivisor,
		params:    cfg.Types,
		virtual:   make(map[int]*sim.WaitingQueue),
	}
	if co.divisor == 0 {
		co.divisor = DefaultExitDelayDivisor
	}
	for k := range cfg.Types {
		k2 := cfg.Types[k].TargetType
		if k2 < 0 {
			continue
		}
		if co.predictor == nil {
			return nil, fmt.Errorf("virtualqueue: type %d offers callbacks but no waiting time predictor is set", k)
		}
		if _, ok := co.virtual[k2]; !ok {
			co.virtual[k2] = sim.NewVirtualQueue(k2, fmt.Sprintf("virtual-%d", k2), s)
		}
	}
	for _, opt := range opts {
		opt(co)
	}
	return co, nil
}

// AttachQueue makes the coordinator decide for every call entering q.
func (co *Coordinator) AttachQueue(q *sim.WaitingQueue) {
	q.AddListener(co, sim.PriorityObserver)
}

// VirtualQueue returns the virtual queue of virtual type k2, nil if none.
func (co *Coordinator) VirtualQueue(k2 int) *sim.WaitingQueue { return co.virtual[k2] }

// ExitDelayDivisor returns the divisor applied to exit delays.
func (co *Coordinator) ExitDelayDivisor() float64 { return co.divisor }

// SetTrace replaces the trace recorder, for a new replication.
func (co *Coordinator) SetTrace(st *trace.SimulationTrace) { co.trace = st }

// Reset empties the virtual queues. Called at replication start, after the
// scheduler epoch was reset.
func (co *Coordinator) Reset() {
	for _, q := range co.virtual {
		q.Clear()
	}
}

// OnEnqueued implements sim.QueueListener.
func (co *Coordinator) OnEnqueued(e *sim.QueuedCall) {
	c := e.Call
	if e.Queue.Virtual() || !e.InQueue() || c.PatienceTime == 0 {
		return
	}
	if c.TypeBeforeVQ >= 0 {
		co.calledBack(e)
		return
	}
	p := co.typeParams(c.Type)
	if p == nil || p.TargetType < 0 || c.WaitingTimeVQ != 0 {
		return
	}
	now := co.sched.Now()
	period := co.layout.MainPeriod(now)
	thresh := p.ExpectedWaitingTimeThresh.At(period)
	if math.IsInf(thresh, 1) {
		co.record(c, OutcomeDisabled, math.NaN(), thresh)
		return
	}
	predicted := co.predictor.Predict(c, e.Queue)
	if predicted < thresh {
		co.record(c, OutcomeBelowThreshold, predicted, thresh)
		return
	}
	u := c.Uniforms.VirtualQueue
	sim.CheckUniform("Coordinator.OnEnqueued", u)
	if u >= p.ProbVirtualQueue.At(period) {
		co.record(c, OutcomeDeclined, predicted, thresh)
		co.multiplyPatience(e, p.PatienceTimesMultNoVirtualQueue.At(period))
		c.MultiplyServiceTimes(p.ServiceTimesMultNoVirtualQueue.At(period))
		return
	}

	co.record(c, OutcomeAccepted, predicted, thresh)
	e.Queue.Remove(e, sim.DequeueTransferred)
	c.QueueTimeBeforeVQ = e.Waited(now)
	c.TypeBeforeVQ = c.Type
	c.SetType(p.TargetType)
	ve := co.virtual[p.TargetType].Enqueue(c)
	delay := predicted * p.ExpectedWaitingTimeMult.At(period) / co.divisor
	logrus.Debugf("[virtualqueue] call %s: callback in %.3f (predicted wait %.3f)", c.ID, delay, predicted)
	co.sched.ScheduleAfter(delay, sim.EventVirtualQueueExit, func() { co.exit(ve) })
}

// OnDequeued implements sim.QueueListener.
func (co *Coordinator) OnDequeued(*sim.QueuedCall, sim.DequeueType) {}

// calledBack handles a called-back call that has to wait again.
func (co *Coordinator) calledBack(e *sim.QueuedCall) {
	c := e.Call
	p := co.typeParams(c.TypeBeforeVQ)
	if p == nil || p.TargetType < 0 {
		return
	}
	period := co.layout.MainPeriod(co.sched.Now())
	co.record(c, OutcomeCallback, math.NaN(), math.NaN())
	co.multiplyPatience(e, p.PatienceTimesMultCallBack.At(period))
	c.MultiplyServiceTimes(p.ServiceTimesMultCallBack.At(period))
}

// exit calls the customer back: the call leaves the virtual queue under its
// original type and is routed again.
func (co *Coordinator) exit(ve *sim.QueuedCall) {
	c := ve.Call
	if !ve.Queue.Remove(ve, sim.DequeueTransferred) {
		return
	}
	co.router.ExitDequeued(ve)
	now := co.sched.Now()
	c.WaitingTimeVQ = ve.Waited(now)
	c.SetType(c.TypeBeforeVQ)
	c.ResetRouting()

	p := co.typeParams(c.Type)
	period := co.layout.MainPeriod(now)
	u := c.Uniforms.Callback
	sim.CheckUniform("Coordinator.exit", u)
	if u < p.ProbVirtualQueueCallBack.At(period) {
		co.record(c, OutcomeCallbackSuccess, math.NaN(), math.NaN())
		c.PatienceTime = math.Inf(1)
	} else {
		co.record(c, OutcomeCallbackFailed, math.NaN(), math.NaN())
		c.PatienceTime = 0
	}
	co.router.NewContact(c)
}

// multiplyPatience scales the remaining patience of a queued call. An
// infinite multiplier cancels the abandonment instead of moving it.
func (co *Coordinator) multiplyPatience(e *sim.QueuedCall, mult float64) {
	h := e.Abandonment()
	if h == nil {
		return
	}
	now := co.sched.Now()
	if math.IsInf(mult, 1) {
		e.Queue.CancelAbandonment(e)
		e.Call.PatienceTime = math.Inf(1)
		return
	}
	remaining := (h.Time() - now) * mult
	co.sched.Reschedule(h, remaining)
	e.Call.PatienceTime = e.Waited(now) + remaining
}

func (co *Coordinator) typeParams(k int) *Params {
	if k < 0 || k >= len(co.params) {
		return nil
	}
	return &co.params[k]
}

func (co *Coordinator) record(c *sim.Call, outcome string, predicted, thresh float64) {
	if co.collectors != nil {
		co.collectors.VirtualQueueDecisions.WithLabelValues(outcome).Inc()
	}
	co.trace.RecordVirtualQueue(trace.VirtualQueueRecord{
		CallID:        c.ID.String(),
		Clock:         co.sched.Now(),
		Type:          c.Type,
		Outcome:       outcome,
		PredictedWait: predicted,
		Threshold:     thresh,
	})
}
