// Package callcenter builds a complete contact center from a ModelConfig and
// runs it: arrivals, the reference router, transfers, virtual queueing,
// dialers and staffing, over independent replications.
package callcenter

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/contactsim/contactsim/sim"
	"github.com/contactsim/contactsim/sim/dialer"
	"github.com/contactsim/contactsim/sim/routing"
	"github.com/contactsim/contactsim/sim/staffing"
	"github.com/contactsim/contactsim/sim/trace"
	"github.com/contactsim/contactsim/sim/transfer"
	"github.com/contactsim/contactsim/sim/virtualqueue"
)

// Model is a built contact center. It is the router every component hands
// calls to: a new call goes to the free agent group with the lowest finite
// rank (ties by group index), otherwise it waits in the queue of its type;
// a freed agent takes the queued call with the lowest queue rank for its
// group, ties by enqueue order.
type Model struct {
	cfg    *ModelConfig
	layout sim.PeriodLayout
	sched  *sim.Simulator

	groups []*sim.AgentGroup
	queues []*sim.WaitingQueue

	engine    *routing.Engine
	transfer  *transfer.Coordinator
	vq        *virtualqueue.Coordinator
	predictor virtualqueue.Predictor
	dialers   []*dialer.Dialer
	schedules []*staffing.ScheduleStaffing
	vectors   []*staffing.VectorStaffing
	arrivals  []*poissonArrivals

	factory     *contactFactory
	streams     streams
	staffingRNG *stream

	registry   *Registry
	collectors *sim.Collectors
	traceLevel trace.TraceLevel
	trace      *trace.SimulationTrace

	stats []TypeStats
}

// Option configures a Model.
type Option func(*Model)

// WithRegistry resolves named plugins from r instead of the built-in
// registry.
func WithRegistry(r *Registry) Option {
	return func(m *Model) { m.registry = r }
}

// WithCollectors publishes the decision counters of every component on c.
func WithCollectors(c *sim.Collectors) Option {
	return func(m *Model) { m.collectors = c }
}

// WithTraceLevel records a decision trace for each replication.
func WithTraceLevel(level trace.TraceLevel) Option {
	return func(m *Model) { m.traceLevel = level }
}

// NewModel validates cfg and builds every component.
func NewModel(cfg *ModelConfig, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{
		cfg:     cfg,
		layout:  cfg.Layout(),
		sched:   sim.NewSimulator(),
		streams: make(streams),
		stats:   make([]TypeStats, len(cfg.Types)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	if m.collectors == nil {
		m.collectors = sim.NewCollectors(nil)
	}

	for i, gc := range cfg.Groups {
		name := gc.Name
		if name == "" {
			name = fmt.Sprintf("group-%d", i)
		}
		g := sim.NewAgentGroup(i, name, 0)
		g.AddListener(sim.AgentGroupListenerFuncs{
			ServiceEnded: func(g *sim.AgentGroup, _ *sim.Call) { m.pull(g) },
			CapacityChanged: func(g *sim.AgentGroup, old int) {
				if g.Capacity() > old {
					m.pull(g)
				}
			},
		}, sim.PriorityRouter)
		m.groups = append(m.groups, g)
	}
	for k, tc := range cfg.Types {
		name := tc.Name
		if name == "" {
			name = fmt.Sprintf("type-%d", k)
		}
		m.queues = append(m.queues, sim.NewWaitingQueue(k, name, m.sched))
	}
	m.factory = newContactFactory(m.sched, m.layout, cfg.Types, m.streams)

	if err := m.buildRouting(); err != nil {
		return nil, err
	}
	if err := m.buildTransfer(); err != nil {
		return nil, err
	}
	if err := m.buildVirtualQueue(); err != nil {
		return nil, err
	}
	if err := m.buildDialers(); err != nil {
		return nil, err
	}
	if err := m.buildStaffing(); err != nil {
		return nil, err
	}
	m.staffingRNG = m.streams.get(sim.SubsystemStaffing)
	for k, tc := range cfg.Types {
		if len(tc.ArrivalRates) == 0 {
			continue
		}
		m.arrivals = append(m.arrivals, &poissonArrivals{
			sched:    m.sched,
			layout:   m.layout,
			callType: k,
			rates:    tc.ArrivalRates,
			rng:      m.streams.get(sim.SubsystemType(sim.SubsystemArrivals, k)),
			factory:  m.factory,
			submit:   m.arrive,
		})
	}
	for _, q := range m.queues {
		q.AddListener(sim.QueueListenerFuncs{Dequeued: m.dequeued}, sim.PriorityRouter)
	}
	logrus.Infof("model built: %d agent groups, %d call types, %d dialers", len(m.groups), len(m.queues), len(m.dialers))
	return m, nil
}

func (m *Model) buildRouting() error {
	types := make([]routing.TypeRouting, len(m.cfg.Types))
	for k := range m.cfg.Types {
		rc := &m.cfg.Types[k].Routing
		tr := routing.TypeRouting{
			BaseAgentRanks: routing.RankVector(rc.BaseAgentRanks),
			BaseQueueRanks: routing.RankVector(rc.BaseQueueRanks),
		}
		for s, sc := range rc.Stages {
			stage := routing.Stage{WaitingTime: sc.WaitingTime}
			for c := range sc.Cases {
				cs, err := m.routingCase(&sc.Cases[c])
				if err != nil {
					return fmt.Errorf("types[%d].routing.stages[%d].cases[%d]: %w", k, s, c, err)
				}
				stage.Cases = append(stage.Cases, cs)
			}
			tr.Stages = append(tr.Stages, stage)
		}
		types[k] = tr
	}
	engine, err := routing.NewEngine(len(m.groups), len(m.queues), types,
		routing.WithCollectors(m.collectors), routing.WithStateProvider(m), routing.WithScheduler(m.sched))
	if err != nil {
		return err
	}
	m.engine = engine
	return nil
}

func (m *Model) routingCase(cc *CaseConfig) (routing.Case, error) {
	cs := routing.Case{
		Kind:       routing.CaseKind(cc.Kind),
		AgentRanks: routing.RankVector(cc.AgentRanks),
		QueueRanks: routing.RankVector(cc.QueueRanks),
	}
	if cs.Kind == "" {
		cs.Kind = routing.CaseAbsolute
	}
	if cc.Function != "" {
		f, err := m.registry.RankFunction(cc.Function, len(m.groups))
		if err != nil {
			return cs, err
		}
		cs.Function = f
	}
	if cc.When != nil {
		cd, err := m.condition(cc.When)
		if err != nil {
			return cs, err
		}
		cs.Condition = cd
	}
	return cs, nil
}

func (m *Model) condition(cc *ConditionConfig) (*routing.Condition, error) {
	cd := &routing.Condition{
		Kind:      routing.ConditionKind(cc.Kind),
		Index:     cc.Index,
		Op:        routing.CompareOp(cc.Op),
		Value:     cc.Value,
		Attribute: cc.Attribute,
		Text:      cc.Text,
	}
	for i := range cc.Children {
		child, err := m.condition(&cc.Children[i])
		if err != nil {
			return nil, err
		}
		cd.Children = append(cd.Children, *child)
	}
	if cc.Predicate != "" {
		p, err := m.registry.Predicate(cc.Predicate)
		if err != nil {
			return nil, err
		}
		cd.Predicate = p
	}
	return cd, nil
}

func (m *Model) buildTransfer() error {
	params := make([]transfer.TypeParams, len(m.cfg.Types))
	for k, tc := range m.cfg.Types {
		if tc.Transfer == nil {
			continue
		}
		tp := transfer.TypeParams{Enabled: true, TargetType: tc.Transfer.TargetType}
		for _, g := range tc.Transfer.Groups {
			tp.Groups = append(tp.Groups, transfer.GroupParams{
				ProbTransfer:             g.ProbTransfer,
				ServiceTimesMultTransfer: g.ServiceTimesMult,
				ProbTransferWait:         g.ProbWait,
			})
		}
		params[k] = tp
	}
	co, err := transfer.NewCoordinator(m.sched, m, m.factory, m.layout, params, transfer.WithCollectors(m.collectors))
	if err != nil {
		return err
	}
	for _, q := range m.queues {
		co.AttachQueue(q)
	}
	m.transfer = co
	return nil
}

func (m *Model) buildVirtualQueue() error {
	cfg := virtualqueue.Config{ExitDelayDivisor: m.cfg.VirtualQueue.ExitDelayDivisor}
	enabled := false
	for _, tc := range m.cfg.Types {
		vc := tc.VirtualQueue
		if vc == nil {
			cfg.Types = append(cfg.Types, virtualqueue.Disabled())
			continue
		}
		enabled = true
		cfg.Types = append(cfg.Types, virtualqueue.Params{
			TargetType:                      vc.TargetType,
			ExpectedWaitingTimeThresh:       vc.Threshold,
			ProbVirtualQueue:                vc.Prob,
			PatienceTimesMultNoVirtualQueue: vc.PatienceMultDeclined,
			ServiceTimesMultNoVirtualQueue:  vc.ServiceMultDeclined,
			ExpectedWaitingTimeMult:         vc.ExpectedWaitingTimeMult,
			ProbVirtualQueueCallBack:        vc.ProbCallBack,
			PatienceTimesMultCallBack:       vc.PatienceMultCallBack,
			ServiceTimesMultCallBack:        vc.ServiceMultCallBack,
		})
	}
	if !enabled {
		return nil
	}
	p, err := m.registry.Predictor(m.cfg.VirtualQueue.Predictor, m.cfg.VirtualQueue.Window)
	if err != nil {
		return fmt.Errorf("virtual_queue: %w", err)
	}
	co, err := virtualqueue.NewCoordinator(m.sched, m, p, m.layout, cfg, virtualqueue.WithCollectors(m.collectors))
	if err != nil {
		return err
	}
	for _, q := range m.queues {
		virtualqueue.Attach(p, q)
		co.AttachQueue(q)
	}
	m.predictor = p
	m.vq = co
	return nil
}

func (m *Model) buildDialers() error {
	for d, dc := range m.cfg.Dialers {
		types := make([]dialer.TypeConfig, len(dc.Types))
		for i, tc := range dc.Types {
			types[i] = dialer.TypeConfig{Type: tc.Type, Prob: tc.Prob}
		}
		limits := make([]dialer.Limit, len(dc.Limits))
		for i, lc := range dc.Limits {
			limits[i] = dialer.Limit{Start: lc.Start, End: lc.End, MaxCalls: lc.MaxCalls, Types: lc.Types}
		}
		name := fmt.Sprintf("%s_%d", sim.SubsystemDialer, d)
		sel, err := dialer.NewSelector(m.sched, m.layout, m.factory, m.streams.get(name+"_select"), types, limits,
			dialer.WithCollectors(m.collectors))
		if err != nil {
			return fmt.Errorf("dialers[%d]: %w", d, err)
		}
		dl, err := dialer.NewDialer(m.sched, m, sel, m.layout, m.streams.get(name+"_reach"),
			dialer.Config{Groups: dc.Groups, ProbReach: dc.ProbReach, DialDelay: dc.Delay})
		if err != nil {
			return fmt.Errorf("dialers[%d]: %w", d, err)
		}
		dl.Attach()
		m.dialers = append(m.dialers, dl)
	}
	return nil
}

func (m *Model) buildStaffing() error {
	m.schedules = make([]*staffing.ScheduleStaffing, len(m.groups))
	m.vectors = make([]*staffing.VectorStaffing, len(m.groups))
	for i, gc := range m.cfg.Groups {
		switch {
		case gc.Staffing != nil:
			vs, err := staffing.NewVectorStaffing(m.sched, m.groups[i], m.layout, gc.Staffing, staffing.WithCollectors(m.collectors))
			if err != nil {
				return err
			}
			m.vectors[i] = vs
		case gc.Shifts != nil:
			shifts := make([]*staffing.Shift, len(gc.Shifts))
			for j, sc := range gc.Shifts {
				presence := 1.0
				if sc.Presence != nil {
					presence = *sc.Presence
				}
				sh, err := staffing.NewShift(sc.Parts, sc.Agents, presence)
				if err != nil {
					return fmt.Errorf("groups[%d].shifts[%d]: %w", i, j, err)
				}
				shifts[j] = sh
			}
			m.schedules[i] = staffing.NewScheduleStaffing(m.sched, m.groups[i], shifts, staffing.WithCollectors(m.collectors))
		}
	}
	return nil
}

// Simulator returns the event scheduler of the model.
func (m *Model) Simulator() *sim.Simulator { return m.sched }

// Engine returns the routing engine.
func (m *Model) Engine() *routing.Engine { return m.engine }

// Queue returns the real waiting queue of call type k.
func (m *Model) Queue(k int) *sim.WaitingQueue { return m.queues[k] }

// CanServe implements sim.Router: group i can serve type k when some routing
// case may rank it finitely.
func (m *Model) CanServe(i, k int) bool { return m.engine.CanReturnFiniteRank(k, i) }

// AgentGroup implements sim.Router.
func (m *Model) AgentGroup(i int) *sim.AgentGroup { return m.groups[i] }

// NumAgentGroups implements sim.Router.
func (m *Model) NumAgentGroups() int { return len(m.groups) }

// RouterState implements sim.RouterStateProvider.
func (m *Model) RouterState() *sim.RouterState {
	rs := &sim.RouterState{
		Groups:     make([]sim.GroupSnapshot, len(m.groups)),
		QueueSizes: make([]int, len(m.queues)),
		Clock:      m.sched.Now(),
	}
	for i, g := range m.groups {
		rs.Groups[i] = sim.GroupSnapshot{Capacity: g.Capacity(), Busy: g.Busy(), Free: g.Free()}
	}
	for k, q := range m.queues {
		rs.QueueSizes[k] = q.Len()
	}
	return rs
}

// arrive submits a call from an arrival process.
func (m *Model) arrive(c *sim.Call) {
	m.stats[c.Type].Arrived++
	m.NewContact(c)
}

// NewContact implements sim.Router.
func (m *Model) NewContact(c *sim.Call) {
	m.stats[c.Type].Offered++
	s := m.engine.StageFor(c, 0)
	if s < 0 {
		m.block(c)
		return
	}
	ranks, ok := m.engine.RanksForAgentSelection(s, c)
	if !ok {
		m.block(c)
		return
	}
	if i := ranks.Best(m.hasFreeAgent); i >= 0 {
		m.serve(c, m.groups[i], 0)
		return
	}
	e := m.queues[c.Type].Enqueue(c)
	if e.InQueue() {
		m.scheduleStage(e, s+1)
	}
}

// ExitDequeued implements sim.Router. The only queues the router does not
// own are virtual queues, left when the customer is called back. The call
// still carries its virtual type; it is counted under its original one.
func (m *Model) ExitDequeued(e *sim.QueuedCall) {
	k := e.Call.Type
	if e.Call.TypeBeforeVQ >= 0 {
		k = e.Call.TypeBeforeVQ
	}
	m.stats[k].CalledBack++
}

func (m *Model) hasFreeAgent(i int) bool { return m.groups[i].Free() > 0 }

func (m *Model) block(c *sim.Call) {
	m.stats[c.Type].Blocked++
	c.ExitTime = m.sched.Now()
	logrus.Debugf("[router] call %s of type %d has no route", c.ID, c.Type)
}

// scheduleStage retries a queued call when it reaches stage s, whose ranks
// may make new groups eligible.
func (m *Model) scheduleStage(e *sim.QueuedCall, s int) {
	k := e.Call.Type
	if s >= m.engine.NumStages(k) {
		return
	}
	delay := max(0, m.engine.StageWaitingTime(k, s)-e.Waited(m.sched.Now()))
	m.sched.ScheduleAfter(delay, sim.EventRoutingStage, func() {
		if !e.InQueue() || e.Call.Type != k {
			return
		}
		ranks, ok := m.engine.RanksForAgentSelection(s, e.Call)
		if ok {
			if i := ranks.Best(m.hasFreeAgent); i >= 0 {
				w := e.Waited(m.sched.Now())
				e.Queue.Remove(e, sim.DequeueServed)
				m.serve(e.Call, m.groups[i], w)
				return
			}
		}
		m.scheduleStage(e, s+1)
	})
}

// pull hands queued calls to the free agents of g.
func (m *Model) pull(g *sim.AgentGroup) {
	now := m.sched.Now()
	for g.Free() > 0 {
		var best *sim.QueuedCall
		bestRank := math.Inf(1)
		for k, q := range m.queues {
			if !m.engine.CanReturnFiniteQueueRank(k, g.ID()) {
				continue
			}
			for _, e := range q.Items() {
				s := m.engine.StageFor(e.Call, e.Waited(now))
				if s < 0 {
					continue
				}
				ranks, ok := m.engine.RanksForQueuePriority(s, e.Call)
				if !ok || !ranks.Finite(g.ID()) {
					continue
				}
				r := ranks[g.ID()]
				if best == nil || r < bestRank || (r == bestRank && e.EnqueueTime < best.EnqueueTime) {
					best, bestRank = e, r
				}
			}
		}
		if best == nil {
			return
		}
		w := best.Waited(now)
		best.Queue.Remove(best, sim.DequeueServed)
		m.serve(best.Call, g, w)
	}
}

// serve starts the service of c at g. The transfer coordinator owns the end
// of service of transfer-enabled calls; other calls end after their service
// time, and an infinite service time keeps the agent busy for good.
func (m *Model) serve(c *sim.Call, g *sim.AgentGroup, waited float64) {
	st := &m.stats[c.Type]
	st.Served++
	st.WaitSum += waited
	if waited <= m.cfg.ServiceLevelAWT {
		st.WithinAWT++
	}
	g.BeginService(c)
	c.BeginServiceTime = m.sched.Now()
	if m.transfer.OnServiceStarted(c, g.ID()) {
		return
	}
	d := c.ServiceTime(g.ID())
	if math.IsInf(d, 1) {
		logrus.Warnf("[router] call %s has an infinite service time at group %q", c.ID, g.Name())
		return
	}
	m.sched.ScheduleAfter(d, sim.EventServiceEnd, func() {
		c.ExitTime = m.sched.Now()
		g.EndService(c)
	})
}

func (m *Model) dequeued(e *sim.QueuedCall, t sim.DequeueType) {
	if t != sim.DequeueAbandoned {
		return
	}
	st := &m.stats[e.Call.Type]
	if e.Waited(m.sched.Now()) == 0 && e.Call.PatienceTime == 0 {
		st.Lost++
	} else {
		st.Abandoned++
	}
	e.Call.ExitTime = m.sched.Now()
}
