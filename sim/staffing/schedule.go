package staffing

import (
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/contactsim/contactsim/sim"
)

// shiftState tracks one shift through a replication.
type shiftState struct {
	headcount int
	part      int
	working   bool
	next      *sim.EventHandle
}

// ScheduleStaffing adds and removes the agents of its shifts at every
// working-part boundary.
type ScheduleStaffing struct {
	sched  sim.Scheduler
	group  *sim.AgentGroup
	shifts []*Shift
	states []shiftState

	collectors *sim.Collectors
}

// Option configures a staffing source.
type Option func(*options)

type options struct {
	collectors *sim.Collectors
}

// WithCollectors publishes the group's agent count on c.
func WithCollectors(c *sim.Collectors) Option {
	return func(o *options) { o.collectors = c }
}

// NewScheduleStaffing drives g from shifts.
func NewScheduleStaffing(s sim.Scheduler, g *sim.AgentGroup, shifts []*Shift, opts ...Option) *ScheduleStaffing {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &ScheduleStaffing{
		sched:      s,
		group:      g,
		shifts:     shifts,
		states:     make([]shiftState, len(shifts)),
		collectors: o.collectors,
	}
}

// Shifts returns the shifts driving the group.
func (ss *ScheduleStaffing) Shifts() []*Shift { return ss.shifts }

// Start draws the effective headcount of every shift for this replication
// and schedules the first boundary of each. Agents are added on top of the
// group's current capacity, normally 0 at replication start.
func (ss *ScheduleStaffing) Start(src rand.Source) {
	for i, sh := range ss.shifts {
		ss.states[i] = shiftState{headcount: drawHeadcount(sh, src)}
		if ss.states[i].headcount != sh.Agents {
			logrus.Debugf("[staffing] group %q shift %d: %d of %d agents present",
				ss.group.Name(), i, ss.states[i].headcount, sh.Agents)
		}
		ss.scheduleNext(i)
	}
	ss.publish()
}

// Headcounts returns the effective headcount of every shift drawn by the
// last Start.
func (ss *ScheduleStaffing) Headcounts() []int {
	h := make([]int, len(ss.states))
	for i := range ss.states {
		h[i] = ss.states[i].headcount
	}
	return h
}

// Reset forgets the state of the previous replication. Pending boundary
// events are cancelled.
func (ss *ScheduleStaffing) Reset() {
	for i := range ss.states {
		if ss.states[i].next.Pending() {
			ss.sched.Cancel(ss.states[i].next)
		}
		ss.states[i] = shiftState{}
	}
}

func drawHeadcount(sh *Shift, src rand.Source) int {
	if sh.Presence == 1 || sh.Agents == 0 {
		return sh.Agents
	}
	b := distuv.Binomial{N: float64(sh.Agents), P: sh.Presence, Src: src}
	return int(b.Rand())
}

// scheduleNext schedules the next transition of shift i: the start of its
// next working part when idle, the end of the current one when working.
// A shift with no working part left performs no further transitions.
func (ss *ScheduleStaffing) scheduleNext(i int) {
	st := &ss.states[i]
	parts := ss.shifts[i].Parts
	if !st.working {
		for st.part < len(parts) && !parts[st.part].Working {
			st.part++
		}
		if st.part >= len(parts) {
			st.next = nil
			return
		}
	}
	at := parts[st.part].Start
	if st.working {
		at = parts[st.part].End
	}
	delay := max(0, at-ss.sched.Now())
	st.next = ss.sched.ScheduleAfter(delay, sim.EventStaffing, func() { ss.transition(i) })
}

func (ss *ScheduleStaffing) transition(i int) {
	st := &ss.states[i]
	if st.working {
		ss.group.AddAgents(-st.headcount)
		st.working = false
		st.part++
	} else {
		ss.group.AddAgents(st.headcount)
		st.working = true
	}
	ss.publish()
	ss.scheduleNext(i)
}

func (ss *ScheduleStaffing) publish() {
	if ss.collectors != nil {
		ss.collectors.Agents.WithLabelValues(ss.group.Name()).Set(float64(ss.group.Capacity()))
	}
}
