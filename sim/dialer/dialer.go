package dialer

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/contactsim/contactsim/sim"
)

// PriorityDialer runs the dialer after the router has handed freed agents to
// waiting calls.
const PriorityDialer = sim.PriorityRouter + 50

// Config are the dialing parameters of a Dialer.
type Config struct {
	// Groups are the agent groups whose free agents the dialer keeps busy.
	Groups []int
	// ProbReach is the probability that a dialed customer answers, per main
	// period.
	ProbReach sim.PerPeriod
	// DialDelay is the time between dialing and knowing whether the
	// customer answered.
	DialDelay float64
}

// Stats counts a dialer's activity in one replication.
type Stats struct {
	Dialed  int
	Reached int
	Failed  int
}

// Dialer places outbound calls whenever agents of its groups are idle. A
// reached customer is routed like an inbound call with zero patience: if no
// agent is free at that moment the call is lost.
type Dialer struct {
	sched    sim.Scheduler
	router   sim.Router
	selector *Selector
	layout   sim.PeriodLayout
	reach    sim.RandomStream
	cfg      Config

	inFlight int
	stopped  bool
	stats    Stats
}

// NewDialer creates a dialer drawing call types from sel. reach decides
// whether each dialed customer answers.
func NewDialer(s sim.Scheduler, r sim.Router, sel *Selector, layout sim.PeriodLayout, reach sim.RandomStream, cfg Config) (*Dialer, error) {
	if len(cfg.Groups) == 0 {
		return nil, fmt.Errorf("dialer: no agent groups to keep busy")
	}
	for _, g := range cfg.Groups {
		if g < 0 || g >= r.NumAgentGroups() {
			return nil, fmt.Errorf("dialer: agent group %d out of range [0,%d)", g, r.NumAgentGroups())
		}
	}
	if err := cfg.ProbReach.ValidateProbabilities("dialer: probReach", layout.NumPeriods); err != nil {
		return nil, err
	}
	if !(cfg.DialDelay >= 0) || math.IsInf(cfg.DialDelay, 1) {
		return nil, fmt.Errorf("dialer: dial delay must be finite and non-negative, got %v", cfg.DialDelay)
	}
	return &Dialer{sched: s, router: r, selector: sel, layout: layout, reach: reach, cfg: cfg}, nil
}

// Attach makes the dialer react to agents becoming free in its groups.
func (d *Dialer) Attach() {
	for _, g := range d.cfg.Groups {
		d.router.AgentGroup(g).AddListener(sim.AgentGroupListenerFuncs{
			ServiceEnded:    func(*sim.AgentGroup, *sim.Call) { d.Dial() },
			CapacityChanged: func(*sim.AgentGroup, int) { d.Dial() },
		}, PriorityDialer)
	}
}

// Selector returns the type selector of the dialer.
func (d *Dialer) Selector() *Selector { return d.selector }

// Stats returns the counts of the current replication.
func (d *Dialer) Stats() Stats { return d.stats }

// Stop ends the campaign: no further call is dialed in this replication.
// Calls already dialed are still answered.
func (d *Dialer) Stop() { d.stopped = true }

// Reset starts a new replication: counters and limits are cleared.
func (d *Dialer) Reset() {
	d.inFlight = 0
	d.stopped = false
	d.stats = Stats{}
	d.selector.Reset()
}

// Dial places as many calls as there are free agents not already waiting for
// a dialed customer, within the selector's remaining capacity.
func (d *Dialer) Dial() {
	if d.stopped {
		return
	}
	free := 0
	for _, g := range d.cfg.Groups {
		free += d.router.AgentGroup(g).Free()
	}
	n := free - d.inFlight
	if n <= 0 {
		return
	}
	if size, unlimited := d.selector.Size(); !unlimited {
		n = min(n, size)
	}
	for ; n > 0; n-- {
		c, ok := d.selector.RemoveFirst()
		if !ok {
			return
		}
		d.inFlight++
		d.stats.Dialed++
		d.sched.ScheduleAfter(d.cfg.DialDelay, sim.EventDial, func() { d.answer(c) })
	}
}

func (d *Dialer) answer(c *sim.Call) {
	d.inFlight--
	period := d.layout.MainPeriod(d.sched.Now())
	u := d.reach.Float64()
	sim.CheckUniform("Dialer.answer", u)
	if u >= d.cfg.ProbReach.At(period) {
		d.stats.Failed++
		logrus.Debugf("[dialer] call %s of type %d not reached", c.ID, c.Type)
		d.Dial()
		return
	}
	d.stats.Reached++
	c.ArrivalTime = d.sched.Now()
	c.PatienceTime = 0
	d.router.NewContact(c)
}
