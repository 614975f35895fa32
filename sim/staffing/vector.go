package staffing

import (
	"fmt"

	"github.com/contactsim/contactsim/sim"
)

// VectorStaffing sets a group's capacity to a fixed number of agents per
// main period. The preliminary period uses the first value and the wrap-up
// period keeps the last one.
type VectorStaffing struct {
	sched    sim.Scheduler
	group    *sim.AgentGroup
	layout   sim.PeriodLayout
	staffing []int

	collectors *sim.Collectors
}

// NewVectorStaffing validates staffing, which needs one non-negative value
// per main period.
func NewVectorStaffing(s sim.Scheduler, g *sim.AgentGroup, layout sim.PeriodLayout, staffing []int, opts ...Option) (*VectorStaffing, error) {
	if len(staffing) != layout.NumPeriods {
		return nil, fmt.Errorf("staffing: group %q: expected %d staffing values, got %d", g.Name(), layout.NumPeriods, len(staffing))
	}
	for p, n := range staffing {
		if n < 0 {
			return nil, fmt.Errorf("staffing: group %q: negative staffing %d in period %d", g.Name(), n, p)
		}
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &VectorStaffing{sched: s, group: g, layout: layout, staffing: staffing, collectors: o.collectors}, nil
}

// Staffing returns the per-period agent counts.
func (vs *VectorStaffing) Staffing() []int { return vs.staffing }

// Start sets the capacity for the preliminary period and schedules the
// change at the start of every later main period.
func (vs *VectorStaffing) Start() {
	vs.set(0)
	now := vs.sched.Now()
	for p := 1; p < len(vs.staffing); p++ {
		at := vs.layout.PeriodStart(p)
		if at < now {
			continue
		}
		vs.sched.ScheduleAfter(at-now, sim.EventPeriodChange, func() { vs.set(p) })
	}
}

func (vs *VectorStaffing) set(p int) {
	vs.group.SetCapacity(vs.staffing[p])
	if vs.collectors != nil {
		vs.collectors.Agents.WithLabelValues(vs.group.Name()).Set(float64(vs.group.Capacity()))
	}
}
