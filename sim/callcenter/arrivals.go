package callcenter

import (
	"math"

	"github.com/contactsim/contactsim/sim"
)

// poissonArrivals generates calls of one type from a Poisson process whose
// rate is constant within each main period. No call arrives outside the
// main periods.
type poissonArrivals struct {
	sched    sim.Scheduler
	layout   sim.PeriodLayout
	callType int
	rates    sim.PerPeriod
	rng      *stream
	factory  sim.ContactFactory
	submit   func(c *sim.Call)
}

// start schedules the first arrival of the replication.
func (a *poissonArrivals) start() {
	a.scheduleNext(a.sched.Now())
}

// next returns the next arrival time after t, +Inf when there is none. The
// process is memoryless, so crossing a period boundary restarts the draw at
// the boundary with the new rate.
func (a *poissonArrivals) next(t float64) float64 {
	if t >= a.layout.End() {
		return math.Inf(1)
	}
	t = max(t, a.layout.Start)
	for p := a.layout.MainPeriod(t); p < a.layout.NumPeriods; p++ {
		boundary := a.layout.PeriodStart(p + 1)
		if rate := a.rates.At(p); rate > 0 {
			if at := t + a.rng.ExpFloat64()/rate; at < boundary {
				return at
			}
		}
		t = boundary
	}
	return math.Inf(1)
}

func (a *poissonArrivals) scheduleNext(t float64) {
	at := a.next(t)
	if math.IsInf(at, 1) {
		return
	}
	a.sched.ScheduleAfter(at-a.sched.Now(), sim.EventArrival, func() {
		a.submit(a.factory.NewCall(a.callType))
		a.scheduleNext(at)
	})
}
