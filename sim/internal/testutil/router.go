package testutil

import (
	"github.com/contactsim/contactsim/sim"
)

// Router is a minimal sim.Router for component tests. A submitted call is
// served by the lowest-index free group that can serve it, otherwise it
// waits in Queues[call.Type]. A freed agent takes the oldest queued call it
// can serve, scanning queues by index.
type Router struct {
	Sched  sim.Scheduler
	Groups []*sim.AgentGroup
	Queues []*sim.WaitingQueue

	// Serves[g][k] restricts group g to call types k; nil serves every type.
	Serves [][]bool
	// Drop makes NewContact discard calls of these types without queueing.
	Drop map[int]bool
	// ServiceStarted runs after a call is assigned to a group. When it
	// returns false the router schedules the end of service itself after
	// the call's service time at that group.
	ServiceStarted func(c *sim.Call, g int) bool

	Submitted []*sim.Call
	Dropped   []*sim.Call
	Exited    []*sim.QueuedCall
	Completed []*sim.Call
}

// NewRouter creates groups with the given capacities and one real queue per
// call type.
func NewRouter(s sim.Scheduler, numTypes int, capacities ...int) *Router {
	r := &Router{Sched: s}
	for i, c := range capacities {
		g := sim.NewAgentGroup(i, "", c)
		g.AddListener(sim.AgentGroupListenerFuncs{
			ServiceEnded: func(g *sim.AgentGroup, c *sim.Call) {
				r.Completed = append(r.Completed, c)
				r.pull(g)
			},
		}, sim.PriorityRouter)
		r.Groups = append(r.Groups, g)
	}
	for k := 0; k < numTypes; k++ {
		r.Queues = append(r.Queues, sim.NewWaitingQueue(k, "", s))
	}
	return r
}

func (r *Router) CanServe(g, k int) bool {
	return r.Serves == nil || r.Serves[g] == nil || r.Serves[g][k]
}

func (r *Router) NewContact(c *sim.Call) {
	r.Submitted = append(r.Submitted, c)
	if r.Drop[c.Type] {
		r.Dropped = append(r.Dropped, c)
		return
	}
	for i, g := range r.Groups {
		if g.Free() > 0 && r.CanServe(i, c.Type) {
			r.serve(c, g)
			return
		}
	}
	r.Queues[c.Type].Enqueue(c)
}

func (r *Router) ExitDequeued(e *sim.QueuedCall) { r.Exited = append(r.Exited, e) }

func (r *Router) AgentGroup(i int) *sim.AgentGroup { return r.Groups[i] }

func (r *Router) NumAgentGroups() int { return len(r.Groups) }

func (r *Router) serve(c *sim.Call, g *sim.AgentGroup) {
	g.BeginService(c)
	c.BeginServiceTime = r.Sched.Now()
	if r.ServiceStarted != nil && r.ServiceStarted(c, g.ID()) {
		return
	}
	r.Sched.ScheduleAfter(c.ServiceTime(g.ID()), sim.EventServiceEnd, func() { g.EndService(c) })
}

func (r *Router) pull(g *sim.AgentGroup) {
	for g.Free() > 0 {
		var next *sim.QueuedCall
		for _, q := range r.Queues {
			if q.Len() > 0 && r.CanServe(g.ID(), q.ID()) {
				next = q.Peek()
				break
			}
		}
		if next == nil {
			return
		}
		next.Queue.Remove(next, sim.DequeueServed)
		r.serve(next.Call, g)
	}
}
