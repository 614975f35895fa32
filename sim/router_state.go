package sim

// GroupSnapshot is a read-only view of one agent group.
type GroupSnapshot struct {
	Capacity int
	Busy     int
	Free     int
}

// BusyFraction returns Busy/Capacity, 1 for an empty group.
func (s GroupSnapshot) BusyFraction() float64 {
	if s.Capacity == 0 {
		return 1
	}
	return float64(s.Busy) / float64(s.Capacity)
}

// RouterState provides system-wide state to routing conditions.
// Built by the router before evaluating a call's routing cases.
// This is a bridge type in sim/ (not sim/routing/) to avoid import cycles.
type RouterState struct {
	Groups     []GroupSnapshot // One per agent group, indexed by group id
	QueueSizes []int           // One per waiting queue, indexed by call type
	Clock      float64
}

// TotalQueued returns the number of calls waiting in every queue.
func (rs *RouterState) TotalQueued() int {
	n := 0
	for _, q := range rs.QueueSizes {
		n += q
	}
	return n
}

// RouterStateProvider builds a RouterState on demand.
type RouterStateProvider interface {
	RouterState() *RouterState
}
