package sim

import "sort"

// Listener priorities. Lower runs first. Disconnect-style observers (the
// transfer coordinator, waiting-time predictors) must see an event before
// the router reacts to it.
const (
	PriorityDisconnect = 0
	PriorityObserver   = 50
	PriorityRouter     = 100
)

type registered[T any] struct {
	priority int
	seq      int
	listener T
}

// ListenerSet keeps listeners ordered by explicit priority. Listeners with
// equal priority run in registration order.
type ListenerSet[T any] struct {
	items []registered[T]
	seq   int
}

// Add registers l with the given priority.
func (s *ListenerSet[T]) Add(l T, priority int) {
	s.seq++
	s.items = append(s.items, registered[T]{priority: priority, seq: s.seq, listener: l})
	sort.SliceStable(s.items, func(i, j int) bool {
		if s.items[i].priority != s.items[j].priority {
			return s.items[i].priority < s.items[j].priority
		}
		return s.items[i].seq < s.items[j].seq
	})
}

// Len returns the number of registered listeners.
func (s *ListenerSet[T]) Len() int { return len(s.items) }

// Each calls fn for every listener in priority order.
func (s *ListenerSet[T]) Each(fn func(T)) {
	for _, it := range s.items {
		fn(it.listener)
	}
}
