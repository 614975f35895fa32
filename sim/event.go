package sim

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// EventKind names a class of simulation events. Events sharing a timestamp
// are executed in ascending EventKindPriority order, then in scheduling order.
type EventKind string

const (
	EventPeriodChange     EventKind = "period-change"
	EventStaffing         EventKind = "staffing"
	EventServiceEnd       EventKind = "service-end"
	EventTransfer         EventKind = "transfer"
	EventConferenceEnd    EventKind = "conference-end"
	EventAbandonment      EventKind = "abandonment"
	EventVirtualQueueExit EventKind = "virtual-queue-exit"
	EventRoutingStage     EventKind = "routing-stage"
	EventArrival          EventKind = "arrival"
	EventDial             EventKind = "dial"
)

// EventKindPriority orders same-timestamp events. Capacity changes and
// service completions run before new work arrives so freed agents are
// visible to the arrivals of the same instant.
var EventKindPriority = map[EventKind]int{
	EventPeriodChange:     0,
	EventStaffing:         1,
	EventServiceEnd:       2,
	EventTransfer:         3,
	EventConferenceEnd:    3,
	EventAbandonment:      4,
	EventVirtualQueueExit: 5,
	EventRoutingStage:     5,
	EventArrival:          6,
	EventDial:             7,
}

// Scheduler is the time-ordered event queue the decision components run on.
// Components never block: waiting is expressed by scheduling an event.
type Scheduler interface {
	Now() float64
	// ScheduleAfter runs fn after delay simulated time units. delay must be
	// finite and non-negative.
	ScheduleAfter(delay float64, kind EventKind, fn func()) *EventHandle
	// Cancel removes a pending event. Returns false if the event already ran
	// or was cancelled.
	Cancel(h *EventHandle) bool
	// Reschedule moves a pending event to now+delay. Use Cancel for an
	// infinite delay.
	Reschedule(h *EventHandle, delay float64)
}

// EventHandle identifies a scheduled event. The scheduler owns the event;
// holders only keep the handle.
type EventHandle struct {
	time  float64
	kind  EventKind
	seq   uint64
	index int // heap index, -1 once popped or cancelled
	fn    func()
}

// Time returns the simulated time the event is (or was) scheduled for.
func (h *EventHandle) Time() float64 { return h.time }

// Kind returns the event kind.
func (h *EventHandle) Kind() EventKind { return h.kind }

// Pending reports whether the event is still waiting to run.
func (h *EventHandle) Pending() bool { return h != nil && h.index >= 0 }

// eventHeap orders events by timestamp, then kind priority, then sequence.
type eventHeap []*EventHandle

func (eh eventHeap) Len() int { return len(eh) }

func (eh eventHeap) Less(i, j int) bool {
	ei, ej := eh[i], eh[j]
	if ei.time != ej.time {
		return ei.time < ej.time
	}
	pi, pj := EventKindPriority[ei.kind], EventKindPriority[ej.kind]
	if pi != pj {
		return pi < pj
	}
	return ei.seq < ej.seq
}

func (eh eventHeap) Swap(i, j int) {
	eh[i], eh[j] = eh[j], eh[i]
	eh[i].index = i
	eh[j].index = j
}

func (eh *eventHeap) Push(x any) {
	h := x.(*EventHandle)
	h.index = len(*eh)
	*eh = append(*eh, h)
}

func (eh *eventHeap) Pop() any {
	old := *eh
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*eh = old[:n-1]
	return item
}

// Simulator is the single-threaded event loop implementing Scheduler.
type Simulator struct {
	clock    float64
	events   eventHeap
	nextSeq  uint64
	executed int64
}

// NewSimulator creates an empty simulator at time 0.
func NewSimulator() *Simulator {
	s := &Simulator{events: make(eventHeap, 0)}
	heap.Init(&s.events)
	return s
}

// Now returns the current simulated time.
func (s *Simulator) Now() float64 { return s.clock }

// Executed returns the number of events run since the last Reset.
func (s *Simulator) Executed() int64 { return s.executed }

// Pending returns the number of events waiting to run.
func (s *Simulator) Pending() int { return s.events.Len() }

// ScheduleAfter implements Scheduler.
func (s *Simulator) ScheduleAfter(delay float64, kind EventKind, fn func()) *EventHandle {
	if fn == nil {
		panic("Simulator.ScheduleAfter: fn must not be nil")
	}
	checkDelay("Simulator.ScheduleAfter", delay)
	s.nextSeq++
	h := &EventHandle{time: s.clock + delay, kind: kind, seq: s.nextSeq, fn: fn}
	heap.Push(&s.events, h)
	return h
}

// Cancel implements Scheduler.
func (s *Simulator) Cancel(h *EventHandle) bool {
	if !h.Pending() {
		return false
	}
	heap.Remove(&s.events, h.index)
	h.index = -1
	return true
}

// Reschedule implements Scheduler. The event keeps its kind but receives a
// fresh sequence number, so it runs after events already scheduled for the
// same instant.
func (s *Simulator) Reschedule(h *EventHandle, delay float64) {
	if !h.Pending() {
		panic(fmt.Sprintf("Simulator.Reschedule: event %q is not pending", h.kind))
	}
	checkDelay("Simulator.Reschedule", delay)
	s.nextSeq++
	h.time = s.clock + delay
	h.seq = s.nextSeq
	heap.Fix(&s.events, h.index)
}

// Run executes events in order until the queue drains or the next event lies
// beyond horizon. The clock is left at min(last event, horizon).
func (s *Simulator) Run(horizon float64) {
	for s.events.Len() > 0 {
		if s.events[0].time > horizon {
			s.clock = horizon
			break
		}
		ev := heap.Pop(&s.events).(*EventHandle)
		s.clock = ev.time
		s.executed++
		logrus.Tracef("[t=%.3f] executing %s", s.clock, ev.kind)
		ev.fn()
	}
	logrus.Debugf("[t=%.3f] event loop stopped after %d events (%d pending)", s.clock, s.executed, s.events.Len())
}

// Reset starts a new epoch: clock back to zero, every pending event dropped.
func (s *Simulator) Reset() {
	for _, h := range s.events {
		h.index = -1
	}
	s.events = s.events[:0]
	s.clock = 0
	s.nextSeq = 0
	s.executed = 0
}

func checkDelay(fn string, delay float64) {
	if math.IsNaN(delay) || math.IsInf(delay, 0) || delay < 0 {
		panic(fmt.Sprintf("%s: delay must be finite and non-negative, got %v", fn, delay))
	}
}
