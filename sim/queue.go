// Implements the WaitingQueue, which holds calls waiting for an agent.
// Calls are enqueued when no agent can take them on arrival.

package sim

import (
	"fmt"
	"math"
	"strings"
)

// DequeueType tells listeners why a call left a queue.
type DequeueType string

const (
	DequeueServed      DequeueType = "served"
	DequeueAbandoned   DequeueType = "abandoned"
	DequeueTransferred DequeueType = "transferred"
)

// QueuedCall is the dequeue handle of a call sitting in a WaitingQueue.
type QueuedCall struct {
	Call        *Call
	Queue       *WaitingQueue
	EnqueueTime float64
	DequeueTime float64

	inQueue     bool
	dequeueType DequeueType
	abandon     *EventHandle
}

// InQueue reports whether the call is still waiting.
func (e *QueuedCall) InQueue() bool { return e.inQueue }

// DequeueType returns why the call left, empty while it is waiting.
func (e *QueuedCall) DequeueType() DequeueType { return e.dequeueType }

// Abandonment returns the pending abandonment event, nil if none.
func (e *QueuedCall) Abandonment() *EventHandle {
	if !e.abandon.Pending() {
		return nil
	}
	return e.abandon
}

// Waited returns the time spent in queue up to now (or until dequeue).
func (e *QueuedCall) Waited(now float64) float64 {
	if !e.inQueue {
		return e.DequeueTime - e.EnqueueTime
	}
	return now - e.EnqueueTime
}

// QueueListener observes queue membership changes.
type QueueListener interface {
	OnEnqueued(e *QueuedCall)
	OnDequeued(e *QueuedCall, t DequeueType)
}

// QueueListenerFuncs adapts plain functions to QueueListener. Nil fields are
// ignored.
type QueueListenerFuncs struct {
	Enqueued func(e *QueuedCall)
	Dequeued func(e *QueuedCall, t DequeueType)
}

func (f QueueListenerFuncs) OnEnqueued(e *QueuedCall) {
	if f.Enqueued != nil {
		f.Enqueued(e)
	}
}

func (f QueueListenerFuncs) OnDequeued(e *QueuedCall, t DequeueType) {
	if f.Dequeued != nil {
		f.Dequeued(e, t)
	}
}

// WaitingQueue is a FIFO of calls waiting to be served. Unless created as a
// virtual queue, it schedules each call's abandonment from its patience time.
type WaitingQueue struct {
	id        int
	name      string
	scheduler Scheduler
	virtual   bool
	queue     []*QueuedCall
	listeners ListenerSet[QueueListener]
}

// NewWaitingQueue creates a real waiting queue.
func NewWaitingQueue(id int, name string, s Scheduler) *WaitingQueue {
	return &WaitingQueue{id: id, name: name, scheduler: s}
}

// NewVirtualQueue creates a queue whose members never abandon; they leave
// only when removed.
func NewVirtualQueue(id int, name string, s Scheduler) *WaitingQueue {
	return &WaitingQueue{id: id, name: name, scheduler: s, virtual: true}
}

func (wq *WaitingQueue) ID() int       { return wq.id }
func (wq *WaitingQueue) Name() string  { return wq.name }
func (wq *WaitingQueue) Virtual() bool { return wq.virtual }

// AddListener registers l at the given priority (see PriorityDisconnect).
func (wq *WaitingQueue) AddListener(l QueueListener, priority int) {
	wq.listeners.Add(l, priority)
}

// Enqueue adds a call to the back of the queue and returns its handle.
// Order: the abandonment event is scheduled, enqueue listeners run (and may
// reschedule, cancel or remove), then a call with zero patience that is still
// queued abandons immediately.
func (wq *WaitingQueue) Enqueue(c *Call) *QueuedCall {
	if c == nil {
		panic("WaitingQueue.Enqueue: call must not be nil")
	}
	e := &QueuedCall{Call: c, Queue: wq, EnqueueTime: wq.scheduler.Now(), inQueue: true}
	wq.queue = append(wq.queue, e)
	if !wq.virtual && c.PatienceTime > 0 && !math.IsInf(c.PatienceTime, 1) {
		e.abandon = wq.scheduler.ScheduleAfter(c.PatienceTime, EventAbandonment, func() {
			wq.Remove(e, DequeueAbandoned)
		})
	}
	wq.listeners.Each(func(l QueueListener) { l.OnEnqueued(e) })
	if !wq.virtual && e.inQueue && c.PatienceTime == 0 {
		wq.Remove(e, DequeueAbandoned)
	}
	return e
}

// Remove takes e out of the queue. Returns false if it already left.
func (wq *WaitingQueue) Remove(e *QueuedCall, t DequeueType) bool {
	if e.Queue != wq {
		panic(fmt.Sprintf("WaitingQueue.Remove: entry belongs to queue %q, not %q", e.Queue.name, wq.name))
	}
	if !e.inQueue {
		return false
	}
	for i, it := range wq.queue {
		if it == e {
			wq.queue = append(wq.queue[:i], wq.queue[i+1:]...)
			break
		}
	}
	wq.CancelAbandonment(e)
	e.inQueue = false
	e.dequeueType = t
	e.DequeueTime = wq.scheduler.Now()
	wq.listeners.Each(func(l QueueListener) { l.OnDequeued(e, t) })
	return true
}

// CancelAbandonment drops the pending abandonment of e; the call then waits
// until served or removed.
func (wq *WaitingQueue) CancelAbandonment(e *QueuedCall) {
	if e.abandon.Pending() {
		wq.scheduler.Cancel(e.abandon)
	}
	e.abandon = nil
}

// Len returns the number of waiting calls.
func (wq *WaitingQueue) Len() int {
	return len(wq.queue)
}

// Peek returns the call at the front of the queue, nil if empty.
func (wq *WaitingQueue) Peek() *QueuedCall {
	if len(wq.queue) == 0 {
		return nil
	}
	return wq.queue[0]
}

// Items returns the queue contents in FIFO order. The slice is the queue's
// internal storage: callers may iterate over it but MUST NOT modify it.
func (wq *WaitingQueue) Items() []*QueuedCall {
	return wq.queue
}

// Clear drops every entry without notifying listeners. Used between
// replications, after the scheduler epoch was reset.
func (wq *WaitingQueue) Clear() {
	for _, e := range wq.queue {
		e.inQueue = false
		e.abandon = nil
	}
	wq.queue = wq.queue[:0]
}

func (wq *WaitingQueue) String() string {
	var sb strings.Builder
	sb.WriteString(wq.name)
	sb.WriteString("[")
	for i, e := range wq.queue {
		sb.WriteString(e.Call.ID.String())
		if i < len(wq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
