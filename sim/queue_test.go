package sim

import (
	"math"
	"testing"
)

type recordingQueueListener struct {
	enqueued []*QueuedCall
	dequeued []DequeueType
	onEnq    func(e *QueuedCall)
}

func (l *recordingQueueListener) OnEnqueued(e *QueuedCall) {
	l.enqueued = append(l.enqueued, e)
	if l.onEnq != nil {
		l.onEnq(e)
	}
}

func (l *recordingQueueListener) OnDequeued(_ *QueuedCall, t DequeueType) {
	l.dequeued = append(l.dequeued, t)
}

func patientCall(k int, patience float64) *Call {
	c := NewCall(k, 0)
	c.PatienceTime = patience
	return c
}

func TestWaitingQueue_FIFO(t *testing.T) {
	// GIVEN a queue with calls [A, B]
	s := NewSimulator()
	wq := NewWaitingQueue(0, "sales", s)
	a := wq.Enqueue(patientCall(0, math.Inf(1)))
	b := wq.Enqueue(patientCall(0, math.Inf(1)))

	// WHEN Peek() is called
	got := wq.Peek()

	// THEN it returns the front element without removing it
	if got != a {
		t.Errorf("Peek: got %v, want the first call", got.Call.ID)
	}
	if wq.Len() != 2 {
		t.Errorf("Peek modified queue length: got %d, want 2", wq.Len())
	}
	items := wq.Items()
	if items[0] != a || items[1] != b {
		t.Error("Items not in FIFO order")
	}
}

func TestWaitingQueue_Peek_Empty_ReturnsNil(t *testing.T) {
	wq := NewWaitingQueue(0, "", NewSimulator())
	if wq.Peek() != nil {
		t.Error("Peek on empty queue should return nil")
	}
}

func TestWaitingQueue_AbandonsAfterPatience(t *testing.T) {
	// GIVEN a call with patience 4 enqueued at t=1
	s := NewSimulator()
	wq := NewWaitingQueue(0, "", s)
	l := &recordingQueueListener{}
	wq.AddListener(l, PriorityRouter)
	var e *QueuedCall
	s.ScheduleAfter(1, EventArrival, func() { e = wq.Enqueue(patientCall(0, 4)) })

	// WHEN the simulation runs
	s.Run(math.Inf(1))

	// THEN the call abandons at t=5 after waiting 4
	if e.InQueue() || e.DequeueType() != DequeueAbandoned {
		t.Fatalf("call still queued or wrong dequeue type %q", e.DequeueType())
	}
	if e.DequeueTime != 5 || e.Waited(100) != 4 {
		t.Errorf("dequeue time %v, waited %v; want 5 and 4", e.DequeueTime, e.Waited(100))
	}
	if len(l.dequeued) != 1 || l.dequeued[0] != DequeueAbandoned {
		t.Errorf("listener saw %v", l.dequeued)
	}
}

func TestWaitingQueue_InfinitePatienceNeverAbandons(t *testing.T) {
	s := NewSimulator()
	wq := NewWaitingQueue(0, "", s)
	e := wq.Enqueue(patientCall(0, math.Inf(1)))

	if e.Abandonment() != nil || s.Pending() != 0 {
		t.Error("infinite patience scheduled an abandonment")
	}
}

func TestWaitingQueue_ZeroPatienceAbandonsAfterListeners(t *testing.T) {
	// GIVEN a listener recording whether the call was queued when notified
	s := NewSimulator()
	wq := NewWaitingQueue(0, "", s)
	sawQueued := false
	l := &recordingQueueListener{onEnq: func(e *QueuedCall) { sawQueued = e.InQueue() }}
	wq.AddListener(l, PriorityRouter)

	// WHEN a zero-patience call is enqueued
	e := wq.Enqueue(patientCall(0, 0))

	// THEN listeners saw it queued and it abandoned immediately afterwards
	if !sawQueued {
		t.Error("enqueue listener did not see the call in queue")
	}
	if e.InQueue() || e.DequeueType() != DequeueAbandoned || wq.Len() != 0 {
		t.Error("zero-patience call did not abandon")
	}
	if e.Waited(s.Now()) != 0 {
		t.Errorf("waited %v, want 0", e.Waited(s.Now()))
	}
}

func TestWaitingQueue_ListenerCanRemoveZeroPatienceCall(t *testing.T) {
	// GIVEN a listener that takes every call out of the queue
	s := NewSimulator()
	wq := NewWaitingQueue(0, "", s)
	l := &recordingQueueListener{onEnq: func(e *QueuedCall) { wq.Remove(e, DequeueTransferred) }}
	wq.AddListener(l, PriorityObserver)

	// WHEN a zero-patience call is enqueued
	e := wq.Enqueue(patientCall(0, 0))

	// THEN it leaves as transferred, not abandoned
	if e.DequeueType() != DequeueTransferred {
		t.Errorf("dequeue type: got %q, want transferred", e.DequeueType())
	}
	if len(l.dequeued) != 1 {
		t.Errorf("listener saw %d dequeues, want 1", len(l.dequeued))
	}
}

func TestWaitingQueue_RemoveCancelsAbandonment(t *testing.T) {
	s := NewSimulator()
	wq := NewWaitingQueue(0, "", s)
	e := wq.Enqueue(patientCall(0, 10))

	if !wq.Remove(e, DequeueServed) {
		t.Fatal("Remove returned false")
	}
	if wq.Remove(e, DequeueServed) {
		t.Error("second Remove returned true")
	}
	if s.Pending() != 0 {
		t.Error("abandonment still pending after removal")
	}
}

func TestWaitingQueue_CancelAbandonment(t *testing.T) {
	s := NewSimulator()
	wq := NewWaitingQueue(0, "", s)
	e := wq.Enqueue(patientCall(0, 10))

	wq.CancelAbandonment(e)
	s.Run(math.Inf(1))

	if !e.InQueue() {
		t.Error("call abandoned after its abandonment was cancelled")
	}
}

func TestWaitingQueue_RemoveFromOtherQueuePanics(t *testing.T) {
	s := NewSimulator()
	a := NewWaitingQueue(0, "a", s)
	b := NewWaitingQueue(1, "b", s)
	e := a.Enqueue(patientCall(0, math.Inf(1)))

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic")
		}
	}()
	b.Remove(e, DequeueServed)
}

func TestVirtualQueue_NeverAbandons(t *testing.T) {
	s := NewSimulator()
	vq := NewVirtualQueue(3, "virtual", s)
	e := vq.Enqueue(patientCall(3, 0))

	s.Run(math.Inf(1))
	if !vq.Virtual() || !e.InQueue() {
		t.Error("virtual queue member left on its own")
	}
}

func TestWaitingQueue_Clear(t *testing.T) {
	// GIVEN two queued calls and a listener
	s := NewSimulator()
	wq := NewWaitingQueue(0, "", s)
	l := &recordingQueueListener{}
	wq.AddListener(l, PriorityRouter)
	e := wq.Enqueue(patientCall(0, 5))
	wq.Enqueue(patientCall(0, 5))

	// WHEN cleared
	wq.Clear()

	// THEN the queue is empty and nobody was told
	if wq.Len() != 0 || e.InQueue() || len(l.dequeued) != 0 {
		t.Errorf("len=%d inQueue=%v dequeues=%d", wq.Len(), e.InQueue(), len(l.dequeued))
	}
}

func TestWaitingQueue_EnqueueNilPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic")
		}
	}()
	NewWaitingQueue(0, "", NewSimulator()).Enqueue(nil)
}
