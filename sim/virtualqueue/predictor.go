package virtualqueue

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/contactsim/contactsim/sim"
)

// Predictor kinds accepted by NewPredictor.
const (
	PredictorLastWait = "last-wait"
	PredictorMeanWait = "mean-wait"
)

// Predictor is a sim.WaitingTimePredictor that learns from the queues it is
// attached to.
type Predictor interface {
	sim.WaitingTimePredictor
	sim.QueueListener
	Reset()
}

// NewPredictor creates a predictor by name. window is the number of served
// waits the mean-wait predictor averages over.
func NewPredictor(name string, window int) (Predictor, error) {
	switch name {
	case PredictorLastWait, "":
		return NewLastWaitPredictor(), nil
	case PredictorMeanWait:
		if window < 1 {
			return nil, fmt.Errorf("virtualqueue: mean-wait window must be >= 1, got %d", window)
		}
		return NewMeanWaitPredictor(window), nil
	}
	return nil, fmt.Errorf("virtualqueue: unknown predictor %q", name)
}

// Attach registers p on q ahead of the router.
func Attach(p Predictor, q *sim.WaitingQueue) {
	q.AddListener(p, sim.PriorityDisconnect)
}

// LastWaitPredictor predicts the wait of the last call of the queue that
// entered service (last-to-enter-service delay).
type LastWaitPredictor struct {
	last map[int]float64
}

// NewLastWaitPredictor creates a predictor with no history; it predicts 0
// until a call is served.
func NewLastWaitPredictor() *LastWaitPredictor {
	return &LastWaitPredictor{last: make(map[int]float64)}
}

func (p *LastWaitPredictor) Predict(_ *sim.Call, q *sim.WaitingQueue) float64 {
	return p.last[q.ID()]
}

func (p *LastWaitPredictor) OnEnqueued(*sim.QueuedCall) {}

func (p *LastWaitPredictor) OnDequeued(e *sim.QueuedCall, t sim.DequeueType) {
	if t == sim.DequeueServed {
		p.last[e.Queue.ID()] = e.Waited(e.DequeueTime)
	}
}

func (p *LastWaitPredictor) Reset() { clear(p.last) }

// MeanWaitPredictor predicts the mean wait of the last Window calls of the
// queue that entered service.
type MeanWaitPredictor struct {
	Window int
	waits  map[int]*ring
}

type ring struct {
	buf  []float64
	next int
}

func (r *ring) add(v float64, window int) {
	if len(r.buf) < window {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.next] = v
	r.next = (r.next + 1) % window
}

// NewMeanWaitPredictor creates a predictor averaging over window waits.
func NewMeanWaitPredictor(window int) *MeanWaitPredictor {
	return &MeanWaitPredictor{Window: window, waits: make(map[int]*ring)}
}

func (p *MeanWaitPredictor) Predict(_ *sim.Call, q *sim.WaitingQueue) float64 {
	r := p.waits[q.ID()]
	if r == nil || len(r.buf) == 0 {
		return 0
	}
	return stat.Mean(r.buf, nil)
}

func (p *MeanWaitPredictor) OnEnqueued(*sim.QueuedCall) {}

func (p *MeanWaitPredictor) OnDequeued(e *sim.QueuedCall, t sim.DequeueType) {
	if t != sim.DequeueServed {
		return
	}
	r := p.waits[e.Queue.ID()]
	if r == nil {
		r = &ring{}
		p.waits[e.Queue.ID()] = r
	}
	r.add(e.Waited(e.DequeueTime), p.Window)
}

func (p *MeanWaitPredictor) Reset() { clear(p.waits) }
