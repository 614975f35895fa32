package virtualqueue

import (
	"fmt"
	"math"

	"github.com/contactsim/contactsim/sim"
)

// DefaultExitDelayDivisor damps the predicted waiting time when scheduling a
// call's exit from the virtual queue.
const DefaultExitDelayDivisor = 10

// Params configure virtual queueing for calls of one type. Every vector has
// one value per main period, or a single value for all periods.
type Params struct {
	// TargetType is the virtual call type calls are relabeled to when they
	// accept a callback; -1 disables virtual queueing for the type.
	TargetType int

	// ExpectedWaitingTimeThresh is the predicted wait from which a callback
	// is offered. +Inf disables the offer in that period.
	ExpectedWaitingTimeThresh sim.PerPeriod
	ProbVirtualQueue          sim.PerPeriod
	// Applied when the offer is declined. A patience multiplier of +Inf
	// cancels the call's abandonment.
	PatienceTimesMultNoVirtualQueue sim.PerPeriod
	ServiceTimesMultNoVirtualQueue  sim.PerPeriod
	// ExpectedWaitingTimeMult scales the predicted wait into the time spent
	// in the virtual queue.
	ExpectedWaitingTimeMult sim.PerPeriod

	ProbVirtualQueueCallBack sim.PerPeriod
	// Applied when a called-back call has to wait in the real queue again.
	PatienceTimesMultCallBack sim.PerPeriod
	ServiceTimesMultCallBack  sim.PerPeriod
}

// Disabled returns parameters that never offer a callback.
func Disabled() Params { return Params{TargetType: -1} }

// Config is the virtual queueing configuration of a model.
type Config struct {
	// ExitDelayDivisor defaults to DefaultExitDelayDivisor when zero.
	ExitDelayDivisor float64
	// Types holds one entry per call type, virtual types included.
	Types []Params
}

func (cfg *Config) validate(numPeriods int) error {
	if d := cfg.ExitDelayDivisor; math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return fmt.Errorf("virtualqueue: exit delay divisor must be positive and finite, got %v", d)
	}
	for k := range cfg.Types {
		if err := cfg.Types[k].validate(k, len(cfg.Types), numPeriods); err != nil {
			return err
		}
	}
	return nil
}

func (p *Params) validate(k, numTypes, numPeriods int) error {
	if p.TargetType < 0 {
		if p.TargetType != -1 {
			return fmt.Errorf("virtualqueue: type %d: target type must be -1 or a call type, got %d", k, p.TargetType)
		}
		return nil
	}
	if p.TargetType >= numTypes || p.TargetType == k {
		return fmt.Errorf("virtualqueue: type %d: invalid target type %d", k, p.TargetType)
	}
	where := fmt.Sprintf("virtualqueue: type %d: ", k)
	for _, chk := range []struct {
		name string
		v    sim.PerPeriod
		prob bool
	}{
		{"expectedWaitingTimeThresh", p.ExpectedWaitingTimeThresh, false},
		{"probVirtualQueue", p.ProbVirtualQueue, true},
		{"patienceTimesMultNoVirtualQueue", p.PatienceTimesMultNoVirtualQueue, false},
		{"serviceTimesMultNoVirtualQueue", p.ServiceTimesMultNoVirtualQueue, false},
		{"expectedWaitingTimeMult", p.ExpectedWaitingTimeMult, false},
		{"probVirtualQueueCallBack", p.ProbVirtualQueueCallBack, true},
		{"patienceTimesMultCallBack", p.PatienceTimesMultCallBack, false},
		{"serviceTimesMultCallBack", p.ServiceTimesMultCallBack, false},
	} {
		var err error
		if chk.prob {
			err = chk.v.ValidateProbabilities(where+chk.name, numPeriods)
		} else {
			err = chk.v.ValidateNonNegative(where+chk.name, numPeriods)
		}
		if err != nil {
			return err
		}
	}
	for i, m := range p.ExpectedWaitingTimeMult {
		if math.IsInf(m, 1) {
			return fmt.Errorf("%sexpectedWaitingTimeMult[%d] must be finite", where, i)
		}
	}
	return nil
}
