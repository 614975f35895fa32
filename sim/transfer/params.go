package transfer

import (
	"fmt"
	"math"

	"github.com/contactsim/contactsim/sim"
)

// GroupParams are the transfer parameters of one primary agent group, each
// with one value per main period (or a single value for all periods).
type GroupParams struct {
	// ProbTransfer is the probability that service ends with a transfer.
	ProbTransfer sim.PerPeriod
	// ServiceTimesMultTransfer scales the primary service time when the call
	// is transferred.
	ServiceTimesMultTransfer sim.PerPeriod
	// ProbTransferWait is the probability that the primary agent stays in
	// conference with the secondary agent.
	ProbTransferWait sim.PerPeriod
}

// TypeParams configure transfers for one call type.
type TypeParams struct {
	Enabled bool
	// TargetType is the type of the call created for the secondary agent.
	TargetType int
	// Groups holds one entry per agent group; a single entry applies to
	// every group.
	Groups []GroupParams
}

func (tp *TypeParams) group(g int) *GroupParams {
	if len(tp.Groups) == 1 {
		return &tp.Groups[0]
	}
	return &tp.Groups[g]
}

func (tp *TypeParams) validate(k, numTypes, numGroups, numPeriods int) error {
	if !tp.Enabled {
		return nil
	}
	if tp.TargetType < 0 || tp.TargetType >= numTypes {
		return fmt.Errorf("transfer: type %d: target type %d out of range [0,%d)", k, tp.TargetType, numTypes)
	}
	if len(tp.Groups) != 1 && len(tp.Groups) != numGroups {
		return fmt.Errorf("transfer: type %d: expected 1 or %d group parameter sets, got %d", k, numGroups, len(tp.Groups))
	}
	for g := range tp.Groups {
		gp := &tp.Groups[g]
		where := fmt.Sprintf("transfer: type %d group %d", k, g)
		if err := gp.ProbTransfer.ValidateProbabilities(where+": probTransfer", numPeriods); err != nil {
			return err
		}
		if err := gp.ProbTransferWait.ValidateProbabilities(where+": probTransferWait", numPeriods); err != nil {
			return err
		}
		if err := gp.ServiceTimesMultTransfer.ValidateNonNegative(where+": serviceTimesMultTransfer", numPeriods); err != nil {
			return err
		}
		for p, m := range gp.ServiceTimesMultTransfer {
			if math.IsInf(m, 1) {
				return fmt.Errorf("%s: serviceTimesMultTransfer[%d] must be finite", where, p)
			}
		}
	}
	return nil
}
