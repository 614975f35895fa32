package routing

import (
	"fmt"

	"github.com/contactsim/contactsim/sim"
)

// CaseKind selects how a case produces its rank vectors.
type CaseKind string

const (
	// CaseAbsolute overwrites the rank vectors with the case's own vectors.
	CaseAbsolute CaseKind = "absolute"
	// CaseRelative adds the case's vectors, as deltas, to the type's base ranks.
	CaseRelative CaseKind = "relative"
	// CaseCustom delegates to a RankFunction.
	CaseCustom CaseKind = "custom"
)

// RankFunction is the extension point for cases whose ranks are computed at
// runtime. CanReturnFiniteRank and CanReturnFiniteQueueRank must be
// answerable without a call, so the router can prune groups up front.
type RankFunction interface {
	AgentRanks(c *sim.Call, state *sim.RouterState) RankVector
	QueueRanks(c *sim.Call, state *sim.RouterState) RankVector
	CanReturnFiniteRank(group int) bool
	CanReturnFiniteQueueRank(group int) bool
}

// Case is one guarded alternative of a routing stage.
type Case struct {
	// Condition guards the case; nil makes it the default case.
	Condition *Condition
	Kind      CaseKind
	// AgentRanks ranks agent groups for serving the call (absolute ranks or
	// relative deltas depending on Kind).
	AgentRanks RankVector
	// QueueRanks ranks the call's queue for each agent group. Nil means
	// AgentRanks for an absolute case and zero deltas for a relative one.
	QueueRanks RankVector
	Function   RankFunction
}

// IsDefault reports whether the case applies unconditionally.
func (cs *Case) IsDefault() bool {
	return cs.Condition == nil || cs.Condition.Kind == ConditionAlways
}

// Stage is the set of cases in effect once a call has waited WaitingTime.
type Stage struct {
	WaitingTime float64
	Cases       []Case
}

// TypeRouting is the routing configuration of one call type.
type TypeRouting struct {
	BaseAgentRanks RankVector
	// BaseQueueRanks defaults to BaseAgentRanks when nil.
	BaseQueueRanks RankVector
	Stages         []Stage
}

func (tr *TypeRouting) baseQueueRanks() RankVector {
	if tr.BaseQueueRanks != nil {
		return tr.BaseQueueRanks
	}
	return tr.BaseAgentRanks
}

// validate reports configuration errors with the offending type, stage and
// case indexes.
func (tr *TypeRouting) validate(k, numGroups, numQueues int) error {
	if tr.BaseAgentRanks != nil {
		if err := tr.BaseAgentRanks.validate(fmt.Sprintf("type %d: base agent ranks", k), numGroups); err != nil {
			return err
		}
	}
	if tr.BaseQueueRanks != nil {
		if err := tr.BaseQueueRanks.validate(fmt.Sprintf("type %d: base queue ranks", k), numGroups); err != nil {
			return err
		}
	}
	for s := range tr.Stages {
		st := &tr.Stages[s]
		where := fmt.Sprintf("type %d stage %d", k, s)
		switch {
		case s == 0 && st.WaitingTime != 0:
			return fmt.Errorf("%s: first stage must start at waiting time 0, got %v", where, st.WaitingTime)
		case s > 0 && !(st.WaitingTime > tr.Stages[s-1].WaitingTime):
			return fmt.Errorf("%s: waiting time %v must be greater than previous stage's %v",
				where, st.WaitingTime, tr.Stages[s-1].WaitingTime)
		}
		if len(st.Cases) == 0 {
			return fmt.Errorf("%s: no routing cases", where)
		}
		for c := range st.Cases {
			if err := tr.validateCase(&st.Cases[c], fmt.Sprintf("%s case %d", where, c), numGroups, numQueues); err != nil {
				return err
			}
			if st.Cases[c].IsDefault() && c != len(st.Cases)-1 {
				return fmt.Errorf("%s case %d: default case must be the last case", where, c)
			}
		}
	}
	return nil
}

func (tr *TypeRouting) validateCase(cs *Case, where string, numGroups, numQueues int) error {
	if cs.Condition != nil {
		if err := cs.Condition.Validate(numGroups, numQueues); err != nil {
			return fmt.Errorf("%s: condition: %w", where, err)
		}
	}
	switch cs.Kind {
	case CaseAbsolute:
		if cs.AgentRanks == nil {
			return fmt.Errorf("%s: absolute case without agent ranks", where)
		}
	case CaseRelative:
		if tr.BaseAgentRanks == nil {
			return fmt.Errorf("%s: relative case but the call type has no base ranks", where)
		}
	case CaseCustom:
		if cs.Function == nil {
			return fmt.Errorf("%s: custom case without a rank function", where)
		}
		return nil
	default:
		return fmt.Errorf("%s: unknown case kind %q", where, cs.Kind)
	}
	if cs.AgentRanks != nil {
		if err := cs.AgentRanks.validate(where+": agent ranks", numGroups); err != nil {
			return err
		}
	}
	if cs.QueueRanks != nil {
		if err := cs.QueueRanks.validate(where+": queue ranks", numGroups); err != nil {
			return err
		}
	}
	return nil
}

// canReturnFinite reports whether the case may give group i a finite rank,
// for agent selection (queue=false) or queue priority (queue=true).
func (tr *TypeRouting) canReturnFinite(cs *Case, i int, queue bool) bool {
	switch cs.Kind {
	case CaseAbsolute:
		v := cs.AgentRanks
		if queue && cs.QueueRanks != nil {
			v = cs.QueueRanks
		}
		return v.Finite(i)
	case CaseRelative:
		base, delta := tr.BaseAgentRanks, cs.AgentRanks
		if queue {
			base, delta = tr.baseQueueRanks(), cs.QueueRanks
		}
		return base.Finite(i) && (delta == nil || delta.Finite(i))
	case CaseCustom:
		if queue {
			return cs.Function.CanReturnFiniteQueueRank(i)
		}
		return cs.Function.CanReturnFiniteRank(i)
	}
	return false
}
