package routing

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/contactsim/contactsim/sim"
)

// ConditionKind selects the built-in test a Condition performs.
type ConditionKind string

const (
	ConditionAlways       ConditionKind = "always"
	ConditionQueueSize    ConditionKind = "queue-size"    // size of queue Index
	ConditionFreeAgents   ConditionKind = "free-agents"   // free agents in group Index
	ConditionBusyFraction ConditionKind = "busy-fraction" // busy/capacity of group Index
	ConditionWaitingCalls ConditionKind = "waiting-calls" // calls waiting in every queue
	ConditionAttribute    ConditionKind = "attribute"     // call attribute Attribute
	ConditionAll          ConditionKind = "all"
	ConditionAny          ConditionKind = "any"
	ConditionNot          ConditionKind = "not"
	ConditionCustom       ConditionKind = "custom"
)

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpEqual        CompareOp = "=="
	OpNotEqual     CompareOp = "!="
)

var validOps = map[CompareOp]bool{
	OpLess: true, OpLessEqual: true, OpGreater: true,
	OpGreaterEqual: true, OpEqual: true, OpNotEqual: true,
}

// Predicate is the extension point for conditions the built-in kinds cannot
// express.
type Predicate interface {
	Holds(c *sim.Call, state *sim.RouterState) bool
}

// Condition guards a routing case.
type Condition struct {
	Kind      ConditionKind
	Index     int
	Op        CompareOp
	Value     float64
	Attribute string
	// Text, when set, makes an attribute condition compare strings with
	// == or != instead of numbers.
	Text      string
	Children  []Condition
	Predicate Predicate
}

// Validate checks indexes and operators against the model dimensions.
func (cd *Condition) Validate(numGroups, numQueues int) error {
	switch cd.Kind {
	case ConditionAlways:
		return nil
	case ConditionQueueSize:
		if cd.Index < 0 || cd.Index >= numQueues {
			return fmt.Errorf("%s: queue index %d out of range [0,%d)", cd.Kind, cd.Index, numQueues)
		}
	case ConditionFreeAgents, ConditionBusyFraction:
		if cd.Index < 0 || cd.Index >= numGroups {
			return fmt.Errorf("%s: group index %d out of range [0,%d)", cd.Kind, cd.Index, numGroups)
		}
	case ConditionWaitingCalls:
	case ConditionAttribute:
		if cd.Attribute == "" {
			return fmt.Errorf("%s: attribute name is empty", cd.Kind)
		}
		if cd.Text != "" && cd.Op != OpEqual && cd.Op != OpNotEqual {
			return fmt.Errorf("%s %q: text comparison needs == or !=, got %q", cd.Kind, cd.Attribute, cd.Op)
		}
	case ConditionAll, ConditionAny:
		if len(cd.Children) == 0 {
			return fmt.Errorf("%s: no child conditions", cd.Kind)
		}
		for i := range cd.Children {
			if err := cd.Children[i].Validate(numGroups, numQueues); err != nil {
				return fmt.Errorf("%s[%d]: %w", cd.Kind, i, err)
			}
		}
		return nil
	case ConditionNot:
		if len(cd.Children) != 1 {
			return fmt.Errorf("%s: expected exactly 1 child condition, got %d", cd.Kind, len(cd.Children))
		}
		return cd.Children[0].Validate(numGroups, numQueues)
	case ConditionCustom:
		if cd.Predicate == nil {
			return fmt.Errorf("%s: predicate is nil", cd.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind %q", cd.Kind)
	}
	if !validOps[cd.Op] {
		return fmt.Errorf("%s: unknown operator %q", cd.Kind, cd.Op)
	}
	return nil
}

// stateFunc builds the router state at most once per evaluation.
type stateFunc func() *sim.RouterState

func lazyState(p sim.RouterStateProvider) stateFunc {
	var st *sim.RouterState
	return func() *sim.RouterState {
		if st == nil {
			if p == nil {
				st = &sim.RouterState{}
			} else {
				st = p.RouterState()
			}
		}
		return st
	}
}

// Holds evaluates the condition for call c.
func (cd *Condition) Holds(c *sim.Call, state stateFunc) bool {
	switch cd.Kind {
	case ConditionAlways:
		return true
	case ConditionQueueSize:
		return compare(float64(state().QueueSizes[cd.Index]), cd.Op, cd.Value)
	case ConditionFreeAgents:
		return compare(float64(state().Groups[cd.Index].Free), cd.Op, cd.Value)
	case ConditionBusyFraction:
		return compare(state().Groups[cd.Index].BusyFraction(), cd.Op, cd.Value)
	case ConditionWaitingCalls:
		return compare(float64(state().TotalQueued()), cd.Op, cd.Value)
	case ConditionAttribute:
		return cd.holdsAttribute(c)
	case ConditionAll:
		for i := range cd.Children {
			if !cd.Children[i].Holds(c, state) {
				return false
			}
		}
		return true
	case ConditionAny:
		for i := range cd.Children {
			if cd.Children[i].Holds(c, state) {
				return true
			}
		}
		return false
	case ConditionNot:
		return !cd.Children[0].Holds(c, state)
	case ConditionCustom:
		return cd.Predicate.Holds(c, state())
	}
	panic(fmt.Sprintf("Condition.Holds: unhandled kind %q", cd.Kind))
}

// holdsAttribute is false when the attribute is missing or cannot be
// coerced, so a malformed attribute never routes a call by accident.
func (cd *Condition) holdsAttribute(c *sim.Call) bool {
	raw, ok := c.Attributes[cd.Attribute]
	if !ok {
		return false
	}
	if cd.Text != "" {
		s, err := cast.ToStringE(raw)
		if err != nil {
			return false
		}
		if cd.Op == OpEqual {
			return s == cd.Text
		}
		return s != cd.Text
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return false
	}
	return compare(v, cd.Op, cd.Value)
}

func compare(a float64, op CompareOp, b float64) bool {
	switch op {
	case OpLess:
		return a < b
	case OpLessEqual:
		return a <= b
	case OpGreater:
		return a > b
	case OpGreaterEqual:
		return a >= b
	case OpEqual:
		return a == b
	case OpNotEqual:
		return a != b
	}
	panic(fmt.Sprintf("compare: unknown operator %q", op))
}
