package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactsim/contactsim/sim"
)

type fixedState struct {
	st    *sim.RouterState
	calls int
}

func (f *fixedState) RouterState() *sim.RouterState {
	f.calls++
	return f.st
}

func twoGroupState() *fixedState {
	return &fixedState{st: &sim.RouterState{
		Groups: []sim.GroupSnapshot{
			{Capacity: 4, Busy: 4, Free: 0},
			{Capacity: 2, Busy: 1, Free: 1},
		},
		QueueSizes: []int{3, 0},
	}}
}

func TestCondition_Holds_BuiltinKinds(t *testing.T) {
	call := sim.NewCall(0, 0)
	call.Attributes = map[string]any{"vip": "true", "score": "7.5", "segment": "gold"}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"always", Condition{Kind: ConditionAlways}, true},
		{"queue size above", Condition{Kind: ConditionQueueSize, Index: 0, Op: OpGreaterEqual, Value: 3}, true},
		{"queue size empty", Condition{Kind: ConditionQueueSize, Index: 1, Op: OpGreater, Value: 0}, false},
		{"no free agent", Condition{Kind: ConditionFreeAgents, Index: 0, Op: OpGreater, Value: 0}, false},
		{"free agent", Condition{Kind: ConditionFreeAgents, Index: 1, Op: OpEqual, Value: 1}, true},
		{"busy fraction", Condition{Kind: ConditionBusyFraction, Index: 1, Op: OpLess, Value: 0.75}, true},
		{"waiting calls", Condition{Kind: ConditionWaitingCalls, Op: OpEqual, Value: 3}, true},
		{"numeric attribute from string", Condition{Kind: ConditionAttribute, Attribute: "score", Op: OpGreater, Value: 7}, true},
		{"text attribute", Condition{Kind: ConditionAttribute, Attribute: "segment", Op: OpEqual, Text: "gold"}, true},
		{"text attribute differs", Condition{Kind: ConditionAttribute, Attribute: "segment", Op: OpNotEqual, Text: "gold"}, false},
		{"missing attribute", Condition{Kind: ConditionAttribute, Attribute: "none", Op: OpEqual, Value: 0}, false},
		{"uncoercible attribute", Condition{Kind: ConditionAttribute, Attribute: "segment", Op: OpGreater, Value: 0}, false},
		{"all", Condition{Kind: ConditionAll, Children: []Condition{
			{Kind: ConditionAlways},
			{Kind: ConditionFreeAgents, Index: 1, Op: OpGreater, Value: 0},
		}}, true},
		{"any", Condition{Kind: ConditionAny, Children: []Condition{
			{Kind: ConditionFreeAgents, Index: 0, Op: OpGreater, Value: 0},
			{Kind: ConditionQueueSize, Index: 0, Op: OpGreater, Value: 0},
		}}, true},
		{"not", Condition{Kind: ConditionNot, Children: []Condition{{Kind: ConditionAlways}}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.cond.Validate(2, 2))
			assert.Equal(t, tc.want, tc.cond.Holds(call, lazyState(twoGroupState())))
		})
	}
}

func TestCondition_StateBuiltAtMostOnce(t *testing.T) {
	// GIVEN a composite condition reading the state three times
	p := twoGroupState()
	cond := Condition{Kind: ConditionAll, Children: []Condition{
		{Kind: ConditionQueueSize, Index: 0, Op: OpGreater, Value: 0},
		{Kind: ConditionFreeAgents, Index: 1, Op: OpGreater, Value: 0},
		{Kind: ConditionWaitingCalls, Op: OpGreater, Value: 0},
	}}

	// WHEN it is evaluated
	assert.True(t, cond.Holds(sim.NewCall(0, 0), lazyState(p)))

	// THEN the provider was asked once
	assert.Equal(t, 1, p.calls)
}

func TestCondition_AttributeOnly_NeverBuildsState(t *testing.T) {
	p := twoGroupState()
	call := sim.NewCall(0, 0)
	call.Attributes = map[string]any{"lang": 2}
	cond := Condition{Kind: ConditionAttribute, Attribute: "lang", Op: OpEqual, Value: 2}
	assert.True(t, cond.Holds(call, lazyState(p)))
	assert.Equal(t, 0, p.calls)
}

type vipPredicate struct{}

func (vipPredicate) Holds(c *sim.Call, _ *sim.RouterState) bool { return c.Attributes["vip"] == true }

func TestCondition_CustomPredicate(t *testing.T) {
	call := sim.NewCall(0, 0)
	call.Attributes = map[string]any{"vip": true}
	cond := Condition{Kind: ConditionCustom, Predicate: vipPredicate{}}
	require.NoError(t, cond.Validate(1, 1))
	assert.True(t, cond.Holds(call, lazyState(nil)))
}

func TestCondition_Validate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cond    Condition
		wantErr string
	}{
		{"queue out of range", Condition{Kind: ConditionQueueSize, Index: 2, Op: OpLess}, "queue index 2"},
		{"group out of range", Condition{Kind: ConditionFreeAgents, Index: -1, Op: OpLess}, "group index -1"},
		{"bad operator", Condition{Kind: ConditionWaitingCalls, Op: "=~"}, "unknown operator"},
		{"empty attribute", Condition{Kind: ConditionAttribute, Op: OpEqual}, "attribute name is empty"},
		{"text with ordering op", Condition{Kind: ConditionAttribute, Attribute: "a", Text: "x", Op: OpLess}, "text comparison"},
		{"all without children", Condition{Kind: ConditionAll}, "no child conditions"},
		{"not with two children", Condition{Kind: ConditionNot, Children: []Condition{{Kind: ConditionAlways}, {Kind: ConditionAlways}}}, "exactly 1 child"},
		{"nested error", Condition{Kind: ConditionAny, Children: []Condition{{Kind: "bogus"}}}, "any[0]"},
		{"custom without predicate", Condition{Kind: ConditionCustom}, "predicate is nil"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cond.Validate(2, 2)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
