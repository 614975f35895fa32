package sim

import (
	"math"
	"slices"
	"strings"
	"testing"
)

func TestNewCall_Defaults(t *testing.T) {
	c := NewCall(2, 3.5)
	if c.Type != 2 || c.ArrivalTime != 3.5 || c.TypeBeforeVQ != -1 || c.Group != -1 {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if !strings.Contains(c.String(), "Type: 2") {
		t.Errorf("String: %q", c.String())
	}
}

func TestCall_RoutingMemo(t *testing.T) {
	// GIVEN a call with a memoized case in stage 0
	c := NewCall(0, 0)
	c.CacheCase(0, 2)

	if idx, ok := c.CachedCase(0); !ok || idx != 2 {
		t.Fatalf("CachedCase(0) = %d, %v", idx, ok)
	}
	if _, ok := c.CachedCase(1); ok {
		t.Error("stage 1 reported a memo")
	}

	// WHEN the call keeps its type
	c.SetType(0)

	// THEN the memo survives
	if _, ok := c.CachedCase(0); !ok {
		t.Error("SetType to the same type dropped the memo")
	}

	// WHEN relabeled
	c.SetType(1)

	// THEN the memo is gone
	if _, ok := c.CachedCase(0); ok {
		t.Error("memo survived a type change")
	}
	c.CacheCase(0, -1)
	c.ResetRouting()
	if _, ok := c.CachedCase(0); ok {
		t.Error("ResetRouting kept the memo")
	}
}

func TestCall_CacheCaseTwicePanics(t *testing.T) {
	c := NewCall(0, 0)
	c.CacheCase(1, 0)
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic")
		}
	}()
	c.CacheCase(1, 1)
}

func TestCall_PerGroupTimes(t *testing.T) {
	c := NewCall(0, 0)
	c.ServiceTimes = []float64{4}
	c.ConferenceTimes = []float64{1, 2}

	if c.ServiceTime(5) != 4 {
		t.Error("single service time must apply to every group")
	}
	if c.ConferenceTime(1) != 2 {
		t.Errorf("ConferenceTime(1) = %v", c.ConferenceTime(1))
	}
	if c.TransferTime(0) != 0 || c.PreServiceTimeNoConf(0) != 0 {
		t.Error("unset times must read as 0")
	}
}

func TestCall_MultiplyServiceTimes(t *testing.T) {
	c := NewCall(0, 0)
	c.ServiceTimes = []float64{0, 2}

	c.MultiplyServiceTimes(math.Inf(1))

	if c.ServiceTimes[0] != 0 || !math.IsInf(c.ServiceTimes[1], 1) {
		t.Errorf("got %v, want [0 +Inf]", c.ServiceTimes)
	}
}

func TestCall_AddServiceTimes_BroadcastsSingleTime(t *testing.T) {
	// GIVEN one service time for all groups
	c := NewCall(0, 0)
	c.ServiceTimes = []float64{5}

	// WHEN per-group extras are added
	c.AddServiceTimes([]float64{1, 2, 3})

	// THEN the call gets one time per group
	if want := []float64{6, 7, 8}; !slices.Equal(c.ServiceTimes, want) {
		t.Errorf("got %v, want %v", c.ServiceTimes, want)
	}

	// AND a single extra applies to every group
	c.AddServiceTimes([]float64{1})
	if want := []float64{7, 8, 9}; !slices.Equal(c.ServiceTimes, want) {
		t.Errorf("got %v, want %v", c.ServiceTimes, want)
	}
}
