package trace

import (
	"testing"
)

func TestNewSimulationTrace_NoneLevel_ReturnsNil(t *testing.T) {
	// GIVEN tracing disabled
	for _, level := range []TraceLevel{"", TraceLevelNone} {
		// WHEN a trace is created
		st := NewSimulationTrace(TraceConfig{Level: level})

		// THEN no trace is allocated and recording is a no-op
		if st != nil {
			t.Fatalf("level %q: expected nil trace", level)
		}
		st.RecordRouting(RoutingRecord{CallID: "c1"})
		st.RecordTransfer(TransferRecord{CallID: "c1"})
		st.RecordVirtualQueue(VirtualQueueRecord{CallID: "c1"})
		st.RecordDial(DialRecord{Type: 0})
	}
}

func TestSimulationTrace_RecordRouting_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a routing record is recorded
	st.RecordRouting(RoutingRecord{CallID: "c1", Clock: 12.5, Type: 2, Stage: 1, Case: 0})

	// THEN the trace contains it unchanged
	if len(st.Routings) != 1 {
		t.Fatalf("expected 1 routing record, got %d", len(st.Routings))
	}
	r := st.Routings[0]
	if r.CallID != "c1" || r.Clock != 12.5 || r.Type != 2 || r.Stage != 1 || r.Case != 0 {
		t.Errorf("unexpected record %+v", r)
	}
}

func TestSimulationTrace_RecordVirtualQueue_KeepsOrder(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	st.RecordVirtualQueue(VirtualQueueRecord{CallID: "a", Outcome: "accepted"})
	st.RecordVirtualQueue(VirtualQueueRecord{CallID: "b", Outcome: "declined"})

	if len(st.VirtualQueues) != 2 {
		t.Fatalf("expected 2 records, got %d", len(st.VirtualQueues))
	}
	if st.VirtualQueues[0].CallID != "a" || st.VirtualQueues[1].CallID != "b" {
		t.Errorf("records out of order: %+v", st.VirtualQueues)
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"", true},
		{"none", true},
		{"decisions", true},
		{"verbose", false},
	}
	for _, tt := range tests {
		if got := IsValidTraceLevel(tt.level); got != tt.want {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
