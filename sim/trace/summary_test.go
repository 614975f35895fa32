package trace

import "testing"

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	// GIVEN no trace
	// WHEN summarized
	summary := Summarize(nil)

	// THEN all counts are zero and maps are usable
	if summary.RoutingDecisions != 0 || summary.NoRoute != 0 || summary.Dials != 0 {
		t.Errorf("expected zero counts, got %+v", summary)
	}
	if summary.CaseDistribution == nil || summary.TransferOutcomes == nil {
		t.Error("expected non-nil maps")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed records
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})
	st.RecordRouting(RoutingRecord{CallID: "c1", Case: 0})
	st.RecordRouting(RoutingRecord{CallID: "c2", Case: 1, Default: true})
	st.RecordRouting(RoutingRecord{CallID: "c3", Case: 1, Default: true})
	st.RecordRouting(RoutingRecord{CallID: "c4", Case: -1})
	st.RecordTransfer(TransferRecord{CallID: "c1", Outcome: "started"})
	st.RecordTransfer(TransferRecord{CallID: "c1", Outcome: "conference"})
	st.RecordVirtualQueue(VirtualQueueRecord{CallID: "c2", Outcome: "accepted"})
	st.RecordDial(DialRecord{Type: 3})
	st.RecordDial(DialRecord{Type: 3})
	st.RecordDial(DialRecord{Type: -1})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match
	if summary.RoutingDecisions != 4 {
		t.Errorf("expected 4 routing decisions, got %d", summary.RoutingDecisions)
	}
	if summary.NoRoute != 1 {
		t.Errorf("expected 1 no-route, got %d", summary.NoRoute)
	}
	if summary.DefaultCases != 2 {
		t.Errorf("expected 2 default cases, got %d", summary.DefaultCases)
	}
	if summary.CaseDistribution[1] != 2 || summary.CaseDistribution[0] != 1 {
		t.Errorf("unexpected case distribution %v", summary.CaseDistribution)
	}
	if summary.TransferOutcomes["conference"] != 1 {
		t.Errorf("expected 1 conference, got %d", summary.TransferOutcomes["conference"])
	}
	if summary.VirtualQueueOutcome["accepted"] != 1 {
		t.Errorf("expected 1 accepted, got %d", summary.VirtualQueueOutcome["accepted"])
	}
	if summary.Dials != 2 || summary.DialsBlocked != 1 || summary.DialTypes[3] != 2 {
		t.Errorf("unexpected dial counts %+v", summary)
	}
}
