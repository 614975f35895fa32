// Package trace provides decision-trace recording for call-handling analysis.
// This package has no dependencies on sim/ or its sub-packages — it stores pure data types.
package trace

// RoutingRecord captures a routing case selection for one call in one stage.
type RoutingRecord struct {
	CallID  string
	Clock   float64
	Type    int
	Stage   int
	Case    int  // selected case index, -1 if none matched
	Default bool // the selected case has no condition
}

// TransferRecord captures one step of the transfer protocol.
type TransferRecord struct {
	CallID  string
	Clock   float64
	Group   int
	Outcome string
}

// VirtualQueueRecord captures a virtual queue decision.
type VirtualQueueRecord struct {
	CallID        string
	Clock         float64
	Type          int
	Outcome       string
	PredictedWait float64
	Threshold     float64
}

// DialRecord captures an outbound type selection.
type DialRecord struct {
	Clock    float64
	Type     int // -1 when no type was eligible
	Capacity int // selector size before the selection, -1 if unbounded
}
