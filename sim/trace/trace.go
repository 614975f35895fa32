package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every routing, transfer, virtual queue and dialer decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during a replication.
// All Record methods are safe on a nil receiver, which records nothing.
type SimulationTrace struct {
	Config        TraceConfig
	Routings      []RoutingRecord
	Transfers     []TransferRecord
	VirtualQueues []VirtualQueueRecord
	Dials         []DialRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
// Returns nil for TraceLevelNone.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	if config.Level == "" || config.Level == TraceLevelNone {
		return nil
	}
	return &SimulationTrace{
		Config:        config,
		Routings:      make([]RoutingRecord, 0),
		Transfers:     make([]TransferRecord, 0),
		VirtualQueues: make([]VirtualQueueRecord, 0),
		Dials:         make([]DialRecord, 0),
	}
}

// RecordRouting appends a routing decision record.
func (st *SimulationTrace) RecordRouting(record RoutingRecord) {
	if st == nil {
		return
	}
	st.Routings = append(st.Routings, record)
}

// RecordTransfer appends a transfer record.
func (st *SimulationTrace) RecordTransfer(record TransferRecord) {
	if st == nil {
		return
	}
	st.Transfers = append(st.Transfers, record)
}

// RecordVirtualQueue appends a virtual queue record.
func (st *SimulationTrace) RecordVirtualQueue(record VirtualQueueRecord) {
	if st == nil {
		return
	}
	st.VirtualQueues = append(st.VirtualQueues, record)
}

// RecordDial appends a dialer record.
func (st *SimulationTrace) RecordDial(record DialRecord) {
	if st == nil {
		return
	}
	st.Dials = append(st.Dials, record)
}
