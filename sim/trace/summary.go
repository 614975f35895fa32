package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	RoutingDecisions    int            `json:"routing_decisions"`
	NoRoute             int            `json:"no_route"`
	DefaultCases        int            `json:"default_cases"`
	CaseDistribution    map[int]int    `json:"case_distribution"`     // case index → selections (excluding no-route)
	TransferOutcomes    map[string]int `json:"transfer_outcomes"`     // outcome → count
	VirtualQueueOutcome map[string]int `json:"virtual_queue_outcome"` // outcome → count
	Dials               int            `json:"dials"`
	DialsBlocked        int            `json:"dials_blocked"`
	DialTypes           map[int]int    `json:"dial_types"` // type → selections
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		CaseDistribution:    make(map[int]int),
		TransferOutcomes:    make(map[string]int),
		VirtualQueueOutcome: make(map[string]int),
		DialTypes:           make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.RoutingDecisions = len(st.Routings)
	for _, r := range st.Routings {
		if r.Case < 0 {
			summary.NoRoute++
			continue
		}
		if r.Default {
			summary.DefaultCases++
		}
		summary.CaseDistribution[r.Case]++
	}
	for _, t := range st.Transfers {
		summary.TransferOutcomes[t.Outcome]++
	}
	for _, v := range st.VirtualQueues {
		summary.VirtualQueueOutcome[v.Outcome]++
	}
	for _, d := range st.Dials {
		if d.Type < 0 {
			summary.DialsBlocked++
			continue
		}
		summary.Dials++
		summary.DialTypes[d.Type]++
	}
	return summary
}
