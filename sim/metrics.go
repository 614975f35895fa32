// Tracks decision counters exported in prometheus format:
// routing case selections, transfers, virtual queue decisions, dialer
// selections and agent counts.

package sim

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups the counters updated by the decision components.
type Collectors struct {
	RoutingSelections     *prometheus.CounterVec // outcome: case, default, no-route
	Transfers             *prometheus.CounterVec // outcome
	VirtualQueueDecisions *prometheus.CounterVec // outcome
	DialerSelections      *prometheus.CounterVec // type
	Agents                *prometheus.GaugeVec   // group
}

// NewCollectors creates the collectors and registers them on reg when reg is
// non-nil.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		RoutingSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contactsim",
			Name:      "routing_selections_total",
			Help:      "Routing case selections by outcome.",
		}, []string{"outcome"}),
		Transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contactsim",
			Name:      "transfers_total",
			Help:      "Transfer protocol decisions by outcome.",
		}, []string{"outcome"}),
		VirtualQueueDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contactsim",
			Name:      "virtual_queue_decisions_total",
			Help:      "Virtual queue decisions by outcome.",
		}, []string{"outcome"}),
		DialerSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contactsim",
			Name:      "dialer_selections_total",
			Help:      "Outbound call types selected by dialers.",
		}, []string{"type"}),
		Agents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "contactsim",
			Name:      "agents",
			Help:      "Current number of agents per group.",
		}, []string{"group"}),
	}
	if reg != nil {
		reg.MustRegister(c.RoutingSelections, c.Transfers, c.VirtualQueueDecisions, c.DialerSelections, c.Agents)
	}
	return c
}
