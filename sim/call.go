package sim

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// PendingEndID is a weak handle to a primary agent's pending end of service,
// owned by the transfer coordinator's table. Zero means none.
type PendingEndID uint64

// Uniforms holds the decision draws made when a call is created. Drawing them
// up front keeps branching reproducible under common random numbers no matter
// how the call travels through the system.
type Uniforms struct {
	Transfer     float64 // transfer vs. ordinary completion
	TransferWait float64 // primary waits for the secondary (conference) or not
	VirtualQueue float64 // accepts the callback offer
	Callback     float64 // the callback reaches the customer
}

// Call is one simulated customer interaction.
type Call struct {
	ID            uuid.UUID
	Type          int
	ArrivalPeriod int
	Outbound      bool

	ArrivalTime      float64
	BeginServiceTime float64
	ExitTime         float64

	Uniforms Uniforms

	// Per agent group times. A vector of length 1 applies to every group.
	ServiceTimes          []float64
	ConferenceTimes       []float64
	PreServiceTimesNoConf []float64
	TransferTimes         []float64

	PatienceTime float64

	// Virtual queueing bookkeeping. TypeBeforeVQ is -1 until the call has
	// been through a virtual queue.
	TypeBeforeVQ      int
	WaitingTimeVQ     float64
	QueueTimeBeforeVQ float64

	// PrimaryEnd points at the primary agent's pending end of service while
	// this transferred call waits for a secondary agent.
	PrimaryEnd PendingEndID

	// Attributes carries free-form values read by routing conditions.
	Attributes map[string]any

	// Group is the agent group serving the call, -1 when not in service.
	Group int

	routingCases map[int]int
}

// NewCall creates a call of type k arriving at time t.
func NewCall(k int, t float64) *Call {
	return &Call{
		ID:           uuid.New(),
		Type:         k,
		ArrivalTime:  t,
		TypeBeforeVQ: -1,
		Group:        -1,
	}
}

// SetType relabels the call. The routing-case memo belongs to the previous
// type's stages and is discarded.
func (c *Call) SetType(k int) {
	if c.Type == k {
		return
	}
	c.Type = k
	c.routingCases = nil
}

// CachedCase returns the case memoized for stage, if any. A negative case
// index records that no case matched.
func (c *Call) CachedCase(stage int) (int, bool) {
	idx, ok := c.routingCases[stage]
	return idx, ok
}

// CacheCase memoizes the case selected for stage. The first selection is
// final for the lifetime of the call in that stage.
func (c *Call) CacheCase(stage, idx int) {
	if c.routingCases == nil {
		c.routingCases = make(map[int]int)
	}
	if prev, ok := c.routingCases[stage]; ok {
		panic(fmt.Sprintf("Call.CacheCase: stage %d of call %s already memoized case %d", stage, c.ID, prev))
	}
	c.routingCases[stage] = idx
}

// ResetRouting forgets every memoized case, for a call re-entering routing as
// a new presence.
func (c *Call) ResetRouting() {
	c.routingCases = nil
}

// ServiceTime returns the service time at group i.
func (c *Call) ServiceTime(i int) float64 { return vectorAt(c.ServiceTimes, i) }

// ConferenceTime returns the conference time at group i.
func (c *Call) ConferenceTime(i int) float64 { return vectorAt(c.ConferenceTimes, i) }

// PreServiceTimeNoConf returns the pre-service time without conference at group i.
func (c *Call) PreServiceTimeNoConf(i int) float64 { return vectorAt(c.PreServiceTimesNoConf, i) }

// TransferTime returns the transfer time when served by group i.
func (c *Call) TransferTime(i int) float64 { return vectorAt(c.TransferTimes, i) }

// MultiplyServiceTimes scales every service time by mult. An infinite
// multiplier of a zero time stays zero rather than NaN.
func (c *Call) MultiplyServiceTimes(mult float64) {
	for i, v := range c.ServiceTimes {
		c.ServiceTimes[i] = mulTime(v, mult)
	}
}

// AddServiceTimes adds extra[i] to the service time at group i.
func (c *Call) AddServiceTimes(extra []float64) {
	if len(c.ServiceTimes) <= 1 && len(extra) > 1 {
		base := vectorAt(c.ServiceTimes, 0)
		c.ServiceTimes = make([]float64, len(extra))
		for i := range c.ServiceTimes {
			c.ServiceTimes[i] = base
		}
	}
	for i := range c.ServiceTimes {
		c.ServiceTimes[i] += vectorAt(extra, i)
	}
}

func (c *Call) String() string {
	return fmt.Sprintf("Call: (ID: %s, Type: %d, Arrival: %.3f)", c.ID, c.Type, c.ArrivalTime)
}

func vectorAt(v []float64, i int) float64 {
	switch {
	case len(v) == 0:
		return 0
	case len(v) == 1:
		return v[0]
	case i < 0 || i >= len(v):
		panic(fmt.Sprintf("vectorAt: index %d out of range [0,%d)", i, len(v)))
	}
	return v[i]
}

func mulTime(t, mult float64) float64 {
	if t == 0 || mult == 0 {
		return 0
	}
	if math.IsInf(mult, 1) {
		return math.Inf(1)
	}
	return t * mult
}
