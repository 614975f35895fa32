package dialer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactsim/contactsim/sim"
	simtest "github.com/contactsim/contactsim/sim/internal/testutil"
)

func newDialer(t *testing.T, s *sim.Simulator, r *simtest.Router, reach sim.RandomStream, limits []Limit) *Dialer {
	t.Helper()
	sel := newSelector(t, s, simtest.NewFixedStream(0.5), []TypeConfig{{Type: 0, Prob: sim.PerPeriod{1}}}, limits)
	d, err := NewDialer(s, r, sel, layout, reach, Config{Groups: []int{0}, ProbReach: sim.PerPeriod{0.5}, DialDelay: 1})
	require.NoError(t, err)
	return d
}

func TestDialer_DialsOnePerFreeAgent(t *testing.T) {
	// GIVEN two idle agents, the first customer answers and the second does not
	s := sim.NewSimulator()
	r := simtest.NewRouter(s, 1, 2)
	d := newDialer(t, s, r, simtest.NewFixedStream(0.1, 0.9), nil)

	// WHEN the dialer runs
	d.Dial()
	d.Dial()

	// THEN one call is dialed per free agent, not more
	assert.Equal(t, Stats{Dialed: 2}, d.Stats())

	// WHEN the answers come back
	s.Run(1)

	// THEN the reached customer is served and the failed dial is replaced
	assert.Equal(t, Stats{Dialed: 3, Reached: 1, Failed: 1}, d.Stats())
	assert.Equal(t, 1, r.Groups[0].Busy())
	require.Len(t, r.Submitted, 1)
	assert.True(t, r.Submitted[0].Outbound)
	assert.Equal(t, 1.0, r.Submitted[0].BeginServiceTime)
}

func TestDialer_RespectsSelectorCapacity(t *testing.T) {
	s := sim.NewSimulator()
	r := simtest.NewRouter(s, 1, 5)
	d := newDialer(t, s, r, simtest.NewFixedStream(0.1), []Limit{{Start: 0, End: 100, MaxCalls: 2, Types: []int{0}}})

	d.Dial()

	assert.Equal(t, 2, d.Stats().Dialed)
}

func TestDialer_ReachedCallWithoutFreeAgentIsLost(t *testing.T) {
	s := sim.NewSimulator()
	r := simtest.NewRouter(s, 1, 1)
	d := newDialer(t, s, r, simtest.NewFixedStream(0.1), nil)
	d.Dial()

	// An inbound call takes the agent while the customer is being dialed.
	inbound := sim.NewCall(0, 0)
	inbound.ServiceTimes = []float64{50}
	r.NewContact(inbound)
	s.Run(1)

	assert.Equal(t, 1, d.Stats().Reached)
	assert.Equal(t, 0, r.Queues[0].Len(), "zero patience: the outbound call leaves at once")
}

func TestDialer_AttachRedialsWhenAgentFrees(t *testing.T) {
	s := sim.NewSimulator()
	r := simtest.NewRouter(s, 1, 1)
	d := newDialer(t, s, r, simtest.NewFixedStream(0.1), []Limit{{Start: 0, End: 100, MaxCalls: 2, Types: []int{0}}})
	d.Attach()

	d.Dial()
	s.Run(100)

	// Service 5 after the answer at t=1; the freed agent triggers the
	// second dial, then the limit is exhausted.
	assert.Equal(t, Stats{Dialed: 2, Reached: 2}, d.Stats())
	assert.Len(t, r.Completed, 2)
}

func TestDialer_StopEndsCampaign(t *testing.T) {
	s := sim.NewSimulator()
	r := simtest.NewRouter(s, 1, 2)
	d := newDialer(t, s, r, simtest.NewFixedStream(0.9), nil)
	d.Dial()
	d.Stop()

	// Failed dials would normally be replaced at once.
	s.Run(10)

	assert.Equal(t, Stats{Dialed: 2, Failed: 2}, d.Stats())
	d.Reset()
	d.Dial()
	assert.Equal(t, 2, d.Stats().Dialed)
}

func TestDialer_Reset(t *testing.T) {
	s := sim.NewSimulator()
	r := simtest.NewRouter(s, 1, 1)
	d := newDialer(t, s, r, simtest.NewFixedStream(0.1), []Limit{{Start: 0, End: 100, MaxCalls: 1, Types: []int{0}}})
	d.Dial()
	require.Equal(t, 1, d.Selector().Dialed(0))

	s.Reset()
	d.Reset()

	assert.Equal(t, Stats{}, d.Stats())
	assert.Equal(t, 0, d.Selector().Dialed(0))
	d.Dial()
	assert.Equal(t, 1, d.Stats().Dialed)
}

func TestNewDialer_ValidationErrors(t *testing.T) {
	s := sim.NewSimulator()
	r := simtest.NewRouter(s, 1, 1)
	sel := newSelector(t, s, simtest.NewFixedStream(0.5), []TypeConfig{{Type: 0, Prob: sim.PerPeriod{1}}}, nil)

	_, err := NewDialer(s, r, sel, layout, simtest.NewFixedStream(0.5), Config{Groups: []int{1}, ProbReach: sim.PerPeriod{1}})
	assert.ErrorContains(t, err, "agent group 1 out of range")
	_, err = NewDialer(s, r, sel, layout, simtest.NewFixedStream(0.5), Config{Groups: []int{0}, ProbReach: sim.PerPeriod{1.2}})
	assert.ErrorContains(t, err, "probReach[0]")
	_, err = NewDialer(s, r, sel, layout, simtest.NewFixedStream(0.5), Config{Groups: []int{0}, ProbReach: sim.PerPeriod{1}, DialDelay: -1})
	assert.ErrorContains(t, err, "dial delay")
}
