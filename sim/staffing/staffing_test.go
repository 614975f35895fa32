package staffing

import (
	"math/rand/v2"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactsim/contactsim/sim"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

var layout = sim.PeriodLayout{Start: 0, Duration: 10, NumPeriods: 4}

func mustShift(t *testing.T, agents int, presence float64, parts ...ShiftPart) *Shift {
	t.Helper()
	s, err := NewShift(parts, agents, presence)
	require.NoError(t, err)
	return s
}

// capacityAt runs s and samples the capacity of g at each time, after the
// staffing events of that instant.
func capacityAt(s *sim.Simulator, g *sim.AgentGroup, times ...float64) []int {
	got := make([]int, len(times))
	for i, at := range times {
		s.ScheduleAfter(at, sim.EventDial, func() { got[i] = g.Capacity() })
	}
	s.Run(1000)
	return got
}

func TestShift_CoverageVector(t *testing.T) {
	sh := mustShift(t, 3, 1,
		ShiftPart{Start: 0, End: 12, Working: true},
		ShiftPart{Start: 12, End: 20, Working: false},
		// Touches period 3 only at its start: no positive overlap.
		ShiftPart{Start: 25, End: 30, Working: true},
	)
	assert.Equal(t, []int{1, 1, 1, 0}, sh.CoverageVector(layout))
}

func TestStaffingVector_EqualsWeightedCoverage(t *testing.T) {
	// GIVEN several shifts with different headcounts
	shifts := []*Shift{
		mustShift(t, 3, 1, ShiftPart{Start: 0, End: 20, Working: true}),
		mustShift(t, 2, 0.5, ShiftPart{Start: 10, End: 40, Working: true}),
		mustShift(t, 4, 1,
			ShiftPart{Start: 0, End: 10, Working: true},
			ShiftPart{Start: 10, End: 30, Working: false},
			ShiftPart{Start: 30, End: 35, Working: true}),
		mustShift(t, 7, 1, ShiftPart{Start: 5, End: 15, Working: false}),
	}

	// WHEN summing each shift's 0/1 coverage weighted by its headcount
	want := make([]int, layout.NumPeriods)
	for _, sh := range shifts {
		for p, c := range sh.CoverageVector(layout) {
			want[p] += c * sh.Agents
		}
	}

	// THEN the staffing vector is reproduced exactly
	assert.Equal(t, want, StaffingVector(shifts, layout))
	assert.Equal(t, []int{7, 5, 2, 6}, StaffingVector(shifts, layout))
	assert.Equal(t, []float64{7, 4, 1, 5}, ExpectedStaffingVector(shifts, layout))
}

func TestNewShift_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		parts    []ShiftPart
		agents   int
		presence float64
		wantErr  string
	}{
		{"negative agents", nil, -1, 1, "negative agent count"},
		{"presence above one", nil, 1, 1.5, "presence probability"},
		{"empty part", []ShiftPart{{Start: 5, End: 5}}, 1, 1, "must be before end"},
		{"overlap", []ShiftPart{{Start: 0, End: 10}, {Start: 5, End: 20}}, 1, 1, "part 1 starts at 5, before part 0 ends"},
		{"negative start", []ShiftPart{{Start: -1, End: 10}}, 1, 1, "negative start"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewShift(tc.parts, tc.agents, tc.presence)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestScheduleStaffing_BoundaryEvents(t *testing.T) {
	// GIVEN a shift working 0-10 and 15-30 with a break in between, and a
	// second shift arriving at 5
	s := sim.NewSimulator()
	g := sim.NewAgentGroup(0, "support", 0)
	col := sim.NewCollectors(prometheus.NewRegistry())
	ss := NewScheduleStaffing(s, g, []*Shift{
		mustShift(t, 3, 1,
			ShiftPart{Start: 0, End: 10, Working: true},
			ShiftPart{Start: 10, End: 15, Working: false},
			ShiftPart{Start: 15, End: 30, Working: true}),
		mustShift(t, 2, 1, ShiftPart{Start: 5, End: 20, Working: true}),
	}, WithCollectors(col))

	// WHEN the replication runs
	ss.Start(rand.NewPCG(1, 2))
	got := capacityAt(s, g, 0, 5, 10, 15, 20, 30)

	// THEN capacity follows the working parts
	assert.Equal(t, []int{3, 5, 2, 5, 3, 0}, got)
	assert.Equal(t, []int{3, 2}, ss.Headcounts())
	assert.Equal(t, 0.0, testutil.ToFloat64(col.Agents.WithLabelValues("support")))
	assert.Equal(t, 0, s.Pending(), "no transition after the last part")
}

func TestScheduleStaffing_CapacityChangesNotifyListeners(t *testing.T) {
	s := sim.NewSimulator()
	g := sim.NewAgentGroup(0, "support", 0)
	var olds []int
	g.AddListener(sim.AgentGroupListenerFuncs{
		CapacityChanged: func(_ *sim.AgentGroup, old int) { olds = append(olds, old) },
	}, sim.PriorityRouter)
	ss := NewScheduleStaffing(s, g, []*Shift{mustShift(t, 4, 1, ShiftPart{Start: 2, End: 6, Working: true})})

	ss.Start(nil)
	s.Run(100)

	assert.Equal(t, []int{0, 4}, olds)
}

func TestScheduleStaffing_PresenceThinsHeadcount(t *testing.T) {
	// GIVEN a shift of 1000 agents each present with probability 0.3
	shifts := []*Shift{
		mustShift(t, 1000, 0.3, ShiftPart{Start: 0, End: 10, Working: true}),
		mustShift(t, 0, 0.3, ShiftPart{Start: 0, End: 10, Working: true}),
		mustShift(t, 8, 1, ShiftPart{Start: 0, End: 10, Working: true}),
	}
	s := sim.NewSimulator()
	ss := NewScheduleStaffing(s, sim.NewAgentGroup(0, "g", 0), shifts)

	// WHEN headcounts are drawn
	ss.Start(rand.NewPCG(42, 0))
	h := ss.Headcounts()

	// THEN the draw is plausible and the degenerate shifts are untouched
	assert.InDelta(t, 300, h[0], 60)
	assert.Equal(t, 0, h[1])
	assert.Equal(t, 8, h[2])
}

func TestScheduleStaffing_SameSourceSameHeadcount(t *testing.T) {
	shifts := []*Shift{mustShift(t, 50, 0.6, ShiftPart{Start: 0, End: 10, Working: true})}
	draw := func() []int {
		ss := NewScheduleStaffing(sim.NewSimulator(), sim.NewAgentGroup(0, "g", 0), shifts)
		ss.Start(rand.NewPCG(7, 3))
		return ss.Headcounts()
	}
	assert.Equal(t, draw(), draw())
}

func TestScheduleStaffing_ResetStartsFreshReplication(t *testing.T) {
	// GIVEN a replication stopped in the middle of a shift
	s := sim.NewSimulator()
	g := sim.NewAgentGroup(0, "g", 0)
	ss := NewScheduleStaffing(s, g, []*Shift{mustShift(t, 2, 1, ShiftPart{Start: 0, End: 10, Working: true})})
	ss.Start(nil)
	s.Run(5)
	require.Equal(t, 2, g.Capacity())

	// WHEN a new epoch starts
	ss.Reset()
	s.Reset()
	g.Reset(0)
	ss.Start(nil)

	// THEN the shift replays from its first part
	assert.Equal(t, []int{2, 0}, capacityAt(s, g, 0, 10))
}

func TestVectorStaffing_SetsCapacityPerPeriod(t *testing.T) {
	s := sim.NewSimulator()
	g := sim.NewAgentGroup(0, "sales", 0)
	col := sim.NewCollectors(prometheus.NewRegistry())
	l := sim.PeriodLayout{Start: 5, Duration: 10, NumPeriods: 3}
	vs, err := NewVectorStaffing(s, g, l, []int{2, 6, 1}, WithCollectors(col))
	require.NoError(t, err)

	vs.Start()
	// Preliminary period uses the first value; the wrap-up keeps the last.
	assert.Equal(t, []int{2, 2, 6, 1, 1}, capacityAt(s, g, 0, 10, 15, 25, 60))
	assert.Equal(t, 1.0, testutil.ToFloat64(col.Agents.WithLabelValues("sales")))
}

func TestNewVectorStaffing_ValidationErrors(t *testing.T) {
	g := sim.NewAgentGroup(0, "sales", 0)
	_, err := NewVectorStaffing(sim.NewSimulator(), g, layout, []int{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 4 staffing values")

	_, err = NewVectorStaffing(sim.NewSimulator(), g, layout, []int{1, -2, 1, 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative staffing -2 in period 1")
}
