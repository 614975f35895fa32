package callcenter

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/contactsim/contactsim/sim"
	"github.com/contactsim/contactsim/sim/dialer"
	"github.com/contactsim/contactsim/sim/trace"
)

// TypeStats counts what happened to the calls of one type in a replication.
// Offered counts every submission to the router, including called-back,
// transferred and outbound calls; Arrived counts only arrival-process calls.
type TypeStats struct {
	Arrived    int
	Offered    int
	Served     int
	Abandoned  int
	Lost       int // left at once for want of a free agent (zero patience)
	Blocked    int // no routing case applied
	CalledBack int
	WaitSum    float64
	WithinAWT  int
}

func (s *TypeStats) add(o TypeStats) {
	s.Arrived += o.Arrived
	s.Offered += o.Offered
	s.Served += o.Served
	s.Abandoned += o.Abandoned
	s.Lost += o.Lost
	s.Blocked += o.Blocked
	s.CalledBack += o.CalledBack
	s.WaitSum += o.WaitSum
	s.WithinAWT += o.WithinAWT
}

// ServiceLevel is the fraction of served or abandoned calls that were served
// within the acceptable waiting time, 1 when there were none.
func (s TypeStats) ServiceLevel() float64 {
	n := s.Served + s.Abandoned
	if n == 0 {
		return 1
	}
	return float64(s.WithinAWT) / float64(n)
}

// MeanWait is the mean waiting time of served calls, 0 when none was served.
func (s TypeStats) MeanWait() float64 {
	if s.Served == 0 {
		return 0
	}
	return s.WaitSum / float64(s.Served)
}

// ReplicationResult holds the outcome of one replication.
type ReplicationResult struct {
	Replication int
	EndTime     float64
	Events      int64
	Types       []TypeStats
	Dialers     []dialer.Stats
	Headcounts  [][]int // drawn shift headcounts per schedule-driven group
	Trace       *trace.TraceSummary
}

// Totals sums the statistics of every call type.
func (r *ReplicationResult) Totals() TypeStats {
	var t TypeStats
	for _, s := range r.Types {
		t.add(s)
	}
	return t
}

// Replication runs replication rep of seed from a fresh epoch.
func (m *Model) Replication(seed int64, rep int) *ReplicationResult {
	m.reset(sim.NewSimulationKey(seed, rep))
	m.start()
	horizon := math.Inf(1)
	if m.cfg.MaxTime != nil {
		horizon = *m.cfg.MaxTime
	}
	m.sched.Run(horizon)

	res := &ReplicationResult{
		Replication: rep,
		EndTime:     m.sched.Now(),
		Events:      m.sched.Executed(),
		Types:       append([]TypeStats(nil), m.stats...),
	}
	for _, d := range m.dialers {
		res.Dialers = append(res.Dialers, d.Stats())
	}
	for _, ss := range m.schedules {
		if ss != nil {
			res.Headcounts = append(res.Headcounts, ss.Headcounts())
		}
	}
	if m.trace != nil {
		res.Trace = trace.Summarize(m.trace)
	}
	tot := res.Totals()
	logrus.Infof("replication %d: %d offered, %d served, %d abandoned, service level %.3f",
		rep, tot.Offered, tot.Served, tot.Abandoned, tot.ServiceLevel())
	return res
}

// Run runs n replications of seed.
func (m *Model) Run(seed int64, n int) []*ReplicationResult {
	results := make([]*ReplicationResult, n)
	for r := range results {
		results[r] = m.Replication(seed, r)
	}
	return results
}

// reset starts a new epoch: nothing but configuration survives from the
// previous replication.
func (m *Model) reset(key sim.SimulationKey) {
	m.sched.Reset()
	m.streams.bind(sim.NewPartitionedRNG(key))
	for i, g := range m.groups {
		// Staffed groups start empty and are filled by their staffing source.
		capacity := m.cfg.Groups[i].Agents
		if m.schedules[i] != nil || m.vectors[i] != nil {
			capacity = 0
		}
		g.Reset(capacity)
		if ss := m.schedules[i]; ss != nil {
			ss.Reset()
		}
	}
	for _, q := range m.queues {
		q.Clear()
	}
	m.transfer.Reset()
	if m.vq != nil {
		m.vq.Reset()
		m.predictor.Reset()
	}
	for _, d := range m.dialers {
		d.Reset()
	}
	clear(m.stats)

	m.trace = trace.NewSimulationTrace(trace.TraceConfig{Level: m.traceLevel})
	m.engine.SetTrace(m.trace)
	m.transfer.SetTrace(m.trace)
	if m.vq != nil {
		m.vq.SetTrace(m.trace)
	}
	for _, d := range m.dialers {
		d.Selector().SetTrace(m.trace)
	}
}

func (m *Model) start() {
	for i := range m.groups {
		if ss := m.schedules[i]; ss != nil {
			ss.Start(m.staffingRNG)
		}
		if vs := m.vectors[i]; vs != nil {
			vs.Start()
		}
	}
	for _, a := range m.arrivals {
		a.start()
	}
	if len(m.dialers) > 0 {
		for p := 0; p < m.layout.NumPeriods; p++ {
			m.sched.ScheduleAfter(m.layout.PeriodStart(p), sim.EventDial, func() {
				for _, d := range m.dialers {
					d.Dial()
				}
			})
		}
		m.sched.ScheduleAfter(m.layout.End(), sim.EventPeriodChange, func() {
			for _, d := range m.dialers {
				d.Stop()
			}
		})
	}
}

// Estimate is the sample mean and standard deviation of a statistic over
// replications.
type Estimate struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

func estimate(xs []float64) Estimate {
	switch len(xs) {
	case 0:
		return Estimate{}
	case 1:
		return Estimate{Mean: xs[0]}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	return Estimate{Mean: mean, StdDev: std}
}

// Summary aggregates the totals of several replications.
type Summary struct {
	Replications int      `json:"replications"`
	Offered      Estimate `json:"offered"`
	Served       Estimate `json:"served"`
	Abandoned    Estimate `json:"abandoned"`
	Lost         Estimate `json:"lost"`
	Blocked      Estimate `json:"blocked"`
	ServiceLevel Estimate `json:"service_level"`
	MeanWait     Estimate `json:"mean_wait"`
}

// Summarize computes the mean and standard deviation of the replication
// totals.
func Summarize(results []*ReplicationResult) Summary {
	n := len(results)
	cols := make([][]float64, 7)
	for i := range cols {
		cols[i] = make([]float64, n)
	}
	for r, res := range results {
		t := res.Totals()
		cols[0][r] = float64(t.Offered)
		cols[1][r] = float64(t.Served)
		cols[2][r] = float64(t.Abandoned)
		cols[3][r] = float64(t.Lost)
		cols[4][r] = float64(t.Blocked)
		cols[5][r] = t.ServiceLevel()
		cols[6][r] = t.MeanWait()
	}
	return Summary{
		Replications: n,
		Offered:      estimate(cols[0]),
		Served:       estimate(cols[1]),
		Abandoned:    estimate(cols[2]),
		Lost:         estimate(cols[3]),
		Blocked:      estimate(cols[4]),
		ServiceLevel: estimate(cols[5]),
		MeanWait:     estimate(cols[6]),
	}
}
