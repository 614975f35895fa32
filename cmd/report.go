package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/contactsim/contactsim/sim"
	"github.com/contactsim/contactsim/sim/callcenter"
	"github.com/contactsim/contactsim/sim/dialer"
	"github.com/contactsim/contactsim/sim/trace"
)

type runOptions struct {
	ConfigPath   string
	Seed         int64
	Replications int
	TraceLevel   string
	MetricsOut   string
}

// Report is the JSON document printed after a run.
type Report struct {
	Seed         int64               `json:"seed"`
	Replications []ReplicationReport `json:"replications"`
	Summary      callcenter.Summary  `json:"summary"`
}

// ReplicationReport is the outcome of one replication.
type ReplicationReport struct {
	Replication int                 `json:"replication"`
	EndTime     float64             `json:"end_time"`
	Events      int64               `json:"events"`
	Types       []TypeReport        `json:"types"`
	Dialers     []DialerReport      `json:"dialers,omitempty"`
	Headcounts  [][]int             `json:"headcounts,omitempty"`
	Trace       *trace.TraceSummary `json:"trace,omitempty"`
}

// TypeReport holds the counts and ratios of one call type.
type TypeReport struct {
	Name         string  `json:"name"`
	Arrived      int     `json:"arrived"`
	Offered      int     `json:"offered"`
	Served       int     `json:"served"`
	Abandoned    int     `json:"abandoned"`
	Lost         int     `json:"lost"`
	Blocked      int     `json:"blocked"`
	CalledBack   int     `json:"called_back"`
	ServiceLevel float64 `json:"service_level"`
	MeanWait     float64 `json:"mean_wait"`
}

// DialerReport holds the counts of one dialer.
type DialerReport struct {
	Dialed  int `json:"dialed"`
	Reached int `json:"reached"`
	Failed  int `json:"failed"`
}

func runSimulation(w io.Writer, opts runOptions) error {
	if opts.ConfigPath == "" {
		return fmt.Errorf("no model config: pass --config or set %s", envConfig)
	}
	if opts.Replications < 1 {
		return fmt.Errorf("--replications must be >= 1, got %d", opts.Replications)
	}
	if !trace.IsValidTraceLevel(opts.TraceLevel) {
		return fmt.Errorf("unknown trace level %q; valid: none, decisions", opts.TraceLevel)
	}
	cfg, err := callcenter.LoadModelConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	m, err := callcenter.NewModel(cfg,
		callcenter.WithCollectors(sim.NewCollectors(reg)),
		callcenter.WithTraceLevel(trace.TraceLevel(opts.TraceLevel)))
	if err != nil {
		return fmt.Errorf("invalid model %s: %w", opts.ConfigPath, err)
	}

	logrus.Infof("Starting %d replications of %s with seed %d", opts.Replications, opts.ConfigPath, opts.Seed)
	startTime := time.Now()
	results := m.Run(opts.Seed, opts.Replications)
	logrus.Infof("Simulated %d replications in %v", len(results), time.Since(startTime))

	if err := writeReport(w, buildReport(cfg, opts.Seed, results)); err != nil {
		return err
	}
	if opts.MetricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsOut, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		logrus.Infof("Decision counters written to %s", opts.MetricsOut)
	}
	return nil
}

func buildReport(cfg *callcenter.ModelConfig, seed int64, results []*callcenter.ReplicationResult) *Report {
	r := &Report{Seed: seed, Summary: callcenter.Summarize(results)}
	for _, res := range results {
		rr := ReplicationReport{
			Replication: res.Replication,
			EndTime:     res.EndTime,
			Events:      res.Events,
			Headcounts:  res.Headcounts,
			Trace:       res.Trace,
		}
		for k, st := range res.Types {
			rr.Types = append(rr.Types, typeReport(typeName(cfg, k), st))
		}
		for _, d := range res.Dialers {
			rr.Dialers = append(rr.Dialers, dialerReport(d))
		}
		r.Replications = append(r.Replications, rr)
	}
	return r
}

func typeName(cfg *callcenter.ModelConfig, k int) string {
	if name := cfg.Types[k].Name; name != "" {
		return name
	}
	return fmt.Sprintf("type-%d", k)
}

func typeReport(name string, st callcenter.TypeStats) TypeReport {
	return TypeReport{
		Name:         name,
		Arrived:      st.Arrived,
		Offered:      st.Offered,
		Served:       st.Served,
		Abandoned:    st.Abandoned,
		Lost:         st.Lost,
		Blocked:      st.Blocked,
		CalledBack:   st.CalledBack,
		ServiceLevel: st.ServiceLevel(),
		MeanWait:     st.MeanWait(),
	}
}

func dialerReport(s dialer.Stats) DialerReport {
	return DialerReport{Dialed: s.Dialed, Reached: s.Reached, Failed: s.Failed}
}

func writeReport(w io.Writer, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if _, err := fmt.Fprintln(w, "=== Simulation Results ==="); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
