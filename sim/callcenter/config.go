package callcenter

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/contactsim/contactsim/sim"
	"github.com/contactsim/contactsim/sim/staffing"
)

// ModelConfig is the complete description of a contact center, loadable from
// a YAML file. Infinite values are written .inf.
type ModelConfig struct {
	Periods PeriodsConfig `yaml:"periods"`
	// ServiceLevelAWT is the acceptable waiting time of the service level.
	ServiceLevelAWT float64              `yaml:"service_level_awt"`
	MaxTime         *float64             `yaml:"max_time"` // nil runs until no event is left
	Groups          []GroupConfig        `yaml:"groups"`
	Types           []TypeConfig         `yaml:"types"`
	VirtualQueue    VirtualQueueSettings `yaml:"virtual_queue"`
	Dialers         []DialerConfig       `yaml:"dialers"`
}

// PeriodsConfig is the main period layout.
type PeriodsConfig struct {
	Start    float64 `yaml:"start"`
	Duration float64 `yaml:"duration"`
	Count    int     `yaml:"count"`
}

// GroupConfig describes one agent group. At most one of Staffing and Shifts
// may be set; otherwise Agents is a fixed headcount.
type GroupConfig struct {
	Name     string        `yaml:"name"`
	Agents   int           `yaml:"agents"`
	Staffing []int         `yaml:"staffing"`
	Shifts   []ShiftConfig `yaml:"shifts"`
}

// ShiftConfig is one shift of a schedule-driven group.
type ShiftConfig struct {
	Agents   int                  `yaml:"agents"`
	Presence *float64             `yaml:"presence"` // defaults to 1
	Parts    []staffing.ShiftPart `yaml:"parts"`
}

// DistConfig is a random duration.
type DistConfig struct {
	Dist   string  `yaml:"dist"` // constant (default), exponential, lognormal, gamma
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stddev"`
}

// TypeConfig describes one call type.
type TypeConfig struct {
	Name string `yaml:"name"`
	// ArrivalRates are per-period Poisson rates, per time unit. Empty for
	// outbound, virtual and transfer-target types.
	ArrivalRates sim.PerPeriod `yaml:"arrival_rates"`
	Patience     *DistConfig   `yaml:"patience"` // nil never abandons
	// Service applies to every group unless ServiceByGroup is set.
	Service          DistConfig     `yaml:"service"`
	ServiceByGroup   []DistConfig   `yaml:"service_by_group"`
	Conference       *DistConfig    `yaml:"conference"`
	PreServiceNoConf *DistConfig    `yaml:"pre_service_no_conf"`
	TransferTime     *DistConfig    `yaml:"transfer_time"`
	Attributes       map[string]any `yaml:"attributes"`

	Routing      RoutingConfig       `yaml:"routing"`
	Transfer     *TransferConfig     `yaml:"transfer"`
	VirtualQueue *VirtualQueueConfig `yaml:"virtual_queue"`
}

// RoutingConfig is the routing of one call type.
type RoutingConfig struct {
	BaseAgentRanks []float64     `yaml:"base_agent_ranks"`
	BaseQueueRanks []float64     `yaml:"base_queue_ranks"`
	Stages         []StageConfig `yaml:"stages"`
}

// StageConfig is one routing stage.
type StageConfig struct {
	WaitingTime float64      `yaml:"waiting_time"`
	Cases       []CaseConfig `yaml:"cases"`
}

// CaseConfig is one routing case. A case without When is the default case.
type CaseConfig struct {
	When       *ConditionConfig `yaml:"when"`
	Kind       string           `yaml:"kind"` // absolute (default), relative, custom
	AgentRanks []float64        `yaml:"agent_ranks"`
	QueueRanks []float64        `yaml:"queue_ranks"`
	Function   string           `yaml:"function"` // registered rank function, for custom cases
}

// ConditionConfig is a routing condition.
type ConditionConfig struct {
	Kind      string            `yaml:"kind"`
	Index     int               `yaml:"index"`
	Op        string            `yaml:"op"`
	Value     float64           `yaml:"value"`
	Attribute string            `yaml:"attribute"`
	Text      string            `yaml:"text"`
	Children  []ConditionConfig `yaml:"children"`
	Predicate string            `yaml:"predicate"` // registered predicate, for custom conditions
}

// TransferConfig enables transfers for a call type.
type TransferConfig struct {
	TargetType int                   `yaml:"target_type"`
	Groups     []TransferGroupConfig `yaml:"groups"`
}

// TransferGroupConfig holds the transfer parameters of one primary group.
type TransferGroupConfig struct {
	ProbTransfer     sim.PerPeriod `yaml:"prob_transfer"`
	ServiceTimesMult sim.PerPeriod `yaml:"service_times_mult"`
	ProbWait         sim.PerPeriod `yaml:"prob_wait"`
}

// VirtualQueueConfig offers callbacks to waiting calls of a type.
type VirtualQueueConfig struct {
	TargetType              int           `yaml:"target_type"`
	Threshold               sim.PerPeriod `yaml:"threshold"`
	Prob                    sim.PerPeriod `yaml:"prob"`
	PatienceMultDeclined    sim.PerPeriod `yaml:"patience_mult_declined"`
	ServiceMultDeclined     sim.PerPeriod `yaml:"service_mult_declined"`
	ExpectedWaitingTimeMult sim.PerPeriod `yaml:"expected_waiting_time_mult"`
	ProbCallBack            sim.PerPeriod `yaml:"prob_callback"`
	PatienceMultCallBack    sim.PerPeriod `yaml:"patience_mult_callback"`
	ServiceMultCallBack     sim.PerPeriod `yaml:"service_mult_callback"`
}

// VirtualQueueSettings are the model-wide virtual queueing settings.
type VirtualQueueSettings struct {
	Predictor        string  `yaml:"predictor"`
	Window           int     `yaml:"window"`
	ExitDelayDivisor float64 `yaml:"exit_delay_divisor"`
}

// DialerConfig describes one outbound dialer.
type DialerConfig struct {
	Groups    []int               `yaml:"groups"`
	ProbReach sim.PerPeriod       `yaml:"prob_reach"`
	Delay     float64             `yaml:"delay"`
	Types     []DialerTypeConfig  `yaml:"types"`
	Limits    []DialerLimitConfig `yaml:"limits"`
}

// DialerTypeConfig is one outbound type of a dialer.
type DialerTypeConfig struct {
	Type int           `yaml:"type"`
	Prob sim.PerPeriod `yaml:"prob"`
}

// DialerLimitConfig caps the calls of some types dialed in an interval.
type DialerLimitConfig struct {
	Start    float64 `yaml:"start"`
	End      float64 `yaml:"end"`
	MaxCalls int     `yaml:"max_calls"`
	Types    []int   `yaml:"types"`
}

var validDists = map[string]bool{"": true, "constant": true, "exponential": true, "lognormal": true, "gamma": true}

// LoadModelConfig reads and parses a YAML model file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadModelConfig(path string) (*ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model config: %w", err)
	}
	var cfg ModelConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing model config: %w", err)
	}
	return &cfg, nil
}

// Layout returns the period layout of the model.
func (cfg *ModelConfig) Layout() sim.PeriodLayout {
	return sim.PeriodLayout{Start: cfg.Periods.Start, Duration: cfg.Periods.Duration, NumPeriods: cfg.Periods.Count}
}

// Validate checks the dimensions and values that do not depend on the
// components. Component parameters are validated when the model is built.
func (cfg *ModelConfig) Validate() error {
	layout := cfg.Layout()
	if err := layout.Validate(); err != nil {
		return fmt.Errorf("periods: %w", err)
	}
	if len(cfg.Groups) == 0 {
		return fmt.Errorf("at least one agent group required")
	}
	if len(cfg.Types) == 0 {
		return fmt.Errorf("at least one call type required")
	}
	if cfg.ServiceLevelAWT < 0 || math.IsNaN(cfg.ServiceLevelAWT) {
		return fmt.Errorf("service_level_awt must be non-negative, got %v", cfg.ServiceLevelAWT)
	}
	if cfg.MaxTime != nil && !(*cfg.MaxTime > 0) {
		return fmt.Errorf("max_time must be positive, got %v", *cfg.MaxTime)
	}
	for i := range cfg.Groups {
		if err := cfg.Groups[i].validate(i, cfg.Periods.Count); err != nil {
			return err
		}
	}
	for k := range cfg.Types {
		if err := cfg.Types[k].validate(k, len(cfg.Groups), cfg.Periods.Count); err != nil {
			return err
		}
	}
	for d := range cfg.Dialers {
		for _, g := range cfg.Dialers[d].Groups {
			if g < 0 || g >= len(cfg.Groups) {
				return fmt.Errorf("dialers[%d]: agent group %d out of range [0,%d)", d, g, len(cfg.Groups))
			}
		}
		for _, tc := range cfg.Dialers[d].Types {
			if tc.Type < 0 || tc.Type >= len(cfg.Types) {
				return fmt.Errorf("dialers[%d]: call type %d out of range [0,%d)", d, tc.Type, len(cfg.Types))
			}
		}
	}
	return nil
}

func (g *GroupConfig) validate(i, numPeriods int) error {
	prefix := fmt.Sprintf("groups[%d]", i)
	if g.Agents < 0 {
		return fmt.Errorf("%s: negative agents %d", prefix, g.Agents)
	}
	if g.Staffing != nil && g.Shifts != nil {
		return fmt.Errorf("%s: staffing and shifts are mutually exclusive", prefix)
	}
	if g.Staffing != nil && len(g.Staffing) != numPeriods {
		return fmt.Errorf("%s: staffing has %d values, want %d", prefix, len(g.Staffing), numPeriods)
	}
	return nil
}

func (tc *TypeConfig) validate(k, numGroups, numPeriods int) error {
	prefix := fmt.Sprintf("types[%d]", k)
	if tc.ArrivalRates != nil {
		if err := tc.ArrivalRates.ValidateNonNegative(prefix+".arrival_rates", numPeriods); err != nil {
			return err
		}
		for p, r := range tc.ArrivalRates {
			if math.IsInf(r, 0) {
				return fmt.Errorf("%s.arrival_rates[%d]: infinite rate", prefix, p)
			}
		}
	}
	if len(tc.ServiceByGroup) > 0 && len(tc.ServiceByGroup) != numGroups {
		return fmt.Errorf("%s.service_by_group: %d entries, want %d", prefix, len(tc.ServiceByGroup), numGroups)
	}
	dists := map[string]*DistConfig{"patience": tc.Patience, "service": &tc.Service,
		"conference": tc.Conference, "pre_service_no_conf": tc.PreServiceNoConf, "transfer_time": tc.TransferTime}
	for i := range tc.ServiceByGroup {
		dists[fmt.Sprintf("service_by_group[%d]", i)] = &tc.ServiceByGroup[i]
	}
	for name, d := range dists {
		if d == nil {
			continue
		}
		if err := d.validate(); err != nil {
			return fmt.Errorf("%s.%s: %w", prefix, name, err)
		}
	}
	return nil
}

func (d *DistConfig) validate() error {
	if !validDists[d.Dist] {
		return fmt.Errorf("unknown distribution %q; valid: constant, exponential, lognormal, gamma", d.Dist)
	}
	if math.IsNaN(d.Mean) || d.Mean < 0 {
		return fmt.Errorf("mean must be non-negative, got %v", d.Mean)
	}
	switch d.Dist {
	case "exponential":
		if !(d.Mean > 0) || math.IsInf(d.Mean, 1) {
			return fmt.Errorf("exponential mean must be positive and finite, got %v", d.Mean)
		}
	case "lognormal", "gamma":
		if !(d.Mean > 0) || math.IsInf(d.Mean, 1) || !(d.StdDev > 0) || math.IsInf(d.StdDev, 1) {
			return fmt.Errorf("%s needs a positive finite mean and stddev, got %v and %v", d.Dist, d.Mean, d.StdDev)
		}
	}
	return nil
}
