package callcenter

import (
	"maps"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/contactsim/contactsim/sim"
)

// stream is a named random stream rebound to a fresh source at the start of
// every replication. Components keep the same *stream for the lifetime of
// the model.
type stream struct {
	name string
	src  *rand.Rand
}

func (s *stream) Float64() float64    { return s.src.Float64() }
func (s *stream) Uint64() uint64      { return s.src.Uint64() }
func (s *stream) ExpFloat64() float64 { return s.src.ExpFloat64() }

// streams hands out one stream per subsystem name.
type streams map[string]*stream

func (ss streams) get(name string) *stream {
	s, ok := ss[name]
	if !ok {
		s = &stream{name: name}
		ss[name] = s
	}
	return s
}

// bind points every stream at its subsystem of rng.
func (ss streams) bind(rng *sim.PartitionedRNG) {
	for name, s := range ss {
		s.src = rng.ForSubsystem(name)
	}
}

// sampler draws a random duration.
type sampler interface {
	Rand() float64
}

type constant float64

func (c constant) Rand() float64 { return float64(c) }

func newSampler(d DistConfig, src rand.Source) sampler {
	switch d.Dist {
	case "exponential":
		return distuv.Exponential{Rate: 1 / d.Mean, Src: src}
	case "lognormal":
		sigma2 := math.Log1p(d.StdDev * d.StdDev / (d.Mean * d.Mean))
		return distuv.LogNormal{Mu: math.Log(d.Mean) - sigma2/2, Sigma: math.Sqrt(sigma2), Src: src}
	case "gamma":
		v := d.StdDev * d.StdDev
		return distuv.Gamma{Alpha: d.Mean * d.Mean / v, Beta: d.Mean / v, Src: src}
	}
	return constant(d.Mean)
}

// typeSamplers draws the random times of one call type.
type typeSamplers struct {
	patience     sampler
	service      []sampler // one per group, or a single one for all
	conference   sampler
	preNoConf    sampler
	transferTime sampler
	attributes   map[string]any
}

// contactFactory creates calls with every random attribute drawn up front.
type contactFactory struct {
	sched     sim.Scheduler
	layout    sim.PeriodLayout
	decisions *stream
	types     []typeSamplers
}

func newContactFactory(s sim.Scheduler, layout sim.PeriodLayout, cfg []TypeConfig, ss streams) *contactFactory {
	f := &contactFactory{sched: s, layout: layout, decisions: ss.get(sim.SubsystemDecisions)}
	for k := range cfg {
		tc := &cfg[k]
		times := ss.get(sim.SubsystemType(sim.SubsystemServiceTimes, k))
		ts := typeSamplers{patience: constant(math.Inf(1)), attributes: tc.Attributes}
		if tc.Patience != nil {
			ts.patience = newSampler(*tc.Patience, ss.get(sim.SubsystemType(sim.SubsystemPatience, k)))
		}
		if len(tc.ServiceByGroup) > 0 {
			for _, d := range tc.ServiceByGroup {
				ts.service = append(ts.service, newSampler(d, times))
			}
		} else {
			ts.service = []sampler{newSampler(tc.Service, times)}
		}
		if tc.Conference != nil {
			ts.conference = newSampler(*tc.Conference, times)
		}
		if tc.PreServiceNoConf != nil {
			ts.preNoConf = newSampler(*tc.PreServiceNoConf, times)
		}
		if tc.TransferTime != nil {
			ts.transferTime = newSampler(*tc.TransferTime, times)
		}
		f.types = append(f.types, ts)
	}
	return f
}

// NewCall implements sim.ContactFactory.
func (f *contactFactory) NewCall(k int) *sim.Call {
	now := f.sched.Now()
	c := sim.NewCall(k, now)
	c.ArrivalPeriod = f.layout.Period(now)
	c.Uniforms = sim.Uniforms{
		Transfer:     f.decisions.Float64(),
		TransferWait: f.decisions.Float64(),
		VirtualQueue: f.decisions.Float64(),
		Callback:     f.decisions.Float64(),
	}
	ts := &f.types[k]
	c.PatienceTime = ts.patience.Rand()
	c.ServiceTimes = make([]float64, len(ts.service))
	for i, s := range ts.service {
		c.ServiceTimes[i] = s.Rand()
	}
	c.ConferenceTimes = draw(ts.conference)
	c.PreServiceTimesNoConf = draw(ts.preNoConf)
	c.TransferTimes = draw(ts.transferTime)
	if ts.attributes != nil {
		c.Attributes = maps.Clone(ts.attributes)
	}
	return c
}

func draw(s sampler) []float64 {
	if s == nil {
		return nil
	}
	return []float64{s.Rand()}
}
