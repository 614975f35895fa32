package callcenter

import (
	"fmt"
	"sort"

	"github.com/contactsim/contactsim/sim"
	"github.com/contactsim/contactsim/sim/routing"
	"github.com/contactsim/contactsim/sim/virtualqueue"
)

// PredictorFactory creates a waiting time predictor; window is the
// configured history length.
type PredictorFactory func(window int) (virtualqueue.Predictor, error)

// RankFunctionFactory creates a rank function for a model with numGroups
// agent groups.
type RankFunctionFactory func(numGroups int) routing.RankFunction

// Registry holds the named plugins a model config may refer to. The driver
// creates one, registers its own plugins and passes it to NewModel.
type Registry struct {
	predictors    map[string]PredictorFactory
	rankFunctions map[string]RankFunctionFactory
	predicates    map[string]routing.Predicate
}

// NewRegistry returns a registry holding the built-in plugins.
func NewRegistry() *Registry {
	r := &Registry{
		predictors:    make(map[string]PredictorFactory),
		rankFunctions: make(map[string]RankFunctionFactory),
		predicates:    make(map[string]routing.Predicate),
	}
	for _, name := range []string{virtualqueue.PredictorLastWait, virtualqueue.PredictorMeanWait} {
		r.RegisterPredictor(name, func(window int) (virtualqueue.Predictor, error) {
			return virtualqueue.NewPredictor(name, window)
		})
	}
	r.RegisterRankFunction("least-busy", func(numGroups int) routing.RankFunction {
		return LeastBusy{NumGroups: numGroups}
	})
	r.RegisterPredicate("outbound", OutboundPredicate{})
	return r
}

// RegisterPredictor adds or replaces a predictor.
func (r *Registry) RegisterPredictor(name string, f PredictorFactory) { r.predictors[name] = f }

// RegisterRankFunction adds or replaces a rank function.
func (r *Registry) RegisterRankFunction(name string, f RankFunctionFactory) {
	r.rankFunctions[name] = f
}

// RegisterPredicate adds or replaces a condition predicate.
func (r *Registry) RegisterPredicate(name string, p routing.Predicate) { r.predicates[name] = p }

// Predictor creates the named predictor. An empty name selects last-wait.
func (r *Registry) Predictor(name string, window int) (virtualqueue.Predictor, error) {
	if name == "" {
		name = virtualqueue.PredictorLastWait
	}
	f, ok := r.predictors[name]
	if !ok {
		return nil, fmt.Errorf("unknown predictor %q; valid: %v", name, names(r.predictors))
	}
	return f(window)
}

// RankFunction creates the named rank function.
func (r *Registry) RankFunction(name string, numGroups int) (routing.RankFunction, error) {
	f, ok := r.rankFunctions[name]
	if !ok {
		return nil, fmt.Errorf("unknown rank function %q; valid: %v", name, names(r.rankFunctions))
	}
	return f(numGroups), nil
}

// Predicate returns the named predicate.
func (r *Registry) Predicate(name string) (routing.Predicate, error) {
	p, ok := r.predicates[name]
	if !ok {
		return nil, fmt.Errorf("unknown predicate %q; valid: %v", name, names(r.predicates))
	}
	return p, nil
}

func names[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LeastBusy ranks agent groups by their busy fraction, so the least loaded
// group is tried first. Every group may be ranked finitely.
type LeastBusy struct {
	NumGroups int
}

func (lb LeastBusy) AgentRanks(_ *sim.Call, state *sim.RouterState) routing.RankVector {
	v := make(routing.RankVector, lb.NumGroups)
	for i := range v {
		if i < len(state.Groups) {
			v[i] = state.Groups[i].BusyFraction()
		}
	}
	return v
}

func (lb LeastBusy) QueueRanks(c *sim.Call, state *sim.RouterState) routing.RankVector {
	return routing.Uniform(lb.NumGroups, 0)
}

func (lb LeastBusy) CanReturnFiniteRank(int) bool      { return true }
func (lb LeastBusy) CanReturnFiniteQueueRank(int) bool { return true }

// OutboundPredicate holds for calls placed by a dialer.
type OutboundPredicate struct{}

func (OutboundPredicate) Holds(c *sim.Call, _ *sim.RouterState) bool { return c.Outbound }
