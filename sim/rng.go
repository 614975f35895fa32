package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// === SimulationKey ===

// SimulationKey identifies a reproducible replication. Two replications with
// the same key and identical configuration produce identical results.
type SimulationKey struct {
	Seed        int64
	Replication int
}

// NewSimulationKey creates a SimulationKey for replication r of seed.
func NewSimulationKey(seed int64, r int) SimulationKey {
	return SimulationKey{Seed: seed, Replication: r}
}

// === Subsystem Constants ===

const (
	// SubsystemArrivals drives inter-arrival times.
	SubsystemArrivals = "arrivals"
	// SubsystemServiceTimes drives service, conference and transfer times.
	SubsystemServiceTimes = "service-times"
	// SubsystemPatience drives patience times.
	SubsystemPatience = "patience"
	// SubsystemDecisions draws the per-call decision uniforms.
	SubsystemDecisions = "decisions"
	// SubsystemDialer drives dialer type selection and reach outcomes.
	SubsystemDialer = "dialer"
	// SubsystemStaffing drives the per-shift headcount draws.
	SubsystemStaffing = "staffing"
)

// SubsystemType returns a per-call-type subsystem name, keeping streams of
// different types independent under common random numbers.
func SubsystemType(base string, k int) string {
	return fmt.Sprintf("%s_type_%d", base, k)
}

// RandomStream is a uniform [0,1) source.
type RandomStream interface {
	Float64() float64
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated random streams per logical
// source.
//
// Derivation: PCG(seed XOR fnv1a64(name), replication).
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded stream for the named
// subsystem. The same name always returns the same *rand.Rand (cached).
// The returned value also satisfies rand.Source for gonum distributions.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	seed := uint64(p.key.Seed) ^ fnv1a64(name)
	rng := rand.New(rand.NewPCG(seed, uint64(p.key.Replication)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
