package sim

import (
	"testing"
)

func TestPartitionedRNG_SameKeySameSequence(t *testing.T) {
	a := NewPartitionedRNG(NewSimulationKey(42, 3)).ForSubsystem(SubsystemArrivals)
	b := NewPartitionedRNG(NewSimulationKey(42, 3)).ForSubsystem(SubsystemArrivals)

	for i := range 100 {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
	}
}

func TestPartitionedRNG_StreamsAreIsolated(t *testing.T) {
	// GIVEN two generators of the same key
	p1 := NewPartitionedRNG(NewSimulationKey(7, 0))
	p2 := NewPartitionedRNG(NewSimulationKey(7, 0))

	// WHEN one draws from an extra subsystem in between
	p1.ForSubsystem(SubsystemPatience).Float64()
	x := p1.ForSubsystem(SubsystemServiceTimes).Float64()
	y := p2.ForSubsystem(SubsystemServiceTimes).Float64()

	// THEN the other subsystem's stream is unaffected
	if x != y {
		t.Errorf("service-time stream changed by patience draws: %v vs %v", x, y)
	}
}

func TestPartitionedRNG_KeysDiffer(t *testing.T) {
	draw := func(key SimulationKey, name string) uint64 {
		return NewPartitionedRNG(key).ForSubsystem(name).Uint64()
	}
	base := draw(NewSimulationKey(1, 0), SubsystemDecisions)
	if base == draw(NewSimulationKey(1, 1), SubsystemDecisions) {
		t.Error("replications share a stream")
	}
	if base == draw(NewSimulationKey(2, 0), SubsystemDecisions) {
		t.Error("seeds share a stream")
	}
	if base == draw(NewSimulationKey(1, 0), SubsystemDialer) {
		t.Error("subsystems share a stream")
	}
}

func TestPartitionedRNG_CachesStreams(t *testing.T) {
	p := NewPartitionedRNG(NewSimulationKey(5, 2))
	if p.ForSubsystem(SubsystemStaffing) != p.ForSubsystem(SubsystemStaffing) {
		t.Error("ForSubsystem returned a new stream for the same name")
	}
	if p.Key() != (SimulationKey{Seed: 5, Replication: 2}) {
		t.Errorf("Key: got %+v", p.Key())
	}
}

func TestSubsystemType(t *testing.T) {
	if got := SubsystemType(SubsystemArrivals, 3); got != "arrivals_type_3" {
		t.Errorf("SubsystemType = %q", got)
	}
}
