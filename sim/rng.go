package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible run.
// Two runs with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemSplit drives the pace model's train/validation split.
	SubsystemSplit = "split"

	// SubsystemSynthetic drives synthetic training table generation.
	SubsystemSynthetic = "synthetic"

	// SubsystemSyntheticInference drives synthetic pre-race table generation.
	SubsystemSyntheticInference = "synthetic_inference"

	// ScopeRace is the draw scope for baseline race simulation.
	ScopeRace = "race"

	// ScopeChampionship is the draw scope for season resamples.
	ScopeChampionship = "championship"
)

// ScopeScenario returns the draw scope for a contingency scenario.
func ScopeScenario(key string) string {
	return fmt.Sprintf("scenario_%s", key)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: PCG(masterSeed XOR fnv1a64(subsystemName), fnv1a64(subsystemName)).
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
// Parallel workers use DrawStream instead.
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

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	h := fnv1a64(name)
	rng := rand.New(rand.NewPCG(uint64(p.key)^h, h))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// === Draw streams ===

// DrawStream returns a fresh RNG for one draw, derived from the run key, a scope
// (race, scenario, championship), a scope-local identifier such as
// "<race>/<candidate key>", and the draw index.
//
// The result depends only on its arguments, so draws may be evaluated in any
// order and on any goroutine.
func DrawStream(key SimulationKey, scope, id string, index int) *rand.Rand {
	h := fnv1a64(scope + "\x00" + id)
	return rand.New(rand.NewPCG(uint64(key)^h, mix64(uint64(index))^h))
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// mix64 is the splitmix64 finalizer; it spreads consecutive draw indices
// across the PCG sequence space.
func mix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
