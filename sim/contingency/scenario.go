// Package contingency stress-tests a race's candidates under perturbed
// conditions and labels each fallback with the situation that should
// trigger it.
package contingency

import (
	"math"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/race"
)

// BaselineKey names the unperturbed scenario.
const BaselineKey = "baseline"

// Scenario is a set of deltas applied to a race's inputs.
type Scenario struct {
	Key   string
	Label string
	// Trigger is the driver-facing reason to switch to a plan that does best
	// in this scenario. Empty for the baseline.
	Trigger string

	BaseLapDelta            float64 // seconds per lap, simulated driver only
	DegMultiplier           float64
	FuelDelta               float64
	TrafficDelta            float64
	RainDelta               float64
	PitLossDelta            float64 // seconds per stop
	SafetyCarDelta          float64 // expected extra windows per race
	WeatherUncertaintyScale float64
	TrafficUncertaintyScale float64
}

// Scenarios lists the stress tests in evaluation order.
var Scenarios = []Scenario{
	{Key: BaselineKey, Label: "Baseline", DegMultiplier: 1, WeatherUncertaintyScale: 1, TrafficUncertaintyScale: 1},
	{
		Key: "weather_change", Label: "Weather Change", Trigger: "Weather change or sudden rain",
		DegMultiplier: 1.15, TrafficDelta: 0.1, RainDelta: 0.35,
		WeatherUncertaintyScale: 1.35, TrafficUncertaintyScale: 1,
	},
	{
		Key: "engine_conservation", Label: "Engine Concern", Trigger: "Engine reliability concern",
		BaseLapDelta: 0.45, DegMultiplier: 1, FuelDelta: 0.12, PitLossDelta: 1.1, SafetyCarDelta: 0.15,
		WeatherUncertaintyScale: 1, TrafficUncertaintyScale: 1,
	},
	{
		Key: "driver_error_recovery", Label: "Driver Error Recovery", Trigger: "Driver error recovery",
		BaseLapDelta: 0.22, DegMultiplier: 1, TrafficDelta: 0.24, SafetyCarDelta: 0.25,
		WeatherUncertaintyScale: 1, TrafficUncertaintyScale: 1.3,
	},
	{
		Key: "race_chaos", Label: "Race Chaos", Trigger: "Safety car or race chaos",
		DegMultiplier: 1, TrafficDelta: 0.18, RainDelta: 0.14, SafetyCarDelta: 0.6,
		WeatherUncertaintyScale: 1.2, TrafficUncertaintyScale: 1.25,
	},
}

// Lookup returns the scenario with the given key.
func Lookup(key string) (Scenario, bool) {
	for _, s := range Scenarios {
		if s.Key == key {
			return s, true
		}
	}
	return Scenario{}, false
}

// Apply returns the race input and simulation config perturbed by the
// scenario. Inputs are not modified.
func (s Scenario) Apply(in race.Input, cfg sim.SimulationConfig) (race.Input, sim.SimulationConfig) {
	out := in
	out.BaseLapDelta = in.BaseLapDelta + s.BaseLapDelta

	cond := in.Conditions
	cond.Degradation = make(map[sim.Compound]float64, len(in.Conditions.Degradation))
	for c, v := range in.Conditions.Degradation {
		cond.Degradation[c] = math.Max(0, v*s.DegMultiplier)
	}
	cond.FuelLoadProxy = math.Max(0, cond.FuelLoadProxy+s.FuelDelta)
	cond.TrafficIndex = math.Max(0, cond.TrafficIndex+s.TrafficDelta)
	cond.RainIndex = math.Max(0, cond.RainIndex+s.RainDelta)
	out.Conditions = cond

	cfg.PitLaneLossSeconds = math.Max(5, cfg.PitLaneLossSeconds+s.PitLossDelta)
	cfg.SafetyCarRate = math.Max(0, cfg.SafetyCarRate+s.SafetyCarDelta)
	cfg.WeatherUncertaintySeconds = math.Max(0.01, cfg.WeatherUncertaintySeconds*s.WeatherUncertaintyScale)
	cfg.TrafficUncertaintySeconds = math.Max(0.01, cfg.TrafficUncertaintySeconds*s.TrafficUncertaintyScale)
	return out, cfg
}
