package season

import (
	"math"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/pace"
)

// Fallback values when a pre-race row lacks the column.
const (
	fallbackDegSoft   = 0.16
	fallbackDegMedium = 0.11
	fallbackDegHard   = 0.08
	fallbackFuel      = 0.95
	fallbackTraffic   = 0.5
	fallbackRain      = 0.05
	maxRainIndex      = 2.0
)

// ConditionsFromRow derives the simulator inputs from a pre-race feature row.
// Practice-session columns take precedence over qualifying, then the generic
// column, then a fixed fallback. Rain combines the vision index with the
// forecast precipitation (mm/5), capped at 2.
func ConditionsFromRow(r pace.FeatureRow) sim.RaceConditions {
	rain := r.ValueOr(fallbackRain, "cv_rain_index") + r.ValueOr(0, "weather_precip_mm")/5.0
	return sim.RaceConditions{
		Degradation: map[sim.Compound]float64{
			sim.CompoundSoft:   r.ValueOr(fallbackDegSoft, "fp2_deg_soft", "quali_deg_soft", "deg_soft"),
			sim.CompoundMedium: r.ValueOr(fallbackDegMedium, "fp2_deg_medium", "quali_deg_medium", "deg_medium"),
			sim.CompoundHard:   r.ValueOr(fallbackDegHard, "fp2_deg_hard", "quali_deg_hard", "deg_hard"),
		},
		FuelLoadProxy: r.ValueOr(fallbackFuel, "fp2_fuel_load_proxy", "quali_fuel_load_proxy", "fuel_load_proxy"),
		TrafficIndex:  r.ValueOr(fallbackTraffic, "cv_traffic_index"),
		RainIndex:     math.Min(maxRainIndex, rain),
	}
}
