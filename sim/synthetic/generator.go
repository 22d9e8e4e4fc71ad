// Package synthetic builds deterministic feature tables for demo and
// permissive runs when no prepared training or pre-race data is available.
//
// Every event draws one set of session conditions shared by all entrants;
// entrants then differ by their configured pace offset plus a small
// per-driver practice noise. Values follow the same column names as the
// prepared tables, so a synthetic table can stand in for either input.
package synthetic

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/pace"
)

// Column names shared with prepared feature tables.
const (
	ColFP2Pace      = "fp2_avg_lap_sec"
	ColQualiBest    = "quali_best_lap_sec"
	ColDegSoft      = "deg_soft"
	ColDegMedium    = "deg_medium"
	ColDegHard      = "deg_hard"
	ColFuelProxy    = "fuel_load_proxy"
	ColTemp         = "weather_temp_c"
	ColHumidity     = "weather_humidity"
	ColPrecip       = "weather_precip_mm"
	ColWind         = "weather_wind_kmh"
	ColPressure     = "weather_pressure_hpa"
	ColTraffic      = "cv_traffic_index"
	ColGrip         = "cv_grip_index"
	ColRain         = "cv_rain_index"
	ColCompoundBias = "compound_bias"
	ColTargetPace   = "target_race_pace"
	ColTargetPoints = "target_points"
)

// Options control table shape.
type Options struct {
	Events    int              // training events
	FirstYear int              // training years cycle through FirstYear..FirstYear+4
	Year      int              // season stamped on pre-race rows
	Team      string           // used when Field is empty
	Driver    string           // used when Field is empty
	Field     []sim.FieldEntry // entrants; PaceOffset shifts practice pace
}

// DefaultOptions returns a 120-event, single-driver setup.
func DefaultOptions() Options {
	return Options{Events: 120, FirstYear: 2020, Year: 2025, Team: "MCLAREN", Driver: "NOR"}
}

func (o Options) entrants() []sim.FieldEntry {
	if len(o.Field) > 0 {
		return o.Field
	}
	return []sim.FieldEntry{{Driver: o.Driver, Team: o.Team}}
}

// Schema returns the synthetic column set, with or without target columns.
func Schema(withTargets bool) pace.Schema {
	s := pace.Schema{
		{Name: ColFP2Pace, Kind: pace.KindNumeric},
		{Name: ColQualiBest, Kind: pace.KindNumeric},
		{Name: ColDegSoft, Kind: pace.KindNumeric},
		{Name: ColDegMedium, Kind: pace.KindNumeric},
		{Name: ColDegHard, Kind: pace.KindNumeric},
		{Name: ColFuelProxy, Kind: pace.KindNumeric},
		{Name: ColTemp, Kind: pace.KindNumeric},
		{Name: ColHumidity, Kind: pace.KindNumeric},
		{Name: ColPrecip, Kind: pace.KindNumeric},
		{Name: ColWind, Kind: pace.KindNumeric},
		{Name: ColPressure, Kind: pace.KindNumeric},
		{Name: ColTraffic, Kind: pace.KindNumeric},
		{Name: ColGrip, Kind: pace.KindNumeric},
		{Name: ColRain, Kind: pace.KindNumeric},
		{Name: ColCompoundBias, Kind: pace.KindCategorical},
	}
	if withTargets {
		s = append(s,
			pace.Column{Name: ColTargetPace, Kind: pace.KindNumeric},
			pace.Column{Name: ColTargetPoints, Kind: pace.KindNumeric},
		)
	}
	return s
}

// Training returns a labelled table of opts.Events events with one row per entrant.
func Training(key sim.SimulationKey, opts Options) *pace.FeatureTable {
	rng := sim.NewPartitionedRNG(key).ForSubsystem(sim.SubsystemSynthetic)
	t := &pace.FeatureTable{Schema: Schema(true)}
	for i := 0; i < opts.Events; i++ {
		ev := drawEvent(rng)
		name := fmt.Sprintf("Event_%02d", i+1)
		for _, e := range opts.entrants() {
			row := ev.row(rng, e, opts.FirstYear+i%5, name)
			pacev := targetPace(row) + rng.NormFloat64()*0.35
			row.Numeric[ColTargetPace] = pacev
			row.Numeric[ColTargetPoints] = targetPoints(pacev, ev, rng)
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// Inference returns an unlabelled pre-race table with one row per entrant
// for every calendar race. Event names follow the calendar so lap-count
// hints still match.
func Inference(key sim.SimulationKey, opts Options, calendar []sim.Race) *pace.FeatureTable {
	rng := sim.NewPartitionedRNG(key).ForSubsystem(sim.SubsystemSyntheticInference)
	t := &pace.FeatureTable{Schema: Schema(false)}
	for _, r := range calendar {
		ev := drawEvent(rng)
		name := r.Name
		if name == "" {
			name = r.ID
		}
		for _, e := range opts.entrants() {
			t.Rows = append(t.Rows, ev.row(rng, e, opts.Year, name))
		}
	}
	return t
}

// Calendar returns an n-round placeholder season (Round_01 ...). Lap counts
// are left to the caller's defaults.
func Calendar(n int) []sim.Race {
	out := make([]sim.Race, n)
	for i := range out {
		out[i] = sim.Race{
			ID:    fmt.Sprintf("round_%02d", i+1),
			Round: i + 1,
			Name:  fmt.Sprintf("Round_%02d", i+1),
		}
	}
	return out
}

// event holds the conditions shared by every entrant at one weekend.
type event struct {
	temp, humidity, wind, precip, pressure float64
	fp2                                    float64
	degSoft, degMedium, degHard            float64
	fuel, traffic, grip, rain              float64
	compound                               sim.Compound
}

var aggressiveness = map[sim.Compound]float64{
	sim.CompoundSoft:   1.0,
	sim.CompoundMedium: 0.65,
	sim.CompoundHard:   0.3,
}

func drawEvent(rng *rand.Rand) event {
	var ev event
	ev.temp = normal(rng, 29, 7)
	ev.humidity = clip(normal(rng, 56, 12), 20, 95)
	ev.wind = clip(normal(rng, 11, 4), 1, 28)
	ev.precip = math.Max(0, normal(rng, 0.5, 1.1))
	ev.fp2 = normal(rng, 90.5, 1.8)
	ev.degSoft = clip(normal(rng, 0.18, 0.07), 0.04, 0.42)
	ev.degMedium = clip(normal(rng, 0.12, 0.05), 0.03, 0.3)
	ev.degHard = clip(normal(rng, 0.08, 0.04), 0.01, 0.2)
	ev.fuel = clip(normal(rng, 0.95, 0.35), 0.2, 2.2)
	ev.traffic = clip(normal(rng, 0.5, 0.2), 0.05, 1.5)
	ev.grip = clip(normal(rng, 1.0, 0.15), 0.65, 1.5)
	ev.rain = clip(ev.precip/3.0+normal(rng, 0.05, 0.08), 0, 1.4)
	ev.compound = sim.DefaultCompounds[rng.IntN(len(sim.DefaultCompounds))]
	ev.pressure = 1012.0 + normal(rng, 0, 8)
	return ev
}

// row draws the entrant-specific practice values and fills the shared ones.
func (ev event) row(rng *rand.Rand, e sim.FieldEntry, year int, name string) pace.FeatureRow {
	fp2 := ev.fp2 + e.PaceOffset + normal(rng, 0, 0.15)
	q := fp2 - math.Abs(normal(rng, 1.2, 0.6))
	return pace.FeatureRow{
		Year:   year,
		Event:  name,
		Driver: e.Driver,
		Team:   e.Team,
		Numeric: map[string]float64{
			ColFP2Pace:   fp2,
			ColQualiBest: q,
			ColDegSoft:   ev.degSoft,
			ColDegMedium: ev.degMedium,
			ColDegHard:   ev.degHard,
			ColFuelProxy: ev.fuel,
			ColTemp:      ev.temp,
			ColHumidity:  ev.humidity,
			ColPrecip:    ev.precip,
			ColWind:      ev.wind,
			ColPressure:  ev.pressure,
			ColTraffic:   ev.traffic,
			ColGrip:      ev.grip,
			ColRain:      ev.rain,
		},
		Categorical: map[string]string{ColCompoundBias: string(ev.compound)},
	}
}

// targetPace is the noise-free race pace of a row.
func targetPace(r pace.FeatureRow) float64 {
	n := r.Numeric
	return 83.2 +
		0.62*n[ColFP2Pace] -
		0.35*n[ColQualiBest] +
		1.2*n[ColDegSoft] +
		0.8*n[ColDegMedium] +
		0.5*n[ColDegHard] +
		0.45*n[ColFuelProxy] +
		0.65*n[ColTraffic] -
		1.7*n[ColGrip] +
		1.8*n[ColRain] +
		0.02*n[ColTemp] +
		0.01*n[ColHumidity] +
		0.015*n[ColWind]
}

func targetPoints(racePace float64, ev event, rng *rand.Rand) float64 {
	p := 25 - 3.1*(racePace-89.0) + 1.4*aggressiveness[ev.compound] - 1.8*ev.rain + normal(rng, 0, 2.0)
	return clip(p, 0, 26)
}

func normal(rng *rand.Rand, mean, sd float64) float64 {
	return mean + sd*rng.NormFloat64()
}

func clip(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
