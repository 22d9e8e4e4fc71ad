package sim

// SimulationConfig groups race simulator parameters.
type SimulationConfig struct {
	Draws   int `yaml:"draws" json:"draws" validate:"min=1"`     // draws per candidate
	Workers int `yaml:"workers" json:"workers" validate:"min=0"` // candidate worker pool size (0 = GOMAXPROCS)

	PitLaneLossSeconds  float64 `yaml:"pit_lane_loss_seconds" json:"pit_lane_loss_seconds" validate:"gte=0"`
	PitLossSigmaSeconds float64 `yaml:"pit_loss_sigma_seconds" json:"pit_loss_sigma_seconds" validate:"gte=0"`

	SafetyCarRate          float64 `yaml:"safety_car_rate" json:"safety_car_rate" validate:"gte=0"` // expected windows per race
	SafetyCarMinLaps       int     `yaml:"safety_car_min_laps" json:"safety_car_min_laps" validate:"min=1"`
	SafetyCarMaxLaps       int     `yaml:"safety_car_max_laps" json:"safety_car_max_laps" validate:"gtefield=SafetyCarMinLaps"`
	SafetyCarLapFactor     float64 `yaml:"safety_car_lap_factor" json:"safety_car_lap_factor" validate:"gte=1"`
	SafetyCarPitDiscountLo float64 `yaml:"safety_car_pit_discount_min" json:"safety_car_pit_discount_min" validate:"gt=0,lte=1"`
	SafetyCarPitDiscountHi float64 `yaml:"safety_car_pit_discount_max" json:"safety_car_pit_discount_max" validate:"gtefield=SafetyCarPitDiscountLo,lte=1"`
	SafetyCarPitSlackLaps  int     `yaml:"safety_car_pit_slack_laps" json:"safety_car_pit_slack_laps" validate:"min=0"`
	GapCompression         float64 `yaml:"gap_compression" json:"gap_compression" validate:"gte=0,lte=1"`

	WeatherShiftProbability   float64 `yaml:"weather_shift_probability" json:"weather_shift_probability" validate:"gte=0,lte=1"`
	WeatherPaceFactor         float64 `yaml:"weather_pace_factor" json:"weather_pace_factor" validate:"gte=0"`
	WeatherUncertaintySeconds float64 `yaml:"weather_uncertainty_seconds" json:"weather_uncertainty_seconds" validate:"gte=0"`

	TrafficLossPerLap         float64 `yaml:"traffic_loss_per_lap" json:"traffic_loss_per_lap" validate:"gte=0"`
	TrafficSigmaPerLap        float64 `yaml:"traffic_sigma_per_lap" json:"traffic_sigma_per_lap" validate:"gte=0"`
	TrafficUncertaintySeconds float64 `yaml:"traffic_uncertainty_seconds" json:"traffic_uncertainty_seconds" validate:"gte=0"`
}

// DefaultSimulationConfig returns the calibrated defaults.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Draws:                     1000,
		PitLaneLossSeconds:        21.5,
		PitLossSigmaSeconds:       0.8,
		SafetyCarRate:             0.6,
		SafetyCarMinLaps:          3,
		SafetyCarMaxLaps:          5,
		SafetyCarLapFactor:        1.4,
		SafetyCarPitDiscountLo:    0.55,
		SafetyCarPitDiscountHi:    0.75,
		SafetyCarPitSlackLaps:     5,
		GapCompression:            0.5,
		WeatherShiftProbability:   0.1,
		WeatherPaceFactor:         0.04,
		WeatherUncertaintySeconds: 0.35,
		TrafficLossPerLap:         0.1,
		TrafficSigmaPerLap:        0.08,
		TrafficUncertaintySeconds: 0.4,
	}
}

// StintLimit bounds the length of a stint on one compound. Max 0 = unbounded.
type StintLimit struct {
	Min int `yaml:"min" json:"min" validate:"min=0"`
	Max int `yaml:"max" json:"max" validate:"min=0"`
}

// CandidateConstraints configure strategy enumeration.
type CandidateConstraints struct {
	Compounds        []Compound              `yaml:"compounds" json:"compounds" validate:"min=1,dive,required"`
	MinStintLaps     int                     `yaml:"min_stint_laps" json:"min_stint_laps" validate:"min=1"`
	MaxStintLaps     int                     `yaml:"max_stint_laps" json:"max_stint_laps" validate:"min=0"` // 0 = unbounded
	CompoundLimits   map[Compound]StintLimit `yaml:"compound_limits,omitempty" json:"compound_limits,omitempty" validate:"dive"`
	MaxStops         int                     `yaml:"max_stops" json:"max_stops" validate:"min=1,max=2"`
	OneStopFractions []float64               `yaml:"one_stop_fractions" json:"one_stop_fractions" validate:"dive,gt=0,lt=1"`
	TwoStopFractions [][]float64             `yaml:"two_stop_fractions" json:"two_stop_fractions" validate:"dive,len=2,dive,gt=0,lt=1"`
}

// DefaultCandidateConstraints returns the enumeration defaults.
func DefaultCandidateConstraints() CandidateConstraints {
	return CandidateConstraints{
		Compounds:        append([]Compound(nil), DefaultCompounds...),
		MinStintLaps:     5,
		MaxStops:         2,
		OneStopFractions: []float64{0.38, 0.5, 0.62},
		TwoStopFractions: [][]float64{{0.32, 0.67}},
	}
}

// StintWindow returns the effective [min, max] stint length for a compound.
// max 0 means unbounded.
func (c CandidateConstraints) StintWindow(compound Compound) (int, int) {
	lo, hi := c.MinStintLaps, c.MaxStintLaps
	if lim, ok := c.CompoundLimits[compound]; ok {
		if lim.Min > 0 {
			lo = lim.Min
		}
		if lim.Max > 0 {
			hi = lim.Max
		}
	}
	return lo, hi
}

// StintLegal reports whether a stint respects its compound's window.
func (c CandidateConstraints) StintLegal(s Stint) bool {
	lo, hi := c.StintWindow(s.Compound)
	if s.Laps < lo {
		return false
	}
	return hi == 0 || s.Laps <= hi
}

// SelectionWeights weight the composite score components. All non-negative.
type SelectionWeights struct {
	Points     float64 `yaml:"points" json:"points" validate:"gte=0"`
	Position   float64 `yaml:"position" json:"position" validate:"gte=0"`
	Downside   float64 `yaml:"downside" json:"downside" validate:"gte=0"`
	Robustness float64 `yaml:"robustness" json:"robustness" validate:"gte=0"`
}

// SelectionConfig groups strategy selection parameters.
type SelectionConfig struct {
	Weights       SelectionWeights `yaml:"weights" json:"weights"`
	Contingencies int              `yaml:"contingencies" json:"contingencies" validate:"min=0"` // fallbacks surfaced in reports
}

// DefaultSelectionConfig returns the selection defaults.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		Weights:       SelectionWeights{Points: 1.0, Position: 0.5, Downside: 0.25, Robustness: 0.02},
		Contingencies: 2,
	}
}

// ChampionshipConfig groups season aggregation parameters.
type ChampionshipConfig struct {
	Resamples      int            `yaml:"resamples" json:"resamples" validate:"min=1"`
	Scoring        ScoringTable   `yaml:"scoring" json:"scoring" validate:"min=1,dive,gte=0"`
	StartingPoints map[string]int `yaml:"starting_points,omitempty" json:"starting_points,omitempty"`
}

// DefaultChampionshipConfig returns the aggregation defaults.
func DefaultChampionshipConfig() ChampionshipConfig {
	return ChampionshipConfig{
		Resamples: 2000,
		Scoring:   append(ScoringTable(nil), DefaultScoringTable...),
	}
}

// ContingencyConfig groups scenario stress-test parameters.
type ContingencyConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	DrawFraction float64 `yaml:"draw_fraction" json:"draw_fraction" validate:"gt=0,lte=1"`
	MinDraws     int     `yaml:"min_draws" json:"min_draws" validate:"min=1"`
}

// DefaultContingencyConfig returns the scenario defaults.
func DefaultContingencyConfig() ContingencyConfig {
	return ContingencyConfig{Enabled: true, DrawFraction: 0.2, MinDraws: 80}
}

// ScenarioDraws returns the draw count for a non-baseline scenario.
func (c ContingencyConfig) ScenarioDraws(baseline int) int {
	n := int(float64(baseline) * c.DrawFraction)
	if n < c.MinDraws {
		n = c.MinDraws
	}
	if n > baseline {
		n = baseline
	}
	return n
}
