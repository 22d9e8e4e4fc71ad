package sim

import (
	"fmt"
	"strconv"
	"strings"
)

// Compound is a tyre compound identifier, upper-case by convention.
type Compound string

const (
	CompoundSoft         Compound = "SOFT"
	CompoundMedium       Compound = "MEDIUM"
	CompoundHard         Compound = "HARD"
	CompoundIntermediate Compound = "INTERMEDIATE"
	CompoundWet          Compound = "WET"
)

// DefaultCompounds are the dry compounds nominated for a typical weekend.
var DefaultCompounds = []Compound{CompoundSoft, CompoundMedium, CompoundHard}

// NormalizeCompound upper-cases and trims a compound name.
func NormalizeCompound(s string) Compound {
	return Compound(strings.ToUpper(strings.TrimSpace(s)))
}

// Stint is a continuous run on one compound.
type Stint struct {
	Compound Compound `json:"compound"`
	Laps     int      `json:"laps"`
}

// Candidate is one pit/tyre plan for a race. Immutable once generated.
type Candidate struct {
	Index      int     `json:"index"` // generation order, used as the final tie-break
	Stints     []Stint `json:"stints"`
	Degenerate bool    `json:"degenerate"`
}

// Key identifies a candidate by its compound sequence and stint lengths,
// e.g. "MEDIUM:29>HARD:29".
func (c Candidate) Key() string {
	parts := make([]string, len(c.Stints))
	for i, s := range c.Stints {
		parts[i] = string(s.Compound) + ":" + strconv.Itoa(s.Laps)
	}
	return strings.Join(parts, ">")
}

// Name is the human-readable label used in reports, e.g. "ONE_STOP_MEDIUM_HARD_L29".
func (c Candidate) Name() string {
	var b strings.Builder
	switch c.Stops() {
	case 0:
		b.WriteString("NO_STOP")
	case 1:
		b.WriteString("ONE_STOP")
	case 2:
		b.WriteString("TWO_STOP")
	default:
		fmt.Fprintf(&b, "%d_STOP", c.Stops())
	}
	for _, s := range c.Stints {
		b.WriteString("_")
		b.WriteString(string(s.Compound))
	}
	pits := c.PitLaps()
	if len(pits) > 0 {
		b.WriteString("_L")
		for i, p := range pits {
			if i > 0 {
				b.WriteString("_")
			}
			b.WriteString(strconv.Itoa(p))
		}
	}
	return b.String()
}

// Stops returns the number of planned pit stops.
func (c Candidate) Stops() int {
	if len(c.Stints) == 0 {
		return 0
	}
	return len(c.Stints) - 1
}

// TotalLaps returns the summed stint lengths.
func (c Candidate) TotalLaps() int {
	total := 0
	for _, s := range c.Stints {
		total += s.Laps
	}
	return total
}

// PitLaps returns the lap at the end of which each stop is taken.
func (c Candidate) PitLaps() []int {
	if len(c.Stints) < 2 {
		return nil
	}
	out := make([]int, 0, len(c.Stints)-1)
	lap := 0
	for _, s := range c.Stints[:len(c.Stints)-1] {
		lap += s.Laps
		out = append(out, lap)
	}
	return out
}

// Compounds returns the compound sequence.
func (c Candidate) Compounds() []Compound {
	out := make([]Compound, len(c.Stints))
	for i, s := range c.Stints {
		out[i] = s.Compound
	}
	return out
}

// Sequence returns the compound order without stint lengths, e.g. "MEDIUM>HARD".
func (c Candidate) Sequence() string {
	parts := make([]string, len(c.Stints))
	for i, s := range c.Stints {
		parts[i] = string(s.Compound)
	}
	return strings.Join(parts, ">")
}

// DistinctCompounds counts the different compounds used.
func (c Candidate) DistinctCompounds() int {
	seen := make(map[Compound]struct{}, len(c.Stints))
	for _, s := range c.Stints {
		seen[s.Compound] = struct{}{}
	}
	return len(seen)
}

// Plan renders the candidate as driver-facing instructions.
func (c Candidate) Plan() string {
	if len(c.Stints) == 0 {
		return "No strategy data"
	}
	pits := c.PitLaps()
	if len(pits) == 0 {
		return fmt.Sprintf("Start on %s and run full race (0 planned stops)", c.Stints[0].Compound)
	}
	steps := []string{fmt.Sprintf("Start on %s", c.Stints[0].Compound)}
	for i, p := range pits {
		steps = append(steps, fmt.Sprintf("Pit on lap %d -> %s", p, c.Stints[i+1].Compound))
	}
	return strings.Join(steps, "; ")
}

// Race is one calendar event.
type Race struct {
	ID      string `yaml:"id" json:"id"`
	Round   int    `yaml:"round" json:"round"`
	Name    string `yaml:"name" json:"name"`
	Circuit string `yaml:"circuit,omitempty" json:"circuit,omitempty"`
	Laps    int    `yaml:"laps,omitempty" json:"laps"`
}

// RaceConditions are the engineered per-race inputs to the simulator.
type RaceConditions struct {
	Degradation   map[Compound]float64 `json:"degradation"` // seconds lost per lap of tyre age
	FuelLoadProxy float64              `json:"fuel_load_proxy"`
	TrafficIndex  float64              `json:"traffic_index"`
	RainIndex     float64              `json:"rain_index"`
}

// DegradationFor returns the degradation rate for a compound, 0.1 s/lap when unknown.
func (rc RaceConditions) DegradationFor(c Compound) float64 {
	if v, ok := rc.Degradation[c]; ok {
		return v
	}
	return 0.1
}

// FieldEntry is one car in the championship field.
type FieldEntry struct {
	Driver string `yaml:"driver" json:"driver" validate:"required"`
	Team   string `yaml:"team" json:"team" validate:"required"`
	// PaceOffset is the per-lap gap to the target driver used when no pace
	// prediction is available for this entrant.
	PaceOffset float64 `yaml:"pace_offset" json:"pace_offset"`
}

// PacePrediction is a predicted base lap time with residual-based uncertainty.
type PacePrediction struct {
	Driver      string  `json:"driver"`
	Team        string  `json:"team"`
	BaseLapTime float64 `json:"base_lap_time"`
	Uncertainty float64 `json:"uncertainty"` // standard deviation, seconds per lap
}

// ScoringTable maps finishing position (index 0 = P1) to championship points.
type ScoringTable []int

// DefaultScoringTable is the 25-18-15-12-10-8-6-4-2-1 points system.
var DefaultScoringTable = ScoringTable{25, 18, 15, 12, 10, 8, 6, 4, 2, 1}

// Points returns the points for a 1-based finishing position.
func (s ScoringTable) Points(position int) int {
	if position < 1 || position > len(s) {
		return 0
	}
	return s[position-1]
}

// Mode selects strict (locked) or permissive (demo) behaviour.
type Mode string

const (
	ModeStrict     Mode = "strict"
	ModePermissive Mode = "permissive"
)

// validModes maps accepted mode strings.
var validModes = map[Mode]bool{
	ModeStrict:     true,
	ModePermissive: true,
}

// IsValidMode reports whether m is a recognized run mode.
func IsValidMode(m string) bool {
	return validModes[Mode(m)]
}
