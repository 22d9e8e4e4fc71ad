// Package testutil provides shared test fixtures for the strategylab
// packages: a small race field, race conditions and hand-built candidates.
package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/f1-strategy-lab/strategylab/sim"
)

// TargetDriver is the driver every fixture field is built around.
const TargetDriver = "NOR"

// Field returns n entrants. The target is first, rivals are spaced gap
// seconds per lap apart behind it (gap may be negative), and teams hold two
// cars each.
func Field(n int, base, gap float64) []sim.PacePrediction {
	out := make([]sim.PacePrediction, n)
	for i := range out {
		driver := fmt.Sprintf("D%02d", i)
		if i == 0 {
			driver = TargetDriver
		}
		out[i] = sim.PacePrediction{
			Driver:      driver,
			Team:        fmt.Sprintf("T%02d", i/2),
			BaseLapTime: base + gap*float64(i),
			Uncertainty: 0.2,
		}
	}
	return out
}

// Race returns a calendar entry with the given lap count.
func Race(id string, round, laps int) sim.Race {
	return sim.Race{ID: id, Round: round, Name: id + " Grand Prix", Laps: laps}
}

// Conditions returns typical dry-race inputs.
func Conditions() sim.RaceConditions {
	return sim.RaceConditions{
		Degradation: map[sim.Compound]float64{
			sim.CompoundSoft:   0.16,
			sim.CompoundMedium: 0.11,
			sim.CompoundHard:   0.08,
		},
		FuelLoadProxy: 0.95,
		TrafficIndex:  0.5,
		RainIndex:     0.05,
	}
}

// Candidate builds a candidate from alternating compound and lap arguments,
// e.g. Candidate(0, "MEDIUM", 29, "HARD", 29).
func Candidate(index int, parts ...any) sim.Candidate {
	c := sim.Candidate{Index: index}
	for i := 0; i+1 < len(parts); i += 2 {
		c.Stints = append(c.Stints, sim.Stint{
			Compound: sim.NormalizeCompound(parts[i].(string)),
			Laps:     parts[i+1].(int),
		})
	}
	return c
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
