// Package selection scores simulated candidates and picks the primary
// strategy and its ranked contingencies for a race.
package selection

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/race"
)

// Score aggregates one candidate's draws.
type Score struct {
	ExpectedRaceTime  float64 `json:"expected_race_time"`
	P10Time           float64 `json:"p10_time"`
	P90Time           float64 `json:"p90_time"`
	Robustness        float64 `json:"robustness_window"` // P90 - P10 race time
	ExpectedPosition  float64 `json:"expected_position"`
	PositionVariance  float64 `json:"position_variance"`
	P90Position       float64 `json:"p90_position"` // worst-decile finish
	ExpectedPoints    float64 `json:"expected_points"`
	WinProbability    float64 `json:"win_probability"`
	PodiumProbability float64 `json:"podium_probability"`
	Composite         float64 `json:"strategy_score"`
}

// Evaluate computes the score of a set of draws under the given weights.
func Evaluate(draws []race.Draw, w sim.SelectionWeights) (Score, error) {
	n := len(draws)
	if n == 0 {
		return Score{}, fmt.Errorf("no draws to score")
	}
	times := make([]float64, n)
	positions := make([]float64, n)
	var points, wins, podiums float64
	for i, d := range draws {
		times[i] = d.RaceTime
		positions[i] = float64(d.Position)
		points += float64(d.Points)
		if d.Position == 1 {
			wins++
		}
		if d.Position <= 3 {
			podiums++
		}
	}

	var s Score
	s.ExpectedRaceTime = stat.Mean(times, nil)
	s.ExpectedPosition, s.PositionVariance = stat.MeanVariance(positions, nil)
	if n < 2 {
		s.PositionVariance = 0
	}
	sort.Float64s(times)
	sort.Float64s(positions)
	s.P10Time = stat.Quantile(0.1, stat.Empirical, times, nil)
	s.P90Time = stat.Quantile(0.9, stat.Empirical, times, nil)
	s.Robustness = s.P90Time - s.P10Time
	s.P90Position = stat.Quantile(0.9, stat.Empirical, positions, nil)
	s.ExpectedPoints = points / float64(n)
	s.WinProbability = wins / float64(n)
	s.PodiumProbability = podiums / float64(n)
	s.Composite = Composite(s, w)
	return s, nil
}

// Composite is the weighted objective; higher is better.
func Composite(s Score, w sim.SelectionWeights) float64 {
	return w.Points*s.ExpectedPoints -
		w.Position*s.ExpectedPosition -
		w.Downside*s.P90Position -
		w.Robustness*s.Robustness
}
