package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/season"
	"github.com/f1-strategy-lab/strategylab/sim/selection"
)

var recommendationColumns = []string{
	"year", "round", "event_name", "team", "driver", "laps",
	"predicted_base_lap_sec", "best_strategy", "compounds", "pit_laps", "stops",
	"start_compound", "first_pit_lap", "strategy_plan",
	"expected_race_time", "expected_position", "expected_points",
	"win_probability", "podium_probability", "strategy_score", "robustness_window",
	"top3_scenario_hits",
}

var fallbackColumns = []string{
	"strategy", "stops", "start_compound", "pit_laps", "first_pit_lap", "plan",
	"expected_race_time", "expected_points", "strategy_score", "trigger",
}

// RecommendationHeader returns the table header with n fallback column
// groups, numbered from 2 (the primary is plan 1).
func RecommendationHeader(n int) []string {
	h := append([]string(nil), recommendationColumns...)
	for k := 2; k < n+2; k++ {
		for _, c := range fallbackColumns {
			h = append(h, fmt.Sprintf("fallback_%d_%s", k, c))
		}
	}
	return h
}

// WriteRecommendations writes one row per simulated race. Missing fallbacks
// leave their columns empty.
func WriteRecommendations(w io.Writer, res *season.Result) error {
	n := res.Spec.Selection.Contingencies
	cw := csv.NewWriter(w)
	if err := cw.Write(RecommendationHeader(n)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rr := range res.Races {
		if err := cw.Write(recommendationRow(res.Spec, rr, n)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func recommendationRow(spec *season.Spec, rr season.RaceResult, n int) []string {
	rec := rr.Recommendation
	p := rec.Primary
	c := p.Candidate
	row := []string{
		strconv.Itoa(spec.TargetYear),
		strconv.Itoa(rr.Race.Round),
		eventName(rr.Race),
		spec.Team,
		spec.TargetDriver,
		strconv.Itoa(rr.Race.Laps),
		formatFloat(rr.Prediction.BaseLapTime, 3),
		c.Name(),
		joinCompounds(c),
		joinInts(c.PitLaps()),
		strconv.Itoa(c.Stops()),
		startCompound(c),
		firstPit(c),
		c.Plan(),
		formatFloat(p.Score.ExpectedRaceTime, 3),
		formatFloat(p.Score.ExpectedPosition, 3),
		formatFloat(p.Score.ExpectedPoints, 3),
		formatFloat(p.Score.WinProbability, 4),
		formatFloat(p.Score.PodiumProbability, 4),
		formatFloat(p.Score.Composite, 3),
		formatFloat(p.Score.Robustness, 3),
		strconv.Itoa(p.Top3Hits),
	}
	fallbacks := rec.Fallbacks(n)
	for k := 0; k < n; k++ {
		if k >= len(fallbacks) {
			row = append(row, "", "0", "", "", "", "", "", "", "", "")
			continue
		}
		row = append(row, fallbackRow(fallbacks[k])...)
	}
	return row
}

func fallbackRow(s selection.Scored) []string {
	c := s.Candidate
	return []string{
		c.Name(),
		strconv.Itoa(c.Stops()),
		startCompound(c),
		joinInts(c.PitLaps()),
		firstPit(c),
		c.Plan(),
		formatFloat(s.Score.ExpectedRaceTime, 3),
		formatFloat(s.Score.ExpectedPoints, 3),
		formatFloat(s.Score.Composite, 3),
		s.Trigger,
	}
}

func eventName(r sim.Race) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

func joinCompounds(c sim.Candidate) string {
	parts := make([]string, 0, len(c.Stints))
	for _, comp := range c.Compounds() {
		parts = append(parts, string(comp))
	}
	return strings.Join(parts, "->")
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func startCompound(c sim.Candidate) string {
	if len(c.Stints) == 0 {
		return ""
	}
	return string(c.Stints[0].Compound)
}

func firstPit(c sim.Candidate) string {
	if pits := c.PitLaps(); len(pits) > 0 {
		return strconv.Itoa(pits[0])
	}
	return ""
}

// formatFloat rounds to the given decimals and prints the shortest form.
func formatFloat(v float64, decimals int) string {
	scale := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Round(v*scale)/scale, 'f', -1, 64)
}
