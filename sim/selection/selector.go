package selection

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/race"
)

// Scored is a candidate with its score. Scenario fields are filled by the
// contingency stress tests when they run.
type Scored struct {
	Candidate      sim.Candidate      `json:"candidate"`
	Score          Score              `json:"score"`
	ScenarioScores map[string]float64 `json:"scenario_scores,omitempty"`
	Top3Hits       int                `json:"top3_scenario_hits,omitempty"`
	Trigger        string             `json:"trigger,omitempty"`
}

// Recommendation is the selection result for one race.
type Recommendation struct {
	Race          sim.Race    `json:"race"`
	Primary       Scored      `json:"primary"`
	Contingencies []Scored    `json:"contingencies"`
	Draws         []race.Draw `json:"-"` // primary's draws, kept for season resampling
}

// Ranked returns the primary followed by every contingency.
func (r *Recommendation) Ranked() []Scored {
	return append([]Scored{r.Primary}, r.Contingencies...)
}

// Fallbacks returns at most n contingencies.
func (r *Recommendation) Fallbacks(n int) []Scored {
	if n > len(r.Contingencies) {
		n = len(r.Contingencies)
	}
	if n < 0 {
		n = 0
	}
	return r.Contingencies[:n]
}

// Select scores every outcome and ranks them. The primary is the best
// non-degenerate candidate; degenerate candidates rank last and are chosen
// only when nothing else exists. Pure function of its inputs.
func Select(r sim.Race, outcomes []race.Outcome, cfg sim.SelectionConfig) (Recommendation, error) {
	if len(outcomes) == 0 {
		return Recommendation{}, &sim.SimulationError{RaceID: r.ID, Err: fmt.Errorf("no candidates to select from")}
	}
	scored := make([]Scored, len(outcomes))
	for i, o := range outcomes {
		s, err := Evaluate(o.Draws, cfg.Weights)
		if err != nil {
			return Recommendation{}, &sim.SimulationError{RaceID: r.ID, CandidateKey: o.Candidate.Key(), Err: err}
		}
		scored[i] = Scored{Candidate: o.Candidate, Score: s}
	}
	order := Rank(scored)

	rec := Recommendation{
		Race:          r,
		Primary:       scored[order[0]],
		Contingencies: make([]Scored, 0, len(order)-1),
		Draws:         outcomes[order[0]].Draws,
	}
	for _, i := range order[1:] {
		rec.Contingencies = append(rec.Contingencies, scored[i])
	}

	logrus.WithFields(logrus.Fields{
		"race":            r.ID,
		"primary":         rec.Primary.Candidate.Name(),
		"strategy_score":  rec.Primary.Score.Composite,
		"expected_points": rec.Primary.Score.ExpectedPoints,
		"candidates":      len(outcomes),
	}).Info("strategy selected")
	return rec, nil
}

// Rank returns indices into scored from best to worst: non-degenerate first,
// then higher composite, then lower position variance, then generation order.
func Rank(scored []Scored) []int {
	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return Better(scored[order[a]], scored[order[b]])
	})
	return order
}

// Better reports whether a ranks strictly ahead of b.
func Better(a, b Scored) bool {
	if a.Candidate.Degenerate != b.Candidate.Degenerate {
		return !a.Candidate.Degenerate
	}
	if a.Score.Composite != b.Score.Composite {
		return a.Score.Composite > b.Score.Composite
	}
	if a.Score.PositionVariance != b.Score.PositionVariance {
		return a.Score.PositionVariance < b.Score.PositionVariance
	}
	return a.Candidate.Index < b.Candidate.Index
}
