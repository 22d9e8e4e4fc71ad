package contingency

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/race"
	"github.com/f1-strategy-lab/strategylab/sim/selection"
)

// Assessor runs the scenario stress tests for a race.
type Assessor struct {
	key         sim.SimulationKey
	simCfg      sim.SimulationConfig
	constraints sim.CandidateConstraints
	scoring     sim.ScoringTable
	weights     sim.SelectionWeights
	cfg         sim.ContingencyConfig
}

// NewAssessor creates an assessor sharing the run's key and configuration.
func NewAssessor(key sim.SimulationKey, simCfg sim.SimulationConfig, constraints sim.CandidateConstraints,
	scoring sim.ScoringTable, weights sim.SelectionWeights, cfg sim.ContingencyConfig) *Assessor {
	return &Assessor{key: key, simCfg: simCfg, constraints: constraints, scoring: scoring, weights: weights, cfg: cfg}
}

// Assess simulates every ranked candidate of rec under each non-baseline
// scenario and fills in scenario scores, top-3 hits and triggers. The
// baseline column reuses the recommendation's own scores.
func (a *Assessor) Assess(ctx context.Context, in race.Input, rec *selection.Recommendation) error {
	ranked := rec.Ranked()
	candidates := make([]sim.Candidate, len(ranked))
	scores := make(map[string][]float64, len(Scenarios))
	base := make([]float64, len(ranked))
	for i, s := range ranked {
		candidates[i] = s.Candidate
		base[i] = s.Score.Composite
	}
	scores[BaselineKey] = base

	draws := a.cfg.ScenarioDraws(a.simCfg.Draws)
	for _, sc := range Scenarios {
		if sc.Key == BaselineKey {
			continue
		}
		sin, scfg := sc.Apply(in, a.simCfg)
		scfg.Draws = draws
		rs := race.NewSimulator(a.key, scfg, a.constraints, a.scoring)
		outs, err := rs.Run(ctx, sin, candidates, sim.ScopeScenario(sc.Key))
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Key, err)
		}
		col := make([]float64, len(outs))
		for i, o := range outs {
			s, err := selection.Evaluate(o.Draws, a.weights)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Key, err)
			}
			col[i] = s.Composite
		}
		scores[sc.Key] = col
	}

	hits := top3Hits(scores, len(ranked))
	for i := range ranked {
		ranked[i].ScenarioScores = make(map[string]float64, len(scores))
		for key, col := range scores {
			ranked[i].ScenarioScores[key] = col[i]
		}
		ranked[i].Top3Hits = hits[i]
		if i > 0 {
			ranked[i].Trigger = trigger(scores, i)
		}
	}
	rec.Primary = ranked[0]
	copy(rec.Contingencies, ranked[1:])

	logrus.WithFields(logrus.Fields{
		"race":      rec.Race.ID,
		"scenarios": len(scores),
		"draws":     draws,
	}).Debug("contingency scenarios assessed")
	return nil
}

// top3Hits counts, per candidate, the scenarios in which it ranks in the top
// three by composite. Ties keep the baseline ranking order.
func top3Hits(scores map[string][]float64, n int) []int {
	hits := make([]int, n)
	for _, sc := range Scenarios {
		col, ok := scores[sc.Key]
		if !ok {
			continue
		}
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return col[order[a]] > col[order[b]] })
		for _, i := range order[:min(3, n)] {
			hits[i]++
		}
	}
	return hits
}

// trigger returns the reason attached to the scenario in which candidate i
// gains most against the primary (index 0). Ties keep scenario order.
func trigger(scores map[string][]float64, i int) string {
	best, label := 0.0, ""
	for _, sc := range Scenarios {
		col, ok := scores[sc.Key]
		if !ok || sc.Key == BaselineKey {
			continue
		}
		margin := col[i] - col[0]
		if label == "" || margin > best {
			best, label = margin, sc.Trigger
		}
	}
	return label
}
