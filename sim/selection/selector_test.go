package selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/internal/testutil"
	"github.com/f1-strategy-lab/strategylab/sim/race"
	"github.com/f1-strategy-lab/strategylab/sim/strategy"
)

// drawsAt builds draws finishing at the given positions with the default
// scoring table and race time 5000 + position.
func drawsAt(positions ...int) []race.Draw {
	out := make([]race.Draw, len(positions))
	for i, p := range positions {
		out[i] = race.Draw{
			RaceTime: 5000 + float64(p),
			Position: p,
			Points:   sim.DefaultScoringTable.Points(p),
		}
	}
	return out
}

func outcome(index int, degenerate bool, draws []race.Draw) race.Outcome {
	c := testutil.Candidate(index, "MEDIUM", 20+index, "HARD", 38-index)
	c.Degenerate = degenerate
	return race.Outcome{Candidate: c, Draws: draws}
}

func TestEvaluate_Aggregates(t *testing.T) {
	s, err := Evaluate(drawsAt(1, 2, 3, 4), sim.DefaultSelectionConfig().Weights)
	require.NoError(t, err)

	assert.Equal(t, 2.5, s.ExpectedPosition)
	assert.InDelta(t, 5.0/3.0, s.PositionVariance, 1e-12)
	assert.Equal(t, (25.0+18+15+12)/4, s.ExpectedPoints)
	assert.Equal(t, 0.25, s.WinProbability)
	assert.Equal(t, 0.75, s.PodiumProbability)
	assert.Equal(t, 5002.5, s.ExpectedRaceTime)
	assert.Equal(t, 4.0, s.P90Position)
	assert.Equal(t, s.P90Time-s.P10Time, s.Robustness)

	w := sim.DefaultSelectionConfig().Weights
	want := w.Points*s.ExpectedPoints - w.Position*s.ExpectedPosition - w.Downside*s.P90Position - w.Robustness*s.Robustness
	assert.Equal(t, want, s.Composite)
}

func TestEvaluate_NoDraws(t *testing.T) {
	_, err := Evaluate(nil, sim.SelectionWeights{})
	assert.Error(t, err)
}

func TestRank_WorsePositionNeverImproves(t *testing.T) {
	// GIVEN two candidates with identical spread, one finishing a place lower everywhere
	base := []int{1, 2, 2, 3, 4, 5, 5, 6}
	worse := make([]int, len(base))
	for i, p := range base {
		worse[i] = p + 1
	}
	outs := []race.Outcome{outcome(0, false, drawsAt(worse...)), outcome(1, false, drawsAt(base...))}

	// WHEN selected
	rec, err := Select(testutil.Race("r", 1, 58), outs, sim.DefaultSelectionConfig())
	require.NoError(t, err)

	// THEN the unchanged candidate ranks first despite the later generation index
	assert.Equal(t, 1, rec.Primary.Candidate.Index)
	assert.Equal(t, rec.Primary.Score.PositionVariance, rec.Contingencies[0].Score.PositionVariance)
	assert.Less(t, rec.Contingencies[0].Score.Composite, rec.Primary.Score.Composite)
}

func TestRank_TieBreaks(t *testing.T) {
	w := sim.SelectionWeights{Points: 1}
	flat := []race.Draw{{Position: 2, Points: 10}, {Position: 2, Points: 10}}
	spread := []race.Draw{{Position: 1, Points: 10}, {Position: 3, Points: 10}}

	t.Run("lower variance wins an equal composite", func(t *testing.T) {
		rec, err := Select(testutil.Race("r", 1, 58),
			[]race.Outcome{outcome(0, false, spread), outcome(1, false, flat)},
			sim.SelectionConfig{Weights: w})
		require.NoError(t, err)
		assert.Equal(t, 1, rec.Primary.Candidate.Index)
	})

	t.Run("generation order breaks a full tie", func(t *testing.T) {
		rec, err := Select(testutil.Race("r", 1, 58),
			[]race.Outcome{outcome(2, false, flat), outcome(0, false, flat), outcome(1, false, flat)},
			sim.SelectionConfig{Weights: w})
		require.NoError(t, err)
		assert.Equal(t, 0, rec.Primary.Candidate.Index)
		assert.Equal(t, 1, rec.Contingencies[0].Candidate.Index)
		assert.Equal(t, 2, rec.Contingencies[1].Candidate.Index)
	})
}

func TestSelect_DegenerateExcluded(t *testing.T) {
	outs := []race.Outcome{
		outcome(0, true, drawsAt(1, 1, 1)),
		outcome(1, false, drawsAt(8, 9, 10)),
		outcome(2, false, drawsAt(5, 6, 7)),
	}
	rec, err := Select(testutil.Race("r", 1, 58), outs, sim.DefaultSelectionConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, rec.Primary.Candidate.Index)
	require.Len(t, rec.Contingencies, 2)
	assert.Equal(t, 1, rec.Contingencies[0].Candidate.Index)
	assert.True(t, rec.Contingencies[1].Candidate.Degenerate, "degenerate ranks last")
	assert.Equal(t, outs[2].Draws, rec.Draws)

	record := TraceRecord(&rec, 2)
	assert.Greater(t, record.Regret, 0.0)
	assert.Len(t, record.Candidates, 2)
	assert.Contains(t, record.Reason, "non-degenerate")
}

func TestSelect_OnlyDegenerate(t *testing.T) {
	rec, err := Select(testutil.Race("r", 1, 58), []race.Outcome{outcome(0, true, drawsAt(3, 4))}, sim.DefaultSelectionConfig())
	require.NoError(t, err)
	assert.True(t, rec.Primary.Candidate.Degenerate)
	assert.Empty(t, rec.Contingencies)
	assert.Equal(t, "only degenerate candidates available", TraceRecord(&rec, 0).Reason)
}

func TestSelect_Errors(t *testing.T) {
	var simErr *sim.SimulationError
	_, err := Select(testutil.Race("r", 1, 58), nil, sim.DefaultSelectionConfig())
	assert.ErrorAs(t, err, &simErr)

	_, err = Select(testutil.Race("r", 1, 58), []race.Outcome{outcome(0, false, nil)}, sim.DefaultSelectionConfig())
	require.ErrorAs(t, err, &simErr)
	assert.NotEmpty(t, simErr.CandidateKey)
}

func TestRecommendation_Fallbacks(t *testing.T) {
	rec := Recommendation{Contingencies: make([]Scored, 3)}
	assert.Len(t, rec.Fallbacks(2), 2)
	assert.Len(t, rec.Fallbacks(5), 3)
	assert.Len(t, rec.Fallbacks(-1), 0)
	assert.Len(t, rec.Ranked(), 4)
}

func TestSelect_ReproducibleWithSeed42(t *testing.T) {
	// GIVEN a 58-lap race simulated with 1000 draws and seed 42
	r := testutil.Race("bahrain", 1, 58)
	cands, err := strategy.Generate(58, sim.DefaultCandidateConstraints())
	require.NoError(t, err)
	in := race.Input{Race: r, Conditions: testutil.Conditions(), Field: testutil.Field(10, 92, 0.05), Target: testutil.TargetDriver}

	run := func() Recommendation {
		s := race.NewSimulator(sim.NewSimulationKey(42), sim.DefaultSimulationConfig(), sim.DefaultCandidateConstraints(), sim.DefaultScoringTable)
		outs, err := s.Run(context.Background(), in, cands, sim.ScopeRace)
		require.NoError(t, err)
		rec, err := Select(r, outs, sim.DefaultSelectionConfig())
		require.NoError(t, err)
		return rec
	}

	// WHEN run twice
	a, b := run(), run()

	// THEN the primary and every score are identical
	assert.Equal(t, a.Primary.Candidate.Key(), b.Primary.Candidate.Key())
	assert.Equal(t, a.Ranked(), b.Ranked())
}
