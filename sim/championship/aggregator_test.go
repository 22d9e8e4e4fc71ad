package championship

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/internal/testutil"
	"github.com/f1-strategy-lab/strategylab/sim/race"
	"github.com/f1-strategy-lab/strategylab/sim/selection"
)

var testField = []sim.FieldEntry{
	{Driver: "NOR", Team: "MCLAREN"},
	{Driver: "PIA", Team: "MCLAREN"},
	{Driver: "VER", Team: "RED BULL"},
	{Driver: "LEC", Team: "FERRARI"},
}

func calendar(k int) []sim.Race {
	out := make([]sim.Race, k)
	for i := range out {
		out[i] = testutil.Race(string(rune('a'+i)), i+1, 58)
	}
	return out
}

// rec builds a recommendation whose draws cycle through the given orders.
func rec(r sim.Race, orders ...[]int16) selection.Recommendation {
	draws := make([]race.Draw, 0, len(orders))
	for _, o := range orders {
		draws = append(draws, race.Draw{Order: o})
	}
	return selection.Recommendation{Race: r, Draws: draws}
}

func mixedRecs(cal []sim.Race) []selection.Recommendation {
	out := make([]selection.Recommendation, len(cal))
	for i, r := range cal {
		out[i] = rec(r, []int16{0, 1, 2, 3}, []int16{2, 0, 3, 1}, []int16{1, 3, 0, 2}, []int16{3, 2, 1, 0})
	}
	return out
}

func newAgg(mode sim.Mode, workers int) *Aggregator {
	cfg := sim.DefaultChampionshipConfig()
	cfg.Resamples = 500
	return NewAggregator(sim.NewSimulationKey(42), cfg, mode, workers)
}

func TestProject_ProbabilityConservation(t *testing.T) {
	cal := calendar(6)
	proj, err := newAgg(sim.ModeStrict, 0).Project(context.Background(), cal, testField, mixedRecs(cal))
	require.NoError(t, err)

	sum := 0.0
	for _, d := range proj.Drivers {
		sum += d.TitleProbability
		assert.LessOrEqual(t, d.P10Points, d.P50Points)
		assert.LessOrEqual(t, d.P50Points, d.P90Points)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	sum = 0
	for _, c := range proj.Constructors {
		sum += c.TitleProbability
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, proj.Constructors, 3)
	assert.Equal(t, 500, proj.Resamples)
	assert.Equal(t, int64(42), proj.Seed)
	assert.Equal(t, 6, proj.Races)
}

func TestProject_Deterministic(t *testing.T) {
	cal := calendar(5)
	a, err := newAgg(sim.ModeStrict, 1).Project(context.Background(), cal, testField, mixedRecs(cal))
	require.NoError(t, err)
	b, err := newAgg(sim.ModeStrict, 8).Project(context.Background(), cal, testField, mixedRecs(cal))
	require.NoError(t, err)
	assert.Equal(t, a, b, "worker count must not change the projection")
}

func TestProject_DominantDriver(t *testing.T) {
	cal := calendar(3)
	recs := make([]selection.Recommendation, len(cal))
	for i, r := range cal {
		recs[i] = rec(r, []int16{0, 1, 2, 3})
	}
	proj, err := newAgg(sim.ModeStrict, 0).Project(context.Background(), cal, testField, recs)
	require.NoError(t, err)

	nor, ok := proj.Driver("NOR")
	require.True(t, ok)
	assert.Equal(t, 1.0, nor.TitleProbability)
	assert.Equal(t, 75.0, nor.MeanPoints)
	assert.Equal(t, 3.0, nor.ExpectedWins)
	assert.Equal(t, "NOR", proj.Drivers[0].Name)

	mcl, ok := proj.Constructor("MCLAREN")
	require.True(t, ok)
	assert.Equal(t, 1.0, mcl.TitleProbability)
	assert.Equal(t, 75.0+54, mcl.MeanPoints)
}

func TestProject_ScheduleGate(t *testing.T) {
	cal := calendar(4)
	recs := mixedRecs(cal)[:3] // K-1 recommendations

	t.Run("strict mode fails", func(t *testing.T) {
		_, err := newAgg(sim.ModeStrict, 0).Project(context.Background(), cal, testField, recs)
		var sched *sim.IncompleteScheduleError
		require.ErrorAs(t, err, &sched)
		assert.Equal(t, 4, sched.Expected)
		assert.Equal(t, 3, sched.Produced)
		assert.Equal(t, []string{"d"}, sched.Missing)
	})

	t.Run("permissive mode pools covered races", func(t *testing.T) {
		proj, err := newAgg(sim.ModePermissive, 0).Project(context.Background(), cal, testField, recs)
		require.NoError(t, err)
		assert.Equal(t, []string{"d"}, proj.PooledRaces)
		assert.Equal(t, 4, proj.Races)
	})

	t.Run("permissive mode with no coverage fails", func(t *testing.T) {
		_, err := newAgg(sim.ModePermissive, 0).Project(context.Background(), cal, testField, nil)
		var sched *sim.IncompleteScheduleError
		assert.ErrorAs(t, err, &sched)
	})
}

func TestProject_StartingPoints(t *testing.T) {
	cal := calendar(2)
	recs := []selection.Recommendation{rec(cal[0], []int16{0, 1, 2, 3}), rec(cal[1], []int16{0, 1, 2, 3})}
	cfg := sim.DefaultChampionshipConfig()
	cfg.Resamples = 50
	cfg.StartingPoints = map[string]int{"LEC": 100}

	proj, err := NewAggregator(sim.NewSimulationKey(1), cfg, sim.ModeStrict, 2).Project(context.Background(), cal, testField, recs)
	require.NoError(t, err)
	lec, _ := proj.Driver("LEC")
	assert.Equal(t, 1.0, lec.TitleProbability)
	assert.Equal(t, 100.0+12+12, lec.MeanPoints)
}

func TestProject_Countback(t *testing.T) {
	// GIVEN NOR and LEC level on points, LEC with a win
	cal := calendar(2)
	recs := []selection.Recommendation{rec(cal[0], []int16{1, 0, 3, 2}), rec(cal[1], []int16{3, 0, 2, 1})}
	cfg := sim.DefaultChampionshipConfig()
	cfg.Resamples = 10
	cfg.Scoring = sim.ScoringTable{10, 8, 6, 0}

	// WHEN projected
	proj, err := NewAggregator(sim.NewSimulationKey(1), cfg, sim.ModeStrict, 1).Project(context.Background(), cal, testField, recs)
	require.NoError(t, err)

	// THEN LEC (6+10) ties NOR (8+8) and takes the title on countback
	nor, _ := proj.Driver("NOR")
	lec, _ := proj.Driver("LEC")
	assert.Equal(t, 16.0, nor.MeanPoints)
	assert.Equal(t, 16.0, lec.MeanPoints)
	assert.Equal(t, 1.0, lec.TitleProbability)
}

func TestBeats(t *testing.T) {
	assert.True(t, beats(10, []int{0, 1}, 9, []int{1, 0}))
	assert.True(t, beats(10, []int{1, 0}, 10, []int{0, 2}))
	assert.False(t, beats(10, []int{1, 0}, 10, []int{1, 0}), "equal records keep field order")
}

func TestProject_Errors(t *testing.T) {
	cal := calendar(1)
	agg := newAgg(sim.ModeStrict, 0)

	_, err := agg.Project(context.Background(), cal, nil, nil)
	assert.Error(t, err)

	dup := append(append([]sim.FieldEntry(nil), testField...), sim.FieldEntry{Driver: "NOR", Team: "X"})
	_, err = agg.Project(context.Background(), cal, dup, mixedRecs(cal))
	assert.ErrorContains(t, err, "appears twice")

	var simErr *sim.SimulationError
	_, err = agg.Project(context.Background(), cal, testField, []selection.Recommendation{rec(cal[0], []int16{0, 1})})
	assert.ErrorAs(t, err, &simErr)

	var sched *sim.IncompleteScheduleError
	_, err = agg.Project(context.Background(), nil, testField, nil)
	assert.ErrorAs(t, err, &sched)
}

func TestDistribution(t *testing.T) {
	st := distribution([]float64{5, 1, 3, 2, 4})
	assert.Equal(t, 3.0, st.MeanPoints)
	assert.Equal(t, 3.0, st.P50Points)
	assert.False(t, math.IsNaN(st.P10Points))
}
