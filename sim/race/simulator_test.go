package race

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/internal/testutil"
)

func testInput(n int, gap float64) Input {
	return Input{
		Race:       testutil.Race("bahrain", 1, 58),
		Conditions: testutil.Conditions(),
		Field:      testutil.Field(n, 92, gap),
		Target:     testutil.TargetDriver,
	}
}

func testCandidates() []sim.Candidate {
	return []sim.Candidate{
		testutil.Candidate(0, "MEDIUM", 29, "HARD", 29),
		testutil.Candidate(1, "SOFT", 22, "HARD", 36),
		testutil.Candidate(2, "SOFT", 18, "MEDIUM", 20, "HARD", 20),
	}
}

func smallSimConfig() sim.SimulationConfig {
	cfg := sim.DefaultSimulationConfig()
	cfg.Draws = 200
	return cfg
}

// quietConfig removes every source of randomness.
func quietConfig() sim.SimulationConfig {
	cfg := smallSimConfig()
	cfg.PitLossSigmaSeconds = 0
	cfg.SafetyCarRate = 0
	cfg.WeatherShiftProbability = 0
	cfg.WeatherUncertaintySeconds = 0
	cfg.TrafficUncertaintySeconds = 0
	cfg.TrafficSigmaPerLap = 0
	return cfg
}

func newSim(cfg sim.SimulationConfig) *Simulator {
	return NewSimulator(sim.NewSimulationKey(42), cfg, sim.DefaultCandidateConstraints(), sim.DefaultScoringTable)
}

func TestRun_Deterministic(t *testing.T) {
	in := testInput(10, 0.05)
	a, err := newSim(smallSimConfig()).Run(context.Background(), in, testCandidates(), sim.ScopeRace)
	require.NoError(t, err)
	b, err := newSim(smallSimConfig()).Run(context.Background(), in, testCandidates(), sim.ScopeRace)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_WorkerCountDoesNotChangeDraws(t *testing.T) {
	in := testInput(10, 0.05)
	one := smallSimConfig()
	one.Workers = 1
	many := smallSimConfig()
	many.Workers = 8

	a, err := newSim(one).Run(context.Background(), in, testCandidates(), sim.ScopeRace)
	require.NoError(t, err)
	b, err := newSim(many).Run(context.Background(), in, testCandidates(), sim.ScopeRace)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_DifferentKeysDiffer(t *testing.T) {
	in := testInput(6, 0.05)
	a, err := newSim(smallSimConfig()).Run(context.Background(), in, testCandidates()[:1], sim.ScopeRace)
	require.NoError(t, err)
	other := NewSimulator(sim.NewSimulationKey(7), smallSimConfig(), sim.DefaultCandidateConstraints(), sim.DefaultScoringTable)
	b, err := other.Run(context.Background(), in, testCandidates()[:1], sim.ScopeRace)
	require.NoError(t, err)
	assert.NotEqual(t, a[0].Draws[0].RaceTime, b[0].Draws[0].RaceTime)
}

func TestDraw_MatchesRun(t *testing.T) {
	in := testInput(8, 0.05)
	s := newSim(smallSimConfig())
	cands := testCandidates()
	out, err := s.Run(context.Background(), in, cands, sim.ScopeRace)
	require.NoError(t, err)

	for _, idx := range []int{0, 17, 199} {
		d, err := s.Draw(in, cands, cands[2], sim.ScopeRace, idx)
		require.NoError(t, err)
		assert.Equal(t, out[2].Draws[idx], d)
	}
}

func TestRun_DrawInvariants(t *testing.T) {
	in := testInput(12, 0.03)
	out, err := newSim(smallSimConfig()).Run(context.Background(), in, testCandidates(), sim.ScopeRace)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for _, o := range out {
		require.Len(t, o.Draws, 200)
		for _, d := range o.Draws {
			assert.GreaterOrEqual(t, d.Position, 1)
			assert.LessOrEqual(t, d.Position, 12)
			assert.Equal(t, sim.DefaultScoringTable.Points(d.Position), d.Points)
			require.Len(t, d.Order, 12)
			assert.Equal(t, int16(0), d.Order[d.Position-1], "target sits at its finishing position")
			assert.Len(t, d.PitLaps, o.Candidate.Stops())
			seen := map[int16]bool{}
			for _, idx := range d.Order {
				seen[idx] = true
			}
			assert.Len(t, seen, 12, "order is a permutation of the field")
		}
	}
}

func TestRun_DominantPace(t *testing.T) {
	tests := []struct {
		name     string
		gap      float64
		position int
	}{
		{"rivals a second a lap slower", 1.0, 1},
		{"rivals a second a lap faster", -1.0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testInput(5, tt.gap)
			out, err := newSim(quietConfig()).Run(context.Background(), in, testCandidates()[:1], sim.ScopeRace)
			require.NoError(t, err)
			for _, d := range out[0].Draws {
				assert.Equal(t, tt.position, d.Position)
			}
		})
	}
}

func TestRun_QuietDrawsOnlyVaryByModelError(t *testing.T) {
	cfg := quietConfig()
	in := testInput(1, 0)
	in.Field[0].Uncertainty = 0
	in.Conditions.RainIndex = 0
	out, err := newSim(cfg).Run(context.Background(), in, testCandidates()[:1], sim.ScopeRace)
	require.NoError(t, err)
	first := out[0].Draws[0].RaceTime
	for _, d := range out[0].Draws {
		assert.InDelta(t, first, d.RaceTime, 1e-9)
		assert.Equal(t, []int{29}, d.PitLaps)
	}
}

func TestRun_SafetyCars(t *testing.T) {
	cfg := smallSimConfig()
	cfg.SafetyCarRate = 3
	in := testInput(6, 0.05)
	out, err := newSim(cfg).Run(context.Background(), in, testCandidates()[:1], sim.ScopeRace)
	require.NoError(t, err)

	withSC, moved := 0, 0
	for _, d := range out[0].Draws {
		if d.SafetyCars > 0 {
			withSC++
		}
		if d.PitLaps[0] != 29 {
			moved++
			assert.Less(t, d.PitLaps[0], 29, "stops only move forward into a window")
			assert.GreaterOrEqual(t, 29-d.PitLaps[0], 1)
		}
	}
	assert.Greater(t, withSC, 150)
	assert.Greater(t, moved, 0)
}

func TestRun_Errors(t *testing.T) {
	s := newSim(smallSimConfig())
	var simErr *sim.SimulationError

	in := testInput(4, 0.1)
	in.Target = "HAM"
	_, err := s.Run(context.Background(), in, testCandidates(), sim.ScopeRace)
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, "bahrain", simErr.RaceID)

	in = testInput(4, 0.1)
	bad := append(testCandidates(), testutil.Candidate(3, "SOFT", 10, "HARD", 10))
	_, err = s.Run(context.Background(), in, bad, sim.ScopeRace)
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, "SOFT:10>HARD:10", simErr.CandidateKey)

	in = testInput(4, 0.1)
	in.Race.Laps = 0
	_, err = s.Run(context.Background(), in, testCandidates(), sim.ScopeRace)
	assert.ErrorAs(t, err, &simErr)

	_, err = s.Run(context.Background(), testInput(4, 0.1), nil, sim.ScopeRace)
	assert.ErrorAs(t, err, &simErr, "no candidates and no nominal strategy")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newSim(smallSimConfig()).Run(ctx, testInput(4, 0.1), testCandidates(), sim.ScopeRace)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAdaptStops(t *testing.T) {
	planned := []sim.Stint{{Compound: sim.CompoundMedium, Laps: 29}, {Compound: sim.CompoundHard, Laps: 29}}
	c := sim.DefaultCandidateConstraints()

	tests := []struct {
		name    string
		windows []window
		slack   int
		want    []int
	}{
		{"no window", nil, 5, []int{29}},
		{"window a few laps before the stop", []window{{Start: 25, End: 27}}, 5, []int{25}},
		{"stop already inside the window", []window{{Start: 27, End: 30}}, 5, []int{29}},
		{"window too early", []window{{Start: 10, End: 12}}, 5, []int{29}},
		{"zero slack", []window{{Start: 25, End: 27}}, 0, []int{29}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &world{laps: 58, windows: tt.windows}
			got := adaptStops(planned, w, tt.slack, c)
			assert.Equal(t, tt.want, pitLaps(got))
			assert.Equal(t, 29, planned[0].Laps, "planned stints untouched")
		})
	}

	// Moving would leave a stint shorter than the compound's minimum.
	strict := c
	strict.CompoundLimits = map[sim.Compound]sim.StintLimit{sim.CompoundMedium: {Min: 28}}
	w := &world{laps: 58, windows: []window{{Start: 25, End: 27}}}
	assert.Equal(t, []int{29}, pitLaps(adaptStops(planned, w, 5, strict)))
}

func TestAdaptStops_TwoStopMovesEachOnce(t *testing.T) {
	planned := []sim.Stint{{Compound: sim.CompoundSoft, Laps: 18}, {Compound: sim.CompoundMedium, Laps: 20}, {Compound: sim.CompoundHard, Laps: 20}}
	w := &world{laps: 58, windows: []window{{Start: 15, End: 16}, {Start: 35, End: 36}}}
	got := adaptStops(planned, w, 5, sim.DefaultCandidateConstraints())
	assert.Equal(t, []int{15, 35}, pitLaps(got))
	total := 0
	for _, s := range got {
		total += s.Laps
	}
	assert.Equal(t, 58, total)
}

func TestCompressGaps(t *testing.T) {
	totals := []float64{200, 215, 230}
	compressGaps(totals, []float64{100, 110, 120}, 1, 0.5)
	assert.Equal(t, []float64{200, 210, 220}, totals)

	totals = []float64{200, 215}
	compressGaps(totals, []float64{100, 110}, 0, 0.5)
	assert.Equal(t, []float64{200, 215}, totals, "no windows, no compression")
}

func TestFinishingOrder_TiesByFieldOrder(t *testing.T) {
	assert.Equal(t, []int16{1, 0, 2}, finishingOrder([]float64{10, 9, 10}))
}

func TestPositionOf_MatchesOrderOnTies(t *testing.T) {
	// GIVEN the target (index 2) tied on time with an earlier entrant
	totals := []float64{10, 5, 5}
	order := finishingOrder(totals)

	// THEN its position follows the finishing order
	assert.Equal(t, []int16{1, 2, 0}, order)
	assert.Equal(t, 2, positionOf(order, 2))
	assert.Equal(t, 1, positionOf(order, 1))
	assert.Equal(t, 3, positionOf(order, 0))
}

func TestSafetyCarWindowsMerge(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		w := &world{laps: 30}
		w.sampleSafetyCars(rng, 4, 3, 5)
		for k := 1; k < len(w.windows); k++ {
			assert.Greater(t, w.windows[k].Start, w.windows[k-1].End+1)
		}
		for _, win := range w.windows {
			assert.GreaterOrEqual(t, win.Start, 2)
			assert.LessOrEqual(t, win.End, 30)
		}
	}
}

func TestPoissonMean(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	sum := 0
	const n = 20000
	for i := 0; i < n; i++ {
		sum += poisson(rng, 0.6)
	}
	assert.InDelta(t, 0.6, float64(sum)/n, 0.03)
	assert.Equal(t, 0, poisson(rng, 0))
}

func TestFuelEffect(t *testing.T) {
	assert.Equal(t, 0.05, FuelEffect(0, 58))
	assert.Equal(t, 0.3, FuelEffect(10, 58))
	assert.InDelta(t, 0.95/(58*0.06), FuelEffect(0.95, 58), 1e-12)
}

func TestNominalCandidate(t *testing.T) {
	in := testInput(3, 0.1)
	deg := testutil.Candidate(0, "HARD", 58)
	deg.Degenerate = true
	cands := append([]sim.Candidate{deg}, testCandidates()...)
	got, ok := NominalCandidate(in, cands, 21.5)
	require.True(t, ok)
	assert.False(t, got.Degenerate)

	only, ok := NominalCandidate(in, []sim.Candidate{deg}, 21.5)
	require.True(t, ok)
	assert.True(t, only.Degenerate)

	_, ok = NominalCandidate(in, nil, 21.5)
	assert.False(t, ok)
}

func BenchmarkRun(b *testing.B) {
	in := testInput(20, 0.05)
	s := newSim(sim.DefaultSimulationConfig())
	cands := testCandidates()
	for i := 0; i < b.N; i++ {
		_, _ = s.Run(context.Background(), in, cands, sim.ScopeRace)
	}
}
