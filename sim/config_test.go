package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateConstraints_StintWindow(t *testing.T) {
	c := DefaultCandidateConstraints()
	c.MinStintLaps = 10
	c.MaxStintLaps = 40
	c.CompoundLimits = map[Compound]StintLimit{
		CompoundSoft: {Max: 22},
		CompoundHard: {Min: 15},
	}

	tests := []struct {
		compound Compound
		lo, hi   int
	}{
		{CompoundSoft, 10, 22},
		{CompoundMedium, 10, 40},
		{CompoundHard, 15, 40},
	}
	for _, tt := range tests {
		t.Run(string(tt.compound), func(t *testing.T) {
			lo, hi := c.StintWindow(tt.compound)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestCandidateConstraints_StintLegal(t *testing.T) {
	c := DefaultCandidateConstraints()
	c.MinStintLaps = 15
	c.MaxStintLaps = 40

	assert.True(t, c.StintLegal(Stint{CompoundMedium, 29}))
	assert.True(t, c.StintLegal(Stint{CompoundMedium, 15}))
	assert.True(t, c.StintLegal(Stint{CompoundMedium, 40}))
	assert.False(t, c.StintLegal(Stint{CompoundMedium, 14}))
	assert.False(t, c.StintLegal(Stint{CompoundMedium, 41}))

	c.MaxStintLaps = 0
	assert.True(t, c.StintLegal(Stint{CompoundHard, 58}), "max 0 is unbounded")
}

func TestContingencyConfig_ScenarioDraws(t *testing.T) {
	c := DefaultContingencyConfig()
	assert.Equal(t, 200, c.ScenarioDraws(1000))
	assert.Equal(t, 80, c.ScenarioDraws(300), "floor at MinDraws")
	assert.Equal(t, 50, c.ScenarioDraws(50), "never more than baseline")
}

func TestDefaults_ZeroValuesAreNotDefaults(t *testing.T) {
	// Zero-value structs must not silently carry defaults
	assert.Equal(t, SimulationConfig{}.Draws, 0)
	assert.NotZero(t, DefaultSimulationConfig().Draws)
	assert.Equal(t, DefaultScoringTable, DefaultChampionshipConfig().Scoring)
}
