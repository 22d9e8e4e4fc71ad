package synthetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/pace"
)

var testField = []sim.FieldEntry{
	{Driver: "NOR", Team: "MCLAREN"},
	{Driver: "VER", Team: "RED BULL", PaceOffset: -0.2},
	{Driver: "ALB", Team: "WILLIAMS", PaceOffset: 0.9},
}

func TestTraining_ShapeAndSchema(t *testing.T) {
	// GIVEN the default single-driver options
	opts := DefaultOptions()

	// WHEN the training table is generated
	tbl := Training(sim.NewSimulationKey(42), opts)

	// THEN it has one labelled row per event and passes schema validation
	require.NoError(t, tbl.Validate())
	assert.Equal(t, 120, tbl.Len())
	assert.Len(t, tbl.Events(), 120)
	first := tbl.Rows[0]
	assert.Equal(t, "Event_01", first.Event)
	assert.Equal(t, 2020, first.Year)
	assert.Equal(t, 2024, tbl.Rows[4].Year)
	assert.Equal(t, 2020, tbl.Rows[5].Year)
	assert.Equal(t, "NOR", first.Driver)
	assert.Equal(t, "MCLAREN", first.Team)
	_, ok := first.Value(ColTargetPace)
	assert.True(t, ok)
}

func TestTraining_ValueRanges(t *testing.T) {
	tbl := Training(sim.NewSimulationKey(7), DefaultOptions())
	for _, r := range tbl.Rows {
		n := r.Numeric
		assert.GreaterOrEqual(t, n[ColHumidity], 20.0)
		assert.LessOrEqual(t, n[ColHumidity], 95.0)
		assert.GreaterOrEqual(t, n[ColDegSoft], 0.04)
		assert.LessOrEqual(t, n[ColDegHard], 0.2)
		assert.GreaterOrEqual(t, n[ColPrecip], 0.0)
		assert.Less(t, n[ColQualiBest], n[ColFP2Pace]+1e-12, "qualifying is never slower than practice")
		assert.GreaterOrEqual(t, n[ColTargetPoints], 0.0)
		assert.LessOrEqual(t, n[ColTargetPoints], 26.0)
		assert.Contains(t, []string{"SOFT", "MEDIUM", "HARD"}, r.Categorical[ColCompoundBias])
	}
}

func TestTraining_Deterministic(t *testing.T) {
	a := Training(sim.NewSimulationKey(42), DefaultOptions())
	b := Training(sim.NewSimulationKey(42), DefaultOptions())
	assert.Equal(t, a, b)

	c := Training(sim.NewSimulationKey(43), DefaultOptions())
	assert.NotEqual(t, a.Rows[0].Numeric[ColFP2Pace], c.Rows[0].Numeric[ColFP2Pace])
}

func TestTraining_FieldSharesConditions(t *testing.T) {
	opts := DefaultOptions()
	opts.Events = 10
	opts.Field = testField

	tbl := Training(sim.NewSimulationKey(42), opts)

	require.Equal(t, 30, tbl.Len())
	byEvent := tbl.ByEvent()
	rows := byEvent["Event_01"]
	require.Len(t, rows, 3)
	assert.Equal(t, rows[0].Numeric[ColRain], rows[2].Numeric[ColRain], "weather is shared at an event")
	assert.Equal(t, rows[0].Categorical, rows[1].Categorical)
	assert.Equal(t, "ALB", rows[2].Driver)
}

func TestInference_FollowsCalendar(t *testing.T) {
	opts := DefaultOptions()
	opts.Field = testField
	cal := []sim.Race{
		{ID: "bahrain", Round: 1, Name: "Bahrain Grand Prix"},
		{ID: "jeddah", Round: 2},
	}

	tbl := Inference(sim.NewSimulationKey(42), opts, cal)

	require.NoError(t, tbl.Validate())
	assert.Equal(t, 6, tbl.Len())
	assert.Equal(t, []string{"Bahrain Grand Prix", "jeddah"}, tbl.Events())
	for _, r := range tbl.Rows {
		assert.Equal(t, 2025, r.Year)
		_, ok := r.Value(ColTargetPace)
		assert.False(t, ok, "pre-race rows carry no target")
	}
	_, ok := tbl.Schema.Lookup(ColTargetPace)
	assert.False(t, ok)
}

func TestCalendar(t *testing.T) {
	cal := Calendar(24)
	require.Len(t, cal, 24)
	assert.Equal(t, sim.Race{ID: "round_01", Round: 1, Name: "Round_01"}, cal[0])
	assert.Equal(t, "Round_24", cal[23].Name)
}

func TestTraining_Learnable(t *testing.T) {
	// GIVEN a synthetic training table
	tbl := Training(sim.NewSimulationKey(42), DefaultOptions())

	// WHEN the pace model is fitted on it
	m := pace.NewModel(pace.DefaultModelConfig())
	metrics, err := m.Train(tbl, ColTargetPace)

	// THEN it trains, and the target-prefixed label columns are not features
	require.NoError(t, err)
	assert.NotContains(t, metrics.FeatureColumns, ColTargetPoints)
	assert.Equal(t, 24, metrics.ValidationRows)
	assert.Less(t, metrics.MAE, 2.0)
}
