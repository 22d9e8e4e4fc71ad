package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/internal/testutil"
	"github.com/f1-strategy-lab/strategylab/sim/pace"
	"github.com/f1-strategy-lab/strategylab/sim/season"
	"github.com/f1-strategy-lab/strategylab/sim/selection"
	"github.com/f1-strategy-lab/strategylab/sim/synthetic"
)

const featureCSV = `year,event_name,team,driver,fp2_avg_lap_sec,deg_soft,compound_bias,target_race_pace
2024,Bahrain Grand Prix,MCLAREN,NOR,91.2,0.18,SOFT,92.4
2024.0,Bahrain Grand Prix,RED BULL,VER,91.0,,MEDIUM,92.1
2023,Jeddah,MCLAREN,NOR,NaN,0.12,,93.0
`

func TestReadFeatureTable(t *testing.T) {
	tbl, err := ReadFeatureTable(strings.NewReader(featureCSV))
	require.NoError(t, err)

	assert.Equal(t, pace.Schema{
		{Name: "fp2_avg_lap_sec", Kind: pace.KindNumeric},
		{Name: "deg_soft", Kind: pace.KindNumeric},
		{Name: "compound_bias", Kind: pace.KindCategorical},
		{Name: "target_race_pace", Kind: pace.KindNumeric},
	}, tbl.Schema)
	require.Equal(t, 3, tbl.Len())
	require.NoError(t, tbl.Validate())

	first := tbl.Rows[0]
	assert.Equal(t, 2024, first.Year)
	assert.Equal(t, "Bahrain Grand Prix", first.Event)
	assert.Equal(t, "NOR", first.Driver)
	assert.Equal(t, "MCLAREN", first.Team)
	assert.Equal(t, 91.2, first.Numeric["fp2_avg_lap_sec"])
	assert.Equal(t, "SOFT", first.Categorical["compound_bias"])

	assert.Equal(t, 2024, tbl.Rows[1].Year)
	_, ok := tbl.Rows[1].Value("deg_soft")
	assert.False(t, ok, "empty cell is missing")
	_, ok = tbl.Rows[2].Value("fp2_avg_lap_sec")
	assert.False(t, ok, "NaN cell is missing")
	_, ok = tbl.Rows[2].Label("compound_bias")
	assert.False(t, ok)
}

func TestReadFeatureTable_HeaderOnly(t *testing.T) {
	tbl, err := ReadFeatureTable(strings.NewReader("event_name,driver,deg_soft\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}

func TestReadFeatureTable_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		column string
	}{
		{"empty input", "", ""},
		{"missing driver column", "event_name,deg_soft\nBahrain,0.1\n", "driver"},
		{"duplicate column", "event_name,driver,x,x\nBahrain,NOR,1,2\n", "x"},
		{"bad year", "year,event_name,driver\nlast,Bahrain,NOR\n", "year"},
		{"ragged row", "event_name,driver\nBahrain\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFeatureTable(strings.NewReader(tt.input))
			var tdErr *sim.TrainingDataError
			require.ErrorAs(t, err, &tdErr)
			assert.Equal(t, tt.column, tdErr.Column)
		})
	}
}

func TestFeatureTable_WriteThenRead(t *testing.T) {
	opts := synthetic.DefaultOptions()
	opts.Events = 5
	in := synthetic.Training(sim.NewSimulationKey(42), opts)

	var buf bytes.Buffer
	require.NoError(t, WriteFeatureTable(&buf, in))
	out, err := ReadFeatureTable(&buf)
	require.NoError(t, err)

	assert.Equal(t, in.Schema, out.Schema)
	assert.Equal(t, in.Rows, out.Rows)
}

func TestRecommendationHeader(t *testing.T) {
	h := RecommendationHeader(2)
	assert.Len(t, h, len(recommendationColumns)+20)
	assert.Equal(t, "fallback_2_strategy", h[len(recommendationColumns)])
	assert.Equal(t, "fallback_3_trigger", h[len(h)-1])
	assert.Len(t, RecommendationHeader(0), len(recommendationColumns))
}

func TestWriteRecommendations(t *testing.T) {
	// GIVEN a race with one contingency and two fallback slots
	r := testutil.Race("bahrain", 1, 57)
	r.Name = "Bahrain Grand Prix"
	primary := selection.Scored{
		Candidate: testutil.Candidate(0, "MEDIUM", 20, "HARD", 37),
		Score:     selection.Score{ExpectedRaceTime: 5321.23456, WinProbability: 0.123456, Composite: 14.56789, Robustness: 12.3456, ExpectedPosition: 3.2, ExpectedPoints: 14.9},
		Top3Hits:  4,
	}
	alt := selection.Scored{
		Candidate: testutil.Candidate(1, "SOFT", 15, "MEDIUM", 20, "HARD", 22),
		Score:     selection.Score{ExpectedRaceTime: 5330.5, ExpectedPoints: 12.25, Composite: 9.87654},
		Trigger:   "Safety car or race chaos",
	}
	res := &season.Result{
		Spec: season.DefaultSpec(),
		Races: []season.RaceResult{{
			Race:           r,
			Prediction:     sim.PacePrediction{Driver: "NOR", BaseLapTime: 91.23456},
			Recommendation: selection.Recommendation{Race: r, Primary: primary, Contingencies: []selection.Scored{alt}},
		}},
	}

	// WHEN written
	var buf bytes.Buffer
	require.NoError(t, WriteRecommendations(&buf, res))

	// THEN the row carries the primary plan, one fallback and an empty slot
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	row := map[string]string{}
	for i, h := range records[0] {
		row[h] = records[1][i]
	}
	assert.Equal(t, "Bahrain Grand Prix", row["event_name"])
	assert.Equal(t, "2025", row["year"])
	assert.Equal(t, "91.235", row["predicted_base_lap_sec"])
	assert.Equal(t, "ONE_STOP_MEDIUM_HARD_L20", row["best_strategy"])
	assert.Equal(t, "MEDIUM->HARD", row["compounds"])
	assert.Equal(t, "20", row["pit_laps"])
	assert.Equal(t, "20", row["first_pit_lap"])
	assert.Equal(t, "MEDIUM", row["start_compound"])
	assert.Equal(t, "Start on MEDIUM; Pit on lap 20 -> HARD", row["strategy_plan"])
	assert.Equal(t, "5321.235", row["expected_race_time"])
	assert.Equal(t, "0.1235", row["win_probability"])
	assert.Equal(t, "14.568", row["strategy_score"])
	assert.Equal(t, "4", row["top3_scenario_hits"])

	assert.Equal(t, "TWO_STOP_SOFT_MEDIUM_HARD_L15_35", row["fallback_2_strategy"])
	assert.Equal(t, "15,35", row["fallback_2_pit_laps"])
	assert.Equal(t, "2", row["fallback_2_stops"])
	assert.Equal(t, "Safety car or race chaos", row["fallback_2_trigger"])
	assert.Equal(t, "5330.5", row["fallback_2_expected_race_time"])
	assert.Equal(t, "12.25", row["fallback_2_expected_points"])
	assert.Equal(t, "9.877", row["fallback_2_strategy_score"])
	assert.Equal(t, "", row["fallback_3_strategy"])
	assert.Equal(t, "0", row["fallback_3_stops"])
	assert.Equal(t, "", row["fallback_3_strategy_score"])
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "1.5", formatFloat(1.50004, 3))
	assert.Equal(t, "-0.123", formatFloat(-0.12345, 3))
	assert.Equal(t, "12", formatFloat(12, 4))
}

func TestWriteAll(t *testing.T) {
	// GIVEN a small permissive season
	spec := season.DefaultSpec()
	spec.Calendar = []sim.Race{{ID: "bahrain", Round: 1, Name: "Bahrain Grand Prix"}, {ID: "monza", Round: 2, Name: "Italian Grand Prix"}}
	spec.Model.NEstimators = 20
	spec.Simulation.Draws = 40
	spec.Championship.Resamples = 100
	spec.Contingency.Enabled = false
	spec.Trace.Level = "decisions"
	res, err := season.Run(context.Background(), spec, season.Inputs{})
	require.NoError(t, err)

	// WHEN every artifact is written
	dir := t.TempDir()
	outputs, err := WriteAll(dir, res)
	require.NoError(t, err)

	// THEN each output exists and the summary lists the others
	for _, name := range []string{OutputTrainingFeatures, OutputModelMetrics, OutputModel, OutputRecommendations, OutputProjection, OutputTrace, OutputSummary} {
		require.Contains(t, outputs, name)
		assert.FileExists(t, outputs[name])
	}
	assert.Equal(t, filepath.Join(dir, "strategy_recommendations_2025.csv"), outputs[OutputRecommendations])

	data, err := os.ReadFile(outputs[OutputSummary])
	require.NoError(t, err)
	var summary RunSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 2, summary.Races)
	assert.True(t, summary.UsedSyntheticTraining)
	assert.NotContains(t, summary.Outputs, OutputSummary)
	nor, ok := res.Projection.Driver("NOR")
	require.True(t, ok)
	assert.Equal(t, nor.TitleProbability, summary.DriverTitleProbability)
	assert.Len(t, res.Projection.Drivers, 10, "target plus the reference field")
	require.NotNil(t, summary.Trace)
	assert.Equal(t, 2, summary.Trace.TotalDecisions)

	f, err := os.Open(outputs[OutputModel])
	require.NoError(t, err)
	defer f.Close()
	_, err = pace.Load(f)
	assert.NoError(t, err)

	training, err := ReadFeatureTableFile(outputs[OutputTrainingFeatures])
	require.NoError(t, err)
	assert.Equal(t, res.Training.Len(), training.Len())
}
