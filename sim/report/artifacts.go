package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/championship"
	"github.com/f1-strategy-lab/strategylab/sim/pace"
	"github.com/f1-strategy-lab/strategylab/sim/season"
	"github.com/f1-strategy-lab/strategylab/sim/trace"
)

// Output names, used as keys in the summary and the lock manifest.
const (
	OutputTrainingFeatures = "training_features"
	OutputModelMetrics     = "model_metrics"
	OutputModel            = "model"
	OutputRecommendations  = "strategy_recommendations"
	OutputProjection       = "championship_projection"
	OutputTrace            = "selection_trace"
	OutputSummary          = "run_summary"
)

// ChampionshipReport is the projection artifact with the target driver and
// team pulled to the top.
type ChampionshipReport struct {
	Driver                       string                   `json:"driver"`
	Team                         string                   `json:"team"`
	Year                         int                      `json:"year"`
	DriverTitleProbability       float64                  `json:"driver_title_probability"`
	ConstructorsTitleProbability float64                  `json:"constructors_title_probability"`
	ExpectedPoints               float64                  `json:"expected_points"`
	ExpectedWins                 float64                  `json:"expected_wins"`
	UsedSyntheticTraining        bool                     `json:"used_synthetic_training"`
	UsedSyntheticInference       bool                     `json:"used_synthetic_inference"`
	Projection                   *championship.Projection `json:"projection"`
}

// RunSummary describes a completed run.
type RunSummary struct {
	ProjectName            string              `json:"project_name"`
	Team                   string              `json:"team"`
	Driver                 string              `json:"driver"`
	Year                   int                 `json:"year"`
	Mode                   sim.Mode            `json:"mode"`
	Seed                   int64               `json:"seed"`
	TrainingRows           int                 `json:"training_rows"`
	InferenceRows          int                 `json:"inference_rows"`
	UsedSyntheticTraining  bool                `json:"used_synthetic_training"`
	UsedSyntheticInference bool                `json:"used_synthetic_inference"`
	Races                  int                 `json:"races"`
	Skipped                []string            `json:"skipped,omitempty"`
	Metrics                pace.Metrics        `json:"metrics"`
	DriverTitleProbability float64             `json:"driver_title_probability"`
	TeamTitleProbability   float64             `json:"constructors_title_probability"`
	Trace                  *trace.TraceSummary `json:"trace,omitempty"`
	DurationsSeconds       map[string]float64  `json:"durations_seconds"`
	Outputs                map[string]string   `json:"outputs"`
}

// NewChampionshipReport builds the projection artifact for a run.
func NewChampionshipReport(res *season.Result) ChampionshipReport {
	rep := ChampionshipReport{
		Driver:                 res.Spec.TargetDriver,
		Team:                   res.Spec.Team,
		Year:                   res.Spec.TargetYear,
		UsedSyntheticTraining:  res.SyntheticTraining,
		UsedSyntheticInference: res.SyntheticInference,
		Projection:             res.Projection,
	}
	if res.Projection == nil {
		return rep
	}
	if d, ok := res.Projection.Driver(res.Spec.TargetDriver); ok {
		rep.DriverTitleProbability = d.TitleProbability
		rep.ExpectedPoints = d.MeanPoints
		rep.ExpectedWins = d.ExpectedWins
	}
	if t, ok := res.Projection.Constructor(res.Spec.Team); ok {
		rep.ConstructorsTitleProbability = t.TitleProbability
	}
	return rep
}

// NewRunSummary builds the summary for a run and its written outputs.
func NewRunSummary(res *season.Result, outputs map[string]string) RunSummary {
	champ := NewChampionshipReport(res)
	s := RunSummary{
		ProjectName:            res.Spec.ProjectName,
		Team:                   res.Spec.Team,
		Driver:                 res.Spec.TargetDriver,
		Year:                   res.Spec.TargetYear,
		Mode:                   res.Spec.Mode,
		Seed:                   res.Spec.Seed,
		TrainingRows:           res.Training.Len(),
		InferenceRows:          res.Inference.Len(),
		UsedSyntheticTraining:  res.SyntheticTraining,
		UsedSyntheticInference: res.SyntheticInference,
		Races:                  len(res.Races),
		Skipped:                res.Skipped,
		Metrics:                res.Metrics,
		DriverTitleProbability: champ.DriverTitleProbability,
		TeamTitleProbability:   champ.ConstructorsTitleProbability,
		DurationsSeconds:       make(map[string]float64, len(res.Durations)),
		Outputs:                outputs,
	}
	if res.Trace != nil {
		s.Trace = trace.Summarize(res.Trace)
	}
	for stage, d := range res.Durations {
		s.DurationsSeconds[stage] = d.Seconds()
	}
	return s
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file %s: %w", path, err)
	}
	return nil
}

// writeFile creates path and streams content into it.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteAll writes every artifact of a run into dir and returns the output
// paths keyed by name, run summary included.
func WriteAll(dir string, res *season.Result) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	year := res.Spec.TargetYear
	outputs := map[string]string{
		OutputTrainingFeatures: filepath.Join(dir, "training_features.csv"),
		OutputModelMetrics:     filepath.Join(dir, "model_metrics.json"),
		OutputModel:            filepath.Join(dir, "pace_model.json"),
		OutputRecommendations:  filepath.Join(dir, fmt.Sprintf("strategy_recommendations_%d.csv", year)),
		OutputProjection:       filepath.Join(dir, fmt.Sprintf("championship_projection_%d.json", year)),
	}

	if err := writeFile(outputs[OutputTrainingFeatures], func(w io.Writer) error {
		return WriteFeatureTable(w, res.Training)
	}); err != nil {
		return nil, err
	}
	if err := WriteJSON(outputs[OutputModelMetrics], res.Metrics); err != nil {
		return nil, err
	}
	if err := writeFile(outputs[OutputModel], res.Model.Save); err != nil {
		return nil, err
	}
	if err := writeFile(outputs[OutputRecommendations], func(w io.Writer) error {
		return WriteRecommendations(w, res)
	}); err != nil {
		return nil, err
	}
	if err := WriteJSON(outputs[OutputProjection], NewChampionshipReport(res)); err != nil {
		return nil, err
	}
	if res.Trace != nil {
		outputs[OutputTrace] = filepath.Join(dir, "selection_trace.json")
		if err := WriteJSON(outputs[OutputTrace], res.Trace); err != nil {
			return nil, err
		}
	}

	summaryPath := filepath.Join(dir, "run_summary.json")
	if err := WriteJSON(summaryPath, NewRunSummary(res, outputs)); err != nil {
		return nil, err
	}
	all := make(map[string]string, len(outputs)+1)
	for k, v := range outputs {
		all[k] = v
	}
	all[OutputSummary] = summaryPath

	logrus.WithFields(logrus.Fields{"dir": dir, "files": len(all)}).Info("reports written")
	return all, nil
}
