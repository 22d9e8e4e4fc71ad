package pace

import (
	"fmt"
	"io"
	"math"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/f1-strategy-lab/strategylab/sim"
)

// DefaultTarget is the target column for race pace.
const DefaultTarget = "target_race_pace"

// ModelConfig groups gradient boosting hyperparameters.
type ModelConfig struct {
	TestSize       float64 `yaml:"test_size" json:"test_size" validate:"gte=0,lt=1"`
	RandomState    int64   `yaml:"random_state" json:"random_state"`
	NEstimators    int     `yaml:"n_estimators" json:"n_estimators" validate:"min=1"`
	LearningRate   float64 `yaml:"learning_rate" json:"learning_rate" validate:"gt=0,lte=1"`
	MaxDepth       int     `yaml:"max_depth" json:"max_depth" validate:"min=1"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf" json:"min_samples_leaf" validate:"min=1"`
}

// DefaultModelConfig returns the booster defaults.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		TestSize:       0.2,
		RandomState:    42,
		NEstimators:    300,
		LearningRate:   0.05,
		MaxDepth:       4,
		MinSamplesLeaf: 2,
	}
}

// Metrics is the held-out model quality record.
type Metrics struct {
	MAE            float64  `json:"mae"`
	RMSE           float64  `json:"rmse"`
	R2             float64  `json:"r2"`
	TrainRows      int      `json:"train_rows"`
	ValidationRows int      `json:"validation_rows"`
	FeatureColumns []string `json:"feature_columns"`
	TargetColumn   string   `json:"target_column"`
}

// Prediction is a point estimate with residual-based uncertainty.
type Prediction struct {
	Value       float64 `json:"value"`
	Uncertainty float64 `json:"uncertainty"`
}

// modelState is everything a fitted model needs for inference.
type modelState struct {
	Config      ModelConfig `json:"config"`
	Target      string      `json:"target"`
	Encoder     encoder     `json:"encoder"`
	Init        float64     `json:"init"`
	Trees       []tree      `json:"trees"`
	Uncertainty float64     `json:"uncertainty"`
	Metrics     Metrics     `json:"metrics"`
}

// Model is the pace regressor. Read-only once trained; safe to share across
// goroutines for Predict.
type Model struct {
	cfg   ModelConfig
	state *modelState
}

// NewModel creates an untrained model.
func NewModel(cfg ModelConfig) *Model {
	return &Model{cfg: cfg}
}

// Trained reports whether the model has been fitted or loaded.
func (m *Model) Trained() bool {
	return m.state != nil
}

// Metrics returns the quality record of the fitted model.
func (m *Model) Metrics() (Metrics, error) {
	if m.state == nil {
		return Metrics{}, &sim.ModelNotTrainedError{Op: "report metrics"}
	}
	return m.state.Metrics, nil
}

// Train fits the model on table against the target column and returns
// held-out metrics.
func (m *Model) Train(table *FeatureTable, target string) (Metrics, error) {
	if err := table.Validate(); err != nil {
		return Metrics{}, err
	}
	col, ok := table.Schema.Lookup(target)
	if !ok {
		return Metrics{}, sim.NewTrainingDataError("target column missing from schema", target)
	}
	if col.Kind != KindNumeric {
		return Metrics{}, sim.NewTrainingDataError("target column must be numeric", target)
	}
	y := make([]float64, len(table.Rows))
	for i, r := range table.Rows {
		v, ok := r.Value(target)
		if !ok {
			return Metrics{}, &sim.TrainingDataError{Reason: "missing target value", Column: target, Row: i}
		}
		y[i] = v
	}
	features := featureColumns(table.Schema, target)
	if len(features) == 0 {
		return Metrics{}, sim.NewTrainingDataError("no feature columns besides the target", target)
	}

	trainIdx, valIdx := m.split(len(table.Rows))
	trainRows := pick(table.Rows, trainIdx)
	enc := fitEncoder(trainRows, features)

	x := make([][]float64, len(table.Rows))
	for i, r := range table.Rows {
		x[i] = enc.encode(r)
	}

	init, trees := boost(x, y, trainIdx, m.cfg)
	state := &modelState{Config: m.cfg, Target: target, Encoder: enc, Init: init, Trees: trees}

	evalIdx := valIdx
	if len(evalIdx) == 0 {
		evalIdx = trainIdx
	}
	preds := make([]float64, len(evalIdx))
	actual := make([]float64, len(evalIdx))
	for k, i := range evalIdx {
		preds[k] = state.predict(x[i])
		actual[k] = y[i]
	}
	metrics := regressionMetrics(actual, preds)
	metrics.TrainRows = len(trainIdx)
	metrics.ValidationRows = len(valIdx)
	metrics.FeatureColumns = enc.featureNames()
	metrics.TargetColumn = target
	state.Metrics = metrics
	state.Uncertainty = residualStdDev(actual, preds)

	m.state = state
	logrus.WithFields(logrus.Fields{
		"rows":     len(table.Rows),
		"features": len(metrics.FeatureColumns),
		"trees":    len(trees),
		"mae":      metrics.MAE,
		"rmse":     metrics.RMSE,
	}).Info("pace model trained")
	return metrics, nil
}

// Predict returns the predicted target for a row. Missing numeric columns
// are imputed with training medians; unseen categories are ignored.
func (m *Model) Predict(r FeatureRow) (Prediction, error) {
	if m.state == nil {
		return Prediction{}, &sim.ModelNotTrainedError{Op: "predict"}
	}
	return Prediction{
		Value:       m.state.predict(m.state.Encoder.encode(r)),
		Uncertainty: m.state.Uncertainty,
	}, nil
}

// PredictAll predicts every row of a table in order.
func (m *Model) PredictAll(rows []FeatureRow) ([]Prediction, error) {
	out := make([]Prediction, len(rows))
	for i, r := range rows {
		p, err := m.Predict(r)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Save writes the fitted model as JSON.
func (m *Model) Save(w io.Writer) error {
	if m.state == nil {
		return &sim.ModelNotTrainedError{Op: "save"}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.state); err != nil {
		return fmt.Errorf("encoding pace model: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(r io.Reader) (*Model, error) {
	var state modelState
	if err := json.NewDecoder(r).Decode(&state); err != nil {
		return nil, fmt.Errorf("decoding pace model: %w", err)
	}
	if len(state.Trees) == 0 {
		return nil, fmt.Errorf("decoding pace model: no trees")
	}
	return &Model{cfg: state.Config, state: &state}, nil
}

func (s *modelState) predict(x []float64) float64 {
	out := s.Init
	for i := range s.Trees {
		out += s.Config.LearningRate * s.Trees[i].predict(x)
	}
	return out
}

// split returns a deterministic train/validation partition. At least one row
// is held out when there are two or more rows and TestSize > 0.
func (m *Model) split(n int) ([]int, []int) {
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(m.cfg.RandomState)).ForSubsystem(sim.SubsystemSplit)
	perm := rng.Perm(n)
	nVal := int(math.Ceil(float64(n)*m.cfg.TestSize - 1e-9))
	if n < 2 || m.cfg.TestSize <= 0 {
		nVal = 0
	} else if nVal >= n {
		nVal = n - 1
	}
	return perm[nVal:], perm[:nVal]
}

// boost fits the gradient-boosted ensemble on rows idx.
func boost(x [][]float64, y []float64, idx []int, cfg ModelConfig) (float64, []tree) {
	init := 0.0
	for _, i := range idx {
		init += y[i]
	}
	init /= float64(len(idx))

	current := make([]float64, len(y))
	for i := range current {
		current[i] = init
	}
	residual := make([]float64, len(y))
	trees := make([]tree, 0, cfg.NEstimators)
	for t := 0; t < cfg.NEstimators; t++ {
		for _, i := range idx {
			residual[i] = y[i] - current[i]
		}
		tr := fitTree(x, residual, idx, cfg.MaxDepth, cfg.MinSamplesLeaf)
		for _, i := range idx {
			current[i] += cfg.LearningRate * tr.predict(x[i])
		}
		trees = append(trees, tr)
	}
	return init, trees
}

func regressionMetrics(actual, pred []float64) Metrics {
	n := float64(len(actual))
	if n == 0 {
		return Metrics{}
	}
	diff := make([]float64, len(actual))
	floats.SubTo(diff, actual, pred)
	abs := 0.0
	for _, d := range diff {
		abs += math.Abs(d)
	}
	ssRes := floats.Dot(diff, diff)
	mean := stat.Mean(actual, nil)
	ssTot := 0.0
	for _, a := range actual {
		ssTot += (a - mean) * (a - mean)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return Metrics{MAE: abs / n, RMSE: math.Sqrt(ssRes / n), R2: r2}
}

func residualStdDev(actual, pred []float64) float64 {
	if len(actual) < 2 {
		return 0
	}
	diff := make([]float64, len(actual))
	floats.SubTo(diff, actual, pred)
	return stat.StdDev(diff, nil)
}

func pick(rows []FeatureRow, idx []int) []FeatureRow {
	out := make([]FeatureRow, len(idx))
	for k, i := range idx {
		out[k] = rows[i]
	}
	return out
}
