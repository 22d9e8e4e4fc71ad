package season

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/championship"
	"github.com/f1-strategy-lab/strategylab/sim/contingency"
	"github.com/f1-strategy-lab/strategylab/sim/pace"
	"github.com/f1-strategy-lab/strategylab/sim/race"
	"github.com/f1-strategy-lab/strategylab/sim/selection"
	"github.com/f1-strategy-lab/strategylab/sim/strategy"
	"github.com/f1-strategy-lab/strategylab/sim/synthetic"
	"github.com/f1-strategy-lab/strategylab/sim/trace"
)

// syntheticRounds is the placeholder season length used when a permissive
// run has neither a calendar nor pre-race rows.
const syntheticRounds = 24

// Fallback kinds recorded in the decision trace.
const (
	FallbackSyntheticTraining  = "synthetic_training"
	FallbackSyntheticInference = "synthetic_inference"
	FallbackMissingInference   = "missing_inference"
	FallbackRivalOffset        = "rival_offset"
)

// Stage names used in Result.Durations.
const (
	StageTrain        = "train"
	StageRaces        = "races"
	StageChampionship = "championship"
)

// Inputs are the feature tables of a run. Either may be nil.
type Inputs struct {
	Training  *pace.FeatureTable
	Inference *pace.FeatureTable
}

// RaceResult is the outcome for one calendar race.
type RaceResult struct {
	Race           sim.Race
	Prediction     sim.PacePrediction   // target driver
	Field          []sim.PacePrediction // every entrant, field order
	Conditions     sim.RaceConditions
	Candidates     int
	Draws          int // baseline draws simulated across all candidates
	Recommendation selection.Recommendation
}

// Result is everything a season run produced.
type Result struct {
	Spec               *Spec
	Model              *pace.Model
	Metrics            pace.Metrics
	Training           *pace.FeatureTable
	Inference          *pace.FeatureTable
	SyntheticTraining  bool
	SyntheticInference bool
	Calendar           []sim.Race // resolved calendar, lap counts filled in
	Races              []RaceResult
	Skipped            []string // calendar races without a pre-race row for the target
	Projection         *championship.Projection
	Trace              *trace.SimulationTrace // nil unless tracing is enabled
	Durations          map[string]time.Duration
}

// Recommendations returns the per-race recommendations in calendar order.
func (r *Result) Recommendations() []selection.Recommendation {
	out := make([]selection.Recommendation, len(r.Races))
	for i, rr := range r.Races {
		out[i] = rr.Recommendation
	}
	return out
}

// Run trains the pace model, selects a strategy for every calendar race and
// projects the championship. Strict mode requires non-empty tables and a
// fully covered calendar; permissive mode substitutes synthetic tables and
// lets the aggregator pool uncovered races.
func Run(ctx context.Context, spec *Spec, in Inputs) (*Result, error) {
	key := spec.Key()
	res := &Result{Spec: spec, Durations: map[string]time.Duration{}}
	if spec.Trace.Enabled() {
		res.Trace = trace.NewSimulationTrace(spec.Trace)
	}
	field := spec.RaceField()
	synthOpts := synthetic.DefaultOptions()
	synthOpts.Year = spec.TargetYear
	synthOpts.Team, synthOpts.Driver = spec.Team, spec.TargetDriver
	synthOpts.Field = field
	if len(spec.TrainingYears) > 0 {
		synthOpts.FirstYear = spec.TrainingYears[0]
	}

	start := time.Now()
	res.Training = in.Training
	if res.Training.Len() == 0 {
		if spec.Mode == sim.ModeStrict {
			return nil, sim.NewTrainingDataError("training table is empty", "")
		}
		logrus.Warn("training table is empty; falling back to synthetic training data")
		res.Training = synthetic.Training(key, synthOpts)
		res.SyntheticTraining = true
		res.Trace.RecordFallback(trace.FallbackRecord{Kind: FallbackSyntheticTraining, Reason: "training table is empty"})
	}
	res.Model = pace.NewModel(spec.Model)
	metrics, err := res.Model.Train(res.Training, pace.DefaultTarget)
	if err != nil {
		return nil, fmt.Errorf("training pace model: %w", err)
	}
	res.Metrics = metrics
	res.Durations[StageTrain] = time.Since(start)
	logrus.WithFields(logrus.Fields{
		"rows": res.Training.Len(),
		"mae":  metrics.MAE,
		"rmse": metrics.RMSE,
		"r2":   metrics.R2,
	}).Info("pace model trained")

	res.Inference = in.Inference
	calendar := spec.Calendar
	if len(calendar) == 0 {
		if res.Inference.Len() > 0 {
			calendar = calendarFromEvents(res.Inference.Events())
		} else {
			calendar = synthetic.Calendar(syntheticRounds)
		}
	}
	if res.Inference.Len() == 0 {
		if spec.Mode == sim.ModeStrict {
			return nil, sim.NewTrainingDataError("inference table is empty", "")
		}
		logrus.Warn("inference table is empty; falling back to a synthetic pre-race set")
		res.Inference = synthetic.Inference(key, synthOpts, calendar)
		res.SyntheticInference = true
		res.Trace.RecordFallback(trace.FallbackRecord{Kind: FallbackSyntheticInference, Reason: "inference table is empty"})
	}

	start = time.Now()
	rows := indexRows(res.Inference)
	simulator := race.NewSimulator(key, spec.Simulation, spec.Strategy.CandidateConstraints, spec.Championship.Scoring)
	assessor := contingency.NewAssessor(key, spec.Simulation, spec.Strategy.CandidateConstraints,
		spec.Championship.Scoring, spec.Selection.Weights, spec.Contingency)
	res.Calendar = make([]sim.Race, len(calendar))
	for i, r := range calendar {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.Laps = RaceLaps(r.Laps, r.Name, r.ID, spec.Strategy.DefaultTotalLaps)
		res.Calendar[i] = r

		entrants := rows.lookup(r)
		targetRow, ok := entrants[spec.TargetDriver]
		if !ok {
			logrus.WithField("race", r.ID).Warn("no pre-race row for the target driver; race skipped")
			res.Skipped = append(res.Skipped, r.ID)
			res.Trace.RecordFallback(trace.FallbackRecord{RaceID: r.ID, Kind: FallbackMissingInference, Reason: "no pre-race row for " + spec.TargetDriver})
			continue
		}
		rr, err := runRace(ctx, spec, res, simulator, assessor, r, field, entrants, targetRow)
		if err != nil {
			return nil, err
		}
		res.Races = append(res.Races, rr)
	}
	res.Durations[StageRaces] = time.Since(start)

	start = time.Now()
	agg := championship.NewAggregator(key, spec.Championship, spec.Mode, spec.Simulation.Workers).WithTrace(res.Trace)
	proj, err := agg.Project(ctx, res.Calendar, field, res.Recommendations())
	if err != nil {
		return nil, fmt.Errorf("projecting championship: %w", err)
	}
	res.Projection = proj
	res.Durations[StageChampionship] = time.Since(start)

	logrus.WithFields(logrus.Fields{
		"races":   len(res.Races),
		"skipped": len(res.Skipped),
		"mode":    spec.Mode,
		"seed":    spec.Seed,
	}).Info("season run complete")
	return res, nil
}

func runRace(ctx context.Context, spec *Spec, res *Result, simulator *race.Simulator, assessor *contingency.Assessor,
	r sim.Race, field []sim.FieldEntry, entrants map[string]pace.FeatureRow, targetRow pace.FeatureRow) (RaceResult, error) {
	target, err := res.Model.Predict(targetRow)
	if err != nil {
		return RaceResult{}, &sim.SimulationError{RaceID: r.ID, Err: err}
	}
	var targetOffset float64
	for _, e := range field {
		if e.Driver == spec.TargetDriver {
			targetOffset = e.PaceOffset
		}
	}

	preds := make([]sim.PacePrediction, len(field))
	var targetPred sim.PacePrediction
	for i, e := range field {
		p := sim.PacePrediction{Driver: e.Driver, Team: e.Team, Uncertainty: target.Uncertainty}
		if row, ok := entrants[e.Driver]; ok {
			pred, err := res.Model.Predict(row)
			if err != nil {
				return RaceResult{}, &sim.SimulationError{RaceID: r.ID, Err: err}
			}
			p.BaseLapTime, p.Uncertainty = pred.Value, pred.Uncertainty
		} else {
			p.BaseLapTime = target.Value + e.PaceOffset - targetOffset
			res.Trace.RecordFallback(trace.FallbackRecord{RaceID: r.ID, Kind: FallbackRivalOffset,
				Reason: fmt.Sprintf("no pre-race row for %s; target pace %+.3fs", e.Driver, e.PaceOffset-targetOffset)})
		}
		preds[i] = p
		if e.Driver == spec.TargetDriver {
			targetPred = p
		}
	}

	candidates, err := strategy.Generate(r.Laps, spec.Strategy.CandidateConstraints)
	if err != nil {
		return RaceResult{}, &sim.SimulationError{RaceID: r.ID, Err: err}
	}
	in := race.Input{
		Race:       r,
		Conditions: ConditionsFromRow(targetRow),
		Field:      preds,
		Target:     spec.TargetDriver,
	}
	outcomes, err := simulator.Run(ctx, in, candidates, sim.ScopeRace)
	if err != nil {
		return RaceResult{}, err
	}
	rec, err := selection.Select(r, outcomes, spec.Selection)
	if err != nil {
		return RaceResult{}, err
	}
	if spec.Contingency.Enabled {
		if err := assessor.Assess(ctx, in, &rec); err != nil {
			return RaceResult{}, fmt.Errorf("contingency scenarios for %s: %w", r.ID, err)
		}
	}
	res.Trace.RecordSelection(selection.TraceRecord(&rec, spec.Trace.CounterfactualK))

	return RaceResult{
		Race:           r,
		Prediction:     targetPred,
		Field:          preds,
		Conditions:     in.Conditions,
		Candidates:     len(candidates),
		Draws:          len(candidates) * spec.Simulation.Draws,
		Recommendation: rec,
	}, nil
}

// rowIndex maps a lower-cased event name to its rows keyed by driver.
type rowIndex map[string]map[string]pace.FeatureRow

func indexRows(t *pace.FeatureTable) rowIndex {
	idx := rowIndex{}
	for _, r := range t.Rows {
		ev := eventKey(r.Event)
		if idx[ev] == nil {
			idx[ev] = map[string]pace.FeatureRow{}
		}
		driver := strings.ToUpper(strings.TrimSpace(r.Driver))
		if _, dup := idx[ev][driver]; !dup {
			idx[ev][driver] = r
		}
	}
	return idx
}

// lookup matches a race by name, then by id.
func (idx rowIndex) lookup(r sim.Race) map[string]pace.FeatureRow {
	for _, k := range []string{r.Name, r.ID} {
		if k == "" {
			continue
		}
		if rows, ok := idx[eventKey(k)]; ok {
			return rows
		}
	}
	return nil
}

func eventKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// calendarFromEvents builds a calendar from pre-race event names in order.
func calendarFromEvents(events []string) []sim.Race {
	out := make([]sim.Race, len(events))
	for i, ev := range events {
		out[i] = sim.Race{
			ID:    strings.Join(strings.Fields(strings.ToLower(ev)), "_"),
			Round: i + 1,
			Name:  ev,
		}
	}
	return out
}
