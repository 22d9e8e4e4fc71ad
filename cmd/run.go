package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/lock"
	"github.com/f1-strategy-lab/strategylab/sim/metrics"
	"github.com/f1-strategy-lab/strategylab/sim/pace"
	"github.com/f1-strategy-lab/strategylab/sim/report"
	"github.com/f1-strategy-lab/strategylab/sim/season"
)

// runCmd executes the season pipeline using the spec plus flag overrides
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Train the pace model, pick strategies and project the championship",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		spec, err := loadSpec(configPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		ov := overrides{
			Training:        trainingCSV,
			Inference:       inferenceCSV,
			ReportsDir:      reportsDir,
			Mode:            runMode,
			SeedSet:         cmd.Flags().Changed("seed"),
			Seed:            seed,
			Workers:         workers,
			LockRoot:        lockRoot,
			MetricsTextfile: metricsTextfile,
		}
		if err := ov.apply(spec); err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out, err := execute(ctx, spec, configPath, lockRun)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		printOutcome(out)
	},
}

// overrides are CLI flag values applied on top of a loaded spec.
// Empty strings and negative workers leave the spec untouched.
type overrides struct {
	Training        string
	Inference       string
	ReportsDir      string
	Mode            string
	SeedSet         bool
	Seed            int64
	Workers         int
	LockRoot        string
	MetricsTextfile string
}

func (o overrides) apply(spec *season.Spec) error {
	if o.Training != "" {
		spec.Paths.TrainingCSV = o.Training
	}
	if o.Inference != "" {
		spec.Paths.InferenceCSV = o.Inference
	}
	if o.ReportsDir != "" {
		spec.Paths.ReportsDir = o.ReportsDir
	}
	if o.Mode != "" {
		spec.Mode = sim.Mode(o.Mode)
	}
	if o.SeedSet {
		spec.Seed = o.Seed
	}
	if o.Workers >= 0 {
		spec.Simulation.Workers = o.Workers
	}
	if o.LockRoot != "" {
		spec.Paths.LockRoot = o.LockRoot
	}
	if o.MetricsTextfile != "" {
		spec.Paths.MetricsTextfile = o.MetricsTextfile
	}
	return spec.Validate()
}

// loadSpec reads the season spec, or returns the defaults for an empty path.
func loadSpec(path string) (*season.Spec, error) {
	if path == "" {
		return season.DefaultSpec(), nil
	}
	return season.LoadSpec(path)
}

// readInputs loads the configured feature tables. A missing path yields an
// empty table, which the pipeline rejects or replaces depending on the mode.
func readInputs(spec *season.Spec) (season.Inputs, error) {
	var in season.Inputs
	read := func(path string) (*pace.FeatureTable, error) {
		if path == "" {
			return nil, nil
		}
		return report.ReadFeatureTableFile(path)
	}
	var err error
	if in.Training, err = read(spec.Paths.TrainingCSV); err != nil {
		return in, fmt.Errorf("reading training table: %w", err)
	}
	if in.Inference, err = read(spec.Paths.InferenceCSV); err != nil {
		return in, fmt.Errorf("reading inference table: %w", err)
	}
	return in, nil
}

// outcome is everything a completed run produced.
type outcome struct {
	Result  *season.Result
	Outputs map[string]string
	LockDir string
}

// execute runs the pipeline, writes the reports and optionally the metrics
// textfile and the locked snapshot.
func execute(ctx context.Context, spec *season.Spec, specPath string, freeze bool) (*outcome, error) {
	if freeze {
		if spec.Mode != sim.ModeStrict {
			return nil, fmt.Errorf("%w: run with mode strict (got %q)", lock.ErrNotLockable, spec.Mode)
		}
		if spec.Paths.LockRoot == "" {
			return nil, errors.New("locking requires paths.lock_root or --lock-root")
		}
	}
	in, err := readInputs(spec)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"driver": spec.TargetDriver, "team": spec.Team, "year": spec.TargetYear,
		"mode": spec.Mode, "seed": spec.Seed, "races": len(spec.Calendar),
	}).Info("starting season run")

	res, err := season.Run(ctx, spec, in)
	if err != nil {
		return nil, err
	}
	outputs, err := report.WriteAll(spec.Paths.ReportsDir, res)
	if err != nil {
		return nil, fmt.Errorf("writing reports: %w", err)
	}
	out := &outcome{Result: res, Outputs: outputs}

	if spec.Paths.MetricsTextfile != "" {
		reg := metrics.NewRegistry()
		reg.ObserveRun(res)
		if err := reg.WriteTextfile(spec.Paths.MetricsTextfile); err != nil {
			return nil, err
		}
	}

	if freeze {
		dir, err := freezeRun(res, specPath, outputs)
		if err != nil {
			return nil, err
		}
		out.LockDir = dir
	}
	return out, nil
}

// freezeRun snapshots the outputs of a strict run on real data after
// checking that every calendar round produced a recommendation.
func freezeRun(res *season.Result, specPath string, outputs map[string]string) (string, error) {
	spec := res.Spec
	expected := make([]string, len(res.Calendar))
	for i, r := range res.Calendar {
		expected[i] = r.ID
	}
	produced := make([]string, len(res.Races))
	for i, rr := range res.Races {
		produced[i] = rr.Race.ID
	}
	dir, _, err := lock.Create(lock.Request{
		Root:       spec.Paths.LockRoot,
		Year:       spec.TargetYear,
		Team:       spec.Team,
		Driver:     spec.TargetDriver,
		ConfigPath: specPath,
		Config:     spec,
		Summary:    report.NewRunSummary(res, outputs),
		Outputs:    outputs,
		Rounds:     lock.ValidateRounds(expected, produced),
		Mode:       spec.Mode,
		Synthetic:  res.SyntheticTraining || res.SyntheticInference,
	})
	if err != nil {
		return "", fmt.Errorf("locking run: %w", err)
	}
	return dir, nil
}

func printOutcome(out *outcome) {
	res := out.Result
	fmt.Printf("=== Season %d: %s (%s) ===\n", res.Spec.TargetYear, res.Spec.TargetDriver, res.Spec.Team)
	fmt.Printf("Pace model: MAE=%.3f RMSE=%.3f R2=%.3f\n", res.Metrics.MAE, res.Metrics.RMSE, res.Metrics.R2)
	for _, rr := range res.Races {
		p := rr.Recommendation.Primary
		fmt.Printf("  R%02d %-28s %-40s score=%.3f win=%.3f\n",
			rr.Race.Round, rr.Race.Name, p.Candidate.Name(), p.Score.Composite, p.Score.WinProbability)
	}
	for _, id := range res.Skipped {
		fmt.Printf("  skipped %s\n", id)
	}
	if res.Projection != nil {
		if d, ok := res.Projection.Driver(res.Spec.TargetDriver); ok {
			fmt.Printf("Title probability: %.3f  expected points: %.1f\n", d.TitleProbability, d.MeanPoints)
		}
	}
	fmt.Printf("Reports: %s\n", res.Spec.Paths.ReportsDir)
	if out.LockDir != "" {
		fmt.Printf("Locked snapshot: %s\n", out.LockDir)
	}
}
