package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/season"
	"github.com/f1-strategy-lab/strategylab/sim/trace"
)

// demoCmd runs a permissive season on synthetic data
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a six-race permissive season on synthetic data",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		spec := demoSpec(demoReportsDir, demoSeed)
		if err := spec.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out, err := execute(ctx, spec, "", false)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		printOutcome(out)
	},
}

// demoSpec is the default spec with a short calendar, a five-car field and
// decision tracing. Lap counts come from the event-name hints.
func demoSpec(dir string, seed int64) *season.Spec {
	spec := season.DefaultSpec()
	spec.ProjectName = "strategylab-demo"
	spec.Seed = seed
	spec.Mode = sim.ModePermissive
	spec.Paths.ReportsDir = dir
	spec.Calendar = []sim.Race{
		{ID: "bahrain", Round: 1, Name: "Bahrain Grand Prix"},
		{ID: "jeddah", Round: 2, Name: "Saudi Arabian Grand Prix"},
		{ID: "melbourne", Round: 3, Name: "Australian Grand Prix"},
		{ID: "suzuka", Round: 4, Name: "Japanese Grand Prix"},
		{ID: "monaco", Round: 5, Name: "Monaco Grand Prix"},
		{ID: "monza", Round: 6, Name: "Italian Grand Prix"},
	}
	spec.Field = []sim.FieldEntry{
		{Driver: "NOR", Team: "MCLAREN"},
		{Driver: "PIA", Team: "MCLAREN", PaceOffset: 0.05},
		{Driver: "VER", Team: "RED BULL", PaceOffset: 0.02},
		{Driver: "LEC", Team: "FERRARI", PaceOffset: 0.12},
		{Driver: "RUS", Team: "MERCEDES", PaceOffset: 0.18},
	}
	spec.Simulation.Draws = 300
	spec.Championship.Resamples = 1000
	spec.Trace = trace.TraceConfig{Level: trace.TraceLevelDecisions, CounterfactualK: 3}
	return spec
}
