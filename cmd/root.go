package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel string // Log verbosity level

	// season run overrides
	configPath      string // Season spec YAML
	trainingCSV     string // Training feature table
	inferenceCSV    string // Inference feature table
	reportsDir      string // Output directory for reports
	runMode         string // strict or permissive
	seed            int64  // Root seed
	workers         int    // Candidate worker pool size
	lockRun         bool   // Freeze outputs into a snapshot
	lockRoot        string // Snapshot root directory
	metricsTextfile string // Prometheus textfile path

	// demo
	demoReportsDir string // Output directory for demo reports
	demoSeed       int64  // Demo root seed

	// candidates
	totalLaps int // Race distance in laps
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "strategylab",
	Short: "Race strategy and championship simulator",
}

// setLogLevel applies the --log flag.
func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&configPath, "config", "", "Season spec YAML (defaults apply when empty)")
	runCmd.Flags().StringVar(&trainingCSV, "training", "", "Training feature table CSV (overrides paths.training_csv)")
	runCmd.Flags().StringVar(&inferenceCSV, "inference", "", "Inference feature table CSV (overrides paths.inference_csv)")
	runCmd.Flags().StringVar(&reportsDir, "reports-dir", "", "Report output directory (overrides paths.reports_dir)")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Run mode: strict or permissive (overrides mode)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Root seed (overrides seed when set)")
	runCmd.Flags().IntVar(&workers, "workers", -1, "Candidate worker pool size, 0 = GOMAXPROCS (overrides simulation.workers when >= 0)")
	runCmd.Flags().BoolVar(&lockRun, "lock", false, "Freeze the outputs into a checksummed snapshot")
	runCmd.Flags().StringVar(&lockRoot, "lock-root", "", "Snapshot root directory (overrides paths.lock_root)")
	runCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file (overrides paths.metrics_textfile)")

	demoCmd.Flags().StringVar(&demoReportsDir, "reports-dir", "./reports/demo", "Report output directory")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 42, "Root seed")

	candidatesCmd.Flags().StringVar(&configPath, "config", "", "Season spec YAML supplying strategy constraints")
	candidatesCmd.Flags().IntVar(&totalLaps, "laps", 57, "Race distance in laps")

	rootCmd.AddCommand(runCmd, demoCmd, candidatesCmd, verifyCmd)
}
