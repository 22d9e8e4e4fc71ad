package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/strategy"
)

// candidatesCmd lists the strategy candidates generated for a race distance
var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List the strategy candidates for a race distance",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		spec, err := loadSpec(configPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := printCandidates(os.Stdout, totalLaps, spec.Strategy.CandidateConstraints); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func printCandidates(w io.Writer, laps int, c sim.CandidateConstraints) error {
	cands, err := strategy.Generate(laps, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d candidates for %d laps\n", len(cands), laps)
	for _, cand := range cands {
		flag := ""
		if cand.Degenerate {
			flag = " (degenerate)"
		}
		fmt.Fprintf(w, "%3d  %-40s pits=%v%s\n", cand.Index, cand.Name(), cand.PitLaps(), flag)
	}
	return nil
}
