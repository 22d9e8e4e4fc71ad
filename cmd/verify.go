package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/f1-strategy-lab/strategylab/sim/lock"
)

// verifyCmd re-hashes a locked snapshot
var verifyCmd = &cobra.Command{
	Use:   "verify <snapshot-dir>",
	Short: "Check a locked snapshot against its manifest",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		ok, err := verifySnapshot(os.Stdout, args[0])
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if !ok {
			logrus.Fatalf("snapshot %s does not match its manifest", args[0])
		}
	},
}

func verifySnapshot(w io.Writer, dir string) (bool, error) {
	mismatches, err := lock.Verify(dir)
	if err != nil {
		return false, err
	}
	for _, m := range mismatches {
		if m.Got == "" {
			fmt.Fprintf(w, "MISSING  %s (%s)\n", m.Name, m.File)
			continue
		}
		fmt.Fprintf(w, "MODIFIED %s (%s) want=%s got=%s\n", m.Name, m.File, m.Want, m.Got)
	}
	if len(mismatches) == 0 {
		fmt.Fprintf(w, "OK %s\n", dir)
	}
	return len(mismatches) == 0, nil
}
