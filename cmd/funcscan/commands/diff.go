package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/funcscan/pkg/report"
)

// ErrReportsDiffer is returned by diff --exit-code when the reports differ.
var ErrReportsDiffer = errors.New("reports differ")

// NewDiffCommand creates the diff command.
func NewDiffCommand() *cobra.Command {
	var asJSON, exitCode bool

	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "Compare the function tallies and signatures of two reports",
		Long: `Compare two JSON reports. Added, removed and recounted function names are
listed; when both reports were written with --files, changed signatures of
functions present in both are shown with an inline character diff.

Output lines:
  + name            function only in the new report
  - name            function only in the old report
  ~ name: 2 -> 3    occurrence count changed
  ! a::f: ...       signature changed`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.OutOrStdout(), args[0], args[1], asJSON, exitCode)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the delta as JSON")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "fail when the reports differ")

	return cmd
}

func runDiff(out io.Writer, oldPath, newPath string, asJSON, exitCode bool) error {
	oldRep, err := readReport(oldPath)
	if err != nil {
		return err
	}

	newRep, err := readReport(newPath)
	if err != nil {
		return err
	}

	delta := report.Diff(oldRep, newRep)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		err = enc.Encode(delta)
		if err != nil {
			return fmt.Errorf("encode delta: %w", err)
		}
	} else {
		err = report.WriteDiff(out, delta)
		if err != nil {
			return err
		}
	}

	if exitCode && !delta.Empty() {
		return ErrReportsDiffer
	}

	return nil
}

func readReport(path string) (*report.Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	rep, err := report.Read(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return rep, nil
}
