package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/funcscan/pkg/report"
)

// ErrValidationFailed is returned when a report does not conform to the schema.
var ErrValidationFailed = errors.New("report validation failed")

// stdinPath selects standard input in place of a file argument.
const stdinPath = "-"

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var colorize, nocolor, quiet bool

	cmd := &cobra.Command{
		Use:   "validate <report.json|->",
		Short: "Validate a JSON report against the funcscan report schema",
		Long: `Validate a JSON report produced by funcscan against the embedded report schema.

Examples:
  funcscan validate report.json
  funcscan -o - src/ | funcscan validate -
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if nocolor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			} else if colorize {
				color.NoColor = false //nolint:reassign // intentional override of library global
			}

			return runValidate(cmd.InOrStdin(), cmd.OutOrStdout(), args[0], quiet)
		},
	}

	cmd.Flags().BoolVar(&colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing when the report is valid")

	return cmd
}

func runValidate(stdin io.Reader, out io.Writer, inputPath string, quiet bool) error {
	input, label, closeInput, err := openInput(stdin, inputPath)
	if err != nil {
		return err
	}
	defer closeInput()

	result, err := report.Validate(input)
	if err != nil {
		color.New(color.FgRed).Fprintf(out, "Invalid report (%s): %v\n", label, err)

		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	if result.Valid {
		if !quiet {
			color.New(color.FgGreen).Fprintf(out, "Report is valid (%s)\n", label)
		}

		return nil
	}

	color.New(color.FgRed).Fprintf(out, "Report validation failed (%s)\n", label)
	fmt.Fprintf(out, "\nErrors:\n")

	for _, violation := range result.Violations {
		color.New(color.FgRed).Fprintf(out, "  - %s\n", violation)
	}

	return fmt.Errorf("%w: %d violations in %s", ErrValidationFailed, len(result.Violations), label)
}

// openInput opens path for reading, or returns stdin for "-".
func openInput(stdin io.Reader, path string) (io.Reader, string, func(), error) {
	if path == stdinPath {
		return stdin, "stdin", func() {}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open %s: %w", path, err)
	}

	return file, path, func() { _ = file.Close() }, nil
}
