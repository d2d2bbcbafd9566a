// Package main provides the entry point for the funcscan CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/funcscan/cmd/funcscan/commands"
	"github.com/Sumatoshi-tech/funcscan/pkg/version"
)

// exitCodeValidationFailure is the exit code for reports that fail validation.
const exitCodeValidationFailure = 2

func main() {
	version.InitBinaryVersion()

	rootCmd := commands.NewRootCommand()
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if errors.Is(err, commands.ErrValidationFailed) {
		os.Exit(exitCodeValidationFailure)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "funcscan %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
