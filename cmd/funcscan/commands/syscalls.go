package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// NewSyscallsCommand creates the syscalls command.
func NewSyscallsCommand() *cobra.Command {
	var (
		path   string
		asJSON bool
		count  bool
	)

	cmd := &cobra.Command{
		Use:   "syscalls",
		Short: "Print the syscall list used for cross-referencing",
		Long: `Print the syscall names funcscan cross-references against, one per line.
Without --syscalls the embedded Linux x86_64 list is printed. The JSON output
is accepted back by --syscalls.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSyscalls(cmd.OutOrStdout(), path, asJSON, count)
		},
	}

	cmd.Flags().StringVarP(&path, "syscalls", "s", "", "syscall list file (default: embedded Linux list)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print a JSON array")
	cmd.Flags().BoolVar(&count, "count", false, "print only the number of syscalls")

	return cmd
}

func runSyscalls(out io.Writer, path string, asJSON, count bool) error {
	set, err := loadSyscallSet(path, false)
	if err != nil {
		return err
	}

	names := set.Names()

	switch {
	case count:
		_, err = fmt.Fprintln(out, len(names))
	case asJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(names)
	default:
		_, err = io.WriteString(out, strings.Join(names, "\n")+"\n")
	}

	if err != nil {
		return fmt.Errorf("write syscalls: %w", err)
	}

	return nil
}
