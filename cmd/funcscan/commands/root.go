// Package commands implements the funcscan CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

// Root command flag names. The ones backed by configuration keys are bound
// onto viper in bindConfigFlags.
const (
	flagInclude         = "include"
	flagIncludeFile     = "include-file"
	flagIncludeRoot     = "include-root"
	flagOutput          = "output"
	flagQuiet           = "quiet"
	flagVerbose         = "verbose"
	flagTable           = "table"
	flagFormat          = "format"
	flagSyscalls        = "syscalls"
	flagNoSyscalls      = "no-syscalls"
	flagMethods         = "methods"
	flagFiles           = "files"
	flagWorkers         = "workers"
	flagMaxFileSize     = "max-file-size"
	flagCache           = "cache"
	flagSkipVendor      = "skip-vendor"
	flagFailFast        = "fail-fast"
	flagPlot            = "plot"
	flagMetricsTextfile = "metrics-textfile"
	flagConfig          = "config"
	flagLogJSON         = "log-json"
)

// NewRootCommand creates the funcscan command. Run without a subcommand it
// scans the given paths and writes the report.
func NewRootCommand() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "funcscan [flags] <path> [path...]",
		Short: "Tally C/C++ function declarations and calls",
		Long: `funcscan parses C and C++ sources with tree-sitter, records every function
declaration, definition and call site, tallies them by name and cross-references
them against the Linux syscall list.

Paths may be files or directories; directories are scanned recursively for
.c, .h, .cpp, .cc, .hpp and the other C/C++ extensions.

Examples:
  funcscan main.c util.c
  funcscan -i include,/usr/include -o report.json src/
  funcscan -t --methods src/
  funcscan --format yaml --cache ~/.cache/funcscan.db src/`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}

			return runScan(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceP(flagInclude, "i", nil, "include paths (repeatable, comma-separated)")
	flags.String(flagIncludeFile, "", "file listing include paths, one per line")
	flags.String(flagIncludeRoot, "", "directory the include-file entries are joined to")
	flags.StringVarP(&opts.output, flagOutput, "o", "", "output file (default: stdout)")
	flags.BoolVarP(&opts.quiet, flagQuiet, "q", false, "quiet mode: no progress, warnings only")
	flags.BoolVarP(&opts.verbose, flagVerbose, "v", false, "verbose mode: per-function detail and diagnostics")
	flags.BoolVarP(&opts.table, flagTable, "t", false, "tabular output (same as --format table)")
	flags.StringP(flagFormat, "f", "", "report format: json, yaml, table, text")
	flags.StringP(flagSyscalls, "s", "", "syscall list file (default: embedded Linux list)")
	flags.BoolVar(&opts.noSyscalls, flagNoSyscalls, false, "skip the syscall cross-reference")
	flags.Bool(flagMethods, false, "count class methods in the function tally")
	flags.BoolVar(&opts.files, flagFiles, false, "include per-file functions and calls in the report")
	flags.IntP(flagWorkers, "w", 0, "parallel parsers (0 = number of CPUs)")
	flags.String(flagMaxFileSize, "", "skip files larger than this, e.g. 4MB (0 = unlimited)")
	flags.String(flagCache, "", "parse cache database path")
	flags.Bool(flagSkipVendor, false, "skip vendored directories")
	flags.BoolVar(&opts.failFast, flagFailFast, false, "stop at the first unreadable or unparsable file")
	flags.StringVar(&opts.plot, flagPlot, "", "write an HTML chart page to this path")
	flags.StringVar(&opts.metricsTextfile, flagMetricsTextfile, "", "write Prometheus metrics to this path")
	flags.StringVar(&opts.configPath, flagConfig, "", "config file (default: .funcscan.yaml)")
	flags.BoolVar(&opts.logJSON, flagLogJSON, false, "JSON log records on stderr")

	cmd.MarkFlagsMutuallyExclusive(flagQuiet, flagVerbose)
	cmd.MarkFlagsMutuallyExclusive(flagTable, flagFormat)

	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewDiffCommand())
	cmd.AddCommand(NewSyscallsCommand())
	cmd.AddCommand(NewMCPCommand())

	return cmd
}
