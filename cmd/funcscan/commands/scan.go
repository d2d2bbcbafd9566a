package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/funcscan/pkg/cache"
	"github.com/Sumatoshi-tech/funcscan/pkg/config"
	"github.com/Sumatoshi-tech/funcscan/pkg/cparse"
	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
	"github.com/Sumatoshi-tech/funcscan/pkg/observability"
	"github.com/Sumatoshi-tech/funcscan/pkg/report"
	"github.com/Sumatoshi-tech/funcscan/pkg/scan"
	"github.com/Sumatoshi-tech/funcscan/pkg/symtab"
	"github.com/Sumatoshi-tech/funcscan/pkg/version"
)

// scanOptions holds the root command flags that have no configuration key.
type scanOptions struct {
	output          string
	plot            string
	metricsTextfile string
	configPath      string
	quiet           bool
	verbose         bool
	table           bool
	noSyscalls      bool
	files           bool
	failFast        bool
	logJSON         bool
}

// configFlags maps configuration keys to the root flags overriding them.
var configFlags = map[string]string{
	"include_paths": flagInclude,
	"include_file":  flagIncludeFile,
	"include_root":  flagIncludeRoot,
	"syscalls":      flagSyscalls,
	"format":        flagFormat,
	"workers":       flagWorkers,
	"max_file_size": flagMaxFileSize,
	"cache.path":    flagCache,
	"skip_vendor":   flagSkipVendor,
	"methods":       flagMethods,
}

func bindConfigFlags(cmd *cobra.Command, viperCfg *viper.Viper) error {
	for key, name := range configFlags {
		err := viperCfg.BindPFlag(key, cmd.Flags().Lookup(name))
		if err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}

func loadScanConfig(cmd *cobra.Command, opts *scanOptions) (*config.Config, error) {
	viperCfg := config.New()

	err := bindConfigFlags(cmd, viperCfg)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(viperCfg, opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.table {
		cfg.Format = report.FormatTable
	}

	if opts.logJSON {
		cfg.Logging.Format = "json"
	}

	switch {
	case opts.quiet:
		cfg.Logging.Level = "warn"
	case opts.verbose:
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

func runScan(cmd *cobra.Command, opts *scanOptions, args []string) (err error) {
	cfg, err := loadScanConfig(cmd, opts)
	if err != nil {
		return err
	}

	providers, err := initObservability(cfg, observability.ModeCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	logger := providers.Logger

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	metrics, err := observability.NewScanMetrics(providers.Meter)
	if err != nil {
		return err
	}

	maxFileSize, err := cfg.MaxFileSizeBytes()
	if err != nil {
		return err
	}

	includePaths, err := csource.BuildIncludePaths(cfg.IncludePaths, cfg.IncludeFile, includeRoot(cfg.IncludeRoot, args))
	if err != nil {
		return err
	}

	files, skipped, err := csource.Resolve(args, csource.ResolveOptions{SkipVendor: cfg.SkipVendor})
	if err != nil {
		return err
	}

	for _, skip := range skipped {
		logger.Warn("skipping input", "path", skip.Path, "reason", skip.Reason)
	}

	if len(files) == 0 {
		return csource.ErrNoSourceFiles
	}

	syscalls, err := loadSyscallSet(cfg.Syscalls, opts.noSyscalls)
	if err != nil {
		return err
	}

	store, err := openCache(cfg.Cache.Path, logger)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, store.Close())
	}()

	logger.Debug("scan starting",
		"files", len(files),
		"include_paths", len(includePaths),
		"workers", cfg.Workers,
		"max_file_size", humanize.Bytes(maxFileSize),
	)

	scanner := scan.New(cparse.NewParser(csource.NewResolver(includePaths)), scan.Options{
		Workers:      cfg.Workers,
		MaxFileSize:  maxFileSize,
		IncludePaths: includePaths,
		FailFast:     opts.failFast,
		Quiet:        opts.quiet,
		Verbose:      opts.verbose,
	},
		scan.WithCache(store),
		scan.WithMetrics(metrics),
		scan.WithTracer(providers.Tracer),
		scan.WithLogger(logger),
		scan.WithOutput(cmd.ErrOrStderr()),
	)

	result, err := scanner.Run(cmd.Context(), files)
	if err != nil {
		return err
	}

	generatedAt, err := reportTime(os.Getenv(envSourceDateEpoch))
	if err != nil {
		return err
	}

	rep := report.Build(report.Input{
		Now:            generatedAt,
		Roots:          args,
		IncludePaths:   includePaths,
		Scan:           result,
		Skipped:        skipped,
		IncludeMethods: cfg.Methods,
		Syscalls:       syscalls,
		IncludeFiles:   opts.files,
	})

	err = writeOutput(cmd.OutOrStdout(), opts.output, func(w io.Writer) error {
		return report.Write(w, rep, cfg.Format)
	})
	if err != nil {
		return err
	}

	if opts.plot != "" {
		err = writeOutput(nil, opts.plot, func(w io.Writer) error {
			return report.Plot(w, rep, report.DefaultPlotTop)
		})
		if err != nil {
			return err
		}
	}

	logger.Info("scan complete",
		"files", rep.Summary.Files,
		"functions", rep.Summary.Functions,
		"calls", rep.Summary.Calls,
		"called_syscalls", rep.Summary.CalledSyscalls,
		"errors", rep.Summary.Errors,
		"duration", result.Stats.Duration,
	)

	if opts.metricsTextfile != "" {
		return observability.WriteTextfile(providers.Registry, opts.metricsTextfile)
	}

	return nil
}

// envSourceDateEpoch pins generated_at so repeated scans produce
// byte-identical reports.
const envSourceDateEpoch = "SOURCE_DATE_EPOCH"

// reportTime parses a SOURCE_DATE_EPOCH value. Empty yields the zero time,
// which the report replaces with the current time.
func reportTime(epoch string) (time.Time, error) {
	if epoch == "" {
		return time.Time{}, nil
	}

	secs, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", envSourceDateEpoch, epoch, err)
	}

	return time.Unix(secs, 0).UTC(), nil
}

// includeRoot returns the directory include-file entries are joined to:
// the configured root, else the first directory argument.
func includeRoot(configured string, args []string) string {
	if configured != "" {
		return configured
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			return arg
		}
	}

	return ""
}

func loadSyscallSet(path string, disabled bool) (symtab.SyscallSet, error) {
	if disabled {
		return nil, nil
	}

	if path == "" {
		return symtab.DefaultSyscalls(), nil
	}

	return symtab.LoadSyscalls(path)
}

// openCache opens the parse cache at path. An empty path returns a nil store,
// which every scan treats as disabled.
func openCache(path string, logger *slog.Logger) (*cache.Store, error) {
	if path == "" {
		return nil, nil
	}

	store, err := cache.Open(path)
	if err != nil {
		return nil, err
	}

	entries, err := store.Len()
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	logger.Debug("parse cache opened", "path", store.Path(), "entries", entries)

	return store, nil
}

// writeOutput runs write against path, or against fallback when path is
// empty. The file is closed before returning and a close error is reported.
func writeOutput(fallback io.Writer, path string, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(fallback)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output %s: %w", path, err)
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil && err == nil {
			err = fmt.Errorf("close output %s: %w", path, closeErr)
		}
	}()

	return write(file)
}

func initObservability(cfg *config.Config, mode observability.AppMode, logWriter io.Writer) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.LogWriter = logWriter
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure

	return observability.Init(obsCfg)
}
