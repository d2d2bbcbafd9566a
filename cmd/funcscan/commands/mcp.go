package commands

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/funcscan/pkg/config"
	"github.com/Sumatoshi-tech/funcscan/pkg/mcp"
	"github.com/Sumatoshi-tech/funcscan/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug      bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes funcscan as tools that AI agents can discover and invoke:
  - funcscan_scan_code: Extract functions and calls from inline C/C++ code
  - funcscan_scan_paths: Scan files or directories and return the full report

Configuration (workers, max_file_size, skip_vendor, syscalls, cache.path and
telemetry) is read from .funcscan.yaml and FUNCSCAN_* variables.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd, configPath, debug)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVar(&configPath, flagConfig, "", "config file (default: .funcscan.yaml)")

	return cmd
}

func runMCP(cmd *cobra.Command, configPath string, debug bool) (err error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Stdout carries the protocol; logs are always JSON on stderr.
	cfg.Logging.Format = "json"
	if debug {
		cfg.Logging.Level = "debug"
	}

	providers, err := initObservability(cfg, observability.ModeMCP, os.Stderr)
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
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

	syscalls, err := loadSyscallSet(cfg.Syscalls, false)
	if err != nil {
		return err
	}

	store, err := openCache(cfg.Cache.Path, providers.Logger)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, store.Close())
	}()

	srv := mcp.NewServer(mcp.ServerDeps{
		Logger:      providers.Logger,
		Metrics:     metrics,
		Tracer:      providers.Tracer,
		Cache:       store,
		Syscalls:    syscalls,
		Workers:     cfg.Workers,
		MaxFileSize: maxFileSize,
		SkipVendor:  cfg.SkipVendor,
	})

	return srv.Run(cmd.Context())
}
