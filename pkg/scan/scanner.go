// Package scan runs the extraction pipeline over a set of source files with
// a bounded worker pool.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/funcscan/pkg/cache"
	"github.com/Sumatoshi-tech/funcscan/pkg/cparse"
	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
	"github.com/Sumatoshi-tech/funcscan/pkg/observability"
)

const tracerName = "funcscan"

// ErrFileFailed wraps the first per-file failure when FailFast is set.
var ErrFileFailed = errors.New("file failed")

// Options controls a scan.
type Options struct {
	// Workers bounds concurrent parses. Zero or negative means NumCPU.
	Workers int
	// MaxFileSize skips larger files. Zero means unlimited.
	MaxFileSize uint64
	// IncludePaths take part in cache keys.
	IncludePaths []string
	// FailFast stops the scan at the first file that cannot be read or parsed.
	FailFast bool
	// Quiet suppresses progress lines.
	Quiet bool
	// Verbose prints per-function detail and diagnostics for every file.
	Verbose bool
}

// Stats summarizes a scan.
type Stats struct {
	Files    int           `json:"files" yaml:"files"`
	Parsed   int           `json:"parsed" yaml:"parsed"`
	Cached   int           `json:"cached" yaml:"cached"`
	Failed   int           `json:"failed" yaml:"failed"`
	Skipped  int           `json:"skipped" yaml:"skipped"`
	Duration time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Result is the outcome of a scan. Files holds the parsed files in input
// order regardless of scheduling.
type Result struct {
	Files    []*cparse.FileResult
	Skipped  []csource.Skipped
	Failures []cparse.Diagnostic
	Stats    Stats
}

// Diagnostics returns scan failures followed by every file's diagnostics.
func (r *Result) Diagnostics() []cparse.Diagnostic {
	out := append([]cparse.Diagnostic(nil), r.Failures...)

	for _, file := range r.Files {
		out = append(out, file.Diagnostics...)
	}

	return out
}

// Scanner parses files and collects their results.
type Scanner struct {
	parser  *cparse.Parser
	opts    Options
	cache   *cache.Store
	metrics *observability.ScanMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
	printer *printer
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithCache enables the parse cache.
func WithCache(store *cache.Store) Option {
	return func(s *Scanner) { s.cache = store }
}

// WithMetrics records per-file metrics.
func WithMetrics(metrics *observability.ScanMetrics) Option {
	return func(s *Scanner) { s.metrics = metrics }
}

// WithTracer sets the tracer used for scan spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scanner) { s.tracer = tracer }
}

// WithLogger sets the logger for warnings. Per-file warnings identify the
// file through the context, so the logger should wrap an
// [observability.TracingHandler].
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithOutput sets where progress and verbose detail are printed.
func WithOutput(w io.Writer) Option {
	return func(s *Scanner) { s.printer = newPrinter(w) }
}

// New creates a scanner.
func New(parser *cparse.Parser, opts Options, options ...Option) *Scanner {
	s := &Scanner{
		parser:  parser,
		opts:    opts,
		tracer:  otel.Tracer(tracerName),
		logger:  slog.New(observability.NewTracingHandler(slog.Default().Handler(), tracerName, observability.ModeCLI)),
		printer: newPrinter(os.Stderr),
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

type outcome struct {
	result  *cparse.FileResult
	status  string
	skipped *csource.Skipped
	failure *cparse.Diagnostic
}

// Run scans files. Per-file problems are reported in the result; the
// returned error is non-nil only for cancellation or, with FailFast, the
// first failing file.
func (s *Scanner) Run(ctx context.Context, files []csource.SourceFile) (*Result, error) {
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "funcscan.scan",
		trace.WithAttributes(attribute.Int("scan.files", len(files))))
	defer span.End()

	workers := s.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outcomes := make([]outcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, file := range files {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			out := s.process(gctx, file)
			outcomes[i] = out

			if out.failure != nil && s.opts.FailFast {
				return fmt.Errorf("%w: %s", ErrFileFailed, out.failure)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	result := collect(outcomes)
	result.Stats.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("scan.parsed", result.Stats.Parsed),
		attribute.Int("scan.cached", result.Stats.Cached),
		attribute.Int("scan.failed", result.Stats.Failed),
		attribute.Int("scan.skipped", result.Stats.Skipped),
	)

	return result, nil
}

func collect(outcomes []outcome) *Result {
	result := &Result{
		Files: make([]*cparse.FileResult, 0, len(outcomes)),
	}

	result.Stats.Files = len(outcomes)

	for _, out := range outcomes {
		switch {
		case out.skipped != nil:
			result.Skipped = append(result.Skipped, *out.skipped)
			result.Stats.Skipped++
		case out.failure != nil:
			result.Failures = append(result.Failures, *out.failure)
			result.Stats.Failed++
		case out.result != nil:
			result.Files = append(result.Files, out.result)

			if out.status == observability.StatusCached {
				result.Stats.Cached++
			} else {
				result.Stats.Parsed++
			}
		}
	}

	return result
}

func (s *Scanner) process(ctx context.Context, file csource.SourceFile) outcome {
	started := time.Now()

	ctx, span := s.tracer.Start(ctx, "funcscan.file",
		trace.WithAttributes(attribute.String("file.path", file.Path)))
	defer span.End()

	ctx = observability.ContextWithFile(ctx, file.Path)
	out := s.load(ctx, file)

	lang := string(file.Language)
	functions, calls := 0, 0

	if out.result != nil {
		lang = string(out.result.Language)
		functions, calls = len(out.result.Functions), len(out.result.Calls)
	}

	if out.failure != nil {
		span.SetStatus(codes.Error, out.failure.Message)
	}

	span.SetAttributes(attribute.String("file.status", out.status))
	s.metrics.RecordFile(ctx, lang, out.status, functions, calls, time.Since(started))

	if !s.opts.Quiet {
		s.printer.file(file.Path, out.result, s.opts.Verbose)
	}

	return out
}

func (s *Scanner) load(ctx context.Context, file csource.SourceFile) outcome {
	if s.opts.MaxFileSize > 0 && file.Size > 0 && uint64(file.Size) > s.opts.MaxFileSize {
		reason := fmt.Sprintf("file size %s exceeds limit %s",
			humanize.Bytes(uint64(file.Size)), humanize.Bytes(s.opts.MaxFileSize))
		s.logger.WarnContext(ctx, "skipping large file", "size", file.Size)

		return outcome{status: observability.StatusSkipped, skipped: &csource.Skipped{Path: file.Path, Reason: reason}}
	}

	content, err := os.ReadFile(file.Path)
	if err != nil {
		return s.fail(ctx, file.Path, "cannot read file", err)
	}

	if s.opts.MaxFileSize > 0 && uint64(len(content)) > s.opts.MaxFileSize {
		reason := "file size " + humanize.Bytes(uint64(len(content))) + " exceeds limit " + humanize.Bytes(s.opts.MaxFileSize)

		return outcome{status: observability.StatusSkipped, skipped: &csource.Skipped{Path: file.Path, Reason: reason}}
	}

	if csource.IsBinary(content) {
		s.logger.WarnContext(ctx, "skipping binary file")

		return outcome{status: observability.StatusSkipped, skipped: &csource.Skipped{Path: file.Path, Reason: csource.ReasonBinary}}
	}

	file.Language = csource.DetectContent(file.Path, content)

	var key []byte

	if s.cache != nil {
		key = cache.Key(file.Language, absDir(file.Path), s.opts.IncludePaths, content)

		cached, hit, cacheErr := s.cache.Get(key, file.Path)
		if cacheErr != nil {
			s.logger.WarnContext(ctx, "cache read failed", "error", cacheErr)
		}

		s.metrics.RecordCacheLookup(ctx, hit)

		if hit {
			return outcome{result: cached, status: observability.StatusCached}
		}
	}

	res, err := s.parser.Parse(ctx, file, content)
	if err != nil {
		return s.fail(ctx, file.Path, "cannot parse file", err)
	}

	if s.cache != nil {
		if putErr := s.cache.Put(key, res); putErr != nil {
			s.logger.WarnContext(ctx, "cache write failed", "error", putErr)
		}
	}

	return outcome{result: res, status: observability.StatusParsed}
}

func (s *Scanner) fail(ctx context.Context, path, message string, err error) outcome {
	s.logger.WarnContext(ctx, message, "error", err)

	return outcome{
		status: observability.StatusFailed,
		failure: &cparse.Diagnostic{
			File:     path,
			Severity: cparse.SeverityError,
			Message:  fmt.Sprintf("%s: %v", message, err),
		},
	}
}

func absDir(path string) string {
	dir := filepath.Dir(path)
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}

	return dir
}
