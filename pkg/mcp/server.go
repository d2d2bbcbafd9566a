// Package mcp implements a Model Context Protocol server exposing funcscan
// as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/funcscan/pkg/cache"
	"github.com/Sumatoshi-tech/funcscan/pkg/cparse"
	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
	"github.com/Sumatoshi-tech/funcscan/pkg/observability"
	"github.com/Sumatoshi-tech/funcscan/pkg/symtab"
	"github.com/Sumatoshi-tech/funcscan/pkg/version"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "funcscan"

	// toolCount is the expected number of registered tools.
	toolCount = 2
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional scan metrics recorder. Nil disables metrics.
	Metrics *observability.ScanMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Cache is an optional parse cache shared by all path scans.
	Cache *cache.Store

	// Syscalls is the syscall set for cross-referencing. Nil uses the
	// embedded Linux list.
	Syscalls symtab.SyscallSet

	// Workers bounds concurrent parses per scan. Zero means NumCPU.
	Workers int

	// MaxFileSize skips larger files. Zero means unlimited.
	MaxFileSize uint64

	// SkipVendor skips vendored directories.
	SkipVendor bool
}

// Server wraps the MCP SDK server with funcscan tool registrations.
type Server struct {
	inner  *mcpsdk.Server
	mu     sync.RWMutex
	tools  []string
	tracer trace.Tracer
	logger *slog.Logger

	parser      *cparse.Parser
	metrics     *observability.ScanMetrics
	cache       *cache.Store
	syscalls    symtab.SyscallSet
	workers     int
	maxFileSize uint64
	skipVendor  bool
}

// NewServer creates a new MCP server with all funcscan tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(observability.NewTracingHandler(slog.Default().Handler(), serverName, observability.ModeMCP))
	}

	syscalls := deps.Syscalls
	if syscalls == nil {
		syscalls = symtab.DefaultSyscalls()
	}

	srv := &Server{
		inner:       inner,
		tools:       make([]string, 0, toolCount),
		tracer:      deps.Tracer,
		logger:      logger,
		parser:      cparse.NewParser(nil),
		metrics:     deps.Metrics,
		cache:       deps.Cache,
		syscalls:    syscalls,
		workers:     deps.Workers,
		maxFileSize: deps.MaxFileSize,
		skipVendor:  deps.SkipVendor,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := slices.Clone(s.tools)
	slices.Sort(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// parserFor returns a parser that resolves includes against paths.
func (s *Server) parserFor(paths []string) *cparse.Parser {
	if len(paths) == 0 {
		return s.parser
	}

	return cparse.NewParser(csource.NewResolver(paths))
}

// registerTools adds all funcscan MCP tools to the server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameScanCode,
		Description: scanCodeToolDescription,
	}, withTracing(s.tracer, ToolNameScanCode, s.handleScanCode))

	s.trackTool(ToolNameScanCode)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameScanPaths,
		Description: scanPathsToolDescription,
	}, withTracing(s.tracer, ToolNameScanPaths, s.handleScanPaths))

	s.trackTool(ToolNameScanPaths)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		if result != nil && result.IsError {
			span.SetAttributes(attribute.Bool("mcp.tool_error", true))
		}

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}
