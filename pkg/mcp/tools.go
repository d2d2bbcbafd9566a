package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
	"github.com/Sumatoshi-tech/funcscan/pkg/report"
	"github.com/Sumatoshi-tech/funcscan/pkg/scan"
	"github.com/Sumatoshi-tech/funcscan/pkg/symtab"
)

// Tool name constants.
const (
	ToolNameScanCode  = "funcscan_scan_code"
	ToolNameScanPaths = "funcscan_scan_paths"
)

// Input size limits.
const (
	// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
	MaxCodeInputBytes = 1 << 20
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrCodeTooLarge indicates the code input exceeds the size limit.
	ErrCodeTooLarge = errors.New("code input exceeds maximum size")
	// ErrUnsupportedLanguage indicates a language other than c or cpp.
	ErrUnsupportedLanguage = errors.New("language must be c or cpp")
	// ErrNoPaths indicates the paths parameter is empty.
	ErrNoPaths = errors.New("paths parameter is required and must not be empty")
	// ErrPathNotAbsolute indicates a relative path.
	ErrPathNotAbsolute = errors.New("paths must be absolute")
)

// Input types (auto-generate JSON schemas via struct tags).

// ScanCodeInput is the input schema for the funcscan_scan_code tool.
type ScanCodeInput struct {
	Code     string `json:"code"               jsonschema:"C or C++ source code to scan"`
	Language string `json:"language,omitempty" jsonschema:"c or cpp (default: c)"`
}

// ScanPathsInput is the input schema for the funcscan_scan_paths tool.
type ScanPathsInput struct {
	Paths        []string `json:"paths"                   jsonschema:"absolute paths of source files or directories"`
	IncludePaths []string `json:"include_paths,omitempty" jsonschema:"directories used to resolve #include directives"`
	Methods      bool     `json:"methods,omitempty"       jsonschema:"count class methods in the function tally"`
	Files        bool     `json:"files,omitempty"         jsonschema:"include per-file functions and calls in the report"`
	NoSyscalls   bool     `json:"no_syscalls,omitempty"   jsonschema:"skip the Linux syscall cross-reference"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func validateCodeInput(input ScanCodeInput) (csource.Language, error) {
	if input.Code == "" {
		return "", ErrEmptyCode
	}

	if len(input.Code) > MaxCodeInputBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(input.Code), MaxCodeInputBytes)
	}

	if input.Language == "" {
		return csource.LangC, nil
	}

	lang, ok := csource.ParseLanguage(input.Language)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, input.Language)
	}

	return lang, nil
}

func validatePaths(paths []string) error {
	if len(paths) == 0 {
		return ErrNoPaths
	}

	for _, path := range paths {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("%w: %s", ErrPathNotAbsolute, path)
		}
	}

	return nil
}

// syntheticFilename creates a filename from a language for the parser.
func syntheticFilename(lang csource.Language) string {
	return "input." + string(lang)
}

func (s *Server) handleScanCode(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ScanCodeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	lang, err := validateCodeInput(input)
	if err != nil {
		return errorResult(err)
	}

	res, err := s.parser.ParseCode(ctx, syntheticFilename(lang), lang, input.Code)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(res)
}

func (s *Server) handleScanPaths(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ScanPathsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validatePaths(input.Paths); err != nil {
		return errorResult(err)
	}

	files, skipped, err := csource.Resolve(input.Paths, csource.ResolveOptions{SkipVendor: s.skipVendor})
	if err != nil {
		return errorResult(err)
	}

	if len(files) == 0 {
		return errorResult(csource.ErrNoSourceFiles)
	}

	includePaths, err := csource.BuildIncludePaths(input.IncludePaths, "", "")
	if err != nil {
		return errorResult(err)
	}

	scanner := scan.New(s.parserFor(includePaths), scan.Options{
		Workers:      s.workers,
		MaxFileSize:  s.maxFileSize,
		IncludePaths: includePaths,
		Quiet:        true,
	}, scan.WithOutput(io.Discard), scan.WithLogger(s.logger), scan.WithMetrics(s.metrics), scan.WithCache(s.cache))

	result, err := scanner.Run(ctx, files)
	if err != nil {
		return errorResult(err)
	}

	var syscalls symtab.SyscallSet
	if !input.NoSyscalls {
		syscalls = s.syscalls
	}

	rep := report.Build(report.Input{
		Roots:          input.Paths,
		IncludePaths:   includePaths,
		Scan:           result,
		Skipped:        skipped,
		IncludeMethods: input.Methods,
		Syscalls:       syscalls,
		IncludeFiles:   input.Files,
	})

	return jsonResult(rep)
}

// Tool description constants.
const (
	scanCodeToolDescription = "Extract function declarations, definitions and call sites from inline C or C++ code. " +
		"Accepts the code and a language identifier (c or cpp)."

	scanPathsToolDescription = "Scan C/C++ files or directories on disk and return the function report: " +
		"per-name tallies of declared and called functions, the Linux syscall cross-reference, diagnostics and a summary."
)
