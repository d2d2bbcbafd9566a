// Package report turns scan results into the function report and renders,
// validates, compares and plots it.
package report

import (
	"time"

	"github.com/Sumatoshi-tech/funcscan/pkg/cparse"
	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
	"github.com/Sumatoshi-tech/funcscan/pkg/scan"
	"github.com/Sumatoshi-tech/funcscan/pkg/symtab"
	"github.com/Sumatoshi-tech/funcscan/pkg/version"
)

// ToolName identifies reports written by this tool.
const ToolName = "funcscan"

// Report is the output of a scan.
type Report struct {
	Tool           string                   `json:"tool" yaml:"tool"`
	Version        string                   `json:"version" yaml:"version"`
	GeneratedAt    time.Time                `json:"generated_at" yaml:"generated_at"`
	Roots          []string                 `json:"roots" yaml:"roots"`
	IncludePaths   []string                 `json:"include_paths" yaml:"include_paths"`
	FileCount      int                      `json:"file_count" yaml:"file_count"`
	Functions      map[string]*symtab.Tally `json:"functions" yaml:"functions"`
	Calls          map[string]*symtab.Tally `json:"calls" yaml:"calls"`
	CalledSyscalls map[string]*symtab.Tally `json:"called_syscalls,omitempty" yaml:"called_syscalls,omitempty"`
	DefineSyscalls map[string]*symtab.Tally `json:"define_syscalls,omitempty" yaml:"define_syscalls,omitempty"`
	Files          []*cparse.FileResult     `json:"files,omitempty" yaml:"files,omitempty"`
	Skipped        []csource.Skipped        `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Diagnostics    []cparse.Diagnostic      `json:"diagnostics" yaml:"diagnostics"`
	Summary        Summary                  `json:"summary" yaml:"summary"`

	// details keeps per-file results for the text writer and Diff even when
	// they are not serialized.
	details []*cparse.FileResult
}

// Summary holds report-wide counts.
type Summary struct {
	Files               int `json:"files" yaml:"files"`
	Parsed              int `json:"parsed" yaml:"parsed"`
	Cached              int `json:"cached" yaml:"cached"`
	Failed              int `json:"failed" yaml:"failed"`
	Skipped             int `json:"skipped" yaml:"skipped"`
	Functions           int `json:"functions" yaml:"functions"`
	FunctionOccurrences int `json:"function_occurrences" yaml:"function_occurrences"`
	Calls               int `json:"calls" yaml:"calls"`
	CallSites           int `json:"call_sites" yaml:"call_sites"`
	CalledSyscalls      int `json:"called_syscalls" yaml:"called_syscalls"`
	DefinedSyscalls     int `json:"defined_syscalls" yaml:"defined_syscalls"`
	Errors              int `json:"errors" yaml:"errors"`
	Warnings            int `json:"warnings" yaml:"warnings"`
}

// Input collects what Build needs.
type Input struct {
	Roots          []string
	IncludePaths   []string
	Scan           *scan.Result
	Skipped        []csource.Skipped
	IncludeMethods bool
	// Syscalls enables the syscall sections when non-nil.
	Syscalls     symtab.SyscallSet
	IncludeFiles bool
	Now          time.Time
}

// Build aggregates a scan into a report.
func Build(in Input) *Report {
	table := symtab.NewTable(in.IncludeMethods)

	res := in.Scan
	if res == nil {
		res = &scan.Result{}
	}

	for _, file := range res.Files {
		table.Add(file)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	rep := &Report{
		Tool:         ToolName,
		Version:      version.Version,
		GeneratedAt:  now.UTC(),
		Roots:        nonNil(in.Roots),
		IncludePaths: nonNil(in.IncludePaths),
		FileCount:    len(res.Files),
		Functions:    table.Functions(),
		Calls:        table.Calls(),
		Skipped:      append(append([]csource.Skipped(nil), in.Skipped...), res.Skipped...),
		Diagnostics:  res.Diagnostics(),
		details:      res.Files,
	}

	if rep.Diagnostics == nil {
		rep.Diagnostics = []cparse.Diagnostic{}
	}

	if in.Syscalls != nil {
		rep.CalledSyscalls, rep.DefineSyscalls = table.CompareSyscalls(in.Syscalls)
	}

	if in.IncludeFiles {
		rep.Files = res.Files
	}

	rep.Summary = summarize(rep, res.Stats, len(in.Skipped))

	return rep
}

func summarize(rep *Report, stats scan.Stats, resolveSkipped int) Summary {
	sum := Summary{
		Files:           stats.Files,
		Parsed:          stats.Parsed,
		Cached:          stats.Cached,
		Failed:          stats.Failed,
		Skipped:         stats.Skipped + resolveSkipped,
		Functions:       len(rep.Functions),
		Calls:           len(rep.Calls),
		CalledSyscalls:  len(rep.CalledSyscalls),
		DefinedSyscalls: len(rep.DefineSyscalls),
	}

	for _, tally := range rep.Functions {
		sum.FunctionOccurrences += tally.Count
	}

	for _, tally := range rep.Calls {
		sum.CallSites += tally.Count
	}

	for _, d := range rep.Diagnostics {
		if d.Severity == cparse.SeverityError {
			sum.Errors++
		} else {
			sum.Warnings++
		}
	}

	return sum
}

// Details returns the per-file results behind the report: the scanned
// results for a freshly built report, or the serialized files section for
// a decoded one.
func (r *Report) Details() []*cparse.FileResult {
	if r.details != nil {
		return r.details
	}

	return r.Files
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
