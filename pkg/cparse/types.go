// Package cparse extracts functions, calls and includes from C and C++
// sources using the tree-sitter grammars.
package cparse

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
)

// Kind separates free functions from class members.
type Kind string

// Function kinds.
const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
)

// Diagnostic severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Function is a function definition or prototype.
type Function struct {
	Name       string   `json:"name" yaml:"name"`
	Qualified  string   `json:"qualified" yaml:"qualified"`
	Kind       Kind     `json:"kind" yaml:"kind"`
	Signature  string   `json:"signature" yaml:"signature"`
	ReturnType string   `json:"return_type,omitempty" yaml:"return_type,omitempty"`
	Params     []string `json:"params,omitempty" yaml:"params,omitempty"`
	Storage    []string `json:"storage,omitempty" yaml:"storage,omitempty"`
	Definition bool     `json:"definition" yaml:"definition"`
	File       string   `json:"file" yaml:"file"`
	Line       int      `json:"line" yaml:"line"`
	Column     int      `json:"column" yaml:"column"`
	EndLine    int      `json:"end_line" yaml:"end_line"`
	EndColumn  int      `json:"end_column" yaml:"end_column"`
}

// Location formats the position of the function name as file:line:column.
func (f Function) Location() string {
	return fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Column)
}

// Call is a call expression with a named callee.
type Call struct {
	Callee   string `json:"callee" yaml:"callee"`
	Spelling string `json:"spelling" yaml:"spelling"`
	File     string `json:"file" yaml:"file"`
	Line     int    `json:"line" yaml:"line"`
	Column   int    `json:"column" yaml:"column"`
	Caller   string `json:"caller,omitempty" yaml:"caller,omitempty"`
	// Member is set for calls through an object, obj.m() or p->m().
	Member bool `json:"member,omitempty" yaml:"member,omitempty"`
}

// Location formats the call site as file:line:column.
func (c Call) Location() string {
	return fmt.Sprintf("%s:%d:%d", c.File, c.Line, c.Column)
}

// Include is an #include directive.
type Include struct {
	Spelling string `json:"spelling" yaml:"spelling"`
	System   bool   `json:"system" yaml:"system"`
	Resolved string `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	Line     int    `json:"line" yaml:"line"`
}

// Diagnostic is a problem found while parsing a file.
type Diagnostic struct {
	File     string `json:"file" yaml:"file"`
	Line     int    `json:"line" yaml:"line"`
	Column   int    `json:"column" yaml:"column"`
	Severity string `json:"severity" yaml:"severity"`
	Message  string `json:"message" yaml:"message"`
}

// String renders the diagnostic the way compilers do.
func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s: %s", d.File, d.Severity, d.Message)
	}

	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
}

// FileResult holds everything extracted from one source file.
type FileResult struct {
	Path        string           `json:"path" yaml:"path"`
	Language    csource.Language `json:"language" yaml:"language"`
	Functions   []Function       `json:"functions" yaml:"functions"`
	Calls       []Call           `json:"calls" yaml:"calls"`
	Includes    []Include        `json:"includes,omitempty" yaml:"includes,omitempty"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Restamp rewrites the file path on the result and everything it holds.
// Cached results are keyed by content, so the same entry can serve
// identical files at different paths.
func (r *FileResult) Restamp(path string) {
	r.Path = path

	for i := range r.Functions {
		r.Functions[i].File = path
	}

	for i := range r.Calls {
		r.Calls[i].File = path
	}

	for i := range r.Diagnostics {
		r.Diagnostics[i].File = path
	}
}

// CallsOf returns the call sites in this file that can refer to fn. Without
// type information overloads share call sites; otherwise a call matches when
// its callee name agrees and:
//   - a member call (obj.m, p->m) targets a method;
//   - a qualified spelling (ns::f, B::f) is a suffix of fn's qualified name;
//   - an unqualified call targets a method of the caller's own class, or a
//     free function no such method hides.
func (r *FileResult) CallsOf(fn Function) []Call {
	var out []Call

	for _, call := range r.Calls {
		if !call.refersTo(fn) {
			continue
		}

		if fn.Kind == KindFunction && !call.Member && r.hidesFree(call) {
			continue
		}

		out = append(out, call)
	}

	return out
}

// hidesFree reports whether an unqualified call resolves to a method of the
// caller's class rather than to a free function.
func (r *FileResult) hidesFree(call Call) bool {
	if strings.Contains(call.Spelling, "::") {
		return false
	}

	scope := scopeOf(call.Caller)
	if scope == "" {
		return false
	}

	for _, fn := range r.Functions {
		if fn.Kind == KindMethod && fn.Qualified == scope+"::"+call.Callee {
			return true
		}
	}

	return false
}

func (c Call) refersTo(fn Function) bool {
	if c.Callee != fn.Name {
		return false
	}

	if c.Member {
		return fn.Kind == KindMethod
	}

	spelling := strings.TrimPrefix(stripTemplateArgs(c.Spelling), "::")
	if strings.Contains(spelling, "::") {
		return fn.Qualified == spelling || strings.HasSuffix(fn.Qualified, "::"+spelling)
	}

	if fn.Kind == KindMethod {
		return c.Caller != "" && scopeOf(c.Caller) == scopeOf(fn.Qualified)
	}

	return true
}

// scopeOf returns the qualifier of a qualified name: "a::B" for "a::B::f".
func scopeOf(qualified string) string {
	idx := strings.LastIndex(qualified, "::")
	if idx < 0 {
		return ""
	}

	return qualified[:idx]
}

// stripTemplateArgs removes every <...> group: "std::sort<int>" becomes
// "std::sort".
func stripTemplateArgs(spelling string) string {
	if !strings.Contains(spelling, "<") {
		return spelling
	}

	var sb strings.Builder

	depth := 0

	for _, r := range spelling {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

// HasErrors reports whether any diagnostic is an error.
func (r *FileResult) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}

	return false
}
