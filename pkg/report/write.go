package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/funcscan/pkg/symtab"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
	FormatText  = "text"
)

const (
	jsonIndent = "    "
	yamlIndent = 2
	// maxFilesShown bounds the file column of table output.
	maxFilesShown = 3
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Write renders the report in the given format.
func Write(w io.Writer, rep *Report, format string) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(w, rep)
	case FormatYAML:
		return WriteYAML(w, rep)
	case FormatTable:
		return WriteTable(w, rep)
	case FormatText:
		return WriteText(w, rep)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// WriteJSON writes indented JSON. Map keys are sorted by the encoder.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", jsonIndent)

	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}

	return nil
}

// WriteYAML writes the report as YAML.
func WriteYAML(w io.Writer, rep *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(yamlIndent)

	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}

	return nil
}

// WriteTable writes the tallies as aligned tables followed by a summary.
func WriteTable(w io.Writer, rep *Report) error {
	sections := []struct {
		title   string
		tallies map[string]*symtab.Tally
	}{
		{"functions", rep.Functions},
		{"calls", rep.Calls},
		{"called_syscalls", rep.CalledSyscalls},
		{"define_syscalls", rep.DefineSyscalls},
	}

	var parts []string

	for _, section := range sections {
		if section.tallies == nil {
			continue
		}

		parts = append(parts, renderTally(section.title, section.tallies))
	}

	parts = append(parts, renderSummary(rep))

	_, err := io.WriteString(w, strings.Join(parts, "\n\n")+"\n")
	if err != nil {
		return fmt.Errorf("write table report: %w", err)
	}

	return nil
}

func renderTally(title string, tallies map[string]*symtab.Tally) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{"Name", "Count", "Files"})

	for _, entry := range symtab.Sorted(tallies) {
		tbl.AppendRow(table.Row{entry.Name, entry.Count, shortFiles(entry.Files)})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d names", len(tallies))})

	return fmt.Sprintf("%s:\n%s", title, tbl.Render())
}

func shortFiles(files []string) string {
	if len(files) <= maxFilesShown {
		return strings.Join(files, ", ")
	}

	return strings.Join(files[:maxFilesShown], ", ") + " (+" + strconv.Itoa(len(files)-maxFilesShown) + " more)"
}

func renderSummary(rep *Report) string {
	sum := rep.Summary

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendRows([]table.Row{
		{"Files", humanize.Comma(int64(sum.Files))},
		{"Parsed", humanize.Comma(int64(sum.Parsed))},
		{"Cached", humanize.Comma(int64(sum.Cached))},
		{"Failed", humanize.Comma(int64(sum.Failed))},
		{"Skipped", humanize.Comma(int64(sum.Skipped))},
		{"Distinct functions", humanize.Comma(int64(sum.Functions))},
		{"Function declarations", humanize.Comma(int64(sum.FunctionOccurrences))},
		{"Distinct callees", humanize.Comma(int64(sum.Calls))},
		{"Call sites", humanize.Comma(int64(sum.CallSites))},
		{"Errors", humanize.Comma(int64(sum.Errors))},
		{"Warnings", humanize.Comma(int64(sum.Warnings))},
	})

	return "summary:\n" + tbl.Render()
}

// WriteText writes one line per function, "file:line: signature", in input
// file order.
func WriteText(w io.Writer, rep *Report) error {
	var sb strings.Builder

	for _, file := range rep.Details() {
		for _, fn := range file.Functions {
			fmt.Fprintf(&sb, "%s:%d: %s\n", fn.File, fn.Line, fn.Signature)
		}
	}

	for _, d := range rep.Diagnostics {
		fmt.Fprintf(&sb, "%s\n", d)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	return nil
}
