package scan

import (
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/funcscan/pkg/cparse"
)

var (
	progressColor = color.New(color.FgCyan)
	functionColor = color.New(color.FgGreen)
	callColor     = color.New(color.FgWhite)
	errorColor    = color.New(color.FgRed)
	warningColor  = color.New(color.FgYellow)
)

// printer serializes progress output from concurrent workers.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

// file prints the progress line for one file and, in verbose mode, each
// function with the call sites that reach it and the file's diagnostics.
// The block is written under one lock so parallel workers do not interleave.
func (p *printer) file(path string, res *cparse.FileResult, verbose bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	progressColor.Fprintf(p.w, "Gathering symbols of %s\n", path)

	if !verbose || res == nil {
		return
	}

	for _, fn := range res.Functions {
		functionColor.Fprintf(p.w, "%s %s\n", fn.Qualified, fn.Location())

		if !fn.Definition {
			continue
		}

		for _, call := range res.CallsOf(fn) {
			callColor.Fprintf(p.w, "  - %s\n", call.Location())
		}
	}

	for _, d := range res.Diagnostics {
		if d.Severity == cparse.SeverityError {
			errorColor.Fprintln(p.w, d.String())
		} else {
			warningColor.Fprintln(p.w, d.String())
		}
	}
}
