package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// SignatureChange is a function whose signature differs between reports.
type SignatureChange struct {
	Qualified string `json:"qualified"`
	Old       string `json:"old"`
	New       string `json:"new"`
	// Delta marks deletions as [-text-] and insertions as {+text+}.
	Delta string `json:"delta"`
}

// CountChange is a function name whose declaration count changed.
type CountChange struct {
	Name string `json:"name"`
	Old  int    `json:"old"`
	New  int    `json:"new"`
}

// Delta lists the differences between two reports.
type Delta struct {
	Added   []string          `json:"added"`
	Removed []string          `json:"removed"`
	Counts  []CountChange     `json:"counts"`
	Changed []SignatureChange `json:"changed"`
}

// Empty reports whether the reports are equivalent.
func (d *Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Counts) == 0 && len(d.Changed) == 0
}

// Read decodes a JSON report.
func Read(r io.Reader) (*Report, error) {
	var rep Report

	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	return &rep, nil
}

// Diff compares the function tallies of two reports and, when both carry
// per-file detail, the signatures of functions present in both.
func Diff(oldRep, newRep *Report) *Delta {
	delta := &Delta{}

	for name, tally := range newRep.Functions {
		previous, ok := oldRep.Functions[name]
		switch {
		case !ok:
			delta.Added = append(delta.Added, name)
		case previous.Count != tally.Count:
			delta.Counts = append(delta.Counts, CountChange{Name: name, Old: previous.Count, New: tally.Count})
		}
	}

	for name := range oldRep.Functions {
		if _, ok := newRep.Functions[name]; !ok {
			delta.Removed = append(delta.Removed, name)
		}
	}

	slices.Sort(delta.Added)
	slices.Sort(delta.Removed)
	slices.SortFunc(delta.Counts, func(a, b CountChange) int { return strings.Compare(a.Name, b.Name) })

	oldSigs, newSigs := signatures(oldRep), signatures(newRep)
	dmp := diffmatchpatch.New()

	for qualified, newSig := range newSigs {
		oldSig, ok := oldSigs[qualified]
		if !ok || oldSig == newSig {
			continue
		}

		delta.Changed = append(delta.Changed, SignatureChange{
			Qualified: qualified,
			Old:       oldSig,
			New:       newSig,
			Delta:     inlineDelta(dmp, oldSig, newSig),
		})
	}

	slices.SortFunc(delta.Changed, func(a, b SignatureChange) int { return strings.Compare(a.Qualified, b.Qualified) })

	return delta
}

// signatures maps qualified names to the signature of their first
// definition, or of their first declaration when none is defined.
func signatures(rep *Report) map[string]string {
	sigs := make(map[string]string)
	defined := make(map[string]bool)

	for _, file := range rep.Details() {
		for _, fn := range file.Functions {
			if defined[fn.Qualified] {
				continue
			}

			if _, seen := sigs[fn.Qualified]; seen && !fn.Definition {
				continue
			}

			sigs[fn.Qualified] = fn.Signature
			defined[fn.Qualified] = fn.Definition
		}
	}

	return sigs
}

func inlineDelta(dmp *diffmatchpatch.DiffMatchPatch, oldText, newText string) string {
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(oldText, newText, false))

	var sb strings.Builder

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			sb.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			sb.WriteString("{+" + d.Text + "+}")
		case diffmatchpatch.DiffEqual:
			sb.WriteString(d.Text)
		}
	}

	return sb.String()
}

// WriteDiff renders a delta as text.
func WriteDiff(w io.Writer, delta *Delta) error {
	var sb strings.Builder

	if delta.Empty() {
		sb.WriteString("no differences\n")
	}

	for _, name := range delta.Added {
		fmt.Fprintf(&sb, "+ %s\n", name)
	}

	for _, name := range delta.Removed {
		fmt.Fprintf(&sb, "- %s\n", name)
	}

	for _, c := range delta.Counts {
		fmt.Fprintf(&sb, "~ %s: %d -> %d\n", c.Name, c.Old, c.New)
	}

	for _, c := range delta.Changed {
		fmt.Fprintf(&sb, "! %s: %s\n", c.Qualified, c.Delta)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("write diff: %w", err)
	}

	return nil
}
