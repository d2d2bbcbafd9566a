// Package symtab aggregates per-file extraction results into name tallies
// and cross-references them against a set of system call names.
package symtab

import (
	"cmp"
	"slices"

	"github.com/Sumatoshi-tech/funcscan/pkg/cparse"
)

// Tally counts the occurrences of one name and the files it occurs in.
// Files keeps first-seen order and holds no duplicates.
type Tally struct {
	Count int      `json:"count" yaml:"count"`
	Files []string `json:"files" yaml:"files"`
}

func (t *Tally) add(file string) {
	t.Count++

	if !slices.Contains(t.Files, file) {
		t.Files = append(t.Files, file)
	}
}

func (t *Tally) clone() *Tally {
	return &Tally{Count: t.Count, Files: slices.Clone(t.Files)}
}

// Entry is a named tally, used where a sorted list is needed.
type Entry struct {
	Name string
	Tally
}

// Table holds the function and call tallies of a scan. It is not safe for
// concurrent use; results are added in input order by a single goroutine.
type Table struct {
	functions      map[string]*Tally
	calls          map[string]*Tally
	includeMethods bool
}

// NewTable creates an empty table. Methods enter the function tally only
// when includeMethods is set; calls are always tallied by unqualified name.
func NewTable(includeMethods bool) *Table {
	return &Table{
		functions:      make(map[string]*Tally),
		calls:          make(map[string]*Tally),
		includeMethods: includeMethods,
	}
}

// Add folds one file's functions and calls into the tallies.
func (t *Table) Add(res *cparse.FileResult) {
	if res == nil {
		return
	}

	for _, fn := range res.Functions {
		if fn.Kind == cparse.KindMethod && !t.includeMethods {
			continue
		}

		tallyOf(t.functions, fn.Name).add(fn.File)
	}

	for _, call := range res.Calls {
		tallyOf(t.calls, call.Callee).add(call.File)
	}
}

func tallyOf(m map[string]*Tally, name string) *Tally {
	tally, ok := m[name]
	if !ok {
		tally = &Tally{}
		m[name] = tally
	}

	return tally
}

// Functions returns the function tallies keyed by name.
func (t *Table) Functions() map[string]*Tally { return t.functions }

// Calls returns the call tallies keyed by callee name.
func (t *Table) Calls() map[string]*Tally { return t.calls }

// CompareSyscalls restricts the call and function tallies to names in set.
// The first result answers "which syscalls are called", the second "which
// syscalls are defined here" (wrappers such as a libc).
func (t *Table) CompareSyscalls(set SyscallSet) (map[string]*Tally, map[string]*Tally) {
	return restrict(t.calls, set), restrict(t.functions, set)
}

func restrict(m map[string]*Tally, set SyscallSet) map[string]*Tally {
	out := make(map[string]*Tally)

	for name, tally := range m {
		if set.Contains(name) {
			out[name] = tally.clone()
		}
	}

	return out
}

// Sorted returns the tallies of m ordered by name.
func Sorted(m map[string]*Tally) []Entry {
	out := make([]Entry, 0, len(m))
	for name, tally := range m {
		out = append(out, Entry{Name: name, Tally: *tally})
	}

	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return out
}

// Top returns up to n entries of m with the highest counts, ties broken by
// name.
func Top(m map[string]*Tally, n int) []Entry {
	entries := Sorted(m)

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.Count - a.Count
	})

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}

	return entries
}
