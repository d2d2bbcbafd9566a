package symtab

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

//go:embed syscalls_linux_amd64.json
var linuxAMD64 []byte

// ErrInvalidSyscallList is returned when a syscall file is neither a JSON
// array of names nor a JSON object keyed by name.
var ErrInvalidSyscallList = errors.New("syscall list must be a JSON array of names or an object keyed by name")

// SyscallSet is a set of system call names.
type SyscallSet map[string]struct{}

// NewSyscallSet builds a set from names, ignoring blanks.
func NewSyscallSet(names ...string) SyscallSet {
	set := make(SyscallSet, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" {
			set[name] = struct{}{}
		}
	}

	return set
}

// Contains reports whether name is in the set.
func (s SyscallSet) Contains(name string) bool {
	_, ok := s[name]

	return ok
}

// Names returns the names in the set, sorted.
func (s SyscallSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// DefaultSyscalls returns the Linux x86-64 system call names.
func DefaultSyscalls() SyscallSet {
	set, err := ParseSyscalls(linuxAMD64)
	if err != nil {
		panic(fmt.Sprintf("embedded syscall list: %v", err))
	}

	return set
}

// LoadSyscalls reads a syscall list from path.
func LoadSyscalls(path string) (SyscallSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read syscall list: %w", err)
	}

	set, err := ParseSyscalls(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return set, nil
}

// ParseSyscalls decodes a JSON array of names, or a JSON object whose keys
// are the names (the values are ignored).
func ParseSyscalls(data []byte) (SyscallSet, error) {
	var names []string

	if err := json.Unmarshal(data, &names); err == nil {
		return NewSyscallSet(names...), nil
	}

	var keyed map[string]json.RawMessage

	if err := json.Unmarshal(data, &keyed); err != nil {
		return nil, ErrInvalidSyscallList
	}

	set := make(SyscallSet, len(keyed))
	for name := range keyed {
		if name = strings.TrimSpace(name); name != "" {
			set[name] = struct{}{}
		}
	}

	return set, nil
}
