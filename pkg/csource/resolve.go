package csource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/src-d/enry/v2"
)

// Sentinel errors for input resolution.
var (
	ErrNoInputs      = errors.New("no input paths given")
	ErrNoSourceFiles = errors.New("no C/C++ source files found")
)

// Reasons attached to skipped inputs.
const (
	ReasonNotFound    = "path does not exist"
	ReasonUnsupported = "unsupported file extension"
	ReasonUnreadable  = "cannot access path"
	ReasonBinary      = "binary content"
)

// SourceFile is one input file to parse.
type SourceFile struct {
	Path     string   `json:"path"`
	Language Language `json:"language"`
	Size     int64    `json:"size"`
}

// Skipped records an explicitly named input that was not scanned.
type Skipped struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

// ResolveOptions controls directory walking.
type ResolveOptions struct {
	// SkipVendor drops directories enry classifies as vendored
	// (vendor/, third_party/, node_modules/ and the like).
	SkipVendor bool
}

// Resolve expands the given paths into source files. Directories are walked
// recursively; hidden directories are skipped. Roots keep argument order and
// files within a root are in lexical order. A file reachable from two roots
// is listed once.
func Resolve(paths []string, opts ResolveOptions) ([]SourceFile, []Skipped, error) {
	if len(paths) == 0 {
		return nil, nil, ErrNoInputs
	}

	var (
		files   []SourceFile
		skipped []Skipped
	)

	seen := make(map[string]struct{})

	add := func(file SourceFile) {
		key := file.Path
		if abs, err := filepath.Abs(file.Path); err == nil {
			key = abs
		}

		if _, dup := seen[key]; dup {
			return
		}

		seen[key] = struct{}{}
		files = append(files, file)
	}

	for _, raw := range paths {
		path := filepath.Clean(raw)

		info, err := os.Stat(path)
		if err != nil {
			reason := ReasonUnreadable
			if errors.Is(err, fs.ErrNotExist) {
				reason = ReasonNotFound
			}

			skipped = append(skipped, Skipped{Path: raw, Reason: reason})

			continue
		}

		if !info.IsDir() {
			lang, ok := Detect(path)
			if !ok {
				skipped = append(skipped, Skipped{Path: raw, Reason: ReasonUnsupported})

				continue
			}

			add(SourceFile{Path: path, Language: lang, Size: info.Size()})

			continue
		}

		found, walkErr := walkRoot(path, opts)
		if walkErr != nil {
			return nil, nil, walkErr
		}

		for _, file := range found {
			add(file)
		}
	}

	return files, skipped, nil
}

func walkRoot(root string, opts ResolveOptions) ([]SourceFile, error) {
	var files []SourceFile

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if path == root {
				return nil
			}

			if isHiddenDir(entry.Name()) {
				return filepath.SkipDir
			}

			if opts.SkipVendor && isVendorDir(root, path) {
				return filepath.SkipDir
			}

			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		lang, ok := Detect(path)
		if !ok {
			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return infoErr
		}

		files = append(files, SourceFile{Path: path, Language: lang, Size: info.Size()})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", root, err)
	}

	return files, nil
}

// isHiddenDir returns true for directories that start with a dot (e.g. .git),
// except for "." and ".." which are filesystem navigation entries.
func isHiddenDir(name string) bool {
	return len(name) > 1 && name[0] == '.' && name != ".."
}

func isVendorDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return enry.IsVendor(filepath.ToSlash(rel) + "/")
}
