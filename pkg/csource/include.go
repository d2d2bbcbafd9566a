package csource

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// resolverCacheSize bounds the memoized include lookups. Large trees repeat
// the same handful of headers across thousands of files.
const resolverCacheSize = 4096

// ErrEmptyIncludeFile indicates an include-paths file with no usable lines.
var ErrEmptyIncludeFile = errors.New("include paths file lists no directories")

// BuildIncludePaths merges include directories given on the command line
// (each entry may hold several comma-separated paths) with the directories
// listed in includeFile. Lines of includeFile are joined to root, so a line
// "/include" under root "/src/musl" yields "/src/musl/include". Blank lines
// and lines starting with '#' are ignored. Duplicates are dropped.
func BuildIncludePaths(dirs []string, includeFile, root string) ([]string, error) {
	var paths []string

	seen := make(map[string]struct{})

	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}

		path = filepath.Clean(path)
		if _, dup := seen[path]; dup {
			return
		}

		seen[path] = struct{}{}
		paths = append(paths, path)
	}

	for _, dir := range dirs {
		for part := range strings.SplitSeq(dir, ",") {
			add(part)
		}
	}

	if includeFile == "" {
		return paths, nil
	}

	lines, err := readIncludeFile(includeFile)
	if err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyIncludeFile, includeFile)
	}

	for _, line := range lines {
		if root != "" {
			line = filepath.Join(root, line)
		}

		add(line)
	}

	return paths, nil
}

func readIncludeFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open include paths file: %w", err)
	}
	defer file.Close()

	var lines []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lines = append(lines, line)
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return nil, fmt.Errorf("read include paths file: %w", scanErr)
	}

	return lines, nil
}

// Resolver locates the header an #include directive refers to. Quoted
// includes search the including file's directory first, then the include
// paths; angle-bracket includes search the include paths only. It is safe
// for concurrent use.
type Resolver struct {
	paths []string
	memo  *lru.Cache[string, string]
}

// NewResolver creates a resolver over the given include directories.
func NewResolver(paths []string) *Resolver {
	memo, err := lru.New[string, string](resolverCacheSize)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}

	return &Resolver{
		paths: append([]string(nil), paths...),
		memo:  memo,
	}
}

// Paths returns the include directories in search order.
func (r *Resolver) Paths() []string {
	if r == nil {
		return nil
	}

	return append([]string(nil), r.paths...)
}

// Resolve returns the absolute path of the header named by spelling, or false
// when no candidate exists.
func (r *Resolver) Resolve(fromFile, spelling string, system bool) (string, bool) {
	if r == nil || spelling == "" {
		return "", false
	}

	var key string
	if system {
		key = "<" + spelling
	} else {
		key = absPath(filepath.Dir(fromFile)) + "\x00" + spelling
	}

	if cached, ok := r.memo.Get(key); ok {
		return cached, cached != ""
	}

	resolved := r.search(fromFile, spelling, system)
	r.memo.Add(key, resolved)

	return resolved, resolved != ""
}

func (r *Resolver) search(fromFile, spelling string, system bool) string {
	if filepath.IsAbs(spelling) {
		if isFile(spelling) {
			return filepath.Clean(spelling)
		}

		return ""
	}

	if !system {
		candidate := filepath.Join(filepath.Dir(fromFile), spelling)
		if isFile(candidate) {
			return absPath(candidate)
		}
	}

	for _, dir := range r.paths {
		candidate := filepath.Join(dir, spelling)
		if isFile(candidate) {
			return absPath(candidate)
		}
	}

	return ""
}

// absPath makes path absolute against the working directory, falling back to
// the cleaned input when the working directory is unavailable.
func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	return abs
}

func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
