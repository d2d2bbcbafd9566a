package commands_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/funcscan/cmd/funcscan/commands"
	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
	"github.com/Sumatoshi-tech/funcscan/pkg/report"
)

const sampleSource = `#include <unistd.h>

static int helper(int fd);

static int helper(int fd) { return close(fd); }

int main(void) {
	write(1, "x", 1);
	return helper(3);
}
`

// lockedBuffer serializes writes from the logger and the progress printer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := commands.NewRootCommand()

	var (
		stdout bytes.Buffer
		stderr lockedBuffer
	)

	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{}, args...))

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func sampleTree(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte(sampleSource), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not source"), 0o600))

	return dir
}

func TestRoot_Help(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args    []string
		wantOut string
	}{
		{args: nil, wantOut: "funcscan parses C and C++ sources"},
		{args: []string{"--help"}, wantOut: "--include-file"},
		{args: []string{"validate", "--help"}, wantOut: "embedded report schema"},
		{args: []string{"diff", "--help"}, wantOut: "inline character diff"},
		{args: []string{"syscalls", "--help"}, wantOut: "embedded Linux x86_64 list"},
		{args: []string{"mcp", "--help"}, wantOut: "funcscan_scan_paths"},
	}

	for _, tt := range tests {
		stdout, _, err := execute(t, tt.args...)
		require.NoError(t, err, tt.args)
		assert.Contains(t, stdout, tt.wantOut, tt.args)
	}
}

func TestRoot_ScanJSON(t *testing.T) {
	t.Parallel()

	dir := sampleTree(t)

	stdout, stderr, err := execute(t, "-w", "2", dir)
	require.NoError(t, err, stderr)

	rep, err := report.Read(strings.NewReader(stdout))
	require.NoError(t, err)

	assert.Equal(t, report.ToolName, rep.Tool)
	assert.Equal(t, 1, rep.FileCount)
	require.Contains(t, rep.Functions, "helper")
	assert.Equal(t, 2, rep.Functions["helper"].Count)
	assert.Len(t, rep.Functions["helper"].Files, 1)
	assert.Contains(t, rep.CalledSyscalls, "close")
	assert.Contains(t, rep.CalledSyscalls, "write")
	assert.NotContains(t, rep.CalledSyscalls, "helper")
	assert.Empty(t, rep.Files)

	assert.Contains(t, stderr, "Gathering symbols of "+filepath.Join(dir, "main.c"))
}

func TestRoot_ScanQuietTableAndOutputFile(t *testing.T) {
	t.Parallel()

	dir := sampleTree(t)
	out := filepath.Join(t.TempDir(), "report.txt")

	stdout, stderr, err := execute(t, "-q", "-t", "-o", out, dir)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.NotContains(t, stderr, "Gathering symbols")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "functions:")
	assert.Contains(t, string(data), "called_syscalls:")
	assert.Contains(t, string(data), "summary:")
}

func TestRoot_ScanTextFormatWithoutSyscalls(t *testing.T) {
	t.Parallel()

	dir := sampleTree(t)

	stdout, _, err := execute(t, "-q", "--no-syscalls", "--format", "text", dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "main.c")
	assert.Contains(t, stdout, path+":3: int helper(int fd)")
	assert.Contains(t, stdout, path+":7: int main(void)")
}

func TestRoot_ScanYAMLFromConfigFile(t *testing.T) {
	t.Parallel()

	dir := sampleTree(t)
	cfgPath := filepath.Join(t.TempDir(), "funcscan.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("format: yaml\nmethods: true\n"), 0o600))

	stdout, _, err := execute(t, "-q", "--config", cfgPath, dir)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &parsed))
	assert.Equal(t, report.ToolName, parsed["tool"])
}

func TestRoot_ScanArtifacts(t *testing.T) {
	t.Parallel()

	dir := sampleTree(t)
	outDir := t.TempDir()
	plot := filepath.Join(outDir, "plot.html")
	metrics := filepath.Join(outDir, "funcscan.prom")
	cachePath := filepath.Join(outDir, "cache", "parse.db")

	for range 2 {
		_, _, err := execute(t, "-q", "--files", "--plot", plot, "--metrics-textfile", metrics, "--cache", cachePath, dir)
		require.NoError(t, err)
	}

	html, err := os.ReadFile(plot)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<html")

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "funcscan_files")

	assert.FileExists(t, cachePath)
}

func TestRoot_ScanErrors(t *testing.T) {
	t.Parallel()

	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "notes.txt"), []byte("x"), 0o600))

	_, _, err := execute(t, "-q", empty)
	require.ErrorIs(t, err, csource.ErrNoSourceFiles)

	_, _, err = execute(t, "-q", "--format", "xml", sampleTree(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")

	_, _, err = execute(t, "-q", "--config", filepath.Join(empty, "missing.yaml"), sampleTree(t))
	require.Error(t, err)

	_, _, err = execute(t, "-q", "-v", sampleTree(t))
	require.Error(t, err)
}

func TestRoot_ScanIdenticalAcrossWorkers(t *testing.T) {
	t.Setenv("SOURCE_DATE_EPOCH", "1700000000")

	dir := sampleTree(t)
	for i := range 12 {
		code := fmt.Sprintf("int f%d(void) { return close(%d); }\n", i, i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%02d.c", i)), []byte(code), 0o600))
	}

	sequential, _, err := execute(t, "-q", "--files", "-w", "1", dir)
	require.NoError(t, err)

	parallel, _, err := execute(t, "-q", "--files", "-w", "8", dir)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
	assert.Contains(t, sequential, `"generated_at": "2023-11-14T22:13:20Z"`)
}

func TestRoot_ScanRejectsBadSourceDateEpoch(t *testing.T) {
	t.Setenv("SOURCE_DATE_EPOCH", "yesterday")

	_, _, err := execute(t, "-q", sampleTree(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_DATE_EPOCH")
}

func TestRoot_ScanJSONIsValid(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "-q", "--files", sampleTree(t))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))

	result, err := report.Validate(strings.NewReader(stdout))
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Violations)
}

func TestRoot_IncludeFileJoinedToFirstDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include", "local.h"), []byte("int shared(void);\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte("#include <local.h>\nint main(void) { return shared(); }\n"), 0o600))

	list := filepath.Join(t.TempDir(), "includes.txt")
	require.NoError(t, os.WriteFile(list, []byte("# project headers\n/include\n"), 0o600))

	stdout, _, err := execute(t, "-q", "--include-file", list, dir)
	require.NoError(t, err)

	rep, err := report.Read(strings.NewReader(stdout))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "include")}, rep.IncludePaths)
}
