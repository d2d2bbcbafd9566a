package commands_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/funcscan/cmd/funcscan/commands"
)

func scanTo(t *testing.T, dir string) string {
	t.Helper()

	out := filepath.Join(t.TempDir(), "report.json")

	_, _, err := execute(t, "-q", "--files", "-o", out, dir)
	require.NoError(t, err)

	return out
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := scanTo(t, sampleTree(t))

	stdout, _, err := execute(t, "validate", "--no-color", valid)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Report is valid")

	scratch := t.TempDir()

	notJSON := filepath.Join(scratch, "broken.json")
	require.NoError(t, os.WriteFile(notJSON, []byte("{"), 0o600))

	_, _, err = execute(t, "validate", "--no-color", notJSON)
	require.ErrorIs(t, err, commands.ErrValidationFailed)

	wrongShape := filepath.Join(scratch, "shape.json")
	require.NoError(t, os.WriteFile(wrongShape, []byte(`{"tool": 1}`), 0o600))

	stdout, _, err = execute(t, "validate", "--no-color", wrongShape)
	require.ErrorIs(t, err, commands.ErrValidationFailed)
	assert.Contains(t, stdout, "Report validation failed")
	assert.Contains(t, stdout, "  - ")

	_, _, err = execute(t, "validate", filepath.Join(scratch, "missing.json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, commands.ErrValidationFailed)
}

func TestDiff(t *testing.T) {
	t.Parallel()

	oldDir := sampleTree(t)
	newDir := t.TempDir()
	changed := strings.Replace(sampleSource, "int main(void) {", "long extra(void) { return 0; }\n\nint main(void) {", 1)
	require.NoError(t, os.WriteFile(filepath.Join(newDir, "main.c"), []byte(changed), 0o600))

	oldReport := scanTo(t, oldDir)
	newReport := scanTo(t, newDir)

	stdout, _, err := execute(t, "diff", oldReport, oldReport)
	require.NoError(t, err)
	assert.Equal(t, "no differences\n", stdout)

	stdout, _, err = execute(t, "diff", oldReport, newReport)
	require.NoError(t, err)
	assert.Contains(t, stdout, "+ extra\n")

	_, _, err = execute(t, "diff", "--exit-code", oldReport, newReport)
	require.ErrorIs(t, err, commands.ErrReportsDiffer)

	stdout, _, err = execute(t, "diff", "--json", oldReport, newReport)
	require.NoError(t, err)

	var delta struct {
		Added []string `json:"added"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &delta))
	assert.Equal(t, []string{"extra"}, delta.Added)
}

func TestSyscalls(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "syscalls", "--count")
	require.NoError(t, err)

	count, err := strconv.Atoi(strings.TrimSpace(stdout))
	require.NoError(t, err)
	assert.Greater(t, count, 300)

	stdout, _, err = execute(t, "syscalls", "--json")
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal([]byte(stdout), &names))
	assert.Contains(t, names, "read")
	assert.Len(t, names, count)

	custom := filepath.Join(t.TempDir(), "syscalls.json")
	require.NoError(t, os.WriteFile(custom, []byte(`["open", "close"]`), 0o600))

	stdout, _, err = execute(t, "syscalls", "-s", custom)
	require.NoError(t, err)
	assert.Equal(t, "close\nopen\n", stdout)
}

func TestMCPCommand_Flags(t *testing.T) {
	t.Parallel()

	cmd := commands.NewMCPCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "mcp", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	flag := cmd.Flags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
