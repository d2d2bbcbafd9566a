package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
)

func TestValidateCodeInput(t *testing.T) {
	t.Parallel()

	lang, err := validateCodeInput(ScanCodeInput{Code: "int x;"})
	require.NoError(t, err)
	assert.Equal(t, csource.LangC, lang)

	lang, err = validateCodeInput(ScanCodeInput{Code: "int x;", Language: "c++"})
	require.NoError(t, err)
	assert.Equal(t, csource.LangCPP, lang)

	_, err = validateCodeInput(ScanCodeInput{})
	require.ErrorIs(t, err, ErrEmptyCode)

	_, err = validateCodeInput(ScanCodeInput{Code: strings.Repeat("x", MaxCodeInputBytes+1)})
	require.ErrorIs(t, err, ErrCodeTooLarge)

	_, err = validateCodeInput(ScanCodeInput{Code: "x", Language: "go"})
	require.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestValidatePaths(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, validatePaths(nil), ErrNoPaths)
	require.ErrorIs(t, validatePaths([]string{"/abs", "rel"}), ErrPathNotAbsolute)
	require.NoError(t, validatePaths([]string{"/abs/a", "/abs/b.c"}))
}

func TestSyntheticFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "input.c", syntheticFilename(csource.LangC))
	assert.Equal(t, "input.cpp", syntheticFilename(csource.LangCPP))
}

func TestListToolNames(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerDeps{})

	assert.Equal(t, []string{ToolNameScanCode, ToolNameScanPaths}, srv.ListToolNames())
}
