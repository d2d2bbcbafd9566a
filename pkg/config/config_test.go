package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/funcscan/pkg/config"
)

const testWorkers = 3

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultFormat, cfg.Format)
	assert.Equal(t, config.DefaultWorkers, cfg.Workers)
	assert.Equal(t, config.DefaultMaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.Empty(t, cfg.Cache.Path)
	assert.Empty(t, cfg.IncludePaths)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	configContent := `
include_paths:
  - /usr/include
  - third_party/include
format: yaml
workers: 3
max_file_size: 512KB
methods: true
cache:
  path: /tmp/funcscan.db
logging:
  level: debug
`

	cfgPath := filepath.Join(t.TempDir(), "funcscan.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"/usr/include", "third_party/include"}, cfg.IncludePaths)
	assert.Equal(t, "yaml", cfg.Format)
	assert.Equal(t, testWorkers, cfg.Workers)
	assert.True(t, cfg.Methods)
	assert.Equal(t, "/tmp/funcscan.db", cfg.Cache.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)

	size, sizeErr := cfg.MaxFileSizeBytes()
	require.NoError(t, sizeErr)
	assert.Equal(t, uint64(512000), size)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("FUNCSCAN_WORKERS", "7")
	t.Setenv("FUNCSCAN_FORMAT", "table")
	t.Setenv("FUNCSCAN_CACHE_PATH", "/tmp/env-cache.db")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "table", cfg.Format)
	assert.Equal(t, "/tmp/env-cache.db", cfg.Cache.Path)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "bad format", content: "format: xml\n", wantErr: config.ErrInvalidFormat},
		{name: "negative workers", content: "workers: -2\n", wantErr: config.ErrInvalidWorkers},
		{name: "bad size", content: "max_file_size: lots\n", wantErr: config.ErrInvalidMaxFileSize},
		{name: "bad level", content: "logging:\n  level: loud\n", wantErr: config.ErrInvalidLogLevel},
		{name: "bad log format", content: "logging:\n  format: xml\n", wantErr: config.ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfgPath := filepath.Join(t.TempDir(), "cfg.yaml")
			require.NoError(t, os.WriteFile(cfgPath, []byte(tt.content), 0o600))

			_, err := config.LoadConfig(cfgPath)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMaxFileSizeBytesUnlimited(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{MaxFileSize: "0"}

	size, err := cfg.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Zero(t, size)
}
