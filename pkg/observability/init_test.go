package observability_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/funcscan/pkg/observability"
)

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.LogWriter = io.Discard

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.NotNil(t, providers.Registry)

	ctx, span := providers.Tracer.Start(context.Background(), "test-op")
	span.End()

	assert.NotNil(t, ctx)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.LogWriter = io.Discard

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	metrics, err := observability.NewScanMetrics(providers.Meter)
	require.NoError(t, err)

	metrics.RecordFile(context.Background(), "c", observability.StatusParsed, 3, 5, time.Millisecond)

	path := filepath.Join(t.TempDir(), "funcscan.prom")
	require.NoError(t, observability.WriteTextfile(providers.Registry, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "funcscan_files")
	assert.Contains(t, string(data), "funcscan_functions")
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("garbage"))
	assert.Equal(t,
		map[string]string{"api-key": "abc", "tenant": "t1"},
		observability.ParseOTLPHeaders("api-key=abc, tenant = t1"),
	)
}
