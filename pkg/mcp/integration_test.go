package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/funcscan/pkg/mcp"
	"github.com/Sumatoshi-tech/funcscan/pkg/report"
)

func connect(t *testing.T, srv *mcp.Server) (context.Context, *mcpsdk.ClientSession) {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return ctx, session
}

func firstText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestMCPServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	toolsResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, toolsResult)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
	}

	assert.ElementsMatch(t, []string{mcp.ToolNameScanCode, mcp.ToolNameScanPaths}, toolNames)

	for _, tool := range toolsResult.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}
}

func TestMCPServer_InMemoryTransport_ScanCode(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: mcp.ToolNameScanCode,
		Arguments: map[string]any{
			"code":     "#include <stdio.h>\nint main(void) { printf(\"hi\"); return 0; }\n",
			"language": "c",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	var parsed struct {
		Functions []struct {
			Name string `json:"name"`
		} `json:"functions"`
		Calls []struct {
			Callee string `json:"callee"`
		} `json:"calls"`
	}

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &parsed))
	require.Len(t, parsed.Functions, 1)
	assert.Equal(t, "main", parsed.Functions[0].Name)
	require.Len(t, parsed.Calls, 1)
	assert.Equal(t, "printf", parsed.Calls[0].Callee)
}

func TestMCPServer_InMemoryTransport_ScanCodeErrors(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "empty code", args: map[string]any{"code": ""}, want: "code parameter is required"},
		{name: "bad language", args: map[string]any{"code": "int x;", "language": "rust"}, want: "language must be c or cpp"},
	}

	for _, tt := range tests {
		result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
			Name:      mcp.ToolNameScanCode,
			Arguments: tt.args,
		})
		require.NoError(t, err, tt.name)
		assert.True(t, result.IsError, tt.name)
		assert.Contains(t, firstText(t, result), tt.want, tt.name)
	}
}

func TestMCPServer_InMemoryTransport_ScanPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := "#include <unistd.h>\n" +
		"static int helper(int fd) { return close(fd); }\n" +
		"int main(void) { write(1, \"x\", 1); return helper(3); }\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte(src), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{Workers: 2}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameScanPaths,
		Arguments: map[string]any{"paths": []string{dir}},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, firstText(t, result))

	var rep report.Report
	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &rep))

	assert.Equal(t, 1, rep.FileCount)
	assert.Contains(t, rep.Functions, "helper")
	assert.Contains(t, rep.Functions, "main")
	assert.Contains(t, rep.CalledSyscalls, "close")
	assert.Contains(t, rep.CalledSyscalls, "write")
	assert.NotContains(t, rep.CalledSyscalls, "helper")
}

func TestMCPServer_InMemoryTransport_ScanPathsRelative(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameScanPaths,
		Arguments: map[string]any{"paths": []string{"relative/dir"}},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "paths must be absolute")
}
