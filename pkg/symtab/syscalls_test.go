package symtab_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/funcscan/pkg/symtab"
)

func TestDefaultSyscalls(t *testing.T) {
	t.Parallel()

	set := symtab.DefaultSyscalls()

	for _, name := range []string{"read", "write", "openat", "clone3", "io_uring_setup"} {
		assert.True(t, set.Contains(name), name)
	}

	assert.False(t, set.Contains("printf"))
	assert.Greater(t, len(set), 300)
	assert.IsIncreasing(t, set.Names())
}

func TestParseSyscalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{name: "array", input: `["write", "read", " ", "read"]`, want: []string{"read", "write"}},
		{name: "object", input: `{"read": 0, "write": {"nr": 1}}`, want: []string{"read", "write"}},
		{name: "empty array", input: `[]`, want: []string{}},
		{name: "number", input: `42`, wantErr: true},
		{name: "garbage", input: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			set, err := symtab.ParseSyscalls([]byte(tt.input))
			if tt.wantErr {
				require.ErrorIs(t, err, symtab.ErrInvalidSyscallList)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, set.Names())
		})
	}
}

func TestLoadSyscalls(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "syscalls.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"open": 2}`), 0o600))

	set, err := symtab.LoadSyscalls(path)
	require.NoError(t, err)
	assert.True(t, set.Contains("open"))

	_, err = symtab.LoadSyscalls(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
