package commands

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPassphraseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pass")
	require.NoError(t, os.WriteFile(path, []byte("Tr0ub4dor&3-horse\n"), 0o600))

	got, err := readPassphrase(path, os.Stdin, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "Tr0ub4dor&3-horse", got)
}

func TestReadPassphraseFromPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	_, err = w.WriteString("piped-secret\r\nignored\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := readPassphrase("-", r, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "piped-secret", got)
}

func TestReadPassphraseRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))
	_, err := readPassphrase(path, os.Stdin, io.Discard)
	assert.Error(t, err)

	_, err = readPassphrase(filepath.Join(t.TempDir(), "missing"), os.Stdin, io.Discard)
	assert.Error(t, err)
}
