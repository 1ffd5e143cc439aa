package dkimregistrar

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendSigningEntryAddsLineOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signingtable")
	r := NewRegistrar(path, filepath.Join(dir, "opendkim.pid"))

	require.NoError(t, r.AppendSigningEntry(context.Background(), "example.com", "s1"))
	require.NoError(t, r.AppendSigningEntry(context.Background(), "example.com", "s1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "*@example.com example.com.s1\n", string(data))
}

func TestAppendSigningEntryRejectsInvalidSelector(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistrar(filepath.Join(dir, "signingtable"), filepath.Join(dir, "opendkim.pid"))

	err := r.AppendSigningEntry(context.Background(), "example.com", "bad selector")
	require.Error(t, err)
}
