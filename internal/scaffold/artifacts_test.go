package scaffold

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalArtifactSinkWritesNestedPath(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewLocalArtifactSink(dir)
	require.NoError(t, err)

	require.NoError(t, sink.Put(context.Background(), "acme/stg_acme__shopify_orders.sql", []byte("SELECT 1;")))

	contents, err := os.ReadFile(filepath.Join(dir, "acme", "stg_acme__shopify_orders.sql"))
	require.NoError(t, err)
	require.Equal(t, "SELECT 1;", string(contents))
}

func TestLocalArtifactSinkCreatesRootIfMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "root")
	_, err := NewLocalArtifactSink(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
