package resourcenode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/stretchr/testify/require"
)

func TestDirectoryNodeListsAndLoadsArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.txt"), []byte("hello"), 0o644))

	n := NewDirectoryNode("resource1", "metadata", dir, false, &fakeMetadata{})

	paths, err := n.ListArtifacts(artifact.StateNew)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := n.LoadArtifact(paths[0])
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}
