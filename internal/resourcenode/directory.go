package resourcenode

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/anacostia-labs/anacostia/internal/alog"
	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/anacostia-labs/anacostia/internal/fsguard"
)

// NewDirectoryNode builds a resource node whose backing store is an actual
// filesystem directory, wired to fsnotify for monitoring and to
// fsguard-locked LoadArtifact/SaveArtifact (GetArtifact opens the file
// without taking a lock) — the concrete default
// behind the Hooks contract (spec §4.4, §5 "each resource node has its own
// re-entrant lock for its backing store"). Concrete storage backends
// beyond "a directory" (a model registry, object storage) are out of core
// scope per spec §1; a caller wanting one supplies its own Hooks instead.
func NewDirectoryNode(name, metadataNodeName, dir string, monitoring bool, metadata MetadataClient, loggers ...alog.Logger) *Node {
	var n *Node
	hooks := Hooks{
		ListArtifacts: func(artifact.State) ([]string, error) {
			entries, err := os.ReadDir(dir)
			if err != nil {
				return nil, err
			}
			out := make([]string, 0, len(entries))
			for _, e := range entries {
				if !e.IsDir() {
					out = append(out, filepath.Join(dir, e.Name()))
				}
			}
			return out, nil
		},
		GetNumArtifacts: func(state artifact.State) (int, error) {
			entries, err := os.ReadDir(dir)
			return len(entries), err
		},
		GetArtifact: func(location string) (io.ReadCloser, error) {
			return os.Open(location)
		},
		LoadArtifact: func(location string) ([]byte, error) {
			var data []byte
			err := fsguard.WithReadLock(context.Background(), location, func(f *os.File) error {
				b, readErr := io.ReadAll(f)
				data = b
				return readErr
			})
			return data, err
		},
		SaveArtifact: func(location string, data []byte) error {
			return fsguard.WithWriteLock(context.Background(), location, func(f *os.File) error {
				_, err := f.Write(data)
				return err
			})
		},
		StartMonitoring: func(ctx context.Context) error {
			w := NewWatcher(dir, func(path string) {
				if err := n.RecordNew(ctx, path); err != nil {
					n.LogError("record_new failed", err, "path", path)
				}
			})
			if err := w.Start(ctx); err != nil {
				return err
			}
			n.watcher = w
			return nil
		},
		StopMonitoring: func(context.Context) error {
			if n.watcher == nil {
				return nil
			}
			return n.watcher.Stop()
		},
	}
	n = NewNode(name, metadataNodeName, monitoring, hooks, metadata, loggers...)
	n.ResourcePath = dir
	return n
}
