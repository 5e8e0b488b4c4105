package fsguard

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteThenReadLockRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.bin")

	err := WithWriteLock(context.Background(), path, func(f *os.File) error {
		_, err := f.Write([]byte("hello"))
		return err
	})
	require.NoError(t, err)

	var got []byte
	err = WithReadLock(context.Background(), path, func(f *os.File) error {
		b, err := io.ReadAll(f)
		got = b
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}
