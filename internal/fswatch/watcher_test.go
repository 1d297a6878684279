package fswatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherEmitsChangeOnFileWrite(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(root)
	require.NoError(t, err)
	defer w.Close()

	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))

	select {
	case c := <-w.Changes():
		require.NotEmpty(t, c.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a change event")
	}
}

func TestWatcherTracksNewSubdirectory(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(root)
	require.NoError(t, err)
	defer w.Close()

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Drain the mkdir event itself.
	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for mkdir event")
	}

	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("x"), 0o644))

	select {
	case c := <-w.Changes():
		require.Contains(t, c.Path, "b.txt")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for nested file event")
	}
}
