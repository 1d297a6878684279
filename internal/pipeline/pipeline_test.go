package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/store"
)

type fakeInserter struct {
	inserted []domain.Node
}

func (f *fakeInserter) Insert(n domain.Node) error {
	f.inserted = append(f.inserted, n)
	return nil
}

func TestPipelineRoundTripsFileThroughAllStages(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0o644))

	st, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	idx := &fakeInserter{}

	p := New(root, st, idx, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	node := domain.NewFile("a.txt", 10, 11, 0o644).WithBackupSet(1)
	p.Enqueue(node)
	p.Wait()

	require.Len(t, idx.inserted, 1)
	require.Equal(t, "a.txt", idx.inserted[0].Path)
	require.True(t, idx.inserted[0].HasHash())

	rc, ok, err := st.Retrieve(ctx, [32]byte(idx.inserted[0].Hash))
	require.NoError(t, err)
	require.True(t, ok)
	rc.Close()
}

// A transient read failure is retried via the queue's re-enqueue-on-drop
// policy until the file appears and the item succeeds.
func TestPipelineRetriesTransientReadFailure(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "delayed.txt")

	st, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	idx := &fakeInserter{}

	p := New(root, st, idx, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	node := domain.NewFile("delayed.txt", 10, 5, 0o644).WithBackupSet(1)
	p.Enqueue(node)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(target, []byte("later"), 0o644))

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not drain after the file appeared")
	}
	require.Len(t, idx.inserted, 1)
}
