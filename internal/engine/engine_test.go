package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/haumaru/internal/config"
	"github.com/cuemby/haumaru/internal/domain"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	working := t.TempDir()

	e, err := New(config.Config{Path: root, Working: working, Period: 900}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.pipeline.Start(ctx)

	return e, root
}

func (e *Engine) scanOnce(t *testing.T, ctx context.Context, now int64) {
	t.Helper()
	require.NoError(t, e.runPass(ctx, now, func(emit func(domain.Change)) error {
		return e.scanner.Scan(ctx, now, emit)
	}))
}

// S1: new file.
func TestScenarioNewFile(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("abc"), 0o644))
	e.scanOnce(t, ctx, 5)

	recs, err := e.idx.Dump(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "a", recs[0].Node.Path)
	require.Equal(t, int64(3), recs[0].Node.Size)
	require.False(t, recs[0].Node.Deleted)
}

// S2: update file.
func TestScenarioUpdateFile(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("abc"), 0o644))
	e.scanOnce(t, ctx, 5)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("1234"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(root, "a"), time.Unix(20, 0), time.Unix(20, 0)))
	e.scanOnce(t, ctx, 6)

	recs, err := e.idx.Dump(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	got, ok, err := e.idx.Get(ctx, "a", nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(4), got.Size)
}

// S3: delete file.
func TestScenarioDeleteFile(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("abc"), 0o644))
	e.scanOnce(t, ctx, 5)

	require.NoError(t, os.Remove(filepath.Join(root, "a")))
	e.scanOnce(t, ctx, 6)

	recs, err := e.idx.Dump(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.True(t, recs[1].Node.Deleted)
	require.Equal(t, int64(0), recs[1].Node.Size)
}

// S4: dir then file with same name.
func TestScenarioDirThenFile(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))
	e.scanOnce(t, ctx, 3)

	require.NoError(t, os.Remove(filepath.Join(root, "a")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("abc"), 0o644))
	e.scanOnce(t, ctx, 4)

	recs, err := e.idx.Dump(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.True(t, recs[0].Node.IsDir())
	require.True(t, recs[1].Node.IsFile())
	require.Equal(t, int64(3), recs[1].Node.Size)
}

// S5: restore a directory.
func TestScenarioRestoreDir(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "dirA", "dirB"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dirA", "dirB", "a"), []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dirA", "dirB", "b"), []byte("def"), 0o644))
	e.scanOnce(t, ctx, 5)

	target := t.TempDir()
	require.NoError(t, e.Restore(ctx, "dirA/dirB", nil, target))

	got, err := os.ReadFile(filepath.Join(target, "dirB", "a"))
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))

	got, err = os.ReadFile(filepath.Join(target, "dirB", "b"))
	require.NoError(t, err)
	require.Equal(t, "def", string(got))
}

func TestScenarioRestoreWholeTreeSkipsTopLevelTombstone(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "gone"), []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "kept"), []byte("def"), 0o644))
	e.scanOnce(t, ctx, 5)

	require.NoError(t, os.Remove(filepath.Join(root, "gone")))
	e.scanOnce(t, ctx, 10)

	target := t.TempDir()
	require.NoError(t, e.Restore(ctx, "", nil, target))

	got, err := os.ReadFile(filepath.Join(target, "kept"))
	require.NoError(t, err)
	require.Equal(t, "def", string(got))

	_, err = os.Stat(filepath.Join(target, "gone"))
	require.True(t, os.IsNotExist(err))
}

func TestListWritesDirectoryEntries(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("abc"), 0o644))
	e.scanOnce(t, ctx, 5)

	var buf bytes.Buffer
	require.NoError(t, e.List(ctx, "", nil, &buf))
	require.Contains(t, buf.String(), "a\n")
	require.Contains(t, buf.String(), "3B")
}

func TestListWritesFileDetailBlock(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("abc"), 0o644))
	e.scanOnce(t, ctx, 5)

	var buf bytes.Buffer
	require.NoError(t, e.List(ctx, "a", nil, &buf))
	out := buf.String()
	require.Contains(t, out, "Name:   a\n")
	require.Contains(t, out, "Size:   3 bytes\n")
	require.Contains(t, out, "SHA256: ")
}

func TestVerifyReportsCounts(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("abc"), 0o644))
	e.scanOnce(t, ctx, 5)

	checked, failed, err := e.Verify(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, checked)
	require.Equal(t, 0, failed)
}

func TestPermissionStringFormat(t *testing.T) {
	require.Equal(t, "---------", permissionString(0))
	require.Equal(t, "rwxrwxrwx", permissionString(0o777))
	require.Equal(t, "rw-r--r--", permissionString(0o644))
	require.Equal(t, "rw-------", permissionString(0o600))
	require.Equal(t, "------rwx", permissionString(0o007))
}

func TestKeySelectorParsing(t *testing.T) {
	path, from, err := ParseKeySelector("abc")
	require.NoError(t, err)
	require.Equal(t, "abc", path)
	require.Nil(t, from)

	path, from, err = ParseKeySelector("abc@123")
	require.NoError(t, err)
	require.Equal(t, "abc", path)
	require.NotNil(t, from)
	require.Equal(t, int64(123), *from)

	path, from, err = ParseKeySelector("@123")
	require.NoError(t, err)
	require.Equal(t, "", path)
	require.Equal(t, int64(123), *from)
}
