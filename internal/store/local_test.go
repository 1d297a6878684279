package store

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/haumaru/internal/domain"
)

func newSendRequest(t *testing.T, path string, content []byte) *SendRequest {
	t.Helper()
	return &SendRequest{
		MD5:    md5.Sum(content),
		SHA256: sha256.Sum256(content),
		Node:   domain.NewFile(path, 10, int64(len(content)), 0o644),
		Reader: bytes.NewReader(content),
		Size:   int64(len(content)),
	}
}

func TestLocalStoreSendRetrieveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	content := []byte("abc")
	req := newSendRequest(t, "a", content)

	deduped, err := s.Send(context.Background(), req)
	require.NoError(t, err)
	require.False(t, deduped)

	rc, ok, err := s.Retrieve(context.Background(), req.SHA256)
	require.NoError(t, err)
	require.True(t, ok)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestLocalStoreDedup(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	content := []byte("same content")
	req1 := newSendRequest(t, "a", content)
	req2 := newSendRequest(t, "b", content)

	deduped1, err := s.Send(context.Background(), req1)
	require.NoError(t, err)
	require.False(t, deduped1)
	deduped2, err := s.Send(context.Background(), req2)
	require.NoError(t, err)
	require.True(t, deduped2)

	// Only one blob should exist on disk.
	h := sha256.Sum256(content)
	count := 0
	_ = filepath.Walk(filepath.Join(dir, "store"), func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			count++
		}
		return nil
	})
	require.Equal(t, 1, count)

	rc, ok, err := s.Retrieve(context.Background(), h)
	require.NoError(t, err)
	require.True(t, ok)
	rc.Close()
}

func TestLocalStoreVerify(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	content := []byte("verify me")
	req := newSendRequest(t, "a", content)
	_, err = s.Send(context.Background(), req)
	require.NoError(t, err)

	node := req.Node.WithHash(req.SHA256[:]).WithBackupSet(1)
	_, ok, err := s.Verify(context.Background(), node)
	require.NoError(t, err)
	require.True(t, ok)

	// Corrupt the blob and verify should fail.
	h := sha256.Sum256(content)
	blobPath := s.blobPath(h)
	require.NoError(t, os.WriteFile(blobPath, []byte("corrupted"), 0o644))
	_, ok, err = s.Verify(context.Background(), node)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalStoreVerifyMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	h := sha256.Sum256([]byte("never sent"))
	node := domain.NewFile("a", 10, 4, 0o644).WithHash(h[:]).WithBackupSet(1)

	_, ok, err := s.Verify(context.Background(), node)
	require.NoError(t, err)
	require.False(t, ok)
}
