package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/log"
)

// LocalStore is the sharded-directory-tree object store backend: a blob
// with hex sha256 H lives at <working>/store/H[0:2]/H[2:4]/H[4:].
type LocalStore struct {
	workingDir string
	logger     zerolog.Logger
}

// NewLocalStore creates a local object store rooted at workingDir/store.
func NewLocalStore(workingDir string) (*LocalStore, error) {
	storeDir := filepath.Join(workingDir, "store")
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{workingDir: workingDir, logger: log.WithComponent("store.local")}, nil
}

func (s *LocalStore) blobPath(hash [32]byte) string {
	h := hex.EncodeToString(hash[:])
	return filepath.Join(s.workingDir, "store", h[0:2], h[2:4], h[4:])
}

// Clone returns a handle sharing the same backing directory; LocalStore
// carries no per-goroutine file-handle budget, so this just copies the
// value.
func (s *LocalStore) Clone() Store {
	clone := *s
	return &clone
}

// Send streams req's body to a uniquely-named temp file, then atomically
// renames it into place. If the final path already exists the blob is
// already present (deduplicated); the temp file is discarded without
// uploading twice. The temp name carries a per-call uuid suffix because
// up to 12 send workers may be uploading concurrently.
func (s *LocalStore) Send(ctx context.Context, req *SendRequest) (bool, error) {
	final := s.blobPath(req.SHA256)
	if _, err := os.Stat(final); err == nil {
		s.logger.Debug().Str("path", req.Node.Path).Msg("blob already present; dedup skip")
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return false, err
	}

	tmp := filepath.Join(s.workingDir, "store", "_"+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp) // no-op once renamed

	if _, err := req.Reader.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return false, err
	}
	if _, err := io.Copy(f, req.Reader); err != nil {
		f.Close()
		return false, err
	}
	if err := f.Close(); err != nil {
		return false, err
	}

	if err := os.Rename(tmp, final); err != nil {
		if os.IsExist(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// Retrieve opens the blob for read.
func (s *LocalStore) Retrieve(ctx context.Context, sha256sum [32]byte) (io.ReadCloser, bool, error) {
	f, err := os.Open(s.blobPath(sha256sum))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}

// Verify re-reads the blob, re-hashes it, and reports whether the
// recomputed sha256 matches the node's recorded hash and the file exists.
func (s *LocalStore) Verify(ctx context.Context, node domain.Node) (domain.Node, bool, error) {
	var want [32]byte
	copy(want[:], node.Hash)

	f, err := os.Open(s.blobPath(want))
	if errors.Is(err, os.ErrNotExist) {
		return node, false, nil
	}
	if err != nil {
		return node, false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return node, false, err
	}
	var got [32]byte
	copy(got[:], h.Sum(nil))
	return node, bytes.Equal(got[:], want[:]), nil
}
