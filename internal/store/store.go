// Package store implements the content-addressed object store: blobs
// keyed by their 32-byte sha256, with interchangeable local-disk and
// S3-compatible remote implementations behind one Store interface — a
// small capability interface plus a concrete per-backend struct that
// owns its own handle.
package store

import (
	"context"
	"io"

	"github.com/cuemby/haumaru/internal/domain"
)

// SendRequest is one upload unit flowing from the pre-send stage to the
// send stage of the pipeline.
type SendRequest struct {
	MD5    [16]byte
	SHA256 [32]byte
	Node   domain.Node
	Reader io.ReadSeeker // restartable stream over the file body
	Size   int64
}

// Store is the capability set every object-store backend implements.
// Implementations are safe to use concurrently; Clone returns a handle over
// the same backing store (RemoteStore clones share one HTTP client).
type Store interface {
	// Send uploads req's body, deduplicating by content address. deduped
	// reports whether the blob was already present and the upload was
	// skipped.
	Send(ctx context.Context, req *SendRequest) (deduped bool, err error)
	// Retrieve opens a read stream for the blob with the given sha256, or
	// returns (nil, false, nil) if it does not exist.
	Retrieve(ctx context.Context, sha256 [32]byte) (io.ReadCloser, bool, error)
	// Verify re-reads/re-probes the blob backing node and reports whether
	// it is still good: LocalStore re-hashes the content against the
	// recorded hash, RemoteStore checks only that the key exists.
	Verify(ctx context.Context, node domain.Node) (domain.Node, bool, error)
	// Clone returns an independent handle sharing the same backing store.
	Clone() Store
}
