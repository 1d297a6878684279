package engine

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/herror"
)

// Restore reconstructs key (or, if key is empty, the entire tree) as of
// from into target on the local filesystem.
func (e *Engine) Restore(ctx context.Context, key string, from *int64, target string) error {
	if key == "" {
		children, err := e.idx.List(ctx, "", from)
		if err != nil {
			return err
		}
		for _, n := range children {
			if n.Deleted {
				continue
			}
			if err := e.restoreNode(ctx, n, from, filepath.Join(target, filepath.FromSlash(n.Path))); err != nil {
				return err
			}
		}
		return nil
	}

	node, ok, err := e.idx.Get(ctx, key, from)
	if err != nil {
		return err
	}
	if !ok || node.Deleted {
		return herror.ErrNotFound
	}
	dest := filepath.Join(target, path.Base(key))
	return e.restoreNode(ctx, node, from, dest)
}

func (e *Engine) restoreNode(ctx context.Context, node domain.Node, from *int64, dest string) error {
	if node.IsDir() {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return herror.Wrap(herror.IO, "create restore directory", err)
		}
		children, err := e.idx.List(ctx, node.Path, from)
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.Deleted {
				continue
			}
			if err := e.restoreNode(ctx, child, from, filepath.Join(dest, path.Base(child.Path))); err != nil {
				return err
			}
		}
		return nil
	}

	var hash [32]byte
	copy(hash[:], node.Hash)
	rc, ok, err := e.st.Retrieve(ctx, hash)
	if err != nil {
		return err
	}
	if !ok {
		return herror.GeneralWithNode("blob missing from object store", node)
	}
	defer rc.Close()

	f, err := os.Create(dest)
	if err != nil {
		return herror.Wrap(herror.IO, "create restore target file", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return herror.Wrap(herror.IO, "write restored file contents", err)
	}
	return nil
}
