package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/herror"
)

// List writes a directory or file listing for key as of from (latest, if
// nil) to w.
func (e *Engine) List(ctx context.Context, key string, from *int64, w io.Writer) error {
	if key == "" {
		children, err := e.idx.List(ctx, "", from)
		if err != nil {
			return err
		}
		return writeEntries(w, children)
	}

	node, ok, err := e.idx.Get(ctx, key, from)
	if err != nil {
		return err
	}
	if !ok || node.Deleted {
		return herror.ErrNotFound
	}
	if node.IsDir() {
		children, err := e.idx.List(ctx, key, from)
		if err != nil {
			return err
		}
		return writeEntries(w, children)
	}
	return writeFileDetail(w, node)
}

func writeEntries(w io.Writer, nodes []domain.Node) error {
	for _, n := range nodes {
		kindChar := byte('-')
		if n.IsDir() {
			kindChar = 'd'
		}
		line := fmt.Sprintf("%c%s %dB %s %s\n",
			kindChar, permissionString(n.Mode), n.Size, formatEntryTime(n.Mtime), n.Path)
		if _, err := io.WriteString(w, line); err != nil {
			return herror.Wrap(herror.IO, "write listing", err)
		}
	}
	return nil
}

func writeFileDetail(w io.Writer, n domain.Node) error {
	var hashHex string
	if n.Hash != nil {
		hashHex = hex.EncodeToString(n.Hash)
	}
	block := fmt.Sprintf("%-8s%s\n%-8s%d bytes\n%-8s%s\n%-8s%s\n",
		"Name:", n.Path,
		"Size:", n.Size,
		"Time:", formatDetailTime(n.Mtime),
		"SHA256:", hashHex,
	)
	if _, err := io.WriteString(w, block); err != nil {
		return herror.Wrap(herror.IO, "write file detail", err)
	}
	return nil
}

func formatEntryTime(unixSec int64) string {
	return time.Unix(unixSec, 0).Local().Format("Jan _2 15:04")
}

func formatDetailTime(unixSec int64) string {
	return time.Unix(unixSec, 0).Local().Format("Jan _2 15:04 -0700")
}
