package engine

import (
	"context"

	"github.com/cuemby/haumaru/internal/index"
)

// Dump streams every node revision in the index, in (path, node.id ASC)
// order. Backs the "dump" CLI subcommand, a debugging aid for inspecting
// the raw index contents.
func (e *Engine) Dump(ctx context.Context) ([]index.DumpRecord, error) {
	return e.idx.Dump(ctx)
}
