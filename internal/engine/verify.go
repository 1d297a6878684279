package engine

import (
	"context"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/log"
)

// Verify checks every hashable node whose path contains filter against
// the object store, logging a per-node failure and returning a summary
// count of failures. It never re-uploads.
func (e *Engine) Verify(ctx context.Context, filter string) (checked int, failed int, err error) {
	comp := log.WithComponent("engine")

	visitErr := e.idx.VisitAllHashable(ctx, filter, func(n domain.Node) error {
		checked++
		_, ok, verr := e.st.Verify(ctx, n)
		if verr != nil {
			comp.Error().Str("path", n.Path).Err(verr).Msg("verify failed with an error")
			failed++
			return nil
		}
		if !ok {
			comp.Error().Str("path", n.Path).Msg("verify failed: blob missing or corrupted")
			failed++
		}
		return nil
	})
	if visitErr != nil {
		return checked, failed, visitErr
	}

	comp.Info().Int("checked", checked).Int("failed", failed).Msg("verify summary")
	return checked, failed, nil
}
