package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/fswatch"
	"github.com/cuemby/haumaru/internal/index"
	"github.com/cuemby/haumaru/internal/log"
)

// Run performs the initial full pass (a scan), then loops forever doing
// periodic passes over the accumulated watcher changes. It returns only on a
// fatal error or ctx cancellation.
func (e *Engine) Run(ctx context.Context) error {
	comp := log.WithComponent("engine")
	e.pipeline.Start(ctx)

	watcher, err := fswatch.NewWatcher(e.root)
	if err != nil {
		return err
	}
	e.watcher = watcher
	defer watcher.Close()

	acc := newChangeAccumulator()
	go func() {
		for c := range watcher.Changes() {
			acc.add(c)
		}
	}()

	if err := e.runPass(ctx, index.Now(), func(emit func(domain.Change)) error {
		return e.scanner.Scan(ctx, index.Now(), emit)
	}); err != nil {
		return err
	}

	for {
		now := index.Now()
		next := nextBoundary(now, int64(e.period.Seconds()))
		if err := sleepUntil(ctx, next); err != nil {
			return err
		}

		changes := acc.drain()
		if len(changes) == 0 {
			continue
		}
		if err := e.runPass(ctx, index.Now(), func(emit func(domain.Change)) error {
			for _, c := range changes {
				emit(c)
			}
			return nil
		}); err != nil {
			comp.Error().Err(err).Msg("backup pass failed")
		}
	}
}

// runPass opens a backup set, feeds it every Change produced by source,
// waits for the pipeline to drain, then closes the set.
func (e *Engine) runPass(ctx context.Context, now int64, source func(emit func(domain.Change)) error) error {
	started := time.Now()
	id, err := e.idx.OpenBackupSet(now)
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.BackupSetOpened()
	}

	emit := func(c domain.Change) {
		e.processChange(ctx, id, c, now)
	}
	if err := source(emit); err != nil {
		return err
	}

	e.pipeline.Wait()
	if err := e.idx.CloseBackupSet(); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.PassObserved(time.Since(started).Seconds())
	}
	return nil
}

func nextBoundary(now, period int64) int64 {
	if period <= 0 {
		period = 1
	}
	if now%period == 0 {
		return now + period
	}
	return ((now / period) + 1) * period
}

func sleepUntil(ctx context.Context, targetUnix int64) error {
	for {
		now := time.Now().Unix()
		if now >= targetUnix {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// changeAccumulator deduplicates Changes observed within one period by
// path.
type changeAccumulator struct {
	mu   sync.Mutex
	seen map[string]domain.Change
}

func newChangeAccumulator() *changeAccumulator {
	return &changeAccumulator{seen: make(map[string]domain.Change)}
}

func (a *changeAccumulator) add(c domain.Change) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen[c.Path] = c
}

func (a *changeAccumulator) drain() []domain.Change {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Change, 0, len(a.seen))
	for _, c := range a.seen {
		out = append(out, c)
	}
	a.seen = make(map[string]domain.Change)
	return out
}
