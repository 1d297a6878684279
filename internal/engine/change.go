package engine

import (
	"context"
	"os"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/log"
)

// observed is the current on-disk state of a key, or nil if absent.
type observed struct {
	isDir bool
	size  int64
	mtime int64
	mode  uint32
}

func statObserved(abs string) (*observed, bool, error) {
	info, err := os.Lstat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, true, nil
	}
	return &observed{
		isDir: info.IsDir(),
		size:  info.Size(),
		mtime: info.ModTime().Unix(),
		mode:  uint32(info.Mode().Perm()),
	}, false, nil
}

// processChange decides what to do with one observed Change against the
// open backup set, covering every combination of prior index state and
// current on-disk state. Both the watcher and the scanner funnel into
// this single code path.
func (e *Engine) processChange(ctx context.Context, backupSetID int64, change domain.Change, now int64) {
	comp := log.WithComponent("engine")

	if e.excluded(change.Path) {
		return
	}
	key, ok := e.relKey(change.Path)
	if !ok {
		return
	}

	existing, hasExisting, err := e.idx.Get(ctx, key, nil)
	if err != nil {
		comp.Warn().Str("path", key).Err(err).Msg("failed to read existing node")
		return
	}

	current, isSymlink, err := statObserved(change.Path)
	if isSymlink {
		comp.Warn().Str("path", key).Msg("skipping symbolic link")
		return
	}
	if err != nil {
		comp.Warn().Str("path", key).Err(err).Msg("failed to stat path")
		return
	}

	existingIsAbsent := !hasExisting || existing.Deleted
	existingIsDir := hasExisting && !existing.Deleted && existing.IsDir()

	switch {
	case existingIsAbsent && current == nil:
		// transient: nothing to do

	case existingIsAbsent && current != nil && !current.isDir:
		e.enqueueNewOrUpdatedFile(key, current, backupSetID)

	case existingIsAbsent && current != nil && current.isDir:
		e.insertDirect(domain.NewDir(key, current.mtime, current.mode).WithBackupSet(backupSetID))

	case !existingIsAbsent && current == nil:
		e.insertDirect(existing.AsDeleted(now).WithBackupSet(backupSetID))

	case !existingIsDir && !existingIsAbsent && current != nil && !current.isDir:
		if existing.Size == current.size && existing.Mtime == current.mtime {
			return
		}
		e.enqueueNewOrUpdatedFile(key, current, backupSetID)

	case !existingIsDir && !existingIsAbsent && current != nil && current.isDir:
		e.insertDirect(domain.NewDir(key, current.mtime, current.mode).WithBackupSet(backupSetID))

	case existingIsDir && current != nil && !current.isDir:
		e.enqueueNewOrUpdatedFile(key, current, backupSetID)

	case existingIsDir && current != nil && current.isDir:
		// identity: nothing to do
	}
}

func (e *Engine) enqueueNewOrUpdatedFile(key string, current *observed, backupSetID int64) {
	comp := log.WithComponent("engine")
	if e.maxFileSize > 0 && current.size > e.maxFileSize {
		comp.Warn().Str("path", key).Int64("size", current.size).Msg("skipping file exceeding max_file_size")
		return
	}
	node := domain.NewFile(key, current.mtime, current.size, current.mode).WithBackupSet(backupSetID)
	e.pipeline.Enqueue(node)
}

func (e *Engine) insertDirect(node domain.Node) {
	if err := e.idx.Insert(node); err != nil {
		log.WithComponent("engine").Warn().Str("path", node.Path).Err(err).Msg("failed to insert node directly")
	}
}
