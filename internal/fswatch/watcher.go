// Package fswatch turns filesystem activity into a unified domain.Change
// stream: Watcher wraps fsnotify (which is not natively recursive) for
// the live-event path, and Scanner performs the bounded BFS walk used
// for the initial pass. Watcher delivers Changes on a channel and Scanner
// through an emit callback; both end in the engine's one Change handling
// code path.
package fswatch

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/herror"
	"github.com/cuemby/haumaru/internal/log"
)

// Watcher emits domain.Change events observed by a recursive fsnotify
// watch rooted at a directory. It never terminates on its own; Close
// stops it.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan domain.Change
}

// NewWatcher starts watching root and every directory beneath it,
// recursively, and returns a Watcher whose Changes channel streams events
// as they arrive.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, herror.Wrap(herror.IO, "create fsnotify watcher", err)
	}

	w := &Watcher{fsw: fsw, changes: make(chan domain.Change, 64)}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.WithComponent("fswatch").Debug().Str("path", path).Err(err).Msg("skipping unreadable entry during watch setup")
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				log.WithComponent("fswatch").Debug().Str("path", path).Err(err).Msg("failed to add watch")
			}
		}
		return nil
	})
}

// Changes returns the channel of observed changes. Consumers should drain
// it continuously; the watcher does not buffer beyond its internal
// channel capacity.
func (w *Watcher) Changes() <-chan domain.Change { return w.changes }

func (w *Watcher) run() {
	comp := log.WithComponent("fswatch")
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				close(w.changes)
				return
			}
			if ev.Name == "" {
				comp.Debug().Msg("discarding event with no usable path")
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						comp.Debug().Err(err).Str("path", ev.Name).Msg("failed to extend recursive watch")
					}
				}
			}
			w.changes <- domain.Change{Path: ev.Name}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				continue
			}
			if err != nil && !errors.Is(err, fsnotify.ErrEventOverflow) {
				comp.Debug().Err(err).Msg("watcher error")
			}
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
