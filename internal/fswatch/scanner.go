package fswatch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/herror"
	"github.com/cuemby/haumaru/internal/log"
)

// Lister is the subset of *index.Index the scanner needs: the known
// children of a directory as of a point in time. Expressed as an
// interface so fswatch doesn't import internal/index directly.
type Lister interface {
	List(ctx context.Context, parent string, from *int64) ([]domain.Node, error)
}

// Scanner performs a bounded BFS walk: for each directory it compares
// on-disk entries against the index's last-known children as of "now"
// and emits a Change for every on-disk entry (symlinks excluded) and for
// every undeleted known child missing from disk, driving deletions.
type Scanner struct {
	root  string
	index Lister
}

// NewScanner builds a Scanner rooted at root, consulting index for
// known children.
func NewScanner(root string, index Lister) *Scanner {
	return &Scanner{root: root, index: index}
}

// Scan walks the tree breadth-first (depth-first within each directory's
// own subdirectory ordering) starting at relative path "", invoking emit
// for every synthetic Change. now is used as the "from" timestamp for
// the index comparison so a scan sees the index state as of itself.
func (s *Scanner) Scan(ctx context.Context, now int64, emit func(domain.Change)) error {
	queue := []string{""}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		var subdirs []string
		children, err := s.visitDir(ctx, dir, now, emit)
		if err != nil {
			return err
		}
		subdirs = children
		// Direct subdirectories go to the front: depth-first within a
		// breadth baseline.
		queue = append(subdirs, queue...)
	}
	return nil
}

func (s *Scanner) visitDir(ctx context.Context, relDir string, now int64, emit func(domain.Change)) ([]string, error) {
	comp := log.WithComponent("fswatch")
	absDir := filepath.Join(s.root, relDir)

	entries, err := os.ReadDir(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, herror.Wrap(herror.IO, "read directory during scan", err)
	}

	onDisk := make(map[string]bool, len(entries))
	var subdirs []string

	for _, e := range entries {
		relPath := joinRel(relDir, e.Name())
		info, err := e.Info()
		if err != nil {
			comp.Debug().Str("path", relPath).Err(err).Msg("skipping unreadable entry")
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			comp.Warn().Str("path", relPath).Msg("skipping symbolic link")
			continue
		}
		onDisk[relPath] = true
		emit(domain.Change{Path: filepath.Join(s.root, relPath)})
		if e.IsDir() {
			subdirs = append(subdirs, relPath)
		}
	}

	known, err := s.index.List(ctx, relDir, &now)
	if err != nil {
		return nil, err
	}
	for _, n := range known {
		if !n.Deleted && !onDisk[n.Path] {
			emit(domain.Change{Path: filepath.Join(s.root, n.Path)})
		}
	}

	return subdirs, nil
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
