package index

import (
	"sync"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/herror"
)

// Stage is the backup-set controller: a single-writer staging buffer
// holding the nodes observed during one open backup set. Only the
// orchestrator opens/closes it, but the sent-insert pipeline worker
// stages into it concurrently, so the buffer itself is mutex-guarded
// independent of the Index's own connection lock.
type Stage struct {
	mu    sync.Mutex
	open  bool
	id    int64
	nodes []domain.Node
}

// Open begins staging for backup set id. Re-opening without closing is
// reported as an error rather than a panic, since the engine's run loop
// can recover from it one period later.
func (s *Stage) Open(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return herror.New(herror.Engine, "backup set already open")
	}
	s.open = true
	s.id = id
	s.nodes = nil
	return nil
}

// Stage buffers a validated node revision; it is not visible to queries
// until the owning set is closed.
func (s *Stage) Stage(node domain.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return herror.New(herror.Engine, "no backup set is open")
	}
	if node.BackupSet != s.id {
		return herror.New(herror.Engine, "node belongs to a different backup set than the open one")
	}
	s.nodes = append(s.nodes, node)
	return nil
}

// drain returns the staged nodes and the open id, then resets the buffer
// and clears the open flag. Called only from Index.CloseBackupSet.
func (s *Stage) drain() (int64, []domain.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id
	nodes := s.nodes
	s.open = false
	s.id = 0
	s.nodes = nil
	return id, nodes
}

// IsOpen reports whether a backup set is currently staging.
func (s *Stage) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}
