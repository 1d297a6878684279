// Package domain holds the value types shared by every layer of the backup
// engine: Node (a path's history record), Change (a watch/scan event), and
// the invariants that bind them.
package domain

import "fmt"

// Kind distinguishes a file revision from a directory revision.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// HashSize is the length in bytes of a Node's content identifier (sha256).
const HashSize = 32

// Node is one observed revision of a path as of a backup set.
type Node struct {
	Path      string // canonical key, relative to backup root, "/"-separated
	Kind      Kind
	Mtime     int64 // seconds since Unix epoch
	Size      int64 // bytes; 0 for Dir, 0 for deleted
	Mode      uint32
	Deleted   bool
	Hash      []byte // 32 bytes, present iff Kind=File && !Deleted
	BackupSet int64  // positive integer; the owning backup set id
}

// NewFile builds an undeleted file Node with no hash or backup set yet.
func NewFile(path string, mtime int64, size int64, mode uint32) Node {
	return Node{Path: path, Kind: KindFile, Mtime: mtime, Size: size, Mode: mode}
}

// NewDir builds a directory Node.
func NewDir(path string, mtime int64, mode uint32) Node {
	return Node{Path: path, Kind: KindDir, Mtime: mtime, Size: 0, Mode: mode}
}

// WithHash returns a copy of n with its content identifier set.
func (n Node) WithHash(hash []byte) Node {
	if len(hash) != HashSize {
		panic(fmt.Sprintf("hash size: got %d want %d", len(hash), HashSize))
	}
	n.Hash = hash
	return n
}

// WithBackupSet returns a copy of n assigned to backup set id.
func (n Node) WithBackupSet(id int64) Node {
	n.BackupSet = id
	return n
}

// AsDeleted returns a tombstone revision of n: size/mode/hash cleared,
// deleted set, mtime bumped to now.
func (n Node) AsDeleted(now int64) Node {
	n.Deleted = true
	n.Size = 0
	n.Mode = 0
	n.Hash = nil
	n.Mtime = now
	return n
}

func (n Node) IsDir() bool   { return n.Kind == KindDir }
func (n Node) IsFile() bool  { return n.Kind == KindFile }
func (n Node) HasHash() bool { return n.Hash != nil }

// Validate enforces the node invariants. Violations are programmer
// errors and panic with the offending node embedded.
func (n Node) Validate() {
	if n.Hash != nil && len(n.Hash) != HashSize {
		panic(fmt.Sprintf("node invariant violated: bad hash size: %+v", n))
	}
	switch n.Kind {
	case KindFile:
		if !n.Deleted && n.Hash == nil {
			panic(fmt.Sprintf("node invariant violated: non-deleted file has no hash: %+v", n))
		}
		if n.Deleted && n.Hash != nil {
			panic(fmt.Sprintf("node invariant violated: deleted file has hash: %+v", n))
		}
		if n.Deleted && n.Mode != 0 {
			panic(fmt.Sprintf("node invariant violated: deleted file has mode: %+v", n))
		}
	case KindDir:
		if n.Hash != nil {
			panic(fmt.Sprintf("node invariant violated: dir has hash: %+v", n))
		}
		if n.Size != 0 {
			panic(fmt.Sprintf("node invariant violated: dir has nonzero size: %+v", n))
		}
	default:
		panic(fmt.Sprintf("node invariant violated: unknown kind: %+v", n))
	}
	if n.BackupSet <= 0 {
		panic(fmt.Sprintf("node invariant violated: missing backup set: %+v", n))
	}
}

// Change is a single watch/scan event naming a path whose state may have
// changed. Equality is by Path so a set of Changes deduplicates within a
// period.
type Change struct {
	Path string
}

// ParentPath returns the string up to but not including the last "/", or
// "" for a top-level entry. Mirrors Index's parent(p) definition.
func ParentPath(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return ""
}

// BaseName returns the final path component.
func BaseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
