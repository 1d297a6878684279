// Package index implements the versioned metadata database over
// database/sql and modernc.org/sqlite: path/node/backup_set tables, the
// single-writer Stage, and the query surface (Get, List,
// VisitAllHashable, Dump) that engine.Engine builds list/restore/verify
// on top of.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/herror"
	"github.com/cuemby/haumaru/internal/log"
)

// Index is a durable, ordered store of node revisions. A single Index
// serialises every database operation behind mu: modernc.org/sqlite
// allows one writer at a time per connection anyway, but the explicit
// mutex keeps Stage flush and query ordering predictable under
// concurrent pipeline workers.
type Index struct {
	db     *sql.DB
	mu     sync.Mutex
	stage  *Stage
	logger zerolog.Logger
}

// Open opens (or creates) the sqlite database at path and runs the
// idempotent schema migration.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, herror.Wrap(herror.Index, "open database", err)
	}
	// A single physical connection avoids sqlite's "database is locked"
	// errors under our own external mutex serialisation.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, stage: &Stage{}, logger: log.WithComponent("index")}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, err := idx.db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return herror.Wrap(herror.Index, "enable foreign keys", err)
	}
	if _, err := idx.db.Exec(schema); err != nil {
		return herror.Wrap(herror.Index, "migrate schema", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// pathID returns the surrogate id for path, inserting a new path row if
// one doesn't already exist. Must be called with a transaction so
// concurrent inserts of the same path don't race.
func pathID(tx *sql.Tx, path string) (int64, error) {
	if _, err := tx.Exec(`INSERT OR IGNORE INTO path (path) VALUES (?)`, path); err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRow(`SELECT id FROM path WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// OpenBackupSet appends a backup_set row and opens the in-memory staging
// buffer. Fails if one is already open.
func (idx *Index) OpenBackupSet(ts int64) (int64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.stage.IsOpen() {
		return 0, herror.New(herror.Engine, "a backup set is already open")
	}

	res, err := idx.db.Exec(`INSERT INTO backup_set (at) VALUES (?)`, ts)
	if err != nil {
		return 0, herror.Wrap(herror.Index, "insert backup_set", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, herror.Wrap(herror.Index, "read backup_set id", err)
	}
	if err := idx.stage.Open(id); err != nil {
		return 0, err
	}
	idx.logger.Debug().Int64("backup_set", id).Msg("opened backup set")
	return id, nil
}

// Insert validates node's invariants and stages it into the open buffer;
// no database write happens until CloseBackupSet.
func (idx *Index) Insert(node domain.Node) error {
	node.Validate()
	return idx.stage.Stage(node)
}

// CloseBackupSet atomically flushes every staged node, then clears the
// buffer. An error during flush leaves the set either fully applied or
// not visible to subsequent queries.
func (idx *Index) CloseBackupSet() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, nodes := idx.stage.drain()
	if len(nodes) == 0 {
		return nil
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return herror.Wrap(herror.Index, "begin flush transaction", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO node (backup_set_id, parent_path_id, path_id, kind, mtime, size, mode, deleted, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return herror.Wrap(herror.Index, "prepare node insert", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		pid, err := pathID(tx, n.Path)
		if err != nil {
			tx.Rollback()
			return herror.Wrap(herror.Index, "resolve path id", err)
		}
		parentID, err := pathID(tx, domain.ParentPath(n.Path))
		if err != nil {
			tx.Rollback()
			return herror.Wrap(herror.Index, "resolve parent path id", err)
		}

		var hash any
		if n.Hash != nil {
			hash = n.Hash
		}
		deleted := 0
		if n.Deleted {
			deleted = 1
		}
		if _, err := stmt.Exec(n.BackupSet, parentID, pid, string(n.Kind), n.Mtime, n.Size, n.Mode, deleted, hash); err != nil {
			tx.Rollback()
			return herror.Wrap(herror.Index, "insert node", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return herror.Wrap(herror.Index, "commit flush transaction", err)
	}
	idx.logger.Debug().Int("nodes", len(nodes)).Msg("closed backup set")
	return nil
}

// IsOpen reports whether a backup set is currently open for staging.
func (idx *Index) IsOpen() bool { return idx.stage.IsOpen() }

const selectColumns = `n.id, n.backup_set_id, n.parent_path_id, p.path, n.kind, n.mtime, n.size, n.mode, n.deleted, n.hash`

func scanNode(row interface{ Scan(...any) error }) (domain.Node, int64, error) {
	var (
		id, backupSet, parentID int64
		path, kind              string
		mtime, size             int64
		mode                    uint32
		deletedInt              int
		hash                    []byte
	)
	if err := row.Scan(&id, &backupSet, &parentID, &path, &kind, &mtime, &size, &mode, &deletedInt, &hash); err != nil {
		return domain.Node{}, 0, err
	}
	n := domain.Node{
		Path:      path,
		Kind:      domain.Kind(kind),
		Mtime:     mtime,
		Size:      size,
		Mode:      mode,
		Deleted:   deletedInt != 0,
		Hash:      hash,
		BackupSet: backupSet,
	}
	return n, id, nil
}

// Get returns the latest revision of path. If from is nil, it's the
// globally most recent row (highest node.id); otherwise the most recent
// revision whose owning backup set's at <= *from.
func (idx *Index) Get(ctx context.Context, path string, from *int64) (domain.Node, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	query := fmt.Sprintf(`
		SELECT %s FROM node n
		JOIN path p ON p.id = n.path_id
		JOIN backup_set bs ON bs.id = n.backup_set_id
		WHERE n.path_id = (SELECT id FROM path WHERE path = ?)
	`, selectColumns)
	args := []any{path}
	if from != nil {
		query += " AND bs.at <= ?"
		args = append(args, *from)
	}
	query += " ORDER BY n.id DESC LIMIT 1"

	row := idx.db.QueryRowContext(ctx, query, args...)
	n, _, err := scanNode(row)
	if err == sql.ErrNoRows {
		return domain.Node{}, false, nil
	}
	if err != nil {
		return domain.Node{}, false, herror.Wrap(herror.Index, "get", err)
	}
	return n, true, nil
}

// List returns the latest revision of every direct child of parent,
// ordered by path ascending, satisfying the from constraint if given.
func (idx *Index) List(ctx context.Context, parent string, from *int64) ([]domain.Node, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var parentID int64
	err := idx.db.QueryRowContext(ctx, `SELECT id FROM path WHERE path = ?`, parent).Scan(&parentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, herror.Wrap(herror.Index, "resolve parent", err)
	}

	fromClause := ""
	args := []any{parentID}
	if from != nil {
		fromClause = "AND bs2.at <= ?"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM node n
		JOIN path p ON p.id = n.path_id
		JOIN backup_set bs ON bs.id = n.backup_set_id
		WHERE n.parent_path_id = ?
		AND n.id = (
			SELECT n2.id FROM node n2
			JOIN backup_set bs2 ON bs2.id = n2.backup_set_id
			WHERE n2.path_id = n.path_id %s
			ORDER BY n2.id DESC LIMIT 1
		)
		ORDER BY p.path ASC
	`, selectColumns, fromClause)
	if from != nil {
		args = append(args, *from)
	}

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, herror.Wrap(herror.Index, "list", err)
	}
	defer rows.Close()

	var out []domain.Node
	for rows.Next() {
		n, _, err := scanNode(rows)
		if err != nil {
			return nil, herror.Wrap(herror.Index, "scan list row", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// VisitAllHashable streams every node revision with a non-null hash whose
// path contains filter (or all, if filter is empty), ordered by
// (path, backup_set_id ASC), invoking fn for each. Aborts on fn error.
func (idx *Index) VisitAllHashable(ctx context.Context, filter string, fn func(domain.Node) error) error {
	idx.mu.Lock()
	rows, err := idx.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM node n
		JOIN path p ON p.id = n.path_id
		WHERE n.hash IS NOT NULL AND p.path LIKE '%%' || ? || '%%'
		ORDER BY p.path ASC, n.backup_set_id ASC
	`, selectColumns), filter)
	idx.mu.Unlock()
	if err != nil {
		return herror.Wrap(herror.Index, "visit hashable", err)
	}
	defer rows.Close()

	for rows.Next() {
		n, _, err := scanNode(rows)
		if err != nil {
			return herror.Wrap(herror.Index, "scan hashable row", err)
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return rows.Err()
}

// DumpRecord is one row of the debug enumeration.
type DumpRecord struct {
	Node domain.Node
	ID   int64
}

// Dump enumerates every node revision in (path, node.id ASC) order.
func (idx *Index) Dump(ctx context.Context) ([]DumpRecord, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rows, err := idx.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM node n
		JOIN path p ON p.id = n.path_id
		ORDER BY p.path ASC, n.id ASC
	`, selectColumns))
	if err != nil {
		return nil, herror.Wrap(herror.Index, "dump", err)
	}
	defer rows.Close()

	var out []DumpRecord
	for rows.Next() {
		n, id, err := scanNode(rows)
		if err != nil {
			return nil, herror.Wrap(herror.Index, "scan dump row", err)
		}
		out = append(out, DumpRecord{Node: n, ID: id})
	}
	return out, rows.Err()
}

// Now returns the current wall-clock time as Unix seconds; the engine's
// run loop uses it for backup-set timestamps.
func Now() int64 { return time.Now().Unix() }
