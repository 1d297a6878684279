package index

// schema is the durable, ordered store of node revisions. It is
// deliberately plain relational SQL — modernc.org/sqlite gives us a
// pure-Go, cgo-free engine for it — so the path/node/backup_set tables
// below are the literal schema, not an abstraction over it.
//
// The path table is seeded with id=1, path='' representing the backup
// root, so every node's parent_path_id always references a real row —
// there is no NULL special case for "root".
const schema = `
CREATE TABLE IF NOT EXISTS path (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS backup_set (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS node (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	backup_set_id   INTEGER NOT NULL REFERENCES backup_set(id),
	parent_path_id  INTEGER NOT NULL REFERENCES path(id),
	path_id         INTEGER NOT NULL REFERENCES path(id),
	kind            TEXT NOT NULL,
	mtime           INTEGER NOT NULL,
	size            INTEGER NOT NULL,
	mode            INTEGER NOT NULL,
	deleted         INTEGER NOT NULL,
	hash            BLOB
);

CREATE INDEX IF NOT EXISTS idx_path_path ON path(path);
CREATE INDEX IF NOT EXISTS idx_node_path_id ON node(path_id);
CREATE INDEX IF NOT EXISTS idx_node_parent_path_id ON node(parent_path_id);
CREATE INDEX IF NOT EXISTS idx_node_backup_set_id ON node(backup_set_id);

INSERT OR IGNORE INTO path (id, path) VALUES (1, '');
`
