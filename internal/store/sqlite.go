package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection, single-writer, WAL mode.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates the State Store at the given path (§6.2: default
// logs/sync-state.db), enabling WAL and foreign keys, then runs migrations.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newErr(KindSchema, "open", fmt.Errorf("create store directory: %w", err))
		}
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, newErr(KindSchema, "open", err)
	}

	// Single writer: cap the pool so sqlite's own locking is the only
	// serialization point we need (§5 "single process owns mutation").
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, newErr(KindSchema, "open", fmt.Errorf("enable WAL: %w", err))
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		sqlDB.Close()
		return nil, newErr(KindSchema, "open", fmt.Errorf("enable foreign keys: %w", err))
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		sqlDB.Close()
		return nil, newErr(KindSchema, "open", fmt.Errorf("set busy_timeout: %w", err))
	}

	d := &DB{DB: sqlDB, path: dbPath}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate() error {
	if _, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return newErr(KindSchema, "migrate", fmt.Errorf("create migrations table: %w", err))
	}

	var version int
	if err := d.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return newErr(KindSchema, "migrate", fmt.Errorf("read migration version: %w", err))
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration1Projects},
		{2, migration2Issues},
		{3, migration3SyncRuns},
		{4, migration4AgentBindings},
		{5, migration5BlockHashes},
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := d.Exec(m.sql); err != nil {
			return newErr(KindSchema, "migrate", fmt.Errorf("migration %d: %w", m.version, err))
		}
		if _, err := d.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return newErr(KindSchema, "migrate", fmt.Errorf("record migration %d: %w", m.version, err))
		}
	}
	return nil
}

const migration1Projects = `
CREATE TABLE IF NOT EXISTS projects (
	identifier TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	tracker_internal_id TEXT,
	board_internal_id TEXT,
	filesystem_path TEXT,
	git_url TEXT,
	description_hash TEXT,
	last_sync_at DATETIME,
	issue_count INTEGER DEFAULT 0,
	state TEXT NOT NULL DEFAULT 'active',
	empty_since DATETIME
);
`

const migration2Issues = `
CREATE TABLE IF NOT EXISTS issues (
	identifier TEXT PRIMARY KEY,
	project_identifier TEXT NOT NULL REFERENCES projects(identifier) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL,
	priority TEXT,
	tracker_internal_id TEXT,
	board_task_id TEXT,
	local_store_id TEXT,
	tracker_status TEXT,
	board_status TEXT,
	local_status TEXT,
	tracker_modified_at DATETIME,
	board_modified_at DATETIME,
	local_modified_at DATETIME,
	description_hash TEXT,
	updated_at DATETIME NOT NULL,
	last_direction TEXT
);
CREATE INDEX IF NOT EXISTS idx_issues_project ON issues(project_identifier);
CREATE INDEX IF NOT EXISTS idx_issues_project_status ON issues(project_identifier, status);
`

const migration3SyncRuns = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at DATETIME NOT NULL,
	completed_at DATETIME,
	projects_processed INTEGER DEFAULT 0,
	projects_failed INTEGER DEFAULT 0,
	issues_synced INTEGER DEFAULT 0,
	errors_json TEXT,
	duration_ms INTEGER DEFAULT 0,
	divergence_json TEXT
);
`

const migration4AgentBindings = `
CREATE TABLE IF NOT EXISTS agent_bindings (
	project_identifier TEXT PRIMARY KEY REFERENCES projects(identifier) ON DELETE CASCADE,
	agent_id TEXT NOT NULL,
	folder_id TEXT,
	source_id TEXT,
	agent_last_sync_at DATETIME
);
`

const migration5BlockHashes = `
CREATE TABLE IF NOT EXISTS memory_block_hashes (
	project_identifier TEXT NOT NULL REFERENCES projects(identifier) ON DELETE CASCADE,
	label TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	PRIMARY KEY (project_identifier, label)
);
`

// isBusyErr reports whether err looks like a sqlite "database is locked"
// condition, the only case the core is allowed to retry (§4.1).
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
