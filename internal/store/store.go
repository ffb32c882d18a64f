package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store is the idempotent-upsert API onto the embedded database. Every
// mutation method here is the only path into the database — no caller
// issues raw SQL.
type Store struct {
	db *DB
}

// NewStore wraps an opened DB.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a single transaction, committing on success and
// rolling back on error or panic. UpsertAgentBinding uses it; the other
// upserts, including the orchestrator's per-issue writes, each commit on
// their own outside any shared transaction.
func (s *Store) InTx(fn func(*sql.Tx) error) (err error) {
	tx, txErr := s.db.Begin()
	if txErr != nil {
		if isBusyErr(txErr) {
			return newErr(KindBusy, "InTx", txErr)
		}
		return newErr(KindSchema, "InTx", txErr)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		if isBusyErr(err) {
			return newErr(KindBusy, "InTx", err)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		if isBusyErr(err) {
			return newErr(KindBusy, "InTx", err)
		}
		return newErr(KindSchema, "InTx", err)
	}
	return nil
}

// --- Projects ---

// UpsertProject idempotently creates or updates a Project row by identifier.
func (s *Store) UpsertProject(p Project) error {
	_, err := s.db.Exec(`
		INSERT INTO projects (identifier, name, tracker_internal_id, board_internal_id,
			filesystem_path, git_url, description_hash, last_sync_at, issue_count, state, empty_since)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			name=excluded.name,
			tracker_internal_id=CASE WHEN excluded.tracker_internal_id != '' THEN excluded.tracker_internal_id ELSE projects.tracker_internal_id END,
			board_internal_id=CASE WHEN excluded.board_internal_id != '' THEN excluded.board_internal_id ELSE projects.board_internal_id END,
			filesystem_path=CASE WHEN excluded.filesystem_path != '' THEN excluded.filesystem_path ELSE projects.filesystem_path END,
			git_url=CASE WHEN excluded.git_url != '' THEN excluded.git_url ELSE projects.git_url END,
			description_hash=excluded.description_hash,
			last_sync_at=excluded.last_sync_at,
			issue_count=excluded.issue_count,
			state=excluded.state,
			empty_since=excluded.empty_since
	`, p.Identifier, p.Name, p.TrackerInternalID, p.BoardInternalID,
		p.FilesystemPath, p.GitURL, p.DescriptionHash, nullTime(p.LastSyncAt), p.IssueCount, string(p.State), nullTime(p.EmptySince))
	if err != nil {
		return wrapExec("UpsertProject", err)
	}
	return nil
}

// GetProject returns a project by identifier.
func (s *Store) GetProject(identifier string) (Project, error) {
	row := s.db.QueryRow(`
		SELECT identifier, name, tracker_internal_id, board_internal_id, filesystem_path,
			git_url, description_hash, last_sync_at, issue_count, state, empty_since
		FROM projects WHERE identifier = ?
	`, identifier)
	return scanProject(row)
}

// ListProjects returns every known project.
func (s *Store) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`
		SELECT identifier, name, tracker_internal_id, board_internal_id, filesystem_path,
			git_url, description_hash, last_sync_at, issue_count, state, empty_since
		FROM projects ORDER BY identifier
	`)
	if err != nil {
		return nil, wrapExec("ListProjects", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProjectsNeedingSync returns projects whose cache has expired: either
// `active` projects whose last_sync_at is older than interval, or `empty`
// projects whose empty_since is older than emptyTTL (§4.1, §3.3).
func (s *Store) ProjectsNeedingSync(interval, emptyTTL time.Duration) ([]Project, error) {
	now := time.Now()
	activeCutoff := now.Add(-interval)
	emptyCutoff := now.Add(-emptyTTL)

	rows, err := s.db.Query(`
		SELECT identifier, name, tracker_internal_id, board_internal_id, filesystem_path,
			git_url, description_hash, last_sync_at, issue_count, state, empty_since
		FROM projects
		WHERE (state = 'active' AND (last_sync_at IS NULL OR last_sync_at < ?))
		   OR (state = 'empty' AND (empty_since IS NULL OR empty_since < ?))
		ORDER BY identifier
	`, activeCutoff, emptyCutoff)
	if err != nil {
		return nil, wrapExec("ProjectsNeedingSync", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProjectsDivergingSince returns active projects whose last sync was before
// the cutoff, used by the periodic full-reconciliation pass (§4.13).
func (s *Store) ProjectsDivergingSince(d time.Duration) ([]Project, error) {
	cutoff := time.Now().Add(-d)
	rows, err := s.db.Query(`
		SELECT identifier, name, tracker_internal_id, board_internal_id, filesystem_path,
			git_url, description_hash, last_sync_at, issue_count, state, empty_since
		FROM projects WHERE state = 'active' AND (last_sync_at IS NULL OR last_sync_at < ?)
		ORDER BY identifier
	`, cutoff)
	if err != nil {
		return nil, wrapExec("ProjectsDivergingSince", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project and (via FK cascade) its issues and
// binding, used when merging a rename collision's duplicate row (§3.2).
func (s *Store) DeleteProject(identifier string) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE identifier = ?`, identifier)
	if err != nil {
		return wrapExec("DeleteProject", err)
	}
	return nil
}

// --- Issues ---

// UpsertIssue idempotently creates or updates an Issue row by identifier.
// Binding IDs already present on the existing row are preserved when the
// incoming value is empty (§3.2: "binding IDs are filled in in place").
func (s *Store) UpsertIssue(i Issue) error {
	i.UpdatedAt = time.Now()
	_, err := s.db.Exec(`
		INSERT INTO issues (identifier, project_identifier, title, description, status, priority,
			tracker_internal_id, board_task_id, local_store_id,
			tracker_status, board_status, local_status,
			tracker_modified_at, board_modified_at, local_modified_at,
			description_hash, updated_at, last_direction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			title=excluded.title,
			description=excluded.description,
			status=excluded.status,
			priority=excluded.priority,
			tracker_internal_id=CASE WHEN excluded.tracker_internal_id != '' THEN excluded.tracker_internal_id ELSE issues.tracker_internal_id END,
			board_task_id=CASE WHEN excluded.board_task_id != '' THEN excluded.board_task_id ELSE issues.board_task_id END,
			local_store_id=CASE WHEN excluded.local_store_id != '' THEN excluded.local_store_id ELSE issues.local_store_id END,
			tracker_status=excluded.tracker_status,
			board_status=excluded.board_status,
			local_status=excluded.local_status,
			tracker_modified_at=excluded.tracker_modified_at,
			board_modified_at=excluded.board_modified_at,
			local_modified_at=excluded.local_modified_at,
			description_hash=excluded.description_hash,
			updated_at=excluded.updated_at,
			last_direction=excluded.last_direction
	`, i.Identifier, i.ProjectIdentifier, i.Title, i.Description, i.Status, i.Priority,
		i.TrackerInternalID, i.BoardTaskID, i.LocalStoreID,
		i.TrackerStatus, i.BoardStatus, i.LocalStatus,
		nullTime(i.TrackerModifiedAt), nullTime(i.BoardModifiedAt), nullTime(i.LocalModifiedAt),
		i.DescriptionHash, i.UpdatedAt, i.LastDirection)
	if err != nil {
		return wrapExec("UpsertIssue", err)
	}
	return nil
}

// GetIssue returns an issue by identifier.
func (s *Store) GetIssue(identifier string) (Issue, error) {
	row := s.db.QueryRow(issueSelect+` WHERE identifier = ?`, identifier)
	return scanIssue(row)
}

// FindIssueByTitle looks up an issue by (project, normalized title), used
// by the Board→Tracker fallback when the footer identifier is missing
// (§4.9 Phase 2).
func (s *Store) FindIssueByTitle(projectIdentifier, title string) (Issue, error) {
	row := s.db.QueryRow(issueSelect+` WHERE project_identifier = ? AND lower(title) = lower(?)`, projectIdentifier, title)
	return scanIssue(row)
}

// ListIssuesByProject returns every issue for a project.
func (s *Store) ListIssuesByProject(projectIdentifier string) ([]Issue, error) {
	rows, err := s.db.Query(issueSelect+` WHERE project_identifier = ? ORDER BY identifier`, projectIdentifier)
	if err != nil {
		return nil, wrapExec("ListIssuesByProject", err)
	}
	defer rows.Close()
	return scanIssues(rows)
}

// ListIssuesByProjectStatus returns issues for a project filtered by
// canonical status.
func (s *Store) ListIssuesByProjectStatus(projectIdentifier, status string) ([]Issue, error) {
	rows, err := s.db.Query(issueSelect+` WHERE project_identifier = ? AND status = ? ORDER BY identifier`, projectIdentifier, status)
	if err != nil {
		return nil, wrapExec("ListIssuesByProjectStatus", err)
	}
	defer rows.Close()
	return scanIssues(rows)
}

// ListIssueIdentifiers returns every known identifier for a project, used
// to detect tracker-side deletions (§2.3 of SPEC_FULL).
func (s *Store) ListIssueIdentifiers(projectIdentifier string) ([]string, error) {
	rows, err := s.db.Query(`SELECT identifier FROM issues WHERE project_identifier = ?`, projectIdentifier)
	if err != nil {
		return nil, wrapExec("ListIssueIdentifiers", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapExec("ListIssueIdentifiers", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteIssue removes an issue row entirely (tracker-authoritative delete,
// §3.3).
func (s *Store) DeleteIssue(identifier string) error {
	_, err := s.db.Exec(`DELETE FROM issues WHERE identifier = ?`, identifier)
	if err != nil {
		return wrapExec("DeleteIssue", err)
	}
	return nil
}

const issueSelect = `
	SELECT identifier, project_identifier, title, description, status, priority,
		tracker_internal_id, board_task_id, local_store_id,
		tracker_status, board_status, local_status,
		tracker_modified_at, board_modified_at, local_modified_at,
		description_hash, updated_at, last_direction
	FROM issues
`

// --- Agent bindings ---

// UpsertAgentBinding idempotently creates or updates a project's agent
// binding, including its per-block content hashes.
func (s *Store) UpsertAgentBinding(b AgentBinding) error {
	return s.InTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO agent_bindings (project_identifier, agent_id, folder_id, source_id, agent_last_sync_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(project_identifier) DO UPDATE SET
				agent_id=excluded.agent_id,
				folder_id=excluded.folder_id,
				source_id=excluded.source_id,
				agent_last_sync_at=excluded.agent_last_sync_at
		`, b.ProjectIdentifier, b.AgentID, b.FolderID, b.SourceID, nullTime(b.AgentLastSyncAt))
		if err != nil {
			return fmt.Errorf("upsert agent binding: %w", err)
		}

		for label, hash := range b.BlockHashes {
			if _, err := tx.Exec(`
				INSERT INTO memory_block_hashes (project_identifier, label, content_hash)
				VALUES (?, ?, ?)
				ON CONFLICT(project_identifier, label) DO UPDATE SET content_hash=excluded.content_hash
			`, b.ProjectIdentifier, label, hash); err != nil {
				return fmt.Errorf("upsert block hash %s: %w", label, err)
			}
		}
		return nil
	})
}

// GetAgentBinding returns the agent binding for a project, including block
// hashes, or store.KindNotFound if the project has never been bound.
func (s *Store) GetAgentBinding(projectIdentifier string) (AgentBinding, error) {
	row := s.db.QueryRow(`
		SELECT project_identifier, agent_id, folder_id, source_id, agent_last_sync_at
		FROM agent_bindings WHERE project_identifier = ?
	`, projectIdentifier)

	var b AgentBinding
	var lastSync sql.NullTime
	if err := row.Scan(&b.ProjectIdentifier, &b.AgentID, &b.FolderID, &b.SourceID, &lastSync); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AgentBinding{}, newErr(KindNotFound, "GetAgentBinding", err)
		}
		return AgentBinding{}, wrapExec("GetAgentBinding", err)
	}
	if lastSync.Valid {
		t := lastSync.Time
		b.AgentLastSyncAt = &t
	}

	rows, err := s.db.Query(`SELECT label, content_hash FROM memory_block_hashes WHERE project_identifier = ?`, projectIdentifier)
	if err != nil {
		return AgentBinding{}, wrapExec("GetAgentBinding", err)
	}
	defer rows.Close()

	b.BlockHashes = make(map[string]string)
	for rows.Next() {
		var label, hash string
		if err := rows.Scan(&label, &hash); err != nil {
			return AgentBinding{}, wrapExec("GetAgentBinding", err)
		}
		b.BlockHashes[label] = hash
	}
	return b, rows.Err()
}

// DeleteAgentBinding removes a project's binding, used when a bound agent
// turns out to be a sleep-time agent (§4.8 sleep-time safety).
func (s *Store) DeleteAgentBinding(projectIdentifier string) error {
	_, err := s.db.Exec(`DELETE FROM agent_bindings WHERE project_identifier = ?`, projectIdentifier)
	if err != nil {
		return wrapExec("DeleteAgentBinding", err)
	}
	return nil
}

// --- Sync runs ---

// InsertSyncRun appends a new sync run record and returns its ID.
func (s *Store) InsertSyncRun(r SyncRun) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO sync_runs (started_at, completed_at, projects_processed, projects_failed,
			issues_synced, errors_json, duration_ms, divergence_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.StartedAt, nullTime(r.CompletedAt), r.ProjectsProcessed, r.ProjectsFailed,
		r.IssuesSynced, r.ErrorsJSON, r.DurationMS, r.DivergenceJSON)
	if err != nil {
		return 0, wrapExec("InsertSyncRun", err)
	}
	return res.LastInsertId()
}

// CompleteSyncRun finalizes an in-progress run.
func (s *Store) CompleteSyncRun(id int64, r SyncRun) error {
	_, err := s.db.Exec(`
		UPDATE sync_runs SET completed_at=?, projects_processed=?, projects_failed=?,
			issues_synced=?, errors_json=?, duration_ms=?, divergence_json=?
		WHERE id = ?
	`, nullTime(r.CompletedAt), r.ProjectsProcessed, r.ProjectsFailed,
		r.IssuesSynced, r.ErrorsJSON, r.DurationMS, r.DivergenceJSON, id)
	if err != nil {
		return wrapExec("CompleteSyncRun", err)
	}
	return nil
}

// RecentSyncRuns returns the last n sync runs, most recent first.
func (s *Store) RecentSyncRuns(n int) ([]SyncRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, completed_at, projects_processed, projects_failed,
			issues_synced, errors_json, duration_ms, divergence_json
		FROM sync_runs ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, wrapExec("RecentSyncRuns", err)
	}
	defer rows.Close()

	var out []SyncRun
	for rows.Next() {
		var r SyncRun
		var completed sql.NullTime
		var errorsJSON, divJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &completed, &r.ProjectsProcessed, &r.ProjectsFailed,
			&r.IssuesSynced, &errorsJSON, &r.DurationMS, &divJSON); err != nil {
			return nil, wrapExec("RecentSyncRuns", err)
		}
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		r.ErrorsJSON = errorsJSON.String
		r.DivergenceJSON = divJSON.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var p Project
	var lastSync, emptySince sql.NullTime
	err := row.Scan(&p.Identifier, &p.Name, &p.TrackerInternalID, &p.BoardInternalID,
		&p.FilesystemPath, &p.GitURL, &p.DescriptionHash, &lastSync, &p.IssueCount,
		(*string)(&p.State), &emptySince)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, newErr(KindNotFound, "GetProject", err)
		}
		return Project{}, wrapExec("scanProject", err)
	}
	if lastSync.Valid {
		t := lastSync.Time
		p.LastSyncAt = &t
	}
	if emptySince.Valid {
		t := emptySince.Time
		p.EmptySince = &t
	}
	return p, nil
}

func scanProjectRows(rows *sql.Rows) (Project, error) {
	return scanProject(rows)
}

func scanIssue(row rowScanner) (Issue, error) {
	var i Issue
	var trackerMod, boardMod, localMod sql.NullTime
	err := row.Scan(&i.Identifier, &i.ProjectIdentifier, &i.Title, &i.Description, &i.Status, &i.Priority,
		&i.TrackerInternalID, &i.BoardTaskID, &i.LocalStoreID,
		&i.TrackerStatus, &i.BoardStatus, &i.LocalStatus,
		&trackerMod, &boardMod, &localMod,
		&i.DescriptionHash, &i.UpdatedAt, &i.LastDirection)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Issue{}, newErr(KindNotFound, "GetIssue", err)
		}
		return Issue{}, wrapExec("scanIssue", err)
	}
	if trackerMod.Valid {
		t := trackerMod.Time
		i.TrackerModifiedAt = &t
	}
	if boardMod.Valid {
		t := boardMod.Time
		i.BoardModifiedAt = &t
	}
	if localMod.Valid {
		t := localMod.Time
		i.LocalModifiedAt = &t
	}
	return i, nil
}

func scanIssues(rows *sql.Rows) ([]Issue, error) {
	var out []Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func wrapExec(op string, err error) error {
	if isBusyErr(err) {
		return newErr(KindBusy, op, err)
	}
	return newErr(KindSchema, op, err)
}
