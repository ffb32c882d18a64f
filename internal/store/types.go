// Package store provides the embedded relational State Store: projects,
// issues, sync-run history, and agent bindings, backed by modernc.org/sqlite
// in WAL mode with a single writer.
package store

import "time"

// Project is the canonical record for a project observed in any source.
type Project struct {
	Identifier        string     `json:"identifier"` // short UPPERCASE token, primary natural key
	Name              string     `json:"name"`
	TrackerInternalID string     `json:"trackerInternalId,omitempty"`
	BoardInternalID   string     `json:"boardInternalId,omitempty"`
	FilesystemPath    string     `json:"filesystemPath,omitempty"`
	GitURL            string     `json:"gitUrl,omitempty"`
	DescriptionHash   string     `json:"descriptionHash,omitempty"`
	LastSyncAt        *time.Time `json:"lastSyncAt,omitempty"`
	IssueCount        int        `json:"issueCount"`
	State             ProjectState `json:"state"`
	EmptySince        *time.Time `json:"emptySince,omitempty"`
}

// ProjectState is a Project's lifecycle stage (§3.3).
type ProjectState string

const (
	ProjectStateActive ProjectState = "active"
	ProjectStateEmpty  ProjectState = "empty"
)

// Issue is the canonical record for an issue, one row per identifier.
type Issue struct {
	Identifier        string `json:"identifier"` // PROJ-NNN, unique
	ProjectIdentifier string `json:"projectIdentifier"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Status            string `json:"status"` // canonical tracker-side label
	Priority          string `json:"priority,omitempty"`

	TrackerInternalID string `json:"trackerInternalId,omitempty"`
	BoardTaskID       string `json:"boardTaskId,omitempty"`
	LocalStoreID      string `json:"localStoreId,omitempty"`

	TrackerStatus string `json:"trackerStatus,omitempty"`
	BoardStatus   string `json:"boardStatus,omitempty"`
	LocalStatus   string `json:"localStatus,omitempty"`

	TrackerModifiedAt *time.Time `json:"trackerModifiedAt,omitempty"`
	BoardModifiedAt   *time.Time `json:"boardModifiedAt,omitempty"`
	LocalModifiedAt   *time.Time `json:"localModifiedAt,omitempty"`

	DescriptionHash string    `json:"descriptionHash,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// LastDirection records which way the most recent pass moved this
	// issue's status, so the next pass can detect a flap (§4.10.4).
	LastDirection string `json:"lastDirection,omitempty"`
}

// Bound reports whether the issue has been linked to all three sources.
func (i Issue) Bound() bool {
	return i.TrackerInternalID != "" && i.BoardTaskID != "" && i.LocalStoreID != ""
}

// AgentBinding is the per-project link to its Project Memory Agent (§3.1).
type AgentBinding struct {
	ProjectIdentifier string            `json:"projectIdentifier"`
	AgentID           string            `json:"agentId"`
	FolderID          string            `json:"folderId,omitempty"`
	SourceID          string            `json:"sourceId,omitempty"`
	AgentLastSyncAt   *time.Time        `json:"agentLastSyncAt,omitempty"`
	BlockHashes       map[string]string `json:"blockHashes,omitempty"` // label -> content hash
}

// SyncRun is one append-only record of a reconciliation sweep (§3.1).
type SyncRun struct {
	ID               int64      `json:"id"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	ProjectsProcessed int       `json:"projectsProcessed"`
	ProjectsFailed    int       `json:"projectsFailed"`
	IssuesSynced      int       `json:"issuesSynced"`
	ErrorsJSON        string     `json:"errorsJson,omitempty"` // map[project_identifier]string, serialized
	DurationMS        int64      `json:"durationMs"`
	DivergenceJSON    string     `json:"divergenceJson,omitempty"`
}
