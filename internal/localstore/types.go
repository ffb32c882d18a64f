// Package localstore adapts the per-project git-committed JSONL issue file
// into the same shape the tracker and board clients expose, invoking the
// local store's own CLI as a subprocess for every mutation.
package localstore

import "time"

// Status is one of the local store's own status labels.
type Status string

// Issue is one line of a project's JSONL issue file.
type Issue struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier,omitempty"` // PROJ-NNN, when bound
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}
