// Package tracker is the typed client for the issue tracker: the
// authoritative identifier space (PROJ-NNN) that every other source
// reconciles against.
package tracker

import "time"

// ProjectSummary is one project as listed by the tracker.
type ProjectSummary struct {
	InternalID string `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	GitURL     string `json:"gitUrl,omitempty"`
}

// Issue is one issue as returned by the tracker.
type Issue struct {
	InternalID  string    `json:"id"`
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListIssuesOptions narrows ListIssues to issues touched since a point in
// time (§4.3). The orchestrator passes no Since and fetches every issue on
// each pass.
type ListIssuesOptions struct {
	Since *time.Time
}
