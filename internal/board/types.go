// Package board is the typed client for the kanban board: projects and
// tasks arranged on a five-state lattice (todo, inprogress, inreview, done,
// cancelled).
package board

import "time"

// Status is one of the board's five lattice states.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusInReview   Status = "inreview"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Project is a board-side project.
type Project struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

// Task is a board-side task, the board's analogue of a tracker issue.
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Identifier  string    `json:"identifier,omitempty"` // PROJ-NNN, when bound
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskUpdate is a full-replace write: the Board Client only ever PUTs whole
// task bodies, never PATCHes a subset of fields (§4.4/§6.4).
type TaskUpdate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// BulkUpdate pairs a task ID with the full-replace body to write to it.
type BulkUpdate struct {
	TaskID string
	Update TaskUpdate
}

// Event is one message delivered over the board's SSE stream.
type Event struct {
	Type   string `json:"type"` // "task.created" | "task.updated" | "task.deleted"
	TaskID string `json:"taskId"`
	Task   *Task  `json:"task,omitempty"`
}
