// Package statusmap provides the pure, case-insensitive, round-trip-stable
// mapping between the board's five-state lattice and the tracker's and
// local store's own status vocabularies.
package statusmap

import (
	"golang.org/x/text/cases"

	"github.com/triway/triway/internal/board"
)

var foldCase = cases.Fold()

// trackerToBoard maps every tracker status this system understands onto one
// of the board's five lattice states. Unrecognized tracker statuses fall
// through to StatusTodo via ToBoard's default case rather than erroring,
// since a tracker is free to add statuses this system has no opinion on.
var trackerToBoard = map[string]board.Status{
	"backlog":     board.StatusTodo,
	"todo":        board.StatusTodo,
	"in progress": board.StatusInProgress,
	"in review":   board.StatusInReview,
	"done":        board.StatusDone,
	"completed":   board.StatusDone,
	"cancelled":   board.StatusCancelled,
	"canceled":    board.StatusCancelled,
}

// boardToTracker is trackerToBoard's canonical inverse: one tracker label
// per board status, chosen so ToTracker(ToBoard(x)) == ToBoard(x)'s own
// canonical label (round-trip stability holds on the board's five values,
// which is the direction the conflict resolver actually needs).
var boardToTracker = map[board.Status]string{
	board.StatusTodo:       "Backlog",
	board.StatusInProgress: "In Progress",
	board.StatusInReview:   "In Review",
	board.StatusDone:       "Done",
	board.StatusCancelled:  "Cancelled",
}

// localToBoard maps the local issue store's own status vocabulary onto the
// board lattice.
var localToBoard = map[string]board.Status{
	"open":       board.StatusTodo,
	"in_progress": board.StatusInProgress,
	"in_review":  board.StatusInReview,
	"closed":     board.StatusDone,
	"cancelled":  board.StatusCancelled,
}

var boardToLocal = map[board.Status]string{
	board.StatusTodo:       "open",
	board.StatusInProgress: "in_progress",
	board.StatusInReview:   "in_review",
	board.StatusDone:       "closed",
	board.StatusCancelled:  "cancelled",
}

func fold(s string) string {
	return foldCase.String(s)
}

// ToBoard maps a tracker status onto the board lattice. Unrecognized
// statuses map to StatusTodo, the lattice's minimum element.
func ToBoard(trackerStatus string) board.Status {
	if v, ok := trackerToBoard[fold(trackerStatus)]; ok {
		return v
	}
	return board.StatusTodo
}

// ToTracker maps a board status onto its canonical tracker label.
func ToTracker(s board.Status) string {
	if v, ok := boardToTracker[s]; ok {
		return v
	}
	return boardToTracker[board.StatusTodo]
}

// LocalToBoard maps a local store status onto the board lattice.
func LocalToBoard(localStatus string) board.Status {
	if v, ok := localToBoard[fold(localStatus)]; ok {
		return v
	}
	return board.StatusTodo
}

// BoardToLocal maps a board status onto its canonical local store label.
func BoardToLocal(s board.Status) string {
	if v, ok := boardToLocal[s]; ok {
		return v
	}
	return boardToLocal[board.StatusTodo]
}
