// Package conflict implements the status conflict resolution rules of
// §4.10: a freshness gate, a tracker-authoritative window, last-writer-wins
// as the fallback, and anti-oscillation suppression against the
// immediately preceding pass.
package conflict

import "time"

// Source identifies which of the three systems reported an observation.
type Source string

const (
	SourceTracker Source = "tracker"
	SourceBoard   Source = "board"
	SourceLocal   Source = "local"
)

// Observation is one source's reported status for an entity.
type Observation struct {
	Source     Source
	Status     string
	ModifiedAt time.Time
}

// Outcome is the conflict resolver's decision for one entity on one pass.
type Outcome struct {
	// Status is the resolved status to write, or "" when Suppressed is
	// true (nothing should be written).
	Status     string
	Suppressed bool
	Reason     string // "freshness-gate" | "tracker-authoritative" | "last-writer-wins" | "flap-suppressed" | "no-conflict"
}

// Config bounds the thresholds §4.10 names as defaults.
type Config struct {
	// BoardFreshnessThreshold: a board modified_at older than this is
	// treated as untrustworthy (default 24h).
	BoardFreshnessThreshold time.Duration
	// AuthoritativeWindow: when both sources report changes within this
	// window of each other, the tracker wins outright (default 30s).
	AuthoritativeWindow time.Duration
}

// DefaultConfig matches §4.10's stated defaults.
func DefaultConfig() Config {
	return Config{
		BoardFreshnessThreshold: 24 * time.Hour,
		AuthoritativeWindow:     30 * time.Second,
	}
}

// PriorPass records the direction the immediately preceding pass moved an
// entity, so Resolve can detect and suppress a flap (§4.10.4).
type PriorPass struct {
	FromStatus string
	ToStatus   string
}

// Resolve applies the ordered rules of §4.10 to a tracker observation and a
// board observation for the same entity, given the status last recorded in
// the State Store and the outcome of the immediately preceding pass.
func Resolve(cfg Config, now time.Time, tracker, board Observation, lastRecorded string, prior *PriorPass) Outcome {
	if tracker.Status == board.Status {
		return Outcome{Status: tracker.Status, Reason: "no-conflict"}
	}

	// Rule 1: freshness gate on the board timestamp.
	boardStale := now.Sub(board.ModifiedAt) > cfg.BoardFreshnessThreshold ||
		(!tracker.ModifiedAt.IsZero() && board.ModifiedAt.Before(tracker.ModifiedAt.Add(-cfg.BoardFreshnessThreshold)))
	if boardStale {
		return finalize(cfg, tracker.Status, "freshness-gate", lastRecorded, prior)
	}

	// Rule 2: tracker is authoritative when both sources changed within
	// the authoritative window of each other.
	if !tracker.ModifiedAt.IsZero() && !board.ModifiedAt.IsZero() {
		delta := tracker.ModifiedAt.Sub(board.ModifiedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= cfg.AuthoritativeWindow {
			return finalize(cfg, tracker.Status, "tracker-authoritative", lastRecorded, prior)
		}
	}

	// Rule 3: last-writer-wins, ties go to the tracker.
	winner := tracker
	if board.ModifiedAt.After(tracker.ModifiedAt) {
		winner = board
	}
	return finalize(cfg, winner.Status, "last-writer-wins", lastRecorded, prior)
}

// finalize applies rule 4, anti-oscillation, to a candidate resolution.
func finalize(_ Config, candidate, reason, lastRecorded string, prior *PriorPass) Outcome {
	if prior != nil && candidate == prior.FromStatus && lastRecorded == prior.ToStatus && prior.FromStatus != prior.ToStatus {
		return Outcome{Suppressed: true, Reason: "flap-suppressed"}
	}
	return Outcome{Status: candidate, Reason: reason}
}
