// Package memoryblocks builds the canonical serialized value for each
// memory block label the Agent Lifecycle Manager writes to a project's
// agent: project, board_config, board_metrics, hotspots, backlog_summary,
// change_log, persona, human, scratchpad (§4.7). Every builder here is a
// pure function: same input struct, same output bytes, key order included,
// with no "now" timestamp baked in, so the manager can hash the result and
// skip the network call when nothing actually changed.
package memoryblocks

import (
	"encoding/json"
	"sort"
)

// Labels lists every canonical block label the lifecycle manager must keep
// in sync on a project's primary agent.
var Labels = []string{
	"project", "board_config", "board_metrics", "hotspots",
	"backlog_summary", "change_log", "persona", "human", "scratchpad",
}

// ProjectBlock is the "project" memory block's source data.
type ProjectBlock struct {
	Identifier string
	Name       string
	GitURL     string
	IssueCount int
}

// BuildProject renders the "project" block.
func BuildProject(p ProjectBlock) string {
	return canonicalJSON(map[string]any{
		"identifier":  p.Identifier,
		"name":        p.Name,
		"gitUrl":      p.GitURL,
		"issue_count": p.IssueCount,
	})
}

// BoardConfigBlock is the "board_config" block's source data: the board-side
// identity of the project and the status mapping currently in force, so the
// agent can explain board behavior without a separate tool call.
type BoardConfigBlock struct {
	BoardProjectID string
	StatusMapping  map[string]string // canonical tracker status -> board status
}

// BuildBoardConfig renders the "board_config" block, with the status
// mapping's keys emitted in sorted order so the same map hashes identically
// regardless of Go's randomized map iteration.
func BuildBoardConfig(b BoardConfigBlock) string {
	keys := make([]string, 0, len(b.StatusMapping))
	for k := range b.StatusMapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mapping := make([]map[string]string, 0, len(keys))
	for _, k := range keys {
		mapping = append(mapping, map[string]string{"tracker_status": k, "board_status": b.StatusMapping[k]})
	}
	return canonicalJSON(map[string]any{
		"board_project_id": b.BoardProjectID,
		"status_mapping":   mapping,
	})
}

// BoardMetrics is the "board_metrics" block's source data: a per-status
// issue count snapshot.
type BoardMetrics struct {
	TotalIssues    int
	CountsByStatus map[string]int // canonical status -> count
}

// BuildBoardMetrics renders the "board_metrics" block with counts emitted in
// status-sorted order.
func BuildBoardMetrics(m BoardMetrics) string {
	keys := make([]string, 0, len(m.CountsByStatus))
	for k := range m.CountsByStatus {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	counts := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		counts = append(counts, map[string]any{"status": k, "count": m.CountsByStatus[k]})
	}
	return canonicalJSON(map[string]any{
		"total_issues": m.TotalIssues,
		"counts":       counts,
	})
}

// HotspotEntry is one issue flagged as needing human attention: a suppressed
// flap, a stale board timestamp overridden, or similar conflict-resolution
// outcome from §4.10.
type HotspotEntry struct {
	Identifier string
	Reason     string
}

// BuildHotspots renders the "hotspots" block. Empty input renders a stable
// empty-list value, not an empty string, so a clean project still produces
// a hashable, cacheable block.
func BuildHotspots(entries []HotspotEntry) string {
	sorted := make([]HotspotEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Identifier != sorted[j].Identifier {
			return sorted[i].Identifier < sorted[j].Identifier
		}
		return sorted[i].Reason < sorted[j].Reason
	})

	rendered := make([]map[string]any, 0, len(sorted))
	for _, e := range sorted {
		rendered = append(rendered, map[string]any{"identifier": e.Identifier, "reason": e.Reason})
	}
	return canonicalJSON(map[string]any{"hotspots": rendered})
}

// BacklogItem is one issue's contribution to the "backlog_summary" block.
type BacklogItem struct {
	Identifier string
	Title      string
	Status     string
	Priority   string
}

// BuildBacklogSummary renders the "backlog_summary" block from a project's
// current issue set. Issues are sorted by identifier before serialization
// so two calls with the same set in different slice orders hash identically.
func BuildBacklogSummary(items []BacklogItem) string {
	sorted := make([]BacklogItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Identifier < sorted[j].Identifier })

	rendered := make([]map[string]any, 0, len(sorted))
	for _, i := range sorted {
		rendered = append(rendered, map[string]any{
			"identifier": i.Identifier,
			"title":      i.Title,
			"status":     i.Status,
			"priority":   i.Priority,
		})
	}
	return canonicalJSON(map[string]any{"backlog": rendered})
}

// ChangeLogEntry is one unresolved divergence surfaced in the "change_log"
// block: a field where sources currently disagree.
type ChangeLogEntry struct {
	Identifier string
	Field      string
	Sources    map[string]string // source name -> observed value
}

// BuildChangeLog renders the "change_log" block. Empty input renders a
// stable empty-list value rather than an empty string, so the first sync
// pass on a clean project still produces a hashable, cacheable block.
func BuildChangeLog(entries []ChangeLogEntry) string {
	sorted := make([]ChangeLogEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Identifier != sorted[j].Identifier {
			return sorted[i].Identifier < sorted[j].Identifier
		}
		return sorted[i].Field < sorted[j].Field
	})

	rendered := make([]map[string]any, 0, len(sorted))
	for _, e := range sorted {
		rendered = append(rendered, map[string]any{
			"identifier": e.Identifier,
			"field":      e.Field,
			"sources":    e.Sources,
		})
	}
	return canonicalJSON(map[string]any{"changes": rendered})
}

// PersonaBlock is the "persona" block's source data. The block is rendered
// from the project identifier and name alone and re-rendered every pass;
// nothing in it is read from the Control Agent.
type PersonaBlock struct {
	ProjectIdentifier string
	ProjectName       string
}

// BuildPersona renders the "persona" block.
func BuildPersona(p PersonaBlock) string {
	return canonicalJSON(map[string]any{
		"role":    "project memory agent",
		"project": p.ProjectIdentifier,
		"charter": "Track the state of " + p.ProjectName + " across the issue tracker, the board, and the local store; surface divergences, never invent status.",
	})
}

// HumanBlock is the "human" block's source data: the human-facing context a
// collaborator attaches to the project (owner, escalation path).
type HumanBlock struct {
	ProjectIdentifier string
	Owner             string
	Notes             string
}

// BuildHuman renders the "human" block.
func BuildHuman(h HumanBlock) string {
	return canonicalJSON(map[string]any{
		"project": h.ProjectIdentifier,
		"owner":   h.Owner,
		"notes":   h.Notes,
	})
}

// BuildScratchpad renders the "scratchpad" block's value: an empty working
// area. Unlike the other blocks it does not depend on project state, so it
// is the same constant on every pass; UpsertBlocks writes it through the
// same hash-suppressed upsert as every other block.
func BuildScratchpad() string {
	return canonicalJSON(map[string]any{"notes": []string{}})
}

// canonicalJSON marshals v with map keys sorted, which encoding/json does
// by default for map[string]any, giving every builder here a stable byte
// sequence for the same logical value.
func canonicalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Builders only ever receive plain structs and maps of strings and
		// ints; a marshal failure here means a builder was given a value
		// it was never designed for.
		panic("memoryblocks: unmarshalable value: " + err.Error())
	}
	return string(b)
}
