// Package orchestrator runs one reconciliation sweep across every project:
// Phase 1 Tracker -> Board, Phase 2 Board -> Tracker, Phase 3 Tracker <->
// Local, Phase 4 Agent memory, each writing through the State Store inside
// a per-project mutex.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/triway/triway/internal/agentlifecycle"
	"github.com/triway/triway/internal/agentplatform"
	"github.com/triway/triway/internal/board"
	"github.com/triway/triway/internal/conflict"
	"github.com/triway/triway/internal/localstore"
	"github.com/triway/triway/internal/memoryblocks"
	"github.com/triway/triway/internal/projectlock"
	"github.com/triway/triway/internal/statusmap"
	"github.com/triway/triway/internal/store"
	"github.com/triway/triway/internal/tracker"
)

// descriptionFooterPrefix is the exact cross-reference footer format
// required by §6.4, used both to write it and to parse it back out of a
// board task's description when binding by fallback.
const descriptionFooterPrefix = "Huly Issue: "
const descriptionFooterAltPrefix = "Synced from Huly: "

// Config holds orchestrator behavior, mirroring the live-updatable subset
// of internal/config.Config plus the fixed pieces only the orchestrator
// itself needs.
type Config struct {
	MaxWorkers        int
	SkipEmptyProjects bool
	DryRun            bool
	ConflictConfig    conflict.Config

	AgentModel                string
	AgentSyncToolsFromControl bool
	AgentSyncToolsForce       bool
	AgentControlName          string
	AgentAttachRepoDocs       bool
}

// DefaultConfig matches §4.9/§5's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:        5,
		SkipEmptyProjects: true,
		ConflictConfig:    conflict.DefaultConfig(),
		AgentControlName:  "Control",
	}
}

// Metrics accumulates counts for one sync run, copied into a store.SyncRun
// on completion.
type Metrics struct {
	mu                sync.Mutex
	ProjectsProcessed int
	ProjectsFailed    int
	IssuesSynced      int
	Errors            map[string]string // project identifier -> error message
	Divergences       []string
}

func newMetrics() *Metrics {
	return &Metrics{Errors: make(map[string]string)}
}

func (m *Metrics) recordError(projectIdentifier string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProjectsFailed++
	m.Errors[projectIdentifier] = err.Error()
}

func (m *Metrics) recordSuccess(issuesSynced int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProjectsProcessed++
	m.IssuesSynced += issuesSynced
}

func (m *Metrics) recordDivergence(note string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Divergences = append(m.Divergences, note)
}

// Orchestrator wires every client and the State Store into one reconcile
// pass.
type Orchestrator struct {
	cfg Config

	st       *store.Store
	tracker  *tracker.Client
	board    *board.Client
	agents   *agentplatform.Client
	lifecycle *agentlifecycle.Manager
	locks    *projectlock.Map

	localFor func(projectIdentifier string) *localstore.Adapter

	log *slog.Logger
}

// New builds an Orchestrator. localFor resolves a project's Local-Store
// Adapter on demand, since each project has its own filesystem path.
func New(
	cfg Config,
	st *store.Store,
	trackerClient *tracker.Client,
	boardClient *board.Client,
	agentsClient *agentplatform.Client,
	lifecycle *agentlifecycle.Manager,
	locks *projectlock.Map,
	localFor func(projectIdentifier string) *localstore.Adapter,
	log *slog.Logger,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cfg: cfg, st: st, tracker: trackerClient, board: boardClient,
		agents: agentsClient, lifecycle: lifecycle, locks: locks,
		localFor: localFor, log: log,
	}
}

// Run executes one full reconciliation sweep across every tracker project
// and returns the completed metrics. Projects run with a bounded worker
// pool (cfg.MaxWorkers); one project's failure never aborts the run.
func (o *Orchestrator) Run(ctx context.Context) (*Metrics, error) {
	metrics := newMetrics()

	projects, err := o.tracker.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracker projects: %w", err)
	}

	// The Control Agent's tool list is the template every project agent
	// syncs against; it is resolved once per sync cycle rather than once
	// per project, matching §4.8's "periodically (every sync cycle when
	// enabled)" cadence.
	var controlAgent *agentplatform.Agent
	if o.lifecycle != nil && o.cfg.AgentSyncToolsFromControl {
		a, err := o.lifecycle.EnsureControlAgent(ctx, o.cfg.AgentControlName)
		if err != nil {
			o.log.Error("ensure control agent failed, skipping tool sync this cycle", "error", err)
		} else {
			controlAgent = &a
		}
	}

	sem := make(chan struct{}, max(1, o.cfg.MaxWorkers))
	var wg sync.WaitGroup

	for _, p := range projects {
		p := p
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			issuesSynced, err := projectlock.WithLockE(o.locks, p.Identifier, func() (int, error) {
				return o.runProject(ctx, p, metrics, controlAgent)
			})
			if err != nil {
				o.log.Error("project sync failed", "project", p.Identifier, "error", err)
				metrics.recordError(p.Identifier, err)
				return
			}
			metrics.recordSuccess(issuesSynced)
		}()
	}
	wg.Wait()
	return metrics, nil
}

func (o *Orchestrator) runProject(ctx context.Context, p tracker.ProjectSummary, metrics *Metrics, controlAgent *agentplatform.Agent) (int, error) {
	proj := store.Project{
		Identifier:        p.Identifier,
		Name:              p.Name,
		TrackerInternalID: p.InternalID,
		GitURL:            p.GitURL,
		State:             store.ProjectStateActive,
	}
	if err := o.st.UpsertProject(proj); err != nil {
		return 0, fmt.Errorf("upsert project: %w", err)
	}

	trackerIssues, err := o.tracker.ListIssues(ctx, p.Identifier, tracker.ListIssuesOptions{})
	if err != nil {
		return 0, fmt.Errorf("list tracker issues: %w", err)
	}

	// Deletion in the Issue Tracker is authoritative: anything the State
	// Store still knows about for this project but the tracker no longer
	// lists has been deleted upstream and cascades to board archival and
	// local-store closure (§3.3).
	if err := o.phaseDeletions(ctx, p.Identifier, trackerIssues); err != nil {
		return 0, fmt.Errorf("phase deletions: %w", err)
	}

	if o.cfg.SkipEmptyProjects && len(trackerIssues) == 0 {
		now := time.Now()
		_ = o.st.UpsertProject(store.Project{Identifier: p.Identifier, Name: p.Name, State: store.ProjectStateEmpty, EmptySince: &now})
		return 0, nil
	}

	boardProject, err := o.ensureBoardProject(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("ensure board project: %w", err)
	}

	synced := 0

	// Phase 1: Tracker -> Board.
	boardTasksByIdentifier, err := o.phase1TrackerToBoard(ctx, p.Identifier, boardProject.ID, trackerIssues, metrics)
	if err != nil {
		return synced, fmt.Errorf("phase1: %w", err)
	}
	synced += len(trackerIssues)

	// Phase 2: Board -> Tracker.
	hotspots, err := o.phase2BoardToTracker(ctx, p.Identifier, boardTasksByIdentifier, metrics)
	if err != nil {
		return synced, fmt.Errorf("phase2: %w", err)
	}

	// Phase 3: Tracker <-> Local.
	if err := o.phase3TrackerLocal(ctx, p.Identifier); err != nil {
		return synced, fmt.Errorf("phase3: %w", err)
	}

	// Phase 4: Agent.
	if err := o.phase4Agent(ctx, p.Identifier, p.Name, boardProject.ID, hotspots, controlAgent); err != nil {
		return synced, fmt.Errorf("phase4: %w", err)
	}

	return synced, nil
}

// phaseDeletions diffs the tracker's current identifier set against what the
// State Store still believes exists for a project and cascades any
// tracker-side deletion outward (§3.3). There is no dedicated webhook event
// for deletion, so this diff is the only way the cascade is ever noticed.
func (o *Orchestrator) phaseDeletions(ctx context.Context, projectIdentifier string, trackerIssues []tracker.Issue) error {
	known, err := o.st.ListIssueIdentifiers(projectIdentifier)
	if err != nil {
		return fmt.Errorf("list known issue identifiers: %w", err)
	}
	if len(known) == 0 {
		return nil
	}

	current, err := o.tracker.ListIssueIdentifiers(ctx, projectIdentifier)
	if err != nil {
		return fmt.Errorf("list tracker issue identifiers: %w", err)
	}
	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}

	for _, identifier := range known {
		if _, ok := currentSet[identifier]; ok {
			continue
		}
		if err := o.cascadeDelete(ctx, projectIdentifier, identifier); err != nil {
			return err
		}
	}
	return nil
}

// cascadeDelete archives the bound board task and closes the bound local
// issue before removing the issue from the State Store (§3.3). The board
// client has no separate archive verb, so deleting the task is how
// archival is expressed on that side (§4.4).
func (o *Orchestrator) cascadeDelete(ctx context.Context, projectIdentifier, identifier string) error {
	issue, err := o.st.GetIssue(identifier)
	if err != nil && !store.IsNotFound(err) {
		return fmt.Errorf("get issue %s for deletion cascade: %w", identifier, err)
	}

	if !o.cfg.DryRun && issue.BoardTaskID != "" {
		if err := o.board.DeleteTask(ctx, issue.BoardTaskID); err != nil {
			return fmt.Errorf("archive board task for deleted issue %s: %w", identifier, err)
		}
	}

	if !o.cfg.DryRun && issue.LocalStoreID != "" && o.localFor != nil {
		if adapter := o.localFor(projectIdentifier); adapter != nil {
			if err := adapter.CloseIssue(ctx, issue.LocalStoreID); err != nil {
				return fmt.Errorf("close local issue for deleted issue %s: %w", identifier, err)
			}
		}
	}

	if err := o.st.DeleteIssue(identifier); err != nil {
		return fmt.Errorf("delete issue %s from state store: %w", identifier, err)
	}
	o.log.Info("tracker deletion cascaded to board and local store", "project", projectIdentifier, "identifier", identifier)
	return nil
}

func (o *Orchestrator) ensureBoardProject(ctx context.Context, p tracker.ProjectSummary) (board.Project, error) {
	projects, err := o.board.ListProjects(ctx)
	if err != nil {
		return board.Project{}, err
	}
	for _, bp := range projects {
		if bp.Identifier == p.Identifier {
			return bp, nil
		}
	}
	if o.cfg.DryRun {
		return board.Project{ID: "dry-run", Identifier: p.Identifier, Name: p.Name}, nil
	}
	return o.board.CreateProject(ctx, board.Project{Identifier: p.Identifier, Name: p.Name})
}

func footer(identifier string) string {
	return descriptionFooterPrefix + identifier
}

func withFooter(description, identifier string) string {
	return strings.TrimRight(description, "\n") + "\n\n" + footer(identifier)
}

func identifierFromDescription(description string) string {
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		if id, ok := strings.CutPrefix(line, descriptionFooterPrefix); ok {
			return id
		}
		if id, ok := strings.CutPrefix(line, descriptionFooterAltPrefix); ok {
			return id
		}
	}
	return ""
}

// phase1TrackerToBoard creates or updates one board task per tracker issue
// and returns the resulting tasks keyed by tracker identifier.
func (o *Orchestrator) phase1TrackerToBoard(ctx context.Context, projectIdentifier, boardProjectID string, issues []tracker.Issue, metrics *Metrics) (map[string]board.Task, error) {
	existing, err := o.board.ListTasks(ctx, boardProjectID)
	if err != nil {
		return nil, err
	}
	byIdentifier := make(map[string]board.Task, len(existing))
	for _, t := range existing {
		id := t.Identifier
		if id == "" {
			id = identifierFromDescription(t.Description)
		}
		if id != "" {
			byIdentifier[id] = t
		}
	}

	for _, issue := range issues {
		existingIssue, err := o.st.GetIssue(issue.Identifier)
		lastBoardStatus := ""
		if err == nil {
			lastBoardStatus = existingIssue.BoardStatus
		}

		desiredBoardStatus := statusmap.ToBoard(issue.Status)
		task, bound := byIdentifier[issue.Identifier]

		if !bound {
			if o.cfg.DryRun {
				continue
			}
			created, err := o.board.CreateTask(ctx, boardProjectID, board.TaskUpdate{
				Title:       issue.Title,
				Description: withFooter(issue.Description, issue.Identifier),
				Status:      desiredBoardStatus,
			})
			if err != nil {
				return nil, fmt.Errorf("create board task for %s: %w", issue.Identifier, err)
			}
			byIdentifier[issue.Identifier] = created
			task = created
		} else if string(task.Status) != string(desiredBoardStatus) && string(desiredBoardStatus) != lastBoardStatus {
			if !o.cfg.DryRun {
				updated, err := o.board.UpdateTask(ctx, task.ID, board.TaskUpdate{
					Title:       issue.Title,
					Description: withFooter(issue.Description, issue.Identifier),
					Status:      desiredBoardStatus,
				})
				if err != nil {
					return nil, fmt.Errorf("update board task for %s: %w", issue.Identifier, err)
				}
				byIdentifier[issue.Identifier] = updated
				task = updated
			}
		}

		if err := o.st.UpsertIssue(store.Issue{
			Identifier:        issue.Identifier,
			ProjectIdentifier: projectIdentifier,
			Title:             issue.Title,
			Description:       issue.Description,
			Status:            issue.Status,
			TrackerInternalID: issue.InternalID,
			BoardTaskID:       task.ID,
			TrackerStatus:     issue.Status,
			BoardStatus:       string(desiredBoardStatus),
			TrackerModifiedAt: &issue.UpdatedAt,
			UpdatedAt:         time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("upsert issue %s: %w", issue.Identifier, err)
		}
	}

	return byIdentifier, nil
}

// phase2BoardToTracker reconciles board-side status changes back onto the
// tracker, resolving conflicts per §4.10 when both sides moved. It returns
// one hotspot per suppressed conflict, for the "hotspots" memory block
// Phase 4 writes.
func (o *Orchestrator) phase2BoardToTracker(ctx context.Context, projectIdentifier string, boardTasks map[string]board.Task, metrics *Metrics) ([]memoryblocks.HotspotEntry, error) {
	var hotspots []memoryblocks.HotspotEntry

	for identifier, task := range boardTasks {
		issue, err := o.st.GetIssue(identifier)
		if err != nil {
			continue // unbound task; phase 1 will bind it on the next tracker-side observation
		}

		boardMapped := statusmap.ToBoard(issue.TrackerStatus)
		if task.Status == boardMapped {
			continue
		}

		trackerObs := conflict.Observation{Source: conflict.SourceTracker, Status: issue.TrackerStatus}
		if issue.TrackerModifiedAt != nil {
			trackerObs.ModifiedAt = *issue.TrackerModifiedAt
		}
		boardObs := conflict.Observation{Source: conflict.SourceBoard, Status: statusmap.ToTracker(task.Status), ModifiedAt: task.UpdatedAt}

		var prior *conflict.PriorPass
		if issue.LastDirection != "" {
			parts := strings.SplitN(issue.LastDirection, "->", 2)
			if len(parts) == 2 {
				prior = &conflict.PriorPass{FromStatus: parts[0], ToStatus: parts[1]}
			}
		}

		outcome := conflict.Resolve(o.cfg.ConflictConfig, time.Now(), trackerObs, boardObs, issue.TrackerStatus, prior)
		if outcome.Suppressed {
			metrics.recordDivergence(fmt.Sprintf("%s: %s", identifier, outcome.Reason))
			hotspots = append(hotspots, memoryblocks.HotspotEntry{Identifier: identifier, Reason: outcome.Reason})
			continue
		}
		if outcome.Status == issue.TrackerStatus {
			continue
		}

		if !o.cfg.DryRun {
			if err := o.tracker.UpdateIssueStatus(ctx, identifier, outcome.Status); err != nil {
				return hotspots, fmt.Errorf("update tracker status for %s: %w", identifier, err)
			}
		}

		issue.LastDirection = issue.TrackerStatus + "->" + outcome.Status
		issue.TrackerStatus = outcome.Status
		issue.Status = outcome.Status
		issue.BoardStatus = string(task.Status)
		now := time.Now()
		issue.BoardModifiedAt = &task.UpdatedAt
		issue.TrackerModifiedAt = &now
		issue.UpdatedAt = now
		if err := o.st.UpsertIssue(issue); err != nil {
			return hotspots, fmt.Errorf("persist resolved issue %s: %w", identifier, err)
		}
	}
	return hotspots, nil
}

// phase3TrackerLocal binds every tracker issue to a local-store record,
// creating one for each issue that has no local-store ID yet, and closes the
// local record when the tracker issue reaches a terminal status. A local
// closure is recorded as the issue's local status; it is not written back
// to the tracker.
func (o *Orchestrator) phase3TrackerLocal(ctx context.Context, projectIdentifier string) error {
	if o.localFor == nil {
		return nil
	}
	adapter := o.localFor(projectIdentifier)
	if adapter == nil {
		return nil
	}

	localIssues, err := adapter.ListIssues(ctx)
	if err != nil {
		return fmt.Errorf("list local issues: %w", err)
	}
	localByIdentifier := make(map[string]localstore.Issue, len(localIssues))
	localByID := make(map[string]localstore.Issue, len(localIssues))
	for _, li := range localIssues {
		if li.Identifier != "" {
			localByIdentifier[li.Identifier] = li
		}
		localByID[li.ID] = li
	}

	trackerIdentifiers, err := o.st.ListIssuesByProject(projectIdentifier)
	if err != nil {
		return fmt.Errorf("list project issues: %w", err)
	}

	for _, issue := range trackerIdentifiers {
		local, ok := localByIdentifier[issue.Identifier]
		if !ok && issue.LocalStoreID != "" {
			local, ok = localByID[issue.LocalStoreID]
		}
		if ok {
			desired := statusmap.LocalToBoard(string(local.Status))
			if string(desired) != issue.LocalStatus {
				issue.LocalStatus = string(desired)
				issue.LocalStoreID = local.ID
				issue.UpdatedAt = time.Now()
				if err := o.st.UpsertIssue(issue); err != nil {
					return fmt.Errorf("persist local status for %s: %w", issue.Identifier, err)
				}
			}

			trackerTerminal := statusmap.ToBoard(issue.TrackerStatus)
			localClosed := local.Status == "closed" || local.Status == "cancelled"
			if !localClosed && (trackerTerminal == board.StatusDone || trackerTerminal == board.StatusCancelled) {
				if !o.cfg.DryRun {
					if err := adapter.CloseIssue(ctx, local.ID); err != nil {
						return fmt.Errorf("close local issue for %s: %w", issue.Identifier, err)
					}
				}
			}
			continue
		}

		if o.cfg.DryRun || issue.LocalStoreID != "" {
			continue
		}
		localID, err := adapter.CreateIssue(ctx, issue.Title, issue.Description)
		if err != nil {
			return fmt.Errorf("create local issue for %s: %w", issue.Identifier, err)
		}
		issue.LocalStoreID = localID
		issue.UpdatedAt = time.Now()
		if err := o.st.UpsertIssue(issue); err != nil {
			return fmt.Errorf("persist local binding for %s: %w", issue.Identifier, err)
		}
	}
	return nil
}

// phase4Agent ensures the project's agent (consulting any previously bound
// agent ID first, §4.8), rebuilds and upserts all nine memory blocks,
// ensures its folder/source and attaches project documentation when
// configured, syncs its tools from the Control Agent when configured, and
// persists the resulting binding. It does nothing in dry-run mode.
func (o *Orchestrator) phase4Agent(ctx context.Context, projectIdentifier, name, boardProjectID string, hotspots []memoryblocks.HotspotEntry, controlAgent *agentplatform.Agent) error {
	if o.lifecycle == nil || o.cfg.DryRun {
		return nil
	}

	boundAgentID := ""
	if binding, err := o.st.GetAgentBinding(projectIdentifier); err == nil {
		boundAgentID = binding.AgentID
	} else if !store.IsNotFound(err) {
		return fmt.Errorf("get agent binding: %w", err)
	}

	agent, rescued, err := o.lifecycle.EnsureProjectAgent(ctx, projectIdentifier, boundAgentID, o.cfg.AgentModel, nil)
	if err != nil {
		return fmt.Errorf("ensure agent: %w", err)
	}
	if rescued {
		if err := o.st.DeleteAgentBinding(projectIdentifier); err != nil {
			return fmt.Errorf("discard stale sleep-time binding: %w", err)
		}
	}

	issues, err := o.st.ListIssuesByProject(projectIdentifier)
	if err != nil {
		return fmt.Errorf("list issues for memory blocks: %w", err)
	}

	results := o.lifecycle.UpsertBlocks(ctx, agent.ID, agentlifecycle.BlockSet{
		Project:        memoryblocks.ProjectBlock{Identifier: projectIdentifier, Name: name, IssueCount: len(issues)},
		BoardConfig:    memoryblocks.BoardConfigBlock{BoardProjectID: boardProjectID, StatusMapping: boardStatusMapping()},
		BoardMetrics:   buildBoardMetrics(issues),
		Hotspots:       hotspots,
		BacklogSummary: buildBacklogSummary(issues),
		ChangeLog:      buildChangeLog(issues),
		Persona:        memoryblocks.PersonaBlock{ProjectIdentifier: projectIdentifier, ProjectName: name},
		Human:          memoryblocks.HumanBlock{ProjectIdentifier: projectIdentifier},
	})
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("upsert memory block %s: %w", r.Label, r.Err)
		}
	}

	folder, source, err := o.lifecycle.EnsureProjectFolder(ctx, agent.ID, projectIdentifier)
	if err != nil {
		return fmt.Errorf("ensure project folder: %w", err)
	}
	if o.cfg.AgentAttachRepoDocs {
		doc := agentplatform.File{Name: "README.md", Content: projectReadme(projectIdentifier, name, issues)}
		if err := o.agents.UpsertFile(ctx, source.ID, doc); err != nil {
			return fmt.Errorf("upsert project readme: %w", err)
		}
	}

	if controlAgent != nil && o.cfg.AgentSyncToolsFromControl {
		mode := agentplatform.ToolSyncAdditive
		if o.cfg.AgentSyncToolsForce {
			mode = agentplatform.ToolSyncForce
		}
		if err := o.lifecycle.SyncControlAgentTools(ctx, agent.ID, controlAgent.Tools, mode); err != nil {
			return fmt.Errorf("sync agent tools from control: %w", err)
		}
	}

	return o.st.UpsertAgentBinding(store.AgentBinding{
		ProjectIdentifier: projectIdentifier,
		AgentID:           agent.ID,
		FolderID:          folder.ID,
		SourceID:          source.ID,
		BlockHashes:       o.agents.BlockHashes(agent.ID),
	})
}

// boardStatusMapping renders the board lattice's canonical tracker-status
// inverse as the "board_config" block's status_mapping (§4.7).
func boardStatusMapping() map[string]string {
	boardStatuses := []board.Status{
		board.StatusTodo, board.StatusInProgress, board.StatusInReview, board.StatusDone, board.StatusCancelled,
	}
	mapping := make(map[string]string, len(boardStatuses))
	for _, bs := range boardStatuses {
		mapping[statusmap.ToTracker(bs)] = string(bs)
	}
	return mapping
}

func buildBoardMetrics(issues []store.Issue) memoryblocks.BoardMetrics {
	counts := make(map[string]int)
	for _, i := range issues {
		counts[i.Status]++
	}
	return memoryblocks.BoardMetrics{TotalIssues: len(issues), CountsByStatus: counts}
}

func buildBacklogSummary(issues []store.Issue) []memoryblocks.BacklogItem {
	items := make([]memoryblocks.BacklogItem, 0, len(issues))
	for _, i := range issues {
		items = append(items, memoryblocks.BacklogItem{
			Identifier: i.Identifier, Title: i.Title, Status: i.Status, Priority: i.Priority,
		})
	}
	return items
}

// buildChangeLog surfaces every issue whose tracker/board/local status
// observations currently disagree, for the "change_log" block.
func buildChangeLog(issues []store.Issue) []memoryblocks.ChangeLogEntry {
	var entries []memoryblocks.ChangeLogEntry
	for _, i := range issues {
		sources := map[string]string{}
		if i.TrackerStatus != "" {
			sources["tracker"] = i.TrackerStatus
		}
		if i.BoardStatus != "" {
			sources["board"] = i.BoardStatus
		}
		if i.LocalStatus != "" {
			sources["local"] = i.LocalStatus
		}
		if !allAgree(sources) {
			entries = append(entries, memoryblocks.ChangeLogEntry{Identifier: i.Identifier, Field: "status", Sources: sources})
		}
	}
	return entries
}

func allAgree(sources map[string]string) bool {
	var first string
	seen := false
	for _, v := range sources {
		if !seen {
			first = v
			seen = true
			continue
		}
		if v != first {
			return false
		}
	}
	return true
}

// projectReadme renders the documentation file attached to a project's
// agent folder/source when AGENT_ATTACH_REPO_DOCS is enabled (§4.8).
func projectReadme(projectIdentifier, name string, issues []store.Issue) string {
	return fmt.Sprintf("# %s (%s)\n\n%d tracked issues.\n", name, projectIdentifier, len(issues))
}
