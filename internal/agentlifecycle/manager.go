// Package agentlifecycle implements the Agent Lifecycle Manager: the
// ensure/rename/resurrect protocol that keeps one Project Memory Agent per
// project, the block-upsert protocol that writes its memory, and the
// Control Agent's additive/force tool sync.
package agentlifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/triway/triway/internal/agentplatform"
	"github.com/triway/triway/internal/memoryblocks"
)

// sleepTimeSuffix marks an agent as a sleep-time companion of a Project
// Memory Agent. Resurrect must never delete or rename an agent carrying
// this suffix even if it otherwise matches a stale-agent pattern, since
// doing so would orphan the companion relationship (§4.8).
const sleepTimeSuffix = "-sleeptime"

// Manager owns the ensure/rename/resurrect protocol and the block-upsert
// batch for every project's agent.
type Manager struct {
	client *agentplatform.Client
	prefix string // e.g. "triway", combined with a project identifier as "<prefix>-<PROJ>-PM"
	log    *slog.Logger

	// blockSem bounds how many block-upsert calls are in flight for a
	// single agent at once (§5's per-agent concurrency cap of 2).
	blockSemFactory func() *semaphore.Weighted

	// toolSyncMu/lastToolSync enforce the >=200ms gap between tool
	// operations per agent that the Control Agent sync requires (§4.8).
	toolSyncMu   sync.Mutex
	lastToolSync map[string]time.Time
}

// toolSyncMinGap is the minimum spacing between tool operations on the same
// agent (§4.8: "rate-limit >= 200ms between tool operations per agent").
const toolSyncMinGap = 200 * time.Millisecond

// New builds a Manager.
func New(client *agentplatform.Client, prefix string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		client: client,
		prefix: prefix,
		log:    log,
		blockSemFactory: func() *semaphore.Weighted {
			return semaphore.NewWeighted(2)
		},
		lastToolSync: make(map[string]time.Time),
	}
}

// syncServiceTag marks every agent this system manages, distinguishing it
// from agents created by other tooling sharing the same platform (§4.8's
// ensure protocol step 2: "query the platform by name and by tags
// {sync-service-tag, project:<identifier>}").
const syncServiceTag = "sync-service"

// AgentName returns the canonical Project Memory Agent name for a project.
func (m *Manager) AgentName(projectIdentifier string) string {
	return fmt.Sprintf("%s-%s-PM", m.prefix, projectIdentifier)
}

// projectTags returns the tag set the ensure protocol's tag query and
// agent-creation call both use to scope a project's primary agent.
func projectTags(projectIdentifier string) []string {
	return []string{syncServiceTag, "project:" + projectIdentifier}
}

// EnsureProjectAgent implements the ensure step (§4.8): consult a
// previously-bound agent ID first, fall back to a tag-and-name query that
// also reconciles accidental duplicates, and only create a new agent when
// neither finds one. boundAgentID may be empty on a project's first sync.
// The returned bool reports a sleep-time rescue (scenario 5): the caller
// must treat the old binding as discarded and persist the new one.
func (m *Manager) EnsureProjectAgent(ctx context.Context, projectIdentifier, boundAgentID, model string, tools []string) (agentplatform.Agent, bool, error) {
	name := m.AgentName(projectIdentifier)
	agent, rescued, err := m.client.EnsureAgent(ctx, boundAgentID, name, model, projectTags(projectIdentifier), tools)
	if err != nil {
		return agentplatform.Agent{}, rescued, fmt.Errorf("ensure agent %s: %w", name, err)
	}
	if rescued {
		m.log.Warn("sleep-time rescue: discarding stale binding and using/creating a fresh primary agent",
			"project", projectIdentifier, "stale_agent_id", boundAgentID, "new_agent_id", agent.ID)
	}
	return agent, rescued, nil
}

// RenameProjectAgent renames a project's agent when its identifier changes,
// refusing to touch anything carrying the sleep-time suffix.
func (m *Manager) RenameProjectAgent(ctx context.Context, agentID, oldIdentifier, newIdentifier string) error {
	oldName := m.AgentName(oldIdentifier)
	if strings.HasSuffix(oldIdentifier, sleepTimeSuffix) || strings.HasSuffix(oldName, sleepTimeSuffix) {
		return fmt.Errorf("refusing to rename sleep-time agent %s", oldName)
	}
	return m.client.RenameAgent(ctx, agentID, m.AgentName(newIdentifier))
}

// Resurrect replaces a stale or broken agent with a fresh one under the
// same canonical name, used when EnsureProjectAgent's normal path can't
// recover an agent (corrupted memory, platform-side deletion half-applied).
// It never touches an agent whose name carries the sleep-time suffix.
func (m *Manager) Resurrect(ctx context.Context, staleAgentID, projectIdentifier, model string, tools []string) (agentplatform.Agent, error) {
	agents, err := m.client.ListAgents(ctx)
	if err != nil {
		return agentplatform.Agent{}, fmt.Errorf("resurrect: list agents: %w", err)
	}
	for _, a := range agents {
		if a.ID == staleAgentID && strings.HasSuffix(a.Name, sleepTimeSuffix) {
			return agentplatform.Agent{}, fmt.Errorf("refusing to resurrect sleep-time agent %s", a.Name)
		}
	}

	if err := m.client.DeleteAgent(ctx, staleAgentID); err != nil {
		return agentplatform.Agent{}, fmt.Errorf("resurrect: delete stale agent: %w", err)
	}
	m.log.Warn("resurrected project agent", "project", projectIdentifier, "stale_agent_id", staleAgentID)
	agent, _, err := m.EnsureProjectAgent(ctx, projectIdentifier, "", model, tools)
	return agent, err
}

// BlockSet is everything the orchestrator wants written to a project's
// agent on one pass, one field per canonical label in memoryblocks.Labels
// (§4.7).
type BlockSet struct {
	Project        memoryblocks.ProjectBlock
	BoardConfig    memoryblocks.BoardConfigBlock
	BoardMetrics   memoryblocks.BoardMetrics
	Hotspots       []memoryblocks.HotspotEntry
	BacklogSummary []memoryblocks.BacklogItem
	ChangeLog      []memoryblocks.ChangeLogEntry
	Persona        memoryblocks.PersonaBlock
	Human          memoryblocks.HumanBlock
}

// UpsertResult reports what happened for one label in a block-upsert batch.
type UpsertResult struct {
	Label string
	Wrote bool
	Err   error
}

// UpsertBlocks writes every block in a BlockSet to an agent, bounded by a
// per-agent concurrency cap so a slow upstream can't let one agent's writes
// starve every other project's pass (§5). Partial failure is reported per
// label rather than aborting the whole batch, matching how the teacher's
// audit logger treats one failed log call as independent of the others.
func (m *Manager) UpsertBlocks(ctx context.Context, agentID string, set BlockSet) []UpsertResult {
	type labeled struct {
		label string
		value string
	}
	blocks := []labeled{
		{"project", memoryblocks.BuildProject(set.Project)},
		{"board_config", memoryblocks.BuildBoardConfig(set.BoardConfig)},
		{"board_metrics", memoryblocks.BuildBoardMetrics(set.BoardMetrics)},
		{"hotspots", memoryblocks.BuildHotspots(set.Hotspots)},
		{"backlog_summary", memoryblocks.BuildBacklogSummary(set.BacklogSummary)},
		{"change_log", memoryblocks.BuildChangeLog(set.ChangeLog)},
		{"persona", memoryblocks.BuildPersona(set.Persona)},
		{"human", memoryblocks.BuildHuman(set.Human)},
		{"scratchpad", memoryblocks.BuildScratchpad()},
	}

	sem := m.blockSemFactory()
	results := make([]UpsertResult, len(blocks))
	var wg sync.WaitGroup

	for i, b := range blocks {
		i, b := i, b
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = UpsertResult{Label: b.label, Err: err}
				return
			}
			defer sem.Release(1)

			wrote, err := m.client.UpsertBlock(ctx, agentID, agentplatform.MemoryBlock{Label: b.label, Value: b.value})
			results[i] = UpsertResult{Label: b.label, Wrote: wrote, Err: err}
		}()
	}
	wg.Wait()
	return results
}

// isRootFolderEntry reports whether a folder name has the shape of the agent
// platform's non-functional "-root" bookkeeping entries; EnsureProjectFolder
// refuses to create a project folder under such a name (§5 Open Question
// (c)).
func isRootFolderEntry(name string) bool {
	return strings.HasSuffix(name, "-root")
}

// EnsureProjectFolder ensures the project's folder and its single source
// exist. It returns an error instead of creating a folder whose name ends in
// "-root"; it does not list the agent's existing folders.
func (m *Manager) EnsureProjectFolder(ctx context.Context, agentID, projectIdentifier string) (agentplatform.Folder, agentplatform.Source, error) {
	folderName := fmt.Sprintf("%s-%s", m.prefix, strings.ToLower(projectIdentifier))
	if isRootFolderEntry(folderName) {
		return agentplatform.Folder{}, agentplatform.Source{}, fmt.Errorf("refusing to create root-shaped folder name %q", folderName)
	}

	folder, err := m.client.EnsureFolder(ctx, agentID, folderName)
	if err != nil {
		return agentplatform.Folder{}, agentplatform.Source{}, fmt.Errorf("ensure folder: %w", err)
	}

	source, err := m.client.EnsureSource(ctx, folder.ID, folderName+"-source")
	if err != nil {
		return folder, agentplatform.Source{}, fmt.Errorf("ensure source: %w", err)
	}

	return folder, source, nil
}

// UpsertProjectFile writes a single file to an already-ensured source,
// used by the documentation watch path to re-attach a changed file without
// re-running the full memory-block pass a local-store change triggers
// (§4.12, §2.13).
func (m *Manager) UpsertProjectFile(ctx context.Context, sourceID string, file agentplatform.File) error {
	return m.client.UpsertFile(ctx, sourceID, file)
}

// EnsureControlAgent locates the platform-wide Control Agent by its
// configured name. It is never created with project tags and never touched
// by the duplicate-reconciliation logic EnsureProjectAgent applies to
// per-project agents, since it is a template other agents sync from rather
// than a project agent itself (§4.8).
func (m *Manager) EnsureControlAgent(ctx context.Context, name string) (agentplatform.Agent, error) {
	agents, err := m.client.ListAgents(ctx)
	if err != nil {
		return agentplatform.Agent{}, fmt.Errorf("ensure control agent: list agents: %w", err)
	}
	for _, a := range agents {
		if a.Name == name {
			return a, nil
		}
	}
	agent, _, err := m.client.EnsureAgent(ctx, "", name, "", nil, nil)
	if err != nil {
		return agentplatform.Agent{}, fmt.Errorf("ensure control agent: %w", err)
	}
	return agent, nil
}

// SyncControlAgentTools reconciles one project agent's tool list against the
// Control Agent's tools (desired). Additive mode only grants tools the
// project agent is missing; force mode also detaches anything the project
// agent has that the Control Agent doesn't (§4.8, scenario 6).
func (m *Manager) SyncControlAgentTools(ctx context.Context, agentID string, desired []string, mode agentplatform.ToolSyncMode) error {
	m.waitToolSyncGap(ctx, agentID)
	if err := m.client.SyncTools(ctx, agentID, desired, mode); err != nil {
		return fmt.Errorf("sync control agent tools: %w", err)
	}
	return nil
}

// waitToolSyncGap blocks until at least toolSyncMinGap has elapsed since the
// last tool operation on agentID.
func (m *Manager) waitToolSyncGap(ctx context.Context, agentID string) {
	m.toolSyncMu.Lock()
	last, ok := m.lastToolSync[agentID]
	m.lastToolSync[agentID] = time.Now()
	m.toolSyncMu.Unlock()

	if !ok {
		return
	}
	if wait := toolSyncMinGap - time.Since(last); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
}
