package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sync-state.db")
	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestUpsertProjectCreatesThenUpdates(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertProject(Project{Identifier: "ACME", Name: "Acme", State: ProjectStateActive}))
	p, err := s.GetProject("ACME")
	require.NoError(t, err)
	require.Equal(t, "Acme", p.Name)
	require.Equal(t, "", p.TrackerInternalID)

	require.NoError(t, s.UpsertProject(Project{Identifier: "ACME", Name: "Acme Corp", TrackerInternalID: "tr-1", State: ProjectStateActive}))
	p, err = s.GetProject("ACME")
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", p.Name)
	require.Equal(t, "tr-1", p.TrackerInternalID)
}

func TestUpsertIssuePreservesExistingBindingsOnEmptyInput(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertProject(Project{Identifier: "ACME", Name: "Acme", State: ProjectStateActive}))

	require.NoError(t, s.UpsertIssue(Issue{
		Identifier: "ACME-1", ProjectIdentifier: "ACME", Title: "Bootstrap",
		Status: "Backlog", TrackerInternalID: "tr-issue-1",
	}))

	// A later observation with a board id but no tracker id must not wipe
	// the tracker id already bound (§3.2).
	require.NoError(t, s.UpsertIssue(Issue{
		Identifier: "ACME-1", ProjectIdentifier: "ACME", Title: "Bootstrap",
		Status: "Backlog", BoardTaskID: "board-task-1",
	}))

	i, err := s.GetIssue("ACME-1")
	require.NoError(t, err)
	require.Equal(t, "tr-issue-1", i.TrackerInternalID)
	require.Equal(t, "board-task-1", i.BoardTaskID)
}

func TestGetIssueNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetIssue("MISSING-1")
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestProjectsNeedingSync(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	stale := now.Add(-time.Hour)

	require.NoError(t, s.UpsertProject(Project{Identifier: "FRESH", Name: "Fresh", State: ProjectStateActive, LastSyncAt: &now}))
	require.NoError(t, s.UpsertProject(Project{Identifier: "STALE", Name: "Stale", State: ProjectStateActive, LastSyncAt: &stale}))

	due, err := s.ProjectsNeedingSync(30*time.Minute, time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "STALE", due[0].Identifier)
}

func TestAgentBindingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertProject(Project{Identifier: "ACME", Name: "Acme", State: ProjectStateActive}))

	require.NoError(t, s.UpsertAgentBinding(AgentBinding{
		ProjectIdentifier: "ACME",
		AgentID:           "agent-1",
		BlockHashes:       map[string]string{"project": "hash-a"},
	}))

	b, err := s.GetAgentBinding("ACME")
	require.NoError(t, err)
	require.Equal(t, "agent-1", b.AgentID)
	require.Equal(t, "hash-a", b.BlockHashes["project"])

	require.NoError(t, s.DeleteAgentBinding("ACME"))
	_, err = s.GetAgentBinding("ACME")
	require.True(t, IsNotFound(err))
}

func TestSyncRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertSyncRun(SyncRun{StartedAt: time.Now()})
	require.NoError(t, err)

	completed := time.Now()
	require.NoError(t, s.CompleteSyncRun(id, SyncRun{
		CompletedAt: &completed, ProjectsProcessed: 1, IssuesSynced: 2, DurationMS: 150,
	}))

	runs, err := s.RecentSyncRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, 1, runs[0].ProjectsProcessed)
	require.Equal(t, int64(150), runs[0].DurationMS)
}
