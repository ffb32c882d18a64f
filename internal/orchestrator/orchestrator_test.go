package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/triway/triway/internal/agentlifecycle"
	"github.com/triway/triway/internal/agentplatform"
	"github.com/triway/triway/internal/board"
	"github.com/triway/triway/internal/localstore"
	"github.com/triway/triway/internal/projectlock"
	"github.com/triway/triway/internal/store"
	"github.com/triway/triway/internal/tracker"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "sync-state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return store.NewStore(db)
}

// fixture stands up fake tracker, board, and agent-platform HTTP servers
// for a single project ACME with one issue ACME-1 in Backlog, board empty.
func fixture(t *testing.T) (*tracker.Client, *board.Client, *agentplatform.Client) {
	t.Helper()

	boardTasks := map[string]board.Task{}
	boardProjects := []board.Project{}

	trackerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/projects":
			_ = json.NewEncoder(w).Encode([]tracker.ProjectSummary{{Identifier: "ACME", Name: "Acme", InternalID: "tr-p1"}})
		case r.URL.Path == "/v1/projects/ACME/issues":
			_ = json.NewEncoder(w).Encode([]tracker.Issue{{InternalID: "tr-1", Identifier: "ACME-1", Title: "Bootstrap", Status: "Backlog"}})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(trackerSrv.Close)

	boardSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/projects":
			_ = json.NewEncoder(w).Encode(boardProjects)
		case r.Method == http.MethodPost && r.URL.Path == "/api/projects":
			var p board.Project
			_ = json.NewDecoder(r.Body).Decode(&p)
			p.ID = "board-p1"
			boardProjects = append(boardProjects, p)
			_ = json.NewEncoder(w).Encode(p)
		case r.Method == http.MethodGet && r.URL.Path == "/api/projects/board-p1/tasks":
			tasks := make([]board.Task, 0, len(boardTasks))
			for _, t := range boardTasks {
				tasks = append(tasks, t)
			}
			_ = json.NewEncoder(w).Encode(tasks)
		case r.Method == http.MethodPost && r.URL.Path == "/api/projects/board-p1/tasks":
			var u board.TaskUpdate
			_ = json.NewDecoder(r.Body).Decode(&u)
			task := board.Task{ID: "task-1", ProjectID: "board-p1", Title: u.Title, Description: u.Description, Status: u.Status}
			boardTasks[task.ID] = task
			_ = json.NewEncoder(w).Encode(task)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(boardSrv.Close)

	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/agents":
			_ = json.NewEncoder(w).Encode([]agentplatform.Agent{{ID: "agent-1", Name: "triway-ACME-PM"}})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(agentSrv.Close)

	return tracker.New(trackerSrv.URL, "key"), board.New(boardSrv.URL, "key"), agentplatform.New(agentSrv.URL, "key")
}

func TestInitialBindCreatesBoardTaskAndIssueRow(t *testing.T) {
	trackerClient, boardClient, agentClient := fixture(t)
	st := newTestStore(t)
	lifecycle := agentlifecycle.New(agentClient, "triway", nil)

	localFor := func(string) *localstore.Adapter { return nil }

	o := New(DefaultConfig(), st, trackerClient, boardClient, agentClient, lifecycle, projectlock.New(), localFor, nil)

	metrics, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, metrics.ProjectsProcessed)
	require.Equal(t, 0, metrics.ProjectsFailed)

	issue, err := st.GetIssue("ACME-1")
	require.NoError(t, err)
	require.Equal(t, "Backlog", issue.Status)
	require.Equal(t, "todo", issue.BoardStatus)
	require.NotEmpty(t, issue.BoardTaskID)

	project, err := st.GetProject("ACME")
	require.NoError(t, err)
	require.Equal(t, store.ProjectStateActive, project.State)
}
