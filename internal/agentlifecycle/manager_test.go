package agentlifecycle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/triway/triway/internal/agentplatform"
	"github.com/triway/triway/internal/memoryblocks"
)

func TestAgentNameIsCanonical(t *testing.T) {
	m := New(agentplatform.New("http://unused", "key"), "triway", nil)
	require.Equal(t, "triway-ACME-PM", m.AgentName("ACME"))
}

func TestRenameProjectAgentRefusesSleepTimeSuffix(t *testing.T) {
	m := New(agentplatform.New("http://unused", "key"), "triway", nil)
	err := m.RenameProjectAgent(context.Background(), "a1", "ACME-sleeptime", "WIDGET")
	require.Error(t, err)
}

func TestEnsureProjectFolderRejectsRootShapedName(t *testing.T) {
	m := New(agentplatform.New("http://unused", "key"), "triway", nil)
	_, _, err := m.EnsureProjectFolder(context.Background(), "a1", "root")
	require.Error(t, err)
}

func TestUpsertBlocksWritesAllNineLabels(t *testing.T) {
	var mu []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu = append(mu, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := agentplatform.New(srv.URL, "key")
	m := New(client, "triway", nil)

	results := m.UpsertBlocks(context.Background(), "a1", BlockSet{
		Project:        memoryblocks.ProjectBlock{Identifier: "ACME"},
		BacklogSummary: []memoryblocks.BacklogItem{{Identifier: "ACME-1"}},
	})
	require.Len(t, results, len(memoryblocks.Labels))
	for _, r := range results {
		require.NoError(t, r.Err)
		require.True(t, r.Wrote)
	}
	require.Len(t, mu, len(memoryblocks.Labels))
}

func TestUpsertBlocksSecondPassSkipsUnchanged(t *testing.T) {
	writes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writes++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := agentplatform.New(srv.URL, "key")
	m := New(client, "triway", nil)
	set := BlockSet{Project: memoryblocks.ProjectBlock{Identifier: "ACME"}}

	m.UpsertBlocks(context.Background(), "a1", set)
	require.Equal(t, len(memoryblocks.Labels), writes)

	results := m.UpsertBlocks(context.Background(), "a1", set)
	for _, r := range results {
		require.NoError(t, r.Err)
		require.False(t, r.Wrote)
	}
	require.Equal(t, len(memoryblocks.Labels), writes)
}

func TestEnsureProjectAgentCreatesWhenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/agents", r.URL.Path)
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode([]agentplatform.Agent{})
			return
		}
		_ = json.NewEncoder(w).Encode(agentplatform.Agent{ID: "a1", Name: "triway-ACME-PM"})
	}))
	defer srv.Close()

	client := agentplatform.New(srv.URL, "key")
	m := New(client, "triway", nil)
	agent, rescued, err := m.EnsureProjectAgent(context.Background(), "ACME", "", "", nil)
	require.NoError(t, err)
	require.False(t, rescued)
	require.Equal(t, "triway-ACME-PM", agent.Name)
}

func TestEnsureControlAgentFindsExistingByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode([]agentplatform.Agent{{ID: "ctl1", Name: "Control", Tools: []string{"a", "b"}}})
	}))
	defer srv.Close()

	client := agentplatform.New(srv.URL, "key")
	m := New(client, "triway", nil)
	agent, err := m.EnsureControlAgent(context.Background(), "Control")
	require.NoError(t, err)
	require.Equal(t, "ctl1", agent.ID)
	require.Equal(t, []string{"a", "b"}, agent.Tools)
}

func TestSyncControlAgentToolsTargetsProjectAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/agents/proj1/tools/sync", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := agentplatform.New(srv.URL, "key")
	m := New(client, "triway", nil)
	err := m.SyncControlAgentTools(context.Background(), "proj1", []string{"a", "b", "c"}, agentplatform.ToolSyncAdditive)
	require.NoError(t, err)
}
