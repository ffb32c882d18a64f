package agentplatform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnsureAgentReturnsExistingByName(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode([]Agent{{ID: "a1", Name: "acme-pm"}})
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	a, rescued, err := c.EnsureAgent(context.Background(), "", "acme-pm", "gpt", nil, nil)
	require.NoError(t, err)
	require.False(t, rescued)
	require.Equal(t, "a1", a.ID)
	require.Equal(t, 1, calls)
}

func TestEnsureAgentPrefersBoundAgentWhenNotSleepTime(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/v1/agents/a1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Agent{ID: "a1", Name: "acme-pm"})
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	a, rescued, err := c.EnsureAgent(context.Background(), "a1", "acme-pm", "gpt", nil, nil)
	require.NoError(t, err)
	require.False(t, rescued)
	require.Equal(t, "a1", a.ID)
	require.Equal(t, 1, calls)
}

func TestEnsureAgentRescuesSleepTimeBoundAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/agents/stale":
			_ = json.NewEncoder(w).Encode(Agent{ID: "stale", Name: "acme-pm-sleeptime"})
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]Agent{})
		default:
			_ = json.NewEncoder(w).Encode(Agent{ID: "fresh", Name: "acme-pm"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	a, rescued, err := c.EnsureAgent(context.Background(), "stale", "acme-pm", "gpt", []string{"sync-service"}, nil)
	require.NoError(t, err)
	require.True(t, rescued)
	require.Equal(t, "fresh", a.ID)
}

func TestEnsureAgentDeletesDuplicates(t *testing.T) {
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]Agent{
				{ID: "a1", Name: "acme-pm", CreatedAt: time.Unix(100, 0)},
				{ID: "a2", Name: "acme-pm", CreatedAt: time.Unix(200, 0)},
			})
		case http.MethodDelete:
			deleted = append(deleted, r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	a, _, err := c.EnsureAgent(context.Background(), "", "acme-pm", "gpt", []string{"sync-service"}, nil)
	require.NoError(t, err)
	require.Equal(t, "a2", a.ID)
	require.Equal(t, []string{"/v1/agents/a1"}, deleted)
}

func TestCheckTagFilterHonoredNoAgentsIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]Agent{})
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	require.NoError(t, c.CheckTagFilterHonored(context.Background()))
}

func TestUpsertBlockSkipsWriteWhenUnchanged(t *testing.T) {
	writes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writes++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	block := MemoryBlock{Label: "project", Value: `{"identifier":"ACME"}`}

	wrote, err := c.UpsertBlock(context.Background(), "a1", block)
	require.NoError(t, err)
	require.True(t, wrote)
	require.Equal(t, 1, writes)

	wrote, err = c.UpsertBlock(context.Background(), "a1", block)
	require.NoError(t, err)
	require.False(t, wrote)
	require.Equal(t, 1, writes)

	block.Value = `{"identifier":"ACME","issue_count":1}`
	wrote, err = c.UpsertBlock(context.Background(), "a1", block)
	require.NoError(t, err)
	require.True(t, wrote)
	require.Equal(t, 2, writes)
}

func TestEnsureFolderFallsBackOnConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusConflict)
			return
		}
		_ = json.NewEncoder(w).Encode(Folder{ID: "f1", Name: "acme-root"})
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	f, err := c.EnsureFolder(context.Background(), "a1", "acme-root")
	require.NoError(t, err)
	require.Equal(t, "f1", f.ID)
}

func TestBlockCachePreloadAvoidsRedundantWrite(t *testing.T) {
	writes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writes++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cache := NewBlockCache()
	block := MemoryBlock{Label: "project", Value: `{"identifier":"ACME"}`}
	cache.Preload("a1", map[string]string{"project": contentHash(block.Value)})

	c := New(srv.URL, "key", WithBlockCache(cache))
	wrote, err := c.UpsertBlock(context.Background(), "a1", block)
	require.NoError(t, err)
	require.False(t, wrote)
	require.Equal(t, 0, writes)
}
