package localstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListIssuesReturnsNilWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	a := New("does-not-matter", dir)
	issues, err := a.ListIssues(context.Background())
	require.NoError(t, err)
	require.Nil(t, issues)
}

func TestListIssuesParsesJSONL(t *testing.T) {
	dir := t.TempDir()
	a := New("does-not-matter", dir)

	line1, _ := json.Marshal(Issue{ID: "local-1", Identifier: "ACME-1", Title: "Bootstrap"})
	line2, _ := json.Marshal(Issue{ID: "local-2", Title: "Unbound"})
	content := string(line1) + "\n" + string(line2) + "\n"
	require.NoError(t, os.WriteFile(a.IssuesFile, []byte(content), 0o644))

	issues, err := a.ListIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 2)
	require.Equal(t, "ACME-1", issues[0].Identifier)
	require.Equal(t, "", issues[1].Identifier)
}

func TestRefreshSettingsFileWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	a := New("does-not-matter", dir)

	require.NoError(t, a.RefreshSettingsFile(SettingsSnapshot{
		LastSyncAt:   time.Now(),
		IssuesSynced: 3,
	}))

	_, err := os.Stat(filepath.Join(dir, "settings.local.json.tmp"))
	require.True(t, os.IsNotExist(err))

	b, err := os.ReadFile(a.SettingsFile)
	require.NoError(t, err)
	var snap SettingsSnapshot
	require.NoError(t, json.Unmarshal(b, &snap))
	require.Equal(t, 3, snap.IssuesSynced)
}
