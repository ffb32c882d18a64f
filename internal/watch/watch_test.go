package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchDebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "issues.jsonl")
	require.NoError(t, os.WriteFile(file, []byte("{}\n"), 0o644))

	w, err := New(Config{Debounce: 40 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Add(dir, "ACME"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(file, []byte("{}\n{}\n"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case ev := <-w.Events():
		require.Equal(t, "ACME", ev.ProjectIdentifier)
		require.Equal(t, file, ev.Path)
		require.Equal(t, KindStore, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a debounced event")
	}

	select {
	case ev, ok := <-w.Events():
		if ok {
			t.Fatalf("expected exactly one coalesced event, got a second: %+v", ev)
		}
	case <-time.After(80 * time.Millisecond):
	}
}

func TestWatchIgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "swapfile.tmp")

	w, err := New(Config{Debounce: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Add(dir, "ACME"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	select {
	case ev := <-w.Events():
		t.Fatalf("expected no event for irrelevant file, got %+v", ev)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestClassifyMatchesStoreAndDocs(t *testing.T) {
	kind, ok := classify("/p/issues.jsonl")
	require.True(t, ok)
	require.Equal(t, KindStore, kind)

	kind, ok = classify("/p/README.md")
	require.True(t, ok)
	require.Equal(t, KindDoc, kind)

	kind, ok = classify("/p/settings.local.json")
	require.True(t, ok)
	require.Equal(t, KindStore, kind)

	_, ok = classify("/p/issues.jsonl.swp")
	require.False(t, ok)

	_, ok = classify("/p/binary.db")
	require.False(t, ok)
}
