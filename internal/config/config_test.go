package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)
	cfg := s.Current()
	require.Equal(t, 5, cfg.MaxWorkers)
	require.Equal(t, 30_000, cfg.SyncIntervalMS)
	require.Equal(t, 30*time.Second, cfg.SyncInterval())
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("MAX_WORKERS", "12")
	t.Setenv("DRY_RUN", "true")
	s, err := Load()
	require.NoError(t, err)
	cfg := s.Current()
	require.Equal(t, 12, cfg.MaxWorkers)
	require.True(t, cfg.DryRun)
}

func TestMaxWorkersClamped(t *testing.T) {
	t.Setenv("MAX_WORKERS", "999")
	s, err := Load()
	require.NoError(t, err)
	require.Equal(t, 50, s.Current().MaxWorkers)
}

func TestApplyBroadcastsToWatchers(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)
	ch := s.Watch()

	interval := 5000
	s.Apply(Update{SyncIntervalMS: &interval})

	select {
	case cfg := <-ch:
		require.Equal(t, 5000, cfg.SyncIntervalMS)
	default:
		t.Fatal("expected a config update on the watch channel")
	}
	require.Equal(t, 5000, s.Current().SyncIntervalMS)
}
