// Package config provides the process's single immutable Config value
// (§9), loaded from environment via viper and served to timers and workers
// through an atomic snapshot, with a channel feeding live updates from the
// control endpoint.
package config

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of options enumerated in §6.1.
type Config struct {
	TrackerAPIURL string
	TrackerUseREST bool

	BoardAPIURL  string
	BoardUseREST bool

	SyncIntervalMS     int
	SyncParallel       bool
	MaxWorkers         int
	SkipEmptyProjects  bool
	IncrementalSync    bool
	APIDelayMS         int
	DryRun             bool

	AgentBaseURL              string
	AgentAPIKey               string
	AgentModel                string
	AgentEmbedding            string
	AgentSyncToolsFromControl bool
	AgentSyncToolsForce       bool
	AgentControlName          string
	AgentAttachRepoDocs       bool

	StacksDir  string
	HealthPort int
}

// Defaults matches the documented defaults elsewhere in the spec (30s full
// sync, 5 workers, etc.) for any option not set in the environment.
func Defaults() Config {
	return Config{
		TrackerUseREST:    true,
		BoardUseREST:      true,
		SyncIntervalMS:    30_000,
		SyncParallel:      true,
		MaxWorkers:        5,
		SkipEmptyProjects: true,
		IncrementalSync:   true,
		AgentControlName:  "Control",
		HealthPort:        8080,
	}
}

// Store holds the current Config as an atomically-swapped snapshot and
// fans out updates to subscribers.
type Store struct {
	current     atomic.Pointer[Config]
	subscribers []chan Config
}

// Load builds a Store from environment variables via viper, falling back
// to Defaults() for anything unset.
func Load() (*Store, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("tracker_api_url", d.TrackerAPIURL)
	v.SetDefault("tracker_use_rest", d.TrackerUseREST)
	v.SetDefault("board_api_url", d.BoardAPIURL)
	v.SetDefault("board_use_rest", d.BoardUseREST)
	v.SetDefault("sync_interval", d.SyncIntervalMS)
	v.SetDefault("sync_parallel", d.SyncParallel)
	v.SetDefault("max_workers", d.MaxWorkers)
	v.SetDefault("skip_empty_projects", d.SkipEmptyProjects)
	v.SetDefault("incremental_sync", d.IncrementalSync)
	v.SetDefault("api_delay", d.APIDelayMS)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("agent_base_url", d.AgentBaseURL)
	v.SetDefault("agent_api_key", d.AgentAPIKey)
	v.SetDefault("agent_model", d.AgentModel)
	v.SetDefault("agent_embedding", d.AgentEmbedding)
	v.SetDefault("agent_sync_tools_from_control", d.AgentSyncToolsFromControl)
	v.SetDefault("agent_sync_tools_force", d.AgentSyncToolsForce)
	v.SetDefault("agent_control_name", d.AgentControlName)
	v.SetDefault("agent_attach_repo_docs", d.AgentAttachRepoDocs)
	v.SetDefault("stacks_dir", d.StacksDir)
	v.SetDefault("health_port", d.HealthPort)

	cfg := Config{
		TrackerAPIURL:             v.GetString("tracker_api_url"),
		TrackerUseREST:            v.GetBool("tracker_use_rest"),
		BoardAPIURL:               v.GetString("board_api_url"),
		BoardUseREST:              v.GetBool("board_use_rest"),
		SyncIntervalMS:            v.GetInt("sync_interval"),
		SyncParallel:              v.GetBool("sync_parallel"),
		MaxWorkers:                clampWorkers(v.GetInt("max_workers")),
		SkipEmptyProjects:         v.GetBool("skip_empty_projects"),
		IncrementalSync:           v.GetBool("incremental_sync"),
		APIDelayMS:                v.GetInt("api_delay"),
		DryRun:                    v.GetBool("dry_run"),
		AgentBaseURL:              v.GetString("agent_base_url"),
		AgentAPIKey:               v.GetString("agent_api_key"),
		AgentModel:                v.GetString("agent_model"),
		AgentEmbedding:            v.GetString("agent_embedding"),
		AgentSyncToolsFromControl: v.GetBool("agent_sync_tools_from_control"),
		AgentSyncToolsForce:       v.GetBool("agent_sync_tools_force"),
		AgentControlName:          v.GetString("agent_control_name"),
		AgentAttachRepoDocs:       v.GetBool("agent_attach_repo_docs"),
		StacksDir:                 v.GetString("stacks_dir"),
		HealthPort:                v.GetInt("health_port"),
	}

	s := &Store{}
	s.current.Store(&cfg)
	return s, nil
}

func clampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > 50 {
		return 50
	}
	return n
}

// Current returns the currently active Config snapshot.
func (s *Store) Current() Config {
	return *s.current.Load()
}

// Update applies a partial update — only SYNC_INTERVAL, MAX_WORKERS,
// SYNC_PARALLEL and DRY_RUN are live-updatable per §6.3's `POST /config` — and
// publishes the new snapshot to every subscriber.
type Update struct {
	SyncIntervalMS *int
	MaxWorkers     *int
	SyncParallel   *bool
	DryRun         *bool
}

// Apply merges an Update into the current Config and broadcasts the result.
func (s *Store) Apply(u Update) Config {
	next := s.Current()
	if u.SyncIntervalMS != nil {
		next.SyncIntervalMS = *u.SyncIntervalMS
	}
	if u.MaxWorkers != nil {
		next.MaxWorkers = clampWorkers(*u.MaxWorkers)
	}
	if u.SyncParallel != nil {
		next.SyncParallel = *u.SyncParallel
	}
	if u.DryRun != nil {
		next.DryRun = *u.DryRun
	}
	s.current.Store(&next)
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
	return next
}

// Watch returns a channel fed with every subsequent Apply result. The
// channel is buffered by one so a slow consumer sees only the latest
// snapshot, never a backlog of superseded ones.
func (s *Store) Watch() <-chan Config {
	ch := make(chan Config, 1)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// SyncInterval returns SyncIntervalMS as a time.Duration, or 0 (meaning
// "disabled") when SyncIntervalMS is 0.
func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMS) * time.Millisecond
}
