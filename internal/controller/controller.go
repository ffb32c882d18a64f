// Package controller implements the Sync Controller: a single global
// `sync_in_progress` flag, a coalescing debounce on bursts of triggers, a
// `resync_requested` flag for triggers that arrive mid-run, and a hard
// per-run timeout (§4.11).
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RunFunc executes one sync pass and returns an error if the pass failed
// outright (not per-project errors, which the orchestrator already
// attributes in its own metrics).
type RunFunc func(ctx context.Context) error

// Config bounds the Controller's timers.
type Config struct {
	Debounce    time.Duration
	HardTimeout time.Duration
}

// DefaultConfig matches §4.11/§5's stated defaults.
func DefaultConfig() Config {
	return Config{Debounce: 500 * time.Millisecond, HardTimeout: 900 * time.Second}
}

// Controller serializes sync execution globally: trigger_sync is the only
// operation it exposes.
type Controller struct {
	cfg Config
	run RunFunc
	log *slog.Logger

	mu               sync.Mutex
	inProgress       bool
	resyncRequested  bool
	debounceTimer    *time.Timer
	pendingTriggered bool
}

// New builds a Controller that calls run for each triggered sync pass.
func New(cfg Config, run RunFunc, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{cfg: cfg, run: run, log: log}
}

// TriggerSync implements trigger_sync(source: tag). A burst of triggers
// within the debounce window collapses into a single run; a trigger
// arriving inside that window is reported as Denied (HTTP 409) since it
// did not schedule anything new. If a run is already in progress, this
// sets resync_requested and reports Accepted: the current run will
// re-trigger itself on completion.
func (c *Controller) TriggerSync(source string) TriggerResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inProgress {
		c.resyncRequested = true
		c.log.Debug("sync already in progress, requested resync", "source", source)
		return Accepted
	}

	if c.debounceTimer != nil {
		c.log.Debug("sync trigger denied, inside debounce window", "source", source)
		return Denied
	}

	c.pendingTriggered = true
	c.debounceTimer = time.AfterFunc(c.cfg.Debounce, c.fireDebounced)
	return Accepted
}

// TriggerResult is what TriggerSync reports, mapped onto the HTTP surface's
// 202/409 split (§6.3).
type TriggerResult int

const (
	Accepted TriggerResult = iota
	Denied
)

func (c *Controller) fireDebounced() {
	c.mu.Lock()
	c.debounceTimer = nil
	shouldRun := c.pendingTriggered
	c.pendingTriggered = false
	c.mu.Unlock()

	if shouldRun {
		c.runOnce()
	}
}

func (c *Controller) runOnce() {
	c.mu.Lock()
	c.inProgress = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HardTimeout)
	defer cancel()

	err := c.run(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.log.Error("sync run hit hard timeout, partial run recorded", "error", err)
		} else {
			c.log.Error("sync run failed", "error", err)
		}
	}

	c.mu.Lock()
	c.inProgress = false
	resync := c.resyncRequested
	c.resyncRequested = false
	// A timed-out run discards any resync requested during it, so a
	// persistently slow upstream can't wind the controller into a
	// runaway back-to-back loop.
	if ctx.Err() == context.DeadlineExceeded {
		resync = false
	}
	c.mu.Unlock()

	if resync {
		c.TriggerSync("resync-requested")
	}
}

// InProgress reports whether a sync run is currently executing, for the
// health endpoint.
func (c *Controller) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress
}
