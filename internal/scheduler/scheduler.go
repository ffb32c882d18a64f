// Package scheduler runs the two periodic timers described in §4.13: a
// full-sync timer (default 30s, 0 disables) that triggers the Sync
// Controller, and an hourly full-reconciliation timer that produces a
// divergence report. The full-sync timer rereads its interval from a live
// Config snapshot so a control-endpoint update takes effect without a
// restart; the reconciliation interval is fixed.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Trigger is the subset of the Sync Controller the scheduler needs.
type Trigger func(source string)

// ReconcileFunc runs the hourly exhaustive three-way comparison and
// produces a divergence report; its result is opaque to the scheduler.
type ReconcileFunc func(ctx context.Context) error

// ConfigSnapshot is the live interval the full-sync timer rereads on every
// tick, letting POST /config change cadence without restarting the loop.
type ConfigSnapshot func() (intervalMS int, live bool)

// Scheduler owns both timers. live reports whether the full-sync timer
// should stay paused because a webhook subscription or board SSE stream is
// currently delivering events directly (§4.12: "When the webhook
// subscription is live, periodic polling is disabled").
type Scheduler struct {
	snapshot       ConfigSnapshot
	trigger        Trigger
	reconcile      ReconcileFunc
	reconcileEvery time.Duration
	log            *slog.Logger
}

// New builds a Scheduler.
func New(snapshot ConfigSnapshot, trigger Trigger, reconcile ReconcileFunc, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		snapshot:       snapshot,
		trigger:        trigger,
		reconcile:      reconcile,
		reconcileEvery: time.Hour,
		log:            log,
	}
}

// Run blocks until ctx is cancelled, driving both timers.
func (s *Scheduler) Run(ctx context.Context) {
	go s.runFullSyncTimer(ctx)
	go s.runReconciliationTimer(ctx)
	<-ctx.Done()
}

// runFullSyncTimer re-reads the interval every tick rather than creating a
// fixed-period ticker once, since SYNC_INTERVAL is live-updatable and a
// ticker's period cannot be changed after construction.
func (s *Scheduler) runFullSyncTimer(ctx context.Context) {
	for {
		intervalMS, live := s.snapshot()
		if live {
			// An event stream is delivering triggers directly; poll
			// again shortly to notice when it drops.
			if !sleep(ctx, 5*time.Second) {
				return
			}
			continue
		}
		if intervalMS <= 0 {
			// SYNC_INTERVAL=0 disables periodic polling entirely; still
			// re-check periodically in case it's turned back on live.
			if !sleep(ctx, 5*time.Second) {
				return
			}
			continue
		}
		if !sleep(ctx, time.Duration(intervalMS)*time.Millisecond) {
			return
		}
		s.log.Debug("scheduler firing periodic full sync")
		s.trigger("scheduler-full-sync")
	}
}

func (s *Scheduler) runReconciliationTimer(ctx context.Context) {
	ticker := time.NewTicker(s.reconcileEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.log.Info("scheduler running hourly reconciliation")
			if err := s.reconcile(ctx); err != nil {
				s.log.Error("hourly reconciliation failed", "error", err)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
