package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFullSyncTimerFiresAtConfiguredInterval(t *testing.T) {
	var triggers int32
	snapshot := func() (int, bool) { return 10, false }
	trigger := func(source string) { atomic.AddInt32(&triggers, 1) }
	reconcile := func(ctx context.Context) error { return nil }

	s := New(snapshot, trigger, reconcile, nil)
	s.reconcileEvery = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.GreaterOrEqual(t, atomic.LoadInt32(&triggers), int32(3))
}

func TestFullSyncTimerPausesWhileLive(t *testing.T) {
	var triggers int32
	snapshot := func() (int, bool) { return 10, true }
	trigger := func(source string) { atomic.AddInt32(&triggers, 1) }
	reconcile := func(ctx context.Context) error { return nil }

	s := New(snapshot, trigger, reconcile, nil)
	s.reconcileEvery = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.Equal(t, int32(0), atomic.LoadInt32(&triggers))
}

func TestFullSyncTimerDisabledAtZeroInterval(t *testing.T) {
	var triggers int32
	snapshot := func() (int, bool) { return 0, false }
	trigger := func(source string) { atomic.AddInt32(&triggers, 1) }
	reconcile := func(ctx context.Context) error { return nil }

	s := New(snapshot, trigger, reconcile, nil)
	s.reconcileEvery = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.Equal(t, int32(0), atomic.LoadInt32(&triggers))
}

func TestReconciliationTimerFiresOnItsOwnSchedule(t *testing.T) {
	var reconciles int32
	snapshot := func() (int, bool) { return 0, true } // disable the full-sync side entirely
	trigger := func(source string) {}
	reconcile := func(ctx context.Context) error {
		atomic.AddInt32(&reconciles, 1)
		return nil
	}

	s := New(snapshot, trigger, reconcile, nil)
	s.reconcileEvery = 15 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.GreaterOrEqual(t, atomic.LoadInt32(&reconciles), int32(3))
}

func TestReconciliationErrorDoesNotStopTheTimer(t *testing.T) {
	var reconciles int32
	snapshot := func() (int, bool) { return 0, true }
	trigger := func(source string) {}
	reconcile := func(ctx context.Context) error {
		atomic.AddInt32(&reconciles, 1)
		return context.DeadlineExceeded
	}

	s := New(snapshot, trigger, reconcile, nil)
	s.reconcileEvery = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.GreaterOrEqual(t, atomic.LoadInt32(&reconciles), int32(3))
}
