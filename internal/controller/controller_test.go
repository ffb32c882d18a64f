package controller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTriggerSyncDebouncesBurst(t *testing.T) {
	var runs int32
	c := New(Config{Debounce: 30 * time.Millisecond, HardTimeout: time.Second}, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}, nil)

	require.Equal(t, Accepted, c.TriggerSync("a"))
	require.Equal(t, Denied, c.TriggerSync("b"))
	require.Equal(t, Denied, c.TriggerSync("c"))

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestTriggerSyncWhileInProgressRequestsResync(t *testing.T) {
	var runs int32
	started := make(chan struct{})
	release := make(chan struct{})

	c := New(Config{Debounce: time.Millisecond, HardTimeout: time.Second}, func(ctx context.Context) error {
		n := atomic.AddInt32(&runs, 1)
		if n == 1 {
			close(started)
			<-release
		}
		return nil
	}, nil)

	require.Equal(t, Accepted, c.TriggerSync("first"))
	<-started
	require.True(t, c.InProgress())
	require.Equal(t, Accepted, c.TriggerSync("second"))

	close(release)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 2 }, time.Second, 5*time.Millisecond)
}

func TestHardTimeoutDiscardsResync(t *testing.T) {
	var runs int32
	started := make(chan struct{}, 1)
	c := New(Config{Debounce: time.Millisecond, HardTimeout: 20 * time.Millisecond}, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}, nil)

	c.TriggerSync("first")
	<-started
	c.TriggerSync("mid-run") // arrives while in progress: sets resync_requested

	// The run times out at 20ms and must discard the pending resync rather
	// than immediately starting a second run.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&runs))
	require.False(t, c.InProgress())
}
