package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveNoConflictWhenStatusesMatch(t *testing.T) {
	now := time.Now()
	out := Resolve(DefaultConfig(), now,
		Observation{Source: SourceTracker, Status: "Done", ModifiedAt: now},
		Observation{Source: SourceBoard, Status: "Done", ModifiedAt: now},
		"Done", nil)
	require.Equal(t, "no-conflict", out.Reason)
	require.False(t, out.Suppressed)
}

func TestResolveStaleBoardTimestampFallsThroughToTracker(t *testing.T) {
	now := time.Now()
	out := Resolve(DefaultConfig(), now,
		Observation{Source: SourceTracker, Status: "Done", ModifiedAt: now.Add(-5 * time.Minute)},
		Observation{Source: SourceBoard, Status: "todo", ModifiedAt: now.Add(-10 * 24 * time.Hour)},
		"todo", nil)
	require.Equal(t, "freshness-gate", out.Reason)
	require.Equal(t, "Done", out.Status)
}

func TestResolveTrackerAuthoritativeWithinWindow(t *testing.T) {
	now := time.Now()
	out := Resolve(DefaultConfig(), now,
		Observation{Source: SourceTracker, Status: "In Progress", ModifiedAt: now},
		Observation{Source: SourceBoard, Status: "done", ModifiedAt: now.Add(10 * time.Second)},
		"In Progress", nil)
	require.Equal(t, "tracker-authoritative", out.Reason)
	require.Equal(t, "In Progress", out.Status)
}

func TestResolveLastWriterWinsOutsideWindow(t *testing.T) {
	now := time.Now()
	out := Resolve(DefaultConfig(), now,
		Observation{Source: SourceTracker, Status: "In Progress", ModifiedAt: now.Add(-time.Hour)},
		Observation{Source: SourceBoard, Status: "done", ModifiedAt: now},
		"In Progress", nil)
	require.Equal(t, "last-writer-wins", out.Reason)
	require.Equal(t, "done", out.Status)
}

func TestResolveTiesGoToTracker(t *testing.T) {
	now := time.Now()
	sameTime := now.Add(-time.Hour)
	out := Resolve(DefaultConfig(), now,
		Observation{Source: SourceTracker, Status: "Done", ModifiedAt: sameTime},
		Observation{Source: SourceBoard, Status: "todo", ModifiedAt: sameTime},
		"todo", nil)
	require.Equal(t, "Done", out.Status)
}

func TestResolveSuppressesFlap(t *testing.T) {
	now := time.Now()
	prior := &PriorPass{FromStatus: "done", ToStatus: "todo"}
	out := Resolve(DefaultConfig(), now,
		Observation{Source: SourceTracker, Status: "done", ModifiedAt: now},
		Observation{Source: SourceBoard, Status: "todo", ModifiedAt: now.Add(-time.Hour)},
		"todo", prior)
	require.True(t, out.Suppressed)
	require.Equal(t, "flap-suppressed", out.Reason)
}
