package events

import (
	"context"
	"log/slog"

	"github.com/triway/triway/internal/board"
)

// BoardStream subscribes to the Kanban Board's SSE event stream for a
// project and triggers a sync on every delivered event, letting board
// changes reach the engine immediately instead of waiting on the periodic
// timer.
type BoardStream struct {
	Client *board.Client
	Bus    Bus
	Log    *slog.Logger

	live func()
}

// NewBoardStream builds a BoardStream. onLive is called on every event
// received from the board, marking the stream as live for the scheduler.
func NewBoardStream(client *board.Client, bus Bus, onLive func(), log *slog.Logger) *BoardStream {
	if log == nil {
		log = slog.Default()
	}
	return &BoardStream{Client: client, Bus: bus, Log: log, live: onLive}
}

// Run subscribes to projectID's event stream and blocks until ctx is
// cancelled, reconnecting according to board.Subscribe's own backoff.
func (s *BoardStream) Run(ctx context.Context, projectID string) {
	evCh, errCh := s.Client.Subscribe(ctx, projectID)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evCh:
			if !ok {
				return
			}
			if s.live != nil {
				s.live()
			}
			s.Bus.TriggerSync("board-stream:" + projectID)
			_ = ev
		case err, ok := <-errCh:
			if !ok {
				continue
			}
			s.Log.Warn("board event stream error", "project_id", projectID, "error", err)
		}
	}
}
