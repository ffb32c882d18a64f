package events

import (
	"context"
	"log/slog"

	"github.com/triway/triway/internal/watch"
)

// DocUploader re-attaches a changed documentation file to a project's agent
// source. It is the independent flow a KindDoc event takes, distinct from
// the general sync trigger a KindStore event causes (§4.12, §2.13).
type DocUploader interface {
	UploadDocument(ctx context.Context, projectIdentifier, path string) error
}

// FileWatch relays debounced local-store/documentation change notifications
// from internal/watch, splitting them onto two independent downstream
// flows: a local-store change triggers a general resync, a documentation
// change goes straight to the agent documentation upload flow.
type FileWatch struct {
	Watcher *watch.Watch
	Bus     Bus
	Docs    DocUploader
	Log     *slog.Logger
}

// NewFileWatch builds a FileWatch over an already-configured Watcher. docs
// may be nil, in which case documentation changes are logged and dropped
// rather than resyncing the whole project.
func NewFileWatch(w *watch.Watch, bus Bus, docs DocUploader, log *slog.Logger) *FileWatch {
	if log == nil {
		log = slog.Default()
	}
	return &FileWatch{Watcher: w, Bus: bus, Docs: docs, Log: log}
}

// Run drains the watcher's event channel until it closes (ctx cancelled).
func (f *FileWatch) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-f.Watcher.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case watch.KindDoc:
				f.handleDoc(ctx, ev)
			default:
				f.Log.Debug("local store change detected", "project", ev.ProjectIdentifier, "path", ev.Path)
				f.Bus.TriggerSync("file-watch:" + ev.ProjectIdentifier)
			}
		}
	}
}

func (f *FileWatch) handleDoc(ctx context.Context, ev watch.Event) {
	f.Log.Debug("documentation change detected", "project", ev.ProjectIdentifier, "path", ev.Path)
	if f.Docs == nil {
		return
	}
	if err := f.Docs.UploadDocument(ctx, ev.ProjectIdentifier, ev.Path); err != nil {
		f.Log.Error("documentation upload failed", "project", ev.ProjectIdentifier, "path", ev.Path, "error", err)
	}
}
