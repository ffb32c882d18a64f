// Package watch wraps fsnotify with per-file debouncing, used to notice
// local-store edits (issues.jsonl changed outside our own writes, e.g. a
// developer editing it in their IDE) and documentation changes worth
// re-attaching to a project's agent (§4.12, §2.13).
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind distinguishes a local-store data change from a documentation change,
// since the two trigger independent downstream flows: the former a general
// resync, the latter a re-attach of the changed file to the project's agent
// (§4.12, §2.13).
type Kind int

const (
	KindStore Kind = iota
	KindDoc
)

// Event is a debounced notification that a path changed, collapsed from
// possibly many underlying fsnotify events into one.
type Event struct {
	ProjectIdentifier string
	Path              string
	Kind              Kind
}

// Config bounds the debounce window applied per watched path.
type Config struct {
	Debounce time.Duration
}

// DefaultConfig matches §4.12's stated default.
func DefaultConfig() Config {
	return Config{Debounce: 2 * time.Second}
}

// Watch is an fsnotify watcher over individually added directories (not
// their subdirectories) that debounces write/create events per-file and
// emits a coalesced Event to Events() after the debounce
// window elapses with no further activity on that file.
type Watch struct {
	cfg     Config
	watcher *fsnotify.Watcher
	events  chan Event
	log     *slog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	project map[string]string // watched dir -> project identifier
}

// New creates a Watch. Call Add to register directories before Run.
func New(cfg Config, log *slog.Logger) (*Watch, error) {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watch{
		cfg:     cfg,
		watcher: w,
		events:  make(chan Event, 64),
		log:     log,
		timers:  make(map[string]*time.Timer),
		project: make(map[string]string),
	}, nil
}

// Add registers a directory (non-recursively; fsnotify does not support
// recursive watches natively, so callers add each project's local-store
// directory individually) to be watched on behalf of projectIdentifier.
func (w *Watch) Add(dir, projectIdentifier string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.mu.Lock()
	w.project[dir] = projectIdentifier
	w.mu.Unlock()
	return nil
}

// Remove stops watching a directory, used when a project is archived.
func (w *Watch) Remove(dir string) error {
	w.mu.Lock()
	delete(w.project, dir)
	w.mu.Unlock()
	return w.watcher.Remove(dir)
}

// Events returns the channel of debounced change notifications.
func (w *Watch) Events() <-chan Event {
	return w.events
}

// Run drains the underlying fsnotify watcher until ctx is cancelled.
func (w *Watch) Run(ctx context.Context) {
	defer w.watcher.Close()
	defer close(w.events)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", "error", err)
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		}
	}
}

// handle filters to writes/creates on files worth reacting to and schedules
// a debounced emission, mirroring the "stop the previous timer, start a new
// one" coalescing pattern rapid successive writes need.
func (w *Watch) handle(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	kind, relevant := classify(ev.Name)
	if !relevant {
		return
	}

	dir := filepath.Dir(ev.Name)
	w.mu.Lock()
	projectIdentifier := w.project[dir]
	if t, ok := w.timers[ev.Name]; ok {
		t.Stop()
	}
	w.timers[ev.Name] = time.AfterFunc(w.cfg.Debounce, func() {
		select {
		case w.events <- Event{ProjectIdentifier: projectIdentifier, Path: ev.Name, Kind: kind}:
		case <-ctx.Done():
		}
		w.mu.Lock()
		delete(w.timers, ev.Name)
		w.mu.Unlock()
	})
	w.mu.Unlock()
}

// classify restricts reactions to the local issue store's JSONL/settings
// file (KindStore) and common documentation formats (KindDoc), so editor
// swap files and unrelated writes in the same directory don't trigger
// anything, and so the two kinds can be routed to independent flows.
func classify(path string) (Kind, bool) {
	base := filepath.Base(path)
	if base == "issues.jsonl" || base == "settings.local.json" {
		return KindStore, true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdx", ".txt", ".rst":
		return KindDoc, true
	}
	return KindStore, false
}
