package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/triway/triway/internal/agentlifecycle"
	"github.com/triway/triway/internal/api"
	"github.com/triway/triway/internal/config"
	"github.com/triway/triway/internal/controller"
	"github.com/triway/triway/internal/events"
	"github.com/triway/triway/internal/orchestrator"
	"github.com/triway/triway/internal/scheduler"
	"github.com/triway/triway/internal/store"
	"github.com/triway/triway/internal/watch"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync engine continuously, with the control-plane HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "control-plane HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfgStore, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, closeStore, err := openStore(log)
	if err != nil {
		return err
	}
	defer closeStore()

	eng := buildEngine(cfgStore, st, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var apiServer *api.Server
	runFunc := func(ctx context.Context) error {
		start := time.Now()
		metrics, err := eng.orch.Run(ctx)
		api.SyncRunDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			api.SyncRunsTotal.WithLabelValues("failure").Inc()
		} else {
			api.SyncRunsTotal.WithLabelValues("success").Inc()
			api.ProjectsProcessedTotal.WithLabelValues("success").Add(float64(metrics.ProjectsProcessed))
			api.ProjectsProcessedTotal.WithLabelValues("failure").Add(float64(metrics.ProjectsFailed))
			for _, d := range metrics.Divergences {
				if _, reason, ok := strings.Cut(d, ": "); ok {
					api.DivergencesTotal.WithLabelValues(reason).Inc()
				}
			}
		}
		if apiServer != nil {
			apiServer.RecordSync(time.Now())
		}
		if err != nil {
			return err
		}
		log.Info("sync run complete",
			"duration", time.Since(start),
			"projects_processed", metrics.ProjectsProcessed,
			"projects_failed", metrics.ProjectsFailed,
			"issues_synced", metrics.IssuesSynced,
		)
		return nil
	}

	ctrl := controller.New(controller.DefaultConfig(), runFunc, log)

	webhookHandler := events.NewWebhookHandler(os.Getenv("TRACKER_WEBHOOK_SECRET"), ctrl, nil, log)
	workflowHandler := events.NewWorkflowHandler(ctrl, log)

	apiServer = api.New(ctrl, cfgStore, st, webhookHandler, workflowHandler, log)

	sched := scheduler.New(func() (int, bool) {
		cfg := cfgStore.Current()
		return cfg.SyncIntervalMS, false
	}, func(source string) { ctrl.TriggerSync(source) }, func(ctx context.Context) error {
		return runReconciliation(ctx, eng, st, log)
	}, log)

	go sched.Run(ctx)

	go runBoardStreams(ctx, eng, ctrl, log)
	go runFileWatch(ctx, eng, ctrl, st, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start(serveAddr)
	}()

	ctrl.TriggerSync("startup")

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			log.Error("control-plane server exited", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return apiServer.Shutdown(shutdownCtx)
}

// runReconciliation is the hourly timer's ReconcileFunc: it runs a full
// sync pass, builds a DivergenceReport from the resulting Metrics, and
// persists it on the run's sync_runs row so GET /divergence can serve it
// back out (§4.13, §3 supplemented features).
func runReconciliation(ctx context.Context, eng *engine, st *store.Store, log *slog.Logger) error {
	start := time.Now()
	runID, insertErr := st.InsertSyncRun(store.SyncRun{StartedAt: start})
	if insertErr != nil {
		log.Error("insert sync run failed", "error", insertErr)
	}

	metrics, runErr := eng.orch.Run(ctx)
	if metrics == nil {
		return runErr
	}

	report := orchestrator.BuildDivergenceReport(metrics)
	divergenceJSON, err := json.Marshal(report)
	if err != nil {
		log.Error("marshal divergence report failed", "error", err)
		return runErr
	}
	errorsJSON, _ := json.Marshal(metrics.Errors)

	if insertErr == nil {
		completed := time.Now()
		if err := st.CompleteSyncRun(runID, store.SyncRun{
			CompletedAt:       &completed,
			ProjectsProcessed: metrics.ProjectsProcessed,
			ProjectsFailed:    metrics.ProjectsFailed,
			IssuesSynced:      metrics.IssuesSynced,
			ErrorsJSON:        string(errorsJSON),
			DurationMS:        completed.Sub(start).Milliseconds(),
			DivergenceJSON:    string(divergenceJSON),
		}); err != nil {
			log.Error("complete sync run failed", "error", err)
		}
	}
	return runErr
}

// runBoardStreams subscribes to every known project's board SSE event
// stream, letting board-side changes reach the engine without waiting on
// the periodic timer (§4.12). Projects created after startup are picked up
// on the next process restart; there is no dedicated webhook for
// project creation to react to sooner.
func runBoardStreams(ctx context.Context, eng *engine, ctrl *controller.Controller, log *slog.Logger) {
	projects, err := eng.tracker.ListProjects(ctx)
	if err != nil {
		log.Error("list projects for board stream subscription failed", "error", err)
		return
	}
	stream := events.NewBoardStream(eng.board, ctrl, nil, log)
	for _, p := range projects {
		go stream.Run(ctx, p.Identifier)
	}
}

// runFileWatch watches every known project's local-store directory for
// JSONL and documentation changes, routing the two kinds to independent
// flows: a local-store change triggers a general resync, a documentation
// change goes straight to the agent documentation upload flow (§4.12,
// §2.13, §4.5, §4.8).
func runFileWatch(ctx context.Context, eng *engine, ctrl *controller.Controller, st *store.Store, log *slog.Logger) {
	if eng.cfg.StacksDir == "" {
		return
	}

	w, err := watch.New(watch.DefaultConfig(), log)
	if err != nil {
		log.Error("create file watcher failed", "error", err)
		return
	}

	projects, err := eng.tracker.ListProjects(ctx)
	if err != nil {
		log.Error("list projects for file watch failed", "error", err)
		return
	}
	for _, p := range projects {
		dir := eng.cfg.StacksDir + "/" + p.Identifier
		if err := w.Add(dir, p.Identifier); err != nil {
			log.Warn("watch project directory failed", "project", p.Identifier, "dir", dir, "error", err)
		}
	}

	docs := &agentlifecycle.DocSync{Manager: eng.lifecycle, Store: st}
	fw := events.NewFileWatch(w, ctrl, docs, log)
	go w.Run(ctx)
	fw.Run(ctx)
}
