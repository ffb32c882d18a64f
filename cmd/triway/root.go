// Command triway runs the multi-source sync engine reconciling a tracker
// project, a kanban board, a local git-committed issue store, and an agent
// platform binding.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/triway/triway/internal/agentlifecycle"
	"github.com/triway/triway/internal/agentplatform"
	"github.com/triway/triway/internal/board"
	"github.com/triway/triway/internal/config"
	"github.com/triway/triway/internal/httpx"
	"github.com/triway/triway/internal/localstore"
	"github.com/triway/triway/internal/orchestrator"
	"github.com/triway/triway/internal/projectlock"
	"github.com/triway/triway/internal/store"
	"github.com/triway/triway/internal/tracker"
)

var (
	version   = "dev"
	gitCommit = "unknown"

	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "triway",
	Short: "Reconcile a tracker, a kanban board, a local issue store, and an agent platform",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViperEnv)
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "logs/sync-state.db", "state store SQLite database path")
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(serveCmd, syncCmd, statusCmd, configCmd, versionCmd)
}

func initViperEnv() {
	viper.SetEnvPrefix("TRIWAY")
	viper.AutomaticEnv()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("triway %s (commit: %s)\n", version, gitCommit)
		return nil
	},
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// engine bundles the orchestrator with the individual clients serve.go
// needs to wire the event-ingress paths (board stream, file watch) that sit
// alongside it rather than inside it.
type engine struct {
	orch      *orchestrator.Orchestrator
	lifecycle *agentlifecycle.Manager
	board     *board.Client
	tracker   *tracker.Client
	cfg       config.Config
}

// buildEngine wires every client, lifecycle manager, and the orchestrator
// from a loaded Config and an opened state store. Shared by serve/sync.
func buildEngine(cfgStore *config.Store, st *store.Store, log *slog.Logger) *engine {
	cfg := cfgStore.Current()

	pool := httpx.NewPool(60 * time.Second)
	trackerClient := tracker.New(cfg.TrackerAPIURL, os.Getenv("TRACKER_API_KEY"), tracker.WithHTTPClient(pool.Tracker))
	boardClient := board.New(cfg.BoardAPIURL, os.Getenv("BOARD_API_KEY"), board.WithHTTPClient(pool.Board))
	agentsClient := agentplatform.New(cfg.AgentBaseURL, cfg.AgentAPIKey, agentplatform.WithHTTPClient(pool.AgentPlatform))
	lifecycle := agentlifecycle.New(agentsClient, "triway", log)
	locks := projectlock.New()

	if cfg.AgentBaseURL != "" {
		if err := agentsClient.CheckTagFilterHonored(context.Background()); err != nil {
			log.Error("agent platform does not honor tag-filtered agent listing, duplicate reconciliation may misbehave", "error", err)
		}
	}

	localFor := func(projectIdentifier string) *localstore.Adapter {
		if cfg.StacksDir == "" {
			return nil
		}
		return localstore.New("bd", cfg.StacksDir+"/"+projectIdentifier)
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.MaxWorkers = cfg.MaxWorkers
	orchCfg.SkipEmptyProjects = cfg.SkipEmptyProjects
	orchCfg.DryRun = cfg.DryRun
	orchCfg.AgentModel = cfg.AgentModel
	orchCfg.AgentSyncToolsFromControl = cfg.AgentSyncToolsFromControl
	orchCfg.AgentSyncToolsForce = cfg.AgentSyncToolsForce
	orchCfg.AgentControlName = cfg.AgentControlName
	orchCfg.AgentAttachRepoDocs = cfg.AgentAttachRepoDocs

	orch := orchestrator.New(orchCfg, st, trackerClient, boardClient, agentsClient, lifecycle, locks, localFor, log)
	return &engine{orch: orch, lifecycle: lifecycle, board: boardClient, tracker: trackerClient, cfg: cfg}
}

func openStore(log *slog.Logger) (*store.Store, func(), error) {
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open state store: %w", err)
	}
	return store.NewStore(db), func() { _ = db.Close() }, nil
}
