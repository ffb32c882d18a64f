package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/triway/triway/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration, as loaded from the environment",
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfgStore, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := cfgStore.Current()

	fmt.Printf("tracker_api_url:              %s\n", cfg.TrackerAPIURL)
	fmt.Printf("board_api_url:                %s\n", cfg.BoardAPIURL)
	fmt.Printf("sync_interval_ms:             %d\n", cfg.SyncIntervalMS)
	fmt.Printf("sync_parallel:                %t\n", cfg.SyncParallel)
	fmt.Printf("max_workers:                  %d\n", cfg.MaxWorkers)
	fmt.Printf("skip_empty_projects:          %t\n", cfg.SkipEmptyProjects)
	fmt.Printf("incremental_sync:             %t\n", cfg.IncrementalSync)
	fmt.Printf("dry_run:                      %t\n", cfg.DryRun)
	fmt.Printf("agent_base_url:               %s\n", cfg.AgentBaseURL)
	fmt.Printf("agent_model:                  %s\n", cfg.AgentModel)
	fmt.Printf("agent_sync_tools_from_control: %t\n", cfg.AgentSyncToolsFromControl)
	fmt.Printf("agent_control_name:           %s\n", cfg.AgentControlName)
	fmt.Printf("stacks_dir:                   %s\n", cfg.StacksDir)
	fmt.Printf("health_port:                  %d\n", cfg.HealthPort)
	return nil
}
