package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/triway/triway/internal/config"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single full sync pass and exit",
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
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

	metrics, err := eng.orch.Run(context.Background())
	if err != nil {
		return fmt.Errorf("sync run failed: %w", err)
	}

	fmt.Printf("projects processed: %d\n", metrics.ProjectsProcessed)
	fmt.Printf("projects failed:    %d\n", metrics.ProjectsFailed)
	fmt.Printf("issues synced:      %d\n", metrics.IssuesSynced)
	if len(metrics.Divergences) > 0 {
		fmt.Println("divergences:")
		for _, d := range metrics.Divergences {
			fmt.Println("  -", d)
		}
	}
	if metrics.ProjectsFailed > 0 {
		for project, errMsg := range metrics.Errors {
			fmt.Printf("  %s: %s\n", project, errMsg)
		}
	}
	return nil
}
