package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current state of every tracked project",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	log := newLogger()

	st, closeStore, err := openStore(log)
	if err != nil {
		return err
	}
	defer closeStore()

	projects, err := st.ListProjects()
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Println("no projects tracked yet")
		return nil
	}

	fmt.Printf("%-12s %-8s %-10s %s\n", "PROJECT", "ISSUES", "STATE", "LAST SYNC")
	for _, p := range projects {
		lastSync := "never"
		if p.LastSyncAt != nil {
			lastSync = p.LastSyncAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-12s %-8d %-10s %s\n", p.Identifier, p.IssueCount, p.State, lastSync)
	}

	runs, err := st.RecentSyncRuns(5)
	if err != nil {
		return fmt.Errorf("recent sync runs: %w", err)
	}
	if len(runs) > 0 {
		fmt.Println("\nrecent sync runs:")
		for _, r := range runs {
			fmt.Printf("  #%d %s\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}
