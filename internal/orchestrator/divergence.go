package orchestrator

import "time"

// DivergenceReport is the structured output of the hourly reconciliation
// timer (§4.13): a snapshot of what the pass found, persisted alongside its
// sync_runs row and served back out at GET /divergence.
type DivergenceReport struct {
	GeneratedAt       time.Time         `json:"generated_at"`
	ProjectsProcessed int               `json:"projects_processed"`
	ProjectsFailed    int               `json:"projects_failed"`
	IssuesSynced      int               `json:"issues_synced"`
	Divergences       []string          `json:"divergences"`
	Errors            map[string]string `json:"errors,omitempty"`
}

// BuildDivergenceReport snapshots a completed run's Metrics into a
// DivergenceReport. Divergences and Errors are copied rather than aliased so
// the report is safe to marshal after the run's Metrics is discarded.
func BuildDivergenceReport(m *Metrics) DivergenceReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	divergences := make([]string, len(m.Divergences))
	copy(divergences, m.Divergences)

	var errs map[string]string
	if len(m.Errors) > 0 {
		errs = make(map[string]string, len(m.Errors))
		for k, v := range m.Errors {
			errs[k] = v
		}
	}

	return DivergenceReport{
		GeneratedAt:       time.Now(),
		ProjectsProcessed: m.ProjectsProcessed,
		ProjectsFailed:    m.ProjectsFailed,
		IssuesSynced:      m.IssuesSynced,
		Divergences:       divergences,
		Errors:            errs,
	}
}
