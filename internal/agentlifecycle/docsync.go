package agentlifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/triway/triway/internal/agentplatform"
	"github.com/triway/triway/internal/store"
)

// DocSync re-attaches a changed documentation file to its project's
// already-bound agent source. It satisfies internal/events.DocUploader,
// giving a documentation change its own flow independent of the general
// resync a local-store change triggers (§4.12, §2.13).
type DocSync struct {
	Manager *Manager
	Store   *store.Store
}

// UploadDocument reads path and upserts it onto the project's agent source.
// A project with no agent binding yet is not an error: there's nothing to
// attach to until the first full sync pass creates the agent.
func (d *DocSync) UploadDocument(ctx context.Context, projectIdentifier, path string) error {
	binding, err := d.Store.GetAgentBinding(projectIdentifier)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("get agent binding for %s: %w", projectIdentifier, err)
	}
	if binding.SourceID == "" {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read changed document %s: %w", path, err)
	}

	return d.Manager.UpsertProjectFile(ctx, binding.SourceID, agentplatform.File{
		Name:    filepath.Base(path),
		Content: string(content),
	})
}
