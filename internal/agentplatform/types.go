// Package agentplatform is the typed client for the external agent
// platform: named agents with memory blocks, folders, sources, files, and
// tools, addressed over a Letta-style REST API.
package agentplatform

import "time"

// Agent is one named agent on the platform.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Model     string    `json:"model,omitempty"`
	Tools     []string  `json:"tools,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// MemoryBlock is one labeled block of an agent's core memory.
type MemoryBlock struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Folder is a named grouping of sources attached to an agent.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Source is a named collection of files attached to a folder.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// File is one file uploaded to a source.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
}

// ToolSyncMode controls how SyncTools reconciles an agent's tool list.
type ToolSyncMode int

const (
	// ToolSyncAdditive only adds tools the agent is missing; it never
	// removes a tool the agent already has, even one outside the desired
	// set, so operators can hand-grant extra tools without this system
	// clawing them back on the next pass.
	ToolSyncAdditive ToolSyncMode = iota
	// ToolSyncForce makes the agent's tool list exactly the desired set,
	// removing anything not named.
	ToolSyncForce
)
