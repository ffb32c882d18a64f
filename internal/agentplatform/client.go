package agentplatform

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/triway/triway/internal/httpx"
)

// Client talks to the agent platform's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      httpx.RetryConfig
	cache      *BlockCache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetryConfig overrides the default retry budget.
func WithRetryConfig(cfg httpx.RetryConfig) Option {
	return func(cl *Client) { cl.retry = cfg }
}

// WithBlockCache supplies a shared BlockCache instead of a private one, so
// multiple Client instances (or a restarted orchestrator pass) can share
// content-hash state.
func WithBlockCache(c *BlockCache) Option {
	return func(cl *Client) { cl.cache = c }
}

// New builds an agent platform Client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      httpx.DefaultRetryConfig(),
		cache:      NewBlockCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func classify(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retriable()
	}
	return false
}

func contentHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// sleepTimeSuffix marks an agent as a sleep-time companion rather than a
// primary. It is duplicated from internal/agentlifecycle so this package
// doesn't import its own caller; the two must stay in sync (§3.2, §4.8).
const sleepTimeSuffix = "-sleeptime"

func isSleepTime(name string) bool {
	return len(name) > len(sleepTimeSuffix) && name[len(name)-len(sleepTimeSuffix):] == sleepTimeSuffix
}

// ListAgentsOptions carries every query parameter the agent ensure protocol
// and general listing calls may need (§4.6: "all calls preserve query
// parameters end-to-end").
type ListAgentsOptions struct {
	Tags         []string
	MatchAllTags bool
	Limit        int
	Offset       int
	Include      []string
	Order        string
}

func (o ListAgentsOptions) queryString() string {
	q := url.Values{}
	for _, t := range o.Tags {
		q.Add("tags", t)
	}
	if o.MatchAllTags {
		q.Set("match_all_tags", "true")
	}
	if o.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", o.Offset))
	}
	for _, inc := range o.Include {
		q.Add("include", inc)
	}
	if o.Order != "" {
		q.Set("order", o.Order)
	}
	return q.Encode()
}

// EnsureAgent implements the Agent Lifecycle Manager's ensure protocol
// (§4.8) in full:
//  1. If boundAgentID is non-empty and it still resolves to an agent whose
//     name is not sleep-time-suffixed, that agent is used as-is.
//  2. Otherwise the platform is queried by tags with match_all_tags=true,
//     narrowed to exact-name matches. If more than one primary survives,
//     the bound one (or, absent that, the most recently created) is kept
//     and the rest are deleted.
//  3. Otherwise a new agent is created with the canonical name and tag set.
//
// The returned bool reports whether step 1 found a stale sleep-time-bound
// agent, i.e. scenario 5's "sleep-time rescue" — the caller is expected to
// discard and replace its stored binding when true.
func (c *Client) EnsureAgent(ctx context.Context, boundAgentID, name, model string, tags, tools []string) (agent Agent, rescued bool, err error) {
	if boundAgentID != "" {
		bound, getErr := c.GetAgent(ctx, boundAgentID)
		if getErr == nil {
			if !isSleepTime(bound.Name) {
				return bound, false, nil
			}
			rescued = true
		}
	}

	candidates, err := c.ListAgentsFiltered(ctx, ListAgentsOptions{Tags: tags, MatchAllTags: true})
	if err != nil {
		return Agent{}, rescued, err
	}

	var matches []Agent
	for _, a := range candidates {
		if a.Name == name && !isSleepTime(a.Name) {
			matches = append(matches, a)
		}
	}

	if len(matches) > 0 {
		keep := matches[0]
		for _, m := range matches {
			if m.ID == boundAgentID {
				keep = m
				break
			}
			if m.CreatedAt.After(keep.CreatedAt) {
				keep = m
			}
		}
		for _, m := range matches {
			if m.ID == keep.ID {
				continue
			}
			if delErr := c.DeleteAgent(ctx, m.ID); delErr != nil {
				return Agent{}, rescued, fmt.Errorf("delete duplicate agent %s: %w", m.ID, delErr)
			}
		}
		return keep, rescued, nil
	}

	var out Agent
	err = httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodPost, "/v1/agents", Agent{Name: name, Model: model, Tools: tools, Tags: tags}, &out, "EnsureAgent")
	})
	return out, rescued, err
}

// GetAgent retrieves a single agent by ID.
func (c *Client) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	var out Agent
	err := httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodGet, "/v1/agents/"+url.PathEscape(agentID), nil, &out, "GetAgent")
	})
	return out, err
}

// ListAgents returns every agent on the platform, with no query filter.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	return c.ListAgentsFiltered(ctx, ListAgentsOptions{})
}

// ListAgentsFiltered returns agents matching opts, preserving every
// recognized query parameter end-to-end (§4.6, §6.4).
func (c *Client) ListAgentsFiltered(ctx context.Context, opts ListAgentsOptions) ([]Agent, error) {
	path := "/v1/agents"
	if qs := opts.queryString(); qs != "" {
		path += "?" + qs
	}
	var out []Agent
	err := httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodGet, path, nil, &out, "ListAgentsFiltered")
	})
	return out, err
}

// CheckTagFilterHonored is the startup self-check §4.6/§6.4 require: it
// verifies that a tag-filtered listing actually narrows the result set
// rather than silently ignoring the query parameters. It is a no-op (not an
// error) when there are no agents, or none carry tags, to check against.
func (c *Client) CheckTagFilterHonored(ctx context.Context) error {
	all, err := c.ListAgentsFiltered(ctx, ListAgentsOptions{})
	if err != nil {
		return fmt.Errorf("check tag filter: list all agents: %w", err)
	}
	if len(all) == 0 {
		return nil
	}

	var sampleTag string
	for _, a := range all {
		if len(a.Tags) > 0 {
			sampleTag = a.Tags[0]
			break
		}
	}
	if sampleTag == "" {
		return nil
	}

	filtered, err := c.ListAgentsFiltered(ctx, ListAgentsOptions{Tags: []string{sampleTag}, MatchAllTags: true})
	if err != nil {
		return fmt.Errorf("check tag filter: list filtered agents: %w", err)
	}
	if len(filtered) > len(all) {
		return fmt.Errorf("check tag filter: tag-filtered listing returned %d agents, more than the unfiltered %d", len(filtered), len(all))
	}
	for _, a := range filtered {
		if !hasTag(a.Tags, sampleTag) {
			return fmt.Errorf("check tag filter: agent %s in filtered result is missing tag %q", a.ID, sampleTag)
		}
	}
	return nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// RenameAgent renames an agent in place, used when a project's identifier
// or prefix changes without the underlying agent needing to be recreated.
func (c *Client) RenameAgent(ctx context.Context, agentID, newName string) error {
	return httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodPatch, "/v1/agents/"+url.PathEscape(agentID), map[string]string{"name": newName}, nil, "RenameAgent")
	})
}

// UpsertBlock writes a memory block's value only if it differs from the
// last value this Client wrote, determined by comparing content hashes
// rather than re-fetching the block from the platform (§4.6/§4.7). It
// returns whether a network write actually happened.
func (c *Client) UpsertBlock(ctx context.Context, agentID string, block MemoryBlock) (wrote bool, err error) {
	hash := contentHash(block.Value)
	if cached, ok := c.cache.Get(agentID, block.Label); ok && cached == hash {
		return false, nil
	}

	err = httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodPut, "/v1/agents/"+url.PathEscape(agentID)+"/memory/"+url.PathEscape(block.Label), block, nil, "UpsertBlock")
	})
	if err != nil {
		return false, err
	}
	c.cache.Set(agentID, block.Label, hash)
	return true, nil
}

// EnsureFolder creates a folder under an agent; on a 409 conflict it fetches
// the existing folder of that name instead (§4.8).
func (c *Client) EnsureFolder(ctx context.Context, agentID, name string) (Folder, error) {
	var out Folder
	err := httpx.Do(ctx, c.retry, classify, func() error {
		err := c.do(ctx, http.MethodPost, "/v1/agents/"+url.PathEscape(agentID)+"/folders", Folder{Name: name}, &out, "EnsureFolder")
		var ae *Error
		if errors.As(err, &ae) && ae.Kind == KindConflict {
			return c.do(ctx, http.MethodGet, "/v1/agents/"+url.PathEscape(agentID)+"/folders/"+url.QueryEscape(name), nil, &out, "EnsureFolder")
		}
		return err
	})
	return out, err
}

// EnsureSource finds a source by name under a folder or creates it.
func (c *Client) EnsureSource(ctx context.Context, folderID, name string) (Source, error) {
	var out Source
	err := httpx.Do(ctx, c.retry, classify, func() error {
		err := c.do(ctx, http.MethodPost, "/v1/folders/"+url.PathEscape(folderID)+"/sources", Source{Name: name}, &out, "EnsureSource")
		var ae *Error
		if errors.As(err, &ae) && ae.Kind == KindConflict {
			return c.do(ctx, http.MethodGet, "/v1/folders/"+url.PathEscape(folderID)+"/sources/"+url.QueryEscape(name), nil, &out, "EnsureSource")
		}
		return err
	})
	return out, err
}

// UpsertFile writes a file's content to a source, replacing any existing
// file of the same name.
func (c *Client) UpsertFile(ctx context.Context, sourceID string, file File) error {
	return httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodPut, "/v1/sources/"+url.PathEscape(sourceID)+"/files/"+url.QueryEscape(file.Name), file, nil, "UpsertFile")
	})
}

// SyncTools reconciles an agent's tool list against desired, either
// additively (never removing a tool outside desired) or by force (making
// the list exactly desired).
func (c *Client) SyncTools(ctx context.Context, agentID string, desired []string, mode ToolSyncMode) error {
	body := map[string]any{"tools": desired, "mode": "additive"}
	if mode == ToolSyncForce {
		body["mode"] = "force"
	}
	return httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodPost, "/v1/agents/"+url.PathEscape(agentID)+"/tools/sync", body, nil, "SyncTools")
	})
}

// BlockHashes returns every memory block content hash currently cached for
// an agent, for persisting into the State Store's agent_bindings.block_hashes.
func (c *Client) BlockHashes(agentID string) map[string]string {
	return c.cache.Snapshot(agentID)
}

// DeleteAgent removes an agent entirely, used only by the resurrection
// protocol when a stale agent must be replaced rather than reused (§4.8).
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	return httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodDelete, "/v1/agents/"+url.PathEscape(agentID), nil, nil, "DeleteAgent")
	})
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, op string) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return newErr(KindParse, op, 0, fmt.Errorf("encode request body: %w", err))
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return newErr(KindNetwork, op, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return newErr(KindTimeout, op, 0, err)
		}
		return newErr(KindNetwork, op, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return newErr(KindNetwork, op, resp.StatusCode, fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode >= 400 {
		return newErr(KindHTTP, op, resp.StatusCode, fmt.Errorf("%s", string(respBody)))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return newErr(KindParse, op, resp.StatusCode, fmt.Errorf("decode response body: %w", err))
	}
	return nil
}
