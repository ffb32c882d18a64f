package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/triway/triway/internal/httpx"
)

// Client talks to the issue tracker's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      httpx.RetryConfig
}

// Option configures a Client beyond its required base URL and API key.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client, normally supplied by an
// httpx.Pool so the tracker shares one keep-alive transport with its
// callers across the process lifetime.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetryConfig overrides the default retry budget.
func WithRetryConfig(cfg httpx.RetryConfig) Option {
	return func(cl *Client) { cl.retry = cfg }
}

// New builds a tracker Client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      httpx.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func classify(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Retriable()
	}
	return false
}

// ListProjects returns every project known to the tracker.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	var out []ProjectSummary
	err := httpx.Do(ctx, c.retry, classify, func() error {
		var err error
		out, err = c.listProjectsOnce(ctx)
		return err
	})
	return out, err
}

func (c *Client) listProjectsOnce(ctx context.Context) ([]ProjectSummary, error) {
	var out []ProjectSummary
	if err := c.do(ctx, http.MethodGet, "/v1/projects", nil, &out, "ListProjects"); err != nil {
		return nil, err
	}
	return out, nil
}

// ListIssues returns every issue in a project, optionally narrowed by
// ListIssuesOptions.Since.
func (c *Client) ListIssues(ctx context.Context, projectIdentifier string, opts ListIssuesOptions) ([]Issue, error) {
	path := fmt.Sprintf("/v1/projects/%s/issues", url.PathEscape(projectIdentifier))
	if opts.Since != nil {
		path += "?since=" + url.QueryEscape(opts.Since.UTC().Format(time.RFC3339))
	}

	var out []Issue
	err := httpx.Do(ctx, c.retry, classify, func() error {
		var issues []Issue
		if err := c.do(ctx, http.MethodGet, path, nil, &issues, "ListIssues"); err != nil {
			return err
		}
		out = issues
		return nil
	})
	return out, err
}

// ListIssueIdentifiers returns just the identifiers of every issue in a
// project, for cheap tombstone detection on steady-state passes.
func (c *Client) ListIssueIdentifiers(ctx context.Context, projectIdentifier string) ([]string, error) {
	issues, err := c.ListIssues(ctx, projectIdentifier, ListIssuesOptions{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(issues))
	for _, i := range issues {
		ids = append(ids, i.Identifier)
	}
	return ids, nil
}

// GetIssue fetches a single issue by identifier.
func (c *Client) GetIssue(ctx context.Context, identifier string) (Issue, error) {
	var out Issue
	err := httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodGet, "/v1/issues/"+url.PathEscape(identifier), nil, &out, "GetIssue")
	})
	return out, err
}

// UpdateIssueStatus pushes a new status to the tracker.
func (c *Client) UpdateIssueStatus(ctx context.Context, identifier, status string) error {
	body := map[string]string{"status": status}
	return httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodPatch, "/v1/issues/"+url.PathEscape(identifier), body, nil, "UpdateIssueStatus")
	})
}

// UpdateIssueDescription pushes a new description to the tracker.
func (c *Client) UpdateIssueDescription(ctx context.Context, identifier, description string) error {
	body := map[string]string{"description": description}
	return httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodPatch, "/v1/issues/"+url.PathEscape(identifier), body, nil, "UpdateIssueDescription")
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
		return newErr(KindHTTP, op, resp.StatusCode, fmt.Errorf("%s", bytesToMessage(respBody)))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return newErr(KindParse, op, resp.StatusCode, fmt.Errorf("decode response body: %w", err))
	}
	return nil
}

func bytesToMessage(b []byte) string {
	if len(b) > 500 {
		b = b[:500]
	}
	return strconv.Quote(string(b))
}
