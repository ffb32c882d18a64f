package board

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/triway/triway/internal/httpx"
)

// Client talks to the kanban board's REST and SSE API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      httpx.RetryConfig
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

// New builds a board Client.
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
	var be *Error
	if errors.As(err, &be) {
		return be.Retriable()
	}
	return false
}

// ListProjects returns every project known to the board.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodGet, "/api/projects", nil, &out, "ListProjects")
	})
	return out, err
}

// CreateProject creates a board-side project.
func (c *Client) CreateProject(ctx context.Context, p Project) (Project, error) {
	var out Project
	err := httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodPost, "/api/projects", p, &out, "CreateProject")
	})
	return out, err
}

// ListTasks returns every task in a project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	var out []Task
	err := httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/tasks", nil, &out, "ListTasks")
	})
	return out, err
}

// CreateTask creates a board-side task.
func (c *Client) CreateTask(ctx context.Context, projectID string, update TaskUpdate) (Task, error) {
	var out Task
	err := httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(projectID)+"/tasks", update, &out, "CreateTask")
	})
	return out, err
}

// UpdateTask replaces a task's full body with update. The board's API only
// accepts whole-resource writes here: there is no PATCH verb for tasks, by
// design (§4.4), so this and BulkUpdateTasks both write tasks through put
// and always issue PUT.
func (c *Client) UpdateTask(ctx context.Context, taskID string, update TaskUpdate) (Task, error) {
	var out Task
	err := httpx.Do(ctx, c.retry, classify, func() error {
		return c.put(ctx, "/api/tasks/"+url.PathEscape(taskID), update, &out, "UpdateTask")
	})
	return out, err
}

// BulkUpdateTasks applies multiple full-replace writes. Each write is still
// a PUT; this only batches the round trips the orchestrator would otherwise
// make one at a time.
func (c *Client) BulkUpdateTasks(ctx context.Context, updates []BulkUpdate) error {
	return httpx.Do(ctx, c.retry, classify, func() error {
		return c.put(ctx, "/api/tasks/bulk", updates, nil, "BulkUpdateTasks")
	})
}

// DeleteTask removes a task from the board.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return httpx.Do(ctx, c.retry, classify, func() error {
		return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(taskID), nil, nil, "DeleteTask")
	})
}

// put is the single call site allowed to issue a PUT, so the whole-resource
// contract (§6.4: never PATCH a task) cannot be bypassed by a future call
// site reaching for the wrong verb.
func (c *Client) put(ctx context.Context, path string, body, out any, op string) error {
	return c.do(ctx, http.MethodPut, path, body, out, op)
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
