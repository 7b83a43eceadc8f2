// Package client talks to the task board API and follows its push channel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	dom "taskboard/internal/domain"
	"taskboard/internal/dto"
)

const apiPrefix = "api/v1"

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusNotFound:
		return target == dom.ErrNotFound
	case http.StatusUnauthorized:
		return target == dom.ErrUnauthorized
	case http.StatusBadRequest:
		return target == dom.ErrValidation
	}
	return false
}

type Client struct {
	base *url.URL
	http *http.Client

	mu    sync.RWMutex
	token string
}

// New returns a client for the server at baseURL, e.g. "http://localhost:8080".
// A nil httpClient means http.DefaultClient.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient}, nil
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Login(ctx context.Context, email, password string) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "auth/login", dto.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

func (c *Client) Register(ctx context.Context, username, email, password string) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "auth/register", dto.RegisterRequest{Username: username, Email: email, Password: password}, &out)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "auth/logout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// ListTasks fetches the full board.
func (c *Client) ListTasks(ctx context.Context) ([]dom.Task, int64, error) {
	var out dto.ListTasksResponse
	if err := c.do(ctx, http.MethodGet, "tasks", nil, &out); err != nil {
		return nil, 0, err
	}
	tasks := make([]dom.Task, len(out.Tasks))
	for i, r := range out.Tasks {
		tasks[i] = r.Task()
	}
	return tasks, out.WorkspaceID, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]dom.UserRef, error) {
	var out []dto.UserResponse
	if err := c.do(ctx, http.MethodGet, "users", nil, &out); err != nil {
		return nil, err
	}
	refs := make([]dom.UserRef, len(out))
	for i, u := range out {
		refs[i] = dom.UserRef{ID: u.ID, Username: u.Username}
	}
	return refs, nil
}

// NewTask is the body of a create call. Empty Status means todo.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	AssigneeID  *int64 `json:"assigned_to,omitempty"`
}

func (c *Client) CreateTask(ctx context.Context, in NewTask) (dom.Task, error) {
	var out dto.TaskResponse
	if err := c.do(ctx, http.MethodPost, "tasks", in, &out); err != nil {
		return dom.Task{}, err
	}
	return out.Task(), nil
}

// UpdateTask sends only the fields set in patch. An AssignedTo with a nil
// UserID clears the assignee.
func (c *Client) UpdateTask(ctx context.Context, id string, patch dom.TaskPatch) (dom.Task, error) {
	body := make(map[string]any, 4)
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Description != nil {
		body["description"] = *patch.Description
	}
	if patch.Status != nil {
		body["status"] = string(*patch.Status)
	}
	if patch.AssignedTo != nil {
		body["assigned_to"] = patch.AssignedTo.UserID
	}
	var out dto.TaskResponse
	if err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id), body, &out); err != nil {
		return dom.Task{}, err
	}
	return out.Task(), nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) endpoint(path string) *url.URL {
	return c.base.JoinPath(apiPrefix, path)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path).String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if t := c.Token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: payload.Error}
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	return errors.Is(err, dom.ErrUnauthorized)
}
