// Package cli provides the HTTP client the taskdeck CLI uses to talk to
// the daemon.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/kabuto-png/taskdeck/internal/config"
)

// Task mirrors the daemon's task representation.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Column      string `json:"column"`
	Position    int    `json:"position"`
	Repo        string `json:"repo,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Agent       string `json:"agent,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// TaskCreateRequest is the body for creating a task.
type TaskCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Column      string `json:"column,omitempty"`
	Repo        string `json:"repo,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Agent       string `json:"agent,omitempty"`
}

// Session mirrors the daemon's session representation.
type Session struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	WorkspaceID string `json:"workspace_id"`
	Agent       string `json:"agent"`
	Branch      string `json:"branch"`
	Running     bool   `json:"running"`
	AttachCmd   string `json:"attach_cmd"`
	CreatedAt   string `json:"created_at"`
}

// WorkspaceWithSessions groups sessions under their workspace.
type WorkspaceWithSessions struct {
	ID       string    `json:"id"`
	Repo     string    `json:"repo"`
	Branch   string    `json:"branch"`
	Path     string    `json:"path"`
	Sessions []Session `json:"sessions"`
}

// SpawnResponse is returned when spawning or resuming a session.
type SpawnResponse struct {
	SessionID   string `json:"session_id"`
	WorkspaceID string `json:"workspace_id"`
	AttachCmd   string `json:"attach_cmd"`
}

// DaemonClient talks to the taskdeck daemon's HTTP API.
type DaemonClient interface {
	IsRunning() bool
	GetTasks() ([]Task, error)
	CreateTask(ctx context.Context, req TaskCreateRequest) (*Task, error)
	MoveTask(ctx context.Context, taskID, column string, position int) (*Task, error)
	GetSessions() ([]WorkspaceWithSessions, error)
	SpawnTask(ctx context.Context, taskID string) (*SpawnResponse, error)
	ResumeTask(ctx context.Context, taskID string) (*SpawnResponse, error)
	DisposeSession(ctx context.Context, sessionID string) error
	ImportTasks(ctx context.Context, path string) ([]Task, error)
}

type daemonClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewDaemonClient creates a client for the daemon at baseURL. The auth
// token, if the dashboard requires one, is read from TASKDECK_TOKEN.
func NewDaemonClient(baseURL string) DaemonClient {
	return &daemonClient{
		baseURL: baseURL,
		token:   os.Getenv("TASKDECK_TOKEN"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetDefaultURL returns the daemon URL from the configured dashboard
// port, falling back to the default port when no config exists yet.
func GetDefaultURL() string {
	port := config.DefaultDashboardPort
	if cfg, err := config.Load(); err == nil {
		port = cfg.GetDashboardPort()
	}
	return fmt.Sprintf("http://localhost:%d", port)
}

func (c *daemonClient) IsRunning() bool {
	resp, err := c.do(context.Background(), http.MethodGet, "/api/status", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *daemonClient) GetTasks() ([]Task, error) {
	var tasks []Task
	if err := c.getJSON(context.Background(), "/api/tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *daemonClient) CreateTask(ctx context.Context, req TaskCreateRequest) (*Task, error) {
	var task Task
	if err := c.postJSON(ctx, "/api/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *daemonClient) MoveTask(ctx context.Context, taskID, column string, position int) (*Task, error) {
	body := map[string]any{"column": column, "position": position}
	var task Task
	if err := c.postJSON(ctx, "/api/tasks/"+taskID+"/move", body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *daemonClient) GetSessions() ([]WorkspaceWithSessions, error) {
	var sessions []WorkspaceWithSessions
	if err := c.getJSON(context.Background(), "/api/sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *daemonClient) SpawnTask(ctx context.Context, taskID string) (*SpawnResponse, error) {
	var spawned SpawnResponse
	if err := c.postJSON(ctx, "/api/tasks/"+taskID+"/spawn", nil, &spawned); err != nil {
		return nil, err
	}
	return &spawned, nil
}

func (c *daemonClient) ResumeTask(ctx context.Context, taskID string) (*SpawnResponse, error) {
	var spawned SpawnResponse
	if err := c.postJSON(ctx, "/api/tasks/"+taskID+"/resume", nil, &spawned); err != nil {
		return nil, err
	}
	return &spawned, nil
}

func (c *daemonClient) DisposeSession(ctx context.Context, sessionID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/sessions/"+sessionID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func (c *daemonClient) ImportTasks(ctx context.Context, path string) ([]Task, error) {
	body := map[string]string{"path": path}
	var created []Task
	if err := c.postJSON(ctx, "/api/import", body, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *daemonClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

func (c *daemonClient) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *daemonClient) postJSON(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, http.MethodPost, path, reader)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiError turns a non-2xx response into an error, preferring the
// daemon's JSON error message when present.
func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}
