package main

import (
	"context"
	"testing"

	"github.com/kabuto-png/taskdeck/pkg/cli"
)

// MockDaemonClient is a mock implementation for testing.
type MockDaemonClient struct {
	isRunning bool
	tasks     []cli.Task
	sessions  []cli.WorkspaceWithSessions
	spawned   *cli.SpawnResponse
	spawnErr  error
	moved     *cli.Task
	moveErr   error
	created   *cli.Task
	createErr error
	imported  []cli.Task
	importErr error

	disposedID string
}

func (m *MockDaemonClient) IsRunning() bool {
	return m.isRunning
}

func (m *MockDaemonClient) GetTasks() ([]cli.Task, error) {
	return m.tasks, nil
}

func (m *MockDaemonClient) CreateTask(ctx context.Context, req cli.TaskCreateRequest) (*cli.Task, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.created != nil {
		return m.created, nil
	}
	return &cli.Task{ID: "t-new", Title: req.Title, Column: "backlog"}, nil
}

func (m *MockDaemonClient) MoveTask(ctx context.Context, taskID, column string, position int) (*cli.Task, error) {
	if m.moveErr != nil {
		return nil, m.moveErr
	}
	if m.moved != nil {
		return m.moved, nil
	}
	return &cli.Task{ID: taskID, Column: column, Position: position}, nil
}

func (m *MockDaemonClient) GetSessions() ([]cli.WorkspaceWithSessions, error) {
	return m.sessions, nil
}

func (m *MockDaemonClient) SpawnTask(ctx context.Context, taskID string) (*cli.SpawnResponse, error) {
	if m.spawnErr != nil {
		return nil, m.spawnErr
	}
	if m.spawned != nil {
		return m.spawned, nil
	}
	return &cli.SpawnResponse{SessionID: "s-new", WorkspaceID: "ws-1"}, nil
}

func (m *MockDaemonClient) ResumeTask(ctx context.Context, taskID string) (*cli.SpawnResponse, error) {
	return m.SpawnTask(ctx, taskID)
}

func (m *MockDaemonClient) DisposeSession(ctx context.Context, sessionID string) error {
	m.disposedID = sessionID
	return nil
}

func (m *MockDaemonClient) ImportTasks(ctx context.Context, path string) ([]cli.Task, error) {
	if m.importErr != nil {
		return nil, m.importErr
	}
	return m.imported, nil
}

func TestTasksCommand_DaemonNotRunning(t *testing.T) {
	cmd := NewTasksCommand(&MockDaemonClient{isRunning: false})
	if err := cmd.Run(nil); err == nil {
		t.Error("expected error when daemon is not running")
	}
}

func TestTasksCommand_Empty(t *testing.T) {
	cmd := NewTasksCommand(&MockDaemonClient{isRunning: true})
	if err := cmd.Run(nil); err != nil {
		t.Errorf("Run() failed: %v", err)
	}
}

func TestMoveCommand_BadArgs(t *testing.T) {
	cmd := NewMoveCommand(&MockDaemonClient{isRunning: true})

	if err := cmd.Run([]string{"t1"}); err == nil {
		t.Error("expected usage error with missing column")
	}
	if err := cmd.Run([]string{"t1", "doing", "nope"}); err == nil {
		t.Error("expected error for non-numeric position")
	}
	if err := cmd.Run([]string{"t1", "doing", "-1"}); err == nil {
		t.Error("expected error for negative position")
	}
}

func TestMoveCommand_OK(t *testing.T) {
	cmd := NewMoveCommand(&MockDaemonClient{isRunning: true})
	if err := cmd.Run([]string{"t1", "doing", "2"}); err != nil {
		t.Errorf("Run() failed: %v", err)
	}
}

func TestSpawnCommand_RequiresTaskID(t *testing.T) {
	cmd := NewSpawnCommand(&MockDaemonClient{isRunning: true})
	if err := cmd.Run(nil); err == nil {
		t.Error("expected usage error without a task ID")
	}
}

func TestSpawnCommand_OK(t *testing.T) {
	cmd := NewSpawnCommand(&MockDaemonClient{isRunning: true})
	if err := cmd.Run([]string{"t1"}); err != nil {
		t.Errorf("Run() failed: %v", err)
	}
}

func TestAddCommand_RequiresTitle(t *testing.T) {
	cmd := NewAddCommand(&MockDaemonClient{isRunning: true})
	if err := cmd.Run(nil); err == nil {
		t.Error("expected usage error without a title")
	}
	if err := cmd.Run([]string{"-r", "demo"}); err == nil {
		t.Error("expected usage error when first arg is a flag")
	}
}

func TestAddCommand_OK(t *testing.T) {
	cmd := NewAddCommand(&MockDaemonClient{isRunning: true})
	if err := cmd.Run([]string{"fix login bug", "-r", "demo", "-b", "fix/login"}); err != nil {
		t.Errorf("Run() failed: %v", err)
	}
}

func TestDisposeCommand_SessionNotFound(t *testing.T) {
	cmd := NewDisposeCommand(&MockDaemonClient{isRunning: true})
	if err := cmd.Run([]string{"nope"}); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestImportCommand_RequiresPath(t *testing.T) {
	cmd := NewImportCommand(&MockDaemonClient{isRunning: true})
	if err := cmd.Run(nil); err == nil {
		t.Error("expected usage error without a file")
	}
}
