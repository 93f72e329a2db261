// Package session spawns and tracks coding agent sessions, one per
// board task, each running inside a detached tmux session.
package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/kabuto-png/taskdeck/internal/api/contracts"
	"github.com/kabuto-png/taskdeck/internal/board"
	"github.com/kabuto-png/taskdeck/internal/config"
	"github.com/kabuto-png/taskdeck/internal/state"
	"github.com/kabuto-png/taskdeck/internal/tmux"
	"github.com/kabuto-png/taskdeck/internal/workspace"
	"github.com/kabuto-png/taskdeck/pkg/shellutil"
)

// Manager spawns, resumes, and disposes agent sessions.
type Manager struct {
	config    *config.Config
	state     state.StateStore
	workspace *workspace.Manager
	board     *board.Store
	logger    *log.Logger
}

// New creates a new session manager.
func New(cfg *config.Config, st state.StateStore, wm *workspace.Manager, b *board.Store) *Manager {
	return &Manager{
		config:    cfg,
		state:     st,
		workspace: wm,
		board:     b,
		logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "session"}),
	}
}

// Spawn starts an agent session for a board task. The task must name a
// repo, branch, and agent. The task's title and description become the
// agent's prompt.
func (m *Manager) Spawn(ctx context.Context, taskID string) (*state.Session, error) {
	task, err := m.board.Get(taskID)
	if err != nil {
		return nil, err
	}
	if task.SessionID != "" {
		if sess, found := m.state.GetSession(task.SessionID); found && m.isAlive(sess) {
			return nil, fmt.Errorf("task %s already has a running session: %s", taskID, task.SessionID)
		}
	}

	prompt := task.Title
	if task.Description != "" {
		prompt = task.Title + "\n\n" + task.Description
	}

	return m.start(ctx, task, prompt, "")
}

// Resume restarts the agent for a task, handing the agent its previous
// session reference so it picks up where it left off.
func (m *Manager) Resume(ctx context.Context, taskID string) (*state.Session, error) {
	task, err := m.board.Get(taskID)
	if err != nil {
		return nil, err
	}
	if task.SessionID == "" {
		return nil, fmt.Errorf("task %s has no session to resume", taskID)
	}
	prev, found := m.state.GetSession(task.SessionID)
	if !found {
		return nil, fmt.Errorf("session not found: %s", task.SessionID)
	}
	if prev.AgentSessionRef == "" {
		return nil, fmt.Errorf("session %s has no agent session reference", prev.ID)
	}
	if m.isAlive(prev) {
		return nil, fmt.Errorf("session %s is still running", prev.ID)
	}

	// The dead session's record is replaced by the resumed one.
	_ = m.state.RemoveSession(prev.ID)

	sess, err := m.start(ctx, task, prev.Prompt, prev.AgentSessionRef)
	if err != nil {
		return nil, err
	}
	sess.AgentSessionRef = prev.AgentSessionRef
	if err := m.state.UpdateSession(*sess); err != nil {
		return nil, err
	}
	if err := m.state.Save(); err != nil {
		return nil, fmt.Errorf("failed to save state: %w", err)
	}
	return sess, nil
}

func (m *Manager) start(ctx context.Context, task contracts.Task, prompt, resumeRef string) (*state.Session, error) {
	if task.Repo == "" || task.Branch == "" {
		return nil, fmt.Errorf("task %s needs a repo and branch before spawning", task.ID)
	}
	agentName := task.Agent
	if agentName == "" && len(m.config.Agents) > 0 {
		agentName = m.config.Agents[0].Name
	}
	agent, found := m.config.FindAgent(agentName)
	if !found {
		return nil, fmt.Errorf("agent not found: %s", agentName)
	}
	repo, found := m.config.FindRepo(task.Repo)
	if !found {
		return nil, fmt.Errorf("repo not found: %s", task.Repo)
	}

	w, err := m.workspace.GetOrCreate(ctx, repo.URL, task.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	// The prompt is quoted so it reaches the agent as one argument.
	parts := []string{agent.Command}
	if resumeRef != "" {
		flag := agent.ResumeFlag
		if flag == "" {
			flag = "--resume"
		}
		parts = append(parts, flag, shellutil.Quote(resumeRef))
	} else if prompt != "" {
		parts = append(parts, shellutil.Quote(prompt))
	}
	command := strings.Join(parts, " ")

	sessionID := fmt.Sprintf("taskdeck-%s-%s", w.ID, uuid.New().String()[:8])

	if err := tmux.CreateSession(sessionID, w.Path, command); err != nil {
		return nil, fmt.Errorf("failed to create tmux session: %w", err)
	}

	pid, err := tmux.GetPanePID(sessionID)
	if err != nil {
		m.logger.Warn("failed to get pane pid", "session", sessionID, "err", err)
	}

	sess := state.Session{
		ID:          sessionID,
		TaskID:      task.ID,
		WorkspaceID: w.ID,
		Agent:       agent.Name,
		Branch:      task.Branch,
		Prompt:      prompt,
		TmuxSession: sessionID,
		CreatedAt:   time.Now(),
		Pid:         pid,
	}

	if err := m.state.AddSession(sess); err != nil {
		return nil, err
	}
	if err := m.state.Save(); err != nil {
		return nil, fmt.Errorf("failed to save state: %w", err)
	}
	if err := m.board.LinkSession(task.ID, sessionID); err != nil {
		return nil, fmt.Errorf("failed to link session to task: %w", err)
	}

	m.logger.Info("spawned session", "session", sessionID, "task", task.ID, "workspace", w.ID)
	return &sess, nil
}

// SetAgentRef records the agent's own session identifier so the task
// can be resumed later.
func (m *Manager) SetAgentRef(sessionID, ref string) error {
	sess, found := m.state.GetSession(sessionID)
	if !found {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	sess.AgentSessionRef = ref
	if err := m.state.UpdateSession(sess); err != nil {
		return err
	}
	return m.state.Save()
}

// IsRunning checks whether the session's agent process is still alive.
func (m *Manager) IsRunning(sessionID string) bool {
	sess, found := m.state.GetSession(sessionID)
	if !found {
		return false
	}
	return m.isAlive(sess)
}

func (m *Manager) isAlive(sess state.Session) bool {
	if sess.Pid == 0 {
		return tmux.SessionExists(sess.TmuxSession)
	}
	process, err := os.FindProcess(sess.Pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Dispose kills a session's tmux session, unlinks it from its task, and
// removes it from state. The workspace is left in place for reuse.
func (m *Manager) Dispose(sessionID string) error {
	sess, found := m.state.GetSession(sessionID)
	if !found {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	if err := tmux.KillSession(sess.TmuxSession); err != nil {
		// Session may already be gone.
		m.logger.Warn("failed to kill tmux session", "session", sessionID, "err", err)
	}

	if sess.TaskID != "" {
		if err := m.board.LinkSession(sess.TaskID, ""); err != nil {
			m.logger.Warn("failed to unlink task", "task", sess.TaskID, "err", err)
		}
	}

	if err := m.state.RemoveSession(sessionID); err != nil {
		return err
	}
	if err := m.state.Save(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Get returns a session by ID.
func (m *Manager) Get(sessionID string) (*state.Session, error) {
	sess, found := m.state.GetSession(sessionID)
	if !found {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return &sess, nil
}

// GetOutput returns the session's current terminal scrollback.
func (m *Manager) GetOutput(sessionID string) (string, error) {
	sess, found := m.state.GetSession(sessionID)
	if !found {
		return "", fmt.Errorf("session not found: %s", sessionID)
	}
	return tmux.CaptureOutput(sess.TmuxSession)
}

// GetAttachCommand returns the shell command to attach to a session.
func (m *Manager) GetAttachCommand(sessionID string) (string, error) {
	sess, found := m.state.GetSession(sessionID)
	if !found {
		return "", fmt.Errorf("session not found: %s", sessionID)
	}
	return tmux.GetAttachCommand(sess.TmuxSession), nil
}

// ListByWorkspace groups all sessions under their workspaces for the
// sessions API.
func (m *Manager) ListByWorkspace() []contracts.WorkspaceWithSessions {
	var out []contracts.WorkspaceWithSessions
	for _, w := range m.state.GetWorkspaces() {
		group := contracts.WorkspaceWithSessions{
			ID:       w.ID,
			Repo:     w.Repo,
			Branch:   w.Branch,
			Path:     w.Path,
			Sessions: []contracts.Session{},
		}
		for _, sess := range m.state.GetSessionsByWorkspace(w.ID) {
			group.Sessions = append(group.Sessions, m.toContract(sess))
		}
		out = append(out, group)
	}
	return out
}

func (m *Manager) toContract(sess state.Session) contracts.Session {
	return contracts.Session{
		ID:          sess.ID,
		TaskID:      sess.TaskID,
		WorkspaceID: sess.WorkspaceID,
		Agent:       sess.Agent,
		Branch:      sess.Branch,
		Prompt:      sess.Prompt,
		Running:     m.isAlive(sess),
		AttachCmd:   tmux.GetAttachCommand(sess.TmuxSession),
		CreatedAt:   sess.CreatedAt.UTC().Format(time.RFC3339),
	}
}
