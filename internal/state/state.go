// Package state tracks runtime daemon state: agent sessions and git
// workspaces. State is held in memory behind a mutex and persisted as
// JSON so sessions survive a daemon restart.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session represents a spawned agent session.
type Session struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	WorkspaceID string    `json:"workspace_id"`
	Agent       string    `json:"agent"`
	Branch      string    `json:"branch"`
	Prompt      string    `json:"prompt"`
	TmuxSession string    `json:"tmux_session"`
	// AgentSessionRef is the agent's own session identifier, captured so
	// the session can be resumed after the process exits.
	AgentSessionRef string    `json:"agent_session_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	Pid             int       `json:"pid"`
	// LastOutputAt is the last time the session's terminal produced
	// meaningful output, used for idle display on the board.
	LastOutputAt time.Time `json:"last_output_at,omitempty"`
}

// Workspace represents a git checkout that sessions run in.
type Workspace struct {
	ID     string `json:"id"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Path   string `json:"path"`
}

// State is the in-memory store behind the daemon, persisted at path.
type State struct {
	mu         sync.RWMutex
	path       string
	Sessions   []Session   `json:"sessions"`
	Workspaces []Workspace `json:"workspaces"`
}

// New returns an empty state persisted at path. An empty path disables
// persistence (used in tests).
func New(path string) *State {
	return &State{path: path}
}

// Load reads state from path, returning an empty state when the file
// does not exist yet.
func Load(path string) (*State, error) {
	st := New(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}
	st.path = path
	return st, nil
}

// Save writes the state to its backing file. A no-op when the state has
// no path.
func (s *State) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write-then-rename so a crash never leaves a torn state file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// GetSessions returns a copy of all sessions.
func (s *State) GetSessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, len(s.Sessions))
	copy(out, s.Sessions)
	return out
}

// GetSession returns a session by ID.
func (s *State) GetSession(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.Sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return Session{}, false
}

// AddSession appends a session.
func (s *State) AddSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.Sessions {
		if existing.ID == sess.ID {
			return fmt.Errorf("session already exists: %s", sess.ID)
		}
	}
	s.Sessions = append(s.Sessions, sess)
	return nil
}

// UpdateSession replaces a session by ID.
func (s *State) UpdateSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.Sessions {
		if existing.ID == sess.ID {
			s.Sessions[i] = sess
			return nil
		}
	}
	return fmt.Errorf("session not found: %s", sess.ID)
}

// UpdateSessionLastOutput records terminal activity for a session.
// Unknown IDs are ignored; trackers can outlive their session.
func (s *State) UpdateSessionLastOutput(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.Sessions {
		if existing.ID == id {
			s.Sessions[i].LastOutputAt = at
			return
		}
	}
}

// RemoveSession deletes a session by ID.
func (s *State) RemoveSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.Sessions {
		if existing.ID == id {
			s.Sessions = append(s.Sessions[:i], s.Sessions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("session not found: %s", id)
}

// GetSessionsByWorkspace returns sessions running in a workspace.
func (s *State) GetSessionsByWorkspace(workspaceID string) []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Session
	for _, sess := range s.Sessions {
		if sess.WorkspaceID == workspaceID {
			out = append(out, sess)
		}
	}
	return out
}

// GetWorkspaces returns a copy of all workspaces.
func (s *State) GetWorkspaces() []Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Workspace, len(s.Workspaces))
	copy(out, s.Workspaces)
	return out
}

// GetWorkspace returns a workspace by ID.
func (s *State) GetWorkspace(id string) (Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ws := range s.Workspaces {
		if ws.ID == id {
			return ws, true
		}
	}
	return Workspace{}, false
}

// FindWorkspace returns the workspace for a repo/branch pair.
func (s *State) FindWorkspace(repo, branch string) (Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ws := range s.Workspaces {
		if ws.Repo == repo && ws.Branch == branch {
			return ws, true
		}
	}
	return Workspace{}, false
}

// AddWorkspace appends a workspace.
func (s *State) AddWorkspace(ws Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.Workspaces {
		if existing.ID == ws.ID {
			return fmt.Errorf("workspace already exists: %s", ws.ID)
		}
	}
	s.Workspaces = append(s.Workspaces, ws)
	return nil
}

// UpdateWorkspace replaces a workspace by ID.
func (s *State) UpdateWorkspace(ws Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.Workspaces {
		if existing.ID == ws.ID {
			s.Workspaces[i] = ws
			return nil
		}
	}
	return fmt.Errorf("workspace not found: %s", ws.ID)
}

// RemoveWorkspace deletes a workspace by ID.
func (s *State) RemoveWorkspace(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.Workspaces {
		if existing.ID == id {
			s.Workspaces = append(s.Workspaces[:i], s.Workspaces[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("workspace not found: %s", id)
}
