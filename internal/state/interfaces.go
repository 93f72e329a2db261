package state

import "time"

// StateStore defines the interface for runtime state persistence.
type StateStore interface {
	// Session operations
	GetSessions() []Session
	GetSession(id string) (Session, bool)
	AddSession(sess Session) error
	UpdateSession(sess Session) error
	RemoveSession(id string) error
	UpdateSessionLastOutput(id string, at time.Time)
	GetSessionsByWorkspace(workspaceID string) []Session

	// Workspace operations
	GetWorkspaces() []Workspace
	GetWorkspace(id string) (Workspace, bool)
	FindWorkspace(repo, branch string) (Workspace, bool)
	AddWorkspace(ws Workspace) error
	UpdateWorkspace(ws Workspace) error
	RemoveWorkspace(id string) error

	// Persistence
	Save() error
}

// Ensure State implements StateStore at compile time.
var _ StateStore = (*State)(nil)
