package contracts

// Session represents a running or stopped agent session in API responses.
type Session struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	WorkspaceID string `json:"workspace_id"`
	Agent       string `json:"agent"`
	Branch      string `json:"branch"`
	Prompt      string `json:"prompt"`
	Running     bool   `json:"running"`
	AttachCmd   string `json:"attach_cmd"`
	CreatedAt   string `json:"created_at"`
}

// WorkspaceWithSessions groups sessions under their git workspace for
// GET /api/sessions.
type WorkspaceWithSessions struct {
	ID       string    `json:"id"`
	Repo     string    `json:"repo"`
	Branch   string    `json:"branch"`
	Path     string    `json:"path"`
	Sessions []Session `json:"sessions"`
}

// SpawnResponse is returned by POST /api/tasks/{id}/spawn and /resume.
type SpawnResponse struct {
	SessionID   string `json:"session_id"`
	WorkspaceID string `json:"workspace_id"`
	AttachCmd   string `json:"attach_cmd"`
}
