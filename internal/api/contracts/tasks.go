package contracts

// Board columns, in display order.
const (
	ColumnBacklog = "backlog"
	ColumnDoing   = "doing"
	ColumnReview  = "review"
	ColumnDone    = "done"
)

// Columns lists the valid board columns in display order.
func Columns() []string {
	return []string{ColumnBacklog, ColumnDoing, ColumnReview, ColumnDone}
}

// ValidColumn reports whether name is a known board column.
func ValidColumn(name string) bool {
	for _, c := range Columns() {
		if c == name {
			return true
		}
	}
	return false
}

// Task represents a kanban card on the board.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title" required:"true"`
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

// TaskCreateRequest is the body of POST /api/tasks.
type TaskCreateRequest struct {
	Title       string `json:"title" required:"true"`
	Description string `json:"description,omitempty"`
	Column      string `json:"column,omitempty"`
	Repo        string `json:"repo,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Agent       string `json:"agent,omitempty"`
}

// TaskUpdateRequest is the body of PUT /api/tasks/{id}. Empty fields are
// left unchanged.
type TaskUpdateRequest struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Repo        string `json:"repo,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Agent       string `json:"agent,omitempty"`
}

// TaskMoveRequest is the body of POST /api/tasks/{id}/move.
type TaskMoveRequest struct {
	Column   string `json:"column" required:"true"`
	Position int    `json:"position"`
}

// BoardResponse groups tasks by column for GET /api/tasks.
type BoardResponse struct {
	Columns map[string][]Task `json:"columns"`
}
