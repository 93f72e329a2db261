// Package board persists the kanban task board in a SQLite database.
package board

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kabuto-png/taskdeck/internal/api/contracts"
)

// ErrTaskNotFound is returned when a task ID does not exist.
var ErrTaskNotFound = errors.New("task not found")

// Store wraps the SQLite-backed task board.
type Store struct {
	db *sql.DB
}

const selectTaskFields = `id, title, description, column_name, position,
	repo, branch, agent, session_id, created_at, updated_at`

// Open opens or creates the board database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening board database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating board schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			column_name TEXT NOT NULL DEFAULT 'backlog',
			position INTEGER NOT NULL DEFAULT 0,
			repo TEXT NOT NULL DEFAULT '',
			branch TEXT NOT NULL DEFAULT '',
			agent TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_column ON tasks(column_name, position);
		CREATE INDEX IF NOT EXISTS idx_tasks_session ON tasks(session_id) WHERE session_id != '';
	`
	_, err := db.Exec(schema)
	return err
}

// Add inserts a new task at the end of its column and returns it.
func (s *Store) Add(req contracts.TaskCreateRequest) (contracts.Task, error) {
	if req.Title == "" {
		return contracts.Task{}, fmt.Errorf("task title is required")
	}
	column := req.Column
	if column == "" {
		column = contracts.ColumnBacklog
	}
	if !contracts.ValidColumn(column) {
		return contracts.Task{}, fmt.Errorf("unknown column: %s", column)
	}

	var next int
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(position)+1, 0) FROM tasks WHERE column_name = ?`, column,
	).Scan(&next)
	if err != nil {
		return contracts.Task{}, fmt.Errorf("finding column position: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	task := contracts.Task{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Column:      column,
		Position:    next,
		Repo:        req.Repo,
		Branch:      req.Branch,
		Agent:       req.Agent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.db.Exec(
		`INSERT INTO tasks (`+selectTaskFields+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, task.Column, task.Position,
		task.Repo, task.Branch, task.Agent, task.SessionID, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return contracts.Task{}, fmt.Errorf("inserting task: %w", err)
	}
	return task, nil
}

// Get returns a task by ID.
func (s *Store) Get(id string) (contracts.Task, error) {
	row := s.db.QueryRow(`SELECT `+selectTaskFields+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task, err
}

// List returns all tasks in board order (column, then position).
func (s *Store) List() ([]contracts.Task, error) {
	rows, err := s.db.Query(`SELECT ` + selectTaskFields + ` FROM tasks ORDER BY column_name, position`)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []contracts.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Board returns tasks grouped by column, every column present even when
// empty.
func (s *Store) Board() (contracts.BoardResponse, error) {
	tasks, err := s.List()
	if err != nil {
		return contracts.BoardResponse{}, err
	}
	resp := contracts.BoardResponse{Columns: make(map[string][]contracts.Task)}
	for _, col := range contracts.Columns() {
		resp.Columns[col] = []contracts.Task{}
	}
	for _, task := range tasks {
		resp.Columns[task.Column] = append(resp.Columns[task.Column], task)
	}
	return resp, nil
}

// Update applies non-empty fields of req to the task.
func (s *Store) Update(id string, req contracts.TaskUpdateRequest) (contracts.Task, error) {
	task, err := s.Get(id)
	if err != nil {
		return contracts.Task{}, err
	}

	if req.Title != "" {
		task.Title = req.Title
	}
	if req.Description != "" {
		task.Description = req.Description
	}
	if req.Repo != "" {
		task.Repo = req.Repo
	}
	if req.Branch != "" {
		task.Branch = req.Branch
	}
	if req.Agent != "" {
		task.Agent = req.Agent
	}
	task.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	_, err = s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, repo = ?, branch = ?, agent = ?, updated_at = ? WHERE id = ?`,
		task.Title, task.Description, task.Repo, task.Branch, task.Agent, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return contracts.Task{}, fmt.Errorf("updating task: %w", err)
	}
	return task, nil
}

// Move places the task at position within column, shifting neighbors.
// Positions are renumbered densely in both affected columns.
func (s *Store) Move(id, column string, position int) (contracts.Task, error) {
	if !contracts.ValidColumn(column) {
		return contracts.Task{}, fmt.Errorf("unknown column: %s", column)
	}
	task, err := s.Get(id)
	if err != nil {
		return contracts.Task{}, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return contracts.Task{}, fmt.Errorf("beginning move: %w", err)
	}
	defer tx.Rollback()

	// Close the gap in the old column.
	if _, err := tx.Exec(
		`UPDATE tasks SET position = position - 1 WHERE column_name = ? AND position > ?`,
		task.Column, task.Position,
	); err != nil {
		return contracts.Task{}, fmt.Errorf("compacting column: %w", err)
	}

	var count int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE column_name = ? AND id != ?`, column, id,
	).Scan(&count); err != nil {
		return contracts.Task{}, fmt.Errorf("counting column: %w", err)
	}
	if position < 0 {
		position = 0
	}
	if position > count {
		position = count
	}

	// Open a slot in the target column.
	if _, err := tx.Exec(
		`UPDATE tasks SET position = position + 1 WHERE column_name = ? AND position >= ? AND id != ?`,
		column, position, id,
	); err != nil {
		return contracts.Task{}, fmt.Errorf("shifting column: %w", err)
	}

	task.Column = column
	task.Position = position
	task.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		`UPDATE tasks SET column_name = ?, position = ?, updated_at = ? WHERE id = ?`,
		task.Column, task.Position, task.UpdatedAt, task.ID,
	); err != nil {
		return contracts.Task{}, fmt.Errorf("moving task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return contracts.Task{}, fmt.Errorf("committing move: %w", err)
	}
	return task, nil
}

// Delete removes a task.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return nil
}

// LinkSession records the agent session driving a task. An empty
// sessionID clears the link.
func (s *Store) LinkSession(id, sessionID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(
		`UPDATE tasks SET session_id = ?, updated_at = ? WHERE id = ?`,
		sessionID, now, id,
	)
	if err != nil {
		return fmt.Errorf("linking session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return nil
}

// FindBySession returns the task bound to a session, if any.
func (s *Store) FindBySession(sessionID string) (contracts.Task, bool) {
	row := s.db.QueryRow(`SELECT `+selectTaskFields+` FROM tasks WHERE session_id = ?`, sessionID)
	task, err := scanTask(row)
	if err != nil {
		return contracts.Task{}, false
	}
	return task, true
}

// TasksForBranch returns IDs of tasks bound to a repo branch, used to
// annotate the commit graph.
func (s *Store) TasksForBranch(repo, branch string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT id FROM tasks WHERE repo = ? AND branch = ? ORDER BY column_name, position`,
		repo, branch,
	)
	if err != nil {
		return nil, fmt.Errorf("finding branch tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (contracts.Task, error) {
	var t contracts.Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Column, &t.Position,
		&t.Repo, &t.Branch, &t.Agent, &t.SessionID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return contracts.Task{}, err
	}
	return t, nil
}
