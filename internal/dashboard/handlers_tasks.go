package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kabuto-png/taskdeck/internal/api/contracts"
	"github.com/kabuto-png/taskdeck/internal/board"
)

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.board.Board()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tasks, err := s.board.List()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if tasks == nil {
			tasks = []contracts.Task{}
		}
		s.writeJSON(w, tasks)

	case http.MethodPost:
		var req contracts.TaskCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		task, err := s.board.Add(req)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.BroadcastBoard()
		w.WriteHeader(http.StatusCreated)
		s.writeJSON(w, task)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTaskRoutes dispatches /api/tasks/{id} and its subpaths.
func (s *Server) handleTaskRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	taskID, action, _ := strings.Cut(rest, "/")
	if taskID == "" {
		http.Error(w, "task ID is required", http.StatusBadRequest)
		return
	}

	switch action {
	case "":
		s.handleTask(w, r, taskID)
	case "move":
		s.handleTaskMove(w, r, taskID)
	case "spawn":
		s.handleTaskSpawn(w, r, taskID, false)
	case "resume":
		s.handleTaskSpawn(w, r, taskID, true)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request, taskID string) {
	switch r.Method {
	case http.MethodGet:
		task, err := s.board.Get(taskID)
		if err != nil {
			s.writeError(w, taskStatus(err), err)
			return
		}
		s.writeJSON(w, task)

	case http.MethodPut:
		var req contracts.TaskUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		task, err := s.board.Update(taskID, req)
		if err != nil {
			s.writeError(w, taskStatus(err), err)
			return
		}
		s.BroadcastBoard()
		s.writeJSON(w, task)

	case http.MethodDelete:
		if err := s.board.Delete(taskID); err != nil {
			s.writeError(w, taskStatus(err), err)
			return
		}
		s.BroadcastBoard()
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTaskMove(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req contracts.TaskMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	task, err := s.board.Move(taskID, req.Column, req.Position)
	if err != nil {
		s.writeError(w, taskStatus(err), err)
		return
	}
	s.BroadcastBoard()
	s.writeJSON(w, task)
}

func (s *Server) handleTaskSpawn(w http.ResponseWriter, r *http.Request, taskID string, resume bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	spawn := s.session.Spawn
	if resume {
		spawn = s.session.Resume
	}
	sess, err := spawn(r.Context(), taskID)
	if err != nil {
		s.writeError(w, taskStatus(err), err)
		return
	}

	s.trackers.Ensure(sess.ID, sess.TmuxSession)
	s.BroadcastBoard()
	s.BroadcastSessions()
	s.writeJSON(w, contracts.SpawnResponse{
		SessionID:   sess.ID,
		WorkspaceID: sess.WorkspaceID,
		AttachCmd:   fmt.Sprintf("tmux attach -t %s", sess.TmuxSession),
	})
}

// handleImport bulk-creates tasks from a YAML file on the daemon host.
// The CLI and daemon run on the same machine, so a path is enough.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Path == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}

	created, err := s.board.ImportYAML(req.Path)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.BroadcastBoard()
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, created)
}

func taskStatus(err error) int {
	if errors.Is(err, board.ErrTaskNotFound) || strings.Contains(err.Error(), "not found") {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
