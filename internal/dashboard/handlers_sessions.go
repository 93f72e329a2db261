package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kabuto-png/taskdeck/internal/api/contracts"
	"github.com/kabuto-png/taskdeck/internal/schema"
)

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	groups := s.session.ListByWorkspace()
	if groups == nil {
		groups = []contracts.WorkspaceWithSessions{}
	}
	s.writeJSON(w, groups)
}

// handleSessionRoutes dispatches /api/sessions/{id} and its subpaths.
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		http.Error(w, "session ID is required", http.StatusBadRequest)
		return
	}

	switch action {
	case "":
		s.handleSession(w, r, sessionID)
	case "output":
		s.handleSessionOutput(w, r, sessionID)
	case "agent-ref":
		s.handleSessionAgentRef(w, r, sessionID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case http.MethodGet:
		sess, err := s.session.Get(sessionID)
		if err != nil {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeJSON(w, sess)

	case http.MethodDelete:
		s.trackers.Remove(sessionID)
		if err := s.session.Dispose(sessionID); err != nil {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.BroadcastBoard()
		s.BroadcastSessions()
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSessionOutput(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	output, err := s.session.GetOutput(sessionID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, map[string]string{"output": output})
}

// handleSessionAgentRef records the agent's own session identifier so
// the task can be resumed after the agent exits.
func (s *Server) handleSessionAgentRef(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ref == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("ref is required"))
		return
	}
	if err := s.session.SetAgentRef(sessionID, req.Ref); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRepoRoutes dispatches /api/repos/{name}/commit-graph.
func (s *Server) handleRepoRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/repos/")
	repoName, action, _ := strings.Cut(rest, "/")
	if repoName == "" {
		http.Error(w, "repo name is required", http.StatusBadRequest)
		return
	}
	if action != "commit-graph" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	maxCommits := 0
	if raw := r.URL.Query().Get("max_commits"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid max_commits: %q", raw))
			return
		}
		maxCommits = n
	}

	resp, err := s.workspace.CommitGraph(r.Context(), repoName, maxCommits)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			s.writeError(w, http.StatusNotFound, err)
		} else {
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	// Annotate branch heads with the board tasks working on them.
	for name, branch := range resp.Branches {
		taskIDs, err := s.board.TasksForBranch(repoName, name)
		if err != nil {
			s.logger.Warn("failed to load branch tasks", "repo", repoName, "branch", name, "err", err)
			continue
		}
		if len(taskIDs) > 0 {
			branch.TaskIDs = taskIDs
			resp.Branches[name] = branch
		}
	}

	s.writeJSON(w, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	label := strings.TrimPrefix(r.URL.Path, "/api/schema/")
	if label == "" {
		s.writeJSON(w, map[string][]string{"labels": schema.Labels()})
		return
	}

	out, err := schema.Get(label)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(out))
}
