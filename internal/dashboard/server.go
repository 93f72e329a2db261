// Package dashboard serves the task board web UI: a REST API over the
// board, sessions, and commit graph, plus websocket streams for board
// updates and session terminals.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/kabuto-png/taskdeck/internal/board"
	"github.com/kabuto-png/taskdeck/internal/config"
	"github.com/kabuto-png/taskdeck/internal/refwatch"
	"github.com/kabuto-png/taskdeck/internal/session"
	"github.com/kabuto-png/taskdeck/internal/state"
	"github.com/kabuto-png/taskdeck/internal/version"
	"github.com/kabuto-png/taskdeck/internal/workspace"
)

// Server is the dashboard HTTP server.
type Server struct {
	config    *config.Config
	state     state.StateStore
	board     *board.Store
	session   *session.Manager
	workspace *workspace.Manager
	logger    *log.Logger

	httpServer *http.Server
	hub        *boardHub
	trackers   *trackerRegistry
	refWatcher *refwatch.Watcher
}

// NewServer creates a dashboard server. The refwatch watcher is
// optional; without it graph refresh pings are not sent.
func NewServer(cfg *config.Config, st state.StateStore, b *board.Store, sm *session.Manager, wm *workspace.Manager) *Server {
	s := &Server{
		config:    cfg,
		state:     st,
		board:     b,
		session:   sm,
		workspace: wm,
		logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "dashboard"}),
		hub:       newBoardHub(),
		trackers:  newTrackerRegistry(st),
	}
	return s
}

// EnableRefWatch starts watching the query clones of all configured
// repos and pings board clients when refs move.
func (s *Server) EnableRefWatch() error {
	w, err := refwatch.New(func(repo string) {
		s.hub.Broadcast("graph", map[string]string{"repo": repo})
	})
	if err != nil {
		return err
	}
	s.refWatcher = w
	return nil
}

// WatchRepoRefs registers a repo's git directory with the ref watcher.
func (s *Server) WatchRepoRefs(name, gitDir string) error {
	if s.refWatcher == nil {
		return fmt.Errorf("ref watcher not enabled")
	}
	return s.refWatcher.WatchRepo(name, gitDir)
}

// routes builds the dashboard's HTTP mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.withAuth(s.handleStatus))
	mux.HandleFunc("/api/board", s.withAuth(s.handleBoard))
	mux.HandleFunc("/api/tasks", s.withAuth(s.handleTasks))
	mux.HandleFunc("/api/tasks/", s.withAuth(s.handleTaskRoutes))
	mux.HandleFunc("/api/import", s.withAuth(s.handleImport))
	mux.HandleFunc("/api/sessions", s.withAuth(s.handleSessions))
	mux.HandleFunc("/api/sessions/", s.withAuth(s.handleSessionRoutes))
	mux.HandleFunc("/api/repos/", s.withAuth(s.handleRepoRoutes))
	mux.HandleFunc("/api/schema/", s.withAuth(s.handleSchema))
	mux.HandleFunc("/ws/board", s.handleBoardWebSocket)
	mux.HandleFunc("/ws/terminal/", s.handleTerminalWebSocket)

	return mux
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.config.GetDashboardPort())
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket streams stay open
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server, trackers, and ref watcher.
func (s *Server) Shutdown() error {
	if s.refWatcher != nil {
		s.refWatcher.Stop()
	}
	s.trackers.StopAll()
	s.hub.CloseAll()

	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// withAuth enforces the configured bearer token. With no token hash
// configured the dashboard is open (it binds to localhost).
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.authenticate(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) authenticate(r *http.Request) error {
	hash := s.config.GetAuthTokenHash()
	if hash == "" {
		return nil
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		// Websocket clients can't set headers from the browser.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return fmt.Errorf("missing token")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	repos := make([]string, 0, len(s.config.Repos))
	for _, repo := range s.config.Repos {
		repos = append(repos, repo.Name)
	}
	agents := make([]string, 0, len(s.config.Agents))
	for _, agent := range s.config.Agents {
		agents = append(agents, agent.Name)
	}

	s.writeJSON(w, map[string]any{
		"version":  version.Version,
		"pid":      os.Getpid(),
		"repos":    repos,
		"agents":   agents,
		"sessions": len(s.state.GetSessions()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
