package dashboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/kabuto-png/taskdeck/internal/api/contracts"
	"github.com/kabuto-png/taskdeck/internal/board"
	"github.com/kabuto-png/taskdeck/internal/config"
	"github.com/kabuto-png/taskdeck/internal/session"
	"github.com/kabuto-png/taskdeck/internal/state"
	"github.com/kabuto-png/taskdeck/internal/workspace"
)

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{WorkspacePath: t.TempDir()}
	}
	st := state.New("")
	wm := workspace.New(cfg, st)

	store, err := board.Open(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatalf("board.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sm := session.New(cfg, st, wm, store)
	srv := NewServer(cfg, st, store, sm, wm)
	t.Cleanup(func() { srv.Shutdown() })
	return srv
}

func createTask(t *testing.T, srv *Server, req contracts.TaskCreateRequest) contracts.Task {
	t.Helper()
	task, err := srv.board.Add(req)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return task
}

func TestHandleStatus(t *testing.T) {
	cfg := &config.Config{
		WorkspacePath: t.TempDir(),
		Repos:         []config.Repo{{Name: "demo", URL: "/tmp/demo"}},
		Agents:        []config.Agent{{Name: "claude", Command: "claude"}},
	}
	srv := newTestServer(t, cfg)

	req := httptest.NewRequest("GET", "/api/status", nil)
	rr := httptest.NewRecorder()
	srv.handleStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["version"] == "" {
		t.Error("version missing")
	}
	repos := resp["repos"].([]any)
	if len(repos) != 1 || repos[0] != "demo" {
		t.Errorf("repos = %v", repos)
	}
}

func TestHandleBoard_EmptyHasAllColumns(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.handleBoard(rr, httptest.NewRequest("GET", "/api/board", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp contracts.BoardResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	for _, col := range contracts.Columns() {
		if _, ok := resp.Columns[col]; !ok {
			t.Errorf("column %q missing", col)
		}
	}
}

func TestHandleTasks_CreateAndList(t *testing.T) {
	srv := newTestServer(t, nil)

	body, _ := json.Marshal(contracts.TaskCreateRequest{Title: "write docs"})
	rr := httptest.NewRecorder()
	srv.handleTasks(rr, httptest.NewRequest("POST", "/api/tasks", bytes.NewReader(body)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	var created contracts.Task
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Column != contracts.ColumnBacklog {
		t.Errorf("created = %+v", created)
	}

	rr = httptest.NewRecorder()
	srv.handleTasks(rr, httptest.NewRequest("GET", "/api/tasks", nil))
	var tasks []contracts.Task
	if err := json.NewDecoder(rr.Body).Decode(&tasks); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Title != "write docs" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestHandleTasks_InvalidBody(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.handleTasks(rr, httptest.NewRequest("POST", "/api/tasks", bytes.NewReader([]byte("{"))))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHandleTaskRoutes_CRUD(t *testing.T) {
	srv := newTestServer(t, nil)
	task := createTask(t, srv, contracts.TaskCreateRequest{Title: "t1"})

	// Get
	rr := httptest.NewRecorder()
	srv.handleTaskRoutes(rr, httptest.NewRequest("GET", "/api/tasks/"+task.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}

	// Update
	body, _ := json.Marshal(contracts.TaskUpdateRequest{Title: "renamed"})
	rr = httptest.NewRecorder()
	srv.handleTaskRoutes(rr, httptest.NewRequest("PUT", "/api/tasks/"+task.ID, bytes.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rr.Code, rr.Body.String())
	}
	var updated contracts.Task
	json.NewDecoder(rr.Body).Decode(&updated)
	if updated.Title != "renamed" {
		t.Errorf("title = %q", updated.Title)
	}

	// Move
	body, _ = json.Marshal(contracts.TaskMoveRequest{Column: contracts.ColumnDoing, Position: 0})
	rr = httptest.NewRecorder()
	srv.handleTaskRoutes(rr, httptest.NewRequest("POST", "/api/tasks/"+task.ID+"/move", bytes.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("move status = %d: %s", rr.Code, rr.Body.String())
	}
	var moved contracts.Task
	json.NewDecoder(rr.Body).Decode(&moved)
	if moved.Column != contracts.ColumnDoing {
		t.Errorf("column = %q", moved.Column)
	}

	// Delete
	rr = httptest.NewRecorder()
	srv.handleTaskRoutes(rr, httptest.NewRequest("DELETE", "/api/tasks/"+task.ID, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.handleTaskRoutes(rr, httptest.NewRequest("GET", "/api/tasks/"+task.ID, nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestHandleTaskRoutes_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.handleTaskRoutes(rr, httptest.NewRequest("GET", "/api/tasks/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestHandleTaskSpawn_MissingRepo(t *testing.T) {
	srv := newTestServer(t, nil)
	task := createTask(t, srv, contracts.TaskCreateRequest{Title: "no repo"})

	rr := httptest.NewRecorder()
	srv.handleTaskRoutes(rr, httptest.NewRequest("POST", "/api/tasks/"+task.ID+"/spawn", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHandleSessions_Empty(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.handleSessions(rr, httptest.NewRequest("GET", "/api/sessions", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var groups []contracts.WorkspaceWithSessions
	if err := json.NewDecoder(rr.Body).Decode(&groups); err != nil {
		t.Fatal(err)
	}
	if len(groups) != 0 {
		t.Errorf("groups = %+v", groups)
	}
}

func TestHandleSessionRoutes_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.handleSessionRoutes(rr, httptest.NewRequest("DELETE", "/api/sessions/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestHandleSchema(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.handleSchema(rr, httptest.NewRequest("GET", "/api/schema/task", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var parsed map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&parsed); err != nil {
		t.Fatalf("schema not valid JSON: %v", err)
	}

	rr = httptest.NewRecorder()
	srv.handleSchema(rr, httptest.NewRequest("GET", "/api/schema/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown label status = %d, want 404", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.handleSchema(rr, httptest.NewRequest("GET", "/api/schema/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("label list status = %d", rr.Code)
	}
}

func TestHandleRepoRoutes_UnknownRepo(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.handleRepoRoutes(rr, httptest.NewRequest("GET", "/api/repos/nope/commit-graph", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestHandleRepoRoutes_BadMaxCommits(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.handleRepoRoutes(rr, httptest.NewRequest("GET", "/api/repos/demo/commit-graph?max_commits=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHandleRepoRoutes_CommitGraph(t *testing.T) {
	remoteDir := t.TempDir()
	mustGit := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = remoteDir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	mustGit("init", "-b", "main")
	mustGit("config", "user.email", "test@test.com")
	mustGit("config", "user.name", "Test User")
	if err := os.WriteFile(filepath.Join(remoteDir, "README.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	mustGit("add", ".")
	mustGit("commit", "-m", "initial")

	cfg := &config.Config{
		WorkspacePath: t.TempDir(),
		Repos:         []config.Repo{{Name: "demo", URL: remoteDir, MainBranch: "main"}},
	}
	srv := newTestServer(t, cfg)

	task := createTask(t, srv, contracts.TaskCreateRequest{
		Title: "on main", Repo: "demo", Branch: "main",
	})

	rr := httptest.NewRecorder()
	srv.handleRepoRoutes(rr, httptest.NewRequest("GET", "/api/repos/demo/commit-graph", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp contracts.CommitGraphResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Commits) != 1 {
		t.Fatalf("commits = %d, want 1", len(resp.Commits))
	}
	if len(resp.Lanes) != 1 || resp.Lanes[0].Lane != 0 {
		t.Errorf("lanes = %+v", resp.Lanes)
	}

	main, ok := resp.Branches["main"]
	if !ok {
		t.Fatal("main branch missing")
	}
	if !main.IsMain {
		t.Error("main not flagged")
	}
	if len(main.TaskIDs) != 1 || main.TaskIDs[0] != task.ID {
		t.Errorf("task ids = %v, want [%s]", main.TaskIDs, task.ID)
	}
}

func TestAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{WorkspacePath: t.TempDir(), AuthTokenHash: string(hash)}
	srv := newTestServer(t, cfg)

	handler := srv.withAuth(srv.handleStatus)

	// No token.
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest("GET", "/api/status", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rr.Code)
	}

	// Wrong token.
	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rr.Code)
	}

	// Correct bearer token.
	req = httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("bearer status = %d, want 200", rr.Code)
	}

	// Token via query parameter (websocket clients).
	rr = httptest.NewRecorder()
	handler(rr, httptest.NewRequest("GET", "/api/status?token=secret", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("query token status = %d, want 200", rr.Code)
	}
}

func TestAuth_DisabledWithoutHash(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.withAuth(srv.handleStatus)(rr, httptest.NewRequest("GET", "/api/status", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}
