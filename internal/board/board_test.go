package board

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kabuto-png/taskdeck/internal/api/contracts"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndGet(t *testing.T) {
	store := openTestStore(t)

	task, err := store.Add(contracts.TaskCreateRequest{
		Title: "Fix login bug",
		Repo:  "myproject",
		Agent: "claude",
	})
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if task.ID == "" {
		t.Error("expected generated task ID")
	}
	if task.Column != contracts.ColumnBacklog {
		t.Errorf("expected default column backlog, got %s", task.Column)
	}

	got, err := store.Get(task.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Title != "Fix login bug" {
		t.Errorf("unexpected title: %s", got.Title)
	}
	if got.CreatedAt == "" || got.UpdatedAt == "" {
		t.Error("expected timestamps to be set")
	}
}

func TestAdd_Validation(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Add(contracts.TaskCreateRequest{}); err == nil {
		t.Error("expected error for missing title")
	}
	if _, err := store.Add(contracts.TaskCreateRequest{Title: "x", Column: "nope"}); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestAdd_AppendsToColumn(t *testing.T) {
	store := openTestStore(t)

	first, _ := store.Add(contracts.TaskCreateRequest{Title: "one"})
	second, _ := store.Add(contracts.TaskCreateRequest{Title: "two"})

	if first.Position != 0 {
		t.Errorf("expected position 0, got %d", first.Position)
	}
	if second.Position != 1 {
		t.Errorf("expected position 1, got %d", second.Position)
	}
}

func TestGet_NotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get("nope")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	store := openTestStore(t)

	task, _ := store.Add(contracts.TaskCreateRequest{Title: "before"})
	updated, err := store.Update(task.ID, contracts.TaskUpdateRequest{
		Title:  "after",
		Branch: "feature/x",
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Title != "after" {
		t.Errorf("expected title after, got %s", updated.Title)
	}
	if updated.Branch != "feature/x" {
		t.Errorf("expected branch feature/x, got %s", updated.Branch)
	}

	got, _ := store.Get(task.ID)
	if got.Title != "after" {
		t.Errorf("update not persisted, got %s", got.Title)
	}
}

func TestMove(t *testing.T) {
	store := openTestStore(t)

	a, _ := store.Add(contracts.TaskCreateRequest{Title: "a"})
	b, _ := store.Add(contracts.TaskCreateRequest{Title: "b"})
	c, _ := store.Add(contracts.TaskCreateRequest{Title: "c"})

	// Move b to doing: backlog compacts, doing gets it at 0.
	moved, err := store.Move(b.ID, contracts.ColumnDoing, 0)
	if err != nil {
		t.Fatalf("Move() failed: %v", err)
	}
	if moved.Column != contracts.ColumnDoing || moved.Position != 0 {
		t.Errorf("unexpected placement: %s/%d", moved.Column, moved.Position)
	}

	gotA, _ := store.Get(a.ID)
	gotC, _ := store.Get(c.ID)
	if gotA.Position != 0 || gotC.Position != 1 {
		t.Errorf("backlog not compacted: a=%d c=%d", gotA.Position, gotC.Position)
	}

	// Move a into doing ahead of b.
	if _, err := store.Move(a.ID, contracts.ColumnDoing, 0); err != nil {
		t.Fatalf("Move() failed: %v", err)
	}
	gotB, _ := store.Get(b.ID)
	if gotB.Position != 1 {
		t.Errorf("expected b pushed to position 1, got %d", gotB.Position)
	}
}

func TestMove_ClampsPosition(t *testing.T) {
	store := openTestStore(t)

	task, _ := store.Add(contracts.TaskCreateRequest{Title: "solo"})
	moved, err := store.Move(task.ID, contracts.ColumnDone, 99)
	if err != nil {
		t.Fatalf("Move() failed: %v", err)
	}
	if moved.Position != 0 {
		t.Errorf("expected clamped position 0, got %d", moved.Position)
	}
}

func TestBoard_GroupsByColumn(t *testing.T) {
	store := openTestStore(t)

	store.Add(contracts.TaskCreateRequest{Title: "one"})
	store.Add(contracts.TaskCreateRequest{Title: "two", Column: contracts.ColumnDoing})

	resp, err := store.Board()
	if err != nil {
		t.Fatalf("Board() failed: %v", err)
	}
	for _, col := range contracts.Columns() {
		if _, ok := resp.Columns[col]; !ok {
			t.Errorf("expected column %s present", col)
		}
	}
	if len(resp.Columns[contracts.ColumnBacklog]) != 1 {
		t.Errorf("expected 1 backlog task, got %d", len(resp.Columns[contracts.ColumnBacklog]))
	}
	if len(resp.Columns[contracts.ColumnDoing]) != 1 {
		t.Errorf("expected 1 doing task, got %d", len(resp.Columns[contracts.ColumnDoing]))
	}
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)

	task, _ := store.Add(contracts.TaskCreateRequest{Title: "gone"})
	if err := store.Delete(task.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get(task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound after delete, got %v", err)
	}
	if err := store.Delete(task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound for double delete, got %v", err)
	}
}

func TestLinkSession(t *testing.T) {
	store := openTestStore(t)

	task, _ := store.Add(contracts.TaskCreateRequest{Title: "linked"})
	if err := store.LinkSession(task.ID, "sess-123"); err != nil {
		t.Fatalf("LinkSession() failed: %v", err)
	}

	found, ok := store.FindBySession("sess-123")
	if !ok {
		t.Fatal("expected to find task by session")
	}
	if found.ID != task.ID {
		t.Errorf("expected task %s, got %s", task.ID, found.ID)
	}

	// Clearing the link.
	if err := store.LinkSession(task.ID, ""); err != nil {
		t.Fatalf("LinkSession(clear) failed: %v", err)
	}
	if _, ok := store.FindBySession("sess-123"); ok {
		t.Error("expected no task after unlink")
	}
}

func TestTasksForBranch(t *testing.T) {
	store := openTestStore(t)

	store.Add(contracts.TaskCreateRequest{Title: "a", Repo: "demo", Branch: "feature/x"})
	store.Add(contracts.TaskCreateRequest{Title: "b", Repo: "demo", Branch: "feature/x"})
	store.Add(contracts.TaskCreateRequest{Title: "c", Repo: "demo", Branch: "main"})

	ids, err := store.TasksForBranch("demo", "feature/x")
	if err != nil {
		t.Fatalf("TasksForBranch() failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(ids))
	}
}

func TestImportYAML(t *testing.T) {
	store := openTestStore(t)

	path := filepath.Join(t.TempDir(), "tasks.yaml")
	content := `tasks:
  - title: Wire up auth
    column: doing
    repo: demo
    branch: feature/auth
    agent: claude
  - title: Fix graph colors
    description: branch colors flicker between renders
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write yaml: %v", err)
	}

	created, err := store.ImportYAML(path)
	if err != nil {
		t.Fatalf("ImportYAML() failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(created))
	}
	if created[0].Column != contracts.ColumnDoing {
		t.Errorf("expected doing column, got %s", created[0].Column)
	}
	if created[1].Column != contracts.ColumnBacklog {
		t.Errorf("expected backlog default, got %s", created[1].Column)
	}
}

func TestImportYAML_RejectsInvalid(t *testing.T) {
	store := openTestStore(t)

	path := filepath.Join(t.TempDir(), "tasks.yaml")
	content := `tasks:
  - title: ok
  - description: missing title
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write yaml: %v", err)
	}

	if _, err := store.ImportYAML(path); err == nil {
		t.Fatal("expected error for missing title")
	}

	// Validation happens before any insert.
	tasks, _ := store.List()
	if len(tasks) != 0 {
		t.Errorf("expected no tasks created, got %d", len(tasks))
	}
}
