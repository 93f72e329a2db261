// Package workspace manages git checkouts for agent sessions and runs
// the git queries behind the commit graph API.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kabuto-png/taskdeck/internal/config"
	"github.com/kabuto-png/taskdeck/internal/state"
)

// workspaceNumberFormat numbers workspaces per repo ("001", "002"...).
const workspaceNumberFormat = "%03d"

// Manager manages workspace directories and repo query clones.
type Manager struct {
	config *config.Config
	state  state.StateStore
	logger *log.Logger

	// cloneMu serializes clone operations so two spawns for the same
	// repo never race on the same directory.
	cloneMu sync.Mutex
}

// New creates a new workspace manager.
func New(cfg *config.Config, st state.StateStore) *Manager {
	return &Manager{
		config: cfg,
		state:  st,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "workspace"}),
	}
}

// GetByID returns a workspace by its ID.
func (m *Manager) GetByID(workspaceID string) (*state.Workspace, bool) {
	w, found := m.state.GetWorkspace(workspaceID)
	if !found {
		return nil, false
	}
	return &w, true
}

// GetOrCreate finds an existing workspace for the repoURL/branch or
// creates a new clone. The returned workspace is fetched and checked
// out on branch.
func (m *Manager) GetOrCreate(ctx context.Context, repoURL, branch string) (*state.Workspace, error) {
	if err := ValidateBranchName(branch); err != nil {
		return nil, err
	}

	m.cloneMu.Lock()
	defer m.cloneMu.Unlock()

	if w, found := m.state.FindWorkspace(repoURL, branch); found {
		if _, err := os.Stat(w.Path); err == nil {
			m.logger.Info("reusing workspace", "id", w.ID, "branch", branch)
			if err := m.prepare(ctx, &w, branch); err != nil {
				return nil, fmt.Errorf("failed to prepare workspace: %w", err)
			}
			return &w, nil
		}
		// Directory vanished out from under us; recreate below.
		m.logger.Warn("workspace directory missing", "id", w.ID, "path", w.Path)
		_ = m.state.RemoveWorkspace(w.ID)
	}

	repoName := extractRepoName(repoURL)
	id := m.nextWorkspaceID(repoName)
	path := filepath.Join(m.config.GetWorkspacePath(), id)

	if err := os.MkdirAll(m.config.GetWorkspacePath(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}

	m.logger.Info("cloning workspace", "repo", repoURL, "id", id)
	if _, err := gitRun(ctx, m.config.GetWorkspacePath(), "clone", repoURL, path); err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", repoURL, err)
	}

	w := state.Workspace{ID: id, Repo: repoURL, Branch: branch, Path: path}
	if err := m.prepare(ctx, &w, branch); err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}

	if err := m.state.AddWorkspace(w); err != nil {
		return nil, err
	}
	if err := m.state.Save(); err != nil {
		return nil, fmt.Errorf("failed to save state: %w", err)
	}
	return &w, nil
}

// prepare fetches and checks out branch, creating it from the default
// branch when it does not exist yet.
func (m *Manager) prepare(ctx context.Context, w *state.Workspace, branch string) error {
	// Fetch is best-effort: offline work against an existing clone is
	// still useful.
	if _, err := gitRun(ctx, w.Path, "fetch", "--prune", "origin"); err != nil {
		m.logger.Warn("fetch failed", "id", w.ID, "err", err)
	}

	if resolveRef(ctx, w.Path, "refs/heads/"+branch) != "" {
		if _, err := gitRun(ctx, w.Path, "checkout", branch); err != nil {
			return err
		}
	} else if resolveRef(ctx, w.Path, "refs/remotes/origin/"+branch) != "" {
		if _, err := gitRun(ctx, w.Path, "checkout", "-b", branch, "origin/"+branch); err != nil {
			return err
		}
	} else {
		base := detectDefaultBranch(ctx, w.Path)
		if _, err := gitRun(ctx, w.Path, "checkout", "-b", branch, base); err != nil {
			return err
		}
	}

	w.Branch = branch
	return nil
}

// nextWorkspaceID returns the first unused td-<repo>-NNN identifier.
func (m *Manager) nextWorkspaceID(repoName string) string {
	existing := make(map[string]bool)
	for _, w := range m.state.GetWorkspaces() {
		existing[w.ID] = true
	}
	for n := 1; ; n++ {
		id := fmt.Sprintf("td-%s-"+workspaceNumberFormat, repoName, n)
		if !existing[id] {
			return id
		}
	}
}

// Remove deletes a workspace directory and forgets it.
func (m *Manager) Remove(workspaceID string) error {
	w, found := m.state.GetWorkspace(workspaceID)
	if !found {
		return fmt.Errorf("workspace not found: %s", workspaceID)
	}
	if err := os.RemoveAll(w.Path); err != nil {
		return fmt.Errorf("failed to remove workspace directory: %w", err)
	}
	if err := m.state.RemoveWorkspace(workspaceID); err != nil {
		return err
	}
	return m.state.Save()
}
