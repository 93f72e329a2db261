package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kabuto-png/taskdeck/internal/api/contracts"
	"github.com/kabuto-png/taskdeck/internal/gitgraph"
)

const defaultMaxCommits = 200

// fieldSep separates git log format fields; unit separator cannot
// appear in ref names and is vanishingly unlikely in subjects.
const fieldSep = "\x1f"

// CommitGraph loads the recent history of a configured repo and runs it
// through the layout engine, returning everything the frontend renderer
// needs: parsed commits, lane assignments, path segments, and branch
// heads. Branch task annotations are filled in by the caller.
func (m *Manager) CommitGraph(ctx context.Context, repoName string, maxCommits int) (*contracts.CommitGraphResponse, error) {
	if maxCommits <= 0 {
		maxCommits = defaultMaxCommits
	}

	repo, ok := m.config.FindRepo(repoName)
	if !ok {
		return nil, fmt.Errorf("repo not found: %s", repoName)
	}

	queryPath, err := m.ensureQueryClone(ctx, repo.URL)
	if err != nil {
		return nil, err
	}

	defaultBranch := repo.MainBranch
	if defaultBranch == "" {
		defaultBranch = detectDefaultBranch(ctx, queryPath)
	}

	commits, err := m.loadCommits(ctx, queryPath, maxCommits)
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w", err)
	}

	data := gitgraph.CalculateLanes(commits)
	paths := gitgraph.GeneratePaths(data.Lanes, commits)

	heads, err := listBranches(ctx, queryPath)
	if err != nil {
		return nil, err
	}
	branches := make(map[string]contracts.GraphBranch, len(heads))
	for name, head := range heads {
		branches[name] = contracts.GraphBranch{
			Head:    head,
			IsMain:  name == defaultBranch,
			TaskIDs: []string{},
		}
	}

	return &contracts.CommitGraphResponse{
		Repo:     repo.URL,
		Commits:  commits,
		Lanes:    data.Lanes,
		Paths:    paths,
		MaxLane:  data.MaxLane,
		ColorMap: data.ColorMap,
		Branches: branches,
	}, nil
}

// ensureQueryClone maintains a bare clone used only for history
// queries, so the graph works even when no workspace exists for the
// repo. The clone lives under <workspace root>/.repos.
func (m *Manager) ensureQueryClone(ctx context.Context, repoURL string) (string, error) {
	root := filepath.Join(m.config.GetWorkspacePath(), ".repos")
	path := filepath.Join(root, extractRepoName(repoURL)+".git")

	m.cloneMu.Lock()
	defer m.cloneMu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return "", fmt.Errorf("failed to create query clone root: %w", err)
		}
		if _, err := gitRun(ctx, root, "clone", "--bare", repoURL, path); err != nil {
			return "", fmt.Errorf("failed to clone %s: %w", repoURL, err)
		}
		// Bare clones don't track remote branches by default.
		if _, err := gitRun(ctx, path, "config", "remote.origin.fetch",
			"+refs/heads/*:refs/remotes/origin/*"); err != nil {
			return "", err
		}
	}

	// Refresh is best-effort; a stale graph beats no graph when the
	// remote is unreachable.
	if _, err := gitRun(ctx, path, "fetch", "--prune", "origin"); err != nil {
		m.logger.Warn("query clone fetch failed", "repo", repoURL, "err", err)
	}

	return path, nil
}

// loadCommits runs git log across all refs and parses the output into
// layout engine input, newest first.
func (m *Manager) loadCommits(ctx context.Context, dir string, maxCommits int) ([]gitgraph.Commit, error) {
	format := strings.Join([]string{"%H", "%h", "%s", "%an", "%aI", "%P", "%D"}, "%x1f")
	out, err := gitRun(ctx, dir, "log",
		"--format="+format,
		"--topo-order",
		fmt.Sprintf("--max-count=%d", maxCommits),
		"--all")
	if err != nil {
		// A freshly initialized repo has no commits at all.
		if strings.Contains(err.Error(), "does not have any commits") {
			return []gitgraph.Commit{}, nil
		}
		return nil, err
	}

	var commits []gitgraph.Commit
	seen := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, fieldSep)
		if len(parts) < 7 {
			continue
		}
		hash := parts[0]
		if seen[hash] {
			continue
		}
		seen[hash] = true

		var parents []string
		if parts[5] != "" {
			parents = strings.Fields(parts[5])
		}

		commits = append(commits, gitgraph.Commit{
			Hash:      hash,
			ShortHash: parts[1],
			Message:   parts[2],
			Author:    parts[3],
			Date:      parts[4],
			Parents:   parents,
			Refs:      parseRefs(parts[6]),
			IsMerge:   len(parents) > 1,
		})
	}

	return commits, nil
}

// parseRefs splits the %D decoration ("HEAD -> main, origin/main,
// tag: v1.0") into individual ref names, dropping the tag: prefix.
func parseRefs(decoration string) []string {
	decoration = strings.TrimSpace(decoration)
	if decoration == "" {
		return nil
	}
	var refs []string
	for _, ref := range strings.Split(decoration, ", ") {
		ref = strings.TrimPrefix(ref, "tag: ")
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}
