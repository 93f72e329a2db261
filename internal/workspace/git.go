package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var branchNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(?:[._/-][a-zA-Z0-9_]+)*$`)

// ErrInvalidBranchName is returned when a branch name fails validation.
var ErrInvalidBranchName = errors.New("invalid branch name")

// ValidateBranchName checks whether a branch name is acceptable for use.
// Returns nil if valid, or an error describing the problem.
func ValidateBranchName(branch string) error {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return fmt.Errorf("%w: branch name cannot be empty", ErrInvalidBranchName)
	}
	if !branchNamePattern.MatchString(branch) {
		return fmt.Errorf("%w: %q does not match required format (alphanumeric, underscores, hyphens, forward slashes, or periods)", ErrInvalidBranchName, branch)
	}
	// Check for consecutive separators (-, ., /, _)
	for i := 0; i < len(branch)-1; i++ {
		if branch[i] == branch[i+1] && (branch[i] == '-' || branch[i] == '.' || branch[i] == '/' || branch[i] == '_') {
			return fmt.Errorf("%w: %q has consecutive characters", ErrInvalidBranchName, branch)
		}
	}
	return nil
}

// extractRepoName derives a directory-safe repo name from a git URL or
// local path: "git@github.com:user/demo.git" and "/srv/git/demo" both
// yield "demo".
func extractRepoName(repoURL string) string {
	name := strings.TrimSuffix(repoURL, ".git")
	name = strings.TrimRight(name, "/")
	if idx := strings.LastIndexAny(name, "/:"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return "repo"
	}
	return name
}

// gitRun executes a git command in dir and returns its stdout.
func gitRun(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// resolveRef resolves a git ref to its commit hash, or "" if it does not
// exist.
func resolveRef(ctx context.Context, dir, ref string) string {
	out, err := gitRun(ctx, dir, "rev-parse", "--verify", ref)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// detectDefaultBranch finds the repo's main branch by checking the
// usual suspects against the available refs.
func detectDefaultBranch(ctx context.Context, dir string) string {
	// origin/HEAD is authoritative when present.
	if out, err := gitRun(ctx, dir, "symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		ref := strings.TrimSpace(out)
		if name := strings.TrimPrefix(ref, "refs/remotes/origin/"); name != ref {
			return name
		}
	}
	for _, candidate := range []string{"main", "master"} {
		if resolveRef(ctx, dir, "refs/remotes/origin/"+candidate) != "" {
			return candidate
		}
		if resolveRef(ctx, dir, "refs/heads/"+candidate) != "" {
			return candidate
		}
	}
	return "main"
}

// listBranches returns branch name → head hash for all remote-tracking
// branches, falling back to local heads in repos without a remote.
func listBranches(ctx context.Context, dir string) (map[string]string, error) {
	heads := make(map[string]string)

	out, err := gitRun(ctx, dir, "for-each-ref", "--format=%(refname)%00%(objectname)",
		"refs/remotes/origin", "refs/heads")
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\x00", 2)
		if len(parts) != 2 {
			continue
		}
		ref, hash := parts[0], parts[1]
		var name string
		switch {
		case strings.HasPrefix(ref, "refs/remotes/origin/"):
			name = strings.TrimPrefix(ref, "refs/remotes/origin/")
		case strings.HasPrefix(ref, "refs/heads/"):
			name = strings.TrimPrefix(ref, "refs/heads/")
		default:
			continue
		}
		if name == "HEAD" {
			continue
		}
		if _, seen := heads[name]; !seen {
			heads[name] = hash
		}
	}
	return heads, nil
}
