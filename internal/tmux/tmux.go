// Package tmux wraps the tmux commands the daemon needs to run agent
// sessions: detached creation, liveness checks, output capture, and key
// injection for the web terminal.
package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CreateSession creates a detached tmux session running command in dir.
func CreateSession(name, dir, command string) error {
	args := []string{
		"new-session",
		"-d",
		"-s", name,
		"-c", dir,
		command,
	}

	cmd := exec.Command("tmux", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create tmux session: %w: %s", err, string(output))
	}
	return nil
}

// SessionExists checks if a tmux session with the given name exists.
func SessionExists(name string) bool {
	cmd := exec.Command("tmux", "has-session", "-t", "="+name)
	return cmd.Run() == nil
}

// GetPanePID returns the PID of the first process in the session's pane.
func GetPanePID(name string) (int, error) {
	cmd := exec.Command("tmux", "display-message", "-p", "-t", name, "#{pane_pid}")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("failed to get pane PID: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(stdout.String()))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PID: %w", err)
	}
	return pid, nil
}

// GetWindowSize returns the current window dimensions of a session.
func GetWindowSize(ctx context.Context, name string) (cols, rows int, err error) {
	cmd := exec.CommandContext(ctx, "tmux", "display-message", "-p", "-t", "="+name,
		"#{window_width} #{window_height}")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, 0, fmt.Errorf("failed to get window size: %w", err)
	}
	fields := strings.Fields(stdout.String())
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected window size output: %q", stdout.String())
	}
	cols, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, err
	}
	rows, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, err
	}
	return cols, rows, nil
}

// CaptureOutput captures a session's full scrollback.
func CaptureOutput(name string) (string, error) {
	cmd := exec.Command("tmux", "capture-pane", "-p", "-S", "-", "-t", name)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to capture tmux output: %w", err)
	}
	return stdout.String(), nil
}

// CaptureLastLines captures the last n lines of a session's scrollback,
// including escape sequences so the web terminal renders colors.
func CaptureLastLines(ctx context.Context, name string, n int) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", "capture-pane", "-p", "-e",
		"-S", fmt.Sprintf("-%d", n), "-t", "="+name)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to capture tmux output: %w", err)
	}
	return stdout.String(), nil
}

// SendKeys sends literal input to a session.
func SendKeys(ctx context.Context, name, keys string) error {
	cmd := exec.CommandContext(ctx, "tmux", "send-keys", "-t", "="+name, "-l", keys)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to send keys to tmux session: %w", err)
	}
	return nil
}

// ResizeWindow resizes a session's window.
func ResizeWindow(ctx context.Context, name string, cols, rows int) error {
	cmd := exec.CommandContext(ctx, "tmux", "resize-window", "-t", "="+name,
		"-x", strconv.Itoa(cols), "-y", strconv.Itoa(rows))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to resize tmux window: %w", err)
	}
	return nil
}

// SetOption sets a session-scoped tmux option.
func SetOption(ctx context.Context, name, option, value string) error {
	cmd := exec.CommandContext(ctx, "tmux", "set-option", "-t", "="+name, option, value)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to set tmux option %s: %w", option, err)
	}
	return nil
}

// KillSession kills a tmux session.
func KillSession(name string) error {
	cmd := exec.Command("tmux", "kill-session", "-t", "="+name)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to kill tmux session: %w: %s", err, string(output))
	}
	return nil
}

// ListSessions returns all tmux session names.
func ListSessions() ([]string, error) {
	cmd := exec.Command("tmux", "list-sessions", "-F", "#{session_name}")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		// tmux exits non-zero when no server is running.
		return []string{}, nil
	}

	output := strings.TrimSpace(stdout.String())
	if output == "" {
		return []string{}, nil
	}
	return strings.Split(output, "\n"), nil
}

// GetAttachCommand returns the shell command to attach to a session.
func GetAttachCommand(name string) string {
	return fmt.Sprintf("tmux attach -t %s", name)
}

// Available reports whether the tmux binary can be found.
func Available() error {
	if _, err := exec.LookPath("tmux"); err != nil {
		return fmt.Errorf("tmux is not installed or not on PATH: %w", err)
	}
	return nil
}
