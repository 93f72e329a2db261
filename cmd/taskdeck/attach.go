package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"

	"github.com/kabuto-png/taskdeck/pkg/cli"
)

// AttachCommand implements the attach command.
type AttachCommand struct {
	client cli.DaemonClient
}

// NewAttachCommand creates a new attach command.
func NewAttachCommand(client cli.DaemonClient) *AttachCommand {
	return &AttachCommand{client: client}
}

// Run executes the attach command.
func (cmd *AttachCommand) Run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskdeck attach <session-id>")
	}

	sessionID := args[0]

	// tmux attach needs a real terminal on stdin.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("attach requires an interactive terminal")
	}

	if !cmd.client.IsRunning() {
		return fmt.Errorf("daemon is not running. Start it with: taskdeck start")
	}

	sessions, err := cmd.client.GetSessions()
	if err != nil {
		return fmt.Errorf("failed to get sessions: %w", err)
	}

	tmuxSession := ""
	for _, ws := range sessions {
		for _, sess := range ws.Sessions {
			if sess.ID == sessionID {
				tmuxSession = parseTmuxSession(sess.AttachCmd)
				if tmuxSession == "" {
					tmuxSession = sessionID
				}
			}
		}
	}

	if tmuxSession == "" {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	tmuxCmd := exec.Command("tmux", "attach", "-t", tmuxSession)
	tmuxCmd.Stdin = os.Stdin
	tmuxCmd.Stdout = os.Stdout
	tmuxCmd.Stderr = os.Stderr

	return tmuxCmd.Run()
}

// parseTmuxSession extracts the tmux session name from an attach command.
// Handles both quoted and unquoted session names.
func parseTmuxSession(cmd string) string {
	idx := strings.Index(cmd, "-t")
	if idx == -1 {
		return ""
	}

	rest := strings.TrimSpace(cmd[idx+2:])
	if rest == "" {
		return ""
	}

	if rest[0] == '"' || rest[0] == '\'' {
		quote := rune(rest[0])
		rest = rest[1:]
		endQuote := strings.IndexRune(rest, quote)
		if endQuote == -1 {
			return rest
		}
		return rest[:endQuote]
	}

	if idx := strings.IndexAny(rest, " \t\n"); idx != -1 {
		return rest[:idx]
	}

	return rest
}
