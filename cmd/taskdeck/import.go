package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kabuto-png/taskdeck/pkg/cli"
)

// ImportCommand implements the import command.
type ImportCommand struct {
	client cli.DaemonClient
}

// NewImportCommand creates a new import command.
func NewImportCommand(client cli.DaemonClient) *ImportCommand {
	return &ImportCommand{client: client}
}

// Run executes the import command.
func (cmd *ImportCommand) Run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskdeck import <file.yaml>")
	}

	// The daemon reads the file itself, so it needs an absolute path.
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if !cmd.client.IsRunning() {
		return fmt.Errorf("daemon is not running. Start it with: taskdeck start")
	}

	created, err := cmd.client.ImportTasks(context.Background(), path)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported %d tasks:\n", len(created))
	for _, task := range created {
		fmt.Printf("  [%s] %s (%s)\n", task.ID, task.Title, task.Column)
	}
	return nil
}
