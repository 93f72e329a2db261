package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kabuto-png/taskdeck/pkg/cli"
)

// MoveCommand implements the move command.
type MoveCommand struct {
	client cli.DaemonClient
}

// NewMoveCommand creates a new move command.
func NewMoveCommand(client cli.DaemonClient) *MoveCommand {
	return &MoveCommand{client: client}
}

// Run executes the move command.
func (cmd *MoveCommand) Run(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: taskdeck move <task-id> <column> [position]")
	}

	taskID := args[0]
	column := args[1]
	position := 0
	if len(args) >= 3 {
		p, err := strconv.Atoi(args[2])
		if err != nil || p < 0 {
			return fmt.Errorf("position must be a non-negative number, got %q", args[2])
		}
		position = p
	}

	if !cmd.client.IsRunning() {
		return fmt.Errorf("daemon is not running. Start it with: taskdeck start")
	}

	task, err := cmd.client.MoveTask(context.Background(), taskID, column, position)
	if err != nil {
		return fmt.Errorf("failed to move task: %w", err)
	}

	fmt.Printf("Moved task [%s] to %s at position %d\n", task.ID, task.Column, task.Position)
	return nil
}
