package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/kabuto-png/taskdeck/pkg/cli"
)

// SpawnCommand implements the spawn command.
type SpawnCommand struct {
	client cli.DaemonClient
}

// NewSpawnCommand creates a new spawn command.
func NewSpawnCommand(client cli.DaemonClient) *SpawnCommand {
	return &SpawnCommand{client: client}
}

// Run executes the spawn command.
func (cmd *SpawnCommand) Run(args []string) error {
	var (
		resumeFlag bool
		jsonOutput bool
	)

	fs := flag.NewFlagSet("spawn", flag.ExitOnError)
	fs.BoolVar(&resumeFlag, "resume", false, "Resume the task's previous agent conversation")
	fs.BoolVar(&jsonOutput, "json", false, "JSON output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: taskdeck spawn [-resume] <task-id>")
	}
	taskID := fs.Arg(0)

	if !cmd.client.IsRunning() {
		return fmt.Errorf("daemon is not running. Start it with: taskdeck start")
	}

	spawn := cmd.client.SpawnTask
	if resumeFlag {
		spawn = cmd.client.ResumeTask
	}
	spawned, err := spawn(context.Background(), taskID)
	if err != nil {
		return fmt.Errorf("spawn failed: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(spawned)
	}

	fmt.Printf("Session: %s\n", spawned.SessionID)
	fmt.Printf("Workspace: %s\n", spawned.WorkspaceID)
	fmt.Printf("Attach: taskdeck attach %s\n", spawned.SessionID)
	return nil
}
