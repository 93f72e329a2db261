package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kabuto-png/taskdeck/pkg/cli"
)

// Board columns in display order. Must match the daemon's ordering.
var boardColumns = []string{"backlog", "doing", "review", "done"}

// TasksCommand implements the tasks command.
type TasksCommand struct {
	client cli.DaemonClient
}

// NewTasksCommand creates a new tasks command.
func NewTasksCommand(client cli.DaemonClient) *TasksCommand {
	return &TasksCommand{client: client}
}

// Run executes the tasks command.
func (cmd *TasksCommand) Run(args []string) error {
	var jsonOutput bool
	for _, arg := range args {
		if arg == "-json" || arg == "--json" {
			jsonOutput = true
		}
	}

	if !cmd.client.IsRunning() {
		return fmt.Errorf("daemon is not running. Start it with: taskdeck start")
	}

	tasks, err := cmd.client.GetTasks()
	if err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(tasks)
	}

	return cmd.outputHuman(tasks)
}

// outputHuman prints tasks grouped by column in board order.
func (cmd *TasksCommand) outputHuman(tasks []cli.Task) error {
	if len(tasks) == 0 {
		fmt.Println("No tasks on the board.")
		return nil
	}

	byColumn := make(map[string][]cli.Task)
	for _, task := range tasks {
		byColumn[task.Column] = append(byColumn[task.Column], task)
	}

	for _, column := range boardColumns {
		columnTasks := byColumn[column]
		if len(columnTasks) == 0 {
			continue
		}

		fmt.Printf("%s (%d)\n", column, len(columnTasks))
		for _, task := range columnTasks {
			marker := ""
			if task.SessionID != "" {
				marker = " *"
			}
			fmt.Printf("  [%s] %s%s\n", task.ID, task.Title, marker)
			if task.Repo != "" {
				fmt.Printf("        %s @ %s\n", task.Repo, task.Branch)
			}
		}
		fmt.Println()
	}

	return nil
}
