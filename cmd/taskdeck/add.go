package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/kabuto-png/taskdeck/pkg/cli"
)

// AddCommand implements the add command.
type AddCommand struct {
	client cli.DaemonClient
}

// NewAddCommand creates a new add command.
func NewAddCommand(client cli.DaemonClient) *AddCommand {
	return &AddCommand{client: client}
}

// Run executes the add command.
func (cmd *AddCommand) Run(args []string) error {
	title, rest, err := splitTitle(args)
	if err != nil {
		return err
	}

	var (
		descFlag   string
		columnFlag string
		repoFlag   string
		branchFlag string
		agentFlag  string
	)

	fs := flag.NewFlagSet("add", flag.ExitOnError)
	fs.StringVar(&descFlag, "d", "", "Task description")
	fs.StringVar(&descFlag, "description", "", "Task description")
	fs.StringVar(&columnFlag, "c", "", "Board column (default backlog)")
	fs.StringVar(&columnFlag, "column", "", "Board column (default backlog)")
	fs.StringVar(&repoFlag, "r", "", "Repo name from config")
	fs.StringVar(&repoFlag, "repo", "", "Repo name from config")
	fs.StringVar(&branchFlag, "b", "", "Git branch for the task")
	fs.StringVar(&branchFlag, "branch", "", "Git branch for the task")
	fs.StringVar(&agentFlag, "a", "", "Agent name from config")
	fs.StringVar(&agentFlag, "agent", "", "Agent name from config")

	if err := fs.Parse(rest); err != nil {
		return err
	}

	if !cmd.client.IsRunning() {
		return fmt.Errorf("daemon is not running. Start it with: taskdeck start")
	}

	task, err := cmd.client.CreateTask(context.Background(), cli.TaskCreateRequest{
		Title:       title,
		Description: descFlag,
		Column:      columnFlag,
		Repo:        repoFlag,
		Branch:      branchFlag,
		Agent:       agentFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}

	fmt.Printf("Added task [%s] %s to %s\n", task.ID, task.Title, task.Column)
	return nil
}

// splitTitle takes the task title from the first positional argument and
// returns the remaining flag arguments.
func splitTitle(args []string) (string, []string, error) {
	if len(args) < 1 || args[0] == "" || args[0][0] == '-' {
		return "", nil, fmt.Errorf("usage: taskdeck add <title> [-d description] [-c column] [-r repo] [-b branch] [-a agent]")
	}
	return args[0], args[1:], nil
}
