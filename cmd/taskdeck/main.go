package main

import (
	"fmt"
	"os"

	"github.com/kabuto-png/taskdeck/internal/config"
	"github.com/kabuto-png/taskdeck/internal/daemon"
	"github.com/kabuto-png/taskdeck/internal/update"
	"github.com/kabuto-png/taskdeck/internal/version"
	"github.com/kabuto-png/taskdeck/pkg/cli"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "start", "daemon-run":
		// Shared setup for both start and daemon-run
		configOk, err := config.EnsureExists()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking config: %v\n", err)
			os.Exit(1)
		}
		if !configOk {
			// User declined to create config
			os.Exit(1)
		}

		if err := daemon.ValidateReadyToRun(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Diverge here: background vs inline
		if command == "start" {
			if err := daemon.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("taskdeck daemon started")
		} else { // daemon-run
			if err := daemon.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
				os.Exit(1)
			}
		}

	case "stop":
		if err := daemon.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("taskdeck daemon stopped")

	case "status":
		running, url, _, err := daemon.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if running {
			fmt.Println("taskdeck daemon is running")
			fmt.Printf("Dashboard: %s\n", url)
		} else {
			fmt.Println("taskdeck daemon is not running")
			os.Exit(1)
		}

	case "version", "-v", "--version":
		fmt.Printf("taskdeck v%s\n", version.Version)

	case "update":
		if err := update.Update(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	case "tasks":
		runClientCommand(func(client cli.DaemonClient) clientCommand {
			return NewTasksCommand(client)
		})

	case "add":
		runClientCommand(func(client cli.DaemonClient) clientCommand {
			return NewAddCommand(client)
		})

	case "move":
		runClientCommand(func(client cli.DaemonClient) clientCommand {
			return NewMoveCommand(client)
		})

	case "spawn":
		runClientCommand(func(client cli.DaemonClient) clientCommand {
			return NewSpawnCommand(client)
		})

	case "attach":
		runClientCommand(func(client cli.DaemonClient) clientCommand {
			return NewAttachCommand(client)
		})

	case "dispose":
		runClientCommand(func(client cli.DaemonClient) clientCommand {
			return NewDisposeCommand(client)
		})

	case "import":
		runClientCommand(func(client cli.DaemonClient) clientCommand {
			return NewImportCommand(client)
		})

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// clientCommand is the shape shared by all daemon-backed subcommands.
type clientCommand interface {
	Run(args []string) error
}

func runClientCommand(build func(cli.DaemonClient) clientCommand) {
	client := cli.NewDaemonClient(cli.GetDefaultURL())
	cmd := build(client)
	if err := cmd.Run(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("taskdeck - kanban board for coding agent sessions")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  taskdeck <command>")
	fmt.Println()
	fmt.Println("Daemon Commands:")
	fmt.Println("  start       Start the daemon in background")
	fmt.Println("  stop        Stop the daemon")
	fmt.Println("  status      Show daemon status and dashboard URL")
	fmt.Println("  daemon-run  Run the daemon in foreground (for debugging)")
	fmt.Println()
	fmt.Println("Board Commands:")
	fmt.Println("  tasks       List tasks grouped by column")
	fmt.Println("  add         Add a task to the board")
	fmt.Println("  move        Move a task to a column")
	fmt.Println("  import      Bulk-import tasks from a YAML file")
	fmt.Println()
	fmt.Println("Session Commands:")
	fmt.Println("  spawn       Spawn an agent session for a task")
	fmt.Println("  attach      Attach to a session's tmux window")
	fmt.Println("  dispose     Dispose a session")
	fmt.Println()
	fmt.Println("Other:")
	fmt.Println("  version     Show version")
	fmt.Println("  update      Update taskdeck to the latest version")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  taskdeck start                       # Start the daemon")
	fmt.Println("  taskdeck add \"fix login bug\" -r api  # Add a task")
	fmt.Println("  taskdeck tasks                       # Show the board")
	fmt.Println("  taskdeck spawn <task-id>             # Spawn an agent on a task")
	fmt.Println("  taskdeck attach <session-id>         # Attach to its tmux session")
	fmt.Println("  taskdeck import tasks.yaml           # Bulk-import tasks")
}
