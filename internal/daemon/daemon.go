// Package daemon runs the taskdeck background process: it owns the
// board store, session manager, and dashboard server, and manages the
// pidfile used by start/stop/status.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kabuto-png/taskdeck/internal/board"
	"github.com/kabuto-png/taskdeck/internal/config"
	"github.com/kabuto-png/taskdeck/internal/dashboard"
	"github.com/kabuto-png/taskdeck/internal/session"
	"github.com/kabuto-png/taskdeck/internal/state"
	"github.com/kabuto-png/taskdeck/internal/tmux"
	"github.com/kabuto-png/taskdeck/internal/workspace"
)

const pidFileName = "daemon.pid"
const stateFileName = "state.json"

var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "daemon"})

func taskdeckDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".taskdeck"), nil
}

func pidFilePath() (string, error) {
	dir, err := taskdeckDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, pidFileName), nil
}

// readPid returns the PID recorded in the pidfile, or 0 when absent.
func readPid() (int, error) {
	path, err := pidFilePath()
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read pidfile: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pidfile content: %w", err)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// ValidateReadyToRun checks external prerequisites before the daemon
// starts.
func ValidateReadyToRun() error {
	if err := tmux.Available(); err != nil {
		return err
	}
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git is not installed or not on PATH: %w", err)
	}
	return nil
}

// Status reports whether the daemon is running and the dashboard URL.
func Status() (running bool, url string, pid int, err error) {
	pid, err = readPid()
	if err != nil {
		return false, "", 0, err
	}
	if !processAlive(pid) {
		return false, "", 0, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return true, "", pid, nil
	}
	return true, fmt.Sprintf("http://localhost:%d", cfg.GetDashboardPort()), pid, nil
}

// Start launches the daemon in the background by re-executing the
// binary with daemon-run, then waits for the pidfile to appear.
func Start() error {
	if pid, err := readPid(); err != nil {
		return err
	} else if processAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	cmd := exec.Command(exe, "daemon-run")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	// The child owns its own lifecycle from here.
	go func() { _ = cmd.Wait() }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pid, err := readPid(); err == nil && processAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not start within 5s")
}

// Stop signals the running daemon to shut down and waits for it to
// exit.
func Stop() error {
	pid, err := readPid()
	if err != nil {
		return err
	}
	if !processAlive(pid) {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal daemon: %w", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not exit within 10s")
}

// Run runs the daemon in the foreground until a shutdown signal.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dir, err := taskdeckDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	pidPath := filepath.Join(dir, pidFileName)
	if pid, err := readPid(); err == nil && processAlive(pid) && pid != os.Getpid() {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := state.Load(filepath.Join(dir, stateFileName))
	if err != nil {
		return err
	}

	store, err := board.Open(cfg.GetBoardDBPath())
	if err != nil {
		return err
	}
	defer store.Close()

	wm := workspace.New(cfg, st)
	sm := session.New(cfg, st, wm, store)
	server := dashboard.NewServer(cfg, st, store, sm, wm)

	if err := server.EnableRefWatch(); err != nil {
		logger.Warn("ref watching disabled", "err", err)
	} else {
		watchQueryClones(cfg, server)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig)
		cancel()
	}()

	logger.Info("started", "pid", os.Getpid(), "port", cfg.GetDashboardPort())
	return server.Start(ctx)
}

// watchQueryClones registers existing repo query clones with the ref
// watcher. Clones that don't exist yet are picked up after the first
// commit graph request creates them.
func watchQueryClones(cfg *config.Config, server *dashboard.Server) {
	root := filepath.Join(cfg.GetWorkspacePath(), ".repos")
	for _, repo := range cfg.GetRepos() {
		gitDir := filepath.Join(root, queryCloneName(repo.URL))
		if _, err := os.Stat(gitDir); err != nil {
			continue
		}
		if err := server.WatchRepoRefs(repo.Name, gitDir); err != nil {
			logger.Warn("failed to watch repo refs", "repo", repo.Name, "err", err)
		}
	}
}

func queryCloneName(repoURL string) string {
	name := strings.TrimSuffix(repoURL, ".git")
	name = strings.TrimRight(name, "/")
	if idx := strings.LastIndexAny(name, "/:"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		name = "repo"
	}
	return name + ".git"
}
