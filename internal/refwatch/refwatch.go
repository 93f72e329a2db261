// Package refwatch watches git ref storage for configured repos and
// reports when branches move, so the dashboard can tell clients to
// refresh the commit graph without polling.
package refwatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the burst of ref writes a fetch produces
// into one notification.
const debounceDelay = 200 * time.Millisecond

var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "refwatch"})

// Watcher watches the refs directories of git repositories and invokes
// a callback with the repo name when refs change.
type Watcher struct {
	callback func(repo string)
	watcher  *fsnotify.Watcher

	mu       sync.Mutex
	repoDirs map[string]string // watched directory -> repo name
	timers   map[string]*time.Timer

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates and starts a watcher. Repos are added with WatchRepo.
func New(callback func(repo string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		callback: callback,
		watcher:  fsw,
		repoDirs: make(map[string]string),
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go w.run()
	return w, nil
}

// WatchRepo watches a repo's git directory for ref changes. gitDir is
// the .git directory of a checkout or the root of a bare clone. Loose
// refs live under refs/, and git rewrites packed-refs at the top level,
// so both are watched.
func (w *Watcher) WatchRepo(name, gitDir string) error {
	dirs := []string{gitDir}
	for _, sub := range []string{
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "remotes", "origin"),
	} {
		if info, err := os.Stat(sub); err == nil && info.IsDir() {
			dirs = append(dirs, sub)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, dir := range dirs {
		if _, watched := w.repoDirs[dir]; watched {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.repoDirs[dir] = name
	}
	return nil
}

// Stop terminates the watcher. Pending debounced notifications are
// dropped.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		<-w.doneCh

		w.mu.Lock()
		for _, timer := range w.timers {
			timer.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			repo, relevant := w.classify(event.Name)
			if !relevant {
				continue
			}
			w.schedule(repo)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("fsnotify error", "err", err)
		}
	}
}

// classify maps an event path to the repo it belongs to. Top-level
// events only count when they touch packed-refs; events inside refs/
// always count.
func (w *Watcher) classify(path string) (string, bool) {
	dir := filepath.Dir(path)

	w.mu.Lock()
	repo, watched := w.repoDirs[dir]
	w.mu.Unlock()
	if !watched {
		return "", false
	}

	if strings.Contains(dir, string(filepath.Separator)+"refs"+string(filepath.Separator)) {
		return repo, true
	}
	return repo, filepath.Base(path) == "packed-refs"
}

func (w *Watcher) schedule(repo string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[repo]; ok {
		timer.Reset(debounceDelay)
		return
	}
	w.timers[repo] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.timers, repo)
		w.mu.Unlock()

		select {
		case <-w.stopCh:
			return
		default:
		}
		w.callback(repo)
	})
}
