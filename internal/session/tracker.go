package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"

	"github.com/kabuto-png/taskdeck/internal/state"
	"github.com/kabuto-png/taskdeck/internal/tmux"
)

const trackerRestartDelay = 500 * time.Millisecond
const trackerActivityDebounce = 500 * time.Millisecond
const trackerRetryLogInterval = 15 * time.Second

// Terminal query replies that carry no user-visible output.
var trackerIgnorePrefixes = [][]byte{
	[]byte("\x1b[?"),
	[]byte("\x1b[>"),
	[]byte("\x1b]10;"),
	[]byte("\x1b]11;"),
}

var trackerLog = log.NewWithOptions(os.Stderr, log.Options{Prefix: "tracker"})

// SessionTracker maintains a long-lived PTY attachment to a session's
// tmux session. It records output activity in state and forwards
// terminal output to one active websocket client.
type SessionTracker struct {
	sessionID   string
	tmuxSession string
	state       state.StateStore

	mu        sync.RWMutex
	clientCh  chan []byte
	ptmx      *os.File
	attachCmd *exec.Cmd
	lastEvent time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	lastRetryLog time.Time
}

// NewSessionTracker creates a tracker for a session.
func NewSessionTracker(sessionID, tmuxSession string, st state.StateStore) *SessionTracker {
	return &SessionTracker{
		sessionID:   sessionID,
		tmuxSession: tmuxSession,
		state:       st,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the tracker loop in a background goroutine.
func (t *SessionTracker) Start() {
	go t.run()
}

// Stop terminates the tracker and closes the active client channel.
func (t *SessionTracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.closePTY()
		<-t.doneCh
	})
}

// IsAttached reports whether the tracker currently has a live PTY.
func (t *SessionTracker) IsAttached() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ptmx != nil
}

// AttachWebSocket registers the active websocket stream and returns its
// output channel. An already attached client is replaced and its channel
// closed.
func (t *SessionTracker) AttachWebSocket() chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.clientCh != nil {
		close(t.clientCh)
	}
	t.clientCh = make(chan []byte, 64)
	return t.clientCh
}

// DetachWebSocket clears the websocket stream if it matches the
// currently registered one.
func (t *SessionTracker) DetachWebSocket(ch chan []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clientCh == ch {
		close(t.clientCh)
		t.clientCh = nil
	}
}

// SendInput writes terminal input bytes to the tracker PTY. Falls back
// to tmux send-keys when the PTY is not attached so input is not lost
// during tracker reconnects.
func (t *SessionTracker) SendInput(data string) error {
	ptmx := t.currentPTY()
	if ptmx == nil {
		// Brief wait covers the startup race with attachAndRead.
		deadline := time.Now().Add(100 * time.Millisecond)
		for ptmx == nil && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
			ptmx = t.currentPTY()
		}
	}
	if ptmx != nil {
		_, err := io.WriteString(ptmx, data)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return tmux.SendKeys(ctx, t.tmuxSession, data)
}

func (t *SessionTracker) currentPTY() *os.File {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ptmx
}

// Resize updates the tracker PTY dimensions.
func (t *SessionTracker) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid size %dx%d", cols, rows)
	}

	ptmx := t.currentPTY()
	if ptmx == nil {
		return fmt.Errorf("terminal not attached")
	}
	return pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

func (t *SessionTracker) run() {
	defer close(t.doneCh)

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		if err := t.attachAndRead(); err != nil && err != io.EOF {
			if t.shouldLogRetry(time.Now()) {
				trackerLog.Warn("attach failed", "session", t.sessionID, "err", err)
			}
		}

		if t.waitOrStop(trackerRestartDelay) {
			return
		}
	}
}

func (t *SessionTracker) attachAndRead() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !tmux.SessionExists(t.tmuxSession) {
		return fmt.Errorf("tmux session does not exist: %s", t.tmuxSession)
	}

	// Size the PTY from the tmux window. A freshly spawned session may
	// not have its window ready yet, so retry briefly.
	cols, rows, err := t.getWindowSizeWithRetry(ctx, t.tmuxSession)
	if err != nil {
		return fmt.Errorf("failed to get window size: %w", err)
	}

	attachCmd := exec.CommandContext(ctx, "tmux", "attach-session", "-t", "="+t.tmuxSession)
	ptmx, err := pty.StartWithSize(attachCmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.ptmx = ptmx
	t.attachCmd = attachCmd
	t.mu.Unlock()

	defer t.closePTY()

	buf := make([]byte, 8192)
	var pending []byte // incomplete UTF-8 sequence from the previous read

	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			var data []byte
			if len(pending) > 0 {
				data = make([]byte, len(pending)+n)
				copy(data, pending)
				copy(data[len(pending):], buf[:n])
				pending = nil
			} else {
				data = buf[:n]
			}

			// Hold back any trailing partial UTF-8 character so the
			// client never sees a broken sequence.
			validLen := findValidUTF8Boundary(data)
			if validLen < len(data) {
				pending = make([]byte, len(data)-validLen)
				copy(pending, data[validLen:])
				data = data[:validLen]
			}

			if len(data) > 0 {
				chunk := make([]byte, len(data))
				copy(chunk, data)
				t.forward(chunk)
			}
		}

		if err != nil {
			if len(pending) > 0 {
				t.forward(pending)
			}
			return err
		}

		select {
		case <-t.stopCh:
			return io.EOF
		default:
		}
	}
}

// forward delivers a chunk to the websocket client and records
// activity, debounced so a chatty agent doesn't hammer state.
func (t *SessionTracker) forward(chunk []byte) {
	now := time.Now()

	t.mu.Lock()
	// Small chunks without a newline are echo and always meaningful.
	isSmallChunk := len(chunk) <= 8 && !bytes.Contains(chunk, []byte("\n"))
	meaningful := isSmallChunk || isMeaningfulTerminalChunk(chunk)
	shouldUpdate := meaningful && (t.lastEvent.IsZero() || now.Sub(t.lastEvent) >= trackerActivityDebounce)
	if shouldUpdate {
		t.lastEvent = now
	}
	clientCh := t.clientCh
	t.mu.Unlock()

	if shouldUpdate {
		t.state.UpdateSessionLastOutput(t.sessionID, now)
	}
	if clientCh != nil {
		select {
		case clientCh <- chunk:
		default:
		}
	}
}

func (t *SessionTracker) getWindowSizeWithRetry(ctx context.Context, target string) (cols, rows int, err error) {
	const maxAttempts = 10
	const retryDelay = 100 * time.Millisecond

	for attempt := 0; attempt < maxAttempts; attempt++ {
		cols, rows, err = tmux.GetWindowSize(ctx, target)
		if err == nil {
			return cols, rows, nil
		}

		select {
		case <-t.stopCh:
			return 0, 0, fmt.Errorf("tracker stopped while waiting for session ready")
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		default:
		}

		if attempt < maxAttempts-1 {
			time.Sleep(retryDelay)
		}
	}

	return 0, 0, fmt.Errorf("session window not ready after %d attempts: %w", maxAttempts, err)
}

// findValidUTF8Boundary returns the length of data up to the last
// complete UTF-8 character. Trailing bytes of a split character are
// excluded.
func findValidUTF8Boundary(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	if utf8.Valid(data) {
		return len(data)
	}

	// Walk back at most 4 bytes looking for the leading byte of an
	// incomplete sequence. Continuation bytes are 10xxxxxx.
	for i := len(data) - 1; i >= 0 && i >= len(data)-4; i-- {
		b := data[i]
		if b&0xC0 == 0x80 {
			continue
		}
		if b < 0x80 {
			return i + 1
		}

		var seqLen int
		switch {
		case b&0xE0 == 0xC0:
			seqLen = 2
		case b&0xF0 == 0xE0:
			seqLen = 3
		case b&0xF8 == 0xF0:
			seqLen = 4
		default:
			continue
		}

		if len(data)-i >= seqLen {
			return i + seqLen
		}
		return i
	}

	return 0
}

func isMeaningfulTerminalChunk(chunk []byte) bool {
	for _, prefix := range trackerIgnorePrefixes {
		if bytes.HasPrefix(chunk, prefix) {
			return false
		}
	}

	clean := stripANSI(chunk)
	if len(clean) == 0 {
		return false
	}
	for _, r := range string(clean) {
		if unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// stripANSI removes CSI and OSC escape sequences, leaving printable
// content for the activity check.
func stripANSI(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != 0x1b || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		switch data[i+1] {
		case '[':
			// CSI: parameters then a final byte in 0x40-0x7E.
			j := i + 2
			for j < len(data) && (data[j] < 0x40 || data[j] > 0x7e) {
				j++
			}
			i = j
		case ']':
			// OSC: terminated by BEL or ST (ESC \).
			j := i + 2
			for j < len(data) && data[j] != 0x07 && !(data[j] == 0x1b && j+1 < len(data) && data[j+1] == '\\') {
				j++
			}
			if j < len(data) && data[j] == 0x1b {
				j++
			}
			i = j
		default:
			i++
		}
	}
	return out
}

func (t *SessionTracker) shouldLogRetry(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastRetryLog.IsZero() || now.Sub(t.lastRetryLog) >= trackerRetryLogInterval {
		t.lastRetryLog = now
		return true
	}
	return false
}

func (t *SessionTracker) closePTY() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ptmx != nil {
		_ = t.ptmx.Close()
		t.ptmx = nil
	}
	if t.attachCmd != nil {
		if t.attachCmd.Process != nil {
			_ = t.attachCmd.Process.Kill()
		}
		_ = t.attachCmd.Wait()
		t.attachCmd = nil
	}
}

func (t *SessionTracker) waitOrStop(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false
	case <-t.stopCh:
		return true
	}
}
