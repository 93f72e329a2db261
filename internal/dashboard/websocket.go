package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kabuto-png/taskdeck/internal/session"
	"github.com/kabuto-png/taskdeck/internal/state"
	"github.com/kabuto-png/taskdeck/internal/tmux"
)

const bootstrapCaptureLines = 200

// Terminal query responses from xterm.js that must not be forwarded as
// input.
var inputFilterPrefixes = []string{
	"\x1b[?",   // DA1 response
	"\x1b[>",   // DA2 response
	"\x1b]10;", // OSC 10 foreground color response
	"\x1b]11;", // OSC 11 background color response
}

func isTerminalResponse(data string) bool {
	for _, prefix := range inputFilterPrefixes {
		if strings.HasPrefix(data, prefix) {
			return true
		}
	}
	return false
}

// Sequences filtered from output so xterm.js handles scrolling locally.
var filterSequences = [][]byte{
	[]byte("\x1b[?1000h"), // X11 mouse tracking
	[]byte("\x1b[?1002h"), // button event tracking
	[]byte("\x1b[?1003h"), // any event tracking
	[]byte("\x1b[?1006h"), // SGR extended mouse mode
	[]byte("\x1b[?1015h"), // urxvt mouse mode
	[]byte("\x1b[?1049h"), // alternate screen, disables xterm.js scrollback
}

func filterMouseMode(data []byte) []byte {
	for _, seq := range filterSequences {
		data = bytes.ReplaceAll(data, seq, nil)
	}
	return data
}

// WSMessage is a websocket message from the client.
type WSMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// WSOutputMessage is a terminal websocket message to the client.
type WSOutputMessage struct {
	Type    string `json:"type"` // "full", "append"
	Content string `json:"content"`
}

// wsConn serializes writes to a websocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

func (c *wsConn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// boardHub fans board events out to all connected board websockets.
type boardHub struct {
	mu    sync.Mutex
	conns map[*wsConn]bool
}

func newBoardHub() *boardHub {
	return &boardHub{conns: make(map[*wsConn]bool)}
}

func (h *boardHub) Add(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = true
}

func (h *boardHub) Remove(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// Broadcast sends an event to every board client. Dead connections are
// dropped.
func (h *boardHub) Broadcast(event string, payload any) {
	data, err := json.Marshal(map[string]any{"event": event, "payload": payload})
	if err != nil {
		return
	}

	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Remove(c)
			_ = c.Close()
		}
	}
}

func (h *boardHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		_ = c.Close()
	}
	h.conns = make(map[*wsConn]bool)
}

// trackerRegistry holds one SessionTracker per live session.
type trackerRegistry struct {
	mu       sync.Mutex
	state    state.StateStore
	trackers map[string]*session.SessionTracker
}

func newTrackerRegistry(st state.StateStore) *trackerRegistry {
	return &trackerRegistry{
		state:    st,
		trackers: make(map[string]*session.SessionTracker),
	}
}

// Ensure returns the tracker for a session, starting one if needed.
func (tr *trackerRegistry) Ensure(sessionID, tmuxSession string) *session.SessionTracker {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if t, ok := tr.trackers[sessionID]; ok {
		return t
	}
	t := session.NewSessionTracker(sessionID, tmuxSession, tr.state)
	t.Start()
	tr.trackers[sessionID] = t
	return t
}

func (tr *trackerRegistry) Remove(sessionID string) {
	tr.mu.Lock()
	t, ok := tr.trackers[sessionID]
	delete(tr.trackers, sessionID)
	tr.mu.Unlock()
	if ok {
		t.Stop()
	}
}

func (tr *trackerRegistry) StopAll() {
	tr.mu.Lock()
	trackers := tr.trackers
	tr.trackers = make(map[string]*session.SessionTracker)
	tr.mu.Unlock()
	for _, t := range trackers {
		t.Stop()
	}
}

// BroadcastBoard pushes the current board to all board clients.
func (s *Server) BroadcastBoard() {
	resp, err := s.board.Board()
	if err != nil {
		s.logger.Error("failed to load board for broadcast", "err", err)
		return
	}
	s.hub.Broadcast("board", resp)
}

// BroadcastSessions pushes the current session list to all board
// clients.
func (s *Server) BroadcastSessions() {
	s.hub.Broadcast("sessions", s.session.ListByWorkspace())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to localhost only.
		return true
	},
}

// handleBoardWebSocket keeps a client subscribed to board, session, and
// graph-refresh events.
func (s *Server) handleBoardWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.authenticate(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: rawConn}
	s.hub.Add(conn)
	defer func() {
		s.hub.Remove(conn)
		conn.Close()
	}()

	// Initial snapshot so the client doesn't wait for the first change.
	if resp, err := s.board.Board(); err == nil {
		data, _ := json.Marshal(map[string]any{"event": "board", "payload": resp})
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// The read loop only serves to detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// handleTerminalWebSocket streams a session's terminal to the client
// through the session tracker's PTY attachment. It sends a bootstrap
// snapshot from capture-pane first, then live bytes.
func (s *Server) handleTerminalWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/ws/terminal/")
	if sessionID == "" {
		http.Error(w, "session ID is required", http.StatusBadRequest)
		return
	}
	if err := s.authenticate(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sess, err := s.session.Get(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if !s.session.IsRunning(sessionID) {
		http.Error(w, "session not running", http.StatusGone)
		return
	}

	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: rawConn}
	defer conn.Close()

	sendOutput := func(msgType, content string) error {
		data, err := json.Marshal(WSOutputMessage{Type: msgType, Content: content})
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	// Bootstrap with recent scrollback to avoid a blank terminal.
	capCtx, capCancel := context.WithTimeout(context.Background(), 2*time.Second)
	bootstrap, err := tmux.CaptureLastLines(capCtx, sess.TmuxSession, bootstrapCaptureLines)
	capCancel()
	if err != nil {
		s.logger.Warn("bootstrap capture failed", "session", sessionID, "err", err)
		bootstrap = ""
	}
	if err := sendOutput("full", string(filterMouseMode([]byte(bootstrap)))); err != nil {
		return
	}

	tracker := s.trackers.Ensure(sessionID, sess.TmuxSession)
	outputCh := tracker.AttachWebSocket()
	defer tracker.DetachWebSocket(outputCh)

	controlCh := make(chan WSMessage, 10)
	go func() {
		defer close(controlCh)
		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			var wsMsg WSMessage
			if err := json.Unmarshal(msg, &wsMsg); err == nil {
				controlCh <- wsMsg
			}
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case chunk, ok := <-outputCh:
			if !ok {
				return
			}
			filtered := filterMouseMode(chunk)
			if len(filtered) > 0 {
				if err := sendOutput("append", string(filtered)); err != nil {
					return
				}
			}

		case <-ticker.C:
			if !s.session.IsRunning(sessionID) {
				_ = sendOutput("append", "\n[Session ended]")
				return
			}

		case msg, ok := <-controlCh:
			if !ok {
				return
			}
			switch msg.Type {
			case "input":
				if isTerminalResponse(msg.Data) {
					continue
				}
				if err := tracker.SendInput(msg.Data); err != nil {
					s.logger.Warn("failed to send input", "session", sessionID, "err", err)
					// Input failure shouldn't kill the connection.
				}

			case "resize":
				var resizeData struct {
					Cols int `json:"cols"`
					Rows int `json:"rows"`
				}
				if err := json.Unmarshal([]byte(msg.Data), &resizeData); err != nil {
					continue
				}
				if resizeData.Cols <= 0 || resizeData.Rows <= 0 {
					continue
				}
				resizeCtx, resizeCancel := context.WithTimeout(context.Background(), 2*time.Second)
				if err := tmux.ResizeWindow(resizeCtx, sess.TmuxSession, resizeData.Cols, resizeData.Rows); err != nil {
					s.logger.Warn("failed to resize tmux window", "session", sessionID, "err", err)
				}
				resizeCancel()
				if err := tracker.Resize(resizeData.Cols, resizeData.Rows); err != nil {
					s.logger.Warn("failed to resize pty", "session", sessionID, "err", err)
				}
			}
		}
	}
}
