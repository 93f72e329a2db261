package session

import (
	"testing"
	"time"

	"github.com/kabuto-png/taskdeck/internal/state"
)

func TestSessionTrackerAttachDetach(t *testing.T) {
	st := state.New("")
	tracker := NewSessionTracker("s1", "tmux-s1", st)

	ch1 := tracker.AttachWebSocket()
	if ch1 == nil {
		t.Fatal("expected first channel")
	}

	ch2 := tracker.AttachWebSocket()
	if ch2 == nil {
		t.Fatal("expected second channel")
	}
	if ch1 == ch2 {
		t.Fatal("expected replacement channel")
	}

	select {
	case _, ok := <-ch1:
		if ok {
			t.Fatal("expected replaced channel to be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected replaced channel close signal")
	}

	tracker.DetachWebSocket(ch2)
	select {
	case _, ok := <-ch2:
		if ok {
			t.Fatal("expected detached channel to be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected detached channel close signal")
	}
}

func TestSessionTrackerResizeWithoutPTY(t *testing.T) {
	st := state.New("")
	tracker := NewSessionTracker("s1", "tmux-s1", st)

	if err := tracker.Resize(80, 24); err == nil {
		t.Fatal("expected error when PTY is not attached")
	}
	if err := tracker.Resize(0, 24); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestFindValidUTF8Boundary(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected int
	}{
		{"empty slice", []byte{}, 0},
		{"ASCII only", []byte("hello world"), 11},
		{"complete 2-byte char", []byte("caf\xc3\xa9"), 5},
		{"split 2-byte char", []byte("caf\xc3"), 3},
		{"complete 3-byte char", []byte("a\xe2\x82\xac"), 4},
		{"split 3-byte char two bytes in", []byte("a\xe2\x82"), 1},
		{"split 3-byte char one byte in", []byte("a\xe2"), 1},
		{"complete 4-byte char", []byte("a\xf0\x9f\x98\x80"), 5},
		{"split 4-byte char", []byte("a\xf0\x9f\x98"), 1},
		{"only continuation bytes", []byte{0x82, 0x82}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findValidUTF8Boundary(tt.input); got != tt.expected {
				t.Errorf("findValidUTF8Boundary(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello", "hello"},
		{"color codes", "\x1b[31mred\x1b[0m", "red"},
		{"cursor movement", "\x1b[2Jcleared", "cleared"},
		{"osc title bel", "\x1b]0;title\x07after", "after"},
		{"osc title st", "\x1b]2;title\x1b\\after", "after"},
		{"mixed", "a\x1b[1mb\x1b[mc", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(stripANSI([]byte(tt.input))); got != tt.want {
				t.Errorf("stripANSI(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsMeaningfulTerminalChunk(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"printable text", "doing work\n", true},
		{"whitespace only", "  \n\t", false},
		{"bare color reset", "\x1b[0m", false},
		{"device status reply", "\x1b[?1;2c", false},
		{"osc color query reply", "\x1b]11;rgb:0000/0000/0000\x07", false},
		{"colored text", "\x1b[32mok\x1b[0m", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isMeaningfulTerminalChunk([]byte(tt.input)); got != tt.want {
				t.Errorf("isMeaningfulTerminalChunk(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
