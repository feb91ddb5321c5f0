// Package term abstracts the real terminal behind a small capability
// interface so the render pipeline and input loop never talk to the OS
// directly, only to this interface — which makes both testable without a
// real TTY. Grounded on the TerminalBackend trait referenced by
// original_source/src/layer/mod.rs's render_to_terminal (hide_cursor /
// clear_screen / move_cursor / write / clear_to_end_of_line), extended
// here with raw-mode setup/teardown and key polling since spec.md §6
// requires both a display-out and an input-in side of the same
// abstraction.
package term

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/vtedit/core/pkg/apperr"
)

// Key is one decoded input event.
type Key struct {
	Rune  rune
	Ctrl  bool
	Alt   bool
	Name  string // non-empty for named keys: "Up", "Down", "Enter", "Esc", "Backspace", "Tab", ...
}

// Backend is the capability surface the renderer and input loop use.
// Implementations need not be goroutine-safe; the editor is single-
// threaded over editor state per spec.md §5.
type Backend interface {
	Size() (rows, cols int, err error)
	HideCursor() error
	ShowCursor() error
	MoveCursor(row, col int) error
	ClearScreen() error
	ClearToEndOfLine() error
	Write(p []byte) error
	SetForeground(r, g, b uint8) error
	SetBackground(r, g, b uint8) error
	ResetColor() error
	// ReadKey blocks for the next decoded key event.
	ReadKey() (Key, error)
	// EnterRaw/ExitRaw toggle the terminal's raw mode.
	EnterRaw() error
	ExitRaw() error
}

// ANSITerminal is the real Backend, writing escape sequences to an
// *os.File (normally os.Stdout) and reading raw bytes from another
// (normally os.Stdin), using golang.org/x/term for raw-mode control.
type ANSITerminal struct {
	in       *os.File
	out      *os.File
	w        *bufio.Writer
	r        *bufio.Reader
	oldState *term.State
}

// NewANSITerminal builds a Backend over the given file descriptors.
func NewANSITerminal(in, out *os.File) *ANSITerminal {
	return &ANSITerminal{
		in:  in,
		out: out,
		w:   bufio.NewWriter(out),
		r:   bufio.NewReader(in),
	}
}

func (t *ANSITerminal) Size() (int, int, error) {
	cols, rows, err := term.GetSize(int(t.out.Fd()))
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.Io, "TERM_SIZE", err)
	}
	return rows, cols, nil
}

func (t *ANSITerminal) EnterRaw() error {
	st, err := term.MakeRaw(int(t.in.Fd()))
	if err != nil {
		return apperr.Wrap(apperr.Io, "TERM_RAW", err)
	}
	t.oldState = st
	return nil
}

func (t *ANSITerminal) ExitRaw() error {
	if t.oldState == nil {
		return nil
	}
	if err := term.Restore(int(t.in.Fd()), t.oldState); err != nil {
		return apperr.Wrap(apperr.Io, "TERM_RESTORE", err)
	}
	t.oldState = nil
	return nil
}

func (t *ANSITerminal) Write(p []byte) error {
	if _, err := t.w.Write(p); err != nil {
		return apperr.Wrap(apperr.Io, "TERM_WRITE", err)
	}
	return t.w.Flush()
}

func (t *ANSITerminal) HideCursor() error      { return t.Write([]byte("\x1b[?25l")) }
func (t *ANSITerminal) ShowCursor() error      { return t.Write([]byte("\x1b[?25h")) }
func (t *ANSITerminal) ClearScreen() error     { return t.Write([]byte("\x1b[2J\x1b[H")) }
func (t *ANSITerminal) ClearToEndOfLine() error { return t.Write([]byte("\x1b[K")) }
func (t *ANSITerminal) ResetColor() error      { return t.Write([]byte("\x1b[0m")) }

func (t *ANSITerminal) MoveCursor(row, col int) error {
	return t.Write([]byte(fmt.Sprintf("\x1b[%d;%dH", row+1, col+1)))
}

func (t *ANSITerminal) SetForeground(r, g, b uint8) error {
	return t.Write([]byte(fmt.Sprintf("\x1b[38;2;%d;%d;%dm", r, g, b)))
}

func (t *ANSITerminal) SetBackground(r, g, b uint8) error {
	return t.Write([]byte(fmt.Sprintf("\x1b[48;2;%d;%d;%dm", r, g, b)))
}

// ReadKey decodes one key event from the input stream, handling the
// common CSI sequences for arrow keys and a handful of named controls.
func (t *ANSITerminal) ReadKey() (Key, error) {
	b, err := t.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return Key{}, io.EOF
		}
		return Key{}, apperr.Wrap(apperr.Io, "TERM_READ", err)
	}
	if b == 0x1b {
		return t.readEscapeSequence()
	}
	switch b {
	case 0x0d:
		return Key{Name: "Enter"}, nil
	case 0x09:
		return Key{Name: "Tab"}, nil
	case 0x7f:
		return Key{Name: "Backspace"}, nil
	}
	if b < 0x20 {
		return Key{Rune: rune(b) + 'a' - 1, Ctrl: true}, nil
	}
	t.r.UnreadByte()
	return t.readRune()
}

func (t *ANSITerminal) readRune() (Key, error) {
	r, _, err := t.r.ReadRune()
	if err != nil {
		return Key{}, apperr.Wrap(apperr.Io, "TERM_READ", err)
	}
	return Key{Rune: r}, nil
}

func (t *ANSITerminal) readEscapeSequence() (Key, error) {
	b1, err := t.r.ReadByte()
	if err != nil {
		return Key{Name: "Esc"}, nil
	}
	if b1 != '[' && b1 != 'O' {
		return Key{Rune: rune(b1), Alt: true}, nil
	}
	b2, err := t.r.ReadByte()
	if err != nil {
		return Key{Name: "Esc"}, nil
	}
	switch b2 {
	case 'A':
		return Key{Name: "Up"}, nil
	case 'B':
		return Key{Name: "Down"}, nil
	case 'C':
		return Key{Name: "Right"}, nil
	case 'D':
		return Key{Name: "Left"}, nil
	case 'H':
		return Key{Name: "Home"}, nil
	case 'F':
		return Key{Name: "End"}, nil
	}
	return Key{Name: "Esc"}, nil
}
