package editor_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/editor"
	"github.com/vtedit/core/pkg/term"
)

// fakeBackend is a no-op term.Backend for tests that never touch a real
// terminal, sized to a small fixed grid.
type fakeBackend struct {
	rows, cols int
	written    []byte
	keys       []term.Key
	next       int
}

func newFakeBackend(rows, cols int, keys ...term.Key) *fakeBackend {
	return &fakeBackend{rows: rows, cols: cols, keys: keys}
}

func (f *fakeBackend) Size() (int, int, error)          { return f.rows, f.cols, nil }
func (f *fakeBackend) HideCursor() error                { return nil }
func (f *fakeBackend) ShowCursor() error                 { return nil }
func (f *fakeBackend) MoveCursor(row, col int) error     { return nil }
func (f *fakeBackend) ClearScreen() error                { return nil }
func (f *fakeBackend) ClearToEndOfLine() error           { return nil }
func (f *fakeBackend) Write(p []byte) error              { f.written = append(f.written, p...); return nil }
func (f *fakeBackend) SetForeground(r, g, b uint8) error { return nil }
func (f *fakeBackend) SetBackground(r, g, b uint8) error { return nil }
func (f *fakeBackend) ResetColor() error                 { return nil }
func (f *fakeBackend) EnterRaw() error                   { return nil }
func (f *fakeBackend) ExitRaw() error                    { return nil }

func (f *fakeBackend) ReadKey() (term.Key, error) {
	if f.next >= len(f.keys) {
		return term.Key{}, nil
	}
	k := f.keys[f.next]
	f.next++
	return k, nil
}

func rn(r rune) term.Key    { return term.Key{Rune: r} }
func named(n string) term.Key { return term.Key{Name: n} }

func newTestEditor(t *testing.T) *editor.Editor {
	t.Helper()
	e, err := editor.New(newFakeBackend(24, 80))
	require.NoError(t, err)
	return e
}

func TestNewEditorStartsInNormalModeWithOneEmptyDocument(t *testing.T) {
	e := newTestEditor(t)
	require.Equal(t, editor.ModeNormal, e.Mode().Kind)
	require.Equal(t, 0, e.ActiveDocument().Buffer.Len())
}

func TestInsertModeTypingAppliesUndoableEdits(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn('i')))
	require.Equal(t, editor.ModeInsert, e.Mode().Kind)

	for _, r := range "hi" {
		require.NoError(t, e.HandleKey(rn(r)))
	}
	require.NoError(t, e.HandleKey(named("Esc")))
	require.Equal(t, editor.ModeNormal, e.Mode().Kind)

	doc := e.ActiveDocument()
	require.Equal(t, 2, doc.Buffer.Len())
	require.True(t, doc.IsDirty())

	_, err := doc.Undo.Undo()
	require.NoError(t, err)
}

func TestNormalModeMotionsMoveCursorWithoutDirtying(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn('i')))
	for _, r := range "abc" {
		require.NoError(t, e.HandleKey(rn(r)))
	}
	require.NoError(t, e.HandleKey(named("Esc")))

	doc := e.ActiveDocument()
	rev := doc.Buffer.Revision()
	require.Equal(t, 3, doc.Buffer.Cursor())
	require.NoError(t, e.HandleKey(rn('h')))
	require.Equal(t, 2, doc.Buffer.Cursor())
	require.NoError(t, e.HandleKey(rn('0')))
	require.Equal(t, 0, doc.Buffer.Cursor())
	require.Equal(t, rev, doc.Buffer.Revision())
}

func TestNormalModeGGSequenceMovesToDocStart(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn('i')))
	for _, r := range "line one\nline two\nline three" {
		require.NoError(t, e.HandleKey(rn(r)))
	}
	require.NoError(t, e.HandleKey(named("Esc")))
	doc := e.ActiveDocument()
	require.NotZero(t, doc.Buffer.Cursor())

	// Bare "g" alone is only a Prefix and must not move the cursor or
	// get dropped; only once the second "g" lands does "gg" resolve.
	require.NoError(t, e.HandleKey(rn('g')))
	require.NotEqual(t, 0, doc.Buffer.Cursor())

	require.NoError(t, e.HandleKey(rn('g')))
	require.Equal(t, 0, doc.Buffer.Cursor())
}

func TestColonEntersCommandModeAndSetExecutes(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn(':')))
	require.Equal(t, editor.ModeCommand, e.Mode().Kind)
	for _, r := range "set tabwidth=2" {
		require.NoError(t, e.HandleKey(rn(r)))
	}
	require.NoError(t, e.HandleKey(named("Enter")))
	require.Equal(t, editor.ModeNormal, e.Mode().Kind)
	require.Equal(t, 2, e.Settings().TabWidth)
}

func TestQuitRefusesWhenBufferDirty(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn('i')))
	require.NoError(t, e.HandleKey(rn('x')))
	require.NoError(t, e.HandleKey(named("Esc")))
	require.False(t, e.ShouldQuit())

	e.ExecuteCommandLine("q")
	require.False(t, e.ShouldQuit())

	e.ExecuteCommandLine("q!")
	require.True(t, e.ShouldQuit())
}

func TestUnknownCommandDoesNotPanicOrQuit(t *testing.T) {
	e := newTestEditor(t)
	e.ExecuteCommandLine("frobnicate")
	require.False(t, e.ShouldQuit())
}

func TestSlashEntersSearchModeAndMovesCursorOnMatch(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn('i')))
	for _, r := range "hello world" {
		require.NoError(t, e.HandleKey(rn(r)))
	}
	require.NoError(t, e.HandleKey(named("Esc")))
	require.NoError(t, e.HandleKey(rn('0')))

	require.NoError(t, e.HandleKey(rn('/')))
	for _, r := range "world" {
		require.NoError(t, e.HandleKey(rn(r)))
	}
	require.NoError(t, e.HandleKey(named("Enter")))

	require.Equal(t, editor.ModeNormal, e.Mode().Kind)
	require.Equal(t, 6, e.ActiveDocument().Buffer.Cursor())
}

func TestSearchStaysInModeWhenQueryDoesNotMatch(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn('/')))
	for _, r := range "zzz" {
		require.NoError(t, e.HandleKey(rn(r)))
	}
	require.NoError(t, e.HandleKey(named("Enter")))
	require.Equal(t, editor.ModeSearch, e.Mode().Kind)
}

func TestRenderPaintsWithoutError(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn('i')))
	require.NoError(t, e.HandleKey(rn('x')))
	require.NoError(t, e.HandleKey(named("Esc")))
	require.NoError(t, e.Render())
}

func TestResizePropagatesToCompositor(t *testing.T) {
	e := newTestEditor(t)
	e.Resize(10, 40)
	require.NoError(t, e.Render())
}

func TestFrameReflectsLastRenderAndCursorColumn(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn('i')))
	for _, r := range "hi" {
		require.NoError(t, e.HandleKey(rn(r)))
	}
	require.NoError(t, e.HandleKey(named("Esc")))
	require.NoError(t, e.Render())

	grid, row, col := e.Frame()
	require.Equal(t, 24, len(grid))
	require.Equal(t, 0, row)
	require.Equal(t, 2, col)
	require.Equal(t, 'h', grid[0][0].Char.Rune())
	require.Equal(t, 'i', grid[0][1].Char.Rune())
}

func TestUndoTreeModeNavigatesAndJumpsOnEnter(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn('i')))
	for _, r := range "ab" {
		require.NoError(t, e.HandleKey(rn(r)))
	}
	require.NoError(t, e.HandleKey(named("Esc")))
	doc := e.ActiveDocument()
	require.Equal(t, 2, doc.Buffer.Len())

	require.NoError(t, e.HandleKey(rn('U')))
	require.Equal(t, editor.ModeUndoTree, e.Mode().Kind)
	require.NoError(t, e.Render())

	// Selection starts at row 0 (current node); move down once toward root.
	require.NoError(t, e.HandleKey(rn('j')))
	require.NoError(t, e.HandleKey(named("Enter")))

	require.Equal(t, editor.ModeNormal, e.Mode().Kind)
	require.Less(t, e.ActiveDocument().Buffer.Len(), 2)
}

func TestUndoTreeModeEscClosesWithoutMoving(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.HandleKey(rn('i')))
	for _, r := range "xyz" {
		require.NoError(t, e.HandleKey(rn(r)))
	}
	require.NoError(t, e.HandleKey(named("Esc")))
	before := e.ActiveDocument().Buffer.Len()

	require.NoError(t, e.HandleKey(rn('U')))
	require.NoError(t, e.HandleKey(named("Esc")))

	require.Equal(t, editor.ModeNormal, e.Mode().Kind)
	require.Equal(t, before, e.ActiveDocument().Buffer.Len())
}

func ctrl(r rune) term.Key { return term.Key{Rune: r, Ctrl: true} }

// waitTicks drains the job manager repeatedly, giving a just-spawned
// background job (which runs on its own goroutine) time to deliver its
// Custom payload before the next assertion reads editor state.
func waitTicks(e *editor.Editor) {
	for i := 0; i < 100; i++ {
		e.Tick(time.Now())
		time.Sleep(time.Millisecond)
	}
}

func TestFileExplorerListsDirectoryAndOpensSelectedFile(t *testing.T) {
	dir := t.TempDir()
	notePath := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(notePath, []byte("hello"), 0o644))
	subDir := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(subDir, 0o755))

	e := newTestEditor(t)
	_, err := e.OpenFile(notePath)
	require.NoError(t, err)
	waitTicks(e) // drain the fileLoaded job so the buffer holds the file's contents

	require.NoError(t, e.HandleKey(ctrl('e')))
	require.Equal(t, editor.ModeFileExplorer, e.Mode().Kind)
	waitTicks(e) // drain the directory listing job

	require.NoError(t, e.Render())

	// "sub" sorts before "note.txt" (dirs first), so it should be entry 0.
	require.NoError(t, e.HandleKey(named("Enter")))
	waitTicks(e) // drain the re-listing of the now-selected subdirectory
	require.Equal(t, editor.ModeFileExplorer, e.Mode().Kind)

	require.NoError(t, e.HandleKey(rn('h')))
	waitTicks(e) // drain the listing of the parent dir again

	require.NoError(t, e.HandleKey(rn('j'))) // move down to note.txt
	require.NoError(t, e.HandleKey(named("Enter")))

	require.Equal(t, editor.ModeNormal, e.Mode().Kind)
	require.Equal(t, "note.txt", e.ActiveDocument().DisplayName())
}
