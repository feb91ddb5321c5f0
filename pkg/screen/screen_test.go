package screen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/char"
	"github.com/vtedit/core/pkg/layer"
	"github.com/vtedit/core/pkg/screen"
	"github.com/vtedit/core/pkg/term"
)

func grid(rows, cols int, fill rune) [][]layer.Cell {
	g := make([][]layer.Cell, rows)
	for r := range g {
		g[r] = make([]layer.Cell, cols)
		for c := range g[r] {
			g[r][c] = layer.Cell{Char: char.Unicode(fill)}
		}
	}
	return g
}

func TestFirstRenderIsFullyDirty(t *testing.T) {
	d := screen.New(2, 3)
	d.SetCurrent(grid(2, 3, 'x'))
	batches := d.GetBatchedChanges()
	require.Len(t, batches, 2)
	require.Equal(t, 3, len(batches[0].Cells))
}

func TestSwapClearsForceFlagAndDiffShrinks(t *testing.T) {
	d := screen.New(1, 5)
	d.SetCurrent(grid(1, 5, 'a'))
	d.Swap()

	next := grid(1, 5, 'a')
	next[0][2] = layer.Cell{Char: char.Unicode('Z')}
	d.SetCurrent(next)

	batches := d.GetBatchedChanges()
	require.Len(t, batches, 1)
	require.Equal(t, 2, batches[0].StartCol)
	require.Equal(t, 1, len(batches[0].Cells))
}

func TestResizeForcesFullRedraw(t *testing.T) {
	d := screen.New(2, 2)
	d.SetCurrent(grid(2, 2, 'a'))
	d.Swap()
	d.Resize(2, 2)
	d.SetCurrent(grid(2, 2, 'a'))
	batches := d.GetBatchedChanges()
	require.Len(t, batches, 2, "resize must force a full redraw even with identical content")
}

type stubBackend struct {
	written []byte
	hidden  bool
	shown   bool
}

func (s *stubBackend) Size() (int, int, error)                { return 2, 2, nil }
func (s *stubBackend) HideCursor() error                       { s.hidden = true; return nil }
func (s *stubBackend) ShowCursor() error                       { s.shown = true; return nil }
func (s *stubBackend) MoveCursor(row, col int) error           { return nil }
func (s *stubBackend) ClearScreen() error                      { return nil }
func (s *stubBackend) ClearToEndOfLine() error                 { return nil }
func (s *stubBackend) Write(p []byte) error                    { s.written = append(s.written, p...); return nil }
func (s *stubBackend) SetForeground(r, g, b uint8) error        { return nil }
func (s *stubBackend) SetBackground(r, g, b uint8) error        { return nil }
func (s *stubBackend) ResetColor() error                       { return nil }
func (s *stubBackend) EnterRaw() error                          { return nil }
func (s *stubBackend) ExitRaw() error                           { return nil }
func (s *stubBackend) ReadKey() (term.Key, error)               { return term.Key{}, nil }

func TestRenderToTerminalWritesAndSwaps(t *testing.T) {
	d := screen.New(1, 2)
	d.SetCurrent(grid(1, 2, 'Q'))
	backend := &stubBackend{}
	require.NoError(t, d.RenderToTerminal(backend))
	require.True(t, backend.hidden)
	require.True(t, backend.shown)
	require.Contains(t, string(backend.written), "Q")

	// Second render with identical content should write nothing new.
	backend.written = nil
	d.SetCurrent(grid(1, 2, 'Q'))
	require.NoError(t, d.RenderToTerminal(backend))
	require.Empty(t, backend.written)
}
