// Package screen implements the double-buffered terminal writer: it
// diffs the compositor's flattened grid against what was last painted
// and emits only the minimal byte sequence needed to bring the real
// terminal up to date. Grounded on pkg/terminal/buffer.go's vt10x-style
// dirty tracking (here applied to a cell grid instead of a PTY stream)
// and original_source/src/layer/mod.rs's render_to_terminal (cursor
// hide/clear-to-end-of-line/color-tracking-to-minimize-escapes shape).
package screen

import (
	"github.com/vtedit/core/pkg/layer"
	"github.com/vtedit/core/pkg/term"
)

// Batch is a contiguous run of changed cells on one row.
type Batch struct {
	Row      int
	StartCol int
	Cells    []layer.Cell
}

// DoubleBuffer holds the currently composited grid and the grid last
// painted to the terminal (spec.md §4.5).
type DoubleBuffer struct {
	rows, cols      int
	current         [][]layer.Cell
	previous        [][]layer.Cell
	forceFullRedraw bool
}

func blankGrid(rows, cols int) [][]layer.Cell {
	g := make([][]layer.Cell, rows)
	for r := range g {
		g[r] = make([]layer.Cell, cols)
	}
	return g
}

// New creates a double buffer sized to the terminal, with the force flag
// set so the first render paints everything.
func New(rows, cols int) *DoubleBuffer {
	return &DoubleBuffer{
		rows:            rows,
		cols:            cols,
		current:         blankGrid(rows, cols),
		previous:        blankGrid(rows, cols),
		forceFullRedraw: true,
	}
}

// Resize rebuilds both grids and forces a full redraw.
func (d *DoubleBuffer) Resize(rows, cols int) {
	d.rows, d.cols = rows, cols
	d.current = blankGrid(rows, cols)
	d.previous = blankGrid(rows, cols)
	d.forceFullRedraw = true
}

// SetCurrent replaces the current grid with a freshly composited one.
func (d *DoubleBuffer) SetCurrent(grid [][]layer.Cell) {
	d.current = grid
}

// Grid returns the current composited grid, for a consumer (the remote
// debug bridge) that needs the same frame RenderToTerminal just painted.
func (d *DoubleBuffer) Grid() [][]layer.Cell { return d.current }

// Swap copies current into previous and clears the force flag. Called
// only after a render has fully succeeded.
func (d *DoubleBuffer) Swap() {
	for r := 0; r < d.rows; r++ {
		copy(d.previous[r], d.current[r])
	}
	d.forceFullRedraw = false
}

func cellsEqual(a, b layer.Cell) bool {
	if a.Char != b.Char {
		return false
	}
	if (a.Fg == nil) != (b.Fg == nil) || (a.Fg != nil && *a.Fg != *b.Fg) {
		return false
	}
	if (a.Bg == nil) != (b.Bg == nil) || (a.Bg != nil && *a.Bg != *b.Bg) {
		return false
	}
	return true
}

// GetBatchedChanges scans current against previous row by row, grouping
// contiguous changed cells into batches.
func (d *DoubleBuffer) GetBatchedChanges() []Batch {
	var batches []Batch
	for row := 0; row < d.rows; row++ {
		var cur *Batch
		for col := 0; col < d.cols; col++ {
			changed := d.forceFullRedraw || !cellsEqual(d.current[row][col], d.previous[row][col])
			if changed {
				if cur == nil {
					cur = &Batch{Row: row, StartCol: col}
				}
				cur.Cells = append(cur.Cells, d.current[row][col])
				continue
			}
			if cur != nil {
				batches = append(batches, *cur)
				cur = nil
			}
		}
		if cur != nil {
			batches = append(batches, *cur)
		}
	}
	return batches
}

// RenderToTerminal paints every batched change to backend, tracking the
// last-written cursor position and color to minimize escape sequences,
// then swaps buffers on success. On write failure the force-full-redraw
// flag is set so the next render repaints everything, per spec.md
// §4.5's correctness property.
func (d *DoubleBuffer) RenderToTerminal(backend term.Backend) (err error) {
	defer func() {
		if err != nil {
			d.forceFullRedraw = true
		}
	}()
	batches := d.GetBatchedChanges()
	if err := backend.HideCursor(); err != nil {
		return err
	}

	lastRow, lastCol := -1, -1
	var lastFg, lastBg *layer.Color

	for _, batch := range batches {
		if batch.Row != lastRow || batch.StartCol != lastCol {
			if err := backend.MoveCursor(batch.Row, batch.StartCol); err != nil {
				return err
			}
		}
		for _, cell := range batch.Cells {
			if !sameColorPtr(cell.Fg, lastFg) || !sameColorPtr(cell.Bg, lastBg) {
				if err := backend.ResetColor(); err != nil {
					return err
				}
				if cell.Fg != nil {
					if err := backend.SetForeground(cell.Fg.R, cell.Fg.G, cell.Fg.B); err != nil {
						return err
					}
				}
				if cell.Bg != nil {
					if err := backend.SetBackground(cell.Bg.R, cell.Bg.G, cell.Bg.B); err != nil {
						return err
					}
				}
				lastFg, lastBg = cell.Fg, cell.Bg
			}
			buf := cell.Char.EncodeUTF8(nil)
			if err := backend.Write(buf); err != nil {
				return err
			}
		}
		lastRow = batch.Row
		lastCol = batch.StartCol + len(batch.Cells)
	}

	if err := backend.ResetColor(); err != nil {
		return err
	}
	if err := backend.ShowCursor(); err != nil {
		return err
	}
	d.Swap()
	return nil
}

func sameColorPtr(a, b *layer.Color) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
