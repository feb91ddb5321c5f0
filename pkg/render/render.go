// Package render assembles the content layer from a buffer snapshot, the
// current viewport, and a stream of syntax-highlight spans, per spec.md
// §2's dataflow description. It never mutates the buffer it reads from.
package render

import (
	"github.com/vtedit/core/pkg/buffer"
	"github.com/vtedit/core/pkg/layer"
)

// Viewport tracks which rectangle of the document is visible, scrolling
// to keep the cursor's line on screen. Grounded on
// original_source/src/viewport/mod.rs (Viewport::update's clamp-to-top,
// clamp-to-bottom, clamp-to-end-of-buffer sequence), re-expressed with Go
// ints in place of usize saturating arithmetic.
type Viewport struct {
	topLine     int
	prevTopLine int
	firstUpdate bool
	visibleRows int
	visibleCols int
}

// NewViewport creates a viewport of the given terminal size.
func NewViewport(rows, cols int) *Viewport {
	return &Viewport{visibleRows: rows, visibleCols: cols, firstUpdate: true}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func subClamp(a, b int) int {
	if a < b {
		return 0
	}
	return a - b
}

// Update repositions topLine so cursorLine stays visible within the
// content rows (visibleRows minus one row reserved for the status bar).
// Returns true if the viewport scrolled, or this is the first update —
// the renderer uses that to decide whether a full repaint is needed.
func (v *Viewport) Update(cursorLine, totalLines int) bool {
	v.prevTopLine = v.topLine
	wasFirst := v.firstUpdate
	v.firstUpdate = false

	contentRows := subClamp(v.visibleRows, 1)
	bottomContentLine := v.topLine + subClamp(contentRows, 1)

	if cursorLine < v.topLine {
		v.topLine = cursorLine
	}
	if cursorLine > bottomContentLine {
		v.topLine = subClamp(cursorLine, subClamp(contentRows, 1))
	}

	if totalLines > 0 && totalLines <= contentRows {
		v.topLine = 0
	} else if v.topLine+contentRows > totalLines && totalLines > contentRows {
		v.topLine = subClamp(totalLines, contentRows)
	}
	if totalLines > 0 && v.topLine > totalLines-1 {
		v.topLine = maxInt(totalLines-1, 0)
	}

	return v.topLine != v.prevTopLine || wasFirst
}

func (v *Viewport) TopLine() int     { return v.topLine }
func (v *Viewport) PrevTopLine() int { return v.prevTopLine }
func (v *Viewport) VisibleRows() int { return v.visibleRows }
func (v *Viewport) VisibleCols() int { return v.visibleCols }

// SetSize updates the viewport's terminal dimensions, e.g. on resize.
func (v *Viewport) SetSize(rows, cols int) {
	v.visibleRows = rows
	v.visibleCols = cols
}

// HighlightSpan is one syntax-highlight capture over a character range,
// the `(char-range, capture-name)` boundary spec.md names for a
// Tree-sitter-style highlighter job — this package only consumes spans,
// it never computes them.
type HighlightSpan struct {
	StartChar, EndChar int
	Capture            string
}

// StyleFunc resolves a capture name to foreground/background colors. A
// false second result means "no override, use the default style."
type StyleFunc func(capture string) (fg, bg layer.Color, ok bool)

func spanAt(spans []HighlightSpan, pos int) (HighlightSpan, bool) {
	// Spans arrive in document order and rarely overlap in practice; a
	// linear scan per character is adequate at terminal-sized viewports
	// (a few thousand cells per frame) and keeps this package free of a
	// second interval-tree dependency alongside pkg/undo's arena.
	for _, s := range spans {
		if pos >= s.StartChar && pos < s.EndChar {
			return s, true
		}
	}
	return HighlightSpan{}, false
}

func lineEnd(snap *buffer.Snapshot, line int) int {
	if line+1 < snap.LineCount() {
		return snap.LineStart(line+1) - 1
	}
	return snap.Len()
}

// Render paints snap's visible rows into dst, applying styleFor to
// whatever capture spans covers each character. Rows beyond the document
// are cleared to transparent so a lower layer (or the terminal's own
// blank background) shows through.
func Render(dst *layer.Layer, snap *buffer.Snapshot, vp *Viewport, spans []HighlightSpan, tabWidth int, styleFor StyleFunc) {
	rows := dst.Rows()
	cols := dst.Cols()

	for row := 0; row < rows; row++ {
		line := vp.TopLine() + row
		if line >= snap.LineCount() {
			dst.FillRow(row, layer.Cell{})
			continue
		}

		start := snap.LineStart(line)
		end := lineEnd(snap, line)
		col := 0
		for pos := start; pos < end && col < cols; pos++ {
			c, ok := snap.CharAt(pos)
			if !ok {
				break
			}
			width := c.RenderWidth(col, tabWidth)
			cell := layer.Cell{Char: c}
			if span, hit := spanAt(spans, pos); hit {
				if fg, bg, ok := styleFor(span.Capture); ok {
					cell.Fg, cell.Bg = &fg, &bg
				}
			}
			dst.SetCell(row, col, cell)
			for pad := 1; pad < width && col+pad < cols; pad++ {
				dst.SetCell(row, col+pad, layer.Cell{Char: c})
			}
			col += width
		}
		for ; col < cols; col++ {
			dst.ClearCell(row, col)
		}
	}
}
