// Package layer implements the compositor's z-ordered rendering layers: a
// dense grid of optional cells per layer, merged from lowest to highest
// priority into one flat output grid. Grounded on
// original_source/src/layer/mod.rs (Layer/LayerCompositor/LayerPriority/
// Cell), adapted to spec.md §4.4's explicit dirty-rectangle requirement —
// the original only tracks a single dirty bool per layer; this version
// additionally merges dirty regions into a capped rectangle list so the
// double buffer (pkg/screen) can diff proportional to the actual change.
package layer

import (
	"sort"

	"github.com/vtedit/core/pkg/char"
)

// Priority is the layer z-order; higher values render on top. Constants
// mirror spec.md §3's standard ordering.
type Priority int

const (
	Content         Priority = 0
	StatusBar       Priority = 10
	FloatingWindow  Priority = 20
	Popup           Priority = 30
	Hover           Priority = 40
	Tooltip         Priority = 50
)

// Color is a 24-bit terminal color.
type Color struct {
	R, G, B uint8
}

// Cell is one terminal position: a Character plus optional colors.
type Cell struct {
	Char char.Character
	Fg   *Color
	Bg   *Color
}

func sameColor(a, b *Color) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (c Cell) equal(o Cell) bool {
	return c.Char == o.Char && sameColor(c.Fg, o.Fg) && sameColor(c.Bg, o.Bg)
}

// Rect is a half-open rectangular region: rows [Row0,Row1), cols [Col0,Col1).
type Rect struct {
	Row0, Col0, Row1, Col1 int
}

func (r Rect) area() int { return (r.Row1 - r.Row0) * (r.Col1 - r.Col0) }

func overlapsOrAdjacent(a, b Rect) bool {
	return a.Row0 <= b.Row1 && b.Row0 <= a.Row1 && a.Col0 <= b.Col1 && b.Col0 <= a.Col1
}

func merge(a, b Rect) Rect {
	return Rect{
		Row0: min(a.Row0, b.Row0),
		Col0: min(a.Col0, b.Col0),
		Row1: max(a.Row1, b.Row1),
		Col1: max(a.Col1, b.Col1),
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// maxDirtyRects caps the per-layer dirty-rect list (spec.md §4.4, M≈10).
const maxDirtyRects = 10

// Layer is one rendering surface: a dense grid of optional cells. A nil
// *Cell entry means transparent, showing through to layers below it.
type Layer struct {
	priority   Priority
	rows, cols int
	cells      [][]*Cell
	dirty      bool
	dirtyRects []Rect
}

// New creates a layer with every cell transparent.
func New(priority Priority, rows, cols int) *Layer {
	l := &Layer{priority: priority, rows: rows, cols: cols}
	l.cells = make([][]*Cell, rows)
	for r := range l.cells {
		l.cells[r] = make([]*Cell, cols)
	}
	l.markFullyDirty()
	return l
}

func (l *Layer) Priority() Priority { return l.priority }
func (l *Layer) Rows() int          { return l.rows }
func (l *Layer) Cols() int          { return l.cols }
func (l *Layer) IsDirty() bool      { return l.dirty }

// DirtyRects returns the merged dirty-rectangle list since the last
// MarkClean.
func (l *Layer) DirtyRects() []Rect { return l.dirtyRects }

// MarkClean clears the dirty flag and rect list after compositing.
func (l *Layer) MarkClean() {
	l.dirty = false
	l.dirtyRects = nil
}

func (l *Layer) markFullyDirty() {
	l.dirty = true
	l.dirtyRects = []Rect{{Row0: 0, Col0: 0, Row1: l.rows, Col1: l.cols}}
}

func (l *Layer) addDirty(row, col int) {
	l.dirty = true
	r := Rect{Row0: row, Col0: col, Row1: row + 1, Col1: col + 1}
	for i, existing := range l.dirtyRects {
		if overlapsOrAdjacent(existing, r) {
			l.dirtyRects[i] = merge(existing, r)
			l.collapseIfOverCap()
			return
		}
	}
	l.dirtyRects = append(l.dirtyRects, r)
	l.collapseIfOverCap()
}

// collapseIfOverCap combines the two rects whose merge costs the least
// extra area, repeating until the list is back within the cap.
func (l *Layer) collapseIfOverCap() {
	for len(l.dirtyRects) > maxDirtyRects {
		bestI, bestJ, bestCost := -1, -1, -1
		for i := 0; i < len(l.dirtyRects); i++ {
			for j := i + 1; j < len(l.dirtyRects); j++ {
				m := merge(l.dirtyRects[i], l.dirtyRects[j])
				cost := m.area() - l.dirtyRects[i].area() - l.dirtyRects[j].area()
				if bestI == -1 || cost < bestCost {
					bestI, bestJ, bestCost = i, j, cost
				}
			}
		}
		merged := merge(l.dirtyRects[bestI], l.dirtyRects[bestJ])
		next := make([]Rect, 0, len(l.dirtyRects)-1)
		for i, r := range l.dirtyRects {
			if i == bestI || i == bestJ {
				continue
			}
			next = append(next, r)
		}
		l.dirtyRects = append(next, merged)
	}
}

func (l *Layer) inBounds(row, col int) bool {
	return row >= 0 && row < l.rows && col >= 0 && col < l.cols
}

// SetCell sets the cell at (row, col). Reports false if out of bounds.
// Does not mark dirty if the new value equals the existing one, per
// spec.md §4.4.
func (l *Layer) SetCell(row, col int, c Cell) bool {
	if !l.inBounds(row, col) {
		return false
	}
	existing := l.cells[row][col]
	if existing != nil && existing.equal(c) {
		return true
	}
	cc := c
	l.cells[row][col] = &cc
	l.addDirty(row, col)
	return true
}

// ClearCell makes (row, col) transparent.
func (l *Layer) ClearCell(row, col int) bool {
	if !l.inBounds(row, col) {
		return false
	}
	if l.cells[row][col] == nil {
		return true
	}
	l.cells[row][col] = nil
	l.addDirty(row, col)
	return true
}

// GetCell returns the cell at (row, col), or ok=false if transparent or
// out of bounds.
func (l *Layer) GetCell(row, col int) (Cell, bool) {
	if !l.inBounds(row, col) {
		return Cell{}, false
	}
	c := l.cells[row][col]
	if c == nil {
		return Cell{}, false
	}
	return *c, true
}

// Clear makes every cell transparent.
func (l *Layer) Clear() {
	for r := range l.cells {
		for c := range l.cells[r] {
			l.cells[r][c] = nil
		}
	}
	l.markFullyDirty()
}

// FillRow fills an entire row with c.
func (l *Layer) FillRow(row int, c Cell) {
	if row < 0 || row >= l.rows {
		return
	}
	for col := 0; col < l.cols; col++ {
		l.SetCell(row, col, c)
	}
}

// FillRect fills the inclusive rectangle [row0,row1] x [col0,col1] with c.
func (l *Layer) FillRect(row0, col0, row1, col1 int, c Cell) {
	if row1 >= l.rows {
		row1 = l.rows - 1
	}
	if col1 >= l.cols {
		col1 = l.cols - 1
	}
	for row := row0; row <= row1; row++ {
		for col := col0; col <= col1; col++ {
			l.SetCell(row, col, c)
		}
	}
}

// WriteString writes chars starting at (row, col), one Character per
// cell, stopping at the layer's right edge.
func (l *Layer) WriteString(row, col int, chars []char.Character, fg, bg *Color) {
	for i, ch := range chars {
		c := col + i
		if c >= l.cols {
			break
		}
		l.SetCell(row, c, Cell{Char: ch, Fg: fg, Bg: bg})
	}
}

// Resize changes the layer's dimensions, preserving content aligned to
// the origin and marking the whole layer dirty.
func (l *Layer) Resize(rows, cols int) {
	next := make([][]*Cell, rows)
	for r := range next {
		next[r] = make([]*Cell, cols)
	}
	for r := 0; r < l.rows && r < rows; r++ {
		for c := 0; c < l.cols && c < cols; c++ {
			next[r][c] = l.cells[r][c]
		}
	}
	l.cells = next
	l.rows, l.cols = rows, cols
	l.markFullyDirty()
}

// Compositor merges an ordered set of layers into a flat output grid.
type Compositor struct {
	layers         map[Priority]*Layer
	rows, cols     int
	composited     [][]Cell
	needsComposite bool
}

// NewCompositor creates a compositor sized to the terminal dimensions.
func NewCompositor(rows, cols int) *Compositor {
	c := &Compositor{layers: make(map[Priority]*Layer), rows: rows, cols: cols, needsComposite: true}
	c.composited = emptyGrid(rows, cols)
	return c
}

func emptyGrid(rows, cols int) [][]Cell {
	g := make([][]Cell, rows)
	for r := range g {
		g[r] = make([]Cell, cols)
		for c := range g[r] {
			g[r][c] = Cell{Char: char.Unicode(' ')}
		}
	}
	return g
}

// LayerMut returns the layer at priority, creating it (fully transparent,
// sized to the compositor) if it doesn't exist yet.
func (c *Compositor) LayerMut(priority Priority) *Layer {
	c.needsComposite = true
	l, ok := c.layers[priority]
	if !ok {
		l = New(priority, c.rows, c.cols)
		c.layers[priority] = l
	}
	return l
}

// Layer returns the layer at priority, if any.
func (c *Compositor) Layer(priority Priority) (*Layer, bool) {
	l, ok := c.layers[priority]
	return l, ok
}

// RemoveLayer deletes the layer at priority.
func (c *Compositor) RemoveLayer(priority Priority) {
	delete(c.layers, priority)
	c.needsComposite = true
}

// ClearAll clears every layer's content without removing it.
func (c *Compositor) ClearAll() {
	for _, l := range c.layers {
		l.Clear()
	}
	c.needsComposite = true
}

// ClearLayer clears one layer's content, if it exists.
func (c *Compositor) ClearLayer(priority Priority) {
	if l, ok := c.layers[priority]; ok {
		l.Clear()
		c.needsComposite = true
	}
}

// Resize resizes the compositor and every layer it holds, forcing a full
// dirty state everywhere.
func (c *Compositor) Resize(rows, cols int) {
	c.rows, c.cols = rows, cols
	c.composited = emptyGrid(rows, cols)
	for _, l := range c.layers {
		l.Resize(rows, cols)
	}
	c.needsComposite = true
}

func (c *Compositor) sortedPriorities() []Priority {
	ps := make([]Priority, 0, len(c.layers))
	for p := range c.layers {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

// Composite flattens all layers into the output grid, ascending priority,
// overwriting with every non-transparent cell.
func (c *Compositor) Composite() {
	for r := range c.composited {
		for col := range c.composited[r] {
			c.composited[r][col] = Cell{Char: char.Unicode(' ')}
		}
	}
	for _, p := range c.sortedPriorities() {
		l := c.layers[p]
		for r := 0; r < l.rows && r < c.rows; r++ {
			for col := 0; col < l.cols && col < c.cols; col++ {
				if cell := l.cells[r][col]; cell != nil {
					c.composited[r][col] = *cell
				}
			}
		}
	}
	for _, l := range c.layers {
		l.MarkClean()
	}
	c.needsComposite = false
}

// NeedsRecomposite reports whether any layer changed since the last
// Composite.
func (c *Compositor) NeedsRecomposite() bool {
	if c.needsComposite {
		return true
	}
	for _, l := range c.layers {
		if l.IsDirty() {
			return true
		}
	}
	return false
}

// Composited returns the flattened grid, compositing first if needed.
func (c *Compositor) Composited() [][]Cell {
	if c.NeedsRecomposite() {
		c.Composite()
	}
	return c.composited
}

func (c *Compositor) Rows() int { return c.rows }
func (c *Compositor) Cols() int { return c.cols }
