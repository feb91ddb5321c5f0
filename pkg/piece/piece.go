// Package piece implements the editor's text storage: an immutable
// original buffer plus an append-only add buffer of Characters, referenced
// by an ordered sequence of pieces, per spec.md §4.1.
package piece

import (
	"sort"

	"github.com/vtedit/core/pkg/char"
)

type source uint8

const (
	sourceOriginal source = iota
	sourceAdd
)

// piece describes a contiguous run of Characters in one of the two backing
// arrays. newlines and byteLen are cached so cumulative arrays can be
// rebuilt in a single pass after a structural mutation.
type piece struct {
	src      source
	start    int
	length   int
	newlines int
	byteLen  int
}

// Table is a piece table: the document is the concatenation of the
// Characters referenced by each piece, in order.
type Table struct {
	original []char.Character
	add      []char.Character
	pieces   []piece

	cumChars    []int
	cumNewlines []int
	cumBytes    []int
	cacheStale  bool
}

// New builds a piece table whose initial content is originalChars. The
// slice is retained (not copied) as the table's immutable original buffer.
func New(originalChars []char.Character) *Table {
	t := &Table{original: originalChars}
	if len(originalChars) > 0 {
		t.pieces = []piece{describePiece(sourceOriginal, originalChars, 0, len(originalChars))}
	}
	t.rebuildCache()
	return t
}

func describePiece(src source, backing []char.Character, start, length int) piece {
	p := piece{src: src, start: start, length: length}
	for i := start; i < start+length; i++ {
		c := backing[i]
		if c.IsNewline() {
			p.newlines++
		}
		p.byteLen += c.LenUTF8()
	}
	return p
}

func (t *Table) backing(src source) []char.Character {
	if src == sourceOriginal {
		return t.original
	}
	return t.add
}

func (t *Table) rebuildCache() {
	n := len(t.pieces)
	t.cumChars = make([]int, n)
	t.cumNewlines = make([]int, n)
	t.cumBytes = make([]int, n)
	chars, nls, bytes := 0, 0, 0
	for i, p := range t.pieces {
		chars += p.length
		nls += p.newlines
		bytes += p.byteLen
		t.cumChars[i] = chars
		t.cumNewlines[i] = nls
		t.cumBytes[i] = bytes
	}
	t.cacheStale = false
}

func (t *Table) ensureCache() {
	if t.cacheStale {
		t.rebuildCache()
	}
}

// Len returns the total number of Characters in the document.
func (t *Table) Len() int {
	t.ensureCache()
	if len(t.cumChars) == 0 {
		return 0
	}
	return t.cumChars[len(t.cumChars)-1]
}

// LineCount returns the number of logical lines. An empty document has
// exactly one line; a trailing newline creates a final empty line.
func (t *Table) LineCount() int {
	t.ensureCache()
	total := 0
	if len(t.cumNewlines) > 0 {
		total = t.cumNewlines[len(t.cumNewlines)-1]
	}
	return total + 1
}

// locate finds the piece index containing char offset pos, and the
// Character offset within that piece. If pos equals Len(), it returns the
// sentinel (len(pieces), 0) meaning "append after the last piece".
func (t *Table) locate(pos int) (idx, offset int) {
	t.ensureCache()
	n := len(t.pieces)
	if n == 0 {
		return 0, 0
	}
	idx = sort.Search(n, func(i int) bool { return t.cumChars[i] > pos })
	if idx == n {
		return n, 0
	}
	prev := 0
	if idx > 0 {
		prev = t.cumChars[idx-1]
	}
	return idx, pos - prev
}

func (t *Table) charsBefore(idx int) int {
	if idx == 0 {
		return 0
	}
	return t.cumChars[idx-1]
}

func (t *Table) newlinesBefore(idx int) int {
	if idx == 0 {
		return 0
	}
	return t.cumNewlines[idx-1]
}

func (t *Table) bytesBefore(idx int) int {
	if idx == 0 {
		return 0
	}
	return t.cumBytes[idx-1]
}

// CharAt returns the Character at char offset pos. ok is false if pos is
// out of range.
func (t *Table) CharAt(pos int) (c char.Character, ok bool) {
	if pos < 0 || pos >= t.Len() {
		return char.Character{}, false
	}
	idx, offset := t.locate(pos)
	p := t.pieces[idx]
	return t.backing(p.src)[p.start+offset], true
}

// Insert splices chars into the document at char offset pos, appending
// them to the add buffer and inserting or extending a piece. No Character
// in the original or add buffer is ever moved or copied in bulk.
func (t *Table) Insert(pos int, chars []char.Character) {
	if len(chars) == 0 {
		return
	}
	t.ensureCache()
	idx, offset := t.locate(pos)

	addStart := len(t.add)
	t.add = append(t.add, chars...)
	newPiece := describePiece(sourceAdd, t.add, addStart, len(chars))

	// Extend the previous piece in place if insertion happens exactly at a
	// boundary and that piece is an add-buffer tail adjacent to the new text.
	if offset == 0 && idx > 0 {
		prev := &t.pieces[idx-1]
		if prev.src == sourceAdd && prev.start+prev.length == addStart {
			prev.length += newPiece.length
			prev.newlines += newPiece.newlines
			prev.byteLen += newPiece.byteLen
			t.cacheStale = true
			return
		}
	}

	switch {
	case offset == 0:
		t.splice(idx, idx, []piece{newPiece})
	default:
		p := t.pieces[idx]
		left := describePiece(p.src, t.backing(p.src), p.start, offset)
		right := describePiece(p.src, t.backing(p.src), p.start+offset, p.length-offset)
		t.splice(idx, idx+1, []piece{left, newPiece, right})
	}
	t.cacheStale = true
}

// Delete removes the Characters in char range [start, end) and returns
// them, preserved for the caller (typically the undo tree).
func (t *Table) Delete(start, end int) []char.Character {
	if end <= start {
		return nil
	}
	removed := t.charSlice(start, end)

	startIdx, startOffset := t.locate(start)
	endIdx, endOffset := t.locate(end)

	var replacement []piece

	if startIdx == endIdx {
		// Deletion entirely within one piece: keep the flanking parts.
		p := t.pieces[startIdx]
		if startOffset > 0 {
			replacement = append(replacement, describePiece(p.src, t.backing(p.src), p.start, startOffset))
		}
		if endOffset < p.length {
			replacement = append(replacement, describePiece(p.src, t.backing(p.src), p.start+endOffset, p.length-endOffset))
		}
		t.splice(startIdx, startIdx+1, replacement)
		t.cacheStale = true
		return removed
	}

	if startOffset > 0 {
		p := t.pieces[startIdx]
		replacement = append(replacement, describePiece(p.src, t.backing(p.src), p.start, startOffset))
	}
	// pieces strictly between startIdx and endIdx are fully removed.
	if endIdx < len(t.pieces) && endOffset < t.pieces[endIdx].length {
		p := t.pieces[endIdx]
		replacement = append(replacement, describePiece(p.src, t.backing(p.src), p.start+endOffset, p.length-endOffset))
	}
	upper := endIdx
	if endIdx < len(t.pieces) {
		upper = endIdx + 1
	}
	t.splice(startIdx, upper, replacement)
	t.cacheStale = true
	return removed
}

// splice replaces pieces[from:to] with repl, then merges any adjacent
// pieces that became contiguous in their source as a result.
func (t *Table) splice(from, to int, repl []piece) {
	next := make([]piece, 0, len(t.pieces)-(to-from)+len(repl))
	next = append(next, t.pieces[:from]...)
	next = append(next, repl...)
	next = append(next, t.pieces[to:]...)
	t.pieces = mergeAdjacent(next)
}

func mergeAdjacent(pieces []piece) []piece {
	out := pieces[:0:0]
	for _, p := range pieces {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.src == p.src && last.start+last.length == p.start {
				last.length += p.length
				last.newlines += p.newlines
				last.byteLen += p.byteLen
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// charSlice materializes the Characters in [start, end) by walking pieces.
func (t *Table) charSlice(start, end int) []char.Character {
	if end <= start {
		return nil
	}
	out := make([]char.Character, 0, end-start)
	startIdx, startOffset := t.locate(start)
	pos := start
	idx, offset := startIdx, startOffset
	for pos < end {
		p := t.pieces[idx]
		backing := t.backing(p.src)
		avail := p.length - offset
		take := end - pos
		if take > avail {
			take = avail
		}
		out = append(out, backing[p.start+offset:p.start+offset+take]...)
		pos += take
		idx++
		offset = 0
	}
	return out
}

// BytesRange materializes the UTF-8 bytes for char range [start, end).
func (t *Table) BytesRange(start, end int) []byte {
	chars := t.charSlice(start, end)
	out := make([]byte, 0, len(chars))
	for _, c := range chars {
		out = c.EncodeUTF8(out)
	}
	return out
}

// LineStart returns the char offset of the start of line (0-based).
func (t *Table) LineStart(line int) int {
	if line <= 0 {
		return 0
	}
	t.ensureCache()
	// Find the piece containing the `line`-th newline (1-indexed).
	n := len(t.pieces)
	idx := sort.Search(n, func(i int) bool { return t.cumNewlines[i] >= line })
	if idx == n {
		return t.Len()
	}
	localTarget := line - t.newlinesBefore(idx)
	p := t.pieces[idx]
	backing := t.backing(p.src)
	seen := 0
	for i := 0; i < p.length; i++ {
		if backing[p.start+i].IsNewline() {
			seen++
			if seen == localTarget {
				return t.charsBefore(idx) + i + 1
			}
		}
	}
	return t.Len()
}

// LineOfChar returns the 0-based line index containing char offset pos:
// the count of newline Characters at positions strictly before pos.
func (t *Table) LineOfChar(pos int) int {
	t.ensureCache()
	idx, offset := t.locate(pos)
	if idx == len(t.pieces) {
		if len(t.cumNewlines) == 0 {
			return 0
		}
		return t.cumNewlines[len(t.cumNewlines)-1]
	}
	p := t.pieces[idx]
	backing := t.backing(p.src)
	before := t.newlinesBefore(idx)
	for i := 0; i < offset; i++ {
		if backing[p.start+i].IsNewline() {
			before++
		}
	}
	return before
}

// CharToByte converts a char offset to the corresponding byte offset in
// the document's UTF-8 serialization.
func (t *Table) CharToByte(pos int) int {
	t.ensureCache()
	idx, offset := t.locate(pos)
	if idx == len(t.pieces) {
		if len(t.cumBytes) == 0 {
			return 0
		}
		return t.cumBytes[len(t.cumBytes)-1]
	}
	p := t.pieces[idx]
	backing := t.backing(p.src)
	b := t.bytesBefore(idx)
	for i := 0; i < offset; i++ {
		b += backing[p.start+i].LenUTF8()
	}
	return b
}

// Snapshot returns an independent, read-only Table reflecting the document
// exactly as it is now. Taking a snapshot is cheap: it copies only the
// (small) piece list, sharing the original and add backing arrays, which
// are safe to share because original is immutable and add is append-only
// — existing indices into either never change their contents.
func (t *Table) Snapshot() *Table {
	t.ensureCache()
	piecesCopy := make([]piece, len(t.pieces))
	copy(piecesCopy, t.pieces)
	cumChars := make([]int, len(t.cumChars))
	copy(cumChars, t.cumChars)
	cumNewlines := make([]int, len(t.cumNewlines))
	copy(cumNewlines, t.cumNewlines)
	cumBytes := make([]int, len(t.cumBytes))
	copy(cumBytes, t.cumBytes)
	return &Table{
		original:    t.original,
		add:         t.add,
		pieces:      piecesCopy,
		cumChars:    cumChars,
		cumNewlines: cumNewlines,
		cumBytes:    cumBytes,
	}
}

// ByteToChar converts a byte offset (which must fall on a UTF-8 character
// boundary) to the corresponding char offset.
func (t *Table) ByteToChar(bytePos int) int {
	t.ensureCache()
	n := len(t.pieces)
	idx := sort.Search(n, func(i int) bool { return t.cumBytes[i] > bytePos })
	if idx == n {
		if len(t.cumChars) == 0 {
			return 0
		}
		return t.cumChars[len(t.cumChars)-1]
	}
	p := t.pieces[idx]
	backing := t.backing(p.src)
	b := t.bytesBefore(idx)
	pos := t.charsBefore(idx)
	for i := 0; i < p.length; i++ {
		if b >= bytePos {
			break
		}
		b += backing[p.start+i].LenUTF8()
		pos++
	}
	return pos
}
