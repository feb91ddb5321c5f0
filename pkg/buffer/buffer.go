// Package buffer implements the editor's per-document text buffer: cursor
// and preferred-column tracking atop a piece table, plus the transaction
// primitives undo/redo and macro replay build on. Grounded on
// original_source/src/buffer/api.rs (BufferView/BufferMut/TransactionBuilder)
// and src/movement/{classify,boundaries}.rs for word/sentence/paragraph
// motion, re-expressed as a Go struct with explicit error returns instead of
// trait objects.
package buffer

import (
	"time"
	"unicode/utf8"

	"github.com/vtedit/core/pkg/apperr"
	"github.com/vtedit/core/pkg/char"
	"github.com/vtedit/core/pkg/piece"
)

// OpKind tags a single recorded edit within a Transaction.
type OpKind int

const (
	OpInsert OpKind = iota
	OpDelete
	OpSetCursor
)

// Op is one primitive mutation. Insert/Delete carry the character positions
// and payload needed to invert them; SetCursor carries both endpoints so it
// can be reversed without consulting buffer state.
type Op struct {
	Kind  OpKind
	Pos   int
	Chars []char.Character
	From  int
	To    int
}

// Inverse returns the Op that undoes this one.
func (o Op) Inverse() Op {
	switch o.Kind {
	case OpInsert:
		return Op{Kind: OpDelete, Pos: o.Pos, Chars: o.Chars}
	case OpDelete:
		return Op{Kind: OpInsert, Pos: o.Pos, Chars: o.Chars}
	default: // OpSetCursor
		return Op{Kind: OpSetCursor, From: o.To, To: o.From}
	}
}

// Transaction is an atomic, invertible group of ops applied as a single
// revision. The undo tree stores these verbatim; Inverse() replays them in
// reverse with each Op inverted.
type Transaction struct {
	Label     string
	Timestamp time.Time
	Ops       []Op
}

// Inverse returns the transaction that exactly undoes this one.
func (t Transaction) Inverse() Transaction {
	inv := make([]Op, len(t.Ops))
	for i, op := range t.Ops {
		inv[len(t.Ops)-1-i] = op.Inverse()
	}
	return Transaction{Label: "undo:" + t.Label, Timestamp: t.Timestamp, Ops: inv}
}

// Buffer is one document: piece table plus cursor, sticky preferred column,
// revision counter, and dirty flag (spec.md §4.2).
type Buffer struct {
	table        *piece.Table
	cursor       int
	preferredCol int
	revision     uint64
	dirty        bool
	tabWidth     int
	nowFn        func() time.Time
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{table: piece.New(nil), tabWidth: 8, nowFn: time.Now}
}

// NewFromString seeds a buffer from UTF-8 text, passing through any invalid
// byte sequences losslessly as char.Byte characters.
func NewFromString(s string) *Buffer {
	b := New()
	b.table = piece.New(decodeLossy(s))
	return b
}

// decodeLossy converts UTF-8 text into Characters, passing through any
// invalid byte as a standalone char.Byte so re-encoding is lossless.
func decodeLossy(s string) []char.Character {
	out := make([]char.Character, 0, len(s))
	data := []byte(s)
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			out = append(out, char.Byte(data[i]))
			i++
			continue
		}
		out = append(out, char.Unicode(r))
		i += size
	}
	return out
}

// Len returns the document length in characters.
func (b *Buffer) Len() int { return b.table.Len() }

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int { return b.table.LineCount() }

// Cursor returns the current cursor position, in characters.
func (b *Buffer) Cursor() int { return b.cursor }

// Revision returns the monotonically increasing edit counter.
func (b *Buffer) Revision() uint64 { return b.revision }

// IsDirty reports whether the buffer has unsaved changes.
func (b *Buffer) IsDirty() bool { return b.dirty }

// MarkSaved clears the dirty flag after a successful write.
func (b *Buffer) MarkSaved() { b.dirty = false }

// SetTabWidth configures the tab stop width used for rendering.
func (b *Buffer) SetTabWidth(n int) {
	if n > 0 {
		b.tabWidth = n
	}
}

// CharAt returns the character at pos, if any.
func (b *Buffer) CharAt(pos int) (char.Character, bool) { return b.table.CharAt(pos) }

// BytesRange returns the UTF-8 encoding of [start, end).
func (b *Buffer) BytesRange(start, end int) []byte { return b.table.BytesRange(start, end) }

// LineOfChar returns the 0-indexed line containing pos.
func (b *Buffer) LineOfChar(pos int) int { return b.table.LineOfChar(pos) }

// LineStart returns the character position where line begins.
func (b *Buffer) LineStart(line int) int { return b.table.LineStart(line) }

func (b *Buffer) lineEnd(line int) int {
	if line+1 < b.table.LineCount() {
		return b.table.LineStart(line+1) - 1
	}
	return b.table.Len()
}

func (b *Buffer) lineLength(line int) int {
	return b.lineEnd(line) - b.table.LineStart(line)
}

func (b *Buffer) runeAt(pos int) rune {
	c, ok := b.table.CharAt(pos)
	if !ok {
		return 0
	}
	return c.Rune()
}

func (b *Buffer) currentColumn() int {
	line := b.table.LineOfChar(b.cursor)
	return b.cursor - b.table.LineStart(line)
}

func (b *Buffer) updatePreferredCol() {
	b.preferredCol = b.currentColumn()
}

// Snapshot is a frozen, read-only view of the buffer at a point in time.
type Snapshot struct {
	table    *piece.Table
	revision uint64
	cursor   int
}

func (s *Snapshot) Len() int                              { return s.table.Len() }
func (s *Snapshot) LineCount() int                         { return s.table.LineCount() }
func (s *Snapshot) Revision() uint64                       { return s.revision }
func (s *Snapshot) Cursor() int                            { return s.cursor }
func (s *Snapshot) CharAt(pos int) (char.Character, bool)  { return s.table.CharAt(pos) }
func (s *Snapshot) BytesRange(start, end int) []byte       { return s.table.BytesRange(start, end) }
func (s *Snapshot) LineStart(line int) int                 { return s.table.LineStart(line) }
func (s *Snapshot) LineOfChar(pos int) int                 { return s.table.LineOfChar(pos) }
func (s *Snapshot) ByteToChar(bytePos int) int             { return s.table.ByteToChar(bytePos) }

// Snapshot freezes the current document and cursor for concurrent readers
// (the renderer, a background search job) while edits continue on b.
func (b *Buffer) Snapshot() *Snapshot {
	return &Snapshot{table: b.table.Snapshot(), revision: b.revision, cursor: b.cursor}
}

// FromSnapshot builds a working Buffer from a frozen Snapshot, used by the
// undo tree to replay a transaction chain forward from the nearest
// snapshot ancestor without disturbing the snapshot itself.
func FromSnapshot(s *Snapshot) *Buffer {
	return &Buffer{
		table:    s.table.Snapshot(),
		cursor:   s.cursor,
		revision: s.revision,
		tabWidth: 8,
		nowFn:    time.Now,
	}
}

// ---- Navigation (no revision bump) ----

func (b *Buffer) clampCursor(pos int) (int, error) {
	if pos < 0 || pos > b.table.Len() {
		return 0, apperr.InvalidCursorf(pos, b.table.Len())
	}
	return pos, nil
}

func (b *Buffer) MoveLeft() bool {
	if b.cursor == 0 {
		return false
	}
	b.cursor--
	b.updatePreferredCol()
	return true
}

func (b *Buffer) MoveRight() bool {
	if b.cursor >= b.table.Len() {
		return false
	}
	b.cursor++
	b.updatePreferredCol()
	return true
}

func (b *Buffer) MoveUp() bool {
	line := b.table.LineOfChar(b.cursor)
	if line == 0 {
		return false
	}
	target := line - 1
	col := b.preferredCol
	if ll := b.lineLength(target); col > ll {
		col = ll
	}
	b.cursor = b.table.LineStart(target) + col
	return true
}

func (b *Buffer) MoveDown() bool {
	line := b.table.LineOfChar(b.cursor)
	if line+1 >= b.table.LineCount() {
		return false
	}
	target := line + 1
	col := b.preferredCol
	if ll := b.lineLength(target); col > ll {
		col = ll
	}
	b.cursor = b.table.LineStart(target) + col
	return true
}

func (b *Buffer) MoveToLineStart() bool {
	ls := b.table.LineStart(b.table.LineOfChar(b.cursor))
	if ls == b.cursor {
		return false
	}
	b.cursor = ls
	b.updatePreferredCol()
	return true
}

func (b *Buffer) MoveToLineEnd() bool {
	le := b.lineEnd(b.table.LineOfChar(b.cursor))
	if le == b.cursor {
		return false
	}
	b.cursor = le
	b.updatePreferredCol()
	return true
}

// SetCursor jumps the cursor directly to pos (a search hit, a goto-line
// target). A pos outside [0, Len()] is rejected with an InvalidCursor
// error and the cursor stays put. Like the Move* methods, this never
// bumps the revision or dirty flag — only edits do that.
func (b *Buffer) SetCursor(pos int) error {
	pos, err := b.clampCursor(pos)
	if err != nil {
		return err
	}
	b.cursor = pos
	b.updatePreferredCol()
	return nil
}

func (b *Buffer) MoveToStart() bool {
	if b.cursor == 0 {
		return false
	}
	b.cursor = 0
	b.updatePreferredCol()
	return true
}

func (b *Buffer) MoveToEnd() bool {
	if b.cursor == b.table.Len() {
		return false
	}
	b.cursor = b.table.Len()
	b.updatePreferredCol()
	return true
}

type charClass int

const (
	clsWhitespace charClass = iota
	clsWord
	clsSymbol
)

func classify(r rune) charClass {
	switch {
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return clsWhitespace
	case isWordRune(r):
		return clsWord
	default:
		return clsSymbol
	}
}

func isWordRune(r rune) bool {
	return r == '_' || isAlnum(r)
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r > 0x7f
}

// MoveWordRight moves to the start of the next word, skipping any run of
// the current class and then any trailing whitespace.
func (b *Buffer) MoveWordRight() bool {
	n := b.table.Len()
	if b.cursor >= n {
		return false
	}
	pos := b.cursor
	cls := classify(b.runeAt(pos))
	for pos < n && classify(b.runeAt(pos)) == cls {
		pos++
	}
	for pos < n && classify(b.runeAt(pos)) == clsWhitespace {
		pos++
	}
	if pos == b.cursor {
		return false
	}
	b.cursor = pos
	b.updatePreferredCol()
	return true
}

// MoveWordLeft moves to the start of the previous word.
func (b *Buffer) MoveWordLeft() bool {
	if b.cursor == 0 {
		return false
	}
	pos := b.cursor - 1
	for pos > 0 && classify(b.runeAt(pos)) == clsWhitespace {
		pos--
	}
	target := classify(b.runeAt(pos))
	if target == clsWhitespace {
		if pos+1 == b.cursor {
			return false
		}
		b.cursor = pos + 1
		b.updatePreferredCol()
		return true
	}
	for pos > 0 && classify(b.runeAt(pos-1)) == target {
		pos--
	}
	if pos == b.cursor {
		return false
	}
	b.cursor = pos
	b.updatePreferredCol()
	return true
}

func isSpaceOrNewline(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }
func isSentenceEnd(r rune) bool    { return r == '.' || r == '!' || r == '?' }

// MoveSentenceForward moves to the start of the next sentence: a run of
// terminal punctuation (.!?) followed by whitespace or EOF, or a bare
// newline when no punctuation appears first on the line.
func (b *Buffer) MoveSentenceForward() bool {
	n := b.table.Len()
	for pos := b.cursor; pos < n; pos++ {
		r := b.runeAt(pos)
		if isSentenceEnd(r) {
			p2 := pos + 1
			for p2 < n && isSentenceEnd(b.runeAt(p2)) {
				p2++
			}
			if p2 == n || isSpaceOrNewline(b.runeAt(p2)) {
				for p2 < n && isSpaceOrNewline(b.runeAt(p2)) {
					p2++
				}
				if p2 != b.cursor {
					b.cursor = p2
					b.updatePreferredCol()
					return true
				}
			}
			continue
		}
		if r == '\n' {
			p2 := pos + 1
			for p2 < n && isSpaceOrNewline(b.runeAt(p2)) {
				p2++
			}
			if p2 != b.cursor {
				b.cursor = p2
				b.updatePreferredCol()
				return true
			}
		}
	}
	return false
}

// MoveSentenceBackward moves to the start of the previous sentence.
func (b *Buffer) MoveSentenceBackward() bool {
	pos := b.cursor
	for pos > 0 && isSpaceOrNewline(b.runeAt(pos-1)) {
		pos--
	}
	if pos > 0 && isSentenceEnd(b.runeAt(pos-1)) {
		for pos > 0 && isSentenceEnd(b.runeAt(pos-1)) {
			pos--
		}
	}
	target := pos
	for target > 0 {
		r := b.runeAt(target - 1)
		if isSentenceEnd(r) || r == '\n' {
			break
		}
		target--
	}
	for target < pos && isSpaceOrNewline(b.runeAt(target)) {
		target++
	}
	if target == b.cursor {
		return false
	}
	b.cursor = target
	b.updatePreferredCol()
	return true
}

func (b *Buffer) isBlankLine(line int) bool {
	start, end := b.table.LineStart(line), b.lineEnd(line)
	for p := start; p < end; p++ {
		if !isSpaceOrNewline(b.runeAt(p)) {
			return false
		}
	}
	return true
}

// MoveParagraphForward jumps to the next blank line, or the document end.
func (b *Buffer) MoveParagraphForward() bool {
	line := b.table.LineOfChar(b.cursor)
	for l := line + 1; l < b.table.LineCount(); l++ {
		if b.isBlankLine(l) {
			pos := b.table.LineStart(l)
			if pos != b.cursor {
				b.cursor = pos
				b.updatePreferredCol()
				return true
			}
		}
	}
	if b.cursor == b.table.Len() {
		return false
	}
	b.cursor = b.table.Len()
	b.updatePreferredCol()
	return true
}

// MoveParagraphBackward jumps to the previous blank line, or the start.
func (b *Buffer) MoveParagraphBackward() bool {
	line := b.table.LineOfChar(b.cursor)
	for l := line - 1; l >= 0; l-- {
		if b.isBlankLine(l) {
			pos := b.table.LineStart(l)
			if pos != b.cursor {
				b.cursor = pos
				b.updatePreferredCol()
				return true
			}
		}
	}
	if b.cursor == 0 {
		return false
	}
	b.cursor = 0
	b.updatePreferredCol()
	return true
}

// ---- Transactions and editing ----

// TxBuilder records ops while applying them directly to the buffer so
// reads mid-transaction see live edits. On error the caller's transaction
// is rolled back by inverse-applying recorded ops in reverse.
type TxBuilder struct {
	buf *Buffer
	ops []Op
}

// Cursor returns the buffer's current cursor position during the build.
func (tx *TxBuilder) Cursor() int { return tx.buf.cursor }

// SetCursor moves the cursor, recording the move as an invertible op.
func (tx *TxBuilder) SetCursor(pos int) error {
	pos, err := tx.buf.clampCursor(pos)
	if err != nil {
		return err
	}
	from := tx.buf.cursor
	if from == pos {
		return nil
	}
	tx.buf.cursor = pos
	tx.ops = append(tx.ops, Op{Kind: OpSetCursor, From: from, To: pos})
	return nil
}

// InsertAt inserts s at pos. A cursor at or after pos shifts right by the
// inserted length, so inserting at the cursor leaves it after the text.
func (tx *TxBuilder) InsertAt(pos int, s string) error {
	if _, err := tx.buf.clampCursor(pos); err != nil {
		return err
	}
	chars := decodeLossy(s)
	if len(chars) == 0 {
		return nil
	}
	tx.buf.table.Insert(pos, chars)
	tx.ops = append(tx.ops, Op{Kind: OpInsert, Pos: pos, Chars: chars})
	if tx.buf.cursor >= pos {
		tx.buf.cursor += len(chars)
	}
	return nil
}

// DeleteAt removes length characters starting at pos and returns them.
func (tx *TxBuilder) DeleteAt(pos, length int) ([]char.Character, error) {
	end := pos + length
	if pos < 0 || end > tx.buf.table.Len() || end < pos {
		return nil, apperr.InvalidCursorf(pos, tx.buf.table.Len())
	}
	if length == 0 {
		return nil, nil
	}
	removed := tx.buf.table.Delete(pos, end)
	tx.ops = append(tx.ops, Op{Kind: OpDelete, Pos: pos, Chars: removed})
	switch {
	case tx.buf.cursor >= end:
		tx.buf.cursor -= length
	case tx.buf.cursor > pos:
		tx.buf.cursor = pos
	}
	return removed, nil
}

func (tx *TxBuilder) rollback() {
	for i := len(tx.ops) - 1; i >= 0; i-- {
		inv := tx.ops[i].Inverse()
		switch inv.Kind {
		case OpInsert:
			tx.buf.table.Insert(inv.Pos, inv.Chars)
		case OpDelete:
			tx.buf.table.Delete(inv.Pos, inv.Pos+len(inv.Chars))
		case OpSetCursor:
			tx.buf.cursor = inv.To
		}
	}
}

// ApplyTransaction runs f, recording every op it performs. If f returns an
// error the buffer is rolled back to exactly its prior state and the
// revision does not advance; otherwise the revision is bumped once and the
// resulting Transaction is returned for the undo tree to record.
func (b *Buffer) ApplyTransaction(label string, f func(tx *TxBuilder) error) (Transaction, error) {
	startCursor := b.cursor
	tx := &TxBuilder{buf: b}
	if err := f(tx); err != nil {
		tx.rollback()
		b.cursor = startCursor
		return Transaction{}, err
	}
	if len(tx.ops) == 0 {
		return Transaction{}, nil
	}
	b.revision++
	b.dirty = true
	return Transaction{Label: label, Timestamp: b.nowFn(), Ops: tx.ops}, nil
}

func charCount(s string) int { return len(decodeLossy(s)) }

// InsertChar inserts a single rune at the cursor and advances past it.
func (b *Buffer) InsertChar(r rune) error {
	return b.InsertStr(string(r))
}

// InsertStr inserts s at the cursor and advances the cursor past it.
func (b *Buffer) InsertStr(s string) error {
	_, err := b.ApplyTransaction("insert", func(tx *TxBuilder) error {
		return tx.InsertAt(tx.Cursor(), s)
	})
	return err
}

// DeleteBackward removes up to n characters before the cursor (backspace).
func (b *Buffer) DeleteBackward(n int) error {
	if n <= 0 {
		return nil
	}
	start := b.cursor - n
	if start < 0 {
		start = 0
	}
	count := b.cursor - start
	if count == 0 {
		return nil
	}
	_, err := b.ApplyTransaction("delete-backward", func(tx *TxBuilder) error {
		_, err := tx.DeleteAt(start, count)
		return err
	})
	return err
}

// DeleteForward removes up to n characters at the cursor (delete key).
func (b *Buffer) DeleteForward(n int) error {
	if n <= 0 {
		return nil
	}
	end := b.cursor + n
	if end > b.table.Len() {
		end = b.table.Len()
	}
	count := end - b.cursor
	if count == 0 {
		return nil
	}
	_, err := b.ApplyTransaction("delete-forward", func(tx *TxBuilder) error {
		_, err := tx.DeleteAt(b.cursor, count)
		return err
	})
	return err
}

// DeleteRange removes [start, end), moving the cursor to start if it fell
// inside the removed span.
func (b *Buffer) DeleteRange(start, end int) error {
	if end < start {
		start, end = end, start
	}
	if start < 0 || end > b.table.Len() {
		return apperr.InvalidCursorf(start, b.table.Len())
	}
	if start == end {
		return nil
	}
	_, err := b.ApplyTransaction("delete-range", func(tx *TxBuilder) error {
		_, err := tx.DeleteAt(start, end-start)
		return err
	})
	return err
}

// Apply replays a recorded Transaction verbatim (used by undo/redo and
// macro playback) without recording a new one.
func (b *Buffer) Apply(t Transaction) error {
	for _, op := range t.Ops {
		switch op.Kind {
		case OpInsert:
			b.table.Insert(op.Pos, op.Chars)
			if b.cursor >= op.Pos {
				b.cursor += len(op.Chars)
			}
		case OpDelete:
			b.table.Delete(op.Pos, op.Pos+len(op.Chars))
			switch {
			case b.cursor >= op.Pos+len(op.Chars):
				b.cursor -= len(op.Chars)
			case b.cursor > op.Pos:
				b.cursor = op.Pos
			}
		case OpSetCursor:
			pos, err := b.clampCursor(op.To)
			if err != nil {
				return err
			}
			b.cursor = pos
		}
	}
	b.revision++
	b.dirty = true
	return nil
}
