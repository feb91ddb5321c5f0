// Package char defines the editor's atomic editing unit: a tagged sum of
// Unicode scalar, raw byte, tab, newline, and control character.
package char

import (
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Kind tags the variant carried by a Character.
type Kind uint8

const (
	// KindUnicode holds a decoded Unicode scalar value.
	KindUnicode Kind = iota
	// KindByte holds a single byte that was not valid UTF-8.
	KindByte
	// KindTab is a horizontal tab.
	KindTab
	// KindNewline is a line feed.
	KindNewline
	// KindControl is a control byte rendered visibly (e.g. ^C).
	KindControl
)

// Character is one logical editing unit, as defined in spec.md §3.
type Character struct {
	kind Kind
	r    rune // valid for KindUnicode
	b    byte // valid for KindByte and KindControl
}

// Unicode constructs a Character from a decoded rune, classifying it into
// Tab, Newline, Control, or plain Unicode the same way the original
// From<char> conversion does.
func Unicode(r rune) Character {
	switch r {
	case '\t':
		return Character{kind: KindTab}
	case '\n':
		return Character{kind: KindNewline}
	}
	if unicode.IsControl(r) {
		return Character{kind: KindControl, b: byte(r)}
	}
	return Character{kind: KindUnicode, r: r}
}

// Byte constructs a Character from a raw byte that failed UTF-8 decoding.
// ASCII bytes are classified the same way Unicode would classify them;
// non-ASCII bytes become KindByte passthrough so round-tripping is lossless.
func Byte(b byte) Character {
	if b < 0x80 {
		return Unicode(rune(b))
	}
	return Character{kind: KindByte, b: b}
}

// Kind reports which variant this Character carries.
func (c Character) Kind() Kind { return c.kind }

// Rune returns the decoded rune for KindUnicode characters, '\t' and '\n'
// for tabs and newlines, the control byte's own code point for
// KindControl, and the replacement character for a raw KindByte
// (best-effort, e.g. for search).
func (c Character) Rune() rune {
	switch c.kind {
	case KindUnicode:
		return c.r
	case KindTab:
		return '\t'
	case KindNewline:
		return '\n'
	case KindControl:
		return rune(c.b)
	case KindByte:
		return '�'
	}
	return '�'
}

// IsNewline reports whether this Character ends a line.
func (c Character) IsNewline() bool { return c.kind == KindNewline }

// LogicalWidth is always 1: the unit of cursor movement, per spec.md §3.
func (c Character) LogicalWidth() int { return 1 }

// RenderWidth returns the display width of this Character starting at
// screen column col, given a tab stop width. Tabs expand to the next tab
// stop; raw bytes render as "\xNN" (4 columns); control bytes render as
// "^X" (2 columns).
func (c Character) RenderWidth(col, tabWidth int) int {
	switch c.kind {
	case KindUnicode:
		w := runewidth.RuneWidth(c.r)
		if w < 0 {
			w = 0
		}
		return w
	case KindByte:
		return 4
	case KindTab:
		if tabWidth <= 0 {
			tabWidth = 1
		}
		return tabWidth - (col % tabWidth)
	case KindNewline:
		return 0
	case KindControl:
		return 2
	}
	return 0
}

// LenUTF8 returns the number of bytes this Character serializes to.
func (c Character) LenUTF8() int {
	switch c.kind {
	case KindUnicode:
		return utf8.RuneLen(c.r)
	default:
		return 1
	}
}

// EncodeUTF8 appends this Character's UTF-8 byte serialization to dst and
// returns the extended slice.
func (c Character) EncodeUTF8(dst []byte) []byte {
	switch c.kind {
	case KindUnicode:
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], c.r)
		return append(dst, buf[:n]...)
	case KindByte:
		return append(dst, c.b)
	case KindTab:
		return append(dst, '\t')
	case KindNewline:
		return append(dst, '\n')
	case KindControl:
		return append(dst, c.b)
	}
	return dst
}
