package piece_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/char"
	"github.com/vtedit/core/pkg/piece"
)

func chars(s string) []char.Character {
	out := make([]char.Character, 0, len(s))
	for _, r := range s {
		out = append(out, char.Unicode(r))
	}
	return out
}

func text(t *piece.Table) string {
	b := t.BytesRange(0, t.Len())
	return string(b)
}

func TestEmptyDocument(t *testing.T) {
	tb := piece.New(nil)
	require.Equal(t, 0, tb.Len())
	require.Equal(t, 1, tb.LineCount())
	require.Equal(t, 0, tb.LineStart(0))
}

func TestInsertHelloWorld(t *testing.T) {
	tb := piece.New(nil)
	tb.Insert(0, chars("Hello"))
	tb.Insert(5, chars("World"))
	require.Equal(t, "HelloWorld", text(tb))
	require.Equal(t, 10, tb.Len())
	require.Equal(t, 1, tb.LineCount())
}

func TestCharToByteMultiByte(t *testing.T) {
	tb := piece.New(nil)
	tb.Insert(0, chars("a€b"))
	require.Equal(t, 3, tb.Len())
	require.Equal(t, 0, tb.CharToByte(0))
	require.Equal(t, 1, tb.CharToByte(1))
	require.Equal(t, 4, tb.CharToByte(2))
	require.Equal(t, 5, tb.CharToByte(3))
	require.Equal(t, 0, tb.ByteToChar(0))
	require.Equal(t, 1, tb.ByteToChar(1))
	require.Equal(t, 2, tb.ByteToChar(4))
	require.Equal(t, 3, tb.ByteToChar(5))
}

func TestLineIndex(t *testing.T) {
	tb := piece.New(nil)
	tb.Insert(0, chars("Line 1\nLine 2\nLine 3"))
	require.Equal(t, 3, tb.LineCount())
	require.Equal(t, 7, tb.LineStart(1))
	require.Equal(t, 1, tb.LineOfChar(13))
	require.Equal(t, 2, tb.LineOfChar(14))
}

func TestTrailingNewlineCreatesEmptyLine(t *testing.T) {
	tb := piece.New(nil)
	tb.Insert(0, chars("a\n"))
	require.Equal(t, 2, tb.LineCount())
	require.Equal(t, 2, tb.LineStart(1))
}

func TestDeleteCollapsesAdjacentPieces(t *testing.T) {
	tb := piece.New(chars("abcdef"))
	tb.Insert(3, chars("X"))
	require.Equal(t, "abcXdef", text(tb))
	tb.Delete(3, 4)
	require.Equal(t, "abcdef", text(tb))
	// Further edits should still behave correctly after the merge.
	tb.Insert(0, chars("Z"))
	require.Equal(t, "Zabcdef", text(tb))
}

func TestDeleteAcrossPieceBoundary(t *testing.T) {
	tb := piece.New(nil)
	tb.Insert(0, chars("Hello"))
	tb.Insert(5, chars("World"))
	removed := tb.Delete(3, 7)
	require.Equal(t, "loWo", string(charsToString(removed)))
	require.Equal(t, "Helrld", text(tb))
}

func charsToString(cs []char.Character) []byte {
	var out []byte
	for _, c := range cs {
		out = c.EncodeUTF8(out)
	}
	return out
}

func TestInsertDeleteRoundTrip(t *testing.T) {
	tb := piece.New(nil)
	tb.Insert(0, chars("The quick brown fox"))
	before := text(tb)
	tb.Insert(4, chars("very "))
	require.Equal(t, "The very quick brown fox", text(tb))
	tb.Delete(4, 9)
	require.Equal(t, before, text(tb))
}

func TestLenInvariantUnderInsertsAndDeletes(t *testing.T) {
	tb := piece.New(nil)
	tb.Insert(0, chars("abcdefgh"))
	tb.Insert(4, chars("XYZ"))
	tb.Delete(2, 6)
	require.Equal(t, 8+3-4, tb.Len())
}

func TestCharAtOutOfRange(t *testing.T) {
	tb := piece.New(nil)
	tb.Insert(0, chars("ab"))
	_, ok := tb.CharAt(2)
	require.False(t, ok)
	c, ok := tb.CharAt(1)
	require.True(t, ok)
	require.Equal(t, 'b', c.Rune())
}
