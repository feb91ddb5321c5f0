package char_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/char"
)

func TestUnicodeClassification(t *testing.T) {
	require.Equal(t, char.KindTab, char.Unicode('\t').Kind())
	require.Equal(t, char.KindNewline, char.Unicode('\n').Kind())
	require.Equal(t, char.KindControl, char.Unicode('\x01').Kind())
	require.Equal(t, char.KindUnicode, char.Unicode('a').Kind())
	require.Equal(t, char.KindUnicode, char.Unicode('€').Kind())
}

func TestByteClassification(t *testing.T) {
	require.Equal(t, char.KindUnicode, char.Byte('a').Kind())
	require.Equal(t, char.KindByte, char.Byte(0xff).Kind())
}

func TestLenUTF8(t *testing.T) {
	a := char.Unicode('a')
	euro := char.Unicode('€')
	require.Equal(t, 1, a.LenUTF8())
	require.Equal(t, 3, euro.LenUTF8())
	require.Equal(t, 1, char.Byte(0xff).LenUTF8())
}

func TestEncodeUTF8RoundTrips(t *testing.T) {
	cases := []char.Character{
		char.Unicode('a'),
		char.Unicode('€'),
		char.Unicode('\t'),
		char.Unicode('\n'),
		char.Byte(0xff),
	}
	for _, c := range cases {
		buf := c.EncodeUTF8(nil)
		require.Len(t, buf, c.LenUTF8())
	}
}

func TestTabRenderWidth(t *testing.T) {
	tab := char.Unicode('\t')
	require.Equal(t, 8, tab.RenderWidth(0, 8))
	require.Equal(t, 4, tab.RenderWidth(4, 8))
	require.Equal(t, 1, tab.RenderWidth(7, 8))
}

func TestControlAndByteRenderWidth(t *testing.T) {
	require.Equal(t, 2, char.Unicode('\x01').RenderWidth(0, 8))
	require.Equal(t, 4, char.Byte(0xff).RenderWidth(0, 8))
}

func TestLogicalWidthAlwaysOne(t *testing.T) {
	for _, c := range []char.Character{
		char.Unicode('a'), char.Unicode('\t'), char.Unicode('\n'),
		char.Byte(0xff), char.Unicode('\x01'),
	} {
		require.Equal(t, 1, c.LogicalWidth())
	}
}
