package render_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/buffer"
	"github.com/vtedit/core/pkg/layer"
	"github.com/vtedit/core/pkg/render"
)

func TestViewportFirstUpdateAlwaysScrolls(t *testing.T) {
	vp := render.NewViewport(10, 80)
	scrolled := vp.Update(0, 5)
	require.True(t, scrolled)
	require.Equal(t, 0, vp.TopLine())
}

func TestViewportScrollsDownPastBottom(t *testing.T) {
	vp := render.NewViewport(10, 80) // content rows = 9
	vp.Update(0, 100)
	scrolled := vp.Update(20, 100)
	require.True(t, scrolled)
	require.Equal(t, 20-8, vp.TopLine())
}

func TestViewportScrollsUpAboveTop(t *testing.T) {
	vp := render.NewViewport(10, 80)
	vp.Update(20, 100)
	scrolled := vp.Update(5, 100)
	require.True(t, scrolled)
	require.Equal(t, 5, vp.TopLine())
}

func TestViewportClampsToEndOfShortBuffer(t *testing.T) {
	vp := render.NewViewport(10, 80)
	vp.Update(2, 3)
	require.Equal(t, 0, vp.TopLine())
}

func TestRenderPaintsLineIntoContentLayer(t *testing.T) {
	buf := buffer.NewFromString("hello\nworld")
	snap := buf.Snapshot()
	vp := render.NewViewport(5, 10)
	vp.Update(0, snap.LineCount())

	l := layer.New(layer.Content, 5, 10)
	render.Render(l, snap, vp, nil, 8, nil)

	cell, ok := l.GetCell(0, 0)
	require.True(t, ok)
	require.Equal(t, 'h', cell.Char.Rune())

	cell, ok = l.GetCell(1, 0)
	require.True(t, ok)
	require.Equal(t, 'w', cell.Char.Rune())
}

func TestRenderClearsRowsBeyondDocument(t *testing.T) {
	buf := buffer.NewFromString("one")
	snap := buf.Snapshot()
	vp := render.NewViewport(3, 10)
	vp.Update(0, snap.LineCount())

	l := layer.New(layer.Content, 3, 10)
	render.Render(l, snap, vp, nil, 8, nil)

	_, ok := l.GetCell(1, 0)
	require.False(t, ok, "row beyond the document must stay transparent")
}

func TestRenderAppliesHighlightStyle(t *testing.T) {
	buf := buffer.NewFromString("keyword x")
	snap := buf.Snapshot()
	vp := render.NewViewport(3, 20)
	vp.Update(0, snap.LineCount())

	spans := []render.HighlightSpan{{StartChar: 0, EndChar: 7, Capture: "keyword"}}
	red := layer.Color{R: 255}
	styleFor := func(capture string) (layer.Color, layer.Color, bool) {
		if capture == "keyword" {
			return red, layer.Color{}, true
		}
		return layer.Color{}, layer.Color{}, false
	}

	l := layer.New(layer.Content, 3, 20)
	render.Render(l, snap, vp, spans, 8, styleFor)

	cell, ok := l.GetCell(0, 0)
	require.True(t, ok)
	require.NotNil(t, cell.Fg)
	require.Equal(t, red, *cell.Fg)

	cell, ok = l.GetCell(0, 8)
	require.True(t, ok)
	require.Nil(t, cell.Fg)
}

func TestRenderExpandsTabsByWidth(t *testing.T) {
	buf := buffer.NewFromString("a\tb")
	snap := buf.Snapshot()
	vp := render.NewViewport(2, 20)
	vp.Update(0, snap.LineCount())

	l := layer.New(layer.Content, 2, 20)
	render.Render(l, snap, vp, nil, 4, nil)

	cell, ok := l.GetCell(0, 4)
	require.True(t, ok)
	require.Equal(t, 'b', cell.Char.Rune())
}
