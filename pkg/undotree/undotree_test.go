package undotree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/buffer"
	"github.com/vtedit/core/pkg/undo"
	"github.com/vtedit/core/pkg/undotree"
)

func push(t *testing.T, buf *buffer.Buffer, tree *undo.Tree, label, text string) {
	t.Helper()
	tx, err := buf.ApplyTransaction(label, func(b *buffer.TxBuilder) error {
		return b.InsertAt(buf.Cursor(), text)
	})
	require.NoError(t, err)
	tree.Push(tx)
}

func TestRenderLinearHistoryMarksCurrentAtTop(t *testing.T) {
	buf := buffer.New()
	tree := undo.New(buf, 0)

	push(t, buf, tree, "insert-a", "a")
	push(t, buf, tree, "insert-b", "b")

	lines, cursorRow := undotree.Render(tree)
	require.NotEmpty(t, lines)
	require.Equal(t, 0, cursorRow)
	require.Contains(t, lines[0].Text, "@")
	require.Equal(t, tree.Current(), lines[0].Seq)

	for _, l := range lines[1:] {
		require.NotContains(t, l.Text, "@")
	}
}

func TestRenderBranchingHistoryEmitsConnectorRow(t *testing.T) {
	buf := buffer.New()
	tree := undo.New(buf, 0)

	push(t, buf, tree, "insert-a", "a")
	ok, err := tree.Undo()
	require.NoError(t, err)
	require.True(t, ok)

	push(t, buf, tree, "insert-b", "b") // diverges from root, creating a second branch

	lines, _ := undotree.Render(tree)

	var sawConnector bool
	for _, l := range lines {
		if l.Seq == -1 {
			sawConnector = true
		}
	}
	require.True(t, sawConnector, "a branch point should emit at least one connector row")
}

func TestRenderIncludesSnapshotMarkerOnRoot(t *testing.T) {
	buf := buffer.New()
	tree := undo.New(buf, 0)
	push(t, buf, tree, "insert-a", "a")

	lines, _ := undotree.Render(tree)
	var sawRoot bool
	for _, l := range lines {
		if l.Seq == tree.Root() {
			sawRoot = true
			require.Contains(t, l.Text, "*0*")
		}
	}
	require.True(t, sawRoot)
}
