// Package undotree renders an undo.Tree as a vertical git-graph-style
// view: one line per node, descending by seq, with '│'/'/'/'\' connector
// columns showing where branches diverge and converge. Read-only —
// rendering never calls Tree.Goto or otherwise disturbs Current().
// Grounded on original_source/src/undotree_view/mod.rs's render_tree,
// ported column-for-column from its Vec<Option<EditSeq>> bookkeeping.
package undotree

import (
	"fmt"
	"strings"

	"github.com/vtedit/core/pkg/undo"
)

const none = -1

// Line is one rendered row: its text and the seq it represents, or -1
// for a pure connector row with no associated node (a branch merge).
type Line struct {
	Text string
	Seq  int
}

// Render walks every seq in tree descending and produces the lines a
// floating undo-tree window paints, plus the row the cursor (current)
// landed on.
func Render(tree *undo.Tree) (lines []Line, cursorRow int) {
	seqs := tree.Seqs()
	// Seqs() returns ascending; render_tree walks descending so newer
	// history appears at the top of the view.
	for i, j := 0, len(seqs)-1; i < j; i, j = i+1, j-1 {
		seqs[i], seqs[j] = seqs[j], seqs[i]
	}

	var columns []int // none (-1) is a free slot; otherwise the seq it's waiting to continue with

	for _, seq := range seqs {
		node, ok := tree.Node(seq)
		if !ok {
			continue
		}

		isCurrent := seq == tree.Current()
		if isCurrent {
			cursorRow = len(lines)
		}

		var colIndices []int
		for i, waitingFor := range columns {
			if waitingFor == seq {
				colIndices = append(colIndices, i)
			}
		}

		isTip := len(colIndices) == 0
		if isTip {
			slot := -1
			for i, c := range columns {
				if c == none {
					slot = i
					break
				}
			}
			if slot == -1 {
				columns = append(columns, none)
				slot = len(columns) - 1
			}
			colIndices = []int{slot}
		}

		mainCol := colIndices[0]
		maxCol := len(columns)

		if len(colIndices) > 1 {
			lines = append(lines, Line{Text: connectorRow(columns, colIndices, mainCol, maxCol), Seq: none})
		}

		lines = append(lines, Line{Text: nodeRow(columns, colIndices, mainCol, maxCol, isCurrent, node), Seq: seq})

		columns[mainCol] = node.Parent
		for _, idx := range colIndices {
			if idx != mainCol {
				columns[idx] = none
			}
		}
	}

	return lines, cursorRow
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func connectorRow(columns, colIndices []int, mainCol, maxCol int) string {
	var b strings.Builder
	for c := 0; c < maxCol; c++ {
		switch {
		case c == mainCol:
			b.WriteRune('│')
		case contains(colIndices, c):
			if c > mainCol {
				b.WriteRune('/')
			} else {
				b.WriteRune('\\')
			}
		case columns[c] != none:
			b.WriteRune('│')
		default:
			b.WriteRune(' ')
		}
		b.WriteRune(' ')
	}
	return b.String()
}

func nodeRow(columns, colIndices []int, mainCol, maxCol int, isCurrent bool, node *undo.Node) string {
	var b strings.Builder
	for c := 0; c < maxCol; c++ {
		switch {
		case c == mainCol:
			if isCurrent {
				b.WriteRune('@')
			} else {
				b.WriteRune('o')
			}
		case contains(colIndices, c):
			b.WriteRune(' ')
		case columns[c] != none:
			b.WriteRune('│')
		default:
			b.WriteRune(' ')
		}
		b.WriteRune(' ')
	}

	marker := ""
	if node.Snapshot != nil {
		marker = "*"
	}
	fmt.Fprintf(&b, " [%s%d%s] %s", marker, node.Seq, marker, node.Transaction.Label)
	return b.String()
}
