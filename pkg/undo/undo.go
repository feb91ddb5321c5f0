// Package undo implements the editor's persistent, branching undo tree:
// every edit transaction becomes a node in an arena keyed by sequence
// number, so no branch of history is ever discarded and any node can be
// revisited by sequence, not just by a linear stack. Grounded on spec.md
// §4.3 and the "cyclic references" note in §9 (nodes are never linked by
// pointer, only by seq, which an arena-backed map naturally gives us).
package undo

import (
	"fmt"
	"sort"

	"github.com/vtedit/core/pkg/apperr"
	"github.com/vtedit/core/pkg/buffer"
)

// DefaultSnapshotInterval is the node-depth gap (since the last snapshot
// ancestor) after which Push attaches a full-document snapshot, absent a
// branch divergence or explicit save that would trigger one sooner.
const DefaultSnapshotInterval = 32

// Node is one point in edit history.
type Node struct {
	Seq              int
	Parent           int // -1 for the root
	Children         []int
	Depth            int
	Transaction      buffer.Transaction
	Snapshot         *buffer.Snapshot // nil unless the policy attached one
	LastVisitedChild int               // -1 if none
}

// Tree is the undo tree for a single document's buffer.
type Tree struct {
	buf              *buffer.Buffer
	nodes            map[int]*Node
	nextSeq          int
	current          int
	saved            int
	root             int
	snapshotInterval int
}

// New creates a tree rooted at buf's current (expected to be empty)
// state, always snapshotting the root so replay from seq 0 is always
// possible.
func New(buf *buffer.Buffer, snapshotInterval int) *Tree {
	if snapshotInterval <= 0 {
		snapshotInterval = DefaultSnapshotInterval
	}
	root := &Node{Seq: 0, Parent: -1, Depth: 0, Snapshot: buf.Snapshot(), LastVisitedChild: -1}
	return &Tree{
		buf:              buf,
		nodes:            map[int]*Node{0: root},
		nextSeq:          1,
		current:          0,
		saved:            0,
		root:             0,
		snapshotInterval: snapshotInterval,
	}
}

// Current returns the seq the tree is positioned at.
func (t *Tree) Current() int { return t.current }

// Root returns the root seq (always 0).
func (t *Tree) Root() int { return t.root }

// IsDirty reports whether current has diverged from the last saved node.
func (t *Tree) IsDirty() bool { return t.current != t.saved }

// MarkSaved records that the on-disk file now matches the current node,
// and attaches a snapshot there (the policy's "on explicit save" trigger)
// so a future goto back to this point never needs a long replay.
func (t *Tree) MarkSaved() {
	t.saved = t.current
	node := t.nodes[t.current]
	if node.Snapshot == nil {
		node.Snapshot = t.buf.Snapshot()
	}
}

func (t *Tree) distanceToSnapshot(n *Node) int {
	dist := 0
	for n.Snapshot == nil && n.Parent != -1 {
		n = t.nodes[n.Parent]
		dist++
	}
	return dist
}

// Push records tx (already applied to buf by the caller) as a new child
// of current and moves current to it.
func (t *Tree) Push(tx buffer.Transaction) *Node {
	parent := t.nodes[t.current]
	seq := t.nextSeq
	t.nextSeq++
	node := &Node{
		Seq:              seq,
		Parent:           t.current,
		Depth:            parent.Depth + 1,
		Transaction:      tx,
		LastVisitedChild: -1,
	}
	branching := len(parent.Children) > 0
	parent.Children = append(parent.Children, seq)
	parent.LastVisitedChild = seq
	if branching || t.distanceToSnapshot(parent)+1 >= t.snapshotInterval {
		node.Snapshot = t.buf.Snapshot()
	}
	t.nodes[seq] = node
	t.current = seq
	return node
}

// Undo moves to the parent of current, inverse-applying its transaction.
// At the root this is a no-op, per spec.md §4.3.
func (t *Tree) Undo() (bool, error) {
	node := t.nodes[t.current]
	if node.Parent == -1 {
		return false, nil
	}
	if err := t.buf.Apply(node.Transaction.Inverse()); err != nil {
		return false, err
	}
	t.current = node.Parent
	return true, nil
}

// Redo moves to last_visited_child of current, or the highest-seq child
// if none was recorded yet. At a leaf this is a no-op.
func (t *Tree) Redo() (bool, error) {
	node := t.nodes[t.current]
	target := node.LastVisitedChild
	if target == -1 {
		if len(node.Children) == 0 {
			return false, nil
		}
		target = node.Children[0]
		for _, c := range node.Children[1:] {
			if c > target {
				target = c
			}
		}
	}
	child := t.nodes[target]
	if err := t.buf.Apply(child.Transaction); err != nil {
		return false, err
	}
	node.LastVisitedChild = target
	t.current = target
	return true, nil
}

// ReplayStep is one leg of a path computed between two nodes.
type ReplayStep struct {
	Seq         int
	Forward     bool
	Transaction buffer.Transaction
}

// lca returns the lowest common ancestor of a and b, plus the ascending
// path from a up to (excluding) the LCA and from b up to (excluding) the
// LCA, using a depth-equalizing two-pointer walk so no node is visited
// more than O(depth) times.
func (t *Tree) lca(a, b int) (ancestor int, upA, upB []int) {
	na, nb := t.nodes[a], t.nodes[b]
	for na.Depth > nb.Depth {
		upA = append(upA, na.Seq)
		na = t.nodes[na.Parent]
	}
	for nb.Depth > na.Depth {
		upB = append(upB, nb.Seq)
		nb = t.nodes[nb.Parent]
	}
	for na.Seq != nb.Seq {
		upA = append(upA, na.Seq)
		upB = append(upB, nb.Seq)
		na = t.nodes[na.Parent]
		nb = t.nodes[nb.Parent]
	}
	return na.Seq, upA, upB
}

// ComputeReplayPath produces the ordered steps to reach to from from,
// without applying them or moving current.
func (t *Tree) ComputeReplayPath(from, to int) ([]ReplayStep, error) {
	if _, ok := t.nodes[from]; !ok {
		return nil, apperr.New(apperr.Execution, "UNDO_ERROR", fmt.Sprintf("unknown seq %d", from))
	}
	if _, ok := t.nodes[to]; !ok {
		return nil, apperr.New(apperr.Execution, "UNDO_ERROR", fmt.Sprintf("unknown seq %d", to))
	}
	_, upFrom, upTo := t.lca(from, to)
	steps := make([]ReplayStep, 0, len(upFrom)+len(upTo))
	for _, s := range upFrom {
		n := t.nodes[s]
		steps = append(steps, ReplayStep{Seq: s, Forward: false, Transaction: n.Transaction.Inverse()})
	}
	for i := len(upTo) - 1; i >= 0; i-- {
		s := upTo[i]
		n := t.nodes[s]
		steps = append(steps, ReplayStep{Seq: s, Forward: true, Transaction: n.Transaction})
	}
	return steps, nil
}

// Goto moves current to target, inverse-applying the current→LCA leg and
// forward-applying the LCA→target leg, and records last_visited_child
// for every node traversed on the forward leg.
func (t *Tree) Goto(target int) error {
	if _, ok := t.nodes[target]; !ok {
		return apperr.New(apperr.Execution, "UNDO_ERROR", fmt.Sprintf("unknown seq %d", target))
	}
	if target == t.current {
		return nil
	}
	steps, err := t.ComputeReplayPath(t.current, target)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if err := t.buf.Apply(step.Transaction); err != nil {
			return err
		}
		if step.Forward {
			t.nodes[t.nodes[step.Seq].Parent].LastVisitedChild = step.Seq
		}
	}
	t.current = target
	return nil
}

// PreviewAt returns a read-only snapshot as of seq without disturbing
// current, replaying forward from the nearest snapshot ancestor.
func (t *Tree) PreviewAt(seq int) (*buffer.Snapshot, error) {
	node, ok := t.nodes[seq]
	if !ok {
		return nil, apperr.New(apperr.Execution, "UNDO_ERROR", fmt.Sprintf("unknown seq %d", seq))
	}
	ancestor := node
	var forward []int
	for ancestor.Snapshot == nil {
		forward = append(forward, ancestor.Seq)
		ancestor = t.nodes[ancestor.Parent]
	}
	scratch := buffer.FromSnapshot(ancestor.Snapshot)
	for i := len(forward) - 1; i >= 0; i-- {
		if err := scratch.Apply(t.nodes[forward[i]].Transaction); err != nil {
			return nil, err
		}
	}
	return scratch.Snapshot(), nil
}

// Node looks up a node by seq, for navigator views.
func (t *Tree) Node(seq int) (*Node, bool) {
	n, ok := t.nodes[seq]
	return n, ok
}

// Seqs returns every seq currently in the tree, in ascending order, for
// a navigator view that needs to walk the whole arena.
func (t *Tree) Seqs() []int {
	seqs := make([]int, 0, len(t.nodes))
	for seq := range t.nodes {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	return seqs
}
