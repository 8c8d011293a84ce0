package doctree

import "strings"

// NodeID addresses a node inside a Tree. IDs are only meaningful for the
// tree that issued them.
type NodeID int32

// NoNode marks an absent link (no parent, no sibling, no child).
const NoNode NodeID = -1

// Kind is the node type.
type Kind uint8

const (
	KindDoc Kind = iota
	KindParagraph
	KindHeading
	KindBulletList
	KindOrderedList
	KindListItem
	KindBlockquote
	KindCodeBlock
	KindHorizontalRule
	KindTable
	KindTableRow
	KindTableHeader
	KindTableCell
	KindText
	KindImage
	KindHardBreak
)

var kindNames = [...]string{
	KindDoc:            "doc",
	KindParagraph:      "paragraph",
	KindHeading:        "heading",
	KindBulletList:     "bulletList",
	KindOrderedList:    "orderedList",
	KindListItem:       "listItem",
	KindBlockquote:     "blockquote",
	KindCodeBlock:      "codeBlock",
	KindHorizontalRule: "horizontalRule",
	KindTable:          "table",
	KindTableRow:       "tableRow",
	KindTableHeader:    "tableHeader",
	KindTableCell:      "tableCell",
	KindText:           "text",
	KindImage:          "image",
	KindHardBreak:      "hardBreak",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsInline reports whether nodes of this kind live inside a textblock.
func (k Kind) IsInline() bool {
	return k == KindText || k == KindImage || k == KindHardBreak
}

// IsTextblock reports whether nodes of this kind hold inline content.
func (k Kind) IsTextblock() bool {
	return k == KindParagraph || k == KindHeading
}

// Mark is a bitset of inline formatting applied to a text run.
type Mark uint8

const (
	MarkBold Mark = 1 << iota
	MarkItalic
	MarkUnderline
	MarkStrike
	MarkCode
)

// Has reports whether all bits of x are set.
func (m Mark) Has(x Mark) bool { return m&x == x }

// Node is a single arena slot. Link fields are maintained by Tree; callers
// set the content fields only.
type Node struct {
	Kind Kind

	Level    int    // heading level 1-5
	Text     string // text run content or code block body
	Marks    Mark   // text runs
	Href     string // link target on text runs
	Src      string // image
	Alt      string // image
	Title    string // image
	Start    int    // ordered list start number
	Language string // code block info string

	Parent      NodeID
	FirstChild  NodeID
	LastChild   NodeID
	PrevSibling NodeID
	NextSibling NodeID
}

// Tree is an arena of nodes rooted at a doc node with ID 0. Detached nodes
// stay in the arena until the tree is cloned.
type Tree struct {
	Title string

	nodes []Node
}

// New returns a tree holding only the doc root.
func New() *Tree {
	t := &Tree{nodes: make([]Node, 0, 32)}
	t.nodes = append(t.nodes, Node{
		Kind:        KindDoc,
		Parent:      NoNode,
		FirstChild:  NoNode,
		LastChild:   NoNode,
		PrevSibling: NoNode,
		NextSibling: NoNode,
	})
	return t
}

// Root returns the doc node ID.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the arena size, detached nodes included.
func (t *Tree) Len() int { return len(t.nodes) }

// At returns the node for id, or nil if id is out of range.
func (t *Tree) At(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Append adds n as the last child of parent and returns its ID.
func (t *Tree) Append(parent NodeID, n Node) NodeID {
	return t.Insert(parent, -1, n)
}

// Insert adds n as the child of parent at index. A negative or
// out-of-range index appends.
func (t *Tree) Insert(parent NodeID, index int, n Node) NodeID {
	n.Parent = parent
	n.FirstChild, n.LastChild = NoNode, NoNode
	n.PrevSibling, n.NextSibling = NoNode, NoNode
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)

	p := &t.nodes[parent]
	before := NoNode
	if index >= 0 {
		before = p.FirstChild
		for i := 0; i < index && before != NoNode; i++ {
			before = t.nodes[before].NextSibling
		}
	}

	node := &t.nodes[id]
	if before == NoNode {
		node.PrevSibling = p.LastChild
		if p.LastChild != NoNode {
			t.nodes[p.LastChild].NextSibling = id
		} else {
			p.FirstChild = id
		}
		p.LastChild = id
		return id
	}

	prev := t.nodes[before].PrevSibling
	node.PrevSibling = prev
	node.NextSibling = before
	t.nodes[before].PrevSibling = id
	if prev != NoNode {
		t.nodes[prev].NextSibling = id
	} else {
		p.FirstChild = id
	}
	return id
}

// Detach unlinks id from its parent. The subtree stays addressable.
func (t *Tree) Detach(id NodeID) {
	n := t.At(id)
	if n == nil || n.Parent == NoNode {
		return
	}
	p := &t.nodes[n.Parent]
	if n.PrevSibling != NoNode {
		t.nodes[n.PrevSibling].NextSibling = n.NextSibling
	} else {
		p.FirstChild = n.NextSibling
	}
	if n.NextSibling != NoNode {
		t.nodes[n.NextSibling].PrevSibling = n.PrevSibling
	} else {
		p.LastChild = n.PrevSibling
	}
	n.Parent, n.PrevSibling, n.NextSibling = NoNode, NoNode, NoNode
}

// Children returns the child IDs of id in order.
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.At(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for c := n.FirstChild; c != NoNode; c = t.nodes[c].NextSibling {
		out = append(out, c)
	}
	return out
}

// Blocks returns the top-level block IDs.
func (t *Tree) Blocks() []NodeID {
	return t.Children(t.Root())
}

// Block returns the top-level block at index i, or NoNode.
func (t *Tree) Block(i int) NodeID {
	if i < 0 {
		return NoNode
	}
	c := t.nodes[0].FirstChild
	for ; i > 0 && c != NoNode; i-- {
		c = t.nodes[c].NextSibling
	}
	return c
}

// Empty reports whether the doc has no blocks.
func (t *Tree) Empty() bool {
	return t.nodes[0].FirstChild == NoNode
}

// Clear detaches every block.
func (t *Tree) Clear() {
	for _, id := range t.Blocks() {
		t.Detach(id)
	}
}

// Walk visits id and its descendants depth-first. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, n *Node) bool) {
	n := t.At(id)
	if n == nil {
		return
	}
	if !fn(id, n) {
		return
	}
	for c := n.FirstChild; c != NoNode; c = t.nodes[c].NextSibling {
		t.Walk(c, fn)
	}
}

// TextContent concatenates the text runs under id. Hard breaks become
// newlines.
func (t *Tree) TextContent(id NodeID) string {
	var sb strings.Builder
	t.Walk(id, func(_ NodeID, n *Node) bool {
		switch n.Kind {
		case KindText, KindCodeBlock:
			sb.WriteString(n.Text)
		case KindHardBreak:
			sb.WriteByte('\n')
		}
		return true
	})
	return sb.String()
}

// Clone returns a compacted deep copy holding only reachable nodes.
func (t *Tree) Clone() *Tree {
	out := New()
	out.Title = t.Title
	var copyChildren func(src, dst NodeID)
	copyChildren = func(src, dst NodeID) {
		for c := t.nodes[src].FirstChild; c != NoNode; c = t.nodes[c].NextSibling {
			id := out.Append(dst, t.nodes[c])
			copyChildren(c, id)
		}
	}
	copyChildren(t.Root(), out.Root())
	return out
}

// CopySubtree copies the subtree rooted at src in from under parent in t at
// index and returns the new root ID.
func (t *Tree) CopySubtree(from *Tree, src, parent NodeID, index int) NodeID {
	id := t.Insert(parent, index, from.nodes[src])
	for c := from.nodes[src].FirstChild; c != NoNode; c = from.nodes[c].NextSibling {
		t.CopySubtree(from, c, id, -1)
	}
	return id
}
