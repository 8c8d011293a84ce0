package editor

import (
	"fmt"

	"github.com/dgallion1/lessonsync/internal/doctree"
)

// Args carries the parameters of a command. Fields a command does not use
// are ignored.
type Args struct {
	// Block is the top-level block index. For insertParagraph, insertTable
	// and setImage a negative or past-the-end value appends.
	Block int `json:"block"`
	// Path descends from Block through child indices, e.g. [0, 0] for the
	// first paragraph of the first list item.
	Path []int `json:"path,omitempty"`

	// Start and End select a range of inline positions in a textblock.
	// Each character, image and hard break is one position. End <= 0
	// selects to the end of the block.
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`
	// Offset is the insert position for insertText and setImage; nil
	// means the end of the block.
	Offset *int `json:"offset,omitempty"`

	Level int    `json:"level,omitempty"`
	Text  string `json:"text,omitempty"`
	Href  string `json:"href,omitempty"`

	Src   string `json:"src,omitempty"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`

	Rows          int  `json:"rows,omitempty"`
	Cols          int  `json:"cols,omitempty"`
	WithHeaderRow bool `json:"withHeaderRow,omitempty"`
	Row           int  `json:"row,omitempty"`
	Col           int  `json:"col,omitempty"`
}

// target resolves Block and Path to a node.
func target(t *doctree.Tree, a Args) (doctree.NodeID, error) {
	id := t.Block(a.Block)
	if id == doctree.NoNode {
		return doctree.NoNode, fmt.Errorf("%w: %d", ErrBlockOutOfRange, a.Block)
	}
	for depth, i := range a.Path {
		kids := t.Children(id)
		if i < 0 || i >= len(kids) {
			return doctree.NoNode, fmt.Errorf("%w: path[%d]=%d", ErrBlockOutOfRange, depth, i)
		}
		id = kids[i]
	}
	return id, nil
}

// textblock resolves the target and requires a paragraph or heading.
func textblock(t *doctree.Tree, a Args) (doctree.NodeID, error) {
	id, err := target(t, a)
	if err != nil {
		return doctree.NoNode, err
	}
	if k := t.At(id).Kind; !k.IsTextblock() {
		return doctree.NoNode, fmt.Errorf("%w: %s is not a textblock", ErrInvalidArgs, k)
	}
	return id, nil
}

// indexOf returns the position of id among its siblings.
func indexOf(t *doctree.Tree, id doctree.NodeID) int {
	i := 0
	for s := t.At(id).PrevSibling; s != doctree.NoNode; s = t.At(s).PrevSibling {
		i++
	}
	return i
}

// insertIndex clamps a block insert position; -1 appends.
func insertIndex(t *doctree.Tree, i int) int {
	if i < 0 || i >= len(t.Blocks()) {
		return -1
	}
	return i
}
