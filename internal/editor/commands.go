package editor

import (
	"fmt"
	"sort"

	"github.com/dgallion1/lessonsync/internal/doctree"
)

// command mutates a scratch copy of the document. Returning an error
// discards the copy.
type command func(t *doctree.Tree, a Args) error

var commands = map[string]command{
	"setParagraph":  setParagraph,
	"toggleHeading": toggleHeading,

	"toggleBold":      toggleMark(doctree.MarkBold),
	"toggleItalic":    toggleMark(doctree.MarkItalic),
	"toggleUnderline": toggleMark(doctree.MarkUnderline),
	"toggleStrike":    toggleMark(doctree.MarkStrike),
	"toggleCode":      toggleMark(doctree.MarkCode),

	"insertParagraph": insertParagraph,
	"insertText":      insertText,
	"setLink":         setLink,
	"unsetLink":       unsetLink,
	"setImage":        setImage,

	"toggleBulletList":  toggleList(doctree.KindBulletList),
	"toggleOrderedList": toggleList(doctree.KindOrderedList),

	"insertTable":     insertTable,
	"addRowBefore":    addRow(0),
	"addRowAfter":     addRow(1),
	"addColumnBefore": addColumn(0),
	"addColumnAfter":  addColumn(1),
	"deleteRow":       deleteRow,
	"deleteColumn":    deleteColumn,
	"deleteTable":     deleteTable,

	"deleteBlock":  deleteBlock,
	"clearContent": clearContent,
}

// Commands lists the command names Apply accepts, sorted.
func Commands() []string {
	names := make([]string, 0, len(commands)+2)
	for name := range commands {
		names = append(names, name)
	}
	names = append(names, "undo", "redo")
	sort.Strings(names)
	return names
}

func setParagraph(t *doctree.Tree, a Args) error {
	id, err := textblock(t, a)
	if err != nil {
		return err
	}
	n := t.At(id)
	n.Kind, n.Level = doctree.KindParagraph, 0
	return nil
}

// toggleHeading makes the target a heading of a.Level, or a paragraph
// when it already is one.
func toggleHeading(t *doctree.Tree, a Args) error {
	if a.Level < 1 || a.Level > 5 {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, a.Level)
	}
	id, err := textblock(t, a)
	if err != nil {
		return err
	}
	n := t.At(id)
	if n.Kind == doctree.KindHeading && n.Level == a.Level {
		n.Kind, n.Level = doctree.KindParagraph, 0
		return nil
	}
	n.Kind, n.Level = doctree.KindHeading, a.Level
	return nil
}

func insertParagraph(t *doctree.Tree, a Args) error {
	p := t.Insert(t.Root(), insertIndex(t, a.Block), doctree.Node{Kind: doctree.KindParagraph})
	if a.Text != "" {
		t.SetRuns(p, []doctree.Node{{Kind: doctree.KindText, Text: a.Text}})
	}
	return nil
}

// toggleList wraps the target in a list of kind, unwraps it when it is
// already such a list, or switches a list of the other kind.
func toggleList(kind doctree.Kind) command {
	return func(t *doctree.Tree, a Args) error {
		id, err := target(t, a)
		if err != nil {
			return err
		}
		n := t.At(id)
		switch {
		case n.Kind == kind:
			unwrapList(t, id)
		case n.Kind == doctree.KindBulletList || n.Kind == doctree.KindOrderedList:
			n.Kind = kind
			n.Start = 0
			if kind == doctree.KindOrderedList {
				n.Start = 1
			}
		case n.Kind.IsTextblock():
			parent, at := n.Parent, indexOf(t, id)
			list := doctree.Node{Kind: kind}
			if kind == doctree.KindOrderedList {
				list.Start = 1
			}
			l := t.Insert(parent, at, list)
			item := t.Append(l, doctree.Node{Kind: doctree.KindListItem})
			t.CopySubtree(t, id, item, -1)
			t.Detach(id)
		default:
			return fmt.Errorf("%w: cannot make a list of %s", ErrInvalidArgs, n.Kind)
		}
		return nil
	}
}

// unwrapList replaces a list with the blocks of its items.
func unwrapList(t *doctree.Tree, list doctree.NodeID) {
	parent, at := t.At(list).Parent, indexOf(t, list)
	for _, item := range t.Children(list) {
		for _, b := range t.Children(item) {
			t.CopySubtree(t, b, parent, at)
			at++
		}
	}
	t.Detach(list)
}

func deleteBlock(t *doctree.Tree, a Args) error {
	id, err := target(t, a)
	if err != nil {
		return err
	}
	t.Detach(id)
	return nil
}

func clearContent(t *doctree.Tree, _ Args) error {
	t.Clear()
	return nil
}
