package doctree

import (
	"reflect"
	"testing"
)

func paragraph(t *Tree, text string) NodeID {
	p := t.Append(t.Root(), Node{Kind: KindParagraph})
	t.Append(p, Node{Kind: KindText, Text: text})
	return p
}

func heading(t *Tree, level int, text string) NodeID {
	h := t.Append(t.Root(), Node{Kind: KindHeading, Level: level})
	t.Append(h, Node{Kind: KindText, Text: text})
	return h
}

func blockTexts(t *Tree) []string {
	var out []string
	for _, id := range t.Blocks() {
		out = append(out, t.TextContent(id))
	}
	return out
}

func TestInsertOrdering(t *testing.T) {
	tree := New()
	paragraph(tree, "b")
	p := tree.Insert(tree.Root(), 0, Node{Kind: KindParagraph})
	tree.Append(p, Node{Kind: KindText, Text: "a"})
	q := tree.Insert(tree.Root(), 5, Node{Kind: KindParagraph})
	tree.Append(q, Node{Kind: KindText, Text: "c"})
	r := tree.Insert(tree.Root(), 1, Node{Kind: KindParagraph})
	tree.Append(r, Node{Kind: KindText, Text: "ab"})

	want := []string{"a", "ab", "b", "c"}
	if got := blockTexts(tree); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if tree.Block(3) != q {
		t.Errorf("expected block 3 to be %d, got %d", q, tree.Block(3))
	}
	if tree.Block(4) != NoNode {
		t.Errorf("expected NoNode past the end, got %d", tree.Block(4))
	}
}

func TestDetachAndClone(t *testing.T) {
	tree := New()
	a := paragraph(tree, "a")
	b := paragraph(tree, "b")
	c := paragraph(tree, "c")

	tree.Detach(b)
	if got := blockTexts(tree); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("expected [a c], got %v", got)
	}
	if tree.At(a).NextSibling != c || tree.At(c).PrevSibling != a {
		t.Errorf("sibling links not repaired")
	}

	tree.Detach(a)
	tree.Detach(c)
	if !tree.Empty() {
		t.Fatalf("expected empty tree after detaching all blocks")
	}

	paragraph(tree, "d")
	clone := tree.Clone()
	if clone.Len() != 3 {
		t.Errorf("expected compacted clone of 3 nodes, got %d", clone.Len())
	}
	if got := blockTexts(clone); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("expected [d], got %v", got)
	}
}

func TestTextContentHardBreak(t *testing.T) {
	tree := New()
	p := tree.Append(tree.Root(), Node{Kind: KindParagraph})
	tree.Append(p, Node{Kind: KindText, Text: "one", Marks: MarkBold})
	tree.Append(p, Node{Kind: KindHardBreak})
	tree.Append(p, Node{Kind: KindText, Text: "two"})

	if got := tree.TextContent(p); got != "one\ntwo" {
		t.Errorf("expected %q, got %q", "one\ntwo", got)
	}
}

func TestCopySubtree(t *testing.T) {
	src := New()
	list := src.Append(src.Root(), Node{Kind: KindBulletList})
	item := src.Append(list, Node{Kind: KindListItem})
	p := src.Append(item, Node{Kind: KindParagraph})
	src.Append(p, Node{Kind: KindText, Text: "item"})

	dst := New()
	paragraph(dst, "first")
	id := dst.CopySubtree(src, list, dst.Root(), 0)

	if dst.Block(0) != id {
		t.Fatalf("expected copied list at index 0")
	}
	if got := dst.TextContent(id); got != "item" {
		t.Errorf("expected %q, got %q", "item", got)
	}
}

func TestBuildOutline(t *testing.T) {
	tree := New()
	tree.Title = "Lesson"
	paragraph(tree, "Intro")
	heading(tree, 1, "Grammar")
	paragraph(tree, "Grammar text")
	heading(tree, 3, "Passive voice")
	paragraph(tree, "Passive text")
	heading(tree, 2, "Exercises")
	heading(tree, 1, "Vocabulary")

	o := BuildOutline(tree)
	if o.Title != "Lesson" {
		t.Errorf("expected title %q, got %q", "Lesson", o.Title)
	}
	if o.Text != "Intro" {
		t.Errorf("expected leading text %q, got %q", "Intro", o.Text)
	}
	if len(o.Sections) != 2 {
		t.Fatalf("expected 2 top-level sections, got %d", len(o.Sections))
	}

	grammar := o.Sections[0]
	if grammar.Title != "Grammar" || grammar.Block != 1 {
		t.Errorf("unexpected first section %+v", grammar)
	}
	if len(grammar.Children) != 2 {
		t.Fatalf("expected 2 children under Grammar, got %d", len(grammar.Children))
	}
	if grammar.Children[0].Title != "Passive voice" || grammar.Children[0].Text != "Passive text" {
		t.Errorf("unexpected child %+v", grammar.Children[0])
	}
	if grammar.Children[1].Title != "Exercises" {
		t.Errorf("expected Exercises, got %q", grammar.Children[1].Title)
	}

	if got := o.Breadcrumb(4); !reflect.DeepEqual(got, []string{"Grammar", "Passive voice"}) {
		t.Errorf("expected breadcrumb [Grammar Passive voice], got %v", got)
	}
	if got := o.Breadcrumb(2); !reflect.DeepEqual(got, []string{"Grammar"}) {
		t.Errorf("expected breadcrumb [Grammar], got %v", got)
	}
	if got := o.Breadcrumb(0); got != nil {
		t.Errorf("expected no breadcrumb before first heading, got %v", got)
	}
}

func TestBuildOutlineNoHeadings(t *testing.T) {
	tree := New()
	paragraph(tree, "Just text.")

	o := BuildOutline(tree)
	if len(o.Sections) != 0 {
		t.Errorf("expected no sections, got %d", len(o.Sections))
	}
	if o.Text != "Just text." {
		t.Errorf("expected text %q, got %q", "Just text.", o.Text)
	}
}

func TestNormalizeRuns(t *testing.T) {
	runs := []Node{
		{Kind: KindHardBreak},
		{Kind: KindText, Text: "  Hello\n"},
		{Kind: KindText, Text: "  world "},
		{Kind: KindText, Text: "bold", Marks: MarkBold},
		{Kind: KindText, Text: " ", Marks: MarkBold},
		{Kind: KindHardBreak},
		{Kind: KindText, Text: " end"},
		{Kind: KindHardBreak},
	}
	got := NormalizeRuns(runs)
	if len(got) != 4 {
		t.Fatalf("expected 4 runs, got %d: %+v", len(got), got)
	}
	if got[0].Text != "Hello world " || got[0].Marks != 0 {
		t.Errorf("expected merged plain run, got %q", got[0].Text)
	}
	if got[1].Text != "bold" || got[1].Marks != MarkBold {
		t.Errorf("expected trimmed bold run, got %q", got[1].Text)
	}
	if got[2].Kind != KindHardBreak {
		t.Errorf("expected inner hard break kept, got %v", got[2].Kind)
	}
	if got[3].Text != "end" {
		t.Errorf("expected %q after the break, got %q", "end", got[3].Text)
	}
}

func TestSetRuns(t *testing.T) {
	tree := New()
	p := tree.Append(tree.Root(), Node{Kind: KindParagraph})
	tree.Append(p, Node{Kind: KindText, Text: "old"})
	tree.SetRuns(p, []Node{{Kind: KindText, Text: "a "}, {Kind: KindText, Text: " b"}})

	kids := tree.Children(p)
	if len(kids) != 1 || tree.At(kids[0]).Text != "a b" {
		t.Errorf("expected single run %q, got %d runs", "a b", len(kids))
	}
}
