package markdown

import (
	"testing"

	"github.com/dgallion1/lessonsync/internal/doctree"
)

func TestHTML(t *testing.T) {
	tree := mustParse(t, "# Title\n\nSome **bold** [link](https://e.x).\n\n1. one\n\n```sh\nls\n```")
	want := `<h1>Title</h1>` + "\n" +
		`<p>Some <strong>bold</strong> <a href="https://e.x">link</a>.</p>` + "\n" +
		`<ol><li><p>one</p></li></ol>` + "\n" +
		`<pre><code class="language-sh">ls</code></pre>`
	if got := HTML(tree); got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
}

func TestHTML_GuardsBoldCapsParagraph(t *testing.T) {
	tree := doctree.New()
	p := tree.Append(tree.Root(), doctree.Node{Kind: doctree.KindParagraph})
	tree.Append(p, doctree.Node{Kind: doctree.KindText, Text: "UNIT TWO", Marks: doctree.MarkBold})

	want := `<p style="font-size:12pt"><strong>UNIT TWO</strong></p>`
	if got := HTML(tree); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	back := mustParse(t, want)
	if k := back.At(back.Block(0)).Kind; k != doctree.KindParagraph {
		t.Errorf("expected guarded paragraph to stay a paragraph, got %v", k)
	}
}
