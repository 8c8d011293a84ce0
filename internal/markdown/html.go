package markdown

import (
	"strconv"
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/dgallion1/lessonsync/internal/heading"
	"golang.org/x/net/html"
)

// guardStyle pins a paragraph below the heading size thresholds so that
// re-parsing it cannot promote it to a heading.
const guardStyle = "font-size:12pt"

// HTML renders the tree as an HTML fragment, one block per line.
func (s *Serializer) HTML(t *doctree.Tree) string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for _, id := range t.Blocks() {
		n := s.element(t, id)
		if n == nil {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		renderNode(&sb, n)
	}
	return sb.String()
}

func renderNode(sb *strings.Builder, n *html.Node) {
	// Rendering into a strings.Builder cannot fail.
	_ = html.Render(sb, n)
}

// renderLine renders n with newlines written as character references, so
// the result can sit on a single markdown line as an HTML block.
func renderLine(n *html.Node) string {
	var sb strings.Builder
	renderNode(&sb, n)
	return strings.ReplaceAll(sb.String(), "\n", "&#10;")
}

// element builds the HTML element for a block node.
func (s *Serializer) element(t *doctree.Tree, id doctree.NodeID) *html.Node {
	n := t.At(id)
	switch n.Kind {
	case doctree.KindParagraph:
		return s.paragraph(t, id)

	case doctree.KindHeading:
		lvl := n.Level
		if lvl < 1 || lvl > 5 {
			return s.paragraph(t, id)
		}
		h := elem("h" + strconv.Itoa(lvl))
		appendAll(h, inlineElements(doctree.NormalizeRuns(t.Runs(id))))
		return h

	case doctree.KindBulletList, doctree.KindOrderedList:
		l := elem("ul")
		if n.Kind == doctree.KindOrderedList {
			l = elem("ol")
			if n.Start != 1 {
				l.Attr = append(l.Attr, html.Attribute{Key: "start", Val: strconv.Itoa(n.Start)})
			}
		}
		for _, c := range t.Children(id) {
			li := elem("li")
			s.appendBlocks(li, t, c)
			l.AppendChild(li)
		}
		return l

	case doctree.KindBlockquote:
		q := elem("blockquote")
		s.appendBlocks(q, t, id)
		return q

	case doctree.KindCodeBlock:
		code := elem("code")
		if n.Language != "" {
			code.Attr = append(code.Attr, html.Attribute{Key: "class", Val: "language-" + n.Language})
		}
		code.AppendChild(&html.Node{Type: html.TextNode, Data: n.Text})
		pre := elem("pre")
		pre.AppendChild(code)
		return pre

	case doctree.KindHorizontalRule:
		return elem("hr")

	case doctree.KindTable:
		table := elem("table")
		body := elem("tbody")
		table.AppendChild(body)
		for _, r := range t.Children(id) {
			tr := elem("tr")
			for _, c := range t.Children(r) {
				tag := "td"
				if t.At(c).Kind == doctree.KindTableHeader {
					tag = "th"
				}
				cell := elem(tag)
				s.appendBlocks(cell, t, c)
				tr.AppendChild(cell)
			}
			body.AppendChild(tr)
		}
		return table
	}
	return nil
}

func (s *Serializer) appendBlocks(parent *html.Node, t *doctree.Tree, id doctree.NodeID) {
	for _, c := range t.Children(id) {
		if el := s.element(t, c); el != nil {
			parent.AppendChild(el)
		}
	}
}

// paragraph builds a <p>, adding the guard style when the classifier would
// otherwise read it as a heading.
func (s *Serializer) paragraph(t *doctree.Tree, id doctree.NodeID) *html.Node {
	p := elem("p")
	appendAll(p, inlineElements(doctree.NormalizeRuns(t.Runs(id))))
	if s.classifier().Classify(p) != heading.NotHeading {
		p.Attr = append(p.Attr, html.Attribute{Key: "style", Val: guardStyle})
	}
	return p
}

// inlineElements converts normalized runs into inline HTML. Consecutive
// runs sharing a link are wrapped in one <a>.
func inlineElements(runs []doctree.Node) []*html.Node {
	var out []*html.Node
	for i := 0; i < len(runs); i++ {
		r := runs[i]
		switch r.Kind {
		case doctree.KindHardBreak:
			out = append(out, elem("br"))
		case doctree.KindImage:
			img := elem("img")
			img.Attr = append(img.Attr,
				html.Attribute{Key: "src", Val: r.Src},
				html.Attribute{Key: "alt", Val: r.Alt},
			)
			if r.Title != "" {
				img.Attr = append(img.Attr, html.Attribute{Key: "title", Val: r.Title})
			}
			out = append(out, img)
		case doctree.KindText:
			if r.Href == "" {
				out = append(out, markedText(r))
				continue
			}
			a := elem("a")
			a.Attr = append(a.Attr, html.Attribute{Key: "href", Val: r.Href})
			for ; i < len(runs) && runs[i].Kind == doctree.KindText && runs[i].Href == r.Href; i++ {
				a.AppendChild(markedText(runs[i]))
			}
			i--
			out = append(out, a)
		}
	}
	return out
}

// markedText wraps a text run in its mark elements, underline outermost
// and code innermost.
func markedText(r doctree.Node) *html.Node {
	node := &html.Node{Type: html.TextNode, Data: r.Text}
	for _, m := range markOrder {
		if r.Marks.Has(m.mark) {
			wrap := elem(m.tag)
			wrap.AppendChild(node)
			node = wrap
		}
	}
	return node
}

// markOrder lists marks from innermost to outermost.
var markOrder = []struct {
	mark doctree.Mark
	tag  string
}{
	{doctree.MarkCode, "code"},
	{doctree.MarkItalic, "em"},
	{doctree.MarkBold, "strong"},
	{doctree.MarkStrike, "s"},
	{doctree.MarkUnderline, "u"},
}

func elem(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag}
}

func appendAll(parent *html.Node, children []*html.Node) {
	for _, c := range children {
		parent.AppendChild(c)
	}
}
