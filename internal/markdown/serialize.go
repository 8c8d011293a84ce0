// Package markdown serializes content trees to markdown and HTML. Output
// parses back to the same tree, so serialized content can be compared for
// equality to detect echoes.
package markdown

import (
	"fmt"
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/dgallion1/lessonsync/internal/heading"
)

// Serializer converts trees to markdown. Classifier must match the one
// used to parse the output again; nil means language-neutral rules.
type Serializer struct {
	Classifier *heading.Classifier
}

var defaultSerializer = &Serializer{}

// Serialize renders t as markdown with the default classifier.
func Serialize(t *doctree.Tree) string {
	return defaultSerializer.Serialize(t)
}

// HTML renders t as an HTML fragment with the default classifier.
func HTML(t *doctree.Tree) string {
	return defaultSerializer.HTML(t)
}

func (s *Serializer) classifier() *heading.Classifier {
	if s.Classifier == nil {
		return heading.Parse("")
	}
	return s.Classifier
}

// Serialize renders t as markdown. Empty textblocks produce no output and
// an empty tree serializes to "".
func (s *Serializer) Serialize(t *doctree.Tree) string {
	if t == nil {
		return ""
	}
	return s.container(t, t.Root(), false)
}

// container joins the serialized children of id with blank lines.
// Adjacent lists of the same kind alternate their markers so they stay
// separate lists.
func (s *Serializer) container(t *doctree.Tree, id doctree.NodeID, inItem bool) string {
	var sb strings.Builder
	var prevKind doctree.Kind
	alt := false
	first := true
	for _, c := range t.Children(id) {
		n := t.At(c)
		var out string
		switch n.Kind {
		case doctree.KindBulletList, doctree.KindOrderedList:
			if !first && prevKind == n.Kind {
				alt = !alt
			} else {
				alt = false
			}
			out = s.list(t, c, alt)
		case doctree.KindHorizontalRule:
			out = "---"
			if first && inItem {
				out = "<hr>"
			}
		default:
			out = s.block(t, c)
		}
		if out == "" {
			continue
		}
		if !first {
			if inItem && tightAfter(prevKind, n) {
				sb.WriteString("\n")
			} else {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(out)
		prevKind = n.Kind
		first = false
	}
	return sb.String()
}

// tightAfter reports whether a list may follow a paragraph inside a list
// item without a blank line. Only lists that can interrupt a paragraph
// qualify.
func tightAfter(prev doctree.Kind, n *doctree.Node) bool {
	if prev != doctree.KindParagraph {
		return false
	}
	return n.Kind == doctree.KindBulletList || (n.Kind == doctree.KindOrderedList && n.Start == 1)
}

func (s *Serializer) block(t *doctree.Tree, id doctree.NodeID) string {
	n := t.At(id)
	switch n.Kind {
	case doctree.KindParagraph:
		runs := doctree.NormalizeRuns(t.Runs(id))
		if len(runs) == 0 {
			return ""
		}
		if p := s.paragraph(t, id); len(p.Attr) > 0 {
			return renderLine(p)
		}
		return inlineMarkdown(runs, modeParagraph)

	case doctree.KindHeading:
		runs := doctree.NormalizeRuns(t.Runs(id))
		if len(runs) == 0 {
			return ""
		}
		if n.Level < 1 || n.Level > 5 {
			return inlineMarkdown(runs, modeParagraph)
		}
		return strings.Repeat("#", n.Level) + " " + inlineMarkdown(runs, modeHeading)

	case doctree.KindBlockquote:
		body := s.container(t, id, false)
		if body == "" {
			return ""
		}
		return prefixLines(body, "> ", ">")

	case doctree.KindCodeBlock:
		return codeFence(n.Text, n.Language)

	case doctree.KindTable:
		return s.table(t, id)
	}
	return ""
}

func (s *Serializer) list(t *doctree.Tree, id doctree.NodeID, alt bool) string {
	n := t.At(id)
	num := n.Start
	var items []string
	for _, c := range t.Children(id) {
		body := s.container(t, c, true)
		if body == "" {
			continue
		}
		var marker string
		switch {
		case n.Kind == doctree.KindBulletList && alt:
			marker = "* "
		case n.Kind == doctree.KindBulletList:
			marker = "- "
		case alt:
			marker = fmt.Sprintf("%d) ", num)
		default:
			marker = fmt.Sprintf("%d. ", num)
		}
		num++
		items = append(items, marker+prefixLines(body, strings.Repeat(" ", len(marker)), "")[len(marker):])
	}
	return strings.Join(items, "\n")
}

// table writes a GFM pipe table when the first row is all header cells,
// the other rows are all data cells of the same width, and every cell
// holds at most one paragraph. Anything else is written as a one-line
// HTML table.
func (s *Serializer) table(t *doctree.Tree, id doctree.NodeID) string {
	rows := t.Children(id)
	if len(rows) == 0 {
		return ""
	}
	if !s.pipeTable(t, rows) {
		return renderLine(s.element(t, id))
	}

	var sb strings.Builder
	width := len(t.Children(rows[0]))
	for i, r := range rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte('|')
		for _, c := range t.Children(r) {
			sb.WriteByte(' ')
			if p := t.At(c).FirstChild; p != doctree.NoNode {
				sb.WriteString(inlineMarkdown(doctree.NormalizeRuns(t.Runs(p)), modeCell))
			}
			sb.WriteString(" |")
		}
		if i == 0 {
			sb.WriteString("\n|")
			for j := 0; j < width; j++ {
				sb.WriteString(" --- |")
			}
		}
	}
	return sb.String()
}

func (s *Serializer) pipeTable(t *doctree.Tree, rows []doctree.NodeID) bool {
	width := len(t.Children(rows[0]))
	if width == 0 {
		return false
	}
	for i, r := range rows {
		cells := t.Children(r)
		if len(cells) != width {
			return false
		}
		for _, c := range cells {
			want := doctree.KindTableCell
			if i == 0 {
				want = doctree.KindTableHeader
			}
			if t.At(c).Kind != want {
				return false
			}
			kids := t.Children(c)
			if len(kids) > 1 {
				return false
			}
			if len(kids) == 1 && t.At(kids[0]).Kind != doctree.KindParagraph {
				return false
			}
		}
	}
	return true
}

// codeFence picks a backtick fence longer than any backtick run in text.
func codeFence(text, lang string) string {
	longest, run := 0, 0
	for _, r := range text {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	fence := strings.Repeat("`", max(3, longest+1))
	if strings.ContainsAny(lang, "` \t\n") {
		lang = ""
	}
	if text == "" {
		return fence + lang + "\n" + fence
	}
	return fence + lang + "\n" + text + "\n" + fence
}

// prefixLines prefixes every line of s. Empty lines get blank instead.
func prefixLines(s, prefix, blank string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = blank
		} else {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
