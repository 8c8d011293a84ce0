package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/dgallion1/lessonsync/internal/heading"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files and pasted HTML fragments. Paragraphs are
// run through the heading classifier, so styled <p> elements can become
// headings.
type HTMLParser struct {
	Classifier *heading.Classifier
}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	tree := p.Build(doc)
	if tree.Title == "" {
		tree.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	return tree, nil
}

// Build converts a parsed HTML document into a tree.
func (p *HTMLParser) Build(doc *html.Node) *doctree.Tree {
	cls := p.Classifier
	if cls == nil {
		cls = heading.Parse("")
	}
	b := &builder{tree: doctree.New(), cls: cls}
	b.tree.Title = findTitle(doc)

	if body := findBody(doc); body != nil {
		b.blocks(b.tree.Root(), body)
	} else {
		b.blocks(b.tree.Root(), doc)
	}
	return b.tree
}

// Elements that start a block. Anything else is inline content unless it
// wraps block descendants, as Google Docs does with its outer <b>.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"body": true, "center": true, "dd": true, "details": true, "div": true,
	"dl": true, "dt": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "hr": true, "html": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "summary": true, "table": true, "tbody": true,
	"td": true, "tfoot": true, "th": true, "thead": true, "tr": true, "ul": true,
}

var skipTags = map[string]bool{
	"head": true, "iframe": true, "link": true, "meta": true, "noscript": true,
	"object": true, "script": true, "style": true, "svg": true,
	"template": true, "title": true,
}

type builder struct {
	tree *doctree.Tree
	cls  *heading.Classifier
}

// blocks emits the block content of n under parent. Runs of inline
// siblings are wrapped in a paragraph.
func (b *builder) blocks(parent doctree.NodeID, n *html.Node) {
	var pending []*html.Node
	flush := func() {
		if len(pending) == 0 {
			return
		}
		var runs []doctree.Node
		for _, in := range pending {
			b.inline(&runs, in, 0, "")
		}
		b.textblock(parent, doctree.Node{Kind: doctree.KindParagraph}, runs)
		pending = pending[:0]
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			pending = append(pending, c)
			continue
		case html.ElementNode:
		default:
			continue
		}
		if skipTags[c.Data] {
			continue
		}
		if !blockTags[c.Data] && !containsBlock(c) {
			pending = append(pending, c)
			continue
		}
		flush()
		b.block(parent, c)
	}
	flush()
}

func (b *builder) block(parent doctree.NodeID, n *html.Node) {
	switch n.Data {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6":
		node := doctree.Node{Kind: doctree.KindParagraph}
		if lvl := b.cls.Classify(n); lvl != heading.NotHeading {
			node = doctree.Node{Kind: doctree.KindHeading, Level: int(lvl)}
		}
		var runs []doctree.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.inline(&runs, c, 0, "")
		}
		b.textblock(parent, node, runs)

	case "ul", "ol":
		b.list(parent, n)

	case "blockquote":
		id := b.tree.Append(parent, doctree.Node{Kind: doctree.KindBlockquote})
		b.blocks(id, n)
		if b.tree.At(id).FirstChild == doctree.NoNode {
			b.tree.Detach(id)
		}

	case "pre":
		text := strings.TrimSuffix(textContent(n), "\n")
		lang := ""
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "code" {
				for _, cls := range strings.Fields(heading.Attr(c, "class")) {
					if l, ok := strings.CutPrefix(cls, "language-"); ok {
						lang = l
					}
				}
			}
		}
		b.tree.Append(parent, doctree.Node{Kind: doctree.KindCodeBlock, Text: text, Language: lang})

	case "hr":
		b.tree.Append(parent, doctree.Node{Kind: doctree.KindHorizontalRule})

	case "table":
		b.table(parent, n)

	default:
		b.blocks(parent, n)
	}
}

func (b *builder) list(parent doctree.NodeID, n *html.Node) {
	node := doctree.Node{Kind: doctree.KindBulletList}
	if n.Data == "ol" {
		node = doctree.Node{Kind: doctree.KindOrderedList, Start: 1}
		if s, err := strconv.Atoi(heading.Attr(n, "start")); err == nil {
			node.Start = s
		}
	}
	id := b.tree.Append(parent, node)

	last := doctree.NoNode
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "li":
			item := b.tree.Append(id, doctree.Node{Kind: doctree.KindListItem})
			b.blocks(item, c)
			if b.tree.At(item).FirstChild == doctree.NoNode {
				b.tree.Detach(item)
				continue
			}
			last = item
		case "ul", "ol":
			// Nested list written as a sibling of <li>.
			if last == doctree.NoNode {
				last = b.tree.Append(id, doctree.Node{Kind: doctree.KindListItem})
			}
			b.list(last, c)
		}
	}
	if b.tree.At(id).FirstChild == doctree.NoNode {
		b.tree.Detach(id)
	}
}

func (b *builder) table(parent doctree.NodeID, n *html.Node) {
	id := b.tree.Append(parent, doctree.Node{Kind: doctree.KindTable})

	var rows func(*html.Node)
	rows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				b.row(id, c)
			case "thead", "tbody", "tfoot":
				rows(c)
			}
		}
	}
	rows(n)

	if b.tree.At(id).FirstChild == doctree.NoNode {
		b.tree.Detach(id)
	}
}

func (b *builder) row(table doctree.NodeID, tr *html.Node) {
	row := b.tree.Append(table, doctree.Node{Kind: doctree.KindTableRow})
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		kind := doctree.KindTableCell
		if c.Data == "th" {
			kind = doctree.KindTableHeader
		}
		cell := b.tree.Append(row, doctree.Node{Kind: kind})
		b.blocks(cell, c)
		if b.tree.At(cell).FirstChild == doctree.NoNode {
			b.tree.Append(cell, doctree.Node{Kind: doctree.KindParagraph})
		}
	}
	if b.tree.At(row).FirstChild == doctree.NoNode {
		b.tree.Detach(row)
	}
}

// inline flattens n into text runs, images and hard breaks.
func (b *builder) inline(runs *[]doctree.Node, n *html.Node, marks doctree.Mark, href string) {
	switch n.Type {
	case html.TextNode:
		if n.Data != "" {
			*runs = append(*runs, doctree.Node{Kind: doctree.KindText, Text: n.Data, Marks: marks, Href: href})
		}
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.Data {
	case "br":
		*runs = append(*runs, doctree.Node{Kind: doctree.KindHardBreak})
		return
	case "img":
		src := heading.Attr(n, "src")
		if src != "" {
			*runs = append(*runs, doctree.Node{
				Kind:  doctree.KindImage,
				Src:   src,
				Alt:   heading.Attr(n, "alt"),
				Title: heading.Attr(n, "title"),
			})
		}
		return
	case "b", "strong":
		marks |= doctree.MarkBold
	case "i", "em", "cite", "var":
		marks |= doctree.MarkItalic
	case "u", "ins":
		marks |= doctree.MarkUnderline
	case "s", "strike", "del":
		marks |= doctree.MarkStrike
	case "code", "kbd", "samp", "tt":
		marks |= doctree.MarkCode
	case "a":
		if h := heading.Attr(n, "href"); h != "" {
			href = h
		}
	default:
		if skipTags[n.Data] {
			return
		}
	}
	marks = styleMarks(heading.Attr(n, "style"), marks)

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.inline(runs, c, marks, href)
	}
}

// styleMarks applies inline style declarations on top of inherited marks.
func styleMarks(style string, marks doctree.Mark) doctree.Mark {
	if style == "" {
		return marks
	}
	if bold, set := heading.WeightFromStyle(style); set {
		if bold {
			marks |= doctree.MarkBold
		} else {
			marks &^= doctree.MarkBold
		}
	}
	s := strings.ToLower(style)
	if strings.Contains(s, "font-style:italic") || strings.Contains(s, "font-style: italic") {
		marks |= doctree.MarkItalic
	}
	if strings.Contains(s, "text-decoration") {
		if strings.Contains(s, "underline") {
			marks |= doctree.MarkUnderline
		}
		if strings.Contains(s, "line-through") {
			marks |= doctree.MarkStrike
		}
	}
	return marks
}

// textblock normalizes runs and appends a paragraph or heading holding
// them. Blocks left without content are dropped.
func (b *builder) textblock(parent doctree.NodeID, node doctree.Node, runs []doctree.Node) {
	runs = doctree.NormalizeRuns(runs)
	if len(runs) == 0 {
		return
	}
	id := b.tree.Append(parent, node)
	for _, r := range runs {
		b.tree.Append(id, r)
	}
}

func containsBlock(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (blockTags[c.Data] || containsBlock(c)) {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return strings.TrimSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
