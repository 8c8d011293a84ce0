package parser

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML is passed through so marks without markdown syntax (underline)
// and complex tables survive a round trip.
var markdownEngine = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// MarkdownParser handles Markdown by rendering it with goldmark and
// feeding the HTML through the classifier-aware HTML parser.
type MarkdownParser struct {
	HTML *HTMLParser
}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	out, err := MarkdownToHTML(src)
	if err != nil {
		return nil, err
	}

	h := p.HTML
	if h == nil {
		h = &HTMLParser{}
	}
	tree, err := h.Parse(strings.NewReader(out), filename)
	if err != nil {
		return nil, err
	}
	tree.Title = strings.TrimSuffix(filename, filepath.Ext(filename))

	// A leading h1 names the document.
	if first := tree.Block(0); first != doctree.NoNode {
		if n := tree.At(first); n.Kind == doctree.KindHeading && n.Level == 1 {
			tree.Title = strings.TrimSpace(tree.TextContent(first))
		}
	}
	return tree, nil
}

// MarkdownToHTML renders CommonMark with GFM tables and strikethrough.
func MarkdownToHTML(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
