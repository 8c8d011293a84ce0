package parser

import (
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/dgallion1/lessonsync/internal/heading"
)

// Tags whose presence at the start of content marks it as an HTML document
// or fragment rather than markdown.
var htmlLeadTags = map[string]bool{
	"html": true, "body": true, "head": true, "meta": true, "div": true,
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "ul": true, "ol": true, "table": true, "blockquote": true,
	"pre": true, "section": true, "article": true, "hr": true,
}

// IsHTML reports whether editor content is HTML. Content is HTML when it
// opens with a document marker or a known tag and no markdown block
// follows a blank line.
func IsHTML(content string) bool {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "<") {
		return false
	}
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "<!doctype") && !strings.HasPrefix(lower, "<!--") {
		name := lower[1:]
		if i := strings.IndexAny(name, " \t\r\n/>"); i >= 0 {
			name = name[:i]
		}
		if !htmlLeadTags[name] {
			return false
		}
	}

	blank := false
	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			blank = true
			continue
		}
		if blank && !strings.HasPrefix(t, "<") {
			return false
		}
		blank = false
	}
	return true
}

// Content parses editor content, HTML or markdown, into a tree. Headings
// are inferred with cls; nil uses language-neutral case rules.
func Content(content string, cls *heading.Classifier) (*doctree.Tree, error) {
	h := &HTMLParser{Classifier: cls}
	if IsHTML(content) {
		return h.Parse(strings.NewReader(content), "")
	}
	out, err := MarkdownToHTML([]byte(content))
	if err != nil {
		return nil, err
	}
	return h.Parse(strings.NewReader(out), "")
}
