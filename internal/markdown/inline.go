package markdown

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/yuin/goldmark/util"
)

type inlineMode int

const (
	modeParagraph inlineMode = iota
	modeHeading              // single line, '#' always escaped
	modeCell                 // single line inside a pipe table
)

type inlineWriter struct {
	buf        []byte
	mode       inlineMode
	lineStart  bool
	afterDelim bool // buf ends with an emphasis or strike delimiter
}

// inlineMarkdown writes normalized runs as markdown inline content.
func inlineMarkdown(runs []doctree.Node, mode inlineMode) string {
	w := &inlineWriter{mode: mode, lineStart: true}
	w.runs(runs, 0)
	return string(w.buf)
}

// runs writes runs; after is the character that will follow them, or 0
// for the end of the line.
func (w *inlineWriter) runs(runs []doctree.Node, after rune) {
	for i := 0; i < len(runs); i++ {
		r := runs[i]
		switch r.Kind {
		case doctree.KindHardBreak:
			if w.mode == modeParagraph {
				w.write("\\\n")
				w.lineStart = true
			} else {
				w.write("<br>")
			}
			w.afterDelim = false

		case doctree.KindImage:
			w.image(r)

		case doctree.KindText:
			if r.Href != "" {
				j := i
				for j+1 < len(runs) && runs[j+1].Kind == doctree.KindText && runs[j+1].Href == r.Href {
					j++
				}
				w.link(runs[i:j+1], r.Href)
				i = j
				continue
			}
			w.text(r, nextChar(runs, i+1, after))
		}
	}
}

// nextChar approximates the first character written for runs[i:].
func nextChar(runs []doctree.Node, i int, after rune) rune {
	if i >= len(runs) {
		return after
	}
	r := runs[i]
	switch {
	case r.Kind == doctree.KindHardBreak:
		return '\\'
	case r.Kind == doctree.KindImage:
		return '!'
	case r.Href != "":
		return '['
	case r.Marks != 0 && strings.TrimSpace(r.Text) != "":
		if strings.HasPrefix(r.Text, " ") {
			return ' '
		}
		return '*'
	}
	c, _ := utf8.DecodeRuneInString(r.Text)
	if isEscapable(c) {
		return '\\'
	}
	return c
}

func (w *inlineWriter) write(s string) {
	w.buf = append(w.buf, s...)
	if s != "" {
		w.lineStart = false
	}
}

func (w *inlineWriter) lastChar() rune {
	if w.lineStart || len(w.buf) == 0 {
		return 0
	}
	c, _ := utf8.DecodeLastRune(w.buf)
	return c
}

func (w *inlineWriter) link(group []doctree.Node, href string) {
	// A literal '!' right before '[' would turn the link into an image.
	if n := len(w.buf); n > 0 && w.buf[n-1] == '!' && !w.lineStart {
		w.buf = append(w.buf[:n-1], '\\', '!')
	}
	w.write("[")
	w.afterDelim = false
	inner := make([]doctree.Node, len(group))
	for i, r := range group {
		r.Href = ""
		inner[i] = r
	}
	for i, r := range inner {
		w.text(r, nextChar(inner, i+1, ']'))
	}
	w.write("](" + destination(href) + ")")
	w.afterDelim = false
}

func (w *inlineWriter) image(r doctree.Node) {
	w.write("![" + escapeText(r.Alt, false, w.mode) + "](" + destination(r.Src))
	if r.Title != "" {
		w.write(` "` + escapeTitle(r.Title) + `"`)
	}
	w.write(")")
	w.afterDelim = false
}

// text writes one run with its marks. Markdown delimiters are used when
// they will parse back as the same marks; otherwise the marks are written
// as inline HTML tags.
func (w *inlineWriter) text(r doctree.Node, next rune) {
	core := strings.Trim(r.Text, " ")
	if r.Marks == 0 || core == "" {
		w.plain(r.Text)
		return
	}
	lead := r.Text[:len(r.Text)-len(strings.TrimLeft(r.Text, " "))]
	trail := r.Text[len(strings.TrimRight(r.Text, " ")):]
	w.write(lead)

	var tokens []string
	if r.Marks.Has(doctree.MarkStrike) {
		tokens = append(tokens, "~~")
	}
	switch {
	case r.Marks.Has(doctree.MarkBold | doctree.MarkItalic):
		tokens = append(tokens, "***")
	case r.Marks.Has(doctree.MarkBold):
		tokens = append(tokens, "**")
	case r.Marks.Has(doctree.MarkItalic):
		tokens = append(tokens, "*")
	}
	underline := r.Marks.Has(doctree.MarkUnderline)
	code := r.Marks.Has(doctree.MarkCode)

	if trail != "" {
		next = ' '
	}
	useHTML := len(tokens) > 0 && (w.afterDelim && !underline || !flanks(w, tokens, core, code, underline, next))
	if code && w.mode == modeCell && strings.Contains(core, "|") {
		useHTML = true
	}

	if useHTML {
		var open, closing []string
		for i := len(markOrder) - 1; i >= 0; i-- {
			if r.Marks.Has(markOrder[i].mark) {
				open = append(open, "<"+markOrder[i].tag+">")
				closing = append([]string{"</" + markOrder[i].tag + ">"}, closing...)
			}
		}
		w.write(strings.Join(open, ""))
		w.write(escapeText(core, false, w.mode))
		w.write(strings.Join(closing, ""))
		w.afterDelim = false
	} else {
		if underline {
			w.write("<u>")
		}
		w.write(strings.Join(tokens, ""))
		if code {
			w.write(codeSpan(core))
		} else {
			w.write(escapeText(core, false, w.mode))
		}
		for i := len(tokens) - 1; i >= 0; i-- {
			w.write(tokens[i])
		}
		w.afterDelim = len(tokens) > 0
		if underline {
			w.write("</u>")
			w.afterDelim = false
		}
	}

	if trail != "" {
		w.write(trail)
		w.afterDelim = false
	}
}

// flanks reports whether the delimiter tokens around core will be read as
// left-flanking when opened and right-flanking when closed.
func flanks(w *inlineWriter, tokens []string, core string, code, underline bool, next rune) bool {
	prev := w.lastChar()
	if underline {
		prev, next = '>', '<'
	}

	first, _ := utf8.DecodeRuneInString(core)
	last, _ := utf8.DecodeLastRuneInString(core)
	if code {
		first, last = '`', '`'
	}
	// The outermost token borders the next token inward, or the content.
	if len(tokens) > 1 {
		first, last = '*', '*'
	}
	if isPunct(first) && isWordChar(prev) {
		return false
	}
	if isPunct(last) && isWordChar(next) {
		return false
	}
	return true
}

func (w *inlineWriter) plain(s string) {
	if s == "" {
		return
	}
	w.write(escapeText(s, w.lineStart, w.mode))
	w.afterDelim = false
}

func codeSpan(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	fence := strings.Repeat("`", longest+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		return fence + " " + s + " " + fence
	}
	return fence + s + fence
}

func isEscapable(r rune) bool {
	switch r {
	case '\\', '`', '*', '_', '[', ']', '<', '&', '~', '|':
		return true
	}
	return false
}

// escapeText backslash-escapes characters that would start inline syntax,
// plus block markers when s begins a line.
func escapeText(s string, lineStart bool, mode inlineMode) string {
	listDot := -1
	if lineStart {
		digits := 0
		for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
			digits++
		}
		if digits > 0 && digits < len(s) && (s[digits] == '.' || s[digits] == ')') {
			listDot = digits
		}
	}

	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for i, r := range s {
		switch {
		case isEscapable(r):
			sb.WriteByte('\\')
		case r == '#' && (mode == modeHeading || lineStart && i == 0):
			sb.WriteByte('\\')
		case lineStart && i == 0 && strings.ContainsRune(">-+=", r):
			sb.WriteByte('\\')
		case i == listDot:
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func escapeTitle(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `&`, `\&`)
	return r.Replace(s)
}

// destination percent-encodes a link or image target the way the markdown
// renderer does, so the value survives a round trip unchanged.
func destination(u string) string {
	esc := string(util.URLEscape([]byte(u), false))
	r := strings.NewReplacer(`(`, `\(`, `)`, `\)`)
	return r.Replace(esc)
}

func isPunct(r rune) bool {
	return r != 0 && (unicode.IsPunct(r) || unicode.IsSymbol(r))
}

func isWordChar(r rune) bool {
	return r != 0 && !unicode.IsSpace(r) && !isPunct(r)
}
