// Package heading infers heading levels for markup that does not mark its
// structure explicitly, such as paragraphs pasted from word processors that
// carry only font size and weight.
package heading

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Level is a heading level in [1,5], or NotHeading.
type Level int

// NotHeading means the node stays a paragraph.
const NotHeading Level = 0

// Size thresholds in points.
const (
	level1MinPt = 24.0
	level2MinPt = 18.0
	level3MinPt = 14.0
)

// Bounds on the rune length of an all-caps bold paragraph, exclusive.
const (
	allCapsMinRunes = 3
	allCapsMaxRunes = 100
)

// StyleHint is the signal extracted from one candidate node.
type StyleHint struct {
	FontSizePt  float64
	HasFontSize bool
	HasBold     bool
	IsAllCaps   bool
	Text        string
}

// Classifier maps markup nodes to heading levels. The zero value folds case
// with language-neutral rules.
type Classifier struct {
	lang language.Tag
}

// New returns a classifier that uppercases text with the rules of lang.
func New(lang language.Tag) *Classifier {
	return &Classifier{lang: lang}
}

// Parse returns a classifier for a BCP 47 tag. An empty or invalid tag
// falls back to language-neutral rules.
func Parse(tag string) *Classifier {
	if tag == "" {
		return New(language.Und)
	}
	t, err := language.Parse(tag)
	if err != nil {
		return New(language.Und)
	}
	return New(t)
}

var defaultClassifier = New(language.Und)

// Classify uses language-neutral case rules.
func Classify(n *html.Node) Level {
	return defaultClassifier.Classify(n)
}

// Language returns the tag used for case folding.
func (c *Classifier) Language() language.Tag {
	return c.lang
}

// Classify returns the heading level implied by n. It never fails; absent
// or unparseable signals mean NotHeading.
func (c *Classifier) Classify(n *html.Node) Level {
	if n == nil || n.Type != html.ElementNode {
		return NotHeading
	}
	if lvl := tagLevel(n.Data); lvl != NotHeading {
		return lvl
	}
	if !strings.EqualFold(n.Data, "p") {
		return NotHeading
	}

	h := c.Hint(n)
	if h.HasFontSize {
		switch {
		case h.FontSizePt >= level1MinPt:
			return 1
		case h.FontSizePt >= level2MinPt:
			return 2
		case h.FontSizePt >= level3MinPt && h.HasBold:
			return 3
		}
		return NotHeading
	}

	if h.HasBold && h.IsAllCaps {
		runes := utf8.RuneCountInString(h.Text)
		if runes > allCapsMinRunes && runes < allCapsMaxRunes {
			return 3
		}
	}
	return NotHeading
}

// Hint extracts the style signal of n: its own inline style followed by
// that of its first descendant span, the bold state of n and its
// descendants, and its normalized text.
func (c *Classifier) Hint(n *html.Node) StyleHint {
	var h StyleHint
	if n == nil {
		return h
	}

	combined := Attr(n, "style")
	if span := firstDescendant(n, "span"); span != nil {
		combined += ";" + Attr(span, "style")
	}
	h.FontSizePt, h.HasFontSize = fontSizePt(combined)
	h.HasBold = hasBold(n)

	h.Text = norm.NFC.String(strings.TrimSpace(collapseSpace(textContent(n))))
	if h.Text != "" {
		// A Caser holds state and is not safe for concurrent use.
		upper := cases.Upper(c.lang).String(h.Text)
		h.IsAllCaps = upper == h.Text
	}
	return h
}

func tagLevel(tag string) Level {
	switch strings.ToLower(tag) {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	}
	return NotHeading
}

// IsBoldElement reports whether n renders its content bold: a b or strong
// element not overridden by its own style, or any element whose style sets
// a bold weight.
func IsBoldElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	bold, set := WeightFromStyle(Attr(n, "style"))
	if set {
		return bold
	}
	switch strings.ToLower(n.Data) {
	case "b", "strong":
		return true
	}
	return false
}

func hasBold(n *html.Node) bool {
	if IsBoldElement(n) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasBold(c) {
			return true
		}
	}
	return false
}

func firstDescendant(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, tag) {
			return c
		}
		if d := firstDescendant(c, tag); d != nil {
			return d
		}
	}
	return nil
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

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
