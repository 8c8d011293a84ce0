package heading

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Result is the classification of one paragraph or heading element.
type Result struct {
	Tag   string    `json:"tag"`
	Text  string    `json:"text"`
	Level Level     `json:"level"`
	Hint  StyleHint `json:"hint"`
}

// Scan classifies every p and h1-h6 element under root in document order.
// Matched elements are not searched further.
func (c *Classifier) Scan(root *html.Node) []Result {
	var out []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isCandidate(n.Data) {
			h := c.Hint(n)
			out = append(out, Result{
				Tag:   strings.ToLower(n.Data),
				Text:  h.Text,
				Level: c.Classify(n),
				Hint:  h,
			})
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// ScanString parses markup and scans it.
func (c *Classifier) ScanString(markup string) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return c.Scan(doc), nil
}

func isCandidate(tag string) bool {
	tag = strings.ToLower(tag)
	return tag == "p" || (len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6')
}
