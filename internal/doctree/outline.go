package doctree

import "strings"

// Section is a heading and the blocks that follow it up to the next heading
// of the same or a higher level.
type Section struct {
	Title    string     `json:"title"`
	Level    int        `json:"level"`
	Block    int        `json:"block"` // top-level index of the heading
	Text     string     `json:"text,omitempty"`
	Children []*Section `json:"children,omitempty"`
}

// Outline is the heading hierarchy of a tree.
type Outline struct {
	Title    string     `json:"title"`
	Text     string     `json:"text,omitempty"` // content before the first heading
	Sections []*Section `json:"sections"`
}

// BuildOutline nests the tree's top-level headings by level.
func BuildOutline(t *Tree) *Outline {
	out := &Outline{Title: t.Title, Sections: []*Section{}}

	type stackEntry struct {
		node  *Section
		level int
	}
	root := &Section{Title: t.Title}
	stack := []stackEntry{{node: root, level: 0}}
	var currentText strings.Builder

	flushText := func() {
		text := strings.TrimSpace(currentText.String())
		if text != "" {
			top := stack[len(stack)-1].node
			if top.Text != "" {
				top.Text += "\n\n" + text
			} else {
				top.Text = text
			}
		}
		currentText.Reset()
	}

	for i, id := range t.Blocks() {
		n := t.At(id)
		if n.Kind == KindHeading {
			flushText()
			sec := &Section{
				Title: strings.TrimSpace(t.TextContent(id)),
				Level: n.Level,
				Block: i,
			}
			for len(stack) > 1 && stack[len(stack)-1].level >= n.Level {
				stack = stack[:len(stack)-1]
			}
			parent := stack[len(stack)-1].node
			parent.Children = append(parent.Children, sec)
			stack = append(stack, stackEntry{node: sec, level: n.Level})
			continue
		}

		text := strings.TrimSpace(t.TextContent(id))
		if text != "" {
			if currentText.Len() > 0 {
				currentText.WriteString("\n\n")
			}
			currentText.WriteString(text)
		}
	}
	flushText()

	if root.Children != nil {
		out.Sections = root.Children
	}
	out.Text = root.Text
	return out
}

// Breadcrumb returns the heading titles enclosing top-level block i,
// outermost first.
func (o *Outline) Breadcrumb(block int) []string {
	var path []string
	var find func(secs []*Section, trail []string) bool
	find = func(secs []*Section, trail []string) bool {
		for j, s := range secs {
			end := -1
			if j+1 < len(secs) {
				end = secs[j+1].Block
			}
			if block < s.Block || (end >= 0 && block >= end) {
				continue
			}
			next := append(append([]string{}, trail...), s.Title)
			if !find(s.Children, next) {
				path = next
			}
			return true
		}
		return false
	}
	find(o.Sections, nil)
	return path
}
