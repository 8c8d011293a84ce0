package doctree

import "strings"

// NormalizeRuns returns the canonical form of a textblock's inline
// content: whitespace collapsed to single spaces, adjacent text runs with
// the same marks and link merged, spaces trimmed at line boundaries, and
// empty runs and edge hard breaks dropped. Link fields in the input are
// ignored.
func NormalizeRuns(runs []Node) []Node {
	var out []Node
	for _, r := range runs {
		r.Parent, r.FirstChild, r.LastChild = NoNode, NoNode, NoNode
		r.PrevSibling, r.NextSibling = NoNode, NoNode

		if r.Kind != KindText {
			if r.Kind == KindHardBreak {
				if len(out) == 0 {
					continue
				}
				trimTrailingSpace(out)
			}
			out = append(out, r)
			continue
		}

		r.Text = CollapseWhitespace(r.Text)
		atLineStart := len(out) == 0 || out[len(out)-1].Kind == KindHardBreak
		if atLineStart || endsWithSpace(out[len(out)-1]) {
			r.Text = strings.TrimLeft(r.Text, " ")
		}
		if r.Text == "" {
			continue
		}
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Kind == KindText && last.Marks == r.Marks && last.Href == r.Href {
				last.Text += r.Text
				continue
			}
		}
		out = append(out, r)
	}
	trimTrailingSpace(out)

	kept := out[:0]
	for _, r := range out {
		if r.Kind == KindText && r.Text == "" {
			continue
		}
		if r.Kind == KindHardBreak && len(kept) == 0 {
			continue
		}
		kept = append(kept, r)
	}
	for len(kept) > 0 && kept[len(kept)-1].Kind == KindHardBreak {
		kept = kept[:len(kept)-1]
	}
	return kept
}

// Runs returns copies of the inline children of a textblock.
func (t *Tree) Runs(id NodeID) []Node {
	var out []Node
	for _, c := range t.Children(id) {
		out = append(out, t.nodes[c])
	}
	return out
}

// SetRuns replaces the inline children of a textblock with the normalized
// form of runs.
func (t *Tree) SetRuns(id NodeID, runs []Node) {
	for _, c := range t.Children(id) {
		t.Detach(c)
	}
	for _, r := range NormalizeRuns(runs) {
		t.Append(id, r)
	}
}

// CollapseWhitespace folds every run of HTML whitespace into one space.
func CollapseWhitespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				sb.WriteByte(' ')
			}
			space = true
		default:
			sb.WriteRune(r)
			space = false
		}
	}
	return sb.String()
}

func endsWithSpace(n Node) bool {
	return n.Kind == KindText && strings.HasSuffix(n.Text, " ")
}

// trimTrailingSpace strips trailing spaces from the text runs ending the
// current line.
func trimTrailingSpace(runs []Node) {
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Kind != KindText {
			return
		}
		runs[i].Text = strings.TrimRight(runs[i].Text, " ")
		if runs[i].Text != "" {
			return
		}
	}
}
