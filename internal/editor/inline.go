package editor

import (
	"fmt"
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
)

// units splits the runs of a textblock into one node per position: a
// single character, an image or a hard break.
func units(t *doctree.Tree, id doctree.NodeID) []doctree.Node {
	var out []doctree.Node
	for _, r := range t.Runs(id) {
		if r.Kind != doctree.KindText {
			out = append(out, r)
			continue
		}
		for _, c := range r.Text {
			u := r
			u.Text = string(c)
			out = append(out, u)
		}
	}
	return out
}

// selection resolves Start and End against n positions.
func selection(n int, a Args) (int, int, error) {
	start, end := a.Start, a.End
	if end <= 0 || end > n {
		end = n
	}
	if start < 0 || start > end {
		return 0, 0, fmt.Errorf("%w: range %d..%d", ErrInvalidArgs, a.Start, a.End)
	}
	return start, end, nil
}

// offset resolves an insert position against n positions.
func offset(n int, a Args) (int, error) {
	if a.Offset == nil {
		return n, nil
	}
	if *a.Offset < 0 || *a.Offset > n {
		return 0, fmt.Errorf("%w: offset %d", ErrInvalidArgs, *a.Offset)
	}
	return *a.Offset, nil
}

// editRange runs fn over the text positions of the selected range and
// writes the result back.
func editRange(t *doctree.Tree, a Args, fn func(us []doctree.Node)) error {
	id, err := textblock(t, a)
	if err != nil {
		return err
	}
	us := units(t, id)
	start, end, err := selection(len(us), a)
	if err != nil {
		return err
	}
	fn(us[start:end])
	t.SetRuns(id, us)
	return nil
}

// toggleMark sets m on every character in the range, or clears it when
// every character already carries it.
func toggleMark(m doctree.Mark) command {
	return func(t *doctree.Tree, a Args) error {
		return editRange(t, a, func(us []doctree.Node) {
			all, hasText := true, false
			for _, u := range us {
				if u.Kind == doctree.KindText {
					hasText = true
					all = all && u.Marks.Has(m)
				}
			}
			for i := range us {
				if us[i].Kind != doctree.KindText {
					continue
				}
				if hasText && all {
					us[i].Marks &^= m
				} else {
					us[i].Marks |= m
				}
			}
		})
	}
}

func setLink(t *doctree.Tree, a Args) error {
	href := strings.TrimSpace(a.Href)
	if href == "" {
		return fmt.Errorf("%w: empty href", ErrInvalidArgs)
	}
	return editRange(t, a, func(us []doctree.Node) {
		for i := range us {
			if us[i].Kind == doctree.KindText {
				us[i].Href = href
			}
		}
	})
}

func unsetLink(t *doctree.Tree, a Args) error {
	return editRange(t, a, func(us []doctree.Node) {
		for i := range us {
			us[i].Href = ""
		}
	})
}

// insertText inserts a.Text at a.Offset, inheriting the marks and link of
// the character before it. Newlines become hard breaks.
func insertText(t *doctree.Tree, a Args) error {
	if a.Text == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidArgs)
	}
	id, err := textblock(t, a)
	if err != nil {
		return err
	}
	us := units(t, id)
	at, err := offset(len(us), a)
	if err != nil {
		return err
	}
	var style doctree.Node
	if at > 0 && us[at-1].Kind == doctree.KindText {
		style = us[at-1]
	}
	var ins []doctree.Node
	for i, line := range strings.Split(a.Text, "\n") {
		if i > 0 {
			ins = append(ins, doctree.Node{Kind: doctree.KindHardBreak})
		}
		if line != "" {
			ins = append(ins, doctree.Node{Kind: doctree.KindText, Text: line, Marks: style.Marks, Href: style.Href})
		}
	}
	out := make([]doctree.Node, 0, len(us)+len(ins))
	out = append(out, us[:at]...)
	out = append(out, ins...)
	out = append(out, us[at:]...)
	t.SetRuns(id, out)
	return nil
}

// setImage places an image inline in the target textblock, or in a new
// paragraph when Block is negative or past the end.
func setImage(t *doctree.Tree, a Args) error {
	if strings.TrimSpace(a.Src) == "" {
		return fmt.Errorf("%w: empty src", ErrInvalidArgs)
	}
	img := doctree.Node{Kind: doctree.KindImage, Src: a.Src, Alt: a.Alt, Title: a.Title}
	if insertIndex(t, a.Block) < 0 {
		p := t.Append(t.Root(), doctree.Node{Kind: doctree.KindParagraph})
		t.Append(p, img)
		return nil
	}
	id, err := textblock(t, a)
	if err != nil {
		return err
	}
	us := units(t, id)
	at, err := offset(len(us), a)
	if err != nil {
		return err
	}
	out := make([]doctree.Node, 0, len(us)+1)
	out = append(out, us[:at]...)
	out = append(out, img)
	out = append(out, us[at:]...)
	t.SetRuns(id, out)
	return nil
}
