package surface

import (
	"strings"

	dmp "github.com/sergi/go-diff/diffmatchpatch"
)

// PendingDiff compares the document with deferred external content, line
// by line. Lines only in the document start with "- ", lines only in the
// pending content with "+ ", shared lines with two spaces. It returns ""
// when nothing is pending.
func (s *Surface) PendingDiff() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return "", ErrUnmounted
	}
	pending, ok := s.sync.Pending()
	if !ok {
		return "", nil
	}
	return lineDiff(s.ser.Serialize(s.engine.Tree()), pending), nil
}

func lineDiff(from, to string) string {
	d := dmp.New()
	a, b, lines := d.DiffLinesToChars(ensureNewline(from), ensureNewline(to))
	diffs := d.DiffCharsToLines(d.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, df := range diffs {
		prefix := "  "
		switch df.Type {
		case dmp.DiffDelete:
			prefix = "- "
		case dmp.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(df.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}
	return sb.String()
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
