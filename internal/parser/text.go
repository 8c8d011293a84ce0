package parser

import (
	"bufio"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
)

// TextParser handles plain text files. Blank lines separate paragraphs;
// single newlines become hard breaks.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs [][]string
	var current []string

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, current)
				current = nil
			}
		} else {
			current = append(current, strings.TrimRight(line, " \t\r"))
		}
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, current)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	tree := doctree.New()
	tree.Title = strings.TrimSuffix(filename, filepath.Ext(filename))

	for _, lines := range paragraphs {
		para := tree.Append(tree.Root(), doctree.Node{Kind: doctree.KindParagraph})
		for i, line := range lines {
			if i > 0 {
				tree.Append(para, doctree.Node{Kind: doctree.KindHardBreak})
			}
			tree.Append(para, doctree.Node{Kind: doctree.KindText, Text: line})
		}
	}

	return tree, nil
}
