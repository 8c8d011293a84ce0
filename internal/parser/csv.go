package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
)

// CSVParser handles CSV files. The first record becomes the header row of
// a single table.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := doctree.New()
	tree.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
	if len(records) == 0 {
		return tree, nil
	}

	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}

	table := tree.Append(tree.Root(), doctree.Node{Kind: doctree.KindTable})
	for i, rec := range records {
		row := tree.Append(table, doctree.Node{Kind: doctree.KindTableRow})
		kind := doctree.KindTableCell
		if i == 0 {
			kind = doctree.KindTableHeader
		}
		for j := range width {
			cell := tree.Append(row, doctree.Node{Kind: kind})
			para := tree.Append(cell, doctree.Node{Kind: doctree.KindParagraph})
			if j < len(rec) {
				if v := strings.Join(strings.Fields(rec[j]), " "); v != "" {
					tree.Append(para, doctree.Node{Kind: doctree.KindText, Text: v})
				}
			}
		}
	}

	return tree, nil
}
