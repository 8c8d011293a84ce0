package editor

import (
	"fmt"

	"github.com/dgallion1/lessonsync/internal/doctree"
)

const (
	defaultTableRows = 3
	defaultTableCols = 3
)

func insertTable(t *doctree.Tree, a Args) error {
	rows, cols := a.Rows, a.Cols
	if rows == 0 {
		rows = defaultTableRows
	}
	if cols == 0 {
		cols = defaultTableCols
	}
	if rows < 1 || cols < 1 {
		return fmt.Errorf("%w: %dx%d table", ErrInvalidArgs, rows, cols)
	}
	table := t.Insert(t.Root(), insertIndex(t, a.Block), doctree.Node{Kind: doctree.KindTable})
	for r := 0; r < rows; r++ {
		row := t.Append(table, doctree.Node{Kind: doctree.KindTableRow})
		kind := doctree.KindTableCell
		if r == 0 && a.WithHeaderRow {
			kind = doctree.KindTableHeader
		}
		for c := 0; c < cols; c++ {
			newCell(t, row, -1, kind)
		}
	}
	return nil
}

func newCell(t *doctree.Tree, row doctree.NodeID, at int, kind doctree.Kind) {
	cell := t.Insert(row, at, doctree.Node{Kind: kind})
	t.Append(cell, doctree.Node{Kind: doctree.KindParagraph})
}

// table resolves the target to a table node.
func table(t *doctree.Tree, a Args) (doctree.NodeID, error) {
	id, err := target(t, a)
	if err != nil {
		return doctree.NoNode, err
	}
	if k := t.At(id).Kind; k != doctree.KindTable {
		return doctree.NoNode, fmt.Errorf("%w: %s is not a table", ErrInvalidArgs, k)
	}
	return id, nil
}

// tableRow returns the table and the row selected by a.Row.
func tableRow(t *doctree.Tree, a Args) (doctree.NodeID, []doctree.NodeID, int, error) {
	id, err := table(t, a)
	if err != nil {
		return doctree.NoNode, nil, 0, err
	}
	rows := t.Children(id)
	if a.Row < 0 || a.Row >= len(rows) {
		return doctree.NoNode, nil, 0, fmt.Errorf("%w: row %d", ErrInvalidArgs, a.Row)
	}
	return id, rows, a.Row, nil
}

// addRow inserts a body row next to a.Row; shift 0 inserts before, 1
// after.
func addRow(shift int) command {
	return func(t *doctree.Tree, a Args) error {
		id, rows, r, err := tableRow(t, a)
		if err != nil {
			return err
		}
		width := len(t.Children(rows[r]))
		row := t.Insert(id, r+shift, doctree.Node{Kind: doctree.KindTableRow})
		for c := 0; c < width; c++ {
			newCell(t, row, -1, doctree.KindTableCell)
		}
		return nil
	}
}

// addColumn inserts a cell next to column a.Col in every row. The new cell
// copies the header flag of its neighbour.
func addColumn(shift int) command {
	return func(t *doctree.Tree, a Args) error {
		id, err := table(t, a)
		if err != nil {
			return err
		}
		if a.Col < 0 {
			return fmt.Errorf("%w: column %d", ErrInvalidArgs, a.Col)
		}
		found := false
		for _, row := range t.Children(id) {
			cells := t.Children(row)
			if a.Col >= len(cells) {
				newCell(t, row, -1, doctree.KindTableCell)
				continue
			}
			found = true
			newCell(t, row, a.Col+shift, t.At(cells[a.Col]).Kind)
		}
		if !found {
			return fmt.Errorf("%w: column %d", ErrInvalidArgs, a.Col)
		}
		return nil
	}
}

// deleteRow removes a.Row; removing the last row removes the table.
func deleteRow(t *doctree.Tree, a Args) error {
	id, rows, r, err := tableRow(t, a)
	if err != nil {
		return err
	}
	if len(rows) == 1 {
		t.Detach(id)
		return nil
	}
	t.Detach(rows[r])
	return nil
}

// deleteColumn removes column a.Col from every row; removing the last
// column removes the table.
func deleteColumn(t *doctree.Tree, a Args) error {
	id, err := table(t, a)
	if err != nil {
		return err
	}
	found, remaining := false, 0
	for _, row := range t.Children(id) {
		cells := t.Children(row)
		if a.Col >= 0 && a.Col < len(cells) {
			t.Detach(cells[a.Col])
			found = true
			remaining = max(remaining, len(cells)-1)
		} else {
			remaining = max(remaining, len(cells))
		}
	}
	if !found {
		return fmt.Errorf("%w: column %d", ErrInvalidArgs, a.Col)
	}
	if remaining == 0 {
		t.Detach(id)
	}
	return nil
}

func deleteTable(t *doctree.Tree, a Args) error {
	id, err := table(t, a)
	if err != nil {
		return err
	}
	t.Detach(id)
	return nil
}
