package parser

import (
	"bytes"
	"testing"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/fumiama/go-docx"
)

func buildDocx(t *testing.T, fill func(d *docx.Docx)) []byte {
	t.Helper()
	d := docx.New().WithDefaultTheme()
	fill(d)
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		t.Fatalf("write docx: %v", err)
	}
	return buf.Bytes()
}

func TestDOCXParser_DirectFormattingHeadings(t *testing.T) {
	data := buildDocx(t, func(d *docx.Docx) {
		d.AddParagraph().AddText("Unit One").Size("48")
		d.AddParagraph().AddText("Reading").Size("36").Bold()
		d.AddParagraph().Style("Heading4").AddText("Styled")
		d.AddParagraph().AddText("Plain body text").Size("22")
		d.AddParagraph().AddText("Bold bit").Size("22").Bold().Italic()
	})

	tree, err := (&DOCXParser{}).Parse(bytes.NewReader(data), "unit1.docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "unit1" {
		t.Errorf("expected title %q, got %q", "unit1", tree.Title)
	}

	blocks := tree.Blocks()
	if len(blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(blocks))
	}
	wantLevels := []int{1, 2, 4, 0, 0}
	for i, want := range wantLevels {
		n := tree.At(blocks[i])
		if want == 0 {
			if n.Kind != doctree.KindParagraph {
				t.Errorf("block[%d]: expected paragraph, got %v/%d", i, n.Kind, n.Level)
			}
			continue
		}
		if n.Kind != doctree.KindHeading || n.Level != want {
			t.Errorf("block[%d]: expected h%d, got %v/%d", i, want, n.Kind, n.Level)
		}
	}

	runs := tree.Children(blocks[4])
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if m := tree.At(runs[0]).Marks; m != doctree.MarkBold|doctree.MarkItalic {
		t.Errorf("expected bold+italic, got %v", m)
	}
}

func TestDOCXHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"Heading1", 1},
		{"heading 3", 3},
		{"Heading6", 0},
		{"Title", 1},
		{"Normal", 0},
	}
	for _, tt := range tests {
		p := &docx.Paragraph{Properties: &docx.ParagraphProperties{Style: &docx.Style{Val: tt.style}}}
		if got := docxHeadingLevel(p); got != tt.want {
			t.Errorf("style=%q: expected %d, got %d", tt.style, tt.want, got)
		}
	}
	if got := docxHeadingLevel(&docx.Paragraph{}); got != 0 {
		t.Errorf("no properties: expected 0, got %d", got)
	}
}

func TestDOCXParser_Invalid(t *testing.T) {
	_, err := (&DOCXParser{}).Parse(bytes.NewReader([]byte("not a zip")), "bad.docx")
	if err == nil {
		t.Fatal("expected error for invalid docx")
	}
}
