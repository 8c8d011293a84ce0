package parser

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. Text pieces are grouped into lines and
// paragraphs and rendered with their font size and weight, so large or
// bold lines are inferred as headings. When no styled text can be read it
// falls back to plain text, optionally via pdftotext.
type PDFParser struct {
	HTML              *HTMLParser
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	pages, err := extractPDFPages(data)
	if err == nil && len(pages) > 0 {
		h := p.HTML
		if h == nil {
			h = &HTMLParser{}
		}
		tree, err := h.Parse(strings.NewReader(pdfPagesToHTML(pages)), filename)
		if err != nil {
			return nil, err
		}
		tree.Title = title
		return tree, nil
	}

	if !p.FallbackPdftotext {
		if err == nil {
			err = fmt.Errorf("no text found")
		}
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	text, ferr := extractPdftotext(data)
	if ferr != nil {
		return nil, fmt.Errorf("extract pdf text: %w", ferr)
	}
	tree, err := (&TextParser{}).Parse(strings.NewReader(strings.ReplaceAll(text, "\f", "\n\n")), filename)
	if err != nil {
		return nil, err
	}
	tree.Title = title
	return tree, nil
}

// extractPDFPages returns the positioned text pieces of each page that has
// any.
func extractPDFPages(data []byte) ([][]pdflib.Text, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var pages [][]pdflib.Text
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		texts := page.Content().Text
		if len(texts) > 0 {
			pages = append(pages, texts)
		}
	}
	return pages, nil
}

func extractPdftotext(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "lessonsync-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	cmd := exec.Command("pdftotext", "-layout", tmp.Name(), "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

type pdfLine struct {
	y    float64
	size float64
	bold bool
	text string
}

// pdfPagesToHTML groups text pieces into lines by baseline and lines into
// paragraphs by style and spacing.
func pdfPagesToHTML(pages [][]pdflib.Text) string {
	var buf strings.Builder
	for _, texts := range pages {
		lines := pdfLines(texts)
		for i := 0; i < len(lines); {
			j := i + 1
			for j < len(lines) && sameParagraph(lines[j-1], lines[j]) {
				j++
			}
			var parts []string
			for _, l := range lines[i:j] {
				parts = append(parts, l.text)
			}
			text := html.EscapeString(strings.Join(parts, " "))
			if lines[i].bold {
				text = "<b>" + text + "</b>"
			}
			fmt.Fprintf(&buf, `<p><span style="font-size:%gpt">%s</span></p>`+"\n", math.Round(lines[i].size*10)/10, text)
			i = j
		}
	}
	return buf.String()
}

func pdfLines(texts []pdflib.Text) []pdfLine {
	sorted := make([]pdflib.Text, len(texts))
	copy(sorted, texts)
	// Top of page first, then left to right.
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > 1 {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []pdfLine
	var cur strings.Builder
	var line pdfLine
	lastEnd := 0.0
	flush := func() {
		line.text = strings.Join(strings.Fields(cur.String()), " ")
		if line.text != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	for i, t := range sorted {
		if i == 0 || math.Abs(t.Y-line.y) > 1 {
			if i > 0 {
				flush()
			}
			line = pdfLine{y: t.Y, size: t.FontSize, bold: isBoldFont(t.Font)}
			lastEnd = t.X
		}
		// Pieces separated by a visible gap get a space between them.
		if cur.Len() > 0 && t.X-lastEnd > t.FontSize*0.15 {
			cur.WriteByte(' ')
		}
		cur.WriteString(t.S)
		if t.FontSize > line.size {
			line.size = t.FontSize
		}
		if strings.TrimSpace(t.S) != "" && !isBoldFont(t.Font) {
			line.bold = false
		}
		lastEnd = t.X + t.W
	}
	if len(sorted) > 0 {
		flush()
	}
	return lines
}

// sameParagraph reports whether next continues prev: same style and no
// more than a normal line gap apart.
func sameParagraph(prev, next pdfLine) bool {
	if math.Abs(prev.size-next.size) > 0.5 || prev.bold != next.bold {
		return false
	}
	return prev.y-next.y <= prev.size*1.6
}

func isBoldFont(font string) bool {
	f := strings.ToLower(font)
	return strings.Contains(f, "bold") || strings.Contains(f, "black") || strings.Contains(f, "heavy")
}
