package parser

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Runs are rendered as styled HTML so that
// direct formatting (size, bold) goes through the same heading inference as
// pasted content.
type DOCXParser struct {
	HTML *HTMLParser
}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var buf strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			writeDocxParagraph(&buf, doc, it)
		case *docx.Table:
			writeDocxTable(&buf, doc, it)
		}
	}

	h := p.HTML
	if h == nil {
		h = &HTMLParser{}
	}
	tree, err := h.Parse(strings.NewReader(buf.String()), filename)
	if err != nil {
		return nil, err
	}
	tree.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
	return tree, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if rest, ok := strings.CutPrefix(style, "heading"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n >= 1 && n <= 5 {
			return n
		}
	}
	if style == "title" {
		return 1
	}
	return 0
}

func writeDocxParagraph(buf *strings.Builder, doc *docx.Docx, para *docx.Paragraph) {
	tag := "p"
	if lvl := docxHeadingLevel(para); lvl > 0 {
		tag = "h" + strconv.Itoa(lvl)
	}
	buf.WriteString("<" + tag + ">")
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeDocxRun(buf, c, "")
		case *docx.Hyperlink:
			href, err := doc.ReferTarget(c.ID)
			if err != nil {
				href = ""
			}
			run := c.Run
			writeDocxRun(buf, &run, href)
		}
	}
	buf.WriteString("</" + tag + ">\n")
}

// writeDocxRun renders one run as a span carrying its font size, with
// nested elements for the character formatting. Sizes are in half-points.
func writeDocxRun(buf *strings.Builder, run *docx.Run, href string) {
	var text strings.Builder
	for _, rc := range run.Children {
		switch t := rc.(type) {
		case *docx.Text:
			text.WriteString(html.EscapeString(t.Text))
		case *docx.Tab:
			text.WriteString(" ")
		case *docx.BarterRabbet:
			text.WriteString("<br>")
		}
	}
	if text.Len() == 0 && run.InstrText != "" {
		text.WriteString(html.EscapeString(run.InstrText))
	}
	if text.Len() == 0 {
		return
	}

	var open, closing []string
	style := ""
	if rp := run.RunProperties; rp != nil {
		if rp.Size != nil {
			if half, err := strconv.ParseFloat(rp.Size.Val, 64); err == nil && half > 0 {
				style = fmt.Sprintf("font-size:%gpt", half/2)
			}
		}
		if rp.Bold != nil {
			open, closing = append(open, "<b>"), append([]string{"</b>"}, closing...)
		}
		if rp.Italic != nil {
			open, closing = append(open, "<i>"), append([]string{"</i>"}, closing...)
		}
		if rp.Underline != nil && rp.Underline.Val != "none" {
			open, closing = append(open, "<u>"), append([]string{"</u>"}, closing...)
		}
		if rp.Strike != nil && rp.Strike.Val != "false" && rp.Strike.Val != "0" {
			open, closing = append(open, "<s>"), append([]string{"</s>"}, closing...)
		}
	}
	if href != "" {
		open, closing = append(open, `<a href="`+html.EscapeString(href)+`">`), append([]string{"</a>"}, closing...)
	}

	if style != "" {
		buf.WriteString(`<span style="` + style + `">`)
	} else {
		buf.WriteString("<span>")
	}
	buf.WriteString(strings.Join(open, ""))
	buf.WriteString(text.String())
	buf.WriteString(strings.Join(closing, ""))
	buf.WriteString("</span>")
}

func writeDocxTable(buf *strings.Builder, doc *docx.Docx, tbl *docx.Table) {
	buf.WriteString("<table>")
	for _, row := range tbl.TableRows {
		buf.WriteString("<tr>")
		for _, cell := range row.TableCells {
			buf.WriteString("<td>")
			for _, para := range cell.Paragraphs {
				writeDocxParagraph(buf, doc, para)
			}
			for _, nested := range cell.Tables {
				writeDocxTable(buf, doc, nested)
			}
			buf.WriteString("</td>")
		}
		buf.WriteString("</tr>")
	}
	buf.WriteString("</table>\n")
}
