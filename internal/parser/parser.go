package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/dgallion1/lessonsync/internal/heading"
)

// Parser converts raw document bytes into a content tree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Tree, error)
}

// Options configures the parsers returned by ForFile.
type Options struct {
	Classifier           *heading.Classifier
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can import.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	h := &HTMLParser{Classifier: opts.Classifier}
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{HTML: h}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return h, nil
	case ".pdf":
		return &PDFParser{HTML: h, FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{HTML: h}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}
