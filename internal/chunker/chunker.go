// Package chunker splits lesson content into heading-scoped chunks of
// bounded size, each labelled with the headings that enclose it.
package chunker

import (
	"strings"

	"github.com/dgallion1/lessonsync/internal/doctree"
)

// Chunk is one piece of a section's text.
type Chunk struct {
	Text       string   `json:"text"`
	Index      int      `json:"index"`
	Breadcrumb []string `json:"breadcrumb,omitempty"`
	Block      int      `json:"block"` // top-level index of the enclosing heading, -1 before the first
	Level      int      `json:"level"`
}

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in tokens.
	ChunkOverlap int // Overlap between consecutive chunks in tokens.
	MinChunk     int // Minimum chunk size to emit.
}

// DefaultConfig returns defaults sized for lesson sections.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    500,
		ChunkOverlap: 50,
		MinChunk:     1,
	}
}

// ChunkTree chunks the outline of t.
func ChunkTree(t *doctree.Tree, cfg Config) []Chunk {
	return ChunkOutline(doctree.BuildOutline(t), cfg)
}

// ChunkOutline walks the sections of out in document order. Text before
// the first heading comes first with an empty breadcrumb.
func ChunkOutline(out *doctree.Outline, cfg Config) []Chunk {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = def.ChunkOverlap
	}
	if cfg.MinChunk <= 0 {
		cfg.MinChunk = def.MinChunk
	}

	var chunks []Chunk
	if out == nil {
		return chunks
	}
	index := emit(out.Text, nil, -1, 0, cfg, &chunks, 0)
	for _, sec := range out.Sections {
		index = walkSection(sec, nil, cfg, &chunks, index)
	}
	return chunks
}

// walkSection recursively visits sections, collecting text and splitting into chunks.
func walkSection(sec *doctree.Section, breadcrumb []string, cfg Config, chunks *[]Chunk, index int) int {
	var bc []string
	bc = append(bc, breadcrumb...)
	if sec.Title != "" {
		bc = append(bc, sec.Title)
	}

	index = emit(sec.Text, bc, sec.Block, sec.Level, cfg, chunks, index)
	for _, child := range sec.Children {
		index = walkSection(child, bc, cfg, chunks, index)
	}
	return index
}

func emit(text string, bc []string, block, level int, cfg Config, chunks *[]Chunk, index int) int {
	if text == "" {
		return index
	}
	parts := []string{text}
	if EstimateTokens(text) > cfg.ChunkSize {
		parts = splitText(text, cfg.ChunkSize, cfg.ChunkOverlap)
	}
	for _, part := range parts {
		if EstimateTokens(part) < cfg.MinChunk {
			continue
		}
		*chunks = append(*chunks, Chunk{
			Text:       part,
			Index:      index,
			Breadcrumb: copyBreadcrumb(bc),
			Block:      block,
			Level:      level,
		})
		index++
	}
	return index
}

// splitText breaks text into chunks of approximately targetTokens, with overlap.
func splitText(text string, targetTokens, overlapTokens int) []string {
	// Split by paragraphs first.
	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		// If a single paragraph exceeds the target, split it further.
		if paraTokens > targetTokens {
			// Flush current buffer.
			if currentTokens > 0 {
				result = append(result, current.String())
				current.Reset()
				currentTokens = 0
			}
			// Split the large paragraph by sentences.
			subParts := splitBySentences(para, targetTokens, overlapTokens)
			result = append(result, subParts...)
			continue
		}

		// Would adding this paragraph exceed the target?
		if currentTokens+paraTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())

			// Start next chunk with overlap from end of current.
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitByParagraphs splits on double-newlines.
func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitBySentences breaks a large paragraph into sentence-based chunks.
func splitBySentences(text string, targetTokens, overlapTokens int) []string {
	sentences := splitSentences(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range sentences {
		sentTokens := EstimateTokens(sent)

		if currentTokens+sentTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitSentences does basic sentence splitting.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}

// getOverlapText extracts the last N tokens worth of text for overlap.
func getOverlapText(text string, targetTokens int) string {
	words := strings.Fields(text)
	// Approximate: 1.33 tokens per word.
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}

func copyBreadcrumb(bc []string) []string {
	if len(bc) == 0 {
		return nil
	}
	out := make([]string, len(bc))
	copy(out, bc)
	return out
}
