// Package ingestion handles PDF text extraction, chunking, and handoff to
// the vector store.
package ingestion

import (
	"strings"
	"unicode/utf8"

	"docqa/vectorstore"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Page is one page of extracted document text, page numbers starting at 1.
type Page struct {
	Number int
	Text   string
}

// Splitter cuts page text into overlapping segments, preferring paragraph
// breaks, then line breaks, then spaces, and hard-cutting only when a window
// contains no such boundary.
type Splitter struct {
	size    int
	overlap int
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split chunks every page and tags each segment with its position. Chunk
// indices restart at 0 on every page; output is page-major, then
// chunk-index ascending. Summarization depends on that ordering being
// reconstructible from the metadata.
func (s *Splitter) Split(pages []Page, docID int64, filename string) []vectorstore.Chunk {
	var chunks []vectorstore.Chunk
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for idx, segment := range s.splitText(page.Text) {
			chunks = append(chunks, vectorstore.Chunk{
				Text: segment,
				Metadata: vectorstore.Metadata{
					DocID:      docID,
					Filename:   filename,
					PageNumber: page.Number,
					ChunkIndex: idx,
				},
			})
		}
	}
	return chunks
}

var separators = []string{"\n\n", "\n", " "}

func (s *Splitter) splitText(text string) []string {
	if len(text) <= s.size {
		return []string{text}
	}

	var segments []string
	start := 0
	for start < len(text) {
		if len(text)-start <= s.size {
			segments = append(segments, text[start:])
			break
		}

		window := text[start : start+s.size]
		cut := -1
		for _, sep := range separators {
			if idx := strings.LastIndex(window, sep); idx > 0 {
				cut = idx + len(sep)
				break
			}
		}
		if cut <= 0 {
			// No boundary in the window: hard cut, backed up to a rune start.
			cut = s.size
			for cut > 0 && !utf8.RuneStart(text[start+cut]) {
				cut--
			}
			if cut == 0 {
				cut = s.size
			}
		}

		segments = append(segments, text[start:start+cut])

		next := start + cut - s.overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = start + cut
		}
		start = next
	}

	return segments
}
