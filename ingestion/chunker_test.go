package ingestion

import (
	"strings"
	"testing"
)

func TestSplitTextShortInputIsSingleSegment(t *testing.T) {
	s := NewSplitter(100, 20)
	segments := s.splitText("short text")
	if len(segments) != 1 || segments[0] != "short text" {
		t.Fatalf("unexpected segments: %#v", segments)
	}
}

func TestSplitTextPrefersSpaceBoundary(t *testing.T) {
	s := NewSplitter(10, 3)
	segments := s.splitText("aaaa bbbb cccc")

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %#v", segments)
	}
	if segments[0] != "aaaa bbbb " {
		t.Fatalf("first segment should end at the space boundary, got %q", segments[0])
	}
	if segments[1] != "bb cccc" {
		t.Fatalf("second segment should start inside the overlap, got %q", segments[1])
	}
}

func TestSplitTextPrefersParagraphOverSpace(t *testing.T) {
	s := NewSplitter(12, 3)
	segments := s.splitText("ab cd\n\nef gh ij kl")

	if segments[0] != "ab cd\n\n" {
		t.Fatalf("expected paragraph boundary cut, got %q", segments[0])
	}
}

func TestSplitTextHardCutWithoutBoundaries(t *testing.T) {
	s := NewSplitter(10, 3)
	text := strings.Repeat("a", 25)
	segments := s.splitText(text)

	if len(segments) < 3 {
		t.Fatalf("expected multiple segments, got %d", len(segments))
	}
	for i, segment := range segments {
		if len(segment) > 10 {
			t.Fatalf("segment %d exceeds size: %q", i, segment)
		}
	}
	if !strings.HasSuffix(text, segments[len(segments)-1]) {
		t.Fatalf("last segment must close out the text, got %q", segments[len(segments)-1])
	}
}

func TestSplitTextOverlapCarriesTrailingText(t *testing.T) {
	s := NewSplitter(10, 4)
	segments := s.splitText("aaaa bbbb cccc dddd")

	for i := 1; i < len(segments); i++ {
		tail := segments[i-1][len(segments[i-1])-4:]
		if !strings.HasPrefix(segments[i], tail) {
			t.Fatalf("segment %d does not start with previous tail %q: %q", i, tail, segments[i])
		}
	}
}

func TestSplitSkipsBlankPagesAndRestartsIndices(t *testing.T) {
	s := NewSplitter(10, 3)
	pages := []Page{
		{Number: 1, Text: "aaaa bbbb cccc"},
		{Number: 2, Text: "   \n  "},
		{Number: 3, Text: "dddd"},
	}

	chunks := s.Split(pages, 7, "report.pdf")

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	if chunks[0].Metadata.PageNumber != 1 || chunks[0].Metadata.ChunkIndex != 0 {
		t.Fatalf("unexpected first chunk metadata: %+v", chunks[0].Metadata)
	}
	if chunks[1].Metadata.PageNumber != 1 || chunks[1].Metadata.ChunkIndex != 1 {
		t.Fatalf("unexpected second chunk metadata: %+v", chunks[1].Metadata)
	}
	if chunks[2].Metadata.PageNumber != 3 || chunks[2].Metadata.ChunkIndex != 0 {
		t.Fatalf("chunk index must restart on a new page: %+v", chunks[2].Metadata)
	}

	for _, chunk := range chunks {
		if chunk.Metadata.DocID != 7 || chunk.Metadata.Filename != "report.pdf" {
			t.Fatalf("chunk missing document metadata: %+v", chunk.Metadata)
		}
	}
}

func TestNewSplitterRejectsBadOverlap(t *testing.T) {
	s := NewSplitter(10, 15)
	if s.overlap >= s.size {
		t.Fatalf("overlap %d must be smaller than size %d", s.overlap, s.size)
	}

	s = NewSplitter(0, -1)
	if s.size != defaultChunkSize || s.overlap != defaultChunkOverlap {
		t.Fatalf("expected defaults, got size=%d overlap=%d", s.size, s.overlap)
	}
}
