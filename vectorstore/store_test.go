package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"docqa/embeddings"
)

type stubEmbedder struct {
	vectors map[string][]float32
	dim     int
	calls   int
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := s.vectors[text]
		if !ok {
			vec = make([]float32, s.dim)
		}
		out[i] = vec
	}
	return out, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

func testChunk(text string, docID int64, page, idx int) Chunk {
	return Chunk{
		Text: text,
		Metadata: Metadata{
			DocID:      docID,
			Filename:   "doc.pdf",
			PageNumber: page,
			ChunkIndex: idx,
		},
	}
}

func openTestStore(t *testing.T, dir string, embedder embeddings.Embedder) *Store {
	t.Helper()
	store, err := Open(dir, embedder, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestSearchOrdersByDistance(t *testing.T) {
	embedder := &stubEmbedder{dim: 2, vectors: map[string][]float32{
		"apple":  {1, 0},
		"banana": {0, 1},
		"cherry": {0.9, 0.1},
		"query":  {1, 0},
	}}
	store := openTestStore(t, t.TempDir(), embedder)

	chunks := []Chunk{
		testChunk("apple", 1, 1, 0),
		testChunk("banana", 1, 1, 1),
		testChunk("cherry", 1, 2, 0),
	}
	if err := store.Add(context.Background(), chunks); err != nil {
		t.Fatalf("add: %v", err)
	}

	results, err := store.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Text != "apple" || results[1].Text != "cherry" || results[2].Text != "banana" {
		t.Fatalf("unexpected order: %q, %q, %q", results[0].Text, results[1].Text, results[2].Text)
	}
	if results[0].Score > results[1].Score || results[1].Score > results[2].Score {
		t.Fatalf("scores not ascending: %v, %v, %v", results[0].Score, results[1].Score, results[2].Score)
	}
}

func TestSearchClampsK(t *testing.T) {
	embedder := &stubEmbedder{dim: 2}
	store := openTestStore(t, t.TempDir(), embedder)

	if err := store.Add(context.Background(), []Chunk{testChunk("only", 1, 1, 0)}); err != nil {
		t.Fatalf("add: %v", err)
	}

	results, err := store.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestSearchEmptyStoreSkipsEmbedding(t *testing.T) {
	embedder := &stubEmbedder{dim: 2}
	store := openTestStore(t, t.TempDir(), embedder)

	results, err := store.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if embedder.calls != 0 {
		t.Fatalf("expected no embedder calls, got %d", embedder.calls)
	}
}

func TestAddEmptyBatchIsNoOp(t *testing.T) {
	embedder := &stubEmbedder{dim: 2}
	dir := t.TempDir()
	store := openTestStore(t, dir, embedder)

	if err := store.Add(context.Background(), nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if embedder.calls != 0 {
		t.Fatalf("expected no embedder calls, got %d", embedder.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected no metadata file for empty store")
	}
}

func TestAddRollsBackOnEmbedFailure(t *testing.T) {
	embedder := &stubEmbedder{dim: 2, err: errors.New("provider down")}
	store := openTestStore(t, t.TempDir(), embedder)

	if err := store.Add(context.Background(), []Chunk{testChunk("text", 1, 1, 0)}); err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if store.ChunkCount() != 0 {
		t.Fatalf("expected empty store after failed add, got %d chunks", store.ChunkCount())
	}
}

func TestDeleteDocumentRemovesOnlyThatDocument(t *testing.T) {
	embedder := &stubEmbedder{dim: 2, vectors: map[string][]float32{
		"first":  {1, 0},
		"second": {0, 1},
	}}
	store := openTestStore(t, t.TempDir(), embedder)

	chunks := []Chunk{
		testChunk("first", 1, 1, 0),
		testChunk("second", 2, 1, 0),
	}
	if err := store.Add(context.Background(), chunks); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := store.DeleteDocument(1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if store.DocumentCount() != 1 {
		t.Fatalf("expected 1 document, got %d", store.DocumentCount())
	}
	if got := store.DocumentChunks(1); len(got) != 0 {
		t.Fatalf("expected no chunks for deleted document, got %d", len(got))
	}

	results, err := store.Search(context.Background(), "first", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Text != "second" {
		t.Fatalf("expected only the surviving chunk, got %+v", results)
	}
}

func TestDeleteUnknownDocumentIsNoOp(t *testing.T) {
	embedder := &stubEmbedder{dim: 2}
	dir := t.TempDir()
	store := openTestStore(t, dir, embedder)

	if err := store.DeleteDocument(42); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("no-op delete should not persist anything")
	}
}

func TestPersistAndReload(t *testing.T) {
	embedder := &stubEmbedder{dim: 2, vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {0, 1},
		"query": {0.9, 0},
	}}
	dir := t.TempDir()
	store := openTestStore(t, dir, embedder)

	chunks := []Chunk{
		testChunk("alpha", 1, 1, 0),
		testChunk("beta", 1, 2, 0),
	}
	if err := store.Add(context.Background(), chunks); err != nil {
		t.Fatalf("add: %v", err)
	}

	reloaded := openTestStore(t, dir, embedder)
	callsAfterOpen := embedder.calls

	if reloaded.ChunkCount() != 2 {
		t.Fatalf("expected 2 chunks after reload, got %d", reloaded.ChunkCount())
	}
	if callsAfterOpen != 1 {
		t.Fatalf("reload should not embed, got %d calls", embedder.calls)
	}

	results, err := reloaded.Search(context.Background(), "query", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Text != "alpha" {
		t.Fatalf("unexpected nearest chunk after reload: %+v", results)
	}
	if results[0].Metadata.PageNumber != 1 || results[0].Metadata.DocID != 1 {
		t.Fatalf("metadata lost across reload: %+v", results[0].Metadata)
	}
}

func TestReloadRebuildsMissingIndex(t *testing.T) {
	embedder := &stubEmbedder{dim: 2, vectors: map[string][]float32{
		"alpha": {1, 0},
	}}
	dir := t.TempDir()
	store := openTestStore(t, dir, embedder)

	if err := store.Add(context.Background(), []Chunk{testChunk("alpha", 1, 1, 0)}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, indexFile)); err != nil {
		t.Fatalf("remove index: %v", err)
	}

	callsBefore := embedder.calls
	reloaded := openTestStore(t, dir, embedder)
	if embedder.calls != callsBefore {
		t.Fatal("rebuild must not call the embedding provider")
	}
	if reloaded.ChunkCount() != 1 {
		t.Fatalf("expected 1 chunk after rebuild, got %d", reloaded.ChunkCount())
	}
	if _, err := os.Stat(filepath.Join(dir, indexFile)); err != nil {
		t.Fatalf("rebuild should rewrite the index file: %v", err)
	}
}

func TestIndexWithoutMetadataIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, indexFile), []byte("DQIX garbage"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	if _, err := Open(dir, &stubEmbedder{dim: 2}, zerolog.Nop()); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestClearEmptiesStoreAcrossReload(t *testing.T) {
	embedder := &stubEmbedder{dim: 2}
	dir := t.TempDir()
	store := openTestStore(t, dir, embedder)

	if err := store.Add(context.Background(), []Chunk{testChunk("alpha", 1, 1, 0)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if store.ChunkCount() != 0 || store.DocumentCount() != 0 {
		t.Fatalf("expected empty store, got %d chunks", store.ChunkCount())
	}

	reloaded := openTestStore(t, dir, embedder)
	if reloaded.ChunkCount() != 0 {
		t.Fatalf("expected empty store after reload, got %d chunks", reloaded.ChunkCount())
	}
}
