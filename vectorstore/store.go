// Package vectorstore maintains one persistent vector index per user and
// serves k-nearest-neighbor searches over it.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"docqa/embeddings"
)

const defaultTopK = 5

// ErrCorrupt marks on-disk index/metadata artifacts that disagree with each
// other. The store refuses to load rather than serve misaligned results.
var ErrCorrupt = errors.New("corrupt vector store")

// Store holds one user's embedded chunks. The metadata records and the flat
// vector matrix are parallel: row i of the matrix belongs to records[i].
// Mutations take the write lock and persist before returning; searches share
// the read lock.
type Store struct {
	mu       sync.RWMutex
	dir      string
	embedder embeddings.Embedder
	logger   zerolog.Logger

	dim     int
	vectors []float32 // row-major, len == dim*len(records)
	records []record
}

// Open loads the store persisted under dir, creating an empty one when no
// artifacts exist yet.
func Open(dir string, embedder embeddings.Embedder, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &Store{
		dir:      dir,
		embedder: embedder,
		logger:   logger,
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Add embeds the batch with a single provider call and appends it to the
// index. An empty batch is a no-op. On any failure, including context
// cancellation, the store is left exactly as it was before the call.
func (s *Store) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunk batch: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("%w: expected %d embeddings, got %d", embeddings.ErrEmbed, len(chunks), len(vecs))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	if dim == 0 {
		dim = len(vecs[0])
	}
	for i, vec := range vecs {
		if len(vec) != dim {
			return fmt.Errorf("%w: embedding %d has dimension %d, want %d", embeddings.ErrEmbed, i, len(vec), dim)
		}
	}

	prevRecords := len(s.records)
	prevVectors := len(s.vectors)
	prevDim := s.dim

	s.dim = dim
	for i, chunk := range chunks {
		s.records = append(s.records, record{
			Text:      chunk.Text,
			Metadata:  chunk.Metadata,
			Embedding: vecs[i],
		})
		s.vectors = append(s.vectors, vecs[i]...)
	}

	if err := s.persist(); err != nil {
		s.records = s.records[:prevRecords]
		s.vectors = s.vectors[:prevVectors]
		s.dim = prevDim
		return err
	}

	s.logger.Debug().Int("chunks", len(chunks)).Int("total", len(s.records)).Msg("added chunks to vector store")
	return nil
}

// Search returns the k nearest stored chunks by squared L2 distance, nearest
// first. An empty store returns no results without calling the embedding
// provider. k is clamped to the number of stored chunks.
func (s *Store) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = defaultTopK
	}

	s.mu.RLock()
	empty := len(s.records) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vectors", embeddings.ErrEmbed)
	}
	queryVec := vecs[0]

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, nil
	}
	if len(queryVec) != s.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", embeddings.ErrEmbed, len(queryVec), s.dim)
	}
	if k > len(s.records) {
		k = len(s.records)
	}

	type scored struct {
		idx  int
		dist float64
	}
	distances := make([]scored, len(s.records))
	for i := range s.records {
		row := s.vectors[i*s.dim : (i+1)*s.dim]
		var sum float64
		for j, v := range row {
			d := float64(queryVec[j]) - float64(v)
			sum += d * d
		}
		distances[i] = scored{idx: i, dist: sum}
	}

	sort.Slice(distances, func(i, j int) bool { return distances[i].dist < distances[j].dist })

	results := make([]SearchResult, 0, k)
	for _, hit := range distances[:k] {
		rec := s.records[hit.idx]
		results = append(results, SearchResult{
			Chunk: Chunk{Text: rec.Text, Metadata: rec.Metadata},
			Score: hit.dist,
		})
	}

	return results, nil
}

// DeleteDocument removes every chunk belonging to docID and rebuilds the
// index from the surviving records' stored embeddings, without any provider
// calls. A docID with no chunks is a no-op that touches neither memory nor
// disk.
func (s *Store) DeleteDocument(docID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	surviving := make([]record, 0, len(s.records))
	for _, rec := range s.records {
		if rec.Metadata.DocID != docID {
			surviving = append(surviving, rec)
		}
	}

	if len(surviving) == len(s.records) {
		return nil
	}

	s.records = surviving
	s.rebuildVectors()

	if err := s.persist(); err != nil {
		return err
	}

	s.logger.Debug().Int64("doc_id", docID).Int("remaining", len(s.records)).Msg("deleted document from vector store")
	return nil
}

// Clear empties the store and persists the empty state immediately.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.vectors = nil
	s.dim = 0

	return s.persist()
}

// ChunkCount reports the number of stored chunks.
func (s *Store) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// DocumentCount reports the number of distinct documents present.
func (s *Store) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{}, len(s.records))
	for _, rec := range s.records {
		seen[rec.Metadata.DocID] = struct{}{}
	}
	return len(seen)
}

// DocumentChunks returns every stored chunk for docID in storage order.
// Callers that need document order must sort by (page, chunk index).
func (s *Store) DocumentChunks(docID int64) []Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chunks []Chunk
	for _, rec := range s.records {
		if rec.Metadata.DocID == docID {
			chunks = append(chunks, Chunk{Text: rec.Text, Metadata: rec.Metadata})
		}
	}
	return chunks
}

// rebuildVectors regenerates the flat matrix from the records' retained
// embeddings. Caller must hold the write lock.
func (s *Store) rebuildVectors() {
	if len(s.records) == 0 {
		s.vectors = nil
		s.dim = 0
		return
	}

	s.dim = len(s.records[0].Embedding)
	s.vectors = make([]float32, 0, len(s.records)*s.dim)
	for _, rec := range s.records {
		s.vectors = append(s.vectors, rec.Embedding...)
	}
}
