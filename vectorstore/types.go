package vectorstore

// Metadata locates a chunk inside a user's document corpus.
type Metadata struct {
	DocID      int64  `json:"doc_id"`
	Filename   string `json:"filename"`
	PageNumber int    `json:"page_number"`
	ChunkIndex int    `json:"chunk_index"`
}

// Chunk is the unit of retrievable text.
type Chunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// SearchResult is a chunk scored by squared L2 distance to the query
// embedding. Lower scores are closer matches; the score is a raw distance,
// not a similarity in [0,1].
type SearchResult struct {
	Chunk
	Score float64
}

// record is what gets persisted per chunk. The embedding is kept alongside
// the text so a rebuild after delete never re-calls the embedding provider.
type record struct {
	Text      string    `json:"text"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"embedding"`
}
