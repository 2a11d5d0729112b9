// Package rag answers questions about a user's documents by retrieving
// relevant chunks and asking a completion provider to compose an answer
// strictly from that context.
package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"docqa/llm"
	"docqa/vectorstore"
)

const (
	defaultTopK = 5

	answerTemperature  = 0.1
	answerMaxTokens    = 1000
	summaryTemperature = 0.3
	summaryMaxTokens   = 500

	greetingMaxWords = 10
	previewLength    = 200
	summaryChunkCap  = 20
)

// Fixed response texts. The no-documents and greeting answers are successful
// outcomes, not errors; callers and tests rely on the exact strings.
const (
	greetingAnswer = "Hello! 👋 I'm your document assistant. I can help you find information from your uploaded documents, answer questions, and provide summaries. What would you like to know?"

	noDocumentsAnswer = "No documents have been uploaded yet. Please upload documents to ask questions."

	// NotFoundMessage is what callers show when summarization hits
	// ErrNotFound.
	NotFoundMessage = "Document not found in vector store."
)

// ErrNotFound marks a summarize request for a document with no stored
// chunks.
var ErrNotFound = errors.New("document not found in vector store")

var greetings = []string{
	"hi", "hello", "hey", "greetings", "good morning", "good afternoon",
	"good evening", "howdy", "what's up", "whats up", "sup",
	"how are you", "how do you do", "nice to meet you",
}

// ChunkSource is the retrieval capability the pipeline needs from a user's
// vector store.
type ChunkSource interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error)
	DocumentChunks(docID int64) []vectorstore.Chunk
}

// Source identifies where part of an answer came from. The (DocID,
// PageNumber) pair is unique within one result.
type Source struct {
	DocID       int64  `json:"doc_id"`
	Filename    string `json:"filename"`
	PageNumber  int    `json:"page_number"`
	TextPreview string `json:"text_preview"`
}

type QueryResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Pipeline runs retrieval-augmented question answering over one user's
// chunk store. It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	store  ChunkSource
	llm    llm.Client
	topK   int
	logger zerolog.Logger
}

func NewPipeline(store ChunkSource, client llm.Client, topK int, logger zerolog.Logger) *Pipeline {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Pipeline{
		store:  store,
		llm:    client,
		topK:   topK,
		logger: logger,
	}
}

// Query answers a question from the user's documents. Prior session turns
// may be supplied as history; they are placed between the system prompt and
// the current question. Greetings and an empty corpus short-circuit with
// fixed answers and no provider calls (no retrieval happens for greetings).
func (p *Pipeline) Query(ctx context.Context, question string, history []llm.Message) (QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return QueryResult{}, fmt.Errorf("question cannot be empty")
	}

	if isGreeting(question) {
		return QueryResult{Answer: greetingAnswer, Sources: []Source{}}, nil
	}

	results, err := p.store.Search(ctx, question, p.topK)
	if err != nil {
		return QueryResult{}, fmt.Errorf("retrieve context: %w", err)
	}

	if len(results) == 0 {
		return QueryResult{Answer: noDocumentsAnswer, Sources: []Source{}}, nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: answerSystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: buildAnswerPrompt(question, results)})

	answer, err := p.llm.Generate(ctx, messages, llm.GenerateOptions{
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		return QueryResult{}, fmt.Errorf("generate answer: %w", err)
	}

	p.logger.Debug().Int("retrieved", len(results)).Msg("answered question from context")

	return QueryResult{
		Answer:  strings.TrimSpace(answer),
		Sources: extractSources(results),
	}, nil
}

// SummarizeDocument produces a structured summary of one document from its
// stored chunks. A doc_id with no chunks returns ErrNotFound without calling
// the completion provider.
func (p *Pipeline) SummarizeDocument(ctx context.Context, docID int64, filename string) (string, error) {
	chunks := p.store.DocumentChunks(docID)
	if len(chunks) == 0 {
		return "", ErrNotFound
	}

	// Storage order drifts after deletes and rebuilds; restore original
	// document order before concatenating.
	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i].Metadata, chunks[j].Metadata
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		return a.ChunkIndex < b.ChunkIndex
	})

	if len(chunks) > summaryChunkCap {
		chunks = chunks[:summaryChunkCap]
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	combined := strings.Join(texts, "\n\n")

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: summarySystemPrompt},
		{Role: llm.RoleUser, Content: buildSummaryPrompt(filename, combined)},
	}

	summary, err := p.llm.Generate(ctx, messages, llm.GenerateOptions{
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	return strings.TrimSpace(summary), nil
}

func isGreeting(question string) bool {
	lowered := strings.ToLower(strings.TrimSpace(question))
	if len(strings.Fields(lowered)) >= greetingMaxWords {
		return false
	}
	for _, greeting := range greetings {
		if strings.Contains(lowered, greeting) {
			return true
		}
	}
	return false
}

// extractSources walks retrieved chunks nearest-first and keeps the first
// occurrence of each (doc, page) pair.
func extractSources(results []vectorstore.SearchResult) []Source {
	type sourceKey struct {
		docID int64
		page  int
	}

	seen := make(map[sourceKey]struct{}, len(results))
	sources := make([]Source, 0, len(results))

	for _, result := range results {
		meta := result.Metadata
		key := sourceKey{docID: meta.DocID, page: meta.PageNumber}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		sources = append(sources, Source{
			DocID:       meta.DocID,
			Filename:    meta.Filename,
			PageNumber:  meta.PageNumber,
			TextPreview: preview(result.Text),
		})
	}

	return sources
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return string(runes) + "..."
}
