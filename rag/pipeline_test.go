package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"docqa/llm"
	"docqa/vectorstore"
)

type stubSource struct {
	results     []vectorstore.SearchResult
	chunks      []vectorstore.Chunk
	err         error
	searchCalls int
	gotK        int
}

func (s *stubSource) Search(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	s.searchCalls++
	s.gotK = k
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubSource) DocumentChunks(docID int64) []vectorstore.Chunk {
	return s.chunks
}

var _ ChunkSource = (*stubSource)(nil)

type stubLLM struct {
	answer      string
	err         error
	calls       int
	gotMessages []llm.Message
	gotOpts     llm.GenerateOptions
}

func (s *stubLLM) Generate(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	s.calls++
	s.gotMessages = messages
	s.gotOpts = opts
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

var _ llm.Client = (*stubLLM)(nil)

func searchResult(text string, docID int64, page int) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		Chunk: vectorstore.Chunk{
			Text: text,
			Metadata: vectorstore.Metadata{
				DocID:      docID,
				Filename:   "doc.pdf",
				PageNumber: page,
			},
		},
	}
}

func TestQueryRejectsEmptyQuestion(t *testing.T) {
	p := NewPipeline(&stubSource{}, &stubLLM{}, 0, zerolog.Nop())
	if _, err := p.Query(context.Background(), "   ", nil); err == nil {
		t.Fatal("expected error for empty question")
	}
}

func TestQueryGreetingShortCircuits(t *testing.T) {
	store := &stubSource{}
	client := &stubLLM{}
	p := NewPipeline(store, client, 0, zerolog.Nop())

	result, err := p.Query(context.Background(), "Hello there!", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != greetingAnswer {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("greeting must have no sources, got %d", len(result.Sources))
	}
	if store.searchCalls != 0 || client.calls != 0 {
		t.Fatal("greeting must not hit the store or the model")
	}
}

func TestLongQuestionContainingGreetingIsNotGreeting(t *testing.T) {
	question := "hello can you explain the termination clause of the contract in section four please"
	if isGreeting(question) {
		t.Fatal("long questions must not short-circuit as greetings")
	}
}

func TestQueryEmptyCorpusReturnsFixedAnswer(t *testing.T) {
	client := &stubLLM{}
	p := NewPipeline(&stubSource{}, client, 0, zerolog.Nop())

	result, err := p.Query(context.Background(), "what does the report conclude?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != noDocumentsAnswer {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if client.calls != 0 {
		t.Fatal("empty corpus must not call the model")
	}
}

func TestQueryAnswersWithDedupedSources(t *testing.T) {
	store := &stubSource{results: []vectorstore.SearchResult{
		searchResult("first chunk on page one", 1, 1),
		searchResult("second chunk on page one", 1, 1),
		searchResult("chunk on page two", 1, 2),
	}}
	client := &stubLLM{answer: "  The report concludes X.  "}
	p := NewPipeline(store, client, 3, zerolog.Nop())

	result, err := p.Query(context.Background(), "what does the report conclude?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Answer != "The report concludes X." {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if store.gotK != 3 {
		t.Fatalf("expected k=3, got %d", store.gotK)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("expected 2 deduped sources, got %d", len(result.Sources))
	}
	if !strings.HasPrefix(result.Sources[0].TextPreview, "first chunk") {
		t.Fatalf("dedup must keep the nearest chunk, got %q", result.Sources[0].TextPreview)
	}
	if !strings.HasSuffix(result.Sources[0].TextPreview, "...") {
		t.Fatalf("preview must end with ellipsis, got %q", result.Sources[0].TextPreview)
	}

	if client.gotOpts.Temperature != answerTemperature || client.gotOpts.MaxTokens != answerMaxTokens {
		t.Fatalf("unexpected generate options: %+v", client.gotOpts)
	}
	if client.gotMessages[0].Role != llm.RoleSystem {
		t.Fatalf("first message must be the system prompt, got %s", client.gotMessages[0].Role)
	}
	last := client.gotMessages[len(client.gotMessages)-1]
	if last.Role != llm.RoleUser || !strings.Contains(last.Content, "[Source 1]") {
		t.Fatalf("final message must carry the numbered context, got %+v", last)
	}
}

func TestQueryThreadsHistoryBetweenSystemAndQuestion(t *testing.T) {
	store := &stubSource{results: []vectorstore.SearchResult{searchResult("context", 1, 1)}}
	client := &stubLLM{answer: "answer"}
	p := NewPipeline(store, client, 0, zerolog.Nop())

	history := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	}
	if _, err := p.Query(context.Background(), "follow-up?", history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.gotMessages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(client.gotMessages))
	}
	if client.gotMessages[1].Content != "earlier question" || client.gotMessages[2].Content != "earlier answer" {
		t.Fatalf("history must sit between system prompt and question: %+v", client.gotMessages)
	}
}

func TestQueryPropagatesGenerateError(t *testing.T) {
	store := &stubSource{results: []vectorstore.SearchResult{searchResult("context", 1, 1)}}
	client := &stubLLM{err: llm.ErrRateLimited}
	p := NewPipeline(store, client, 0, zerolog.Nop())

	_, err := p.Query(context.Background(), "what does the report conclude?", nil)
	if !errors.Is(err, llm.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestSummarizeMissingDocument(t *testing.T) {
	client := &stubLLM{}
	p := NewPipeline(&stubSource{}, client, 0, zerolog.Nop())

	_, err := p.SummarizeDocument(context.Background(), 9, "missing.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if client.calls != 0 {
		t.Fatal("missing document must not call the model")
	}
}

func TestSummarizeOrdersChunksByPageThenIndex(t *testing.T) {
	chunk := func(text string, page, idx int) vectorstore.Chunk {
		return vectorstore.Chunk{
			Text:     text,
			Metadata: vectorstore.Metadata{DocID: 1, PageNumber: page, ChunkIndex: idx},
		}
	}

	store := &stubSource{chunks: []vectorstore.Chunk{
		chunk("page two first", 2, 0),
		chunk("page one second", 1, 1),
		chunk("page one first", 1, 0),
	}}
	client := &stubLLM{answer: "summary"}
	p := NewPipeline(store, client, 0, zerolog.Nop())

	if _, err := p.SummarizeDocument(context.Background(), 1, "doc.pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := client.gotMessages[len(client.gotMessages)-1].Content
	first := strings.Index(prompt, "page one first")
	second := strings.Index(prompt, "page one second")
	third := strings.Index(prompt, "page two first")
	if first == -1 || second == -1 || third == -1 {
		t.Fatalf("prompt missing chunk text: %q", prompt)
	}
	if !(first < second && second < third) {
		t.Fatalf("chunks out of document order: %d, %d, %d", first, second, third)
	}
	if client.gotOpts.Temperature != summaryTemperature || client.gotOpts.MaxTokens != summaryMaxTokens {
		t.Fatalf("unexpected generate options: %+v", client.gotOpts)
	}
}

func TestSummarizeCapsChunkCount(t *testing.T) {
	var chunks []vectorstore.Chunk
	for i := 0; i < summaryChunkCap+5; i++ {
		chunks = append(chunks, vectorstore.Chunk{
			Text:     "chunk number " + string(rune('a'+i)),
			Metadata: vectorstore.Metadata{DocID: 1, PageNumber: 1, ChunkIndex: i},
		})
	}

	store := &stubSource{chunks: chunks}
	client := &stubLLM{answer: "summary"}
	p := NewPipeline(store, client, 0, zerolog.Nop())

	if _, err := p.SummarizeDocument(context.Background(), 1, "doc.pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := client.gotMessages[len(client.gotMessages)-1].Content
	if strings.Contains(prompt, "chunk number "+string(rune('a'+summaryChunkCap))) {
		t.Fatal("prompt must not include chunks past the cap")
	}
	if !strings.Contains(prompt, "chunk number a") {
		t.Fatal("prompt must include the earliest chunk")
	}
}
