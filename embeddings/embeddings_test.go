package embeddings

import (
	"testing"

	"docqa/config"
)

func TestNewEmbedderSelectsProvider(t *testing.T) {
	cfg := config.Config{OllamaHost: "http://localhost:11434"}
	cfg.Embeddings.Provider = config.ProviderOllama
	cfg.Embeddings.Model = "nomic-embed-text"

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder == nil {
		t.Fatal("expected an embedder")
	}
}

func TestNewEmbedderRequiresOpenAIKey(t *testing.T) {
	cfg := config.Config{}
	cfg.Embeddings.Provider = config.ProviderOpenAI

	if _, err := NewEmbedder(cfg); err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func TestNewEmbedderRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{}
	cfg.Embeddings.Provider = "semaphore-flags"

	if _, err := NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
