package llm

import (
	"errors"
	"testing"

	"docqa/config"
)

func TestNewClientSelectsProvider(t *testing.T) {
	cfg := config.Config{OllamaHost: "http://localhost:11434"}
	cfg.LLM.Provider = config.ProviderOllama
	cfg.LLM.Model = "llama3.1"

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client")
	}
}

func TestNewClientRequiresOpenAIKey(t *testing.T) {
	cfg := config.Config{}
	cfg.LLM.Provider = config.ProviderOpenAI
	cfg.LLM.Model = "gpt-4o-mini"

	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{}
	cfg.LLM.Provider = "carrier-pigeon"

	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestRateLimitedWrapsGenerate(t *testing.T) {
	if !errors.Is(ErrRateLimited, ErrGenerate) {
		t.Fatal("ErrRateLimited must wrap ErrGenerate")
	}
}
