// Package llm generates text from chat-style prompts via an external
// completion provider.
package llm

import (
	"context"
	"errors"
	"fmt"

	"docqa/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrGenerate marks provider or network failures during completion.
	ErrGenerate = errors.New("generation failed")
	// ErrRateLimited marks provider throttling; it wraps ErrGenerate so a
	// single errors.Is(err, ErrGenerate) check still covers it.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrGenerate)
)

type Message struct {
	Role    string
	Content string
}

// GenerateOptions bound a single completion call. Zero values fall back to
// provider defaults.
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
}

type Client interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
