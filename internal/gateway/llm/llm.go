// Package llm talks to chat-completion providers: any OpenAI-compatible
// /chat/completions endpoint, or Anthropic through its SDK.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adpulse/internal/config"
	"adpulse/internal/pkg/circuit"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// Purpose tags the LLM log entry.
	Purpose string
}

// UserText is the last user message, used for logging.
func (r Request) UserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Client is a completion provider. Stream calls onDelta for every text
// fragment and returns the full text.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error)
}

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
	defaultMaxTokens = 1024
)

// New builds the client selected by cfg.Provider.
func New(cfg config.LLMConfig) (Client, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return &OpenAIClient{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			Timeout:      timeout,
			MaxRetries:   cfg.MaxRetries,
			MaxTokens:    cfg.MaxTokens,
			ExtraHeaders: cfg.Headers,
			Breaker:      circuit.New("llm:openai", breakerThreshold, breakerCooldown),
		}, nil
	case "anthropic":
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
