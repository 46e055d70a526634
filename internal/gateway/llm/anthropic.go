package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"adpulse/internal/config"
	"adpulse/internal/logger"
	"adpulse/internal/pkg/circuit"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicClient uses the Messages API. The SDK retries 429/5xx itself.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
	breaker   *circuit.Breaker
}

func NewAnthropic(cfg config.LLMConfig) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// the SDK retries twice unless told otherwise, so 0 is passed through
	opts = append(opts, option.WithMaxRetries(max(cfg.MaxRetries, 0)))
	if cfg.TimeoutSeconds > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
		breaker:   circuit.New("llm:anthropic", breakerThreshold, breakerCooldown),
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) params(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		p.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == "assistant" {
			p.Messages = append(p.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			p.Messages = append(p.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return p
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	logger.LogLLMRequest(c.Name(), req.Purpose, req.System, req.UserText(), "")
	var out strings.Builder
	err := c.breaker.Execute(func() error {
		msg, err := c.client.Messages.New(ctx, c.params(req))
		if err != nil {
			return err
		}
		for _, block := range msg.Content {
			if block.Type == "text" {
				out.WriteString(block.Text)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	logger.LogLLMResponse(c.Name(), req.Purpose, out.String())
	return out.String(), nil
}

func (c *AnthropicClient) Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	logger.LogLLMRequest(c.Name(), req.Purpose, req.System, req.UserText(), "")
	var out strings.Builder
	// a failed onDelta is the caller's problem, not the upstream's
	var writeErr error
	err := c.breaker.Execute(func() error {
		stream := c.client.Messages.NewStreaming(ctx, c.params(req))
		defer stream.Close()
		for stream.Next() {
			ev, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			out.WriteString(delta.Text)
			if onDelta != nil {
				if writeErr = onDelta(delta.Text); writeErr != nil {
					return nil
				}
			}
		}
		return stream.Err()
	})
	if writeErr != nil {
		return out.String(), writeErr
	}
	if err != nil {
		return out.String(), fmt.Errorf("anthropic: %w", err)
	}
	logger.LogLLMResponse(c.Name(), req.Purpose, out.String())
	return out.String(), nil
}
