package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"adpulse/internal/gateway"
	"adpulse/internal/logger"
	"adpulse/internal/pkg/circuit"
)

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint
// (OpenAI, DeepSeek, Qwen, local gateways).
type OpenAIClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	MaxTokens    int
	ExtraHeaders map[string]string
	Breaker      *circuit.Breaker
	HTTPClient   *http.Client
	Sleep        gateway.Sleeper
}

func (c *OpenAIClient) Name() string { return "openai" }

// endpoint tolerates base URLs that already end in /chat/completions.
func (c *OpenAIClient) endpoint() string {
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *OpenAIClient) httpClient(stream bool) *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if stream {
		// a streamed answer may legitimately outlive the request timeout
		return &http.Client{}
	}
	return &http.Client{Timeout: timeout}
}

func (c *OpenAIClient) body(req Request, stream bool) []byte {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = 0.5
	}
	body := map[string]any{"model": c.Model, "messages": messages, "temperature": temp, "max_tokens": maxTokens}
	if stream {
		body["stream"] = true
	}
	b, _ := json.Marshal(body)
	return b
}

// maskedHeaders is what the debug log shows: secrets keep their last 4
// characters only.
func (c *OpenAIClient) maskedHeaders() map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" {
		out["Authorization"] = "Bearer ****" + tail(c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "key") || strings.Contains(lk, "token") || strings.Contains(lk, "auth") {
			v = "****" + tail(v)
		}
		out[k] = v
	}
	return out
}

func tail(s string) string {
	if len(s) > 4 {
		return s[len(s)-4:]
	}
	return ""
}

func (c *OpenAIClient) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

// send posts body with retries on 429/5xx and returns the 2xx response.
func (c *OpenAIClient) send(ctx context.Context, body []byte, stream bool) (*http.Response, error) {
	logger.Debugf("[llm] POST %s headers=%v bytes=%d", c.endpoint(), c.maskedHeaders(), len(body))
	httpc := c.httpClient(stream)
	var resp *http.Response
	err := c.Breaker.Execute(func() error {
		return gateway.Retry(ctx, c.maxRetries(), c.Sleep, func(attempt int) error {
			req, err := c.newRequest(ctx, body)
			if err != nil {
				return gateway.Permanent(err)
			}
			r, err := httpc.Do(req)
			if err != nil {
				return err
			}
			if r.StatusCode/100 != 2 {
				se := gateway.NewStatusError("llm", r, time.Now())
				if attempt < c.maxRetries() && se.Retryable() {
					logger.Warnf("[llm] attempt %d: %v", attempt+1, se)
				}
				return se
			}
			resp = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// maxRetries is the configured count; zero disables retrying.
func (c *OpenAIClient) maxRetries() int {
	return max(c.MaxRetries, 0)
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	body := c.body(req, false)
	logger.LogLLMRequest(c.Name(), req.Purpose, req.System, req.UserText(), string(body))
	resp, err := c.send(ctx, body, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", err
	}
	raw := buf.String()
	logger.LogLLMResponse(c.Name(), req.Purpose, raw)
	content := gjson.Get(raw, "choices.0.message.content")
	if !content.Exists() {
		return "", errors.New("llm: empty choices")
	}
	return content.String(), nil
}

// Stream reads the SSE body: "data: {json}" lines until "data: [DONE]".
func (c *OpenAIClient) Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	body := c.body(req, true)
	logger.LogLLMRequest(c.Name(), req.Purpose, req.System, req.UserText(), string(body))
	resp, err := c.send(ctx, body, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		if msg := gjson.Get(data, "error.message"); msg.Exists() {
			return full.String(), fmt.Errorf("llm stream: %s", msg.String())
		}
		delta := gjson.Get(data, "choices.0.delta.content").String()
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return full.String(), err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return full.String(), fmt.Errorf("llm stream: %w", err)
	}
	logger.LogLLMResponse(c.Name(), req.Purpose, full.String())
	return full.String(), nil
}
