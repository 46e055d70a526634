// Package intent is the client for the analytics backend that turns a chat
// prompt into a structured intent plus the data rows answering it.
package intent

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"adpulse/internal/config"
	"adpulse/internal/gateway"
	"adpulse/internal/logger"
	"adpulse/internal/pkg/jsonutil"
)

const path = "/api/analytics/intent"

//go:embed schema.json
var schemaJSON string

var responseSchema = mustCompile(schemaJSON)

func mustCompile(src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("intent.json", strings.NewReader(src)); err != nil {
		panic(err)
	}
	return c.MustCompile("intent.json")
}

type Intent struct {
	Intent        string           `json:"intent"`
	Visualization string           `json:"visualization,omitempty"`
	Title         string           `json:"title,omitempty"`
	Summary       string           `json:"summary,omitempty"`
	Data          []map[string]any `json:"data,omitempty"`
	XKey          string           `json:"xKey,omitempty"`
	YKeys         []string         `json:"yKeys,omitempty"`
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries int
	Sleep      gateway.Sleeper
}

func New(cfg config.IntentConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		MaxRetries: 1,
	}
}

// Classify posts the prompt and validates the reply before decoding it.
func (c *Client) Classify(ctx context.Context, prompt, threadID string) (*Intent, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("intent: base_url is not configured")
	}
	body, _ := json.Marshal(map[string]string{"prompt": prompt, "threadId": threadID})
	var raw []byte
	err := gateway.Retry(ctx, c.MaxRetries, c.Sleep, func(int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return gateway.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode/100 != 2 {
			return gateway.NewStatusError("intent", resp, time.Now())
		}
		defer resp.Body.Close()
		raw, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Decode validates raw against the response schema and decodes it. Backends
// that wrap the document in prose or a code fence are tolerated.
func Decode(raw []byte) (*Intent, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		obj, ok := jsonutil.ExtractObject(string(raw))
		if !ok {
			return nil, fmt.Errorf("intent: invalid json: %w", err)
		}
		raw = []byte(obj)
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("intent: invalid json: %w", err)
		}
	}
	if err := responseSchema.Validate(doc); err != nil {
		logger.Warnf("intent: response failed schema: %v", err)
		return nil, fmt.Errorf("intent: unexpected response: %w", err)
	}
	var out Intent
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("intent: decode: %w", err)
	}
	return &out, nil
}
