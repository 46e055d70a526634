// Package imagegen generates ad creatives with Gemini image models.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"adpulse/internal/config"
	"adpulse/internal/gateway"
	"adpulse/internal/logger"
	"adpulse/internal/pkg/circuit"
)

// ErrNoImage means the model answered with text only.
var ErrNoImage = errors.New("imagegen: response contained no image")

type Generator struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	OutDir     string
	Client     *http.Client
	Breaker    *circuit.Breaker
	Sleep      gateway.Sleeper
	now        func() time.Time
}

type Result struct {
	Prompt string   `json:"prompt"`
	Text   string   `json:"text,omitempty"`
	Files  []string `json:"files"`
}

func New(cfg config.ImageGenConfig) *Generator {
	return &Generator{
		APIKey:     cfg.APIKey,
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Model:      cfg.Model,
		MaxRetries: max(cfg.MaxRetries, 0),
		OutDir:     cfg.OutDir,
		Client:     &http.Client{Timeout: 2 * time.Minute},
		Breaker:    circuit.New("imagegen", 3, time.Minute),
		now:        time.Now,
	}
}

func (g *Generator) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.BaseURL, g.Model)
}

// Generate asks for an image for prompt and writes every returned image to
// OutDir.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Result, error) {
	if g.APIKey == "" {
		return nil, fmt.Errorf("imagegen: api_key is not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("imagegen: empty prompt")
	}
	body, _ := json.Marshal(map[string]any{
		"contents": []any{map[string]any{
			"parts": []any{map[string]any{"text": prompt}},
		}},
		"generationConfig": map[string]any{
			"responseModalities": []string{"TEXT", "IMAGE"},
		},
	})

	var raw []byte
	err := g.Breaker.Execute(func() error {
		return gateway.Retry(ctx, g.MaxRetries, g.Sleep, func(attempt int) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(body))
			if err != nil {
				return gateway.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("x-goog-api-key", g.APIKey)
			resp, err := g.Client.Do(req)
			if err != nil {
				return err
			}
			if resp.StatusCode/100 != 2 {
				se := gateway.NewStatusError("imagegen", resp, time.Now())
				if se.Retryable() {
					logger.Warnf("imagegen: attempt %d: %v (wait %s)", attempt+1, se, gateway.Wait(se, attempt))
				}
				return se
			}
			defer resp.Body.Close()
			raw, err = io.ReadAll(resp.Body)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return g.save(prompt, raw)
}

func (g *Generator) save(prompt string, raw []byte) (*Result, error) {
	res := &Result{Prompt: prompt}
	var texts []string
	var images [][]byte
	var exts []string
	var decodeErr error
	gjson.GetBytes(raw, "candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		if t := part.Get("text"); t.Exists() {
			texts = append(texts, t.String())
		}
		inline := part.Get("inlineData")
		if !inline.Exists() {
			inline = part.Get("inline_data")
		}
		if !inline.Exists() {
			return true
		}
		data, err := base64.StdEncoding.DecodeString(inline.Get("data").String())
		if err != nil {
			decodeErr = fmt.Errorf("imagegen: decode image: %w", err)
			return false
		}
		mime := inline.Get("mimeType").String()
		if mime == "" {
			mime = inline.Get("mime_type").String()
		}
		images = append(images, data)
		exts = append(exts, extFor(mime))
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	res.Text = strings.TrimSpace(strings.Join(texts, "\n"))
	if len(images) == 0 {
		if reason := gjson.GetBytes(raw, "promptFeedback.blockReason").String(); reason != "" {
			return res, fmt.Errorf("%w (blocked: %s)", ErrNoImage, reason)
		}
		return res, ErrNoImage
	}
	if err := os.MkdirAll(g.OutDir, 0o755); err != nil {
		return nil, err
	}
	stamp := g.now().Format("20060102-150405")
	for i, img := range images {
		path := filepath.Join(g.OutDir, fmt.Sprintf("image-%s-%d%s", stamp, i+1, exts[i]))
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, path)
	}
	logger.Infof("imagegen: wrote %d image(s) to %s", len(res.Files), g.OutDir)
	return res, nil
}

func extFor(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
