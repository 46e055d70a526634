package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"adpulse/internal/gateway/intent"
	"adpulse/internal/gateway/llm"
	"adpulse/internal/logger"
	"adpulse/internal/store"
)

const (
	historyLimit   = 10
	dataSampleRows = 20
	contentOpen    = `<content thesys="true">`
	contentClose   = `</content>`
)

// ErrEmptyPrompt is a client error raised before anything is streamed.
var ErrEmptyPrompt = errors.New("prompt is required")

const defaultSystemPrompt = `You are a marketing analytics assistant for a team buying Facebook traffic and monetizing it through System1 search feeds.
Explain the data you are given in two to four short sentences: what stands out, and one concrete next step.
Use dollar amounts and percentages from the data. Do not invent numbers. Do not repeat the table.`

type Request struct {
	Prompt     string `json:"prompt"`
	ThreadID   string `json:"threadId"`
	ResponseID string `json:"responseId"`
}

// Classifier is the intent backend.
type Classifier interface {
	Classify(ctx context.Context, prompt, threadID string) (*intent.Intent, error)
}

type Service struct {
	Intent       Classifier
	LLM          llm.Client
	History      store.ChatHistory
	SystemPrompt string
}

// Turn is a prepared answer: everything that can fail with a clean error
// has already happened.
type Turn struct {
	svc        *Service
	req        Request
	ResponseID string
	Intent     *intent.Intent
	Component  Component
	history    []store.ChatMessage
}

// Prepare validates the request, loads the thread history and resolves the
// intent. Errors here are reported to the caller as a JSON error.
func (s *Service) Prepare(ctx context.Context, req Request) (*Turn, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if req.ResponseID == "" {
		req.ResponseID = uuid.NewString()
	}
	var history []store.ChatMessage
	if s.History != nil && req.ThreadID != "" {
		h, err := s.History.ThreadMessages(ctx, req.ThreadID, historyLimit)
		if err != nil {
			logger.Warnf("chat: load thread %s: %v", req.ThreadID, err)
		}
		history = h
	}
	in, err := s.Intent.Classify(ctx, req.Prompt, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("intent: %w", err)
	}
	return &Turn{
		svc:        s,
		req:        req,
		ResponseID: req.ResponseID,
		Intent:     in,
		Component:  BuildComponent(in),
		history:    history,
	}, nil
}

// Stream writes the explanation as it arrives, then the component inside
// the content delimiter. LLM failures become a line of text; only write
// errors are returned.
func (t *Turn) Stream(ctx context.Context, w io.Writer) error {
	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	explanation, err := t.explain(ctx, func(delta string) error {
		if _, err := io.WriteString(w, delta); err != nil {
			return err
		}
		flush()
		return nil
	})
	if err != nil {
		if errors.Is(err, errWrite) {
			return err
		}
		logger.Errorf("chat: explanation for %s failed: %v", t.ResponseID, err)
		fallback := t.fallbackText()
		if explanation != "" {
			fallback = "\n" + fallback
		}
		if _, werr := io.WriteString(w, fallback); werr != nil {
			return werr
		}
		explanation += fallback
	}

	payload, err := json.Marshal(t.Component)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"+contentOpen+string(payload)+contentClose); err != nil {
		return err
	}
	flush()
	t.remember(ctx, explanation)
	return nil
}

var errWrite = errors.New("client write failed")

func (t *Turn) explain(ctx context.Context, onDelta func(string) error) (string, error) {
	if t.svc.LLM == nil {
		text := t.fallbackText()
		if err := onDelta(text); err != nil {
			return "", fmt.Errorf("%w: %w", errWrite, err)
		}
		return text, nil
	}
	system := t.svc.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = defaultSystemPrompt
	}
	msgs := make([]llm.Message, 0, len(t.history)+1)
	for _, m := range t.history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: t.userPrompt()})
	out, err := t.svc.LLM.Stream(ctx, llm.Request{System: system, Messages: msgs, Purpose: "analytics-chat"}, func(d string) error {
		if err := onDelta(d); err != nil {
			return fmt.Errorf("%w: %w", errWrite, err)
		}
		return nil
	})
	return out, err
}

func (t *Turn) userPrompt() string {
	var b strings.Builder
	b.WriteString("Question: " + t.req.Prompt + "\n")
	in := t.Intent
	if in == nil {
		return b.String()
	}
	b.WriteString("Intent: " + in.Intent + "\n")
	if in.Title != "" {
		b.WriteString("Title: " + in.Title + "\n")
	}
	if in.Summary != "" {
		b.WriteString("Backend summary: " + in.Summary + "\n")
	}
	if len(in.Data) > 0 {
		sample := in.Data
		if len(sample) > dataSampleRows {
			sample = sample[:dataSampleRows]
		}
		raw, _ := json.Marshal(sample)
		fmt.Fprintf(&b, "Data (%d rows, first %d shown): %s\n", len(in.Data), len(sample), raw)
	}
	return b.String()
}

func (t *Turn) fallbackText() string {
	if t.Intent != nil && strings.TrimSpace(t.Intent.Summary) != "" {
		return strings.TrimSpace(t.Intent.Summary)
	}
	return "Here is the data for your question."
}

func (t *Turn) remember(ctx context.Context, answer string) {
	h := t.svc.History
	if h == nil || t.req.ThreadID == "" {
		return
	}
	for _, m := range []store.ChatMessage{
		{ThreadID: t.req.ThreadID, ResponseID: t.ResponseID, Role: "user", Content: t.req.Prompt},
		{ThreadID: t.req.ThreadID, ResponseID: t.ResponseID, Role: "assistant", Content: answer},
	} {
		if err := h.AppendMessage(ctx, m); err != nil {
			logger.Warnf("chat: save thread %s: %v", t.req.ThreadID, err)
			return
		}
	}
}

// Respond is Prepare followed by Stream.
func (s *Service) Respond(ctx context.Context, req Request, w io.Writer) error {
	turn, err := s.Prepare(ctx, req)
	if err != nil {
		return err
	}
	return turn.Stream(ctx, w)
}
