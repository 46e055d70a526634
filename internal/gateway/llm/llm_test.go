package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"adpulse/internal/config"
	"adpulse/internal/gateway"
	"adpulse/internal/pkg/circuit"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestEndpointNormalization(t *testing.T) {
	for _, base := range []string{"https://x/v1", "https://x/v1/", "https://x/v1/chat/completions"} {
		c := &OpenAIClient{BaseURL: base}
		assert.Equal(t, "https://x/v1/chat/completions", c.endpoint())
	}
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", (&OpenAIClient{}).endpoint())
}

func TestMaskedHeaders(t *testing.T) {
	c := &OpenAIClient{APIKey: "sk-secret-1234", ExtraHeaders: map[string]string{"X-Api-Key": "abcdefgh", "X-Team": "growth"}}
	h := c.maskedHeaders()
	assert.Equal(t, "Bearer ****1234", h["Authorization"])
	assert.Equal(t, "****efgh", h["X-Api-Key"])
	assert.Equal(t, "growth", h["X-Team"])
}

func TestCompleteRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if n == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "system", gjson.GetBytes(body, "messages.0.role").String())
		assert.Equal(t, "hi", gjson.GetBytes(body, "messages.1.content").String())
		assert.False(t, gjson.GetBytes(body, "stream").Exists())
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"hello"}}]}`)
	}))
	defer srv.Close()

	c := &OpenAIClient{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m", MaxRetries: 2, Sleep: noSleep}
	out, err := c.Complete(context.Background(), Request{System: "be brief", Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.EqualValues(t, 2, calls)
}

func TestCompleteClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	c := &OpenAIClient{BaseURL: srv.URL, Sleep: noSleep}
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
	var se *gateway.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "bad key", se.Message)
	assert.EqualValues(t, 1, calls)
}

func TestCompleteHonoursConfiguredRetries(t *testing.T) {
	cases := []struct {
		retries int
		calls   int32
	}{
		{retries: 0, calls: 1},
		{retries: 1, calls: 2},
		{retries: 3, calls: 4},
		{retries: -1, calls: 1},
	}
	for _, tc := range cases {
		tc := tc // per-iteration copy (go 1.21 loop semantics)
		t.Run(fmt.Sprintf("retries=%d", tc.retries), func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			c, err := New(config.LLMConfig{Provider: "openai", BaseURL: srv.URL, Model: "m", MaxRetries: tc.retries})
			require.NoError(t, err)
			oc := c.(*OpenAIClient)
			oc.Sleep = noSleep
			_, err = oc.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
			require.Error(t, err)
			assert.Equal(t, tc.calls, atomic.LoadInt32(&calls))
		})
	}
}

func TestStreamSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, gjson.GetBytes(body, "stream").Bool())
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Revenue ", "is ", "up."} {
			chunk, _ := json.Marshal(map[string]any{"choices": []any{map[string]any{"delta": map[string]any{"content": part}}}})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	}))
	defer srv.Close()

	c := &OpenAIClient{BaseURL: srv.URL, Sleep: noSleep}
	var deltas []string
	out, err := c.Stream(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Revenue is up.", out)
	assert.Equal(t, []string{"Revenue ", "is ", "up."}, deltas)
}

func TestNewSelectsProvider(t *testing.T) {
	c, err := New(config.LLMConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = New(config.LLMConfig{Provider: "Anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	_, err = New(config.LLMConfig{Provider: "cohere"})
	assert.Error(t, err)
}

func TestAnthropicParams(t *testing.T) {
	c := NewAnthropic(config.LLMConfig{APIKey: "k", MaxTokens: 300})
	p := c.params(Request{
		System: "sys",
		Messages: []Message{
			{Role: "user", Content: "q1"},
			{Role: "assistant", Content: "a1"},
			{Role: "user", Content: " "},
			{Role: "user", Content: "q2"},
		},
	})
	assert.EqualValues(t, 300, p.MaxTokens)
	assert.Len(t, p.Messages, 3)
	require.Len(t, p.System, 1)
	assert.Equal(t, "sys", p.System[0].Text)
	assert.EqualValues(t, defaultAnthropicModel, p.Model)
}

func TestAnthropicStreamWriteErrorKeepsBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, text := range []string{"Revenue ", "is up."} {
			fmt.Fprintf(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":%q}}\n\n", text)
		}
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	c := NewAnthropic(config.LLMConfig{APIKey: "k", BaseURL: srv.URL})
	c.breaker = circuit.New("test", 1, time.Minute)
	gone := errors.New("client gone")
	out, err := c.Stream(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}}, func(string) error {
		return gone
	})
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, "Revenue ", out)
	assert.Equal(t, circuit.StateClosed, c.breaker.State())
}
