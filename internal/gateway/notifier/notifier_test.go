package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpulse/internal/config"
	"adpulse/internal/gateway"
)

type recordedSleeps []time.Duration

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	*r = append(*r, d)
	return nil
}

func testSlack(url string, sleeps *recordedSleeps) *Slack {
	s := NewSlack(config.SlackConfig{Token: "xoxb-1", Channel: "#growth", BaseURL: url, MaxRetries: 2})
	s.Limiter = nil
	s.Sleep = sleeps.sleep
	return s
}

func TestSlackPostsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-1", r.Header.Get("Authorization"))
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "#growth", in["channel"])
		assert.Equal(t, "hello", in["text"])
		_, _ = io.WriteString(w, `{"ok":true,"ts":"1.2"}`)
	}))
	defer srv.Close()

	var sleeps recordedSleeps
	require.NoError(t, testSlack(srv.URL, &sleeps).SendText(context.Background(), "hello"))
	assert.Empty(t, sleeps)
}

func TestSlackHonoursRetryAfter(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = io.WriteString(w, `{"ok":true}`)
		}
	}))
	defer srv.Close()

	var sleeps recordedSleeps
	require.NoError(t, testSlack(srv.URL, &sleeps).SendText(context.Background(), "x"))
	assert.Equal(t, 3, calls)
	assert.Equal(t, recordedSleeps{7 * time.Second, 1600 * time.Millisecond}, sleeps)
}

func TestSlackOkFalseIsPermanent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"ok":false,"error":"channel_not_found"}`)
	}))
	defer srv.Close()

	var sleeps recordedSleeps
	err := testSlack(srv.URL, &sleeps).SendText(context.Background(), "x")
	var se *SlackError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "channel_not_found", se.Code)
	assert.Equal(t, 1, calls)
}

func TestSlackGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	var sleeps recordedSleeps
	err := testSlack(srv.URL, &sleeps).SendText(context.Background(), "x")
	assert.ErrorIs(t, err, gateway.ErrRetryExhausted)
	assert.Len(t, sleeps, 2)
}

func TestFromConfig(t *testing.T) {
	assert.IsType(t, Nop{}, FromConfig(config.SlackConfig{}))
	assert.IsType(t, &Slack{}, FromConfig(config.SlackConfig{Enabled: true, Token: "t", Channel: "c"}))
	assert.Error(t, NewSlack(config.SlackConfig{}).SendText(context.Background(), "x"))
}

func TestDigestMarkdown(t *testing.T) {
	msg := Digest{
		Icon:  ":bar_chart:",
		Title: "System1 campaigns",
		Sections: []Section{
			{Title: "Top", Lines: []string{"alpha $10.00", " ", "beta ```x```"}},
			{Title: "Empty", Lines: []string{""}},
		},
		Footer: "3 rows",
		At:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	out := msg.Markdown()
	assert.True(t, strings.HasPrefix(out, "*:bar_chart: System1 campaigns*"))
	assert.Contains(t, out, "```\nTop\n- alpha $10.00\n- beta '''x'''\n```")
	assert.NotContains(t, out, "Empty")
	assert.Contains(t, out, "_3 rows_")
	assert.True(t, strings.HasSuffix(out, "Generated 2024-03-01 09:00:00 UTC"))

	long := Digest{Title: strings.Repeat("é", 5000)}.Markdown()
	assert.Equal(t, maxDigestRunes+3, utf8.RuneCountInString(long))
	assert.True(t, strings.HasSuffix(long, "..."))

	lines := make([]string, 400)
	for i := range lines {
		lines[i] = fmt.Sprintf("keyword %03d $%d.00", i, i)
	}
	big := Digest{Title: "Gaps", Sections: []Section{{Title: "Top", Lines: lines}}, Footer: "400 rows"}.Markdown()
	assert.LessOrEqual(t, utf8.RuneCountInString(big), maxDigestRunes+7)
	assert.Zero(t, strings.Count(big, "```")%2, "code fence left open")
	assert.True(t, strings.HasSuffix(big, "...\n```"))
	assert.NotContains(t, big, "400 rows")
}

func TestSlackConfiguredRetries(t *testing.T) {
	for _, retries := range []int{0, 1, 4} {
		retries := retries // per-iteration copy (go 1.21 loop semantics)
		t.Run(fmt.Sprintf("retries=%d", retries), func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer srv.Close()

			var sleeps recordedSleeps
			s := NewSlack(config.SlackConfig{Token: "t", Channel: "c", BaseURL: srv.URL, MaxRetries: retries})
			s.Limiter = nil
			s.Sleep = sleeps.sleep
			err := s.SendText(context.Background(), "x")
			assert.ErrorIs(t, err, gateway.ErrRetryExhausted)
			assert.Equal(t, retries+1, calls)
			assert.Len(t, sleeps, retries)
		})
	}
}
