package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// maxLLMBody caps one transcript section; streamed answers can be long.
const maxLLMBody = 64 << 10

// llmTranscript appends prompt/response transcripts to a dedicated file,
// apart from the main log.
type llmTranscript struct {
	mu   sync.Mutex
	w    io.Writer
	dump bool
	now  func() time.Time
}

var transcript = &llmTranscript{now: time.Now}

// SetLLMWriter sets the transcript destination; nil turns transcripts off.
func SetLLMWriter(w io.Writer) {
	transcript.mu.Lock()
	transcript.w = w
	transcript.mu.Unlock()
}

// EnableLLMPayloadDump adds the raw request body to request transcripts.
func EnableLLMPayloadDump(enabled bool) {
	transcript.mu.Lock()
	transcript.dump = enabled
	transcript.mu.Unlock()
}

func (t *llmTranscript) write(event, provider, purpose string, sections ...[2]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s llm %s provider=%s purpose=%s\n", t.now().Format(time.RFC3339), event, orNone(provider), orNone(purpose))
	for _, sec := range sections {
		body := sec[1]
		if strings.TrimSpace(body) == "" {
			continue
		}
		if len(body) > maxLLMBody {
			body = body[:maxLLMBody] + fmt.Sprintf("\n[truncated %d bytes]", len(sec[1])-maxLLMBody)
		}
		fmt.Fprintf(&b, ">> %s\n%s\n", sec[0], strings.TrimRight(body, "\n"))
	}
	b.WriteString("\n")
	_, _ = io.WriteString(t.w, b.String())
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// LogLLMRequest records the prompts sent to a provider.
func LogLLMRequest(provider, purpose, systemPrompt, userPrompt, payload string) {
	transcript.mu.Lock()
	dump := transcript.dump
	transcript.mu.Unlock()
	if !dump {
		payload = ""
	}
	transcript.write("request", provider, purpose,
		[2]string{"system", systemPrompt},
		[2]string{"user", userPrompt},
		[2]string{"payload", payload},
	)
}

func LogLLMResponse(provider, purpose, raw string) {
	transcript.write("response", provider, purpose, [2]string{"response", raw})
}
