package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"adpulse/internal/config"
	"adpulse/internal/gateway"
	"adpulse/internal/logger"
)

// Slack posts through chat.postMessage. Slack allows roughly one message
// per second per channel, which the limiter enforces.
type Slack struct {
	Token      string
	Channel    string
	BaseURL    string
	MaxRetries int
	Client     *http.Client
	Limiter    *rate.Limiter
	Sleep      gateway.Sleeper
}

func NewSlack(cfg config.SlackConfig) *Slack {
	// config defaults fill an absent max_retries; 0 here means one attempt
	return &Slack{
		Token:      cfg.Token,
		Channel:    cfg.Channel,
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		MaxRetries: max(cfg.MaxRetries, 0),
		Client:     &http.Client{Timeout: 15 * time.Second},
		Limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// FromConfig returns a Slack notifier when enabled, else Nop.
func FromConfig(cfg config.SlackConfig) TextNotifier {
	if !cfg.Enabled {
		return Nop{}
	}
	return NewSlack(cfg)
}

// SlackError is an HTTP 200 reply with ok=false.
type SlackError struct {
	Code string
}

func (e *SlackError) Error() string { return "slack: " + e.Code }

func (s *Slack) SendText(ctx context.Context, text string) error {
	if s.Token == "" || s.Channel == "" {
		return fmt.Errorf("slack: token and channel are required")
	}
	base := s.BaseURL
	if base == "" {
		base = "https://slack.com/api"
	}
	body, _ := json.Marshal(map[string]any{
		"channel": s.Channel,
		"text":    text,
		"mrkdwn":  true,
	})
	err := gateway.Retry(ctx, s.MaxRetries, s.Sleep, func(attempt int) error {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				return gateway.Permanent(err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat.postMessage", bytes.NewReader(body))
		if err != nil {
			return gateway.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("Authorization", "Bearer "+s.Token)
		resp, err := s.Client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode/100 != 2 {
			se := gateway.NewStatusError("slack", resp, time.Now())
			if se.Retryable() {
				logger.Warnf("slack: attempt %d: %v (retry in %s)", attempt+1, se, gateway.Wait(se, attempt))
			}
			return se
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}
		if !gjson.GetBytes(raw, "ok").Bool() {
			code := gjson.GetBytes(raw, "error").String()
			if code == "" {
				code = "unknown_error"
			}
			return gateway.Permanent(&SlackError{Code: code})
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Debugf("slack: posted %d chars to %s", len(text), s.Channel)
	return nil
}
