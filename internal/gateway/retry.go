// Package gateway holds what the HTTP clients for external collaborators
// share: typed status errors, Retry-After parsing and backoff.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrRetryExhausted wraps the last error once every attempt has failed.
var ErrRetryExhausted = errors.New("retries exhausted")

const (
	backoffBase = 800 * time.Millisecond
	backoffCap  = 8 * time.Second
	maxBodyLog  = 2048
)

// StatusError is a non-2xx reply from an upstream.
type StatusError struct {
	Service    string
	StatusCode int
	Message    string
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: status=%d: %s", e.Service, e.StatusCode, msg)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return Retryable(e.StatusCode)
}

func Retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// NewStatusError reads resp's body (and closes it) into a StatusError. The
// message is taken from the usual JSON error shapes when present.
func NewStatusError(service string, resp *http.Response, now time.Time) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	body := string(raw)
	msg := ""
	if gjson.Valid(body) {
		for _, path := range []string{"error.message", "error", "message"} {
			if v := gjson.Get(body, path); v.Exists() && v.Type == gjson.String {
				msg = v.String()
				break
			}
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(resp.Status)
	}
	if len(body) > maxBodyLog {
		body = body[:maxBodyLog]
	}
	return &StatusError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Body:       body,
		RetryAfter: RetryAfter(resp.Header.Get("Retry-After"), now),
	}
}

// RetryAfter parses a Retry-After header given as seconds or as an HTTP
// date. Missing, malformed or past values give 0.
func RetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if d := ts.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// Backoff is the wait before retry number attempt (0-based): 800ms
// doubling, capped at 8s.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 4 {
		return backoffCap
	}
	d := backoffBase << attempt
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// Wait returns the delay before the next attempt: the server's Retry-After
// when given, else Backoff.
func Wait(err error, attempt int) time.Duration {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter
	}
	return Backoff(attempt)
}

// Sleeper pauses between attempts. Tests swap it for a recorder.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry calls fn up to maxRetries+1 times. Only retryable StatusErrors and
// transport errors are retried; the wait honours Retry-After.
func Retry(ctx context.Context, maxRetries int, sleep Sleeper, fn func(attempt int) error) error {
	if sleep == nil {
		sleep = Sleep
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !shouldRetry(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		if serr := sleep(ctx, Wait(err, attempt)); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr)
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var perm *PermanentError
	return !errors.As(err, &perm)
}

// PermanentError marks an error Retry must not repeat, e.g. a malformed
// response body.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
