package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 3*time.Second, RetryAfter("3", now))
	assert.Equal(t, time.Duration(0), RetryAfter("", now))
	assert.Equal(t, time.Duration(0), RetryAfter("-1", now))
	assert.Equal(t, time.Duration(0), RetryAfter("soon", now))
	assert.Equal(t, 90*time.Second, RetryAfter("Fri, 01 Mar 2024 12:01:30 GMT", now))
	assert.Equal(t, time.Duration(0), RetryAfter("Fri, 01 Mar 2024 11:00:00 GMT", now))
}

func TestBackoff(t *testing.T) {
	want := []time.Duration{800 * time.Millisecond, 1600 * time.Millisecond, 3200 * time.Millisecond, 6400 * time.Millisecond, 8 * time.Second, 8 * time.Second}
	for i, w := range want {
		assert.Equal(t, w, Backoff(i), "attempt %d", i)
	}
	assert.Equal(t, 8*time.Second, Backoff(60))
}

func TestNewStatusError(t *testing.T) {
	resp := &http.Response{
		StatusCode: 429,
		Status:     "429 Too Many Requests",
		Header:     http.Header{"Retry-After": []string{"2"}},
		Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"slow down"}}`)),
	}
	se := NewStatusError("llm", resp, time.Now())
	assert.Equal(t, "slow down", se.Message)
	assert.Equal(t, 2*time.Second, se.RetryAfter)
	assert.True(t, se.Retryable())
	assert.Equal(t, "llm: status=429: slow down", se.Error())

	resp = &http.Response{StatusCode: 400, Status: "400 Bad Request", Header: http.Header{},
		Body: io.NopCloser(strings.NewReader(`<html>nope</html>`))}
	se = NewStatusError("slack", resp, time.Now())
	assert.Equal(t, "400 Bad Request", se.Message)
	assert.False(t, se.Retryable())
}

type sleeps []time.Duration

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	*s = append(*s, d)
	return nil
}

func TestRetryHonoursRetryAfterThenBackoff(t *testing.T) {
	var slept sleeps
	calls := 0
	err := Retry(context.Background(), 3, slept.sleep, func(attempt int) error {
		calls++
		switch attempt {
		case 0:
			return &StatusError{StatusCode: 429, RetryAfter: 5 * time.Second}
		case 1:
			return &StatusError{StatusCode: 503}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, sleeps{5 * time.Second, 1600 * time.Millisecond}, slept)
}

func TestRetryStopsOnPermanentErrors(t *testing.T) {
	var slept sleeps
	calls := 0
	err := Retry(context.Background(), 3, slept.sleep, func(int) error {
		calls++
		return &StatusError{StatusCode: 400}
	})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)

	bad := errors.New("bad json")
	err = Retry(context.Background(), 3, slept.sleep, func(int) error { return Permanent(bad) })
	assert.ErrorIs(t, err, bad)
	assert.NotErrorIs(t, err, ErrRetryExhausted)
}

func TestRetryExhausted(t *testing.T) {
	var slept sleeps
	err := Retry(context.Background(), 2, slept.sleep, func(int) error {
		return &StatusError{StatusCode: 500}
	})
	assert.ErrorIs(t, err, ErrRetryExhausted)
	var se *StatusError
	assert.ErrorAs(t, err, &se)
	assert.Len(t, slept, 2)
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
