// Package logger is the process-wide leveled logger. Lines go to stderr so
// stdout stays free for report tables.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	level   slog.LevelVar
	current atomic.Pointer[slog.Logger]

	mu     sync.Mutex
	out    io.Writer = os.Stderr
	asJSON bool
)

func init() {
	rebuild()
}

// rebuild swaps in a handler for the current writer and format. Callers
// hold mu, except init.
func rebuild() {
	opts := &slog.HandlerOptions{Level: &level}
	var h slog.Handler
	if asJSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	current.Store(slog.New(h))
}

func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

func SetJSON(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	asJSON = enabled
	rebuild()
}

// SetLevel accepts debug, info, warn(ing) or error; anything else is info.
func SetLevel(name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		l = slog.LevelInfo
	}
	level.Set(l)
}

func logf(l slog.Level, format string, args []any) {
	lg := current.Load()
	if !lg.Enabled(context.Background(), l) {
		return
	}
	lg.Log(context.Background(), l, fmt.Sprintf(format, args...))
}

func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v) }
func Infof(format string, v ...any)  { logf(slog.LevelInfo, format, v) }
func Warnf(format string, v ...any)  { logf(slog.LevelWarn, format, v) }
func Errorf(format string, v ...any) { logf(slog.LevelError, format, v) }

// With returns a logger carrying attrs, for several lines about one run.
func With(args ...any) *slog.Logger {
	return current.Load().With(args...)
}

// InfoBlock logs a multi-line block one line at a time, skipping blanks.
func InfoBlock(block string) {
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) != "" {
			Infof("%s", line)
		}
	}
}
