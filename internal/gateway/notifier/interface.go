// Package notifier pushes short text messages to people.
package notifier

import "context"

// TextNotifier is the one method report commands depend on.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Nop drops every message. It stands in when Slack is disabled.
type Nop struct{}

func (Nop) SendText(context.Context, string) error { return nil }
