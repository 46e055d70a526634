// Package store persists the run ledger and chat history.
package store

import (
	"context"
	"time"
)

// ReportRun is the ledger entry for one report run.
type ReportRun struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Input      string            `json:"input"`
	Rows       int               `json:"rows"`
	Outputs    []string          `json:"outputs,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}

type ChatMessage struct {
	ThreadID   string    `json:"threadId"`
	ResponseID string    `json:"responseId,omitempty"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

type RunLedger interface {
	RecordRun(ctx context.Context, run ReportRun) error
	ListRuns(ctx context.Context, kind string, limit int) ([]ReportRun, error)
}

type ChatHistory interface {
	AppendMessage(ctx context.Context, msg ChatMessage) error
	// ThreadMessages returns the newest limit messages, oldest first.
	ThreadMessages(ctx context.Context, threadID string, limit int) ([]ChatMessage, error)
}
