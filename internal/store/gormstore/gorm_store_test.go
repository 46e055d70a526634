package gormstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpulse/internal/store"
)

func newStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListRuns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordRun(ctx, store.ReportRun{
			Kind:      "s1-keywords",
			Input:     "system1.csv",
			Rows:      i,
			Outputs:   []string{fmt.Sprintf("runs/out-%d.csv", i)},
			Params:    map[string]string{"top": "25"},
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.RecordRun(ctx, store.ReportRun{Kind: "margin", Error: "missing file", StartedAt: base.Add(10 * time.Hour)}))

	runs, err := s.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, "margin", runs[0].Kind)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Empty(t, runs[0].Outputs)
	assert.NotEmpty(t, runs[0].ID)

	runs, err = s.ListRuns(ctx, "s1-keywords", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Rows)
	assert.Equal(t, "ok", runs[0].Status)
	assert.Equal(t, []string{"runs/out-2.csv"}, runs[0].Outputs)
	assert.Equal(t, "25", runs[0].Params["top"])
}

func TestThreadMessagesReturnsNewestOldestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		require.NoError(t, s.AppendMessage(ctx, store.ChatMessage{
			ThreadID: "t1", Role: role, Content: fmt.Sprintf("m%d", i), CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.AppendMessage(ctx, store.ChatMessage{ThreadID: "t2", Role: "user", Content: "other"}))
	require.NoError(t, s.AppendMessage(ctx, store.ChatMessage{Role: "user", Content: "no thread is dropped"}))

	msgs, err := s.ThreadMessages(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	assert.Equal(t, "m2", msgs[0].Content)
	assert.Equal(t, "m11", msgs[9].Content)

	msgs, err = s.ThreadMessages(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestNewGormStoreRequiresPath(t *testing.T) {
	_, err := NewGormStore(" ")
	assert.Error(t, err)
}
