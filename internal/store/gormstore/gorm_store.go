package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"adpulse/internal/store"
	"adpulse/internal/store/model"
)

// GormStore keeps the ledger and chat history in one SQLite file.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ store.RunLedger   = (*GormStore)(nil)
	_ store.ChatHistory = (*GormStore)(nil)
)

// NewGormStore opens (creating if needed) the SQLite ledger at path.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("gorm store: create dir: %w", err)
	}
	dsn := "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("gorm store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&model.ReportRunModel{}, &model.ChatMessageModel{}); err != nil {
		return nil, fmt.Errorf("gorm store: migrate: %w", err)
	}
	// SQLite serialises writers anyway; a small pool keeps WAL readers cheap.
	if pool, err := db.DB(); err == nil {
		pool.SetMaxOpenConns(2)
		pool.SetMaxIdleConns(2)
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	pool, err := s.db.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

func (s *GormStore) RecordRun(ctx context.Context, run store.ReportRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now()
	}
	if run.Status == "" {
		run.Status = string(model.RunStatusOK)
		if run.Error != "" {
			run.Status = string(model.RunStatusFailed)
		}
	}
	m := runToModel(run)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("record run %s: %w", run.Kind, err)
	}
	return nil
}

func runToModel(run store.ReportRun) model.ReportRunModel {
	outputs := run.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	outJSON, _ := json.Marshal(outputs)
	paramJSON, _ := json.Marshal(run.Params)
	return model.ReportRunModel{
		ID:         run.ID,
		Kind:       run.Kind,
		Input:      run.Input,
		Rows:       run.Rows,
		Outputs:    datatypes.JSON(outJSON),
		Params:     datatypes.JSON(paramJSON),
		Status:     model.RunStatus(run.Status),
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

func runFromModel(m model.ReportRunModel) store.ReportRun {
	run := store.ReportRun{
		ID:         m.ID,
		Kind:       m.Kind,
		Input:      m.Input,
		Rows:       m.Rows,
		Status:     string(m.Status),
		Error:      m.Error,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
	if len(m.Outputs) > 0 {
		_ = json.Unmarshal(m.Outputs, &run.Outputs)
	}
	if len(m.Params) > 0 {
		_ = json.Unmarshal(m.Params, &run.Params)
	}
	return run
}

// ListRuns returns the newest runs first; an empty kind lists all.
func (s *GormStore) ListRuns(ctx context.Context, kind string, limit int) ([]store.ReportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	q := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var rows []model.ReportRunModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]store.ReportRun, len(rows))
	for i, m := range rows {
		runs[i] = runFromModel(m)
	}
	return runs, nil
}

func (s *GormStore) AppendMessage(ctx context.Context, msg store.ChatMessage) error {
	if strings.TrimSpace(msg.ThreadID) == "" {
		return nil
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	return s.db.WithContext(ctx).Create(&model.ChatMessageModel{
		ThreadID:   msg.ThreadID,
		ResponseID: msg.ResponseID,
		Role:       msg.Role,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}).Error
}

func (s *GormStore) ThreadMessages(ctx context.Context, threadID string, limit int) ([]store.ChatMessage, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var rows []model.ChatMessageModel
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("thread %s history: %w", threadID, err)
	}
	// newest rows were fetched; hand them back oldest first
	out := make([]store.ChatMessage, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = store.ChatMessage{
			ThreadID:   m.ThreadID,
			ResponseID: m.ResponseID,
			Role:       m.Role,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		}
	}
	return out, nil
}
