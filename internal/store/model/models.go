package model

import (
	"time"

	"gorm.io/datatypes"
)

type RunStatus string

const (
	RunStatusOK     RunStatus = "ok"
	RunStatusFailed RunStatus = "failed"
)

// ReportRunModel is one CLI or HTTP report run.
type ReportRunModel struct {
	ID         string         `gorm:"column:id;primaryKey"`
	Kind       string         `gorm:"column:kind;index"`
	Input      string         `gorm:"column:input"`
	Rows       int            `gorm:"column:rows"`
	Outputs    datatypes.JSON `gorm:"column:outputs"`
	Params     datatypes.JSON `gorm:"column:params"`
	Status     RunStatus      `gorm:"column:status"`
	Error      string         `gorm:"column:error"`
	StartedAt  time.Time      `gorm:"column:started_at;index"`
	FinishedAt time.Time      `gorm:"column:finished_at"`
}

func (ReportRunModel) TableName() string { return "report_runs" }

// ChatMessageModel is one turn of an analytics chat thread.
type ChatMessageModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ThreadID   string    `gorm:"column:thread_id;index:idx_thread_created"`
	ResponseID string    `gorm:"column:response_id"`
	Role       string    `gorm:"column:role"`
	Content    string    `gorm:"column:content"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_thread_created"`
}

func (ChatMessageModel) TableName() string { return "chat_messages" }
