package models

import (
	"time"

	"github.com/affisync/internal/constants"
)

// SyncErrorDetail 单条同步错误明细
type SyncErrorDetail struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RetryCount   int    `json:"retry_count"`
}

// SyncOperation 一次同步操作的记录，进入终态后不可变更
type SyncOperation struct {
	ID               string     `gorm:"primarykey;size:64" json:"id"` // uuid
	TenantID         string     `gorm:"index;not null" json:"tenant_id"`
	NetworkType      string     `gorm:"index;not null" json:"network_type"`
	OperationType    string     `gorm:"size:32;not null" json:"operation_type"` // full_sync / incremental_sync
	Status           string     `gorm:"index;not null" json:"status"`           // syncing / completed / error
	StartedAt        time.Time  `gorm:"index;not null" json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	RecordsProcessed int        `gorm:"default:0" json:"records_processed"`
	RecordsSucceeded int        `gorm:"default:0" json:"records_succeeded"`
	RecordsFailed    int        `gorm:"default:0" json:"records_failed"`
	ErrorDetails     JSON       `gorm:"type:json" json:"error_details"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (SyncOperation) TableName() string {
	return "sync_operations"
}

// IsTerminal 判断是否已进入终态
func (s *SyncOperation) IsTerminal() bool {
	if s == nil {
		return false
	}
	return s.Status == constants.SyncStatusCompleted || s.Status == constants.SyncStatusError
}

// AppendErrorDetail 追加错误明细
func (s *SyncOperation) AppendErrorDetail(detail SyncErrorDetail) {
	if s == nil {
		return
	}
	if s.ErrorDetails == nil {
		s.ErrorDetails = JSON{}
	}
	existing, _ := s.ErrorDetails["errors"].([]interface{})
	existing = append(existing, map[string]interface{}{
		"error_code":    detail.ErrorCode,
		"error_message": detail.ErrorMessage,
		"retry_count":   detail.RetryCount,
	})
	s.ErrorDetails["errors"] = existing
}
