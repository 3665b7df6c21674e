package ai

import (
	"context"
	"fmt"
	"time"

	"curriculumhub/pkg/types"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DBLogger 数据库日志记录器
// 同时实现 ModelCallLogger 与 ErrorSink
type DBLogger struct {
	db *gorm.DB
}

// NewDBLogger 创建数据库日志记录器
func NewDBLogger(db *gorm.DB) *DBLogger {
	return &DBLogger{db: db}
}

// Log 记录模型调用日志
func (l *DBLogger) Log(ctx context.Context, log *ModelCallLog) error {
	if log == nil {
		return nil
	}

	status := "success"
	if log.Fallback {
		status = "fallback"
	}

	metadata := datatypes.JSONMap{}
	if log.RequestID != nil {
		metadata["request_id"] = *log.RequestID
	}
	if log.TraceID != nil {
		metadata["trace_id"] = *log.TraceID
	}

	// 转换为types.AICallLog (纯数据模型)
	dbLog := &types.AICallLog{
		ID:             uuid.New().String(),
		UserID:         log.UserID,
		Component:      log.Component,
		ModelProvider:  log.ModelProvider,
		ModelName:      log.ModelName,
		RequestTokens:  log.PromptTokens,
		ResponseTokens: log.CompletionTokens,
		TotalTokens:    log.TotalTokens,
		LatencyMS:      log.LatencyMs,
		Attempts:       log.Attempts,
		Status:         status,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}

	if err := l.db.WithContext(ctx).Create(dbLog).Error; err != nil {
		return fmt.Errorf("写入调用日志失败: %w", err)
	}
	return nil
}

// SaveError 写入错误记录
func (l *DBLogger) SaveError(ctx context.Context, record *ErrorRecord) error {
	if record == nil {
		return nil
	}

	kind := record.Kind
	if !kind.Valid() {
		kind = ErrorTypeUnknown
	}

	var details datatypes.JSONMap
	if len(record.Details) > 0 {
		details = datatypes.JSONMap(record.Details)
	}

	dbRecord := &types.ErrorRecord{
		ID:         record.ID,
		Kind:       string(kind),
		Component:  record.Component,
		HTTPStatus: record.HTTPStatus,
		RequestID:  record.RequestID,
		ModelID:    record.ModelID,
		Message:    record.Message,
		Details:    details,
		Stack:      record.Stack,
		CreatedAt:  record.CreatedAt,
	}
	if dbRecord.ID == "" {
		dbRecord.ID = uuid.New().String()
	}
	if dbRecord.CreatedAt.IsZero() {
		dbRecord.CreatedAt = time.Now().UTC()
	}

	if err := l.db.WithContext(ctx).Create(dbRecord).Error; err != nil {
		return fmt.Errorf("写入错误记录失败: %w", err)
	}
	return nil
}
