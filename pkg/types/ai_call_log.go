package types

import (
	"time"

	"gorm.io/datatypes"
)

// AICallLog AI调用日志数据模型
// 纯数据结构,不依赖任何internal包
type AICallLog struct {
	ID             string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID         string            `json:"user_id" gorm:"type:varchar(64);index"`
	Component      string            `json:"component" gorm:"type:varchar(64)"`
	ModelProvider  string            `json:"model_provider" gorm:"type:varchar(32)"` // openai 兼容后端
	ModelName      string            `json:"model_name" gorm:"type:varchar(128)"`    // gpt-4o-mini 等
	RequestTokens  int               `json:"request_tokens"`
	ResponseTokens int               `json:"response_tokens"`
	TotalTokens    int               `json:"total_tokens"`
	LatencyMS      int64             `json:"latency_ms"`
	Attempts       int               `json:"attempts"`
	Status         string            `json:"status" gorm:"type:varchar(16)"` // success, fallback
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at" gorm:"index"`
}

// TableName 表名
func (AICallLog) TableName() string {
	return "ai_call_logs"
}
