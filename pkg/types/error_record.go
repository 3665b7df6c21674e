package types

import (
	"time"

	"gorm.io/datatypes"
)

// ErrorRecord 已分类的 AI 错误记录
// 创建后不可变，只写入一次
type ErrorRecord struct {
	ID         string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Kind       string            `json:"kind" gorm:"type:varchar(32);index;not null"` // credential, network, rate_limit ...
	Component  string            `json:"component" gorm:"type:varchar(64);index"`
	HTTPStatus *int              `json:"http_status,omitempty"`
	RequestID  *string           `json:"request_id,omitempty" gorm:"type:varchar(128)"`
	ModelID    *string           `json:"model_id,omitempty" gorm:"type:varchar(128)"`
	Message    string            `json:"message" gorm:"type:text"`
	Details    datatypes.JSONMap `json:"details,omitempty"`
	Stack      string            `json:"stack,omitempty" gorm:"type:text"`
	CreatedAt  time.Time         `json:"created_at" gorm:"index"`
}

// TableName 表名
func (ErrorRecord) TableName() string {
	return "ai_error_records"
}
