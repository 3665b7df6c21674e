package ai

import (
	"context"

	"curriculumhub/pkg/aiinterface"
)

// 重新导出aiinterface包的类型,保持向后兼容
// 这样ai包的使用者无需直接依赖pkg,同时避免了子包对父包的依赖
type (
	Message                = aiinterface.Message
	ChatCompletionRequest  = aiinterface.ChatCompletionRequest
	ChatCompletionResponse = aiinterface.ChatCompletionResponse
	Usage                  = aiinterface.Usage
	ModelInfo              = aiinterface.ModelInfo
	ModelClient            = aiinterface.ModelClient
	ClientConfig           = aiinterface.ClientConfig
	ClientFactory          = aiinterface.ClientFactory
	ErrorType              = aiinterface.ErrorType
	Failure                = aiinterface.Failure
)

// 重新导出常量
const (
	ErrorTypeCredential       = aiinterface.ErrorTypeCredential
	ErrorTypeNetwork          = aiinterface.ErrorTypeNetwork
	ErrorTypeRateLimit        = aiinterface.ErrorTypeRateLimit
	ErrorTypeMalformedRequest = aiinterface.ErrorTypeMalformedRequest
	ErrorTypeContentRejected  = aiinterface.ErrorTypeContentRejected
	ErrorTypeBackendFault     = aiinterface.ErrorTypeBackendFault
	ErrorTypeUnknown          = aiinterface.ErrorTypeUnknown
)

// ModelCallLogger 模型调用日志记录器接口
type ModelCallLogger interface {
	// Log 记录模型调用
	Log(ctx context.Context, log *ModelCallLog) error
}

// ModelCallLog 模型调用日志
type ModelCallLog struct {
	UserID           string  `json:"user_id"`
	Component        string  `json:"component"`
	ModelProvider    string  `json:"model_provider"`
	ModelName        string  `json:"model_name"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	LatencyMs        int64   `json:"latency_ms"`
	Attempts         int     `json:"attempts"`
	Fallback         bool    `json:"fallback"`
	RequestID        *string `json:"request_id,omitempty"`
	TraceID          *string `json:"trace_id,omitempty"`
}
