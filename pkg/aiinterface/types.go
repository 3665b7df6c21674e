package aiinterface

import (
	"context"
	"fmt"
	"time"
)

// Message 消息结构
type Message struct {
	Role    string `json:"role"`    // system, user, assistant
	Content string `json:"content"` // 消息内容
}

// ChatCompletionRequest 对话补全请求
type ChatCompletionRequest struct {
	Model       string    `json:"model"`       // 模型标识，为空时使用客户端默认模型
	Messages    []Message `json:"messages"`    // 消息列表
	Temperature float64   `json:"temperature"` // 温度参数（0-2）
	MaxTokens   int       `json:"max_tokens"`  // 最大输出 Token 数
	Stream      bool      `json:"stream"`      // 是否流式响应
}

// ChatCompletionResponse 对话补全响应
type ChatCompletionResponse struct {
	ID        string `json:"id"`         // 响应 ID
	RequestID string `json:"request_id"` // 后端请求 ID（x-request-id）
	Model     string `json:"model"`      // 使用的模型
	Content   string `json:"content"`    // 生成的内容
	Usage     Usage  `json:"usage"`      // Token 使用情况
}

// Usage Token 使用情况
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`     // 输入 Token 数
	CompletionTokens int `json:"completion_tokens"` // 输出 Token 数
	TotalTokens      int `json:"total_tokens"`      // 总 Token 数
}

// ModelInfo 模型列表条目
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

// ModelClient 生成式文本后端统一接口
type ModelClient interface {
	// ChatCompletion 单次对话补全，不做任何重试
	// 返回的错误统一为 *Failure
	ChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

	// ListModels 列出可用模型（鉴权的轻量元数据接口）
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Name 返回客户端名称（如 "openai"）
	Name() string

	// Close 关闭客户端连接
	Close() error
}

// ClientConfig 客户端配置
type ClientConfig struct {
	Provider string        // 提供商（openai 兼容）
	APIKey   string        // API Key
	BaseURL  string        // 基础 URL
	Model    string        // 默认模型标识
	OrgID    string        // 组织 ID（OpenAI）
	Timeout  time.Duration // 单次请求超时
}

// ErrorType 错误分类
type ErrorType string

const (
	ErrorTypeCredential       ErrorType = "credential"        // 凭证无效或缺失
	ErrorTypeNetwork          ErrorType = "network"           // 网络不可达
	ErrorTypeRateLimit        ErrorType = "rate_limit"        // 速率限制
	ErrorTypeMalformedRequest ErrorType = "malformed_request" // 请求参数错误
	ErrorTypeContentRejected  ErrorType = "content_rejected"  // 内容被安全策略拒绝
	ErrorTypeBackendFault     ErrorType = "backend_fault"     // 后端服务错误
	ErrorTypeUnknown          ErrorType = "unknown"           // 未知错误
)

// AllErrorTypes 分类全集，顺序固定
var AllErrorTypes = []ErrorType{
	ErrorTypeCredential,
	ErrorTypeNetwork,
	ErrorTypeRateLimit,
	ErrorTypeMalformedRequest,
	ErrorTypeContentRejected,
	ErrorTypeBackendFault,
	ErrorTypeUnknown,
}

// Valid 判断是否属于分类全集
func (t ErrorType) Valid() bool {
	for _, known := range AllErrorTypes {
		if t == known {
			return true
		}
	}
	return false
}

// 连接级错误码
const (
	ConnCodeRefused     = "ECONNREFUSED"
	ConnCodeNotFound    = "ENOTFOUND"
	ConnCodeReset       = "ECONNRESET"
	ConnCodeTimeout     = "ETIMEDOUT"
	ConnCodeUnreachable = "EHOSTUNREACH"
	ConnCodeCanceled    = "ECANCELED"
)

// Failure 调用边界处归一化后的失败形态
// 各种 SDK/HTTP 异常只在适配层被解析一次，分类器只看这个结构
type Failure struct {
	HTTPStatus      int    // HTTP 状态码，0 表示没有响应
	ConnErrorCode   string // 连接级错误码（ECONNREFUSED 等）
	ContentFiltered bool   // 是否命中内容安全过滤
	RequestID       string // 后端请求 ID
	Model           string // 请求的模型
	BackendCode     string // 后端返回的错误码
	Message         string // 错误消息
	Err             error  // 原始错误
}

// Error 实现error接口
func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	switch {
	case f.HTTPStatus > 0:
		return fmt.Sprintf("status %d: %s", f.HTTPStatus, msg)
	case f.ConnErrorCode != "":
		return fmt.Sprintf("%s: %s", f.ConnErrorCode, msg)
	default:
		return msg
	}
}

// Unwrap 返回原始错误
func (f *Failure) Unwrap() error {
	return f.Err
}
