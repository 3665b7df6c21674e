package ai

import (
	"errors"
	"net/http"
	"time"

	"curriculumhub/pkg/aiinterface"

	"github.com/google/uuid"
)

// ErrorRecord 分类后的错误记录
// 由分类器创建，之后不再修改
type ErrorRecord struct {
	ID         string         `json:"id"`
	Kind       ErrorType      `json:"kind"`
	Component  string         `json:"component"`
	HTTPStatus *int           `json:"http_status,omitempty"`
	RequestID  *string        `json:"request_id,omitempty"`
	ModelID    *string        `json:"model_id,omitempty"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Stack      string         `json:"stack,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Retryable 该分类是否值得重试
// 参数错误、内容拒绝、凭证错误对同一请求是确定性的，重试只会浪费预算
func (r *ErrorRecord) Retryable() bool {
	if r == nil {
		return false
	}
	return IsRetryable(r.Kind)
}

// IsRetryable 判断错误分类是否可重试
// 参数错误、内容拒绝与凭证错误重试也不会改变结果，均不重试
func IsRetryable(kind ErrorType) bool {
	switch kind {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeBackendFault, ErrorTypeUnknown:
		return true
	default:
		return false
	}
}

// networkCodes 视为网络错误的连接级错误码
var networkCodes = map[string]struct{}{
	aiinterface.ConnCodeRefused:     {},
	aiinterface.ConnCodeNotFound:    {},
	aiinterface.ConnCodeReset:       {},
	aiinterface.ConnCodeTimeout:     {},
	aiinterface.ConnCodeUnreachable: {},
}

// ClassifyKind 将归一化失败映射为唯一的错误分类
// 优先级：401/403 → credential；429 → rate_limit；连接错误码 → network；
// 4xx+内容过滤 → content_rejected；其他 4xx → malformed_request；5xx → backend_fault；其余 unknown
func ClassifyKind(f *Failure) ErrorType {
	if f == nil {
		return ErrorTypeUnknown
	}
	status := f.HTTPStatus

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeCredential
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case isNetworkCode(f.ConnErrorCode):
		return ErrorTypeNetwork
	case status >= 400 && status < 500 && f.ContentFiltered:
		return ErrorTypeContentRejected
	case status >= 400 && status < 500:
		return ErrorTypeMalformedRequest
	case status >= 500 && status < 600:
		return ErrorTypeBackendFault
	default:
		return ErrorTypeUnknown
	}
}

func isNetworkCode(code string) bool {
	if code == "" {
		return false
	}
	_, ok := networkCodes[code]
	return ok
}

// Classify 分类并生成错误记录
func Classify(f *Failure, component string) *ErrorRecord {
	if f == nil {
		f = &Failure{Message: "empty failure"}
	}

	rec := &ErrorRecord{
		ID:        uuid.New().String(),
		Kind:      ClassifyKind(f),
		Component: component,
		Message:   f.Error(),
		CreatedAt: time.Now().UTC(),
	}
	if f.HTTPStatus > 0 {
		status := f.HTTPStatus
		rec.HTTPStatus = &status
	}
	if f.RequestID != "" {
		requestID := f.RequestID
		rec.RequestID = &requestID
	}
	if f.Model != "" {
		model := f.Model
		rec.ModelID = &model
	}

	details := map[string]any{}
	if f.ConnErrorCode != "" {
		details["connection_code"] = f.ConnErrorCode
	}
	if f.ContentFiltered {
		details["content_filtered"] = true
	}
	if f.BackendCode != "" {
		details["backend_code"] = f.BackendCode
	}
	if len(details) > 0 {
		rec.Details = details
	}
	return rec
}

// NormalizeError 把任意错误解析为 Failure
// 适配层已经返回 *Failure 时直接使用，否则按连接级错误识别
func NormalizeError(err error) *Failure {
	if err == nil {
		return &Failure{Message: "nil error"}
	}

	var f *Failure
	if errors.As(err, &f) && f != nil {
		cp := *f
		return &cp
	}

	return &Failure{
		ConnErrorCode: ConnErrorCode(err),
		Message:       err.Error(),
		Err:           err,
	}
}

// ConnErrorCode 识别连接级错误码，无法识别时返回空字符串
func ConnErrorCode(err error) string {
	return aiinterface.ConnErrorCode(err)
}
