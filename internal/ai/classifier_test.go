package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKind(t *testing.T) {
	cases := []struct {
		name    string
		failure *Failure
		want    ErrorType
	}{
		{"401 凭证错误", &Failure{HTTPStatus: 401}, ErrorTypeCredential},
		{"403 凭证错误", &Failure{HTTPStatus: 403, ContentFiltered: true}, ErrorTypeCredential},
		{"429 限流", &Failure{HTTPStatus: 429}, ErrorTypeRateLimit},
		{"连接拒绝", &Failure{ConnErrorCode: "ECONNREFUSED"}, ErrorTypeNetwork},
		{"域名解析失败", &Failure{ConnErrorCode: "ENOTFOUND"}, ErrorTypeNetwork},
		{"连接超时", &Failure{ConnErrorCode: "ETIMEDOUT"}, ErrorTypeNetwork},
		{"取消不算网络错误", &Failure{ConnErrorCode: "ECANCELED"}, ErrorTypeUnknown},
		{"内容过滤", &Failure{HTTPStatus: 400, ContentFiltered: true}, ErrorTypeContentRejected},
		{"参数错误", &Failure{HTTPStatus: 400}, ErrorTypeMalformedRequest},
		{"404 归为参数错误", &Failure{HTTPStatus: 404}, ErrorTypeMalformedRequest},
		{"500 后端错误", &Failure{HTTPStatus: 500}, ErrorTypeBackendFault},
		{"503 后端错误", &Failure{HTTPStatus: 503, ContentFiltered: true}, ErrorTypeBackendFault},
		{"无状态码无错误码", &Failure{Message: "boom"}, ErrorTypeUnknown},
		{"3xx 未知", &Failure{HTTPStatus: 302}, ErrorTypeUnknown},
		{"nil", nil, ErrorTypeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyKind(tc.failure))
		})
	}
}

func TestClassifyKindPrecedence(t *testing.T) {
	t.Run("429 优先于连接错误码", func(t *testing.T) {
		f := &Failure{HTTPStatus: 429, ConnErrorCode: "ECONNRESET"}
		assert.Equal(t, ErrorTypeRateLimit, ClassifyKind(f))
	})

	t.Run("连接错误码优先于 4xx", func(t *testing.T) {
		f := &Failure{HTTPStatus: 400, ConnErrorCode: "ECONNRESET"}
		assert.Equal(t, ErrorTypeNetwork, ClassifyKind(f))
	})
}

func TestClassifyIsTotalAndDeterministic(t *testing.T) {
	statuses := []int{0, 200, 301, 400, 401, 403, 404, 409, 422, 429, 499, 500, 502, 503, 599, 600}
	codes := []string{"", "ECONNREFUSED", "ENOTFOUND", "ECONNRESET", "ETIMEDOUT", "EHOSTUNREACH", "ECANCELED", "EWHATEVER"}

	for _, status := range statuses {
		for _, code := range codes {
			for _, filtered := range []bool{false, true} {
				f := &Failure{HTTPStatus: status, ConnErrorCode: code, ContentFiltered: filtered}
				first := ClassifyKind(f)
				require.True(t, first.Valid(), "status=%d code=%s", status, code)
				assert.Equal(t, first, ClassifyKind(f))
			}
		}
	}
}

func TestClassifyBuildsRecord(t *testing.T) {
	f := &Failure{
		HTTPStatus:      400,
		ContentFiltered: true,
		RequestID:       "req_123",
		Model:           "gpt-4o-mini",
		BackendCode:     "content_filter",
		Message:         "blocked",
	}

	rec := Classify(f, ComponentGenerate)

	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, ErrorTypeContentRejected, rec.Kind)
	assert.Equal(t, ComponentGenerate, rec.Component)
	require.NotNil(t, rec.HTTPStatus)
	assert.Equal(t, 400, *rec.HTTPStatus)
	require.NotNil(t, rec.RequestID)
	assert.Equal(t, "req_123", *rec.RequestID)
	require.NotNil(t, rec.ModelID)
	assert.Equal(t, "gpt-4o-mini", *rec.ModelID)
	assert.Equal(t, true, rec.Details["content_filtered"])
	assert.Equal(t, "content_filter", rec.Details["backend_code"])
	assert.False(t, rec.CreatedAt.IsZero())
	assert.False(t, rec.Retryable())
}

func TestClassifyOmitsAbsentFields(t *testing.T) {
	rec := Classify(&Failure{Message: "boom"}, "test")

	assert.Nil(t, rec.HTTPStatus)
	assert.Nil(t, rec.RequestID)
	assert.Nil(t, rec.ModelID)
	assert.Nil(t, rec.Details)
	assert.Equal(t, "boom", rec.Message)
}

func TestIsRetryable(t *testing.T) {
	retryable := map[ErrorType]bool{
		ErrorTypeCredential:       false,
		ErrorTypeNetwork:          true,
		ErrorTypeRateLimit:        true,
		ErrorTypeMalformedRequest: false,
		ErrorTypeContentRejected:  false,
		ErrorTypeBackendFault:     true,
		ErrorTypeUnknown:          true,
	}
	for kind, want := range retryable {
		assert.Equal(t, want, IsRetryable(kind), string(kind))
	}
}

func TestNormalizeError(t *testing.T) {
	t.Run("保留适配层的 Failure", func(t *testing.T) {
		orig := &Failure{HTTPStatus: 503, Message: "down"}
		wrapped := fmt.Errorf("调用失败: %w", orig)

		f := NormalizeError(wrapped)
		assert.Equal(t, 503, f.HTTPStatus)
		assert.NotSame(t, orig, f)
	})

	t.Run("识别连接拒绝", func(t *testing.T) {
		err := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
		f := NormalizeError(err)
		assert.Equal(t, "ECONNREFUSED", f.ConnErrorCode)
		assert.Equal(t, ErrorTypeNetwork, ClassifyKind(f))
	})

	t.Run("识别域名解析失败", func(t *testing.T) {
		err := &net.DNSError{Err: "no such host", Name: "api.invalid", IsNotFound: true}
		f := NormalizeError(err)
		assert.Equal(t, "ENOTFOUND", f.ConnErrorCode)
	})

	t.Run("超时", func(t *testing.T) {
		f := NormalizeError(context.DeadlineExceeded)
		assert.Equal(t, "ETIMEDOUT", f.ConnErrorCode)
		assert.Equal(t, ErrorTypeNetwork, ClassifyKind(f))
	})

	t.Run("取消", func(t *testing.T) {
		f := NormalizeError(context.Canceled)
		assert.Equal(t, "ECANCELED", f.ConnErrorCode)
		assert.Equal(t, ErrorTypeUnknown, ClassifyKind(f))
	})

	t.Run("普通错误", func(t *testing.T) {
		f := NormalizeError(errors.New("something odd"))
		assert.Empty(t, f.ConnErrorCode)
		assert.Equal(t, ErrorTypeUnknown, ClassifyKind(f))
	})

	t.Run("nil", func(t *testing.T) {
		f := NormalizeError(nil)
		assert.Equal(t, ErrorTypeUnknown, ClassifyKind(f))
	})
}

func TestResolveCredential(t *testing.T) {
	provider := mapCredentialProvider{"OPENAI_API_KEY": " sk-env "}

	t.Run("override 优先", func(t *testing.T) {
		key, src := ResolveCredential("sk-override", "sk-explicit", "", provider)
		assert.Equal(t, "sk-override", key)
		assert.Equal(t, CredentialSourceOverride, src)
	})

	t.Run("显式配置其次", func(t *testing.T) {
		key, src := ResolveCredential("  ", "sk-explicit", "", provider)
		assert.Equal(t, "sk-explicit", key)
		assert.Equal(t, CredentialSourceExplicit, src)
	})

	t.Run("环境变量兜底", func(t *testing.T) {
		key, src := ResolveCredential("", "", "", provider)
		assert.Equal(t, "sk-env", key)
		assert.Equal(t, CredentialSourceEnv, src)
	})

	t.Run("全部缺失", func(t *testing.T) {
		key, src := ResolveCredential("", "", "MISSING_KEY", provider)
		assert.Empty(t, key)
		assert.Equal(t, CredentialSourceNone, src)
	})
}

func TestMaskCredential(t *testing.T) {
	assert.Equal(t, "sk-*********cdef", MaskCredential("sk-1234567abcdef"))
	assert.Equal(t, "****", MaskCredential("abcd"))
	assert.Equal(t, "", MaskCredential(""))
}

// mapCredentialProvider 测试用凭证提供者
type mapCredentialProvider map[string]string

func (m mapCredentialProvider) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return v, nil
}
