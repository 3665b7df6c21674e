package ai

import (
	"fmt"
	"os"
	"strings"
)

// DefaultAPIKeyEnv 默认凭证环境变量
const DefaultAPIKeyEnv = "OPENAI_API_KEY"

// CredentialProvider 定义凭证提供者接口，允许后续接入加密存储或外部密钥服务
type CredentialProvider interface {
	Get(key string) (string, error)
}

// EnvCredentialProvider 默认实现：从环境变量读取凭证
type EnvCredentialProvider struct{}

// Get 按键名读取环境变量并返回修剪后的值
func (EnvCredentialProvider) Get(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("凭证键名不能为空")
	}
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("环境变量 %s 未设置", key)
	}
	return strings.TrimSpace(value), nil
}

// CredentialSource 凭证来源
type CredentialSource string

const (
	CredentialSourceNone     CredentialSource = "none"
	CredentialSourceOverride CredentialSource = "override"
	CredentialSourceExplicit CredentialSource = "explicit"
	CredentialSourceEnv      CredentialSource = "env"
)

// ResolveCredential 解析凭证
// 优先级：override > explicit > provider(envKey)
// 返回空字符串表示没有可用凭证
func ResolveCredential(override, explicit, envKey string, provider CredentialProvider) (string, CredentialSource) {
	if v := strings.TrimSpace(override); v != "" {
		return v, CredentialSourceOverride
	}
	if v := strings.TrimSpace(explicit); v != "" {
		return v, CredentialSourceExplicit
	}

	if envKey == "" {
		envKey = DefaultAPIKeyEnv
	}
	if provider == nil {
		provider = EnvCredentialProvider{}
	}
	if v, err := provider.Get(envKey); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), CredentialSourceEnv
	}
	return "", CredentialSourceNone
}

// MaskCredential 脱敏显示凭证，只保留前 3 位和后 4 位
func MaskCredential(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + strings.Repeat("*", len(key)-7) + key[len(key)-4:]
}
