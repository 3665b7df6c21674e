package ai

import (
	"fmt"
	"strings"

	"curriculumhub/internal/ai/openai"
)

// defaultBaseURLs OpenAI 兼容协议的提供商默认地址
var defaultBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com",
	"qwen":     "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"ollama":   "http://localhost:11434/v1",
}

// DefaultBaseURL 返回提供商默认地址，未知提供商回退到 OpenAI
func DefaultBaseURL(provider string) string {
	if url, ok := defaultBaseURLs[strings.ToLower(provider)]; ok {
		return url
	}
	return defaultBaseURLs["openai"]
}

// NewModelClient 默认客户端工厂
// 所有提供商都走 OpenAI 兼容协议，只有默认地址不同
func NewModelClient(config *ClientConfig) (ModelClient, error) {
	if config == nil {
		return nil, fmt.Errorf("客户端配置不能为空")
	}

	cfg := *config
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL(cfg.Provider)
	}

	switch strings.ToLower(cfg.Provider) {
	case "openai", "deepseek", "qwen", "ollama", "custom":
	default:
		return nil, fmt.Errorf("不支持的提供商: %s", cfg.Provider)
	}

	client, err := openai.NewClient(&cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}
