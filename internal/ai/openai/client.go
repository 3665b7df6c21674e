package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"curriculumhub/pkg/aiinterface"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
	requestIDKey   = "X-Request-Id"
)

// Client OpenAI 兼容客户端适配器
// 只做单次调用与错误归一化，重试由上层负责
type Client struct {
	client  *openai.Client
	modelID string
}

// NewClient 创建 OpenAI 客户端
func NewClient(config *aiinterface.ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("客户端配置不能为空")
	}
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, &aiinterface.Failure{
			HTTPStatus: http.StatusUnauthorized,
			Message:    "OpenAI API Key 不能为空",
		}
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &requestIDTransport{base: http.DefaultTransport},
	}

	modelID := config.Model
	if modelID == "" {
		modelID = defaultModel
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		modelID: modelID,
	}, nil
}

// ChatCompletion 对话补全
// Stream 为 true 时走流式接口并把分片拼接成完整文本
func (c *Client) ChatCompletion(ctx context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	if req == nil {
		return nil, &aiinterface.Failure{HTTPStatus: http.StatusBadRequest, Message: "请求不能为空"}
	}

	model := req.Model
	if model == "" {
		model = c.modelID
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}

	holder := &requestIDHolder{}
	ctx = context.WithValue(ctx, requestIDCtxKey{}, holder)

	if req.Stream {
		return c.streamCompletion(ctx, openaiReq, holder)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, toFailure(err, model, holder.get())
	}

	if len(resp.Choices) == 0 {
		return nil, &aiinterface.Failure{
			HTTPStatus: http.StatusBadGateway,
			RequestID:  holder.get(),
			Model:      model,
			Message:    "API 返回空响应",
		}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, contentFiltered(model, holder.get())
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, &aiinterface.Failure{
			HTTPStatus: http.StatusBadGateway,
			RequestID:  holder.get(),
			Model:      model,
			Message:    "API 返回空内容",
		}
	}

	return &aiinterface.ChatCompletionResponse{
		ID:        resp.ID,
		RequestID: holder.get(),
		Model:     resp.Model,
		Content:   choice.Message.Content,
		Usage: aiinterface.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// streamCompletion 读取流直到 EOF 并拼接内容
func (c *Client) streamCompletion(ctx context.Context, openaiReq openai.ChatCompletionRequest, holder *requestIDHolder) (*aiinterface.ChatCompletionResponse, error) {
	openaiReq.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, openaiReq)
	if err != nil {
		return nil, toFailure(err, openaiReq.Model, holder.get())
	}
	defer stream.Close()

	var (
		builder strings.Builder
		id      string
		model   = openaiReq.Model
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, toFailure(err, openaiReq.Model, holder.get())
		}

		if chunk.ID != "" {
			id = chunk.ID
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if chunk.Choices[0].FinishReason == openai.FinishReasonContentFilter {
			return nil, contentFiltered(openaiReq.Model, holder.get())
		}
		builder.WriteString(chunk.Choices[0].Delta.Content)
	}

	content := builder.String()
	if strings.TrimSpace(content) == "" {
		return nil, &aiinterface.Failure{
			HTTPStatus: http.StatusBadGateway,
			RequestID:  holder.get(),
			Model:      openaiReq.Model,
			Message:    "流式响应为空",
		}
	}

	return &aiinterface.ChatCompletionResponse{
		ID:        id,
		RequestID: holder.get(),
		Model:     model,
		Content:   content,
	}, nil
}

// ListModels 列出可用模型
func (c *Client) ListModels(ctx context.Context) ([]aiinterface.ModelInfo, error) {
	holder := &requestIDHolder{}
	ctx = context.WithValue(ctx, requestIDCtxKey{}, holder)

	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, toFailure(err, "", holder.get())
	}

	models := make([]aiinterface.ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, aiinterface.ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

// Name 返回客户端名称
func (c *Client) Name() string {
	return "openai"
}

// Close 关闭客户端
func (c *Client) Close() error {
	// OpenAI 客户端无需显式关闭
	return nil
}

// toFailure 把 SDK 错误解析为 Failure
func toFailure(err error, model, requestID string) *aiinterface.Failure {
	f := &aiinterface.Failure{
		RequestID: requestID,
		Model:     model,
		Message:   err.Error(),
		Err:       err,
	}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		f.HTTPStatus = apiErr.HTTPStatusCode
		if apiErr.Message != "" {
			f.Message = apiErr.Message
		}
		if code, ok := apiErr.Code.(string); ok {
			f.BackendCode = code
		}
		f.ContentFiltered = isContentFilter(apiErr)
	case errors.As(err, &reqErr):
		f.HTTPStatus = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			f.Message = reqErr.Err.Error()
		}
	}

	if f.HTTPStatus == 0 {
		f.ConnErrorCode = aiinterface.ConnErrorCode(err)
	}
	return f
}

// isContentFilter 判断后端是否因内容安全策略拒绝
func isContentFilter(apiErr *openai.APIError) bool {
	if code, ok := apiErr.Code.(string); ok {
		switch code {
		case "content_filter", "content_policy_violation":
			return true
		}
	}
	if apiErr.InnerError != nil && apiErr.InnerError.Code == "ResponsibleAIPolicyViolation" {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "content management policy") || strings.Contains(msg, "safety system")
}

func contentFiltered(model, requestID string) *aiinterface.Failure {
	return &aiinterface.Failure{
		HTTPStatus:      http.StatusBadRequest,
		ContentFiltered: true,
		RequestID:       requestID,
		Model:           model,
		BackendCode:     string(openai.FinishReasonContentFilter),
		Message:         "内容被安全策略过滤",
	}
}

type requestIDCtxKey struct{}

// requestIDHolder 保存最近一次响应的 x-request-id
type requestIDHolder struct {
	mu sync.Mutex
	id string
}

func (h *requestIDHolder) set(id string) {
	h.mu.Lock()
	h.id = id
	h.mu.Unlock()
}

func (h *requestIDHolder) get() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// requestIDTransport 从响应头提取后端请求 ID
type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		if holder, ok := req.Context().Value(requestIDCtxKey{}).(*requestIDHolder); ok {
			holder.set(resp.Header.Get(requestIDKey))
		}
	}
	return resp, err
}
