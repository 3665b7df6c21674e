package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"curriculumhub/internal/logger"
	"curriculumhub/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ComponentGenerate 生成调用的错误来源组件名
const ComponentGenerate = "ai.generate"

const (
	defaultTimeout   = 30 * time.Second
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 8 * time.Second
	callLogTimeout   = 5 * time.Second
)

// Settings 弹性客户端配置
// 由组合根显式构造并传入，不存在全局单例
type Settings struct {
	Provider   string
	APIKey     string
	APIKeyEnv  string
	BaseURL    string
	OrgID      string
	Model      string
	MaxRetries int
	Timeout    time.Duration // 单次调用超时
	BaseDelay  time.Duration // 首次退避时长，之后逐次翻倍
	MaxDelay   time.Duration // 退避上限
}

func (s Settings) withDefaults() Settings {
	if s.Provider == "" {
		s.Provider = "openai"
	}
	if s.APIKeyEnv == "" {
		s.APIKeyEnv = DefaultAPIKeyEnv
	}
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL(s.Provider)
	}
	if s.Model == "" {
		s.Model = "gpt-4o-mini"
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.Timeout <= 0 {
		s.Timeout = defaultTimeout
	}
	if s.BaseDelay <= 0 {
		s.BaseDelay = defaultBaseDelay
	}
	if s.MaxDelay <= 0 {
		s.MaxDelay = defaultMaxDelay
	}
	if s.MaxDelay < s.BaseDelay {
		s.MaxDelay = s.BaseDelay
	}
	return s
}

// GenerationRequest 生成请求
type GenerationRequest struct {
	Prompt            string    `json:"prompt"`
	Messages          []Message `json:"messages,omitempty"`
	Subject           string    `json:"subject,omitempty"` // 学科提示，优先用于兜底文案匹配
	SystemInstruction string    `json:"system_instruction,omitempty"`
	Model             string    `json:"model,omitempty"`
	MaxTokens         int       `json:"max_tokens,omitempty"`
	Temperature       float64   `json:"temperature,omitempty"`
	Stream            bool      `json:"stream,omitempty"`
	UserID            string    `json:"-"`
}

// GenerationOutcome 生成结果
// Text 始终非空：要么是模型输出，要么是兜底文案
type GenerationOutcome struct {
	Text       string        `json:"text"`
	IsFallback bool          `json:"is_fallback"`
	Latency    time.Duration `json:"latency"`
	Attempts   int           `json:"attempts"`
	Model      string        `json:"model"`
	Usage      Usage         `json:"usage"`
	RequestID  string        `json:"request_id,omitempty"`
	LastError  *ErrorRecord  `json:"last_error,omitempty"`
}

// ClientStatus 客户端状态视图，凭证已脱敏
type ClientStatus struct {
	Configured       bool             `json:"configured"`
	Provider         string           `json:"provider"`
	Model            string           `json:"model"`
	BaseURL          string           `json:"base_url"`
	CredentialSource CredentialSource `json:"credential_source"`
	MaskedKey        string           `json:"masked_key,omitempty"`
	MaxRetries       int              `json:"max_retries"`
	TimeoutSeconds   float64          `json:"timeout_seconds"`
}

// Option 弹性客户端可选项
type Option func(*ResilientClient)

// WithClientFactory 替换后端客户端工厂
func WithClientFactory(factory ClientFactory) Option {
	return func(c *ResilientClient) {
		if factory != nil {
			c.factory = factory
		}
	}
}

// WithErrorLogger 设置错误记录器
func WithErrorLogger(errLogger *ErrorLogger) Option {
	return func(c *ResilientClient) {
		c.errLogger = errLogger
	}
}

// WithCallLogger 设置调用日志记录器
func WithCallLogger(callLogger ModelCallLogger) Option {
	return func(c *ResilientClient) {
		c.callLogger = callLogger
	}
}

// WithCredentialProvider 设置凭证提供者
func WithCredentialProvider(provider CredentialProvider) Option {
	return func(c *ResilientClient) {
		if provider != nil {
			c.credentials = provider
		}
	}
}

// WithPerformanceMonitor 设置性能监控器
func WithPerformanceMonitor(monitor *PerformanceMonitor) Option {
	return func(c *ResilientClient) {
		c.monitor = monitor
	}
}

// ResilientClient 带重试、退避与兜底的生成客户端
// Generate 从不返回错误，所有失败在内部消化
type ResilientClient struct {
	settings    Settings
	apiKey      string
	source      CredentialSource
	client      ModelClient // nil 表示未配置
	factory     ClientFactory
	credentials CredentialProvider
	errLogger   *ErrorLogger
	handler     ErrorHandler
	callLogger  ModelCallLogger
	monitor     *PerformanceMonitor
	log         *zap.Logger
	tracer      trace.Tracer
	wg          sync.WaitGroup
}

// NewResilientClient 创建弹性客户端
// 解析不到凭证或创建后端客户端失败时进入未配置状态，不返回错误
func NewResilientClient(settings Settings, opts ...Option) *ResilientClient {
	c := &ResilientClient{
		settings:    settings.withDefaults(),
		factory:     NewModelClient,
		credentials: EnvCredentialProvider{},
		log:         logger.Named("ai.resilient"),
		tracer:      otel.Tracer("curriculumhub/internal/ai"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.errLogger == nil {
		c.errLogger = NewErrorLogger(nil)
	}
	c.handler = c.errLogger.MakeHandler(ComponentGenerate)

	c.apiKey, c.source = ResolveCredential("", c.settings.APIKey, c.settings.APIKeyEnv, c.credentials)
	if c.apiKey == "" {
		c.log.Warn("未找到 AI 凭证，生成请求将直接返回兜底文案",
			zap.String("api_key_env", c.settings.APIKeyEnv))
		return c
	}

	client, err := c.factory(c.clientConfig(c.apiKey))
	if err != nil {
		c.log.Error("创建 AI 客户端失败，生成请求将直接返回兜底文案", zap.Error(err))
		return c
	}
	c.client = client

	c.log.Info("AI 客户端已配置",
		zap.String("provider", c.settings.Provider),
		zap.String("model", c.settings.Model),
		zap.String("base_url", c.settings.BaseURL),
		zap.String("credential_source", string(c.source)),
		zap.Int("max_retries", c.settings.MaxRetries))
	return c
}

// clientConfig 用指定凭证构造后端配置
func (c *ResilientClient) clientConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		Provider: c.settings.Provider,
		APIKey:   apiKey,
		BaseURL:  c.settings.BaseURL,
		Model:    c.settings.Model,
		OrgID:    c.settings.OrgID,
		Timeout:  c.settings.Timeout,
	}
}

// IsConfigured 是否持有可用的后端客户端
func (c *ResilientClient) IsConfigured() bool {
	return c != nil && c.client != nil
}

// Settings 返回配置副本
func (c *ResilientClient) Settings() Settings {
	return c.settings
}

// Factory 返回后端客户端工厂，诊断探针复用同一工厂
func (c *ResilientClient) Factory() ClientFactory {
	return c.factory
}

// CredentialProvider 返回凭证提供者
func (c *ResilientClient) CredentialProvider() CredentialProvider {
	return c.credentials
}

// Status 返回状态视图
func (c *ResilientClient) Status() ClientStatus {
	status := ClientStatus{
		Configured:       c.IsConfigured(),
		Provider:         c.settings.Provider,
		Model:            c.settings.Model,
		BaseURL:          c.settings.BaseURL,
		CredentialSource: c.source,
		MaxRetries:       c.settings.MaxRetries,
		TimeoutSeconds:   c.settings.Timeout.Seconds(),
	}
	if c.apiKey != "" {
		status.MaskedKey = MaskCredential(c.apiKey)
	}
	return status
}

// Monitor 返回性能监控器，可能为 nil
func (c *ResilientClient) Monitor() *PerformanceMonitor {
	return c.monitor
}

// Generate 生成文本
// 未配置时不发起任何网络请求；失败时按分类决定是否重试，最终返回兜底文案
func (c *ResilientClient) Generate(ctx context.Context, req GenerationRequest) GenerationOutcome {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.settings.Model
	}

	ctx, span := c.tracer.Start(ctx, "ResilientClient.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", model),
		attribute.Bool("configured", c.IsConfigured()),
		attribute.Bool("stream", req.Stream),
	)

	if !c.IsConfigured() {
		return c.finish(ctx, span, req, fallbackOutcome(req, model, 0, nil), start, "unconfigured")
	}

	chatReq := c.buildRequest(req, model)
	if len(chatReq.Messages) == 0 {
		record := c.handler(&Failure{HTTPStatus: 400, Model: model, Message: "prompt 与 messages 均为空"})
		return c.finish(ctx, span, req, fallbackOutcome(req, model, 0, record), start, string(record.Kind))
	}

	var (
		lastErr  *ErrorRecord
		attempts int
	)
	for attempt := 0; attempt <= c.settings.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		attempts++
		resp, err := c.attempt(ctx, chatReq, attempts)
		if err == nil {
			metrics.GenerationAttemptsTotal.WithLabelValues(model, "success").Inc()
			outcome := GenerationOutcome{
				Text:      resp.Content,
				Attempts:  attempts,
				Model:     model,
				Usage:     resp.Usage,
				RequestID: resp.RequestID,
			}
			if resp.Model != "" {
				outcome.Model = resp.Model
			}
			return c.finish(ctx, span, req, outcome, start, "")
		}

		metrics.GenerationAttemptsTotal.WithLabelValues(model, "error").Inc()
		lastErr = c.handler(err)
		c.log.Warn("AI 生成调用失败",
			zap.Int("attempt", attempts),
			zap.String("kind", string(lastErr.Kind)),
			zap.String("error_id", lastErr.ID),
			zap.String("trace_id", logger.GetTraceID(ctx)))

		if ctx.Err() != nil || !lastErr.Retryable() {
			break
		}
	}

	reason := "exhausted"
	switch {
	case ctx.Err() != nil:
		reason = "canceled"
	case lastErr != nil && !lastErr.Retryable():
		reason = string(lastErr.Kind)
	}
	return c.finish(ctx, span, req, fallbackOutcome(req, model, attempts, lastErr), start, reason)
}

// attempt 单次调用，带独立超时
// 后端 panic 转为未知错误，按可重试处理
func (c *ResilientClient) attempt(ctx context.Context, req *ChatCompletionRequest, n int) (resp *ChatCompletionResponse, err error) {
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("Attempt-%d", n))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("模型调用 panic", zap.Int("attempt", n), zap.Any("panic", r))
			resp = nil
			err = &Failure{Model: req.Model, Message: fmt.Sprint(r)}
			span.SetStatus(codes.Error, "AI model call panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.settings.Timeout)
	defer cancel()

	resp, err = c.client.ChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "AI model call failed")
		return nil, err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		err = &Failure{HTTPStatus: 502, Model: req.Model, Message: "后端返回空内容"}
		span.SetStatus(codes.Error, "empty completion")
		return nil, err
	}
	return resp, nil
}

// backoff 第 n 次重试前等待 base*2^(n-1)，不超过上限；可被取消
func (c *ResilientClient) backoff(ctx context.Context, n int) error {
	delay := c.BackoffDelay(n)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffDelay 计算第 n 次重试前的等待时长
func (c *ResilientClient) BackoffDelay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	delay := c.settings.BaseDelay
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= c.settings.MaxDelay || delay <= 0 {
			return c.settings.MaxDelay
		}
	}
	if delay > c.settings.MaxDelay {
		return c.settings.MaxDelay
	}
	return delay
}

// buildRequest 把生成请求转成后端请求
func (c *ResilientClient) buildRequest(req GenerationRequest, model string) *ChatCompletionRequest {
	messages := make([]Message, 0, len(req.Messages)+2)
	hasSystem := false
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == "system" {
			hasSystem = true
		}
		messages = append(messages, m)
	}
	if strings.TrimSpace(req.Prompt) != "" {
		messages = append(messages, Message{Role: "user", Content: req.Prompt})
	}
	if len(messages) > 0 && !hasSystem && strings.TrimSpace(req.SystemInstruction) != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemInstruction}}, messages...)
	}

	return &ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
}

// fallbackOutcome 构造兜底结果
func fallbackOutcome(req GenerationRequest, model string, attempts int, lastErr *ErrorRecord) GenerationOutcome {
	texts := make([]string, 0, len(req.Messages)+2)
	texts = append(texts, req.Subject, req.Prompt)
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			texts = append(texts, req.Messages[i].Content)
		}
	}
	_, text := SelectFallback(texts...)

	return GenerationOutcome{
		Text:       text,
		IsFallback: true,
		Attempts:   attempts,
		Model:      model,
		LastError:  lastErr,
	}
}

// finish 补齐耗时、记录指标与调用日志
func (c *ResilientClient) finish(ctx context.Context, span trace.Span, req GenerationRequest, outcome GenerationOutcome, start time.Time, reason string) GenerationOutcome {
	outcome.Latency = time.Since(start)

	result := "generated"
	if outcome.IsFallback {
		result = "fallback"
		span.SetStatus(codes.Error, "fallback: "+reason)
	}
	span.SetAttributes(
		attribute.Int("attempts", outcome.Attempts),
		attribute.Bool("fallback", outcome.IsFallback),
	)

	metrics.GenerationOutcomesTotal.WithLabelValues(result, reason).Inc()
	metrics.GenerationDuration.WithLabelValues(result).Observe(outcome.Latency.Seconds())
	c.monitor.Record(outcome.Model, &outcome)

	if outcome.IsFallback {
		logger.Trace(ctx, c.log).Info("返回兜底文案",
			zap.String("reason", reason),
			zap.Int("attempts", outcome.Attempts),
			zap.Duration("latency", outcome.Latency))
	}

	c.logCall(ctx, req, outcome)
	return outcome
}

// logCall 异步写入调用日志
func (c *ResilientClient) logCall(ctx context.Context, req GenerationRequest, outcome GenerationOutcome) {
	if c.callLogger == nil {
		return
	}

	entry := &ModelCallLog{
		UserID:           req.UserID,
		Component:        ComponentGenerate,
		ModelProvider:    c.settings.Provider,
		ModelName:        outcome.Model,
		PromptTokens:     outcome.Usage.PromptTokens,
		CompletionTokens: outcome.Usage.CompletionTokens,
		TotalTokens:      outcome.Usage.TotalTokens,
		LatencyMs:        outcome.Latency.Milliseconds(),
		Attempts:         outcome.Attempts,
		Fallback:         outcome.IsFallback,
	}
	if traceID := logger.GetTraceID(ctx); traceID != "" {
		entry.TraceID = &traceID
	}
	requestID := outcome.RequestID
	if requestID == "" && outcome.LastError != nil && outcome.LastError.RequestID != nil {
		requestID = *outcome.LastError.RequestID
	}
	if requestID != "" {
		entry.RequestID = &requestID
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("调用日志写入 panic", zap.Any("panic", r))
			}
		}()

		logCtx, cancel := context.WithTimeout(context.Background(), callLogTimeout)
		defer cancel()
		if err := c.callLogger.Log(logCtx, entry); err != nil {
			c.log.Warn("调用日志写入失败", zap.Error(err))
		}
	}()
}

// Close 等待调用日志写完并关闭后端客户端
func (c *ResilientClient) Close() error {
	c.wg.Wait()
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
