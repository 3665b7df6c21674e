package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"curriculumhub/internal/ai"
	"curriculumhub/internal/logger"
	"curriculumhub/internal/metrics"
	"curriculumhub/pkg/httputil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultProbeTimeout = 10 * time.Second
	implementationMax   = 5
	implementationAsk   = "Reply with the single word: ok"
)

// Config 诊断配置
type Config struct {
	ProbeTimeout           time.Duration // 每个探针的超时
	ImplementationCooldown time.Duration // 实现探针成功结果的缓存时长，0 表示不缓存
	LogFailures            bool          // 失败探针是否走错误记录器
}

// StorageCheck 持久化配置存在性检查，不建立连接
type StorageCheck func() bool

// Option 诊断器可选项
type Option func(*Runner)

// WithResultCache 设置实现探针冷却缓存
func WithResultCache(cache ResultCache) Option {
	return func(r *Runner) {
		r.cache = cache
	}
}

// WithErrorLogger 设置错误记录器
func WithErrorLogger(errLogger *ai.ErrorLogger) Option {
	return func(r *Runner) {
		r.errLogger = errLogger
	}
}

// WithStorageCheck 设置持久化存在性检查
func WithStorageCheck(check StorageCheck) Option {
	return func(r *Runner) {
		if check != nil {
			r.storageConfigured = check
		}
	}
}

// WithHTTPClient 设置网络探针使用的 HTTP 客户端
func WithHTTPClient(client *httputil.Client) Option {
	return func(r *Runner) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// Runner 诊断聚合器
// 每次运行独立构造后端客户端，覆盖凭证不会写回生成客户端
type Runner struct {
	settings          ai.Settings
	factory           ai.ClientFactory
	credentials       ai.CredentialProvider
	storageConfigured StorageCheck
	httpClient        *httputil.Client
	cache             ResultCache
	errLogger         *ai.ErrorLogger
	cfg               Config
	log               *zap.Logger
	tracer            trace.Tracer
}

// NewRunner 创建诊断器，复用生成客户端的配置、工厂与凭证提供者
func NewRunner(client *ai.ResilientClient, cfg Config, opts ...Option) *Runner {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}

	r := &Runner{
		settings:          client.Settings(),
		factory:           client.Factory(),
		credentials:       client.CredentialProvider(),
		storageConfigured: func() bool { return false },
		cfg:               cfg,
		log:               logger.Named("diagnostics"),
		tracer:            otel.Tracer("curriculumhub/internal/diagnostics"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.httpClient == nil {
		r.httpClient = httputil.NewClient(httputil.WithTimeout(cfg.ProbeTimeout))
	}
	return r
}

// probeOutcome 探针结果与失败原因
type probeOutcome struct {
	result ProbeResult
	cause  error
}

// Run 执行一次诊断
// 四个探针并发执行，实现探针只等待凭证探针；所有失败都在报告内表达
func (r *Runner) Run(ctx context.Context, overrideCredential string) *DiagnosticReport {
	start := time.Now()
	report := &DiagnosticReport{State: StatePending}

	ctx, span := r.tracer.Start(ctx, "Diagnostics.Run")
	defer span.End()

	apiKey, source := ai.ResolveCredential(overrideCredential, r.settings.APIKey, r.settings.APIKeyEnv, r.credentials)
	span.SetAttributes(attribute.String("credential_source", string(source)))

	var (
		client    ai.ModelClient
		clientErr error
	)
	if apiKey != "" {
		client, clientErr = r.factory(&ai.ClientConfig{
			Provider: r.settings.Provider,
			APIKey:   apiKey,
			BaseURL:  r.settings.BaseURL,
			Model:    r.settings.Model,
			OrgID:    r.settings.OrgID,
			Timeout:  r.cfg.ProbeTimeout,
		})
		if client != nil {
			defer client.Close()
		}
	}

	report.State = StateProbing

	var credential, network, implementation, storage probeOutcome
	credentialDone := make(chan struct{})
	var g errgroup.Group

	g.Go(func() error {
		defer close(credentialDone)
		credential = r.guard(ProbeCredential, func() probeOutcome {
			return r.probeCredential(ctx, client, clientErr, apiKey, source)
		})
		return nil
	})
	g.Go(func() error {
		network = r.guard(ProbeNetwork, func() probeOutcome {
			return r.probeNetwork(ctx)
		})
		return nil
	})
	g.Go(func() error {
		<-credentialDone
		if !credential.result.Success {
			implementation = probeOutcome{result: newResult(false,
				"Skipped: the credential check failed, so no generation was attempted.",
				map[string]any{"skipped": true})}
			return nil
		}
		implementation = r.guard(ProbeImplementation, func() probeOutcome {
			return r.probeImplementation(ctx, client, apiKey)
		})
		return nil
	})
	g.Go(func() error {
		storage = r.guard(ProbeStorage, r.probeStorage)
		return nil
	})
	_ = g.Wait()

	report.Credential = credential.result
	report.Network = network.result
	report.Implementation = implementation.result
	report.Storage = storage.result

	report.OverallStatus = StatusFromSuccesses(report.SuccessCount())
	report.Recommendations = BuildRecommendations(report.Results())
	report.State = StateAggregated
	report.GeneratedAt = time.Now().UTC()
	report.DurationMs = time.Since(start).Milliseconds()

	r.record(report, time.Since(start))
	r.logFailures(map[ProbeName]probeOutcome{
		ProbeCredential:     credential,
		ProbeNetwork:        network,
		ProbeImplementation: implementation,
		ProbeStorage:        storage,
	})

	span.SetAttributes(
		attribute.String("overall_status", string(report.OverallStatus)),
		attribute.Int("successes", report.SuccessCount()),
	)
	return report
}

// guard 执行单项检查，panic 时记为失败结果
func (r *Runner) guard(name ProbeName, check func() probeOutcome) (out probeOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("诊断检查 panic", zap.String("check", string(name)), zap.Any("panic", rec))
			out = probeOutcome{
				result: newResult(false,
					fmt.Sprintf("The %s check failed unexpectedly.", name),
					map[string]any{"panic": fmt.Sprint(rec)}),
				cause: fmt.Errorf("%s 检查 panic: %v", name, rec),
			}
		}
	}()
	return check()
}

// probeCredential 调用鉴权的模型列表接口
func (r *Runner) probeCredential(ctx context.Context, client ai.ModelClient, clientErr error, apiKey string, source ai.CredentialSource) probeOutcome {
	details := map[string]any{"source": string(source)}

	if apiKey == "" {
		details["api_key_env"] = r.settings.APIKeyEnv
		return probeOutcome{
			result: newResult(false, fmt.Sprintf(
				"No API credential found: ai.api_key is empty and %s is not set.", r.settings.APIKeyEnv), details),
			cause: &ai.Failure{HTTPStatus: http.StatusUnauthorized, Message: "未配置 API 凭证"},
		}
	}
	details["masked_key"] = ai.MaskCredential(apiKey)

	if clientErr != nil {
		return probeOutcome{
			result: newResult(false, "Could not create the AI client: "+clientErr.Error(), details),
			cause:  clientErr,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	models, err := client.ListModels(ctx)
	if err != nil {
		f := ai.NormalizeError(err)
		details["kind"] = string(ai.ClassifyKind(f))
		msg := "Credential check failed: " + f.Message
		if f.HTTPStatus > 0 {
			details["http_status"] = f.HTTPStatus
			msg = fmt.Sprintf("Credential check failed (HTTP %d): %s", f.HTTPStatus, f.Message)
		} else if f.ConnErrorCode != "" {
			details["connection_code"] = f.ConnErrorCode
			msg = fmt.Sprintf("Credential check failed (%s): %s", f.ConnErrorCode, f.Message)
		}
		return probeOutcome{result: newResult(false, msg, details), cause: err}
	}

	details["model_count"] = len(models)
	available := false
	for _, m := range models {
		if m.ID == r.settings.Model {
			available = true
			break
		}
	}
	details["model_listed"] = available

	return probeOutcome{result: newResult(true,
		fmt.Sprintf("Credential accepted; %d models available.", len(models)), details)}
}

// probeNetwork 不带凭证访问同一主机
// 401/403 说明主机可达只是拒绝了匿名请求
func (r *Runner) probeNetwork(ctx context.Context) probeOutcome {
	url := strings.TrimRight(r.settings.BaseURL, "/") + "/models"
	details := map[string]any{"url": url}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	res, err := r.httpClient.Probe(ctx, url)
	if res != nil {
		details["latency_ms"] = res.Latency.Milliseconds()
	}
	if err != nil {
		code := ai.ConnErrorCode(err)
		if code != "" {
			details["connection_code"] = code
		}
		return probeOutcome{
			result: newResult(false, fmt.Sprintf("AI endpoint is unreachable: %v", err), details),
			cause:  &ai.Failure{ConnErrorCode: code, Message: err.Error(), Err: err},
		}
	}

	details["http_status"] = res.StatusCode
	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return probeOutcome{result: newResult(true, fmt.Sprintf(
			"AI endpoint is reachable; it rejected the unauthenticated request as expected (HTTP %d).", res.StatusCode), details)}
	case res.StatusCode >= 500:
		return probeOutcome{
			result: newResult(false, fmt.Sprintf(
				"AI endpoint is reachable but answered with a server error (HTTP %d).", res.StatusCode), details),
			cause: &ai.Failure{HTTPStatus: res.StatusCode, Message: "网络探针收到服务端错误"},
		}
	default:
		return probeOutcome{result: newResult(true, fmt.Sprintf(
			"AI endpoint is reachable (HTTP %d).", res.StatusCode), details)}
	}
}

// probeImplementation 真实发起一次最小生成
// 成功结果按凭证指纹缓存，冷却期内直接复用
func (r *Runner) probeImplementation(ctx context.Context, client ai.ModelClient, apiKey string) probeOutcome {
	key := Fingerprint(apiKey, r.settings.BaseURL, r.settings.Model)
	if r.cache != nil && r.cfg.ImplementationCooldown > 0 {
		if cached, ok := r.cache.Get(ctx, key); ok && cached.Success {
			res := *cached
			res.Details = copyDetails(cached.Details)
			res.Details["cached"] = true
			return probeOutcome{result: res}
		}
	}

	details := map[string]any{"model": r.settings.Model}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	resp, err := client.ChatCompletion(ctx, &ai.ChatCompletionRequest{
		Model:     r.settings.Model,
		Messages:  []ai.Message{{Role: "user", Content: implementationAsk}},
		MaxTokens: implementationMax,
	})
	details["latency_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		f := ai.NormalizeError(err)
		details["kind"] = string(ai.ClassifyKind(f))
		if f.HTTPStatus > 0 {
			details["http_status"] = f.HTTPStatus
		}
		return probeOutcome{
			result: newResult(false, "Test generation failed: "+f.Error(), details),
			cause:  err,
		}
	}

	details["total_tokens"] = resp.Usage.TotalTokens
	result := newResult(true, fmt.Sprintf("Test generation succeeded with model %s.", r.settings.Model), details)
	if r.cache != nil && r.cfg.ImplementationCooldown > 0 {
		r.cache.Set(ctx, key, result, r.cfg.ImplementationCooldown)
	}
	return probeOutcome{result: result}
}

// probeStorage 只检查持久化配置是否存在
func (r *Runner) probeStorage() probeOutcome {
	if r.storageConfigured() {
		return probeOutcome{result: newResult(true, "Error persistence is configured.", nil)}
	}
	return probeOutcome{
		result: newResult(false, "Error persistence is not configured; errors are only written to local logs.", nil),
		cause:  errors.New("未配置错误持久化"),
	}
}

// record 写入诊断指标
func (r *Runner) record(report *DiagnosticReport, elapsed time.Duration) {
	metrics.DiagnosticsRunsTotal.WithLabelValues(string(report.OverallStatus)).Inc()
	metrics.DiagnosticsDuration.Observe(elapsed.Seconds())
	for name, res := range report.Results() {
		metrics.DiagnosticsProbeSuccess.WithLabelValues(string(name)).Set(metrics.BoolValue(res.Success))
	}

	r.log.Info("诊断完成",
		zap.String("overall_status", string(report.OverallStatus)),
		zap.Int("successes", report.SuccessCount()),
		zap.Duration("elapsed", elapsed))
}

// logFailures 失败探针走错误记录器，组件名为 diagnostics.<probe>
func (r *Runner) logFailures(outcomes map[ProbeName]probeOutcome) {
	if !r.cfg.LogFailures || r.errLogger == nil {
		return
	}
	for _, name := range ProbeOrder {
		o := outcomes[name]
		if o.result.Success || o.cause == nil {
			continue
		}
		r.errLogger.MakeHandler("diagnostics." + string(name))(o.cause)
	}
}

func newResult(success bool, message string, details map[string]any) ProbeResult {
	return ProbeResult{
		Success:   success,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func copyDetails(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
