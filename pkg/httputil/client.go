package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "CurriculumHub/1.0"
	maxDrainBytes    = 64 << 10
)

// Client 轻量 HTTP 客户端，用于连通性探测
// 不做重试，不携带任何凭证
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
}

// ClientOption 客户端配置选项
type ClientOption func(*Client)

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHeaders 设置默认请求头
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// NewClient 创建HTTP客户端
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			// 探测只关心首个响应，不跟随跳转
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: defaultTimeout,
		headers: make(map[string]string),
	}

	for _, opt := range opts {
		opt(client)
	}

	if _, ok := client.headers["User-Agent"]; !ok {
		client.headers["User-Agent"] = defaultUserAgent
	}

	return client
}

// ProbeResult 一次探测的结果
type ProbeResult struct {
	URL        string
	StatusCode int
	Latency    time.Duration
}

// Reachable 是否收到了任意 HTTP 响应
func (r *ProbeResult) Reachable() bool {
	return r != nil && r.StatusCode > 0
}

// Probe 发送一次 GET 请求并丢弃响应体
// 只要收到 HTTP 响应就不返回错误，状态码由调用方解释
func (c *Client) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	start := time.Now()
	resp, err := c.Get(ctx, url)
	if err != nil {
		return &ProbeResult{URL: url, Latency: time.Since(start)}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return &ProbeResult{
		URL:        url,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}, nil
}

// Get 发送GET请求
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建GET请求失败: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}
