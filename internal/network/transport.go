package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"
)

const defaultRequestTimeout = 15 * time.Second

// 限流响应头按优先级尝试的候选名
var (
	rateLimitLimitHeaders     = []string{"X-RateLimit-Limit", "X-Rate-Limit-Limit", "RateLimit-Limit"}
	rateLimitRemainingHeaders = []string{"X-RateLimit-Remaining", "X-Rate-Limit-Remaining", "RateLimit-Remaining"}
	rateLimitResetHeaders     = []string{"X-RateLimit-Reset", "X-Rate-Limit-Reset", "RateLimit-Reset"}
)

// AuthFunc 出站请求的鉴权注入回调
type AuthFunc func(req *http.Request) error

// ClientOptions 适配器传输层配置
type ClientOptions struct {
	NetworkType string
	BaseURL     string
	Auth        AuthFunc
	Limits      RateLimits
	Retry       *RetryPolicy
	Timeout     time.Duration
	Clock       Clock
	HTTPClient  *http.Client
}

// Request 一次出站请求描述
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string
}

// Client 每个适配器实例持有一个传输客户端：
// 请求前注入网络鉴权并执行限流等待，响应后提取限流头并分类错误。
type Client struct {
	networkType string
	baseURL     string
	auth        AuthFunc
	limiter     *RateLimiter
	retry       RetryPolicy
	httpClient  *http.Client
	clock       Clock
}

// NewClient 创建传输客户端
func NewClient(opts ClientOptions) *Client {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	retry := DefaultRetryPolicy()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	if retry.Clock == nil {
		retry.Clock = clock
	}
	return &Client{
		networkType: opts.NetworkType,
		baseURL:     strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		auth:        opts.Auth,
		limiter:     NewRateLimiter(opts.NetworkType, opts.Limits, clock),
		retry:       retry,
		httpClient:  httpClient,
		clock:       clock,
	}
}

// BaseURL 返回网络基础地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RateLimit 返回当前限流快照
func (c *Client) RateLimit() models.RateLimitInfo {
	return c.limiter.Snapshot()
}

// Do 执行一次出站请求：限流等待 → 鉴权注入 → 发送 → 限流头提取 → 错误分类
func (c *Client) Do(ctx context.Context, req Request) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, NewError(c.networkType, constants.ErrCodeCancelled, "rate limit wait interrupted", false, err)
	}

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, 0, NewError(c.networkType, constants.ErrCodeRemote, "build request failed", false, err)
	}
	if c.auth != nil {
		if err := c.auth(httpReq); err != nil {
			return nil, 0, NewError(c.networkType, constants.ErrCodeConfigInvalid, "auth injection failed", false, err)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, c.classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, resp.StatusCode, NewError(c.networkType, constants.ErrCodeRemote, "read response failed", true, readErr)
	}

	if info, ok := parseRateLimitHeaders(resp.Header, c.clock.Now()); ok {
		c.limiter.Observe(info)
	}

	if err := c.classifyStatus(resp, body); err != nil {
		return body, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// DoWithRetry 带指数退避重试的出站请求，仅重试可重试错误
func (c *Client) DoWithRetry(ctx context.Context, req Request) ([]byte, int, error) {
	var body []byte
	var status int
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		body, status, callErr = c.Do(ctx, req)
		return callErr
	})
	return body, status, err
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}
	var reader io.Reader
	if len(req.Body) > 0 {
		reader = bytes.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json, application/xml, text/plain, */*")
	}
	return httpReq, nil
}

func (c *Client) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return NewError(c.networkType, constants.ErrCodeTimeout, "request timed out", true, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(c.networkType, constants.ErrCodeCancelled, "request cancelled", false, err)
	}
	return NewError(c.networkType, constants.ErrCodeRemote, "request failed", true, err)
}

func (c *Client) classifyStatus(resp *http.Response, body []byte) error {
	status := resp.StatusCode
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{
			NetworkType: c.networkType,
			StatusCode:  status,
			Message:     truncateBody(body),
		}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{
			NetworkType: c.networkType,
			RetryAfter:  retryAfterFromHeaders(resp.Header),
		}
	case status >= 500:
		return NewError(c.networkType, constants.ErrCodeRemote,
			fmt.Sprintf("server error (status %d)", status), true, nil)
	case status >= 400:
		return NewError(c.networkType, constants.ErrCodeRemote,
			fmt.Sprintf("request rejected (status %d): %s", status, truncateBody(body)), false, nil)
	}
	return nil
}

func parseRateLimitHeaders(header http.Header, now time.Time) (models.RateLimitInfo, bool) {
	info := models.RateLimitInfo{Remaining: -1}
	found := false
	if v, ok := firstHeaderInt(header, rateLimitLimitHeaders); ok {
		info.Limit = v
		found = true
	}
	if v, ok := firstHeaderInt(header, rateLimitRemainingHeaders); ok {
		info.Remaining = v
		found = true
	}
	if v, ok := firstHeaderInt(header, rateLimitResetHeaders); ok {
		// reset 既可能是 unix 秒也可能是相对秒数
		if v > int(now.Unix()/2) {
			info.ResetAt = time.Unix(int64(v), 0)
		} else {
			info.ResetAt = now.Add(time.Duration(v) * time.Second)
		}
		found = true
	}
	if retryAfter := retryAfterFromHeaders(header); retryAfter > 0 {
		info.RetryAfter = retryAfter
		found = true
	}
	if info.Remaining < 0 {
		info.Remaining = info.Limit
	}
	return info, found
}

func retryAfterFromHeaders(header http.Header) time.Duration {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func firstHeaderInt(header http.Header, names []string) (int, bool) {
	for _, name := range names {
		raw := strings.TrimSpace(header.Get(name))
		if raw == "" {
			continue
		}
		if v, err := strconv.Atoi(raw); err == nil {
			return v, true
		}
	}
	return 0, false
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

func truncateBody(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "...(truncated)"
}
