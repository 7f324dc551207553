package models

import "time"

// WebhookPayload 规范化后的回调事件，按请求构造，本身不落库
type WebhookPayload struct {
	EventType   string    `json:"event_type"` // conversion.created / conversion.updated / conversion.cancelled / product.updated
	NetworkType string    `json:"network_type"`
	TenantID    string    `json:"tenant_id"`
	Timestamp   time.Time `json:"timestamp"`
	Verified    bool      `json:"verified"` // 签名校验通过，或经白名单/显式放行
	Data        JSON      `json:"data"`
}

// RateLimitInfo 远端声明的限流快照，随每次响应刷新
type RateLimitInfo struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}
