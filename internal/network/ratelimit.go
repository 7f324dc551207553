package network

import (
	"context"
	"sync"
	"time"

	"github.com/affisync/internal/models"
)

// RateLimiter 适配器实例级限流器。
// 状态（快照 + 上次请求时间）归实例所有，互斥锁保证并发调用下
// 不会出现两次调用同时认为还有剩余额度。
type RateLimiter struct {
	mu          sync.Mutex
	networkType string
	limits      RateLimits
	clock       Clock

	lastRequest time.Time
	info        models.RateLimitInfo
	hasInfo     bool
}

// NewRateLimiter 创建限流器
func NewRateLimiter(networkType string, limits RateLimits, clock Clock) *RateLimiter {
	if clock == nil {
		clock = RealClock()
	}
	return &RateLimiter{
		networkType: networkType,
		limits:      limits,
		clock:       clock,
	}
}

// Wait 在每次远端调用前协作式阻塞：
// 远端声明额度耗尽且已知 retry_after 时睡到额度恢复；
// 否则按 per_minute 预算保证与上次调用的最小间隔。
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	delay := l.pendingDelay()
	l.mu.Unlock()

	if delay > 0 {
		if err := l.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	l.mu.Lock()
	l.lastRequest = l.clock.Now()
	// retry_after 只消费一次
	if l.hasInfo && l.info.RetryAfter > 0 {
		l.info.RetryAfter = 0
	}
	l.mu.Unlock()
	return ctx.Err()
}

func (l *RateLimiter) pendingDelay() time.Duration {
	if l.hasInfo && l.info.Remaining == 0 && l.info.RetryAfter > 0 {
		return l.info.RetryAfter
	}
	if l.limits.PerMinute <= 0 || l.lastRequest.IsZero() {
		return 0
	}
	minInterval := time.Minute / time.Duration(l.limits.PerMinute)
	elapsed := l.clock.Now().Sub(l.lastRequest)
	if elapsed >= minInterval {
		return 0
	}
	return minInterval - elapsed
}

// Observe 用响应头解析出的限流信息刷新快照
func (l *RateLimiter) Observe(info models.RateLimitInfo) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.info = info
	l.hasInfo = true
}

// Snapshot 返回当前限流快照
func (l *RateLimiter) Snapshot() models.RateLimitInfo {
	if l == nil {
		return models.RateLimitInfo{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasInfo {
		return models.RateLimitInfo{
			Limit:     l.limits.PerMinute,
			Remaining: l.limits.PerMinute,
		}
	}
	return l.info
}
