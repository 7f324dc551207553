package network

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	defaultMaxJitter  = time.Second
)

// RetryPolicy 指数退避重试，显式状态机（尝试次数、上次错误、下次延迟），
// 时钟与随机源可注入，测试无需真实 sleep。
type RetryPolicy struct {
	MaxRetries int           // 重试次数上限（不含首次尝试）
	BaseDelay  time.Duration // 首次退避基准
	MaxJitter  time.Duration // 抖动上限
	Clock      Clock
	Rand       func(n int64) int64
}

// DefaultRetryPolicy 返回默认策略：3 次重试，1s 基准，1s 抖动
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		MaxJitter:  defaultMaxJitter,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxJitter < 0 {
		p.MaxJitter = 0
	}
	if p.Clock == nil {
		p.Clock = RealClock()
	}
	if p.Rand == nil {
		p.Rand = rand.Int63n
	}
	return p
}

// Do 执行 fn；仅当错误标记为可重试时退避重试，
// 耗尽重试后原样返回最后一次错误。
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.normalized()
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt >= p.MaxRetries {
			return lastErr
		}
		if err := p.Clock.Sleep(ctx, p.delayFor(attempt)); err != nil {
			return lastErr
		}
	}
}

// delayFor 计算第 attempt 次失败后的退避：base·2^attempt + rand(0, jitter)
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if p.MaxJitter > 0 {
		delay += time.Duration(p.Rand(int64(p.MaxJitter)))
	}
	return delay
}
