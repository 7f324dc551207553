package network

import (
	"context"
	"testing"
	"time"

	"github.com/affisync/internal/constants"
)

func retryableErr() error {
	return NewError("test", constants.ErrCodeRemote, "boom", true, nil)
}

func permanentErr() error {
	return NewError("test", constants.ErrCodeRemote, "rejected", false, nil)
}

func TestRetryNonRetryableSingleAttempt(t *testing.T) {
	clock := newTestClock()
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, Clock: clock, Rand: func(int64) int64 { return 0 }}

	attempts := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanentErr()
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", clock.sleeps)
	}
}

func TestRetrySucceedsAfterBackoff(t *testing.T) {
	clock := newTestClock()
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, Clock: clock, Rand: func(int64) int64 { return 0 }}

	attempts := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return retryableErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	// 成功前 2 次失败，对应 2 次退避：1s、2s
	if len(clock.sleeps) != 2 {
		t.Fatalf("sleeps = %v, want 2 backoffs", clock.sleeps)
	}
	if clock.sleeps[0] != time.Second || clock.sleeps[1] != 2*time.Second {
		t.Errorf("backoffs = %v, want [1s 2s]", clock.sleeps)
	}
}

func TestRetryExhaustedReturnsLastError(t *testing.T) {
	clock := newTestClock()
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Second, Clock: clock, Rand: func(int64) int64 { return 0 }}

	attempts := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return retryableErr()
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (1 initial + 2 retries)", attempts)
	}
	if ErrorCode(err) != constants.ErrCodeRemote {
		t.Errorf("error code = %s, want %s", ErrorCode(err), constants.ErrCodeRemote)
	}
}

func TestRetryJitterBounded(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay: time.Second,
		MaxJitter: 500 * time.Millisecond,
		Rand:      func(n int64) int64 { return n - 1 },
	}.normalized()

	delay := policy.delayFor(0)
	if delay < time.Second || delay >= time.Second+500*time.Millisecond {
		t.Errorf("delay = %v, want within [1s, 1.5s)", delay)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := newTestClock()
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, Clock: clock, Rand: func(int64) int64 { return 0 }}

	attempts := 0
	err := policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return retryableErr()
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 after cancellation", attempts)
	}
}
