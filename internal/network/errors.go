package network

import (
	"errors"
	"fmt"
	"time"

	"github.com/affisync/internal/constants"
)

// Error 联盟网络通用错误，携带错误码与可重试标记
type Error struct {
	NetworkType string
	Code        string
	Message     string
	Retryable   bool
	Err         error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", e.NetworkType, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AuthError 凭证无效或过期，不可重试
type AuthError struct {
	NetworkType string
	StatusCode  int
	Message     string
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: authentication failed (status %d): %s", e.NetworkType, e.StatusCode, e.Message)
}

// RateLimitError 触发远端限流，可重试，携带 retry_after
type RateLimitError struct {
	NetworkType string
	RetryAfter  time.Duration
}

func (e *RateLimitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: rate limited, retry after %s", e.NetworkType, e.RetryAfter)
}

// NewError 构造通用网络错误
func NewError(networkType, code, message string, retryable bool, err error) *Error {
	return &Error{
		NetworkType: networkType,
		Code:        code,
		Message:     message,
		Retryable:   retryable,
		Err:         err,
	}
}

// NewCapabilityError 不支持的操作，调用前置检查失败，快速失败且不可重试
func NewCapabilityError(networkType string, op Operation) *Error {
	return NewError(networkType, constants.ErrCodeUnsupported,
		fmt.Sprintf("operation %s is not supported", op), false, nil)
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	var netErr *Error
	if errors.As(err, &netErr) {
		return netErr.Retryable
	}
	return false
}

// ErrorCode 提取错误码，未知错误返回 remote_error
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return constants.ErrCodeRateLimited
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return constants.ErrCodeAuth
	}
	var netErr *Error
	if errors.As(err, &netErr) && netErr.Code != "" {
		return netErr.Code
	}
	return constants.ErrCodeRemote
}
