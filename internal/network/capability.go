package network

// Operation 适配器操作类别
type Operation string

const (
	OpProductSync     Operation = "product_sync"
	OpCommissionSync  Operation = "commission_sync"
	OpClickTracking   Operation = "click_tracking"
	OpWebhooks        Operation = "webhooks"
	OpBulkOperations  Operation = "bulk_operations"
	OpRealTimeUpdates Operation = "real_time_updates"
)

// RateLimits 每个网络声明的调用预算
type RateLimits struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
	PerDay    int `json:"per_day"`
}

// Capability 适配器静态能力声明。
// 调用方必须先检查能力再调用，未支持的操作立即返回能力不匹配错误。
type Capability struct {
	ProductSync     bool `json:"product_sync"`
	CommissionSync  bool `json:"commission_sync"`
	ClickTracking   bool `json:"click_tracking"`
	Webhooks        bool `json:"webhooks"`
	BulkOperations  bool `json:"bulk_operations"`
	RealTimeUpdates bool `json:"real_time_updates"`

	// RequiresSignature 为 true 时入站回调必须通过签名校验
	RequiresSignature bool `json:"requires_signature"`

	MaxBatchSize int        `json:"max_batch_size"`
	RateLimits   RateLimits `json:"rate_limits"`
}

// Supports 判断能力声明是否覆盖指定操作
func (c Capability) Supports(op Operation) bool {
	switch op {
	case OpProductSync:
		return c.ProductSync
	case OpCommissionSync:
		return c.CommissionSync
	case OpClickTracking:
		return c.ClickTracking
	case OpWebhooks:
		return c.Webhooks
	case OpBulkOperations:
		return c.BulkOperations
	case OpRealTimeUpdates:
		return c.RealTimeUpdates
	}
	return false
}

// EnsureSupported 操作前置能力检查
func EnsureSupported(cap Capability, networkType string, op Operation) error {
	if !cap.Supports(op) {
		return NewCapabilityError(networkType, op)
	}
	return nil
}
