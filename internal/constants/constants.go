package constants

// 联盟网络类型常量
const (
	NetworkTypeShareASale = "shareasale"
	NetworkTypeCJ         = "cj"
	NetworkTypeImpact     = "impact"
	NetworkTypeRakuten    = "rakuten"
)

// NetworkTypes 已支持的联盟网络列表
var NetworkTypes = []string{
	NetworkTypeShareASale,
	NetworkTypeCJ,
	NetworkTypeImpact,
	NetworkTypeRakuten,
}

// 网络配置状态常量
const (
	NetworkConfigStatusActive   = "active"
	NetworkConfigStatusDisabled = "disabled"
	NetworkConfigStatusError    = "error"
)

// 转化状态常量（规范化状态机）
const (
	ConversionStatusPending   = "pending"
	ConversionStatusConfirmed = "confirmed"
	ConversionStatusCancelled = "cancelled"
	ConversionStatusReversed  = "reversed"
)

// 佣金类型常量
const (
	CommissionTypePercentage = "percentage"
	CommissionTypeFlat       = "flat"
)

// 同步操作类型与状态常量
const (
	SyncOperationFull        = "full_sync"
	SyncOperationIncremental = "incremental_sync"

	SyncStatusSyncing   = "syncing"
	SyncStatusCompleted = "completed"
	SyncStatusError     = "error"
)

// Webhook 事件类型常量
const (
	WebhookEventConversionCreated   = "conversion.created"
	WebhookEventConversionUpdated   = "conversion.updated"
	WebhookEventConversionCancelled = "conversion.cancelled"
	WebhookEventProductUpdated      = "product.updated"
)

// 队列与任务常量
const (
	QueueDefault = "default"

	TaskNetworkSync    = "affiliate:network_sync"
	TaskConversionPoll = "affiliate:conversion_poll"
)

// 网络错误码常量
const (
	ErrCodeAuth             = "authentication_failed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeTimeout          = "timeout"
	ErrCodeRemote           = "remote_error"
	ErrCodeMalformedPayload = "malformed_payload"
	ErrCodeUnsupported      = "operation_unsupported"
	ErrCodeCancelled        = "operation_cancelled"
	ErrCodeConfigInvalid    = "config_invalid"
)
