package network

import (
	"context"
	"time"

	"github.com/affisync/internal/models"
)

// SyncOptions 商品同步选项
type SyncOptions struct {
	FullSync     bool
	MerchantIDs  []string
	Categories   []string
	UpdatedSince *time.Time
	BatchSize    int
}

// ProductQuery 单页商品查询
type ProductQuery struct {
	Page    int
	Limit   int
	Filters map[string]string
	SortBy  string
}

// ProductPage 单页商品查询结果，附带当前限流快照
type ProductPage struct {
	Products  []models.AffiliateProduct
	Page      int
	Limit     int
	Total     int
	HasMore   bool
	RateLimit models.RateLimitInfo
}

// ConversionQuery 转化查询时间窗口
type ConversionQuery struct {
	DateFrom *time.Time
	DateTo   *time.Time
}

// ClickInput 点击上报输入
type ClickInput struct {
	NetworkProductID string
	ClickID          string
	Referrer         string
	Metadata         map[string]string
}

// ProductBatchFunc 商品同步的逐页回调，由编排方负责落库
type ProductBatchFunc func(ctx context.Context, products []models.AffiliateProduct) error

// EventSink 回调事件的持久化协作方，本层不直接写存储
type EventSink interface {
	UpsertConversion(ctx context.Context, conversion *models.Conversion) error
	TouchProduct(ctx context.Context, tenantID, networkType, networkProductID string, at time.Time) error
}

// Adapter 联盟网络适配器统一契约。
// 每个实例内部持有独立的限流状态，单实例上的操作串行执行。
type Adapter interface {
	// NetworkType 返回网络类型标识
	NetworkType() string

	// Capabilities 返回静态能力声明
	Capabilities() Capability

	// Authenticate 用一次最小读请求校验凭证，401/403 返回不可重试的 AuthError
	Authenticate(ctx context.Context) error

	// SyncProducts 分页拉取商品目录并逐页回调 emit。
	// 按页累计 processed/succeeded/failed；某页失败时整体操作标记 error，
	// 但已成功页的计数保留（同步可按页恢复，不回滚）。
	SyncProducts(ctx context.Context, opts SyncOptions, emit ProductBatchFunc) (*models.SyncOperation, error)

	// GetProducts 拉取单页商品
	GetProducts(ctx context.Context, query ProductQuery) (*ProductPage, error)

	// GetProduct 拉取单个商品
	GetProduct(ctx context.Context, networkProductID string) (*models.AffiliateProduct, error)

	// GenerateAffiliateLink 构造带追踪参数的推广链接
	GenerateAffiliateLink(ctx context.Context, networkProductID string, customParams map[string]string) (string, error)

	// TrackClick 上报一次点击
	TrackClick(ctx context.Context, input ClickInput) error

	// GetConversions 拉取转化记录，原生状态经固定映射表归一化
	GetConversions(ctx context.Context, query ConversionQuery) ([]models.Conversion, error)

	// GetCommissionStructures 拉取商家佣金结构
	GetCommissionStructures(ctx context.Context) ([]models.CommissionStructure, error)

	// ParseWebhook 将网络特定编码的回调体解析为规范化事件
	ParseWebhook(body []byte, contentType string) (*models.WebhookPayload, error)

	// HandleWebhook 处理规范化事件，结果交由 EventSink 落库
	HandleWebhook(ctx context.Context, payload *models.WebhookPayload) error

	// ValidateWebhookSignature 常量时间比较 HMAC-SHA256 签名
	ValidateWebhookSignature(rawBody []byte, signature string) bool

	// RateLimit 返回当前限流快照
	RateLimit() models.RateLimitInfo
}
