package cj

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"
	"github.com/affisync/internal/network"
)

// ErrConfigInvalid CJ 配置无效
var ErrConfigInvalid = errors.New("cj config invalid")

const (
	defaultBaseURL  = "https://api.cj.com"
	defaultPageSize = 50
)

// Config CJ (Commission Junction) 接入配置
type Config struct {
	APIToken      string // 个人访问令牌，Bearer 认证
	WebsiteID     string // 站点 PID
	WebhookSecret string // 回调签名密钥，CJ 默认不签名，可选
	BaseURL       string
}

// ParseConfig 从网络配置凭证解析 CJ 配置
func ParseConfig(cfg *models.NetworkConfig) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: missing network config", ErrConfigInvalid)
	}
	parsed := &Config{
		APIToken:      cfg.Credential("api_token"),
		WebsiteID:     cfg.Credential("website_id"),
		WebhookSecret: cfg.Credential("webhook_secret"),
		BaseURL:       cfg.Credential("base_url"),
	}
	if err := ValidateConfig(parsed); err != nil {
		return nil, err
	}
	parsed.normalize()
	return parsed, nil
}

// ValidateConfig 校验必填凭证
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: missing config", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIToken) == "" {
		return fmt.Errorf("%w: api_token is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.WebsiteID) == "" {
		return fmt.Errorf("%w: website_id is required", ErrConfigInvalid)
	}
	return nil
}

func (c *Config) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
}

// Options 适配器可注入依赖（测试用）
type Options struct {
	Clock      network.Clock
	HTTPClient *http.Client
	Retry      *network.RetryPolicy
}

// Adapter CJ 适配器，REST + JSON，Bearer 认证
type Adapter struct {
	cfg      *Config
	tenantID string
	client   *network.Client
	sink     network.EventSink
	clock    network.Clock
}

var capability = network.Capability{
	ProductSync:       true,
	CommissionSync:    true,
	ClickTracking:     false,
	Webhooks:          true,
	BulkOperations:    true,
	RealTimeUpdates:   false,
	RequiresSignature: false,
	MaxBatchSize:      defaultPageSize,
	RateLimits:        network.RateLimits{PerMinute: 25, PerHour: 1000},
}

// New 创建 CJ 适配器
func New(cfg *Config, tenantID string, sink network.EventSink, opts Options) *Adapter {
	cfg.normalize()
	clock := opts.Clock
	if clock == nil {
		clock = network.RealClock()
	}
	adapter := &Adapter{
		cfg:      cfg,
		tenantID: tenantID,
		sink:     sink,
		clock:    clock,
	}
	adapter.client = network.NewClient(network.ClientOptions{
		NetworkType: constants.NetworkTypeCJ,
		BaseURL:     cfg.BaseURL,
		Auth: func(req *http.Request) error {
			req.Header.Set("Authorization", "Bearer "+cfg.APIToken)
			return nil
		},
		Limits:     capability.RateLimits,
		Retry:      opts.Retry,
		Clock:      clock,
		HTTPClient: opts.HTTPClient,
	})
	return adapter
}

// NetworkType 实现 Adapter 接口
func (a *Adapter) NetworkType() string {
	return constants.NetworkTypeCJ
}

// Capabilities 实现 Adapter 接口
func (a *Adapter) Capabilities() network.Capability {
	return capability
}

// RateLimit 实现 Adapter 接口
func (a *Adapter) RateLimit() models.RateLimitInfo {
	return a.client.RateLimit()
}

// Authenticate 用单条商品查询校验令牌
func (a *Adapter) Authenticate(ctx context.Context) error {
	query := url.Values{}
	query.Set("website-id", a.cfg.WebsiteID)
	query.Set("records-per-page", "1")
	_, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   "/v3/product-search",
		Query:  query,
	})
	return err
}

// productsResponse product-search 响应
type productsResponse struct {
	Products        []wireProduct `json:"products"`
	TotalMatched    int           `json:"total-matched"`
	RecordsReturned int           `json:"records-returned"`
	PageNumber      int           `json:"page-number"`
}

type wireProduct struct {
	AdID               string  `json:"ad-id"`
	AdvertiserID       string  `json:"advertiser-id"`
	AdvertiserName     string  `json:"advertiser-name"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	AdvertiserCategory string  `json:"advertiser-category"`
	Manufacturer       string  `json:"manufacturer-name"`
	Price              float64 `json:"price"`
	RetailPrice        float64 `json:"retail-price"`
	SalePrice          float64 `json:"sale-price"`
	Currency           string  `json:"currency"`
	BuyURL             string  `json:"buy-url"`
	ImageURL           string  `json:"image-url"`
	InStock            bool    `json:"in-stock"`
	LastUpdated        string  `json:"last-updated"`
}

func (w wireProduct) toProduct() models.AffiliateProduct {
	product := models.AffiliateProduct{
		NetworkType:      constants.NetworkTypeCJ,
		NetworkProductID: w.AdID,
		MerchantID:       w.AdvertiserID,
		MerchantName:     w.AdvertiserName,
		Title:            w.Name,
		Description:      w.Description,
		Brand:            w.Manufacturer,
		Category:         w.AdvertiserCategory,
		PriceAmount:      models.NewMoneyFromFloat(w.Price),
		PriceCurrency:    w.Currency,
		AffiliateURL:     w.BuyURL,
		InStock:          w.InStock,
		IsActive:         true,
	}
	if w.ImageURL != "" {
		product.Images = models.StringArray{w.ImageURL}
	}
	if w.RetailPrice > 0 {
		retail := models.NewMoneyFromFloat(w.RetailPrice)
		product.OriginalPrice = &retail
	}
	if w.SalePrice > 0 {
		sale := models.NewMoneyFromFloat(w.SalePrice)
		product.SalePrice = &sale
	}
	if at, err := time.Parse(time.RFC3339, w.LastUpdated); err == nil {
		product.LastUpdatedAt = at
	}
	return product
}

func (a *Adapter) searchProducts(ctx context.Context, params url.Values) (*productsResponse, error) {
	params.Set("website-id", a.cfg.WebsiteID)
	body, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   "/v3/product-search",
		Query:  params,
	})
	if err != nil {
		return nil, err
	}
	resp := &productsResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode product-search response failed", false, err)
	}
	return resp, nil
}

// SyncProducts 实现 Adapter 接口
func (a *Adapter) SyncProducts(ctx context.Context, opts network.SyncOptions, emit network.ProductBatchFunc) (*models.SyncOperation, error) {
	if err := network.EnsureSupported(capability, a.NetworkType(), network.OpProductSync); err != nil {
		return nil, err
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > capability.MaxBatchSize {
		batchSize = capability.MaxBatchSize
	}

	op := network.NewSyncOperation(a.tenantID, a.NetworkType(), opts)
	return network.RunProductSync(ctx, op, func(ctx context.Context, page int) ([]models.AffiliateProduct, bool, error) {
		params := url.Values{}
		params.Set("page-number", strconv.Itoa(page))
		params.Set("records-per-page", strconv.Itoa(batchSize))
		if len(opts.MerchantIDs) > 0 {
			params.Set("advertiser-ids", strings.Join(opts.MerchantIDs, ","))
		}
		if len(opts.Categories) > 0 {
			params.Set("keywords", strings.Join(opts.Categories, " "))
		}

		resp, err := a.searchProducts(ctx, params)
		if err != nil {
			return nil, false, err
		}
		products := make([]models.AffiliateProduct, 0, len(resp.Products))
		for _, w := range resp.Products {
			products = append(products, w.toProduct())
		}
		hasMore := len(resp.Products) == batchSize && page*batchSize < resp.TotalMatched
		return products, hasMore, nil
	}, emit)
}

// GetProducts 实现 Adapter 接口
func (a *Adapter) GetProducts(ctx context.Context, query network.ProductQuery) (*network.ProductPage, error) {
	page := query.Page
	if page <= 0 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 || limit > capability.MaxBatchSize {
		limit = capability.MaxBatchSize
	}

	params := url.Values{}
	params.Set("page-number", strconv.Itoa(page))
	params.Set("records-per-page", strconv.Itoa(limit))
	for key, value := range query.Filters {
		params.Set(key, value)
	}

	resp, err := a.searchProducts(ctx, params)
	if err != nil {
		return nil, err
	}
	products := make([]models.AffiliateProduct, 0, len(resp.Products))
	for _, w := range resp.Products {
		product := w.toProduct()
		product.TenantID = a.tenantID
		product.Normalize()
		products = append(products, product)
	}
	return &network.ProductPage{
		Products:  products,
		Page:      page,
		Limit:     limit,
		Total:     resp.TotalMatched,
		HasMore:   len(products) == limit && page*limit < resp.TotalMatched,
		RateLimit: a.client.RateLimit(),
	}, nil
}

// GetProduct 实现 Adapter 接口
func (a *Adapter) GetProduct(ctx context.Context, networkProductID string) (*models.AffiliateProduct, error) {
	params := url.Values{}
	params.Set("ad-id", networkProductID)
	params.Set("records-per-page", "1")
	resp, err := a.searchProducts(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Products) == 0 {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeRemote,
			"product "+networkProductID+" not found", false, nil)
	}
	product := resp.Products[0].toProduct()
	product.TenantID = a.tenantID
	product.Normalize()
	return &product, nil
}

// GenerateAffiliateLink CJ 需要先解析商品的 buy-url，再追加 sid 子 ID
func (a *Adapter) GenerateAffiliateLink(ctx context.Context, networkProductID string, customParams map[string]string) (string, error) {
	product, err := a.GetProduct(ctx, networkProductID)
	if err != nil {
		return "", err
	}
	if product.AffiliateURL == "" {
		return "", network.NewError(a.NetworkType(), constants.ErrCodeRemote,
			"product "+networkProductID+" has no buy url", false, nil)
	}

	parsed, err := url.Parse(product.AffiliateURL)
	if err != nil {
		return "", network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"invalid buy url", false, err)
	}
	query := parsed.Query()
	for key, value := range customParams {
		if key == "sub_id" {
			query.Set("sid", value)
			continue
		}
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// TrackClick CJ 不提供点击上报接口
func (a *Adapter) TrackClick(ctx context.Context, input network.ClickInput) error {
	return network.NewCapabilityError(a.NetworkType(), network.OpClickTracking)
}

// commissionsResponse commissions 响应
type commissionsResponse struct {
	Commissions []wireCommission `json:"commissions"`
}

type wireCommission struct {
	CommissionID     string  `json:"commission-id"`
	ActionStatus     string  `json:"action-status"`
	ActionType       string  `json:"action-type"`
	AdvertiserID     string  `json:"advertiser-id"`
	AdvertiserName   string  `json:"advertiser-name"`
	CommissionAmount float64 `json:"commission-amount"`
	SaleAmount       float64 `json:"sale-amount"`
	Currency         string  `json:"currency"`
	OrderID          string  `json:"order-id"`
	SID              string  `json:"sid"`
	EventDate        string  `json:"event-date"`
}

// statusFromNative 原生状态固定映射表，未知状态保守归 pending
func statusFromNative(native string) string {
	switch strings.ToLower(native) {
	case "new", "extended":
		return constants.ConversionStatusPending
	case "locked", "closed":
		return constants.ConversionStatusConfirmed
	case "corrected":
		return constants.ConversionStatusReversed
	}
	return constants.ConversionStatusPending
}

// GetConversions 实现 Adapter 接口
func (a *Adapter) GetConversions(ctx context.Context, query network.ConversionQuery) ([]models.Conversion, error) {
	if err := network.EnsureSupported(capability, a.NetworkType(), network.OpCommissionSync); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("date-type", "event")
	if query.DateFrom != nil {
		params.Set("start-date", query.DateFrom.UTC().Format("2006-01-02"))
	}
	if query.DateTo != nil {
		params.Set("end-date", query.DateTo.UTC().Format("2006-01-02"))
	}

	body, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   "/v3/commissions",
		Query:  params,
	})
	if err != nil {
		return nil, err
	}
	resp := &commissionsResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode commissions response failed", false, err)
	}

	conversions := make([]models.Conversion, 0, len(resp.Commissions))
	for _, w := range resp.Commissions {
		conversion := models.Conversion{
			TenantID:            a.tenantID,
			NetworkType:         a.NetworkType(),
			NetworkConversionID: w.CommissionID,
			ClickID:             w.SID,
			OrderID:             w.OrderID,
			MerchantID:          w.AdvertiserID,
			OrderValue:          models.NewMoneyFromFloat(w.SaleAmount),
			Currency:            w.Currency,
			CommissionAmount:    models.NewMoneyFromFloat(w.CommissionAmount),
			Status:              statusFromNative(w.ActionStatus),
			Metadata: models.JSON{
				"native_status": w.ActionStatus,
				"action_type":   w.ActionType,
			},
		}
		if at, err := time.Parse(time.RFC3339, w.EventDate); err == nil {
			conversion.ConversionDate = at
		}
		conversions = append(conversions, conversion)
	}
	return conversions, nil
}

// advertisersResponse advertiser-lookup 响应
type advertisersResponse struct {
	Advertisers []wireAdvertiser `json:"advertisers"`
}

type wireAdvertiser struct {
	AdvertiserID   string `json:"advertiser-id"`
	AdvertiserName string `json:"advertiser-name"`
	Actions        []struct {
		Type       string `json:"type"`
		Commission struct {
			Default string `json:"default"`
		} `json:"commission"`
	} `json:"actions"`
}

// GetCommissionStructures 实现 Adapter 接口
func (a *Adapter) GetCommissionStructures(ctx context.Context) ([]models.CommissionStructure, error) {
	params := url.Values{}
	params.Set("advertiser-ids", "joined")
	body, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   "/v3/advertiser-lookup",
		Query:  params,
	})
	if err != nil {
		return nil, err
	}
	resp := &advertisersResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode advertiser-lookup response failed", false, err)
	}

	now := time.Now()
	structures := make([]models.CommissionStructure, 0, len(resp.Advertisers))
	for _, w := range resp.Advertisers {
		structure := models.CommissionStructure{
			TenantID:       a.tenantID,
			NetworkType:    a.NetworkType(),
			MerchantID:     w.AdvertiserID,
			MerchantName:   w.AdvertiserName,
			CommissionType: constants.CommissionTypePercentage,
			EffectiveDate:  now,
		}
		if len(w.Actions) > 0 {
			raw := w.Actions[0].Commission.Default
			if strings.HasSuffix(raw, "%") {
				structure.BaseRate = models.NewMoneyFromString(strings.TrimSuffix(raw, "%"))
			} else {
				structure.BaseRate = models.NewMoneyFromString(strings.TrimPrefix(raw, "USD "))
				structure.CommissionType = constants.CommissionTypeFlat
			}
		}
		structures = append(structures, structure)
	}
	return structures, nil
}

// webhookEvent CJ 回调的 JSON 结构
type webhookEvent struct {
	EventType    string  `json:"eventType"`
	CommissionID string  `json:"commissionId"`
	ActionStatus string  `json:"actionStatus"`
	AdvertiserID string  `json:"advertiserId"`
	OrderID      string  `json:"orderId"`
	SaleAmount   float64 `json:"saleAmount"`
	Commission   float64 `json:"commissionAmount"`
	Currency     string  `json:"currency"`
	SID          string  `json:"sid"`
	EventDate    string  `json:"eventDate"`
}

// ParseWebhook 解析 JSON 回调体为规范化事件
func (a *Adapter) ParseWebhook(body []byte, contentType string) (*models.WebhookPayload, error) {
	event := &webhookEvent{}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"parse webhook json failed", false, err)
	}
	if event.CommissionID == "" {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"webhook missing commissionId", false, nil)
	}

	status := statusFromNative(event.ActionStatus)
	eventType := constants.WebhookEventConversionUpdated
	switch {
	case strings.EqualFold(event.EventType, "commission.created"):
		eventType = constants.WebhookEventConversionCreated
	case status == constants.ConversionStatusCancelled:
		eventType = constants.WebhookEventConversionCancelled
	}

	timestamp := a.clock.Now()
	if at, err := time.Parse(time.RFC3339, event.EventDate); err == nil {
		timestamp = at
	}
	return &models.WebhookPayload{
		EventType:   eventType,
		NetworkType: a.NetworkType(),
		TenantID:    a.tenantID,
		Timestamp:   timestamp,
		Data: models.JSON{
			network.DataKeyConversionID: event.CommissionID,
			network.DataKeyMerchantID:   event.AdvertiserID,
			network.DataKeyOrderID:      event.OrderID,
			network.DataKeyClickID:      event.SID,
			network.DataKeyOrderValue:   event.SaleAmount,
			network.DataKeyCommission:   event.Commission,
			network.DataKeyCurrency:     event.Currency,
			network.DataKeyStatus:       status,
			"native_status":             event.ActionStatus,
		},
	}, nil
}

// HandleWebhook 实现 Adapter 接口
func (a *Adapter) HandleWebhook(ctx context.Context, payload *models.WebhookPayload) error {
	return network.ApplyWebhookEvent(ctx, a.sink, payload)
}

// ValidateWebhookSignature CJ 默认不签名；仅在配置了密钥时校验，否则一律不通过
func (a *Adapter) ValidateWebhookSignature(rawBody []byte, signature string) bool {
	if a.cfg.WebhookSecret == "" {
		return false
	}
	return network.VerifySignature(a.cfg.WebhookSecret, rawBody, signature)
}
