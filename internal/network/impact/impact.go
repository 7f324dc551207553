package impact

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

// ErrConfigInvalid Impact 配置无效
var ErrConfigInvalid = errors.New("impact config invalid")

const (
	defaultBaseURL        = "https://api.impact.com"
	defaultTrackingDomain = "https://goto.impact.com"
	defaultPageSize       = 200
)

// Config Impact 接入配置，Basic 认证（AccountSID + AuthToken）
type Config struct {
	AccountSID     string
	AuthToken      string
	ProgramID      string // 推广计划 ID，拼链接用
	TrackingDomain string
	WebhookSecret  string
	BaseURL        string
}

// ParseConfig 从网络配置凭证解析 Impact 配置
func ParseConfig(cfg *models.NetworkConfig) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: missing network config", ErrConfigInvalid)
	}
	parsed := &Config{
		AccountSID:     cfg.Credential("account_sid"),
		AuthToken:      cfg.Credential("auth_token"),
		ProgramID:      cfg.Credential("program_id"),
		TrackingDomain: cfg.Credential("tracking_domain"),
		WebhookSecret:  cfg.Credential("webhook_secret"),
		BaseURL:        cfg.Credential("base_url"),
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
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return fmt.Errorf("%w: account_sid is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return fmt.Errorf("%w: auth_token is required", ErrConfigInvalid)
	}
	return nil
}

func (c *Config) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.TrackingDomain == "" {
		c.TrackingDomain = defaultTrackingDomain
	}
	c.TrackingDomain = strings.TrimRight(c.TrackingDomain, "/")
}

// Options 适配器可注入依赖（测试用）
type Options struct {
	Clock      network.Clock
	HTTPClient *http.Client
	Retry      *network.RetryPolicy
}

// Adapter Impact 适配器，REST + JSON，支持点击上报与实时回调
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
	ClickTracking:     true,
	Webhooks:          true,
	BulkOperations:    true,
	RealTimeUpdates:   true,
	RequiresSignature: true,
	MaxBatchSize:      defaultPageSize,
	RateLimits:        network.RateLimits{PerMinute: 30, PerHour: 1000},
}

// New 创建 Impact 适配器
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
		NetworkType: constants.NetworkTypeImpact,
		BaseURL:     cfg.BaseURL,
		Auth: func(req *http.Request) error {
			req.SetBasicAuth(cfg.AccountSID, cfg.AuthToken)
			return nil
		},
		Limits:     capability.RateLimits,
		Retry:      opts.Retry,
		Clock:      clock,
		HTTPClient: opts.HTTPClient,
	})
	return adapter
}

func (a *Adapter) mediaPath(suffix string) string {
	return "/Mediapartners/" + a.cfg.AccountSID + suffix
}

// NetworkType 实现 Adapter 接口
func (a *Adapter) NetworkType() string {
	return constants.NetworkTypeImpact
}

// Capabilities 实现 Adapter 接口
func (a *Adapter) Capabilities() network.Capability {
	return capability
}

// RateLimit 实现 Adapter 接口
func (a *Adapter) RateLimit() models.RateLimitInfo {
	return a.client.RateLimit()
}

// Authenticate 查询账号下的推广计划，校验 SID/Token
func (a *Adapter) Authenticate(ctx context.Context) error {
	query := url.Values{}
	query.Set("PageSize", "1")
	_, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   a.mediaPath("/Campaigns"),
		Query:  query,
	})
	return err
}

// itemsResponse Catalogs/ItemSearch 响应
type itemsResponse struct {
	Items        []wireItem `json:"Items"`
	TotalResults int        `json:"TotalResults"`
	TotalPages   int        `json:"TotalPages"`
	Page         int        `json:"Page"`
}

type wireItem struct {
	ID                string `json:"Id"`
	CatalogID         string `json:"CatalogId"`
	CampaignID        string `json:"CampaignId"`
	CampaignName      string `json:"CampaignName"`
	Name              string `json:"Name"`
	Description       string `json:"Description"`
	Manufacturer      string `json:"Manufacturer"`
	Category          string `json:"Category"`
	CurrentPrice      string `json:"CurrentPrice"`
	OriginalPrice     string `json:"OriginalPrice"`
	Currency          string `json:"Currency"`
	StockAvailability string `json:"StockAvailability"`
	ImageURL          string `json:"ImageUrl"`
	URL               string `json:"Url"`
	Labels            string `json:"Labels"`
}

func (w wireItem) toProduct() models.AffiliateProduct {
	product := models.AffiliateProduct{
		NetworkType:      constants.NetworkTypeImpact,
		NetworkProductID: w.ID,
		MerchantID:       w.CampaignID,
		MerchantName:     w.CampaignName,
		Title:            w.Name,
		Description:      w.Description,
		Brand:            w.Manufacturer,
		Category:         w.Category,
		PriceAmount:      models.NewMoneyFromString(w.CurrentPrice),
		PriceCurrency:    w.Currency,
		AffiliateURL:     w.URL,
		InStock:          !strings.EqualFold(w.StockAvailability, "OutOfStock"),
		Availability:     w.StockAvailability,
		IsActive:         true,
		Metadata:         models.JSON{"catalog_id": w.CatalogID},
	}
	if w.ImageURL != "" {
		product.Images = models.StringArray{w.ImageURL}
	}
	if w.OriginalPrice != "" && w.OriginalPrice != w.CurrentPrice {
		original := models.NewMoneyFromString(w.OriginalPrice)
		product.OriginalPrice = &original
		sale := models.NewMoneyFromString(w.CurrentPrice)
		product.SalePrice = &sale
	}
	if w.Labels != "" {
		product.Tags = models.StringArray(strings.Split(w.Labels, ","))
	}
	return product
}

func (a *Adapter) searchItems(ctx context.Context, params url.Values) (*itemsResponse, error) {
	body, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   a.mediaPath("/Catalogs/ItemSearch"),
		Query:  params,
	})
	if err != nil {
		return nil, err
	}
	resp := &itemsResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode item search response failed", false, err)
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
		params.Set("Page", strconv.Itoa(page))
		params.Set("PageSize", strconv.Itoa(batchSize))
		if len(opts.MerchantIDs) > 0 {
			params.Set("CampaignId", strings.Join(opts.MerchantIDs, ","))
		}
		if len(opts.Categories) > 0 {
			params.Set("Category", strings.Join(opts.Categories, ","))
		}

		resp, err := a.searchItems(ctx, params)
		if err != nil {
			return nil, false, err
		}
		products := make([]models.AffiliateProduct, 0, len(resp.Items))
		for _, w := range resp.Items {
			products = append(products, w.toProduct())
		}
		hasMore := page < resp.TotalPages
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
	params.Set("Page", strconv.Itoa(page))
	params.Set("PageSize", strconv.Itoa(limit))
	for key, value := range query.Filters {
		params.Set(key, value)
	}

	resp, err := a.searchItems(ctx, params)
	if err != nil {
		return nil, err
	}
	products := make([]models.AffiliateProduct, 0, len(resp.Items))
	for _, w := range resp.Items {
		product := w.toProduct()
		product.TenantID = a.tenantID
		product.Normalize()
		products = append(products, product)
	}
	return &network.ProductPage{
		Products:  products,
		Page:      page,
		Limit:     limit,
		Total:     resp.TotalResults,
		HasMore:   page < resp.TotalPages,
		RateLimit: a.client.RateLimit(),
	}, nil
}

// GetProduct 实现 Adapter 接口
func (a *Adapter) GetProduct(ctx context.Context, networkProductID string) (*models.AffiliateProduct, error) {
	body, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   a.mediaPath("/Catalogs/Items/" + url.PathEscape(networkProductID)),
	})
	if err != nil {
		return nil, err
	}
	item := &wireItem{}
	if err := json.Unmarshal(body, item); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode item response failed", false, err)
	}
	if item.ID == "" {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeRemote,
			"product "+networkProductID+" not found", false, nil)
	}
	product := item.toProduct()
	product.TenantID = a.tenantID
	product.Normalize()
	return &product, nil
}

// GenerateAffiliateLink 构造跳转域名链接，子 ID 落在 subId1 参数
func (a *Adapter) GenerateAffiliateLink(ctx context.Context, networkProductID string, customParams map[string]string) (string, error) {
	link := a.cfg.TrackingDomain + "/c/" + url.PathEscape(a.cfg.AccountSID)
	if a.cfg.ProgramID != "" {
		link += "/" + url.PathEscape(a.cfg.ProgramID)
	}
	link += "/" + url.PathEscape(networkProductID)

	query := url.Values{}
	for key, value := range customParams {
		if key == "sub_id" {
			query.Set("subId1", value)
			continue
		}
		query.Set(key, value)
	}
	if len(query) == 0 {
		return link, nil
	}
	return link + "?" + query.Encode(), nil
}

// TrackClick 实现 Adapter 接口
func (a *Adapter) TrackClick(ctx context.Context, input network.ClickInput) error {
	if err := network.EnsureSupported(capability, a.NetworkType(), network.OpClickTracking); err != nil {
		return err
	}
	form := url.Values{}
	form.Set("ClickId", input.ClickID)
	form.Set("ItemId", input.NetworkProductID)
	if input.Referrer != "" {
		form.Set("Referrer", input.Referrer)
	}
	for key, value := range input.Metadata {
		form.Set(key, value)
	}
	_, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method:      http.MethodPost,
		Path:        a.mediaPath("/Clicks"),
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	})
	return err
}

// actionsResponse Actions 响应
type actionsResponse struct {
	Actions []wireAction `json:"Actions"`
}

type wireAction struct {
	ID           string `json:"Id"`
	CampaignID   string `json:"CampaignId"`
	State        string `json:"State"`
	Payout       string `json:"Payout"`
	Amount       string `json:"Amount"`
	Currency     string `json:"Currency"`
	OrderID      string `json:"Oid"`
	SubID1       string `json:"SubId1"`
	EventDate    string `json:"EventDate"`
	ClearedDate  string `json:"ScheduledClearingDate"`
	ActionTracke string `json:"ActionTrackerId"`
}

// statusFromNative 原生状态固定映射表，未知状态保守归 pending
func statusFromNative(native string) string {
	switch strings.ToUpper(native) {
	case "PENDING_APPROVAL", "PENDING":
		return constants.ConversionStatusPending
	case "APPROVED":
		return constants.ConversionStatusConfirmed
	case "REJECTED":
		return constants.ConversionStatusCancelled
	case "REVERSED":
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
	if query.DateFrom != nil {
		params.Set("StartDate", query.DateFrom.UTC().Format(time.RFC3339))
	}
	if query.DateTo != nil {
		params.Set("EndDate", query.DateTo.UTC().Format(time.RFC3339))
	}

	body, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   a.mediaPath("/Actions"),
		Query:  params,
	})
	if err != nil {
		return nil, err
	}
	resp := &actionsResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode actions response failed", false, err)
	}

	conversions := make([]models.Conversion, 0, len(resp.Actions))
	for _, w := range resp.Actions {
		conversion := models.Conversion{
			TenantID:            a.tenantID,
			NetworkType:         a.NetworkType(),
			NetworkConversionID: w.ID,
			ClickID:             w.SubID1,
			OrderID:             w.OrderID,
			MerchantID:          w.CampaignID,
			OrderValue:          models.NewMoneyFromString(w.Amount),
			Currency:            w.Currency,
			CommissionAmount:    models.NewMoneyFromString(w.Payout),
			Status:              statusFromNative(w.State),
			Metadata: models.JSON{
				"native_status":     w.State,
				"action_tracker_id": w.ActionTracke,
			},
		}
		if at, err := time.Parse(time.RFC3339, w.EventDate); err == nil {
			conversion.ConversionDate = at
		}
		conversions = append(conversions, conversion)
	}
	return conversions, nil
}

// campaignsResponse Campaigns 响应
type campaignsResponse struct {
	Campaigns []wireCampaign `json:"Campaigns"`
}

type wireCampaign struct {
	ID            string `json:"Id"`
	Name          string `json:"Name"`
	DefaultPayout string `json:"DefaultPayout"`
	PayoutType    string `json:"PayoutType"`
	ContractDate  string `json:"ContractStartDate"`
}

// GetCommissionStructures 实现 Adapter 接口
func (a *Adapter) GetCommissionStructures(ctx context.Context) ([]models.CommissionStructure, error) {
	body, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   a.mediaPath("/Campaigns"),
	})
	if err != nil {
		return nil, err
	}
	resp := &campaignsResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode campaigns response failed", false, err)
	}

	structures := make([]models.CommissionStructure, 0, len(resp.Campaigns))
	for _, w := range resp.Campaigns {
		structure := models.CommissionStructure{
			TenantID:       a.tenantID,
			NetworkType:    a.NetworkType(),
			MerchantID:     w.ID,
			MerchantName:   w.Name,
			CommissionType: constants.CommissionTypePercentage,
			EffectiveDate:  time.Now(),
		}
		if strings.EqualFold(w.PayoutType, "flat") || strings.EqualFold(w.PayoutType, "fixed") {
			structure.CommissionType = constants.CommissionTypeFlat
		}
		structure.BaseRate = models.NewMoneyFromString(strings.TrimSuffix(w.DefaultPayout, "%"))
		if at, err := time.Parse(time.RFC3339, w.ContractDate); err == nil {
			structure.EffectiveDate = at
		}
		structures = append(structures, structure)
	}
	return structures, nil
}

// webhookEvent Impact 回调的 JSON 结构
type webhookEvent struct {
	EventType  string `json:"EventType"`
	ActionID   string `json:"ActionId"`
	State      string `json:"State"`
	CampaignID string `json:"CampaignId"`
	OrderID    string `json:"Oid"`
	Amount     string `json:"Amount"`
	Payout     string `json:"Payout"`
	Currency   string `json:"Currency"`
	SubID1     string `json:"SubId1"`
	EventDate  string `json:"EventDate"`
	ItemID     string `json:"ItemId"`
}

// ParseWebhook 解析 JSON 回调体为规范化事件
func (a *Adapter) ParseWebhook(body []byte, contentType string) (*models.WebhookPayload, error) {
	event := &webhookEvent{}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"parse webhook json failed", false, err)
	}

	timestamp := a.clock.Now()
	if at, err := time.Parse(time.RFC3339, event.EventDate); err == nil {
		timestamp = at
	}

	// 商品目录变更回调只携带 ItemId
	if strings.EqualFold(event.EventType, "item.updated") {
		if event.ItemID == "" {
			return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
				"item webhook missing ItemId", false, nil)
		}
		return &models.WebhookPayload{
			EventType:   constants.WebhookEventProductUpdated,
			NetworkType: a.NetworkType(),
			TenantID:    a.tenantID,
			Timestamp:   timestamp,
			Data: models.JSON{
				network.DataKeyProductID: event.ItemID,
			},
		}, nil
	}

	if event.ActionID == "" {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"webhook missing ActionId", false, nil)
	}

	status := statusFromNative(event.State)
	eventType := constants.WebhookEventConversionUpdated
	switch {
	case strings.EqualFold(event.EventType, "action.created"):
		eventType = constants.WebhookEventConversionCreated
	case status == constants.ConversionStatusCancelled:
		eventType = constants.WebhookEventConversionCancelled
	}

	return &models.WebhookPayload{
		EventType:   eventType,
		NetworkType: a.NetworkType(),
		TenantID:    a.tenantID,
		Timestamp:   timestamp,
		Data: models.JSON{
			network.DataKeyConversionID: event.ActionID,
			network.DataKeyMerchantID:   event.CampaignID,
			network.DataKeyOrderID:      event.OrderID,
			network.DataKeyClickID:      event.SubID1,
			network.DataKeyOrderValue:   event.Amount,
			network.DataKeyCommission:   event.Payout,
			network.DataKeyCurrency:     event.Currency,
			network.DataKeyStatus:       status,
			"native_status":             event.State,
		},
	}, nil
}

// HandleWebhook 实现 Adapter 接口
func (a *Adapter) HandleWebhook(ctx context.Context, payload *models.WebhookPayload) error {
	return network.ApplyWebhookEvent(ctx, a.sink, payload)
}

// ValidateWebhookSignature 对原始请求体做 HMAC-SHA256 常量时间比较
func (a *Adapter) ValidateWebhookSignature(rawBody []byte, signature string) bool {
	return network.VerifySignature(a.cfg.WebhookSecret, rawBody, signature)
}
