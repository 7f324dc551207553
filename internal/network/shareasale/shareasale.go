package shareasale

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
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

// ErrConfigInvalid ShareASale 配置无效
var ErrConfigInvalid = errors.New("shareasale config invalid")

const (
	defaultBaseURL    = "https://api.shareasale.com"
	defaultTrackerURL = "https://www.shareasale.com/r.cfm"
	apiVersion        = "3.0"
	defaultPageSize   = 100
)

// Config ShareASale 接入配置
type Config struct {
	AffiliateID   string // 联盟账号 ID
	APIToken      string // API token
	APISecret     string // 签名密钥
	WebhookSecret string // 回调签名密钥
	BaseURL       string
	TrackerURL    string
}

// ParseConfig 从网络配置凭证解析 ShareASale 配置
func ParseConfig(cfg *models.NetworkConfig) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: missing network config", ErrConfigInvalid)
	}
	parsed := &Config{
		AffiliateID:   cfg.Credential("affiliate_id"),
		APIToken:      cfg.Credential("api_token"),
		APISecret:     cfg.Credential("api_secret"),
		WebhookSecret: cfg.Credential("webhook_secret"),
		BaseURL:       cfg.Credential("base_url"),
		TrackerURL:    cfg.Credential("tracker_url"),
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
	if strings.TrimSpace(cfg.AffiliateID) == "" {
		return fmt.Errorf("%w: affiliate_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIToken) == "" {
		return fmt.Errorf("%w: api_token is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APISecret) == "" {
		return fmt.Errorf("%w: api_secret is required", ErrConfigInvalid)
	}
	return nil
}

func (c *Config) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.TrackerURL == "" {
		c.TrackerURL = defaultTrackerURL
	}
}

// Options 适配器可注入依赖（测试用）
type Options struct {
	Clock      network.Clock
	HTTPClient *http.Client
	Retry      *network.RetryPolicy
}

// Adapter ShareASale 适配器。
// 请求认证走 x-ShareASale-Date + x-ShareASale-Authentication 头，
// 签名为 sha256(token:date:action:secret) 的 hex。
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
	RequiresSignature: true,
	MaxBatchSize:      defaultPageSize,
	RateLimits:        network.RateLimits{PerMinute: 20, PerHour: 200},
}

// New 创建 ShareASale 适配器
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
		NetworkType: constants.NetworkTypeShareASale,
		BaseURL:     cfg.BaseURL,
		Limits:      capability.RateLimits,
		Retry:       opts.Retry,
		Clock:       clock,
		HTTPClient:  opts.HTTPClient,
	})
	return adapter
}

// NetworkType 实现 Adapter 接口
func (a *Adapter) NetworkType() string {
	return constants.NetworkTypeShareASale
}

// Capabilities 实现 Adapter 接口
func (a *Adapter) Capabilities() network.Capability {
	return capability
}

// RateLimit 实现 Adapter 接口
func (a *Adapter) RateLimit() models.RateLimitInfo {
	return a.client.RateLimit()
}

// Authenticate 用 apitokencount 动作做一次最小凭证校验
func (a *Adapter) Authenticate(ctx context.Context) error {
	_, err := a.call(ctx, "apitokencount", nil)
	return err
}

// call 执行一次带签名头的 API 请求
func (a *Adapter) call(ctx context.Context, action string, params url.Values) ([]byte, error) {
	query := url.Values{}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("action", action)
	query.Set("affiliateId", a.cfg.AffiliateID)
	query.Set("token", a.cfg.APIToken)
	query.Set("version", apiVersion)
	query.Set("format", "xml")

	date := a.clock.Now().UTC().Format(http.TimeFormat)
	header := http.Header{}
	header.Set("x-ShareASale-Date", date)
	header.Set("x-ShareASale-Authentication", signRequest(a.cfg.APIToken, date, action, a.cfg.APISecret))

	body, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   "/x.cfm",
		Query:  query,
		Header: header,
	})
	if err != nil {
		return nil, err
	}
	// ShareASale 的部分错误以 200 + "Error Code NNN" 文本返回
	if text := strings.TrimSpace(string(body)); strings.HasPrefix(text, "Error Code") {
		if strings.Contains(text, "Error Code 4001") || strings.Contains(text, "Error Code 4002") {
			return nil, &network.AuthError{
				NetworkType: constants.NetworkTypeShareASale,
				StatusCode:  http.StatusOK,
				Message:     text,
			}
		}
		return nil, network.NewError(constants.NetworkTypeShareASale, constants.ErrCodeRemote, text, false, nil)
	}
	return body, nil
}

// signRequest 计算认证头：sha256(token:date:action:secret)
func signRequest(token, date, action, secret string) string {
	sum := sha256.Sum256([]byte(token + ":" + date + ":" + action + ":" + secret))
	return hex.EncodeToString(sum[:])
}

// productsResponse getProducts 返回的 XML 结构
type productsResponse struct {
	XMLName  xml.Name      `xml:"shareasaleProducts"`
	Total    int           `xml:"total,attr"`
	Page     int           `xml:"page,attr"`
	Products []wireProduct `xml:"product"`
}

type wireProduct struct {
	ProductID      string `xml:"productID"`
	MerchantID     string `xml:"merchantID"`
	Merchant       string `xml:"merchant"`
	Name           string `xml:"name"`
	Description    string `xml:"description"`
	Category       string `xml:"category"`
	Subcategory    string `xml:"subcategory"`
	Price          string `xml:"price"`
	RetailPrice    string `xml:"retailprice"`
	SalePrice      string `xml:"saleprice"`
	Currency       string `xml:"currency"`
	Commission     string `xml:"commission"`
	CommissionType string `xml:"commissiontype"`
	Link           string `xml:"link"`
	BigImage       string `xml:"bigimage"`
	InStock        string `xml:"instock"`
	SKU            string `xml:"sku"`
	LastUpdated    string `xml:"lastupdated"`
}

func (w wireProduct) toProduct() models.AffiliateProduct {
	product := models.AffiliateProduct{
		NetworkType:      constants.NetworkTypeShareASale,
		NetworkProductID: w.ProductID,
		MerchantID:       w.MerchantID,
		MerchantName:     w.Merchant,
		Title:            w.Name,
		Description:      w.Description,
		Category:         w.Category,
		PriceAmount:      models.NewMoneyFromString(w.Price),
		PriceCurrency:    w.Currency,
		CommissionRate:   models.NewMoneyFromString(w.Commission),
		CommissionType:   normalizeCommissionType(w.CommissionType),
		AffiliateURL:     w.Link,
		InStock:          w.InStock != "0" && !strings.EqualFold(w.InStock, "no"),
		IsActive:         true,
		Metadata: models.JSON{
			"subcategory": w.Subcategory,
			"sku":         w.SKU,
		},
	}
	if w.BigImage != "" {
		product.Images = models.StringArray{w.BigImage}
	}
	if w.RetailPrice != "" {
		retail := models.NewMoneyFromString(w.RetailPrice)
		product.OriginalPrice = &retail
	}
	if w.SalePrice != "" {
		sale := models.NewMoneyFromString(w.SalePrice)
		product.SalePrice = &sale
	}
	if at, err := time.Parse("2006-01-02 15:04:05", w.LastUpdated); err == nil {
		product.LastUpdatedAt = at
	}
	return product
}

func normalizeCommissionType(raw string) string {
	if strings.EqualFold(raw, "flat") || strings.EqualFold(raw, "fixed") {
		return constants.CommissionTypeFlat
	}
	return constants.CommissionTypePercentage
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
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(batchSize))
		if len(opts.MerchantIDs) > 0 {
			params.Set("merchantId", strings.Join(opts.MerchantIDs, ","))
		}
		if len(opts.Categories) > 0 {
			params.Set("category", strings.Join(opts.Categories, ","))
		}
		if !opts.FullSync && opts.UpdatedSince != nil {
			params.Set("modifiedSince", opts.UpdatedSince.UTC().Format("2006-01-02"))
		}

		body, err := a.call(ctx, "getProducts", params)
		if err != nil {
			return nil, false, err
		}
		resp, err := decodeProducts(body)
		if err != nil {
			return nil, false, err
		}
		products := make([]models.AffiliateProduct, 0, len(resp.Products))
		for _, w := range resp.Products {
			products = append(products, w.toProduct())
		}
		hasMore := len(resp.Products) == batchSize && page*batchSize < resp.Total
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
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	for key, value := range query.Filters {
		params.Set(key, value)
	}

	body, err := a.call(ctx, "getProducts", params)
	if err != nil {
		return nil, err
	}
	resp, err := decodeProducts(body)
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
		Total:     resp.Total,
		HasMore:   len(products) == limit && page*limit < resp.Total,
		RateLimit: a.client.RateLimit(),
	}, nil
}

// GetProduct 实现 Adapter 接口
func (a *Adapter) GetProduct(ctx context.Context, networkProductID string) (*models.AffiliateProduct, error) {
	params := url.Values{}
	params.Set("productId", networkProductID)
	body, err := a.call(ctx, "getProducts", params)
	if err != nil {
		return nil, err
	}
	resp, err := decodeProducts(body)
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

func decodeProducts(body []byte) (*productsResponse, error) {
	resp := &productsResponse{}
	if err := xml.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(constants.NetworkTypeShareASale, constants.ErrCodeMalformedPayload,
			"decode products response failed", false, err)
	}
	return resp, nil
}

// GenerateAffiliateLink 构造 r.cfm 跳转链接，子 ID 落在 afftrack 参数
func (a *Adapter) GenerateAffiliateLink(ctx context.Context, networkProductID string, customParams map[string]string) (string, error) {
	query := url.Values{}
	query.Set("b", "1")
	query.Set("u", a.cfg.AffiliateID)
	query.Set("p", networkProductID)
	for key, value := range customParams {
		switch key {
		case "sub_id":
			query.Set("afftrack", value)
		case "merchant_id":
			query.Set("m", value)
		case "url":
			query.Set("urllink", value)
		default:
			query.Set(key, value)
		}
	}
	return a.cfg.TrackerURL + "?" + query.Encode(), nil
}

// TrackClick ShareASale 不提供点击上报接口
func (a *Adapter) TrackClick(ctx context.Context, input network.ClickInput) error {
	return network.NewCapabilityError(a.NetworkType(), network.OpClickTracking)
}

// activityResponse activity 动作返回的 XML 结构
type activityResponse struct {
	XMLName    xml.Name       `xml:"shareasaleActivity"`
	Activities []wireActivity `xml:"activity"`
}

type wireActivity struct {
	TransID     string `xml:"transID"`
	UserID      string `xml:"userID"`
	MerchantID  string `xml:"merchantID"`
	TransDate   string `xml:"transdate"`
	TransAmount string `xml:"transamount"`
	Commission  string `xml:"commission"`
	Comment     string `xml:"comment"`
	Voided      string `xml:"voided"`
	Locked      string `xml:"locked"`
	Paid        string `xml:"paid"`
	Returned    string `xml:"returned"`
	SKU         string `xml:"sku"`
	AffTrack    string `xml:"afftrack"`
}

// nativeStatus 把标志位折叠为原生状态字符串
func (w wireActivity) nativeStatus() string {
	switch {
	case w.Voided == "1":
		return "voided"
	case w.Returned == "1":
		return "returned"
	case w.Paid == "1":
		return "paid"
	case w.Locked == "1":
		return "locked"
	}
	return "pending"
}

// statusFromNative 原生状态固定映射表，未知状态保守归 pending
func statusFromNative(native string) string {
	switch strings.ToLower(native) {
	case "voided":
		return constants.ConversionStatusCancelled
	case "returned":
		return constants.ConversionStatusReversed
	case "paid", "locked":
		return constants.ConversionStatusConfirmed
	case "pending":
		return constants.ConversionStatusPending
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
		params.Set("dateStart", query.DateFrom.UTC().Format("01/02/2006"))
	}
	if query.DateTo != nil {
		params.Set("dateEnd", query.DateTo.UTC().Format("01/02/2006"))
	}

	body, err := a.call(ctx, "activity", params)
	if err != nil {
		return nil, err
	}
	resp := &activityResponse{}
	if err := xml.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode activity response failed", false, err)
	}

	conversions := make([]models.Conversion, 0, len(resp.Activities))
	for _, w := range resp.Activities {
		conversion := models.Conversion{
			TenantID:            a.tenantID,
			NetworkType:         a.NetworkType(),
			NetworkConversionID: w.TransID,
			ClickID:             w.AffTrack,
			OrderID:             w.Comment,
			MerchantID:          w.MerchantID,
			OrderValue:          models.NewMoneyFromString(w.TransAmount),
			Currency:            "USD",
			CommissionAmount:    models.NewMoneyFromString(w.Commission),
			Status:              statusFromNative(w.nativeStatus()),
			Metadata: models.JSON{
				"native_status": w.nativeStatus(),
				"sku":           w.SKU,
			},
		}
		if at, err := time.Parse("2006-01-02 15:04:05", w.TransDate); err == nil {
			conversion.ConversionDate = at
		}
		conversions = append(conversions, conversion)
	}
	return conversions, nil
}

// merchantsResponse merchantStatus 动作返回的 XML 结构
type merchantsResponse struct {
	XMLName   xml.Name       `xml:"shareasaleMerchants"`
	Merchants []wireMerchant `xml:"merchant"`
}

type wireMerchant struct {
	MerchantID     string `xml:"merchantID"`
	Name           string `xml:"organization"`
	CommissionRate string `xml:"saleCommission"`
	CommissionType string `xml:"commissionType"`
}

// GetCommissionStructures 实现 Adapter 接口
func (a *Adapter) GetCommissionStructures(ctx context.Context) ([]models.CommissionStructure, error) {
	body, err := a.call(ctx, "merchantStatus", nil)
	if err != nil {
		return nil, err
	}
	resp := &merchantsResponse{}
	if err := xml.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode merchant response failed", false, err)
	}

	now := time.Now()
	structures := make([]models.CommissionStructure, 0, len(resp.Merchants))
	for _, w := range resp.Merchants {
		structures = append(structures, models.CommissionStructure{
			TenantID:       a.tenantID,
			NetworkType:    a.NetworkType(),
			MerchantID:     w.MerchantID,
			MerchantName:   w.Name,
			BaseRate:       models.NewMoneyFromString(strings.TrimSuffix(w.CommissionRate, "%")),
			CommissionType: normalizeCommissionType(w.CommissionType),
			EffectiveDate:  now,
		})
	}
	return structures, nil
}

// ParseWebhook 解析 form-urlencoded 回调体为规范化事件
func (a *Adapter) ParseWebhook(body []byte, contentType string) (*models.WebhookPayload, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"parse webhook form failed", false, err)
	}
	transID := values.Get("transID")
	if transID == "" {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"webhook missing transID", false, nil)
	}

	native := "pending"
	eventType := constants.WebhookEventConversionCreated
	switch values.Get("eventtype") {
	case "void":
		native = "voided"
		eventType = constants.WebhookEventConversionCancelled
	case "edit":
		eventType = constants.WebhookEventConversionUpdated
	}
	if values.Get("voided") == "1" {
		native = "voided"
		eventType = constants.WebhookEventConversionCancelled
	}
	if values.Get("locked") == "1" && native == "pending" {
		native = "locked"
		eventType = constants.WebhookEventConversionUpdated
	}

	return &models.WebhookPayload{
		EventType:   eventType,
		NetworkType: a.NetworkType(),
		TenantID:    a.tenantID,
		Timestamp:   a.clock.Now(),
		Data: models.JSON{
			network.DataKeyConversionID: transID,
			network.DataKeyMerchantID:   values.Get("merchantID"),
			network.DataKeyOrderID:      values.Get("ordernumber"),
			network.DataKeyClickID:      values.Get("afftrack"),
			network.DataKeyOrderValue:   values.Get("transamount"),
			network.DataKeyCommission:   values.Get("commission"),
			network.DataKeyCurrency:     "USD",
			network.DataKeyStatus:       statusFromNative(native),
			"native_status":             native,
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
