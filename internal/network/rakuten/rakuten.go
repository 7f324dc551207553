package rakuten

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"
	"github.com/affisync/internal/network"
)

// ErrConfigInvalid Rakuten 配置无效
var ErrConfigInvalid = errors.New("rakuten config invalid")

const (
	defaultBaseURL    = "https://api.linksynergy.com"
	defaultDeepLink   = "https://click.linksynergy.com/deeplink"
	defaultPageSize   = 100
	signatureParam    = "signature"
	timestampParam    = "timestamp"
	keyIDParam        = "keyid"
	conversionDateFmt = "2006-01-02 15:04:05"
)

// Config Rakuten (LinkShare) 接入配置，请求走签名 query 参数
type Config struct {
	KeyID       string // 签名 key ID
	APISecret   string // HMAC 签名密钥
	SiteID      string // 发布者站点 ID，拼链接用
	BaseURL     string
	DeepLinkURL string
}

// ParseConfig 从网络配置凭证解析 Rakuten 配置
func ParseConfig(cfg *models.NetworkConfig) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: missing network config", ErrConfigInvalid)
	}
	parsed := &Config{
		KeyID:       cfg.Credential("key_id"),
		APISecret:   cfg.Credential("api_secret"),
		SiteID:      cfg.Credential("site_id"),
		BaseURL:     cfg.Credential("base_url"),
		DeepLinkURL: cfg.Credential("deep_link_url"),
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
	if strings.TrimSpace(cfg.KeyID) == "" {
		return fmt.Errorf("%w: key_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APISecret) == "" {
		return fmt.Errorf("%w: api_secret is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.SiteID) == "" {
		return fmt.Errorf("%w: site_id is required", ErrConfigInvalid)
	}
	return nil
}

func (c *Config) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.DeepLinkURL == "" {
		c.DeepLinkURL = defaultDeepLink
	}
}

// Options 适配器可注入依赖（测试用）
type Options struct {
	Clock      network.Clock
	HTTPClient *http.Client
	Retry      *network.RetryPolicy
}

// Adapter Rakuten 适配器。
// 每个请求在 query 上追加 keyid/timestamp/signature 三个参数，
// 签名为 HMAC-SHA256(path + "?" + 规范化 query) 的 hex。
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
	RateLimits:        network.RateLimits{PerMinute: 10, PerHour: 300},
}

// New 创建 Rakuten 适配器
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
		NetworkType: constants.NetworkTypeRakuten,
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
	return constants.NetworkTypeRakuten
}

// Capabilities 实现 Adapter 接口
func (a *Adapter) Capabilities() network.Capability {
	return capability
}

// RateLimit 实现 Adapter 接口
func (a *Adapter) RateLimit() models.RateLimitInfo {
	return a.client.RateLimit()
}

// signQuery 在 query 上追加签名参数。
// 消息为 path + "?" + 按 key 升序编码后的 query（不含 signature 本身）。
func (a *Adapter) signQuery(path string, query url.Values) url.Values {
	signed := url.Values{}
	for key, values := range query {
		for _, value := range values {
			signed.Add(key, value)
		}
	}
	signed.Set(keyIDParam, a.cfg.KeyID)
	signed.Set(timestampParam, strconv.FormatInt(a.clock.Now().Unix(), 10))
	signed.Set(signatureParam, SignQuery(a.cfg.APISecret, path, signed))
	return signed
}

// SignQuery 计算签名 query 的 HMAC-SHA256 签名
func SignQuery(secret, path string, query url.Values) string {
	keys := make([]string, 0, len(query))
	for key := range query {
		if key == signatureParam {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		for _, value := range query[key] {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(value))
		}
	}
	message := path + "?" + strings.Join(parts, "&")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *Adapter) call(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, _, err := a.client.DoWithRetry(ctx, network.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  a.signQuery(path, query),
	})
	return body, err
}

// Authenticate 用单条商品查询校验签名凭证
func (a *Adapter) Authenticate(ctx context.Context) error {
	query := url.Values{}
	query.Set("max", "1")
	_, err := a.call(ctx, "/productsearch/1.0", query)
	return err
}

// productsResponse productsearch 响应的 XML 结构
type productsResponse struct {
	XMLName      xml.Name   `xml:"result"`
	TotalMatches int        `xml:"TotalMatches"`
	TotalPages   int        `xml:"TotalPages"`
	PageNumber   int        `xml:"PageNumber"`
	Items        []wireItem `xml:"item"`
}

type wireItem struct {
	MID          string    `xml:"mid"`
	MerchantName string    `xml:"merchantname"`
	LinkID       string    `xml:"linkid"`
	SKU          string    `xml:"sku"`
	ProductName  string    `xml:"productname"`
	Category     category  `xml:"category"`
	Price        wirePrice `xml:"price"`
	SalePrice    wirePrice `xml:"saleprice"`
	UPC          string    `xml:"upccode"`
	Description  wireDesc  `xml:"description"`
	ImageURL     string    `xml:"imageurl"`
	LinkURL      string    `xml:"linkurl"`
	CreatedOn    string    `xml:"createdon"`
}

type category struct {
	Primary   string `xml:"primary"`
	Secondary string `xml:"secondary"`
}

type wirePrice struct {
	Currency string `xml:"currency,attr"`
	Value    string `xml:",chardata"`
}

type wireDesc struct {
	Short string `xml:"short"`
	Long  string `xml:"long"`
}

func (w wireItem) toProduct() models.AffiliateProduct {
	description := w.Description.Long
	if description == "" {
		description = w.Description.Short
	}
	product := models.AffiliateProduct{
		NetworkType:      constants.NetworkTypeRakuten,
		NetworkProductID: w.LinkID,
		MerchantID:       w.MID,
		MerchantName:     w.MerchantName,
		Title:            w.ProductName,
		Description:      description,
		Category:         w.Category.Primary,
		PriceAmount:      models.NewMoneyFromString(strings.TrimSpace(w.Price.Value)),
		PriceCurrency:    w.Price.Currency,
		AffiliateURL:     w.LinkURL,
		InStock:          true,
		IsActive:         true,
		Metadata: models.JSON{
			"sku":                w.SKU,
			"upc":                w.UPC,
			"secondary_category": w.Category.Secondary,
		},
	}
	if w.ImageURL != "" {
		product.Images = models.StringArray{w.ImageURL}
	}
	if sale := strings.TrimSpace(w.SalePrice.Value); sale != "" {
		price := models.NewMoneyFromString(sale)
		product.SalePrice = &price
	}
	if at, err := time.Parse(conversionDateFmt, w.CreatedOn); err == nil {
		product.LastUpdatedAt = at
	}
	return product
}

func decodeProducts(body []byte) (*productsResponse, error) {
	resp := &productsResponse{}
	if err := xml.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(constants.NetworkTypeRakuten, constants.ErrCodeMalformedPayload,
			"decode product search response failed", false, err)
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
		query := url.Values{}
		query.Set("pagenumber", strconv.Itoa(page))
		query.Set("max", strconv.Itoa(batchSize))
		if len(opts.MerchantIDs) > 0 {
			query.Set("mid", strings.Join(opts.MerchantIDs, "|"))
		}
		if len(opts.Categories) > 0 {
			query.Set("cat", strings.Join(opts.Categories, "|"))
		}

		body, err := a.call(ctx, "/productsearch/1.0", query)
		if err != nil {
			return nil, false, err
		}
		resp, err := decodeProducts(body)
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
	params.Set("pagenumber", strconv.Itoa(page))
	params.Set("max", strconv.Itoa(limit))
	for key, value := range query.Filters {
		params.Set(key, value)
	}

	body, err := a.call(ctx, "/productsearch/1.0", params)
	if err != nil {
		return nil, err
	}
	resp, err := decodeProducts(body)
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
		Total:     resp.TotalMatches,
		HasMore:   page < resp.TotalPages,
		RateLimit: a.client.RateLimit(),
	}, nil
}

// GetProduct 实现 Adapter 接口
func (a *Adapter) GetProduct(ctx context.Context, networkProductID string) (*models.AffiliateProduct, error) {
	params := url.Values{}
	params.Set("linkid", networkProductID)
	params.Set("max", "1")
	body, err := a.call(ctx, "/productsearch/1.0", params)
	if err != nil {
		return nil, err
	}
	resp, err := decodeProducts(body)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeRemote,
			"product "+networkProductID+" not found", false, nil)
	}
	product := resp.Items[0].toProduct()
	product.TenantID = a.tenantID
	product.Normalize()
	return &product, nil
}

// GenerateAffiliateLink 构造 deeplink 跳转链接，子 ID 落在 u1 参数
func (a *Adapter) GenerateAffiliateLink(ctx context.Context, networkProductID string, customParams map[string]string) (string, error) {
	query := url.Values{}
	query.Set("id", a.cfg.SiteID)
	query.Set("mid", customParams["merchant_id"])
	for key, value := range customParams {
		switch key {
		case "sub_id":
			query.Set("u1", value)
		case "merchant_id":
			// 已写入 mid
		case "url":
			query.Set("murl", value)
		default:
			query.Set(key, value)
		}
	}
	if query.Get("murl") == "" {
		query.Set("murl", networkProductID)
	}
	return a.cfg.DeepLinkURL + "?" + query.Encode(), nil
}

// TrackClick Rakuten 不提供点击上报接口
func (a *Adapter) TrackClick(ctx context.Context, input network.ClickInput) error {
	return network.NewCapabilityError(a.NetworkType(), network.OpClickTracking)
}

// transactionsResponse transactions 响应的 XML 结构
type transactionsResponse struct {
	XMLName      xml.Name          `xml:"transactions"`
	Transactions []wireTransaction `xml:"transaction"`
}

type wireTransaction struct {
	TransactionID string `xml:"etransaction_id"`
	OrderID       string `xml:"order_id"`
	MID           string `xml:"mid"`
	SKU           string `xml:"sku"`
	SaleAmount    string `xml:"sale_amount"`
	Currency      string `xml:"currency"`
	Commissions   string `xml:"commissions"`
	Status        string `xml:"status"`
	U1            string `xml:"u1"`
	TransDate     string `xml:"transaction_date"`
	ProcessDate   string `xml:"process_date"`
}

// statusFromNative 原生状态固定映射表，未知状态保守归 pending
func statusFromNative(native string) string {
	switch strings.ToLower(native) {
	case "pending":
		return constants.ConversionStatusPending
	case "approved", "paid":
		return constants.ConversionStatusConfirmed
	case "cancelled", "canceled":
		return constants.ConversionStatusCancelled
	case "reversed", "returned":
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
		params.Set("process_date_start", query.DateFrom.UTC().Format("2006-01-02"))
	}
	if query.DateTo != nil {
		params.Set("process_date_end", query.DateTo.UTC().Format("2006-01-02"))
	}

	body, err := a.call(ctx, "/events/1.0/transactions", params)
	if err != nil {
		return nil, err
	}
	resp := &transactionsResponse{}
	if err := xml.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode transactions response failed", false, err)
	}

	conversions := make([]models.Conversion, 0, len(resp.Transactions))
	for _, w := range resp.Transactions {
		conversion := models.Conversion{
			TenantID:            a.tenantID,
			NetworkType:         a.NetworkType(),
			NetworkConversionID: w.TransactionID,
			ClickID:             w.U1,
			OrderID:             w.OrderID,
			MerchantID:          w.MID,
			OrderValue:          models.NewMoneyFromString(w.SaleAmount),
			Currency:            w.Currency,
			CommissionAmount:    models.NewMoneyFromString(w.Commissions),
			Status:              statusFromNative(w.Status),
			Metadata: models.JSON{
				"native_status": w.Status,
				"sku":           w.SKU,
			},
		}
		if at, err := time.Parse(conversionDateFmt, w.TransDate); err == nil {
			conversion.ConversionDate = at
		}
		conversions = append(conversions, conversion)
	}
	return conversions, nil
}

// advertisersResponse advertisers 响应的 XML 结构
type advertisersResponse struct {
	XMLName     xml.Name         `xml:"advertisers"`
	Advertisers []wireAdvertiser `xml:"advertiser"`
}

type wireAdvertiser struct {
	MID        string `xml:"mid"`
	Name       string `xml:"name"`
	Commission string `xml:"commission"`
	Terms      string `xml:"terms"`
}

// GetCommissionStructures 实现 Adapter 接口
func (a *Adapter) GetCommissionStructures(ctx context.Context) ([]models.CommissionStructure, error) {
	body, err := a.call(ctx, "/advertisersearch/1.0", nil)
	if err != nil {
		return nil, err
	}
	resp := &advertisersResponse{}
	if err := xml.Unmarshal(body, resp); err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"decode advertiser search response failed", false, err)
	}

	now := time.Now()
	structures := make([]models.CommissionStructure, 0, len(resp.Advertisers))
	for _, w := range resp.Advertisers {
		structures = append(structures, models.CommissionStructure{
			TenantID:       a.tenantID,
			NetworkType:    a.NetworkType(),
			MerchantID:     w.MID,
			MerchantName:   w.Name,
			BaseRate:       models.NewMoneyFromString(strings.TrimSuffix(w.Commission, "%")),
			CommissionType: constants.CommissionTypePercentage,
			EffectiveDate:  now,
		})
	}
	return structures, nil
}

// ParseWebhook 解析像素回调。
// Rakuten 以 query 串形式透传转化事件，无签名。
func (a *Adapter) ParseWebhook(body []byte, contentType string) (*models.WebhookPayload, error) {
	raw := strings.TrimSpace(string(body))
	raw = strings.TrimPrefix(raw, "?")
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"parse webhook query failed", false, err)
	}
	transactionID := values.Get("etransaction_id")
	if transactionID == "" {
		transactionID = values.Get("ord")
	}
	if transactionID == "" {
		return nil, network.NewError(a.NetworkType(), constants.ErrCodeMalformedPayload,
			"webhook missing transaction id", false, nil)
	}

	native := values.Get("status")
	status := statusFromNative(native)
	eventType := constants.WebhookEventConversionCreated
	switch status {
	case constants.ConversionStatusCancelled:
		eventType = constants.WebhookEventConversionCancelled
	case constants.ConversionStatusConfirmed, constants.ConversionStatusReversed:
		eventType = constants.WebhookEventConversionUpdated
	}

	currency := values.Get("cur")
	if currency == "" {
		currency = "USD"
	}
	return &models.WebhookPayload{
		EventType:   eventType,
		NetworkType: a.NetworkType(),
		TenantID:    a.tenantID,
		Timestamp:   a.clock.Now(),
		Data: models.JSON{
			network.DataKeyConversionID: transactionID,
			network.DataKeyMerchantID:   values.Get("mid"),
			network.DataKeyOrderID:      values.Get("ord"),
			network.DataKeyClickID:      values.Get("u1"),
			network.DataKeyOrderValue:   values.Get("amt"),
			network.DataKeyCommission:   values.Get("comm"),
			network.DataKeyCurrency:     currency,
			network.DataKeyStatus:       status,
			"native_status":             native,
			"sku_list":                  values.Get("skulist"),
		},
	}, nil
}

// HandleWebhook 实现 Adapter 接口
func (a *Adapter) HandleWebhook(ctx context.Context, payload *models.WebhookPayload) error {
	return network.ApplyWebhookEvent(ctx, a.sink, payload)
}

// ValidateWebhookSignature Rakuten 回调不携带签名，一律不通过，
// 放行与否交由回调分发层按白名单或显式配置决定
func (a *Adapter) ValidateWebhookSignature(rawBody []byte, signature string) bool {
	return false
}
