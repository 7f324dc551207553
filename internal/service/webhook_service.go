package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/affisync/internal/cache"
	"github.com/affisync/internal/config"
	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/logger"
	"github.com/affisync/internal/models"
	"github.com/affisync/internal/network"
	"github.com/affisync/internal/network/factory"
	"github.com/affisync/internal/repository"

	"gorm.io/gorm"
)

// WebhookInput 一次入站回调请求
type WebhookInput struct {
	NetworkType string
	TenantID    string // 可选，缺省取该网络的第一个启用配置
	RemoteIP    string
	Signature   string
	ContentType string
	Body        []byte
}

// WebhookResult 回调处理结果
type WebhookResult struct {
	EventType   string
	ShouldRetry bool
}

// WebhookService 入站回调分发：
// 解析配置 → 校验签名（或白名单放行）→ 解析事件 → 落库。
// 无签名网络的回调默认拒绝，需显式开启 allow_unverified_webhooks
// 或来源 IP 命中白名单。
type WebhookService struct {
	cfg        *config.Config
	configRepo repository.NetworkConfigRepository
	sink       network.EventSink
	newAdapter AdapterFactory
}

// NewWebhookService 创建回调分发服务
func NewWebhookService(
	cfg *config.Config,
	configRepo repository.NetworkConfigRepository,
	productRepo repository.ProductRepository,
	conversionRepo repository.ConversionRepository,
) *WebhookService {
	return &WebhookService{
		cfg:        cfg,
		configRepo: configRepo,
		sink:       newStoreSink(productRepo, conversionRepo),
		newAdapter: factory.New,
	}
}

// WithAdapterFactory 替换适配器构造函数（测试用）
func (s *WebhookService) WithAdapterFactory(fn AdapterFactory) *WebhookService {
	if fn != nil {
		s.newAdapter = fn
	}
	return s
}

// Handle 处理一次入站回调。
// 返回错误时 WebhookResult.ShouldRetry 指示对端是否应重发。
func (s *WebhookService) Handle(ctx context.Context, input WebhookInput) (*WebhookResult, error) {
	result := &WebhookResult{}

	cfg, err := s.resolveConfig(input.NetworkType, input.TenantID)
	if err != nil {
		logger.Warnw("webhook_config_not_found",
			"network_type", input.NetworkType,
			"tenant_id", input.TenantID,
		)
		return result, err
	}

	settings := cfg.ParsedSettings()
	if !settings.WebhookEnabled {
		logger.Warnw("webhook_disabled",
			"network_type", cfg.NetworkType,
			"tenant_id", cfg.TenantID,
		)
		return result, network.NewError(cfg.NetworkType, constants.ErrCodeUnsupported,
			"webhooks are disabled for this network config", false, nil)
	}

	adapter, err := s.newAdapter(cfg, s.sink)
	if err != nil {
		return result, err
	}
	capability := adapter.Capabilities()
	if !capability.Webhooks {
		return result, network.NewCapabilityError(cfg.NetworkType, network.OpWebhooks)
	}

	verified := adapter.ValidateWebhookSignature(input.Body, input.Signature)
	if capability.RequiresSignature && !verified {
		// 签名不过一律拒绝，事件处理绝不执行
		logger.Warnw("webhook_signature_invalid",
			"network_type", cfg.NetworkType,
			"tenant_id", cfg.TenantID,
			"remote_ip", input.RemoteIP,
		)
		return result, network.NewError(cfg.NetworkType, constants.ErrCodeAuth,
			"webhook signature verification failed", false, nil)
	}
	if !verified && !s.unverifiedAllowed(settings, input.RemoteIP) {
		logger.Warnw("webhook_unverified_rejected",
			"network_type", cfg.NetworkType,
			"tenant_id", cfg.TenantID,
			"remote_ip", input.RemoteIP,
		)
		return result, network.NewError(cfg.NetworkType, constants.ErrCodeAuth,
			"unverified webhooks are not allowed for this network config", false, nil)
	}

	// 对端重发抑制，窗口内同一原始包只处理一次
	if seen, dedupeErr := cache.MarkWebhookSeen(ctx, webhookFingerprint(cfg.NetworkType, input.Body), 10*time.Minute); dedupeErr != nil {
		logger.Warnw("webhook_dedupe_unavailable", "network_type", cfg.NetworkType, "error", dedupeErr)
	} else if seen {
		logger.Infow("webhook_duplicate_ignored",
			"network_type", cfg.NetworkType,
			"tenant_id", cfg.TenantID,
		)
		return result, nil
	}

	payload, err := adapter.ParseWebhook(input.Body, input.ContentType)
	if err != nil {
		logger.Warnw("webhook_payload_malformed",
			"network_type", cfg.NetworkType,
			"error", err,
		)
		return result, err
	}
	payload.TenantID = cfg.TenantID
	payload.Verified = verified
	result.EventType = payload.EventType

	if err := adapter.HandleWebhook(ctx, payload); err != nil {
		result.ShouldRetry = network.IsRetryable(err)
		logger.Errorw("webhook_handle_failed",
			"network_type", cfg.NetworkType,
			"event_type", payload.EventType,
			"should_retry", result.ShouldRetry,
			"error", err,
		)
		return result, err
	}

	logger.Infow("webhook_handled",
		"network_type", cfg.NetworkType,
		"tenant_id", cfg.TenantID,
		"event_type", payload.EventType,
		"verified", verified,
	)
	return result, nil
}

func (s *WebhookService) resolveConfig(networkType, tenantID string) (*models.NetworkConfig, error) {
	if tenantID != "" {
		cfg, err := s.configRepo.GetByTenantAndType(tenantID, networkType)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return cfg, err
	}
	configs, _, err := s.configRepo.List(repository.NetworkConfigListFilter{
		NetworkType: networkType,
		Status:      constants.NetworkConfigStatusActive,
		Page:        1,
		PageSize:    1,
	})
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, ErrNotFound
	}
	return &configs[0], nil
}

func webhookFingerprint(networkType string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(networkType))
	sum.Write([]byte{'\n'})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

// unverifiedAllowed 无签名回调的放行判定
func (s *WebhookService) unverifiedAllowed(settings models.NetworkSettings, remoteIP string) bool {
	if settings.AllowUnverifiedWebhooks {
		return true
	}
	if s.cfg == nil || remoteIP == "" {
		return false
	}
	for _, allowed := range s.cfg.Webhook.UnverifiedIPAllowlist {
		if allowed == remoteIP {
			return true
		}
	}
	return false
}
