package service

import (
	"context"
	"errors"
	"time"

	"github.com/affisync/internal/config"
	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/logger"
	"github.com/affisync/internal/models"
	"github.com/affisync/internal/network"
	"github.com/affisync/internal/network/factory"
	"github.com/affisync/internal/repository"

	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// AdapterFactory 适配器构造函数，测试时可注入
type AdapterFactory func(cfg *models.NetworkConfig, sink network.EventSink) (network.Adapter, error)

// NetworkService 联盟网络编排服务：
// 配置管理、商品同步、转化轮询、佣金结构刷新与链接生成。
type NetworkService struct {
	cfg            *config.Config
	configRepo     repository.NetworkConfigRepository
	productRepo    repository.ProductRepository
	conversionRepo repository.ConversionRepository
	commissionRepo repository.CommissionRepository
	syncOpRepo     repository.SyncOperationRepository
	newAdapter     AdapterFactory

	// 跨网络并发同步信号量
	syncSlots chan struct{}
}

// NewNetworkService 创建联盟网络服务
func NewNetworkService(
	cfg *config.Config,
	configRepo repository.NetworkConfigRepository,
	productRepo repository.ProductRepository,
	conversionRepo repository.ConversionRepository,
	commissionRepo repository.CommissionRepository,
	syncOpRepo repository.SyncOperationRepository,
) *NetworkService {
	maxConcurrent := 1
	if cfg != nil && cfg.Sync.MaxConcurrentSyncs > 0 {
		maxConcurrent = cfg.Sync.MaxConcurrentSyncs
	}
	return &NetworkService{
		cfg:            cfg,
		configRepo:     configRepo,
		productRepo:    productRepo,
		conversionRepo: conversionRepo,
		commissionRepo: commissionRepo,
		syncOpRepo:     syncOpRepo,
		newAdapter:     factory.New,
		syncSlots:      make(chan struct{}, maxConcurrent),
	}
}

// WithAdapterFactory 替换适配器构造函数（测试用）
func (s *NetworkService) WithAdapterFactory(fn AdapterFactory) *NetworkService {
	if fn != nil {
		s.newAdapter = fn
	}
	return s
}

// ListConfigs 网络配置列表
func (s *NetworkService) ListConfigs(filter repository.NetworkConfigListFilter) ([]models.NetworkConfig, int64, error) {
	return s.configRepo.List(filter)
}

// GetConfig 查询单个网络配置
func (s *NetworkService) GetConfig(id uint) (*models.NetworkConfig, error) {
	cfg, err := s.configRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return cfg, err
}

// CreateConfig 新建网络配置，凭证先做本地校验
func (s *NetworkService) CreateConfig(cfg *models.NetworkConfig) error {
	if err := factory.ValidateConfig(cfg); err != nil {
		return err
	}
	if cfg.Status == "" {
		cfg.Status = constants.NetworkConfigStatusActive
	}
	if next := s.nextSyncAt(cfg, time.Now()); next != nil {
		cfg.NextSyncAt = next
	}
	return s.configRepo.Create(cfg)
}

// UpdateConfig 更新网络配置
func (s *NetworkService) UpdateConfig(cfg *models.NetworkConfig) error {
	if err := factory.ValidateConfig(cfg); err != nil {
		return err
	}
	return s.configRepo.Update(cfg)
}

// DeleteConfig 删除网络配置
func (s *NetworkService) DeleteConfig(id uint) error {
	return s.configRepo.Delete(id)
}

// TestConnection 用一次最小读请求验证配置凭证
func (s *NetworkService) TestConnection(ctx context.Context, id uint) error {
	cfg, err := s.GetConfig(id)
	if err != nil {
		return err
	}
	adapter, err := s.newAdapter(cfg, nil)
	if err != nil {
		return err
	}
	return adapter.Authenticate(ctx)
}

// SyncNetwork 执行一次商品同步。
// 并发同步数受信号量约束，商品逐页落库，
// 操作记录与配置的同步时间在结束后统一回写。
func (s *NetworkService) SyncNetwork(ctx context.Context, configID uint, fullSync bool) (*models.SyncOperation, error) {
	cfg, err := s.GetConfig(configID)
	if err != nil {
		return nil, err
	}

	select {
	case s.syncSlots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.syncSlots }()

	sink := newStoreSink(s.productRepo, s.conversionRepo)
	adapter, err := s.newAdapter(cfg, sink)
	if err != nil {
		return nil, err
	}

	opts := network.SyncOptions{FullSync: fullSync}
	if !fullSync && cfg.LastSyncAt != nil {
		since := *cfg.LastSyncAt
		opts.UpdatedSince = &since
	}

	logger.Infow("network_sync_started",
		"config_id", cfg.ID,
		"network_type", cfg.NetworkType,
		"tenant_id", cfg.TenantID,
		"full_sync", fullSync,
	)

	op, syncErr := adapter.SyncProducts(ctx, opts, func(ctx context.Context, products []models.AffiliateProduct) error {
		return s.productRepo.UpsertBatch(products)
	})

	if op != nil {
		if err := s.syncOpRepo.Save(op); err != nil {
			logger.Errorw("sync_operation_save_failed", "error", err, "operation_id", op.ID)
		}
	}

	now := time.Now()
	errorMessage := ""
	if syncErr != nil {
		errorMessage = syncErr.Error()
		logger.Warnw("network_sync_failed",
			"config_id", cfg.ID,
			"network_type", cfg.NetworkType,
			"error_code", network.ErrorCode(syncErr),
			"error", syncErr,
		)
	} else {
		logger.Infow("network_sync_completed",
			"config_id", cfg.ID,
			"network_type", cfg.NetworkType,
			"records_succeeded", op.RecordsSucceeded,
		)
	}
	if err := s.configRepo.UpdateSyncResult(cfg.ID, now, s.nextSyncAt(cfg, now), errorMessage); err != nil {
		logger.Errorw("network_config_sync_result_save_failed", "error", err, "config_id", cfg.ID)
	}

	return op, syncErr
}

// nextSyncAt 计算下一次自动同步时间，自动同步未开启时返回 nil
func (s *NetworkService) nextSyncAt(cfg *models.NetworkConfig, from time.Time) *time.Time {
	settings := cfg.ParsedSettings()
	if !settings.AutoSync {
		return nil
	}
	interval := settings.SyncIntervalMinutes
	if interval <= 0 && s.cfg != nil {
		interval = s.cfg.Sync.DefaultIntervalMinutes
	}
	if interval <= 0 {
		interval = 360
	}
	next := from.Add(time.Duration(interval) * time.Minute)
	return &next
}

// PollConversions 拉取回看窗口内的转化并按状态机落库
func (s *NetworkService) PollConversions(ctx context.Context, configID uint) (int, error) {
	cfg, err := s.GetConfig(configID)
	if err != nil {
		return 0, err
	}
	adapter, err := s.newAdapter(cfg, newStoreSink(s.productRepo, s.conversionRepo))
	if err != nil {
		return 0, err
	}

	lookbackDays := 7
	if s.cfg != nil && s.cfg.Sync.ConversionLookbackDays > 0 {
		lookbackDays = s.cfg.Sync.ConversionLookbackDays
	}
	now := time.Now()
	from := now.AddDate(0, 0, -lookbackDays)

	conversions, err := adapter.GetConversions(ctx, network.ConversionQuery{DateFrom: &from, DateTo: &now})
	if err != nil {
		logger.Warnw("conversion_poll_failed",
			"config_id", cfg.ID,
			"network_type", cfg.NetworkType,
			"error", err,
		)
		return 0, err
	}

	succeeded, upsertErr := s.conversionRepo.UpsertBatch(conversions)
	logger.Infow("conversion_poll_completed",
		"config_id", cfg.ID,
		"network_type", cfg.NetworkType,
		"fetched", len(conversions),
		"stored", succeeded,
	)
	return succeeded, upsertErr
}

// SyncCommissions 刷新商家佣金结构，整体替换为网络侧最新版本
func (s *NetworkService) SyncCommissions(ctx context.Context, configID uint) (int, error) {
	cfg, err := s.GetConfig(configID)
	if err != nil {
		return 0, err
	}
	adapter, err := s.newAdapter(cfg, nil)
	if err != nil {
		return 0, err
	}

	structures, err := adapter.GetCommissionStructures(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.commissionRepo.ReplaceForNetwork(cfg.TenantID, cfg.NetworkType, structures); err != nil {
		return 0, err
	}
	return len(structures), nil
}

// GenerateLink 为商品生成带子 ID 的推广链接
func (s *NetworkService) GenerateLink(ctx context.Context, configID uint, networkProductID string, customParams map[string]string) (string, error) {
	cfg, err := s.GetConfig(configID)
	if err != nil {
		return "", err
	}
	adapter, err := s.newAdapter(cfg, nil)
	if err != nil {
		return "", err
	}
	return adapter.GenerateAffiliateLink(ctx, networkProductID, customParams)
}

// DueSyncConfigs 查询到期待同步的配置，调度器用
func (s *NetworkService) DueSyncConfigs(now time.Time, limit int) ([]models.NetworkConfig, error) {
	return s.configRepo.ListDueForSync(now, limit)
}

// ListProducts 商品列表
func (s *NetworkService) ListProducts(filter repository.ProductListFilter) ([]models.AffiliateProduct, int64, error) {
	return s.productRepo.List(filter)
}

// ListConversions 转化列表
func (s *NetworkService) ListConversions(filter repository.ConversionListFilter) ([]models.Conversion, int64, error) {
	return s.conversionRepo.List(filter)
}

// GetSyncOperation 查询单个同步操作
func (s *NetworkService) GetSyncOperation(id string) (*models.SyncOperation, error) {
	op, err := s.syncOpRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return op, err
}

// ListSyncOperations 同步操作列表
func (s *NetworkService) ListSyncOperations(filter repository.SyncOperationListFilter) ([]models.SyncOperation, int64, error) {
	return s.syncOpRepo.List(filter)
}

// ListCommissionStructures 佣金结构列表
func (s *NetworkService) ListCommissionStructures(tenantID, networkType string) ([]models.CommissionStructure, error) {
	return s.commissionRepo.ListByTenant(tenantID, networkType)
}
