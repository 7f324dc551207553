package repository

import (
	"time"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"

	"gorm.io/gorm"
)

// NetworkConfigRepository 网络配置数据访问接口
type NetworkConfigRepository interface {
	List(filter NetworkConfigListFilter) ([]models.NetworkConfig, int64, error)
	GetByID(id uint) (*models.NetworkConfig, error)
	GetByTenantAndType(tenantID, networkType string) (*models.NetworkConfig, error)
	ListDueForSync(now time.Time, limit int) ([]models.NetworkConfig, error)
	Create(cfg *models.NetworkConfig) error
	Update(cfg *models.NetworkConfig) error
	UpdateSyncResult(id uint, syncedAt time.Time, nextSyncAt *time.Time, errorMessage string) error
	Delete(id uint) error
}

// GormNetworkConfigRepository GORM 实现
type GormNetworkConfigRepository struct {
	db *gorm.DB
}

// NewNetworkConfigRepository 创建网络配置仓库
func NewNetworkConfigRepository(db *gorm.DB) *GormNetworkConfigRepository {
	return &GormNetworkConfigRepository{db: db}
}

// List 网络配置列表
func (r *GormNetworkConfigRepository) List(filter NetworkConfigListFilter) ([]models.NetworkConfig, int64, error) {
	var configs []models.NetworkConfig

	query := r.db.Model(&models.NetworkConfig{})
	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.NetworkType != "" {
		query = query.Where("network_type = ?", filter.NetworkType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("created_at DESC").Find(&configs).Error; err != nil {
		return nil, 0, err
	}
	return configs, total, nil
}

// GetByID 按主键查询
func (r *GormNetworkConfigRepository) GetByID(id uint) (*models.NetworkConfig, error) {
	var cfg models.NetworkConfig
	if err := r.db.First(&cfg, id).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetByTenantAndType 按租户与网络类型查询
func (r *GormNetworkConfigRepository) GetByTenantAndType(tenantID, networkType string) (*models.NetworkConfig, error) {
	var cfg models.NetworkConfig
	err := r.db.Where("tenant_id = ? AND network_type = ?", tenantID, networkType).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListDueForSync 查询到期待同步的启用配置
func (r *GormNetworkConfigRepository) ListDueForSync(now time.Time, limit int) ([]models.NetworkConfig, error) {
	var configs []models.NetworkConfig
	query := r.db.
		Where("status = ?", constants.NetworkConfigStatusActive).
		Where("next_sync_at IS NOT NULL AND next_sync_at <= ?", now).
		Order("next_sync_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// Create 新建配置
func (r *GormNetworkConfigRepository) Create(cfg *models.NetworkConfig) error {
	return r.db.Create(cfg).Error
}

// Update 保存配置
func (r *GormNetworkConfigRepository) Update(cfg *models.NetworkConfig) error {
	return r.db.Save(cfg).Error
}

// UpdateSyncResult 同步结束后回写时间与错误信息
func (r *GormNetworkConfigRepository) UpdateSyncResult(id uint, syncedAt time.Time, nextSyncAt *time.Time, errorMessage string) error {
	updates := map[string]interface{}{
		"last_sync_at":  syncedAt,
		"next_sync_at":  nextSyncAt,
		"error_message": errorMessage,
	}
	if errorMessage != "" {
		updates["status"] = constants.NetworkConfigStatusError
	} else {
		updates["status"] = constants.NetworkConfigStatusActive
	}
	return r.db.Model(&models.NetworkConfig{}).Where("id = ?", id).Updates(updates).Error
}

// Delete 软删除配置
func (r *GormNetworkConfigRepository) Delete(id uint) error {
	return r.db.Delete(&models.NetworkConfig{}, id).Error
}
