package repository

import (
	"github.com/affisync/internal/models"

	"gorm.io/gorm"
)

// SyncOperationRepository 同步操作数据访问接口
type SyncOperationRepository interface {
	List(filter SyncOperationListFilter) ([]models.SyncOperation, int64, error)
	GetByID(id string) (*models.SyncOperation, error)
	Save(op *models.SyncOperation) error
}

// GormSyncOperationRepository GORM 实现
type GormSyncOperationRepository struct {
	db *gorm.DB
}

// NewSyncOperationRepository 创建同步操作仓库
func NewSyncOperationRepository(db *gorm.DB) *GormSyncOperationRepository {
	return &GormSyncOperationRepository{db: db}
}

// List 同步操作列表
func (r *GormSyncOperationRepository) List(filter SyncOperationListFilter) ([]models.SyncOperation, int64, error) {
	var operations []models.SyncOperation

	query := r.db.Model(&models.SyncOperation{})
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
	if err := query.Order("started_at DESC").Find(&operations).Error; err != nil {
		return nil, 0, err
	}
	return operations, total, nil
}

// GetByID 按操作 ID 查询
func (r *GormSyncOperationRepository) GetByID(id string) (*models.SyncOperation, error) {
	var op models.SyncOperation
	if err := r.db.Where("id = ?", id).First(&op).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

// Save 写入或更新同步操作
func (r *GormSyncOperationRepository) Save(op *models.SyncOperation) error {
	return r.db.Save(op).Error
}
