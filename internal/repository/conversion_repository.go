package repository

import (
	"errors"

	"github.com/affisync/internal/models"

	"gorm.io/gorm"
)

// ConversionRepository 转化数据访问接口
type ConversionRepository interface {
	List(filter ConversionListFilter) ([]models.Conversion, int64, error)
	GetByNetworkID(tenantID, networkType, networkConversionID string) (*models.Conversion, error)
	Upsert(conversion *models.Conversion) error
	UpsertBatch(conversions []models.Conversion) (int, error)
}

// GormConversionRepository GORM 实现
type GormConversionRepository struct {
	db *gorm.DB
}

// NewConversionRepository 创建转化仓库
func NewConversionRepository(db *gorm.DB) *GormConversionRepository {
	return &GormConversionRepository{db: db}
}

// List 转化列表
func (r *GormConversionRepository) List(filter ConversionListFilter) ([]models.Conversion, int64, error) {
	var conversions []models.Conversion

	query := r.db.Model(&models.Conversion{})
	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.NetworkType != "" {
		query = query.Where("network_type = ?", filter.NetworkType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DateFrom != nil {
		query = query.Where("conversion_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("conversion_date <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("conversion_date DESC").Find(&conversions).Error; err != nil {
		return nil, 0, err
	}
	return conversions, total, nil
}

// GetByNetworkID 按网络转化 ID 查询
func (r *GormConversionRepository) GetByNetworkID(tenantID, networkType, networkConversionID string) (*models.Conversion, error) {
	var conversion models.Conversion
	err := r.db.Where("tenant_id = ? AND network_type = ? AND network_conversion_id = ?",
		tenantID, networkType, networkConversionID).First(&conversion).Error
	if err != nil {
		return nil, err
	}
	return &conversion, nil
}

// Upsert 写入或更新转化。
// 状态按单调状态机推进，回退（如 confirmed → pending）静默保留现状，
// 其余字段仍然刷新。
func (r *GormConversionRepository) Upsert(conversion *models.Conversion) error {
	if conversion == nil {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Conversion
		err := tx.Where("tenant_id = ? AND network_type = ? AND network_conversion_id = ?",
			conversion.TenantID, conversion.NetworkType, conversion.NetworkConversionID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(conversion).Error
		}
		if err != nil {
			return err
		}

		if !models.CanTransitionConversionStatus(existing.Status, conversion.Status) {
			conversion.Status = existing.Status
		}
		conversion.ID = existing.ID
		conversion.CreatedAt = existing.CreatedAt
		return tx.Save(conversion).Error
	})
}

// UpsertBatch 批量写入转化，返回成功条数，单条失败不阻断其余
func (r *GormConversionRepository) UpsertBatch(conversions []models.Conversion) (int, error) {
	var lastErr error
	succeeded := 0
	for i := range conversions {
		if err := r.Upsert(&conversions[i]); err != nil {
			lastErr = err
			continue
		}
		succeeded++
	}
	return succeeded, lastErr
}
