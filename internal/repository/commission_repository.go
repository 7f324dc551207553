package repository

import (
	"github.com/affisync/internal/models"

	"gorm.io/gorm"
)

// CommissionRepository 佣金结构数据访问接口
type CommissionRepository interface {
	ListByTenant(tenantID, networkType string) ([]models.CommissionStructure, error)
	ReplaceForNetwork(tenantID, networkType string, structures []models.CommissionStructure) error
}

// GormCommissionRepository GORM 实现
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金结构仓库
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// ListByTenant 按租户查询佣金结构，最新 effective_date 在前
func (r *GormCommissionRepository) ListByTenant(tenantID, networkType string) ([]models.CommissionStructure, error) {
	var structures []models.CommissionStructure
	query := r.db.Where("tenant_id = ?", tenantID)
	if networkType != "" {
		query = query.Where("network_type = ?", networkType)
	}
	if err := query.Order("effective_date DESC").Find(&structures).Error; err != nil {
		return nil, err
	}
	return structures, nil
}

// ReplaceForNetwork 整体替换某网络的佣金结构，同步以网络侧为准
func (r *GormCommissionRepository) ReplaceForNetwork(tenantID, networkType string, structures []models.CommissionStructure) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("tenant_id = ? AND network_type = ?", tenantID, networkType).
			Delete(&models.CommissionStructure{}).Error
		if err != nil {
			return err
		}
		if len(structures) == 0 {
			return nil
		}
		return tx.Create(&structures).Error
	})
}
