package repository

import (
	"strings"
	"time"

	"github.com/affisync/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository 联盟商品数据访问接口
type ProductRepository interface {
	List(filter ProductListFilter) ([]models.AffiliateProduct, int64, error)
	GetByID(id string) (*models.AffiliateProduct, error)
	UpsertBatch(products []models.AffiliateProduct) error
	TouchByNetworkProductID(tenantID, networkType, networkProductID string, at time.Time) error
	DeactivateStale(tenantID, networkType string, before time.Time) (int64, error)
}

// GormProductRepository GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建联盟商品仓库
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// List 商品列表
func (r *GormProductRepository) List(filter ProductListFilter) ([]models.AffiliateProduct, int64, error) {
	var products []models.AffiliateProduct

	query := r.db.Model(&models.AffiliateProduct{})
	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.NetworkType != "" {
		query = query.Where("network_type = ?", filter.NetworkType)
	}
	if filter.MerchantID != "" {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.InStock != nil {
		query = query.Where("in_stock = ?", *filter.InStock)
	}
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("title LIKE ? OR brand LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("last_updated_at DESC").Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetByID 按规范化商品 ID 查询
func (r *GormProductRepository) GetByID(id string) (*models.AffiliateProduct, error) {
	var product models.AffiliateProduct
	if err := r.db.Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// UpsertBatch 批量写入商品，同 ID 覆盖更新，重复同步幂等
func (r *GormProductRepository) UpsertBatch(products []models.AffiliateProduct) error {
	if len(products) == 0 {
		return nil
	}
	for i := range products {
		products[i].Normalize()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"merchant_id", "merchant_name", "title", "description", "brand", "category",
			"images", "price_amount", "price_currency", "original_price", "sale_price",
			"commission_rate", "commission_type", "affiliate_url", "tracking_url",
			"in_stock", "availability", "tags", "metadata", "last_updated_at",
			"is_active", "updated_at",
		}),
	}).Create(&products).Error
}

// TouchByNetworkProductID 回调触发的商品更新时间刷新
func (r *GormProductRepository) TouchByNetworkProductID(tenantID, networkType, networkProductID string, at time.Time) error {
	return r.db.Model(&models.AffiliateProduct{}).
		Where("tenant_id = ? AND network_type = ? AND network_product_id = ?",
			tenantID, networkType, networkProductID).
		Update("last_updated_at", at).Error
}

// DeactivateStale 全量同步后下架本次未出现的商品
func (r *GormProductRepository) DeactivateStale(tenantID, networkType string, before time.Time) (int64, error) {
	result := r.db.Model(&models.AffiliateProduct{}).
		Where("tenant_id = ? AND network_type = ? AND last_updated_at < ? AND is_active = ?",
			tenantID, networkType, before, true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}
