package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AffiliateProduct 规范化后的联盟商品
// ID 形如 "{network_type}-{network_product_id}"，跨网络全局唯一。
type AffiliateProduct struct {
	ID               string         `gorm:"primarykey;size:255" json:"id"`
	TenantID         string         `gorm:"index;not null" json:"tenant_id"`
	NetworkType      string         `gorm:"index;not null" json:"network_type"`
	NetworkProductID string         `gorm:"index;not null" json:"network_product_id"`
	MerchantID       string         `gorm:"index" json:"merchant_id"`
	MerchantName     string         `json:"merchant_name"`
	Title            string         `gorm:"not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	Brand            string         `json:"brand"`
	Category         string         `gorm:"index" json:"category"`
	Images           StringArray    `gorm:"type:json" json:"images"`
	PriceAmount      Money          `gorm:"type:decimal(20,2);not null" json:"price_amount"`
	PriceCurrency    string         `gorm:"size:8;not null;default:USD" json:"price_currency"`
	OriginalPrice    *Money         `gorm:"type:decimal(20,2)" json:"original_price,omitempty"`
	SalePrice        *Money         `gorm:"type:decimal(20,2)" json:"sale_price,omitempty"`
	CommissionRate   Money          `gorm:"type:decimal(6,2)" json:"commission_rate"`
	CommissionType   string         `gorm:"size:16" json:"commission_type"`
	AffiliateURL     string         `gorm:"type:text" json:"affiliate_url"`
	TrackingURL      string         `gorm:"type:text" json:"tracking_url"`
	InStock          bool           `gorm:"default:true" json:"in_stock"`
	Availability     string         `gorm:"size:32" json:"availability"`
	Tags             StringArray    `gorm:"type:json" json:"tags"`
	Metadata         JSON           `gorm:"type:json" json:"metadata"`
	LastUpdatedAt    time.Time      `gorm:"index" json:"last_updated_at"`
	IsActive         bool           `gorm:"index;default:true" json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (AffiliateProduct) TableName() string {
	return "affiliate_products"
}

// CanonicalProductID 生成跨网络唯一的商品 ID
func CanonicalProductID(networkType, networkProductID string) string {
	return fmt.Sprintf("%s-%s", networkType, networkProductID)
}

// Normalize 补齐派生字段并约束取值范围
func (p *AffiliateProduct) Normalize() {
	if p == nil {
		return
	}
	p.ID = CanonicalProductID(p.NetworkType, p.NetworkProductID)
	if p.PriceAmount.IsNegative() {
		p.PriceAmount = Money{}
	}
	if p.CommissionType == "" {
		p.CommissionType = "percentage"
	}
	if p.CommissionType == "percentage" {
		if p.CommissionRate.IsNegative() {
			p.CommissionRate = Money{}
		}
		if p.CommissionRate.GreaterThan(hundred().Decimal) {
			p.CommissionRate = NewMoneyFromString("100")
		}
	}
	if p.PriceCurrency == "" {
		p.PriceCurrency = "USD"
	}
	if p.LastUpdatedAt.IsZero() {
		p.LastUpdatedAt = time.Now()
	}
}

func hundred() Money {
	return NewMoneyFromString("100")
}
