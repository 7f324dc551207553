package models

import (
	"time"

	"gorm.io/gorm"
)

// CommissionStructure 商家佣金结构，按同步刷新，最新 effective_date 生效
type CommissionStructure struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	TenantID       string         `gorm:"index;not null" json:"tenant_id"`
	NetworkType    string         `gorm:"index;not null" json:"network_type"`
	MerchantID     string         `gorm:"index;not null" json:"merchant_id"`
	MerchantName   string         `json:"merchant_name"`
	BaseRate       Money          `gorm:"type:decimal(6,2);not null;default:0" json:"base_rate"`
	CommissionType string         `gorm:"size:16;not null;default:percentage" json:"commission_type"`
	EffectiveDate  time.Time      `gorm:"index;not null" json:"effective_date"`
	ExpirationDate *time.Time     `json:"expiration_date"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (CommissionStructure) TableName() string {
	return "commission_structures"
}
