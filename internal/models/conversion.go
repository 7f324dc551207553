package models

import (
	"time"

	"github.com/affisync/internal/constants"

	"gorm.io/gorm"
)

// Conversion 规范化后的转化记录
type Conversion struct {
	ID                  uint           `gorm:"primarykey" json:"id"`
	TenantID            string         `gorm:"index;not null" json:"tenant_id"`
	NetworkType         string         `gorm:"index;not null" json:"network_type"`
	NetworkConversionID string         `gorm:"index;not null" json:"network_conversion_id"`
	ClickID             string         `gorm:"index" json:"click_id"`
	OrderID             string         `gorm:"index" json:"order_id"`
	MerchantID          string         `gorm:"index" json:"merchant_id"`
	OrderValue          Money          `gorm:"type:decimal(20,2);not null;default:0" json:"order_value"`
	Currency            string         `gorm:"size:8;not null;default:USD" json:"currency"`
	CommissionAmount    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"`
	CommissionRate      Money          `gorm:"type:decimal(6,2)" json:"commission_rate"`
	Status              string         `gorm:"index;not null;default:pending" json:"status"`
	ConversionDate      time.Time      `gorm:"index" json:"conversion_date"`
	PayoutDate          *time.Time     `json:"payout_date"`
	Metadata            JSON           `gorm:"type:json" json:"metadata"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (Conversion) TableName() string {
	return "conversions"
}

// IsCanonicalConversionStatus 判断是否为规范化转化状态
func IsCanonicalConversionStatus(status string) bool {
	switch status {
	case constants.ConversionStatusPending,
		constants.ConversionStatusConfirmed,
		constants.ConversionStatusCancelled,
		constants.ConversionStatusReversed:
		return true
	}
	return false
}

// CanTransitionConversionStatus 转化状态机：单调推进，不允许回退到 pending
// pending → confirmed / cancelled；confirmed → reversed；终态不再变化。
func CanTransitionConversionStatus(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case "", constants.ConversionStatusPending:
		return to == constants.ConversionStatusConfirmed || to == constants.ConversionStatusCancelled
	case constants.ConversionStatusConfirmed:
		return to == constants.ConversionStatusReversed
	}
	return false
}
