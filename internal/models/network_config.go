package models

import (
	"time"

	"gorm.io/gorm"
)

// NetworkSettings 网络同步与回调设置
type NetworkSettings struct {
	AutoSync                bool `json:"auto_sync"`
	SyncIntervalMinutes     int  `json:"sync_interval_minutes"`
	WebhookEnabled          bool `json:"webhook_enabled"`
	AllowUnverifiedWebhooks bool `json:"allow_unverified_webhooks"` // 无签名网络需显式开启
	ProductFilters          JSON `json:"product_filters"`
}

// NetworkConfig 租户在某个联盟网络的接入配置
type NetworkConfig struct {
	ID           uint           `gorm:"primarykey" json:"id"`                            // 主键
	TenantID     string         `gorm:"index;not null" json:"tenant_id"`                 // 租户标识
	NetworkType  string         `gorm:"index;not null" json:"network_type"`              // 网络类型（shareasale/cj/impact/rakuten）
	Credentials  JSON           `gorm:"type:json;not null" json:"-"`                     // 网络凭证（不对外输出）
	Settings     JSON           `gorm:"type:json" json:"settings"`                       // 同步与回调设置
	Status       string         `gorm:"index;not null;default:active" json:"status"`     // 配置状态
	ErrorMessage string         `gorm:"type:text" json:"error_message"`                  // 最近一次同步错误
	LastSyncAt   *time.Time     `gorm:"index" json:"last_sync_at"`                       // 上次同步完成时间
	NextSyncAt   *time.Time     `gorm:"index" json:"next_sync_at"`                       // 下次计划同步时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                         // 创建时间
	UpdatedAt    time.Time      `json:"updated_at"`                                      // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                  // 软删除时间
}

// TableName 指定表名
func (NetworkConfig) TableName() string {
	return "network_configs"
}

// ParsedSettings 解析 Settings 字段，缺省字段取默认值
func (c *NetworkConfig) ParsedSettings() NetworkSettings {
	settings := NetworkSettings{}
	if c == nil || c.Settings == nil {
		return settings
	}
	if v, ok := c.Settings["auto_sync"].(bool); ok {
		settings.AutoSync = v
	}
	if v, ok := c.Settings["sync_interval_minutes"].(float64); ok && v > 0 {
		settings.SyncIntervalMinutes = int(v)
	}
	if v, ok := c.Settings["webhook_enabled"].(bool); ok {
		settings.WebhookEnabled = v
	}
	if v, ok := c.Settings["allow_unverified_webhooks"].(bool); ok {
		settings.AllowUnverifiedWebhooks = v
	}
	if v, ok := c.Settings["product_filters"].(map[string]interface{}); ok {
		settings.ProductFilters = JSON(v)
	}
	return settings
}

// Credential 读取单个凭证字段
func (c *NetworkConfig) Credential(key string) string {
	if c == nil || c.Credentials == nil {
		return ""
	}
	if v, ok := c.Credentials[key].(string); ok {
		return v
	}
	return ""
}
