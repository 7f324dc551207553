package repository

import "time"

// NetworkConfigListFilter 查询网络配置列表的过滤条件
type NetworkConfigListFilter struct {
	Page        int
	PageSize    int
	TenantID    string
	NetworkType string
	Status      string
}

// ProductListFilter 查询联盟商品列表的过滤条件
type ProductListFilter struct {
	Page        int
	PageSize    int
	TenantID    string
	NetworkType string
	MerchantID  string
	Category    string
	Search      string
	InStock     *bool
	OnlyActive  bool
}

// ConversionListFilter 查询转化列表的过滤条件
type ConversionListFilter struct {
	Page        int
	PageSize    int
	TenantID    string
	NetworkType string
	Status      string
	DateFrom    *time.Time
	DateTo      *time.Time
}

// SyncOperationListFilter 查询同步操作列表的过滤条件
type SyncOperationListFilter struct {
	Page        int
	PageSize    int
	TenantID    string
	NetworkType string
	Status      string
}
