package repository

import "gorm.io/gorm"

// 单页上限，商品列表一次同步就可能有上万行
const maxPageSize = 500

// applyPagination 统一处理页码与单页大小，越界值收敛到合法区间
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}
