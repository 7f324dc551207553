package service

import (
	"context"
	"time"

	"github.com/affisync/internal/models"
	"github.com/affisync/internal/repository"
)

// storeSink 适配器回调事件的落库实现
type storeSink struct {
	products    repository.ProductRepository
	conversions repository.ConversionRepository
}

func newStoreSink(products repository.ProductRepository, conversions repository.ConversionRepository) *storeSink {
	return &storeSink{products: products, conversions: conversions}
}

// UpsertConversion 回调转化落库，状态机约束在仓库层执行
func (s *storeSink) UpsertConversion(ctx context.Context, conversion *models.Conversion) error {
	return s.conversions.Upsert(conversion)
}

// TouchProduct 回调商品事件只刷新更新时间
func (s *storeSink) TouchProduct(ctx context.Context, tenantID, networkType, networkProductID string, at time.Time) error {
	return s.products.TouchByNetworkProductID(tenantID, networkType, networkProductID, at)
}
