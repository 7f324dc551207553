package network

import (
	"context"
	"time"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"

	"github.com/google/uuid"
)

// PageFetchFunc 拉取第 page 页商品，返回商品与是否还有后续页
type PageFetchFunc func(ctx context.Context, page int) ([]models.AffiliateProduct, bool, error)

// NewSyncOperation 创建一次同步操作记录
func NewSyncOperation(tenantID, networkType string, opts SyncOptions) *models.SyncOperation {
	operationType := constants.SyncOperationIncremental
	if opts.FullSync {
		operationType = constants.SyncOperationFull
	}
	return &models.SyncOperation{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		NetworkType:   networkType,
		OperationType: operationType,
		Status:        constants.SyncStatusSyncing,
		StartedAt:     time.Now(),
	}
}

// RunProductSync 驱动逐页同步：每页拉取 → 规范化 → 回调落库。
// 每个页边界检查取消信号；某页失败时操作整体标记 error，
// 已成功页的计数保留，不回滚。
func RunProductSync(ctx context.Context, op *models.SyncOperation, fetch PageFetchFunc, emit ProductBatchFunc) (*models.SyncOperation, error) {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			cancelErr := NewError(op.NetworkType, constants.ErrCodeCancelled, "sync cancelled", false, err)
			finishWithError(op, cancelErr)
			return op, cancelErr
		}

		products, hasMore, err := fetch(ctx, page)
		if err != nil {
			finishWithError(op, err)
			return op, err
		}

		for i := range products {
			products[i].TenantID = op.TenantID
			products[i].NetworkType = op.NetworkType
			products[i].Normalize()
		}
		op.RecordsProcessed += len(products)

		if emit != nil && len(products) > 0 {
			if err := emit(ctx, products); err != nil {
				op.RecordsFailed += len(products)
				finishWithError(op, err)
				return op, err
			}
		}
		op.RecordsSucceeded += len(products)

		if !hasMore {
			break
		}
	}

	now := time.Now()
	op.Status = constants.SyncStatusCompleted
	op.CompletedAt = &now
	return op, nil
}

func finishWithError(op *models.SyncOperation, err error) {
	now := time.Now()
	op.Status = constants.SyncStatusError
	op.CompletedAt = &now
	op.AppendErrorDetail(models.SyncErrorDetail{
		ErrorCode:    ErrorCode(err),
		ErrorMessage: err.Error(),
	})
}
