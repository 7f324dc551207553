package admin

import (
	"strings"

	"github.com/affisync/internal/http/handlers/shared"
	"github.com/affisync/internal/http/response"
	"github.com/affisync/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListSyncOperations 同步操作列表
func (h *Handler) ListSyncOperations(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	operations, total, err := h.NetworkService.ListSyncOperations(repository.SyncOperationListFilter{
		Page:        page,
		PageSize:    pageSize,
		TenantID:    strings.TrimSpace(c.Query("tenant_id")),
		NetworkType: strings.TrimSpace(c.Query("network_type")),
		Status:      strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, operations, response.NewPagination(page, pageSize, total))
}

// GetSyncOperation 查询单个同步操作
func (h *Handler) GetSyncOperation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		shared.RespondError(c, response.CodeBadRequest, "invalid id", nil)
		return
	}
	op, err := h.NetworkService.GetSyncOperation(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, op)
}
