package admin

import (
	"strings"

	"github.com/affisync/internal/http/handlers/shared"
	"github.com/affisync/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListCommissionStructures 佣金结构列表
func (h *Handler) ListCommissionStructures(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Query("tenant_id"))
	if tenantID == "" {
		shared.RespondError(c, response.CodeBadRequest, "tenant_id is required", nil)
		return
	}
	structures, err := h.NetworkService.ListCommissionStructures(tenantID, strings.TrimSpace(c.Query("network_type")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, structures)
}
