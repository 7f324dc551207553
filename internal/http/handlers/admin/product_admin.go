package admin

import (
	"strings"

	"github.com/affisync/internal/http/handlers/shared"
	"github.com/affisync/internal/http/response"
	"github.com/affisync/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListAffiliateProducts 联盟商品列表
func (h *Handler) ListAffiliateProducts(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	filter := repository.ProductListFilter{
		Page:        page,
		PageSize:    pageSize,
		TenantID:    strings.TrimSpace(c.Query("tenant_id")),
		NetworkType: strings.TrimSpace(c.Query("network_type")),
		MerchantID:  strings.TrimSpace(c.Query("merchant_id")),
		Category:    strings.TrimSpace(c.Query("category")),
		Search:      strings.TrimSpace(c.Query("search")),
		InStock:     shared.QueryBool(c, "in_stock"),
	}
	if active := shared.QueryBool(c, "only_active"); active != nil {
		filter.OnlyActive = *active
	}

	products, total, err := h.NetworkService.ListProducts(filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, products, response.NewPagination(page, pageSize, total))
}
